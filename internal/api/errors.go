package api

import (
	"context"
	"errors"
	"net/http"

	"voicenotes/internal/notes"
	"voicenotes/internal/recorder"
	"voicenotes/internal/storage"
	"voicenotes/internal/stt"
)

// statusFor maps domain errors onto HTTP status codes
func statusFor(err error) int {
	switch {
	case errors.Is(err, notes.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, notes.ErrBatchInProgress), errors.Is(err, recorder.ErrBusy):
		return http.StatusConflict
	case errors.Is(err, notes.ErrNoProvider):
		return http.StatusServiceUnavailable
	case errors.Is(err, recorder.ErrPermission):
		return http.StatusForbidden
	case errors.Is(err, recorder.ErrCapture), errors.Is(err, storage.ErrMove):
		return http.StatusUnprocessableEntity
	case errors.Is(err, stt.ErrTranscription):
		return http.StatusBadGateway
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return http.StatusRequestTimeout
	default:
		return http.StatusInternalServerError
	}
}
