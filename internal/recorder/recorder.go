package recorder

import (
	"context"
	"errors"
)

var (
	// ErrPermission means the microphone could not be opened; no entry is created
	ErrPermission = errors.New("microphone access denied")
	// ErrCapture means the recording stopped without producing a file
	ErrCapture = errors.New("capture produced no audio")
	// ErrBusy rejects a second start while one is pending or recording
	ErrBusy = errors.New("a recording is already in progress")
)

// Recorder opens the microphone
type Recorder interface {
	Start(ctx context.Context) (Capture, error)
}

// Capture is one in-progress recording
type Capture interface {
	// Stop ends the recording and returns the transient URI of the file
	Stop() (string, error)
}
