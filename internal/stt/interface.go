package stt

import (
	"context"
	"errors"
)

// ErrTranscription reports a failed remote call: network error, non-2xx
// status, or a response without a text candidate.
var ErrTranscription = errors.New("transcription failed")

// Provider defines the interface for remote transcription/classification services
type Provider interface {
	// Transcribe sends the audio behind uri and returns the service's text
	// response, which is expected (not guaranteed) to be JSON.
	Transcribe(ctx context.Context, uri string) (string, error)

	// Name returns the name of the provider (e.g., "gemini", "openai")
	Name() string
}
