package playback

import (
	"context"
	"errors"
)

// ErrUnsupported is returned when the platform cannot pause a playing clip
var ErrUnsupported = errors.New("pause is not supported on this platform")

// Player loads audio clips into playable handles
type Player interface {
	Load(ctx context.Context, uri string) (Handle, error)
}

// Handle is one loaded clip. Play starts or resumes it, Pause suspends it and
// Release tears it down. Done is closed when the clip finishes on its own or
// after Release.
type Handle interface {
	Play() error
	Pause() error
	Release() error
	Done() <-chan struct{}
}
