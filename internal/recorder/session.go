package recorder

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

const (
	DefaultDebounce    = 300 * time.Millisecond
	DefaultMaxDuration = 2 * time.Minute
)

// SessionState is what a press-and-hold control would render
type SessionState string

const (
	StateIdle      SessionState = "idle"
	StatePending   SessionState = "pending"
	StateRecording SessionState = "recording"
)

// StopReason tells why a recording ended
type StopReason string

const (
	StopManual  StopReason = "manual"
	StopMaxTime StopReason = "max_duration"
)

// SessionConfig configures a Session
type SessionConfig struct {
	Recorder    Recorder
	Debounce    time.Duration
	MaxDuration time.Duration

	// OnStarted runs after the microphone opened
	OnStarted func()
	// OnCaptured receives the transient URI of every finished recording and
	// the tag given to the Press that started it
	OnCaptured func(uri, tag string, reason StopReason)
	// OnError receives start and capture failures
	OnError func(err error)

	Logger *slog.Logger
}

// Session is the single recording slot behind a press-and-hold control.
//
// Press schedules the start after a debounce delay; releasing before the delay
// cancels it. Once recording, a max-duration timer stops it automatically.
// Every scheduled callback carries the generation it was created for and
// becomes a no-op once the generation moves on, so whichever of release and
// auto-stop happens first wins.
type Session struct {
	cfg    SessionConfig
	logger *slog.Logger

	mu       sync.Mutex
	gen      uint64
	tag      string
	pending  *time.Timer
	active   Capture
	autoStop *time.Timer
	started  time.Time
}

// NewSession creates an idle session
func NewSession(cfg SessionConfig) *Session {
	if cfg.Debounce < 0 {
		cfg.Debounce = 0
	}
	if cfg.MaxDuration <= 0 {
		cfg.MaxDuration = DefaultMaxDuration
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Session{cfg: cfg, logger: logger.With("component", "recorder")}
}

// State reports the slot state
func (s *Session) State() SessionState {
	s.mu.Lock()
	defer s.mu.Unlock()
	switch {
	case s.active != nil:
		return StateRecording
	case s.pending != nil:
		return StatePending
	default:
		return StateIdle
	}
}

// Elapsed returns how long the current recording has been running
func (s *Session) Elapsed() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.active == nil {
		return 0
	}
	return time.Since(s.started)
}

// Press schedules a recording start. tag travels with this recording only and
// is handed back to OnCaptured. A second press while a start is pending or a
// recording is active is rejected with ErrBusy.
func (s *Session) Press(tag string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.pending != nil || s.active != nil {
		return ErrBusy
	}

	s.gen++
	s.tag = tag
	gen := s.gen
	s.pending = time.AfterFunc(s.cfg.Debounce, func() { s.begin(gen) })
	return nil
}

// Release cancels a pending start or stops the active recording. Releasing
// an idle session does nothing.
func (s *Session) Release() {
	s.mu.Lock()

	if s.pending != nil {
		s.pending.Stop()
		s.pending = nil
		s.gen++
		s.mu.Unlock()
		s.logger.Debug("press released before debounce, start cancelled")
		return
	}

	if s.active == nil {
		s.mu.Unlock()
		return
	}

	s.finishLocked(StopManual)
}

// Cancel stops any recording without delivering it
func (s *Session) Cancel() {
	s.mu.Lock()
	if s.pending != nil {
		s.pending.Stop()
		s.pending = nil
	}
	capture := s.active
	s.active = nil
	if s.autoStop != nil {
		s.autoStop.Stop()
		s.autoStop = nil
	}
	s.gen++
	s.mu.Unlock()

	if capture != nil {
		if _, err := capture.Stop(); err != nil {
			s.logger.Warn("discarded recording failed to stop cleanly", "error", err)
		}
	}
}

func (s *Session) begin(gen uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if gen != s.gen || s.pending == nil {
		return
	}
	s.pending = nil

	capture, err := s.cfg.Recorder.Start(context.Background())
	if err != nil {
		s.gen++
		s.logger.Warn("failed to start recording", "error", err)
		if s.cfg.OnError != nil {
			go s.cfg.OnError(err)
		}
		return
	}

	s.active = capture
	s.started = time.Now()
	s.autoStop = time.AfterFunc(s.cfg.MaxDuration, func() { s.expire(gen) })
	s.logger.Info("recording started", "max_duration", s.cfg.MaxDuration)

	if s.cfg.OnStarted != nil {
		go s.cfg.OnStarted()
	}
}

func (s *Session) expire(gen uint64) {
	s.mu.Lock()
	if gen != s.gen || s.active == nil {
		s.mu.Unlock()
		return
	}
	s.finishLocked(StopMaxTime)
}

// finishLocked releases the slot and delivers the capture. It must be called
// with s.mu held and returns with it released.
func (s *Session) finishLocked(reason StopReason) {
	capture := s.active
	tag := s.tag
	s.active = nil
	s.tag = ""
	if s.autoStop != nil {
		s.autoStop.Stop()
		s.autoStop = nil
	}
	s.gen++
	elapsed := time.Since(s.started)
	s.mu.Unlock()

	uri, err := capture.Stop()
	if err == nil && uri == "" {
		err = ErrCapture
	}
	if err != nil {
		s.logger.Warn("recording produced no audio", "reason", reason, "error", err)
		if s.cfg.OnError != nil {
			s.cfg.OnError(err)
		}
		return
	}

	s.logger.Info("recording stopped", "reason", reason, "elapsed", elapsed, "uri", uri)
	if s.cfg.OnCaptured != nil {
		s.cfg.OnCaptured(uri, tag, reason)
	}
}
