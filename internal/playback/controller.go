package playback

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var playbackStartsTotal = promauto.NewCounter(prometheus.CounterOpts{
	Name: "vnote_playback_starts_total",
	Help: "Number of clips loaded and started by the playback controller.",
})

// State is a snapshot of the playback slot
type State struct {
	URI     string `json:"uri,omitempty"`
	Playing bool   `json:"playing"`
	Paused  bool   `json:"paused"`
}

type slot struct {
	uri    string
	handle Handle
	paused bool
	gen    uint64
}

// Controller owns the single active playback handle. Acquiring a new handle
// always releases the previous one first.
type Controller struct {
	player Player
	logger *slog.Logger

	mu     sync.Mutex
	active *slot
	gen    uint64
}

func NewController(player Player, logger *slog.Logger) *Controller {
	if logger == nil {
		logger = slog.Default()
	}
	return &Controller{player: player, logger: logger.With("component", "playback")}
}

// Play starts uri. Playing the clip that is already active toggles it instead
// of loading it again.
func (c *Controller) Play(ctx context.Context, uri string) (State, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.active != nil && c.active.uri == uri {
		if err := c.toggleLocked(); err != nil {
			return c.stateLocked(), err
		}
		return c.stateLocked(), nil
	}

	c.releaseLocked()

	h, err := c.player.Load(ctx, uri)
	if err != nil {
		return State{}, fmt.Errorf("load %s: %w", uri, err)
	}
	if err := h.Play(); err != nil {
		_ = h.Release()
		return State{}, fmt.Errorf("play %s: %w", uri, err)
	}

	c.gen++
	c.active = &slot{uri: uri, handle: h, gen: c.gen}
	playbackStartsTotal.Inc()
	c.logger.Info("playback started", "uri", uri)

	go c.watch(c.active.gen, h)
	return c.stateLocked(), nil
}

// Toggle pauses a playing clip or resumes a paused one. It does nothing when
// no clip is loaded.
func (c *Controller) Toggle() (State, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.active == nil {
		return State{}, nil
	}
	err := c.toggleLocked()
	return c.stateLocked(), err
}

// Stop releases the active handle
func (c *Controller) Stop() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.releaseLocked()
}

func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stateLocked()
}

func (c *Controller) toggleLocked() error {
	s := c.active
	if s.paused {
		if err := s.handle.Play(); err != nil {
			return fmt.Errorf("resume: %w", err)
		}
		s.paused = false
		return nil
	}
	if err := s.handle.Pause(); err != nil {
		return fmt.Errorf("pause: %w", err)
	}
	s.paused = true
	return nil
}

func (c *Controller) releaseLocked() {
	if c.active == nil {
		return
	}
	s := c.active
	c.active = nil
	if err := s.handle.Release(); err != nil {
		c.logger.Warn("release failed", "uri", s.uri, "error", err)
	}
}

func (c *Controller) stateLocked() State {
	if c.active == nil {
		return State{}
	}
	return State{URI: c.active.uri, Playing: !c.active.paused, Paused: c.active.paused}
}

// watch clears the slot when the clip ends by itself. A handle that was
// already replaced or released leaves the slot alone.
func (c *Controller) watch(gen uint64, h Handle) {
	<-h.Done()

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.active == nil || c.active.gen != gen {
		return
	}
	c.logger.Debug("playback finished", "uri", c.active.uri)
	c.releaseLocked()
}
