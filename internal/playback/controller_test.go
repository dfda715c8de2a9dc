package playback

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeHandle struct {
	uri      string
	player   *fakePlayer
	mu       sync.Mutex
	playing  bool
	released bool
	plays    int
	pauses   int
	done     chan struct{}
	once     sync.Once
}

func (h *fakeHandle) Play() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.playing = true
	h.plays++
	return nil
}

func (h *fakeHandle) Pause() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.playing = false
	h.pauses++
	return nil
}

func (h *fakeHandle) Release() error {
	h.mu.Lock()
	h.released = true
	h.playing = false
	h.mu.Unlock()
	h.player.released(h)
	h.finish()
	return nil
}

func (h *fakeHandle) Done() <-chan struct{} { return h.done }

// finish simulates the clip reaching its end
func (h *fakeHandle) finish() { h.once.Do(func() { close(h.done) }) }

func (h *fakeHandle) isReleased() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.released
}

type fakePlayer struct {
	mu         sync.Mutex
	live       map[*fakeHandle]bool
	handles    []*fakeHandle
	maxLive    int
	loadErr    error
	liveAtLoad []int
}

func newFakePlayer() *fakePlayer {
	return &fakePlayer{live: map[*fakeHandle]bool{}}
}

func (p *fakePlayer) Load(_ context.Context, uri string) (Handle, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.liveAtLoad = append(p.liveAtLoad, len(p.live))
	if p.loadErr != nil {
		return nil, p.loadErr
	}
	h := &fakeHandle{uri: uri, player: p, done: make(chan struct{})}
	p.live[h] = true
	p.handles = append(p.handles, h)
	if len(p.live) > p.maxLive {
		p.maxLive = len(p.live)
	}
	return h, nil
}

func (p *fakePlayer) released(h *fakeHandle) {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.live, h)
}

func (p *fakePlayer) liveCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.live)
}

func newTestController(p Player) *Controller {
	return NewController(p, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func TestController_PlayReleasesPreviousBeforeLoading(t *testing.T) {
	p := newFakePlayer()
	c := newTestController(p)
	ctx := context.Background()

	_, err := c.Play(ctx, "file:///a.mp3")
	require.NoError(t, err)
	st, err := c.Play(ctx, "file:///b.mp3")
	require.NoError(t, err)

	assert.Equal(t, "file:///b.mp3", st.URI)
	assert.True(t, st.Playing)
	assert.Equal(t, []int{0, 0}, p.liveAtLoad, "A must be released before B is loaded")
	assert.Equal(t, 1, p.maxLive)
	assert.True(t, p.handles[0].isReleased())
	assert.False(t, p.handles[1].isReleased())
}

func TestController_ToggleWhenIdleIsNoop(t *testing.T) {
	p := newFakePlayer()
	c := newTestController(p)

	st, err := c.Toggle()
	require.NoError(t, err)
	assert.Equal(t, State{}, st)
	assert.Empty(t, p.handles)
}

func TestController_SameURITogglesInsteadOfReloading(t *testing.T) {
	p := newFakePlayer()
	c := newTestController(p)
	ctx := context.Background()

	_, err := c.Play(ctx, "file:///a.mp3")
	require.NoError(t, err)

	st, err := c.Play(ctx, "file:///a.mp3")
	require.NoError(t, err)
	assert.True(t, st.Paused)
	assert.False(t, st.Playing)

	st, err = c.Play(ctx, "file:///a.mp3")
	require.NoError(t, err)
	assert.True(t, st.Playing)

	require.Len(t, p.handles, 1, "no duplicate handle for the active clip")
	h := p.handles[0]
	assert.Equal(t, 2, h.plays)
	assert.Equal(t, 1, h.pauses)
}

func TestController_TogglePauseResume(t *testing.T) {
	p := newFakePlayer()
	c := newTestController(p)

	_, err := c.Play(context.Background(), "file:///a.mp3")
	require.NoError(t, err)

	st, err := c.Toggle()
	require.NoError(t, err)
	assert.True(t, st.Paused)

	st, err = c.Toggle()
	require.NoError(t, err)
	assert.True(t, st.Playing)
}

func TestController_NaturalCompletionClearsSlot(t *testing.T) {
	p := newFakePlayer()
	c := newTestController(p)

	_, err := c.Play(context.Background(), "file:///a.mp3")
	require.NoError(t, err)
	p.handles[0].finish()

	require.Eventually(t, func() bool { return c.State() == State{} }, time.Second, 5*time.Millisecond)
	assert.True(t, p.handles[0].isReleased())
	assert.Zero(t, p.liveCount())
}

func TestController_StaleCompletionKeepsNewClip(t *testing.T) {
	p := newFakePlayer()
	c := newTestController(p)
	ctx := context.Background()

	_, err := c.Play(ctx, "file:///a.mp3")
	require.NoError(t, err)
	_, err = c.Play(ctx, "file:///b.mp3")
	require.NoError(t, err)

	// A's done channel is already closed by its release
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, "file:///b.mp3", c.State().URI)
	assert.Equal(t, 1, p.liveCount())
}

func TestController_Stop(t *testing.T) {
	p := newFakePlayer()
	c := newTestController(p)

	_, err := c.Play(context.Background(), "file:///a.mp3")
	require.NoError(t, err)
	c.Stop()

	assert.Equal(t, State{}, c.State())
	assert.Zero(t, p.liveCount())
	c.Stop()
}

func TestController_LoadFailureLeavesSlotEmpty(t *testing.T) {
	p := newFakePlayer()
	c := newTestController(p)
	ctx := context.Background()

	_, err := c.Play(ctx, "file:///a.mp3")
	require.NoError(t, err)

	p.loadErr = errors.New("no such clip")
	_, err = c.Play(ctx, "file:///missing.mp3")
	require.Error(t, err)

	assert.Equal(t, State{}, c.State())
	assert.Zero(t, p.liveCount())
}
