package playback

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"runtime"
	"strings"
	"sync"

	"voicenotes/internal/storage"
)

// DefaultCommand returns the player command line for the current platform
func DefaultCommand() string {
	if runtime.GOOS == "darwin" {
		return "afplay {in}"
	}
	return "ffplay -nodisp -autoexit -loglevel quiet {in}"
}

// ExecPlayer plays clips by running an external command. "{in}" in the
// command line is replaced by the clip path; without it the path is appended.
type ExecPlayer struct {
	command string
}

func NewExecPlayer(command string) *ExecPlayer {
	if strings.TrimSpace(command) == "" {
		command = DefaultCommand()
	}
	return &ExecPlayer{command: command}
}

func (p *ExecPlayer) Load(ctx context.Context, uri string) (Handle, error) {
	path := storage.Path(uri)
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("open clip: %w", err)
	}

	args := strings.Fields(p.command)
	replaced := false
	for i, a := range args {
		if strings.Contains(a, "{in}") {
			args[i] = strings.ReplaceAll(a, "{in}", path)
			replaced = true
		}
	}
	if !replaced {
		args = append(args, path)
	}

	cmd := exec.CommandContext(context.WithoutCancel(ctx), args[0], args[1:]...)
	return &execHandle{cmd: cmd, done: make(chan struct{})}, nil
}

type execHandle struct {
	mu       sync.Mutex
	cmd      *exec.Cmd
	started  bool
	released bool
	done     chan struct{}
	once     sync.Once
}

func (h *execHandle) Play() error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.released {
		return errors.New("handle released")
	}
	if h.started {
		return resume(h.cmd.Process)
	}
	if err := h.cmd.Start(); err != nil {
		return fmt.Errorf("start player: %w", err)
	}
	h.started = true
	go func() {
		_ = h.cmd.Wait()
		h.once.Do(func() { close(h.done) })
	}()
	return nil
}

func (h *execHandle) Pause() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if !h.started || h.released {
		return nil
	}
	return suspend(h.cmd.Process)
}

func (h *execHandle) Release() error {
	h.mu.Lock()
	if h.released {
		h.mu.Unlock()
		return nil
	}
	h.released = true
	started := h.started
	h.mu.Unlock()

	if !started {
		h.once.Do(func() { close(h.done) })
		return nil
	}
	// SIGKILL also ends a suspended process
	if err := h.cmd.Process.Kill(); err != nil && !errors.Is(err, os.ErrProcessDone) {
		return fmt.Errorf("kill player: %w", err)
	}
	<-h.done
	return nil
}

func (h *execHandle) Done() <-chan struct{} {
	return h.done
}
