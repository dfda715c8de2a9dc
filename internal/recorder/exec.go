package recorder

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"voicenotes/internal/storage"
)

// DefaultCommand records CD-quality WAV from the default ALSA device
const DefaultCommand = "arecord -q -f cd -t wav {out}"

// ExecRecorder captures audio by running an external command. The command
// line is split on spaces; "{out}" is replaced by the capture file path, or
// the path is appended when the placeholder is absent.
type ExecRecorder struct {
	command    string
	captureDir string
	ext        string
}

// NewExecRecorder returns a recorder writing into captureDir
func NewExecRecorder(command, captureDir string) *ExecRecorder {
	if strings.TrimSpace(command) == "" {
		command = DefaultCommand
	}
	ext := ".wav"
	if strings.Contains(command, "ffmpeg") || strings.Contains(command, ".mp3") {
		ext = ".mp3"
	}
	return &ExecRecorder{command: command, captureDir: captureDir, ext: ext}
}

func (r *ExecRecorder) Start(ctx context.Context) (Capture, error) {
	if err := os.MkdirAll(r.captureDir, 0o755); err != nil {
		return nil, fmt.Errorf("create capture dir: %w", err)
	}
	path := filepath.Join(r.captureDir, fmt.Sprintf("rec-%d%s", time.Now().UnixNano(), r.ext))

	args := strings.Fields(r.command)
	replaced := false
	for i, a := range args {
		if strings.Contains(a, "{out}") {
			args[i] = strings.ReplaceAll(a, "{out}", path)
			replaced = true
		}
	}
	if !replaced {
		args = append(args, path)
	}

	// the process must outlive the request that started it
	cmd := exec.CommandContext(context.WithoutCancel(ctx), args[0], args[1:]...)
	if err := cmd.Start(); err != nil {
		if errors.Is(err, exec.ErrNotFound) || errors.Is(err, os.ErrPermission) {
			return nil, fmt.Errorf("%w: %v", ErrPermission, err)
		}
		return nil, fmt.Errorf("start recorder: %w", err)
	}

	return &execCapture{cmd: cmd, path: path}, nil
}

type execCapture struct {
	once sync.Once
	cmd  *exec.Cmd
	path string
	uri  string
	err  error
}

func (c *execCapture) Stop() (string, error) {
	c.once.Do(func() {
		// SIGINT lets the recorder flush and close the file header properly
		if err := c.cmd.Process.Signal(os.Interrupt); err != nil {
			_ = c.cmd.Process.Kill()
		}
		_ = c.cmd.Wait()

		info, err := os.Stat(c.path)
		if err != nil || info.Size() == 0 {
			os.Remove(c.path)
			c.err = fmt.Errorf("%w: %s", ErrCapture, c.path)
			return
		}
		c.uri = storage.URI(c.path)
	})
	return c.uri, c.err
}
