//go:build unix

package playback

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"voicenotes/internal/storage"
)

func writeClip(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "clip.mp3")
	require.NoError(t, os.WriteFile(path, []byte("not really audio"), 0o644))
	return storage.URI(path)
}

func requireTool(t *testing.T, name string) {
	t.Helper()
	if _, err := exec.LookPath(name); err != nil {
		t.Skipf("%s not available", name)
	}
}

func TestExecPlayer_NaturalCompletion(t *testing.T) {
	requireTool(t, "true")
	p := NewExecPlayer("true {in}")

	h, err := p.Load(context.Background(), writeClip(t))
	require.NoError(t, err)
	require.NoError(t, h.Play())

	select {
	case <-h.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("player never finished")
	}
	assert.NoError(t, h.Release())
}

func TestExecPlayer_PauseResumeRelease(t *testing.T) {
	requireTool(t, "tail")
	p := NewExecPlayer("tail -f {in}")

	h, err := p.Load(context.Background(), writeClip(t))
	require.NoError(t, err)
	require.NoError(t, h.Play())

	require.NoError(t, h.Pause())
	require.NoError(t, h.Play())
	require.NoError(t, h.Pause())

	require.NoError(t, h.Release())
	select {
	case <-h.Done():
	default:
		t.Fatal("release must wait for the process to exit")
	}
	assert.Error(t, h.Play(), "a released handle cannot play")
}

func TestExecPlayer_ReleaseBeforePlay(t *testing.T) {
	p := NewExecPlayer("tail -f")
	h, err := p.Load(context.Background(), writeClip(t))
	require.NoError(t, err)
	require.NoError(t, h.Release())
	<-h.Done()
}

func TestExecPlayer_MissingClip(t *testing.T) {
	p := NewExecPlayer("")
	_, err := p.Load(context.Background(), "file:///does/not/exist.mp3")
	assert.Error(t, err)
}
