package storage

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeCapture(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestPersist_MovesIntoAudioDir(t *testing.T) {
	captureDir := t.TempDir()
	audioDir := filepath.Join(t.TempDir(), "audios")
	src := writeCapture(t, captureDir, "rec-001.m4a", "voice")

	m := NewMover(audioDir)
	uri, err := m.Persist(URI(src))
	require.NoError(t, err)

	dst := Path(uri)
	assert.Equal(t, "rec-001.m4a", filepath.Base(dst))
	assert.True(t, filepath.IsAbs(dst))

	data, err := os.ReadFile(dst)
	require.NoError(t, err)
	assert.Equal(t, "voice", string(data))

	_, err = os.Stat(src)
	assert.True(t, os.IsNotExist(err), "source must be gone after a move")
}

func TestPersist_AcceptsBarePath(t *testing.T) {
	src := writeCapture(t, t.TempDir(), "a.mp3", "x")
	uri, err := NewMover(t.TempDir()).Persist(src)
	require.NoError(t, err)
	assert.Contains(t, uri, "file://")
}

func TestPersist_MissingSource(t *testing.T) {
	_, err := NewMover(t.TempDir()).Persist("file:///nope/missing.mp3")
	assert.ErrorIs(t, err, ErrMove)
}

func TestPersist_RefusesToOverwrite(t *testing.T) {
	audioDir := t.TempDir()
	writeCapture(t, audioDir, "same.mp3", "first")
	src := writeCapture(t, t.TempDir(), "same.mp3", "second")

	_, err := NewMover(audioDir).Persist(src)
	require.ErrorIs(t, err, ErrMove)

	data, err := os.ReadFile(filepath.Join(audioDir, "same.mp3"))
	require.NoError(t, err)
	assert.Equal(t, "first", string(data))

	_, err = os.Stat(src)
	assert.NoError(t, err, "source stays in place when the move fails")
}

func TestPersist_UnwritableDestination(t *testing.T) {
	base := t.TempDir()
	blocker := writeCapture(t, base, "audios", "not a directory")
	src := writeCapture(t, t.TempDir(), "a.mp3", "x")

	_, err := NewMover(filepath.Join(blocker, "nested")).Persist(src)
	assert.ErrorIs(t, err, ErrMove)
}

func TestRemove(t *testing.T) {
	dir := t.TempDir()
	path := writeCapture(t, dir, "a.mp3", "x")
	m := NewMover(dir)

	require.NoError(t, m.Remove(URI(path)))
	_, err := os.Stat(path)
	assert.True(t, os.IsNotExist(err))

	assert.NoError(t, m.Remove(URI(path)), "already removed")
	assert.NoError(t, m.Remove("file://a.mp3"))
}

func TestPathAndURI(t *testing.T) {
	assert.Equal(t, "/data/a.mp3", Path("file:///data/a.mp3"))
	assert.Equal(t, "/data/a.mp3", Path("/data/a.mp3"))
	assert.Equal(t, "file:///data/a.mp3", URI("/data/a.mp3"))
	assert.Equal(t, "file:///data/a.mp3", URI("file:///data/a.mp3"))
}
