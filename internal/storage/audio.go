package storage

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// ErrMove reports that a captured file could not be relocated into the
// durable audio directory. The entry must not be saved when this happens.
var ErrMove = errors.New("move audio failed")

const uriScheme = "file://"

// Mover moves freshly captured audio into an app-owned directory
type Mover struct {
	dir string
}

// NewMover returns a mover targeting dir. The directory is created lazily
func NewMover(dir string) *Mover {
	return &Mover{dir: dir}
}

// Dir returns the durable audio directory
func (m *Mover) Dir() string {
	return m.dir
}

// Persist moves the file behind transientURI into the audio directory and
// returns its durable file:// URI. The destination keeps the captured file
// name; an existing file with that name is never overwritten.
func (m *Mover) Persist(transientURI string) (string, error) {
	src := Path(transientURI)
	if src == "" {
		return "", fmt.Errorf("%w: empty source", ErrMove)
	}

	info, err := os.Stat(src)
	if err != nil {
		return "", fmt.Errorf("%w: source %s: %v", ErrMove, src, err)
	}
	if info.IsDir() {
		return "", fmt.Errorf("%w: source %s is a directory", ErrMove, src)
	}

	if err := os.MkdirAll(m.dir, 0o755); err != nil {
		return "", fmt.Errorf("%w: create audio directory: %v", ErrMove, err)
	}

	dst, err := filepath.Abs(filepath.Join(m.dir, filepath.Base(src)))
	if err != nil {
		return "", fmt.Errorf("%w: resolve destination: %v", ErrMove, err)
	}
	if _, err := os.Stat(dst); err == nil {
		return "", fmt.Errorf("%w: destination %s already exists", ErrMove, dst)
	}

	if err := move(src, dst); err != nil {
		return "", fmt.Errorf("%w: %v", ErrMove, err)
	}

	return URI(dst), nil
}

// Remove deletes the blob behind uri. A blob that is already gone is not an error.
func (m *Mover) Remove(uri string) error {
	path := Path(uri)
	if path == "" {
		return nil
	}
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("remove %s: %w", path, err)
	}
	return nil
}

// Path converts a file:// URI (or a bare path) into a filesystem path
func Path(uri string) string {
	return strings.TrimPrefix(strings.TrimSpace(uri), uriScheme)
}

// URI converts a filesystem path into a file:// URI
func URI(path string) string {
	if strings.HasPrefix(path, uriScheme) {
		return path
	}
	return uriScheme + filepath.ToSlash(path)
}

// move renames src to dst, falling back to copy+remove when they live on
// different filesystems.
func move(src, dst string) error {
	if err := os.Rename(src, dst); err == nil {
		return nil
	}

	if err := copyFile(src, dst); err != nil {
		os.Remove(dst)
		return err
	}
	if err := os.Remove(src); err != nil {
		return fmt.Errorf("remove source after copy: %w", err)
	}
	return nil
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return err
	}

	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	if err := out.Sync(); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}
