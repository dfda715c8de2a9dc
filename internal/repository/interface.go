package repository

import (
	"context"
	"errors"

	"voicenotes/internal/model"
)

// ErrStorage wraps every read or write failure of the underlying store
var ErrStorage = errors.New("storage error")

// DefaultKey is the key that holds the serialized entry list
const DefaultKey = "AUDIO_FILES"

// EntryRepository defines data access for the audio entry list
type EntryRepository interface {
	// GetAll returns the stored entries in order. Missing or unreadable data
	// yields an empty list.
	GetAll(ctx context.Context) []model.AudioEntry

	// Get returns a single entry by ID
	Get(ctx context.Context, id string) (model.AudioEntry, bool)

	// Save upserts an entry by ID
	Save(ctx context.Context, entry model.AudioEntry) (model.AudioEntry, error)

	// Update replaces an existing entry. ok is false, and nothing is written,
	// when the ID is not in the list.
	Update(ctx context.Context, entry model.AudioEntry) (ok bool, err error)

	// Delete removes an entry and its backing blob, returning the remaining entries
	Delete(ctx context.Context, id string) ([]model.AudioEntry, error)

	// Clear drops all entries. Blobs are left on disk.
	Clear(ctx context.Context) error
}

// KV is the key-value backend the entry list is persisted in
type KV interface {
	// Get returns the value for key; ok is false when the key is absent
	Get(ctx context.Context, key string) (value []byte, ok bool, err error)

	Set(ctx context.Context, key string, value []byte) error

	Delete(ctx context.Context, key string) error

	Close() error
}

// BlobRemover releases the audio file behind an entry
type BlobRemover interface {
	Remove(uri string) error
}
