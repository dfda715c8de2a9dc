package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"

	"voicenotes/internal/model"
)

type entryStore struct {
	kv     KV
	key    string
	blobs  BlobRemover
	logger *slog.Logger

	// mu is the single-writer gate around every read-modify-write of the list
	mu sync.Mutex
}

// NewEntryStore creates the entry repository on top of a KV backend. blobs may
// be nil, in which case Delete only drops metadata.
func NewEntryStore(kv KV, key string, blobs BlobRemover, logger *slog.Logger) EntryRepository {
	if key == "" {
		key = DefaultKey
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &entryStore{
		kv:     kv,
		key:    key,
		blobs:  blobs,
		logger: logger.With("component", "store"),
	}
}

// load reads and decodes the list. A missing key is an empty list; corrupt
// data is an error so writers never overwrite it blindly.
func (s *entryStore) load(ctx context.Context) ([]model.AudioEntry, error) {
	raw, ok, err := s.kv.Get(ctx, s.key)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStorage, err)
	}
	if !ok || len(raw) == 0 {
		return []model.AudioEntry{}, nil
	}

	var entries []model.AudioEntry
	if err := json.Unmarshal(raw, &entries); err != nil {
		return nil, fmt.Errorf("%w: decode %s: %v", ErrStorage, s.key, err)
	}
	if entries == nil {
		entries = []model.AudioEntry{}
	}
	return entries, nil
}

func (s *entryStore) write(ctx context.Context, entries []model.AudioEntry) error {
	raw, err := json.Marshal(entries)
	if err != nil {
		return fmt.Errorf("%w: encode entries: %v", ErrStorage, err)
	}
	if err := s.kv.Set(ctx, s.key, raw); err != nil {
		return fmt.Errorf("%w: %v", ErrStorage, err)
	}
	return nil
}

func (s *entryStore) GetAll(ctx context.Context) []model.AudioEntry {
	s.mu.Lock()
	defer s.mu.Unlock()

	entries, err := s.load(ctx)
	if err != nil {
		s.logger.Warn("failed to read stored entries, returning empty list", "error", err)
		return []model.AudioEntry{}
	}
	return entries
}

func (s *entryStore) Get(ctx context.Context, id string) (model.AudioEntry, bool) {
	for _, e := range s.GetAll(ctx) {
		if e.ID == id {
			return e, true
		}
	}
	return model.AudioEntry{}, false
}

func (s *entryStore) Save(ctx context.Context, entry model.AudioEntry) (model.AudioEntry, error) {
	if entry.ID == "" {
		return model.AudioEntry{}, fmt.Errorf("%w: entry has no id", ErrStorage)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	entries, err := s.load(ctx)
	if err != nil {
		return model.AudioEntry{}, err
	}

	replaced := false
	for i := range entries {
		if entries[i].ID == entry.ID {
			entries[i] = entry
			replaced = true
			break
		}
	}
	if !replaced {
		entries = append(entries, entry)
	}

	if err := s.write(ctx, entries); err != nil {
		return model.AudioEntry{}, err
	}

	s.logger.Debug("entry saved", "id", entry.ID, "replaced", replaced, "total", len(entries))
	return entry, nil
}

func (s *entryStore) Update(ctx context.Context, entry model.AudioEntry) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entries, err := s.load(ctx)
	if err != nil {
		return false, err
	}

	for i := range entries {
		if entries[i].ID != entry.ID {
			continue
		}
		entries[i] = entry
		if err := s.write(ctx, entries); err != nil {
			return false, err
		}
		s.logger.Debug("entry updated", "id", entry.ID)
		return true, nil
	}
	return false, nil
}

func (s *entryStore) Delete(ctx context.Context, id string) ([]model.AudioEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entries, err := s.load(ctx)
	if err != nil {
		return nil, err
	}

	index := -1
	for i := range entries {
		if entries[i].ID == id {
			index = i
			break
		}
	}
	if index < 0 {
		s.logger.Warn("no entry with that id", "id", id)
		return entries, nil
	}

	if s.blobs != nil {
		if err := s.blobs.Remove(entries[index].URI); err != nil {
			return nil, fmt.Errorf("remove blob for %s: %w", id, err)
		}
	}

	remaining := make([]model.AudioEntry, 0, len(entries)-1)
	remaining = append(remaining, entries[:index]...)
	remaining = append(remaining, entries[index+1:]...)

	if err := s.write(ctx, remaining); err != nil {
		return nil, err
	}

	s.logger.Info("entry deleted", "id", id, "remaining", len(remaining))
	return remaining, nil
}

func (s *entryStore) Clear(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.kv.Delete(ctx, s.key); err != nil {
		return fmt.Errorf("%w: %v", ErrStorage, err)
	}
	s.logger.Info("all entries cleared; audio files were left in place")
	return nil
}
