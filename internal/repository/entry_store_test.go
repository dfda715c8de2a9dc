package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"voicenotes/internal/db"
	"voicenotes/internal/model"
)

type recordingRemover struct {
	mu      sync.Mutex
	removed []string
	err     error
}

func (r *recordingRemover) Remove(uri string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return r.err
	}
	r.removed = append(r.removed, uri)
	return nil
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newEntry(id string) model.AudioEntry {
	return model.AudioEntry{
		ID:   id,
		URI:  "file:///data/audios/" + id + ".mp3",
		Date: time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC),
	}
}

// backends runs a test against every KV implementation that needs no server
func backends(t *testing.T, fn func(t *testing.T, kv KV)) {
	t.Run("memory", func(t *testing.T) {
		fn(t, NewMemoryKV())
	})
	t.Run("file", func(t *testing.T) {
		kv, err := NewFileKV(t.TempDir())
		require.NoError(t, err)
		fn(t, kv)
	})
	t.Run("sqlite", func(t *testing.T) {
		conn, err := db.Open(context.Background(), db.SQLite, filepath.Join(t.TempDir(), "notes.db"))
		require.NoError(t, err)
		kv := NewSQLKV(conn, db.SQLite)
		t.Cleanup(func() { kv.Close() })
		fn(t, kv)
	})
}

func TestGetAll_EmptyWhenMissing(t *testing.T) {
	backends(t, func(t *testing.T, kv KV) {
		store := NewEntryStore(kv, "", nil, quietLogger())
		entries := store.GetAll(context.Background())
		assert.NotNil(t, entries)
		assert.Empty(t, entries)
	})
}

func TestSave_RoundTrip(t *testing.T) {
	backends(t, func(t *testing.T, kv KV) {
		ctx := context.Background()
		store := NewEntryStore(kv, DefaultKey, nil, quietLogger())

		entry := newEntry("1")
		entry.ReportID = "7"
		saved, err := store.Save(ctx, entry)
		require.NoError(t, err)
		assert.Equal(t, entry, saved)

		entries := store.GetAll(ctx)
		require.Len(t, entries, 1)
		assert.Equal(t, entry, entries[0])

		got, ok := store.Get(ctx, "1")
		require.True(t, ok)
		assert.Equal(t, entry, got)
	})
}

func TestSave_UpsertKeepsIDsUnique(t *testing.T) {
	backends(t, func(t *testing.T, kv KV) {
		ctx := context.Background()
		store := NewEntryStore(kv, DefaultKey, nil, quietLogger())

		for _, id := range []string{"a", "b", "c"} {
			_, err := store.Save(ctx, newEntry(id))
			require.NoError(t, err)
		}

		updated := newEntry("b")
		updated.Processed = true
		updated.Sent = true
		updated.Data = model.Parsed(map[string]any{"titulo": "x"})
		for i := 0; i < 5; i++ {
			_, err := store.Save(ctx, updated)
			require.NoError(t, err)
		}

		entries := store.GetAll(ctx)
		require.Len(t, entries, 3)
		assert.Equal(t, []string{"a", "b", "c"}, ids(entries), "order is preserved on replace")
		assert.True(t, entries[1].Processed)
		assert.Equal(t, "x", entries[1].Title())
	})
}

func TestSave_ConcurrentWritersDoNotLoseEntries(t *testing.T) {
	ctx := context.Background()
	store := NewEntryStore(NewMemoryKV(), DefaultKey, nil, quietLogger())

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := store.Save(ctx, newEntry(fmt.Sprintf("id-%d", i)))
			assert.NoError(t, err)
		}(i)
	}
	wg.Wait()

	entries := store.GetAll(ctx)
	assert.Len(t, entries, 50)
	seen := map[string]bool{}
	for _, e := range entries {
		assert.False(t, seen[e.ID], "duplicate id %s", e.ID)
		seen[e.ID] = true
	}
}

func TestSave_RejectsEmptyID(t *testing.T) {
	store := NewEntryStore(NewMemoryKV(), DefaultKey, nil, quietLogger())
	_, err := store.Save(context.Background(), model.AudioEntry{})
	assert.ErrorIs(t, err, ErrStorage)
}

func TestDelete_RemovesExactlyOne(t *testing.T) {
	backends(t, func(t *testing.T, kv KV) {
		ctx := context.Background()
		blobs := &recordingRemover{}
		store := NewEntryStore(kv, DefaultKey, blobs, quietLogger())

		for _, id := range []string{"a", "b", "c"} {
			_, err := store.Save(ctx, newEntry(id))
			require.NoError(t, err)
		}
		before, err := json.Marshal(store.GetAll(ctx))
		require.NoError(t, err)

		remaining, err := store.Delete(ctx, "b")
		require.NoError(t, err)
		assert.Equal(t, []string{"a", "c"}, ids(remaining))
		assert.Equal(t, []string{newEntry("b").URI}, blobs.removed)

		var original []model.AudioEntry
		require.NoError(t, json.Unmarshal(before, &original))
		stored := store.GetAll(ctx)
		assert.Equal(t, original[0], stored[0])
		assert.Equal(t, original[2], stored[1])
	})
}

func TestUpdate_ReplacesOnlyExisting(t *testing.T) {
	backends(t, func(t *testing.T, kv KV) {
		ctx := context.Background()
		store := NewEntryStore(kv, DefaultKey, nil, quietLogger())
		for _, id := range []string{"a", "b"} {
			_, err := store.Save(ctx, newEntry(id))
			require.NoError(t, err)
		}

		updated := newEntry("b")
		updated.Processed = true
		ok, err := store.Update(ctx, updated)
		require.NoError(t, err)
		assert.True(t, ok)

		ok, err = store.Update(ctx, newEntry("gone"))
		require.NoError(t, err)
		assert.False(t, ok)

		stored := store.GetAll(ctx)
		assert.Equal(t, []string{"a", "b"}, ids(stored))
		assert.True(t, stored[1].Processed)
	})
}

func TestUpdate_EmptyStoreWritesNothing(t *testing.T) {
	ctx := context.Background()
	kv := NewMemoryKV()
	store := NewEntryStore(kv, DefaultKey, nil, quietLogger())

	ok, err := store.Update(ctx, newEntry("a"))
	require.NoError(t, err)
	assert.False(t, ok)

	_, present, err := kv.Get(ctx, DefaultKey)
	require.NoError(t, err)
	assert.False(t, present)
}

func TestDelete_UnknownIDIsNoOp(t *testing.T) {
	ctx := context.Background()
	blobs := &recordingRemover{}
	store := NewEntryStore(NewMemoryKV(), DefaultKey, blobs, quietLogger())
	_, err := store.Save(ctx, newEntry("a"))
	require.NoError(t, err)

	remaining, err := store.Delete(ctx, "missing")
	require.NoError(t, err)
	assert.Equal(t, []string{"a"}, ids(remaining))
	assert.Empty(t, blobs.removed)
}

func TestDelete_BlobFailureKeepsEntry(t *testing.T) {
	ctx := context.Background()
	blobs := &recordingRemover{err: errors.New("permission denied")}
	store := NewEntryStore(NewMemoryKV(), DefaultKey, blobs, quietLogger())
	_, err := store.Save(ctx, newEntry("a"))
	require.NoError(t, err)

	_, err = store.Delete(ctx, "a")
	require.Error(t, err)
	assert.Len(t, store.GetAll(ctx), 1)
}

func TestDelete_LastEntryLeavesEmptyList(t *testing.T) {
	ctx := context.Background()
	store := NewEntryStore(NewMemoryKV(), DefaultKey, &recordingRemover{}, quietLogger())
	_, err := store.Save(ctx, newEntry("1"))
	require.NoError(t, err)

	remaining, err := store.Delete(ctx, "1")
	require.NoError(t, err)
	assert.Empty(t, remaining)
	assert.Empty(t, store.GetAll(ctx))
}

func TestClear_DropsMetadataOnly(t *testing.T) {
	backends(t, func(t *testing.T, kv KV) {
		ctx := context.Background()
		blobs := &recordingRemover{}
		store := NewEntryStore(kv, DefaultKey, blobs, quietLogger())
		_, err := store.Save(ctx, newEntry("a"))
		require.NoError(t, err)

		require.NoError(t, store.Clear(ctx))
		assert.Empty(t, store.GetAll(ctx))
		assert.Empty(t, blobs.removed)
	})
}

func TestCorruptData(t *testing.T) {
	ctx := context.Background()
	kv := NewMemoryKV()
	require.NoError(t, kv.Set(ctx, DefaultKey, []byte("{not json")))
	store := NewEntryStore(kv, DefaultKey, nil, quietLogger())

	assert.Empty(t, store.GetAll(ctx), "reads degrade to an empty list")

	_, err := store.Save(ctx, newEntry("a"))
	assert.ErrorIs(t, err, ErrStorage, "writes refuse to overwrite unreadable data")

	raw, _, err := kv.Get(ctx, DefaultKey)
	require.NoError(t, err)
	assert.Equal(t, "{not json", string(raw))
}

func TestStoredFormatIsJSONArray(t *testing.T) {
	ctx := context.Background()
	kv := NewMemoryKV()
	store := NewEntryStore(kv, DefaultKey, nil, quietLogger())
	_, err := store.Save(ctx, newEntry("1"))
	require.NoError(t, err)

	raw, ok, err := kv.Get(ctx, DefaultKey)
	require.NoError(t, err)
	require.True(t, ok)

	var items []map[string]any
	require.NoError(t, json.Unmarshal(raw, &items))
	require.Len(t, items, 1)
	for _, key := range []string{"id", "date", "uri", "processed", "sent"} {
		assert.Contains(t, items[0], key)
	}
}

func ids(entries []model.AudioEntry) []string {
	out := make([]string, len(entries))
	for i, e := range entries {
		out[i] = e.ID
	}
	return out
}
