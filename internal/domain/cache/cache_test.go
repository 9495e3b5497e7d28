package cache

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"voiceweave-server-go/internal/platform/storage"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()

	dir := t.TempDir()
	db, err := storage.OpenDatabase(filepath.Join(dir, "index.db"))
	require.NoError(t, err)

	store, err := NewStore(db, filepath.Join(dir, "blobs"), nil)
	require.NoError(t, err)
	return store
}

func TestDigest(t *testing.T) {
	a := Digest("en-US-AriaNeural", "hello")
	b := Digest("en-US-AriaNeural", "hello")
	assert.Equal(t, a, b, "digest must be deterministic")
	assert.Len(t, a, 40, "sha1 hex digest")

	assert.NotEqual(t, a, Digest("en-US-GuyNeural", "hello"), "voice is part of the key")
	assert.NotEqual(t, a, Digest("en-US-AriaNeural", "hello!"), "text is part of the key")
	assert.NotEqual(t, Digest("a|b", "c"), Digest("a", "b|c"), "separator keeps fields apart")
}

func TestMaterializeCallsSynthOncePerKey(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	calls := 0
	synth := func(context.Context) ([]byte, error) {
		calls++
		return []byte("mp3-bytes"), nil
	}

	first, err := store.Materialize(ctx, "voice", "hello", synth)
	require.NoError(t, err)
	assert.Equal(t, []byte("mp3-bytes"), first)

	second, err := store.Materialize(ctx, "voice", "hello", synth)
	require.NoError(t, err)
	assert.Equal(t, first, second)

	assert.Equal(t, 1, calls, "second call must be served from the cache")
}

func TestMaterializePropagatesSynthError(t *testing.T) {
	store := newTestStore(t)

	_, err := store.Materialize(context.Background(), "voice", "text",
		func(context.Context) ([]byte, error) {
			return nil, os.ErrDeadlineExceeded
		})
	assert.Error(t, err)

	// A failed synthesis must not leave an index row behind.
	_, ok := store.Lookup(Digest("voice", "text"))
	assert.False(t, ok)
}

func TestLookupDropsStaleRow(t *testing.T) {
	store := newTestStore(t)

	digest := Digest("voice", "text")
	path, err := store.Insert(digest, "voice", "text", []byte("data"))
	require.NoError(t, err)

	require.NoError(t, os.Remove(path))

	_, ok := store.Lookup(digest)
	assert.False(t, ok, "missing blob must read as a miss")

	var count int64
	store.db.Model(&storage.SpeechCacheEntry{}).Count(&count)
	assert.Zero(t, count, "stale index row must be dropped")
}

func TestInsertReplacesExistingEntry(t *testing.T) {
	store := newTestStore(t)

	digest := Digest("voice", "text")
	_, err := store.Insert(digest, "voice", "text", []byte("one"))
	require.NoError(t, err)
	path, err := store.Insert(digest, "voice", "text", []byte("two"))
	require.NoError(t, err)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, []byte("two"), data)

	count, bytes, err := store.Size()
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)
	assert.Equal(t, int64(3), bytes)
}

func TestEvictByAge(t *testing.T) {
	store := newTestStore(t)

	old := Digest("voice", "old")
	fresh := Digest("voice", "fresh")
	_, err := store.Insert(old, "voice", "old", []byte("old-data"))
	require.NoError(t, err)
	_, err = store.Insert(fresh, "voice", "fresh", []byte("fresh-data"))
	require.NoError(t, err)

	store.db.Model(&storage.SpeechCacheEntry{}).
		Where("digest = ?", old).
		UpdateColumn("last_access", time.Now().Add(-48*time.Hour))

	require.NoError(t, store.Evict(context.Background(), 24*time.Hour, 0))

	_, ok := store.Lookup(old)
	assert.False(t, ok, "expired entry must be evicted")
	_, ok = store.Lookup(fresh)
	assert.True(t, ok, "fresh entry must survive")
}

func TestEvictByTotalSize(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	// Three 4-byte entries with strictly increasing last-access times.
	for i, text := range []string{"aaa", "bbb", "ccc"} {
		digest := Digest("voice", text)
		_, err := store.Insert(digest, "voice", text, []byte("1234"))
		require.NoError(t, err)
		store.db.Model(&storage.SpeechCacheEntry{}).
			Where("digest = ?", digest).
			UpdateColumn("last_access", time.Now().Add(time.Duration(i)*time.Minute))
	}

	require.NoError(t, store.Evict(ctx, 0, 8))

	count, bytes, err := store.Size()
	require.NoError(t, err)
	assert.Equal(t, int64(2), count, "oldest entry is evicted first")
	assert.Equal(t, int64(8), bytes)

	_, ok := store.Lookup(Digest("voice", "aaa"))
	assert.False(t, ok)
	_, ok = store.Lookup(Digest("voice", "ccc"))
	assert.True(t, ok)
}

func TestEvictDisabledLimits(t *testing.T) {
	store := newTestStore(t)

	_, err := store.Insert(Digest("voice", "text"), "voice", "text", []byte("data"))
	require.NoError(t, err)

	require.NoError(t, store.Evict(context.Background(), 0, 0))

	count, _, err := store.Size()
	require.NoError(t, err)
	assert.Equal(t, int64(1), count, "zero limits disable eviction")
}
