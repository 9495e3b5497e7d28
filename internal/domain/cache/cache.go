// Package cache stores synthesised audio blobs on disk, indexed by a
// content digest in SQLite. A hit skips the provider entirely.
package cache

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"os"
	"path/filepath"
	"time"

	"golang.org/x/sync/singleflight"
	"gorm.io/gorm"

	"voiceweave-server-go/internal/platform/errors"
	"voiceweave-server-go/internal/platform/logging"
	"voiceweave-server-go/internal/platform/storage"
)

// SynthFunc produces the audio for a cache miss.
type SynthFunc func(ctx context.Context) ([]byte, error)

// Store is the disk-backed audio cache. Concurrent misses for the same
// digest are collapsed into a single synthesis call.
type Store struct {
	db     *gorm.DB
	dir    string
	logger *logging.Logger
	flight singleflight.Group
}

// NewStore creates a cache over the given index database and blob
// directory, creating the directory if needed.
func NewStore(db *gorm.DB, dir string, logger *logging.Logger) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, errors.Wrap(errors.KindCache, "cache.new", "failed to create cache directory", err)
	}
	return &Store{db: db, dir: dir, logger: logger}, nil
}

// Digest derives the cache key for a voice and text pair. The voice is
// part of the key so the same text under two voices never collides.
func Digest(voice, text string) string {
	sum := sha1.Sum([]byte(voice + "|" + text))
	return hex.EncodeToString(sum[:])
}

// Materialize returns the audio for the given voice and text, calling
// synth only when the cache has no usable entry.
func (s *Store) Materialize(ctx context.Context, voice, text string, synth SynthFunc) ([]byte, error) {
	digest := Digest(voice, text)

	data, err, _ := s.flight.Do(digest, func() (interface{}, error) {
		if path, ok := s.Lookup(digest); ok {
			blob, err := os.ReadFile(path)
			if err == nil {
				s.Touch(digest)
				s.logger.DebugTag("CACHE", "hit digest=%s bytes=%d", digest, len(blob))
				return blob, nil
			}
			s.logger.WarnTag("CACHE", "entry unreadable, resynthesizing: %v", err)
		}

		blob, err := synth(ctx)
		if err != nil {
			return nil, err
		}
		if _, err := s.Insert(digest, voice, text, blob); err != nil {
			// The caller still gets its audio when only the index write failed.
			s.logger.WarnTag("CACHE", "failed to store entry digest=%s: %v", digest, err)
		}
		return blob, nil
	})
	if err != nil {
		return nil, err
	}
	return data.([]byte), nil
}

// Lookup resolves a digest to its blob path. A row whose file has
// vanished is dropped and reported as a miss.
func (s *Store) Lookup(digest string) (string, bool) {
	var entry storage.SpeechCacheEntry
	if err := s.db.First(&entry, "digest = ?", digest).Error; err != nil {
		return "", false
	}

	if _, err := os.Stat(entry.Path); err != nil {
		s.logger.WarnTag("CACHE", "blob missing for digest=%s, dropping index row", digest)
		s.db.Delete(&storage.SpeechCacheEntry{}, "digest = ?", digest)
		return "", false
	}
	return entry.Path, true
}

// Insert writes the blob to disk and records it in the index. The blob
// is removed again if the index write fails.
func (s *Store) Insert(digest, voice, text string, data []byte) (string, error) {
	const op = "cache.insert"

	path := filepath.Join(s.dir, digest+".mp3")
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", errors.Wrap(errors.KindCache, op, "failed to write blob", err)
	}

	entry := storage.SpeechCacheEntry{
		Digest:     digest,
		Voice:      voice,
		Text:       text,
		Path:       path,
		SizeBytes:  int64(len(data)),
		LastAccess: time.Now(),
	}

	err := s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Delete(&storage.SpeechCacheEntry{}, "digest = ?", digest).Error; err != nil {
			return err
		}
		return tx.Create(&entry).Error
	})
	if err != nil {
		os.Remove(path)
		return "", errors.Wrap(errors.KindCache, op, "failed to index blob", err)
	}

	return path, nil
}

// Touch bumps the last-access time so eviction keeps warm entries.
func (s *Store) Touch(digest string) {
	s.db.Model(&storage.SpeechCacheEntry{}).
		Where("digest = ?", digest).
		UpdateColumn("last_access", time.Now())
}

// Evict removes entries older than maxAge, then keeps removing the
// least recently used entries until the total is under maxBytes. Zero
// disables the respective limit.
func (s *Store) Evict(ctx context.Context, maxAge time.Duration, maxBytes int64) error {
	const op = "cache.evict"

	var entries []storage.SpeechCacheEntry
	if err := s.db.WithContext(ctx).Order("last_access asc").Find(&entries).Error; err != nil {
		return errors.Wrap(errors.KindCache, op, "failed to list entries", err)
	}

	var total int64
	for _, e := range entries {
		total += e.SizeBytes
	}

	now := time.Now()
	removed := 0
	for _, e := range entries {
		expired := maxAge > 0 && now.Sub(e.LastAccess) > maxAge
		over := maxBytes > 0 && total > maxBytes
		if !expired && !over {
			break
		}

		if err := os.Remove(e.Path); err != nil && !os.IsNotExist(err) {
			s.logger.WarnTag("CACHE", "failed to remove blob %s: %v", e.Path, err)
		}
		// Drop the row regardless so a stale file never resurfaces.
		if err := s.db.Delete(&storage.SpeechCacheEntry{}, "digest = ?", e.Digest).Error; err != nil {
			return errors.Wrap(errors.KindCache, op, "failed to delete index row", err)
		}
		total -= e.SizeBytes
		removed++
	}

	if removed > 0 {
		s.logger.InfoTag("CACHE", "evicted %d entries, %d bytes remain", removed, total)
	}
	return nil
}

// Size reports the entry count and total byte size of the index.
func (s *Store) Size() (count int64, bytes int64, err error) {
	if err = s.db.Model(&storage.SpeechCacheEntry{}).Count(&count).Error; err != nil {
		return 0, 0, errors.Wrap(errors.KindCache, "cache.size", "failed to count entries", err)
	}
	var sum struct{ Total int64 }
	err = s.db.Model(&storage.SpeechCacheEntry{}).
		Select("coalesce(sum(size_bytes), 0) as total").
		Scan(&sum).Error
	if err != nil {
		return 0, 0, errors.Wrap(errors.KindCache, "cache.size", "failed to sum entries", err)
	}
	return count, sum.Total, nil
}
