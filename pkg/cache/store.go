package cache

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// ErrCacheMiss indicates the requested key was not found, or its entry
// was older than the caller's TTL. A miss is a normal outcome, not a
// failure.
var ErrCacheMiss = errors.New("cache miss")

// Store is a file-per-key response cache. All file access is serialized
// so concurrent callers sharing one Store never read a half-written
// entry.
type Store struct {
	mu     sync.Mutex
	dir    string
	ns     string
	logger zerolog.Logger

	// Injectable for tests.
	now func() time.Time
}

// NewStore creates a cache store rooted at dir, namespaced for the given
// account reference. The directory is created if it does not exist.
func NewStore(dir, accountRef string, logger zerolog.Logger) (*Store, error) {
	if dir == "" {
		return nil, fmt.Errorf("cache directory is required")
	}
	if accountRef == "" {
		return nil, fmt.Errorf("account reference is required")
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create cache directory: %w", err)
	}

	return &Store{
		dir:    dir,
		ns:     Namespace(accountRef),
		logger: logger,
		now:    time.Now,
	}, nil
}

// Get returns the raw cached payload for key if the on-disk entry was
// written within ttl of now. Stale entries are reported as ErrCacheMiss
// and left on disk untouched.
func (s *Store) Get(key string, ttl time.Duration) (json.RawMessage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	path := s.path(key)

	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			CacheMisses.WithLabelValues("absent").Inc()
			return nil, ErrCacheMiss
		}
		CacheErrors.WithLabelValues("get").Inc()
		return nil, fmt.Errorf("stat cache entry %q: %w", key, err)
	}

	age := s.now().Sub(info.ModTime())
	if age >= ttl {
		s.logger.Debug().
			Str("key", key).
			Dur("age", age).
			Dur("ttl", ttl).
			Msg("Cache entry stale")
		CacheMisses.WithLabelValues("stale").Inc()
		return nil, ErrCacheMiss
	}

	data, err := os.ReadFile(path)
	if err != nil {
		CacheErrors.WithLabelValues("get").Inc()
		return nil, fmt.Errorf("read cache entry %q: %w", key, err)
	}

	s.logger.Debug().
		Str("key", key).
		Dur("age", age).
		Msg("Cache hit")
	CacheHits.Inc()

	return data, nil
}

// Put serializes value and persists it under key, replacing any prior
// entry. The write goes to a uniquely named temp file first and is
// renamed into place, so a concurrent Get sees either the old or the new
// entry, never a partial one.
func (s *Store) Put(key string, value any) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := json.Marshal(value)
	if err != nil {
		CacheErrors.WithLabelValues("put").Inc()
		return fmt.Errorf("marshal cache entry %q: %w", key, err)
	}

	path := s.path(key)
	tmp := fmt.Sprintf("%s.%s.tmp", path, uuid.NewString())

	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		CacheErrors.WithLabelValues("put").Inc()
		return fmt.Errorf("write cache entry %q: %w", key, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		CacheErrors.WithLabelValues("put").Inc()
		return fmt.Errorf("persist cache entry %q: %w", key, err)
	}

	s.logger.Debug().
		Str("key", key).
		Int("bytes", len(data)).
		Msg("Cached entry")

	return nil
}

// Invalidate deletes the persisted entry for key. A missing entry is a
// no-op, not an error.
func (s *Store) Invalidate(key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	err := os.Remove(s.path(key))
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		CacheErrors.WithLabelValues("invalidate").Inc()
		return fmt.Errorf("invalidate cache entry %q: %w", key, err)
	}

	s.logger.Debug().Str("key", key).Msg("Invalidated cache entry")
	CacheInvalidations.Inc()

	return nil
}

// path maps a logical key to its namespaced on-disk location.
func (s *Store) path(key string) string {
	return filepath.Join(s.dir, fmt.Sprintf("%s_%s_cache.json", s.ns, key))
}
