package memory

import (
	"context"
	"sort"
	"strings"
	"sync"

	crerr "github.com/cockroachdb/errors"
	"github.com/riskibarqy/football-scoreboard/internal/platform/cache"
)

// Store is a map-backed persistent tier for tests and cache-only deployments.
type Store struct {
	mu     sync.RWMutex
	data   map[string][]byte
	used   int64
	quota  int64
	writes int
}

// NewStore returns a store. quotaBytes <= 0 disables the quota.
func NewStore(quotaBytes int64) *Store {
	return &Store{
		data:  make(map[string][]byte),
		quota: quotaBytes,
	}
}

func (s *Store) Get(ctx context.Context, key string) ([]byte, bool, error) {
	if err := ctx.Err(); err != nil {
		return nil, false, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	value, ok := s.data[key]
	if !ok {
		return nil, false, nil
	}
	return append([]byte(nil), value...), true, nil
}

func (s *Store) Put(ctx context.Context, key string, value []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	size := int64(len(key) + len(value))

	s.mu.Lock()
	defer s.mu.Unlock()
	used := s.used + size
	if old, ok := s.data[key]; ok {
		used -= int64(len(key) + len(old))
	}
	if s.quota > 0 && used > s.quota {
		return crerr.Wrapf(cache.ErrQuotaExceeded, "put key=%s size=%d used=%d quota=%d", key, size, s.used, s.quota)
	}
	s.data[key] = append([]byte(nil), value...)
	s.used = used
	s.writes++
	return nil
}

func (s *Store) Delete(ctx context.Context, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if old, ok := s.data[key]; ok {
		s.used -= int64(len(key) + len(old))
		delete(s.data, key)
	}
	return nil
}

// Iterate visits matching keys in lexical order over a snapshot.
func (s *Store) Iterate(ctx context.Context, prefix string, fn func(key string, value []byte) error) error {
	s.mu.RLock()
	keys := make([]string, 0, len(s.data))
	values := make(map[string][]byte, len(s.data))
	for key, value := range s.data {
		if strings.HasPrefix(key, prefix) {
			keys = append(keys, key)
			values[key] = append([]byte(nil), value...)
		}
	}
	s.mu.RUnlock()
	sort.Strings(keys)

	for _, key := range keys {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := fn(key, values[key]); err != nil {
			return err
		}
	}
	return nil
}

func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.data)
}

func (s *Store) UsedBytes() int64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.used
}

// Writes counts successful puts.
func (s *Store) Writes() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.writes
}

var _ cache.PersistentStore = (*Store)(nil)
