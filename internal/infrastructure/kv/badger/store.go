package badger

import (
	"context"
	"os"
	"strings"
	"sync"
	"syscall"

	crerr "github.com/cockroachdb/errors"
	"github.com/dgraph-io/badger/v4"
	"github.com/riskibarqy/football-scoreboard/internal/platform/cache"
	"github.com/riskibarqy/football-scoreboard/internal/platform/logging"
)

type Config struct {
	Dir string
	// InMemory keeps badger off disk; Dir is ignored.
	InMemory   bool
	QuotaBytes int64
	Logger     *logging.Logger
}

// Store is the on-disk persistent cache tier. Quota accounting covers key and value
// bytes written through this store.
type Store struct {
	db     *badger.DB
	logger *logging.Logger

	mu    sync.Mutex
	sizes map[string]int64
	used  int64
	quota int64
}

func Open(cfg Config) (*Store, error) {
	logger := cfg.Logger
	if logger == nil {
		logger = logging.Default()
	}

	var options badger.Options
	if cfg.InMemory {
		options = badger.DefaultOptions("").WithInMemory(true)
	} else {
		dir := strings.TrimSpace(cfg.Dir)
		if dir == "" {
			return nil, crerr.New("badger data dir is required")
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, crerr.Wrap(err, "create badger data dir")
		}
		options = badger.DefaultOptions(dir)
	}
	options = options.WithLoggingLevel(badger.WARNING)

	db, err := badger.Open(options)
	if err != nil {
		return nil, crerr.Wrap(err, "open badger")
	}

	s := &Store{
		db:     db,
		logger: logger,
		sizes:  make(map[string]int64),
		quota:  cfg.QuotaBytes,
	}
	if err := s.loadUsage(); err != nil {
		_ = db.Close()
		return nil, err
	}
	logger.Info("badger cache store opened", "dir", cfg.Dir, "in_memory", cfg.InMemory, "entries", len(s.sizes), "used_bytes", s.used)
	return s, nil
}

func (s *Store) loadUsage() error {
	return s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		it := txn.NewIterator(opts)
		defer it.Close()
		for it.Rewind(); it.Valid(); it.Next() {
			item := it.Item()
			key := string(item.KeyCopy(nil))
			size := int64(len(key)) + item.ValueSize()
			s.sizes[key] = size
			s.used += size
		}
		return nil
	})
}

func (s *Store) Get(ctx context.Context, key string) ([]byte, bool, error) {
	if err := ctx.Err(); err != nil {
		return nil, false, err
	}
	var value []byte
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(key))
		if err != nil {
			return err
		}
		value, err = item.ValueCopy(nil)
		return err
	})
	if crerr.Is(err, badger.ErrKeyNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, crerr.Wrapf(err, "badger get key=%s", key)
	}
	return value, true, nil
}

func (s *Store) Put(ctx context.Context, key string, value []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	size := int64(len(key) + len(value))

	s.mu.Lock()
	defer s.mu.Unlock()
	used := s.used + size - s.sizes[key]
	if s.quota > 0 && used > s.quota {
		return crerr.Wrapf(cache.ErrQuotaExceeded, "badger put key=%s size=%d used=%d quota=%d", key, size, s.used, s.quota)
	}

	err := s.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(key), value)
	})
	if err != nil {
		if crerr.Is(err, syscall.ENOSPC) || crerr.Is(err, badger.ErrTxnTooBig) {
			return crerr.Wrapf(cache.ErrQuotaExceeded, "badger put key=%s: %v", key, err)
		}
		return crerr.Wrapf(err, "badger put key=%s", key)
	}
	s.sizes[key] = size
	s.used = used
	return nil
}

func (s *Store) Delete(ctx context.Context, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	err := s.db.Update(func(txn *badger.Txn) error {
		return txn.Delete([]byte(key))
	})
	if err != nil {
		return crerr.Wrapf(err, "badger delete key=%s", key)
	}
	s.used -= s.sizes[key]
	delete(s.sizes, key)
	return nil
}

// Iterate walks keys with prefix inside one read transaction. fn must not write to
// the store.
func (s *Store) Iterate(ctx context.Context, prefix string, fn func(key string, value []byte) error) error {
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(prefix)
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Seek(opts.Prefix); it.ValidForPrefix(opts.Prefix); it.Next() {
			if err := ctx.Err(); err != nil {
				return err
			}
			item := it.Item()
			value, err := item.ValueCopy(nil)
			if err != nil {
				return err
			}
			if err := fn(string(item.KeyCopy(nil)), value); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return crerr.Wrapf(err, "badger iterate prefix=%s", prefix)
	}
	return nil
}

func (s *Store) UsedBytes() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.used
}

func (s *Store) Close() error {
	if err := s.db.Close(); err != nil {
		return crerr.Wrap(err, "close badger")
	}
	return nil
}

var _ cache.PersistentStore = (*Store)(nil)
