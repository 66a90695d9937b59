package cache

import "context"

// PersistentStore is the durable tier behind the memory map. Implementations return
// ErrQuotaExceeded (possibly wrapped) from Put when they are out of space.
type PersistentStore interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Put(ctx context.Context, key string, value []byte) error
	Delete(ctx context.Context, key string) error
	// Iterate calls fn for every key starting with prefix. Returning an error stops it.
	Iterate(ctx context.Context, prefix string, fn func(key string, value []byte) error) error
}
