package memory

import (
	"context"
	"errors"
	"testing"

	"github.com/riskibarqy/football-scoreboard/internal/platform/cache"
)

func TestStore_PutRespectsQuota(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	s := NewStore(20)

	if err := s.Put(ctx, "cache_a", []byte("12345")); err != nil {
		t.Fatalf("put a: %v", err)
	}
	err := s.Put(ctx, "cache_b", []byte("1234567890"))
	if !errors.Is(err, cache.ErrQuotaExceeded) {
		t.Fatalf("expected quota error, got %v", err)
	}

	// overwriting an existing key only counts the difference
	if err := s.Put(ctx, "cache_a", []byte("1234567890123")); err != nil {
		t.Fatalf("overwrite a: %v", err)
	}
	if got := s.UsedBytes(); got != 20 {
		t.Fatalf("unexpected used bytes: got=%d want=20", got)
	}
}

func TestStore_IteratePrefixInOrder(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	s := NewStore(0)
	for _, key := range []string{"cache_ns:b", "cache_ns:a", "cache_other:c", "session"} {
		if err := s.Put(ctx, key, []byte("{}")); err != nil {
			t.Fatalf("put %s: %v", key, err)
		}
	}

	var got []string
	err := s.Iterate(ctx, "cache_ns:", func(key string, _ []byte) error {
		got = append(got, key)
		return nil
	})
	if err != nil {
		t.Fatalf("iterate: %v", err)
	}
	if len(got) != 2 || got[0] != "cache_ns:a" || got[1] != "cache_ns:b" {
		t.Fatalf("unexpected keys: %v", got)
	}

	if err := s.Delete(ctx, "cache_ns:a"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, ok, _ := s.Get(ctx, "cache_ns:a"); ok {
		t.Fatalf("expected key to be deleted")
	}
}
