package cache

import (
	"encoding/json"
	"time"
)

const (
	TierMemory     = "memory"
	TierPersistent = "persistent"
)

// Entry is the record written to the persistent tier.
type Entry struct {
	Key       string          `json:"key"`
	Class     Class           `json:"class"`
	Tier      string          `json:"tier"`
	Payload   json.RawMessage `json:"payload"`
	CreatedAt time.Time       `json:"created_at"`
	TTL       time.Duration   `json:"ttl"`
}

func (e Entry) ExpiresAt() time.Time {
	return e.CreatedAt.Add(e.TTL)
}

func (e Entry) Expired(now time.Time) bool {
	return !now.Before(e.ExpiresAt())
}

// item is a memory-tier slot. value is filled lazily from raw on first typed read.
type item struct {
	value     any
	raw       []byte
	class     Class
	createdAt time.Time
	expiresAt time.Time
	size      int64
}

func (i *item) expired(now time.Time) bool {
	return !now.Before(i.expiresAt)
}
