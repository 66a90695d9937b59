package cache

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	sonic "github.com/bytedance/sonic"
	"github.com/riskibarqy/football-scoreboard/internal/metrics"
	"github.com/riskibarqy/football-scoreboard/internal/platform/logging"
	"github.com/riskibarqy/football-scoreboard/internal/platform/resilience"
)

const (
	DefaultMemoryBudgetBytes int64 = 50 << 20
	DefaultSweepInterval           = 5 * time.Minute

	keyPrefix            = "cache_"
	budgetEvictFraction  = 0.25
	quotaCleanupFraction = 0.5
)

type Config struct {
	// Namespace scopes persistent keys and Clear. Empty means the bare cache_ prefix.
	Namespace         string
	MemoryBudgetBytes int64
	SweepInterval     time.Duration
	Now               func() time.Time
	Logger            *logging.Logger
	Metrics           *metrics.Recorder
}

type Stats struct {
	MemoryHits      int64 `json:"memory_hits"`
	PersistentHits  int64 `json:"persistent_hits"`
	Misses          int64 `json:"misses"`
	Sets            int64 `json:"sets"`
	Evictions       int64 `json:"evictions"`
	Expirations     int64 `json:"expirations"`
	PersistFailures int64 `json:"persist_failures"`
	Entries         int   `json:"entries"`
	Bytes           int64 `json:"bytes"`
	BudgetBytes     int64 `json:"budget_bytes"`
	Persistent      bool  `json:"persistent"`
}

// Manager is a two-tier TTL cache: a bounded in-process map in front of an optional
// PersistentStore. Entries of ClassLive never reach the persistent tier.
type Manager struct {
	mu    sync.RWMutex
	items map[string]*item
	bytes int64

	store         PersistentStore
	namespace     string
	budget        int64
	sweepInterval time.Duration
	now           func() time.Time
	logger        *logging.Logger
	metrics       *metrics.Recorder
	flight        resilience.SingleFlight

	memoryHits      atomic.Int64
	persistentHits  atomic.Int64
	misses          atomic.Int64
	sets            atomic.Int64
	evictions       atomic.Int64
	expirations     atomic.Int64
	persistFailures atomic.Int64

	runMu  sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

// NewManager builds a manager. store may be nil for a memory-only cache.
func NewManager(store PersistentStore, cfg Config) *Manager {
	logger := cfg.Logger
	if logger == nil {
		logger = logging.Default()
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	budget := cfg.MemoryBudgetBytes
	if budget == 0 {
		budget = DefaultMemoryBudgetBytes
	}
	sweep := cfg.SweepInterval
	if sweep <= 0 {
		sweep = DefaultSweepInterval
	}

	return &Manager{
		items:         make(map[string]*item),
		store:         store,
		namespace:     strings.TrimSpace(cfg.Namespace),
		budget:        budget,
		sweepInterval: sweep,
		now:           now,
		logger:        logger,
		metrics:       cfg.Metrics,
	}
}

// Get reads key as T. Memory is consulted first; a persistent hit is promoted into memory.
// The persistent tier is skipped for ClassLive.
func Get[T any](ctx context.Context, m *Manager, key string, class Class) (T, bool) {
	var zero T
	if m == nil || key == "" {
		return zero, false
	}

	if value, ok := getMemory[T](m, key); ok {
		m.memoryHits.Add(1)
		m.metrics.CacheHit(TierMemory)
		return value, true
	}

	if m.store != nil && normalizeClass(class).Persistable() {
		if value, ok := getPersistent[T](ctx, m, key); ok {
			m.persistentHits.Add(1)
			m.metrics.CacheHit(TierPersistent)
			return value, true
		}
	}

	m.misses.Add(1)
	m.metrics.CacheMiss()
	return zero, false
}

// Set writes value to memory and, unless class is ClassLive, to the persistent tier.
// Only an encode failure is returned; persistent failures are logged and absorbed.
func Set[T any](ctx context.Context, m *Manager, key string, value T, class Class) error {
	if m == nil || key == "" {
		return nil
	}
	raw, err := sonic.Marshal(value)
	if err != nil {
		return fmt.Errorf("encode cache value key=%s: %w", key, err)
	}
	m.write(ctx, key, value, raw, class)
	return nil
}

// GetOrLoad returns the cached value or runs loader once among concurrent callers.
func GetOrLoad[T any](ctx context.Context, m *Manager, key string, class Class, loader func(context.Context) (T, error)) (T, error) {
	var zero T
	if loader == nil {
		return zero, ErrNilLoader
	}
	if m == nil || key == "" {
		return loader(ctx)
	}

	if value, ok := Get[T](ctx, m, key, class); ok {
		return value, nil
	}

	value, err, _ := m.flight.DoContext(ctx, key, func() (any, error) {
		if cached, ok := getMemory[T](m, key); ok {
			return cached, nil
		}
		loaded, loadErr := loader(ctx)
		if loadErr != nil {
			return nil, loadErr
		}
		if setErr := Set(ctx, m, key, loaded, class); setErr != nil {
			m.logger.WarnContext(ctx, "cache write after load failed", "key", key, "error", setErr)
		}
		return loaded, nil
	})
	if err != nil {
		return zero, err
	}

	typed, ok := value.(T)
	if !ok {
		return zero, fmt.Errorf("cache key %s holds %T", key, value)
	}
	return typed, nil
}

func getMemory[T any](m *Manager, key string) (T, bool) {
	var zero T
	now := m.now()

	m.mu.RLock()
	it, ok := m.items[key]
	m.mu.RUnlock()
	if !ok {
		return zero, false
	}
	if it.expired(now) {
		if m.removeIfSame(key, it) {
			m.expirations.Add(1)
			m.metrics.CacheEvicted("expired", 1)
		}
		return zero, false
	}

	if typed, ok := it.value.(T); ok {
		return typed, true
	}
	if len(it.raw) == 0 {
		return zero, false
	}

	var decoded T
	if err := sonic.Unmarshal(it.raw, &decoded); err != nil {
		m.logger.Debug("cache memory entry decode failed", "key", key, "error", err)
		return zero, false
	}

	promoted := *it
	promoted.value = decoded
	m.mu.Lock()
	if m.items[key] == it {
		m.items[key] = &promoted
	}
	m.mu.Unlock()

	return decoded, true
}

// Peek reads the memory tier only and leaves the hit and miss counters alone. It suits
// overlay lookups where a miss is the normal outcome.
func Peek[T any](m *Manager, key string) (T, bool) {
	var zero T
	if m == nil || key == "" {
		return zero, false
	}
	return getMemory[T](m, key)
}

func getPersistent[T any](ctx context.Context, m *Manager, key string) (T, bool) {
	var zero T
	entry, ok := m.readEntry(ctx, key)
	if !ok {
		return zero, false
	}

	var decoded T
	if err := sonic.Unmarshal(entry.Payload, &decoded); err != nil {
		m.logger.WarnContext(ctx, "cache persistent payload decode failed", "key", key, "error", err)
		return zero, false
	}

	m.putMemory(key, &item{
		value:     decoded,
		raw:       entry.Payload,
		class:     entry.Class,
		createdAt: entry.CreatedAt,
		expiresAt: entry.ExpiresAt(),
		size:      int64(len(key) + len(entry.Payload)),
	})
	return decoded, true
}

func (m *Manager) write(ctx context.Context, key string, value any, raw []byte, class Class) {
	class = normalizeClass(class)
	now := m.now()
	ttl := TTLFor(class)

	m.putMemory(key, &item{
		value:     value,
		raw:       raw,
		class:     class,
		createdAt: now,
		expiresAt: now.Add(ttl),
		size:      int64(len(key) + len(raw)),
	})
	m.sets.Add(1)
	m.metrics.CacheSet(string(class))

	if m.store == nil || !class.Persistable() {
		return
	}
	m.persist(ctx, Entry{
		Key:       key,
		Class:     class,
		Tier:      TierPersistent,
		Payload:   raw,
		CreatedAt: now,
		TTL:       ttl,
	})
}

func (m *Manager) putMemory(key string, it *item) {
	m.mu.Lock()
	if old, ok := m.items[key]; ok {
		m.bytes -= old.size
	}
	m.items[key] = it
	m.bytes += it.size

	evicted := 0
	if m.budget > 0 && m.bytes > m.budget {
		evicted = m.evictOldestLocked(budgetEvictFraction, key)
	}
	entries, bytes := len(m.items), m.bytes
	m.mu.Unlock()

	m.metrics.CacheSize(entries, bytes)
	if evicted > 0 {
		m.evictions.Add(int64(evicted))
		m.metrics.CacheEvicted("budget", evicted)
		m.logger.Debug("cache memory budget exceeded, evicted oldest entries",
			"evicted", evicted,
			"bytes", bytes,
			"budget", m.budget,
		)
	}
}

// evictOldestLocked drops the oldest fraction of memory entries by write time. keep is
// the key being written and is never chosen.
func (m *Manager) evictOldestLocked(fraction float64, keep string) int {
	keys := make([]string, 0, len(m.items))
	for key := range m.items {
		if key != keep {
			keys = append(keys, key)
		}
	}
	if len(keys) == 0 {
		return 0
	}
	sort.Slice(keys, func(i, j int) bool {
		return m.items[keys[i]].createdAt.Before(m.items[keys[j]].createdAt)
	})

	n := fractionOf(len(keys), fraction)
	for _, key := range keys[:n] {
		m.bytes -= m.items[key].size
		delete(m.items, key)
	}
	return n
}

func (m *Manager) removeIfSame(key string, it *item) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.items[key] != it {
		return false
	}
	m.bytes -= it.size
	delete(m.items, key)
	return true
}

func (m *Manager) persist(ctx context.Context, entry Entry) {
	raw, err := sonic.Marshal(entry)
	if err != nil {
		m.persistFailed(ctx, entry.Key, err)
		return
	}

	persistKey := m.persistKey(entry.Key)
	err = m.store.Put(ctx, persistKey, raw)
	if err == nil {
		return
	}
	if !errors.Is(err, ErrQuotaExceeded) {
		m.persistFailed(ctx, entry.Key, err)
		return
	}

	removed := m.cleanupPersistent(ctx, quotaCleanupFraction)
	if err := m.store.Put(ctx, persistKey, raw); err != nil {
		m.persistFailed(ctx, entry.Key, err)
		return
	}
	m.logger.InfoContext(ctx, "cache persistent quota recovered", "key", entry.Key, "removed", removed)
}

func (m *Manager) persistFailed(ctx context.Context, key string, err error) {
	m.persistFailures.Add(1)
	m.metrics.CachePersistFailed()
	m.logger.WarnContext(ctx, "cache persistent write abandoned", "key", key, "error", err)
}

// cleanupPersistent removes the oldest fraction of this namespace's persistent entries.
func (m *Manager) cleanupPersistent(ctx context.Context, fraction float64) int {
	type stamped struct {
		key       string
		createdAt time.Time
	}

	var all []stamped
	err := m.store.Iterate(ctx, m.persistPrefix(), func(key string, value []byte) error {
		var head struct {
			CreatedAt time.Time `json:"created_at"`
		}
		// Undecodable records sort first and go in the first pass.
		_ = sonic.Unmarshal(value, &head)
		all = append(all, stamped{key: key, createdAt: head.CreatedAt})
		return nil
	})
	if err != nil {
		m.logger.WarnContext(ctx, "cache persistent cleanup scan failed", "error", err)
		return 0
	}
	if len(all) == 0 {
		return 0
	}

	sort.Slice(all, func(i, j int) bool { return all[i].createdAt.Before(all[j].createdAt) })
	n := fractionOf(len(all), fraction)
	removed := 0
	for _, s := range all[:n] {
		if err := m.store.Delete(ctx, s.key); err != nil {
			m.logger.WarnContext(ctx, "cache persistent cleanup delete failed", "key", s.key, "error", err)
			continue
		}
		removed++
	}
	m.evictions.Add(int64(removed))
	m.metrics.CacheEvicted("quota", removed)
	return removed
}

func (m *Manager) readEntry(ctx context.Context, key string) (Entry, bool) {
	persistKey := m.persistKey(key)
	raw, found, err := m.store.Get(ctx, persistKey)
	if err != nil {
		m.logger.WarnContext(ctx, "cache persistent read failed", "key", key, "error", err)
		return Entry{}, false
	}
	if !found {
		return Entry{}, false
	}

	var entry Entry
	if err := sonic.Unmarshal(raw, &entry); err != nil {
		m.logger.WarnContext(ctx, "cache persistent entry corrupt, dropping", "key", key, "error", err)
		m.deletePersistent(ctx, persistKey)
		return Entry{}, false
	}
	if entry.Expired(m.now()) {
		m.deletePersistent(ctx, persistKey)
		m.expirations.Add(1)
		m.metrics.CacheEvicted("expired", 1)
		return Entry{}, false
	}
	return entry, true
}

func (m *Manager) deletePersistent(ctx context.Context, persistKey string) {
	if err := m.store.Delete(ctx, persistKey); err != nil {
		m.logger.WarnContext(ctx, "cache persistent delete failed", "key", persistKey, "error", err)
	}
}

// Has reports whether a live entry exists for key in either tier.
func (m *Manager) Has(ctx context.Context, key string) bool {
	if m == nil || key == "" {
		return false
	}
	now := m.now()
	m.mu.RLock()
	it, ok := m.items[key]
	m.mu.RUnlock()
	if ok && !it.expired(now) {
		return true
	}
	if m.store == nil {
		return false
	}
	_, ok = m.readEntry(ctx, key)
	return ok
}

func (m *Manager) Delete(ctx context.Context, key string) {
	if m == nil || key == "" {
		return
	}
	m.mu.Lock()
	if it, ok := m.items[key]; ok {
		m.bytes -= it.size
		delete(m.items, key)
	}
	m.mu.Unlock()

	if m.store != nil {
		m.deletePersistent(ctx, m.persistKey(key))
	}
}

// Clear empties memory and removes this namespace's persistent entries.
func (m *Manager) Clear(ctx context.Context) error {
	if m == nil {
		return nil
	}
	m.mu.Lock()
	m.items = make(map[string]*item)
	m.bytes = 0
	m.mu.Unlock()
	m.metrics.CacheSize(0, 0)

	if m.store == nil {
		return nil
	}
	keys, err := m.persistentKeys(ctx)
	if err != nil {
		return fmt.Errorf("scan persistent cache: %w", err)
	}
	for _, key := range keys {
		if err := m.store.Delete(ctx, key); err != nil {
			return fmt.Errorf("delete persistent cache key=%s: %w", key, err)
		}
	}
	return nil
}

// Sweep removes expired entries from both tiers and returns how many were dropped.
func (m *Manager) Sweep(ctx context.Context) int {
	now := m.now()
	removed := 0

	m.mu.Lock()
	for key, it := range m.items {
		if it.expired(now) {
			m.bytes -= it.size
			delete(m.items, key)
			removed++
		}
	}
	entries, bytes := len(m.items), m.bytes
	m.mu.Unlock()
	m.metrics.CacheSize(entries, bytes)

	if m.store != nil {
		var expired []string
		err := m.store.Iterate(ctx, m.persistPrefix(), func(key string, value []byte) error {
			var entry Entry
			if err := sonic.Unmarshal(value, &entry); err != nil || entry.Expired(now) {
				expired = append(expired, key)
			}
			return nil
		})
		if err != nil {
			m.logger.WarnContext(ctx, "cache sweep scan failed", "error", err)
		}
		for _, key := range expired {
			m.deletePersistent(ctx, key)
			removed++
		}
	}

	if removed > 0 {
		m.expirations.Add(int64(removed))
		m.metrics.CacheEvicted("expired", removed)
		m.logger.DebugContext(ctx, "cache sweep removed expired entries", "removed", removed)
	}
	return removed
}

// WarmUp loads unexpired live and today-fixture entries from the persistent tier into
// memory without decoding them.
func (m *Manager) WarmUp(ctx context.Context) (int, error) {
	if m == nil || m.store == nil {
		return 0, nil
	}
	now := m.now()
	prefix := m.persistPrefix()

	var warm []Entry
	err := m.store.Iterate(ctx, prefix, func(_ string, value []byte) error {
		var entry Entry
		if err := sonic.Unmarshal(value, &entry); err != nil {
			return nil
		}
		if entry.Class != ClassLive && entry.Class != ClassFixturesToday {
			return nil
		}
		if entry.Key == "" || entry.Expired(now) {
			return nil
		}
		warm = append(warm, entry)
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("scan persistent cache: %w", err)
	}

	loaded := 0
	for _, entry := range warm {
		m.mu.RLock()
		existing, ok := m.items[entry.Key]
		m.mu.RUnlock()
		if ok && !existing.createdAt.Before(entry.CreatedAt) {
			continue
		}
		m.putMemory(entry.Key, &item{
			raw:       entry.Payload,
			class:     entry.Class,
			createdAt: entry.CreatedAt,
			expiresAt: entry.ExpiresAt(),
			size:      int64(len(entry.Key) + len(entry.Payload)),
		})
		loaded++
	}
	m.logger.InfoContext(ctx, "cache warm-up complete", "loaded", loaded)
	return loaded, nil
}

// Start runs the periodic sweep until ctx is cancelled or Stop is called.
func (m *Manager) Start(ctx context.Context) {
	m.runMu.Lock()
	defer m.runMu.Unlock()
	if m.cancel != nil {
		return
	}

	runCtx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	m.cancel = cancel
	m.done = done

	go func() {
		defer close(done)
		ticker := time.NewTicker(m.sweepInterval)
		defer ticker.Stop()
		for {
			select {
			case <-runCtx.Done():
				return
			case <-ticker.C:
				m.Sweep(runCtx)
			}
		}
	}()
}

func (m *Manager) Stop() {
	m.runMu.Lock()
	cancel, done := m.cancel, m.done
	m.cancel, m.done = nil, nil
	m.runMu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-done
}

func (m *Manager) Stats() Stats {
	if m == nil {
		return Stats{}
	}
	m.mu.RLock()
	entries, bytes := len(m.items), m.bytes
	m.mu.RUnlock()

	return Stats{
		MemoryHits:      m.memoryHits.Load(),
		PersistentHits:  m.persistentHits.Load(),
		Misses:          m.misses.Load(),
		Sets:            m.sets.Load(),
		Evictions:       m.evictions.Load(),
		Expirations:     m.expirations.Load(),
		PersistFailures: m.persistFailures.Load(),
		Entries:         entries,
		Bytes:           bytes,
		BudgetBytes:     m.budget,
		Persistent:      m.store != nil,
	}
}

func (m *Manager) persistentKeys(ctx context.Context) ([]string, error) {
	var keys []string
	err := m.store.Iterate(ctx, m.persistPrefix(), func(key string, _ []byte) error {
		keys = append(keys, key)
		return nil
	})
	return keys, err
}

func (m *Manager) persistPrefix() string {
	if m.namespace == "" {
		return keyPrefix
	}
	return keyPrefix + m.namespace + ":"
}

func (m *Manager) persistKey(key string) string {
	return m.persistPrefix() + key
}

func fractionOf(total int, fraction float64) int {
	n := int(math.Ceil(float64(total) * fraction))
	if n < 1 {
		n = 1
	}
	if n > total {
		n = total
	}
	return n
}
