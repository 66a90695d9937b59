package cache_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/riskibarqy/football-scoreboard/internal/domain/matchday"
	"github.com/riskibarqy/football-scoreboard/internal/infrastructure/kv/memory"
	"github.com/riskibarqy/football-scoreboard/internal/platform/cache"
)

type testClock struct {
	mu sync.Mutex
	t  time.Time
}

func newTestClock() *testClock {
	return &testClock{t: time.Date(2025, 6, 18, 12, 0, 0, 0, time.UTC)}
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

// flakyStore fails the next failPuts writes with a quota error.
type flakyStore struct {
	*memory.Store
	failPuts atomic.Int32
}

func (s *flakyStore) Put(ctx context.Context, key string, value []byte) error {
	if s.failPuts.Load() > 0 {
		s.failPuts.Add(-1)
		return cache.ErrQuotaExceeded
	}
	return s.Store.Put(ctx, key, value)
}

type scoreLine struct {
	Home int `json:"home"`
	Away int `json:"away"`
}

func TestTTLFor_FresherClassesExpireSooner(t *testing.T) {
	t.Parallel()

	ordered := []cache.Class{
		cache.ClassLive,
		cache.ClassFixturesToday,
		cache.ClassUnclassified,
		cache.ClassStandings,
		cache.ClassFixturesFuture,
		cache.ClassFixturesPast,
		cache.ClassStatic,
	}
	for i := 1; i < len(ordered); i++ {
		if cache.TTLFor(ordered[i-1]) >= cache.TTLFor(ordered[i]) {
			t.Fatalf("expected %s to expire before %s", ordered[i-1], ordered[i])
		}
	}
	if got := cache.TTLFor("bogus"); got != 5*time.Minute {
		t.Fatalf("unexpected fallback ttl: got=%s want=5m", got)
	}
}

func TestFixturesClassFor(t *testing.T) {
	t.Parallel()

	today := matchday.Date{Year: 2025, Month: time.June, Day: 18}
	if got := cache.FixturesClassFor(today, today); got != cache.ClassFixturesToday {
		t.Fatalf("unexpected class for today: %s", got)
	}
	if got := cache.FixturesClassFor(today.AddDays(-1), today); got != cache.ClassFixturesPast {
		t.Fatalf("unexpected class for yesterday: %s", got)
	}
	if got := cache.FixturesClassFor(today.AddDays(3), today); got != cache.ClassFixturesFuture {
		t.Fatalf("unexpected class for future: %s", got)
	}
}

func TestManager_LiveEntryMissesAfterTTL(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	clock := newTestClock()
	m := cache.NewManager(nil, cache.Config{Now: clock.Now})

	if err := cache.Set(ctx, m, "live:fixture:10", scoreLine{Home: 1}, cache.ClassLive); err != nil {
		t.Fatalf("set: %v", err)
	}

	clock.Advance(29 * time.Second)
	if got, ok := cache.Get[scoreLine](ctx, m, "live:fixture:10", cache.ClassLive); !ok || got.Home != 1 {
		t.Fatalf("expected hit before ttl, got %+v ok=%v", got, ok)
	}

	clock.Advance(2 * time.Second)
	if _, ok := cache.Get[scoreLine](ctx, m, "live:fixture:10", cache.ClassLive); ok {
		t.Fatalf("expected miss 31s after write")
	}
	if stats := m.Stats(); stats.Expirations != 1 || stats.Entries != 0 {
		t.Fatalf("unexpected stats: %+v", stats)
	}
}

func TestManager_LiveNeverPersisted(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := memory.NewStore(0)
	m := cache.NewManager(store, cache.Config{Namespace: "web"})

	if err := cache.Set(ctx, m, "live:fixture:1", scoreLine{Home: 2}, cache.ClassLive); err != nil {
		t.Fatalf("set live: %v", err)
	}
	if got := store.Len(); got != 0 {
		t.Fatalf("live entry reached persistent tier: len=%d", got)
	}

	if err := cache.Set(ctx, m, "fixtures:2025-06-18", []int64{1, 2}, cache.ClassFixturesToday); err != nil {
		t.Fatalf("set fixtures: %v", err)
	}
	if _, ok, _ := store.Get(ctx, "cache_web:fixtures:2025-06-18"); !ok {
		t.Fatalf("expected namespaced persistent key")
	}
}

func TestManager_PersistentHitIsPromoted(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := memory.NewStore(0)
	writer := cache.NewManager(store, cache.Config{})
	if err := cache.Set(ctx, writer, "standings:39", []string{"ARS", "MCI"}, cache.ClassStandings); err != nil {
		t.Fatalf("set: %v", err)
	}

	reader := cache.NewManager(store, cache.Config{})
	got, ok := cache.Get[[]string](ctx, reader, "standings:39", cache.ClassStandings)
	if !ok || len(got) != 2 || got[0] != "ARS" {
		t.Fatalf("unexpected persistent read: %v ok=%v", got, ok)
	}
	if _, ok := cache.Get[[]string](ctx, reader, "standings:39", cache.ClassStandings); !ok {
		t.Fatalf("expected memory hit after promotion")
	}

	stats := reader.Stats()
	if stats.PersistentHits != 1 || stats.MemoryHits != 1 {
		t.Fatalf("unexpected hit counters: %+v", stats)
	}
}

func TestManager_PromotionOverBudgetKeepsPromotedEntry(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	clock := newTestClock()
	store := memory.NewStore(0)

	writer := cache.NewManager(store, cache.Config{Now: clock.Now})
	if err := cache.Set(ctx, writer, "k0", "0123456789", cache.ClassStatic); err != nil {
		t.Fatalf("set k0: %v", err)
	}
	clock.Advance(time.Minute)

	// 7 entries of 14 bytes fill the 100 byte budget; promoting k0 overflows it.
	reader := cache.NewManager(store, cache.Config{Now: clock.Now, MemoryBudgetBytes: 100})
	for _, key := range []string{"k1", "k2", "k3", "k4", "k5", "k6", "k7"} {
		if err := cache.Set(ctx, reader, key, "0123456789", cache.ClassStatic); err != nil {
			t.Fatalf("set %s: %v", key, err)
		}
		clock.Advance(time.Second)
	}

	for i := 0; i < 2; i++ {
		if _, ok := cache.Get[string](ctx, reader, "k0", cache.ClassStatic); !ok {
			t.Fatalf("read %d of k0 missed", i)
		}
	}

	stats := reader.Stats()
	if stats.PersistentHits != 1 || stats.MemoryHits != 1 {
		t.Fatalf("promoted entry was evicted: %+v", stats)
	}
	if stats.Evictions != 2 {
		t.Fatalf("unexpected evictions: got=%d want=2", stats.Evictions)
	}
}

func TestPeek_DoesNotCountMisses(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	m := cache.NewManager(nil, cache.Config{})
	if _, ok := cache.Peek[string](m, "live:fixture:1"); ok {
		t.Fatalf("expected empty peek")
	}
	if err := cache.Set(ctx, m, "live:fixture:2", "1H", cache.ClassLive); err != nil {
		t.Fatalf("set: %v", err)
	}
	if got, ok := cache.Peek[string](m, "live:fixture:2"); !ok || got != "1H" {
		t.Fatalf("unexpected peek: got=%q ok=%v", got, ok)
	}

	stats := m.Stats()
	if stats.Misses != 0 || stats.MemoryHits != 0 {
		t.Fatalf("peek touched counters: %+v", stats)
	}
}

func TestManager_PersistentEntryExpires(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	clock := newTestClock()
	store := memory.NewStore(0)
	writer := cache.NewManager(store, cache.Config{Now: clock.Now})
	if err := cache.Set(ctx, writer, "fixtures:2025-06-18", []int64{7}, cache.ClassFixturesToday); err != nil {
		t.Fatalf("set: %v", err)
	}

	clock.Advance(3 * time.Minute)
	reader := cache.NewManager(store, cache.Config{Now: clock.Now})
	if _, ok := cache.Get[[]int64](ctx, reader, "fixtures:2025-06-18", cache.ClassFixturesToday); ok {
		t.Fatalf("expected expired persistent entry to miss")
	}
	if got := store.Len(); got != 0 {
		t.Fatalf("expected expired entry to be removed, len=%d", got)
	}
}

func TestManager_MemoryBudgetEvictsOldestQuarter(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	clock := newTestClock()
	// each entry is a 2 byte key plus a 12 byte encoded string
	m := cache.NewManager(nil, cache.Config{Now: clock.Now, MemoryBudgetBytes: 100})

	keys := []string{"k1", "k2", "k3", "k4", "k5", "k6", "k7", "k8"}
	for _, key := range keys {
		if err := cache.Set(ctx, m, key, "0123456789", cache.ClassStatic); err != nil {
			t.Fatalf("set %s: %v", key, err)
		}
		clock.Advance(time.Second)
	}

	stats := m.Stats()
	if stats.Evictions != 2 || stats.Entries != 6 {
		t.Fatalf("unexpected stats after budget eviction: %+v", stats)
	}
	for _, key := range []string{"k1", "k2"} {
		if m.Has(ctx, key) {
			t.Fatalf("expected %s to be evicted", key)
		}
	}
	if !m.Has(ctx, "k8") {
		t.Fatalf("expected newest entry to survive")
	}
}

func TestManager_QuotaExceededCleansUpAndRetries(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	clock := newTestClock()
	store := &flakyStore{Store: memory.NewStore(0)}
	m := cache.NewManager(store, cache.Config{Now: clock.Now})

	for _, key := range []string{"a", "b", "c", "d"} {
		if err := cache.Set(ctx, m, key, key, cache.ClassStatic); err != nil {
			t.Fatalf("set %s: %v", key, err)
		}
		clock.Advance(time.Second)
	}

	store.failPuts.Store(1)
	if err := cache.Set(ctx, m, "e", "e", cache.ClassStatic); err != nil {
		t.Fatalf("set e: %v", err)
	}
	if got := store.Len(); got != 3 {
		t.Fatalf("unexpected persistent size after cleanup: got=%d want=3", got)
	}
	for key, want := range map[string]bool{"cache_a": false, "cache_b": false, "cache_c": true, "cache_e": true} {
		if _, ok, _ := store.Get(ctx, key); ok != want {
			t.Fatalf("unexpected presence for %s: got=%v want=%v", key, ok, want)
		}
	}

	store.failPuts.Store(2)
	if err := cache.Set(ctx, m, "f", "f", cache.ClassStatic); err != nil {
		t.Fatalf("set f: %v", err)
	}
	if _, ok, _ := store.Get(ctx, "cache_f"); ok {
		t.Fatalf("expected abandoned write")
	}
	if got := m.Stats().PersistFailures; got != 1 {
		t.Fatalf("unexpected persist failures: got=%d want=1", got)
	}
	if _, ok := cache.Get[string](ctx, m, "f", cache.ClassStatic); !ok {
		t.Fatalf("memory tier should still hold the abandoned write")
	}
}

func TestManager_WarmUpLoadsTodayFixturesOnly(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	clock := newTestClock()
	store := memory.NewStore(0)
	writer := cache.NewManager(store, cache.Config{Now: clock.Now})
	if err := cache.Set(ctx, writer, "fixtures:today", []int64{1, 2, 3}, cache.ClassFixturesToday); err != nil {
		t.Fatalf("set today: %v", err)
	}
	if err := cache.Set(ctx, writer, "leagues", []string{"EPL"}, cache.ClassStatic); err != nil {
		t.Fatalf("set static: %v", err)
	}

	clock.Advance(30 * time.Second)
	reader := cache.NewManager(store, cache.Config{Now: clock.Now})
	loaded, err := reader.WarmUp(ctx)
	if err != nil {
		t.Fatalf("warm up: %v", err)
	}
	if loaded != 1 || reader.Stats().Entries != 1 {
		t.Fatalf("unexpected warm-up result: loaded=%d stats=%+v", loaded, reader.Stats())
	}

	got, ok := cache.Get[[]int64](ctx, reader, "fixtures:today", cache.ClassFixturesToday)
	if !ok || len(got) != 3 {
		t.Fatalf("unexpected warmed value: %v ok=%v", got, ok)
	}
	if stats := reader.Stats(); stats.MemoryHits != 1 {
		t.Fatalf("expected warmed entry to be served from memory: %+v", stats)
	}
}

func TestManager_ClearOnlyTouchesNamespace(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := memory.NewStore(0)
	a := cache.NewManager(store, cache.Config{Namespace: "a"})
	b := cache.NewManager(store, cache.Config{Namespace: "b"})

	for _, m := range []*cache.Manager{a, b} {
		if err := cache.Set(ctx, m, "standings:1", []string{"x"}, cache.ClassStandings); err != nil {
			t.Fatalf("set: %v", err)
		}
	}

	if err := a.Clear(ctx); err != nil {
		t.Fatalf("clear: %v", err)
	}
	if a.Has(ctx, "standings:1") {
		t.Fatalf("expected namespace a to be empty")
	}
	if !b.Has(ctx, "standings:1") {
		t.Fatalf("expected namespace b to survive")
	}
	if got := store.Len(); got != 1 {
		t.Fatalf("unexpected persistent size: got=%d want=1", got)
	}
}

func TestManager_SweepRemovesExpiredFromBothTiers(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	clock := newTestClock()
	store := memory.NewStore(0)
	m := cache.NewManager(store, cache.Config{Now: clock.Now})

	if err := cache.Set(ctx, m, "short", 1, cache.ClassUnclassified); err != nil {
		t.Fatalf("set short: %v", err)
	}
	if err := cache.Set(ctx, m, "long", 2, cache.ClassStatic); err != nil {
		t.Fatalf("set long: %v", err)
	}

	clock.Advance(6 * time.Minute)
	if removed := m.Sweep(ctx); removed != 2 {
		t.Fatalf("unexpected removed count: got=%d want=2", removed)
	}
	if got := m.Stats().Entries; got != 1 {
		t.Fatalf("unexpected memory entries: got=%d want=1", got)
	}
	if got := store.Len(); got != 1 {
		t.Fatalf("unexpected persistent entries: got=%d want=1", got)
	}
}

func TestManager_StartStop(t *testing.T) {
	t.Parallel()

	m := cache.NewManager(nil, cache.Config{SweepInterval: 5 * time.Millisecond})
	m.Start(context.Background())
	m.Start(context.Background())
	time.Sleep(20 * time.Millisecond)
	m.Stop()
	m.Stop()
}

func TestGetOrLoad_UsesSingleFlight(t *testing.T) {
	t.Parallel()

	m := cache.NewManager(nil, cache.Config{})
	var calls atomic.Int32

	loader := func(context.Context) (string, error) {
		calls.Add(1)
		time.Sleep(20 * time.Millisecond)
		return "value", nil
	}

	const workers = 32
	start := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(workers)
	errCh := make(chan error, workers)

	for i := 0; i < workers; i++ {
		go func() {
			defer wg.Done()
			<-start
			v, err := cache.GetOrLoad(context.Background(), m, "same-key", cache.ClassStatic, loader)
			if err != nil {
				errCh <- err
				return
			}
			if v != "value" {
				errCh <- errUnexpectedValue
			}
		}()
	}

	close(start)
	wg.Wait()
	close(errCh)
	for err := range errCh {
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}

	if got := calls.Load(); got != 1 {
		t.Fatalf("loader called %d times, want 1", got)
	}
}

func TestGetOrLoad_PropagatesLoaderError(t *testing.T) {
	t.Parallel()

	m := cache.NewManager(nil, cache.Config{})
	wantErr := errors.New("provider down")

	_, err := cache.GetOrLoad(context.Background(), m, "k", cache.ClassStatic, func(context.Context) (int, error) {
		return 0, wantErr
	})
	if !errors.Is(err, wantErr) {
		t.Fatalf("unexpected error: %v", err)
	}
	if m.Has(context.Background(), "k") {
		t.Fatalf("failed load must not be cached")
	}
}

var errUnexpectedValue = errors.New("unexpected value")
