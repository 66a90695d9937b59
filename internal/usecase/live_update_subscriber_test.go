package usecase

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/riskibarqy/football-scoreboard/internal/domain/fixture"
	fixturemock "github.com/riskibarqy/football-scoreboard/internal/mocks/domain/fixture"
	"github.com/riskibarqy/football-scoreboard/internal/platform/cache"
	"github.com/stretchr/testify/mock"
)

func fastLiveConfig() LiveUpdateConfig {
	return LiveUpdateConfig{
		PollInterval:     10 * time.Millisecond,
		MinPollGap:       time.Nanosecond,
		AttemptTimeout:   time.Second,
		ProbeTimeout:     time.Second,
		DeliveryThrottle: time.Millisecond,
		MaxRetries:       3,
		RetryBackoff:     time.Millisecond,
		DeliveryWorkers:  4,
	}
}

func waitFor(t *testing.T, timeout time.Duration, cond func() bool) {
	t.Helper()

	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatalf("condition not met within %s", timeout)
}

type deltaRecorder struct {
	mu     sync.Mutex
	deltas []fixture.Delta
}

func (r *deltaRecorder) record(d fixture.Delta) {
	r.mu.Lock()
	r.deltas = append(r.deltas, d)
	r.mu.Unlock()
}

func (r *deltaRecorder) snapshot() []fixture.Delta {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]fixture.Delta(nil), r.deltas...)
}

func liveDelta(id int64, status string, home, away int) fixture.Delta {
	return fixture.Delta{
		FixtureID: id,
		Envelope: fixture.Envelope{
			StatusCode: status,
			HomeGoals:  fixture.IntPtr(home),
			AwayGoals:  fixture.IntPtr(away),
		},
	}
}

func newTestSubscriber(t *testing.T, source fixture.DeltaSource, prober fixture.Prober, cacheManager *cache.Manager, cfg LiveUpdateConfig) *LiveUpdateSubscriber {
	t.Helper()

	s, err := NewLiveUpdateSubscriber(source, prober, cacheManager, cfg)
	if err != nil {
		t.Fatalf("NewLiveUpdateSubscriber error: %v", err)
	}
	t.Cleanup(s.Close)
	return s
}

func TestLiveUpdateSubscriber_SubscribeValidatesInput(t *testing.T) {
	t.Parallel()

	s := newTestSubscriber(t, fixturemock.NewDeltaSource(t), nil, nil, fastLiveConfig())

	if _, err := s.Subscribe(0, func(fixture.Delta) {}); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput for zero id, got %v", err)
	}
	if _, err := s.Subscribe(7, nil); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput for nil callback, got %v", err)
	}
	if got := s.State(); got != SubscriberIdle {
		t.Fatalf("unexpected state: got=%s want=%s", got, SubscriberIdle)
	}
}

func TestLiveUpdateSubscriber_SuppressesUnchangedEnvelopes(t *testing.T) {
	t.Parallel()

	source := fixturemock.NewDeltaSource(t)
	source.
		On("FetchSelectiveUpdates", mock.Anything, []int64{7}).
		Return([]fixture.Delta{liveDelta(7, "1H", 1, 0)}, nil)

	cacheManager := cache.NewManager(nil, cache.Config{})
	s := newTestSubscriber(t, source, nil, cacheManager, fastLiveConfig())

	var got deltaRecorder
	unsubscribe, err := s.Subscribe(7, got.record)
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	defer unsubscribe()

	waitFor(t, time.Second, func() bool { return s.Status().Polls >= 4 })

	deltas := got.snapshot()
	if len(deltas) != 1 {
		t.Fatalf("expected exactly one delivery, got=%d", len(deltas))
	}
	if deltas[0].Envelope.StatusCode != "1H" || *deltas[0].Envelope.HomeGoals != 1 {
		t.Fatalf("unexpected delta: %+v", deltas[0])
	}
	if s.Status().Suppressed == 0 {
		t.Fatalf("expected suppressed deliveries to be counted")
	}

	env, ok := cache.Get[fixture.Envelope](context.Background(), cacheManager, LiveFixtureKey(7), cache.ClassLive)
	if !ok || env.StatusCode != "1H" {
		t.Fatalf("expected delivered envelope in cache, got %+v ok=%v", env, ok)
	}
}

func TestLiveUpdateSubscriber_StopsPollingAfterLastUnsubscribe(t *testing.T) {
	t.Parallel()

	source := fixturemock.NewDeltaSource(t)
	source.
		On("FetchSelectiveUpdates", mock.Anything, mock.Anything).
		Return([]fixture.Delta{}, nil)

	s := newTestSubscriber(t, source, nil, nil, fastLiveConfig())

	first, err := s.Subscribe(7, func(fixture.Delta) {})
	if err != nil {
		t.Fatalf("subscribe first: %v", err)
	}
	second, err := s.Subscribe(8, func(fixture.Delta) {})
	if err != nil {
		t.Fatalf("subscribe second: %v", err)
	}
	if got := s.State(); got != SubscriberPolling {
		t.Fatalf("unexpected state: got=%s want=%s", got, SubscriberPolling)
	}

	waitFor(t, time.Second, func() bool { return s.Status().Polls >= 2 })
	first()
	if got := s.State(); got != SubscriberPolling {
		t.Fatalf("polling must continue while a subscription remains, state=%s", got)
	}

	second()
	second()
	if got := s.State(); got != SubscriberIdle {
		t.Fatalf("unexpected state after last unsubscribe: got=%s", got)
	}

	calls := len(source.Calls)
	time.Sleep(50 * time.Millisecond)
	if got := len(source.Calls); got != calls {
		t.Fatalf("provider called after last unsubscribe: before=%d after=%d", calls, got)
	}
}

func TestLiveUpdateSubscriber_RetriesThenYieldsNothing(t *testing.T) {
	t.Parallel()

	source := fixturemock.NewDeltaSource(t)
	source.
		On("FetchSelectiveUpdates", mock.Anything, []int64{3}).
		Return(nil, errors.New("provider unavailable"))

	cfg := fastLiveConfig()
	cfg.PollInterval = time.Hour
	s := newTestSubscriber(t, source, nil, nil, cfg)

	var got deltaRecorder
	unsubscribe, err := s.Subscribe(3, got.record)
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	defer unsubscribe()

	waitFor(t, time.Second, func() bool { return s.Status().ConsecutiveFailures == 1 })

	source.AssertNumberOfCalls(t, "FetchSelectiveUpdates", 4)
	status := s.Status()
	if status.LastError == "" || status.LastSuccessAt != nil {
		t.Fatalf("unexpected status: %+v", status)
	}
	if len(got.snapshot()) != 0 {
		t.Fatalf("expected no deliveries after exhausted retries")
	}
}

func TestLiveUpdateSubscriber_OfflineSkipsPolling(t *testing.T) {
	t.Parallel()

	source := fixturemock.NewDeltaSource(t)
	source.
		On("FetchSelectiveUpdates", mock.Anything, mock.Anything).
		Return([]fixture.Delta{}, nil).
		Maybe()

	s := newTestSubscriber(t, source, nil, nil, fastLiveConfig())
	s.SetOnline(false)

	unsubscribe, err := s.Subscribe(5, func(fixture.Delta) {})
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	defer unsubscribe()

	waitFor(t, time.Second, func() bool { return s.Status().Skipped >= 3 })
	source.AssertNotCalled(t, "FetchSelectiveUpdates", mock.Anything, mock.Anything)

	s.SetOnline(true)
	waitFor(t, time.Second, func() bool { return s.Status().Polls >= 1 })
}

func TestLiveUpdateSubscriber_RecoveryProbeFlipsOnline(t *testing.T) {
	t.Parallel()

	source := fixturemock.NewDeltaSource(t)
	source.
		On("FetchSelectiveUpdates", mock.Anything, []int64{9}).
		Return([]fixture.Delta{liveDelta(9, "HT", 0, 0)}, nil)
	prober := fixturemock.NewProber(t)
	prober.On("Ping", mock.Anything).Return(errors.New("still down")).Once()
	prober.On("Ping", mock.Anything).Return(nil)

	s := newTestSubscriber(t, source, prober, nil, fastLiveConfig())
	s.SetOnline(false)

	var got deltaRecorder
	unsubscribe, err := s.Subscribe(9, got.record)
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	defer unsubscribe()

	waitFor(t, time.Second, func() bool { return len(got.snapshot()) == 1 })
	if !s.Online() {
		t.Fatalf("expected subscriber to be back online")
	}
}

func TestLiveUpdateSubscriber_ThrottleCoalescesToLatest(t *testing.T) {
	t.Parallel()

	source := fixturemock.NewDeltaSource(t)
	source.
		On("FetchSelectiveUpdates", mock.Anything, mock.Anything).
		Return([]fixture.Delta{}, nil)

	cfg := fastLiveConfig()
	cfg.PollInterval = time.Hour
	cfg.DeliveryThrottle = 40 * time.Millisecond
	s := newTestSubscriber(t, source, nil, nil, cfg)

	var got deltaRecorder
	unsubscribe, err := s.Subscribe(11, got.record)
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	defer unsubscribe()

	s.enqueue(liveDelta(11, "1H", 0, 0))
	waitFor(t, time.Second, func() bool { return len(got.snapshot()) == 1 })

	s.enqueue(liveDelta(11, "1H", 1, 0))
	s.enqueue(liveDelta(11, "1H", 2, 0))
	waitFor(t, time.Second, func() bool { return len(got.snapshot()) == 2 })
	time.Sleep(60 * time.Millisecond)

	deltas := got.snapshot()
	if len(deltas) != 2 {
		t.Fatalf("expected coalesced delivery, got=%d", len(deltas))
	}
	if *deltas[1].Envelope.HomeGoals != 2 {
		t.Fatalf("expected latest envelope, got home=%d", *deltas[1].Envelope.HomeGoals)
	}
}

func TestLiveUpdateSubscriber_CallbacksRunInRegistrationOrder(t *testing.T) {
	t.Parallel()

	source := fixturemock.NewDeltaSource(t)
	source.
		On("FetchSelectiveUpdates", mock.Anything, mock.Anything).
		Return([]fixture.Delta{}, nil)

	cfg := fastLiveConfig()
	cfg.PollInterval = time.Hour
	s := newTestSubscriber(t, source, nil, nil, cfg)

	var mu sync.Mutex
	var order []string
	recordAs := func(name string) DeltaCallback {
		return func(fixture.Delta) {
			mu.Lock()
			order = append(order, name)
			mu.Unlock()
		}
	}

	unsubA, _ := s.Subscribe(4, recordAs("a"))
	unsubB, _ := s.Subscribe(4, recordAs("b"))
	unsubC, _ := s.Subscribe(4, recordAs("c"))
	defer unsubA()
	defer unsubC()

	unsubB()
	s.enqueue(liveDelta(4, "2H", 1, 1))

	waitFor(t, time.Second, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(order) == 2
	})
	time.Sleep(10 * time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	if len(order) != 2 || order[0] != "a" || order[1] != "c" {
		t.Fatalf("unexpected callback order: %v", order)
	}
}

func TestLiveUpdateSubscriber_WatchClosesOnCancel(t *testing.T) {
	t.Parallel()

	source := fixturemock.NewDeltaSource(t)
	source.
		On("FetchSelectiveUpdates", mock.Anything, []int64{21}).
		Return([]fixture.Delta{liveDelta(21, "ET", 2, 2)}, nil)

	s := newTestSubscriber(t, source, nil, nil, fastLiveConfig())

	ctx, cancel := context.WithCancel(context.Background())
	updates, err := s.Watch(ctx, 21)
	if err != nil {
		t.Fatalf("watch: %v", err)
	}

	select {
	case delta := <-updates:
		if delta.Envelope.StatusCode != "ET" {
			t.Fatalf("unexpected delta: %+v", delta)
		}
	case <-time.After(time.Second):
		t.Fatalf("timed out waiting for delta")
	}

	cancel()
	waitFor(t, time.Second, func() bool { return s.State() == SubscriberIdle })
	for range updates {
	}
}

func TestLiveUpdateSubscriber_CloseIsIdempotent(t *testing.T) {
	t.Parallel()

	source := fixturemock.NewDeltaSource(t)
	source.
		On("FetchSelectiveUpdates", mock.Anything, mock.Anything).
		Return([]fixture.Delta{}, nil).
		Maybe()

	s, err := NewLiveUpdateSubscriber(source, nil, nil, fastLiveConfig())
	if err != nil {
		t.Fatalf("NewLiveUpdateSubscriber error: %v", err)
	}
	if _, err := s.Subscribe(1, func(fixture.Delta) {}); err != nil {
		t.Fatalf("subscribe: %v", err)
	}

	s.Close()
	s.Close()
	if got := s.State(); got != SubscriberIdle {
		t.Fatalf("unexpected state after close: %s", got)
	}
	if _, err := s.Subscribe(1, func(fixture.Delta) {}); !errors.Is(err, ErrSubscriberClosed) {
		t.Fatalf("expected ErrSubscriberClosed, got %v", err)
	}
}

func TestLiveUpdateSubscriber_ResubscribeInsideMinimumGapSkipsPoll(t *testing.T) {
	t.Parallel()

	source := fixturemock.NewDeltaSource(t)
	source.
		On("FetchSelectiveUpdates", mock.Anything, []int64{7}).
		Return([]fixture.Delta{}, nil).
		Once()

	cfg := fastLiveConfig()
	cfg.PollInterval = time.Hour
	cfg.MinPollGap = time.Hour
	s := newTestSubscriber(t, source, nil, nil, cfg)

	unsubscribe, err := s.Subscribe(7, func(fixture.Delta) {})
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	waitFor(t, time.Second, func() bool { return s.Status().LastSuccessAt != nil })
	unsubscribe()

	unsubscribe, err = s.Subscribe(7, func(fixture.Delta) {})
	if err != nil {
		t.Fatalf("resubscribe: %v", err)
	}
	defer unsubscribe()

	waitFor(t, time.Second, func() bool { return s.Status().Skipped >= 1 })
	if got := s.Status().Polls; got != 1 {
		t.Fatalf("unexpected poll count: got=%d want=1", got)
	}
	source.AssertNumberOfCalls(t, "FetchSelectiveUpdates", 1)
}

func TestLiveUpdateSubscriber_AttemptTimeoutCountsAsFailedAttempt(t *testing.T) {
	t.Parallel()

	source := fixturemock.NewDeltaSource(t)
	source.
		On("FetchSelectiveUpdates", mock.Anything, []int64{9}).
		Run(func(args mock.Arguments) {
			<-args.Get(0).(context.Context).Done()
		}).
		Return(nil, context.DeadlineExceeded)

	cfg := fastLiveConfig()
	cfg.PollInterval = time.Hour
	cfg.MinPollGap = time.Hour
	cfg.AttemptTimeout = 20 * time.Millisecond
	s := newTestSubscriber(t, source, nil, nil, cfg)

	unsubscribe, err := s.Subscribe(9, func(fixture.Delta) {})
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	defer unsubscribe()

	waitFor(t, 2*time.Second, func() bool { return s.Status().ConsecutiveFailures >= 1 })

	status := s.Status()
	if status.ConsecutiveFailures != 1 {
		t.Fatalf("unexpected consecutive failures: got=%d want=1", status.ConsecutiveFailures)
	}
	if status.LastSuccessAt != nil {
		t.Fatalf("expected no successful poll, got %v", status.LastSuccessAt)
	}
	source.AssertNumberOfCalls(t, "FetchSelectiveUpdates", 1+cfg.MaxRetries)
}
