package usecase

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/panjf2000/ants/v2"
	"github.com/riskibarqy/football-scoreboard/internal/domain/fixture"
	"github.com/riskibarqy/football-scoreboard/internal/metrics"
	"github.com/riskibarqy/football-scoreboard/internal/platform/cache"
	"github.com/riskibarqy/football-scoreboard/internal/platform/logging"
	"github.com/riskibarqy/football-scoreboard/internal/platform/resilience"
)

type SubscriberState string

const (
	SubscriberIdle    SubscriberState = "idle"
	SubscriberPolling SubscriberState = "polling"
)

type LiveUpdateConfig struct {
	PollInterval     time.Duration
	MinPollGap       time.Duration
	AttemptTimeout   time.Duration
	ProbeTimeout     time.Duration
	DeliveryThrottle time.Duration
	MaxRetries       int
	// RetryBackoff doubles per retry: 1s, 2s, 4s with the default.
	RetryBackoff    time.Duration
	DeliveryWorkers int
	Now             func() time.Time
	Logger          *logging.Logger
	Metrics         *metrics.Recorder
}

func DefaultLiveUpdateConfig() LiveUpdateConfig {
	return LiveUpdateConfig{
		PollInterval:     15 * time.Second,
		MinPollGap:       5 * time.Second,
		AttemptTimeout:   10 * time.Second,
		ProbeTimeout:     5 * time.Second,
		DeliveryThrottle: 100 * time.Millisecond,
		MaxRetries:       3,
		RetryBackoff:     time.Second,
		DeliveryWorkers:  16,
	}
}

func normalizeLiveUpdateConfig(cfg LiveUpdateConfig) LiveUpdateConfig {
	defaults := DefaultLiveUpdateConfig()
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = defaults.PollInterval
	}
	if cfg.MinPollGap <= 0 {
		cfg.MinPollGap = defaults.MinPollGap
	}
	if cfg.AttemptTimeout <= 0 {
		cfg.AttemptTimeout = defaults.AttemptTimeout
	}
	if cfg.ProbeTimeout <= 0 {
		cfg.ProbeTimeout = defaults.ProbeTimeout
	}
	if cfg.DeliveryThrottle <= 0 {
		cfg.DeliveryThrottle = defaults.DeliveryThrottle
	}
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 0
	}
	if cfg.RetryBackoff <= 0 {
		cfg.RetryBackoff = defaults.RetryBackoff
	}
	if cfg.DeliveryWorkers <= 0 {
		cfg.DeliveryWorkers = defaults.DeliveryWorkers
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.Logger == nil {
		cfg.Logger = logging.Default()
	}
	return cfg
}

// DeltaCallback receives envelope changes for one fixture.
type DeltaCallback func(fixture.Delta)

type LiveUpdateStatus struct {
	State               SubscriberState `json:"state"`
	Online              bool            `json:"online"`
	Fixtures            int             `json:"fixtures"`
	Subscriptions       int             `json:"subscriptions"`
	ConsecutiveFailures int             `json:"consecutive_failures"`
	LastError           string          `json:"last_error,omitempty"`
	LastAttemptAt       *time.Time      `json:"last_attempt_at,omitempty"`
	LastSuccessAt       *time.Time      `json:"last_success_at,omitempty"`
	Polls               int64           `json:"polls"`
	Skipped             int64           `json:"skipped"`
	Delivered           int64           `json:"delivered"`
	Suppressed          int64           `json:"suppressed"`
}

type subscription struct {
	id        uuid.UUID
	fixtureID int64
	callback  DeltaCallback
	active    atomic.Bool
}

// fixtureChannel holds the subscribers and delivery state of one fixture.
type fixtureChannel struct {
	subs          []*subscription
	last          *fixture.Envelope
	pending       *fixture.Envelope
	scheduled     bool
	timer         *time.Timer
	lastDelivered time.Time
	// deliverMu keeps callbacks for this fixture sequential.
	deliverMu sync.Mutex
}

// LiveUpdateSubscriber polls the provider for envelope changes of subscribed fixtures
// and fans them out to callbacks. Polling runs only while at least one subscription exists.
type LiveUpdateSubscriber struct {
	source fixture.DeltaSource
	prober fixture.Prober
	cache  *cache.Manager
	cfg    LiveUpdateConfig
	logger *logging.Logger
	pool   *ants.Pool

	mu         sync.Mutex
	channels   map[int64]*fixtureChannel
	subCount   int
	state      SubscriberState
	online     bool
	closed     bool
	loopCancel context.CancelFunc
	loopDone   chan struct{}
	wake       chan struct{}
	lastPollAt time.Time

	inFlight atomic.Bool

	statusMu            sync.Mutex
	consecutiveFailures int
	lastErr             error
	lastAttemptAt       time.Time
	lastSuccessAt       time.Time
	polls               int64
	skipped             int64
	delivered           atomic.Int64
	suppressed          atomic.Int64
}

// NewLiveUpdateSubscriber builds an idle subscriber. prober and cacheManager may be nil.
func NewLiveUpdateSubscriber(source fixture.DeltaSource, prober fixture.Prober, cacheManager *cache.Manager, cfg LiveUpdateConfig) (*LiveUpdateSubscriber, error) {
	if source == nil {
		return nil, fmt.Errorf("%w: delta source is required", ErrInvalidInput)
	}
	cfg = normalizeLiveUpdateConfig(cfg)

	deliveryPool, err := ants.NewPool(cfg.DeliveryWorkers, ants.WithNonblocking(true))
	if err != nil {
		return nil, fmt.Errorf("create delivery pool: %w", err)
	}

	return &LiveUpdateSubscriber{
		source:   source,
		prober:   prober,
		cache:    cacheManager,
		cfg:      cfg,
		logger:   cfg.Logger,
		pool:     deliveryPool,
		channels: make(map[int64]*fixtureChannel),
		state:    SubscriberIdle,
		online:   true,
		wake:     make(chan struct{}, 1),
	}, nil
}

// Subscribe registers callback for fixtureID and returns its unsubscribe function.
// The first subscription starts polling; removing the last one stops it.
func (s *LiveUpdateSubscriber) Subscribe(fixtureID int64, callback DeltaCallback) (func(), error) {
	if fixtureID <= 0 {
		return nil, fmt.Errorf("%w: fixture id must be greater than zero", ErrInvalidInput)
	}
	if callback == nil {
		return nil, fmt.Errorf("%w: callback is required", ErrInvalidInput)
	}

	sub := &subscription{id: uuid.New(), fixtureID: fixtureID, callback: callback}
	sub.active.Store(true)

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil, ErrSubscriberClosed
	}
	ch, ok := s.channels[fixtureID]
	if !ok {
		ch = &fixtureChannel{}
		s.channels[fixtureID] = ch
	}
	ch.subs = append(ch.subs, sub)
	s.subCount++
	fixtures := len(s.channels)
	if s.state == SubscriberIdle {
		s.startLoopLocked()
	}
	s.mu.Unlock()

	s.cfg.Metrics.SubscribedFixtures(fixtures)
	s.logger.Debug("live update subscription added", "fixture_id", fixtureID, "subscription_id", sub.id.String())

	var once sync.Once
	return func() {
		once.Do(func() { s.unsubscribe(sub) })
	}, nil
}

// Watch adapts Subscribe to a channel closed when ctx is done. A slow reader loses the
// oldest buffered delta, never the newest.
func (s *LiveUpdateSubscriber) Watch(ctx context.Context, fixtureID int64) (<-chan fixture.Delta, error) {
	out := make(chan fixture.Delta, 8)
	var mu sync.Mutex
	closed := false

	unsubscribe, err := s.Subscribe(fixtureID, func(delta fixture.Delta) {
		mu.Lock()
		defer mu.Unlock()
		if closed {
			return
		}
		select {
		case out <- delta:
			return
		default:
		}
		select {
		case <-out:
		default:
		}
		select {
		case out <- delta:
		default:
		}
	})
	if err != nil {
		return nil, err
	}

	go func() {
		<-ctx.Done()
		unsubscribe()
		mu.Lock()
		closed = true
		close(out)
		mu.Unlock()
	}()
	return out, nil
}

func (s *LiveUpdateSubscriber) unsubscribe(sub *subscription) {
	sub.active.Store(false)

	s.mu.Lock()
	ch, ok := s.channels[sub.fixtureID]
	if !ok {
		s.mu.Unlock()
		return
	}
	for i, candidate := range ch.subs {
		if candidate == sub {
			ch.subs = append(ch.subs[:i:i], ch.subs[i+1:]...)
			s.subCount--
			break
		}
	}
	if len(ch.subs) == 0 {
		if ch.timer != nil {
			ch.timer.Stop()
		}
		delete(s.channels, sub.fixtureID)
	}
	fixtures := len(s.channels)
	var cancel context.CancelFunc
	var done chan struct{}
	if s.subCount == 0 {
		cancel, done = s.stopLoopLocked()
	}
	s.mu.Unlock()

	s.cfg.Metrics.SubscribedFixtures(fixtures)
	s.logger.Debug("live update subscription removed", "fixture_id", sub.fixtureID, "subscription_id", sub.id.String())
	waitLoop(cancel, done)
}

func (s *LiveUpdateSubscriber) startLoopLocked() {
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	s.loopCancel = cancel
	s.loopDone = done
	s.state = SubscriberPolling
	go s.run(ctx, done)
	s.logger.Info("live update polling started", "interval", s.cfg.PollInterval)
}

func (s *LiveUpdateSubscriber) stopLoopLocked() (context.CancelFunc, chan struct{}) {
	cancel, done := s.loopCancel, s.loopDone
	s.loopCancel, s.loopDone = nil, nil
	if s.state == SubscriberPolling {
		s.state = SubscriberIdle
		s.logger.Info("live update polling stopped")
	}
	return cancel, done
}

func waitLoop(cancel context.CancelFunc, done chan struct{}) {
	if cancel == nil {
		return
	}
	cancel()
	<-done
}

func (s *LiveUpdateSubscriber) run(ctx context.Context, done chan struct{}) {
	defer close(done)

	s.poll(ctx)
	ticker := time.NewTicker(s.cfg.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.tick(ctx)
		case <-s.wake:
			s.poll(ctx)
		}
	}
}

func (s *LiveUpdateSubscriber) tick(ctx context.Context) {
	if s.Online() {
		s.poll(ctx)
		return
	}
	if s.prober == nil {
		s.recordSkip("offline")
		return
	}

	probeCtx, cancel := context.WithTimeout(ctx, s.cfg.ProbeTimeout)
	err := s.prober.Ping(probeCtx)
	cancel()
	if err != nil {
		s.logger.DebugContext(ctx, "live update recovery probe failed", "error", err)
		s.recordSkip("offline")
		return
	}

	s.logger.InfoContext(ctx, "live update provider reachable again")
	s.mu.Lock()
	s.online = true
	s.mu.Unlock()
	s.poll(ctx)
}

// PollNow runs one poll cycle immediately, honouring the minimum gap and single-flight.
func (s *LiveUpdateSubscriber) PollNow(ctx context.Context) {
	s.poll(ctx)
}

func (s *LiveUpdateSubscriber) poll(ctx context.Context) {
	if !s.Online() {
		s.recordSkip("offline")
		return
	}
	if !s.inFlight.CompareAndSwap(false, true) {
		s.recordSkip("in_flight")
		return
	}
	defer s.inFlight.Store(false)

	now := s.cfg.Now()
	s.mu.Lock()
	if !s.lastPollAt.IsZero() && now.Sub(s.lastPollAt) < s.cfg.MinPollGap {
		s.mu.Unlock()
		s.recordSkip("throttled")
		return
	}
	ids := make([]int64, 0, len(s.channels))
	for id := range s.channels {
		ids = append(ids, id)
	}
	if len(ids) > 0 {
		s.lastPollAt = now
	}
	s.mu.Unlock()

	if len(ids) == 0 {
		return
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	s.statusMu.Lock()
	s.polls++
	s.lastAttemptAt = now
	s.statusMu.Unlock()

	started := time.Now()
	deltas, err := s.fetchWithRetry(ctx, ids)
	if err != nil {
		if ctx.Err() != nil {
			return
		}
		s.statusMu.Lock()
		s.consecutiveFailures++
		s.lastErr = err
		failures := s.consecutiveFailures
		s.statusMu.Unlock()

		s.cfg.Metrics.PollCycle("failed", time.Since(started))
		s.logger.WarnContext(ctx, "live update poll failed after retries, no updates this cycle",
			"fixtures", len(ids),
			"consecutive_failures", failures,
			"error", err,
		)
		return
	}

	s.statusMu.Lock()
	s.consecutiveFailures = 0
	s.lastErr = nil
	s.lastSuccessAt = s.cfg.Now()
	s.statusMu.Unlock()
	s.cfg.Metrics.PollCycle("ok", time.Since(started))

	for _, delta := range deltas {
		s.enqueue(delta)
	}
}

func (s *LiveUpdateSubscriber) fetchWithRetry(ctx context.Context, ids []int64) ([]fixture.Delta, error) {
	policy := resilience.RetryPolicy{
		Retries: s.cfg.MaxRetries,
		Base:    s.cfg.RetryBackoff,
		Growth:  resilience.BackoffExponential,
	}

	var deltas []fixture.Delta
	err := resilience.Retry(ctx, policy, nil, func(ctx context.Context, attempt int) error {
		attemptCtx, cancel := context.WithTimeout(ctx, s.cfg.AttemptTimeout)
		defer cancel()

		var err error
		deltas, err = s.source.FetchSelectiveUpdates(attemptCtx, ids)
		if err != nil {
			s.logger.DebugContext(ctx, "live update attempt failed", "attempt", attempt+1, "error", err)
		}
		return err
	})
	if err != nil {
		return nil, err
	}
	return deltas, nil
}

// enqueue records the newest envelope for a fixture and schedules its delivery,
// coalescing updates that arrive inside the throttle window.
func (s *LiveUpdateSubscriber) enqueue(delta fixture.Delta) {
	s.mu.Lock()
	ch, ok := s.channels[delta.FixtureID]
	if !ok {
		s.mu.Unlock()
		return
	}
	if ch.last != nil && ch.last.Equal(delta.Envelope) {
		ch.pending = nil
		s.mu.Unlock()
		s.suppressed.Add(1)
		s.cfg.Metrics.Delivery("suppressed")
		return
	}

	env := delta.Envelope
	ch.pending = &env
	if ch.scheduled {
		s.mu.Unlock()
		s.cfg.Metrics.Delivery("coalesced")
		return
	}
	ch.scheduled = true

	fixtureID := delta.FixtureID
	wait := s.cfg.DeliveryThrottle - s.cfg.Now().Sub(ch.lastDelivered)
	if !ch.lastDelivered.IsZero() && wait > 0 {
		ch.timer = time.AfterFunc(wait, func() { s.submit(fixtureID) })
		s.mu.Unlock()
		return
	}
	s.mu.Unlock()
	s.submit(fixtureID)
}

func (s *LiveUpdateSubscriber) submit(fixtureID int64) {
	task := func() { s.flush(fixtureID) }
	if err := s.pool.Submit(task); err != nil {
		go task()
	}
}

func (s *LiveUpdateSubscriber) flush(fixtureID int64) {
	s.mu.Lock()
	ch, ok := s.channels[fixtureID]
	s.mu.Unlock()
	if !ok {
		return
	}

	ch.deliverMu.Lock()
	defer ch.deliverMu.Unlock()

	s.mu.Lock()
	ch.scheduled = false
	ch.timer = nil
	env := ch.pending
	ch.pending = nil
	if env == nil || (ch.last != nil && ch.last.Equal(*env)) {
		s.mu.Unlock()
		return
	}
	ch.last = env
	ch.lastDelivered = s.cfg.Now()
	subs := append([]*subscription(nil), ch.subs...)
	s.mu.Unlock()

	delta := fixture.Delta{FixtureID: fixtureID, Envelope: *env}
	if err := cache.Set(context.Background(), s.cache, LiveFixtureKey(fixtureID), delta.Envelope, cache.ClassLive); err != nil {
		s.logger.Warn("live envelope cache write failed", "fixture_id", fixtureID, "error", err)
	}

	for _, sub := range subs {
		if !sub.active.Load() {
			continue
		}
		s.invoke(sub, delta)
	}
	s.delivered.Add(1)
	s.cfg.Metrics.Delivery("delivered")
}

func (s *LiveUpdateSubscriber) invoke(sub *subscription, delta fixture.Delta) {
	defer func() {
		if recovered := recover(); recovered != nil {
			s.logger.Error("live update callback panicked",
				"fixture_id", delta.FixtureID,
				"subscription_id", sub.id.String(),
				"panic", recovered,
			)
		}
	}()
	sub.callback(delta)
}

// SetOnline reports connectivity. Going offline pauses polling; coming back triggers
// an immediate poll.
func (s *LiveUpdateSubscriber) SetOnline(online bool) {
	s.mu.Lock()
	previous := s.online
	s.online = online
	polling := s.state == SubscriberPolling
	s.mu.Unlock()

	if previous == online {
		return
	}
	s.logger.Info("live update connectivity changed", "online", online)
	if online && polling {
		select {
		case s.wake <- struct{}{}:
		default:
		}
	}
}

func (s *LiveUpdateSubscriber) Online() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.online
}

func (s *LiveUpdateSubscriber) State() SubscriberState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func (s *LiveUpdateSubscriber) Status() LiveUpdateStatus {
	s.mu.Lock()
	status := LiveUpdateStatus{
		State:         s.state,
		Online:        s.online,
		Fixtures:      len(s.channels),
		Subscriptions: s.subCount,
	}
	s.mu.Unlock()

	s.statusMu.Lock()
	status.ConsecutiveFailures = s.consecutiveFailures
	if s.lastErr != nil {
		status.LastError = s.lastErr.Error()
	}
	status.LastAttemptAt = timePtr(s.lastAttemptAt)
	status.LastSuccessAt = timePtr(s.lastSuccessAt)
	status.Polls = s.polls
	status.Skipped = s.skipped
	s.statusMu.Unlock()

	status.Delivered = s.delivered.Load()
	status.Suppressed = s.suppressed.Load()
	return status
}

// Close drops every subscription and stops polling. It is safe to call more than once.
func (s *LiveUpdateSubscriber) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	for id, ch := range s.channels {
		for _, sub := range ch.subs {
			sub.active.Store(false)
		}
		if ch.timer != nil {
			ch.timer.Stop()
		}
		delete(s.channels, id)
	}
	s.subCount = 0
	cancel, done := s.stopLoopLocked()
	s.mu.Unlock()

	waitLoop(cancel, done)
	s.pool.Release()
	s.cfg.Metrics.SubscribedFixtures(0)
}

func (s *LiveUpdateSubscriber) recordSkip(reason string) {
	s.statusMu.Lock()
	s.skipped++
	s.statusMu.Unlock()
	s.cfg.Metrics.PollCycle(reason, 0)
}

func timePtr(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	v := t
	return &v
}
