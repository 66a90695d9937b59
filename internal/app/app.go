package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/riskibarqy/football-scoreboard/external/footballapi"
	"github.com/riskibarqy/football-scoreboard/internal/config"
	"github.com/riskibarqy/football-scoreboard/internal/domain/matchday"
	kvbadger "github.com/riskibarqy/football-scoreboard/internal/infrastructure/kv/badger"
	"github.com/riskibarqy/football-scoreboard/internal/interfaces/httpapi"
	"github.com/riskibarqy/football-scoreboard/internal/metrics"
	"github.com/riskibarqy/football-scoreboard/internal/observability"
	"github.com/riskibarqy/football-scoreboard/internal/platform/cache"
	"github.com/riskibarqy/football-scoreboard/internal/platform/logging"
	"github.com/riskibarqy/football-scoreboard/internal/platform/resilience"
	"github.com/riskibarqy/football-scoreboard/internal/platform/timezone"
	"github.com/riskibarqy/football-scoreboard/internal/usecase"
)

const (
	timezoneCacheSize = 64
	shutdownTimeout   = 10 * time.Second
)

// App owns every long-lived component of the scoreboard service.
type App struct {
	cfg        config.Config
	logger     *logging.Logger
	server     *http.Server
	debug      *observability.DebugServer
	store      *kvbadger.Store
	cache      *cache.Manager
	scoreboard *usecase.ScoreboardService
	subscriber *usecase.LiveUpdateSubscriber
}

// Options overrides collaborators for tests. Zero values build the production ones.
type Options struct {
	Client *footballapi.Client
	Now    func() time.Time
}

func New(cfg config.Config, logger *logging.Logger, opts Options) (*App, error) {
	if logger == nil {
		logger = logging.Default()
	}
	if cfg.HTTPAddr == "" {
		return nil, fmt.Errorf("http server addr cannot be empty")
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}

	resolver, err := timezone.NewResolver(timezoneCacheSize)
	if err != nil {
		return nil, fmt.Errorf("build timezone resolver: %w", err)
	}
	loc, err := resolver.Resolve(cfg.ViewerTimezone)
	if err != nil {
		return nil, fmt.Errorf("resolve viewer timezone %q: %w", cfg.ViewerTimezone, err)
	}
	localizer := matchday.NewLocalizer(loc, now)
	recorder := metrics.NewRecorder("scoreboard")

	a := &App{cfg: cfg, logger: logger}

	var store cache.PersistentStore
	if cfg.CachePersistentEnabled {
		a.store, err = kvbadger.Open(kvbadger.Config{
			Dir:        cfg.CacheDataDir,
			QuotaBytes: cfg.CachePersistentQuotaBytes,
			Logger:     logger.Named("badger"),
		})
		if err != nil {
			return nil, fmt.Errorf("open persistent cache: %w", err)
		}
		store = a.store
	} else {
		logger.Info("persistent cache disabled", "reason", "CACHE_PERSISTENT_ENABLED=false")
	}

	a.cache = cache.NewManager(store, cache.Config{
		Namespace:         cfg.CacheNamespace,
		MemoryBudgetBytes: cfg.CacheMemoryBudgetBytes,
		SweepInterval:     cfg.CacheSweepInterval,
		Now:               now,
		Logger:            logger.Named("cache"),
		Metrics:           recorder,
	})

	client := opts.Client
	if client == nil {
		client = footballapi.NewClient(footballapi.ClientConfig{
			BaseURL:    cfg.FootballAPIBaseURL,
			Token:      cfg.FootballAPIToken,
			Timeout:    cfg.FootballAPITimeout,
			MaxRetries: cfg.FootballAPIMaxRetries,
			Logger:     logger.Named("footballapi"),
			Metrics:    recorder,
			CircuitBreaker: resilience.CircuitBreakerConfig{
				Enabled:          cfg.FootballAPICircuitEnabled,
				FailureThreshold: cfg.FootballAPICircuitFailureCount,
				OpenTimeout:      cfg.FootballAPICircuitOpenTimeout,
				HalfOpenMaxReq:   cfg.FootballAPICircuitHalfOpenMax,
			},
		})
	}

	days := usecase.NewFixtureDayService(localizer, a.cache, logger.Named("fixture_days"))
	a.scoreboard = usecase.NewScoreboardService(client, client, days, a.cache, logger.Named("scoreboard"))
	a.subscriber, err = usecase.NewLiveUpdateSubscriber(client, client, a.cache, usecase.LiveUpdateConfig{
		PollInterval:     cfg.LivePollInterval,
		MinPollGap:       cfg.LiveMinPollGap,
		AttemptTimeout:   cfg.LivePollTimeout,
		ProbeTimeout:     cfg.LiveProbeTimeout,
		DeliveryThrottle: cfg.LiveDeliveryThrottle,
		MaxRetries:       cfg.LiveMaxRetries,
		RetryBackoff:     cfg.LiveRetryBackoff,
		DeliveryWorkers:  cfg.LiveDeliveryWorkers,
		Now:              now,
		Logger:           logger.Named("live_updates"),
		Metrics:          recorder,
	})
	if err != nil {
		a.closeStore()
		return nil, fmt.Errorf("build live update subscriber: %w", err)
	}

	handler := httpapi.NewHandler(a.scoreboard, days, a.subscriber, a.cache, recorder, logger)
	router := httpapi.NewRouter(handler, logger, httpapi.RouterOptions{
		DocsEnabled:        cfg.DocsEnabled,
		CORSAllowedOrigins: cfg.CORSAllowedOrigins,
	})

	a.server = &http.Server{
		Addr:         cfg.HTTPAddr,
		Handler:      router,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}
	a.debug = observability.NewDebugServer(cfg, logger, map[string]http.Handler{
		"/metrics": recorder.Handler(),
	})

	logger.Info("app initialized",
		"viewer_timezone", loc.String(),
		"persistent_cache", cfg.CachePersistentEnabled,
		"prefetch", cfg.CachePrefetchEnabled,
	)
	return a, nil
}

func (a *App) Handler() http.Handler {
	return a.server.Handler
}

// Run serves until ctx is cancelled, then drains the listeners and background workers.
func (a *App) Run(ctx context.Context) error {
	if _, err := a.cache.WarmUp(ctx); err != nil {
		a.logger.WarnContext(ctx, "cache warm-up failed", "error", err)
	}
	a.cache.Start(ctx)

	group, groupCtx := errgroup.WithContext(ctx)
	group.Go(func() error {
		a.logger.Info("http server starting", "addr", a.server.Addr)
		if err := a.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	group.Go(a.debug.ListenAndServe)
	if a.cfg.CachePrefetchEnabled {
		group.Go(func() error {
			if err := a.scoreboard.Prefetch(groupCtx); err != nil {
				a.logger.WarnContext(groupCtx, "prefetch incomplete", "error", err)
			}
			return nil
		})
	}
	group.Go(func() error {
		<-groupCtx.Done()
		return a.shutdown()
	})

	return group.Wait()
}

func (a *App) shutdown() error {
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	var errs []error
	if err := a.server.Shutdown(shutdownCtx); err != nil {
		errs = append(errs, fmt.Errorf("http server shutdown: %w", err))
	}
	if err := a.debug.Shutdown(shutdownCtx); err != nil {
		errs = append(errs, fmt.Errorf("debug server shutdown: %w", err))
	}
	a.Close()
	a.logger.Info("http server stopped")
	return errors.Join(errs...)
}

// Close stops background work and releases the persistent store. Safe to call twice.
func (a *App) Close() {
	a.subscriber.Close()
	a.cache.Stop()
	a.closeStore()
}

func (a *App) closeStore() {
	if a.store == nil {
		return
	}
	if err := a.store.Close(); err != nil {
		a.logger.Warn("close persistent cache failed", "error", err)
	}
	a.store = nil
}
