package httpapi

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/riskibarqy/football-scoreboard/internal/metrics"
	"github.com/riskibarqy/football-scoreboard/internal/platform/cache"
	"github.com/riskibarqy/football-scoreboard/internal/platform/logging"
	"github.com/riskibarqy/football-scoreboard/internal/usecase"
)

type Handler struct {
	scoreboardService *usecase.ScoreboardService
	fixtureDayService *usecase.FixtureDayService
	liveUpdates       *usecase.LiveUpdateSubscriber
	cache             *cache.Manager
	metrics           *metrics.Recorder
	logger            *logging.Logger
	validator         *validator.Validate
}

func NewHandler(
	scoreboardService *usecase.ScoreboardService,
	fixtureDayService *usecase.FixtureDayService,
	liveUpdates *usecase.LiveUpdateSubscriber,
	cacheManager *cache.Manager,
	recorder *metrics.Recorder,
	logger *logging.Logger,
) *Handler {
	if logger == nil {
		logger = logging.Default()
	}

	return &Handler{
		scoreboardService: scoreboardService,
		fixtureDayService: fixtureDayService,
		liveUpdates:       liveUpdates,
		cache:             cacheManager,
		metrics:           recorder,
		logger:            logger.Named("httpapi"),
		validator:         validator.New(),
	}
}

type dateQuery struct {
	Date string `validate:"omitempty,datetime=2006-01-02"`
}

type requiredDateQuery struct {
	Date string `validate:"required,datetime=2006-01-02"`
}

type idPath struct {
	ID int64 `validate:"gt=0"`
}

func (h *Handler) validateRequest(ctx context.Context, payload any) error {
	ctx, span := startSpan(ctx, "httpapi.Handler.validateRequest")
	defer span.End()

	if err := h.validator.StructCtx(ctx, payload); err != nil {
		return fmt.Errorf("%w: validation failed: %v", usecase.ErrInvalidInput, err)
	}

	return nil
}

func (h *Handler) parseIDParam(ctx context.Context, r *http.Request, name string) (int64, error) {
	raw := strings.TrimSpace(r.PathValue(name))
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %s must be an integer, got %q", usecase.ErrInvalidInput, name, raw)
	}
	if err := h.validateRequest(ctx, idPath{ID: id}); err != nil {
		return 0, fmt.Errorf("%s: %w", name, err)
	}
	return id, nil
}

func (h *Handler) Healthz(w http.ResponseWriter, r *http.Request) {
	ctx, span := startSpan(r.Context(), "httpapi.Handler.Healthz")
	defer span.End()

	writeSuccess(ctx, w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *Handler) metricsHandler() http.Handler {
	if h.metrics == nil {
		return http.NotFoundHandler()
	}
	return h.metrics.Handler()
}

func (h *Handler) GetCacheStats(w http.ResponseWriter, r *http.Request) {
	ctx, span := startSpan(r.Context(), "httpapi.Handler.GetCacheStats")
	defer span.End()

	out := cacheStatsDTO{Cache: h.cache.Stats()}
	if h.liveUpdates != nil {
		status := h.liveUpdates.Status()
		out.LiveUpdates = &status
	}
	writeSuccess(ctx, w, http.StatusOK, out)
}

type cacheStatsDTO struct {
	Cache       cache.Stats               `json:"cache"`
	LiveUpdates *usecase.LiveUpdateStatus `json:"liveUpdates,omitempty"`
}
