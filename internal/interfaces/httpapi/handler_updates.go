package httpapi

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	jsoniter "github.com/json-iterator/go"
	"github.com/riskibarqy/football-scoreboard/internal/domain/fixture"
	"github.com/riskibarqy/football-scoreboard/internal/platform/cache"
	"github.com/riskibarqy/football-scoreboard/internal/usecase"
)

const streamKeepAlive = 20 * time.Second

var eventJSON = jsoniter.ConfigCompatibleWithStandardLibrary

// StreamFixtureUpdates serves envelope changes for one fixture as server-sent events.
// The subscription lives exactly as long as the request.
func (h *Handler) StreamFixtureUpdates(w http.ResponseWriter, r *http.Request) {
	ctx, span := startSpan(r.Context(), "httpapi.Handler.StreamFixtureUpdates")
	defer span.End()

	fixtureID, err := h.parseIDParam(ctx, r, "fixtureID")
	if err != nil {
		writeError(ctx, w, err)
		return
	}
	if h.liveUpdates == nil {
		writeError(ctx, w, fmt.Errorf("%w: live updates are disabled", usecase.ErrDependencyUnavailable))
		return
	}

	updates, err := h.liveUpdates.Watch(ctx, fixtureID)
	if err != nil {
		h.logger.WarnContext(ctx, "watch fixture failed", "fixture_id", fixtureID, "error", err)
		writeError(ctx, w, err)
		return
	}

	rc := http.NewResponseController(w)
	_ = rc.SetWriteDeadline(time.Time{})

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)

	if env, ok := cache.Get[fixture.Envelope](ctx, h.cache, usecase.LiveFixtureKey(fixtureID), cache.ClassLive); ok {
		if err := writeEvent(w, "snapshot", deltaToDTO(fixture.Delta{FixtureID: fixtureID, Envelope: env})); err != nil {
			return
		}
	}
	if err := rc.Flush(); err != nil {
		h.logger.WarnContext(ctx, "event stream flush unsupported", "fixture_id", fixtureID, "error", err)
		return
	}

	h.pumpEvents(ctx, w, rc, fixtureID, updates)
}

func (h *Handler) pumpEvents(ctx context.Context, w io.Writer, rc *http.ResponseController, fixtureID int64, updates <-chan fixture.Delta) {
	keepAlive := time.NewTicker(streamKeepAlive)
	defer keepAlive.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-keepAlive.C:
			if _, err := io.WriteString(w, ": keep-alive\n\n"); err != nil {
				return
			}
		case delta, ok := <-updates:
			if !ok {
				return
			}
			if err := writeEvent(w, "delta", deltaToDTO(delta)); err != nil {
				h.logger.DebugContext(ctx, "event stream write failed", "fixture_id", fixtureID, "error", err)
				return
			}
		}
		if err := rc.Flush(); err != nil {
			return
		}
	}
}

func writeEvent(w io.Writer, name string, payload any) error {
	data, err := eventJSON.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encode %s event: %w", name, err)
	}
	if _, err := fmt.Fprintf(w, "event: %s\ndata: %s\n\n", name, data); err != nil {
		return fmt.Errorf("write %s event: %w", name, err)
	}
	return nil
}
