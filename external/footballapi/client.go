package footballapi

import (
	"bytes"
	"context"
	stderrors "errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"

	crerr "github.com/cockroachdb/errors"
	"github.com/riskibarqy/football-scoreboard/internal/domain/fixture"
	"github.com/riskibarqy/football-scoreboard/internal/domain/standing"
	"github.com/riskibarqy/football-scoreboard/internal/metrics"
	"github.com/riskibarqy/football-scoreboard/internal/platform/logging"
	"github.com/riskibarqy/football-scoreboard/internal/platform/resilience"
	"github.com/riskibarqy/football-scoreboard/internal/usecase"
	"github.com/valyala/bytebufferpool"
)

const (
	defaultBaseURL      = "http://localhost:8080"
	defaultRetryBackoff = time.Second
	maxResponseBytes    = 6 << 20
)

var apiTokenParamRegex = regexp.MustCompile(`api_token=[^&\s"']+`)
var errProviderTransient = crerr.New("football api transient failure")

type ClientConfig struct {
	HTTPClient *http.Client
	BaseURL    string
	Token      string
	Timeout    time.Duration
	MaxRetries int
	// RetryBackoff is the linear backoff step between attempts.
	RetryBackoff   time.Duration
	Logger         *logging.Logger
	Metrics        *metrics.Recorder
	CircuitBreaker resilience.CircuitBreakerConfig
}

// Client talks to the football data backend. It satisfies fixture.Source,
// fixture.DeltaSource, fixture.Prober and standing.Source.
type Client struct {
	httpClient   *http.Client
	baseURL      string
	token        string
	maxRetries   int
	retryBackoff time.Duration
	logger       *logging.Logger
	metrics      *metrics.Recorder
	breaker      *resilience.CircuitBreaker
	flight       resilience.SingleFlight
}

func NewClient(cfg ClientConfig) *Client {
	logger := cfg.Logger
	if logger == nil {
		logger = logging.Default()
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: cfg.Timeout}
	}
	if httpClient.Timeout <= 0 {
		httpClient.Timeout = 20 * time.Second
	}

	baseURL := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	backoff := cfg.RetryBackoff
	if backoff <= 0 {
		backoff = defaultRetryBackoff
	}

	breakerCfg := cfg.CircuitBreaker
	if breakerCfg.OnStateChange == nil {
		breakerCfg.OnStateChange = func(from, to resilience.CircuitState) {
			logger.Warn("football api circuit breaker state changed", "from", from, "to", to)
			cfg.Metrics.ProviderCircuitTransition(string(to))
		}
	}

	return &Client{
		httpClient:   httpClient,
		baseURL:      baseURL,
		token:        strings.TrimSpace(cfg.Token),
		maxRetries:   max(cfg.MaxRetries, 0),
		retryBackoff: backoff,
		logger:       logger,
		metrics:      cfg.Metrics,
		breaker:      resilience.NewCircuitBreaker(breakerCfg),
	}
}

// Circuit reports the provider breaker; a disabled breaker always reads closed.
func (c *Client) Circuit() resilience.CircuitSnapshot {
	return c.breaker.Snapshot()
}

func (c *Client) FetchFixturesByDate(ctx context.Context, date string) ([]fixture.Fixture, error) {
	date = strings.TrimSpace(date)
	if date == "" {
		return nil, fmt.Errorf("date is required")
	}
	raw, err := c.doJSON(ctx, request{
		operation: "fixtures_by_date",
		method:    http.MethodGet,
		path:      "/api/fixtures/date/" + url.PathEscape(date),
		retries:   c.maxRetries,
	})
	if err != nil {
		return nil, fmt.Errorf("fetch fixtures date=%s: %w", date, err)
	}
	return c.decodeFixtures(ctx, raw)
}

func (c *Client) FetchLiveFixtures(ctx context.Context) ([]fixture.Fixture, error) {
	raw, err := c.doJSON(ctx, request{
		operation: "live_fixtures",
		method:    http.MethodGet,
		path:      "/api/fixtures/live",
		retries:   c.maxRetries,
	})
	if err != nil {
		return nil, fmt.Errorf("fetch live fixtures: %w", err)
	}
	return c.decodeFixtures(ctx, raw)
}

func (c *Client) FetchLeagueFixtures(ctx context.Context, leagueID int64) ([]fixture.Fixture, error) {
	if leagueID <= 0 {
		return nil, fmt.Errorf("league id must be greater than zero")
	}
	raw, err := c.doJSON(ctx, request{
		operation: "league_fixtures",
		method:    http.MethodGet,
		path:      fmt.Sprintf("/api/leagues/%d/fixtures", leagueID),
		retries:   c.maxRetries,
	})
	if err != nil {
		return nil, fmt.Errorf("fetch league fixtures league_id=%d: %w", leagueID, err)
	}
	return c.decodeFixtures(ctx, raw)
}

func (c *Client) FetchLeagueStandings(ctx context.Context, leagueID int64) ([]standing.Row, error) {
	if leagueID <= 0 {
		return nil, fmt.Errorf("league id must be greater than zero")
	}
	raw, err := c.doJSON(ctx, request{
		operation: "league_standings",
		method:    http.MethodGet,
		path:      fmt.Sprintf("/api/leagues/%d/standings", leagueID),
		retries:   c.maxRetries,
	})
	if err != nil {
		return nil, fmt.Errorf("fetch standings league_id=%d: %w", leagueID, err)
	}
	items, err := decodeStandings(raw)
	if err != nil {
		return nil, fmt.Errorf("decode standings league_id=%d: %w", leagueID, err)
	}
	return mapStandings(items), nil
}

// FetchSelectiveUpdates asks for the live envelopes of ids in one request. It makes a
// single attempt; callers own the retry policy.
func (c *Client) FetchSelectiveUpdates(ctx context.Context, ids []int64) ([]fixture.Delta, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	buf := bytebufferpool.Get()
	defer bytebufferpool.Put(buf)
	_, _ = buf.WriteString(`{"fixtureIds":[`)
	for i, id := range ids {
		if i > 0 {
			_ = buf.WriteByte(',')
		}
		_, _ = buf.WriteString(strconv.FormatInt(id, 10))
	}
	_, _ = buf.WriteString(`]}`)

	raw, err := c.doJSON(ctx, request{
		operation: "selective_updates",
		method:    http.MethodPost,
		path:      "/api/fixtures/selective-updates",
		body:      append([]byte(nil), buf.B...),
	})
	if err != nil {
		return nil, fmt.Errorf("fetch selective updates count=%d: %w", len(ids), err)
	}

	items, err := decodeList[deltaItem](raw)
	if err != nil {
		return nil, fmt.Errorf("decode selective updates: %w", err)
	}
	out := make([]fixture.Delta, 0, len(items))
	for _, item := range items {
		if item.Fixture.ID <= 0 {
			continue
		}
		out = append(out, item.toDelta())
	}
	return out, nil
}

// Ping is a lightweight reachability probe. Any response below 500 counts as reachable.
func (c *Client) Ping(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, c.buildURL("/api/fixtures/live"), nil)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: ping: %s", errProviderTransient, sanitizeSensitiveText(err.Error(), c.token))
	}
	_ = resp.Body.Close()
	if resp.StatusCode >= http.StatusInternalServerError {
		return fmt.Errorf("%w: ping status=%d", errProviderTransient, resp.StatusCode)
	}
	return nil
}

type request struct {
	operation string
	method    string
	path      string
	body      []byte
	retries   int
}

func (c *Client) doJSON(ctx context.Context, r request) ([]byte, error) {
	fullURL := c.buildURL(r.path)
	key := r.method + " " + r.path + " " + string(r.body)

	out, err, _ := c.flight.DoContext(ctx, key, func() (any, error) {
		var raw []byte
		execErr := c.breaker.Execute(func() error {
			var reqErr error
			raw, reqErr = c.executeRequest(ctx, r, fullURL)
			return reqErr
		}, isProviderCircuitFailure)
		return raw, execErr
	})
	if stderrors.Is(err, resilience.ErrCircuitOpen) {
		c.logger.WarnContext(ctx, "football api circuit breaker rejected request", "operation", r.operation, "state", c.breaker.State())
		c.metrics.ProviderRequest(r.operation, "rejected")
		return nil, fmt.Errorf("%w: football data provider is temporarily unavailable", usecase.ErrDependencyUnavailable)
	}
	if err != nil {
		c.metrics.ProviderRequest(r.operation, "failed")
		return nil, err
	}
	c.metrics.ProviderRequest(r.operation, "ok")

	raw, ok := out.([]byte)
	if !ok {
		return nil, fmt.Errorf("unexpected response payload type %T", out)
	}
	return raw, nil
}

func (c *Client) executeRequest(ctx context.Context, r request, fullURL string) ([]byte, error) {
	policy := resilience.RetryPolicy{Retries: r.retries, Base: c.retryBackoff, Growth: resilience.BackoffLinear}

	var raw []byte
	err := resilience.Retry(ctx, policy, isProviderCircuitFailure, func(ctx context.Context, attempt int) error {
		var attemptErr error
		raw, attemptErr = c.send(ctx, r, fullURL)
		if attemptErr != nil && attempt < r.retries {
			c.logger.DebugContext(ctx, "football api attempt failed", "operation", r.operation, "attempt", attempt+1, "error", attemptErr)
		}
		return attemptErr
	})
	if err != nil {
		c.logger.WarnContext(ctx, "football api request failed", "operation", r.operation, "url", redactAPIURL(fullURL), "error", err)
		return nil, err
	}
	return raw, nil
}

// send performs one HTTP round trip. Transport failures, 429 and 5xx are transient.
func (c *Client) send(ctx context.Context, r request, fullURL string) ([]byte, error) {
	var body io.Reader
	if r.body != nil {
		body = bytes.NewReader(r.body)
	}
	req, err := http.NewRequestWithContext(ctx, r.method, fullURL, body)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("accept", "application/json")
	if r.body != nil {
		req.Header.Set("content-type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: send request: %s", errProviderTransient, sanitizeSensitiveText(err.Error(), c.token))
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	switch {
	case err != nil:
		return nil, fmt.Errorf("%w: read response body: %v", errProviderTransient, err)
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		return raw, nil
	case isRetryableStatus(resp.StatusCode):
		return nil, fmt.Errorf("%w: provider status=%d body=%s", errProviderTransient, resp.StatusCode, abbreviateBody(raw))
	default:
		return nil, fmt.Errorf("provider status=%d body=%s", resp.StatusCode, abbreviateBody(raw))
	}
}

func (c *Client) buildURL(path string) string {
	fullURL := c.baseURL + path
	if c.token != "" {
		fullURL += "?" + url.Values{"api_token": []string{c.token}}.Encode()
	}
	return fullURL
}

func (c *Client) decodeFixtures(ctx context.Context, raw []byte) ([]fixture.Fixture, error) {
	items, err := decodeList[fixtureItem](raw)
	if err != nil {
		return nil, fmt.Errorf("decode fixtures: %w", err)
	}
	out := make([]fixture.Fixture, 0, len(items))
	for _, item := range items {
		if item.Fixture.ID <= 0 {
			continue
		}
		mapped := item.toFixture()
		if !mapped.HasKickoff() {
			c.logger.WarnContext(ctx, "fixture has no usable kickoff", "fixture_id", mapped.ID, "date", item.Fixture.Date)
		}
		out = append(out, mapped)
	}
	return out, nil
}

// IsTransient reports whether err is a retryable provider failure.
func IsTransient(err error) bool {
	return isProviderCircuitFailure(err)
}

func isProviderCircuitFailure(err error) bool {
	if err == nil {
		return false
	}
	return stderrors.Is(err, errProviderTransient)
}

func isRetryableStatus(code int) bool {
	return code == http.StatusTooManyRequests || code >= http.StatusInternalServerError
}

func sanitizeSensitiveText(value, token string) string {
	value = strings.TrimSpace(value)
	if value == "" {
		return value
	}
	if token != "" {
		value = strings.ReplaceAll(value, token, "REDACTED")
	}
	return apiTokenParamRegex.ReplaceAllString(value, "api_token=REDACTED")
}

func redactAPIURL(rawURL string) string {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return rawURL
	}
	query := parsed.Query()
	if query.Has("api_token") {
		query.Set("api_token", "REDACTED")
		parsed.RawQuery = query.Encode()
	}
	return parsed.String()
}

func abbreviateBody(body []byte) string {
	text := strings.TrimSpace(string(body))
	if len(text) <= 240 {
		return text
	}
	return text[:240] + "..."
}
