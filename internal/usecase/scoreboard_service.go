package usecase

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/riskibarqy/football-scoreboard/internal/domain/fixture"
	"github.com/riskibarqy/football-scoreboard/internal/domain/matchday"
	"github.com/riskibarqy/football-scoreboard/internal/domain/standing"
	"github.com/riskibarqy/football-scoreboard/internal/platform/cache"
	"github.com/riskibarqy/football-scoreboard/internal/platform/logging"
	"github.com/riskibarqy/football-scoreboard/internal/platform/tracing"
	"github.com/sourcegraph/conc/pool"
	"go.opentelemetry.io/otel/attribute"
)

// LiveFixtureKey is where the live subscriber writes the latest envelope of a fixture.
func LiveFixtureKey(fixtureID int64) string {
	return "live:fixture:" + strconv.FormatInt(fixtureID, 10)
}

type Scoreboard struct {
	Date     matchday.Date     `json:"date"`
	Category matchday.Category `json:"category"`
	Timezone string            `json:"timezone"`
	Entries  []matchday.Entry  `json:"entries"`
	Hidden   int               `json:"hidden"`
	Live     int               `json:"live"`
}

type ScoreboardService struct {
	fixtures  fixture.Source
	standings standing.Source
	days      *FixtureDayService
	cache     *cache.Manager
	logger    *logging.Logger
}

func NewScoreboardService(
	fixtures fixture.Source,
	standings standing.Source,
	days *FixtureDayService,
	cacheManager *cache.Manager,
	logger *logging.Logger,
) *ScoreboardService {
	if logger == nil {
		logger = logging.Default()
	}
	return &ScoreboardService{
		fixtures:  fixtures,
		standings: standings,
		days:      days,
		cache:     cacheManager,
		logger:    logger,
	}
}

// FixturesByDate returns every fixture whose kickoff falls on date in the viewer zone,
// with live envelopes applied.
func (s *ScoreboardService) FixturesByDate(ctx context.Context, date string) ([]fixture.Fixture, error) {
	ctx, span := startUsecaseSpan(ctx, "usecase.ScoreboardService.FixturesByDate", attribute.String("scoreboard.date", date))
	defer span.End()

	target, err := parseTargetDate(date)
	if err != nil {
		return nil, err
	}

	items, err := s.fixturesForLocalDay(ctx, target)
	if err != nil {
		return nil, err
	}
	bucket, err := s.days.BucketFixtures(ctx, items, target)
	if err != nil {
		return nil, err
	}
	return bucket.Matching, nil
}

// Scoreboard is the main page read: fixtures for the day, overlaid with live envelopes,
// filtered by the temporal classifier.
func (s *ScoreboardService) Scoreboard(ctx context.Context, date string) (Scoreboard, error) {
	ctx, span := startUsecaseSpan(ctx, "usecase.ScoreboardService.Scoreboard", attribute.String("scoreboard.date", date))
	defer span.End()

	var target matchday.Date
	if strings.TrimSpace(date) == "" {
		target = s.days.Localizer().Today()
	} else {
		parsed, err := parseTargetDate(date)
		if err != nil {
			return Scoreboard{}, err
		}
		target = parsed
	}

	items, err := s.fixturesForLocalDay(ctx, target)
	if err != nil {
		tracing.Fail(span, err)
		return Scoreboard{}, err
	}
	bucket, err := s.days.VisibleFixtures(ctx, items, target)
	if err != nil {
		return Scoreboard{}, err
	}

	live := 0
	for _, entry := range bucket.Entries {
		if entry.Fixture.Phase() == fixture.PhaseLive {
			live++
		}
	}
	return Scoreboard{
		Date:     bucket.Date,
		Category: bucket.Category,
		Timezone: s.days.Localizer().Location().String(),
		Entries:  bucket.Entries,
		Hidden:   bucket.Hidden,
		Live:     live,
	}, nil
}

func (s *ScoreboardService) LiveFixtures(ctx context.Context) ([]fixture.Fixture, error) {
	ctx, span := startUsecaseSpan(ctx, "usecase.ScoreboardService.LiveFixtures")
	defer span.End()

	items, err := cache.GetOrLoad(ctx, s.cache, "fixtures:live", cache.ClassLive, func(ctx context.Context) ([]fixture.Fixture, error) {
		return s.fixtures.FetchLiveFixtures(ctx)
	})
	if err != nil {
		tracing.Fail(span, err)
		return nil, fmt.Errorf("fetch live fixtures: %w", err)
	}
	return s.overlayLive(ctx, items), nil
}

func (s *ScoreboardService) LeagueFixtures(ctx context.Context, leagueID int64) ([]fixture.Fixture, error) {
	ctx, span := startUsecaseSpan(ctx, "usecase.ScoreboardService.LeagueFixtures", attribute.Int64("league.id", leagueID))
	defer span.End()

	if leagueID <= 0 {
		return nil, fmt.Errorf("%w: league id must be greater than zero", ErrInvalidInput)
	}
	key := "fixtures:league:" + strconv.FormatInt(leagueID, 10)
	items, err := cache.GetOrLoad(ctx, s.cache, key, cache.ClassUnclassified, func(ctx context.Context) ([]fixture.Fixture, error) {
		return s.fixtures.FetchLeagueFixtures(ctx, leagueID)
	})
	if err != nil {
		tracing.Fail(span, err)
		return nil, fmt.Errorf("fetch league fixtures league_id=%d: %w", leagueID, err)
	}
	return s.overlayLive(ctx, items), nil
}

func (s *ScoreboardService) Standings(ctx context.Context, leagueID int64) ([]standing.Row, error) {
	ctx, span := startUsecaseSpan(ctx, "usecase.ScoreboardService.Standings", attribute.Int64("league.id", leagueID))
	defer span.End()

	if leagueID <= 0 {
		return nil, fmt.Errorf("%w: league id must be greater than zero", ErrInvalidInput)
	}
	key := "standings:league:" + strconv.FormatInt(leagueID, 10)
	rows, err := cache.GetOrLoad(ctx, s.cache, key, cache.ClassStandings, func(ctx context.Context) ([]standing.Row, error) {
		return s.standings.FetchLeagueStandings(ctx, leagueID)
	})
	if err != nil {
		tracing.Fail(span, err)
		return nil, fmt.Errorf("fetch standings league_id=%d: %w", leagueID, err)
	}
	return rows, nil
}

// Prefetch warms yesterday, today and tomorrow concurrently.
func (s *ScoreboardService) Prefetch(ctx context.Context) error {
	ctx, span := startUsecaseSpan(ctx, "usecase.ScoreboardService.Prefetch")
	defer span.End()

	today := s.days.Localizer().Today()
	p := pool.New().WithMaxGoroutines(3).WithContext(ctx)
	for _, offset := range []int{-1, 0, 1} {
		day := today.AddDays(offset)
		p.Go(func(ctx context.Context) error {
			if _, err := s.fixturesForLocalDay(ctx, day); err != nil {
				return fmt.Errorf("prefetch date=%s: %w", day, err)
			}
			return nil
		})
	}

	started := time.Now()
	if err := p.Wait(); err != nil {
		tracing.Fail(span, err)
		s.logger.WarnContext(ctx, "scoreboard prefetch incomplete", "error", err)
		return err
	}
	s.logger.InfoContext(ctx, "scoreboard prefetch complete", "today", today.String(), "took", time.Since(started))
	return nil
}

// fixturesForLocalDay loads the provider dates that overlap the local day. A local day
// spans two UTC dates whenever the zone has a non-zero offset.
func (s *ScoreboardService) fixturesForLocalDay(ctx context.Context, target matchday.Date) ([]fixture.Fixture, error) {
	localizer := s.days.Localizer()
	dayRange := localizer.DayRange(target)
	first := matchday.DateOf(dayRange.Start, time.UTC)
	last := matchday.DateOf(dayRange.End.Add(-time.Nanosecond), time.UTC)
	todayRange := localizer.DayRange(localizer.Today())

	seen := make(map[int64]struct{})
	var out []fixture.Fixture
	for day := first; !day.After(last); day = day.AddDays(1) {
		providerDate := day.String()
		class := providerDateClass(day, todayRange)
		items, err := cache.GetOrLoad(ctx, s.cache, "fixtures:date:"+providerDate, class, func(ctx context.Context) ([]fixture.Fixture, error) {
			return s.fixtures.FetchFixturesByDate(ctx, providerDate)
		})
		if err != nil {
			return nil, fmt.Errorf("fetch fixtures date=%s: %w", providerDate, err)
		}
		for _, item := range items {
			if _, dup := seen[item.ID]; dup {
				continue
			}
			seen[item.ID] = struct{}{}
			out = append(out, item)
		}
	}
	return s.overlayLive(ctx, out), nil
}

// providerDateClass classes one UTC provider date. The key is shared by the two local
// days it feeds, so a date overlapping today's local range is always a today entry.
func providerDateClass(day matchday.Date, today matchday.Range) cache.Class {
	start := day.Midnight(time.UTC)
	end := day.AddDays(1).Midnight(time.UTC)
	switch {
	case start.Before(today.End) && end.After(today.Start):
		return cache.ClassFixturesToday
	case !end.After(today.Start):
		return cache.ClassFixturesPast
	default:
		return cache.ClassFixturesFuture
	}
}

// overlayLive swaps in envelopes the live subscriber has cached. The input is not modified.
func (s *ScoreboardService) overlayLive(ctx context.Context, items []fixture.Fixture) []fixture.Fixture {
	out := make([]fixture.Fixture, len(items))
	for i, item := range items {
		if env, ok := cache.Peek[fixture.Envelope](s.cache, LiveFixtureKey(item.ID)); ok {
			item = item.ApplyEnvelope(env)
		}
		out[i] = item
	}
	return out
}

func parseTargetDate(value string) (matchday.Date, error) {
	target, err := matchday.ParseDate(strings.TrimSpace(value))
	if err != nil {
		return matchday.Date{}, fmt.Errorf("%w: date must be YYYY-MM-DD, got %q", ErrInvalidInput, value)
	}
	return target, nil
}
