package usecase

import (
	"context"
	"fmt"
	"strconv"

	"github.com/cespare/xxhash/v2"
	"github.com/riskibarqy/football-scoreboard/internal/domain/fixture"
	"github.com/riskibarqy/football-scoreboard/internal/domain/matchday"
	"github.com/riskibarqy/football-scoreboard/internal/platform/cache"
	"github.com/riskibarqy/football-scoreboard/internal/platform/logging"
)

const (
	bucketModeDate    = "date"
	bucketModeVisible = "visible"
)

type DayRanges struct {
	Timezone  string         `json:"timezone"`
	Yesterday matchday.Range `json:"yesterday"`
	Today     matchday.Range `json:"today"`
	Tomorrow  matchday.Range `json:"tomorrow"`
}

// FixtureDayService is the cached face of the day localizer.
type FixtureDayService struct {
	localizer *matchday.Localizer
	cache     *cache.Manager
	logger    *logging.Logger
}

func NewFixtureDayService(localizer *matchday.Localizer, cacheManager *cache.Manager, logger *logging.Logger) *FixtureDayService {
	if logger == nil {
		logger = logging.Default()
	}
	return &FixtureDayService{
		localizer: localizer,
		cache:     cacheManager,
		logger:    logger,
	}
}

func (s *FixtureDayService) Localizer() *matchday.Localizer {
	return s.localizer
}

// BucketFixtures keeps fixtures whose local kickoff day equals target, status ignored.
func (s *FixtureDayService) BucketFixtures(ctx context.Context, fixtures []fixture.Fixture, target matchday.Date) (matchday.Bucket, error) {
	ctx, span := startUsecaseSpan(ctx, "usecase.FixtureDayService.BucketFixtures")
	defer span.End()

	if !target.Valid() {
		return matchday.Bucket{}, fmt.Errorf("%w: invalid target date %q", ErrInvalidInput, target.String())
	}

	today := s.localizer.Today()
	key := s.bucketKey(bucketModeDate, target, today, fixtures)
	bucket, err := cache.GetOrLoad(ctx, s.cache, key, cache.FixturesClassFor(target, today), func(context.Context) (matchday.Bucket, error) {
		return s.localizer.Bucket(fixtures, target), nil
	})
	if err != nil {
		return matchday.Bucket{}, fmt.Errorf("bucket fixtures date=%s: %w", target, err)
	}
	s.warnDropped(ctx, target, bucket.Dropped)
	return bucket, nil
}

// VisibleFixtures is the classifier-backed bucket used by the scoreboard.
func (s *FixtureDayService) VisibleFixtures(ctx context.Context, fixtures []fixture.Fixture, target matchday.Date) (matchday.VisibleBucket, error) {
	ctx, span := startUsecaseSpan(ctx, "usecase.FixtureDayService.VisibleFixtures")
	defer span.End()

	if !target.Valid() {
		return matchday.VisibleBucket{}, fmt.Errorf("%w: invalid target date %q", ErrInvalidInput, target.String())
	}

	today := s.localizer.Today()
	key := s.bucketKey(bucketModeVisible, target, today, fixtures)
	bucket, err := cache.GetOrLoad(ctx, s.cache, key, cache.FixturesClassFor(target, today), func(context.Context) (matchday.VisibleBucket, error) {
		return s.localizer.BucketVisible(fixtures, target), nil
	})
	if err != nil {
		return matchday.VisibleBucket{}, fmt.Errorf("visible fixtures date=%s: %w", target, err)
	}
	s.warnDropped(ctx, target, bucket.Dropped)
	return bucket, nil
}

// DayRanges returns yesterday, today and tomorrow as UTC intervals for the viewer zone.
func (s *FixtureDayService) DayRanges() DayRanges {
	return DayRanges{
		Timezone:  s.localizer.Location().String(),
		Yesterday: s.localizer.RelativeRange(-1),
		Today:     s.localizer.RelativeRange(0),
		Tomorrow:  s.localizer.RelativeRange(1),
	}
}

func (s *FixtureDayService) warnDropped(ctx context.Context, target matchday.Date, dropped []int64) {
	if len(dropped) == 0 {
		return
	}
	s.logger.WarnContext(ctx, "fixtures without kickoff time skipped",
		"date", target.String(),
		"count", len(dropped),
		"fixture_ids", dropped,
	)
}

// bucketKey is fixtures:bucket:{mode}:{date}:{tz}:{fingerprint}. The fingerprint covers
// today's date and every field that can change a bucket, so a new batch never reads a
// stale bucket.
func (s *FixtureDayService) bucketKey(mode string, target, today matchday.Date, fixtures []fixture.Fixture) string {
	return fmt.Sprintf("fixtures:bucket:%s:%s:%s:%016x",
		mode,
		target.String(),
		s.localizer.Location().String(),
		fingerprintFixtures(today, fixtures),
	)
}

func fingerprintFixtures(today matchday.Date, fixtures []fixture.Fixture) uint64 {
	digest := xxhash.New()
	buf := make([]byte, 0, 96)
	buf = append(buf, today.String()...)
	_, _ = digest.Write(buf)

	for _, item := range fixtures {
		buf = buf[:0]
		buf = append(buf, '|')
		buf = strconv.AppendInt(buf, item.ID, 10)
		buf = append(buf, ':')
		buf = strconv.AppendInt(buf, item.KickoffAt.UnixNano(), 10)
		buf = append(buf, ':')
		buf = append(buf, fixture.NormalizeStatus(item.Envelope.StatusCode)...)
		buf = appendOptionalInt(buf, item.Envelope.Elapsed)
		buf = appendOptionalInt(buf, item.Envelope.HomeGoals)
		buf = appendOptionalInt(buf, item.Envelope.AwayGoals)
		_, _ = digest.Write(buf)
	}
	return digest.Sum64()
}

func appendOptionalInt(buf []byte, value *int) []byte {
	buf = append(buf, ':')
	if value == nil {
		return append(buf, '-')
	}
	return strconv.AppendInt(buf, int64(*value), 10)
}
