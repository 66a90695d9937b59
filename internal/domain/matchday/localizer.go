package matchday

import (
	"time"

	"github.com/riskibarqy/football-scoreboard/internal/domain/fixture"
)

// Range is the half-open UTC interval [Start, End) covering one local calendar day.
type Range struct {
	Date  Date      `json:"date"`
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

func (r Range) Contains(t time.Time) bool {
	return !t.Before(r.Start) && t.Before(r.End)
}

type Bucket struct {
	Date     Date              `json:"date"`
	Matching []fixture.Fixture `json:"matching"`
	// Dropped lists fixtures skipped for a missing kickoff.
	Dropped []int64 `json:"dropped,omitempty"`
}

type Entry struct {
	Fixture fixture.Fixture `json:"fixture"`
	Result  Result          `json:"result"`
}

type VisibleBucket struct {
	Date     Date     `json:"date"`
	Category Category `json:"category"`
	Entries  []Entry  `json:"entries"`
	Hidden   int      `json:"hidden"`
	Dropped  []int64  `json:"dropped,omitempty"`
}

// Partition splits a batch relative to today. Every fixture lands in exactly one slice;
// fixtures without a kickoff go to Other.
type Partition struct {
	Yesterday []fixture.Fixture `json:"yesterday"`
	Today     []fixture.Fixture `json:"today"`
	Tomorrow  []fixture.Fixture `json:"tomorrow"`
	Other     []fixture.Fixture `json:"other"`
}

// Localizer maps UTC kickoffs onto the viewer's calendar days.
type Localizer struct {
	classifier *Classifier
}

func NewLocalizer(loc *time.Location, now func() time.Time) *Localizer {
	return &Localizer{classifier: NewClassifier(loc, now)}
}

func (l *Localizer) Classifier() *Classifier {
	return l.classifier
}

func (l *Localizer) Location() *time.Location {
	return l.classifier.loc
}

func (l *Localizer) Today() Date {
	return l.classifier.Today()
}

func (l *Localizer) LocalDate(t time.Time) Date {
	return DateOf(t, l.classifier.loc)
}

func (l *Localizer) DayRange(day Date) Range {
	return Range{
		Date:  day,
		Start: day.Midnight(l.classifier.loc).UTC(),
		End:   day.AddDays(1).Midnight(l.classifier.loc).UTC(),
	}
}

// RelativeRange returns the range offset days from today (-1 yesterday, 1 tomorrow).
func (l *Localizer) RelativeRange(offset int) Range {
	return l.DayRange(l.Today().AddDays(offset))
}

// Bucket keeps the fixtures whose local kickoff day equals target, ignoring status.
func (l *Localizer) Bucket(fixtures []fixture.Fixture, target Date) Bucket {
	out := Bucket{Date: target, Matching: make([]fixture.Fixture, 0, len(fixtures))}
	for _, item := range fixtures {
		if !item.HasKickoff() {
			out.Dropped = append(out.Dropped, item.ID)
			continue
		}
		if l.LocalDate(item.KickoffAt).Equal(target) {
			out.Matching = append(out.Matching, item)
		}
	}
	return out
}

// BucketVisible is the status-aware mode used by the main scoreboard.
func (l *Localizer) BucketVisible(fixtures []fixture.Fixture, target Date) VisibleBucket {
	now := l.classifier.now()
	out := VisibleBucket{
		Date:     target,
		Category: RelationOf(target, DateOf(now, l.classifier.loc)),
		Entries:  make([]Entry, 0, len(fixtures)),
	}
	for _, item := range fixtures {
		if !item.HasKickoff() {
			out.Dropped = append(out.Dropped, item.ID)
			continue
		}
		if !l.LocalDate(item.KickoffAt).Equal(target) {
			continue
		}
		res := l.classifier.classifyAt(now, item.KickoffAt, item.Envelope.StatusCode, target)
		if !res.ShouldShow {
			out.Hidden++
			continue
		}
		out.Entries = append(out.Entries, Entry{Fixture: item, Result: res})
	}
	return out
}

func (l *Localizer) Partition(fixtures []fixture.Fixture) Partition {
	today := l.Today()
	var out Partition
	for _, item := range fixtures {
		if !item.HasKickoff() {
			out.Other = append(out.Other, item)
			continue
		}
		switch RelationOf(l.LocalDate(item.KickoffAt), today) {
		case CategoryYesterday:
			out.Yesterday = append(out.Yesterday, item)
		case CategoryToday:
			out.Today = append(out.Today, item)
		case CategoryTomorrow:
			out.Tomorrow = append(out.Tomorrow, item)
		default:
			out.Other = append(out.Other, item)
		}
	}
	return out
}
