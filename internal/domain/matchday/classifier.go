package matchday

import (
	"time"

	"github.com/riskibarqy/football-scoreboard/internal/domain/fixture"
)

type Category string

const (
	CategoryToday     Category = "today"
	CategoryYesterday Category = "yesterday"
	CategoryTomorrow  Category = "tomorrow"
	CategoryOther     Category = "other"
)

const (
	ReasonMissingKickoff   = "missing kickoff time"
	ReasonOtherDay         = "kickoff falls on another local day"
	ReasonUnknownStatus    = "unknown status code"
	ReasonPastEnded        = "finished match on a past day"
	ReasonPastNotEnded     = "non-final status on a past day"
	ReasonFutureNotStarted = "scheduled match on a future day"
	ReasonFutureStarted    = "started or finished status on a future day"
	ReasonTodayLive        = "live match"
	ReasonTodayScheduled   = "scheduled match"
	ReasonTodayDelayed     = "scheduled match past kickoff, possibly delayed"
	ReasonTodayEnded       = "finished match"
)

// Result is the derived visibility of one fixture for one target day. It is never stored.
type Result struct {
	Category        Category `json:"category"`
	ShouldShow      bool     `json:"should_show"`
	Reason          string   `json:"reason"`
	PossiblyDelayed bool     `json:"possibly_delayed,omitempty"`
}

// Classifier decides whether a fixture belongs on a viewer's calendar day and whether
// its status is plausible for that day.
type Classifier struct {
	loc *time.Location
	now func() time.Time
}

func NewClassifier(loc *time.Location, now func() time.Time) *Classifier {
	if loc == nil {
		loc = time.Local
	}
	if now == nil {
		now = time.Now
	}
	return &Classifier{loc: loc, now: now}
}

func (c *Classifier) Location() *time.Location {
	return c.loc
}

func (c *Classifier) Today() Date {
	return DateOf(c.now(), c.loc)
}

// Classify evaluates one fixture against target using the current clock.
func (c *Classifier) Classify(kickoff time.Time, statusCode string, target Date) Result {
	return c.classifyAt(c.now(), kickoff, statusCode, target)
}

func (c *Classifier) classifyAt(now, kickoff time.Time, statusCode string, target Date) Result {
	if kickoff.IsZero() {
		return hidden(CategoryOther, ReasonMissingKickoff)
	}
	if !DateOf(kickoff, c.loc).Equal(target) {
		return hidden(CategoryOther, ReasonOtherDay)
	}

	phase := fixture.PhaseOf(statusCode)
	if phase == fixture.PhaseUnknown {
		return hidden(CategoryOther, ReasonUnknownStatus)
	}

	today := DateOf(now, c.loc)
	category := RelationOf(target, today)

	switch {
	case target.Before(today):
		if phase == fixture.PhaseEnded {
			return shown(category, ReasonPastEnded)
		}
		return hidden(category, ReasonPastNotEnded)
	case target.After(today):
		if phase == fixture.PhaseNotStarted {
			return shown(category, ReasonFutureNotStarted)
		}
		return hidden(category, ReasonFutureStarted)
	}

	switch phase {
	case fixture.PhaseLive:
		return shown(category, ReasonTodayLive)
	case fixture.PhaseEnded:
		return shown(category, ReasonTodayEnded)
	default:
		if !kickoff.After(now) {
			res := shown(category, ReasonTodayDelayed)
			res.PossiblyDelayed = true
			return res
		}
		return shown(category, ReasonTodayScheduled)
	}
}

// RelationOf names target relative to today.
func RelationOf(target, today Date) Category {
	switch {
	case target.Equal(today):
		return CategoryToday
	case target.Equal(today.AddDays(-1)):
		return CategoryYesterday
	case target.Equal(today.AddDays(1)):
		return CategoryTomorrow
	default:
		return CategoryOther
	}
}

func shown(category Category, reason string) Result {
	return Result{Category: category, ShouldShow: true, Reason: reason}
}

func hidden(category Category, reason string) Result {
	return Result{Category: category, ShouldShow: false, Reason: reason}
}
