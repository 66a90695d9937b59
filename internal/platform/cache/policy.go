package cache

import (
	"time"

	"github.com/riskibarqy/football-scoreboard/internal/domain/matchday"
)

// Class names a freshness tier. Every write carries one and its TTL follows from it.
type Class string

const (
	ClassLive           Class = "live"
	ClassFixturesToday  Class = "fixtures_today"
	ClassFixturesFuture Class = "fixtures_future"
	ClassFixturesPast   Class = "fixtures_past"
	ClassStandings      Class = "standings"
	ClassStatic         Class = "static"
	ClassUnclassified   Class = "unclassified"
)

var ttlByClass = map[Class]time.Duration{
	ClassLive:           30 * time.Second,
	ClassFixturesToday:  2 * time.Minute,
	ClassFixturesFuture: 30 * time.Minute,
	ClassFixturesPast:   60 * time.Minute,
	ClassStandings:      15 * time.Minute,
	ClassStatic:         24 * time.Hour,
	ClassUnclassified:   5 * time.Minute,
}

// TTLFor returns the lifetime of class. Unknown classes get the unclassified TTL.
func TTLFor(class Class) time.Duration {
	if ttl, ok := ttlByClass[class]; ok {
		return ttl
	}
	return ttlByClass[ClassUnclassified]
}

func (c Class) Valid() bool {
	_, ok := ttlByClass[c]
	return ok
}

// Persistable reports whether entries of this class may reach the persistent tier.
func (c Class) Persistable() bool {
	return c != ClassLive
}

func normalizeClass(c Class) Class {
	if c.Valid() {
		return c
	}
	return ClassUnclassified
}

// FixturesClassFor picks the fixtures class for a target day relative to today.
func FixturesClassFor(target, today matchday.Date) Class {
	switch {
	case target.Before(today):
		return ClassFixturesPast
	case target.After(today):
		return ClassFixturesFuture
	default:
		return ClassFixturesToday
	}
}
