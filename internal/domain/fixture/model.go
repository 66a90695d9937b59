package fixture

import "time"

// Fixture is one scheduled or played match. Identity fields are set once by the
// provider mapper; only Envelope is ever replaced afterwards.
type Fixture struct {
	ID        int64     `json:"id"`
	KickoffAt time.Time `json:"kickoff_at"`
	League    League    `json:"league"`
	Home      Team      `json:"home"`
	Away      Team      `json:"away"`
	Venue     string    `json:"venue,omitempty"`
	Envelope  Envelope  `json:"envelope"`
}

type League struct {
	ID      int64  `json:"id"`
	Name    string `json:"name"`
	Country string `json:"country,omitempty"`
	Season  int    `json:"season,omitempty"`
}

type Team struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
	Logo string `json:"logo,omitempty"`
}

// Envelope holds the fields that change while a match is played.
type Envelope struct {
	StatusCode string `json:"status_code"`
	Elapsed    *int   `json:"elapsed,omitempty"`
	HomeGoals  *int   `json:"home_goals,omitempty"`
	AwayGoals  *int   `json:"away_goals,omitempty"`
}

// Delta is the minimal live payload for one fixture.
type Delta struct {
	FixtureID int64    `json:"fixture_id"`
	Envelope  Envelope `json:"envelope"`
}

// ApplyEnvelope returns a copy of f carrying env.
func (f Fixture) ApplyEnvelope(env Envelope) Fixture {
	f.Envelope = env.clone()
	return f
}

func (f Fixture) Phase() Phase {
	return PhaseOf(f.Envelope.StatusCode)
}

// HasKickoff reports whether the provider supplied a usable kickoff instant.
func (f Fixture) HasKickoff() bool {
	return !f.KickoffAt.IsZero()
}

func (e Envelope) Equal(other Envelope) bool {
	return NormalizeStatus(e.StatusCode) == NormalizeStatus(other.StatusCode) &&
		equalIntPtr(e.Elapsed, other.Elapsed) &&
		equalIntPtr(e.HomeGoals, other.HomeGoals) &&
		equalIntPtr(e.AwayGoals, other.AwayGoals)
}

func (e Envelope) clone() Envelope {
	return Envelope{
		StatusCode: e.StatusCode,
		Elapsed:    cloneIntPtr(e.Elapsed),
		HomeGoals:  cloneIntPtr(e.HomeGoals),
		AwayGoals:  cloneIntPtr(e.AwayGoals),
	}
}

func equalIntPtr(a, b *int) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}

func cloneIntPtr(v *int) *int {
	if v == nil {
		return nil
	}
	out := *v
	return &out
}

// IntPtr is a convenience for building envelopes.
func IntPtr(v int) *int {
	return &v
}
