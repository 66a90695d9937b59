package fixture

import "context"

// Source reads full fixture payloads from the data provider.
type Source interface {
	FetchFixturesByDate(ctx context.Context, date string) ([]Fixture, error)
	FetchLiveFixtures(ctx context.Context) ([]Fixture, error)
	FetchLeagueFixtures(ctx context.Context, leagueID int64) ([]Fixture, error)
}

// DeltaSource reads only the mutable envelope for a batch of fixtures.
type DeltaSource interface {
	FetchSelectiveUpdates(ctx context.Context, fixtureIDs []int64) ([]Delta, error)
}

// Prober is a lightweight reachability check for the provider.
type Prober interface {
	Ping(ctx context.Context) error
}
