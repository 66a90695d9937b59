package standing

import "context"

// Row is one team line in a league table.
type Row struct {
	Rank         int    `json:"rank"`
	TeamID       int64  `json:"team_id"`
	TeamName     string `json:"team_name"`
	Points       int    `json:"points"`
	Played       int    `json:"played"`
	Won          int    `json:"won"`
	Draw         int    `json:"draw"`
	Lost         int    `json:"lost"`
	GoalsFor     int    `json:"goals_for"`
	GoalsAgainst int    `json:"goals_against"`
	GoalsDiff    int    `json:"goals_diff"`
	Form         string `json:"form,omitempty"`
	Group        string `json:"group,omitempty"`
}

// Source reads league tables from the data provider.
type Source interface {
	FetchLeagueStandings(ctx context.Context, leagueID int64) ([]Row, error)
}
