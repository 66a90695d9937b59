package footballapi

import (
	"bytes"
	"sort"
	"strings"
	"time"

	sonic "github.com/bytedance/sonic"
	"github.com/riskibarqy/football-scoreboard/internal/domain/fixture"
	"github.com/riskibarqy/football-scoreboard/internal/domain/standing"
)

type fixtureItem struct {
	Fixture struct {
		ID        int64      `json:"id"`
		Date      string     `json:"date"`
		Timestamp int64      `json:"timestamp"`
		Status    statusItem `json:"status"`
		Venue     venueItem  `json:"venue"`
	} `json:"fixture"`
	League leagueItem `json:"league"`
	Teams  struct {
		Home teamItem `json:"home"`
		Away teamItem `json:"away"`
	} `json:"teams"`
	Goals goalsItem `json:"goals"`
}

type statusItem struct {
	Short   string `json:"short"`
	Elapsed *int   `json:"elapsed"`
}

type venueItem struct {
	Name string `json:"name"`
	City string `json:"city"`
}

type leagueItem struct {
	ID      int64  `json:"id"`
	Name    string `json:"name"`
	Country string `json:"country"`
	Season  int    `json:"season"`
}

type teamItem struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
	Logo string `json:"logo"`
}

type goalsItem struct {
	Home *int `json:"home"`
	Away *int `json:"away"`
}

type deltaItem struct {
	Fixture struct {
		ID     int64      `json:"id"`
		Status statusItem `json:"status"`
	} `json:"fixture"`
	Goals goalsItem `json:"goals"`
}

type standingItem struct {
	Rank      int      `json:"rank"`
	Team      teamItem `json:"team"`
	Points    int      `json:"points"`
	GoalsDiff int      `json:"goalsDiff"`
	Group     string   `json:"group"`
	Form      string   `json:"form"`
	All       struct {
		Played int `json:"played"`
		Win    int `json:"win"`
		Draw   int `json:"draw"`
		Lose   int `json:"lose"`
		Goals  struct {
			For     int `json:"for"`
			Against int `json:"against"`
		} `json:"goals"`
	} `json:"all"`
}

type leagueStandingsItem struct {
	League struct {
		Standings [][]standingItem `json:"standings"`
	} `json:"league"`
}

func (f fixtureItem) toFixture() fixture.Fixture {
	return fixture.Fixture{
		ID:        f.Fixture.ID,
		KickoffAt: parseKickoff(f.Fixture.Date, f.Fixture.Timestamp),
		League: fixture.League{
			ID:      f.League.ID,
			Name:    strings.TrimSpace(f.League.Name),
			Country: strings.TrimSpace(f.League.Country),
			Season:  f.League.Season,
		},
		Home:  f.Teams.Home.toTeam(),
		Away:  f.Teams.Away.toTeam(),
		Venue: strings.TrimSpace(f.Fixture.Venue.Name),
		Envelope: fixture.Envelope{
			StatusCode: fixture.NormalizeStatus(f.Fixture.Status.Short),
			Elapsed:    f.Fixture.Status.Elapsed,
			HomeGoals:  f.Goals.Home,
			AwayGoals:  f.Goals.Away,
		},
	}
}

func (t teamItem) toTeam() fixture.Team {
	return fixture.Team{ID: t.ID, Name: strings.TrimSpace(t.Name), Logo: strings.TrimSpace(t.Logo)}
}

func (d deltaItem) toDelta() fixture.Delta {
	return fixture.Delta{
		FixtureID: d.Fixture.ID,
		Envelope: fixture.Envelope{
			StatusCode: fixture.NormalizeStatus(d.Fixture.Status.Short),
			Elapsed:    d.Fixture.Status.Elapsed,
			HomeGoals:  d.Goals.Home,
			AwayGoals:  d.Goals.Away,
		},
	}
}

// parseKickoff prefers the ISO date and falls back to the unix timestamp. A zero time
// means the provider sent nothing usable.
func parseKickoff(raw string, timestamp int64) time.Time {
	value := strings.TrimSpace(raw)
	if value != "" {
		layouts := []string{
			time.RFC3339,
			"2006-01-02T15:04:05Z07:00",
			"2006-01-02 15:04:05",
		}
		for _, layout := range layouts {
			parsed, err := time.Parse(layout, value)
			if err == nil {
				return parsed.UTC()
			}
		}
	}
	if timestamp > 0 {
		return time.Unix(timestamp, 0).UTC()
	}
	return time.Time{}
}

// decodeList accepts a bare JSON array or a {"response":[...]} envelope.
func decodeList[T any](raw []byte) ([]T, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 {
		return nil, nil
	}
	if trimmed[0] == '[' {
		var items []T
		if err := sonic.Unmarshal(trimmed, &items); err != nil {
			return nil, err
		}
		return items, nil
	}

	var envelope struct {
		Response []T `json:"response"`
	}
	if err := sonic.Unmarshal(trimmed, &envelope); err != nil {
		return nil, err
	}
	return envelope.Response, nil
}

func decodeStandings(raw []byte) ([]standingItem, error) {
	leagues, err := decodeList[leagueStandingsItem](raw)
	if err == nil {
		var rows []standingItem
		for _, league := range leagues {
			for _, group := range league.League.Standings {
				rows = append(rows, group...)
			}
		}
		if len(rows) > 0 {
			return rows, nil
		}
	}
	return decodeList[standingItem](raw)
}

func mapStandings(items []standingItem) []standing.Row {
	out := make([]standing.Row, 0, len(items))
	for _, item := range items {
		if item.Rank <= 0 || item.Team.ID <= 0 {
			continue
		}
		row := standing.Row{
			Rank:         item.Rank,
			TeamID:       item.Team.ID,
			TeamName:     strings.TrimSpace(item.Team.Name),
			Points:       item.Points,
			Played:       item.All.Played,
			Won:          item.All.Win,
			Draw:         item.All.Draw,
			Lost:         item.All.Lose,
			GoalsFor:     item.All.Goals.For,
			GoalsAgainst: item.All.Goals.Against,
			GoalsDiff:    item.GoalsDiff,
			Form:         strings.TrimSpace(item.Form),
			Group:        strings.TrimSpace(item.Group),
		}
		if row.Played <= 0 {
			row.Played = row.Won + row.Draw + row.Lost
		}
		if row.GoalsDiff == 0 && (row.GoalsFor != 0 || row.GoalsAgainst != 0) {
			row.GoalsDiff = row.GoalsFor - row.GoalsAgainst
		}
		out = append(out, row)
	}

	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Group != out[j].Group {
			return out[i].Group < out[j].Group
		}
		if out[i].Rank != out[j].Rank {
			return out[i].Rank < out[j].Rank
		}
		return out[i].TeamID < out[j].TeamID
	})
	return out
}
