package httpapi

import (
	"net/http"
	"strings"
	"time"

	"github.com/riskibarqy/football-scoreboard/internal/domain/fixture"
	"github.com/riskibarqy/football-scoreboard/internal/domain/matchday"
	"github.com/riskibarqy/football-scoreboard/internal/domain/standing"
	"github.com/riskibarqy/football-scoreboard/internal/usecase"
)

func (h *Handler) GetScoreboard(w http.ResponseWriter, r *http.Request) {
	ctx, span := startSpan(r.Context(), "httpapi.Handler.GetScoreboard")
	defer span.End()

	query := dateQuery{Date: strings.TrimSpace(r.URL.Query().Get("date"))}
	if err := h.validateRequest(ctx, query); err != nil {
		writeError(ctx, w, err)
		return
	}

	board, err := h.scoreboardService.Scoreboard(ctx, query.Date)
	if err != nil {
		h.logger.WarnContext(ctx, "get scoreboard failed", "date", query.Date, "error", err)
		writeError(ctx, w, err)
		return
	}

	writeSuccess(ctx, w, http.StatusOK, scoreboardToDTO(board))
}

func (h *Handler) ListFixturesByDate(w http.ResponseWriter, r *http.Request) {
	ctx, span := startSpan(r.Context(), "httpapi.Handler.ListFixturesByDate")
	defer span.End()

	query := requiredDateQuery{Date: strings.TrimSpace(r.URL.Query().Get("date"))}
	if err := h.validateRequest(ctx, query); err != nil {
		writeError(ctx, w, err)
		return
	}

	fixtures, err := h.scoreboardService.FixturesByDate(ctx, query.Date)
	if err != nil {
		h.logger.WarnContext(ctx, "list fixtures by date failed", "date", query.Date, "error", err)
		writeError(ctx, w, err)
		return
	}

	writeSuccess(ctx, w, http.StatusOK, fixturesToDTO(fixtures))
}

func (h *Handler) GetFixtureDays(w http.ResponseWriter, r *http.Request) {
	ctx, span := startSpan(r.Context(), "httpapi.Handler.GetFixtureDays")
	defer span.End()

	ranges := h.fixtureDayService.DayRanges()
	writeSuccess(ctx, w, http.StatusOK, dayRangesDTO{
		Timezone:  ranges.Timezone,
		Yesterday: rangeToDTO(ranges.Yesterday),
		Today:     rangeToDTO(ranges.Today),
		Tomorrow:  rangeToDTO(ranges.Tomorrow),
	})
}

func (h *Handler) ListLiveFixtures(w http.ResponseWriter, r *http.Request) {
	ctx, span := startSpan(r.Context(), "httpapi.Handler.ListLiveFixtures")
	defer span.End()

	fixtures, err := h.scoreboardService.LiveFixtures(ctx)
	if err != nil {
		h.logger.WarnContext(ctx, "list live fixtures failed", "error", err)
		writeError(ctx, w, err)
		return
	}

	writeSuccess(ctx, w, http.StatusOK, fixturesToDTO(fixtures))
}

func (h *Handler) ListFixturesByLeague(w http.ResponseWriter, r *http.Request) {
	ctx, span := startSpan(r.Context(), "httpapi.Handler.ListFixturesByLeague")
	defer span.End()

	leagueID, err := h.parseIDParam(ctx, r, "leagueID")
	if err != nil {
		writeError(ctx, w, err)
		return
	}

	fixtures, err := h.scoreboardService.LeagueFixtures(ctx, leagueID)
	if err != nil {
		h.logger.WarnContext(ctx, "list fixtures by league failed", "league_id", leagueID, "error", err)
		writeError(ctx, w, err)
		return
	}

	writeSuccess(ctx, w, http.StatusOK, fixturesToDTO(fixtures))
}

func (h *Handler) ListLeagueStandings(w http.ResponseWriter, r *http.Request) {
	ctx, span := startSpan(r.Context(), "httpapi.Handler.ListLeagueStandings")
	defer span.End()

	leagueID, err := h.parseIDParam(ctx, r, "leagueID")
	if err != nil {
		writeError(ctx, w, err)
		return
	}

	rows, err := h.scoreboardService.Standings(ctx, leagueID)
	if err != nil {
		h.logger.WarnContext(ctx, "list league standings failed", "league_id", leagueID, "error", err)
		writeError(ctx, w, err)
		return
	}

	items := make([]standingDTO, 0, len(rows))
	for _, row := range rows {
		items = append(items, standingToDTO(row))
	}
	writeSuccess(ctx, w, http.StatusOK, items)
}

type teamDTO struct {
	ID      int64  `json:"id"`
	Name    string `json:"name"`
	LogoURL string `json:"logoUrl,omitempty"`
}

type leagueDTO struct {
	ID      int64  `json:"id"`
	Name    string `json:"name"`
	Country string `json:"country,omitempty"`
	Season  int    `json:"season,omitempty"`
}

type fixtureDTO struct {
	ID        int64     `json:"id"`
	Kickoff   string    `json:"kickoffAt,omitempty"`
	League    leagueDTO `json:"league"`
	HomeTeam  teamDTO   `json:"homeTeam"`
	AwayTeam  teamDTO   `json:"awayTeam"`
	Venue     string    `json:"venue,omitempty"`
	Status    string    `json:"status"`
	Phase     string    `json:"phase"`
	Elapsed   *int      `json:"elapsed,omitempty"`
	HomeScore *int      `json:"homeScore,omitempty"`
	AwayScore *int      `json:"awayScore,omitempty"`
}

type scoreboardEntryDTO struct {
	Fixture         fixtureDTO `json:"fixture"`
	Category        string     `json:"category"`
	Reason          string     `json:"reason"`
	PossiblyDelayed bool       `json:"possiblyDelayed,omitempty"`
}

type scoreboardDTO struct {
	Date     string               `json:"date"`
	Category string               `json:"category"`
	Timezone string               `json:"timezone"`
	Live     int                  `json:"live"`
	Hidden   int                  `json:"hidden"`
	Entries  []scoreboardEntryDTO `json:"entries"`
}

type dayRangeDTO struct {
	Date  string `json:"date"`
	Start string `json:"start"`
	End   string `json:"end"`
}

type dayRangesDTO struct {
	Timezone  string      `json:"timezone"`
	Yesterday dayRangeDTO `json:"yesterday"`
	Today     dayRangeDTO `json:"today"`
	Tomorrow  dayRangeDTO `json:"tomorrow"`
}

type standingDTO struct {
	Rank         int    `json:"rank"`
	Group        string `json:"group,omitempty"`
	TeamID       int64  `json:"teamId"`
	TeamName     string `json:"teamName"`
	Played       int    `json:"played"`
	Won          int    `json:"won"`
	Draw         int    `json:"draw"`
	Lost         int    `json:"lost"`
	GoalsFor     int    `json:"goalsFor"`
	GoalsAgainst int    `json:"goalsAgainst"`
	GoalDiff     int    `json:"goalDifference"`
	Points       int    `json:"points"`
	Form         string `json:"form,omitempty"`
}

type deltaDTO struct {
	FixtureID int64  `json:"fixtureId"`
	Status    string `json:"status"`
	Phase     string `json:"phase"`
	Elapsed   *int   `json:"elapsed,omitempty"`
	HomeScore *int   `json:"homeScore,omitempty"`
	AwayScore *int   `json:"awayScore,omitempty"`
}

func fixtureToDTO(v fixture.Fixture) fixtureDTO {
	out := fixtureDTO{
		ID:        v.ID,
		League:    leagueDTO{ID: v.League.ID, Name: v.League.Name, Country: v.League.Country, Season: v.League.Season},
		HomeTeam:  teamDTO{ID: v.Home.ID, Name: v.Home.Name, LogoURL: v.Home.Logo},
		AwayTeam:  teamDTO{ID: v.Away.ID, Name: v.Away.Name, LogoURL: v.Away.Logo},
		Venue:     v.Venue,
		Status:    fixture.NormalizeStatus(v.Envelope.StatusCode),
		Phase:     string(v.Phase()),
		Elapsed:   v.Envelope.Elapsed,
		HomeScore: v.Envelope.HomeGoals,
		AwayScore: v.Envelope.AwayGoals,
	}
	if v.HasKickoff() {
		out.Kickoff = v.KickoffAt.UTC().Format(time.RFC3339)
	}
	return out
}

func fixturesToDTO(items []fixture.Fixture) []fixtureDTO {
	out := make([]fixtureDTO, 0, len(items))
	for _, item := range items {
		out = append(out, fixtureToDTO(item))
	}
	return out
}

func scoreboardToDTO(board usecase.Scoreboard) scoreboardDTO {
	entries := make([]scoreboardEntryDTO, 0, len(board.Entries))
	for _, entry := range board.Entries {
		entries = append(entries, scoreboardEntryDTO{
			Fixture:         fixtureToDTO(entry.Fixture),
			Category:        string(entry.Result.Category),
			Reason:          entry.Result.Reason,
			PossiblyDelayed: entry.Result.PossiblyDelayed,
		})
	}
	return scoreboardDTO{
		Date:     board.Date.String(),
		Category: string(board.Category),
		Timezone: board.Timezone,
		Live:     board.Live,
		Hidden:   board.Hidden,
		Entries:  entries,
	}
}

func rangeToDTO(r matchday.Range) dayRangeDTO {
	return dayRangeDTO{
		Date:  r.Date.String(),
		Start: r.Start.UTC().Format(time.RFC3339),
		End:   r.End.UTC().Format(time.RFC3339),
	}
}

func standingToDTO(row standing.Row) standingDTO {
	return standingDTO{
		Rank:         row.Rank,
		Group:        row.Group,
		TeamID:       row.TeamID,
		TeamName:     row.TeamName,
		Played:       row.Played,
		Won:          row.Won,
		Draw:         row.Draw,
		Lost:         row.Lost,
		GoalsFor:     row.GoalsFor,
		GoalsAgainst: row.GoalsAgainst,
		GoalDiff:     row.GoalsDiff,
		Points:       row.Points,
		Form:         row.Form,
	}
}

func deltaToDTO(d fixture.Delta) deltaDTO {
	return deltaDTO{
		FixtureID: d.FixtureID,
		Status:    fixture.NormalizeStatus(d.Envelope.StatusCode),
		Phase:     string(fixture.PhaseOf(d.Envelope.StatusCode)),
		Elapsed:   d.Envelope.Elapsed,
		HomeScore: d.Envelope.HomeGoals,
		AwayScore: d.Envelope.AwayGoals,
	}
}

