package httpapi

import "net/http"

func registerSystemRoutes(mux *http.ServeMux, handler *Handler, docsEnabled bool) {
	mux.HandleFunc("GET /healthz", handler.Healthz)
	mux.Handle("GET /metrics", handler.metricsHandler())
	mux.HandleFunc("GET /v1/cache/stats", handler.GetCacheStats)
	if !docsEnabled {
		return
	}

	mux.HandleFunc("GET /openapi.yaml", handler.OpenAPI)
	mux.HandleFunc("GET /docs", handler.SwaggerUI)
	mux.HandleFunc("GET /docs/", handler.SwaggerUI)
}

func registerScoreboardRoutes(mux *http.ServeMux, handler *Handler) {
	mux.HandleFunc("GET /v1/scoreboard", handler.GetScoreboard)
	mux.HandleFunc("GET /v1/fixtures", handler.ListFixturesByDate)
	mux.HandleFunc("GET /v1/fixtures/days", handler.GetFixtureDays)
	mux.HandleFunc("GET /v1/fixtures/live", handler.ListLiveFixtures)
	mux.HandleFunc("GET /v1/fixtures/{fixtureID}/updates", handler.StreamFixtureUpdates)
	mux.HandleFunc("GET /v1/leagues/{leagueID}/fixtures", handler.ListFixturesByLeague)
	mux.HandleFunc("GET /v1/leagues/{leagueID}/standings", handler.ListLeagueStandings)
}
