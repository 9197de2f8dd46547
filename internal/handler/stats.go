package handler

import (
	"log/slog"
	"net/http"

	"github.com/sakif/reading-challenge/internal/service"
)

// StatsHandler serves the derived, read-only views: personal stats, monthly
// progress and the leaderboard. Nothing here is cached.
type StatsHandler struct {
	stats       *service.StatsService
	leaderboard *service.LeaderboardService
	logger      *slog.Logger
}

func NewStatsHandler(stats *service.StatsService, leaderboard *service.LeaderboardService, logger *slog.Logger) *StatsHandler {
	return &StatsHandler{stats: stats, leaderboard: leaderboard, logger: logger}
}

// HTTP: GET /api/stats
func (h *StatsHandler) HandleStats(w http.ResponseWriter, r *http.Request) {
	uid, err := sessionUser(r)
	if err != nil {
		writeError(w, err)
		return
	}

	s, err := h.stats.Get(r.Context(), uid)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, s)
}

// HTTP: GET /api/progress
func (h *StatsHandler) HandleProgress(w http.ResponseWriter, r *http.Request) {
	uid, err := sessionUser(r)
	if err != nil {
		writeError(w, err)
		return
	}

	p, err := h.stats.Progress(r.Context(), uid)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

// HandleLeaderboard returns this month's top readers.
//
// HTTP: GET /api/leaderboard?limit=10
func (h *StatsHandler) HandleLeaderboard(w http.ResponseWriter, r *http.Request) {
	limit, err := parseLimit(r.URL.Query().Get("limit"))
	if err != nil {
		writeError(w, err)
		return
	}

	rows, err := h.leaderboard.Top(r.Context(), limit)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, rows)
}

// HandleRank returns the caller's position this month. 0 means unranked.
//
// HTTP: GET /api/leaderboard/rank
func (h *StatsHandler) HandleRank(w http.ResponseWriter, r *http.Request) {
	uid, err := sessionUser(r)
	if err != nil {
		writeError(w, err)
		return
	}

	rank, err := h.leaderboard.GetUserRank(r.Context(), uid)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"rank": rank})
}
