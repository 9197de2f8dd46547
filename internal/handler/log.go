package handler

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/sakif/reading-challenge/internal/apperror"
	"github.com/sakif/reading-challenge/internal/calendar"
	"github.com/sakif/reading-challenge/internal/repository"
	"github.com/sakif/reading-challenge/internal/service"
)

// LogHandler serves the signed-in user's reading log.
type LogHandler struct {
	logs   *service.LogService
	logger *slog.Logger
}

func NewLogHandler(logs *service.LogService, logger *slog.Logger) *LogHandler {
	return &LogHandler{logs: logs, logger: logger}
}

// createLogRequest keeps pagesRead as a json.Number so 12.5 is rejected
// instead of being truncated.
type createLogRequest struct {
	LogDate   string      `json:"logDate"`
	PagesRead json.Number `json:"pagesRead"`
}

type updateLogRequest struct {
	PagesRead json.Number `json:"pagesRead"`
}

// HandleCreate logs a day of reading.
//
// HTTP: POST /api/logs
// REQUEST BODY: {"logDate": "2025-03-15", "pagesRead": 42}
func (h *LogHandler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	uid, err := sessionUser(r)
	if err != nil {
		writeError(w, err)
		return
	}

	var req createLogRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, err)
		return
	}

	day, err := parseDate("logDate", req.LogDate)
	if err != nil {
		writeError(w, err)
		return
	}
	pages, err := parsePages(req.PagesRead)
	if err != nil {
		writeError(w, err)
		return
	}

	entry, err := h.logs.Create(r.Context(), uid, day, pages)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, entry)
}

// HandleList returns the user's entries, newest first.
//
// HTTP: GET /api/logs?since=2025-03-01&until=2025-03-31&limit=50
func (h *LogHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	uid, err := sessionUser(r)
	if err != nil {
		writeError(w, err)
		return
	}

	q := r.URL.Query()
	var opts repository.LogListOptions
	if s := q.Get("since"); s != "" {
		if opts.Since, err = parseDate("since", s); err != nil {
			writeError(w, err)
			return
		}
	}
	if s := q.Get("until"); s != "" {
		if opts.Until, err = parseDate("until", s); err != nil {
			writeError(w, err)
			return
		}
	}
	if opts.Limit, err = parseLimit(q.Get("limit")); err != nil {
		writeError(w, err)
		return
	}

	entries, err := h.logs.List(r.Context(), uid, opts)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, entries)
}

// HandleGetByDate returns the user's entry for one day.
//
// HTTP: GET /api/logs/date/{date}
func (h *LogHandler) HandleGetByDate(w http.ResponseWriter, r *http.Request) {
	uid, err := sessionUser(r)
	if err != nil {
		writeError(w, err)
		return
	}

	day, err := parseDate("date", chi.URLParam(r, "date"))
	if err != nil {
		writeError(w, err)
		return
	}

	entry, err := h.logs.GetByDate(r.Context(), uid, day)
	if err != nil {
		writeError(w, err)
		return
	}
	if entry == nil {
		writeError(w, &apperror.AppError{
			Err:     apperror.ErrNotFound,
			Message: fmt.Sprintf("No reading logged for %s", day),
		})
		return
	}

	writeJSON(w, http.StatusOK, entry)
}

// HandleUpdate changes the page count of one of the user's entries.
//
// HTTP: PATCH /api/logs/{id}
// REQUEST BODY: {"pagesRead": 50}
func (h *LogHandler) HandleUpdate(w http.ResponseWriter, r *http.Request) {
	uid, err := sessionUser(r)
	if err != nil {
		writeError(w, err)
		return
	}

	var req updateLogRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, err)
		return
	}
	pages, err := parsePages(req.PagesRead)
	if err != nil {
		writeError(w, err)
		return
	}

	entry, err := h.logs.Update(r.Context(), uid, chi.URLParam(r, "id"), pages)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, entry)
}

// HandleDelete removes one of the user's entries.
//
// HTTP: DELETE /api/logs/{id}
func (h *LogHandler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	uid, err := sessionUser(r)
	if err != nil {
		writeError(w, err)
		return
	}

	if err := h.logs.Delete(r.Context(), uid, chi.URLParam(r, "id")); err != nil {
		writeError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func parseDate(field, s string) (calendar.Date, error) {
	if s == "" {
		return calendar.Date{}, apperror.ValidationFailed(field, fmt.Sprintf("%s is required", field))
	}
	d, err := calendar.ParseDate(s)
	if err != nil {
		return calendar.Date{}, apperror.ValidationFailed(field, fmt.Sprintf("%s must be a date like 2025-03-15", field))
	}
	return d, nil
}

func parsePages(n json.Number) (int, error) {
	if n == "" {
		return 0, apperror.ValidationFailed("pagesRead", "Pages read is required")
	}
	pages, err := strconv.Atoi(n.String())
	if err != nil {
		return 0, apperror.ValidationFailed("pagesRead", "Pages read must be a whole number")
	}
	return pages, nil
}

func parseLimit(s string) (int, error) {
	if s == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil || n < 0 {
		return 0, apperror.ValidationFailed("limit", "limit must be a non-negative whole number")
	}
	return n, nil
}
