// Package handler contains the HTTP handlers for the reading challenge API.
//
// HANDLER RESPONSIBILITIES:
//  1. Parse the request (path params, query, JSON body)
//  2. Call one service method with plain values
//  3. Write the response through writeJSON / writeError
//
// Handlers hold no business rules. Date windows, page ranges, duplicate
// checks and ranking all live in internal/service.
package handler

import (
	"net/http"
)

// HealthHandler reports liveness and which storage backend is active.
type HealthHandler struct {
	backend string
}

func NewHealthHandler(backend string) *HealthHandler {
	return &HealthHandler{backend: backend}
}

// HTTP: GET /healthz
func (h *HealthHandler) HandleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status":  "ok",
		"backend": h.backend,
	})
}
