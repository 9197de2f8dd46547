package handler

// RESPONSE HELPERS:
// Every handler answers through writeJSON / writeError so the API has one
// error shape:
//
//	{"error": "validation_error", "message": "Pages read must be between 1 and 1000", "field": "pagesRead"}
//
// The frontend switches on "error" and shows "message" next to "field".

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/sakif/reading-challenge/internal/apperror"
	"github.com/sakif/reading-challenge/internal/auth"
)

// maxJSONBody caps request bodies decoded by decodeJSON.
const maxJSONBody = 1 << 20

// ErrorResponse is the standard error format returned by all API endpoints.
type ErrorResponse struct {
	Error   string `json:"error"`           // Machine-readable error type (e.g., "not_found")
	Message string `json:"message"`         // Human-readable description
	Field   string `json:"field,omitempty"` // Request field the error is about, if any
}

// writeJSON sends a JSON response with the given status code.
//
// Headers and status must be set before the body: once Encode writes, any
// later header change is ignored.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		if err := json.NewEncoder(w).Encode(data); err != nil {
			// Headers are already sent; all we can do is log.
			slog.Error("failed to encode JSON response", slog.String("error", err.Error()))
		}
	}
}

// writeError maps a domain error to an HTTP status and sends it.
//
// ERROR MAPPING:
// Services return *apperror.AppError values wrapping a sentinel. errors.Is
// walks the chain, so the order of the cases matters where one sentinel
// wraps another: ErrDuplicate is matched before the plain ErrValidation
// check would also claim it.
//
//	ErrUnavailable → 503 (generic message, cause logged)
//	ErrDuplicate   → 400
//	ErrValidation  → 400
//	ErrNotFound    → 404
//	ErrConflict    → 409
//	ErrForbidden   → 403
//	ErrUnauthorized→ 401
//	anything else  → 500
func writeError(w http.ResponseWriter, err error) {
	var appErr *apperror.AppError
	if !errors.As(err, &appErr) {
		// NEVER expose internal error details: raw messages can carry SQL or
		// file paths.
		slog.Error("unhandled error", slog.String("error", err.Error()))
		writeJSON(w, http.StatusInternalServerError, ErrorResponse{
			Error:   "internal_error",
			Message: "An internal error occurred",
		})
		return
	}

	status := http.StatusInternalServerError
	errorType := "internal_error"

	switch {
	case errors.Is(err, apperror.ErrUnavailable):
		status = http.StatusServiceUnavailable
		errorType = "unavailable"
		cause := ""
		if appErr.Cause != nil {
			cause = appErr.Cause.Error()
		}
		slog.Error("backend unavailable", slog.String("cause", cause))
	case errors.Is(err, apperror.ErrDuplicate):
		status = http.StatusBadRequest
		errorType = "duplicate"
	case errors.Is(err, apperror.ErrValidation):
		status = http.StatusBadRequest
		errorType = "validation_error"
	case errors.Is(err, apperror.ErrNotFound):
		status = http.StatusNotFound
		errorType = "not_found"
	case errors.Is(err, apperror.ErrConflict):
		status = http.StatusConflict
		errorType = "conflict"
	case errors.Is(err, apperror.ErrForbidden):
		status = http.StatusForbidden
		errorType = "forbidden"
	case errors.Is(err, apperror.ErrUnauthorized):
		status = http.StatusUnauthorized
		errorType = "unauthorized"
	}

	writeJSON(w, status, ErrorResponse{
		Error:   errorType,
		Message: appErr.Message,
		Field:   appErr.Field,
	})
}

// decodeJSON reads one JSON object from the request body into dst. Unknown
// fields and trailing data are rejected as validation errors.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxJSONBody)

	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()

	if err := dec.Decode(dst); err != nil {
		var (
			syntaxErr   *json.SyntaxError
			typeErr     *json.UnmarshalTypeError
			maxBytesErr *http.MaxBytesError
		)
		switch {
		case errors.Is(err, io.EOF):
			return apperror.ValidationFailed("", "Request body must not be empty")
		case errors.As(err, &typeErr):
			return apperror.ValidationFailed(typeErr.Field,
				fmt.Sprintf("%s has the wrong type", typeErr.Field))
		case errors.As(err, &maxBytesErr):
			return apperror.ValidationFailed("", "Request body is too large")
		case errors.As(err, &syntaxErr):
			return apperror.ValidationFailed("", "Invalid JSON body")
		default:
			return apperror.ValidationFailed("", "Invalid JSON body: "+err.Error())
		}
	}

	if dec.More() {
		return apperror.ValidationFailed("", "Request body must contain a single JSON object")
	}
	return nil
}

// sessionUser returns the session's account ID. RequireAuth guarantees it on
// every route these handlers are mounted on.
func sessionUser(r *http.Request) (string, error) {
	id, ok := auth.UserIDFromContext(r.Context())
	if !ok {
		return "", apperror.Unauthorized("sign in to continue")
	}
	return id, nil
}
