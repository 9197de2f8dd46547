package handler

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/sakif/reading-challenge/internal/apperror"
	"github.com/sakif/reading-challenge/internal/avatar"
	"github.com/sakif/reading-challenge/internal/service"
)

// multipartOverhead is room for the multipart envelope around the image.
const multipartOverhead = 64 << 10

type ProfileHandler struct {
	profiles *service.ProfileService
	logger   *slog.Logger
}

func NewProfileHandler(profiles *service.ProfileService, logger *slog.Logger) *ProfileHandler {
	return &ProfileHandler{profiles: profiles, logger: logger}
}

// HandleGet returns the caller's profile, or 404 before one exists.
//
// HTTP: GET /api/profile
func (h *ProfileHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	uid, err := sessionUser(r)
	if err != nil {
		writeError(w, err)
		return
	}

	p, err := h.profiles.Get(r.Context(), uid)
	if err != nil {
		writeError(w, err)
		return
	}
	if p == nil {
		writeError(w, &apperror.AppError{
			Err:     apperror.ErrNotFound,
			Message: "You have not created a profile yet",
		})
		return
	}

	writeJSON(w, http.StatusOK, p)
}

// HandleCreate creates the caller's profile.
//
// HTTP: POST /api/profile
// REQUEST BODY: {"username": "reader_1", "registerNumber": "21BCE0001"}
func (h *ProfileHandler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	uid, err := sessionUser(r)
	if err != nil {
		writeError(w, err)
		return
	}

	var in service.ProfileInput
	if err := decodeJSON(w, r, &in); err != nil {
		writeError(w, err)
		return
	}

	p, err := h.profiles.Create(r.Context(), uid, in)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, p)
}

// HandleUpdate applies a partial update.
//
// HTTP: PATCH /api/profile
func (h *ProfileHandler) HandleUpdate(w http.ResponseWriter, r *http.Request) {
	uid, err := sessionUser(r)
	if err != nil {
		writeError(w, err)
		return
	}

	var patch service.ProfilePatch
	if err := decodeJSON(w, r, &patch); err != nil {
		writeError(w, err)
		return
	}

	p, err := h.profiles.Update(r.Context(), uid, patch)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, p)
}

// HandleUsernameAvailable answers the sign-up form's live check.
//
// HTTP: GET /api/profile/username-available?username=reader_1
func (h *ProfileHandler) HandleUsernameAvailable(w http.ResponseWriter, r *http.Request) {
	ok, err := h.profiles.UsernameAvailable(r.Context(), r.URL.Query().Get("username"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"available": ok})
}

// HandleUploadAvatar accepts a multipart form with an "avatar" file.
//
// HTTP: POST /api/profile/avatar
func (h *ProfileHandler) HandleUploadAvatar(w http.ResponseWriter, r *http.Request) {
	uid, err := sessionUser(r)
	if err != nil {
		writeError(w, err)
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, avatar.MaxUploadBytes+multipartOverhead)
	file, _, err := r.FormFile("avatar")
	if err != nil {
		var maxBytesErr *http.MaxBytesError
		if errors.As(err, &maxBytesErr) {
			writeError(w, tooLarge())
			return
		}
		writeError(w, apperror.ValidationFailed("avatar", "Attach an image in the \"avatar\" field"))
		return
	}
	defer file.Close()

	raw, err := io.ReadAll(io.LimitReader(file, avatar.MaxUploadBytes+1))
	if err != nil {
		h.logger.Warn("reading avatar upload", slog.String("error", err.Error()))
		writeError(w, apperror.ValidationFailed("avatar", "Could not read the uploaded file"))
		return
	}
	if len(raw) > avatar.MaxUploadBytes {
		writeError(w, tooLarge())
		return
	}

	p, err := h.profiles.UploadAvatar(r.Context(), uid, raw)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, p)
}

func tooLarge() error {
	return apperror.ValidationFailed("avatar",
		fmt.Sprintf("Avatar must be %d MB or smaller", avatar.MaxUploadBytes>>20))
}
