package handler

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/sakif/reading-challenge/internal/apperror"
	"github.com/sakif/reading-challenge/internal/auth"
	"github.com/sakif/reading-challenge/internal/model"
	"github.com/sakif/reading-challenge/internal/service"
)

const stateCookie = "oauth_state"

// AuthHandler serves sign-up, sign-in, sign-out, the GitHub OAuth flow and
// /api/me.
//
// DEPENDENCY CHAIN:
//   - auth   *service.AuthService  → accounts, passwords and session tokens
//   - github *auth.GitHubProvider  → OAuth code exchange (nil when GitHub
//     sign-in is not configured)
type AuthHandler struct {
	auth   *service.AuthService
	github *auth.GitHubProvider
	// secure marks cookies Secure. It is true in production (HTTPS only).
	secure bool
	logger *slog.Logger
}

func NewAuthHandler(
	authService *service.AuthService,
	github *auth.GitHubProvider,
	secure bool,
	logger *slog.Logger,
) *AuthHandler {
	return &AuthHandler{
		auth:   authService,
		github: github,
		secure: secure,
		logger: logger,
	}
}

type accountResponse struct {
	Account   *model.Account `json:"account"`
	ExpiresAt time.Time      `json:"expiresAt"`
}

// HandleSignUp creates a password account and starts a session.
//
// HTTP: POST /api/auth/signup
// REQUEST BODY: {"email": "reader@example.com", "password": "at least 8 chars"}
func (h *AuthHandler) HandleSignUp(w http.ResponseWriter, r *http.Request) {
	var creds service.Credentials
	if err := decodeJSON(w, r, &creds); err != nil {
		writeError(w, err)
		return
	}

	session, err := h.auth.SignUp(r.Context(), creds)
	if err != nil {
		writeError(w, err)
		return
	}

	h.startSession(w, http.StatusCreated, session)
}

// HandleSignIn checks an email and password and starts a session.
//
// HTTP: POST /api/auth/signin
func (h *AuthHandler) HandleSignIn(w http.ResponseWriter, r *http.Request) {
	var creds service.Credentials
	if err := decodeJSON(w, r, &creds); err != nil {
		writeError(w, err)
		return
	}

	session, err := h.auth.SignIn(r.Context(), creds)
	if err != nil {
		writeError(w, err)
		return
	}

	h.startSession(w, http.StatusOK, session)
}

// HandleSignOut clears the session cookie.
//
// HTTP: POST /api/auth/signout
//
// Sessions are stateless JWTs, so "sign out" means deleting the cookie. The
// token stays valid until it expires, but the browser no longer sends it.
func (h *AuthHandler) HandleSignOut(w http.ResponseWriter, r *http.Request) {
	if id, ok := auth.UserIDFromContext(r.Context()); ok {
		h.auth.SignOut(r.Context(), id)
	}
	auth.ClearSessionCookie(w, h.secure)
	writeJSON(w, http.StatusOK, map[string]string{"message": "signed out"})
}

// HandleMe returns the signed-in account and its profile (null until the
// user creates one).
//
// HTTP: GET /api/me
func (h *AuthHandler) HandleMe(w http.ResponseWriter, r *http.Request) {
	id, err := sessionUser(r)
	if err != nil {
		writeError(w, err)
		return
	}

	me, err := h.auth.CurrentUser(r.Context(), id)
	if err != nil {
		if errors.Is(err, apperror.ErrUnauthorized) {
			auth.ClearSessionCookie(w, h.secure)
		}
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, me)
}

// HandleGitHubLogin redirects the browser to GitHub's authorization page.
//
// HTTP: GET /auth/github/login
//
// CSRF PROTECTION VIA STATE:
// A random state value goes into a short-lived HttpOnly cookie and into the
// authorization URL. The callback only proceeds when both match.
func (h *AuthHandler) HandleGitHubLogin(w http.ResponseWriter, r *http.Request) {
	state, err := auth.NewState()
	if err != nil {
		h.logger.Error("github login: generating state", slog.String("error", err.Error()))
		writeError(w, err)
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     stateCookie,
		Value:    state,
		Path:     "/",
		MaxAge:   600,
		HttpOnly: true,
		Secure:   h.secure,
		SameSite: http.SameSiteLaxMode,
	})

	http.Redirect(w, r, h.github.AuthURL(state), http.StatusTemporaryRedirect)
}

// HandleGitHubCallback completes the OAuth flow.
//
// HTTP: GET /auth/github/callback?code=xxx&state=yyy
//
// FLOW:
//  1. Check the state parameter against the cookie
//  2. Exchange the code for the GitHub user
//  3. Find or create the account
//  4. Set the session cookie and redirect home
func (h *AuthHandler) HandleGitHubCallback(w http.ResponseWriter, r *http.Request) {
	cookie, err := r.Cookie(stateCookie)
	if err != nil || cookie.Value == "" || r.URL.Query().Get("state") != cookie.Value {
		h.logger.Warn("github callback: state mismatch")
		writeError(w, apperror.ValidationFailed("state", "invalid OAuth state"))
		return
	}

	// Single use.
	http.SetCookie(w, &http.Cookie{
		Name:   stateCookie,
		Value:  "",
		Path:   "/",
		MaxAge: -1,
	})

	if errParam := r.URL.Query().Get("error"); errParam != "" {
		h.logger.Info("github callback: authorization denied", slog.String("error", errParam))
		http.Redirect(w, r, "/?auth=denied", http.StatusSeeOther)
		return
	}

	code := r.URL.Query().Get("code")
	if code == "" {
		writeError(w, apperror.ValidationFailed("code", "missing OAuth code"))
		return
	}

	ghUser, err := h.github.Exchange(r.Context(), code)
	if err != nil {
		h.logger.Error("github callback: exchange failed", slog.String("error", err.Error()))
		http.Redirect(w, r, "/?auth=failed", http.StatusSeeOther)
		return
	}

	session, err := h.auth.SignInGitHub(r.Context(), ghUser)
	if err != nil {
		if errors.Is(err, apperror.ErrConflict) {
			http.Redirect(w, r, "/?auth=email_in_use", http.StatusSeeOther)
			return
		}
		h.logger.Error("github callback: sign-in failed",
			slog.Int64("githubID", ghUser.ID),
			slog.String("error", err.Error()),
		)
		http.Redirect(w, r, "/?auth=failed", http.StatusSeeOther)
		return
	}

	auth.SetSessionCookie(w, session.Token, session.ExpiresAt, h.secure)
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

func (h *AuthHandler) startSession(w http.ResponseWriter, status int, session *service.Session) {
	auth.SetSessionCookie(w, session.Token, session.ExpiresAt, h.secure)
	writeJSON(w, status, accountResponse{
		Account:   session.Account,
		ExpiresAt: session.ExpiresAt.UTC(),
	})
}
