package auth

import (
	"context"
	"net/http"
	"sync"
	"time"
)

// SessionCookie is the name of the cookie that carries the session token.
const SessionCookie = "session"

type contextKey string

const (
	userIDKey     contextKey = "userID"
	userHolderKey contextKey = "userHolder"
)

// RequireAuth validates the session cookie and stores the account ID in the
// request context. Requests without a valid session get 401 and never reach
// next.
func RequireAuth(tokens *TokenService) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			cookie, err := r.Cookie(SessionCookie)
			if err != nil {
				unauthorized(w)
				return
			}
			userID, err := tokens.Validate(cookie.Value)
			if err != nil {
				unauthorized(w)
				return
			}
			if h, ok := r.Context().Value(userHolderKey).(*UserHolder); ok {
				h.set(userID)
			}
			next.ServeHTTP(w, r.WithContext(WithUserID(r.Context(), userID)))
		})
	}
}

// WithUserID returns a copy of ctx that carries userID.
func WithUserID(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, userIDKey, userID)
}

// UserIDFromContext returns the authenticated account ID, or ("", false)
// for an anonymous request.
func UserIDFromContext(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(userIDKey).(string)
	return id, ok && id != ""
}

// UserHolder lets middleware that runs before RequireAuth learn the
// authenticated user once the request has been served.
type UserHolder struct {
	mu sync.Mutex
	id string
}

// WithUserHolder returns a context carrying an empty holder. RequireAuth
// fills it in when it accepts a session.
func WithUserHolder(ctx context.Context) (context.Context, *UserHolder) {
	h := &UserHolder{}
	return context.WithValue(ctx, userHolderKey, h), h
}

// UserID is "" until RequireAuth has accepted a session.
func (h *UserHolder) UserID() string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.id
}

func (h *UserHolder) set(id string) {
	h.mu.Lock()
	h.id = id
	h.mu.Unlock()
}

// SetSessionCookie stores token in an HttpOnly cookie that expires with it.
func SetSessionCookie(w http.ResponseWriter, token string, expires time.Time, secure bool) {
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookie,
		Value:    token,
		Path:     "/",
		Expires:  expires,
		MaxAge:   int(time.Until(expires).Seconds()),
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteLaxMode,
	})
}

// ClearSessionCookie tells the browser to drop the session cookie.
func ClearSessionCookie(w http.ResponseWriter, secure bool) {
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookie,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteLaxMode,
	})
}

func unauthorized(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	_, _ = w.Write([]byte(`{"error":"unauthorized","message":"sign in to continue"}`))
}
