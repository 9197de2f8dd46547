package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func protected(t *testing.T, tokens *TokenService) http.Handler {
	t.Helper()
	return RequireAuth(tokens)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id, ok := UserIDFromContext(r.Context())
		require.True(t, ok)
		_, _ = w.Write([]byte(id))
	}))
}

func TestRequireAuth(t *testing.T) {
	tokens := newTestTokenService(t)
	token, _, err := tokens.Issue("user-1")
	require.NoError(t, err)

	t.Run("valid cookie", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/stats", nil)
		req.AddCookie(&http.Cookie{Name: SessionCookie, Value: token})
		rec := httptest.NewRecorder()

		protected(t, tokens).ServeHTTP(rec, req)

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "user-1", rec.Body.String())
	})

	t.Run("no cookie", func(t *testing.T) {
		rec := httptest.NewRecorder()
		protected(t, tokens).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/stats", nil))

		assert.Equal(t, http.StatusUnauthorized, rec.Code)
		assert.JSONEq(t, `{"error":"unauthorized","message":"sign in to continue"}`, rec.Body.String())
	})

	t.Run("bad cookie", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/stats", nil)
		req.AddCookie(&http.Cookie{Name: SessionCookie, Value: "garbage"})
		rec := httptest.NewRecorder()

		protected(t, tokens).ServeHTTP(rec, req)

		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})
}

func TestSessionCookies(t *testing.T) {
	rec := httptest.NewRecorder()
	SetSessionCookie(rec, "tok", time.Now().Add(time.Hour), true)

	cookies := rec.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.Equal(t, SessionCookie, cookies[0].Name)
	assert.Equal(t, "tok", cookies[0].Value)
	assert.True(t, cookies[0].HttpOnly)
	assert.True(t, cookies[0].Secure)

	rec = httptest.NewRecorder()
	ClearSessionCookie(rec, false)
	cookies = rec.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.Equal(t, "", cookies[0].Value)
	assert.True(t, cookies[0].MaxAge < 0)
}

func TestUserIDFromContext_Anonymous(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	_, ok := UserIDFromContext(req.Context())
	assert.False(t, ok)
}

func TestRequireAuth_FillsUserHolder(t *testing.T) {
	tokens := newTestTokenService(t)
	token, _, err := tokens.Issue("user-7")
	require.NoError(t, err)

	ctx, holder := WithUserHolder(httptest.NewRequest(http.MethodGet, "/", nil).Context())
	assert.Empty(t, holder.UserID())

	req := httptest.NewRequest(http.MethodGet, "/api/me", nil).WithContext(ctx)
	req.AddCookie(&http.Cookie{Name: SessionCookie, Value: token})
	protected(t, tokens).ServeHTTP(httptest.NewRecorder(), req)

	assert.Equal(t, "user-7", holder.UserID())
}
