package server

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sakif/reading-challenge/internal/calendar"
	"github.com/sakif/reading-challenge/internal/config"
	"github.com/sakif/reading-challenge/internal/model"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	return &config.Config{
		AppEnv:        "test",
		Port:          0,
		LogLevel:      slog.LevelError,
		Location:      time.UTC,
		Backend:       config.BackendSQLite,
		DBPath:        ":memory:",
		RedisPrefix:   "test:",
		JWTSecret:     "test-secret-that-is-32-bytes-ok!",
		SessionTTL:    time.Hour,
		AvatarStorage: config.AvatarLocal,
		AvatarDir:     t.TempDir(),
		AvatarBaseURL: "/avatars",
		RankScanLimit: 500,
	}
}

// newTestServer starts an httptest server around the full router, with the
// clock pinned to 2025-03-15.
func newTestServer(t *testing.T, cfg *config.Config) *httptest.Server {
	t.Helper()

	backend, err := OpenBackend(context.Background(), cfg)
	require.NoError(t, err)
	t.Cleanup(func() { backend.Close() })

	avatars, err := OpenAvatarStore(cfg)
	require.NoError(t, err)

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	clock := calendar.FixedClock(calendar.MustParseDate("2025-03-15"), time.UTC)

	s, err := NewWithDeps(cfg, logger, backend, avatars, clock)
	require.NoError(t, err)

	ts := httptest.NewServer(s.Handler())
	t.Cleanup(ts.Close)
	return ts
}

// client keeps cookies between requests, like a browser.
func client(t *testing.T) *http.Client {
	t.Helper()
	jar, err := cookiejar.New(nil)
	require.NoError(t, err)
	return &http.Client{Jar: jar}
}

func send(t *testing.T, c *http.Client, method, url, body string) (*http.Response, string) {
	t.Helper()
	var rd io.Reader
	if body != "" {
		rd = strings.NewReader(body)
	}
	req, err := http.NewRequest(method, url, rd)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	b, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp, string(b)
}

func runReadingFlow(t *testing.T, ts *httptest.Server) {
	c := client(t)

	resp, _ := send(t, c, http.MethodGet, ts.URL+"/api/stats", "")
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode, "no session yet")

	resp, body := send(t, c, http.MethodPost, ts.URL+"/api/auth/signup", `{"email":"reader@example.com","password":"password1"}`)
	require.Equal(t, http.StatusCreated, resp.StatusCode, body)

	resp, body = send(t, c, http.MethodPost, ts.URL+"/api/profile", `{"username":"reader_1"}`)
	require.Equal(t, http.StatusCreated, resp.StatusCode, body)

	resp, body = send(t, c, http.MethodPost, ts.URL+"/api/logs", `{"logDate":"2025-03-14","pagesRead":30}`)
	require.Equal(t, http.StatusCreated, resp.StatusCode, body)
	resp, body = send(t, c, http.MethodPost, ts.URL+"/api/logs", `{"logDate":"2025-03-15","pagesRead":20}`)
	require.Equal(t, http.StatusCreated, resp.StatusCode, body)

	resp, body = send(t, c, http.MethodPost, ts.URL+"/api/logs", `{"logDate":"2025-03-15","pagesRead":5}`)
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Contains(t, body, `"error":"duplicate"`)

	resp, body = send(t, c, http.MethodGet, ts.URL+"/api/stats", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var s model.Stats
	require.NoError(t, json.Unmarshal([]byte(body), &s))
	assert.Equal(t, model.Stats{TotalPages: 50, DaysLogged: 2, AvgPages: 25, CurrentStreak: 2, LongestStreak: 2}, s)

	resp, body = send(t, c, http.MethodGet, ts.URL+"/api/leaderboard", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var rows []model.LeaderboardEntry
	require.NoError(t, json.Unmarshal([]byte(body), &rows))
	require.Len(t, rows, 1)
	assert.Equal(t, "reader_1", rows[0].Username)
	assert.Equal(t, 50, rows[0].TotalPages)

	resp, body = send(t, c, http.MethodGet, ts.URL+"/api/leaderboard/rank", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.JSONEq(t, `{"rank":1}`, body)

	resp, _ = send(t, c, http.MethodPost, ts.URL+"/api/auth/signout", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp, _ = send(t, c, http.MethodGet, ts.URL+"/api/me", "")
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode, "cookie cleared")
}

func TestServer_SQLite(t *testing.T) {
	ts := newTestServer(t, testConfig(t))

	resp, body := send(t, client(t), http.MethodGet, ts.URL+"/healthz", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.JSONEq(t, `{"status":"ok","backend":"sqlite"}`, body)

	runReadingFlow(t, ts)
}

func TestServer_Redis(t *testing.T) {
	mr := miniredis.RunT(t)
	cfg := testConfig(t)
	cfg.Backend = config.BackendRedis
	cfg.RedisURL = "redis://" + mr.Addr()

	ts := newTestServer(t, cfg)

	resp, body := send(t, client(t), http.MethodGet, ts.URL+"/healthz", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.JSONEq(t, `{"status":"ok","backend":"redis"}`, body)

	runReadingFlow(t, ts)
	assert.True(t, mr.Exists("test:profile:username:reader_1"))
}

func TestServer_RedisDown(t *testing.T) {
	mr := miniredis.RunT(t)
	cfg := testConfig(t)
	cfg.Backend = config.BackendRedis
	cfg.RedisURL = "redis://" + mr.Addr()
	ts := newTestServer(t, cfg)

	c := client(t)
	resp, body := send(t, c, http.MethodPost, ts.URL+"/api/auth/signup", `{"email":"reader@example.com","password":"password1"}`)
	require.Equal(t, http.StatusCreated, resp.StatusCode, body)

	// Addr is not usable once the server is closed.
	addr := mr.Addr()
	mr.Close()

	resp, body = send(t, c, http.MethodGet, ts.URL+"/api/stats", "")
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
	assert.NotContains(t, body, addr)
}

func TestServer_GitHubRoutesOnlyWhenConfigured(t *testing.T) {
	ts := newTestServer(t, testConfig(t))
	noRedirect := &http.Client{CheckRedirect: func(*http.Request, []*http.Request) error { return http.ErrUseLastResponse }}

	resp, _ := send(t, noRedirect, http.MethodGet, ts.URL+"/auth/github/login", "")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	cfg := testConfig(t)
	cfg.GitHubClientID = "client-id"
	cfg.GitHubClientSecret = "client-secret"
	cfg.GitHubCallbackURL = "http://localhost/auth/github/callback"
	ts = newTestServer(t, cfg)

	resp, _ = send(t, noRedirect, http.MethodGet, ts.URL+"/auth/github/login", "")
	assert.Equal(t, http.StatusTemporaryRedirect, resp.StatusCode)
	assert.Contains(t, resp.Header.Get("Location"), "github.com/login/oauth/authorize")
}

func TestOpenBackend_Unknown(t *testing.T) {
	cfg := testConfig(t)
	cfg.Backend = "mongo"

	_, err := OpenBackend(context.Background(), cfg)
	assert.Error(t, err)
}

func TestOpenAvatarStore_Unknown(t *testing.T) {
	cfg := testConfig(t)
	cfg.AvatarStorage = "s3"

	_, err := OpenAvatarStore(cfg)
	assert.Error(t, err)
}
