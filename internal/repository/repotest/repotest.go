// Package repotest holds behaviour every repository.Backend must share.
// Adapter test files call Run with a constructor for a fresh, empty backend.
package repotest

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sakif/reading-challenge/internal/apperror"
	"github.com/sakif/reading-challenge/internal/calendar"
	"github.com/sakif/reading-challenge/internal/model"
	"github.com/sakif/reading-challenge/internal/repository"
)

// Run executes the shared backend tests. newBackend is called once per
// subtest and must return an empty backend.
func Run(t *testing.T, newBackend func(t *testing.T) repository.Backend) {
	t.Run("AccountByEmail", func(t *testing.T) { testAccountByEmail(t, newBackend(t)) })
	t.Run("AccountDuplicateEmail", func(t *testing.T) { testAccountDuplicateEmail(t, newBackend(t)) })
	t.Run("UpsertGitHubAccount", func(t *testing.T) { testUpsertGitHubAccount(t, newBackend(t)) })
	t.Run("ProfileLifecycle", func(t *testing.T) { testProfileLifecycle(t, newBackend(t)) })
	t.Run("UsernameCaseInsensitive", func(t *testing.T) { testUsernameCaseInsensitive(t, newBackend(t)) })
	t.Run("LogRoundTrip", func(t *testing.T) { testLogRoundTrip(t, newBackend(t)) })
	t.Run("LogDuplicateDate", func(t *testing.T) { testLogDuplicateDate(t, newBackend(t)) })
	t.Run("LogOwnerScope", func(t *testing.T) { testLogOwnerScope(t, newBackend(t)) })
	t.Run("ListLogEntries", func(t *testing.T) { testListLogEntries(t, newBackend(t)) })
	t.Run("ListLogEntriesBetween", func(t *testing.T) { testListLogEntriesBetween(t, newBackend(t)) })
}

// NewAccount creates an account with the given email and returns its ID.
func NewAccount(t *testing.T, b repository.AccountRepository, email string) string {
	t.Helper()
	a := &model.Account{Email: email, PasswordHash: "hash"}
	require.NoError(t, b.CreateAccount(context.Background(), a))
	require.NotEmpty(t, a.ID)
	return a.ID
}

// NewLog creates a log entry for userID on day and returns it.
func NewLog(t *testing.T, b repository.LogRepository, userID, day string, pages int) *model.LogEntry {
	t.Helper()
	e := &model.LogEntry{UserID: userID, LogDate: calendar.MustParseDate(day), PagesRead: pages}
	require.NoError(t, b.CreateLogEntry(context.Background(), e))
	require.NotEmpty(t, e.ID)
	return e
}

func testAccountByEmail(t *testing.T, b repository.Backend) {
	ctx := context.Background()
	id := NewAccount(t, b, "Reader@Example.com")

	got, err := b.GetAccountByEmail(ctx, "reader@example.com")
	require.NoError(t, err)
	assert.Equal(t, id, got.ID)
	assert.Equal(t, "reader@example.com", got.Email)
	assert.Equal(t, "hash", got.PasswordHash)

	_, err = b.GetAccountByEmail(ctx, "nobody@example.com")
	assert.True(t, errors.Is(err, apperror.ErrNotFound))

	_, err = b.GetAccountByID(ctx, "missing")
	assert.True(t, errors.Is(err, apperror.ErrNotFound))
}

func testAccountDuplicateEmail(t *testing.T, b repository.Backend) {
	NewAccount(t, b, "dup@example.com")

	err := b.CreateAccount(context.Background(), &model.Account{Email: "DUP@example.com"})
	assert.True(t, errors.Is(err, apperror.ErrConflict), "got %v", err)
}

func testUpsertGitHubAccount(t *testing.T, b repository.Backend) {
	ctx := context.Background()
	ghID := int64(4242)

	first := &model.Account{Email: "gh@example.com", GitHubID: &ghID}
	require.NoError(t, b.UpsertGitHubAccount(ctx, first))
	require.NotEmpty(t, first.ID)

	second := &model.Account{Email: "new@example.com", GitHubID: &ghID}
	require.NoError(t, b.UpsertGitHubAccount(ctx, second))
	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, "new@example.com", second.Email)

	got, err := b.GetAccountByEmail(ctx, "new@example.com")
	require.NoError(t, err)
	assert.Equal(t, first.ID, got.ID)

	err = b.UpsertGitHubAccount(ctx, &model.Account{Email: "x@example.com"})
	assert.True(t, errors.Is(err, apperror.ErrValidation))
}

func testProfileLifecycle(t *testing.T, b repository.Backend) {
	ctx := context.Background()
	userID := NewAccount(t, b, "p@example.com")

	_, err := b.GetProfile(ctx, userID)
	require.True(t, errors.Is(err, apperror.ErrNotFound))

	p := &model.Profile{UserID: userID, Username: "bookworm", RegisterNumber: "REG-1"}
	require.NoError(t, b.CreateProfile(ctx, p))

	got, err := b.GetProfile(ctx, userID)
	require.NoError(t, err)
	assert.Equal(t, "bookworm", got.Username)
	assert.Equal(t, "REG-1", got.RegisterNumber)

	err = b.CreateProfile(ctx, &model.Profile{UserID: userID, Username: "other"})
	assert.True(t, errors.Is(err, apperror.ErrConflict))

	avatar := "https://img.example.com/a.png"
	renamed := "page_turner"
	updated, err := b.UpdateProfile(ctx, userID, model.ProfileUpdate{Username: &renamed, AvatarURL: &avatar})
	require.NoError(t, err)
	assert.Equal(t, "page_turner", updated.Username)
	assert.Equal(t, avatar, updated.AvatarURL)
	assert.Equal(t, "REG-1", updated.RegisterNumber)

	free, err := b.IsUsernameAvailable(ctx, "bookworm")
	require.NoError(t, err)
	assert.True(t, free, "old username should be released")

	_, err = b.UpdateProfile(ctx, "missing", model.ProfileUpdate{AvatarURL: &avatar})
	assert.True(t, errors.Is(err, apperror.ErrNotFound))
}

func testUsernameCaseInsensitive(t *testing.T, b repository.Backend) {
	ctx := context.Background()
	alice := NewAccount(t, b, "alice@example.com")
	bob := NewAccount(t, b, "bob@example.com")

	require.NoError(t, b.CreateProfile(ctx, &model.Profile{UserID: alice, Username: "Reader_1"}))

	free, err := b.IsUsernameAvailable(ctx, "reader_1")
	require.NoError(t, err)
	assert.False(t, free)

	free, err = b.IsUsernameAvailable(ctx, "reader_2")
	require.NoError(t, err)
	assert.True(t, free)

	err = b.CreateProfile(ctx, &model.Profile{UserID: bob, Username: "READER_1"})
	assert.True(t, errors.Is(err, apperror.ErrConflict), "got %v", err)

	require.NoError(t, b.CreateProfile(ctx, &model.Profile{UserID: bob, Username: "bob"}))
	taken := "reader_1"
	_, err = b.UpdateProfile(ctx, bob, model.ProfileUpdate{Username: &taken})
	assert.True(t, errors.Is(err, apperror.ErrConflict), "got %v", err)

	recased := "READER_1"
	got, err := b.UpdateProfile(ctx, alice, model.ProfileUpdate{Username: &recased})
	require.NoError(t, err)
	assert.Equal(t, "READER_1", got.Username)
}

func testLogRoundTrip(t *testing.T, b repository.Backend) {
	ctx := context.Background()
	userID := NewAccount(t, b, "log@example.com")
	day := calendar.MustParseDate("2026-03-10")

	created := NewLog(t, b, userID, "2026-03-10", 25)
	assert.False(t, created.CreatedAt.IsZero())

	got, err := b.GetLogEntryByDate(ctx, userID, day)
	require.NoError(t, err)
	assert.Equal(t, created.ID, got.ID)
	assert.Equal(t, 25, got.PagesRead)
	assert.True(t, got.LogDate.Equal(day))

	updated, err := b.UpdateLogEntry(ctx, userID, created.ID, 40)
	require.NoError(t, err)
	assert.Equal(t, 40, updated.PagesRead)
	assert.True(t, updated.LogDate.Equal(day), "log date must not change")

	got, err = b.GetLogEntry(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, 40, got.PagesRead)
	assert.Equal(t, created.CreatedAt.UnixMicro(), got.CreatedAt.UnixMicro())

	require.NoError(t, b.DeleteLogEntry(ctx, userID, created.ID))

	_, err = b.GetLogEntryByDate(ctx, userID, day)
	assert.True(t, errors.Is(err, apperror.ErrNotFound))
	_, err = b.GetLogEntry(ctx, created.ID)
	assert.True(t, errors.Is(err, apperror.ErrNotFound))

	// The day is free again after deletion.
	NewLog(t, b, userID, "2026-03-10", 5)
}

func testLogDuplicateDate(t *testing.T, b repository.Backend) {
	ctx := context.Background()
	userID := NewAccount(t, b, "dupe@example.com")
	other := NewAccount(t, b, "other@example.com")

	NewLog(t, b, userID, "2026-03-10", 10)

	err := b.CreateLogEntry(ctx, &model.LogEntry{
		UserID:    userID,
		LogDate:   calendar.MustParseDate("2026-03-10"),
		PagesRead: 20,
	})
	assert.True(t, errors.Is(err, apperror.ErrConflict), "got %v", err)

	// Same day, different user.
	NewLog(t, b, other, "2026-03-10", 20)

	entries, err := b.ListLogEntries(ctx, userID, repository.LogListOptions{})
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, 10, entries[0].PagesRead)
}

func testLogOwnerScope(t *testing.T, b repository.Backend) {
	ctx := context.Background()
	owner := NewAccount(t, b, "owner@example.com")
	intruder := NewAccount(t, b, "intruder@example.com")

	e := NewLog(t, b, owner, "2026-03-10", 10)

	_, err := b.UpdateLogEntry(ctx, intruder, e.ID, 99)
	assert.True(t, errors.Is(err, apperror.ErrNotFound))

	err = b.DeleteLogEntry(ctx, intruder, e.ID)
	assert.True(t, errors.Is(err, apperror.ErrNotFound))

	got, err := b.GetLogEntry(ctx, e.ID)
	require.NoError(t, err)
	assert.Equal(t, 10, got.PagesRead)

	_, err = b.UpdateLogEntry(ctx, owner, "missing", 1)
	assert.True(t, errors.Is(err, apperror.ErrNotFound))
}

func testListLogEntries(t *testing.T, b repository.Backend) {
	ctx := context.Background()
	userID := NewAccount(t, b, "list@example.com")
	other := NewAccount(t, b, "list2@example.com")

	for _, day := range []string{"2026-02-27", "2026-03-01", "2026-03-02", "2026-03-05"} {
		NewLog(t, b, userID, day, 10)
	}
	NewLog(t, b, other, "2026-03-03", 10)

	all, err := b.ListLogEntries(ctx, userID, repository.LogListOptions{})
	require.NoError(t, err)
	require.Len(t, all, 4)
	assert.Equal(t, "2026-03-05", all[0].LogDate.String(), "newest first")
	assert.Equal(t, "2026-02-27", all[3].LogDate.String())

	march, err := b.ListLogEntries(ctx, userID, repository.LogListOptions{
		Since: calendar.MustParseDate("2026-03-01"),
		Until: calendar.MustParseDate("2026-03-02"),
	})
	require.NoError(t, err)
	require.Len(t, march, 2)
	assert.Equal(t, "2026-03-02", march[0].LogDate.String())
	assert.Equal(t, "2026-03-01", march[1].LogDate.String())

	limited, err := b.ListLogEntries(ctx, userID, repository.LogListOptions{Limit: 1})
	require.NoError(t, err)
	require.Len(t, limited, 1)
	assert.Equal(t, "2026-03-05", limited[0].LogDate.String())

	none, err := b.ListLogEntries(ctx, "nobody", repository.LogListOptions{})
	require.NoError(t, err)
	assert.Empty(t, none)
}

func testListLogEntriesBetween(t *testing.T, b repository.Backend) {
	ctx := context.Background()
	alice := NewAccount(t, b, "a@example.com")
	bob := NewAccount(t, b, "b@example.com")

	NewLog(t, b, alice, "2026-02-28", 100)
	NewLog(t, b, alice, "2026-03-01", 10)
	NewLog(t, b, bob, "2026-03-04", 20)
	NewLog(t, b, alice, "2026-03-02", 30)
	NewLog(t, b, bob, "2026-03-05", 40) // after until

	since := calendar.MustParseDate("2026-03-01")
	until := calendar.MustParseDate("2026-03-04")

	got, err := b.ListLogEntriesBetween(ctx, since, until, 0)
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, "2026-03-01", got[0].LogDate.String(), "oldest first")
	assert.Equal(t, "2026-03-04", got[2].LogDate.String(), "until is inclusive")

	limited, err := b.ListLogEntriesBetween(ctx, since, until, 2)
	require.NoError(t, err)
	assert.Len(t, limited, 2)
}
