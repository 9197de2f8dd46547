// Package repository declares the backend adapter contract.
//
// Services depend only on these interfaces. Two adapters implement them:
//
//   - repository/sqlite: a relational store where the database itself
//     enforces UNIQUE(user_id, log_date) and a case-insensitive username index.
//   - repository/redisdoc: a document store with no composite uniqueness;
//     the adapter checks for an existing entry before writing, and two
//     concurrent creates for the same user and day can both succeed.
//
// Which one runs is decided once at startup (see server.New).
package repository

import (
	"context"

	"github.com/sakif/reading-challenge/internal/calendar"
	"github.com/sakif/reading-challenge/internal/model"
)

// LogListOptions narrows ListLogEntries. Zero dates mean "unbounded" and a
// non-positive Limit means the adapter default.
type LogListOptions struct {
	Since calendar.Date
	Until calendar.Date
	Limit int
}

// Adapter limits shared by both implementations.
const (
	DefaultLogListLimit = 100
	MaxLogListLimit     = 1000
)

// ClampLimit applies DefaultLogListLimit / MaxLogListLimit to limit.
func ClampLimit(limit int) int {
	if limit <= 0 {
		return DefaultLogListLimit
	}
	if limit > MaxLogListLimit {
		return MaxLogListLimit
	}
	return limit
}

type AccountRepository interface {
	// CreateAccount inserts a new account and fills in ID and timestamps.
	// A taken email is reported as apperror.ErrConflict.
	CreateAccount(ctx context.Context, account *model.Account) error
	GetAccountByID(ctx context.Context, id string) (*model.Account, error)
	GetAccountByEmail(ctx context.Context, email string) (*model.Account, error)
	// UpsertGitHubAccount finds the account for account.GitHubID or creates
	// it. The existing ID is kept across sign-ins.
	UpsertGitHubAccount(ctx context.Context, account *model.Account) error
}

type ProfileRepository interface {
	// CreateProfile stores a profile for profile.UserID. A second profile for
	// the same user, or a username already taken in any letter case, is
	// reported as apperror.ErrConflict.
	CreateProfile(ctx context.Context, profile *model.Profile) error
	// GetProfile returns apperror.ErrNotFound when the user has no profile.
	GetProfile(ctx context.Context, userID string) (*model.Profile, error)
	// UpdateProfile applies the non-nil fields and returns the stored result.
	UpdateProfile(ctx context.Context, userID string, update model.ProfileUpdate) (*model.Profile, error)
	// IsUsernameAvailable matches case-insensitively against every profile.
	IsUsernameAvailable(ctx context.Context, username string) (bool, error)
}

type LogRepository interface {
	// CreateLogEntry inserts an entry and fills in ID and timestamps. When the
	// backend detects an existing (user, date) entry it returns
	// apperror.ErrConflict.
	CreateLogEntry(ctx context.Context, entry *model.LogEntry) error
	GetLogEntry(ctx context.Context, id string) (*model.LogEntry, error)
	// GetLogEntryByDate returns apperror.ErrNotFound when the user has no
	// entry on that day.
	GetLogEntryByDate(ctx context.Context, userID string, date calendar.Date) (*model.LogEntry, error)
	// ListLogEntries returns one user's entries, newest date first.
	ListLogEntries(ctx context.Context, userID string, opts LogListOptions) ([]model.LogEntry, error)
	// ListLogEntriesBetween returns every user's entries dated from since
	// through until inclusive, oldest date first, at most limit rows (<= 0
	// means no limit).
	ListLogEntriesBetween(ctx context.Context, since, until calendar.Date, limit int) ([]model.LogEntry, error)
	// UpdateLogEntry sets the page count of an entry owned by ownerID. An
	// entry owned by someone else is reported as not found.
	UpdateLogEntry(ctx context.Context, ownerID, id string, pagesRead int) (*model.LogEntry, error)
	// DeleteLogEntry removes an entry owned by ownerID, with the same
	// ownership rule as UpdateLogEntry.
	DeleteLogEntry(ctx context.Context, ownerID, id string) error
}

// Backend is everything a storage adapter provides.
type Backend interface {
	AccountRepository
	ProfileRepository
	LogRepository
	// Name identifies the adapter in logs ("sqlite", "redis").
	Name() string
	Close() error
}

// MonthlyTotaler is implemented by backends that can rank users with one
// aggregate query instead of returning every entry.
type MonthlyTotaler interface {
	// MonthlyTotals sums pages per user for entries dated from since through
	// until inclusive, for the whole population, in no particular order.
	MonthlyTotals(ctx context.Context, since, until calendar.Date) ([]model.UserTotal, error)
}

// AvatarStore persists avatar images and returns a URL the client can load.
type AvatarStore interface {
	UploadAvatar(ctx context.Context, userID string, image []byte) (string, error)
}
