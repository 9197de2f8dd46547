package service

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/sakif/reading-challenge/internal/apperror"
	"github.com/sakif/reading-challenge/internal/calendar"
	"github.com/sakif/reading-challenge/internal/model"
	"github.com/sakif/reading-challenge/internal/repository"
)

// fakeStore is an in-memory repository.AccountRepository,
// ProfileRepository and LogRepository. It keeps copies so callers cannot
// mutate stored state through returned pointers.
//
// Setting one of the *Err fields makes the matching call fail, which is how
// tests simulate a backend outage.
type fakeStore struct {
	accounts map[string]model.Account
	profiles map[string]model.Profile
	logs     map[string]model.LogEntry
	nextID   int
	// tick advances on every write so UpdatedAt is strictly increasing.
	tick time.Time

	// noUniqueCheck makes CreateLogEntry accept a second entry for the same
	// day, like a document store that only checks before writing.
	noUniqueCheck bool
	// hideByDate makes GetLogEntryByDate miss, so the service relies on the
	// backend's own conflict.
	hideByDate bool

	createLogErr error
	listErr      error
	profileErr   error
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		accounts: make(map[string]model.Account),
		profiles: make(map[string]model.Profile),
		logs:     make(map[string]model.LogEntry),
		tick:     time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC),
	}
}

func (f *fakeStore) now() time.Time {
	f.tick = f.tick.Add(time.Second)
	return f.tick
}

func (f *fakeStore) id(prefix string) string {
	f.nextID++
	return fmt.Sprintf("%s-%d", prefix, f.nextID)
}

// ---- accounts ----

func (f *fakeStore) CreateAccount(_ context.Context, a *model.Account) error {
	for _, existing := range f.accounts {
		if existing.Email == a.Email {
			return apperror.Conflict("account", a.Email)
		}
	}
	a.ID = f.id("user")
	a.CreatedAt = f.now()
	a.UpdatedAt = a.CreatedAt
	f.accounts[a.ID] = *a
	return nil
}

func (f *fakeStore) GetAccountByID(_ context.Context, id string) (*model.Account, error) {
	a, ok := f.accounts[id]
	if !ok {
		return nil, apperror.NotFound("account", id)
	}
	return &a, nil
}

func (f *fakeStore) GetAccountByEmail(_ context.Context, email string) (*model.Account, error) {
	for _, a := range f.accounts {
		if a.Email == email {
			return &a, nil
		}
	}
	return nil, apperror.NotFound("account", email)
}

func (f *fakeStore) UpsertGitHubAccount(_ context.Context, a *model.Account) error {
	for id, existing := range f.accounts {
		if existing.GitHubID != nil && *existing.GitHubID == *a.GitHubID {
			if a.Email != "" {
				existing.Email = a.Email
			}
			existing.UpdatedAt = f.now()
			f.accounts[id] = existing
			*a = existing
			return nil
		}
	}
	for _, existing := range f.accounts {
		if a.Email != "" && existing.Email == a.Email {
			return apperror.Conflict("account", a.Email)
		}
	}
	a.ID = f.id("user")
	a.CreatedAt = f.now()
	a.UpdatedAt = a.CreatedAt
	f.accounts[a.ID] = *a
	return nil
}

// ---- profiles ----

func (f *fakeStore) CreateProfile(_ context.Context, p *model.Profile) error {
	if _, ok := f.profiles[p.UserID]; ok {
		return apperror.Conflict("profile", p.UserID)
	}
	for _, existing := range f.profiles {
		if strings.EqualFold(existing.Username, p.Username) {
			return apperror.Conflict("profile", p.Username)
		}
	}
	p.CreatedAt = f.now()
	p.UpdatedAt = p.CreatedAt
	f.profiles[p.UserID] = *p
	return nil
}

func (f *fakeStore) GetProfile(_ context.Context, userID string) (*model.Profile, error) {
	if f.profileErr != nil {
		return nil, f.profileErr
	}
	p, ok := f.profiles[userID]
	if !ok {
		return nil, apperror.NotFound("profile", userID)
	}
	return &p, nil
}

func (f *fakeStore) UpdateProfile(_ context.Context, userID string, u model.ProfileUpdate) (*model.Profile, error) {
	p, ok := f.profiles[userID]
	if !ok {
		return nil, apperror.NotFound("profile", userID)
	}
	if u.Username != nil {
		for other, existing := range f.profiles {
			if other != userID && strings.EqualFold(existing.Username, *u.Username) {
				return nil, apperror.Conflict("profile", *u.Username)
			}
		}
		p.Username = *u.Username
	}
	if u.RegisterNumber != nil {
		p.RegisterNumber = *u.RegisterNumber
	}
	if u.AvatarURL != nil {
		p.AvatarURL = *u.AvatarURL
	}
	p.UpdatedAt = f.now()
	f.profiles[userID] = p
	return &p, nil
}

func (f *fakeStore) IsUsernameAvailable(_ context.Context, username string) (bool, error) {
	for _, p := range f.profiles {
		if strings.EqualFold(p.Username, username) {
			return false, nil
		}
	}
	return true, nil
}

// ---- logs ----

func (f *fakeStore) CreateLogEntry(_ context.Context, e *model.LogEntry) error {
	if f.createLogErr != nil {
		return f.createLogErr
	}
	if !f.noUniqueCheck {
		for _, existing := range f.logs {
			if existing.UserID == e.UserID && existing.LogDate.Equal(e.LogDate) {
				return apperror.Conflict("log entry", e.UserID+"/"+e.LogDate.String())
			}
		}
	}
	e.ID = f.id("log")
	e.CreatedAt = f.now()
	e.UpdatedAt = e.CreatedAt
	f.logs[e.ID] = *e
	return nil
}

func (f *fakeStore) GetLogEntry(_ context.Context, id string) (*model.LogEntry, error) {
	e, ok := f.logs[id]
	if !ok {
		return nil, apperror.NotFound("log entry", id)
	}
	return &e, nil
}

func (f *fakeStore) GetLogEntryByDate(_ context.Context, userID string, date calendar.Date) (*model.LogEntry, error) {
	if !f.hideByDate {
		for _, e := range f.logs {
			if e.UserID == userID && e.LogDate.Equal(date) {
				return &e, nil
			}
		}
	}
	return nil, apperror.NotFound("log entry", userID+"/"+date.String())
}

func (f *fakeStore) ListLogEntries(_ context.Context, userID string, opts repository.LogListOptions) ([]model.LogEntry, error) {
	if f.listErr != nil {
		return nil, f.listErr
	}
	out := make([]model.LogEntry, 0)
	for _, e := range f.logs {
		if e.UserID != userID {
			continue
		}
		if !opts.Since.IsZero() && e.LogDate.Before(opts.Since) {
			continue
		}
		if !opts.Until.IsZero() && e.LogDate.After(opts.Until) {
			continue
		}
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].LogDate.Equal(out[j].LogDate) {
			return out[i].LogDate.After(out[j].LogDate)
		}
		return out[i].ID < out[j].ID
	})
	if limit := repository.ClampLimit(opts.Limit); len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (f *fakeStore) ListLogEntriesBetween(_ context.Context, since, until calendar.Date, limit int) ([]model.LogEntry, error) {
	if f.listErr != nil {
		return nil, f.listErr
	}
	out := make([]model.LogEntry, 0)
	for _, e := range f.logs {
		if !e.LogDate.Before(since) && !e.LogDate.After(until) {
			out = append(out, e)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].LogDate.Equal(out[j].LogDate) {
			return out[i].LogDate.Before(out[j].LogDate)
		}
		return out[i].ID < out[j].ID
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (f *fakeStore) UpdateLogEntry(_ context.Context, ownerID, id string, pagesRead int) (*model.LogEntry, error) {
	e, ok := f.logs[id]
	if !ok || e.UserID != ownerID {
		return nil, apperror.NotFound("log entry", id)
	}
	e.PagesRead = pagesRead
	e.UpdatedAt = f.now()
	f.logs[id] = e
	return &e, nil
}

func (f *fakeStore) DeleteLogEntry(_ context.Context, ownerID, id string) error {
	e, ok := f.logs[id]
	if !ok || e.UserID != ownerID {
		return apperror.NotFound("log entry", id)
	}
	delete(f.logs, id)
	return nil
}

// addLog stores an entry directly, bypassing every rule.
func (f *fakeStore) addLog(userID string, day calendar.Date, pages int) model.LogEntry {
	e := model.LogEntry{
		ID:        f.id("log"),
		UserID:    userID,
		LogDate:   day,
		PagesRead: pages,
	}
	e.CreatedAt = f.now()
	e.UpdatedAt = e.CreatedAt
	f.logs[e.ID] = e
	return e
}

// totalingStore adds repository.MonthlyTotaler on top of fakeStore, the way
// the relational backend does.
type totalingStore struct {
	*fakeStore
	calls int
}

func (t *totalingStore) MonthlyTotals(ctx context.Context, since, until calendar.Date) ([]model.UserTotal, error) {
	t.calls++
	entries, err := t.ListLogEntriesBetween(ctx, since, until, 0)
	if err != nil {
		return nil, err
	}
	index := make(map[string]int)
	var totals []model.UserTotal
	for _, e := range entries {
		i, ok := index[e.UserID]
		if !ok {
			i = len(totals)
			index[e.UserID] = i
			totals = append(totals, model.UserTotal{UserID: e.UserID})
		}
		totals[i].TotalPages += e.PagesRead
		if ts := e.UpdatedAt.UnixMicro(); ts > totals[i].ReachedAt {
			totals[i].ReachedAt = ts
		}
	}
	// Reverse so the service has to sort.
	for i, j := 0, len(totals)-1; i < j; i, j = i+1, j-1 {
		totals[i], totals[j] = totals[j], totals[i]
	}
	return totals, nil
}

// fakeAvatarStore records uploads.
type fakeAvatarStore struct {
	uploads map[string][]byte
	err     error
}

func (f *fakeAvatarStore) UploadAvatar(_ context.Context, userID string, image []byte) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	if f.uploads == nil {
		f.uploads = make(map[string][]byte)
	}
	f.uploads[userID] = image
	return "https://cdn.test/avatars/" + userID + ".png", nil
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// today is the pinned day every service test runs on.
var today = calendar.MustParseDate("2025-03-15")

func testClock() *calendar.Clock {
	return calendar.FixedClock(today, time.UTC)
}
