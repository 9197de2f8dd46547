// Package service holds the business rules. Handlers call services with
// plain values; services call repository interfaces and never see HTTP or
// SQL.
//
//	Handler (HTTP) → Service (rules, validation) → repository.Backend
//
// Every service takes its dependencies in a New function so tests can pass
// in-memory fakes instead of a real backend.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/sakif/reading-challenge/internal/apperror"
	"github.com/sakif/reading-challenge/internal/calendar"
	"github.com/sakif/reading-challenge/internal/model"
	"github.com/sakif/reading-challenge/internal/repository"
)

// Log entry rules.
const (
	MinPagesRead = 1
	MaxPagesRead = 1000
	// LogWindowDays is how many days back from today a new entry may be dated.
	LogWindowDays = 3
)

// DuplicateLogMessage is shown for a second entry on the same day, whichever
// layer caught it.
const DuplicateLogMessage = "You have already logged reading for this date. Edit that entry instead."

// LogService guards every log mutation.
type LogService struct {
	logs   repository.LogRepository
	clock  *calendar.Clock
	logger *slog.Logger
}

func NewLogService(logs repository.LogRepository, clock *calendar.Clock, logger *slog.Logger) *LogService {
	return &LogService{
		logs:   logs,
		clock:  clock,
		logger: logger,
	}
}

// Create validates and stores a new entry.
//
// The checks run in a fixed order: date window, page range, existing entry
// for (user, day). Only then is the backend asked to write. A backend that
// enforces uniqueness itself can still report ErrConflict if another request
// won the race; that is turned into the same duplicate error as the lookup.
func (s *LogService) Create(ctx context.Context, userID string, logDate calendar.Date, pagesRead int) (*model.LogEntry, error) {
	if logDate.IsZero() {
		return nil, apperror.ValidationFailed("logDate", "Log date is required")
	}
	if !s.clock.IsDateInRange(logDate, LogWindowDays) {
		return nil, apperror.ValidationFailed("logDate",
			fmt.Sprintf("You can only log reading for today or the previous %d days", LogWindowDays))
	}
	if err := validatePages(pagesRead); err != nil {
		return nil, err
	}

	existing, err := s.GetByDate(ctx, userID, logDate)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, apperror.Duplicate("logDate", DuplicateLogMessage)
	}

	entry := &model.LogEntry{
		UserID:    userID,
		LogDate:   logDate,
		PagesRead: pagesRead,
	}
	if err := s.logs.CreateLogEntry(ctx, entry); err != nil {
		if errors.Is(err, apperror.ErrConflict) {
			s.logger.Info("duplicate log entry rejected by backend",
				slog.String("userID", userID),
				slog.String("logDate", logDate.String()),
			)
			return nil, apperror.Duplicate("logDate", DuplicateLogMessage)
		}
		return nil, err
	}

	s.logger.Info("log entry created",
		slog.String("id", entry.ID),
		slog.String("userID", userID),
		slog.String("logDate", logDate.String()),
		slog.Int("pagesRead", pagesRead),
	)
	return entry, nil
}

// Update changes the page count. The date is not re-checked against the
// window, so an older entry can still be corrected.
func (s *LogService) Update(ctx context.Context, userID, logID string, pagesRead int) (*model.LogEntry, error) {
	if err := validatePages(pagesRead); err != nil {
		return nil, err
	}

	entry, err := s.logs.UpdateLogEntry(ctx, userID, logID, pagesRead)
	if err != nil {
		return nil, err
	}

	s.logger.Info("log entry updated",
		slog.String("id", logID),
		slog.String("userID", userID),
		slog.Int("pagesRead", pagesRead),
	)
	return entry, nil
}

// Delete removes one of the user's entries.
func (s *LogService) Delete(ctx context.Context, userID, logID string) error {
	if err := s.logs.DeleteLogEntry(ctx, userID, logID); err != nil {
		return err
	}
	s.logger.Info("log entry deleted", slog.String("id", logID), slog.String("userID", userID))
	return nil
}

// GetByDate returns the user's entry for date, or (nil, nil) when there is
// none. Absence is not an error for lookups.
func (s *LogService) GetByDate(ctx context.Context, userID string, date calendar.Date) (*model.LogEntry, error) {
	entry, err := s.logs.GetLogEntryByDate(ctx, userID, date)
	if errors.Is(err, apperror.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return entry, nil
}

// List returns the user's entries newest first.
func (s *LogService) List(ctx context.Context, userID string, opts repository.LogListOptions) ([]model.LogEntry, error) {
	if !opts.Since.IsZero() && !opts.Until.IsZero() && opts.Until.Before(opts.Since) {
		return nil, apperror.ValidationFailed("until", "until must not be before since")
	}
	opts.Limit = repository.ClampLimit(opts.Limit)
	return s.logs.ListLogEntries(ctx, userID, opts)
}

func validatePages(pagesRead int) error {
	if pagesRead < MinPagesRead || pagesRead > MaxPagesRead {
		return apperror.ValidationFailed("pagesRead",
			fmt.Sprintf("Pages read must be between %d and %d", MinPagesRead, MaxPagesRead))
	}
	return nil
}
