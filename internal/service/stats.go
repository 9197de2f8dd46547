package service

import (
	"context"
	"log/slog"

	"github.com/sakif/reading-challenge/internal/calendar"
	"github.com/sakif/reading-challenge/internal/model"
	"github.com/sakif/reading-challenge/internal/repository"
	"github.com/sakif/reading-challenge/internal/stats"
)

// StatsService recomputes a user's statistics from freshly listed entries on
// every call.
type StatsService struct {
	logs   repository.LogRepository
	clock  *calendar.Clock
	logger *slog.Logger
}

func NewStatsService(logs repository.LogRepository, clock *calendar.Clock, logger *slog.Logger) *StatsService {
	return &StatsService{logs: logs, clock: clock, logger: logger}
}

// Get returns totals, average and streaks over all of the user's entries.
func (s *StatsService) Get(ctx context.Context, userID string) (model.Stats, error) {
	entries, err := listAll(ctx, s.logs, userID, calendar.Date{})
	if err != nil {
		return model.Stats{}, err
	}
	return stats.Compute(entries, s.clock.Today()), nil
}

// Progress returns the current month's logged days against days passed.
func (s *StatsService) Progress(ctx context.Context, userID string) (model.MonthlyProgress, error) {
	entries, err := listAll(ctx, s.logs, userID, s.clock.MonthStart())
	if err != nil {
		return model.MonthlyProgress{}, err
	}
	return stats.MonthlyProgress(entries, s.clock), nil
}

// listAll pages backwards through the user's entries from the newest date
// down to since (zero means no lower bound).
//
// The document backend can hold two entries for one day (see redisdoc), so
// the next page starts at the oldest date of the previous one rather than
// the day before, and entries already seen are dropped by ID. A page that
// adds nothing new moves on to the previous day.
func listAll(ctx context.Context, logs repository.LogRepository, userID string, since calendar.Date) ([]model.LogEntry, error) {
	var (
		all   []model.LogEntry
		until calendar.Date
		seen  = make(map[string]struct{})
	)
	for {
		page, err := logs.ListLogEntries(ctx, userID, repository.LogListOptions{
			Since: since,
			Until: until,
			Limit: repository.MaxLogListLimit,
		})
		if err != nil {
			return nil, err
		}

		added := 0
		for _, e := range page {
			if _, ok := seen[e.ID]; ok {
				continue
			}
			seen[e.ID] = struct{}{}
			all = append(all, e)
			added++
		}
		if len(page) < repository.MaxLogListLimit {
			return all, nil
		}

		oldest := page[len(page)-1].LogDate
		if added == 0 {
			until = oldest.AddDays(-1)
		} else {
			until = oldest
		}
	}
}
