package service

import (
	"context"
	"errors"
	"log/slog"

	"github.com/sakif/reading-challenge/internal/apperror"
	"github.com/sakif/reading-challenge/internal/calendar"
	"github.com/sakif/reading-challenge/internal/leaderboard"
	"github.com/sakif/reading-challenge/internal/model"
	"github.com/sakif/reading-challenge/internal/repository"
)

// Leaderboard limits.
const (
	DefaultLeaderboardLimit = 10
	MaxLeaderboardLimit     = 100
	DefaultRankScanLimit    = 500
	// UnknownReader is shown for a ranked user who has no profile.
	UnknownReader = "unknown reader"
)

// LeaderboardService ranks users by pages read this month.
//
// When the log repository also implements repository.MonthlyTotaler, totals
// come from one aggregate query and ranks are global. Otherwise every entry
// since the first of the month is listed and summed here, and GetUserRank
// only looks at the first scanLimit rows of that ranking.
type LeaderboardService struct {
	logs      repository.LogRepository
	profiles  repository.ProfileRepository
	clock     *calendar.Clock
	scanLimit int
	logger    *slog.Logger
}

func NewLeaderboardService(
	logs repository.LogRepository,
	profiles repository.ProfileRepository,
	clock *calendar.Clock,
	scanLimit int,
	logger *slog.Logger,
) *LeaderboardService {
	if scanLimit <= 0 {
		scanLimit = DefaultRankScanLimit
	}
	return &LeaderboardService{
		logs:      logs,
		profiles:  profiles,
		clock:     clock,
		scanLimit: scanLimit,
		logger:    logger,
	}
}

// Top returns the first limit users with username and avatar filled in.
func (s *LeaderboardService) Top(ctx context.Context, limit int) ([]model.LeaderboardEntry, error) {
	switch {
	case limit <= 0:
		limit = DefaultLeaderboardLimit
	case limit > MaxLeaderboardLimit:
		limit = MaxLeaderboardLimit
	}

	totals, err := s.monthlyTotals(ctx)
	if err != nil {
		return nil, err
	}

	rows := leaderboard.Top(totals, limit)
	for i := range rows {
		if err := s.resolve(ctx, &rows[i]); err != nil {
			return nil, err
		}
	}
	return rows, nil
}

// GetUserRank returns the user's 1-based position this month, or 0 when the
// user has no entries this month or sits beyond the scanned slice.
func (s *LeaderboardService) GetUserRank(ctx context.Context, userID string) (int, error) {
	totals, err := s.monthlyTotals(ctx)
	if err != nil {
		return 0, err
	}

	if _, ok := s.logs.(repository.MonthlyTotaler); !ok && len(totals) > s.scanLimit {
		totals = totals[:s.scanLimit]
	}
	return leaderboard.Position(totals, userID), nil
}

func (s *LeaderboardService) monthlyTotals(ctx context.Context) ([]model.UserTotal, error) {
	since, until := s.clock.MonthStart(), s.clock.Today()

	if totaler, ok := s.logs.(repository.MonthlyTotaler); ok {
		totals, err := totaler.MonthlyTotals(ctx, since, until)
		if err != nil {
			return nil, err
		}
		leaderboard.Sort(totals)
		return totals, nil
	}

	entries, err := s.logs.ListLogEntriesBetween(ctx, since, until, 0)
	if err != nil {
		return nil, err
	}
	return leaderboard.Totals(entries), nil
}

func (s *LeaderboardService) resolve(ctx context.Context, row *model.LeaderboardEntry) error {
	p, err := s.profiles.GetProfile(ctx, row.UserID)
	if errors.Is(err, apperror.ErrNotFound) {
		s.logger.Debug("ranked user has no profile", slog.String("userID", row.UserID))
		row.Username = UnknownReader
		return nil
	}
	if err != nil {
		return err
	}
	row.Username = p.Username
	row.AvatarURL = p.AvatarURL
	return nil
}
