// Package leaderboard groups log entries by user and ranks users by pages
// read.
//
// Ordering is by total pages, descending. Equal totals go to the user who
// reached the total first (the earliest last-counted write), and after that
// to the smaller user id, so the order never depends on map iteration.
package leaderboard

import (
	"sort"

	"github.com/sakif/reading-challenge/internal/model"
)

// Totals sums pages per user. The result is sorted (see Sort).
func Totals(entries []model.LogEntry) []model.UserTotal {
	index := make(map[string]int)
	totals := make([]model.UserTotal, 0)

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

	Sort(totals)
	return totals
}

// Sort orders totals in place: pages descending, then ReachedAt ascending,
// then UserID ascending.
func Sort(totals []model.UserTotal) {
	sort.SliceStable(totals, func(i, j int) bool {
		a, b := totals[i], totals[j]
		if a.TotalPages != b.TotalPages {
			return a.TotalPages > b.TotalPages
		}
		if a.ReachedAt != b.ReachedAt {
			return a.ReachedAt < b.ReachedAt
		}
		return a.UserID < b.UserID
	})
}

// Top truncates sorted totals to limit rows and assigns 1-based positional
// ranks. limit <= 0 keeps every row.
//
// The rank is the position within the returned slice. It is only a global
// rank when the slice holds the whole population.
func Top(sorted []model.UserTotal, limit int) []model.LeaderboardEntry {
	if limit > 0 && limit < len(sorted) {
		sorted = sorted[:limit]
	}

	out := make([]model.LeaderboardEntry, len(sorted))
	for i, t := range sorted {
		out[i] = model.LeaderboardEntry{
			Rank:       i + 1,
			UserID:     t.UserID,
			TotalPages: t.TotalPages,
		}
	}
	return out
}

// Rank is Totals followed by Top.
func Rank(entries []model.LogEntry, limit int) []model.LeaderboardEntry {
	return Top(Totals(entries), limit)
}

// Position returns the 1-based rank of userID in sorted totals, or 0 when
// the user is not present.
func Position(sorted []model.UserTotal, userID string) int {
	for i, t := range sorted {
		if t.UserID == userID {
			return i + 1
		}
	}
	return 0
}
