// Package stats derives reading statistics from a user's log entries.
//
// Everything here is a pure function of the entries and the current day, so
// callers always recompute from freshly fetched data instead of caching.
package stats

import (
	"sort"

	"github.com/sakif/reading-challenge/internal/calendar"
	"github.com/sakif/reading-challenge/internal/model"
)

// Compute returns totals, average and streaks for one user's entries.
// Entry order does not matter. An empty slice yields all zeros.
func Compute(entries []model.LogEntry, today calendar.Date) model.Stats {
	if len(entries) == 0 {
		return model.Stats{}
	}

	total := 0
	for _, e := range entries {
		total += e.PagesRead
	}

	days := distinctDays(entries)

	return model.Stats{
		TotalPages:    total,
		DaysLogged:    len(entries),
		AvgPages:      roundDiv(total, len(entries)),
		CurrentStreak: currentStreak(days, today),
		LongestStreak: longestStreak(days),
	}
}

// MonthlyProgress counts the entries dated between the first of the current
// month and today, against the number of days passed this month.
func MonthlyProgress(entries []model.LogEntry, clock *calendar.Clock) model.MonthlyProgress {
	start, today := clock.MonthStart(), clock.Today()
	passed := clock.DaysPassedThisMonth()

	p := model.MonthlyProgress{DaysPassed: passed}
	for _, e := range entries {
		if e.LogDate.Before(start) || e.LogDate.After(today) {
			continue
		}
		p.DaysLogged++
		p.PagesLogged += e.PagesRead
	}
	if passed > 0 {
		p.Ratio = float64(p.DaysLogged) / float64(passed)
	}
	return p
}

// roundDiv is round(a/b) with halves rounded up, for a >= 0 and b > 0.
func roundDiv(a, b int) int {
	if b == 0 {
		return 0
	}
	return (2*a + b) / (2 * b)
}

func distinctDays(entries []model.LogEntry) map[calendar.Date]struct{} {
	days := make(map[calendar.Date]struct{}, len(entries))
	for _, e := range entries {
		days[e.LogDate] = struct{}{}
	}
	return days
}

// currentStreak walks back from today one day at a time. A missing entry for
// today does not break the streak: the walk starts from yesterday instead.
func currentStreak(days map[calendar.Date]struct{}, today calendar.Date) int {
	day := today
	if _, ok := days[day]; !ok {
		day = day.AddDays(-1)
	}

	streak := 0
	for {
		if _, ok := days[day]; !ok {
			return streak
		}
		streak++
		day = day.AddDays(-1)
	}
}

func longestStreak(days map[calendar.Date]struct{}) int {
	if len(days) == 0 {
		return 0
	}

	sorted := make([]calendar.Date, 0, len(days))
	for d := range days {
		sorted = append(sorted, d)
	}
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Before(sorted[j]) })

	longest, run := 1, 1
	for i := 1; i < len(sorted); i++ {
		if sorted[i-1].DaysUntil(sorted[i]) == 1 {
			run++
		} else {
			run = 1
		}
		if run > longest {
			longest = run
		}
	}
	return longest
}
