package leaderboard

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sakif/reading-challenge/internal/calendar"
	"github.com/sakif/reading-challenge/internal/model"
)

var (
	day  = calendar.MustParseDate("2026-10-10")
	base = time.Date(2026, 10, 10, 8, 0, 0, 0, time.UTC)
)

func entry(user string, pages int, writtenAt time.Time) model.LogEntry {
	return model.LogEntry{
		UserID:    user,
		LogDate:   day,
		PagesRead: pages,
		CreatedAt: writtenAt,
		UpdatedAt: writtenAt,
	}
}

func TestRank_Empty(t *testing.T) {
	assert.Empty(t, Rank(nil, 10))
}

func TestRank_SumsPerUser(t *testing.T) {
	entries := []model.LogEntry{
		entry("a", 10, base),
		entry("b", 5, base),
		entry("a", 20, base),
		entry("c", 40, base),
		entry("b", 50, base),
	}

	got := Rank(entries, 0)

	require.Len(t, got, 3)
	assert.Equal(t, model.LeaderboardEntry{Rank: 1, UserID: "b", TotalPages: 55}, got[0])
	assert.Equal(t, model.LeaderboardEntry{Rank: 2, UserID: "c", TotalPages: 40}, got[1])
	assert.Equal(t, model.LeaderboardEntry{Rank: 3, UserID: "a", TotalPages: 30}, got[2])
}

func TestRank_TieLimitTwo(t *testing.T) {
	// A=30, B=50, C=50; limit 2 keeps B and C with positions 1 and 2.
	entries := []model.LogEntry{
		entry("A", 30, base),
		entry("B", 50, base.Add(time.Minute)),
		entry("C", 50, base.Add(2*time.Minute)),
	}

	got := Rank(entries, 2)

	require.Len(t, got, 2)
	assert.ElementsMatch(t, []string{"B", "C"}, []string{got[0].UserID, got[1].UserID})
	assert.Equal(t, 1, got[0].Rank)
	assert.Equal(t, 2, got[1].Rank)
	assert.Equal(t, 50, got[0].TotalPages)
	assert.Equal(t, 50, got[1].TotalPages)
}

func TestRank_TieGoesToEarliestToReachTotal(t *testing.T) {
	entries := []model.LogEntry{
		entry("late", 25, base),
		entry("late", 25, base.Add(3*time.Hour)),
		entry("early", 50, base.Add(time.Hour)),
	}

	got := Rank(entries, 0)

	require.Len(t, got, 2)
	assert.Equal(t, "early", got[0].UserID)
	assert.Equal(t, "late", got[1].UserID)
}

func TestRank_TieFallsBackToUserID(t *testing.T) {
	entries := []model.LogEntry{
		entry("zed", 10, base),
		entry("amy", 10, base),
	}

	got := Rank(entries, 0)

	assert.Equal(t, "amy", got[0].UserID)
	assert.Equal(t, "zed", got[1].UserID)
}

func TestTop_LimitLargerThanPopulation(t *testing.T) {
	totals := []model.UserTotal{{UserID: "a", TotalPages: 3}}
	assert.Len(t, Top(totals, 50), 1)
}

func TestPosition(t *testing.T) {
	totals := Totals([]model.LogEntry{
		entry("a", 10, base),
		entry("b", 30, base),
		entry("c", 20, base),
	})

	assert.Equal(t, 1, Position(totals, "b"))
	assert.Equal(t, 2, Position(totals, "c"))
	assert.Equal(t, 3, Position(totals, "a"))
	assert.Equal(t, 0, Position(totals, "missing"))
	assert.Equal(t, 0, Position(totals[:1], "a"), "a user beyond the slice is unranked")
}
