package model

// Stats is derived from a user's log entries and the current day. It is
// never stored.
type Stats struct {
	TotalPages    int `json:"totalPages"`
	DaysLogged    int `json:"daysLogged"`
	AvgPages      int `json:"avgPages"`
	CurrentStreak int `json:"currentStreak"`
	LongestStreak int `json:"longestStreak"`
}

// MonthlyProgress describes how much of the current month a user has logged.
type MonthlyProgress struct {
	DaysLogged  int     `json:"daysLogged"`
	DaysPassed  int     `json:"daysPassed"`
	Ratio       float64 `json:"ratio"`
	PagesLogged int     `json:"pagesLogged"`
}

// LeaderboardEntry is one ranked row of the monthly leaderboard.
type LeaderboardEntry struct {
	Rank       int    `json:"rank"`
	UserID     string `json:"userId"`
	Username   string `json:"username"`
	AvatarURL  string `json:"avatarUrl,omitempty"`
	TotalPages int    `json:"totalPages"`
}

// UserTotal is a per-user page sum over some window, as returned by an
// aggregate query.
type UserTotal struct {
	UserID     string
	TotalPages int
	// ReachedAt is the unix-microsecond time of the last write that counted
	// toward TotalPages. Earlier wins ties.
	ReachedAt int64
}
