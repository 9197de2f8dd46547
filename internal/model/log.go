package model

import (
	"time"

	"github.com/sakif/reading-challenge/internal/calendar"
)

// LogEntry is one day of reading for one user. There is at most one entry
// per (UserID, LogDate). LogDate never changes after creation; only
// PagesRead can be edited.
type LogEntry struct {
	ID        string        `json:"id"`
	UserID    string        `json:"userId"`
	LogDate   calendar.Date `json:"logDate"`
	PagesRead int           `json:"pagesRead"`
	CreatedAt time.Time     `json:"createdAt"`
	UpdatedAt time.Time     `json:"updatedAt"`
}
