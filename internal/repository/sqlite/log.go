package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/rs/xid"

	"github.com/sakif/reading-challenge/internal/apperror"
	"github.com/sakif/reading-challenge/internal/calendar"
	"github.com/sakif/reading-challenge/internal/model"
	"github.com/sakif/reading-challenge/internal/repository"
)

const logColumns = `id, user_id, log_date, pages_read, created_at, updated_at`

// rowScanner is satisfied by both *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

// CreateLogEntry inserts an entry. UNIQUE(user_id, log_date) makes a second
// entry for the same day fail inside the database, which is reported as
// apperror.ErrConflict.
func (db *DB) CreateLogEntry(ctx context.Context, entry *model.LogEntry) error {
	now := time.Now().UTC().Truncate(time.Microsecond)
	entry.ID = xid.New().String()
	entry.CreatedAt = now
	entry.UpdatedAt = now

	_, err := db.conn.ExecContext(ctx,
		`INSERT INTO reading_logs (`+logColumns+`) VALUES (?, ?, ?, ?, ?, ?)`,
		entry.ID,
		entry.UserID,
		entry.LogDate.String(),
		entry.PagesRead,
		now.UnixMicro(),
		now.UnixMicro(),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return apperror.Conflict("log entry", entry.UserID+"/"+entry.LogDate.String())
		}
		return failed("creating log entry", err)
	}
	return nil
}

// GetLogEntry retrieves a single entry by ID.
func (db *DB) GetLogEntry(ctx context.Context, id string) (*model.LogEntry, error) {
	row := db.conn.QueryRowContext(ctx,
		`SELECT `+logColumns+` FROM reading_logs WHERE id = ?`, id)

	entry, err := scanLog(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperror.NotFound("log entry", id)
		}
		return nil, failed("getting log entry", err)
	}
	return entry, nil
}

// GetLogEntryByDate retrieves the user's entry for one day.
func (db *DB) GetLogEntryByDate(ctx context.Context, userID string, date calendar.Date) (*model.LogEntry, error) {
	row := db.conn.QueryRowContext(ctx,
		`SELECT `+logColumns+` FROM reading_logs WHERE user_id = ? AND log_date = ?`,
		userID, date.String())

	entry, err := scanLog(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperror.NotFound("log entry", userID+"/"+date.String())
		}
		return nil, failed("getting log entry by date", err)
	}
	return entry, nil
}

// ListLogEntries returns the user's entries, newest date first. log_date is
// stored as YYYY-MM-DD so string comparison is date comparison.
func (db *DB) ListLogEntries(ctx context.Context, userID string, opts repository.LogListOptions) ([]model.LogEntry, error) {
	where := []string{"user_id = ?"}
	args := []any{userID}

	if !opts.Since.IsZero() {
		where = append(where, "log_date >= ?")
		args = append(args, opts.Since.String())
	}
	if !opts.Until.IsZero() {
		where = append(where, "log_date <= ?")
		args = append(args, opts.Until.String())
	}
	limit := repository.ClampLimit(opts.Limit)
	args = append(args, limit)

	return db.queryLogs(ctx,
		`SELECT `+logColumns+` FROM reading_logs
		 WHERE `+strings.Join(where, " AND ")+`
		 ORDER BY log_date DESC
		 LIMIT ?`,
		limit, args...)
}

// ListLogEntriesBetween returns all users' entries dated since..until.
func (db *DB) ListLogEntriesBetween(ctx context.Context, since, until calendar.Date, limit int) ([]model.LogEntry, error) {
	sqlLimit := limit
	if sqlLimit <= 0 {
		sqlLimit = -1 // SQLite: no limit
	}

	return db.queryLogs(ctx,
		`SELECT `+logColumns+` FROM reading_logs
		 WHERE log_date >= ? AND log_date <= ?
		 ORDER BY log_date ASC, created_at ASC
		 LIMIT ?`,
		max(limit, 0), since.String(), until.String(), sqlLimit)
}

// MonthlyTotals aggregates pages per user in one query.
func (db *DB) MonthlyTotals(ctx context.Context, since, until calendar.Date) ([]model.UserTotal, error) {
	rows, err := db.conn.QueryContext(ctx,
		`SELECT user_id, SUM(pages_read), MAX(updated_at)
		 FROM reading_logs
		 WHERE log_date >= ? AND log_date <= ?
		 GROUP BY user_id`,
		since.String(), until.String())
	if err != nil {
		return nil, failed("aggregating monthly totals", err)
	}
	defer rows.Close()

	var totals []model.UserTotal
	for rows.Next() {
		var t model.UserTotal
		if err := rows.Scan(&t.UserID, &t.TotalPages, &t.ReachedAt); err != nil {
			return nil, failed("scanning monthly total", err)
		}
		totals = append(totals, t)
	}
	if err := rows.Err(); err != nil {
		return nil, failed("iterating monthly totals", err)
	}
	return totals, nil
}

// UpdateLogEntry changes the page count of an entry owned by ownerID.
// Matching on both id and user_id stands in for a row-level access policy:
// someone else's entry looks exactly like a missing one.
func (db *DB) UpdateLogEntry(ctx context.Context, ownerID, id string, pagesRead int) (*model.LogEntry, error) {
	result, err := db.conn.ExecContext(ctx,
		`UPDATE reading_logs SET pages_read = ?, updated_at = ?
		 WHERE id = ? AND user_id = ?`,
		pagesRead, time.Now().UTC().UnixMicro(), id, ownerID,
	)
	if err != nil {
		return nil, failed("updating log entry", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return nil, failed("checking rows affected", err)
	}
	if rows == 0 {
		return nil, apperror.NotFound("log entry", id)
	}

	return db.GetLogEntry(ctx, id)
}

// DeleteLogEntry removes an entry owned by ownerID.
func (db *DB) DeleteLogEntry(ctx context.Context, ownerID, id string) error {
	result, err := db.conn.ExecContext(ctx,
		`DELETE FROM reading_logs WHERE id = ? AND user_id = ?`, id, ownerID)
	if err != nil {
		return failed("deleting log entry", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return failed("checking rows affected", err)
	}
	if rows == 0 {
		return apperror.NotFound("log entry", id)
	}
	return nil
}

func (db *DB) queryLogs(ctx context.Context, query string, sizeHint int, args ...any) ([]model.LogEntry, error) {
	rows, err := db.conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, failed("listing log entries", err)
	}
	defer rows.Close()

	entries := make([]model.LogEntry, 0, sizeHint)
	for rows.Next() {
		entry, err := scanLog(rows)
		if err != nil {
			return nil, failed("scanning log entry", err)
		}
		entries = append(entries, *entry)
	}
	if err := rows.Err(); err != nil {
		return nil, failed("iterating log entries", err)
	}
	return entries, nil
}

func scanLog(s rowScanner) (*model.LogEntry, error) {
	var (
		e                    model.LogEntry
		logDate              string
		createdAt, updatedAt int64
	)
	if err := s.Scan(&e.ID, &e.UserID, &logDate, &e.PagesRead, &createdAt, &updatedAt); err != nil {
		return nil, err
	}

	d, err := calendar.ParseDate(logDate)
	if err != nil {
		return nil, err
	}
	e.LogDate = d
	e.CreatedAt = time.UnixMicro(createdAt).UTC()
	e.UpdatedAt = time.UnixMicro(updatedAt).UTC()
	return &e, nil
}
