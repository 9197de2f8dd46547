package redisdoc

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/xid"

	"github.com/sakif/reading-challenge/internal/apperror"
	"github.com/sakif/reading-challenge/internal/calendar"
	"github.com/sakif/reading-challenge/internal/model"
	"github.com/sakif/reading-challenge/internal/repository"
)

var epoch = calendar.NewDate(1970, time.January, 1)

// dayScore maps a date onto the sorted-set score used by the log indexes.
func dayScore(d calendar.Date) string {
	return strconv.Itoa(epoch.DaysUntil(d))
}

func (s *Store) logKey(id string) string { return s.key("log", id) }

func (s *Store) logDayKey(userID string, d calendar.Date) string {
	return s.key("log", "day", userID, d.String())
}

func (s *Store) userLogsKey(userID string) string { return s.key("logs", "user", userID) }

func (s *Store) allLogsKey() string { return s.key("logs", "all") }

// CreateLogEntry looks up the (user, day) index key and only writes when it
// is absent. The check and the MULTI/EXEC write are separate round trips.
func (s *Store) CreateLogEntry(ctx context.Context, entry *model.LogEntry) error {
	dayKey := s.logDayKey(entry.UserID, entry.LogDate)

	taken, err := s.exists(ctx, dayKey)
	if err != nil {
		return err
	}
	if taken {
		return apperror.Conflict("log entry", entry.UserID+"/"+entry.LogDate.String())
	}

	now := time.Now().UTC().Truncate(time.Microsecond)
	entry.ID = xid.New().String()
	entry.CreatedAt = now
	entry.UpdatedAt = now

	doc, err := mustJSON(entry)
	if err != nil {
		return err
	}

	score := float64(epoch.DaysUntil(entry.LogDate))
	_, err = s.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, s.logKey(entry.ID), doc, 0)
		pipe.Set(ctx, dayKey, entry.ID, 0)
		pipe.ZAdd(ctx, s.userLogsKey(entry.UserID), redis.Z{Score: score, Member: entry.ID})
		pipe.ZAdd(ctx, s.allLogsKey(), redis.Z{Score: score, Member: entry.ID})
		return nil
	})
	if err != nil {
		return failed("creating log entry", err)
	}
	return nil
}

func (s *Store) GetLogEntry(ctx context.Context, id string) (*model.LogEntry, error) {
	var e model.LogEntry
	found, err := s.getJSON(ctx, s.logKey(id), &e)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, apperror.NotFound("log entry", id)
	}
	return &e, nil
}

func (s *Store) GetLogEntryByDate(ctx context.Context, userID string, date calendar.Date) (*model.LogEntry, error) {
	id, err := s.getString(ctx, s.logDayKey(userID, date))
	if err != nil {
		return nil, err
	}
	if id == "" {
		return nil, apperror.NotFound("log entry", userID+"/"+date.String())
	}
	return s.GetLogEntry(ctx, id)
}

// ListLogEntries reads the user's sorted set newest day first and loads the
// documents with MGET.
func (s *Store) ListLogEntries(ctx context.Context, userID string, opts repository.LogListOptions) ([]model.LogEntry, error) {
	rng := &redis.ZRangeBy{
		Min:   "-inf",
		Max:   "+inf",
		Count: int64(repository.ClampLimit(opts.Limit)),
	}
	if !opts.Since.IsZero() {
		rng.Min = dayScore(opts.Since)
	}
	if !opts.Until.IsZero() {
		rng.Max = dayScore(opts.Until)
	}

	ids, err := s.rdb.ZRevRangeByScore(ctx, s.userLogsKey(userID), rng).Result()
	if err != nil {
		return nil, failed("listing log entries", err)
	}
	return s.loadLogs(ctx, ids)
}

// ListLogEntriesBetween reads the global index oldest day first. limit <= 0
// means no limit.
func (s *Store) ListLogEntriesBetween(ctx context.Context, since, until calendar.Date, limit int) ([]model.LogEntry, error) {
	rng := &redis.ZRangeBy{
		Min: dayScore(since),
		Max: dayScore(until),
	}
	if limit > 0 {
		rng.Count = int64(limit)
	}

	ids, err := s.rdb.ZRangeByScore(ctx, s.allLogsKey(), rng).Result()
	if err != nil {
		return nil, failed("listing log entries", err)
	}
	return s.loadLogs(ctx, ids)
}

// UpdateLogEntry rewrites the document when ownerID owns it. Concurrent
// updates are last write wins.
func (s *Store) UpdateLogEntry(ctx context.Context, ownerID, id string, pagesRead int) (*model.LogEntry, error) {
	e, err := s.GetLogEntry(ctx, id)
	if err != nil {
		return nil, err
	}
	if e.UserID != ownerID {
		return nil, apperror.NotFound("log entry", id)
	}

	e.PagesRead = pagesRead
	e.UpdatedAt = time.Now().UTC().Truncate(time.Microsecond)

	doc, err := mustJSON(e)
	if err != nil {
		return nil, err
	}
	if err := s.rdb.Set(ctx, s.logKey(id), doc, 0).Err(); err != nil {
		return nil, failed("updating log entry", err)
	}
	return e, nil
}

// deleteRetries bounds how often DeleteLogEntry retries when the day index
// changes under its WATCH.
const deleteRetries = 3

// DeleteLogEntry removes the document and every index that points at it.
// The day index is only removed while it still holds id: after a racing
// double create it points at the other entry, which must stay findable.
func (s *Store) DeleteLogEntry(ctx context.Context, ownerID, id string) error {
	e, err := s.GetLogEntry(ctx, id)
	if err != nil {
		return err
	}
	if e.UserID != ownerID {
		return apperror.NotFound("log entry", id)
	}

	dayKey := s.logDayKey(e.UserID, e.LogDate)
	remove := func(tx *redis.Tx) error {
		current, err := tx.Get(ctx, dayKey).Result()
		if err != nil && !errors.Is(err, redis.Nil) {
			return err
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Del(ctx, s.logKey(id))
			if current == id {
				pipe.Del(ctx, dayKey)
			}
			pipe.ZRem(ctx, s.userLogsKey(e.UserID), id)
			pipe.ZRem(ctx, s.allLogsKey(), id)
			return nil
		})
		return err
	}

	for i := 0; i < deleteRetries; i++ {
		err = s.rdb.Watch(ctx, remove, dayKey)
		if !errors.Is(err, redis.TxFailedErr) {
			break
		}
	}
	if err != nil {
		return failed("deleting log entry", err)
	}
	return nil
}

// loadLogs fetches documents for ids in order. Index members whose document
// has gone are skipped.
func (s *Store) loadLogs(ctx context.Context, ids []string) ([]model.LogEntry, error) {
	entries := make([]model.LogEntry, 0, len(ids))
	if len(ids) == 0 {
		return entries, nil
	}

	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = s.logKey(id)
	}

	values, err := s.rdb.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, failed("loading log entries", err)
	}

	for i, v := range values {
		raw, ok := v.(string)
		if !ok {
			continue
		}
		var e model.LogEntry
		if err := json.Unmarshal([]byte(raw), &e); err != nil {
			return nil, fmt.Errorf("redisdoc: decoding %s: %w", keys[i], err)
		}
		entries = append(entries, e)
	}
	return entries, nil
}
