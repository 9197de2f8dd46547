// Package redisdoc implements the repository interfaces as JSON documents in
// Redis.
//
// This is the manual-check adapter. Redis has no composite unique
// constraint, so every "must be unique" rule is an explicit lookup on an
// index key followed by a MULTI/EXEC write. The lookup and the write are not
// atomic together: two concurrent creates for the same (user, day) or the
// same username can both pass the check. That gap is accepted and is the
// reason the sqlite adapter is preferred when both are available.
//
// Key layout (all under the configured prefix):
//
//	account:{id}                  account document
//	account:email:{email}         → account id
//	account:github:{githubID}     → account id
//	profile:{userID}              profile document
//	profile:username:{lower}      → user id
//	log:{id}                      log entry document
//	log:day:{userID}:{YYYY-MM-DD} → log id
//	logs:user:{userID}            sorted set of log ids, score = day number
//	logs:all                      sorted set of every log id, score = day number
package redisdoc

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/sakif/reading-challenge/internal/apperror"
	"github.com/sakif/reading-challenge/internal/repository"
)

var _ repository.Backend = (*Store)(nil)

// DefaultPrefix namespaces every key written by the store.
const DefaultPrefix = "reading:"

// Options configures New.
type Options struct {
	// URL is a redis:// or rediss:// connection string.
	URL string
	// Prefix is prepended to every key. Empty means DefaultPrefix.
	Prefix string
	// DialTimeout bounds the initial connection and ping.
	DialTimeout time.Duration
}

// Store is a repository.Backend over a Redis client.
type Store struct {
	rdb    *redis.Client
	prefix string
}

// New connects to Redis and verifies the connection with PING.
func New(ctx context.Context, opts Options) (*Store, error) {
	redisOpts, err := redis.ParseURL(opts.URL)
	if err != nil {
		return nil, fmt.Errorf("redisdoc: parsing REDIS_URL: %w", err)
	}
	if opts.DialTimeout > 0 {
		redisOpts.DialTimeout = opts.DialTimeout
	} else {
		redisOpts.DialTimeout = 5 * time.Second
	}

	rdb := redis.NewClient(redisOpts)

	pingCtx, cancel := context.WithTimeout(ctx, redisOpts.DialTimeout)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redisdoc: ping: %w", err)
	}

	return NewFromClient(rdb, opts.Prefix), nil
}

// NewFromClient wraps an existing client. The store owns the client and
// closes it in Close.
func NewFromClient(rdb *redis.Client, prefix string) *Store {
	if prefix == "" {
		prefix = DefaultPrefix
	}
	return &Store{rdb: rdb, prefix: prefix}
}

// Name identifies the adapter in logs.
func (s *Store) Name() string { return "redis" }

// Close closes the underlying client.
func (s *Store) Close() error {
	return s.rdb.Close()
}

func (s *Store) key(parts ...string) string {
	k := s.prefix
	for i, p := range parts {
		if i > 0 {
			k += ":"
		}
		k += p
	}
	return k
}

// getJSON loads the document at key into dst. found is false when the key
// does not exist.
func (s *Store) getJSON(ctx context.Context, key string, dst any) (found bool, err error) {
	raw, err := s.rdb.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, failed("GET "+key, err)
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		return false, fmt.Errorf("redisdoc: decoding %s: %w", key, err)
	}
	return true, nil
}

// getString returns the value at key, or "" when it does not exist.
func (s *Store) getString(ctx context.Context, key string) (string, error) {
	v, err := s.rdb.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return "", nil
	}
	if err != nil {
		return "", failed("GET "+key, err)
	}
	return v, nil
}

func (s *Store) exists(ctx context.Context, key string) (bool, error) {
	n, err := s.rdb.Exists(ctx, key).Result()
	if err != nil {
		return false, failed("EXISTS "+key, err)
	}
	return n > 0, nil
}

func mustJSON(v any) ([]byte, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("redisdoc: encoding document: %w", err)
	}
	return b, nil
}

func failed(op string, err error) error {
	return apperror.Unavailable("redis: "+op, err)
}
