package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/cloudtrack/certprep/internal/config"
	"github.com/cloudtrack/certprep/internal/model"
)

// ErrSessionNotFound is returned when a user has no stored exam session.
var ErrSessionNotFound = errors.New("exam session not found")

// SessionRepository stores each user's active exam session in Redis.
type SessionRepository struct {
	rdb *redis.Client
	ttl time.Duration
}

// NewSessionRepository creates a new SessionRepository. Records expire after
// ttl of inactivity.
func NewSessionRepository(rdb *redis.Client, ttl time.Duration) *SessionRepository {
	return &SessionRepository{rdb: rdb, ttl: ttl}
}

// Get loads the stored session for userID.
func (r *SessionRepository) Get(ctx context.Context, userID string) (*model.ActiveSession, error) {
	data, err := r.rdb.Get(ctx, config.CacheKey.ActiveExamSessionKey(userID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrSessionNotFound
		}
		return nil, fmt.Errorf("get session: %w", err)
	}

	var rec model.ActiveSession
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("unmarshal session: %w", err)
	}
	if rec.Session == nil {
		return nil, ErrSessionNotFound
	}
	return &rec, nil
}

// Save replaces the stored session for rec.UserID.
func (r *SessionRepository) Save(ctx context.Context, rec *model.ActiveSession) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("marshal session: %w", err)
	}
	if err := r.rdb.Set(ctx, config.CacheKey.ActiveExamSessionKey(rec.UserID), data, r.ttl).Err(); err != nil {
		return fmt.Errorf("store session: %w", err)
	}
	return nil
}

// Delete discards the stored session for userID.
func (r *SessionRepository) Delete(ctx context.Context, userID string) error {
	return r.rdb.Del(ctx, config.CacheKey.ActiveExamSessionKey(userID)).Err()
}

// CountActive returns the number of sessions still in progress. Finished
// records waiting for their TTL and sessions whose time has run out since
// their last sync are skipped. It walks the keyspace with SCAN so it never
// blocks Redis.
func (r *SessionRepository) CountActive(ctx context.Context) (int, error) {
	var (
		cursor uint64
		total  int
	)
	now := time.Now()
	for {
		keys, next, err := r.rdb.Scan(ctx, cursor, config.CacheKey.ActiveExamSessionPattern(), 500).Result()
		if err != nil {
			return 0, fmt.Errorf("scan sessions: %w", err)
		}
		if len(keys) > 0 {
			values, err := r.rdb.MGet(ctx, keys...).Result()
			if err != nil {
				return 0, fmt.Errorf("load sessions: %w", err)
			}
			for _, v := range values {
				raw, ok := v.(string)
				if !ok {
					// Expired between SCAN and MGET.
					continue
				}
				var rec model.ActiveSession
				if err := json.Unmarshal([]byte(raw), &rec); err != nil {
					continue
				}
				if rec.Running(now) {
					total++
				}
			}
		}
		cursor = next
		if cursor == 0 {
			return total, nil
		}
	}
}
