package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/af-corp/aegis-advisor/internal/types"
	"github.com/redis/go-redis/v9"
)

const (
	selectionKeyPrefix = "advisor:selection:"
	alertMarkKeyPrefix = "advisor:alertmark:"
	defaultCacheTTL    = 5 * time.Minute
)

// SelectionStore is the durable selection backend behind the cache.
type SelectionStore interface {
	LoadSelectionState(ctx context.Context, sessionID string) (types.SelectionState, error)
	SaveSelectionState(ctx context.Context, state types.SelectionState) error
}

// CachedSelectionStore is a Redis read-through cache in front of a durable
// SelectionStore. With a nil client, or when Redis errors, it falls through
// to the backend.
type CachedSelectionStore struct {
	backend SelectionStore
	redis   *redis.Client
	ttl     time.Duration
}

func NewCachedSelectionStore(backend SelectionStore, rdb *redis.Client, ttl time.Duration) *CachedSelectionStore {
	if ttl <= 0 {
		ttl = defaultCacheTTL
	}
	return &CachedSelectionStore{backend: backend, redis: rdb, ttl: ttl}
}

// cacheSelectionScript writes the cached state only if it is newer than
// what is cached, so a slow writer cannot replace a fresher snapshot.
// KEYS[1] = cache key
// ARGV[1] = state JSON
// ARGV[2] = state version
// ARGV[3] = TTL milliseconds
var cacheSelectionScript = redis.NewScript(`
local cur = tonumber(redis.call('HGET', KEYS[1], 'version') or '-1')
if cur >= tonumber(ARGV[2]) then
    return 0
end
redis.call('HSET', KEYS[1], 'data', ARGV[1], 'version', ARGV[2])
redis.call('PEXPIRE', KEYS[1], ARGV[3])
return 1
`)

func (s *CachedSelectionStore) LoadSelectionState(ctx context.Context, sessionID string) (types.SelectionState, error) {
	if s.redis != nil {
		cached, err := s.redis.HGet(ctx, selectionKeyPrefix+sessionID, "data").Bytes()
		if err == nil {
			var st types.SelectionState
			if err := json.Unmarshal(cached, &st); err == nil {
				return st, nil
			}
		}
	}

	st, err := s.backend.LoadSelectionState(ctx, sessionID)
	if err != nil {
		return types.SelectionState{}, err
	}
	if st.Version > 0 {
		s.cache(ctx, st)
	}
	return st, nil
}

func (s *CachedSelectionStore) SaveSelectionState(ctx context.Context, state types.SelectionState) error {
	err := s.backend.SaveSelectionState(ctx, state)
	if errors.Is(err, ErrVersionConflict) {
		// The cached copy is stale; the retry must read the backend.
		s.invalidate(ctx, state.SessionID)
		return err
	}
	if err != nil {
		return err
	}
	state.Version++
	s.cache(ctx, state)
	return nil
}

func (s *CachedSelectionStore) cache(ctx context.Context, st types.SelectionState) {
	if s.redis == nil {
		return
	}
	data, err := json.Marshal(st)
	if err != nil {
		return
	}
	if err := cacheSelectionScript.Run(ctx, s.redis, []string{selectionKeyPrefix + st.SessionID},
		data, st.Version, s.ttl.Milliseconds()).Err(); err != nil {
		slog.Debug("selection cache write failed", "session_id", st.SessionID, "error", err)
	}
}

func (s *CachedSelectionStore) invalidate(ctx context.Context, sessionID string) {
	if s.redis == nil {
		return
	}
	s.redis.Del(ctx, selectionKeyPrefix+sessionID)
}

// AlertBackend is the durable alert store behind RedisAlertMarks.
type AlertBackend interface {
	MarkAlerted(ctx context.Context, key types.AlertKey, expiresAt time.Time) (bool, error)
	UnmarkAlerted(ctx context.Context, key types.AlertKey) error
	SaveAlert(ctx context.Context, alert types.BudgetAlert) error
	ListAlerts(ctx context.Context, includeDismissed bool) ([]types.BudgetAlert, error)
	DismissAlert(ctx context.Context, id string) error
}

// RedisAlertMarks short-circuits repeat MarkAlerted calls with SETNX. The
// first mark of a key still goes to the backend, which stays authoritative.
type RedisAlertMarks struct {
	AlertBackend
	redis *redis.Client
	now   func() time.Time
}

func NewRedisAlertMarks(backend AlertBackend, rdb *redis.Client) *RedisAlertMarks {
	return &RedisAlertMarks{AlertBackend: backend, redis: rdb, now: time.Now}
}

func alertMarkKey(k types.AlertKey) string {
	return fmt.Sprintf("%s%s:%d:%s", alertMarkKeyPrefix, k.BudgetID, k.BucketStart.Unix(),
		strconv.FormatFloat(k.Threshold, 'g', -1, 64))
}

func (r *RedisAlertMarks) MarkAlerted(ctx context.Context, key types.AlertKey, expiresAt time.Time) (bool, error) {
	if r.redis == nil {
		return r.AlertBackend.MarkAlerted(ctx, key, expiresAt)
	}

	ttl := expiresAt.Sub(r.now()) + markGrace
	if ttl < markGrace {
		ttl = markGrace
	}
	fresh, err := r.redis.SetNX(ctx, alertMarkKey(key), 1, ttl).Result()
	if err != nil {
		// Fall back to the backend on Redis errors
		return r.AlertBackend.MarkAlerted(ctx, key, expiresAt)
	}
	if !fresh {
		return false, nil
	}
	marked, err := r.AlertBackend.MarkAlerted(ctx, key, expiresAt)
	if err != nil {
		r.redis.Del(ctx, alertMarkKey(key))
		return false, err
	}
	return marked, nil
}

// UnmarkAlerted clears the Redis fast path before the backend so a stale
// SETNX key cannot hide a released mark.
func (r *RedisAlertMarks) UnmarkAlerted(ctx context.Context, key types.AlertKey) error {
	if r.redis != nil {
		if err := r.redis.Del(ctx, alertMarkKey(key)).Err(); err != nil {
			slog.Warn("redis alert mark delete failed", "budget_id", key.BudgetID, "error", err)
		}
	}
	return r.AlertBackend.UnmarkAlerted(ctx, key)
}
