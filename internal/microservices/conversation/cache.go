package conversation

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"
	"time"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"

	"restaurant-assistant/internal/domain"
)

// SessionCache is a best-effort copy of sessions for GetSession. Nothing
// that decides quota or ordering reads it.
//
// Get returns the entry's version alongside the cached session, hit or miss.
// Put stores s only if no Invalidate has happened since Get handed out
// version, so a read that races a write cannot re-cache the old row.
type SessionCache interface {
	Get(ctx context.Context, tenantID, id string) (s *domain.Session, version int64, ok bool)
	Put(ctx context.Context, s *domain.Session, version int64)
	Invalidate(ctx context.Context, tenantID, id string)
}

type nopCache struct{}

func (nopCache) Get(context.Context, string, string) (*domain.Session, int64, bool) { return nil, 0, false }
func (nopCache) Put(context.Context, *domain.Session, int64)                        {}
func (nopCache) Invalidate(context.Context, string, string)                         {}

// RedisSessionCache keeps each session as JSON next to a generation counter
// that Invalidate bumps.
type RedisSessionCache struct {
	rdb *redis.Client
	ttl time.Duration
	lg  *zap.Logger
}

func NewRedisSessionCache(rdb *redis.Client, ttl time.Duration, lg *zap.Logger) *RedisSessionCache {
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	return &RedisSessionCache{rdb: rdb, ttl: ttl, lg: lg}
}

func sessionKey(tenantID, id string) string    { return "session:" + tenantID + ":" + id }
func generationKey(tenantID, id string) string { return sessionKey(tenantID, id) + ":gen" }

var errStaleSession = errors.New("session invalidated since read")

func (c *RedisSessionCache) Get(ctx context.Context, tenantID, id string) (*domain.Session, int64, bool) {
	vals, err := c.rdb.MGet(ctx, sessionKey(tenantID, id), generationKey(tenantID, id)).Result()
	if err != nil || len(vals) != 2 {
		c.lg.Warn("session_cache_unavailable", zap.String("session_id", id), zap.Error(err))
		// -1 never matches a stored generation, so the following Put is skipped.
		return nil, -1, false
	}
	var version int64
	if g, ok := vals[1].(string); ok {
		version, _ = strconv.ParseInt(g, 10, 64)
	}
	raw, ok := vals[0].(string)
	if !ok {
		return nil, version, false
	}
	var s domain.Session
	if err := json.Unmarshal([]byte(raw), &s); err != nil {
		return nil, version, false
	}
	return &s, version, true
}

func (c *RedisSessionCache) Put(ctx context.Context, s *domain.Session, version int64) {
	b, err := json.Marshal(s)
	if err != nil {
		return
	}
	key, gen := sessionKey(s.TenantID, s.ID), generationKey(s.TenantID, s.ID)
	err = c.rdb.Watch(ctx, func(tx *redis.Tx) error {
		cur, err := tx.Get(ctx, gen).Int64()
		if err != nil && !errors.Is(err, redis.Nil) {
			return err
		}
		if cur != version {
			return errStaleSession
		}
		_, err = tx.TxPipelined(ctx, func(p redis.Pipeliner) error {
			p.Set(ctx, key, b, c.ttl)
			return nil
		})
		return err
	}, gen)
	switch {
	case err == nil, errors.Is(err, errStaleSession), errors.Is(err, redis.TxFailedErr):
	default:
		c.lg.Warn("session_cache_write_failed", zap.String("session_id", s.ID), zap.Error(err))
	}
}

func (c *RedisSessionCache) Invalidate(ctx context.Context, tenantID, id string) {
	gen := generationKey(tenantID, id)
	_, err := c.rdb.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.Incr(ctx, gen)
		p.Expire(ctx, gen, 2*c.ttl)
		p.Del(ctx, sessionKey(tenantID, id))
		return nil
	})
	if err != nil {
		c.lg.Warn("session_cache_invalidate_failed", zap.String("session_id", id), zap.Error(err))
	}
}
