package database

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
	"github.com/vigilops/vigil/internal/alerting/model"
)

const alertCacheTTL = 48 * time.Hour

// AlertCache mirrors the in-memory alert set into Redis so external status
// consumers can read firing alerts without touching the engine. All writes
// are best-effort; a nil client turns every call into a no-op.
type AlertCache struct {
	redis *redis.Client
}

func NewAlertCache(rdb *redis.Client) *AlertCache { return &AlertCache{redis: rdb} }

func alertKey(id string) string { return "alert:instance:" + id }

func statusIndex(status model.AlertStatus) string {
	return "alert:index:status:" + string(status)
}

// WriteAlert stores the alert JSON and maintains the per-status index sets.
func (c *AlertCache) WriteAlert(ctx context.Context, a *model.Alert) error {
	if c.redis == nil {
		return nil
	}
	data, err := json.Marshal(a)
	if err != nil {
		return fmt.Errorf("marshal alert: %w", err)
	}

	pipe := c.redis.TxPipeline()
	pipe.Set(ctx, alertKey(a.ID), data, alertCacheTTL)
	switch a.Status {
	case model.StatusFiring:
		pipe.SAdd(ctx, statusIndex(model.StatusFiring), a.ID)
		pipe.SRem(ctx, statusIndex(model.StatusResolved), a.ID)
	case model.StatusResolved:
		pipe.SRem(ctx, statusIndex(model.StatusFiring), a.ID)
		pipe.SAdd(ctx, statusIndex(model.StatusResolved), a.ID)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("write alert cache: %w", err)
	}
	return nil
}

// RemoveAlert drops a purged alert from the cache and both indexes.
func (c *AlertCache) RemoveAlert(ctx context.Context, id string) error {
	if c.redis == nil {
		return nil
	}
	pipe := c.redis.TxPipeline()
	pipe.Del(ctx, alertKey(id))
	pipe.SRem(ctx, statusIndex(model.StatusFiring), id)
	pipe.SRem(ctx, statusIndex(model.StatusResolved), id)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("remove alert cache: %w", err)
	}
	return nil
}

// FiringAlertIDs lists the ids currently indexed as firing.
func (c *AlertCache) FiringAlertIDs(ctx context.Context) ([]string, error) {
	if c.redis == nil {
		return nil, nil
	}
	ids, err := c.redis.SMembers(ctx, statusIndex(model.StatusFiring)).Result()
	if err != nil {
		return nil, fmt.Errorf("read firing index: %w", err)
	}
	return ids, nil
}

// NewRedisClient constructs a client, or nil when addr is empty.
func NewRedisClient(addr, password string, db int) *redis.Client {
	if addr == "" {
		return nil
	}
	client := redis.NewClient(&redis.Options{Addr: addr, Password: password, DB: db})
	log.Debug().Str("addr", addr).Msg("redis alert cache configured")
	return client
}
