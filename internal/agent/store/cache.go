package store

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"maestro/internal/agent/models"
	id "maestro/pkg/domain"
)

// Directory is the read side the cache decorates.
type Directory interface {
	ListEnabled(ctx context.Context, tenantID id.TenantID) ([]*models.Agent, error)
}

// Cached is a redis read-through cache over an agent directory. Intent
// resolution hits the directory on every inbound message, while agent sets
// change rarely, so a short TTL removes most directory round trips without
// risking long staleness.
//
// Cache failures degrade to the underlying directory: a broken redis must
// never break message processing.
type Cached struct {
	inner  Directory
	client *redis.Client
	ttl    time.Duration
	logger *slog.Logger
}

func NewCached(inner Directory, client *redis.Client, ttl time.Duration, logger *slog.Logger) *Cached {
	return &Cached{inner: inner, client: client, ttl: ttl, logger: logger}
}

func cacheKey(tenantID id.TenantID) string {
	return "agents:enabled:" + tenantID.String()
}

func (c *Cached) ListEnabled(ctx context.Context, tenantID id.TenantID) ([]*models.Agent, error) {
	key := cacheKey(tenantID)

	cached, err := c.client.Get(ctx, key).Bytes()
	if err == nil {
		var agents []*models.Agent
		if err := json.Unmarshal(cached, &agents); err == nil {
			return agents, nil
		}
		// Corrupt entry: fall through to the directory and overwrite.
		c.logger.WarnContext(ctx, "corrupt agent cache entry", "key", key)
	} else if err != redis.Nil {
		c.logger.WarnContext(ctx, "agent cache read failed", "key", key, "error", err.Error())
	}

	agents, err := c.inner.ListEnabled(ctx, tenantID)
	if err != nil {
		return nil, err
	}

	payload, err := json.Marshal(agents)
	if err != nil {
		return agents, nil
	}
	if err := c.client.Set(ctx, key, payload, c.ttl).Err(); err != nil {
		c.logger.WarnContext(ctx, "agent cache write failed", "key", key, "error", err.Error())
	}
	return agents, nil
}

// Invalidate drops the cached agent set for a tenant. Called after admin
// writes so changes become visible before the TTL elapses.
func (c *Cached) Invalidate(ctx context.Context, tenantID id.TenantID) error {
	if err := c.client.Del(ctx, cacheKey(tenantID)).Err(); err != nil {
		return fmt.Errorf("invalidate agent cache: %w", err)
	}
	return nil
}
