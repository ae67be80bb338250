//go:build integration

package store_test

import (
	"context"
	"log/slog"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"maestro/internal/agent/models"
	"maestro/internal/agent/store"
	id "maestro/pkg/domain"
	"maestro/pkg/testutil/containers"
)

// countingDirectory tracks how often the underlying directory is consulted.
type countingDirectory struct {
	inner *store.InMemory
	hits  atomic.Int64
}

func (d *countingDirectory) ListEnabled(ctx context.Context, tenantID id.TenantID) ([]*models.Agent, error) {
	d.hits.Add(1)
	return d.inner.ListEnabled(ctx, tenantID)
}

func TestCachedDirectory(t *testing.T) {
	rc := containers.NewRedisContainer(t)
	ctx := context.Background()
	now := time.Date(2026, 3, 14, 10, 30, 0, 0, time.UTC)

	tenantID := id.TenantID(uuid.New())
	inner := store.NewInMemory()
	agent, err := models.New(id.AgentID(uuid.New()), tenantID, "Finance", models.KindFinance,
		[]string{"boleto", "pagamento"}, 10, now)
	require.NoError(t, err)
	require.NoError(t, inner.Create(ctx, agent))

	directory := &countingDirectory{inner: inner}
	cached := store.NewCached(directory, rc.Client, time.Minute, slog.New(slog.DiscardHandler))

	t.Run("first read populates the cache", func(t *testing.T) {
		require.NoError(t, rc.FlushAll(ctx))
		directory.hits.Store(0)

		agents, err := cached.ListEnabled(ctx, tenantID)
		require.NoError(t, err)
		require.Len(t, agents, 1)
		assert.Equal(t, agent.ID, agents[0].ID)
		assert.Equal(t, int64(1), directory.hits.Load())
	})

	t.Run("second read is served from redis", func(t *testing.T) {
		agents, err := cached.ListEnabled(ctx, tenantID)
		require.NoError(t, err)
		require.Len(t, agents, 1)
		assert.Equal(t, agent.Name, agents[0].Name)
		assert.Equal(t, agent.Keywords, agents[0].Keywords)
		assert.Equal(t, int64(1), directory.hits.Load())
	})

	t.Run("invalidate forces a directory read", func(t *testing.T) {
		second, err := models.New(id.AgentID(uuid.New()), tenantID, "Support", models.KindSupport,
			[]string{"problema"}, 7, now.Add(time.Second))
		require.NoError(t, err)
		require.NoError(t, inner.Create(ctx, second))

		// Stale until invalidated.
		agents, err := cached.ListEnabled(ctx, tenantID)
		require.NoError(t, err)
		assert.Len(t, agents, 1)

		require.NoError(t, cached.Invalidate(ctx, tenantID))

		agents, err = cached.ListEnabled(ctx, tenantID)
		require.NoError(t, err)
		assert.Len(t, agents, 2)
		assert.Equal(t, int64(2), directory.hits.Load())
	})

	t.Run("tenants do not share cache entries", func(t *testing.T) {
		other := id.TenantID(uuid.New())
		agents, err := cached.ListEnabled(ctx, other)
		require.NoError(t, err)
		assert.Empty(t, agents)
	})
}
