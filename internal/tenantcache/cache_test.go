package tenantcache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/d60-Lab/shipdesk/internal/model"
	"github.com/d60-Lab/shipdesk/internal/repository"
	"github.com/d60-Lab/shipdesk/pkg/database"
)

func setup(t *testing.T) (*Cache, repository.TenantRepository, *miniredis.Miniredis) {
	t.Helper()
	db, err := database.OpenMemory()
	require.NoError(t, err)
	t.Cleanup(func() { _ = database.Close(db) })

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	repo := repository.NewTenantRepository(db)
	return New(repo, client, time.Minute), repo, mr
}

func TestCache_ReadThrough(t *testing.T) {
	c, repo, mr := setup(t)
	ctx := context.Background()

	tn := &model.Tenant{Name: "Acme", APIKeyHash: "$2a$hash", EnablePrefix: true, Active: true}
	require.NoError(t, repo.Create(ctx, tn))

	got, err := c.Get(ctx, tn.ID)
	require.NoError(t, err)
	assert.Equal(t, "Acme", got.Name)
	assert.True(t, mr.Exists(key(tn.ID)))

	got, err = c.Get(ctx, tn.ID)
	require.NoError(t, err)
	assert.Equal(t, "$2a$hash", got.APIKeyHash)
	assert.True(t, got.EnablePrefix)
	assert.Equal(t, Counters{Hits: 1, Misses: 1}, c.Counters())

	mr.FastForward(2 * time.Minute)
	_, err = c.Get(ctx, tn.ID)
	require.NoError(t, err)
	assert.EqualValues(t, 2, c.Counters().Misses)

	require.NoError(t, c.Invalidate(ctx, tn.ID))
	assert.False(t, mr.Exists(key(tn.ID)))
}

func TestCache_CorruptEntryFallsBack(t *testing.T) {
	c, repo, mr := setup(t)
	ctx := context.Background()
	tn := &model.Tenant{Name: "Acme", Active: true}
	require.NoError(t, repo.Create(ctx, tn))

	require.NoError(t, mr.Set(key(tn.ID), "{not json"))
	got, err := c.Get(ctx, tn.ID)
	require.NoError(t, err)
	assert.Equal(t, "Acme", got.Name)
}

func TestCache_NotFound(t *testing.T) {
	c, _, _ := setup(t)
	_, err := c.Get(context.Background(), 404)
	assert.ErrorIs(t, err, repository.ErrTenantNotFound)
}

func TestCache_WithoutRedis(t *testing.T) {
	db, err := database.OpenMemory()
	require.NoError(t, err)
	defer database.Close(db)
	repo := repository.NewTenantRepository(db)
	c := New(repo, nil, 0)

	tn := &model.Tenant{Name: "Acme", Active: true}
	require.NoError(t, repo.Create(context.Background(), tn))
	got, err := c.Get(context.Background(), tn.ID)
	require.NoError(t, err)
	assert.Equal(t, tn.ID, got.ID)
	assert.NoError(t, c.Invalidate(context.Background(), tn.ID))
}

func TestCache_FlagChangesVisibleAfterTTLOrInvalidate(t *testing.T) {
	db, err := database.OpenMemory()
	require.NoError(t, err)
	defer database.Close(db)
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()

	repo := repository.NewTenantRepository(db)
	c := New(repo, client, time.Minute)
	ctx := context.Background()

	tn := &model.Tenant{Name: "Acme", Active: true}
	require.NoError(t, repo.Create(ctx, tn))
	got, err := c.Get(ctx, tn.ID)
	require.NoError(t, err)
	require.True(t, got.Active)

	require.NoError(t, db.Model(&model.Tenant{}).Where("id = ?", tn.ID).Update("active", false).Error)

	// TTL 内仍是旧值
	got, err = c.Get(ctx, tn.ID)
	require.NoError(t, err)
	assert.True(t, got.Active)

	mr.FastForward(2 * time.Minute)
	got, err = c.Get(ctx, tn.ID)
	require.NoError(t, err)
	assert.False(t, got.Active)

	require.NoError(t, db.Model(&model.Tenant{}).Where("id = ?", tn.ID).Update("credit_exempt", true).Error)
	require.NoError(t, c.Invalidate(ctx, tn.ID))
	got, err = c.Get(ctx, tn.ID)
	require.NoError(t, err)
	assert.True(t, got.CreditExempt)
}
