// internal/session/redis_test.go
package session

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "dealerdesk/internal/common/errors"
	"dealerdesk/internal/common/logger"
	"dealerdesk/internal/leads"
	"dealerdesk/internal/models"
)

func newRedisStore(t *testing.T) (*RedisStore, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewRedisStore(client, time.Hour, logger.NewTestLogger(t)), mr
}

func TestRedisStore_GetOrCreate(t *testing.T) {
	store, _ := newRedisStore(t)
	ctx := context.Background()

	sess, created, err := store.GetOrCreate(ctx, "s-1")
	require.NoError(t, err)
	assert.True(t, created)
	assert.Equal(t, "s-1", sess.ID)

	again, created, err := store.GetOrCreate(ctx, "s-1")
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, "s-1", again.ID)
}

func TestRedisStore_RoundTrip(t *testing.T) {
	store, _ := newRedisStore(t)
	ctx := context.Background()

	_, _, err := store.GetOrCreate(ctx, "s-1")
	require.NoError(t, err)

	require.NoError(t, store.AppendTurn(ctx, "s-1", models.Turn{Role: models.RoleUser, Text: "hi"}))
	require.NoError(t, store.AppendTurn(ctx, "s-1", models.Turn{
		Role: models.RoleAssistant, Text: "hello", MatchedTopic: "financing",
	}))

	history, err := store.History(ctx, "s-1", 10)
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, "hi", history[0].Text)
	assert.Equal(t, "financing", history[1].MatchedTopic)
}

func TestRedisStore_MergeLead(t *testing.T) {
	store, _ := newRedisStore(t)
	ctx := context.Background()

	_, _, err := store.GetOrCreate(ctx, "s-1")
	require.NoError(t, err)

	lead, changed, err := store.MergeLead(ctx, "s-1", leads.Partial{Name: "Ali", Phone: "03001234567"})
	require.NoError(t, err)
	assert.True(t, changed)
	assert.Equal(t, "Ali", lead.Name)

	// Second merge with weaker values changes nothing.
	lead, changed, err = store.MergeLead(ctx, "s-1", leads.Partial{Name: "Al"})
	require.NoError(t, err)
	assert.False(t, changed)
	assert.Equal(t, "Ali", lead.Name)
	assert.Equal(t, "03001234567", lead.Phone)
}

func TestRedisStore_Flags(t *testing.T) {
	store, _ := newRedisStore(t)
	ctx := context.Background()

	_, _, err := store.GetOrCreate(ctx, "s-1")
	require.NoError(t, err)

	require.NoError(t, store.SetFlag(ctx, "s-1", models.FlagAwaitingBudget))
	has, err := store.HasFlag(ctx, "s-1", models.FlagAwaitingBudget)
	require.NoError(t, err)
	assert.True(t, has)

	require.NoError(t, store.ClearFlag(ctx, "s-1", models.FlagAwaitingBudget))
	has, err = store.HasFlag(ctx, "s-1", models.FlagAwaitingBudget)
	require.NoError(t, err)
	assert.False(t, has)
}

func TestRedisStore_TTLSlides(t *testing.T) {
	store, mr := newRedisStore(t)
	ctx := context.Background()

	_, _, err := store.GetOrCreate(ctx, "s-1")
	require.NoError(t, err)

	mr.FastForward(30 * time.Minute)
	require.NoError(t, store.AppendTurn(ctx, "s-1", models.Turn{Role: models.RoleUser, Text: "still here"}))

	// The write reset the clock, so the original deadline passes harmlessly.
	mr.FastForward(45 * time.Minute)
	_, err = store.Get(ctx, "s-1")
	assert.NoError(t, err)

	// No traffic for the full TTL drops the session.
	mr.FastForward(2 * time.Hour)
	_, err = store.Get(ctx, "s-1")
	assert.ErrorIs(t, err, apperrors.ErrSessionNotFound)
}

func TestRedisStore_UnknownSession(t *testing.T) {
	store, _ := newRedisStore(t)
	ctx := context.Background()

	err := store.AppendTurn(ctx, "missing", models.Turn{Role: models.RoleUser, Text: "hi"})
	assert.ErrorIs(t, err, apperrors.ErrSessionNotFound)

	_, err = store.Get(ctx, "missing")
	assert.ErrorIs(t, err, apperrors.ErrSessionNotFound)
}

func TestRedisStore_StorageDown(t *testing.T) {
	store, mr := newRedisStore(t)
	ctx := context.Background()

	_, _, err := store.GetOrCreate(ctx, "s-1")
	require.NoError(t, err)

	mr.Close()

	_, _, err = store.GetOrCreate(ctx, "s-2")
	assert.ErrorIs(t, err, apperrors.ErrStorageUnavailable)

	err = store.AppendTurn(ctx, "s-1", models.Turn{Role: models.RoleUser, Text: "hi"})
	assert.ErrorIs(t, err, apperrors.ErrStorageUnavailable)
}
