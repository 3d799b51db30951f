package cart

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestRedis(t *testing.T) (*RedisSlot, *miniredis.Miniredis) {
	mr := miniredis.RunT(t)

	client := redis.NewClient(&redis.Options{
		Addr: mr.Addr(),
	})
	t.Cleanup(func() { client.Close() })

	return NewRedisSlot(client, time.Hour), mr
}

func TestRedisSlot_GetMissing(t *testing.T) {
	slot, _ := setupTestRedis(t)

	_, err := slot.Get(context.Background(), "cart:none")
	assert.ErrorIs(t, err, ErrSlotEmpty)
}

func TestRedisSlot_SetGetDelete(t *testing.T) {
	slot, mr := setupTestRedis(t)
	ctx := context.Background()

	require.NoError(t, slot.Set(ctx, "cart:1", `[]`))
	value, err := slot.Get(ctx, "cart:1")
	require.NoError(t, err)
	assert.Equal(t, `[]`, value)
	assert.Equal(t, time.Hour, mr.TTL("cart:1"))

	require.NoError(t, slot.Delete(ctx, "cart:1"))
	assert.False(t, mr.Exists("cart:1"))
}

func TestRedisSlot_Expires(t *testing.T) {
	slot, mr := setupTestRedis(t)
	ctx := context.Background()

	require.NoError(t, slot.Set(ctx, "cart:1", `[]`))
	mr.FastForward(2 * time.Hour)

	_, err := slot.Get(ctx, "cart:1")
	assert.ErrorIs(t, err, ErrSlotEmpty)
}

func TestRedisSlot_BacksDurableStore(t *testing.T) {
	slot, _ := setupTestRedis(t)

	s := NewStore(WithSlot(slot, "cart:session-1"))
	s.AddOrIncrement(product(1, "California Roll", 5000))
	s.AddOrIncrement(product(1, "California Roll", 5000))
	s.SetNote("no sesame")

	reloaded := NewStore(WithSlot(slot, "cart:session-1"))
	reloaded.Load(context.Background())

	snap := reloaded.Snapshot()
	require.Len(t, snap.Lines, 1)
	assert.Equal(t, 2, snap.Lines[0].Quantity)
	assert.Equal(t, "no sesame", snap.Note)
}

func TestRedisSlot_UnavailableFallsBackToEmpty(t *testing.T) {
	slot, mr := setupTestRedis(t)

	s := NewStore(WithSlot(slot, "cart:session-1"))
	s.AddOrIncrement(product(1, "California Roll", 5000))
	mr.Close()

	reloaded := NewStore(WithSlot(slot, "cart:session-1"))
	reloaded.Load(context.Background())
	assert.True(t, reloaded.Snapshot().IsEmpty())

	// writes keep working in memory while the slot is down
	reloaded.AddOrIncrement(product(2, "Soda", 1500))
	assert.Equal(t, 1, reloaded.ItemCount())
}
