package redisclient

import (
	"context"
	"testing"
	"time"

	"pos-checkout/internal/models"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestRedis(t *testing.T) (*Client, *miniredis.Miniredis) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return NewClientFromRedis(rdb).WithSessionTTL(time.Hour), mr
}

func TestSessionRoundTrip(t *testing.T) {
	c, mr := setupTestRedis(t)
	ctx := context.Background()
	sess := &models.Session{ID: "abc", Token: "jwt", UserName: "María", Role: models.RoleAdmin}

	require.NoError(t, c.SaveSession(ctx, sess, 10*time.Minute))
	assert.Equal(t, 10*time.Minute, mr.TTL("session:abc"))

	got, err := c.GetSession(ctx, "abc")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "jwt", got.Token)
	assert.Equal(t, "María", got.UserName)
	assert.Equal(t, time.Hour, mr.TTL("session:abc"))

	require.NoError(t, c.DeleteSession(ctx, "abc"))
	got, err = c.GetSession(ctx, "abc")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestGetSession_Expired(t *testing.T) {
	c, mr := setupTestRedis(t)
	ctx := context.Background()

	require.NoError(t, c.SaveSession(ctx, &models.Session{ID: "abc", Token: "jwt"}, time.Minute))
	mr.FastForward(2 * time.Minute)

	got, err := c.GetSession(ctx, "abc")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestDeleteSession_Missing(t *testing.T) {
	c, _ := setupTestRedis(t)

	assert.NoError(t, c.DeleteSession(context.Background(), "nope"))
}

func TestIdempotentSale(t *testing.T) {
	c, mr := setupTestRedis(t)
	ctx := context.Background()

	_, ok, err := c.LookupSale(ctx, "key-1")
	require.NoError(t, err)
	assert.False(t, ok)

	r := &models.Receipt{
		Sale: models.Sale{
			ID:          42,
			ReceiptType: models.ReceiptBoleta,
			Total:       decimal.RequireFromString("61.00"),
			Lines: []models.SaleLine{
				{ItemID: 1, Name: "Antipulgas", UnitPrice: decimal.RequireFromString("25.50"), Quantity: 2},
			},
		},
		Client: models.Client{ID: 7, FirstName: "Ana"},
	}
	require.NoError(t, c.RememberSale(ctx, "key-1", r, time.Hour))

	got, ok, err := c.LookupSale(ctx, "key-1")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, int64(42), got.Sale.ID)
	assert.True(t, r.Sale.Total.Equal(got.Sale.Total))
	assert.Equal(t, "Ana", got.Client.FirstName)
	assert.Equal(t, time.Hour, mr.TTL("idempotency:key-1"))
}

func TestLookupSale_Corrupt(t *testing.T) {
	c, mr := setupTestRedis(t)
	require.NoError(t, mr.Set("idempotency:bad", "{not json"))

	_, _, err := c.LookupSale(context.Background(), "bad")
	assert.Error(t, err)
}
