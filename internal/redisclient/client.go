package redisclient

import (
	"context"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"pos-checkout/internal/models"

	"github.com/go-redis/redis/v8"
)

//go:embed scripts/touch_session.lua
var touchSessionScript string

const defaultSessionTTL = 8 * time.Hour

type Client struct {
	rdb         *redis.Client
	touchScript *redis.Script
	sessionTTL  time.Duration
}

// NewClient creates a new Redis client and verifies the connection
func NewClient(addr, password string, db int) (*Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}

	return NewClientFromRedis(rdb), nil
}

// NewClientFromRedis wraps an existing connection
func NewClientFromRedis(rdb *redis.Client) *Client {
	return &Client{
		rdb:         rdb,
		touchScript: redis.NewScript(touchSessionScript),
		sessionTTL:  defaultSessionTTL,
	}
}

// WithSessionTTL sets the sliding expiration applied when a session is read
func (c *Client) WithSessionTTL(ttl time.Duration) *Client {
	c.sessionTTL = ttl
	return c
}

// Ping checks the connection
func (c *Client) Ping(ctx context.Context) error {
	return c.rdb.Ping(ctx).Err()
}

// Close closes the Redis connection
func (c *Client) Close() error {
	return c.rdb.Close()
}

func sessionKey(id string) string {
	return fmt.Sprintf("session:%s", id)
}

func idempotencyKey(key string) string {
	return fmt.Sprintf("idempotency:%s", key)
}

// SaveSession stores an operator session with TTL
func (c *Client) SaveSession(ctx context.Context, sess *models.Session, ttl time.Duration) error {
	data, err := json.Marshal(sess)
	if err != nil {
		return fmt.Errorf("failed to marshal session: %w", err)
	}
	return c.rdb.Set(ctx, sessionKey(sess.ID), data, ttl).Err()
}

// GetSession loads a session and extends its expiration. A missing or
// expired session returns nil without error.
func (c *Client) GetSession(ctx context.Context, sessionID string) (*models.Session, error) {
	raw, err := c.touchScript.Run(ctx, c.rdb, []string{sessionKey(sessionID)}, c.sessionTTL.Milliseconds()).Text()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("touch session script failed: %w", err)
	}

	var sess models.Session
	if err := json.Unmarshal([]byte(raw), &sess); err != nil {
		return nil, fmt.Errorf("failed to unmarshal session: %w", err)
	}
	return &sess, nil
}

// DeleteSession removes a session. Deleting a missing session is not an error.
func (c *Client) DeleteSession(ctx context.Context, sessionID string) error {
	return c.rdb.Del(ctx, sessionKey(sessionID)).Err()
}

// SetIdempotencyKey stores an idempotency key with TTL
func (c *Client) SetIdempotencyKey(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	return c.rdb.Set(ctx, idempotencyKey(key), value, ttl).Err()
}

// RememberSale records the sale produced by an idempotency key
func (c *Client) RememberSale(ctx context.Context, key string, r *models.Receipt, ttl time.Duration) error {
	data, err := json.Marshal(r)
	if err != nil {
		return fmt.Errorf("failed to marshal sale: %w", err)
	}
	return c.SetIdempotencyKey(ctx, key, data, ttl)
}

// LookupSale returns the sale recorded for an idempotency key
func (c *Client) LookupSale(ctx context.Context, key string) (*models.Receipt, bool, error) {
	raw, err := c.rdb.Get(ctx, idempotencyKey(key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to read idempotency key: %w", err)
	}

	var r models.Receipt
	if err := json.Unmarshal(raw, &r); err != nil {
		return nil, false, fmt.Errorf("failed to unmarshal sale: %w", err)
	}
	return &r, true, nil
}
