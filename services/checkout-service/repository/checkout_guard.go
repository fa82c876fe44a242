package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// CheckoutGuard serializes checkout attempts per buyer across replicas and
// caches committed results per idempotency key.
type CheckoutGuard interface {
	// Acquire returns ok=false when another attempt by the same buyer holds the lock.
	Acquire(ctx context.Context, buyerEmail string, ttl time.Duration) (release func(), ok bool, err error)
	CachedResult(ctx context.Context, buyerEmail, idempotencyKey string) ([]byte, bool, error)
	StoreResult(ctx context.Context, buyerEmail, idempotencyKey string, body []byte, ttl time.Duration) error
}

// redisClient is the part of *redis.Client the guard uses.
type redisClient interface {
	SetNX(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.BoolCmd
	Get(ctx context.Context, key string) *redis.StringCmd
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd
	Eval(ctx context.Context, script string, keys []string, args ...interface{}) *redis.Cmd
}

// releaseScript deletes the lock only if it still holds our token, so an
// attempt that outlived its TTL cannot drop a newer holder's lock.
const releaseScript = `if redis.call("GET", KEYS[1]) == ARGV[1] then return redis.call("DEL", KEYS[1]) else return 0 end`

type RedisCheckoutGuard struct {
	client redisClient
}

func NewRedisCheckoutGuard(client redisClient) *RedisCheckoutGuard {
	return &RedisCheckoutGuard{client: client}
}

func lockKey(email string) string {
	return "checkout_lock:" + email
}

func resultKey(email, idempotencyKey string) string {
	return fmt.Sprintf("idem:checkout:%s:%s", email, idempotencyKey)
}

func (g *RedisCheckoutGuard) Acquire(ctx context.Context, buyerEmail string, ttl time.Duration) (func(), bool, error) {
	token := uuid.NewString()
	key := lockKey(buyerEmail)

	ok, err := g.client.SetNX(ctx, key, token, ttl).Result()
	if err != nil {
		return nil, false, fmt.Errorf("acquire checkout lock: %w", err)
	}
	if !ok {
		return nil, false, nil
	}

	release := func() {
		// the request context may already be cancelled at this point
		rctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = g.client.Eval(rctx, releaseScript, []string{key}, token).Err()
	}
	return release, true, nil
}

func (g *RedisCheckoutGuard) CachedResult(ctx context.Context, buyerEmail, idempotencyKey string) ([]byte, bool, error) {
	val, err := g.client.Get(ctx, resultKey(buyerEmail, idempotencyKey)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return val, true, nil
}

func (g *RedisCheckoutGuard) StoreResult(ctx context.Context, buyerEmail, idempotencyKey string, body []byte, ttl time.Duration) error {
	return g.client.Set(ctx, resultKey(buyerEmail, idempotencyKey), body, ttl).Err()
}
