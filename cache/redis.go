package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"shop-svc/config"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const (
	ProductTTL = 5 * time.Minute
	CartTTL    = 10 * time.Minute
)

func InitRedis(ctx context.Context, cfg config.RedisConfig, logger *zap.Logger) (*redis.Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr(),
		Password: cfg.Password,
		DB:       0,
	})

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := rdb.Ping(ctx).Err(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	logger.Info("Redis connection established")
	return rdb, nil
}

// Cache is a read-through helper for catalog and cart reads. A nil *Cache, or
// one built without a client, behaves as a permanent miss.
type Cache struct {
	rdb *redis.Client
}

func New(rdb *redis.Client) *Cache {
	return &Cache{rdb: rdb}
}

func productKey(id int64) string { return fmt.Sprintf("product:%d", id) }
func cartKey(userID int64) string { return fmt.Sprintf("cart:user:%d", userID) }

func (c *Cache) enabled() bool {
	return c != nil && c.rdb != nil
}

// GetProduct reports whether a cached product was found and decoded into dst.
func (c *Cache) GetProduct(ctx context.Context, id int64, dst any) (bool, error) {
	return c.get(ctx, productKey(id), dst)
}

func (c *Cache) SetProduct(ctx context.Context, id int64, product any) error {
	return c.set(ctx, productKey(id), product, ProductTTL)
}

func (c *Cache) DeleteProducts(ctx context.Context, ids ...int64) error {
	keys := make([]string, 0, len(ids))
	for _, id := range ids {
		keys = append(keys, productKey(id))
	}
	return c.del(ctx, keys...)
}

func (c *Cache) GetCart(ctx context.Context, userID int64, dst any) (bool, error) {
	return c.get(ctx, cartKey(userID), dst)
}

func (c *Cache) SetCart(ctx context.Context, userID int64, cart any) error {
	return c.set(ctx, cartKey(userID), cart, CartTTL)
}

func (c *Cache) DeleteCart(ctx context.Context, userID int64) error {
	return c.del(ctx, cartKey(userID))
}

func (c *Cache) get(ctx context.Context, key string, dst any) (bool, error) {
	if !c.enabled() {
		return false, nil
	}
	data, err := c.rdb.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if err := json.Unmarshal(data, dst); err != nil {
		return false, err
	}
	return true, nil
}

func (c *Cache) set(ctx context.Context, key string, v any, ttl time.Duration) error {
	if !c.enabled() {
		return nil
	}
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return c.rdb.Set(ctx, key, data, ttl).Err()
}

func (c *Cache) del(ctx context.Context, keys ...string) error {
	if !c.enabled() || len(keys) == 0 {
		return nil
	}
	return c.rdb.Del(ctx, keys...).Err()
}
