package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// IdempotencyCache は (利用者, 冪等性キー) → 予約ID を保持する
// 正はストア側の一意制約。ここはストアへの問い合わせを減らすためだけに使う
type IdempotencyCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewIdempotencyCache は新しいIdempotencyCacheインスタンスを作成する
func NewIdempotencyCache(client *redis.Client, ttl time.Duration) *IdempotencyCache {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &IdempotencyCache{client: client, ttl: ttl}
}

// Lookup は予約IDを返す。見つからなければ ok=false
func (c *IdempotencyCache) Lookup(ctx context.Context, holderID, key string) (string, bool, error) {
	id, err := c.client.Get(ctx, c.cacheKey(holderID, key)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", false, nil
		}
		return "", false, fmt.Errorf("キャッシュ取得に失敗: %w", err)
	}
	return id, true, nil
}

// Remember は予約IDを保存する
func (c *IdempotencyCache) Remember(ctx context.Context, holderID, key, reservationID string) error {
	if err := c.client.Set(ctx, c.cacheKey(holderID, key), reservationID, c.ttl).Err(); err != nil {
		return fmt.Errorf("キャッシュ保存に失敗: %w", err)
	}
	return nil
}

// Forget はキャッシュを無効化する
func (c *IdempotencyCache) Forget(ctx context.Context, holderID, key string) error {
	if err := c.client.Del(ctx, c.cacheKey(holderID, key)).Err(); err != nil {
		return fmt.Errorf("キャッシュ無効化に失敗: %w", err)
	}
	return nil
}

func (c *IdempotencyCache) cacheKey(holderID, key string) string {
	return fmt.Sprintf("idempotency:%s:%s", holderID, key)
}
