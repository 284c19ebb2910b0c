package kvstore

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/redis/go-redis/v9"
)

// DefaultRedisTTL は端末ローカルのキーの既定保持期間。
const DefaultRedisTTL = 30 * 24 * time.Hour

// Redis は複数インスタンス構成向けのStore実装。
// 書き込みのたびにTTLを更新し、放置された端末のデータは自然に失効する。
type Redis struct {
	client redis.Cmdable
	ttl    time.Duration

	warnedUnavailable atomic.Bool
}

// NewRedis はRedisクライアントからStoreを生成する。
// ttlが0以下の場合はDefaultRedisTTLを使用する。
func NewRedis(client redis.Cmdable, ttl time.Duration) *Redis {
	if ttl <= 0 {
		ttl = DefaultRedisTTL
	}
	return &Redis{client: client, ttl: ttl}
}

// OpenRedis はredis:// 形式のURLから接続し、疎通確認を行う。
func OpenRedis(ctx context.Context, url string, ttl time.Duration) (*Redis, *redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to parse redis url: %w", err)
	}
	client := redis.NewClient(opts)

	pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, nil, fmt.Errorf("failed to ping redis: %w", err)
	}
	return NewRedis(client, ttl), client, nil
}

func (r *Redis) Get(ctx context.Context, key string) ([]byte, bool, error) {
	b, err := r.client.Get(ctx, key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, false, nil
		}
		r.warnUnavailableOnce(err)
		return nil, false, fmt.Errorf("%w: get %s: %v", ErrUnavailable, key, err)
	}
	return b, true, nil
}

func (r *Redis) Set(ctx context.Context, key string, value []byte) error {
	if err := r.client.Set(ctx, key, value, r.ttl).Err(); err != nil {
		r.warnUnavailableOnce(err)
		return fmt.Errorf("%w: set %s: %v", ErrUnavailable, key, err)
	}
	return nil
}

func (r *Redis) Delete(ctx context.Context, key string) error {
	if err := r.client.Del(ctx, key).Err(); err != nil {
		r.warnUnavailableOnce(err)
		return fmt.Errorf("%w: delete %s: %v", ErrUnavailable, key, err)
	}
	return nil
}

func (r *Redis) warnUnavailableOnce(err error) {
	if r.warnedUnavailable.CompareAndSwap(false, true) {
		slog.Warn("redis unavailable",
			slog.String("error", err.Error()),
		)
	}
}

var _ Store = (*Redis)(nil)
