package kvstore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Store はTTL付きキーバリューストアの狭いインターフェース。
// 失効レコードとレート制限カウンターの保存先として使用する。
type Store interface {
	// Get はキーの値を取得する。キーが存在しない場合はfound=falseを返す。
	Get(ctx context.Context, key string) (value string, found bool, err error)
	// SetWithTTL はキーに値を設定し、TTL経過後に自動削除させる。
	SetWithTTL(ctx context.Context, key, value string, ttl time.Duration) error
	// IncrWithExpiry はキーのカウンターを1増やし、現在値と残りTTLを返す。
	// キーが新規作成された場合のみwindowをTTLとして設定する（固定ウィンドウ）。
	IncrWithExpiry(ctx context.Context, key string, window time.Duration) (count int64, remaining time.Duration, err error)
	// Close はストアへの接続を閉じる。
	Close() error
}

// RedisStore はRedisを背後に持つStore実装。
type RedisStore struct {
	// client はRedisクライアント。
	client *redis.Client
}

// インターフェースの実装を保証する。
var _ Store = (*RedisStore)(nil)

// New はRedis接続URLからストアを生成し、疎通確認を行う。
func New(url string) (*RedisStore, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("Redis接続URLの解析に失敗: %w", err)
	}

	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("Redisへの疎通確認に失敗: %w", err)
	}

	return &RedisStore{client: client}, nil
}

// NewWithClient は既存のRedisクライアントからストアを生成する（テスト用）。
func NewWithClient(client *redis.Client) *RedisStore {
	return &RedisStore{client: client}
}

// Get はキーの値を取得する。
func (s *RedisStore) Get(ctx context.Context, key string) (string, bool, error) {
	value, err := s.client.Get(ctx, key).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", false, nil
		}
		return "", false, fmt.Errorf("キーの取得に失敗: %w", err)
	}
	return value, true, nil
}

// SetWithTTL はキーに値とTTLを設定する。
func (s *RedisStore) SetWithTTL(ctx context.Context, key, value string, ttl time.Duration) error {
	if err := s.client.Set(ctx, key, value, ttl).Err(); err != nil {
		return fmt.Errorf("キーの設定に失敗: %w", err)
	}
	return nil
}

// IncrWithExpiry はカウンターを1増やし、現在値と残りTTLを返す。
// INCRとEXPIRE NXをパイプラインで発行するため、ウィンドウ開始時刻は
// 最初のリクエスト時に固定される。
func (s *RedisStore) IncrWithExpiry(ctx context.Context, key string, window time.Duration) (int64, time.Duration, error) {
	pipe := s.client.Pipeline()
	incr := pipe.Incr(ctx, key)
	pipe.ExpireNX(ctx, key, window)
	ttl := pipe.TTL(ctx, key)
	if _, err := pipe.Exec(ctx); err != nil {
		return 0, 0, fmt.Errorf("カウンターの更新に失敗: %w", err)
	}

	remaining := ttl.Val()
	if remaining < 0 {
		remaining = window
	}
	return incr.Val(), remaining, nil
}

// Close はRedis接続を閉じる。
func (s *RedisStore) Close() error {
	return s.client.Close()
}
