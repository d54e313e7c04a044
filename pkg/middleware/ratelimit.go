package middleware

import (
	"context"
	"fmt"
	"time"

	"github.com/lumikids/edge/pkg/kvstore"
)

// RateLimitConfig はルートクラスごとのレート制限設定。
// 認証系ルートはクレデンシャルスタッフィングの標的になりやすいため、
// 読み取り系ルートより厳しい値を設定する。
type RateLimitConfig struct {
	// Class はルートクラス名（Redisキーの一部になる）。
	Class string
	// Limit はウィンドウあたりの許容リクエスト数。
	Limit int64
	// Window は固定ウィンドウの長さ。
	Window time.Duration
}

// Limiter は共有ストア上の固定ウィンドウカウンターによるレート制限。
// カウンターはRedisにあるため、複数のゲートウェイプロセスで制限を共有できる。
type Limiter struct {
	// store はカウンターの保存先。
	store kvstore.Store
}

// NewLimiter は新しいLimiterを生成する。
func NewLimiter(store kvstore.Store) *Limiter {
	return &Limiter{store: store}
}

// Allow はクライアントキーのカウンターを1増やし、制限内かどうかを判定する。
// 制限超過時はallowed=falseと、クライアントに伝えるRetry-After時間を返す。
// カウンター更新は転送開始前に完了するため、バックエンド待ちの間ロックは持たない。
func (l *Limiter) Allow(ctx context.Context, cfg RateLimitConfig, clientKey string) (allowed bool, retryAfter time.Duration, err error) {
	key := fmt.Sprintf("edge:rate:%s:%s", cfg.Class, clientKey)

	count, remaining, err := l.store.IncrWithExpiry(ctx, key, cfg.Window)
	if err != nil {
		return false, 0, fmt.Errorf("レート制限カウンターの更新に失敗: %w", err)
	}

	if count > cfg.Limit {
		if remaining < time.Second {
			remaining = time.Second
		}
		return false, remaining, nil
	}
	return true, 0, nil
}
