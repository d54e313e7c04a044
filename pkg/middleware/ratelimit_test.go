package middleware

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/lumikids/edge/pkg/kvstore"
)

// newTestLimiter はminiredisを背後に持つテスト用Limiterを生成する。
func newTestLimiter(t *testing.T) (*Limiter, *miniredis.Miniredis) {
	t.Helper()

	mini := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mini.Addr()})
	store := kvstore.NewWithClient(client)
	t.Cleanup(func() { _ = store.Close() })

	return NewLimiter(store), mini
}

// TestLimiterAllow は固定ウィンドウレート制限を検証する。
func TestLimiterAllow(t *testing.T) {
	t.Parallel()

	cfg := RateLimitConfig{Class: "auth", Limit: 3, Window: time.Minute}

	t.Run("制限内のリクエストは許可されること", func(t *testing.T) {
		t.Parallel()

		limiter, _ := newTestLimiter(t)
		ctx := context.Background()

		for i := 0; i < 3; i++ {
			allowed, _, err := limiter.Allow(ctx, cfg, "10.0.0.1")
			if err != nil {
				t.Fatalf("Allowに失敗: %v", err)
			}
			if !allowed {
				t.Fatalf("%d回目のリクエストが拒否された", i+1)
			}
		}
	})

	t.Run("制限を超えたリクエストが拒否されRetry-Afterが返ること", func(t *testing.T) {
		t.Parallel()

		limiter, _ := newTestLimiter(t)
		ctx := context.Background()

		for i := 0; i < 3; i++ {
			if _, _, err := limiter.Allow(ctx, cfg, "10.0.0.2"); err != nil {
				t.Fatalf("Allowに失敗: %v", err)
			}
		}

		allowed, retryAfter, err := limiter.Allow(ctx, cfg, "10.0.0.2")
		if err != nil {
			t.Fatalf("Allowに失敗: %v", err)
		}
		if allowed {
			t.Error("4回目のリクエストが許可された")
		}
		if retryAfter <= 0 || retryAfter > time.Minute {
			t.Errorf("Retry-After = %v, want 0より大きく1分以下", retryAfter)
		}
	})

	t.Run("ウィンドウ経過後のリクエストが再び許可されること", func(t *testing.T) {
		t.Parallel()

		limiter, mini := newTestLimiter(t)
		ctx := context.Background()

		for i := 0; i < 4; i++ {
			_, _, _ = limiter.Allow(ctx, cfg, "10.0.0.3")
		}

		mini.FastForward(2 * time.Minute)

		allowed, _, err := limiter.Allow(ctx, cfg, "10.0.0.3")
		if err != nil {
			t.Fatalf("Allowに失敗: %v", err)
		}
		if !allowed {
			t.Error("ウィンドウ経過後のリクエストが拒否された")
		}
	})

	t.Run("異なるクライアントキーのカウンターが独立していること", func(t *testing.T) {
		t.Parallel()

		limiter, _ := newTestLimiter(t)
		ctx := context.Background()

		for i := 0; i < 4; i++ {
			_, _, _ = limiter.Allow(ctx, cfg, "guardian-a")
		}

		allowed, _, err := limiter.Allow(ctx, cfg, "guardian-b")
		if err != nil {
			t.Fatalf("Allowに失敗: %v", err)
		}
		if !allowed {
			t.Error("別クライアントのリクエストが巻き添えで拒否された")
		}
	})

	t.Run("異なるルートクラスのカウンターが独立していること", func(t *testing.T) {
		t.Parallel()

		limiter, _ := newTestLimiter(t)
		ctx := context.Background()

		for i := 0; i < 4; i++ {
			_, _, _ = limiter.Allow(ctx, cfg, "guardian-c")
		}

		apiCfg := RateLimitConfig{Class: "api", Limit: 3, Window: time.Minute}
		allowed, _, err := limiter.Allow(ctx, apiCfg, "guardian-c")
		if err != nil {
			t.Fatalf("Allowに失敗: %v", err)
		}
		if !allowed {
			t.Error("別クラスのリクエストが巻き添えで拒否された")
		}
	})
}
