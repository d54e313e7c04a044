package gateway

import (
	"context"
	"log"
	"net/http"
	"sort"
	"time"

	"github.com/gin-gonic/gin"
)

// healthProbeTimeout はバックエンドごとのヘルスチェックタイムアウト。
// 遅いバックエンド1つが全体のヘルスチェックを止めないよう短く切る。
const healthProbeTimeout = 2 * time.Second

// handleServicesHealth は全バックエンドのヘルスを集約するハンドラを返す。
// 各ターゲットの /health を並行に叩き、全て正常なら healthy、
// 1つでも失敗したら degraded と失敗サービス名を返す。
func (s *Server) handleServicesHealth() gin.HandlerFunc {
	return func(c *gin.Context) {
		// 同じサービスに複数のプレフィックスが向いていても1回だけ確認する
		targets := make(map[string]string)
		for _, rt := range s.routes {
			targets[rt.Name] = rt.BaseURL
		}

		type probeResult struct {
			name string
			ok   bool
		}
		results := make(chan probeResult, len(targets))

		for name, baseURL := range targets {
			go func(name, baseURL string) {
				results <- probeResult{name: name, ok: s.probeHealth(c.Request.Context(), baseURL)}
			}(name, baseURL)
		}

		var failing []string
		for range targets {
			r := <-results
			if !r.ok {
				failing = append(failing, r.name)
			}
		}

		if len(failing) == 0 {
			c.JSON(http.StatusOK, gin.H{"status": "healthy"})
			return
		}

		sort.Strings(failing)
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"status":  "degraded",
			"failing": failing,
		})
	}
}

// probeHealth は1つのバックエンドのヘルスエンドポイントを確認する。
func (s *Server) probeHealth(ctx context.Context, baseURL string) bool {
	ctx, cancel := context.WithTimeout(ctx, healthProbeTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, baseURL+"/health", nil)
	if err != nil {
		return false
	}

	resp, err := s.proxyClient.Do(req)
	if err != nil {
		log.Printf("ヘルスチェック失敗: url=%s, error=%v", baseURL, err)
		return false
	}
	defer resp.Body.Close()

	return resp.StatusCode == http.StatusOK
}
