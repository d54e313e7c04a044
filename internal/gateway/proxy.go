package gateway

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/lumikids/edge/pkg/apierr"
	"github.com/lumikids/edge/pkg/middleware"
)

// upstreamResponse はバックエンドからの応答を読み切った結果。
type upstreamResponse struct {
	statusCode  int
	contentType string
	body        []byte
}

// forward はリクエストをルートのバックエンドに転送し、応答をそのまま返す。
// 接続失敗は502、タイムアウト予算超過は504にマップする。再試行は副作用の
// 二重適用を避けるため冪等なGETに限り1回だけ行う。
func (s *Server) forward(c *gin.Context, route RouteTarget, p *principal) {
	reqBody, err := io.ReadAll(c.Request.Body)
	if err != nil {
		apierr.Respond(c, apierr.New(apierr.KindInternal, http.StatusInternalServerError, "リクエストボディの読み取りに失敗しました"))
		return
	}

	targetURL := route.BaseURL + c.Request.URL.Path
	if c.Request.URL.RawQuery != "" {
		targetURL += "?" + c.Request.URL.RawQuery
	}

	resp, err := s.sendOnce(c, route, p, targetURL, reqBody)
	if err != nil && c.Request.Method == http.MethodGet {
		resp, err = s.sendOnce(c, route, p, targetURL, reqBody)
	}
	if err != nil {
		// ターゲットアドレスはクライアントに開示しない
		if errors.Is(err, context.DeadlineExceeded) {
			log.Printf("転送タイムアウト: service=%s, path=%s, error=%v", route.Name, c.Request.URL.Path, err)
			apierr.Respond(c, apierr.New(apierr.KindUpstreamTimeout, http.StatusGatewayTimeout, "バックエンドの応答が時間内に得られませんでした"))
			return
		}
		log.Printf("転送エラー: service=%s, path=%s, error=%v", route.Name, c.Request.URL.Path, err)
		apierr.Respond(c, apierr.New(apierr.KindUpstreamUnavailable, http.StatusBadGateway, "バックエンドとの通信に失敗しました"))
		return
	}

	c.Data(resp.statusCode, resp.contentType, resp.body)
}

// sendOnce は1回分の転送を実行し、応答ボディまで読み切って返す。
// タイムアウト予算は試行ごとに適用する。
func (s *Server) sendOnce(c *gin.Context, route RouteTarget, p *principal, url string, body []byte) (*upstreamResponse, error) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), route.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, c.Request.Method, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("転送リクエストの作成に失敗: %w", err)
	}

	if contentType := c.GetHeader("Content-Type"); contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	req.Header.Set(middleware.HeaderCorrelationID, middleware.GetCorrelationID(c))

	// クライアント提示のトークンは検査用に別ヘッダーで渡す
	if original := c.GetHeader("Authorization"); original != "" {
		req.Header.Set(HeaderOriginalAuthorization, original)
	}

	// 検証済み主体がいる場合のみ内部アサーションを発行する
	if p != nil {
		assertion, err := signAssertion(s.internalSecret, p)
		if err != nil {
			return nil, err
		}
		req.Header.Set(HeaderInternalAssertion, assertion)
	}

	resp, err := s.proxyClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("バックエンド応答の読み取りに失敗: %w", err)
	}

	contentType := resp.Header.Get("Content-Type")
	if contentType == "" {
		contentType = "application/json"
	}

	return &upstreamResponse{
		statusCode:  resp.StatusCode,
		contentType: contentType,
		body:        respBody,
	}, nil
}
