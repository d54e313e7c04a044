package gateway

import (
	"errors"
	"fmt"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/lumikids/edge/pkg/apierr"
	"github.com/lumikids/edge/pkg/httpclient"
	"github.com/lumikids/edge/pkg/kvstore"
	"github.com/lumikids/edge/pkg/middleware"
)

// Server はエッジルーターサービスのHTTPサーバー。
type Server struct {
	// router はGinのHTTPルーター。
	router *gin.Engine
	// port はサーバーのリッスンポート。
	port string
	// routes はパスプレフィックスからバックエンドへのルートテーブル。
	routes []RouteTarget
	// authClient は認証局のトークン検証エンドポイントを呼ぶクライアント。
	authClient *httpclient.Client
	// limiter は共有カウンターによるレート制限。
	limiter *middleware.Limiter
	// store はレート制限カウンターの保存先。
	store kvstore.Store
	// rateConfigs はルートクラスごとのレート制限設定。
	rateConfigs map[string]middleware.RateLimitConfig
	// internalSecret は内部アサーション署名用の秘密鍵。
	internalSecret string
	// proxyClient は転送とヘルスチェックに使うHTTPクライアント。
	// タイムアウトはルートごとのコンテキストで制御する。
	proxyClient *http.Client
}

// NewServer は新しいエッジルーターサーバーを生成する。
// レート制限カウンターの保存先（Redis）への接続を行う。
func NewServer(port string) (*Server, error) {
	store, err := kvstore.New(getEnvOr("REDIS_URL", "redis://localhost:6379"))
	if err != nil {
		return nil, fmt.Errorf("レート制限ストアへの接続に失敗: %w", err)
	}

	internalSecret := os.Getenv("INTERNAL_SECRET")
	if internalSecret == "" {
		internalSecret = "dev-internal-secret"
	}

	urls := serviceURLConfig{
		Auth:       getEnvOr("AUTH_URL", "http://localhost:8081"),
		Curriculum: getEnvOr("CURRICULUM_URL", "http://localhost:8082"),
		Progress:   getEnvOr("PROGRESS_URL", "http://localhost:8083"),
		Speech:     getEnvOr("SPEECH_URL", "http://localhost:8084"),
		Avatar:     getEnvOr("AVATAR_URL", "http://localhost:8085"),
	}

	window := time.Duration(getEnvInt("RATE_WINDOW_SECONDS", 60)) * time.Second
	rateConfigs := map[string]middleware.RateLimitConfig{
		rateClassAuth: {Class: rateClassAuth, Limit: int64(getEnvInt("RATE_AUTH_LIMIT", 10)), Window: window},
		rateClassAPI:  {Class: rateClassAPI, Limit: int64(getEnvInt("RATE_API_LIMIT", 60)), Window: window},
	}

	frontendURL := getEnvOr("FRONTEND_URL", "http://localhost:3000")

	router := gin.New()
	router.Use(middleware.Recovery())
	router.Use(gin.Logger())
	router.Use(middleware.CORS([]string{frontendURL}))
	router.Use(middleware.Correlation())

	s := &Server{
		router:         router,
		port:           port,
		routes:         buildRouteTable(urls),
		authClient:     httpclient.New(urls.Auth),
		limiter:        middleware.NewLimiter(store),
		store:          store,
		rateConfigs:    rateConfigs,
		internalSecret: internalSecret,
		proxyClient:    &http.Client{},
	}
	s.setupRoutes()

	return s, nil
}

// Run はHTTPサーバーを起動する。
func (s *Server) Run() error {
	return s.router.Run(fmt.Sprintf(":%s", s.port))
}

// setupRoutes はAPIルーティングを設定する。
// 固定エンドポイントはヘルスチェックのみで、残りは全てルートテーブルで
// 解決するキャッチオールに流す。
func (s *Server) setupRoutes() {
	// ヘルスチェック
	s.router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "service": "gateway"})
	})
	s.router.GET("/services/health", s.handleServicesHealth())

	// ルートテーブルによる転送
	s.router.NoRoute(s.handleEdge())
}

// handleEdge は全ての転送対象リクエストを処理するハンドラを返す。
// ルート解決 → 認証ポリシー適用 → レート制限 → 転送の順に進む。
func (s *Server) handleEdge() gin.HandlerFunc {
	return func(c *gin.Context) {
		route, ok := matchRoute(s.routes, c.Request.URL.Path)
		if !ok {
			// 内部アドレスを推測されないよう、ボディは常に同じ定型文にする
			apierr.Respond(c, apierr.New(apierr.KindNotFound, http.StatusNotFound, "unknown route"))
			return
		}

		var subject *principal
		if route.Policy != PolicyPublic {
			p, err := s.authorize(c, route)
			if err != nil {
				apierr.Respond(c, err)
				return
			}
			subject = p
		}

		if err := s.enforceRateLimit(c, route, subject); err != nil {
			apierr.Respond(c, err)
			return
		}

		s.forward(c, route, subject)
	}
}

// authorize はベアラートークンを認証局に検証させ、検証済み主体を返す。
// 認証局が返したエラー種別（malformed/expired/revoked）はそのまま中継する。
// クライアントはこの種別で再ログイン要求かリトライかを分岐できる。
func (s *Server) authorize(c *gin.Context, route RouteTarget) (*principal, error) {
	header := c.GetHeader("Authorization")
	if header == "" || !strings.HasPrefix(header, "Bearer ") {
		return nil, apierr.New(apierr.KindMalformedToken, http.StatusUnauthorized, "Authorizationヘッダーが不正です")
	}
	token := strings.TrimPrefix(header, "Bearer ")

	ctx := httpclient.WithCorrelationID(c.Request.Context(), middleware.GetCorrelationID(c))

	var p principal
	if err := s.authClient.PostJSON(ctx, "/auth/validate", gin.H{"token": token}, &p); err != nil {
		var apiErr *apierr.Error
		if errors.As(err, &apiErr) {
			return nil, apiErr
		}
		// 認証局に到達できない場合は認可せず閉じる
		return nil, apierr.New(apierr.KindUpstreamUnavailable, http.StatusBadGateway, "認証局との通信に失敗しました")
	}

	if route.Policy == PolicyRequiresGuardian && p.SubjectKind != "guardian" {
		return nil, apierr.New(apierr.KindAuthorization, http.StatusForbidden, "このルートには保護者の資格情報が必要です")
	}
	return &p, nil
}

// enforceRateLimit はルートクラスのレート制限を適用する。
// クライアントキーは検証済みの主体IDを優先し、無ければ接続元IPを使う。
// IPを変えながらのアクセスで制限を回避されないようにするため。
func (s *Server) enforceRateLimit(c *gin.Context, route RouteTarget, subject *principal) error {
	clientKey := c.ClientIP()
	if subject != nil {
		clientKey = subject.SubjectID
	}

	cfg, ok := s.rateConfigs[route.RateClass]
	if !ok {
		cfg = s.rateConfigs[rateClassAPI]
	}

	allowed, retryAfter, err := s.limiter.Allow(c.Request.Context(), cfg, clientKey)
	if err != nil {
		return fmt.Errorf("レート制限の判定に失敗: %w", err)
	}
	if !allowed {
		c.Header("Retry-After", strconv.Itoa(int(retryAfter.Seconds())))
		return apierr.New(apierr.KindRateLimited, http.StatusTooManyRequests, "リクエストが多すぎます。しばらく待ってから再試行してください")
	}
	return nil
}

// getEnvOr は環境変数を取得し、設定されていない場合はデフォルト値を返す。
func getEnvOr(key, defaultValue string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultValue
}

// getEnvInt は整数型の環境変数を取得する。未設定・不正値はデフォルト値を返す。
func getEnvInt(key string, defaultValue int) int {
	v := os.Getenv(key)
	if v == "" {
		return defaultValue
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return defaultValue
	}
	return n
}
