package auth

import (
	"database/sql"
	"fmt"
	"net/http"
	"os"

	"github.com/gin-gonic/gin"
	_ "modernc.org/sqlite"

	authdb "github.com/lumikids/edge/internal/auth/db"
	"github.com/lumikids/edge/pkg/kvstore"
	"github.com/lumikids/edge/pkg/middleware"
)

// Server は認証局サービスのHTTPサーバー。
type Server struct {
	// router はGinのHTTPルーター。
	router *gin.Engine
	// port はサーバーのリッスンポート。
	port string
	// queries はsqlcが生成したクエリ実行オブジェクト。
	queries *authdb.Queries
	// db はSQLiteデータベース接続。
	db *sql.DB
	// store は失効レコードの保存先（TTL付きキーバリューストア）。
	store kvstore.Store
	// jwtSecret はトークン署名用の秘密鍵。
	jwtSecret string
}

// NewServer は新しい認証局サーバーを生成する。
// SQLiteデータベースの初期化と失効ストアへの接続を行う。
func NewServer(port string) (*Server, error) {
	dbPath := getEnvOr("AUTH_DB_PATH", "/data/auth.db")
	sqlDB, err := sql.Open("sqlite", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("データベース接続に失敗: %w", err)
	}

	if err := initSchema(sqlDB); err != nil {
		return nil, fmt.Errorf("スキーマ初期化に失敗: %w", err)
	}

	store, err := kvstore.New(getEnvOr("REDIS_URL", "redis://localhost:6379"))
	if err != nil {
		return nil, fmt.Errorf("失効ストアへの接続に失敗: %w", err)
	}

	jwtSecret := os.Getenv("JWT_SECRET")
	if jwtSecret == "" {
		jwtSecret = "dev-secret-key"
	}

	router := gin.New()
	router.Use(middleware.Recovery())
	router.Use(gin.Logger())
	router.Use(middleware.Correlation())

	s := &Server{
		router:    router,
		port:      port,
		queries:   authdb.New(sqlDB),
		db:        sqlDB,
		store:     store,
		jwtSecret: jwtSecret,
	}
	s.setupRoutes()

	return s, nil
}

// Run はHTTPサーバーを起動する。
func (s *Server) Run() error {
	return s.router.Run(fmt.Sprintf(":%s", s.port))
}

// setupRoutes はAPIルーティングを設定する。
func (s *Server) setupRoutes() {
	// 保護者のセルフサービス（認証不要）
	parent := s.router.Group("/parent")
	{
		parent.POST("/register", s.handleRegister())
		parent.POST("/login", s.handleLogin())
		// 保護者トークン必須
		parent.POST("/add_child", s.handleAddChild())
		parent.GET("/children", s.handleListChildren())
	}

	// 子どもログイン（保護者トークンによる委任）
	s.router.POST("/child/login", s.handleChildLogin())

	// ログアウト（どちらの種別のトークンでも可）
	s.router.POST("/logout", s.handleLogout())

	// ゲートウェイ向けトークン検証（内部API）
	s.router.POST("/auth/validate", s.handleValidate())

	// ヘルスチェック
	s.router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "service": "auth"})
	})
}

// getEnvOr は環境変数を取得し、設定されていない場合はデフォルト値を返す。
func getEnvOr(key, defaultValue string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultValue
}
