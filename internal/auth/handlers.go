package auth

import (
	"database/sql"
	"errors"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	authdb "github.com/lumikids/edge/internal/auth/db"
	"github.com/lumikids/edge/pkg/apierr"
)

// minPasswordLength は保護者パスワードの最小長。
const minPasswordLength = 8

// minDependentAge / maxDependentAge は子どもアカウントの受け入れ年齢範囲。
const (
	minDependentAge = 3
	maxDependentAge = 12
)

// registerRequest は保護者登録リクエストのJSON構造。
type registerRequest struct {
	// Email はログインに使用するメールアドレス。
	Email string `json:"email" binding:"required,email"`
	// Password は平文パスワード。保存時はbcryptでハッシュ化する。
	Password string `json:"password" binding:"required"`
	// DisplayName は表示名。
	DisplayName string `json:"display_name" binding:"required"`
}

// loginRequest は保護者ログインリクエストのJSON構造。
type loginRequest struct {
	// Email はログインに使用するメールアドレス。
	Email string `json:"email" binding:"required"`
	// Password は平文パスワード。
	Password string `json:"password" binding:"required"`
}

// addChildRequest は子どもアカウント作成リクエストのJSON構造。
type addChildRequest struct {
	// DisplayName は子どもの表示名。本名は要求しない（プライバシー制約）。
	DisplayName string `json:"display_name" binding:"required"`
	// Age は子どもの年齢。セッション長のブラケット判定に使用する。
	Age int64 `json:"age" binding:"required"`
}

// childLoginRequest は子どもログインリクエストのJSON構造。
type childLoginRequest struct {
	// DependentID はログイン対象の子どもアカウント識別子。
	DependentID string `json:"dependent_id" binding:"required"`
}

// validateRequest はトークン検証リクエストのJSON構造（ゲートウェイ内部API）。
type validateRequest struct {
	// Token は検証対象のトークン文字列。
	Token string `json:"token" binding:"required"`
}

// guardianResponse は保護者アカウントの公開フィールド。
type guardianResponse struct {
	// ID は保護者の一意識別子。
	ID string `json:"id"`
	// Email はメールアドレス。
	Email string `json:"email"`
	// DisplayName は表示名。
	DisplayName string `json:"display_name"`
	// Plan は契約プラン。
	Plan string `json:"plan"`
	// Children は所有する子どもアカウントの識別子リスト（作成順）。
	Children []string `json:"children"`
	// CreatedAt は作成日時（RFC3339）。
	CreatedAt string `json:"created_at"`
}

// dependentResponse は子どもアカウントの公開フィールド。
// メールアドレスとパスワードはそもそも存在しない。
type dependentResponse struct {
	// ID は子どもアカウントの一意識別子。
	ID string `json:"id"`
	// GuardianID は所有する保護者の識別子。
	GuardianID string `json:"guardian_id"`
	// DisplayName は表示名。
	DisplayName string `json:"display_name"`
	// Age は年齢。
	Age int64 `json:"age"`
	// LessonsCompleted は完了したレッスン数（このコアでは不透明な進捗カウンター）。
	LessonsCompleted int64 `json:"lessons_completed"`
	// CreatedAt は作成日時（RFC3339）。
	CreatedAt string `json:"created_at"`
}

// handleRegister は保護者の自己登録ハンドラを返す。
func (s *Server) handleRegister() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req registerRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			apierr.Respond(c, apierr.New(apierr.KindValidation, http.StatusBadRequest, "リクエストボディが不正です"))
			return
		}
		if len(req.Password) < minPasswordLength {
			apierr.Respond(c, apierr.New(apierr.KindValidation, http.StatusBadRequest, "パスワードは8文字以上にしてください"))
			return
		}

		ctx := c.Request.Context()
		if _, err := s.queries.GetGuardianByEmail(ctx, req.Email); err == nil {
			apierr.Respond(c, apierr.New(apierr.KindConflict, http.StatusConflict, "このメールアドレスは既に登録されています"))
			return
		} else if !errors.Is(err, sql.ErrNoRows) {
			log.Printf("保護者の検索に失敗: %v", err)
			apierr.Respond(c, err)
			return
		}

		hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
		if err != nil {
			log.Printf("パスワードのハッシュ化に失敗: %v", err)
			apierr.Respond(c, err)
			return
		}

		guardian := authdb.CreateGuardianParams{
			ID:           uuid.New().String(),
			Email:        req.Email,
			PasswordHash: string(hash),
			DisplayName:  req.DisplayName,
			Plan:         "free",
			CreatedAt:    time.Now().UTC().Format(time.RFC3339),
		}
		if err := s.queries.CreateGuardian(ctx, guardian); err != nil {
			log.Printf("保護者の作成に失敗: %v", err)
			apierr.Respond(c, err)
			return
		}

		token, err := issueToken(s.jwtSecret, SubjectKindGuardian, guardian.ID, "", guardianTokenTTL)
		if err != nil {
			log.Printf("トークン発行に失敗: %v", err)
			apierr.Respond(c, err)
			return
		}

		c.JSON(http.StatusCreated, gin.H{
			"token": token,
			"user": guardianResponse{
				ID:          guardian.ID,
				Email:       guardian.Email,
				DisplayName: guardian.DisplayName,
				Plan:        guardian.Plan,
				Children:    []string{},
				CreatedAt:   guardian.CreatedAt,
			},
		})
	}
}

// handleLogin は保護者ログインハンドラを返す。
// ユーザー列挙攻撃を防ぐため、未登録メールとパスワード誤りで同じ応答を返す。
// ログインは新しいトークンを発行するだけで、既存トークンは無効化しない
// （複数端末の同時セッションを許可する）。
func (s *Server) handleLogin() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req loginRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			apierr.Respond(c, apierr.New(apierr.KindValidation, http.StatusBadRequest, "リクエストボディが不正です"))
			return
		}

		ctx := c.Request.Context()
		authFailed := apierr.New(apierr.KindAuthentication, http.StatusUnauthorized, "メールアドレスまたはパスワードが正しくありません")

		guardian, err := s.queries.GetGuardianByEmail(ctx, req.Email)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				apierr.Respond(c, authFailed)
				return
			}
			log.Printf("保護者の検索に失敗: %v", err)
			apierr.Respond(c, err)
			return
		}
		if err := bcrypt.CompareHashAndPassword([]byte(guardian.PasswordHash), []byte(req.Password)); err != nil {
			apierr.Respond(c, authFailed)
			return
		}

		token, err := issueToken(s.jwtSecret, SubjectKindGuardian, guardian.ID, "", guardianTokenTTL)
		if err != nil {
			log.Printf("トークン発行に失敗: %v", err)
			apierr.Respond(c, err)
			return
		}

		resp, err := s.buildGuardianResponse(c, guardian.ID)
		if err != nil {
			apierr.Respond(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"token": token, "user": resp})
	}
}

// handleAddChild は子どもアカウント作成ハンドラを返す。
// 有効な保護者トークンによる操作のみ受け付ける。
func (s *Server) handleAddChild() gin.HandlerFunc {
	return func(c *gin.Context) {
		claims, apiErr := s.requireGuardian(c)
		if apiErr != nil {
			apierr.Respond(c, apiErr)
			return
		}

		var req addChildRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			apierr.Respond(c, apierr.New(apierr.KindValidation, http.StatusBadRequest, "リクエストボディが不正です"))
			return
		}
		if req.Age < minDependentAge || req.Age > maxDependentAge {
			apierr.Respond(c, apierr.New(apierr.KindValidation, http.StatusBadRequest, "年齢は3〜12歳の範囲で指定してください"))
			return
		}

		dependent := authdb.CreateDependentParams{
			ID:          uuid.New().String(),
			GuardianID:  claims.SubjectID,
			DisplayName: req.DisplayName,
			Age:         req.Age,
			CreatedAt:   time.Now().UTC().Format(time.RFC3339),
		}
		if err := s.queries.CreateDependent(c.Request.Context(), dependent); err != nil {
			log.Printf("子どもアカウントの作成に失敗: %v", err)
			apierr.Respond(c, err)
			return
		}

		c.JSON(http.StatusCreated, gin.H{
			"dependent": dependentResponse{
				ID:          dependent.ID,
				GuardianID:  dependent.GuardianID,
				DisplayName: dependent.DisplayName,
				Age:         dependent.Age,
				CreatedAt:   dependent.CreatedAt,
			},
		})
	}
}

// handleListChildren は保護者が所有する子どもアカウントの一覧を返すハンドラを返す。
func (s *Server) handleListChildren() gin.HandlerFunc {
	return func(c *gin.Context) {
		claims, apiErr := s.requireGuardian(c)
		if apiErr != nil {
			apierr.Respond(c, apiErr)
			return
		}

		dependents, err := s.queries.ListDependentsByGuardian(c.Request.Context(), claims.SubjectID)
		if err != nil {
			log.Printf("子どもアカウントの一覧取得に失敗: %v", err)
			apierr.Respond(c, err)
			return
		}

		children := make([]dependentResponse, 0, len(dependents))
		for _, d := range dependents {
			children = append(children, dependentResponse{
				ID:               d.ID,
				GuardianID:       d.GuardianID,
				DisplayName:      d.DisplayName,
				Age:              d.Age,
				LessonsCompleted: d.LessonsCompleted,
				CreatedAt:        d.CreatedAt,
			})
		}
		c.JSON(http.StatusOK, gin.H{"children": children})
	}
}

// handleChildLogin は委任による子どもログインハンドラを返す。
// 子どもにパスワードは無く、有効な保護者トークンが所有する子どもを
// 名指しした場合にのみ子どもトークンを発行する（信頼委任の中核ルール）。
func (s *Server) handleChildLogin() gin.HandlerFunc {
	return func(c *gin.Context) {
		claims, apiErr := s.requireGuardian(c)
		if apiErr != nil {
			apierr.Respond(c, apiErr)
			return
		}

		var req childLoginRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			apierr.Respond(c, apierr.New(apierr.KindValidation, http.StatusBadRequest, "リクエストボディが不正です"))
			return
		}

		dependent, err := s.queries.GetDependentByID(c.Request.Context(), req.DependentID)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				apierr.Respond(c, apierr.New(apierr.KindNotFound, http.StatusNotFound, "子どもアカウントが見つかりません"))
				return
			}
			log.Printf("子どもアカウントの取得に失敗: %v", err)
			apierr.Respond(c, err)
			return
		}

		// 盗まれた有効な子どもIDでもテナント越えが成立しないよう、所有関係を必ず検証する
		if dependent.GuardianID != claims.SubjectID {
			apierr.Respond(c, apierr.New(apierr.KindAuthorization, http.StatusForbidden, "この子どもアカウントへのアクセス権がありません"))
			return
		}

		// セッション長は保護者トークンの残り時間とは無関係に年齢ブラケットで決まる
		sessionLimit := sessionLimitForAge(dependent.Age)
		token, err := issueToken(s.jwtSecret, SubjectKindDependent, dependent.ID, dependent.GuardianID, sessionLimit)
		if err != nil {
			log.Printf("トークン発行に失敗: %v", err)
			apierr.Respond(c, err)
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"token": token,
			"user": dependentResponse{
				ID:               dependent.ID,
				GuardianID:       dependent.GuardianID,
				DisplayName:      dependent.DisplayName,
				Age:              dependent.Age,
				LessonsCompleted: dependent.LessonsCompleted,
				CreatedAt:        dependent.CreatedAt,
			},
			"session_limit_minutes": int64(sessionLimit.Minutes()),
		})
	}
}

// handleLogout はログアウトハンドラを返す。
// トークンのjtiを残り有効期間と同じTTLで否認リストに登録する。
// 二重ログアウトはエラーにしない（冪等）。
func (s *Server) handleLogout() gin.HandlerFunc {
	return func(c *gin.Context) {
		tokenString, apiErr := bearerToken(c)
		if apiErr != nil {
			apierr.Respond(c, apiErr)
			return
		}

		claims, err := parseToken(s.jwtSecret, tokenString)
		if err != nil {
			if errors.Is(err, errTokenExpired) {
				// 期限切れトークンは既に終端状態。登録するものが無い
				c.JSON(http.StatusOK, gin.H{"status": "ok"})
				return
			}
			apierr.Respond(c, apierr.New(apierr.KindMalformedToken, http.StatusUnauthorized, "トークンの形式が不正です"))
			return
		}

		remaining := time.Until(claims.ExpiresAt.Time)
		if remaining > 0 {
			// クライアントは200を「全サービスでトークンが使えなくなった」と解釈するため、
			// 失効レコードの書き込み完了を待ってから応答する
			if err := s.store.SetWithTTL(c.Request.Context(), revocationKey(claims.ID), "1", remaining); err != nil {
				log.Printf("失効レコードの書き込みに失敗: %v", err)
				apierr.Respond(c, err)
				return
			}
		}

		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	}
}

// handleValidate はトークン検証ハンドラを返す（ゲートウェイ内部API）。
// 検証順序: (a)署名・構造 → (b)有効期限 → (c)失効レコード。
// 失効レコードの読み取り以外に副作用は無い。
func (s *Server) handleValidate() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req validateRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			apierr.Respond(c, apierr.New(apierr.KindValidation, http.StatusBadRequest, "リクエストボディが不正です"))
			return
		}

		claims, apiErr := s.validateToken(c, req.Token)
		if apiErr != nil {
			apierr.Respond(c, apiErr)
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"subject_kind": claims.SubjectKind,
			"subject_id":   claims.SubjectID,
			"guardian_id":  claims.GuardianID,
		})
	}
}

// validateToken はトークンの署名・期限・失効を順に検証し、クレームを返す。
func (s *Server) validateToken(c *gin.Context, tokenString string) (*Claims, *apierr.Error) {
	claims, err := parseToken(s.jwtSecret, tokenString)
	if err != nil {
		if errors.Is(err, errTokenExpired) {
			return nil, apierr.New(apierr.KindExpiredToken, http.StatusUnauthorized, "トークンの有効期限が切れています")
		}
		return nil, apierr.New(apierr.KindMalformedToken, http.StatusUnauthorized, "トークンの形式が不正です")
	}

	_, revoked, err := s.store.Get(c.Request.Context(), revocationKey(claims.ID))
	if err != nil {
		log.Printf("失効レコードの照会に失敗: %v", err)
		return nil, apierr.New(apierr.KindInternal, http.StatusInternalServerError, "内部サーバーエラーが発生しました")
	}
	if revoked {
		return nil, apierr.New(apierr.KindRevokedToken, http.StatusUnauthorized, "トークンは失効しています")
	}

	return claims, nil
}

// requireGuardian はリクエストのBearerトークンを検証し、保護者トークンであることを要求する。
func (s *Server) requireGuardian(c *gin.Context) (*Claims, *apierr.Error) {
	tokenString, apiErr := bearerToken(c)
	if apiErr != nil {
		return nil, apiErr
	}
	claims, apiErr := s.validateToken(c, tokenString)
	if apiErr != nil {
		return nil, apiErr
	}
	if claims.SubjectKind != SubjectKindGuardian {
		return nil, apierr.New(apierr.KindAuthorization, http.StatusForbidden, "この操作には保護者トークンが必要です")
	}
	return claims, nil
}

// buildGuardianResponse は保護者の公開フィールドを所有する子どもIDリスト付きで組み立てる。
func (s *Server) buildGuardianResponse(c *gin.Context, guardianID string) (*guardianResponse, error) {
	guardian, err := s.queries.GetGuardianByID(c.Request.Context(), guardianID)
	if err != nil {
		log.Printf("保護者の取得に失敗: %v", err)
		return nil, err
	}
	dependents, err := s.queries.ListDependentsByGuardian(c.Request.Context(), guardianID)
	if err != nil {
		log.Printf("子どもアカウントの一覧取得に失敗: %v", err)
		return nil, err
	}

	children := make([]string, 0, len(dependents))
	for _, d := range dependents {
		children = append(children, d.ID)
	}
	return &guardianResponse{
		ID:          guardian.ID,
		Email:       guardian.Email,
		DisplayName: guardian.DisplayName,
		Plan:        guardian.Plan,
		Children:    children,
		CreatedAt:   guardian.CreatedAt,
	}, nil
}

// bearerToken はAuthorizationヘッダーからBearerトークンを取り出す。
func bearerToken(c *gin.Context) (string, *apierr.Error) {
	authHeader := c.GetHeader("Authorization")
	if authHeader == "" {
		return "", apierr.New(apierr.KindMalformedToken, http.StatusUnauthorized, "Authorizationヘッダーが必要です")
	}
	tokenString, found := strings.CutPrefix(authHeader, "Bearer ")
	if !found {
		return "", apierr.New(apierr.KindMalformedToken, http.StatusUnauthorized, "Bearerトークン形式が不正です")
	}
	return tokenString, nil
}
