package apierr

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
)

// Kind はクライアントに公開するエラー種別。閉じた列挙値であり、
// フロントエンドはこの値でUIの分岐（再ログイン要求・リトライ等）を行う。
type Kind string

const (
	// KindValidation は入力値の不備。リクエストを修正すれば回復できる。
	KindValidation Kind = "validation_error"
	// KindConflict はリソースの重複（メールアドレスの二重登録等）。
	KindConflict Kind = "conflict_error"
	// KindAuthentication はログイン失敗。ユーザー列挙攻撃を防ぐため、
	// 未登録メールとパスワード誤りを区別しない。
	KindAuthentication Kind = "authentication_error"
	// KindAuthorization は有効な資格情報だが権限が不足している状態。
	KindAuthorization Kind = "authorization_error"
	// KindMalformedToken はトークンの署名・構造の検証失敗。
	KindMalformedToken Kind = "malformed_token"
	// KindExpiredToken はトークンの有効期限切れ。
	KindExpiredToken Kind = "expired_token"
	// KindRevokedToken はログアウト済みトークンの使用。
	KindRevokedToken Kind = "revoked_token"
	// KindNotFound はリソースまたはルートが存在しない状態。
	KindNotFound Kind = "not_found"
	// KindRateLimited はレート制限超過。
	KindRateLimited Kind = "rate_limited"
	// KindUpstreamTimeout はバックエンドサービスの応答タイムアウト。
	KindUpstreamTimeout Kind = "upstream_timeout"
	// KindUpstreamUnavailable はバックエンドサービスへの接続失敗。
	KindUpstreamUnavailable Kind = "upstream_unavailable"
	// KindInternal は上記いずれにも該当しないサーバー内部エラー。
	KindInternal Kind = "internal_error"
)

// Response はエラー応答のJSON構造。全エンドポイントで共通。
type Response struct {
	// ErrorKind はエラー種別。
	ErrorKind Kind `json:"error_kind"`
	// Message は人間向けの説明文。
	Message string `json:"message"`
}

// Error はエラー種別とHTTPステータスを持つエラー。
type Error struct {
	// Kind はクライアントに公開するエラー種別。
	Kind Kind
	// Status はHTTPステータスコード。
	Status int
	// Message はクライアントに返す説明文。
	Message string
}

// Error はerrorインターフェースを実装する。
func (e *Error) Error() string {
	return string(e.Kind) + ": " + e.Message
}

// New は新しいエラーを生成する。
func New(kind Kind, status int, message string) *Error {
	return &Error{Kind: kind, Status: status, Message: message}
}

// Respond はエラーをJSON応答として書き込む。
// apierr.Error以外のエラーはinternal_errorとして扱い、内部情報を漏らさない。
func Respond(c *gin.Context, err error) {
	var apiErr *Error
	if errors.As(err, &apiErr) {
		c.AbortWithStatusJSON(apiErr.Status, Response{ErrorKind: apiErr.Kind, Message: apiErr.Message})
		return
	}
	c.AbortWithStatusJSON(http.StatusInternalServerError, Response{
		ErrorKind: KindInternal,
		Message:   "内部サーバーエラーが発生しました",
	})
}

// KindToStatus はエラー種別に対応する既定のHTTPステータスを返す。
// ゲートウェイが認証局のエラー種別を中継する際に使用する。
func KindToStatus(kind Kind) int {
	switch kind {
	case KindValidation:
		return http.StatusBadRequest
	case KindConflict:
		return http.StatusConflict
	case KindAuthentication, KindMalformedToken, KindExpiredToken, KindRevokedToken:
		return http.StatusUnauthorized
	case KindAuthorization:
		return http.StatusForbidden
	case KindNotFound:
		return http.StatusNotFound
	case KindRateLimited:
		return http.StatusTooManyRequests
	case KindUpstreamTimeout:
		return http.StatusGatewayTimeout
	case KindUpstreamUnavailable:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
