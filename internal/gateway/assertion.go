package gateway

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// 転送時に付与するヘッダー名。
const (
	// HeaderInternalAssertion はゲートウェイが発行する内部アサーション。
	// バックエンドはクライアント提示のトークンではなくこちらを信頼する。
	HeaderInternalAssertion = "X-Internal-Assertion"
	// HeaderOriginalAuthorization はクライアントが提示した元のAuthorizationヘッダー。
	// バックエンドがクレームを直接参照したい場合に使う。
	HeaderOriginalAuthorization = "X-Original-Authorization"
)

const (
	// assertionIssuer は内部アサーションの発行者名。
	assertionIssuer = "edge-gateway"
	// assertionTTL は内部アサーションの有効期間。転送1回分だけ持てばよい。
	assertionTTL = 30 * time.Second
)

// principal は認証局で検証済みのリクエスト主体。
type principal struct {
	// SubjectKind は主体の種別（"guardian" または "dependent"）。
	SubjectKind string `json:"subject_kind"`
	// SubjectID は主体のアカウントID。
	SubjectID string `json:"subject_id"`
	// GuardianID は主体が子どもの場合の所有保護者ID。
	GuardianID string `json:"guardian_id,omitempty"`
}

// assertionClaims は内部アサーションのJWTクレーム。
type assertionClaims struct {
	jwt.RegisteredClaims
	SubjectKind string `json:"subject_kind"`
	SubjectID   string `json:"subject_id"`
	GuardianID  string `json:"guardian_id,omitempty"`
}

// signAssertion は検証済み主体に対する内部アサーションを発行する。
// クライアント提示のトークンとは別の鍵で署名した短命のトークンであり、
// 「ゲートウェイが主体Xに代わってこの呼び出しを認可した」ことを証明する。
func signAssertion(secret string, p *principal) (string, error) {
	now := time.Now()
	claims := assertionClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.New().String(),
			Issuer:    assertionIssuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(assertionTTL)),
		},
		SubjectKind: p.SubjectKind,
		SubjectID:   p.SubjectID,
		GuardianID:  p.GuardianID,
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(secret))
	if err != nil {
		return "", fmt.Errorf("内部アサーションの署名に失敗: %w", err)
	}
	return signed, nil
}

// parseAssertion は内部アサーションを検証してクレームを返す。
// バックエンド側の検証処理に相当し、テストでの検証にも使う。
func parseAssertion(secret, tokenString string) (*assertionClaims, error) {
	claims := &assertionClaims{}
	_, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("想定外の署名方式: %v", t.Header["alg"])
		}
		return []byte(secret), nil
	})
	if err != nil {
		return nil, fmt.Errorf("内部アサーションの検証に失敗: %w", err)
	}
	return claims, nil
}
