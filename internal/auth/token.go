package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// SubjectKindGuardian / SubjectKindDependent はトークンの主体種別。
const (
	SubjectKindGuardian  = "guardian"
	SubjectKindDependent = "dependent"
)

// tokenIssuer はこの認証局が発行するトークンのissクレーム値。
const tokenIssuer = "lumikids-auth"

// guardianTokenTTL は保護者トークンの有効期間。
const guardianTokenTTL = 24 * time.Hour

var (
	// errTokenMalformed は署名・構造の検証に失敗したトークン。
	errTokenMalformed = errors.New("トークンの署名または構造が不正")
	// errTokenExpired は有効期限が切れたトークン。
	errTokenExpired = errors.New("トークンの有効期限切れ")
)

// Claims は認証局が発行するトークンのクレーム（ペイロード）。
// RegisteredClaims.ID（jti）は失効レコードのキーとして使用する。
type Claims struct {
	jwt.RegisteredClaims
	// SubjectKind は主体種別（guardian | dependent）。
	SubjectKind string `json:"subject_kind"`
	// SubjectID は主体の一意識別子。
	SubjectID string `json:"subject_id"`
	// GuardianID は子どもトークンの場合のみ、所有する保護者の識別子。
	GuardianID string `json:"guardian_id,omitempty"`
}

// sessionLimitForAge は年齢ブラケットに応じた子どもセッションの有効期間を返す。
// 低年齢ほど短いセッションにする。受け入れる年齢範囲は3〜12歳。
func sessionLimitForAge(age int64) time.Duration {
	switch {
	case age <= 5:
		return 30 * time.Minute
	case age <= 8:
		return 45 * time.Minute
	default:
		return 60 * time.Minute
	}
}

// issueToken は署名済みトークンを発行する。
// トークンは発行後不変であり、更新は常に新しいjtiを持つ新規発行になる。
func issueToken(secret, subjectKind, subjectID, guardianID string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.New().String(),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
			Issuer:    tokenIssuer,
		},
		SubjectKind: subjectKind,
		SubjectID:   subjectID,
		GuardianID:  guardianID,
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(secret))
	if err != nil {
		return "", fmt.Errorf("トークンの署名に失敗: %w", err)
	}
	return signed, nil
}

// parseToken はトークンの署名・構造と有効期限を検証し、クレームを返す。
// 期限切れの場合はerrTokenExpiredと共にクレームも返す。
// 失効レコードの照会は行わない（呼び出し側の責務）。
func parseToken(secret, tokenString string) (*Claims, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(_ *jwt.Token) (any, error) {
		return []byte(secret), nil
	})
	if err != nil {
		// 署名検証は期限検証より先に走るため、ここに来た期限切れは署名済みトークン
		if errors.Is(err, jwt.ErrTokenExpired) {
			return claims, errTokenExpired
		}
		return nil, errTokenMalformed
	}
	if !token.Valid {
		return nil, errTokenMalformed
	}
	return claims, nil
}

// revocationKey は失効レコードのストアキーを返す。
func revocationKey(jti string) string {
	return fmt.Sprintf("edge:revoked:%s", jti)
}
