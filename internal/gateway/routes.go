package gateway

import (
	"strings"
	"time"
)

// AuthPolicy はルートごとの認証ポリシー。
type AuthPolicy string

const (
	// PolicyPublic は認証なしで転送するポリシー。
	// 認証局自身のエンドポイントなど、転送先が自前で認証を行うルートに使う。
	PolicyPublic AuthPolicy = "public"
	// PolicyRequiresGuardian は保護者トークンのみを許可するポリシー。
	PolicyRequiresGuardian AuthPolicy = "requires-guardian"
	// PolicyRequiresAny はどちらの種別のトークンでも許可するポリシー。
	PolicyRequiresAny AuthPolicy = "requires-any"
)

// レートクラス名。Redisカウンターキーの一部になる。
const (
	// rateClassAuth は認証系ルート用。クレデンシャルスタッフィング対策で厳しめ。
	rateClassAuth = "auth"
	// rateClassAPI は読み取り中心の一般APIルート用。
	rateClassAPI = "api"
)

// RouteTarget はパスプレフィックスからバックエンドへのマッピング。
// 起動時に構築され、実行時には読み取り専用。
type RouteTarget struct {
	// Name はヘルスチェック結果などに表示するサービス名。
	Name string
	// Prefix はマッチ対象のURLパスプレフィックス。
	Prefix string
	// BaseURL はバックエンドのベースURL。クライアントには決して開示しない。
	BaseURL string
	// Timeout は転送1回あたりのタイムアウト予算。
	Timeout time.Duration
	// Policy は認証ポリシー。
	Policy AuthPolicy
	// RateClass はレート制限クラス。
	RateClass string
}

// serviceURLConfig はバックエンドサービスのURL設定。
type serviceURLConfig struct {
	Auth       string
	Curriculum string
	Progress   string
	Speech     string
	Avatar     string
}

// 転送タイムアウトの既定値。認証系は短めに切る。
const (
	authRouteTimeout = 5 * time.Second
	apiRouteTimeout  = 10 * time.Second
)

// buildRouteTable はサービスURL設定からルートテーブルを構築する。
// 認証局のエンドポイントは認証局自身が認可を行うためpublic。
// /reports は保護者向けの学習進捗レポートで、子どもトークンでは閲覧できない。
func buildRouteTable(urls serviceURLConfig) []RouteTarget {
	return []RouteTarget{
		{Name: "auth", Prefix: "/parent", BaseURL: urls.Auth, Timeout: authRouteTimeout, Policy: PolicyPublic, RateClass: rateClassAuth},
		{Name: "auth", Prefix: "/child", BaseURL: urls.Auth, Timeout: authRouteTimeout, Policy: PolicyPublic, RateClass: rateClassAuth},
		{Name: "auth", Prefix: "/logout", BaseURL: urls.Auth, Timeout: authRouteTimeout, Policy: PolicyPublic, RateClass: rateClassAuth},
		{Name: "curriculum", Prefix: "/curriculum", BaseURL: urls.Curriculum, Timeout: apiRouteTimeout, Policy: PolicyRequiresAny, RateClass: rateClassAPI},
		{Name: "progress", Prefix: "/progress", BaseURL: urls.Progress, Timeout: apiRouteTimeout, Policy: PolicyRequiresAny, RateClass: rateClassAPI},
		{Name: "progress", Prefix: "/reports", BaseURL: urls.Progress, Timeout: apiRouteTimeout, Policy: PolicyRequiresGuardian, RateClass: rateClassAPI},
		{Name: "speech", Prefix: "/speech", BaseURL: urls.Speech, Timeout: apiRouteTimeout, Policy: PolicyRequiresAny, RateClass: rateClassAPI},
		{Name: "avatar", Prefix: "/avatar", BaseURL: urls.Avatar, Timeout: apiRouteTimeout, Policy: PolicyRequiresAny, RateClass: rateClassAPI},
	}
}

// matchRoute はパスに対して最長プレフィックス一致でルートを解決する。
// プレフィックス境界はパスセグメント単位（/parent は /parentx にマッチしない）。
func matchRoute(table []RouteTarget, path string) (RouteTarget, bool) {
	var best RouteTarget
	found := false
	for _, rt := range table {
		if !hasPathPrefix(path, rt.Prefix) {
			continue
		}
		if !found || len(rt.Prefix) > len(best.Prefix) {
			best = rt
			found = true
		}
	}
	return best, found
}

// hasPathPrefix はパスがプレフィックスにセグメント境界で一致するか判定する。
func hasPathPrefix(path, prefix string) bool {
	if !strings.HasPrefix(path, prefix) {
		return false
	}
	return len(path) == len(prefix) || path[len(prefix)] == '/'
}
