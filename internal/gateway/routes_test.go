package gateway

import (
	"testing"
	"time"
)

// TestMatchRoute はルートテーブルの最長プレフィックス一致を検証する。
func TestMatchRoute(t *testing.T) {
	t.Parallel()

	table := []RouteTarget{
		{Name: "curriculum", Prefix: "/curriculum", BaseURL: "http://curriculum:8082"},
		{Name: "curriculum-media", Prefix: "/curriculum/media", BaseURL: "http://media:8090"},
		{Name: "auth", Prefix: "/parent", BaseURL: "http://auth:8081"},
	}

	tests := []struct {
		name     string
		path     string
		wantName string
		wantOK   bool
	}{
		{name: "プレフィックスに完全一致する", path: "/parent", wantName: "auth", wantOK: true},
		{name: "プレフィックス配下のパスに一致する", path: "/parent/register", wantName: "auth", wantOK: true},
		{name: "複数一致時は最長のプレフィックスが勝つ", path: "/curriculum/media/123", wantName: "curriculum-media", wantOK: true},
		{name: "短い方のプレフィックスにも正しく落ちる", path: "/curriculum/lessons", wantName: "curriculum", wantOK: true},
		{name: "セグメント境界を跨ぐ一致はしない", path: "/parentx/register", wantOK: false},
		{name: "未登録のパスは一致しない", path: "/unknown", wantOK: false},
		{name: "ルートパスは一致しない", path: "/", wantOK: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got, ok := matchRoute(table, tt.path)
			if ok != tt.wantOK {
				t.Fatalf("matchRoute(%q) ok = %v, want %v", tt.path, ok, tt.wantOK)
			}
			if ok && got.Name != tt.wantName {
				t.Errorf("matchRoute(%q).Name = %q, want %q", tt.path, got.Name, tt.wantName)
			}
		})
	}
}

// TestBuildRouteTable は既定のルートテーブルのポリシー設定を検証する。
func TestBuildRouteTable(t *testing.T) {
	t.Parallel()

	urls := serviceURLConfig{
		Auth:       "http://auth:8081",
		Curriculum: "http://curriculum:8082",
		Progress:   "http://progress:8083",
		Speech:     "http://speech:8084",
		Avatar:     "http://avatar:8085",
	}
	table := buildRouteTable(urls)

	t.Run("認証系ルートはpublicかつauthクラスであること", func(t *testing.T) {
		t.Parallel()

		for _, prefix := range []string{"/parent", "/child", "/logout"} {
			rt, ok := matchRoute(table, prefix)
			if !ok {
				t.Fatalf("%q のルートが見つからない", prefix)
			}
			if rt.Policy != PolicyPublic {
				t.Errorf("%q のPolicy = %q, want %q", prefix, rt.Policy, PolicyPublic)
			}
			if rt.RateClass != rateClassAuth {
				t.Errorf("%q のRateClass = %q, want %q", prefix, rt.RateClass, rateClassAuth)
			}
			if rt.BaseURL != urls.Auth {
				t.Errorf("%q のBaseURL = %q, want %q", prefix, rt.BaseURL, urls.Auth)
			}
		}
	})

	t.Run("APIルートはトークン必須かつapiクラスであること", func(t *testing.T) {
		t.Parallel()

		for _, prefix := range []string{"/curriculum", "/progress", "/speech", "/avatar"} {
			rt, ok := matchRoute(table, prefix)
			if !ok {
				t.Fatalf("%q のルートが見つからない", prefix)
			}
			if rt.Policy != PolicyRequiresAny {
				t.Errorf("%q のPolicy = %q, want %q", prefix, rt.Policy, PolicyRequiresAny)
			}
			if rt.RateClass != rateClassAPI {
				t.Errorf("%q のRateClass = %q, want %q", prefix, rt.RateClass, rateClassAPI)
			}
		}
	})

	t.Run("保護者向けレポートは保護者トークン必須であること", func(t *testing.T) {
		t.Parallel()

		rt, ok := matchRoute(table, "/reports/weekly")
		if !ok {
			t.Fatal("/reports のルートが見つからない")
		}
		if rt.Policy != PolicyRequiresGuardian {
			t.Errorf("Policy = %q, want %q", rt.Policy, PolicyRequiresGuardian)
		}
		if rt.BaseURL != urls.Progress {
			t.Errorf("BaseURL = %q, want %q", rt.BaseURL, urls.Progress)
		}
	})

	t.Run("認証系ルートのタイムアウトはAPIルートより短いこと", func(t *testing.T) {
		t.Parallel()

		authRoute, _ := matchRoute(table, "/parent")
		apiRoute, _ := matchRoute(table, "/curriculum")
		if authRoute.Timeout >= apiRoute.Timeout {
			t.Errorf("auth Timeout = %v, api Timeout = %v", authRoute.Timeout, apiRoute.Timeout)
		}
		if authRoute.Timeout != 5*time.Second {
			t.Errorf("auth Timeout = %v, want %v", authRoute.Timeout, 5*time.Second)
		}
	})
}
