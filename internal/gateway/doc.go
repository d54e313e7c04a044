// Package gateway はエッジルーターサービスの内部実装を提供する。
//
// 外部からアクセス可能な唯一のサービスであり、セキュリティの境界線として
// 機能する。ルートテーブルによる転送先解決、認証局への委譲によるトークン
// 検証、Redisベースのレート制限を行い、検証済みリクエストに内部アサーション
// を付与してバックエンドサービスに転送する。
package gateway
