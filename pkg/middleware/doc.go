// Package middleware はGinベースのHTTP APIで使用する共通ミドルウェアを提供する。
//
// パニックリカバリ、CORS設定、相関IDの付与、
// Redisカウンターによるレート制限など、エッジ層の両サービスで
// 共通して使用するミドルウェアを含む。
package middleware
