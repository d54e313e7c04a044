// Package httpclient はサービス間のHTTP通信を行うクライアントを提供する。
//
// ゲートウェイが認証局のトークン検証APIを呼び出す際に使用する。
// 相関IDの伝播と、共通エラーボディ（error_kind）のデコードを行い、
// サービス間の通信パターンを統一する。
package httpclient
