// Package apierr はエッジ層の全サービスで共通のエラー応答契約を提供する。
//
// クライアントは error_kind フィールドの閉じた列挙値を見て
// 再ログイン・リトライ・入力修正のいずれを行うか分岐するため、
// エラー種別はここで一元管理する。
package apierr
