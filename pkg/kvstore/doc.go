// Package kvstore はTTL付きキーバリューストアへの狭いインターフェースを提供する。
//
// 失効レコード（トークン否認リスト）とレート制限カウンターは
// 複数プロセスから同時に読み書きされるため、プロセス内の共有コレクションではなく
// Redisを背後に持つ get / set / incr-with-expiry の3操作に限定したストアを使う。
package kvstore
