// 認証局サービスのエントリポイント。
// 保護者・子どもアカウントの管理、トークンの発行・検証・失効を担当する。
package main

import (
	"log"
	"os"

	"github.com/lumikids/edge/internal/auth"
)

func main() {
	port := os.Getenv("PORT")
	if port == "" {
		port = "8081"
	}

	server, err := auth.NewServer(port)
	if err != nil {
		log.Fatalf("Authサーバーの初期化に失敗: %v", err)
	}

	log.Printf("Authサービスを起動します: :%s", port)
	if err := server.Run(); err != nil {
		log.Fatalf("Authサービスの起動に失敗: %v", err)
	}
}
