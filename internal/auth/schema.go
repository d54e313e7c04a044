package auth

import (
	"database/sql"
	"fmt"
)

// スキーマ定義。db/auth/schema.sql と同期すること。
const schema = `
CREATE TABLE IF NOT EXISTS guardians (
    -- 保護者の一意識別子
    id TEXT PRIMARY KEY,
    -- ログインに使用するメールアドレス
    email TEXT NOT NULL UNIQUE,
    -- bcryptでハッシュ化したパスワード
    password_hash TEXT NOT NULL,
    -- 表示名
    display_name TEXT NOT NULL,
    -- 契約プラン
    plan TEXT NOT NULL DEFAULT 'free',
    -- 作成日時（RFC3339）
    created_at TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_guardians_email
    ON guardians(email);

CREATE TABLE IF NOT EXISTS dependents (
    -- 子どもアカウントの一意識別子
    id TEXT PRIMARY KEY,
    -- 所有する保護者のID
    guardian_id TEXT NOT NULL REFERENCES guardians(id),
    -- 表示名（本名は保存しない）
    display_name TEXT NOT NULL,
    -- 年齢（3〜12歳）
    age INTEGER NOT NULL,
    -- 完了したレッスン数
    lessons_completed INTEGER NOT NULL DEFAULT 0,
    -- 作成日時（RFC3339）
    created_at TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_dependents_guardian
    ON dependents(guardian_id);
`

// initSchema はSQLiteデータベースにスキーマを適用する。
func initSchema(db *sql.DB) error {
	if _, err := db.Exec(schema); err != nil {
		return fmt.Errorf("スキーマの適用に失敗: %w", err)
	}
	return nil
}
