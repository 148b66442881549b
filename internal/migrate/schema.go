// 包 migrate：首次运行时创建用户表与索引
package migrate

import (
	"context"
	"database/sql"
	"fmt"

	"tweet-search/internal/logger"
)

// execer：*sql.DB 与 *sql.Tx 的公共子集
type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// Statements：建表语句，均为 IF NOT EXISTS，可重复执行
var Statements = []string{
	`CREATE TABLE IF NOT EXISTS twitter_users (
        id BIGINT PRIMARY KEY,
        name TEXT NOT NULL DEFAULT '',
        screen_name TEXT NOT NULL,
        location TEXT NOT NULL DEFAULT '',
        created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
        followers_count BIGINT NOT NULL DEFAULT 0,
        friends_count BIGINT NOT NULL DEFAULT 0,
        statuses_count BIGINT NOT NULL DEFAULT 0,
        favorites_count BIGINT NOT NULL DEFAULT 0
    )`,
	`CREATE UNIQUE INDEX IF NOT EXISTS uniq_twitter_users_screen_name ON twitter_users(screen_name)`,
	`CREATE INDEX IF NOT EXISTS idx_twitter_users_followers ON twitter_users(followers_count DESC)`,
}

// EnsureSchema：顺序执行建表语句，遇错即返回
func EnsureSchema(ctx context.Context, db execer) error {
	for i, s := range Statements {
		logger.L().Debug("schema_exec", "idx", i)
		if _, err := db.ExecContext(ctx, s); err != nil {
			return fmt.Errorf("schema statement %d: %w", i, err)
		}
	}
	logger.L().Debug("schema_done")
	return nil
}
