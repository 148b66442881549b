// Package testutils 提供集成测试用的容器环境（PostgreSQL / Redis）
//
// 集成测试默认跳过；设置 TWEETSEARCH_INTEGRATION=1 且本机可用 Docker 时执行。
package testutils

import (
	"context"
	"database/sql"
	"os"
	"testing"
	"time"

	_ "github.com/lib/pq"
	"github.com/redis/go-redis/v9"
	tc "github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	tcredis "github.com/testcontainers/testcontainers-go/modules/redis"
	"github.com/testcontainers/testcontainers-go/wait"
)

// RequireIntegration：未开启集成测试时跳过
func RequireIntegration(t testing.TB) {
	t.Helper()
	if testing.Short() || os.Getenv("TWEETSEARCH_INTEGRATION") != "1" {
		t.Skip("integration test: set TWEETSEARCH_INTEGRATION=1 to run")
	}
}

// Postgres：启动 PostgreSQL 容器并返回已连通的 *sql.DB；测试结束自动清理
func Postgres(t testing.TB) *sql.DB {
	t.Helper()
	RequireIntegration(t)
	ctx := context.Background()

	ctr, err := tcpostgres.Run(ctx,
		"postgres:16-alpine",
		tcpostgres.WithDatabase("twitter"),
		tcpostgres.WithUsername("tweetsearch"),
		tcpostgres.WithPassword("tweetsearch"),
		tc.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second),
		),
	)
	if err != nil {
		t.Fatalf("failed to start postgres container: %v", err)
	}
	t.Cleanup(func() { _ = tc.TerminateContainer(ctr) })

	dsn, err := ctr.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		t.Fatalf("failed to get postgres connection string: %v", err)
	}
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		t.Fatalf("failed to open postgres: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	if err := db.PingContext(ctx); err != nil {
		t.Fatalf("failed to ping postgres: %v", err)
	}
	return db
}

// Redis：启动 Redis 容器并返回客户端；测试结束自动清理
func Redis(t testing.TB) *redis.Client {
	t.Helper()
	RequireIntegration(t)
	ctx := context.Background()

	ctr, err := tcredis.Run(ctx, "redis:7-alpine")
	if err != nil {
		t.Fatalf("failed to start redis container: %v", err)
	}
	t.Cleanup(func() { _ = tc.TerminateContainer(ctr) })

	endpoint, err := ctr.Endpoint(ctx, "")
	if err != nil {
		t.Fatalf("failed to get redis endpoint: %v", err)
	}
	rc := redis.NewClient(&redis.Options{Addr: endpoint})
	t.Cleanup(func() { _ = rc.Close() })

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := rc.Ping(pingCtx).Err(); err != nil {
		t.Fatalf("failed to ping redis: %v", err)
	}
	return rc
}
