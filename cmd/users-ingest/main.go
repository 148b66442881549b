// 数据导入工具：读取用户资料（JSON Lines，本地文件或 URL）并批量写入 PostgreSQL
package main

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"strings"

	"tweet-search/internal/config"
	"tweet-search/internal/logger"
	"tweet-search/internal/migrate"
	"tweet-search/internal/store"
	"tweet-search/internal/utils"
)

// open：SRC 以 http(s):// 开头时按 URL 拉取，否则按本地路径打开
func open(ctx context.Context, src string) (io.ReadCloser, error) {
	if strings.HasPrefix(src, "http://") || strings.HasPrefix(src, "https://") {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, src, nil)
		if err != nil {
			return nil, err
		}
		resp, err := http.DefaultClient.Do(req)
		if err != nil {
			return nil, err
		}
		if resp.StatusCode != http.StatusOK {
			resp.Body.Close()
			return nil, fmt.Errorf("bad status %d", resp.StatusCode)
		}
		return resp.Body, nil
	}
	return os.Open(src)
}

// errUsage：未指定数据源
var errUsage = errors.New("usage: users-ingest <file|url> or SRC=...")

func main() {
	l := logger.Setup()
	src := os.Getenv("SRC")
	if len(os.Args) > 1 {
		src = os.Args[1]
	}
	if err := run(context.Background(), l, src); err != nil {
		l.Error("ingest_error", "err", err)
		if errors.Is(err, errUsage) {
			os.Exit(2)
		}
		os.Exit(1)
	}
}

// run：逐行解析并 UPSERT；坏行跳过并计数，写库失败立即返回
func run(ctx context.Context, l *slog.Logger, src string) error {
	if src == "" {
		return errUsage
	}
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}

	db, err := utils.OpenPostgres(ctx, cfg.PostgresDSN(), cfg.Postgres.MaxOpenConns, cfg.Postgres.MaxIdleConns)
	if err != nil {
		return err
	}
	defer db.Close()
	if err := migrate.EnsureSchema(ctx, db); err != nil {
		return err
	}
	st := store.AttachDB(db)

	rc, err := open(ctx, src)
	if err != nil {
		return fmt.Errorf("open %s: %w", src, err)
	}
	defer rc.Close()

	count, skipped, err := ingest(ctx, l, rc, st.UpsertUser)
	if err != nil {
		return err
	}
	l.Info("ingest_done", "imported", count, "skipped", skipped)
	return nil
}

// ingest：从 r 读取 JSON Lines 并逐条 upsert
func ingest(ctx context.Context, l *slog.Logger, r io.Reader, upsert func(context.Context, store.User) error) (count, skipped int, err error) {
	rd := bufio.NewScanner(r)
	rd.Buffer(make([]byte, 1024), 1024*1024)
	for rd.Scan() {
		line := strings.TrimSpace(rd.Text())
		if line == "" {
			continue
		}
		var u store.User
		if err := json.Unmarshal([]byte(line), &u); err != nil || u.ID == 0 || u.ScreenName == "" {
			skipped++
			continue
		}
		if err := upsert(ctx, u); err != nil {
			return count, skipped, err
		}
		count++
		if count%5000 == 0 {
			l.Info("ingest_progress", "imported", count)
		}
	}
	if err := rd.Err(); err != nil {
		return count, skipped, fmt.Errorf("read source: %w", err)
	}
	return count, skipped, nil
}
