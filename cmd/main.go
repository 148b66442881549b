// 程序入口：仅负责读取配置、初始化依赖并启动服务；API 注册在 internal/api 以便扩展
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"tweet-search/internal/api"
	"tweet-search/internal/config"
	"tweet-search/internal/geocode"
	"tweet-search/internal/logger"
	"tweet-search/internal/metrics"
	"tweet-search/internal/middleware"
	"tweet-search/internal/migrate"
	"tweet-search/internal/search"
	"tweet-search/internal/store"
	"tweet-search/internal/tweets"
	"tweet-search/internal/utils"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logger.Setup().Error("config_error", "err", err)
		os.Exit(1)
	}
	l := logger.SetupWith(os.Stderr, cfg.Log.Level, cfg.Log.Format)
	l.Debug("log_init_ok")
	l.Debug("config_api_base", "base", cfg.APIBase)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := utils.OpenPostgres(ctx, cfg.PostgresDSN(), cfg.Postgres.MaxOpenConns, cfg.Postgres.MaxIdleConns)
	if err != nil {
		l.Error("db_open_error", "err", err)
		os.Exit(1)
	}
	defer db.Close()
	l.Info("db_open_ok")
	if err := migrate.EnsureSchema(ctx, db); err != nil {
		l.Error("schema_error", "err", err)
		os.Exit(1)
	}
	st := store.AttachDB(db)

	mc, err := utils.OpenMongo(ctx, cfg.Mongo.URI, cfg.Mongo.Timeout)
	if err != nil {
		l.Error("mongo_open_error", "err", err)
		os.Exit(1)
	}
	defer func() {
		dctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = mc.Disconnect(dctx)
	}()
	l.Info("mongo_open_ok", "db", cfg.Mongo.DB, "collection", cfg.Mongo.Collection)
	tw := tweets.New(mc.Database(cfg.Mongo.DB).Collection(cfg.Mongo.Collection))
	if err := tw.EnsureIndexes(ctx); err != nil {
		// 索引缺失时部分查询不可用，但不阻断启动
		l.Error("mongo_index_error", "err", err)
	}

	geo := geocode.New(cfg.Nominatim.URL, cfg.Nominatim.UserAgent, &http.Client{Timeout: cfg.Nominatim.Timeout})

	cache, err := search.NewCache(cfg.Cache.Capacity)
	if err != nil {
		l.Error("cache_init_error", "err", err)
		os.Exit(1)
	}
	l.Info("cache_ready", "capacity", cache.Cap())
	svc := search.NewService(st, tw, geo, cache)

	base := strings.TrimSuffix(cfg.APIBase, "/")
	mux := http.NewServeMux()
	mux.Handle(base+"/", http.StripPrefix(base, api.BuildRoutes(svc, cache)))
	mux.Handle(base+"/metrics", metrics.Handler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		hctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := db.PingContext(hctx); err != nil {
			l.Warn("healthz_db_error", "err", err)
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	})

	var handler http.Handler = mux
	if cfg.RateLimit.Enabled {
		var lim middleware.Limiter
		switch cfg.RateLimit.Backend {
		case "redis":
			rc := utils.OpenRedis(cfg.RedisAddr(), cfg.Redis.Pass, cfg.Redis.DB)
			defer rc.Close()
			if err := rc.Ping(ctx).Err(); err != nil {
				l.Error("redis_ping_error", "err", err)
			} else {
				l.Info("redis_ping_ok")
			}
			lim = middleware.NewRedisWindow(rc, "", cfg.RateLimit.QPS)
		default:
			lim = middleware.NewTokenBucket(cfg.RateLimit.QPS)
		}
		l.Info("rate_limit_enabled", "backend", cfg.RateLimit.Backend, "qps", cfg.RateLimit.QPS)
		handler = middleware.RateLimit(lim, cfg.RateLimit.Backend)(handler)
	}
	handler = logger.AccessMiddleware(l)(handler)
	handler = middleware.RequestID(handler)

	s := &http.Server{Addr: cfg.Addr, Handler: handler, ReadHeaderTimeout: 10 * time.Second}
	go func() {
		<-ctx.Done()
		sctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		l.Info("shutdown_begin")
		_ = s.Shutdown(sctx)
	}()

	l.Info("listening", "addr", cfg.Addr)
	if err := s.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		l.Error("listen_error", "err", err)
		os.Exit(1)
	}
	l.Info("shutdown_ok")
}
