package middleware

import (
	"context"
	"net/http"
	"strconv"
	"sync"
	"time"

	"tweet-search/internal/logger"
	"tweet-search/internal/metrics"

	"github.com/redis/go-redis/v9"
)

// Limiter：入口限流判定
type Limiter interface {
	Allow(ctx context.Context) (bool, error)
}

// TokenBucket：进程内令牌桶（每秒）
// 约束：不做排队，令牌耗尽即拒绝；每个自然秒重置为满桶
type TokenBucket struct {
	capacity int
	tokens   int
	lastSec  int64
	now      func() time.Time
	mu       sync.Mutex
}

// NewTokenBucket：按每秒请求数构造令牌桶
func NewTokenBucket(qps int) *TokenBucket {
	return &TokenBucket{capacity: qps, tokens: qps, lastSec: time.Now().Unix(), now: time.Now}
}

func (tb *TokenBucket) Allow(context.Context) (bool, error) {
	tb.mu.Lock()
	defer tb.mu.Unlock()
	nowSec := tb.now().Unix()
	if tb.lastSec != nowSec {
		tb.lastSec = nowSec
		tb.tokens = tb.capacity
	}
	if tb.tokens > 0 {
		tb.tokens--
		return true, nil
	}
	return false, nil
}

// RedisWindow：基于 Redis 的固定窗口计数（每秒一个键），多实例共享同一配额
// 约束：INCR 与 EXPIRE 在同一事务管道中提交，键最多存活两个窗口
type RedisWindow struct {
	rdb    *redis.Client
	prefix string
	limit  int64
	now    func() time.Time
}

// NewRedisWindow：prefix 为空时使用 "tweetsearch:rl"
func NewRedisWindow(rdb *redis.Client, prefix string, qps int) *RedisWindow {
	if prefix == "" {
		prefix = "tweetsearch:rl"
	}
	return &RedisWindow{rdb: rdb, prefix: prefix, limit: int64(qps), now: time.Now}
}

func (rw *RedisWindow) Allow(ctx context.Context) (bool, error) {
	key := rw.prefix + ":" + strconv.FormatInt(rw.now().Unix(), 10)
	pipe := rw.rdb.TxPipeline()
	incr := pipe.Incr(ctx, key)
	pipe.Expire(ctx, key, 2*time.Second)
	if _, err := pipe.Exec(ctx); err != nil {
		return false, err
	}
	return incr.Val() <= rw.limit, nil
}

// RateLimit：限流中间件；超限返回 429
// 约束：限流后端故障时放行并记录告警，不因 Redis 不可用而拒绝全部请求
func RateLimit(l Limiter, backend string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ok, err := l.Allow(r.Context())
			if err != nil {
				logger.L().Warn("rate_limit_backend_error", "backend", backend, "err", err)
				ok = true
			}
			if !ok {
				metrics.RateLimitedTotal.WithLabelValues(backend).Inc()
				w.Header().Set("retry-after", "1")
				w.WriteHeader(http.StatusTooManyRequests)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
