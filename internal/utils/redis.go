package utils

import (
	"tweet-search/internal/logger"

	"github.com/redis/go-redis/v9"
)

// OpenRedis：按地址、密码与库号创建 Redis 客户端；地址为空返回 nil
// 约束：客户端惰性建连，可用性由调用方 Ping 判断
func OpenRedis(addr, pass string, db int) *redis.Client {
	if addr == "" {
		return nil
	}
	if db < 0 {
		db = 0
	}
	logger.L().Debug("redis_open", "addr", addr, "db", db)
	return redis.NewClient(&redis.Options{Addr: addr, Password: pass, DB: db})
}
