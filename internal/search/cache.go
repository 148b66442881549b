package search

import (
	"tweet-search/internal/logger"
	"tweet-search/internal/lru"
	"tweet-search/internal/metrics"
)

// NewCache：构造查询结果缓存，淘汰事件计入指标
func NewCache(capacity int) (*lru.Cache[any], error) {
	c, err := lru.NewWithEvict[any](capacity, func(key string, _ any) {
		metrics.CacheEvictionsTotal.Inc()
		logger.L().Debug("cache_evict", "key", key)
	})
	if err != nil {
		return nil, err
	}
	metrics.CacheEntries.Set(0)
	return c, nil
}
