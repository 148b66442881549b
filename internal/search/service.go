// 包 search：推文/用户查询编排；参数校验、构造缓存键、旁路缓存（先查 LRU，未命中回源并写回）
package search

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"tweet-search/internal/geocode"
	"tweet-search/internal/logger"
	"tweet-search/internal/lru"
	"tweet-search/internal/metrics"
	"tweet-search/internal/store"
	"tweet-search/internal/tweets"
)

// Users：用户数据源（PostgreSQL）
type Users interface {
	UserByScreenName(ctx context.Context, screenName string) (*store.User, error)
	UserByID(ctx context.Context, id int64) (*store.User, error)
	ScreenName(ctx context.Context, id int64) (string, error)
	TopByFollowers(ctx context.Context, n int) ([]store.User, error)
}

// Tweets：推文数据源（MongoDB）
type Tweets interface {
	ByID(ctx context.Context, id string) (*tweets.Tweet, error)
	ByKeyword(ctx context.Context, keyword string, limit int) ([]tweets.Tweet, error)
	ByUser(ctx context.Context, userID int64, limit int) ([]tweets.Tweet, error)
	ByHashtags(ctx context.Context, tags []string, limit int) ([]tweets.Tweet, error)
	Near(ctx context.Context, lon, lat float64, maxDistance int, limit int) ([]tweets.Tweet, error)
	InRange(ctx context.Context, start, end time.Time, limit int) ([]tweets.Tweet, error)
	Trending(ctx context.Context, n int) ([]tweets.Tweet, error)
}

// Geocoder：地名解析
type Geocoder interface {
	Lookup(ctx context.Context, query string) (geocode.Point, error)
}

// 查询类型，用于缓存键前缀与指标标签
const (
	KindUserInfo   = "user_info"
	KindUserTweets = "user_tweets"
	KindScreenName = "screen_name"
	KindTweet      = "tweet"
	KindKeyword    = "keyword"
	KindHashtags   = "hashtags"
	KindLocation   = "location"
	KindTimeRange  = "time_range"
	KindTopUsers   = "top_users"
	KindTrending   = "trending"
)

// Result：查询结果；Value 为 store.User、[]store.User、tweets.Tweet、[]tweets.Tweet、string 之一
// 约束：Value 可能与缓存共享，调用方只读
type Result struct {
	Kind   string
	Value  any
	Cached bool
}

// Service：查询编排服务；缓存由调用方构造并注入
type Service struct {
	users  Users
	tweets Tweets
	geo    Geocoder
	cache  *lru.Cache[any]
	now    func() time.Time
}

func NewService(users Users, tw Tweets, geo Geocoder, cache *lru.Cache[any]) *Service {
	return &Service{users: users, tweets: tw, geo: geo, cache: cache, now: time.Now}
}

// Search：按参数分派到具体查询；多于一个或缺少必选参数时返回参数错误
func (s *Service) Search(ctx context.Context, p Params) (*Result, error) {
	p.applyDefaults()
	if p.Top10Users == "no" && p.TrendingTweets == "no" {
		switch n := p.mandatoryCount(); {
		case n == 0:
			return nil, ErrNoParameters
		case n > 1:
			return nil, ErrTooManyParameters
		}
	}
	if p.Limit < 0 {
		return nil, badRequest("limit must be positive")
	}

	switch {
	case p.UsernameForUserInfo != "":
		return s.userInfo(ctx, p.UsernameForUserInfo)
	case p.UsernameTweets != "" || p.UserIDForTweets != "":
		return s.userTweets(ctx, p)
	case p.UserID != "":
		return s.screenName(ctx, p.UserID)
	case p.TweetID != "":
		return s.tweet(ctx, p.TweetID)
	case p.Keyword != "":
		return s.keyword(ctx, p)
	case p.Hashtags != "":
		return s.hashtags(ctx, p)
	case p.Location != "":
		return s.location(ctx, p)
	case p.TimeRange != "":
		return s.timeRange(ctx, p)
	case p.Top10Users != "no":
		return s.topUsers(ctx)
	default:
		return s.trending(ctx)
	}
}

// loader：回源加载；cacheable=false 时结果不写回缓存（如空结果提示语）
type loader func() (value any, cacheable bool, err error)

func (s *Service) cached(kind, key string, load loader) (*Result, error) {
	metrics.SearchRequestsTotal.WithLabelValues(kind).Inc()
	t0 := time.Now()
	defer func() {
		metrics.SearchDurationMs.WithLabelValues(kind).Observe(float64(time.Since(t0).Milliseconds()))
	}()

	if v, ok := s.cache.Get(key); ok {
		metrics.CacheHitsTotal.WithLabelValues(kind).Inc()
		logger.L().Debug("cache_hit", "kind", kind, "key", key)
		return &Result{Kind: kind, Value: v, Cached: true}, nil
	}
	metrics.CacheMissesTotal.WithLabelValues(kind).Inc()

	v, cacheable, err := load()
	if err != nil {
		return nil, err
	}
	if cacheable {
		s.cache.Put(key, v)
		metrics.CacheEntries.Set(float64(s.cache.Len()))
		logger.L().Debug("cache_put", "kind", kind, "key", key, "size", s.cache.Len())
	}
	return &Result{Kind: kind, Value: v}, nil
}

func (s *Service) userInfo(ctx context.Context, screenName string) (*Result, error) {
	key := cacheKey(KindUserInfo, "screen_name", screenName)
	return s.cached(KindUserInfo, key, func() (any, bool, error) {
		u, err := s.users.UserByScreenName(ctx, screenName)
		if err != nil {
			return nil, false, userErr(err)
		}
		return *u, true, nil
	})
}

func (s *Service) userTweets(ctx context.Context, p Params) (*Result, error) {
	if !validSort(p.SortCriterion) {
		return nil, ErrInvalidSortCriterion
	}
	var key string
	if p.UsernameTweets != "" {
		key = cacheKey(KindUserTweets, "limit", strconv.Itoa(p.Limit), "screen_name", p.UsernameTweets, "sort", p.SortCriterion)
	} else {
		key = cacheKey(KindUserTweets, "limit", strconv.Itoa(p.Limit), "user_id", p.UserIDForTweets, "sort", p.SortCriterion)
	}
	return s.cached(KindUserTweets, key, func() (any, bool, error) {
		var u *store.User
		var err error
		if p.UsernameTweets != "" {
			u, err = s.users.UserByScreenName(ctx, p.UsernameTweets)
		} else {
			id, perr := strconv.ParseInt(p.UserIDForTweets, 10, 64)
			if perr != nil {
				return nil, false, ErrUserNotFound
			}
			u, err = s.users.UserByID(ctx, id)
		}
		if err != nil {
			return nil, false, userErr(err)
		}
		list, err := s.tweets.ByUser(ctx, u.ID, p.Limit)
		return tweetList(list, err, p.SortCriterion, "This user has not tweeted anything yet.")
	})
}

func (s *Service) screenName(ctx context.Context, userID string) (*Result, error) {
	id, err := strconv.ParseInt(userID, 10, 64)
	if err != nil {
		return nil, ErrUserNotFound
	}
	key := cacheKey(KindScreenName, "user_id", strconv.FormatInt(id, 10))
	return s.cached(KindScreenName, key, func() (any, bool, error) {
		name, err := s.users.ScreenName(ctx, id)
		if err != nil {
			return nil, false, userErr(err)
		}
		return name, true, nil
	})
}

func (s *Service) tweet(ctx context.Context, id string) (*Result, error) {
	key := cacheKey(KindTweet, "id", id)
	return s.cached(KindTweet, key, func() (any, bool, error) {
		t, err := s.tweets.ByID(ctx, id)
		if errors.Is(err, tweets.ErrNotFound) {
			return nil, false, ErrTweetNotFound
		}
		if err != nil {
			return nil, false, fmt.Errorf("tweet %s: %w", id, err)
		}
		return *t, true, nil
	})
}

func (s *Service) keyword(ctx context.Context, p Params) (*Result, error) {
	if !validSort(p.SortCriterion) {
		return nil, ErrInvalidSortCriterion
	}
	key := cacheKey(KindKeyword, "limit", strconv.Itoa(p.Limit), "q", p.Keyword, "sort", p.SortCriterion)
	return s.cached(KindKeyword, key, func() (any, bool, error) {
		list, err := s.tweets.ByKeyword(ctx, p.Keyword, p.Limit)
		return tweetList(list, err, p.SortCriterion, "There are no tweets with this keyword.")
	})
}

func (s *Service) hashtags(ctx context.Context, p Params) (*Result, error) {
	if !validSort(p.SortCriterion) {
		return nil, ErrInvalidSortCriterion
	}
	key := cacheKey(KindHashtags, "limit", strconv.Itoa(p.Limit), "tags", p.Hashtags, "sort", p.SortCriterion)
	return s.cached(KindHashtags, key, func() (any, bool, error) {
		list, err := s.tweets.ByHashtags(ctx, strings.Fields(p.Hashtags), p.Limit)
		return tweetList(list, err, p.SortCriterion, "There are no tweets under this hashtag.")
	})
}

func (s *Service) location(ctx context.Context, p Params) (*Result, error) {
	if !validSort(p.SortCriterion) {
		return nil, ErrInvalidSortCriterion
	}
	if p.Distance <= 0 {
		return nil, ErrBadDistance
	}
	key := cacheKey(KindLocation, "limit", strconv.Itoa(p.Limit), "place", p.Location,
		"distance", strconv.Itoa(p.Distance), "sort", p.SortCriterion)
	return s.cached(KindLocation, key, func() (any, bool, error) {
		pt, err := s.geo.Lookup(ctx, p.Location)
		if errors.Is(err, geocode.ErrNoResult) {
			return nil, false, ErrBadDistance
		}
		if err != nil {
			return nil, false, fmt.Errorf("geocode %q: %w", p.Location, err)
		}
		list, err := s.tweets.Near(ctx, pt.Lon, pt.Lat, p.Distance, p.Limit)
		return tweetList(list, err, p.SortCriterion, "There are no tweets near this location yet.")
	})
}

// timeRange：回源时以请求时刻为窗口终点；键只含窗口、条数与排序，不含终点，命中时返回首次回源的结果直至被淘汰
func (s *Service) timeRange(ctx context.Context, p Params) (*Result, error) {
	if !validSort(p.SortCriterion) {
		return nil, ErrInvalidSortCriterion
	}
	now := s.now().UTC()
	start, ok := windowStart(p.TimeRange, now)
	if !ok {
		return nil, ErrInvalidTimeWindow
	}
	key := cacheKey(KindTimeRange, "limit", strconv.Itoa(p.Limit), "window", p.TimeRange, "sort", p.SortCriterion)
	return s.cached(KindTimeRange, key, func() (any, bool, error) {
		list, err := s.tweets.InRange(ctx, start, now, p.Limit)
		return tweetList(list, err, p.SortCriterion, "There are no tweets made in this time range.")
	})
}

func (s *Service) topUsers(ctx context.Context) (*Result, error) {
	key := cacheKey(KindTopUsers, "n", strconv.Itoa(topN))
	return s.cached(KindTopUsers, key, func() (any, bool, error) {
		users, err := s.users.TopByFollowers(ctx, topN)
		if err != nil {
			return nil, false, fmt.Errorf("top users: %w", err)
		}
		return users, true, nil
	})
}

func (s *Service) trending(ctx context.Context) (*Result, error) {
	key := cacheKey(KindTrending, "n", strconv.Itoa(topN))
	return s.cached(KindTrending, key, func() (any, bool, error) {
		list, err := s.tweets.Trending(ctx, topN)
		if err != nil {
			return nil, false, fmt.Errorf("trending: %w", err)
		}
		return list, true, nil
	})
}

func userErr(err error) error {
	if errors.Is(err, store.ErrNotFound) {
		return ErrUserNotFound
	}
	return fmt.Errorf("user lookup: %w", err)
}

// tweetList：排序后返回；空结果返回提示语且不写回缓存
func tweetList(list []tweets.Tweet, err error, criterion, emptyMsg string) (any, bool, error) {
	if err != nil {
		return nil, false, err
	}
	if len(list) == 0 {
		return emptyMsg, false, nil
	}
	SortTweets(list, criterion)
	return list, true, nil
}

// SortTweets：按排序方式原地稳定排序；popularity 为热度降序
func SortTweets(list []tweets.Tweet, criterion string) {
	switch criterion {
	case SortOldestToNewest:
		sort.SliceStable(list, func(i, j int) bool { return list[i].CreatedAt < list[j].CreatedAt })
	case SortNewestToOldest:
		sort.SliceStable(list, func(i, j int) bool { return list[i].CreatedAt > list[j].CreatedAt })
	default:
		sort.SliceStable(list, func(i, j int) bool { return list[i].TweetPop > list[j].TweetPop })
	}
}
