package search

import (
	"net/url"
	"strconv"
	"strings"
	"time"
)

const (
	SortOldestToNewest = "oldestToNewest"
	SortNewestToOldest = "newestToOldest"
	SortPopularity     = "popularity"

	DefaultLimit    = 10
	MaxLimit        = 1000
	DefaultDistance = 100000
	topN            = 10
)

// Params：一次查询的参数；空串表示未指定
type Params struct {
	UsernameForUserInfo string
	UserIDForTweets     string
	UsernameTweets      string
	UserID              string
	TweetID             string
	Keyword             string
	Hashtags            string
	Location            string
	TimeRange           string
	SortCriterion       string
	Distance            int
	Top10Users          string
	TrendingTweets      string
	Limit               int
}

// timeWindows：时间窗口文本到回溯天数；all time 单独处理
var timeWindows = map[string]int{
	"1 week":   7,
	"1 month":  30,
	"3 months": 90,
	"6 months": 180,
	"1 year":   365,
	"5 years":  1825,
}

var epoch = time.Date(1900, 1, 1, 0, 0, 0, 0, time.UTC)

// windowStart：时间窗口起点；未知窗口返回 false
func windowStart(window string, now time.Time) (time.Time, bool) {
	if window == "all time" {
		return epoch, true
	}
	days, ok := timeWindows[window]
	if !ok {
		return time.Time{}, false
	}
	return now.AddDate(0, 0, -days), true
}

func validSort(s string) bool {
	return s == SortOldestToNewest || s == SortNewestToOldest || s == SortPopularity
}

// ParamsFromQuery：从查询串解析参数并补齐默认值
// 约束：limit/distance 非整数视为参数错误
func ParamsFromQuery(v url.Values) (Params, error) {
	get := func(k string) string { return strings.TrimSpace(v.Get(k)) }
	p := Params{
		UsernameForUserInfo: get("username_for_user_info"),
		UserIDForTweets:     get("user_id_for_tweets"),
		UsernameTweets:      get("username_tweets"),
		UserID:              get("user_id"),
		TweetID:             get("tweet_id"),
		Keyword:             get("keyword"),
		Hashtags:            get("hashtags"),
		Location:            get("location"),
		TimeRange:           get("time_range"),
		SortCriterion:       get("sort_criterion"),
		Top10Users:          get("top10users"),
		TrendingTweets:      get("trending_tweets"),
	}
	if s := get("limit"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil {
			return p, badRequest("limit must be an integer")
		}
		p.Limit = n
	}
	if s := get("distance"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil {
			return p, ErrBadDistance
		}
		p.Distance = n
	}
	p.applyDefaults()
	return p, nil
}

func (p *Params) applyDefaults() {
	if p.SortCriterion == "" {
		p.SortCriterion = SortPopularity
	}
	if p.Distance == 0 {
		p.Distance = DefaultDistance
	}
	if p.Top10Users == "" {
		p.Top10Users = "no"
	}
	if p.TrendingTweets == "" {
		p.TrendingTweets = "no"
	}
	if p.Limit == 0 {
		p.Limit = DefaultLimit
	}
	if p.Limit > MaxLimit {
		p.Limit = MaxLimit
	}
	p.Hashtags = strings.Join(strings.Fields(p.Hashtags), " ")
}

// mandatoryCount：必选查询参数中已指定的个数
func (p *Params) mandatoryCount() int {
	n := 0
	for _, s := range []string{p.UsernameForUserInfo, p.UserIDForTweets, p.UsernameTweets, p.UserID,
		p.TweetID, p.Keyword, p.Hashtags, p.Location, p.TimeRange} {
		if s != "" {
			n++
		}
	}
	return n
}

// cacheKey：由查询类型与规范化参数拼接的缓存键，形如 keyword|limit=10|q=covid|sort=popularity
// 约束：字段顺序固定，值经 QueryEscape，保证不同参数组合不会产生相同键
func cacheKey(kind string, kv ...string) string {
	var b strings.Builder
	b.WriteString(kind)
	for i := 0; i+1 < len(kv); i += 2 {
		b.WriteByte('|')
		b.WriteString(kv[i])
		b.WriteByte('=')
		b.WriteString(url.QueryEscape(kv[i+1]))
	}
	return b.String()
}
