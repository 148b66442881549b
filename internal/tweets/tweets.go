// 包 tweets：MongoDB 推文数据访问层（关键词全文检索、话题、地理邻近、时间窗口、热门）
package tweets

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"tweet-search/internal/logger"
	"tweet-search/internal/metrics"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// ErrNotFound：推文不存在
var ErrNotFound = errors.New("tweet not found")

// GeoPoint：GeoJSON 点，Coordinates 为 [经度, 纬度]
type GeoPoint struct {
	Type        string    `bson:"type" json:"type"`
	Coordinates []float64 `bson:"coordinates" json:"coordinates"`
}

// Tweet：对外返回的推文
// 约束：CreatedAt 为 Unix 秒；Retweet 仅在转推时为 "Yes"
type Tweet struct {
	ID          string    `json:"id"`
	Text        string    `json:"text"`
	UserID      int64     `json:"user_id"`
	TweetPop    int64     `json:"tweet_pop"`
	CreatedAt   float64   `json:"created_at"`
	Retweet     string    `json:"retweet,omitempty"`
	Coordinates *GeoPoint `json:"coordinates,omitempty"`
}

// document：集合中的文档结构
type document struct {
	ID              any           `bson:"_id"`
	Text            string        `bson:"text"`
	UserID          int64         `bson:"user_id"`
	TweetPop        int64         `bson:"tweet_pop"`
	Timestamp       float64       `bson:"timestamp"`
	Hashtags        []string      `bson:"hashtags,omitempty"`
	Coordinates     *GeoPoint     `bson:"coordinates,omitempty"`
	Retweet         bson.RawValue `bson:"retweet,omitempty"`
	RetweetedStatus bson.RawValue `bson:"retweeted_status,omitempty"`
}

func present(v bson.RawValue) bool {
	return v.Type != 0 && v.Type != bson.TypeNull && !(v.Type == bson.TypeBoolean && !v.Boolean())
}

func (d document) tweet() Tweet {
	t := Tweet{
		ID:          formatID(d.ID),
		Text:        d.Text,
		UserID:      d.UserID,
		TweetPop:    d.TweetPop,
		CreatedAt:   d.Timestamp,
		Coordinates: d.Coordinates,
	}
	if present(d.Retweet) || present(d.RetweetedStatus) {
		t.Retweet = "Yes"
	}
	return t
}

func formatID(id any) string {
	switch v := id.(type) {
	case primitive.ObjectID:
		return v.Hex()
	case string:
		return v
	case nil:
		return ""
	default:
		return fmt.Sprint(v)
	}
}

// idFilter：数字 ID 按 int64 匹配，24 位十六进制按 ObjectID，其余按字符串
func idFilter(id string) bson.M {
	if n, err := strconv.ParseInt(id, 10, 64); err == nil {
		return bson.M{"_id": n}
	}
	if oid, err := primitive.ObjectIDFromHex(id); err == nil {
		return bson.M{"_id": oid}
	}
	return bson.M{"_id": id}
}

func keywordFilter(keyword string) bson.M {
	return bson.M{"$text": bson.M{"$search": keyword}}
}

func userFilter(userID int64) bson.M {
	return bson.M{"user_id": userID}
}

func hashtagFilter(tags []string) bson.M {
	return bson.M{"hashtags": bson.M{"$in": tags}}
}

func nearFilter(lon, lat float64, maxDistance int) bson.M {
	return bson.M{"coordinates": bson.M{"$near": bson.M{
		"$geometry":    bson.M{"type": "Point", "coordinates": bson.A{lon, lat}},
		"$maxDistance": maxDistance,
	}}}
}

func rangeFilter(start, end time.Time) bson.M {
	return bson.M{"timestamp": bson.M{
		"$gte": float64(start.Unix()),
		"$lt":  float64(end.Unix()),
	}}
}

func trendingPipeline(n int) mongo.Pipeline {
	return mongo.Pipeline{
		{{Key: "$sort", Value: bson.D{{Key: "tweet_pop", Value: -1}}}},
		{{Key: "$limit", Value: n}},
	}
}

// Repository：推文集合访问入口
type Repository struct {
	coll *mongo.Collection
}

func New(coll *mongo.Collection) *Repository { return &Repository{coll: coll} }

// EnsureIndexes：创建 text 全文索引与 2dsphere 地理索引
func (r *Repository) EnsureIndexes(ctx context.Context) error {
	_, err := r.coll.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "text", Value: "text"}}},
		{Keys: bson.D{{Key: "coordinates", Value: "2dsphere"}}},
		{Keys: bson.D{{Key: "user_id", Value: 1}}},
		{Keys: bson.D{{Key: "timestamp", Value: 1}}},
	})
	if err != nil {
		return fmt.Errorf("create tweet indexes: %w", err)
	}
	logger.L().Debug("mongo_indexes_ok", "collection", r.coll.Name())
	return nil
}

func (r *Repository) find(ctx context.Context, op string, filter bson.M, limit int) ([]Tweet, error) {
	t0 := time.Now()
	defer func() {
		metrics.MongoDurationMs.WithLabelValues(op).Observe(float64(time.Since(t0).Milliseconds()))
	}()
	opts := options.Find()
	if limit > 0 {
		opts.SetLimit(int64(limit))
	}
	cur, err := r.coll.Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("mongo %s: %w", op, err)
	}
	return decodeAll(ctx, op, cur)
}

func decodeAll(ctx context.Context, op string, cur *mongo.Cursor) ([]Tweet, error) {
	defer cur.Close(ctx)
	out := []Tweet{}
	for cur.Next(ctx) {
		var d document
		if err := cur.Decode(&d); err != nil {
			return nil, fmt.Errorf("mongo %s decode: %w", op, err)
		}
		out = append(out, d.tweet())
	}
	if err := cur.Err(); err != nil {
		return nil, fmt.Errorf("mongo %s cursor: %w", op, err)
	}
	logger.L().Debug("mongo_find_done", "op", op, "count", len(out))
	return out, nil
}

// ByID：按推文 ID 查询；不存在返回 ErrNotFound
func (r *Repository) ByID(ctx context.Context, id string) (*Tweet, error) {
	t0 := time.Now()
	defer func() {
		metrics.MongoDurationMs.WithLabelValues("by_id").Observe(float64(time.Since(t0).Milliseconds()))
	}()
	var d document
	err := r.coll.FindOne(ctx, idFilter(id)).Decode(&d)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("mongo by_id %s: %w", id, err)
	}
	t := d.tweet()
	return &t, nil
}

// ByKeyword：全文检索
func (r *Repository) ByKeyword(ctx context.Context, keyword string, limit int) ([]Tweet, error) {
	return r.find(ctx, "by_keyword", keywordFilter(keyword), limit)
}

// ByUser：按作者
func (r *Repository) ByUser(ctx context.Context, userID int64, limit int) ([]Tweet, error) {
	return r.find(ctx, "by_user", userFilter(userID), limit)
}

// ByHashtags：命中任一话题
func (r *Repository) ByHashtags(ctx context.Context, tags []string, limit int) ([]Tweet, error) {
	return r.find(ctx, "by_hashtags", hashtagFilter(tags), limit)
}

// Near：距 (lon, lat) maxDistance 米以内，按距离由近到远
func (r *Repository) Near(ctx context.Context, lon, lat float64, maxDistance int, limit int) ([]Tweet, error) {
	return r.find(ctx, "near", nearFilter(lon, lat, maxDistance), limit)
}

// InRange：时间窗口 [start, end)
func (r *Repository) InRange(ctx context.Context, start, end time.Time, limit int) ([]Tweet, error) {
	return r.find(ctx, "in_range", rangeFilter(start, end), limit)
}

// Trending：热度最高的 n 条
func (r *Repository) Trending(ctx context.Context, n int) ([]Tweet, error) {
	t0 := time.Now()
	defer func() {
		metrics.MongoDurationMs.WithLabelValues("trending").Observe(float64(time.Since(t0).Milliseconds()))
	}()
	cur, err := r.coll.Aggregate(ctx, trendingPipeline(n))
	if err != nil {
		return nil, fmt.Errorf("mongo trending: %w", err)
	}
	return decodeAll(ctx, "trending", cur)
}
