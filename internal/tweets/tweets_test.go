package tweets

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

func decode(t *testing.T, m bson.M) Tweet {
	t.Helper()
	raw, err := bson.Marshal(m)
	require.NoError(t, err)
	var d document
	require.NoError(t, bson.Unmarshal(raw, &d))
	return d.tweet()
}

func TestDocumentToTweet(t *testing.T) {
	tw := decode(t, bson.M{
		"_id":       int64(1249403427305267200),
		"text":      "stay home",
		"user_id":   int32(42),
		"tweet_pop": int64(17),
		"timestamp": int64(1586563200),
		"coordinates": bson.M{
			"type":        "Point",
			"coordinates": bson.A{-74.0, 40.7},
		},
		"retweeted_status": bson.M{"id": 1},
	})
	assert.Equal(t, "1249403427305267200", tw.ID)
	assert.Equal(t, int64(42), tw.UserID)
	assert.Equal(t, int64(17), tw.TweetPop)
	assert.Equal(t, float64(1586563200), tw.CreatedAt)
	assert.Equal(t, "Yes", tw.Retweet)
	require.NotNil(t, tw.Coordinates)
	assert.Equal(t, []float64{-74.0, 40.7}, tw.Coordinates.Coordinates)
}

func TestDocumentToTweet_PlainTweet(t *testing.T) {
	tw := decode(t, bson.M{"_id": "abc", "text": "hi", "retweet": false})
	assert.Equal(t, "abc", tw.ID)
	assert.Empty(t, tw.Retweet)
	assert.Nil(t, tw.Coordinates)

	oid := primitive.NewObjectID()
	tw = decode(t, bson.M{"_id": oid, "text": "x", "retweet": true})
	assert.Equal(t, oid.Hex(), tw.ID)
	assert.Equal(t, "Yes", tw.Retweet)
}

func TestIDFilter(t *testing.T) {
	assert.Equal(t, bson.M{"_id": int64(123)}, idFilter("123"))
	oid := primitive.NewObjectID()
	assert.Equal(t, bson.M{"_id": oid}, idFilter(oid.Hex()))
	assert.Equal(t, bson.M{"_id": "tw-9"}, idFilter("tw-9"))
}

func TestFilters(t *testing.T) {
	assert.Equal(t, bson.M{"$text": bson.M{"$search": "covid vaccine"}}, keywordFilter("covid vaccine"))
	assert.Equal(t, bson.M{"user_id": int64(7)}, userFilter(7))
	assert.Equal(t, bson.M{"hashtags": bson.M{"$in": []string{"a", "b"}}}, hashtagFilter([]string{"a", "b"}))

	near := nearFilter(-0.12, 51.5, 1000)
	geo := near["coordinates"].(bson.M)["$near"].(bson.M)
	assert.Equal(t, 1000, geo["$maxDistance"])
	assert.Equal(t, bson.A{-0.12, 51.5}, geo["$geometry"].(bson.M)["coordinates"])

	start := time.Unix(1000, 0)
	end := time.Unix(2000, 0)
	assert.Equal(t, bson.M{"timestamp": bson.M{"$gte": float64(1000), "$lt": float64(2000)}}, rangeFilter(start, end))
}

func TestTrendingPipeline(t *testing.T) {
	p := trendingPipeline(10)
	require.Len(t, p, 2)
	assert.Equal(t, "$sort", p[0][0].Key)
	assert.Equal(t, bson.D{{Key: "tweet_pop", Value: -1}}, p[0][0].Value)
	assert.Equal(t, "$limit", p[1][0].Key)
	assert.Equal(t, 10, p[1][0].Value)
}
