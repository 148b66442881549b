package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"tweet-search/internal/geocode"
	"tweet-search/internal/lru"
	"tweet-search/internal/search"
	"tweet-search/internal/store"
	"tweet-search/internal/tweets"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubUsers struct{ err error }

func (s stubUsers) UserByScreenName(_ context.Context, name string) (*store.User, error) {
	if s.err != nil {
		return nil, s.err
	}
	if name != "alice" {
		return nil, store.ErrNotFound
	}
	return &store.User{ID: 1, ScreenName: "alice", FollowersCount: 3}, nil
}
func (s stubUsers) UserByID(ctx context.Context, id int64) (*store.User, error) {
	return s.UserByScreenName(ctx, map[int64]string{1: "alice"}[id])
}
func (s stubUsers) ScreenName(context.Context, int64) (string, error) { return "alice", nil }
func (s stubUsers) TopByFollowers(context.Context, int) ([]store.User, error) {
	return []store.User{{ID: 1, ScreenName: "alice"}}, nil
}

type stubTweets struct{}

func (stubTweets) ByID(context.Context, string) (*tweets.Tweet, error) { return nil, tweets.ErrNotFound }
func (stubTweets) ByKeyword(_ context.Context, kw string, _ int) ([]tweets.Tweet, error) {
	if kw == "none" {
		return nil, nil
	}
	return []tweets.Tweet{{ID: "7", Text: "hello " + kw, TweetPop: 2}}, nil
}
func (stubTweets) ByUser(context.Context, int64, int) ([]tweets.Tweet, error)       { return nil, nil }
func (stubTweets) ByHashtags(context.Context, []string, int) ([]tweets.Tweet, error) { return nil, nil }
func (stubTweets) Near(context.Context, float64, float64, int, int) ([]tweets.Tweet, error) {
	return nil, nil
}
func (stubTweets) InRange(context.Context, time.Time, time.Time, int) ([]tweets.Tweet, error) {
	return nil, nil
}
func (stubTweets) Trending(context.Context, int) ([]tweets.Tweet, error) { return nil, nil }

type stubGeo struct{}

func (stubGeo) Lookup(context.Context, string) (geocode.Point, error) { return geocode.Point{}, nil }

func newServer(t *testing.T, users stubUsers) (*httptest.Server, *lru.Cache[any]) {
	t.Helper()
	c, err := lru.New[any](2)
	require.NoError(t, err)
	svc := search.NewService(users, stubTweets{}, stubGeo{}, c)
	srv := httptest.NewServer(BuildRoutes(svc, c))
	t.Cleanup(srv.Close)
	return srv, c
}

func decodeError(t *testing.T, resp *http.Response) string {
	t.Helper()
	var body errorBody
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	return body.Detail["error message"]
}

func TestSearchApp_KeywordHitAndMiss(t *testing.T) {
	srv, _ := newServer(t, stubUsers{})

	resp, err := http.Post(srv.URL+"/searchapp/?keyword=go", "application/x-www-form-urlencoded", nil)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "MISS", resp.Header.Get("x-cache"))
	var list []tweets.Tweet
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&list))
	require.Len(t, list, 1)
	assert.Equal(t, "hello go", list[0].Text)

	resp2, err := http.Get(srv.URL + "/searchapp/?keyword=go")
	require.NoError(t, err)
	defer resp2.Body.Close()
	assert.Equal(t, "HIT", resp2.Header.Get("x-cache"))
}

func TestSearchApp_FormBody(t *testing.T) {
	srv, _ := newServer(t, stubUsers{})
	form := url.Values{"username_for_user_info": {"alice"}}
	resp, err := http.Post(srv.URL+"/searchapp/", "application/x-www-form-urlencoded", strings.NewReader(form.Encode()))
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	var u store.User
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&u))
	assert.Equal(t, "alice", u.ScreenName)
}

func TestSearchApp_Errors(t *testing.T) {
	tests := []struct {
		name   string
		users  stubUsers
		query  string
		status int
		msg    string
	}{
		{"no parameters", stubUsers{}, "", http.StatusBadRequest, search.ErrNoParameters.Message},
		{"too many", stubUsers{}, "?keyword=a&hashtags=b", http.StatusBadRequest, search.ErrTooManyParameters.Message},
		{"bad sort", stubUsers{}, "?keyword=a&sort_criterion=random", http.StatusBadRequest, search.ErrInvalidSortCriterion.Message},
		{"unknown user", stubUsers{}, "?username_for_user_info=zed", http.StatusNotFound, search.ErrUserNotFound.Message},
		{"unknown tweet", stubUsers{}, "?tweet_id=5", http.StatusNotFound, search.ErrTweetNotFound.Message},
		{"bad window", stubUsers{}, "?time_range=forever", http.StatusBadRequest, search.ErrInvalidTimeWindow.Message},
		{"backend down", stubUsers{err: errors.New("dial tcp")}, "?username_for_user_info=alice", http.StatusInternalServerError, "Internal server error. Please try again later."},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv, _ := newServer(t, tt.users)
			resp, err := http.Get(srv.URL + "/searchapp/" + tt.query)
			require.NoError(t, err)
			defer resp.Body.Close()
			assert.Equal(t, tt.status, resp.StatusCode)
			assert.Equal(t, tt.msg, decodeError(t, resp))
		})
	}
}

func TestSearchApp_EmptyMessage(t *testing.T) {
	srv, c := newServer(t, stubUsers{})
	resp, err := http.Get(srv.URL + "/searchapp/?keyword=none")
	require.NoError(t, err)
	defer resp.Body.Close()
	var msg string
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&msg))
	assert.Equal(t, "There are no tweets with this keyword.", msg)
	assert.Zero(t, c.Len())
}

func TestSearchApp_MethodNotAllowed(t *testing.T) {
	srv, _ := newServer(t, stubUsers{})
	req, _ := http.NewRequest(http.MethodDelete, srv.URL+"/searchapp/?keyword=go", nil)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)
}

func TestCacheDump(t *testing.T) {
	srv, c := newServer(t, stubUsers{})
	c.Put("a", 1)
	c.Put("b", []string{"x"})
	c.Put("c", "three")

	resp, err := http.Get(srv.URL + "/cache")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var dump struct {
		Size     int `json:"size"`
		Capacity int `json:"capacity"`
		Items    []struct {
			Key   string          `json:"key"`
			Value json.RawMessage `json:"value"`
		} `json:"items"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&dump))
	assert.Equal(t, 2, dump.Size)
	assert.Equal(t, 2, dump.Capacity)
	require.Len(t, dump.Items, 2)
	assert.Equal(t, "c", dump.Items[0].Key)
	assert.JSONEq(t, `"three"`, string(dump.Items[0].Value))
	assert.Equal(t, "b", dump.Items[1].Key)
	assert.JSONEq(t, `["x"]`, string(dump.Items[1].Value))
}
