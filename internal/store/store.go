// 包 store：PostgreSQL 用户数据访问层
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"tweet-search/internal/logger"
	"tweet-search/internal/metrics"
)

// ErrNotFound：查询无匹配用户
var ErrNotFound = errors.New("user not found")

// User：用户资料
type User struct {
	ID             int64     `json:"id"`
	Name           string    `json:"name"`
	ScreenName     string    `json:"screen_name"`
	Location       string    `json:"location"`
	CreatedAt      time.Time `json:"created_at"`
	FollowersCount int64     `json:"followers_count"`
	FriendsCount   int64     `json:"friends_count"`
	StatusesCount  int64     `json:"statuses_count"`
	FavoritesCount int64     `json:"favorites_count"`
}

const userColumns = `id, name, screen_name, location, created_at, followers_count, friends_count, statuses_count, favorites_count`

// Store：数据库访问入口，持有连接池
type Store struct {
	db *sql.DB
}

func AttachDB(db *sql.DB) *Store { return &Store{db: db} }

func (s *Store) DB() *sql.DB { return s.db }

// Close：关闭数据库连接
func (s *Store) Close() error { return s.db.Close() }

type scanner interface {
	Scan(dest ...any) error
}

func scanUser(row scanner) (*User, error) {
	var u User
	err := row.Scan(&u.ID, &u.Name, &u.ScreenName, &u.Location, &u.CreatedAt,
		&u.FollowersCount, &u.FriendsCount, &u.StatusesCount, &u.FavoritesCount)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &u, nil
}

func observe(op string, t0 time.Time) {
	metrics.PostgresDurationMs.WithLabelValues(op).Observe(float64(time.Since(t0).Milliseconds()))
}

// UserByScreenName：按用户名查询
func (s *Store) UserByScreenName(ctx context.Context, screenName string) (*User, error) {
	defer observe("user_by_screen_name", time.Now())
	row := s.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM twitter_users WHERE screen_name=$1`, screenName)
	u, err := scanUser(row)
	if err != nil && !errors.Is(err, ErrNotFound) {
		return nil, fmt.Errorf("query user %q: %w", screenName, err)
	}
	logger.L().Debug("db_user_by_screen_name", "screen_name", screenName, "found", u != nil)
	return u, err
}

// UserByID：按用户 ID 查询
func (s *Store) UserByID(ctx context.Context, id int64) (*User, error) {
	defer observe("user_by_id", time.Now())
	row := s.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM twitter_users WHERE id=$1`, id)
	u, err := scanUser(row)
	if err != nil && !errors.Is(err, ErrNotFound) {
		return nil, fmt.Errorf("query user %d: %w", id, err)
	}
	return u, err
}

// ScreenName：按用户 ID 读取用户名
func (s *Store) ScreenName(ctx context.Context, id int64) (string, error) {
	defer observe("screen_name", time.Now())
	var name string
	err := s.db.QueryRowContext(ctx, `SELECT screen_name FROM twitter_users WHERE id=$1`, id).Scan(&name)
	if errors.Is(err, sql.ErrNoRows) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("query screen name %d: %w", id, err)
	}
	return name, nil
}

// TopByFollowers：粉丝数降序前 n 名
func (s *Store) TopByFollowers(ctx context.Context, n int) ([]User, error) {
	defer observe("top_by_followers", time.Now())
	rows, err := s.db.QueryContext(ctx, `SELECT `+userColumns+` FROM twitter_users ORDER BY followers_count DESC, id ASC LIMIT $1`, n)
	if err != nil {
		return nil, fmt.Errorf("query top users: %w", err)
	}
	defer rows.Close()
	out := make([]User, 0, n)
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("scan top users: %w", err)
		}
		out = append(out, *u)
	}
	return out, rows.Err()
}

// UpsertUser：写入或更新用户资料（导入工具使用）
func (s *Store) UpsertUser(ctx context.Context, u User) error {
	defer observe("upsert_user", time.Now())
	_, err := s.db.ExecContext(ctx, `INSERT INTO twitter_users(`+userColumns+`)
        VALUES($1,$2,$3,$4,$5,$6,$7,$8,$9)
        ON CONFLICT (id) DO UPDATE SET name=EXCLUDED.name, screen_name=EXCLUDED.screen_name, location=EXCLUDED.location,
            created_at=EXCLUDED.created_at, followers_count=EXCLUDED.followers_count, friends_count=EXCLUDED.friends_count,
            statuses_count=EXCLUDED.statuses_count, favorites_count=EXCLUDED.favorites_count`,
		u.ID, u.Name, u.ScreenName, u.Location, u.CreatedAt, u.FollowersCount, u.FriendsCount, u.StatusesCount, u.FavoritesCount)
	if err != nil {
		return fmt.Errorf("upsert user %d: %w", u.ID, err)
	}
	return nil
}
