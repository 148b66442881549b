// 包 config：集中读取运行配置；来源优先级为 环境变量 > CONFIG_FILE 指向的 YAML > 默认值
package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config：进程配置
type Config struct {
	Addr    string `yaml:"addr"`
	APIBase string `yaml:"api_base"`

	Cache struct {
		Capacity int `yaml:"capacity"`
	} `yaml:"cache"`

	Postgres struct {
		Host         string `yaml:"host"`
		Port         int    `yaml:"port"`
		User         string `yaml:"user"`
		Password     string `yaml:"password"`
		DB           string `yaml:"db"`
		SSLMode      string `yaml:"sslmode"`
		MaxOpenConns int    `yaml:"max_open_conns"`
		MaxIdleConns int    `yaml:"max_idle_conns"`
	} `yaml:"postgres"`

	Mongo struct {
		URI        string        `yaml:"uri"`
		DB         string        `yaml:"db"`
		Collection string        `yaml:"collection"`
		Timeout    time.Duration `yaml:"timeout"`
	} `yaml:"mongo"`

	Nominatim struct {
		URL       string        `yaml:"url"`
		UserAgent string        `yaml:"user_agent"`
		Timeout   time.Duration `yaml:"timeout"`
	} `yaml:"nominatim"`

	Redis struct {
		Host string `yaml:"host"`
		Port string `yaml:"port"`
		Pass string `yaml:"pass"`
		DB   int    `yaml:"db"`
	} `yaml:"redis"`

	RateLimit struct {
		Enabled bool   `yaml:"enabled"`
		QPS     int    `yaml:"qps"`
		Backend string `yaml:"backend"`
	} `yaml:"rate_limit"`

	Log struct {
		Level  string `yaml:"level"`
		Format string `yaml:"format"`
	} `yaml:"log"`
}

// Default：默认配置；缓存容量 100
func Default() *Config {
	c := &Config{Addr: ":8080", APIBase: "/api"}
	c.Cache.Capacity = 100
	c.Postgres.Host = "localhost"
	c.Postgres.Port = 5432
	c.Postgres.User = "postgres"
	c.Postgres.DB = "twitter"
	c.Postgres.SSLMode = "disable"
	c.Postgres.MaxOpenConns = 50
	c.Postgres.MaxIdleConns = 25
	c.Mongo.URI = "mongodb://localhost:27017"
	c.Mongo.DB = "twitter"
	c.Mongo.Collection = "tweets"
	c.Mongo.Timeout = 5 * time.Second
	c.Nominatim.URL = "https://nominatim.openstreetmap.org"
	c.Nominatim.UserAgent = "tweet-search/1.0"
	c.Nominatim.Timeout = 5 * time.Second
	c.Redis.Host = "127.0.0.1"
	c.Redis.Port = "6379"
	c.RateLimit.QPS = 200
	c.RateLimit.Backend = "local"
	c.Log.Level = "info"
	return c
}

// Load：加载 .env、可选 YAML 文件与环境变量
func Load() (*Config, error) {
	_ = godotenv.Load(".env")
	_ = godotenv.Load(filepath.Join("data", "env", ".env"))
	c := Default()
	if p := os.Getenv("CONFIG_FILE"); p != "" {
		b, err := os.ReadFile(p)
		if err != nil {
			return nil, fmt.Errorf("read config file: %w", err)
		}
		if err := yaml.Unmarshal(b, c); err != nil {
			return nil, fmt.Errorf("parse config file %s: %w", p, err)
		}
	}
	if err := c.ApplyEnv(os.LookupEnv); err != nil {
		return nil, err
	}
	return c, c.Validate()
}

// ApplyEnv：以环境变量覆盖配置；lookup 便于测试注入
// 约束：数值解析失败视为配置错误，直接返回
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) error {
	str := func(key string, dst *string) {
		if v, ok := lookup(key); ok && v != "" {
			*dst = v
		}
	}
	num := func(key string, dst *int) error {
		v, ok := lookup(key)
		if !ok || v == "" {
			return nil
		}
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("env %s: %w", key, err)
		}
		*dst = n
		return nil
	}
	dur := func(key string, dst *time.Duration) error {
		v, ok := lookup(key)
		if !ok || v == "" {
			return nil
		}
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("env %s: %w", key, err)
		}
		*dst = d
		return nil
	}

	str("ADDR", &c.Addr)
	str("API_BASE", &c.APIBase)
	str("PG_HOST", &c.Postgres.Host)
	str("PG_USER", &c.Postgres.User)
	str("PG_PASSWORD", &c.Postgres.Password)
	str("PG_DB", &c.Postgres.DB)
	str("PG_SSLMODE", &c.Postgres.SSLMode)
	str("MONGO_URI", &c.Mongo.URI)
	str("MONGO_DB", &c.Mongo.DB)
	str("MONGO_COLLECTION", &c.Mongo.Collection)
	str("NOMINATIM_URL", &c.Nominatim.URL)
	str("NOMINATIM_USER_AGENT", &c.Nominatim.UserAgent)
	str("REDIS_HOST", &c.Redis.Host)
	str("REDIS_PORT", &c.Redis.Port)
	str("REDIS_PASS", &c.Redis.Pass)
	str("RATE_LIMIT_BACKEND", &c.RateLimit.Backend)
	str("LOG_LEVEL", &c.Log.Level)
	str("LOG_FORMAT", &c.Log.Format)
	if v, ok := lookup("RATE_LIMIT_ENABLED"); ok && v != "" {
		c.RateLimit.Enabled = v == "true"
	}

	for _, f := range []struct {
		key string
		dst *int
	}{
		{"CACHE_CAPACITY", &c.Cache.Capacity},
		{"PG_PORT", &c.Postgres.Port},
		{"PG_MAX_OPEN_CONNS", &c.Postgres.MaxOpenConns},
		{"PG_MAX_IDLE_CONNS", &c.Postgres.MaxIdleConns},
		{"REDIS_DB", &c.Redis.DB},
		{"RATE_LIMIT_QPS", &c.RateLimit.QPS},
	} {
		if err := num(f.key, f.dst); err != nil {
			return err
		}
	}
	if err := dur("MONGO_TIMEOUT", &c.Mongo.Timeout); err != nil {
		return err
	}
	return dur("NOMINATIM_TIMEOUT", &c.Nominatim.Timeout)
}

// Validate：启动前校验；缓存容量必须为正
func (c *Config) Validate() error {
	if c.Cache.Capacity <= 0 {
		return fmt.Errorf("cache capacity must be positive, got %d", c.Cache.Capacity)
	}
	if c.RateLimit.Enabled && c.RateLimit.QPS <= 0 {
		return fmt.Errorf("rate limit qps must be positive, got %d", c.RateLimit.QPS)
	}
	switch c.RateLimit.Backend {
	case "local", "redis":
	default:
		return fmt.Errorf("unknown rate limit backend %q", c.RateLimit.Backend)
	}
	return nil
}

// PostgresDSN：拼接 lib/pq 连接串
func (c *Config) PostgresDSN() string {
	u := url.URL{
		Scheme:   "postgres",
		Host:     c.Postgres.Host + ":" + strconv.Itoa(c.Postgres.Port),
		Path:     "/" + c.Postgres.DB,
		RawQuery: "sslmode=" + url.QueryEscape(c.Postgres.SSLMode),
	}
	if c.Postgres.Password != "" {
		u.User = url.UserPassword(c.Postgres.User, c.Postgres.Password)
	} else {
		u.User = url.User(c.Postgres.User)
	}
	return u.String()
}

// RedisAddr：host:port
func (c *Config) RedisAddr() string { return c.Redis.Host + ":" + c.Redis.Port }
