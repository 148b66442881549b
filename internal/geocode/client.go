// 包 geocode：Nominatim 地名解析客户端，将地名转换为经纬度
package geocode

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"tweet-search/internal/logger"
	"tweet-search/internal/metrics"
)

// ErrNoResult：地名无匹配结果
var ErrNoResult = errors.New("geocode: no result")

// Point：WGS84 坐标
type Point struct {
	Lat float64
	Lon float64
}

// place：Nominatim search 返回项，lat/lon 为字符串
type place struct {
	Lat         string `json:"lat"`
	Lon         string `json:"lon"`
	DisplayName string `json:"display_name"`
}

// Client：Nominatim 客户端
// 约束：Nominatim 使用政策要求携带可识别的 User-Agent
type Client struct {
	base      string
	userAgent string
	http      *http.Client
}

// New：base 为服务根地址（如 https://nominatim.openstreetmap.org）；hc 为空时使用 5s 超时的默认客户端
func New(base, userAgent string, hc *http.Client) *Client {
	if hc == nil {
		hc = &http.Client{Timeout: 5 * time.Second}
	}
	return &Client{base: strings.TrimRight(base, "/"), userAgent: userAgent, http: hc}
}

// Lookup：解析地名，取第一条结果
func (c *Client) Lookup(ctx context.Context, query string) (Point, error) {
	q := url.Values{}
	q.Set("q", query)
	q.Set("format", "json")
	q.Set("limit", "1")
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.base+"/search?"+q.Encode(), nil)
	if err != nil {
		return Point{}, err
	}
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}
	req.Header.Set("Accept", "application/json")

	t0 := time.Now()
	metrics.GeocodeRequestsTotal.Inc()
	logger.L().Debug("geocode_req", "q", query)
	p, err := c.do(req)
	dur := time.Since(t0).Milliseconds()
	metrics.GeocodeDurationMs.Observe(float64(dur))
	if err != nil {
		metrics.GeocodeFailTotal.Inc()
		logger.L().Warn("geocode_error", "q", query, "err", err, "duration_ms", dur)
		return Point{}, err
	}
	logger.L().Debug("geocode_resp", "q", query, "lat", p.Lat, "lon", p.Lon, "duration_ms", dur)
	return p, nil
}

func (c *Client) do(req *http.Request) (Point, error) {
	resp, err := c.http.Do(req)
	if err != nil {
		return Point{}, fmt.Errorf("geocode request: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return Point{}, fmt.Errorf("geocode status %d", resp.StatusCode)
	}
	var places []place
	if err := json.NewDecoder(resp.Body).Decode(&places); err != nil {
		return Point{}, fmt.Errorf("geocode decode: %w", err)
	}
	if len(places) == 0 {
		return Point{}, ErrNoResult
	}
	lat, err := strconv.ParseFloat(places[0].Lat, 64)
	if err != nil {
		return Point{}, fmt.Errorf("geocode lat %q: %w", places[0].Lat, err)
	}
	lon, err := strconv.ParseFloat(places[0].Lon, 64)
	if err != nil {
		return Point{}, fmt.Errorf("geocode lon %q: %w", places[0].Lon, err)
	}
	return Point{Lat: lat, Lon: lon}, nil
}
