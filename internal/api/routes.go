// 包 api：集中注册 HTTP 路由，主入口按 API_BASE 前缀挂载
package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"tweet-search/internal/logger"
	"tweet-search/internal/lru"
	"tweet-search/internal/metrics"
	"tweet-search/internal/search"
)

// cacheItem：缓存导出项
type cacheItem struct {
	Key   string `json:"key"`
	Value any    `json:"value"`
}

// cacheDump：/cache 返回结构，items 按最近使用到最久未使用排列
type cacheDump struct {
	Size     int         `json:"size"`
	Capacity int         `json:"capacity"`
	Items    []cacheItem `json:"items"`
}

// errorBody：错误返回结构 {"detail": {"error message": "..."}}
type errorBody struct {
	Detail map[string]string `json:"detail"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("content-type", "application/json; charset=utf-8")
	w.Header().Set("cache-control", "no-store")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := http.StatusInternalServerError
	msg := "Internal server error. Please try again later."
	var se *search.Error
	if errors.As(err, &se) {
		status, msg = se.Status, se.Message
	} else {
		logger.L().Error("search_error", "err", err, "path", r.URL.Path, "request_id", logger.RequestID(r.Context()))
	}
	metrics.SearchErrorsTotal.WithLabelValues(strconv.Itoa(status)).Inc()
	writeJSON(w, status, errorBody{Detail: map[string]string{"error message": msg}})
}

// BuildRoutes：构建 API 路由
// 约束：/searchapp/ 接受 GET 与 POST，参数取自查询串与表单；/cache 仅用于诊断导出
func BuildRoutes(svc *search.Service, cache *lru.Cache[any]) *http.ServeMux {
	mux := http.NewServeMux()

	mux.HandleFunc("/searchapp/", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet && r.Method != http.MethodPost {
			w.Header().Set("allow", "GET, POST")
			writeJSON(w, http.StatusMethodNotAllowed, errorBody{Detail: map[string]string{"error message": "Method not allowed."}})
			return
		}
		if err := r.ParseForm(); err != nil {
			writeJSON(w, http.StatusBadRequest, errorBody{Detail: map[string]string{"error message": "Malformed request."}})
			return
		}
		p, err := search.ParamsFromQuery(r.Form)
		if err != nil {
			writeError(w, r, err)
			return
		}
		res, err := svc.Search(r.Context(), p)
		if err != nil {
			writeError(w, r, err)
			return
		}
		if res.Cached {
			w.Header().Set("x-cache", "HIT")
		} else {
			w.Header().Set("x-cache", "MISS")
		}
		writeJSON(w, http.StatusOK, res.Value)
	})

	mux.HandleFunc("/cache", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			w.Header().Set("allow", "GET")
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		items := cache.Items()
		out := cacheDump{Size: len(items), Capacity: cache.Cap(), Items: make([]cacheItem, 0, len(items))}
		for _, it := range items {
			out.Items = append(out.Items, cacheItem{Key: it.Key, Value: it.Value})
		}
		writeJSON(w, http.StatusOK, out)
	})

	return mux
}
