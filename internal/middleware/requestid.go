// 包 middleware：请求 ID 注入与入口限流
package middleware

import (
	"net/http"

	"tweet-search/internal/logger"

	"github.com/google/uuid"
)

// HeaderRequestID：请求 ID 头；上游已携带时沿用，否则生成 UUID
const HeaderRequestID = "X-Request-ID"

// RequestID：注入请求 ID 到上下文并回写响应头
func RequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(HeaderRequestID)
		if id == "" || len(id) > 128 {
			id = uuid.NewString()
		}
		w.Header().Set(HeaderRequestID, id)
		next.ServeHTTP(w, r.WithContext(logger.WithRequestID(r.Context(), id)))
	})
}
