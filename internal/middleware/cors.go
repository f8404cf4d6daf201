package middleware

import (
	"net/http"
	"strings"
)

// NewCORSMiddleware はCORSミドルウェアを返す。allowedOriginsはカンマ区切りで複数指定できる。
// リクエストのOriginが許可リストにあればそのOriginを返し、なければAllow-Originを付けない。
// Originヘッダーのないリクエスト（curl等）には先頭のオリジンを返す。
// 認証はAuthorizationヘッダーで行うため、Cookieの送信は許可しない。
// OPTIONSプリフライトリクエストには204で応答する。
func NewCORSMiddleware(allowedOrigins string) func(next http.Handler) http.Handler {
	origins := parseOrigins(allowedOrigins)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			h := w.Header()
			h.Add("Vary", "Origin")

			if origin, ok := matchOrigin(origins, r.Header.Get("Origin")); ok {
				h.Set("Access-Control-Allow-Origin", origin)
				h.Set("Access-Control-Allow-Methods", "GET, POST, PUT, PATCH, DELETE, OPTIONS")
				h.Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
				h.Set("Access-Control-Max-Age", "86400")
			}

			if r.Method == http.MethodOptions {
				w.WriteHeader(http.StatusNoContent)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

func parseOrigins(s string) []string {
	var origins []string
	for _, o := range strings.Split(s, ",") {
		if o = strings.TrimRight(strings.TrimSpace(o), "/"); o != "" {
			origins = append(origins, o)
		}
	}
	return origins
}

func matchOrigin(origins []string, requested string) (string, bool) {
	if len(origins) == 0 {
		return "", false
	}
	if requested == "" {
		return origins[0], true
	}
	for _, o := range origins {
		if o == "*" || strings.EqualFold(o, requested) {
			return requested, true
		}
	}
	return "", false
}
