package middleware

import (
	"net/http"
	"strings"
)

// APIPrefix rewrites /api-prefixed paths onto the bare routes so
// clients behind a shared frontend proxy and direct callers hit the
// same handlers. "/api" and "/api/assets" both route as if the prefix
// were absent.
func APIPrefix(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/api" {
			r.URL.Path = "/"
		} else if strings.HasPrefix(r.URL.Path, "/api/") {
			r.URL.Path = strings.TrimPrefix(r.URL.Path, "/api")
			if r.URL.Path == "" {
				r.URL.Path = "/"
			}
		}
		next.ServeHTTP(w, r)
	})
}
