package middleware

import (
	"net/http"
	"slices"
	"strings"

	"github.com/gorilla/mux"
)

const (
	corsAllowHeaders = "Content-Type, Authorization, X-Request-ID"
	corsMaxAge       = "600"
)

// CORSMiddleware answers preflight requests with 204 and adds CORS headers for allowed origins.
// An empty origin list or "*" allows every origin. Allowed methods come from the matched
// route through mux.CORSMethodMiddleware, so routes must register OPTIONS.
func CORSMiddleware(router *mux.Router, allowedOrigins []string) mux.MiddlewareFunc {
	methods := mux.CORSMethodMiddleware(router)
	allowAll := len(allowedOrigins) == 0 || slices.Contains(allowedOrigins, "*")

	return func(next http.Handler) http.Handler {
		return methods(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			origin := r.Header.Get("Origin")
			switch {
			case allowAll:
				w.Header().Set("Access-Control-Allow-Origin", "*")
			case origin != "" && originAllowed(origin, allowedOrigins):
				w.Header().Set("Access-Control-Allow-Origin", origin)
				w.Header().Add("Vary", "Origin")
			}

			if r.Method == http.MethodOptions {
				w.Header().Set("Access-Control-Allow-Headers", corsAllowHeaders)
				w.Header().Set("Access-Control-Max-Age", corsMaxAge)
				w.WriteHeader(http.StatusNoContent)
				return
			}
			next.ServeHTTP(w, r)
		}))
	}
}

func originAllowed(origin string, allowed []string) bool {
	for _, a := range allowed {
		if strings.EqualFold(strings.TrimRight(a, "/"), origin) {
			return true
		}
	}
	return false
}
