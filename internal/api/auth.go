package api

import (
	"crypto/subtle"
	"net"
	"net/http"
	"strings"

	"ionic/internal/observability"
)

// tokenAuth guards admin routes. With a token configured, requests must
// carry it as "Authorization: Bearer <token>" or, for browsers opening the
// console socket, a token query parameter. Without one, only loopback
// peers are admitted.
func tokenAuth(token string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if authorized(r, token) {
				next.ServeHTTP(w, r)
				return
			}
			observability.RecordConnectionRejected("auth")
			if token != "" {
				w.Header().Set("WWW-Authenticate", `Bearer realm="ionic"`)
			}
			writeError(w, "unauthorized", http.StatusUnauthorized)
		})
	}
}

func authorized(r *http.Request, token string) bool {
	if token == "" {
		ip := net.ParseIP(remoteHost(r))
		return ip != nil && ip.IsLoopback()
	}
	got := r.URL.Query().Get("token")
	if h := r.Header.Get("Authorization"); h != "" {
		scheme, value, ok := strings.Cut(h, " ")
		if !ok || !strings.EqualFold(scheme, "Bearer") {
			return false
		}
		got = strings.TrimSpace(value)
	}
	return subtle.ConstantTimeCompare([]byte(got), []byte(token)) == 1
}
