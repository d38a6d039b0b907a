package interceptors

import (
	"net"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/Gift-Esethu/Ussd-Server/internal/audit"
)

// ClientIP returns middleware that stores the caller's IP in the context for the audit logger.
func ClientIP(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		next.ServeHTTP(w, r.WithContext(audit.WithClientIP(r.Context(), RequestIP(r))))
	})
}

// RequestIP returns the client IP from X-Forwarded-For, X-Real-IP or RemoteAddr, or "unknown".
func RequestIP(r *http.Request) string {
	if s := strings.TrimSpace(r.Header.Get("X-Forwarded-For")); s != "" {
		if i := strings.Index(s, ","); i > 0 {
			s = strings.TrimSpace(s[:i])
		}
		return s
	}
	if s := strings.TrimSpace(r.Header.Get("X-Real-IP")); s != "" {
		return s
	}
	if r.RemoteAddr != "" {
		if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
			return host
		}
		return r.RemoteAddr
	}
	return "unknown"
}

// Audit returns middleware that records one audit entry per request after it completes.
// Action and resource come from the matched route; the actor is the admin subject when set.
// Best-effort: the logger never fails the request. A nil logger disables the middleware.
func Audit(logger audit.AuditLogger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if logger == nil {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := chimiddleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)

			path := r.URL.Path
			if rctx := chi.RouteContext(r.Context()); rctx != nil {
				if p := rctx.RoutePattern(); p != "" {
					path = p
				}
			}
			ar := audit.ParseRoute(r.Method, path)
			actor, _ := GetAdmin(r.Context())
			if actor == "" {
				actor = "anonymous"
			}
			status := ww.Status()
			if status == 0 {
				status = http.StatusOK
			}
			logger.LogEvent(r.Context(), actor, ar.Action, ar.Resource, "status="+strconv.Itoa(status))
		})
	}
}
