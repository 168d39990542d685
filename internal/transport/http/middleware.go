package http

import (
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/GuilhermeSP01/Escola-da-Biblia/internal/auth"
	"github.com/GuilhermeSP01/Escola-da-Biblia/internal/domain"
	"github.com/GuilhermeSP01/Escola-da-Biblia/internal/metrics"
)

func accessLog(logger *zap.Logger, m *metrics.Metrics) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)

			latency := time.Since(start)
			status := ww.Status()
			if status == 0 {
				status = http.StatusOK
			}
			route := r.URL.Path
			if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
				route = rctx.RoutePattern()
			}
			m.ObserveHTTPRequest(r.Method, route, status, latency)

			fields := []zap.Field{
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", status),
				zap.Duration("latency", latency),
			}
			if reqID := middleware.GetReqID(r.Context()); reqID != "" {
				fields = append(fields, zap.String("request_id", reqID))
			}
			logger.Info("http_request", fields...)
		})
	}
}

// authenticate resolves the bearer token into an identity. Browsers cannot set
// headers on a WebSocket handshake, so access_token is also read from the query.
func (h *handler) authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := bearerToken(r)
		if token == "" {
			writeError(w, r, h.Logger, domain.ErrUnauthorized)
			return
		}
		identity, err := h.Tokens.Parse(token)
		if err != nil {
			writeError(w, r, h.Logger, err)
			return
		}
		admin, err := h.Admins.IsAdmin(r.Context(), identity.UserID)
		if err != nil {
			h.Logger.Error("admin lookup failed", zap.String("user_id", identity.UserID), zap.Error(err))
			writeError(w, r, h.Logger, domain.ErrStoreUnavailable)
			return
		}
		identity.Admin = admin
		next.ServeHTTP(w, r.WithContext(auth.WithIdentity(r.Context(), identity)))
	})
}

func requireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		identity, ok := auth.IdentityFrom(r.Context())
		if !ok {
			writeError(w, r, nil, domain.ErrUnauthorized)
			return
		}
		if !identity.Admin {
			writeError(w, r, nil, domain.ErrForbidden)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func bearerToken(r *http.Request) string {
	if h := r.Header.Get("Authorization"); strings.HasPrefix(h, "Bearer ") {
		return strings.TrimSpace(strings.TrimPrefix(h, "Bearer "))
	}
	return r.URL.Query().Get("access_token")
}

func identityOf(r *http.Request) domain.Identity {
	identity, _ := auth.IdentityFrom(r.Context())
	return identity
}
