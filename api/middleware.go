package api

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"
	"github.com/warp/crm-engine/crm"
	"github.com/warp/crm-engine/visibility"
)

// UserHeader carries the acting user's ID. It is set by the authenticating
// proxy in front of the service and trusted as-is.
const UserHeader = "X-User-ID"

type ctxKey int

const userKey ctxKey = iota

// CurrentUser returns the acting user loaded by the identity middleware.
func CurrentUser(ctx context.Context) (crm.User, bool) {
	u, ok := ctx.Value(userKey).(crm.User)
	return u, ok
}

// identify loads the user named by UserHeader. Requests without the header
// pass through anonymous; an unknown user is rejected.
func (h *Handler) identify(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := strings.TrimSpace(r.Header.Get(UserHeader))
		if id == "" {
			next.ServeHTTP(w, r)
			return
		}

		u, err := h.Store.GetUser(r.Context(), id)
		if crm.IsNotFound(err) {
			writeError(w, http.StatusUnauthorized, "Unknown user", nil)
			return
		}
		if err != nil {
			h.writeStoreError(w, r, "user", err)
			return
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), userKey, u)))
	})
}

func requireUser(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, ok := CurrentUser(r.Context()); !ok {
			writeError(w, http.StatusUnauthorized, "Missing "+UserHeader+" header", nil)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func requireAccess(min visibility.AccessLevel) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			u, ok := CurrentUser(r.Context())
			if !ok {
				writeError(w, http.StatusUnauthorized, "Missing "+UserHeader+" header", nil)
				return
			}
			if !u.Access().AtLeast(min) {
				writeError(w, http.StatusForbidden, "Requires "+min.String()+" access", nil)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// requestLogger logs one line per request through zerolog.
func requestLogger(logger zerolog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()
			defer func() {
				logger.Info().
					Str("request_id", requestID(r)).
					Str("method", r.Method).
					Str("path", r.URL.Path).
					Int("status", ww.Status()).
					Int("bytes", ww.BytesWritten()).
					Dur("took", time.Since(start)).
					Msg("request")
			}()
			next.ServeHTTP(ww, r)
		})
	}
}

func requestID(r *http.Request) string {
	return middleware.GetReqID(r.Context())
}
