package api

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"runtime/debug"
	"time"

	"github.com/google/uuid"

	"github.com/cirocosta/todorest/internal/auth"
	"github.com/cirocosta/todorest/internal/identity"
	"github.com/cirocosta/todorest/pkg/router"
)

// RequestIDHeader carries the request id in both directions
const RequestIDHeader = "X-Request-ID"

type requestIDKey struct{}

// RequestID returns the id assigned to the request ctx belongs to
func RequestID(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey{}).(string)
	return id
}

type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

// WriteHeader captures the status code before writing it
func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// requestIDMiddleware reuses the caller's X-Request-ID or generates one
func requestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(RequestIDHeader)
		if id == "" || len(id) > 128 {
			id = uuid.NewString()
		}

		w.Header().Set(RequestIDHeader, id)
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), requestIDKey{}, id)))
	})
}

// loggerMiddleware logs the incoming HTTP request and response
func loggerMiddleware(logger *slog.Logger) router.Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			// wrap the response writer to capture the status code
			ww := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}

			next.ServeHTTP(ww, r)

			logger.Info("http request",
				"method", r.Method,
				"path", r.URL.Path,
				"status", ww.statusCode,
				"duration", time.Since(start).String(),
				"request_id", RequestID(r.Context()),
				"user_agent", r.UserAgent(),
			)
		})
	}
}

// recovererMiddleware recovers from panics and logs the error
func recovererMiddleware(logger *slog.Logger) router.Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if err := recover(); err != nil {
					if err == http.ErrAbortHandler {
						panic(err)
					}

					logger.Error("recovered from panic",
						"error", fmt.Sprintf("%v", err),
						"stack", string(debug.Stack()),
						"method", r.Method,
						"path", r.URL.Path,
						"request_id", RequestID(r.Context()),
					)

					writeError(w, "internal server error", http.StatusInternalServerError)
				}
			}()

			next.ServeHTTP(w, r)
		})
	}
}

// identityHandler is a handler that runs on behalf of an authenticated identity
type identityHandler func(w http.ResponseWriter, r *http.Request, who identity.Identity)

// authenticated resolves the bearer credential before calling next. Requests
// without a valid credential get a 401 and never reach next.
func (api *API) authenticated(next identityHandler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		who, err := api.authenticator.Authenticate(r.Context(), auth.FromHeader(r.Header))
		if err != nil || who.IsZero() {
			if err != nil && !errors.Is(err, auth.ErrUnauthenticated) {
				api.logger.Error("authenticate request",
					"error", err,
					"request_id", RequestID(r.Context()),
				)
			}

			w.Header().Set("WWW-Authenticate", `Bearer realm="todorest"`)
			writeError(w, "authentication credentials were not provided or are invalid", http.StatusUnauthorized)
			return
		}

		next(w, r, who)
	}
}
