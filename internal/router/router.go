package router

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/PrathmeshKudale/krishi-mitra/internal/assistant"
	"github.com/PrathmeshKudale/krishi-mitra/internal/content"
	"github.com/PrathmeshKudale/krishi-mitra/internal/media"
	"github.com/PrathmeshKudale/krishi-mitra/internal/session"
	"github.com/PrathmeshKudale/krishi-mitra/internal/user"
)

const requestIDHeader = "X-Request-ID"

// loggingResponseWriter wraps http.ResponseWriter to capture status and size.
type loggingResponseWriter struct {
	http.ResponseWriter
	status int
	size   int
}

func (lrw *loggingResponseWriter) WriteHeader(code int) {
	lrw.status = code
	lrw.ResponseWriter.WriteHeader(code)
}

func (lrw *loggingResponseWriter) Write(b []byte) (int, error) {
	if lrw.status == 0 {
		lrw.status = http.StatusOK
	}
	n, err := lrw.ResponseWriter.Write(b)
	lrw.size += n
	return n, err
}

// LoggingMiddleware tags each request with an id (reusing X-Request-ID when
// the client sends one) and logs it at debug level.
func LoggingMiddleware(logger *zap.SugaredLogger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			reqID := r.Header.Get(requestIDHeader)
			if reqID == "" {
				reqID = uuid.NewString()
			}
			w.Header().Set(requestIDHeader, reqID)

			lrw := &loggingResponseWriter{ResponseWriter: w}
			next.ServeHTTP(lrw, r)
			status := lrw.status
			if status == 0 {
				status = http.StatusOK
			}
			logger.Debugw("http request",
				"request_id", reqID,
				"method", r.Method,
				"path", r.URL.Path,
				"remote", r.RemoteAddr,
				"status", status,
				"duration_ms", float64(time.Since(start).Microseconds())/1000.0,
				"size", lrw.size,
			)
		})
	}
}

// SecurityHeadersMiddleware sets common HTTP security headers.
func SecurityHeadersMiddleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("X-Content-Type-Options", "nosniff")
			w.Header().Set("X-Frame-Options", "DENY")
			w.Header().Set("Referrer-Policy", "no-referrer-when-downgrade")
			// camera stays available for crop photos taken in the browser
			w.Header().Set("Permissions-Policy", "microphone=(), geolocation=()")
			if w.Header().Get("Content-Security-Policy") == "" {
				w.Header().Set("Content-Security-Policy", "default-src 'self'; object-src 'none'; base-uri 'self';")
			}
			if r.TLS != nil {
				w.Header().Set("Strict-Transport-Security", "max-age=2592000; includeSubDomains")
			}
			next.ServeHTTP(w, r)
		})
	}
}

// Deps are the services the routes are wired to.
type Deps struct {
	Logger   *zap.SugaredLogger
	Users    *user.UserService
	Content  *content.Service
	Media    *media.Intake
	AI       *assistant.Gateway
	Sessions *session.Service
	// Ping reports storage health for /api/health. Nil means always healthy.
	Ping func(context.Context) error
}

// RegisterRoutes mounts the API on an http.ServeMux and wraps it with the
// security header and logging middleware.
func RegisterRoutes(d Deps) http.Handler {
	mux := http.NewServeMux()
	logger := d.Logger
	authed := session.RequireSession(d.Sessions, logger)
	protect := func(h http.HandlerFunc) http.Handler { return authed(h) }

	mux.HandleFunc("GET /api/health", func(w http.ResponseWriter, r *http.Request) {
		status, body := http.StatusOK, map[string]string{"status": "ok"}
		if d.Ping != nil {
			ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
			defer cancel()
			if err := d.Ping(ctx); err != nil {
				logger.Warnw("health check failed", "err", err)
				status, body = http.StatusServiceUnavailable, map[string]string{"status": "storage unavailable"}
			}
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_ = json.NewEncoder(w).Encode(body)
	})

	userHandler := user.NewHandler(d.Users, d.Sessions, logger)
	mux.HandleFunc("POST /api/auth/register", userHandler.Register)
	mux.HandleFunc("POST /api/auth/login", userHandler.Login)
	mux.Handle("GET /api/me", protect(userHandler.Me))

	contentHandler := content.NewHandler(d.Content, d.Media, logger)
	mux.Handle("GET /api/posts", protect(contentHandler.ListPosts))
	mux.Handle("POST /api/posts", protect(contentHandler.CreatePost))
	mux.Handle("GET /api/products", protect(contentHandler.ListProducts))
	mux.Handle("POST /api/products", protect(contentHandler.CreateProduct))

	mediaHandler := media.NewHandler(d.Media, logger)
	mux.Handle("GET /api/media/{bucket}/{name}", protect(mediaHandler.Serve))

	aiHandler := assistant.NewHandler(d.AI, logger)
	mux.Handle("POST /api/assistant/detect", protect(aiHandler.Detect))
	mux.Handle("POST /api/assistant/ask", protect(aiHandler.Ask))
	mux.Handle("POST /api/assistant/diagnose", protect(aiHandler.Diagnose))
	mux.Handle("POST /api/assistant/crop-knowledge", protect(aiHandler.CropKnowledge))
	mux.Handle("POST /api/assistant/schemes", protect(aiHandler.Schemes))
	mux.Handle("GET /api/assistant/schemes/popular", protect(aiHandler.PopularSchemes))

	return LoggingMiddleware(logger)(SecurityHeadersMiddleware()(mux))
}
