package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/marmos91/fsdelegate/internal/logger"
	"github.com/marmos91/fsdelegate/internal/telemetry"
	"github.com/marmos91/fsdelegate/pkg/api/handlers"
	apiMiddleware "github.com/marmos91/fsdelegate/pkg/api/middleware"
	"github.com/marmos91/fsdelegate/pkg/auth"
	pkgmetrics "github.com/marmos91/fsdelegate/pkg/metrics"
)

// RouterOptions are the collaborators of the router.
type RouterOptions struct {
	// Authenticator resolves the caller of every /api/v1 request.
	Authenticator *auth.Authenticator

	// Sessions caches delegate sessions per user.
	Sessions *SessionManager

	// QueryUser accepts the user.name query parameter as a pseudo credential.
	QueryUser bool

	// RequestTimeout bounds each request. Zero disables the timeout.
	RequestTimeout time.Duration

	// Metrics records request metrics. May be nil.
	Metrics Metrics

	// MetricsPath serves the Prometheus registry. Default: /metrics
	MetricsPath string

	// Version and FSType are reported by the health endpoints.
	Version string
	FSType  string
}

// NewRouter creates and configures the chi router with all middleware and routes.
//
// Routes:
//   - GET /health, GET /health/ready - unauthenticated probes
//   - GET /metrics - Prometheus metrics when enabled
//   - /api/v1/fs/* - delegate operations, authenticated
func NewRouter(opts RouterOptions) http.Handler {
	r := chi.NewRouter()

	// Middleware stack - order matters
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger)
	r.Use(requestMetrics(opts.Metrics))
	r.Use(middleware.Recoverer)
	if opts.RequestTimeout > 0 {
		r.Use(middleware.Timeout(opts.RequestTimeout))
	}

	var pool handlers.SessionPool
	if opts.Sessions != nil {
		pool = opts.Sessions
	}
	healthHandler := handlers.NewHealthHandler(pool, opts.Version, opts.FSType)

	r.Route("/health", func(r chi.Router) {
		r.Get("/", healthHandler.Liveness)
		r.Get("/ready", healthHandler.Readiness)
	})
	metricsPath := opts.MetricsPath
	if metricsPath == "" {
		metricsPath = "/metrics"
	}
	r.Method(http.MethodGet, metricsPath, pkgmetrics.Handler())

	r.Get("/", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/health", http.StatusTemporaryRedirect)
	})

	fsHandler := handlers.NewFSHandler(opts.Sessions)

	r.Route("/api/v1/fs", func(r chi.Router) {
		r.Use(apiMiddleware.Authenticate(opts.Authenticator, opts.QueryUser))

		r.Get("/list", fsHandler.List)
		r.Get("/status", fsHandler.Status)
		r.Get("/exists", fsHandler.Exists)
		r.Post("/mkdir", fsHandler.Mkdir)
		r.Post("/rename", fsHandler.Rename)
		r.Delete("/", fsHandler.Delete)
		r.Get("/content", fsHandler.Download)
		r.Put("/content", fsHandler.Upload)
		r.Post("/chmod", fsHandler.Chmod)
		r.Post("/copy", fsHandler.Copy)
		r.Get("/home", fsHandler.Home)
		r.Get("/fsstatus", fsHandler.FsStatus)

		r.Route("/trash", func(r chi.Router) {
			r.Get("/", fsHandler.Trash)
			r.Delete("/", fsHandler.EmptyTrash)
			r.Get("/enabled", fsHandler.TrashEnabled)
			r.Get("/path", fsHandler.TrashPath)
			r.Post("/move", fsHandler.MoveToTrash)
		})
	})

	return r
}

// requestLogger logs requests using the internal logger and wraps each one
// in an http.request span.
func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		requestID := middleware.GetReqID(r.Context())

		ctx, span := telemetry.StartSpan(r.Context(), telemetry.SpanHTTPRequest,
			trace.WithSpanKind(trace.SpanKindServer),
			trace.WithAttributes(
				telemetry.RequestID(requestID),
				telemetry.ClientAddr(r.RemoteAddr),
				attribute.String("http.method", r.Method),
				attribute.String("http.target", r.URL.Path),
			),
		)
		defer span.End()

		lc := &logger.LogContext{StartTime: start}
		if span.SpanContext().IsValid() {
			lc = lc.WithTrace(span.SpanContext().TraceID().String(), span.SpanContext().SpanID().String())
		}
		ctx = logger.WithContext(ctx, lc)

		logger.DebugCtx(ctx, "API request started",
			logger.KeyRequestID, requestID,
			"method", r.Method,
			logger.KeyPath, r.URL.Path,
			logger.KeyRemoteAddr, r.RemoteAddr,
		)

		// Wrap response writer to capture status code
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		next.ServeHTTP(ww, r.WithContext(ctx))

		status := statusOf(ww)
		span.SetAttributes(attribute.Int("http.status_code", status))
		if status >= http.StatusInternalServerError {
			span.SetStatus(codes.Error, http.StatusText(status))
		}

		logger.InfoCtx(ctx, "API request completed",
			logger.KeyRequestID, requestID,
			"method", r.Method,
			logger.KeyPath, r.URL.Path,
			"status", status,
			"bytes", ww.BytesWritten(),
			logger.KeyDurationMs, logger.Duration(start),
		)
	})
}

// requestMetrics records each request against its chi route pattern, so
// query strings and path values do not explode label cardinality.
func requestMetrics(m Metrics) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if m == nil {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

			next.ServeHTTP(ww, r)

			route := "unmatched"
			if rctx := chi.RouteContext(r.Context()); rctx != nil {
				if p := rctx.RoutePattern(); p != "" {
					route = p
				}
			}
			m.ObserveRequest(r.Method, route, statusOf(ww), time.Since(start))
		})
	}
}

// statusOf reports 200 for handlers that wrote nothing.
func statusOf(ww middleware.WrapResponseWriter) int {
	if ww.Status() == 0 {
		return http.StatusOK
	}
	return ww.Status()
}
