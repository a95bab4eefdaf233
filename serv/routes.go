package serv

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/klauspost/compress/gzhttp"
	"github.com/rs/cors"
	"github.com/rs/xid"
	"go.uber.org/zap"
)

const (
	healthRoute    = "/health"
	routeTranslate = "/api/v1/translate"
	routeRun       = "/api/v1/run"
	routeSchema    = "/api/v1/schema"
	routeMetrics   = "/metrics"
)

// routesHandler is the main handler for all routes
func routesHandler(s1 *HttpService) (http.Handler, error) {
	s := s1.Load().(*service)

	r := chi.NewRouter()
	r.Use(s1.requestLogger)

	if len(s.conf.AllowedOrigins) != 0 {
		r.Use(corsHandler(s.conf))
	}

	if s.conf.HTTPGZip {
		r.Use(func(h http.Handler) http.Handler {
			return gzhttp.GzipHandler(h)
		})
	}

	// Healthcheck API
	r.Method(http.MethodGet, healthRoute, healthCheckHandler(s1))
	r.Method(http.MethodGet, routeMetrics, s.metrics.handler())

	r.Group(func(r chi.Router) {
		r.Use(func(h http.Handler) http.Handler {
			return rateLimiter(s1, h)
		})
		r.Method(http.MethodPost, routeTranslate, s1.translateHandler())
		r.Method(http.MethodPost, routeRun, s1.runHandler())
		r.Method(http.MethodGet, routeSchema, s1.schemaHandler())

		if s.conf.WebUI {
			r.Method(http.MethodGet, "/", s1.webUIHandler())
			r.Method(http.MethodPost, "/", s1.webUIHandler())
		}
	})

	name := s.conf.AppName
	if name == "" {
		name = serverName
	}
	return setServerHeader(name, r), nil
}

// corsHandler sets the CORS headers for the configured origins
func corsHandler(conf *Config) func(http.Handler) http.Handler {
	allowedHeaders := []string{
		"Origin", "Content-Type", "Accept", "X-Requested-With",
	}
	if len(conf.AllowedHeaders) != 0 {
		allowedHeaders = conf.AllowedHeaders
	}

	c := cors.New(cors.Options{
		AllowedOrigins: conf.AllowedOrigins,
		AllowedHeaders: allowedHeaders,
		AllowedMethods: []string{http.MethodGet, http.MethodPost},
		Debug:          conf.DebugCORS,
	})
	return c.Handler
}

const requestIDHeader = "X-Request-Id"

// requestLogger logs every request and records its duration
func (s1 *HttpService) requestLogger(h http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s := s1.Load().(*service)
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		t := time.Now()

		reqID := r.Header.Get(requestIDHeader)
		if reqID == "" {
			reqID = xid.New().String()
		}
		ww.Header().Set(requestIDHeader, reqID)

		h.ServeHTTP(ww, r)

		took := time.Since(t)
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}

		route := "unmatched"
		if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
			route = rctx.RoutePattern()
		}
		s.metrics.observeRequest(route, status, took)

		if r.URL.Path == healthRoute || r.URL.Path == routeMetrics {
			return
		}
		s.zlog.Info("request",
			zap.String("request_id", reqID),
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", status),
			zap.Int("bytes", ww.BytesWritten()),
			zap.Duration("took", took))
	})
}
