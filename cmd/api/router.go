package main

import (
	"crypto/subtle"
	"net/http"
	"net/http/pprof"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/noah-isme/shipquote/internal/common"
	"github.com/noah-isme/shipquote/internal/config"
	"github.com/noah-isme/shipquote/internal/health"
	"github.com/noah-isme/shipquote/internal/obs"
	"github.com/noah-isme/shipquote/internal/quote"
	"github.com/noah-isme/shipquote/internal/ratelimit"
	"github.com/noah-isme/shipquote/internal/security"
)

// routerDeps collects everything the HTTP surface needs.
type routerDeps struct {
	cfg         *config.Config
	logger      zerolog.Logger
	quotes      *quote.Handler
	health      health.Handler
	limiter     ratelimit.Limiter
	httpMetrics *obs.HTTPMetrics
}

func newRouter(d routerDeps) http.Handler {
	cfg := d.cfg
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	if cfg.Obs.TracingEnabled {
		r.Use(obs.TracingMiddleware)
	}
	if d.httpMetrics != nil {
		r.Use(obs.HTTPObs{Metrics: d.httpMetrics}.Middleware)
	}
	r.Use(obs.RequestLogger{Logger: d.logger}.Middleware)
	r.Use(obs.Recoverer{Logger: d.logger}.Middleware)
	r.Use(security.Headers{Enable: cfg.SecurityHeaders, EnableHSTS: cfg.AppEnv == "production"}.Middleware)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: allowedOrigins(cfg),
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type", "X-Request-ID"},
		ExposedHeaders: []string{"X-Request-ID", "X-RateLimit-Remaining", "Retry-After"},
		MaxAge:         300,
	}))

	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		common.JSONError(w, http.StatusNotFound, "NOT_FOUND", "not found", nil)
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		common.JSONError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "method not allowed", nil)
	})

	r.Get("/health/live", d.health.Live)
	r.Get("/health/ready", d.health.Ready)
	if d.httpMetrics != nil {
		r.Handle("/metrics", promhttp.Handler())
	}
	if cfg.Obs.PprofEnabled {
		r.Mount("/debug/pprof", protectPprof(newPprofMux(), cfg.Obs.PprofUser, cfg.Obs.PprofPass))
	}

	quoteLimit := ratelimit.Handler{
		Limiter: d.limiter,
		Config: ratelimit.Config{
			Key:    ratelimit.ByClientIP("quote"),
			Window: time.Minute,
			Max:    cfg.RateLimitPerMinute,
		},
		OnError: func(err error) {
			d.logger.Warn().Err(err).Msg("rate_limit_unavailable")
		},
	}

	r.Route("/api/v1/shipping", func(s chi.Router) {
		s.With(
			security.BodyLimit{Max: cfg.BodyLimitBytes}.Middleware,
			rateLimited(quoteLimit, cfg.RateLimitPerMinute > 0),
		).Post("/quote", d.quotes.Quote)
		s.Get("/quotes/{quoteKey}", d.quotes.Get)
	})
	return r
}

func rateLimited(h ratelimit.Handler, enabled bool) func(http.Handler) http.Handler {
	if !enabled {
		return func(next http.Handler) http.Handler { return next }
	}
	return h.Middleware
}

func allowedOrigins(cfg *config.Config) []string {
	if len(cfg.CORSAllowedOrigins) == 0 {
		return []string{"*"}
	}
	return cfg.CORSAllowedOrigins
}

func newPprofMux() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/", pprof.Index)
	mux.HandleFunc("/cmdline", pprof.Cmdline)
	mux.HandleFunc("/profile", pprof.Profile)
	mux.HandleFunc("/symbol", pprof.Symbol)
	mux.HandleFunc("/trace", pprof.Trace)
	for _, name := range []string{"allocs", "block", "goroutine", "heap", "mutex", "threadcreate"} {
		mux.Handle("/"+name, pprof.Handler(name))
	}
	return http.StripPrefix("/debug/pprof", mux)
}

// protectPprof requires basic auth when a user is configured.
func protectPprof(handler http.Handler, user, pass string) http.Handler {
	if user == "" {
		return handler
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		u, p, ok := r.BasicAuth()
		if !ok || subtle.ConstantTimeCompare([]byte(u), []byte(user)) != 1 || subtle.ConstantTimeCompare([]byte(p), []byte(pass)) != 1 {
			w.Header().Set("WWW-Authenticate", "Basic realm=restricted")
			common.JSONError(w, http.StatusUnauthorized, "UNAUTHORIZED", "unauthorised", nil)
			return
		}
		handler.ServeHTTP(w, r)
	})
}
