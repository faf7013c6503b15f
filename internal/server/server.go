package server

import (
	"context"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/SamiTelo/API-Football/internal/config"
	"github.com/SamiTelo/API-Football/internal/handlers"
	"github.com/SamiTelo/API-Football/internal/metrics"
	"github.com/SamiTelo/API-Football/internal/middleware"
	"github.com/SamiTelo/API-Football/internal/ratelimit"
)

type HTTPServer struct {
	engine *gin.Engine
	server *http.Server
	log    zerolog.Logger
}

type Options struct {
	Limiter middleware.Limiter
	Metrics *metrics.Metrics
}

func NewHTTPServer(cfg *config.AppConfig, log zerolog.Logger, handlerSet handlers.HandlerSet, opts Options) (*HTTPServer, error) {
	engine, err := NewEngine(cfg, log, handlerSet, opts)
	if err != nil {
		return nil, err
	}

	srv := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.HTTP.Host, cfg.HTTP.Port),
		Handler:      engine,
		ReadTimeout:  cfg.HTTP.ReadTimeout,
		WriteTimeout: cfg.HTTP.WriteTimeout,
		IdleTimeout:  cfg.HTTP.IdleTimeout,
	}

	return &HTTPServer{
		engine: engine,
		server: srv,
		log:    log,
	}, nil
}

// NewEngine builds the router with the global middleware chain and all routes.
func NewEngine(cfg *config.AppConfig, log zerolog.Logger, handlerSet handlers.HandlerSet, opts Options) (*gin.Engine, error) {
	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	engine := gin.New()
	engine.RedirectTrailingSlash = true
	engine.RedirectFixedPath = true

	proxies := cfg.HTTP.TrustedProxies
	if len(proxies) == 0 {
		proxies = nil
	}
	if err := engine.SetTrustedProxies(proxies); err != nil {
		return nil, fmt.Errorf("trusted proxies: %w", err)
	}

	engine.Use(
		middleware.RequestID(log),
		middleware.Logger(log, opts.Metrics),
		middleware.Recovery(log),
		middleware.CORS(cfg.AllowCORSOrigins),
	)
	if cfg.RateLimit.Enabled && opts.Limiter != nil {
		engine.Use(middleware.RateLimit(opts.Limiter, ratelimit.Rule{
			Scope:  "global",
			Limit:  cfg.RateLimit.Global.Limit,
			Window: cfg.RateLimit.Global.Window,
		}, opts.Metrics, log))
	}

	handlerSet.Routes(&engine.RouterGroup)
	return engine, nil
}

func (s *HTTPServer) Start() error {
	s.log.Info().
		Str("addr", s.server.Addr).
		Msg("http server starting")

	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("listen and serve: %w", err)
	}
	return nil
}

func (s *HTTPServer) Shutdown(ctx context.Context) error {
	s.log.Info().Msg("http server shutting down")
	return s.server.Shutdown(ctx)
}
