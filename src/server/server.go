package server

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"syscall"
	"time"

	"papertrader/src/auth"
	"papertrader/src/engine"
	"papertrader/src/handler"
	"papertrader/src/market"
	"papertrader/src/scheduler"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/cors"
	logger "github.com/sirupsen/logrus"
)

// Dependencies are the services exposed over HTTP.
type Dependencies struct {
	Engine     *engine.Engine
	Reconciler *scheduler.Reconciler
	Scheduler  *scheduler.Scheduler
	Oracle     market.Oracle
	Gatherer   prometheus.Gatherer
}

func NewRouter(cfg *Config, deps Dependencies) http.Handler {
	r := chi.NewRouter()
	// === Global Middleware ===
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)

	// Public routes
	r.Get("/healthcheck", func(w http.ResponseWriter, r *http.Request) {
		if _, err := w.Write([]byte("OK")); err != nil {
			logger.WithError(err).Error(" \"/health error")
		}
	})
	gatherer := deps.Gatherer
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	r.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))

	upgrader := websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     originChecker(cfg.CORSOrigins),
	}
	interval := cfg.StreamInterval
	if interval <= 0 {
		interval = 2 * time.Second
	}

	// User routes
	r.Group(func(r chi.Router) {
		r.Use(auth.RequireUser(cfg.APITokenHash))

		r.Get("/portfolio", handler.GetPortfolioHandler(deps.Engine))
		r.Post("/portfolio/reset", handler.ResetPortfolioHandler(deps.Engine))
		r.Post("/portfolio/refresh", handler.RefreshPortfolioHandler(deps.Engine, deps.Reconciler))

		r.Post("/orders", handler.PlaceOrderHandler(deps.Engine, deps.Oracle))
		r.Delete("/orders/{orderID}", handler.CancelOrderHandler(deps.Engine))

		r.Post("/positions", handler.OpenPositionHandler(deps.Engine, deps.Oracle))
		r.Post("/positions/{positionID}/close", handler.ClosePositionHandler(deps.Engine))

		r.Post("/scheduler/start", handler.StartSchedulerHandler(deps.Scheduler))
		r.Post("/scheduler/stop", handler.StopSchedulerHandler(deps.Scheduler))
		r.Get("/scheduler/status", handler.SchedulerStatusHandler(deps.Scheduler))
		r.Get("/scheduler/stream", handler.SchedulerStreamHandler(deps.Scheduler, upgrader, interval))
	})

	c := cors.New(cors.Options{
		AllowedOrigins:   cfg.CORSOrigins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodDelete, http.MethodOptions},
		AllowedHeaders:   []string{"Authorization", "Content-Type", auth.UserHeader},
		AllowCredentials: true,
	})
	return c.Handler(r)
}

// originChecker accepts websocket upgrades from the configured CORS origins.
func originChecker(origins []string) func(r *http.Request) bool {
	allowed := make(map[string]bool, len(origins))
	for _, o := range origins {
		if o == "*" {
			return func(*http.Request) bool { return true }
		}
		allowed[o] = true
	}
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		u, err := url.Parse(origin)
		if err != nil {
			return false
		}
		return allowed[origin] || u.Host == r.Host
	}
}

// Serve runs the HTTP server until ctx is cancelled, then shuts it down
// gracefully.
func Serve(ctx context.Context, cfg *Config, h http.Handler) error {
	addr := ":" + cfg.Port
	srv := &http.Server{
		Addr:              addr,
		Handler:           h,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Infof("Listening on %s", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return err
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info("Shutting down gracefully...")
	timeout := cfg.ShutdownTimeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.WithError(err).Error("Shutdown error")
		return err
	}
	return nil
}

// StartServer serves the API until SIGINT or SIGTERM.
func StartServer(cfg *Config, deps Dependencies) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	return Serve(ctx, cfg, NewRouter(cfg, deps))
}
