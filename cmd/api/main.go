package main

import (
	"context"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/net/netutil"

	httpadapter "github.com/pixelmend/pixelmend/internal/adapters/http"
	"github.com/pixelmend/pixelmend/internal/bootstrap"
	"github.com/pixelmend/pixelmend/internal/config"
	"github.com/pixelmend/pixelmend/internal/observability/logging"
	"github.com/pixelmend/pixelmend/internal/observability/metrics"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config error: %v", err)
	}
	logger := logging.NewJSONLogger("api", cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app, err := bootstrap.New(ctx, cfg, logger)
	if err != nil {
		log.Fatalf("bootstrap error: %v", err)
	}
	defer app.Close()

	httpMetrics := metrics.NewHTTPServerMetrics("api")
	router := httpadapter.NewRouter(
		app.SubmitUC,
		app.JobsUC,
		app.JobsUC,
		app.ResendUC,
		app.Storage,
		httpMetrics,
		httpadapter.RouterOptions{
			MaxImageBytes:  int64(cfg.MaxImageBytes),
			RateLimitRPS:   cfg.APIRateLimitRPS,
			RateLimitBurst: cfg.APIRateLimitBurst,
			MaxConcurrent:  cfg.APIMaxConns,
			Logger:         logger,
		},
	).Handler()

	mux := http.NewServeMux()
	mux.Handle("/metrics", httpMetrics.Handler())
	mux.Handle("/", router)

	server := &http.Server{
		Handler:      mux,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 90 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	listener, err := net.Listen("tcp", ":"+cfg.APIPort)
	if err != nil {
		log.Fatalf("listen error: %v", err)
	}
	listener = netutil.LimitListener(listener, cfg.APIMaxConns)

	go func() {
		logger.Info("api_listening", "port", cfg.APIPort)
		if err := server.Serve(listener); err != nil && err != http.ErrServerClosed {
			log.Fatalf("api server error: %v", err)
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("api_shutdown", "error", err)
	}
}
