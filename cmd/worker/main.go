package main

import (
	"context"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/pixelmend/pixelmend/internal/bootstrap"
	"github.com/pixelmend/pixelmend/internal/config"
	"github.com/pixelmend/pixelmend/internal/core/domain"
	"github.com/pixelmend/pixelmend/internal/core/usecase"
	"github.com/pixelmend/pixelmend/internal/observability/logging"
	"github.com/pixelmend/pixelmend/internal/observability/metrics"
)

const service = "worker"

type stageMark struct {
	stage domain.ProcessingStage
	at    time.Time
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config error: %v", err)
	}
	logger := logging.NewJSONLogger(service, cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app, err := bootstrap.New(ctx, cfg, logger)
	if err != nil {
		log.Fatalf("bootstrap error: %v", err)
	}
	defer app.Close()

	wm := metrics.NewWorkerMetrics(service)
	go serveMetrics(cfg.WorkerMetricsPort, wm, logger)

	processUC := usecase.NewProcessEditUseCase(
		app.Repo, app.Storage,
		metrics.InstrumentEditor(app.Editor, wm, service),
		time.Duration(cfg.PipelineTimeoutSeconds)*time.Second,
		logger,
	)

	// Per-job stage timing, flushed when the pipeline reaches a terminal state.
	var mu sync.Mutex
	marks := map[string]stageMark{}
	processUC.OnTransition(func(jobID string, state domain.PipelineState) {
		mu.Lock()
		defer mu.Unlock()
		prev, hasPrev := marks[jobID]
		switch s := state.(type) {
		case domain.StateInProgress:
			if hasPrev {
				wm.ObserveStage(service, string(prev.stage), time.Since(prev.at))
			}
			marks[jobID] = stageMark{stage: s.Progress.Stage, at: time.Now()}
		default:
			if hasPrev {
				wm.ObserveStage(service, string(prev.stage), time.Since(prev.at))
			}
			delete(marks, jobID)
		}
	})

	if err := app.Queue.SubscribeCancelRequested(ctx, func(jobID, reason string) {
		logging.WithJob(logger, jobID).Info("cancel_received", "reason", reason)
		processUC.Cancel(jobID, reason)
	}); err != nil {
		log.Fatalf("worker cancel subscribe error: %v", err)
	}

	logger.Info("worker_subscribed", "subject", cfg.EditsSubject)
	err = app.Queue.SubscribeEditRequested(ctx, func(handlerCtx context.Context, jobID string) error {
		if job, err := app.Repo.GetByID(handlerCtx, jobID); err == nil {
			wm.ObserveQueueLag(service, time.Since(job.CreatedAt))
		}

		wm.StartJob()
		started := time.Now()
		err := processUC.ProcessByID(handlerCtx, jobID)
		wm.FinishJob(service, finalStatus(handlerCtx, app, jobID, err), time.Since(started))
		return err
	})
	if err != nil {
		log.Fatalf("worker subscribe error: %v", err)
	}
}

func finalStatus(ctx context.Context, app *bootstrap.App, jobID string, err error) string {
	if err != nil {
		return "error"
	}
	job, getErr := app.Repo.GetByID(ctx, jobID)
	if getErr != nil {
		return "unknown"
	}
	return string(job.Status)
}

func serveMetrics(port string, wm *metrics.WorkerMetrics, logger *slog.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", wm.Handler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	if err := http.ListenAndServe(":"+port, mux); err != nil && err != http.ErrServerClosed {
		logger.Error("worker_metrics_server", "error", err)
	}
}
