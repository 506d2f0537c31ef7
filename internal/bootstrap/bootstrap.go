package bootstrap

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/pixelmend/pixelmend/internal/config"
	"github.com/pixelmend/pixelmend/internal/core/ports"
	"github.com/pixelmend/pixelmend/internal/core/usecase"
	"github.com/pixelmend/pixelmend/internal/infrastructure/llm/gemini"
	natsqueue "github.com/pixelmend/pixelmend/internal/infrastructure/queue/nats"
	"github.com/pixelmend/pixelmend/internal/infrastructure/repository/postgres"
	"github.com/pixelmend/pixelmend/internal/infrastructure/resilience"
	"github.com/pixelmend/pixelmend/internal/infrastructure/storage/localfs"
)

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

// App wires the shared dependency graph for both the api and the worker
// binaries. The worker composes its own processing use case on top, so it can
// decorate Editor with its metrics first.
type App struct {
	Config config.Config

	Queue    ports.MessageQueue
	Repo     ports.JobRepository
	Storage  ports.ObjectStorage
	Editor   ports.ImageEditor
	SubmitUC *usecase.SubmitEditUseCase
	JobsUC   *usecase.EditJobsUseCase
	ResendUC *usecase.ResendVerificationUseCase

	closeFn func()
}

func New(ctx context.Context, cfg config.Config, logger *slog.Logger) (*App, error) {
	db, err := postgres.OpenDB(cfg.PostgresDSN)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	repo := postgres.NewJobRepository(db)
	if err := repo.EnsureSchema(ctx); err != nil {
		return nil, fmt.Errorf("ensure schema: %w", err)
	}
	accounts := postgres.NewAccountRepository(db)

	storage, err := localfs.New(cfg.StoragePath)
	if err != nil {
		return nil, fmt.Errorf("init object storage: %w", err)
	}

	queue, err := natsqueue.New(cfg.NATSURL, cfg.EditsSubject, cfg.CancelSubject, natsqueue.Options{
		Guard:  resilience.NewGuard("nats", resilience.DefaultConfig(), natsqueue.Classify),
		Logger: logger,
	})
	if err != nil {
		return nil, fmt.Errorf("init message queue: %w", err)
	}

	editor, err := gemini.New(ctx, gemini.Config{
		APIKey:          cfg.GeminiAPIKey,
		TextModel:       cfg.GeminiTextModel,
		ImageModel:      cfg.GeminiImageModel,
		MaxImageBytes:   cfg.MaxImageBytes,
		GenerateTimeout: time.Duration(cfg.PipelineTimeoutSeconds) * time.Second,
		RPS:             cfg.GeminiRPS,
		Burst:           cfg.GeminiBurst,
	}, resilience.NewGuard("gemini", resilience.DefaultConfig(), gemini.Classify))
	if err != nil {
		return nil, fmt.Errorf("init image editor: %w", err)
	}

	mailer := natsqueue.NewMailer(queue, cfg.EmailSubject)

	submitUC := usecase.NewSubmitEditUseCase(repo, storage, queue)
	jobsUC := usecase.NewEditJobsUseCase(repo, queue)
	resendUC := usecase.NewResendVerificationUseCase(
		accounts, mailer, systemClock{},
		time.Duration(cfg.ResendCooldownSeconds)*time.Second,
	)
	return &App{
		Config: cfg,

		Queue:    queue,
		Repo:     repo,
		Storage:  storage,
		Editor:   editor,
		SubmitUC: submitUC,
		JobsUC:   jobsUC,
		ResendUC: resendUC,

		closeFn: func() {
			queue.Close()
			_ = db.Close()
		},
	}, nil
}

func (a *App) Close() {
	if a.closeFn != nil {
		a.closeFn()
	}
}
