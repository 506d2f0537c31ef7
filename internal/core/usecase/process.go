package usecase

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/pixelmend/pixelmend/internal/core/domain"
	"github.com/pixelmend/pixelmend/internal/core/ports"
)

// ProcessEditUseCase runs queued edit jobs on the worker. Each job gets its
// own pipeline instance, registered while in flight so a cancel broadcast can
// reach it; progress transitions are mirrored into the job record for
// polling clients.
type ProcessEditUseCase struct {
	repo    ports.JobRepository
	storage ports.ObjectStorage
	editor  ports.ImageEditor
	timeout time.Duration
	logger  *slog.Logger

	mu       sync.Mutex
	active   map[string]*EditPipeline
	observer func(jobID string, state domain.PipelineState)
}

func NewProcessEditUseCase(
	repo ports.JobRepository,
	storage ports.ObjectStorage,
	editor ports.ImageEditor,
	timeout time.Duration,
	logger *slog.Logger,
) *ProcessEditUseCase {
	if logger == nil {
		logger = slog.Default()
	}
	return &ProcessEditUseCase{
		repo:    repo,
		storage: storage,
		editor:  editor,
		timeout: timeout,
		logger:  logger,
		active:  map[string]*EditPipeline{},
	}
}

// OnTransition registers an observer for every pipeline state change across
// all jobs, keyed by job id.
func (uc *ProcessEditUseCase) OnTransition(fn func(jobID string, state domain.PipelineState)) {
	uc.mu.Lock()
	defer uc.mu.Unlock()
	uc.observer = fn
}

// ProcessByID loads the job and drives it to a terminal status. Jobs already
// in a terminal status are skipped so redelivered messages stay harmless.
func (uc *ProcessEditUseCase) ProcessByID(ctx context.Context, jobID string) error {
	job, err := uc.repo.GetByID(ctx, jobID)
	if err != nil {
		return err
	}
	switch job.Status {
	case domain.JobSucceeded, domain.JobFailed, domain.JobCancelled:
		uc.logger.Info("job_already_terminal", "job_id", jobID, "status", job.Status)
		return nil
	}

	pipeline := NewEditPipeline(uc.editor, uc.storage, uc.timeout)
	pipeline.OnTransition(func(state domain.PipelineState) {
		uc.notify(jobID, state)
		if in, ok := state.(domain.StateInProgress); ok {
			if err := uc.repo.UpdateProgress(ctx, jobID, in.Progress.Stage, in.Progress.Progress); err != nil {
				uc.logger.Warn("progress_update_failed", "job_id", jobID, "error", err)
			}
		}
	})

	uc.register(jobID, pipeline)
	defer uc.unregister(jobID)

	result, err := pipeline.Submit(ctx, PipelineInput{
		ImageKey: job.SourceKey,
		Prompt:   job.Prompt,
		Context:  job.Context(),
	})

	var cancelled *domain.CancelledError
	switch {
	case err == nil:
		resultKey, saveErr := uc.saveResult(ctx, jobID, result)
		if saveErr != nil {
			return uc.finish(ctx, jobID, domain.JobFailed, "", saveErr.Error())
		}
		return uc.finish(ctx, jobID, domain.JobSucceeded, resultKey, "")
	case errors.As(err, &cancelled):
		return uc.finish(ctx, jobID, domain.JobCancelled, "", cancelled.Reason)
	default:
		return uc.finish(ctx, jobID, domain.JobFailed, "", err.Error())
	}
}

// Cancel forwards a cancel broadcast to the pipeline holding jobID, if this
// worker holds it.
func (uc *ProcessEditUseCase) Cancel(jobID, reason string) {
	uc.mu.Lock()
	pipeline := uc.active[jobID]
	uc.mu.Unlock()
	if pipeline == nil {
		return
	}
	pipeline.Cancel(reason)
}

func (uc *ProcessEditUseCase) saveResult(ctx context.Context, jobID string, result *domain.EditResult) (string, error) {
	switch {
	case len(result.EditedImage) > 0:
		key := jobID + "_result.png"
		if err := uc.storage.Save(ctx, key, bytes.NewReader(result.EditedImage)); err != nil {
			return "", fmt.Errorf("store result image: %w", err)
		}
		return key, nil
	case result.Segmentation != nil:
		payload, err := json.Marshal(result.Segmentation)
		if err != nil {
			return "", fmt.Errorf("encode segmentation result: %w", err)
		}
		key := jobID + "_result.json"
		if err := uc.storage.Save(ctx, key, bytes.NewReader(payload)); err != nil {
			return "", fmt.Errorf("store segmentation result: %w", err)
		}
		return key, nil
	default:
		return "", fmt.Errorf("edit produced no output")
	}
}

func (uc *ProcessEditUseCase) finish(ctx context.Context, jobID string, status domain.JobStatus, resultKey, message string) error {
	if err := uc.repo.Finish(ctx, jobID, status, resultKey, message); err != nil {
		return fmt.Errorf("finalize job %s: %w", jobID, err)
	}
	uc.logger.Info("job_finished", "job_id", jobID, "status", status)
	return nil
}

func (uc *ProcessEditUseCase) register(jobID string, pipeline *EditPipeline) {
	uc.mu.Lock()
	defer uc.mu.Unlock()
	uc.active[jobID] = pipeline
}

func (uc *ProcessEditUseCase) unregister(jobID string) {
	uc.mu.Lock()
	defer uc.mu.Unlock()
	delete(uc.active, jobID)
}

func (uc *ProcessEditUseCase) notify(jobID string, state domain.PipelineState) {
	uc.mu.Lock()
	observer := uc.observer
	uc.mu.Unlock()
	if observer != nil {
		observer(jobID, state)
	}
}
