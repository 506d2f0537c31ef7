package usecase

import (
	"context"
	"fmt"

	"github.com/pixelmend/pixelmend/internal/core/domain"
	"github.com/pixelmend/pixelmend/internal/core/ports"
)

const defaultListLimit = 20

// EditJobsUseCase is the read and cancel surface for persisted jobs.
type EditJobsUseCase struct {
	repo  ports.JobRepository
	queue ports.MessageQueue
}

func NewEditJobsUseCase(repo ports.JobRepository, queue ports.MessageQueue) *EditJobsUseCase {
	return &EditJobsUseCase{repo: repo, queue: queue}
}

func (uc *EditJobsUseCase) GetByID(ctx context.Context, id string) (*domain.EditJob, error) {
	job, err := uc.repo.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("fetch edit job: %w", err)
	}
	return job, nil
}

func (uc *EditJobsUseCase) ListRecent(ctx context.Context, limit int) ([]domain.EditJob, error) {
	if limit <= 0 {
		limit = defaultListLimit
	}
	jobs, err := uc.repo.ListRecent(ctx, limit)
	if err != nil {
		return nil, fmt.Errorf("list edit jobs: %w", err)
	}
	return jobs, nil
}

// Cancel is a no-op for jobs already in a terminal state. A queued job is
// finalized directly; a processing job gets a cancel broadcast that the
// owning worker resolves against its in-flight pipeline.
func (uc *EditJobsUseCase) Cancel(ctx context.Context, id, reason string) error {
	job, err := uc.repo.GetByID(ctx, id)
	if err != nil {
		return fmt.Errorf("fetch edit job: %w", err)
	}
	if reason == "" {
		reason = "cancelled by user"
	}

	switch job.Status {
	case domain.JobSucceeded, domain.JobFailed, domain.JobCancelled:
		return nil
	case domain.JobQueued:
		if err := uc.repo.Finish(ctx, id, domain.JobCancelled, "", reason); err != nil {
			return fmt.Errorf("cancel queued job: %w", err)
		}
		return nil
	default:
		if err := uc.queue.PublishCancelRequested(ctx, id, reason); err != nil {
			return fmt.Errorf("broadcast cancel: %w", err)
		}
		return nil
	}
}
