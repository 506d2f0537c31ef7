package usecase

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/pixelmend/pixelmend/internal/core/domain"
	"github.com/pixelmend/pixelmend/internal/core/ports"
)

// SubmitEditUseCase accepts an upload, stores the source image, persists the
// job and hands it to the worker queue.
type SubmitEditUseCase struct {
	repo    ports.JobRepository
	storage ports.ObjectStorage
	queue   ports.MessageQueue
}

func NewSubmitEditUseCase(
	repo ports.JobRepository,
	storage ports.ObjectStorage,
	queue ports.MessageQueue,
) *SubmitEditUseCase {
	return &SubmitEditUseCase{
		repo:    repo,
		storage: storage,
		queue:   queue,
	}
}

func (uc *SubmitEditUseCase) Submit(ctx context.Context, req ports.EditRequest) (*domain.EditJob, error) {
	if req.Image == nil {
		return nil, domain.WrapError(domain.ErrInvalidInput, "submit edit", fmt.Errorf("image is required"))
	}

	id := uuid.NewString()
	sourceKey := fmt.Sprintf("%s_%s", id, sanitizeFilename(req.Filename))
	now := time.Now().UTC()

	if err := uc.storage.Save(ctx, sourceKey, req.Image); err != nil {
		return nil, fmt.Errorf("save source image: %w", err)
	}

	markers := append(append([]domain.ImageMarker(nil), req.Markers...), domain.MarkersFromAnnotations(req.Annotations)...)
	pc := domain.BuildContext(req.Type, req.Quality, req.Priority, markers, req.Prompt)

	job := &domain.EditJob{
		ID:        id,
		SourceKey: sourceKey,
		Prompt:    req.Prompt,
		Type:      pc.Type,
		Quality:   pc.Quality,
		Priority:  pc.Priority,
		Markers:   pc.Markers,
		Status:    domain.JobQueued,
		CreatedAt: now,
		UpdatedAt: now,
	}

	if err := uc.repo.Create(ctx, job); err != nil {
		return nil, fmt.Errorf("create edit job: %w", err)
	}
	if err := uc.queue.PublishEditRequested(ctx, job.ID); err != nil {
		return nil, fmt.Errorf("enqueue edit job: %w", err)
	}
	return job, nil
}

func sanitizeFilename(name string) string {
	base := filepath.Base(strings.TrimSpace(name))
	if base == "" || base == "." || base == string(filepath.Separator) {
		return "image"
	}
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			return r
		case r == '.', r == '-', r == '_':
			return r
		default:
			return '_'
		}
	}, base)
}
