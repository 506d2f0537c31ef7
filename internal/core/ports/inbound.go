package ports

import (
	"context"
	"io"
	"time"

	"github.com/pixelmend/pixelmend/internal/core/domain"
)

// EditRequest is the inbound shape of one edit submission.
type EditRequest struct {
	Image       io.Reader
	Filename    string
	Prompt      string
	Type        domain.ProcessingType
	Quality     domain.QualityLevel
	Priority    domain.PerformancePriority
	Annotations []domain.AnnotationPoint
	Markers     []domain.ImageMarker
}

// EditSubmitter accepts an upload, persists it and enqueues the job.
type EditSubmitter interface {
	Submit(ctx context.Context, req EditRequest) (*domain.EditJob, error)
}

// EditReader is the read model for job state.
type EditReader interface {
	GetByID(ctx context.Context, id string) (*domain.EditJob, error)
	ListRecent(ctx context.Context, limit int) ([]domain.EditJob, error)
}

// EditCanceller requests cancellation of an in-flight job.
type EditCanceller interface {
	Cancel(ctx context.Context, id, reason string) error
}

// VerificationResender is the cooldown-gated resend action.
type VerificationResender interface {
	Resend(ctx context.Context, email string) error
	RemainingCooldown() time.Duration
}
