package ports

import (
	"context"
	"io"
	"time"

	"github.com/pixelmend/pixelmend/internal/core/domain"
)

// ImageEditor is the AI backend boundary. Implementations must reject images
// over the size cap before dispatch, bound generation time, and honor ctx
// cancellation at dispatch boundaries.
type ImageEditor interface {
	// AnalyzeImage turns the image plus marked areas into an instruction
	// prompt for the generation call.
	AnalyzeImage(ctx context.Context, image []byte, pc domain.ProcessingContext) (string, error)
	// GenerateImage returns the transformed image bytes.
	GenerateImage(ctx context.Context, image []byte, instruction string) ([]byte, error)
	// SegmentImage returns per-object masks for the image.
	SegmentImage(ctx context.Context, image []byte, pc domain.ProcessingContext) (*domain.SegmentationResult, error)
}

// JobRepository persists edit job state.
type JobRepository interface {
	Create(ctx context.Context, job *domain.EditJob) error
	GetByID(ctx context.Context, id string) (*domain.EditJob, error)
	UpdateProgress(ctx context.Context, id string, stage domain.ProcessingStage, progress float64) error
	Finish(ctx context.Context, id string, status domain.JobStatus, resultKey, errMessage string) error
	ListRecent(ctx context.Context, limit int) ([]domain.EditJob, error)
}

// AccountStore reads the minimal account state the verification flow needs.
type AccountStore interface {
	GetOrCreate(ctx context.Context, email string) (*domain.Account, error)
}

// ObjectStorage stores source and result images.
type ObjectStorage interface {
	Save(ctx context.Context, key string, data io.Reader) error
	Open(ctx context.Context, key string) (io.ReadCloser, error)
}

// MessageQueue carries edit jobs to the worker and cancel requests back.
type MessageQueue interface {
	PublishEditRequested(ctx context.Context, jobID string) error
	SubscribeEditRequested(ctx context.Context, handler func(context.Context, string) error) error
	PublishCancelRequested(ctx context.Context, jobID, reason string) error
	SubscribeCancelRequested(ctx context.Context, handler func(jobID, reason string)) error
}

// VerificationMailer delivers the verification email.
type VerificationMailer interface {
	SendVerification(ctx context.Context, email string) error
}

// Clock is injected wherever wall time gates behavior, so tests control it.
type Clock interface {
	Now() time.Time
}
