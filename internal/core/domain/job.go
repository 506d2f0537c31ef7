package domain

import "time"

type JobStatus string

const (
	JobQueued     JobStatus = "queued"
	JobProcessing JobStatus = "processing"
	JobSucceeded  JobStatus = "succeeded"
	JobFailed     JobStatus = "failed"
	JobCancelled  JobStatus = "cancelled"
)

// EditJob is the persisted record of one submitted edit request. Stage and
// Progress mirror the live pipeline so clients can poll while the worker
// runs.
type EditJob struct {
	ID        string              `json:"id"`
	SourceKey string              `json:"source_key"`
	ResultKey string              `json:"result_key,omitempty"`
	Prompt    string              `json:"prompt"`
	Type      ProcessingType      `json:"type"`
	Quality   QualityLevel        `json:"quality"`
	Priority  PerformancePriority `json:"priority"`
	Markers   []ImageMarker       `json:"markers,omitempty"`
	Stage     ProcessingStage     `json:"stage,omitempty"`
	Progress  float64             `json:"progress"`
	Status    JobStatus           `json:"status"`
	Error     string              `json:"error,omitempty"`
	CreatedAt time.Time           `json:"created_at"`
	UpdatedAt time.Time           `json:"updated_at"`
}

// Context rebuilds the validated processing context for this job's options.
func (j *EditJob) Context() ProcessingContext {
	return BuildContext(j.Type, j.Quality, j.Priority, j.Markers, j.Prompt)
}

// Account is the minimal user record the verification-resend flow reads.
type Account struct {
	Email     string    `json:"email"`
	Verified  bool      `json:"verified"`
	CreatedAt time.Time `json:"created_at"`
}
