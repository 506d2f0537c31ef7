package domain

import "time"

type ProcessingStage string

const (
	StageAnalyzing         ProcessingStage = "analyzing"
	StagePromptEngineering ProcessingStage = "prompt_engineering"
	StageAIProcessing      ProcessingStage = "ai_processing"
)

// ProcessingProgress is one user-visible progress report. Progress is in
// [0,1] and never decreases within a single request; the same stage may be
// reported more than once.
type ProcessingProgress struct {
	Stage    ProcessingStage `json:"stage"`
	Progress float64         `json:"progress"`
	Message  string          `json:"message"`
}

// PipelineState is the sealed variant set of the request lifecycle. Initial
// is the only entry state; Success, Error and Cancelled are terminal and only
// a reset leads back to Initial.
type PipelineState interface {
	pipelineState()
}

type StateInitial struct{}

type StateInProgress struct {
	Progress  ProcessingProgress
	CanCancel bool
}

type StateSuccess struct {
	Result        *EditResult
	OriginalImage []byte
}

type StateError struct {
	Message string
	// OriginalImage is retained so the caller can offer retry without
	// re-selecting input.
	OriginalImage []byte
}

type StateCancelled struct {
	Reason string
}

func (StateInitial) pipelineState()    {}
func (StateInProgress) pipelineState() {}
func (StateSuccess) pipelineState()    {}
func (StateError) pipelineState()      {}
func (StateCancelled) pipelineState()  {}

// EditResult is the typed success outcome of one pipeline run.
type EditResult struct {
	ID             string              `json:"id"`
	EditedImage    []byte              `json:"-"`
	OriginalPrompt string              `json:"original_prompt"`
	AnalysisPrompt string              `json:"analysis_prompt,omitempty"`
	Segmentation   *SegmentationResult `json:"segmentation,omitempty"`
	ProcessingTime time.Duration       `json:"processing_time"`
	CreatedAt      time.Time           `json:"created_at"`
}
