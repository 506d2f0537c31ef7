package usecase

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/pixelmend/pixelmend/internal/core/domain"
	"github.com/pixelmend/pixelmend/internal/core/ports"
)

const defaultPipelineTimeout = 60 * time.Second

// Stage progress values reported on each transition into InProgress.
const (
	progressAnalyzing         = 0.1
	progressPromptEngineering = 0.3
	progressAIProcessing      = 0.5
)

// PipelineInput is one edit request: image bytes, or a storage key to load
// them from, plus the user prompt and the validated processing context.
type PipelineInput struct {
	ImageBytes []byte
	ImageKey   string
	Prompt     string
	Context    domain.ProcessingContext
}

// EditPipeline drives a single edit request through validation, prompt
// preparation and the backend calls, reporting progress and honoring
// cooperative cancellation. One instance owns one request at a time; a
// second Submit while a request is in flight is rejected without touching
// state or the backend.
type EditPipeline struct {
	editor  ports.ImageEditor
	storage ports.ObjectStorage
	timeout time.Duration

	mu       sync.Mutex
	state    domain.PipelineState
	source   *domain.CancelSource
	running  bool
	observer func(domain.PipelineState)
}

func NewEditPipeline(editor ports.ImageEditor, storage ports.ObjectStorage, timeout time.Duration) *EditPipeline {
	if timeout <= 0 {
		timeout = defaultPipelineTimeout
	}
	return &EditPipeline{
		editor:  editor,
		storage: storage,
		timeout: timeout,
		state:   domain.StateInitial{},
		source:  domain.NewCancelSource(),
	}
}

// OnTransition registers a callback invoked after every state change. The
// callback runs outside the pipeline lock and must not call back into the
// pipeline.
func (p *EditPipeline) OnTransition(fn func(domain.PipelineState)) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.observer = fn
}

func (p *EditPipeline) State() domain.PipelineState {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

// Cancel requests cancellation of the in-flight request. Outside InProgress
// it is a no-op.
func (p *EditPipeline) Cancel(reason string) {
	p.mu.Lock()
	running := p.running
	source := p.source
	p.mu.Unlock()
	if !running {
		return
	}
	if reason == "" {
		reason = "cancelled by user"
	}
	source.Cancel(reason)
}

// Reset returns a terminal pipeline to Initial. Resetting while a request is
// in flight is rejected.
func (p *EditPipeline) Reset() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.running {
		return domain.ErrBusy
	}
	p.state = domain.StateInitial{}
	p.source.Reset()
	return nil
}

// Submit runs one request to a terminal state and returns its result. The
// returned error mirrors the terminal state: nil for Success, a
// *domain.CancelledError for Cancelled, the failure for Error.
func (p *EditPipeline) Submit(ctx context.Context, in PipelineInput) (*domain.EditResult, error) {
	p.mu.Lock()
	if p.running {
		p.mu.Unlock()
		return nil, domain.ErrBusy
	}
	p.running = true
	p.source.Reset()
	timeoutToken := domain.WithTimeout(p.timeout)
	token := domain.AnyToken(p.source.Token(), timeoutToken)
	p.mu.Unlock()

	defer func() {
		// Firing the timeout token after the outcome is settled stops its
		// timer and unblocks the watcher goroutines behind the combined token.
		timeoutToken.Cancel("request settled")
		p.mu.Lock()
		p.running = false
		p.mu.Unlock()
	}()

	started := time.Now()
	p.transition(inProgress(domain.StageAnalyzing, progressAnalyzing, "Analyzing image"))

	outcome := domain.FlatMap(p.resolveImage(ctx, in), func(image []byte) domain.Result[*domain.EditResult] {
		if err := token.Err(); err != nil {
			return domain.Fail[*domain.EditResult](err)
		}
		p.transition(inProgress(domain.StagePromptEngineering, progressPromptEngineering, "Preparing edit instructions"))
		return p.process(ctx, token, image, in, started)
	})

	final := domain.Fold(outcome,
		func(result *domain.EditResult) submitOutcome {
			p.transition(domain.StateSuccess{Result: result, OriginalImage: in.ImageBytes})
			return submitOutcome{result: result}
		},
		func(err error) submitOutcome {
			// A token that fired mid-call surfaces as a context error from
			// the backend; reroute it to Cancelled with the token's reason.
			if tokenErr := token.Err(); tokenErr != nil && !domain.IsCancelled(err) {
				if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
					err = tokenErr
				}
			}
			if domain.IsCancelled(err) {
				cancelled := &domain.CancelledError{}
				errors.As(err, &cancelled)
				p.transition(domain.StateCancelled{Reason: cancelled.Reason})
				return submitOutcome{err: err}
			}
			p.transition(domain.StateError{Message: err.Error(), OriginalImage: in.ImageBytes})
			return submitOutcome{err: err}
		},
	)
	return final.result, final.err
}

type submitOutcome struct {
	result *domain.EditResult
	err    error
}

// resolveImage loads and validates the input bytes before anything reaches
// the network.
func (p *EditPipeline) resolveImage(ctx context.Context, in PipelineInput) domain.Result[[]byte] {
	image := in.ImageBytes
	if len(image) == 0 && in.ImageKey != "" {
		loaded, err := p.loadFromStorage(ctx, in.ImageKey)
		if err != nil {
			return domain.Fail[[]byte](domain.WrapError(domain.ErrInvalidInput, "load image", err))
		}
		image = loaded
	}
	if len(image) == 0 {
		return domain.Fail[[]byte](domain.WrapError(
			domain.ErrInvalidInput, "validate image", errors.New("no image source provided")))
	}
	return domain.Ok(image)
}

func (p *EditPipeline) loadFromStorage(ctx context.Context, key string) ([]byte, error) {
	if p.storage == nil {
		return nil, errors.New("no image storage configured")
	}
	rc, err := p.storage.Open(ctx, key)
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	return io.ReadAll(rc)
}

func (p *EditPipeline) process(
	ctx context.Context,
	token *domain.CancelToken,
	image []byte,
	in PipelineInput,
	started time.Time,
) domain.Result[*domain.EditResult] {
	callCtx, release := token.Context(ctx)
	defer release()

	result := &domain.EditResult{
		ID:             uuid.NewString(),
		OriginalPrompt: in.Prompt,
		CreatedAt:      started.UTC(),
	}

	if in.Context.Type == domain.TypeSegmentation || in.Context.Type == domain.TypeObjectDetection {
		p.transition(inProgress(domain.StageAIProcessing, progressAIProcessing, "Waiting for the AI model"))
		return domain.Map(p.segment(callCtx, image, in.Context), func(seg *domain.SegmentationResult) *domain.EditResult {
			result.Segmentation = seg
			result.ProcessingTime = time.Since(started)
			return result
		})
	}

	return domain.FlatMap(p.analyze(callCtx, image, in.Context), func(analysis string) domain.Result[*domain.EditResult] {
		if err := token.Err(); err != nil {
			return domain.Fail[*domain.EditResult](err)
		}
		result.AnalysisPrompt = analysis
		p.transition(inProgress(domain.StageAIProcessing, progressAIProcessing, "Waiting for the AI model"))

		instruction := combineInstruction(in.Prompt, analysis, in.Context)
		return domain.Map(p.generate(callCtx, image, instruction), func(edited []byte) *domain.EditResult {
			result.EditedImage = edited
			result.ProcessingTime = time.Since(started)
			return result
		})
	})
}

// The collaborator wrappers never let a panic cross the pipeline boundary.

func (p *EditPipeline) analyze(ctx context.Context, image []byte, pc domain.ProcessingContext) (res domain.Result[string]) {
	defer recoverToResult(&res, "analyze image")
	prompt, err := p.editor.AnalyzeImage(ctx, image, pc)
	if err != nil {
		return domain.Fail[string](err)
	}
	return domain.Ok(prompt)
}

func (p *EditPipeline) generate(ctx context.Context, image []byte, instruction string) (res domain.Result[[]byte]) {
	defer recoverToResult(&res, "generate image")
	edited, err := p.editor.GenerateImage(ctx, image, instruction)
	if err != nil {
		return domain.Fail[[]byte](err)
	}
	return domain.Ok(edited)
}

func (p *EditPipeline) segment(ctx context.Context, image []byte, pc domain.ProcessingContext) (res domain.Result[*domain.SegmentationResult]) {
	defer recoverToResult(&res, "segment image")
	seg, err := p.editor.SegmentImage(ctx, image, pc)
	if err != nil {
		return domain.Fail[*domain.SegmentationResult](err)
	}
	return domain.Ok(seg)
}

func recoverToResult[T any](res *domain.Result[T], operation string) {
	if r := recover(); r != nil {
		*res = domain.Fail[T](domain.WrapError(domain.ErrUnexpected, operation, fmt.Errorf("panic: %v", r)))
	}
}

func (p *EditPipeline) transition(state domain.PipelineState) {
	p.mu.Lock()
	p.state = state
	observer := p.observer
	p.mu.Unlock()
	if observer != nil {
		observer(state)
	}
}

func inProgress(stage domain.ProcessingStage, progress float64, message string) domain.StateInProgress {
	return domain.StateInProgress{
		Progress: domain.ProcessingProgress{
			Stage:    stage,
			Progress: progress,
			Message:  message,
		},
		CanCancel: true,
	}
}

func combineInstruction(prompt, analysis string, pc domain.ProcessingContext) string {
	parts := make([]string, 0, 3+len(pc.Instructions))
	if strings.TrimSpace(prompt) != "" {
		parts = append(parts, strings.TrimSpace(prompt))
	}
	if strings.TrimSpace(analysis) != "" {
		parts = append(parts, strings.TrimSpace(analysis))
	}
	for _, instruction := range pc.Instructions {
		if strings.TrimSpace(instruction) != "" && instruction != prompt {
			parts = append(parts, strings.TrimSpace(instruction))
		}
	}
	return strings.Join(parts, "\n\n")
}
