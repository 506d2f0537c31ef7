package metrics

import (
	"context"

	"github.com/pixelmend/pixelmend/internal/core/domain"
	"github.com/pixelmend/pixelmend/internal/core/ports"
)

// InstrumentedEditor decorates an ImageEditor so every backend call is counted
// by operation and outcome. The worker wraps its editor with it before handing
// the editor to the processing use case.
type InstrumentedEditor struct {
	inner   ports.ImageEditor
	metrics *WorkerMetrics
	service string
}

func InstrumentEditor(inner ports.ImageEditor, m *WorkerMetrics, service string) *InstrumentedEditor {
	return &InstrumentedEditor{inner: inner, metrics: m, service: service}
}

func (e *InstrumentedEditor) AnalyzeImage(ctx context.Context, image []byte, pc domain.ProcessingContext) (string, error) {
	prompt, err := e.inner.AnalyzeImage(ctx, image, pc)
	e.metrics.RecordBackendCall(e.service, "analyze", err)
	return prompt, err
}

func (e *InstrumentedEditor) GenerateImage(ctx context.Context, image []byte, instruction string) ([]byte, error) {
	edited, err := e.inner.GenerateImage(ctx, image, instruction)
	e.metrics.RecordBackendCall(e.service, "generate", err)
	return edited, err
}

func (e *InstrumentedEditor) SegmentImage(ctx context.Context, image []byte, pc domain.ProcessingContext) (*domain.SegmentationResult, error) {
	seg, err := e.inner.SegmentImage(ctx, image, pc)
	e.metrics.RecordBackendCall(e.service, "segment", err)
	return seg, err
}
