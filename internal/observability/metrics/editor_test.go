package metrics

import (
	"context"
	"errors"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/pixelmend/pixelmend/internal/core/domain"
)

type editorStub struct {
	analyzeErr  error
	generateErr error
	segmentErr  error
}

func (s *editorStub) AnalyzeImage(context.Context, []byte, domain.ProcessingContext) (string, error) {
	return "prompt", s.analyzeErr
}

func (s *editorStub) GenerateImage(context.Context, []byte, string) ([]byte, error) {
	return []byte{0x1}, s.generateErr
}

func (s *editorStub) SegmentImage(context.Context, []byte, domain.ProcessingContext) (*domain.SegmentationResult, error) {
	return &domain.SegmentationResult{}, s.segmentErr
}

func TestInstrumentedEditorCountsBackendCalls(t *testing.T) {
	wm := NewWorkerMetrics("worker")
	editor := InstrumentEditor(&editorStub{generateErr: errors.New("boom")}, wm, "worker")

	ctx := context.Background()
	if _, err := editor.AnalyzeImage(ctx, []byte{0x1}, domain.ProcessingContext{}); err != nil {
		t.Fatalf("AnalyzeImage: %v", err)
	}
	if _, err := editor.GenerateImage(ctx, []byte{0x1}, "fix it"); err == nil {
		t.Fatal("expected generate error to pass through")
	}
	if _, err := editor.SegmentImage(ctx, []byte{0x1}, domain.ProcessingContext{}); err != nil {
		t.Fatalf("SegmentImage: %v", err)
	}

	rec := httptest.NewRecorder()
	wm.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	body := rec.Body.String()

	for _, want := range []string{
		`pixelmend_worker_backend_calls_total{operation="analyze",outcome="success",service="worker"} 1`,
		`pixelmend_worker_backend_calls_total{operation="generate",outcome="error",service="worker"} 1`,
		`pixelmend_worker_backend_calls_total{operation="segment",outcome="success",service="worker"} 1`,
	} {
		if !strings.Contains(body, want) {
			t.Fatalf("metrics output missing %q:\n%s", want, body)
		}
	}
}
