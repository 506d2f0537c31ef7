package httpadapter

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/pixelmend/pixelmend/internal/core/domain"
	"github.com/pixelmend/pixelmend/internal/core/ports"
)

type submitterFake struct {
	req ports.EditRequest
	job *domain.EditJob
	err error
}

func (f *submitterFake) Submit(_ context.Context, req ports.EditRequest) (*domain.EditJob, error) {
	f.req = req
	if f.err != nil {
		return nil, f.err
	}
	return f.job, nil
}

type readerFake struct {
	job  *domain.EditJob
	jobs []domain.EditJob
	err  error
}

func (f *readerFake) GetByID(context.Context, string) (*domain.EditJob, error) {
	return f.job, f.err
}

func (f *readerFake) ListRecent(context.Context, int) ([]domain.EditJob, error) {
	return f.jobs, f.err
}

type cancellerFake struct {
	id     string
	reason string
	err    error
}

func (f *cancellerFake) Cancel(_ context.Context, id, reason string) error {
	f.id, f.reason = id, reason
	return f.err
}

type resenderFake struct {
	err       error
	remaining time.Duration
}

func (f *resenderFake) Resend(context.Context, string) error { return f.err }
func (f *resenderFake) RemainingCooldown() time.Duration     { return f.remaining }

type storageFake struct {
	data map[string][]byte
}

func (f *storageFake) Save(_ context.Context, key string, data io.Reader) error {
	b, err := io.ReadAll(data)
	if err != nil {
		return err
	}
	if f.data == nil {
		f.data = map[string][]byte{}
	}
	f.data[key] = b
	return nil
}

func (f *storageFake) Open(_ context.Context, key string) (io.ReadCloser, error) {
	b, ok := f.data[key]
	if !ok {
		return nil, domain.WrapError(domain.ErrJobNotFound, "open", errors.New(key))
	}
	return io.NopCloser(bytes.NewReader(b)), nil
}

func newTestRouter(submitter *submitterFake, reader *readerFake, canceller *cancellerFake, resender *resenderFake, storage *storageFake, options RouterOptions) http.Handler {
	if submitter == nil {
		submitter = &submitterFake{}
	}
	if reader == nil {
		reader = &readerFake{}
	}
	if canceller == nil {
		canceller = &cancellerFake{}
	}
	if resender == nil {
		resender = &resenderFake{}
	}
	if storage == nil {
		storage = &storageFake{}
	}
	return NewRouter(submitter, reader, canceller, resender, storage, nil, options).Handler()
}

func multipartBody(t *testing.T, fields map[string]string, imageName string, image []byte) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for k, v := range fields {
		if err := mw.WriteField(k, v); err != nil {
			t.Fatalf("write field %s: %v", k, err)
		}
	}
	fw, err := mw.CreateFormFile("image", imageName)
	if err != nil {
		t.Fatalf("create form file: %v", err)
	}
	if _, err := fw.Write(image); err != nil {
		t.Fatalf("write image: %v", err)
	}
	if err := mw.Close(); err != nil {
		t.Fatalf("close writer: %v", err)
	}
	return &buf, mw.FormDataContentType()
}

func TestSubmitEditAcceptsUpload(t *testing.T) {
	submitter := &submitterFake{job: &domain.EditJob{ID: "j-1", Type: domain.TypeEnhance, Status: domain.JobQueued}}
	handler := newTestRouter(submitter, nil, nil, nil, nil, RouterOptions{})

	body, contentType := multipartBody(t, map[string]string{
		"prompt":  "brighten it",
		"type":    "enhance",
		"quality": "high",
	}, "photo.jpg", []byte("jpeg-bytes"))

	req := httptest.NewRequest(http.MethodPost, "/v1/edits", body)
	req.Header.Set("Content-Type", contentType)
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)

	if res.Code != http.StatusAccepted {
		t.Fatalf("expected 202, got %d: %s", res.Code, res.Body.String())
	}
	if submitter.req.Prompt != "brighten it" || submitter.req.Quality != domain.QualityHigh {
		t.Fatalf("request not forwarded: %+v", submitter.req)
	}

	var job domain.EditJob
	if err := json.NewDecoder(res.Body).Decode(&job); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if job.ID != "j-1" {
		t.Fatalf("unexpected job in response: %+v", job)
	}
}

func TestSubmitEditRejectsOversizedImage(t *testing.T) {
	submitter := &submitterFake{}
	handler := newTestRouter(submitter, nil, nil, nil, nil, RouterOptions{MaxImageBytes: 16})

	body, contentType := multipartBody(t, nil, "big.jpg", bytes.Repeat([]byte("x"), 64))
	req := httptest.NewRequest(http.MethodPost, "/v1/edits", body)
	req.Header.Set("Content-Type", contentType)
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)

	if res.Code != http.StatusRequestEntityTooLarge {
		t.Fatalf("expected 413, got %d", res.Code)
	}
	if submitter.req.Image != nil {
		t.Fatal("oversized upload must not reach the submitter")
	}
}

func TestSubmitEditRejectsUnknownType(t *testing.T) {
	handler := newTestRouter(nil, nil, nil, nil, nil, RouterOptions{})

	body, contentType := multipartBody(t, map[string]string{"type": "hologram"}, "photo.jpg", []byte("x"))
	req := httptest.NewRequest(http.MethodPost, "/v1/edits", body)
	req.Header.Set("Content-Type", contentType)
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)

	if res.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", res.Code)
	}
}

func TestGetEditMapsNotFound(t *testing.T) {
	reader := &readerFake{err: domain.WrapError(domain.ErrJobNotFound, "get edit job", errors.New("id=ghost"))}
	handler := newTestRouter(nil, reader, nil, nil, nil, RouterOptions{})

	req := httptest.NewRequest(http.MethodGet, "/v1/edits/ghost", nil)
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)

	if res.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", res.Code)
	}
}

func TestCancelEditForwardsReason(t *testing.T) {
	canceller := &cancellerFake{}
	handler := newTestRouter(nil, nil, canceller, nil, nil, RouterOptions{})

	req := httptest.NewRequest(http.MethodPost, "/v1/edits/j-1/cancel",
		strings.NewReader(`{"reason":"changed my mind"}`))
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)

	if res.Code != http.StatusAccepted {
		t.Fatalf("expected 202, got %d", res.Code)
	}
	if canceller.id != "j-1" || canceller.reason != "changed my mind" {
		t.Fatalf("cancel not forwarded: id=%q reason=%q", canceller.id, canceller.reason)
	}
}

func TestDownloadResultRequiresSuccess(t *testing.T) {
	reader := &readerFake{job: &domain.EditJob{ID: "j-1", Status: domain.JobProcessing}}
	handler := newTestRouter(nil, reader, nil, nil, nil, RouterOptions{})

	req := httptest.NewRequest(http.MethodGet, "/v1/edits/j-1/result", nil)
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)

	if res.Code != http.StatusConflict {
		t.Fatalf("expected 409 for unfinished job, got %d", res.Code)
	}
}

func TestDownloadResultStreamsStoredImage(t *testing.T) {
	storage := &storageFake{data: map[string][]byte{"j-1_result.png": []byte("edited")}}
	reader := &readerFake{job: &domain.EditJob{ID: "j-1", Status: domain.JobSucceeded, ResultKey: "j-1_result.png"}}
	handler := newTestRouter(nil, reader, nil, nil, storage, RouterOptions{})

	req := httptest.NewRequest(http.MethodGet, "/v1/edits/j-1/result", nil)
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)

	if res.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", res.Code)
	}
	if res.Body.String() != "edited" {
		t.Fatalf("unexpected body %q", res.Body.String())
	}
}

func TestResendVerificationRateLimitSetsRetryAfter(t *testing.T) {
	resender := &resenderFake{
		err:       domain.WrapError(domain.ErrRateLimited, "resend verification", errors.New("please wait 42 seconds")),
		remaining: 42 * time.Second,
	}
	handler := newTestRouter(nil, nil, nil, resender, nil, RouterOptions{})

	req := httptest.NewRequest(http.MethodPost, "/v1/account/verification/resend",
		strings.NewReader(`{"email":"u@example.com"}`))
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)

	if res.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429, got %d", res.Code)
	}
	if res.Header().Get("Retry-After") == "" {
		t.Fatal("expected Retry-After header")
	}
}

func TestRequestIDHeaderIsSet(t *testing.T) {
	handler := newTestRouter(nil, nil, nil, nil, nil, RouterOptions{})

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)

	if res.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", res.Code)
	}
	if res.Header().Get(requestIDHeader) == "" {
		t.Fatal("expected generated request id header")
	}
}
