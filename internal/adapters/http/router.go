package httpadapter

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/pixelmend/pixelmend/internal/core/domain"
	"github.com/pixelmend/pixelmend/internal/core/ports"
	"github.com/pixelmend/pixelmend/internal/observability/metrics"
)

const serviceName = "api"

type Router struct {
	submitter ports.EditSubmitter
	reader    ports.EditReader
	canceller ports.EditCanceller
	resender  ports.VerificationResender
	storage   ports.ObjectStorage
	metrics   *metrics.HTTPServerMetrics
	logger    *slog.Logger

	maxImageBytes     int64
	rateLimitRPS      float64
	rateLimitBurst    int
	maxConcurrent     int
	backpressureDelay time.Duration
}

type RouterOptions struct {
	MaxImageBytes  int64
	RateLimitRPS   float64
	RateLimitBurst int
	MaxConcurrent  int
	Logger         *slog.Logger
}

func NewRouter(
	submitter ports.EditSubmitter,
	reader ports.EditReader,
	canceller ports.EditCanceller,
	resender ports.VerificationResender,
	storage ports.ObjectStorage,
	m *metrics.HTTPServerMetrics,
	options RouterOptions,
) *Router {
	maxImageBytes := options.MaxImageBytes
	if maxImageBytes <= 0 {
		maxImageBytes = 10 << 20
	}
	maxConcurrent := options.MaxConcurrent
	if maxConcurrent <= 0 {
		maxConcurrent = 64
	}
	return &Router{
		submitter:         submitter,
		reader:            reader,
		canceller:         canceller,
		resender:          resender,
		storage:           storage,
		metrics:           m,
		logger:            options.Logger,
		maxImageBytes:     maxImageBytes,
		rateLimitRPS:      options.RateLimitRPS,
		rateLimitBurst:    options.RateLimitBurst,
		maxConcurrent:     maxConcurrent,
		backpressureDelay: 50 * time.Millisecond,
	}
}

func (rt *Router) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", rt.healthz)
	mux.HandleFunc("/v1/edits", rt.edits)
	mux.HandleFunc("/v1/edits/", rt.editByID)
	mux.HandleFunc("/v1/account/verification/resend", rt.resendVerification)

	var handler http.Handler = mux
	handler = backpressureMiddleware(handler, rt.maxConcurrent, rt.backpressureDelay)
	if rt.rateLimitRPS > 0 {
		handler = rateLimitMiddleware(handler, rt.rateLimitRPS, rt.rateLimitBurst, rt.metrics)
	}
	if rt.metrics != nil {
		handler = rt.metrics.Middleware(serviceName, handler)
	}
	handler = accessLogMiddleware(rt.logger, handler)
	return requestIDMiddleware(handler)
}

func (rt *Router) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (rt *Router) edits(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		rt.submitEdit(w, r)
	case http.MethodGet:
		rt.listEdits(w, r)
	default:
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
	}
}

func (rt *Router) submitEdit(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, rt.maxImageBytes+1<<20)

	file, fileHeader, err := r.FormFile("image")
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "multipart field 'image' is required"})
		return
	}
	defer file.Close()

	if fileHeader.Size > rt.maxImageBytes {
		if rt.metrics != nil {
			rt.metrics.RecordValidationRejected(serviceName)
		}
		writeJSON(w, http.StatusRequestEntityTooLarge, map[string]string{
			"error": "image exceeds the size limit of " + strconv.FormatInt(rt.maxImageBytes, 10) + " bytes",
		})
		return
	}

	pt, err := domain.ParseProcessingType(r.FormValue("type"))
	if err != nil {
		rt.writeError(w, err)
		return
	}
	quality, err := domain.ParseQualityLevel(r.FormValue("quality"))
	if err != nil {
		rt.writeError(w, err)
		return
	}
	priority, err := domain.ParsePerformancePriority(r.FormValue("priority"))
	if err != nil {
		rt.writeError(w, err)
		return
	}

	var annotations []domain.AnnotationPoint
	if raw := r.FormValue("annotations"); raw != "" {
		if err := json.Unmarshal([]byte(raw), &annotations); err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid annotations json"})
			return
		}
	}

	job, err := rt.submitter.Submit(r.Context(), ports.EditRequest{
		Image:       file,
		Filename:    fileHeader.Filename,
		Prompt:      r.FormValue("prompt"),
		Type:        pt,
		Quality:     quality,
		Priority:    priority,
		Annotations: annotations,
	})
	if err != nil {
		rt.writeError(w, err)
		return
	}

	if rt.metrics != nil {
		rt.metrics.RecordEditSubmit(serviceName, string(job.Type), int(fileHeader.Size))
	}
	writeJSON(w, http.StatusAccepted, job)
}

func (rt *Router) listEdits(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "limit must be a non-negative integer"})
			return
		}
		limit = n
	}

	jobs, err := rt.reader.ListRecent(r.Context(), limit)
	if err != nil {
		rt.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"jobs": jobs})
}

func (rt *Router) editByID(w http.ResponseWriter, r *http.Request) {
	rest := strings.TrimPrefix(r.URL.Path, "/v1/edits/")
	if rest == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "job id is required"})
		return
	}

	if id, found := strings.CutSuffix(rest, "/cancel"); found {
		rt.cancelEdit(w, r, id)
		return
	}
	if id, found := strings.CutSuffix(rest, "/result"); found {
		rt.downloadResult(w, r, id)
		return
	}

	if r.Method != http.MethodGet {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}
	job, err := rt.reader.GetByID(r.Context(), rest)
	if err != nil {
		rt.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, job)
}

func (rt *Router) cancelEdit(w http.ResponseWriter, r *http.Request, id string) {
	if r.Method != http.MethodPost {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}

	var req struct {
		Reason string `json:"reason"`
	}
	if r.Body != nil {
		_ = json.NewDecoder(r.Body).Decode(&req)
	}

	if err := rt.canceller.Cancel(r.Context(), id, req.Reason); err != nil {
		rt.writeError(w, err)
		return
	}
	if rt.metrics != nil {
		rt.metrics.RecordEditCancel(serviceName)
	}
	writeJSON(w, http.StatusAccepted, map[string]string{"status": "cancel requested"})
}

func (rt *Router) downloadResult(w http.ResponseWriter, r *http.Request, id string) {
	if r.Method != http.MethodGet {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}

	job, err := rt.reader.GetByID(r.Context(), id)
	if err != nil {
		rt.writeError(w, err)
		return
	}
	if job.Status != domain.JobSucceeded || job.ResultKey == "" {
		writeJSON(w, http.StatusConflict, map[string]string{"error": "job has no result yet"})
		return
	}

	rc, err := rt.storage.Open(r.Context(), job.ResultKey)
	if err != nil {
		rt.writeError(w, err)
		return
	}
	defer rc.Close()

	w.Header().Set("Content-Type", "application/octet-stream")
	w.WriteHeader(http.StatusOK)
	_, _ = io.Copy(w, rc)
}

func (rt *Router) resendVerification(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}

	var req struct {
		Email string `json:"email"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
		return
	}

	if err := rt.resender.Resend(r.Context(), strings.TrimSpace(req.Email)); err != nil {
		if rt.metrics != nil {
			rt.metrics.RecordResend(serviceName, resendOutcome(err))
		}
		if domain.IsKind(err, domain.ErrRateLimited) {
			retryAfter := int(rt.resender.RemainingCooldown().Seconds()) + 1
			w.Header().Set("Retry-After", strconv.Itoa(retryAfter))
		}
		rt.writeError(w, err)
		return
	}

	if rt.metrics != nil {
		rt.metrics.RecordResend(serviceName, "sent")
	}
	writeJSON(w, http.StatusAccepted, map[string]string{"status": "verification email queued"})
}

func resendOutcome(err error) string {
	switch {
	case domain.IsKind(err, domain.ErrRateLimited):
		return "rate_limited"
	case domain.IsKind(err, domain.ErrAuthentication):
		return "no_session"
	case domain.IsKind(err, domain.ErrInvalidInput):
		return "already_verified"
	default:
		return "error"
	}
}

func (rt *Router) writeError(w http.ResponseWriter, err error) {
	if rt.metrics != nil && domain.IsKind(err, domain.ErrInvalidInput) {
		rt.metrics.RecordValidationRejected(serviceName)
	}
	writeJSON(w, mapErrorToHTTPStatus(err), map[string]string{"error": errorMessage(err)})
}

func errorMessage(err error) string {
	var cancelled *domain.CancelledError
	if errors.As(err, &cancelled) {
		return cancelled.Reason
	}
	return err.Error()
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
