// Package httpx provides HTTP handlers and utilities for the QLoRA pipeline control plane API.
package httpx

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/qlora-pipeline/controlplane/internal/domain/model"
	apperrors "github.com/qlora-pipeline/controlplane/internal/errors"
	"github.com/qlora-pipeline/controlplane/internal/service"
)

const (
	defaultHistoryLimit = 50
	maxHistoryLimit     = 500
)

// JobHandlers provides HTTP handlers for job-related operations.
type JobHandlers struct {
	Svc     *service.JobService
	History *service.HistoryService // Optional: nil disables /api/history
	Logger  *slog.Logger
}

// Train handles POST /api/train.
func (h *JobHandlers) Train(w http.ResponseWriter, r *http.Request) {
	var req model.TrainRequest
	if !DecodeJSON(w, r, &req) {
		return
	}
	resp, err := h.Svc.SubmitTrain(r.Context(), req)
	h.writeSubmit(w, r, resp, err)
}

// Evaluate handles POST /api/evaluate.
func (h *JobHandlers) Evaluate(w http.ResponseWriter, r *http.Request) {
	var req model.EvaluateRequest
	if !DecodeJSON(w, r, &req) {
		return
	}
	resp, err := h.Svc.SubmitEvaluate(r.Context(), req)
	h.writeSubmit(w, r, resp, err)
}

// Merge handles POST /api/merge.
func (h *JobHandlers) Merge(w http.ResponseWriter, r *http.Request) {
	var req model.MergeRequest
	if !DecodeJSON(w, r, &req) {
		return
	}
	resp, err := h.Svc.SubmitMerge(r.Context(), req)
	h.writeSubmit(w, r, resp, err)
}

// Publish handles POST /api/publish and its /api/publish/hub alias.
func (h *JobHandlers) Publish(w http.ResponseWriter, r *http.Request) {
	var req model.PublishRequest
	if !DecodeJSON(w, r, &req) {
		return
	}
	resp, err := h.Svc.SubmitPublish(r.Context(), req)
	h.writeSubmit(w, r, resp, err)
}

func (h *JobHandlers) writeSubmit(w http.ResponseWriter, r *http.Request, resp model.SubmitResponse, err error) {
	if err != nil {
		WriteServiceError(w, r, h.Logger, err)
		return
	}
	WriteJSON(w, http.StatusAccepted, resp)
}

type listJobsResponse struct {
	Jobs []model.Job `json:"jobs"`
}

// List handles GET /api/jobs.
func (h *JobHandlers) List(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	opts := service.JobListOptions{
		Kind:   model.JobKind(strings.ToLower(strings.TrimSpace(q.Get("kind")))),
		Status: model.JobStatus(strings.ToLower(strings.TrimSpace(q.Get("status")))),
		Filter: q.Get("filter"),
	}
	if opts.Kind != "" && !opts.Kind.Valid() {
		WriteServiceError(w, r, h.Logger, apperrors.ValidationField("kind", "unknown job kind: "+string(opts.Kind)))
		return
	}
	if opts.Status != "" && !opts.Status.Valid() {
		WriteServiceError(w, r, h.Logger, apperrors.ValidationField("status", "unknown job status: "+string(opts.Status)))
		return
	}

	jobs, err := h.Svc.List(r.Context(), opts)
	if err != nil {
		WriteServiceError(w, r, h.Logger, err)
		return
	}
	WriteJSON(w, http.StatusOK, listJobsResponse{Jobs: jobs})
}

// Get handles GET /api/jobs/{id}.
func (h *JobHandlers) Get(w http.ResponseWriter, r *http.Request) {
	j, err := h.Svc.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		WriteServiceError(w, r, h.Logger, err)
		return
	}
	WriteJSON(w, http.StatusOK, j)
}

// Stats handles GET /api/jobs/stats.
func (h *JobHandlers) Stats(w http.ResponseWriter, r *http.Request) {
	WriteJSON(w, http.StatusOK, h.Svc.Stats(r.Context()))
}

// Logs handles GET /api/jobs/{id}/logs?since=N.
func (h *JobHandlers) Logs(w http.ResponseWriter, r *http.Request) {
	since, err := parseSince(r)
	if err != nil {
		WriteServiceError(w, r, h.Logger, err)
		return
	}
	page, err := h.Svc.Logs(r.Context(), r.PathValue("id"), since)
	if err != nil {
		WriteServiceError(w, r, h.Logger, err)
		return
	}
	WriteJSON(w, http.StatusOK, page)
}

type trainParametersResponse struct {
	Parameters []model.TrainParamSpec `json:"parameters"`
}

// TrainParameters handles GET /api/train/parameters.
func (h *JobHandlers) TrainParameters(w http.ResponseWriter, _ *http.Request) {
	WriteJSON(w, http.StatusOK, trainParametersResponse{Parameters: h.Svc.TrainParameters()})
}

type historyResponse struct {
	Entries []*model.HistoryEntry `json:"entries"`
	Limit   int                   `json:"limit"`
	Offset  int                   `json:"offset"`
}

// ListHistory handles GET /api/history.
func (h *JobHandlers) ListHistory(w http.ResponseWriter, r *http.Request) {
	if h.History == nil {
		WriteServiceError(w, r, h.Logger, apperrors.Unavailable("job history is not enabled"))
		return
	}

	limit, offset := ParseLimitOffset(r, defaultHistoryLimit, maxHistoryLimit)
	q := r.URL.Query()
	opts := model.HistoryListOptions{
		Kind:   model.JobKind(strings.ToLower(strings.TrimSpace(q.Get("kind")))),
		Status: model.JobStatus(strings.ToLower(strings.TrimSpace(q.Get("status")))),
		Limit:  limit,
		Offset: offset,
	}

	entries, err := h.History.List(r.Context(), opts)
	if err != nil {
		WriteServiceError(w, r, h.Logger, err)
		return
	}
	if entries == nil {
		entries = []*model.HistoryEntry{}
	}
	WriteJSON(w, http.StatusOK, historyResponse{Entries: entries, Limit: limit, Offset: offset})
}
