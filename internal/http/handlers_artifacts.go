package httpx

import (
	"log/slog"
	"net/http"

	"github.com/qlora-pipeline/controlplane/internal/domain/model"
	apperrors "github.com/qlora-pipeline/controlplane/internal/errors"
	"github.com/qlora-pipeline/controlplane/internal/service"
)

// ArtifactHandlers serves the files jobs leave behind.
type ArtifactHandlers struct {
	Svc    *service.ArtifactService // Optional: nil answers 503
	Logger *slog.Logger
}

func (h *ArtifactHandlers) available(w http.ResponseWriter, r *http.Request) bool {
	if h.Svc == nil {
		WriteServiceError(w, r, h.Logger, apperrors.Unavailable("artifact browsing is not enabled"))
		return false
	}
	return true
}

// EvaluationResults handles GET /api/evaluation/results.
func (h *ArtifactHandlers) EvaluationResults(w http.ResponseWriter, r *http.Request) {
	if !h.available(w, r) {
		return
	}
	doc, err := h.Svc.EvaluationResults(r.Context(), r.URL.Query().Get("path"))
	if err != nil {
		WriteServiceError(w, r, h.Logger, err)
		return
	}
	WriteJSON(w, http.StatusOK, doc)
}

type adaptersResponse struct {
	Adapters []model.AdapterEntry `json:"adapters"`
}

// ListAdapters handles GET /api/adapters.
func (h *ArtifactHandlers) ListAdapters(w http.ResponseWriter, r *http.Request) {
	if !h.available(w, r) {
		return
	}
	adapters, err := h.Svc.ListAdapters(r.Context())
	if err != nil {
		WriteServiceError(w, r, h.Logger, err)
		return
	}
	WriteJSON(w, http.StatusOK, adaptersResponse{Adapters: adapters})
}

// DeleteAdapter handles DELETE /api/adapters.
func (h *ArtifactHandlers) DeleteAdapter(w http.ResponseWriter, r *http.Request) {
	if !h.available(w, r) {
		return
	}
	var req model.AdapterDeleteRequest
	if !DecodeJSON(w, r, &req) {
		return
	}
	res, err := h.Svc.DeleteAdapter(r.Context(), req)
	if err != nil {
		WriteServiceError(w, r, h.Logger, err)
		return
	}
	WriteJSON(w, http.StatusOK, res)
}

// StorageCatalog handles GET /api/storage/catalog.
func (h *ArtifactHandlers) StorageCatalog(w http.ResponseWriter, r *http.Request) {
	if !h.available(w, r) {
		return
	}
	cat, err := h.Svc.StorageCatalog(r.Context())
	if err != nil {
		WriteServiceError(w, r, h.Logger, err)
		return
	}
	WriteJSON(w, http.StatusOK, cat)
}
