package httpx

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/qlora-pipeline/controlplane/internal/service"
)

// RouterServices holds all the services needed by the HTTP router.
type RouterServices struct {
	Jobs      *service.JobService
	History   *service.HistoryService  // Optional: archive listing
	Artifacts *service.ArtifactService // Optional: evaluation results, adapters, storage catalog
	Logger    *slog.Logger             // Logger for request and handler errors (optional)

	// WSPollInterval bounds how long a websocket tail waits without a wakeup.
	WSPollInterval time.Duration
	// CORSOrigins lists browser origins allowed to call the API; "*" allows any.
	CORSOrigins []string
}

// NewRouter creates and configures the API router. Cross-cutting middleware
// (logging, recovery, compression) is applied by the caller.
func NewRouter(services RouterServices) http.Handler {
	mux := http.NewServeMux()

	jobHandlers := &JobHandlers{Svc: services.Jobs, History: services.History, Logger: services.Logger}
	logStream := &LogStreamHandler{
		Svc:          services.Jobs,
		PollInterval: services.WSPollInterval,
		Origins:      services.CORSOrigins,
		Logger:       services.Logger,
	}

	registerHealthRoutes(mux)
	registerSubmitRoutes(mux, jobHandlers)
	registerJobRoutes(mux, jobHandlers, logStream)
	registerArtifactRoutes(mux, &ArtifactHandlers{Svc: services.Artifacts, Logger: services.Logger})

	if len(services.CORSOrigins) == 0 {
		return mux
	}
	return CORS(services.CORSOrigins)(mux)
}

func registerHealthRoutes(mux *http.ServeMux) {
	// GET patterns also match HEAD.
	mux.HandleFunc("GET /healthz", healthHandler)
	mux.HandleFunc("GET /health", healthHandler)
}

func registerSubmitRoutes(mux *http.ServeMux, h *JobHandlers) {
	mux.HandleFunc("POST /api/train", h.Train)
	mux.HandleFunc("GET /api/train/parameters", h.TrainParameters)
	mux.HandleFunc("POST /api/evaluate", h.Evaluate)
	mux.HandleFunc("POST /api/merge", h.Merge)
	mux.HandleFunc("POST /api/publish", h.Publish)
	mux.HandleFunc("POST /api/publish/hub", h.Publish)
}

func registerJobRoutes(mux *http.ServeMux, h *JobHandlers, logs *LogStreamHandler) {
	mux.HandleFunc("GET /api/jobs", h.List)
	mux.HandleFunc("GET /api/jobs/stats", h.Stats)
	mux.HandleFunc("GET /api/jobs/{id}", h.Get)
	mux.HandleFunc("GET /api/jobs/{id}/logs", h.Logs)
	mux.Handle("GET /api/jobs/{id}/logs/ws", logs)
	mux.HandleFunc("GET /api/history", h.ListHistory)
}

func registerArtifactRoutes(mux *http.ServeMux, h *ArtifactHandlers) {
	mux.HandleFunc("GET /api/evaluation/results", h.EvaluationResults)
	mux.HandleFunc("GET /api/adapters", h.ListAdapters)
	mux.HandleFunc("DELETE /api/adapters", h.DeleteAdapter)
	mux.HandleFunc("GET /api/storage/catalog", h.StorageCatalog)
}
