package httpx

import (
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/qlora-pipeline/controlplane/internal/data"
	domainjob "github.com/qlora-pipeline/controlplane/internal/domain/job"
	"github.com/qlora-pipeline/controlplane/internal/domain/model"
	apperrors "github.com/qlora-pipeline/controlplane/internal/errors"
	"github.com/qlora-pipeline/controlplane/internal/mocks"
	"github.com/qlora-pipeline/controlplane/internal/service"
)

const artifactRegistry = `{"base_model": "org/base", "adapters": [
	{"name": "support", "path": "output/support", "training_date": "2024-01-10"}
]}`

func newArtifactRouter(t *testing.T, custom func(root string) service.ArtifactServiceOptions) (http.Handler, string) {
	t.Helper()
	root := t.TempDir()
	opts := service.ArtifactServiceOptions{
		ProjectRoot: root,
		Adapters:    data.NewAdapterRegistryFile(filepath.Join(root, "config", "adapters.json")),
	}
	if custom != nil {
		opts = custom(root)
	}
	svc, err := service.NewArtifactService(opts)
	require.NoError(t, err)

	ctrl := gomock.NewController(t)
	jobs := service.MustNewJobService(service.JobServiceOptions{
		Registry: domainjob.NewRegistry(domainjob.RegistryOptions{}),
		Executor: mocks.NewMockJobExecutor(ctrl),
		Tasks:    mocks.NewMockTaskTargets(ctrl),
	})
	return NewRouter(RouterServices{Jobs: jobs, Artifacts: svc}), root
}

func putFile(t *testing.T, root, rel, content string) {
	t.Helper()
	p := filepath.Join(root, filepath.FromSlash(rel))
	require.NoError(t, os.MkdirAll(filepath.Dir(p), 0o755))
	require.NoError(t, os.WriteFile(p, []byte(content), 0o644))
}

func serve(h http.Handler, method, target, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, target, nil)
	} else {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestEvaluationResults(t *testing.T) {
	t.Run("latest", func(t *testing.T) {
		h, root := newArtifactRouter(t, nil)
		putFile(t, root, "evaluation/latest_evaluation.json", `{"aggregate_metrics": {"avg_relevance": 4}}`)

		rec := serve(h, http.MethodGet, "/api/evaluation/results", "")
		require.Equal(t, http.StatusOK, rec.Code)
		body := decodeBody[map[string]any](t, rec)
		assert.Equal(t, map[string]any{"avg_relevance": float64(4)}, body["aggregate_metrics"])
		assert.Equal(t, filepath.Join(root, "evaluation", "latest_evaluation.json"),
			body["metadata"].(map[string]any)["source_path"])
	})

	t.Run("none yet", func(t *testing.T) {
		h, _ := newArtifactRouter(t, nil)
		rec := serve(h, http.MethodGet, "/api/evaluation/results", "")
		require.Equal(t, http.StatusNotFound, rec.Code)
		assert.Equal(t, "No evaluation results found", decodeBody[ErrorResponse](t, rec).Message)
	})

	t.Run("named path", func(t *testing.T) {
		h, root := newArtifactRouter(t, nil)
		putFile(t, root, "evaluation/run1/evaluation_results.json", `{"evaluations": []}`)
		rec := serve(h, http.MethodGet, "/api/evaluation/results?path="+urlEscape("evaluation/run1/evaluation_results.json"), "")
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, []any{}, decodeBody[map[string]any](t, rec)["evaluations"])
	})

	t.Run("invalid json", func(t *testing.T) {
		h, root := newArtifactRouter(t, nil)
		putFile(t, root, "evaluation/bad.json", `{`)
		rec := serve(h, http.MethodGet, "/api/evaluation/results?path=evaluation/bad.json", "")
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestAdapters(t *testing.T) {
	t.Run("list", func(t *testing.T) {
		h, root := newArtifactRouter(t, nil)
		putFile(t, root, "config/adapters.json", artifactRegistry)

		rec := serve(h, http.MethodGet, "/api/adapters", "")
		require.Equal(t, http.StatusOK, rec.Code)
		assert.JSONEq(t, `{"adapters":[{"name":"support","path":"output/support","training_date":"2024-01-10"}]}`, rec.Body.String())
	})

	t.Run("list without registry", func(t *testing.T) {
		h, _ := newArtifactRouter(t, nil)
		rec := serve(h, http.MethodGet, "/api/adapters", "")
		require.Equal(t, http.StatusOK, rec.Code)
		assert.JSONEq(t, `{"adapters":[]}`, rec.Body.String())
	})

	t.Run("delete with files", func(t *testing.T) {
		h, root := newArtifactRouter(t, nil)
		putFile(t, root, "config/adapters.json", artifactRegistry)
		putFile(t, root, "output/support/adapter_config.json", "{}")

		rec := serve(h, http.MethodDelete, "/api/adapters", `{"path":"output/support","remove_files":true}`)
		require.Equal(t, http.StatusOK, rec.Code)
		res := decodeBody[model.AdapterDeleteResult](t, rec)
		assert.Equal(t, "support", res.Removed.Name())
		assert.True(t, res.RemovedFiles)
		assert.NoDirExists(t, filepath.Join(root, "output", "support"))

		rec = serve(h, http.MethodGet, "/api/adapters", "")
		assert.JSONEq(t, `{"adapters":[]}`, rec.Body.String())
	})

	t.Run("delete unknown", func(t *testing.T) {
		h, root := newArtifactRouter(t, nil)
		putFile(t, root, "config/adapters.json", artifactRegistry)
		rec := serve(h, http.MethodDelete, "/api/adapters", `{"path":"output/other"}`)
		require.Equal(t, http.StatusNotFound, rec.Code)
		assert.Equal(t, "Adapter not found", decodeBody[ErrorResponse](t, rec).Message)
	})

	t.Run("delete outside root", func(t *testing.T) {
		h, root := newArtifactRouter(t, nil)
		putFile(t, root, "config/adapters.json", artifactRegistry)
		rec := serve(h, http.MethodDelete, "/api/adapters", `{"path":"../output/support","remove_files":true}`)
		require.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Equal(t, "path", decodeBody[ErrorResponse](t, rec).Field)
	})

	t.Run("delete requires body", func(t *testing.T) {
		h, _ := newArtifactRouter(t, nil)
		rec := serve(h, http.MethodDelete, "/api/adapters", "")
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("registry unreadable", func(t *testing.T) {
		catalog := mocks.NewMockAdapterCatalog(gomock.NewController(t))
		catalog.EXPECT().List(gomock.Any()).Return(nil, apperrors.Internal("Failed to parse adapters.json"))
		h, _ := newArtifactRouter(t, func(root string) service.ArtifactServiceOptions {
			return service.ArtifactServiceOptions{ProjectRoot: root, Adapters: catalog}
		})
		rec := serve(h, http.MethodGet, "/api/adapters", "")
		assert.Equal(t, http.StatusInternalServerError, rec.Code)
	})
}

func TestStorageCatalog(t *testing.T) {
	h, root := newArtifactRouter(t, nil)
	putFile(t, root, "config/adapters.json", artifactRegistry)
	putFile(t, root, "predictions/p.jsonl", "")

	rec := serve(h, http.MethodGet, "/api/storage/catalog", "")
	require.Equal(t, http.StatusOK, rec.Code)
	cat := decodeBody[model.StorageCatalog](t, rec)
	assert.Contains(t, cat.Models, model.CatalogEntry{Path: "output/support", Label: "support (2024-01-10) output/support"})
	assert.Equal(t, []model.CatalogEntry{{Path: "predictions/p.jsonl", Label: "predictions/p.jsonl"}}, cat.Predictions)
	assert.Empty(t, cat.References)
}

func TestArtifactRoutesDisabled(t *testing.T) {
	f := newAPIFixture(t, false)
	for _, target := range []string{"/api/evaluation/results", "/api/adapters", "/api/storage/catalog"} {
		rec := f.do(t, http.MethodGet, target, "")
		assert.Equal(t, http.StatusServiceUnavailable, rec.Code, target)
	}
	rec := f.do(t, http.MethodDelete, "/api/adapters", `{"path":"output/a"}`)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}
