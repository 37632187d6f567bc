package httpx

import (
	"compress/gzip"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func serveCompressed(t *testing.T, cfg CompressionConfig, h http.HandlerFunc, req *http.Request) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	Compression(cfg)(h).ServeHTTP(rec, req)
	return rec
}

func gunzip(t *testing.T, body io.Reader) string {
	t.Helper()
	zr, err := gzip.NewReader(body)
	require.NoError(t, err)
	defer zr.Close()
	b, err := io.ReadAll(zr)
	require.NoError(t, err)
	return string(b)
}

func TestCompression(t *testing.T) {
	payload := `{"logs":[` + strings.Repeat(`"Epoch 1/3 step 10/200 loss=1.234",`, 200) + `"done"]}`
	jsonHandler := func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, payload)
	}

	tests := []struct {
		name           string
		acceptEncoding string
		level          int
		expectGzip     bool
	}{
		{name: "client accepts gzip", acceptEncoding: "gzip, deflate", level: 6, expectGzip: true},
		{name: "client does not accept gzip", acceptEncoding: "deflate", level: 6},
		{name: "no accept-encoding header", level: 6},
		{name: "gzip disabled by q value", acceptEncoding: "gzip;q=0, deflate", level: 6},
		{name: "gzip with q value", acceptEncoding: "br;q=1.0, gzip;q=0.8", level: 6, expectGzip: true},
		{name: "fastest level", acceptEncoding: "gzip", level: 1, expectGzip: true},
		{name: "out of range level falls back", acceptEncoding: "gzip", level: 42, expectGzip: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/api/jobs/x/logs", nil)
			if tt.acceptEncoding != "" {
				req.Header.Set("Accept-Encoding", tt.acceptEncoding)
			}
			rec := serveCompressed(t, CompressionConfig{Level: tt.level}, jsonHandler, req)

			require.Equal(t, http.StatusOK, rec.Code)
			if tt.expectGzip {
				assert.Equal(t, "gzip", rec.Header().Get("Content-Encoding"))
				assert.Contains(t, rec.Header().Values("Vary"), "Accept-Encoding")
				assert.Equal(t, payload, gunzip(t, rec.Body))
				return
			}
			assert.Empty(t, rec.Header().Get("Content-Encoding"))
			assert.Equal(t, payload, rec.Body.String())
		})
	}
}

func TestCompression_SkipsResponses(t *testing.T) {
	tests := []struct {
		name    string
		method  string
		header  http.Header
		handler http.HandlerFunc
		cfg     CompressionConfig
	}{
		{
			name:   "head request",
			method: http.MethodHead,
			handler: func(w http.ResponseWriter, _ *http.Request) {
				w.Header().Set("Content-Type", "application/json")
			},
		},
		{
			name:   "websocket upgrade",
			method: http.MethodGet,
			header: http.Header{"Upgrade": {"websocket"}},
			handler: func(w http.ResponseWriter, _ *http.Request) {
				w.Header().Set("Content-Type", "text/plain")
				_, _ = io.WriteString(w, "upgrade me")
			},
		},
		{
			name:   "no content",
			method: http.MethodPost,
			handler: func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(http.StatusNoContent)
			},
		},
		{
			name:   "binary content type",
			method: http.MethodGet,
			handler: func(w http.ResponseWriter, _ *http.Request) {
				w.Header().Set("Content-Type", "application/octet-stream")
				_, _ = w.Write([]byte(strings.Repeat("x", 4096)))
			},
		},
		{
			name:   "already encoded",
			method: http.MethodGet,
			handler: func(w http.ResponseWriter, _ *http.Request) {
				w.Header().Set("Content-Type", "application/json")
				w.Header().Set("Content-Encoding", "br")
				_, _ = w.Write([]byte(strings.Repeat("x", 4096)))
			},
		},
		{
			name:   "below minimum size",
			method: http.MethodGet,
			cfg:    CompressionConfig{MinSize: 1024},
			handler: func(w http.ResponseWriter, _ *http.Request) {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusAccepted)
				_, _ = io.WriteString(w, `{"job_id":"abc","status":"queued"}`)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(tt.method, "/", nil)
			req.Header.Set("Accept-Encoding", "gzip")
			for k, v := range tt.header {
				req.Header[k] = v
			}
			rec := serveCompressed(t, tt.cfg, tt.handler, req)
			assert.NotEqual(t, "gzip", rec.Header().Get("Content-Encoding"))
		})
	}
}

func TestCompression_BelowMinimumSizeKeepsBody(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/api/train", nil)
	req.Header.Set("Accept-Encoding", "gzip")

	rec := serveCompressed(t, CompressionConfig{MinSize: 1024}, func(w http.ResponseWriter, _ *http.Request) {
		WriteJSON(w, http.StatusAccepted, map[string]string{"job_id": "abc", "status": "queued"})
	}, req)

	assert.Equal(t, http.StatusAccepted, rec.Code)
	assert.Empty(t, rec.Header().Get("Content-Encoding"))
	assert.JSONEq(t, `{"job_id":"abc","status":"queued"}`, rec.Body.String())
}

func TestCompression_ErrorStatusIsCompressed(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/api/jobs/missing", nil)
	req.Header.Set("Accept-Encoding", "gzip")

	rec := serveCompressed(t, CompressionConfig{}, func(w http.ResponseWriter, _ *http.Request) {
		WriteJSON(w, http.StatusNotFound, ErrorResponse{Error: "not_found", Message: "Job not found"})
	}, req)

	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "gzip", rec.Header().Get("Content-Encoding"))
	assert.JSONEq(t, `{"error":"not_found","message":"Job not found"}`, gunzip(t, rec.Body))
}
