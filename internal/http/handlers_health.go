package httpx

import "net/http"

var healthBody = []byte(`{"status":"ok"}`)

// healthHandler answers liveness checks. It does not touch the registry, so a
// busy job table never makes the process look unhealthy.
func healthHandler(w http.ResponseWriter, r *http.Request) {
	h := w.Header()
	h.Set("Content-Type", "application/json")
	h.Set("Cache-Control", "no-store")
	w.WriteHeader(http.StatusOK)
	if r.Method == http.MethodHead {
		return
	}
	_, _ = w.Write(healthBody)
}
