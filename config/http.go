package config

import "strings"

// HTTPConfig contains HTTP server configuration.
type HTTPConfig struct {
	// Addr is the address to bind the HTTP server to.
	Addr string `env:"HTTP_ADDR" envDefault:":8000"`

	// CompressionEnabled enables gzip compression for JSON responses.
	CompressionEnabled bool `env:"HTTP_COMPRESSION_ENABLED" envDefault:"false"`

	// CompressionLevel is the gzip compression level (1-9).
	CompressionLevel int `env:"HTTP_COMPRESSION_LEVEL" envDefault:"6"`

	// MaxConns caps concurrently accepted connections. Zero disables the limit.
	MaxConns int `env:"HTTP_MAX_CONNS" envDefault:"0"`

	// CORSOrigins lists origins allowed to call the API from a browser. "*" allows any.
	CORSOrigins []string `env:"HTTP_CORS_ORIGINS" envDefault:"http://localhost:5173,http://localhost:3000"`
}

// Sanitize applies guardrails to HTTP configuration values.
func (h *HTTPConfig) Sanitize() {
	if h.CompressionLevel < 1 {
		h.CompressionLevel = 1
	}
	if h.CompressionLevel > 9 {
		h.CompressionLevel = 9
	}
	if h.MaxConns < 0 {
		h.MaxConns = 0
	}

	origins := h.CORSOrigins[:0]
	for _, o := range h.CORSOrigins {
		if o = strings.TrimRight(strings.TrimSpace(o), "/"); o != "" {
			origins = append(origins, o)
		}
	}
	h.CORSOrigins = origins
}
