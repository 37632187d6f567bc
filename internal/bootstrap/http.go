package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"golang.org/x/net/netutil"

	"github.com/qlora-pipeline/controlplane/config"
	httpx "github.com/qlora-pipeline/controlplane/internal/http"
)

// HTTPServerConfig contains configuration for HTTP server.
type HTTPServerConfig struct {
	Config   *config.AppConfig
	Services ServiceContainer
	Logger   *slog.Logger
	// ErrCh receives a fatal serve error. Optional.
	ErrCh chan<- error
}

// StartHTTPServer binds the listener and serves in the background.
// Returns the server instance for graceful shutdown.
func StartHTTPServer(cfg *HTTPServerConfig) (*http.Server, error) {
	if cfg == nil {
		return nil, errors.New("http server config is required")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	appCfg := cfg.Config
	if appCfg == nil {
		appCfg = &config.AppConfig{}
	}

	handler := buildHTTPHandler(httpHandlerConfig{
		Logger: logger,
		Services: httpx.RouterServices{
			Jobs:           cfg.Services.Jobs,
			History:        cfg.Services.History,
			Artifacts:      cfg.Services.Artifacts,
			Logger:         logger,
			WSPollInterval: appCfg.Jobs.WSPollInterval,
			CORSOrigins:    appCfg.HTTP.CORSOrigins,
		},
		HTTP: appCfg.HTTP,
	})

	addr := appCfg.HTTP.Addr
	// Guard against empty addr to avoid listening on Go default
	if addr == "" {
		addr = ":8000"
	}
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("listen on %s: %w", addr, err)
	}
	if appCfg.HTTP.MaxConns > 0 {
		ln = netutil.LimitListener(ln, appCfg.HTTP.MaxConns)
	}

	server := newServer(handler, addr)
	go serve(server, ln, logger, cfg.ErrCh, appCfg.HTTP.MaxConns)
	return server, nil
}

type httpHandlerConfig struct {
	Logger   *slog.Logger
	Services httpx.RouterServices
	HTTP     config.HTTPConfig
}

func buildHTTPHandler(cfg httpHandlerConfig) http.Handler {
	router := httpx.NewRouter(cfg.Services)

	// Apply compression middleware first (innermost) so logging captures compressed sizes
	// Order: Recover -> Logging -> Compression -> Router
	h := router
	if cfg.HTTP.CompressionEnabled {
		cfg.Logger.Info("HTTP compression enabled", "level", cfg.HTTP.CompressionLevel)
		h = httpx.Compression(httpx.CompressionConfig{
			Level:   cfg.HTTP.CompressionLevel,
			MinSize: 512,
			Logger:  cfg.Logger,
		})(h)
	}

	h = httpx.Logging(cfg.Logger)(h)
	h = httpx.Recover(cfg.Logger)(h)

	return h
}

func newServer(handler http.Handler, addr string) *http.Server {
	// No WriteTimeout: websocket log tails are long-lived and manage their own deadlines.
	return &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
}

func serve(server *http.Server, ln net.Listener, logger *slog.Logger, errCh chan<- error, maxConns int) {
	logger.Info("starting HTTP server", "addr", ln.Addr().String(), "max_conns", maxConns)
	err := server.Serve(ln)
	if err == nil || errors.Is(err, http.ErrServerClosed) {
		return
	}
	logger.Error("HTTP server failed", "error", err)
	if errCh != nil {
		select {
		case errCh <- fmt.Errorf("http server: %w", err):
		default:
		}
	}
}

// ShutdownConfig contains dependencies for HTTP server shutdown.
type ShutdownConfig struct {
	Context  context.Context
	Server   *http.Server
	Services ServiceContainer
	Logger   *slog.Logger
}

// ShutdownHTTPServer gracefully shuts down the HTTP server.
func ShutdownHTTPServer(cfg ShutdownConfig) error {
	if cfg.Server == nil {
		return nil
	}

	if cfg.Logger != nil {
		cfg.Logger.Info("shutting down HTTP server")
	}

	// Websocket tails are hijacked connections that Shutdown does not track;
	// closing every subscription makes them send a going-away frame and return.
	if cfg.Services.Notifier != nil {
		cfg.Services.Notifier.StopAll()
	}

	ctx := cfg.Context
	if ctx == nil {
		ctx = context.Background()
	}
	shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	if err := cfg.Server.Shutdown(shutdownCtx); err != nil {
		return err
	}

	if cfg.Logger != nil {
		cfg.Logger.Info("HTTP server stopped")
	}

	return nil
}
