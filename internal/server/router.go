// Package server is the credential backend: encrypted key storage,
// key validation against archive.org, and a server-side archive.org proxy.
package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/charmbracelet/log"
	"github.com/gin-gonic/gin"

	"github.com/thesavant42/omnidash/internal/api"
	"github.com/thesavant42/omnidash/internal/vault"
)

// Version is reported by the health endpoint
const Version = "1.0.0"

// Options configure the backend
type Options struct {
	AllowedOrigins []string
	// ValidateURL is fetched with the stored keys to check them;
	// any public archive.org metadata URL works.
	ValidateURL string
	// ProxyHosts limits /api/proxy/archive targets; subdomains match too
	ProxyHosts []string
	Fetcher    *api.Fetcher
}

// NewRouter sets up all routes and middleware
func NewRouter(v *vault.Vault, opts Options, logger *log.Logger) *gin.Engine {
	r := gin.New()
	// Treat all upstreams as untrusted (removes the warning)
	if err := r.SetTrustedProxies(nil); err != nil && logger != nil {
		logger.Warn("SetTrustedProxies failed", "err", err)
	}

	r.Use(RequestID())
	r.Use(Logger(logger))
	r.Use(gin.Recovery())
	r.Use(CORS(opts.AllowedOrigins))

	fetcher := opts.Fetcher
	if fetcher == nil {
		fetcher = api.NewFetcher(nil, "", nil, logger)
	}
	h := &handlers{
		vault:       v,
		fetcher:     fetcher,
		validateURL: opts.ValidateURL,
		proxyHosts:  opts.ProxyHosts,
		logger:      logger,
	}

	g := r.Group("/api")
	g.GET("/health", h.health)
	g.POST("/credentials", h.saveCredentials)
	g.GET("/credentials/status", h.credentialsStatus)
	g.POST("/credentials/validate", h.validateCredentials)
	g.DELETE("/credentials", h.deleteCredentials)
	g.POST("/proxy/archive", h.proxyArchive)

	return r
}

// Serve runs the router on addr until ctx is cancelled, then shuts down gracefully
func Serve(ctx context.Context, addr string, handler http.Handler, logger *log.Logger) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		if logger != nil {
			logger.Info("Credential backend listening", "addr", addr)
		}
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if logger != nil {
			logger.Info("Shutting down credential backend")
		}
		return srv.Shutdown(shutdownCtx)
	}
}
