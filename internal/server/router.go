package server

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/loykin/procwatch/internal/metrics"
	"github.com/loykin/procwatch/internal/process"
)

// StatusSource exposes the supervised process state.
type StatusSource interface {
	Status() process.Status
}

// Router provides read-only HTTP handlers for the supervisor.
// Endpoints:
//
//	GET {basePath}/status   current process snapshot
//	GET {basePath}/healthz  200 while a child runs, 503 otherwise
//	GET {basePath}/metrics  Prometheus exposition
type Router struct {
	src      StatusSource
	gatherer prometheus.Gatherer
	basePath string
}

// NewRouter constructs a Router. A nil gatherer serves the default registry.
func NewRouter(src StatusSource, gatherer prometheus.Gatherer, basePath string) *Router {
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	return &Router{src: src, gatherer: gatherer, basePath: sanitizeBase(basePath)}
}

// Handler returns an http.Handler powered by gin.
func (r *Router) Handler() http.Handler {
	g := gin.New()
	g.Use(gin.Recovery())
	group := g.Group(r.basePath)
	group.GET("/status", r.handleStatus)
	group.GET("/healthz", r.handleHealth)
	group.GET("/metrics", gin.WrapH(metrics.HandlerFor(r.gatherer)))
	return g
}

type healthResp struct {
	Status string `json:"status"`
	PID    int    `json:"pid,omitempty"`
}

func (r *Router) handleStatus(c *gin.Context) {
	writeJSON(c, http.StatusOK, r.src.Status())
}

func (r *Router) handleHealth(c *gin.Context) {
	st := r.src.Status()
	if !st.Running {
		writeJSON(c, http.StatusServiceUnavailable, healthResp{Status: "not_running"})
		return
	}
	writeJSON(c, http.StatusOK, healthResp{Status: "running", PID: st.PID})
}

// Serve runs an HTTP server on addr until ctx ends.
func Serve(ctx context.Context, addr string, h http.Handler, log *slog.Logger) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           h,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() { errCh <- srv.ListenAndServe() }()
	log.Info("http server listening", "addr", addr)

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}
