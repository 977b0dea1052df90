// Package diag exposes a minimal HTTP diagnostics surface (C11): /healthz
// for liveness probes and /status for a small JSON snapshot of the bridge's
// own view of the panel connection. Its Run(ctx) error lifecycle and use of
// gorilla/mux are adapted from server/server.go, trimmed down from that
// package's full dashboard to the two endpoints this spec calls for.
package diag

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"
)

// StatusProvider supplies the current snapshot for /status. internal/bridge
// implements this against whichever dialect (ISECNet or legacy) is active.
type StatusProvider interface {
	DiagStatus() Status
}

// Status is the JSON body served at /status.
type Status struct {
	Protocol       string    `json:"protocol"`
	PanelConnected bool      `json:"connected"`
	Zones          int       `json:"zones"`
	LastPollAt     time.Time `json:"last_poll,omitempty"`
	LastPollError  string    `json:"last_poll_error,omitempty"`
	UptimeSeconds  float64   `json:"uptime"`
}

// Server is the diagnostics HTTP server.
type Server struct {
	host, path string
	port       int
	provider   StatusProvider
	router     *mux.Router
	httpServer *http.Server
	log        *logrus.Entry
	startedAt  time.Time
}

// New constructs a diagnostics Server bound to host:port.
func New(host string, port int, provider StatusProvider, log *logrus.Logger) *Server {
	if log == nil {
		log = logrus.StandardLogger()
	}
	s := &Server{
		host:      host,
		port:      port,
		provider:  provider,
		router:    mux.NewRouter(),
		log:       log.WithField("component", "diag"),
		startedAt: time.Now(),
	}
	s.router.HandleFunc("/healthz", s.handleHealthz).Methods("GET")
	s.router.HandleFunc("/status", s.handleStatus).Methods("GET")
	return s
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	fmt.Fprint(w, `{"status":"ok"}`)
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	status := s.provider.DiagStatus()
	status.UptimeSeconds = time.Since(s.startedAt).Seconds()
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(status); err != nil {
		s.log.WithError(err).Warn("failed to encode status response")
	}
}

// Run binds the listener and serves until ctx is canceled, mirroring
// server/server.go's Run(ctx) error shape.
func (s *Server) Run(ctx context.Context) error {
	s.httpServer = &http.Server{
		Addr:    fmt.Sprintf("%s:%d", s.host, s.port),
		Handler: s.router,
	}

	go func() {
		<-ctx.Done()
		s.log.Info("context done, shutting down diagnostics server")
		s.httpServer.Shutdown(context.Background())
	}()

	s.log.WithField("addr", s.httpServer.Addr).Info("diagnostics server listening")
	err := s.httpServer.ListenAndServe()
	if err == http.ErrServerClosed {
		return nil
	}
	return err
}
