// Package server exposes a small local HTTP control surface for the
// pipeline: status, triggers, region changes and metrics.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/local/screenassist/internal/capture"
	mpkg "github.com/local/screenassist/internal/metrics"
	"github.com/local/screenassist/internal/pipeline"
	"github.com/local/screenassist/internal/statuscheck"
)

// Controller is the part of *pipeline.Pipeline the server drives.
type Controller interface {
	Trigger(pipeline.Trigger) bool
	State() pipeline.State
	Region() *capture.Region
	SetRegion(*capture.Region)
}

// Checker produces the readiness summary served at /checks.
type Checker interface {
	Summary(ctx context.Context) statuscheck.Summary
}

// Options holds the optional collaborators. A nil Toggle or Checks makes
// the matching route answer 501.
type Options struct {
	Toggle func()
	Checks Checker
}

// Server handles control requests.
type Server struct {
	ctl    Controller
	toggle func()
	checks Checker
}

func New(ctl Controller, opts Options) *Server {
	return &Server{ctl: ctl, toggle: opts.Toggle, checks: opts.Checks}
}

func (s *Server) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	mux.HandleFunc("/status", s.handleStatus)
	mux.HandleFunc("/trigger", s.handleTrigger)
	mux.HandleFunc("/region", s.handleRegion)
	mux.HandleFunc("/toggle", s.handleToggle)
	mux.HandleFunc("/checks", s.handleChecks)
	mux.Handle("/metrics", mpkg.Handler())
}

type statusResp struct {
	State  string          `json:"state"`
	Region *capture.Region `json:"region"`
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	writeJSON(w, http.StatusOK, statusResp{State: s.ctl.State().String(), Region: s.ctl.Region()})
}

func (s *Server) handleTrigger(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	mode, ok := pipeline.ParseMode(r.URL.Query().Get("mode"))
	if !ok {
		http.Error(w, "unknown mode", http.StatusBadRequest)
		return
	}
	region, err := capture.ParseRegion(r.URL.Query().Get("region"))
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if !s.ctl.Trigger(pipeline.Trigger{Mode: mode, Region: region}) {
		writeJSON(w, http.StatusConflict, map[string]any{"accepted": false, "state": s.ctl.State().String()})
		return
	}
	log.Info().Str("mode", mode.String()).Str("source", "http").Msg("trigger accepted")
	writeJSON(w, http.StatusAccepted, map[string]any{"accepted": true, "mode": mode.String()})
}

func (s *Server) handleRegion(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		writeJSON(w, http.StatusOK, map[string]any{"region": s.ctl.Region()})
	case http.MethodPut:
		defer r.Body.Close()
		var reg capture.Region
		if err := json.NewDecoder(r.Body).Decode(&reg); err != nil {
			http.Error(w, "invalid json", http.StatusBadRequest)
			return
		}
		valid, err := capture.NewRegion(reg.X, reg.Y, reg.Width, reg.Height)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		s.ctl.SetRegion(valid)
		writeJSON(w, http.StatusOK, map[string]any{"region": s.ctl.Region()})
	case http.MethodDelete:
		s.ctl.SetRegion(nil)
		w.WriteHeader(http.StatusNoContent)
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func (s *Server) handleToggle(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	if s.toggle == nil {
		http.Error(w, "toggle not supported", http.StatusNotImplemented)
		return
	}
	s.toggle()
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleChecks(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	if s.checks == nil {
		http.Error(w, "checks not configured", http.StatusNotImplemented)
		return
	}
	writeJSON(w, http.StatusOK, s.checks.Summary(r.Context()))
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// ListenAndServe serves mux on addr until ctx is cancelled, then shuts down
// with a 5s grace period.
func ListenAndServe(ctx context.Context, addr string, handler http.Handler) error {
	srv := &http.Server{Addr: addr, Handler: handler, ReadHeaderTimeout: 5 * time.Second}
	errCh := make(chan error, 1)
	go func() {
		log.Info().Msgf("control server listening on %s", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	err := srv.Shutdown(shutdownCtx)
	<-errCh
	return err
}
