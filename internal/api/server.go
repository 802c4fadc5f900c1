// Package api serves the latest measurement reports over HTTP.
package api

import (
	"encoding/json"
	"net/http"
	"sync"

	"github.com/gorilla/mux"

	"SketchSpectra/internal/measure"
	"SketchSpectra/internal/pkg/logger"
)

// Server holds the reports of the last run and serves them as JSON.
type Server struct {
	addr string

	mu      sync.RWMutex
	reports []*measure.Report
}

// NewServer builds a server listening on addr.
func NewServer(addr string) *Server {
	return &Server{addr: addr}
}

// SetReports replaces the served reports.
func (s *Server) SetReports(reports []*measure.Report) {
	s.mu.Lock()
	s.reports = reports
	s.mu.Unlock()
}

// Start serves in the background until the process exits.
func (s *Server) Start() {
	r := mux.NewRouter()
	r.HandleFunc("/api/v1/reports", s.handleReports).Methods(http.MethodGet)
	r.HandleFunc("/api/v1/reports/{sketch}", s.handleReport).Methods(http.MethodGet)

	logger.Infof("Report API listening on %s", s.addr)
	go func() {
		if err := http.ListenAndServe(s.addr, r); err != nil {
			logger.Errorf("Report API stopped: %v", err)
		}
	}()
}

func (s *Server) handleReports(w http.ResponseWriter, _ *http.Request) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	writeJSON(w, s.reports)
}

func (s *Server) handleReport(w http.ResponseWriter, r *http.Request) {
	name := mux.Vars(r)["sketch"]
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, rep := range s.reports {
		if rep.Sketch == name {
			writeJSON(w, rep)
			return
		}
	}
	http.Error(w, "no such sketch", http.StatusNotFound)
}

func writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Errorf("Encoding response failed: %v", err)
	}
}
