// Package api - HTTP handlers for the costing endpoints
// These handlers wrap the engine - they contain NO optimization logic.
package api

import (
	"net/http"
	"time"

	"housecost/api/envelope"
)

// HealthResponse is the response for GET /health
type HealthResponse struct {
	Status       string `json:"status"`
	Version      string `json:"version"`
	Uptime       string `json:"uptime"`
	Catalogue    string `json:"catalogue,omitempty"`
	Constituents int    `json:"constituents"`
	History      bool   `json:"history"`
	Time         string `json:"time"`
}

// handleRoot handles GET /
func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	envelope.WriteJSON(w, http.StatusOK, map[string]string{"hello": "world"})
}

// handleHealth handles GET /health
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	resp := HealthResponse{
		Status:  "healthy",
		Version: s.deps.Version,
		Uptime:  time.Since(s.startedAt).Round(time.Second).String(),
		History: s.deps.History != nil,
		Time:    time.Now().UTC().Format(time.RFC3339),
	}

	status := http.StatusOK
	if cat, err := s.deps.Catalogue.Current(); err != nil {
		resp.Status = "degraded"
		status = http.StatusServiceUnavailable
	} else {
		resp.Catalogue = cat.Hash.Short()
		resp.Constituents = cat.Len()
	}
	envelope.WriteJSON(w, status, resp)
}

// handleVersion handles GET /version
func (s *Server) handleVersion(w http.ResponseWriter, r *http.Request) {
	envelope.WriteJSON(w, http.StatusOK, map[string]string{
		"version":     s.deps.Version,
		"engine":      "housecost",
		"api_version": "v1",
	})
}

// handleTemplate handles GET /costing/house/template
func (s *Server) handleTemplate(w http.ResponseWriter, r *http.Request) {
	cat, err := s.deps.Catalogue.Current()
	if err != nil {
		envelope.WriteError(w, err)
		return
	}
	envelope.WriteJSON(w, http.StatusOK, cat.Template())
}

// handleL1Optimizer handles POST /costing/house/l1-optimizer.
// It answers with the bare {constituent: level} assignment.
func (s *Server) handleL1Optimizer(w http.ResponseWriter, r *http.Request) {
	result, err := s.v1.Optimize(r)
	if err != nil {
		envelope.WriteError(w, err)
		return
	}
	envelope.WriteJSON(w, http.StatusOK, result.Solution.Assignment)
}
