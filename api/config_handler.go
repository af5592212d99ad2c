// Package api: configuration endpoints.
package api

import (
	"net/http"

	"github.com/seenimoa/dealscope/internal/config"
)

// ConfigResponse is the JSON envelope returned by GET /api/v1/config.
type ConfigResponse struct {
	Config     *config.Config `json:"config"`
	ConfigFile string         `json:"config_file"`
	Valid      bool           `json:"valid"`
	Problem    string         `json:"problem,omitempty"`
}

// handleGetConfig returns the running configuration. The auth token is
// excluded by its json:"-" tag.
func (s *Server) handleGetConfig(w http.ResponseWriter, r *http.Request) {
	resp := ConfigResponse{Config: s.cfg, ConfigFile: s.cfg.File, Valid: true}
	if err := s.cfg.Validate(); err != nil {
		resp.Valid = false
		resp.Problem = err.Error()
	}
	writeJSON(w, http.StatusOK, APIResponse{Success: true, Data: resp})
}

// handleGetConfigKeys reports where each secret comes from, masked.
func (s *Server) handleGetConfigKeys(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, APIResponse{
		Success: true,
		Data:    config.CheckSecrets(s.cfg),
	})
}
