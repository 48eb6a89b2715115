package api

import (
	"encoding/json"
	"net/http"

	"github.com/netxfw/netxmap/internal/feed"
)

// healthResponse is the /healthz body.
type healthResponse struct {
	Status string `json:"status"`
	State  string `json:"state"`
	Error  string `json:"error,omitempty"`
}

// handleHealth reports the pipeline state. FATAL answers 503.
// handleHealth 返回流水线状态，FATAL 时返回 503。
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if s.source == nil {
		writeJSON(w, http.StatusServiceUnavailable, healthResponse{Status: "unavailable", State: "UNKNOWN"})
		return
	}

	state := s.source.State()
	resp := healthResponse{Status: "ok", State: state.String()}
	code := http.StatusOK
	if state == feed.StateFatal {
		resp.Status = "fatal"
		resp.Error = s.source.Stats().Error
		code = http.StatusServiceUnavailable
	}
	writeJSON(w, code, resp)
}

// handleStats returns the pipeline counters and subscriber count.
// handleStats 返回流水线计数器与订阅者数量。
func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	if s.source == nil {
		http.Error(w, "pipeline not available", http.StatusServiceUnavailable)
		return
	}
	writeJSON(w, http.StatusOK, s.source.Stats())
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}
