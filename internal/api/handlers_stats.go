package api

import (
	"encoding/json"
	"net/http"
)

// handleStats reports processing throughput, queue depth, cache and
// history sizes.
func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	resp := map[string]any{
		"queue_depth": s.orchestrator.QueueDepth(),
		"processing":  s.stats.Snapshot(),
	}
	if s.cache != nil {
		resp["cached_results"] = s.cache.Len()
	}
	if s.history != nil {
		count, pages, err := s.history.Totals(r.Context())
		if err != nil {
			s.log.Warn("history totals", "error", err)
		} else {
			resp["history"] = map[string]int64{
				"analyses":    count,
				"total_pages": pages,
			}
		}
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(resp)
}
