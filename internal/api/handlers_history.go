package api

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/dherrin84/mortscan/internal/classify"
	"github.com/dherrin84/mortscan/internal/toc"
)

// handleHistory lists recent analyses, newest first.
func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	if s.history == nil {
		jsonError(w, "history disabled", http.StatusServiceUnavailable)
		return
	}

	limit := 20
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			jsonError(w, "limit must be a positive integer", http.StatusBadRequest)
			return
		}
		if n > 200 {
			n = 200
		}
		limit = n
	}

	entries, err := s.history.Recent(r.Context(), limit)
	if err != nil {
		jsonError(w, "failed to list history: "+err.Error(), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"analyses": entries,
		"count":    len(entries),
	})
}

// handleTOC renders a downloadable table of contents from the sections
// the user selected in the browser.
func (s *Server) handleTOC(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Sections []classify.Section `json:"sections"`
		Source   string             `json:"source"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		jsonError(w, "invalid request body: "+err.Error(), http.StatusBadRequest)
		return
	}
	if len(req.Sections) == 0 {
		jsonError(w, "No sections selected", http.StatusBadRequest)
		return
	}

	source := ""
	if req.Source != "" {
		source = sanitizeFilename(req.Source)
	}
	text := toc.Build(req.Sections, toc.Options{Source: source})

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="`+toc.DownloadFilename+`"`)
	w.Write([]byte(text))
}
