package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/dherrin84/mortscan/internal/extract"
	"github.com/dherrin84/mortscan/internal/pipeline"
)

func (s *Server) handleAnalyze(w http.ResponseWriter, r *http.Request) {
	// Limit total request size.
	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.MaxUploadBytes+1024*1024) // extra 1MB for form overhead

	if err := r.ParseMultipartForm(32 << 20); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			jsonError(w, fmt.Sprintf("file exceeds max size (%d bytes)", s.cfg.MaxUploadBytes), http.StatusRequestEntityTooLarge)
			return
		}
		jsonError(w, "No file uploaded", http.StatusBadRequest)
		return
	}
	defer r.MultipartForm.RemoveAll()

	file, header, err := r.FormFile("file")
	if err != nil {
		jsonError(w, "No file uploaded", http.StatusBadRequest)
		return
	}
	defer file.Close()

	// multipart parses empty-filename parts as form values, so FormFile
	// has already failed for those; reaching this branch takes a client
	// that names a file part but blanks the filename.
	if header.Filename == "" {
		jsonError(w, "No file selected", http.StatusBadRequest)
		return
	}
	if !strings.HasSuffix(strings.ToLower(header.Filename), ".pdf") {
		jsonError(w, "Only PDF files are supported", http.StatusBadRequest)
		return
	}

	data, err := io.ReadAll(io.LimitReader(file, s.cfg.MaxUploadBytes+1))
	if err != nil {
		jsonError(w, "failed to read file", http.StatusInternalServerError)
		return
	}
	if len(data) == 0 {
		jsonError(w, "File is empty", http.StatusBadRequest)
		return
	}
	if int64(len(data)) > s.cfg.MaxUploadBytes {
		jsonError(w, fmt.Sprintf("file exceeds max size (%d bytes)", s.cfg.MaxUploadBytes), http.StatusRequestEntityTooLarge)
		return
	}

	now := time.Now()
	job := &pipeline.Job{
		ID:          pipeline.NewSessionID(),
		Filename:    sanitizeFilename(header.Filename),
		Size:        int64(len(data)),
		ContentHash: pipeline.ContentHashHex(data),
		Status:      pipeline.StatusQueued,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	job.SetFileData(data)
	job.SetProgress(0, 1, extract.StageStarting)

	if err := s.orchestrator.Submit(job); err != nil {
		jsonError(w, err.Error(), http.StatusServiceUnavailable)
		return
	}

	s.log.Info("analysis queued", "session_id", job.ID, "filename", job.Filename, "size_bytes", job.Size)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusAccepted)
	json.NewEncoder(w).Encode(map[string]any{
		"session_id": job.ID,
		"status":     job.Status,
		"poll_url":   fmt.Sprintf("/api/progress/%s", job.ID),
		"result_url": fmt.Sprintf("/api/analyze/%s/result", job.ID),
	})
}

func (s *Server) handleProgress(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")
	job := s.orchestrator.GetJob(sessionID)
	if job == nil {
		jsonError(w, "Session not found", http.StatusNotFound)
		return
	}
	snap := job.Snapshot()

	// The stage fields keep their poll shape; job_status tells the
	// client when to stop polling and fetch the result.
	resp := struct {
		pipeline.Progress
		JobStatus pipeline.JobStatus `json:"job_status"`
		Error     string             `json:"error,omitempty"`
	}{snap.Progress, snap.Status, snap.Error}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(resp)
}

func (s *Server) handleResult(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")
	job := s.orchestrator.GetJob(sessionID)
	if job == nil {
		jsonError(w, "Session not found", http.StatusNotFound)
		return
	}
	snap := job.Snapshot()

	w.Header().Set("Content-Type", "application/json")
	switch snap.Status {
	case pipeline.StatusCompleted:
		resp := struct {
			*pipeline.Analysis
			ProcessingMethod string `json:"processing_method"`
			OCRAvailable     bool   `json:"ocr_available"`
		}{snap.Result, "local", s.ocrAvailable}
		json.NewEncoder(w).Encode(resp)
	case pipeline.StatusFailed:
		w.WriteHeader(http.StatusUnprocessableEntity)
		json.NewEncoder(w).Encode(map[string]string{"error": snap.Error})
	default:
		w.WriteHeader(http.StatusAccepted)
		json.NewEncoder(w).Encode(map[string]any{
			"session_id": snap.ID,
			"status":     snap.Status,
			"progress":   snap.Progress,
		})
	}
}

func jsonError(w http.ResponseWriter, msg string, code int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(map[string]string{"error": msg})
}

func sanitizeFilename(name string) string {
	// Strip path components, keep only the base name.
	name = filepath.Base(name)
	name = strings.ReplaceAll(name, "/", "_")
	name = strings.ReplaceAll(name, "\\", "_")
	name = strings.ReplaceAll(name, "..", "_")
	if name == "" || name == "." {
		name = "unnamed"
	}
	return name
}
