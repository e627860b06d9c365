package pipeline

import (
	"crypto/sha256"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/dherrin84/mortscan/internal/classify"
	"github.com/dherrin84/mortscan/internal/extract"
)

// JobStatus represents the state of an analysis session.
type JobStatus string

const (
	StatusQueued     JobStatus = "queued"
	StatusProcessing JobStatus = "processing"
	StatusCompleted  JobStatus = "completed"
	StatusFailed     JobStatus = "failed"
)

// MsgNoText is the user-facing failure when extraction yields nothing.
// Distinct from an analysis that completed but identified no sections.
const MsgNoText = "Could not extract text from PDF. The file may be corrupted or contain only images without readable text."

// Progress is the poll payload for a running session. Status carries the
// processing stage ("starting", "extracting_text", "ocr_page_3", ...),
// not the job status.
type Progress struct {
	Current    int       `json:"current"`
	Total      int       `json:"total"`
	Status     string    `json:"status"`
	Percentage int       `json:"percentage"`
	UpdatedAt  time.Time `json:"timestamp"`
}

// Analysis is the completed payload for one document.
type Analysis struct {
	SessionID        string             `json:"session_id"`
	Filename         string             `json:"filename"`
	ContentHash      string             `json:"content_hash,omitempty"`
	Sections         []classify.Section `json:"sections"`
	TotalPages       int                `json:"total_pages"`
	TotalTextItems   int                `json:"total_text_items"`
	ExtractionMethod string             `json:"extraction_method"`
	Quality          extract.Quality    `json:"quality"`
	DurationMs       int64              `json:"duration_ms"`
	Cached           bool               `json:"cached,omitempty"`
}

// Job tracks one analysis session from upload to result.
type Job struct {
	mu sync.Mutex

	ID          string    `json:"session_id"`
	Filename    string    `json:"filename"`
	Size        int64     `json:"size_bytes"`
	ContentHash string    `json:"content_hash,omitempty"`
	Status      JobStatus `json:"status"`
	Progress    Progress  `json:"progress"`
	Error       string    `json:"error,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`

	// Internal: not serialized.
	fileData []byte
	result   *Analysis
}

// SetStatus updates job status atomically.
func (j *Job) SetStatus(status JobStatus) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.Status = status
	j.UpdatedAt = time.Now()
}

// SetProgress updates the poll payload. Percentage is current/total
// floored, 0 while total is unknown.
func (j *Job) SetProgress(current, total int, stage string) {
	j.mu.Lock()
	defer j.mu.Unlock()
	pct := 0
	if total > 0 {
		pct = current * 100 / total
	}
	now := time.Now()
	j.Progress = Progress{
		Current:    current,
		Total:      total,
		Status:     stage,
		Percentage: pct,
		UpdatedAt:  now,
	}
	j.UpdatedAt = now
}

// SetResult stores the completed analysis and marks the job done.
func (j *Job) SetResult(a *Analysis) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.result = a
	j.Status = StatusCompleted
	j.UpdatedAt = time.Now()
}

// Fail marks the job failed with a user-facing message.
func (j *Job) Fail(msg string) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.Error = msg
	j.Status = StatusFailed
	j.UpdatedAt = time.Now()
}

// SetFileData sets the raw upload bytes for processing.
func (j *Job) SetFileData(data []byte) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.fileData = data
}

// FileData returns the raw upload bytes.
func (j *Job) FileData() []byte {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.fileData
}

// ClearFileData drops the raw upload once processing no longer needs it,
// so finished jobs do not pin whole PDFs in the TTL store.
func (j *Job) ClearFileData() {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.fileData = nil
}

func (j *Job) lastUpdate() time.Time {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.UpdatedAt
}

// JobSnapshot is a read-only, JSON-safe copy of session state.
type JobSnapshot struct {
	ID          string    `json:"session_id"`
	Filename    string    `json:"filename"`
	Size        int64     `json:"size_bytes"`
	ContentHash string    `json:"content_hash,omitempty"`
	Status      JobStatus `json:"status"`
	Progress    Progress  `json:"progress"`
	Error       string    `json:"error,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	Result      *Analysis `json:"result,omitempty"`
}

// Snapshot returns a JSON-safe copy of the session state. The result is
// copied by value; its sections are never mutated after completion.
func (j *Job) Snapshot() JobSnapshot {
	j.mu.Lock()
	defer j.mu.Unlock()
	snap := JobSnapshot{
		ID:          j.ID,
		Filename:    j.Filename,
		Size:        j.Size,
		ContentHash: j.ContentHash,
		Status:      j.Status,
		Progress:    j.Progress,
		Error:       j.Error,
		CreatedAt:   j.CreatedAt,
	}
	if j.result != nil {
		res := *j.result
		snap.Result = &res
	}
	return snap
}

// JobStore is a thread-safe in-memory session registry with TTL eviction.
type JobStore struct {
	mu   sync.Mutex
	jobs map[string]*Job
	ttl  time.Duration
}

func NewJobStore(ttl time.Duration) *JobStore {
	return &JobStore{
		jobs: make(map[string]*Job),
		ttl:  ttl,
	}
}

func (s *JobStore) Put(job *Job) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.jobs[job.ID] = job
}

func (s *JobStore) Get(id string) *Job {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.jobs[id]
}

// Cleanup removes sessions idle past the TTL.
func (s *JobStore) Cleanup() {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now()
	for id, job := range s.jobs {
		if now.Sub(job.lastUpdate()) > s.ttl {
			delete(s.jobs, id)
		}
	}
}

// NewSessionID returns a fresh session identifier.
func NewSessionID() string {
	return uuid.NewString()
}

// ContentHashHex computes SHA-256 of content and returns hex string.
func ContentHashHex(data []byte) string {
	h := sha256.Sum256(data)
	return fmt.Sprintf("%x", h[:])
}
