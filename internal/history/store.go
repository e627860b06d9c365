package history

import (
	"context"
	"database/sql"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	_ "modernc.org/sqlite"

	"github.com/dherrin84/mortscan/internal/classify"
	"github.com/dherrin84/mortscan/internal/pipeline"
)

// Schema for the analyses table. Call Store.Init() or apply manually.
const Schema = `
CREATE TABLE IF NOT EXISTS analyses (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	session_id TEXT NOT NULL,
	filename TEXT NOT NULL,
	content_hash TEXT NOT NULL DEFAULT '',
	total_pages INTEGER NOT NULL,
	total_text_items INTEGER NOT NULL,
	section_count INTEGER NOT NULL,
	sections TEXT NOT NULL,
	extraction_method TEXT NOT NULL,
	duration_ms INTEGER NOT NULL,
	created_at INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_analyses_created ON analyses(created_at);
`

// Entry is one persisted analysis, as served by the history endpoint.
type Entry struct {
	ID               int64              `json:"id"`
	SessionID        string             `json:"session_id"`
	Filename         string             `json:"filename"`
	ContentHash      string             `json:"content_hash,omitempty"`
	TotalPages       int                `json:"total_pages"`
	TotalTextItems   int                `json:"total_text_items"`
	SectionCount     int                `json:"section_count"`
	Sections         []classify.Section `json:"sections"`
	ExtractionMethod string             `json:"extraction_method"`
	DurationMs       int64              `json:"duration_ms"`
	CreatedAt        time.Time          `json:"created_at"`
}

// Store persists completed analyses to SQLite asynchronously, so the
// worker never blocks on disk.
type Store struct {
	db     *sql.DB
	ownsDB bool
	log    *slog.Logger
	ch     chan *pipeline.Analysis
	done   chan struct{}
	once   sync.Once
}

// NewStore creates a history store backed by the given database
// connection and starts its flush goroutine.
func NewStore(db *sql.DB, log *slog.Logger) *Store {
	s := &Store{
		db:   db,
		log:  log,
		ch:   make(chan *pipeline.Analysis, 256),
		done: make(chan struct{}),
	}
	go s.flushLoop()
	return s
}

// Open opens (or creates) the SQLite database at path, applies the
// schema, and returns a running store.
func Open(path string, log *slog.Logger) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	// SQLite handles one writer at a time.
	db.SetMaxOpenConns(1)
	if _, err := db.Exec(Schema); err != nil {
		db.Close()
		return nil, err
	}
	s := NewStore(db, log)
	s.ownsDB = true
	return s, nil
}

// Init creates the analyses table if it doesn't exist.
func (s *Store) Init() error {
	_, err := s.db.Exec(Schema)
	return err
}

// Record queues a completed analysis for persistence. Non-blocking;
// drops if the buffer is full.
func (s *Store) Record(a *pipeline.Analysis) {
	select {
	case s.ch <- a:
	default:
		s.log.Warn("history buffer full, dropping analysis", "session_id", a.SessionID)
	}
}

// Recent returns the most recent analyses, newest first.
func (s *Store) Recent(ctx context.Context, limit int) ([]Entry, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, session_id, filename, content_hash, total_pages, total_text_items,
		       section_count, sections, extraction_method, duration_ms, created_at
		FROM analyses
		ORDER BY created_at DESC, id DESC
		LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var e Entry
		var sectionsJSON string
		var createdAt int64
		if err := rows.Scan(&e.ID, &e.SessionID, &e.Filename, &e.ContentHash,
			&e.TotalPages, &e.TotalTextItems, &e.SectionCount, &sectionsJSON,
			&e.ExtractionMethod, &e.DurationMs, &createdAt); err != nil {
			return nil, err
		}
		if err := json.Unmarshal([]byte(sectionsJSON), &e.Sections); err != nil {
			s.log.Warn("history: bad sections payload", "id", e.ID, "error", err)
			e.Sections = nil
		}
		e.CreatedAt = time.Unix(createdAt, 0).UTC()
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// Totals reports how many analyses are stored and the pages they cover.
func (s *Store) Totals(ctx context.Context) (count, pages int64, err error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*), COALESCE(SUM(total_pages), 0) FROM analyses`)
	err = row.Scan(&count, &pages)
	return count, pages, err
}

// Close drains the buffer and stops the flush goroutine. Databases
// opened by Open are closed as well; injected ones stay open for their
// owner.
func (s *Store) Close() error {
	s.once.Do(func() {
		close(s.ch)
		<-s.done
	})
	if s.ownsDB {
		return s.db.Close()
	}
	return nil
}

func (s *Store) flushLoop() {
	defer close(s.done)

	batch := make([]*pipeline.Analysis, 0, 16)
	ticker := time.NewTicker(2 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case a, ok := <-s.ch:
			if !ok {
				s.flushBatch(batch)
				return
			}
			batch = append(batch, a)
			if len(batch) >= 16 {
				s.flushBatch(batch)
				batch = batch[:0]
			}
		case <-ticker.C:
			if len(batch) > 0 {
				s.flushBatch(batch)
				batch = batch[:0]
			}
		}
	}
}

func (s *Store) flushBatch(batch []*pipeline.Analysis) {
	if len(batch) == 0 {
		return
	}

	tx, err := s.db.Begin()
	if err != nil {
		s.log.Error("history: begin tx", "error", err)
		return
	}

	stmt, err := tx.Prepare(`INSERT INTO analyses
		(session_id, filename, content_hash, total_pages, total_text_items,
		 section_count, sections, extraction_method, duration_ms, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		tx.Rollback()
		s.log.Error("history: prepare", "error", err)
		return
	}
	defer stmt.Close()

	now := time.Now().Unix()
	for _, a := range batch {
		sectionsJSON, err := json.Marshal(a.Sections)
		if err != nil {
			s.log.Error("history: marshal sections", "session_id", a.SessionID, "error", err)
			continue
		}
		if _, err := stmt.Exec(a.SessionID, a.Filename, a.ContentHash,
			a.TotalPages, a.TotalTextItems, len(a.Sections), string(sectionsJSON),
			a.ExtractionMethod, a.DurationMs, now); err != nil {
			s.log.Error("history: insert", "session_id", a.SessionID, "error", err)
		}
	}

	if err := tx.Commit(); err != nil {
		s.log.Error("history: commit", "error", err)
	}
}
