package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/dherrin84/mortscan/internal/classify"
	"github.com/dherrin84/mortscan/internal/extract"
)

// Extractor produces classifier fragments from raw PDF bytes.
type Extractor interface {
	Extract(ctx context.Context, data []byte, progress extract.ProgressFunc) (extract.Result, error)
}

// ResultCache remembers completed analyses by content hash so duplicate
// uploads skip extraction entirely.
type ResultCache interface {
	Get(hash string) (*Analysis, bool)
	Set(hash string, a *Analysis)
}

// Sink receives completed analyses for persistence.
type Sink interface {
	Record(a *Analysis)
}

// Deps carries the collaborators the pipeline hands to workers. Cache,
// Sink, and Stats may be nil.
type Deps struct {
	Extractor Extractor
	Rules     []classify.Rule
	Cache     ResultCache
	Sink      Sink
	Stats     *extract.Stats
}

// Worker processes a single analysis session.
type Worker struct {
	deps Deps
	log  *slog.Logger
}

func NewWorker(deps Deps, log *slog.Logger) *Worker {
	return &Worker{deps: deps, log: log}
}

// Process runs extraction and classification for one session.
func (w *Worker) Process(ctx context.Context, job *Job) {
	log := w.log.With("session_id", job.ID, "filename", job.Filename)
	start := time.Now()

	defer func() {
		if r := recover(); r != nil {
			log.Error("panic during processing", "panic", r)
			job.Fail(fmt.Sprintf("internal error: %v", r))
		}
	}()

	job.SetStatus(StatusProcessing)
	job.SetProgress(0, 1, extract.StageStarting)

	// Duplicate uploads come straight from the cache.
	if w.deps.Cache != nil && job.ContentHash != "" {
		if cached, ok := w.deps.Cache.Get(job.ContentHash); ok {
			log.Info("result cache hit")
			res := *cached
			res.SessionID = job.ID
			res.Filename = job.Filename
			res.Cached = true
			job.SetProgress(1, 1, extract.StageCompleted)
			job.SetResult(&res)
			job.ClearFileData()
			return
		}
	}

	result, err := w.deps.Extractor.Extract(ctx, job.FileData(), func(current, total int, stage string) {
		job.SetProgress(current, total, stage)
	})
	job.ClearFileData()
	if err != nil {
		if errors.Is(err, extract.ErrNoText) {
			log.Warn("no text extracted")
			job.Fail(MsgNoText)
			return
		}
		log.Error("extraction failed", "error", err)
		job.Fail(fmt.Sprintf("extraction failed: %s", err))
		return
	}

	log.Info("extraction complete",
		"fragments", len(result.Fragments),
		"pages", result.Pages,
		"method", result.Method,
	)

	job.SetProgress(1, 1, extract.StageAnalyzing)
	sections := classify.ClassifyWith(w.deps.Rules, result.Fragments)
	log.Info("classification complete", "sections", len(sections))

	analysis := &Analysis{
		SessionID:        job.ID,
		Filename:         job.Filename,
		ContentHash:      job.ContentHash,
		Sections:         sections,
		TotalPages:       extract.DistinctPages(result.Fragments),
		TotalTextItems:   len(result.Fragments),
		ExtractionMethod: result.Method,
		Quality:          result.Quality,
		DurationMs:       time.Since(start).Milliseconds(),
	}

	if w.deps.Cache != nil && job.ContentHash != "" {
		w.deps.Cache.Set(job.ContentHash, analysis)
	}
	if w.deps.Sink != nil {
		w.deps.Sink.Record(analysis)
	}
	if w.deps.Stats != nil {
		w.deps.Stats.Record(analysis.DurationMs, analysis.ExtractionMethod)
	}

	job.SetProgress(1, 1, extract.StageCompleted)
	job.SetResult(analysis)
}
