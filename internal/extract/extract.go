package extract

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/dherrin84/mortscan/internal/classify"
)

// Extraction methods recorded on fragments and results.
const (
	MethodText = "text"
	MethodOCR  = "ocr"
)

// Progress stages reported while a document moves through the pipeline.
// The OCR stage switches to a per-page label once pages start, see
// StageOCRPage.
const (
	StageStarting   = "starting"
	StageExtracting = "extracting_text"
	StageOCR        = "ocr_processing"
	StageAnalyzing  = "analyzing"
	StageCompleted  = "completed"
)

// StageOCRPage labels per-page OCR progress, e.g. "ocr_page_3".
func StageOCRPage(page int) string {
	return fmt.Sprintf("ocr_page_%d", page)
}

// ErrNoText reports that no usable text could be pulled from a document
// by any extraction path.
var ErrNoText = errors.New("no text extracted")

// ProgressFunc receives per-page progress during extraction. current may
// be 0 when a stage begins.
type ProgressFunc func(current, total int, stage string)

// Result is the outcome of extracting one document.
type Result struct {
	Fragments []classify.Fragment
	Pages     int // physical pages seen by the extractor
	Method    string
	Quality   Quality
}

// Options tunes the extractor.
type Options struct {
	MinTextItems      int // fragment count below which the OCR fallback runs
	OCREnabled        bool
	OCRDPI            int
	OCRLanguage       string
	FallbackPdftotext bool
}

// Extractor turns raw PDF bytes into classifier fragments. The text layer
// is read first; scanned documents with a thin text layer go through the
// OCR fallback.
type Extractor struct {
	opts Options
	log  *slog.Logger
}

func New(opts Options, log *slog.Logger) *Extractor {
	if opts.MinTextItems <= 0 {
		opts.MinTextItems = 10
	}
	if opts.OCRDPI <= 0 {
		opts.OCRDPI = 150
	}
	return &Extractor{opts: opts, log: log}
}

// Extract runs the full extraction for one document. progress may be nil.
func (e *Extractor) Extract(ctx context.Context, data []byte, progress ProgressFunc) (Result, error) {
	if progress == nil {
		progress = func(int, int, string) {}
	}

	// The PDF reader needs a seekable file, and so do the exec fallbacks.
	path, cleanup, err := writeTemp(data)
	if err != nil {
		return Result{}, err
	}
	defer cleanup()

	res, err := e.extractText(ctx, path, progress)
	if err != nil {
		if ctx.Err() != nil {
			return Result{}, ctx.Err()
		}
		e.log.Warn("text layer extraction failed", "error", err)
		res = Result{Method: MethodText}
	}

	if e.needsOCR(len(res.Fragments)) {
		if !OCRAvailable() {
			e.log.Warn("low text yield but ocr unavailable", "fragments", len(res.Fragments))
		} else {
			e.log.Info("low text yield, running ocr fallback", "fragments", len(res.Fragments))
			ocrFrags, ocrPages, ocrErr := e.extractOCR(ctx, path, progress)
			if ocrErr != nil {
				if ctx.Err() != nil {
					return Result{}, ctx.Err()
				}
				e.log.Warn("ocr extraction failed", "error", ocrErr)
			} else {
				res = mergeOCR(res, ocrFrags, ocrPages)
			}
		}
	}

	if len(res.Fragments) == 0 {
		return Result{}, ErrNoText
	}
	return res, nil
}

// needsOCR reports whether the text-layer yield is too thin to trust.
func (e *Extractor) needsOCR(fragmentCount int) bool {
	return e.opts.OCREnabled && fragmentCount < e.opts.MinTextItems
}

// mergeOCR applies the fallback outcome: OCR replaces the text layer only
// when it actually produced fragments.
func mergeOCR(primary Result, ocrFrags []classify.Fragment, ocrPages int) Result {
	if len(ocrFrags) == 0 {
		return primary
	}
	merged := primary
	merged.Fragments = ocrFrags
	merged.Method = MethodOCR
	if ocrPages > merged.Pages {
		merged.Pages = ocrPages
	}
	merged.Quality = measureQuality(merged.Fragments, merged.Pages)
	return merged
}

// DistinctPages counts the distinct page numbers among fragments.
func DistinctPages(frags []classify.Fragment) int {
	seen := make(map[int]struct{}, len(frags))
	for _, f := range frags {
		seen[f.Page] = struct{}{}
	}
	return len(seen)
}

func writeTemp(data []byte) (string, func(), error) {
	tmp, err := os.CreateTemp("", "mortscan-*.pdf")
	if err != nil {
		return "", nil, fmt.Errorf("create temp file: %w", err)
	}
	path := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(path)
		return "", nil, fmt.Errorf("write temp file: %w", err)
	}
	tmp.Close()
	return path, func() { os.Remove(path) }, nil
}
