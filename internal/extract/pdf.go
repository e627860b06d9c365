package extract

import (
	"context"
	"fmt"
	"os/exec"
	"strings"
	"unicode/utf8"

	pdflib "github.com/ledongthuc/pdf"

	"github.com/dherrin84/mortscan/internal/classify"
)

// PdftotextAvailable reports whether the poppler pdftotext binary is on
// PATH, for the health endpoint's dependency report.
func PdftotextAvailable() bool {
	_, err := exec.LookPath("pdftotext")
	return err == nil
}

// extractText reads the PDF text layer. If the Go library cannot open the
// document at all, pdftotext is tried when enabled and present.
func (e *Extractor) extractText(ctx context.Context, path string, progress ProgressFunc) (Result, error) {
	frags, pages, err := readTextLayer(ctx, path, progress)
	if err != nil && e.opts.FallbackPdftotext {
		if _, lookErr := exec.LookPath("pdftotext"); lookErr == nil {
			e.log.Warn("pdf library failed, trying pdftotext", "error", err)
			frags, pages, err = readPdftotext(ctx, path, progress)
		}
	}
	if err != nil {
		return Result{}, fmt.Errorf("extract pdf text: %w", err)
	}

	return Result{
		Fragments: frags,
		Pages:     pages,
		Method:    MethodText,
		Quality:   measureQuality(frags, pages),
	}, nil
}

func readTextLayer(ctx context.Context, path string, progress ProgressFunc) ([]classify.Fragment, int, error) {
	f, reader, err := pdflib.Open(path)
	if err != nil {
		return nil, 0, fmt.Errorf("open pdf: %w", err)
	}
	defer f.Close()

	total := reader.NumPage()
	progress(0, total, StageExtracting)

	var frags []classify.Fragment
	for i := 1; i <= total; i++ {
		if err := ctx.Err(); err != nil {
			return nil, 0, err
		}
		progress(i, total, StageExtracting)

		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}
		// A broken page should not sink the whole document.
		frags = appendTextLines(frags, pageText(page), i)
	}
	return frags, total, nil
}

// pageText pulls the text of one page, preferring the row-grouped API so
// fragments line up with visual lines. Falls back to the plain content
// stream when row extraction fails.
func pageText(page pdflib.Page) string {
	rows, err := page.GetTextByRow()
	if err == nil && len(rows) > 0 {
		var b strings.Builder
		for _, row := range rows {
			for _, word := range row.Content {
				b.WriteString(word.S)
			}
			b.WriteString("\n")
		}
		return b.String()
	}

	text, err := page.GetPlainText(nil)
	if err != nil {
		return ""
	}
	return text
}

// readPdftotext shells out to poppler's pdftotext, splitting its output
// back into pages on form feeds.
func readPdftotext(ctx context.Context, path string, progress ProgressFunc) ([]classify.Fragment, int, error) {
	cmd := exec.CommandContext(ctx, "pdftotext", "-layout", path, "-")
	out, err := cmd.Output()
	if err != nil {
		return nil, 0, fmt.Errorf("pdftotext: %w", err)
	}

	pages := strings.Split(string(out), "\f")
	// pdftotext terminates every page with a form feed, leaving an empty
	// trailing element.
	if len(pages) > 0 && strings.TrimSpace(pages[len(pages)-1]) == "" {
		pages = pages[:len(pages)-1]
	}

	total := len(pages)
	progress(0, total, StageExtracting)

	var frags []classify.Fragment
	for i, pageText := range pages {
		progress(i+1, total, StageExtracting)
		frags = appendTextLines(frags, pageText, i+1)
	}
	return frags, total, nil
}

// appendTextLines keeps trimmed lines longer than 3 characters, which
// drops page numbers, stray punctuation, and similar debris. The length
// is counted in runes, not bytes, so accented text is measured the same
// as ASCII.
func appendTextLines(frags []classify.Fragment, text string, page int) []classify.Fragment {
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if utf8.RuneCountInString(line) > 3 {
			frags = append(frags, classify.Fragment{Text: line, Page: page, Method: MethodText})
		}
	}
	return frags
}
