package extract

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/otiai10/gosseract/v2"

	"github.com/dherrin84/mortscan/internal/classify"
)

// OCRAvailable reports whether the rasterizer needed for OCR is on PATH.
// Tesseract itself is linked in through gosseract.
func OCRAvailable() bool {
	_, err := exec.LookPath("pdftoppm")
	return err == nil
}

// extractOCR rasterizes every page to PNG and runs Tesseract over each
// image. Individual page failures are logged and skipped.
func (e *Extractor) extractOCR(ctx context.Context, path string, progress ProgressFunc) ([]classify.Fragment, int, error) {
	dir, err := os.MkdirTemp("", "mortscan-ocr-*")
	if err != nil {
		return nil, 0, fmt.Errorf("create ocr dir: %w", err)
	}
	defer os.RemoveAll(dir)

	// pdftoppm zero-pads page numbers, so a lexical sort keeps page order.
	prefix := filepath.Join(dir, "page")
	cmd := exec.CommandContext(ctx, "pdftoppm", "-png", "-r", strconv.Itoa(e.opts.OCRDPI), path, prefix)
	if out, err := cmd.CombinedOutput(); err != nil {
		return nil, 0, fmt.Errorf("pdftoppm: %w: %s", err, bytes.TrimSpace(out))
	}

	images, err := filepath.Glob(prefix + "-*.png")
	if err != nil || len(images) == 0 {
		return nil, 0, fmt.Errorf("no pages rasterized")
	}
	sort.Strings(images)

	client := gosseract.NewClient()
	defer client.Close()
	if e.opts.OCRLanguage != "" {
		if err := client.SetLanguage(e.opts.OCRLanguage); err != nil {
			return nil, 0, fmt.Errorf("set ocr language %q: %w", e.opts.OCRLanguage, err)
		}
	}

	total := len(images)
	progress(0, total, StageOCR)

	var frags []classify.Fragment
	for i, img := range images {
		if err := ctx.Err(); err != nil {
			return nil, 0, err
		}
		page := i + 1
		progress(page, total, StageOCRPage(page))

		if err := client.SetImage(img); err != nil {
			e.log.Warn("ocr set image failed", "page", page, "error", err)
			continue
		}
		text, err := client.Text()
		if err != nil {
			e.log.Warn("ocr failed", "page", page, "error", err)
			continue
		}
		frags = appendOCRLines(frags, text, page)
	}
	return frags, total, nil
}

// appendOCRLines keeps trimmed lines longer than 5 characters containing
// at least one letter. OCR output is noisier than the text layer, so the
// bar is higher than in appendTextLines. Length is counted in runes.
func appendOCRLines(frags []classify.Fragment, text string, page int) []classify.Fragment {
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if utf8.RuneCountInString(line) > 5 && hasLetter(line) {
			frags = append(frags, classify.Fragment{Text: line, Page: page, Method: MethodOCR})
		}
	}
	return frags
}

func hasLetter(s string) bool {
	for _, r := range s {
		if unicode.IsLetter(r) {
			return true
		}
	}
	return false
}
