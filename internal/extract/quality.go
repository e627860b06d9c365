package extract

import (
	"unicode"

	"github.com/dherrin84/mortscan/internal/classify"
)

// Quality summarizes the text layer a document yielded. A low
// chars-per-page count usually means a scanned document; a low printable
// ratio means a mangled content stream. Informational, surfaced alongside
// analysis results.
type Quality struct {
	CharsPerPage   int     `json:"chars_per_page"`
	PrintableRatio float64 `json:"printable_ratio"`
}

func measureQuality(frags []classify.Fragment, pages int) Quality {
	if pages <= 0 {
		pages = 1
	}

	var total, printable int
	for _, f := range frags {
		for _, r := range f.Text {
			total++
			if unicode.IsPrint(r) {
				printable++
			}
		}
	}

	q := Quality{CharsPerPage: total / pages}
	if total > 0 {
		q.PrintableRatio = float64(printable) / float64(total)
	}
	return q
}
