// Package toc renders a printable table of contents from classified
// mortgage package sections.
package toc

import (
	"fmt"
	"sort"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/dherrin84/mortscan/internal/classify"
)

// DownloadFilename is the suggested filename for a generated TOC.
const DownloadFilename = "mortgage_package_toc.txt"

const (
	barWidth   = 50
	labelWidth = 40
)

// Options adjust the rendered header.
type Options struct {
	// Source names the analyzed document. Empty omits the line.
	Source string
	// GeneratedAt stamps the header. Zero means time.Now().
	GeneratedAt time.Time
}

// Build renders the table of contents for the given sections, ordered
// by page. The input slice is not modified.
func Build(sections []classify.Section, opts Options) string {
	ordered := make([]classify.Section, len(sections))
	copy(ordered, sections)
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].Page < ordered[j].Page
	})

	when := opts.GeneratedAt
	if when.IsZero() {
		when = time.Now()
	}

	bar := strings.Repeat("=", barWidth)

	var b strings.Builder
	b.WriteString("MORTGAGE PACKAGE - TABLE OF CONTENTS\n")
	b.WriteString(bar + "\n\n")
	b.WriteString("Generated: " + when.Format("2006-01-02 15:04:05") + "\n")
	if opts.Source != "" {
		b.WriteString("Source: " + opts.Source + "\n")
	}
	b.WriteString("Processing: Local Server (Private)\n\n")

	for i, s := range ordered {
		page := fmt.Sprintf("Page %d", s.Page)
		fmt.Fprintf(&b, "%2d. %s %10s\n", i+1, padDots(s.SectionType, labelWidth), page)
	}

	b.WriteString("\n" + bar + "\n")
	fmt.Fprintf(&b, "Total Sections: %d\n", len(ordered))
	return b.String()
}

// padDots extends a label to width with trailing dots. Width is counted
// in runes so accented labels from a custom rule catalog line up with
// ASCII ones. Labels already at or past the width are left alone.
func padDots(s string, width int) string {
	n := utf8.RuneCountInString(s)
	if n >= width {
		return s
	}
	return s + strings.Repeat(".", width-n)
}
