package classify

import (
	"sort"
	"strings"
)

// Fragment is one line of extracted text tagged with its source page.
// Method records which extraction path produced it and plays no part in
// classification.
type Fragment struct {
	Text   string `json:"text"`
	Page   int    `json:"page"`
	Method string `json:"method,omitempty"`
}

// Confidence grades the strength of a pattern match.
type Confidence string

const (
	ConfidenceHigh   Confidence = "high"
	ConfidenceMedium Confidence = "medium"
	ConfidenceLow    Confidence = "low"
)

// confidenceRank orders tiers for upsert comparisons. Unknown tiers rank
// below low.
var confidenceRank = map[Confidence]int{
	ConfidenceHigh:   3,
	ConfidenceMedium: 2,
	ConfidenceLow:    1,
}

// Section is one identified document section. At most one exists per
// label; it carries the best match seen for that label.
type Section struct {
	SectionType    string     `json:"section_type"`
	Page           int        `json:"page"`
	Confidence     Confidence `json:"confidence"`
	TextSnippet    string     `json:"text_snippet"`
	Priority       int        `json:"priority"`
	PatternMatched string     `json:"pattern_matched"`
}

// Classify matches fragments against the built-in rule catalog.
func Classify(fragments []Fragment) []Section {
	return ClassifyWith(defaultRules, fragments)
}

// ClassifyWith matches every fragment against every rule and keeps the
// best match per label. A new match replaces an existing entry when its
// confidence outranks the old one, or when confidence is equal and its
// priority is >= the old priority, so among full ties the last processed
// match owns the label. The result is sorted by priority descending,
// then page ascending, then label.
func ClassifyWith(rules []Rule, fragments []Fragment) []Section {
	found := make(map[string]*Section, len(rules))

	for _, frag := range fragments {
		text := strings.ToUpper(frag.Text)

		for _, rule := range rules {
			for _, pattern := range rule.Patterns {
				if !strings.Contains(text, pattern) {
					continue
				}
				conf := matchConfidence(text, pattern, rule.Patterns)

				existing, ok := found[rule.Label]
				switch {
				case !ok:
					found[rule.Label] = &Section{
						SectionType:    rule.Label,
						Page:           frag.Page,
						Confidence:     conf,
						TextSnippet:    snippet(frag.Text),
						Priority:       rule.Priority,
						PatternMatched: pattern,
					}
				case confidenceRank[conf] > confidenceRank[existing.Confidence] ||
					(conf == existing.Confidence && rule.Priority >= existing.Priority):
					existing.Page = frag.Page
					existing.Confidence = conf
					existing.TextSnippet = snippet(frag.Text)
					existing.PatternMatched = pattern
				}

				// The first pattern that matches settles this rule for
				// this fragment.
				break
			}
		}
	}

	sections := make([]Section, 0, len(found))
	for _, s := range found {
		sections = append(sections, *s)
	}
	sort.Slice(sections, func(i, j int) bool {
		if sections[i].Priority != sections[j].Priority {
			return sections[i].Priority > sections[j].Priority
		}
		if sections[i].Page != sections[j].Page {
			return sections[i].Page < sections[j].Page
		}
		return sections[i].SectionType < sections[j].SectionType
	})
	return sections
}

// matchConfidence grades a single pattern hit. A line that is exactly the
// pattern, or a short line containing it, is a section title; a line
// hitting several of the rule's patterns at once is treated the same way
// even when long.
func matchConfidence(upperText, pattern string, patterns []string) Confidence {
	if strings.TrimSpace(upperText) == pattern {
		return ConfidenceHigh
	}
	if len(strings.Fields(upperText)) <= 10 {
		return ConfidenceHigh
	}
	hits := 0
	for _, p := range patterns {
		if strings.Contains(upperText, p) {
			hits++
		}
	}
	if hits > 1 {
		return ConfidenceHigh
	}
	return ConfidenceMedium
}

// snippet returns the first 100 characters of the original line.
func snippet(text string) string {
	const maxLen = 100
	r := []rune(text)
	if len(r) <= maxLen {
		return text
	}
	return string(r[:maxLen])
}
