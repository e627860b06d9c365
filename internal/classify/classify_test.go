package classify

import (
	"reflect"
	"strings"
	"testing"
)

func TestClassify_ExactTitleMatch(t *testing.T) {
	sections := Classify([]Fragment{
		{Text: "PROMISSORY NOTE", Page: 3, Method: "text"},
	})

	if len(sections) != 1 {
		t.Fatalf("expected 1 section, got %d", len(sections))
	}
	s := sections[0]
	if s.SectionType != "Promissory Note" {
		t.Errorf("expected label %q, got %q", "Promissory Note", s.SectionType)
	}
	if s.Page != 3 {
		t.Errorf("expected page 3, got %d", s.Page)
	}
	if s.Confidence != ConfidenceHigh {
		t.Errorf("expected high confidence, got %q", s.Confidence)
	}
	if s.PatternMatched != "PROMISSORY NOTE" {
		t.Errorf("expected pattern %q, got %q", "PROMISSORY NOTE", s.PatternMatched)
	}
	if s.Priority != 10 {
		t.Errorf("expected priority 10, got %d", s.Priority)
	}
	if s.TextSnippet != "PROMISSORY NOTE" {
		t.Errorf("expected snippet %q, got %q", "PROMISSORY NOTE", s.TextSnippet)
	}
}

func TestClassify_LongSentenceMediumConfidence(t *testing.T) {
	// 11 words: too long for the short-line rule, single pattern per rule.
	sections := Classify([]Fragment{
		{Text: "This deed of trust secures repayment of the note described herein", Page: 1},
	})

	// "DEED OF TRUST" hits the Mortgage rule, "NOTE" the Promissory Note
	// rule, and "DEED" the Deed rule.
	if len(sections) != 3 {
		t.Fatalf("expected 3 sections, got %d: %+v", len(sections), sections)
	}

	mortgage := findSection(t, sections, "Mortgage")
	if mortgage.Confidence != ConfidenceMedium {
		t.Errorf("expected medium confidence, got %q", mortgage.Confidence)
	}
	if mortgage.PatternMatched != "DEED OF TRUST" {
		t.Errorf("expected pattern %q, got %q", "DEED OF TRUST", mortgage.PatternMatched)
	}
	if mortgage.Page != 1 {
		t.Errorf("expected page 1, got %d", mortgage.Page)
	}
	if mortgage.Priority != 10 {
		t.Errorf("expected priority 10, got %d", mortgage.Priority)
	}

	// Priority 10 entries sort before priority 6; equal priority sorts by label.
	wantOrder := []string{"Mortgage", "Promissory Note", "Deed"}
	for i, label := range wantOrder {
		if sections[i].SectionType != label {
			t.Errorf("position %d: expected %q, got %q", i, label, sections[i].SectionType)
		}
	}
}

func TestClassify_EmptyInput(t *testing.T) {
	sections := Classify([]Fragment{})
	if len(sections) != 0 {
		t.Errorf("expected empty result, got %d sections", len(sections))
	}

	sections = Classify(nil)
	if len(sections) != 0 {
		t.Errorf("expected empty result for nil input, got %d sections", len(sections))
	}
}

func TestClassify_LastEqualMatchWins(t *testing.T) {
	// Equal confidence and equal priority: the later fragment keeps
	// overwriting the entry.
	sections := Classify([]Fragment{
		{Text: "AFFIDAVIT", Page: 2},
		{Text: "AFFIDAVIT", Page: 7},
	})

	if len(sections) != 1 {
		t.Fatalf("expected 1 section, got %d", len(sections))
	}
	if sections[0].Page != 7 {
		t.Errorf("expected last match page 7, got %d", sections[0].Page)
	}

	// Reversed input order flips the winner.
	sections = Classify([]Fragment{
		{Text: "AFFIDAVIT", Page: 7},
		{Text: "AFFIDAVIT", Page: 2},
	})
	if sections[0].Page != 2 {
		t.Errorf("expected last match page 2, got %d", sections[0].Page)
	}
}

func TestClassify_FragmentMatchingTwoRules(t *testing.T) {
	sections := Classify([]Fragment{
		{Text: "MORTGAGE AND PROMISSORY NOTE", Page: 4},
	})

	if len(sections) != 2 {
		t.Fatalf("expected 2 sections, got %d: %+v", len(sections), sections)
	}
	for _, s := range sections {
		if s.Page != 4 {
			t.Errorf("%s: expected page 4, got %d", s.SectionType, s.Page)
		}
		if s.Confidence != ConfidenceHigh {
			t.Errorf("%s: expected high confidence, got %q", s.SectionType, s.Confidence)
		}
	}
	findSection(t, sections, "Mortgage")
	findSection(t, sections, "Promissory Note")
}

func TestClassify_ShortLineHighConfidence(t *testing.T) {
	sections := Classify([]Fragment{
		{Text: "Flood Hazard Determination Form 086", Page: 14},
	})

	s := findSection(t, sections, "Flood Hazard Determination")
	if s.Confidence != ConfidenceHigh {
		t.Errorf("expected high confidence for short line, got %q", s.Confidence)
	}
	if s.PatternMatched != "FLOOD HAZARD DETERMINATION" {
		t.Errorf("expected pattern %q, got %q", "FLOOD HAZARD DETERMINATION", s.PatternMatched)
	}
}

func TestClassify_MultiPatternHitIsHigh(t *testing.T) {
	// 16 words, so the short-line rule does not apply, but three of the
	// rule's patterns occur at once.
	text := "the homeowner's insurance policy also provides hazard insurance protection for the dwelling and all attached structures"
	sections := Classify([]Fragment{{Text: text, Page: 22}})

	s := findSection(t, sections, "Insurance Policy")
	if s.Confidence != ConfidenceHigh {
		t.Errorf("expected high confidence from multiple pattern hits, got %q", s.Confidence)
	}
	if s.PatternMatched != "INSURANCE POLICY" {
		t.Errorf("expected first matching pattern %q, got %q", "INSURANCE POLICY", s.PatternMatched)
	}
}

func TestClassify_FirstPatternInRuleWins(t *testing.T) {
	// "WARRANTY DEED" contains both "DEED" and "WARRANTY DEED"; the rule
	// lists "DEED" first, and scanning stops at the first hit.
	sections := Classify([]Fragment{
		{Text: "WARRANTY DEED", Page: 30},
	})

	s := findSection(t, sections, "Deed")
	if s.PatternMatched != "DEED" {
		t.Errorf("expected pattern %q, got %q", "DEED", s.PatternMatched)
	}
	if s.Confidence != ConfidenceHigh {
		t.Errorf("expected high confidence, got %q", s.Confidence)
	}
}

func TestClassify_ConfidenceUpgradeReplaces(t *testing.T) {
	long := "this settlement statement reflects all of the charges imposed upon the borrower at closing today"

	sections := Classify([]Fragment{
		{Text: long, Page: 9},
		{Text: "SETTLEMENT STATEMENT", Page: 12},
	})
	s := findSection(t, sections, "Settlement Statement")
	if s.Confidence != ConfidenceHigh {
		t.Errorf("expected upgraded high confidence, got %q", s.Confidence)
	}
	if s.Page != 12 {
		t.Errorf("expected page 12 after upgrade, got %d", s.Page)
	}
}

func TestClassify_LowerConfidenceDoesNotReplace(t *testing.T) {
	long := "this settlement statement reflects all of the charges imposed upon the borrower at closing today"

	sections := Classify([]Fragment{
		{Text: "SETTLEMENT STATEMENT", Page: 2},
		{Text: long, Page: 9},
	})
	s := findSection(t, sections, "Settlement Statement")
	if s.Confidence != ConfidenceHigh {
		t.Errorf("expected high confidence to survive, got %q", s.Confidence)
	}
	if s.Page != 2 {
		t.Errorf("expected page 2 to survive a weaker later match, got %d", s.Page)
	}
}

func TestClassify_PatternMatchesInsideWords(t *testing.T) {
	// Containment is plain substring search, not word-boundary matching:
	// "FOOTNOTES" contains "NOTE". Deliberate, if crude.
	sections := Classify([]Fragment{
		{Text: "Please see footnotes on page twelve", Page: 5},
	})

	s := findSection(t, sections, "Promissory Note")
	if s.PatternMatched != "NOTE" {
		t.Errorf("expected substring pattern %q, got %q", "NOTE", s.PatternMatched)
	}
}

func TestClassify_SnippetTruncation(t *testing.T) {
	filler := strings.Repeat("x", 120)
	text := "MORTGAGE " + filler

	sections := Classify([]Fragment{{Text: text, Page: 1}})
	s := findSection(t, sections, "Mortgage")

	if len([]rune(s.TextSnippet)) != 100 {
		t.Errorf("expected 100-char snippet, got %d chars", len([]rune(s.TextSnippet)))
	}
	if !strings.HasPrefix(text, s.TextSnippet) {
		t.Error("expected snippet to be a prefix of the fragment text")
	}
}

func TestClassify_UniquenessInvariant(t *testing.T) {
	fragments := []Fragment{
		{Text: "MORTGAGE", Page: 1},
		{Text: "This mortgage is granted by the borrower to secure the debt evidenced by the note", Page: 2},
		{Text: "MORTGAGE", Page: 15},
		{Text: "AFFIDAVIT", Page: 20},
		{Text: "AFFIDAVIT OF OCCUPANCY", Page: 21},
		{Text: "Sworn statement of the undersigned", Page: 22},
		{Text: "SETTLEMENT STATEMENT", Page: 3},
		{Text: "HUD-1", Page: 3},
	}

	sections := Classify(fragments)
	seen := make(map[string]int)
	for _, s := range sections {
		seen[s.SectionType]++
	}
	for label, n := range seen {
		if n > 1 {
			t.Errorf("label %q appears %d times, expected at most once", label, n)
		}
	}
}

func TestClassify_PriorityConsistencyInvariant(t *testing.T) {
	catalog := make(map[string]int, len(defaultRules))
	for _, r := range defaultRules {
		catalog[r.Label] = r.Priority
	}

	fragments := []Fragment{
		{Text: "MORTGAGE", Page: 1},
		{Text: "PROMISSORY NOTE", Page: 2},
		{Text: "SETTLEMENT STATEMENT", Page: 3},
		{Text: "FLOOD HAZARD DETERMINATION", Page: 4},
		{Text: "TITLE POLICY", Page: 5},
		{Text: "UCC FILING", Page: 6},
		{Text: "AFFIDAVIT", Page: 7},
		{Text: "Payment will be collected via ACH authorization on the first of each month", Page: 8},
	}

	for _, s := range Classify(fragments) {
		want, ok := catalog[s.SectionType]
		if !ok {
			t.Errorf("label %q not in catalog", s.SectionType)
			continue
		}
		if s.Priority != want {
			t.Errorf("label %q: priority %d does not match catalog %d", s.SectionType, s.Priority, want)
		}
	}
}

func TestClassify_Idempotent(t *testing.T) {
	fragments := []Fragment{
		{Text: "MORTGAGE", Page: 1},
		{Text: "This deed of trust secures repayment of the note described herein", Page: 2},
		{Text: "AFFIDAVIT", Page: 9},
		{Text: "SIGNATURE PAGE", Page: 40},
	}

	first := Classify(fragments)
	second := Classify(fragments)
	if !reflect.DeepEqual(first, second) {
		t.Errorf("expected identical output on re-classification:\nfirst:  %+v\nsecond: %+v", first, second)
	}
}

func TestClassify_SamePagePermutationInvariant(t *testing.T) {
	base := []Fragment{
		{Text: "SETTLEMENT STATEMENT", Page: 2},
		{Text: "AFFIDAVIT", Page: 2},
		{Text: "FLOOD HAZARD DETERMINATION", Page: 2},
	}
	permuted := []Fragment{base[2], base[0], base[1]}

	a := Classify(base)
	b := Classify(permuted)
	if !reflect.DeepEqual(a, b) {
		t.Errorf("expected permutation-invariant output:\na: %+v\nb: %+v", a, b)
	}
}

func TestClassify_OutputOrdering(t *testing.T) {
	fragments := []Fragment{
		{Text: "UCC FILING", Page: 44},
		{Text: "AFFIDAVIT", Page: 31},
		{Text: "SIGNATURE PAGE", Page: 31},
		{Text: "MORTGAGE", Page: 5},
		{Text: "PROMISSORY NOTE", Page: 2},
		{Text: "SETTLEMENT STATEMENT", Page: 8},
		{Text: "WARRANTY DEED", Page: 19},
		{Text: "TITLE POLICY", Page: 12},
	}

	sections := Classify(fragments)
	if len(sections) < 4 {
		t.Fatalf("expected several sections, got %d", len(sections))
	}

	for i := 0; i < len(sections)-1; i++ {
		a, b := sections[i], sections[i+1]
		switch {
		case a.Priority > b.Priority:
		case a.Priority == b.Priority && a.Page < b.Page:
		case a.Priority == b.Priority && a.Page == b.Page && a.SectionType <= b.SectionType:
		default:
			t.Errorf("ordering violated at %d: %+v before %+v", i, a, b)
		}
	}
}

func TestClassify_NoMatchesYieldsEmpty(t *testing.T) {
	sections := Classify([]Fragment{
		{Text: "Lorem ipsum dolor sit amet", Page: 1},
		{Text: "Quarterly revenue summary", Page: 2},
	})
	if len(sections) != 0 {
		t.Errorf("expected no sections, got %+v", sections)
	}
}

func TestClassifyWith_CustomCatalog(t *testing.T) {
	rules := []Rule{
		{Patterns: []string{"ESCROW AGREEMENT"}, Label: "Escrow Agreement", Priority: 4},
		{Patterns: []string{"RIDER"}, Label: "Rider", Priority: 3},
	}

	sections := ClassifyWith(rules, []Fragment{
		{Text: "ESCROW AGREEMENT", Page: 1},
		{Text: "CONDOMINIUM RIDER", Page: 2},
		{Text: "MORTGAGE", Page: 3}, // not in this catalog
	})

	if len(sections) != 2 {
		t.Fatalf("expected 2 sections, got %d", len(sections))
	}
	if sections[0].SectionType != "Escrow Agreement" || sections[1].SectionType != "Rider" {
		t.Errorf("unexpected order: %+v", sections)
	}
}

// findSection fails the test when the label is absent.
func findSection(t *testing.T, sections []Section, label string) Section {
	t.Helper()
	for _, s := range sections {
		if s.SectionType == label {
			return s
		}
	}
	t.Fatalf("section %q not found in %+v", label, sections)
	return Section{}
}
