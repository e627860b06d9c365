package classify

import (
	"fmt"
	"io"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Rule maps a set of keyword patterns to a section label and priority.
// Patterns are uppercase; any one matching is sufficient. Higher priority
// sorts earlier in the output.
type Rule struct {
	Patterns []string `yaml:"patterns"`
	Label    string   `yaml:"label"`
	Priority int      `yaml:"priority"`
}

// defaultRules is the built-in catalog of mortgage package sections,
// grouped by how central the document is to the closing.
var defaultRules = []Rule{
	// Core loan documents.
	{Patterns: []string{"MORTGAGE", "DEED OF TRUST", "SECURITY INSTRUMENT"}, Label: "Mortgage", Priority: 10},
	{Patterns: []string{"PROMISSORY NOTE", "NOTE"}, Label: "Promissory Note", Priority: 10},

	// Closing documents.
	{Patterns: []string{"LENDERS CLOSING INSTRUCTIONS", "CLOSING INSTRUCTIONS GUARANTY", "LENDER'S CLOSING INSTRUCTIONS"}, Label: "Lenders Closing Instructions Guaranty", Priority: 9},
	{Patterns: []string{"SETTLEMENT STATEMENT", "HUD-1", "CLOSING DISCLOSURE"}, Label: "Settlement Statement", Priority: 9},

	// Legal and compliance.
	{Patterns: []string{"STATEMENT OF ANTI COERCION", "ANTI COERCION", "ANTI-COERCION FLORIDA"}, Label: "Statement of Anti Coercion Florida", Priority: 8},
	{Patterns: []string{"CORRECTION AGREEMENT", "LIMITED POWER OF ATTORNEY", "POWER OF ATTORNEY"}, Label: "Correction Agreement and Limited Power of Attorney", Priority: 8},
	{Patterns: []string{"ALL PURPOSE ACKNOWLEDGMENT", "ACKNOWLEDGMENT", "NOTARY ACKNOWLEDGMENT"}, Label: "All Purpose Acknowledgment", Priority: 8},

	// Property and insurance.
	{Patterns: []string{"FLOOD HAZARD DETERMINATION", "FLOOD DETERMINATION", "FEMA FLOOD"}, Label: "Flood Hazard Determination", Priority: 7},
	{Patterns: []string{"INSURANCE POLICY", "HOMEOWNER'S INSURANCE", "HAZARD INSURANCE"}, Label: "Insurance Policy", Priority: 7},

	// Financial records.
	{Patterns: []string{"AUTOMATIC PAYMENTS AUTHORIZATION", "AUTOMATIC PAYMENT", "ACH AUTHORIZATION"}, Label: "Automatic Payments Authorization", Priority: 7},
	{Patterns: []string{"TAX RECORD INFORMATION", "TAX RECORDS", "PROPERTY TAX"}, Label: "Tax Record Information", Priority: 7},

	// Title and ownership.
	{Patterns: []string{"TITLE POLICY", "TITLE INSURANCE", "OWNER'S POLICY"}, Label: "Title Policy", Priority: 6},
	{Patterns: []string{"DEED", "WARRANTY DEED", "QUITCLAIM DEED"}, Label: "Deed", Priority: 6},

	// Supporting documents.
	{Patterns: []string{"UCC FILING", "UCC-1", "FINANCING STATEMENT"}, Label: "UCC Filing", Priority: 5},
	{Patterns: []string{"SIGNATURE PAGE", "SIGNATURES", "BORROWER SIGNATURE"}, Label: "Signature Page", Priority: 5},
	{Patterns: []string{"AFFIDAVIT", "SWORN STATEMENT"}, Label: "Affidavit", Priority: 5},
}

// DefaultRules returns the built-in section rule catalog.
func DefaultRules() []Rule {
	return defaultRules
}

// LoadRules reads a YAML rule catalog. Patterns are trimmed and
// uppercased on load so matching stays case-insensitive regardless of
// how the file is written.
func LoadRules(r io.Reader) ([]Rule, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read rules: %w", err)
	}

	var rules []Rule
	if err := yaml.Unmarshal(data, &rules); err != nil {
		return nil, fmt.Errorf("parse rules: %w", err)
	}

	for i := range rules {
		rules[i].Label = strings.TrimSpace(rules[i].Label)
		for j := range rules[i].Patterns {
			rules[i].Patterns[j] = strings.ToUpper(strings.TrimSpace(rules[i].Patterns[j]))
		}
	}

	if err := ValidateRules(rules); err != nil {
		return nil, err
	}
	return rules, nil
}

// LoadRulesFile loads a YAML rule catalog from disk.
func LoadRulesFile(path string) ([]Rule, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open rules file: %w", err)
	}
	defer f.Close()

	rules, err := LoadRules(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return rules, nil
}

// ValidateRules rejects catalogs that would break the one-section-per-label
// invariant or match nothing.
func ValidateRules(rules []Rule) error {
	if len(rules) == 0 {
		return fmt.Errorf("rule catalog is empty")
	}
	seen := make(map[string]bool, len(rules))
	for i, r := range rules {
		if r.Label == "" {
			return fmt.Errorf("rule %d: label is empty", i)
		}
		if seen[r.Label] {
			return fmt.Errorf("rule %d: duplicate label %q", i, r.Label)
		}
		seen[r.Label] = true

		if len(r.Patterns) == 0 {
			return fmt.Errorf("rule %d (%s): no patterns", i, r.Label)
		}
		for j, p := range r.Patterns {
			if p == "" {
				return fmt.Errorf("rule %d (%s): pattern %d is empty", i, r.Label, j)
			}
		}
	}
	return nil
}
