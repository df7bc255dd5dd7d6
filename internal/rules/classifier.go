package rules

import (
	"fmt"

	"ledger/internal/core"
)

// Classification is the outcome of classifying one description. A zero
// id with the matching flag false means unclassified; a transaction may
// get a vendor, a category, both, or neither.
type Classification struct {
	VendorID        int64
	CategoryID      int64
	VendorMatched   bool
	CategoryMatched bool
	ViaAlias        bool // vendor came from an exact alias, not a keyword rule
}

// Classifier resolves a description against a snapshot of one user's
// vendor rules, category rules and vendor aliases. It is read-only and
// safe for concurrent use; rebuild it when the rule set changes.
type Classifier struct {
	vendorRules   *RuleSet
	categoryRules *RuleSet
	aliases       map[string]int64 // normalized alias -> vendor id
}

// NewClassifier builds a classifier from separate vendor and category
// rule slices plus the user's vendors (for alias lookup). Alias match
// is exact on the normalized description and takes precedence over any
// keyword rule.
func NewClassifier(vendorRules, categoryRules []core.KeywordRule, vendors []core.Vendor) (*Classifier, error) {
	for _, r := range vendorRules {
		if r.Kind != core.VendorRule {
			return nil, fmt.Errorf("rule %d: %w", r.ID, core.ErrInvalidRule)
		}
	}
	for _, r := range categoryRules {
		if r.Kind != core.CategoryRule {
			return nil, fmt.Errorf("rule %d: %w", r.ID, core.ErrInvalidRule)
		}
	}

	vrs, err := NewRuleSet(vendorRules)
	if err != nil {
		return nil, fmt.Errorf("vendor rules: %w", err)
	}
	crs, err := NewRuleSet(categoryRules)
	if err != nil {
		return nil, fmt.Errorf("category rules: %w", err)
	}

	aliases := make(map[string]int64)
	for _, v := range vendors {
		for _, a := range v.Aliases {
			key := NormalizeDescription(a)
			if key == "" {
				continue
			}
			// First vendor wins on duplicate aliases; vendors arrive
			// in id order from storage so this stays deterministic.
			if _, exists := aliases[key]; !exists {
				aliases[key] = v.ID
			}
		}
	}

	return &Classifier{
		vendorRules:   vrs,
		categoryRules: crs,
		aliases:       aliases,
	}, nil
}

// Classify resolves a single description. No match on either side is a
// normal outcome, never an error.
func (c *Classifier) Classify(description string) Classification {
	var result Classification

	if vendorID, ok := c.aliases[NormalizeDescription(description)]; ok {
		result.VendorID = vendorID
		result.VendorMatched = true
		result.ViaAlias = true
	} else if vendorID, ok := c.vendorRules.Match(description); ok {
		result.VendorID = vendorID
		result.VendorMatched = true
	}

	if categoryID, ok := c.categoryRules.Match(description); ok {
		result.CategoryID = categoryID
		result.CategoryMatched = true
	}

	return result
}

// ResolveVendor returns the vendor id for a raw description, or false
// when neither an alias nor a vendor rule matches. Callers that get
// false are expected to create a vendor named CleanMerchantName(raw).
func (c *Classifier) ResolveVendor(description string) (int64, bool) {
	if vendorID, ok := c.aliases[NormalizeDescription(description)]; ok {
		return vendorID, true
	}
	return c.vendorRules.Match(description)
}
