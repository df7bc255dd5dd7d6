// Package rules resolves free-text transaction descriptions to vendor
// and category identities through ordered keyword rules.
package rules

import (
	"fmt"
	"sort"
	"strings"

	"ledger/internal/core"
)

// RuleSet is an immutable, pre-sorted collection of keyword rules for a
// single user scope (the user's own rules plus the global ones). Build
// it once per classification batch so every transaction in the batch
// sees the same rules.
type RuleSet struct {
	rules []core.KeywordRule
}

// NewRuleSet validates and orders the given rules. Keywords are
// normalized to lower case once here; matching is substring-based
// against a lower-cased description.
//
// Ordering decides which rule wins when several match:
//  1. higher priority first,
//  2. longer keyword first (a specific keyword beats a generic prefix),
//  3. user-scoped before global,
//  4. lower rule id first.
// The last two steps exist purely to make ties deterministic.
func NewRuleSet(ruleList []core.KeywordRule) (*RuleSet, error) {
	rules := make([]core.KeywordRule, 0, len(ruleList))
	for _, r := range ruleList {
		if err := r.Validate(); err != nil {
			return nil, fmt.Errorf("rule %d: %w", r.ID, err)
		}
		r.Keyword = strings.ToLower(strings.TrimSpace(r.Keyword))
		rules = append(rules, r)
	}

	sort.SliceStable(rules, func(i, j int) bool {
		a, b := rules[i], rules[j]
		if a.Priority != b.Priority {
			return a.Priority > b.Priority
		}
		if len(a.Keyword) != len(b.Keyword) {
			return len(a.Keyword) > len(b.Keyword)
		}
		if a.Global() != b.Global() {
			return !a.Global()
		}
		return a.ID < b.ID
	})

	return &RuleSet{rules: rules}, nil
}

// Len returns the number of rules in the set.
func (rs *RuleSet) Len() int {
	return len(rs.rules)
}

// Match returns the target id of the best rule whose keyword occurs in
// the description. The description is lower-cased and trimmed for
// matching only; it is never mutated. The boolean is false when no rule
// matches, which is a normal outcome and not an error.
func (rs *RuleSet) Match(description string) (int64, bool) {
	rule, ok := rs.MatchRule(description)
	if !ok {
		return 0, false
	}
	return rule.TargetID, true
}

// MatchRule is Match but returns the whole winning rule.
func (rs *RuleSet) MatchRule(description string) (core.KeywordRule, bool) {
	normalized := NormalizeDescription(description)
	if normalized == "" {
		return core.KeywordRule{}, false
	}
	for _, r := range rs.rules {
		if strings.Contains(normalized, r.Keyword) {
			return r, true
		}
	}
	return core.KeywordRule{}, false
}

// NormalizeDescription applies the match-time normalization: lower case
// and surrounding whitespace removed.
func NormalizeDescription(description string) string {
	return strings.ToLower(strings.TrimSpace(description))
}
