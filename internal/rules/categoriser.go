// Package rules compiles user-authored category rules into an ordered
// matcher. Invalid or disabled rules are dropped at compile time; matching
// never fails.
package rules

import (
	"math"
	"regexp"
	"sort"

	"github.com/mintfall/sift/internal/feature"
	"github.com/mintfall/sift/internal/model"
)

// FallbackCategory is assigned when no rule matches and no model applies.
const FallbackCategory = "Uncategorised"

// User patterns are compiled as RE2 so runaway matching is not possible,
// but oversized patterns still cost compile time. Reject them outright.
const maxPatternLen = 512

// Match describes the rule that categorized a transaction.
type Match struct {
	Category     string
	CategoryType string
	Rule         model.CategoryRule
}

type compiledRule struct {
	re   *regexp.Regexp
	rule model.CategoryRule
}

// Categoriser evaluates transactions against an ordered rule set.
type Categoriser struct {
	compiled []compiledRule
}

// NewCategoriser compiles a rule set. Disabled rules, empty or oversized
// patterns, and patterns that fail to compile are skipped silently.
func NewCategoriser(ruleSet []model.CategoryRule) *Categoriser {
	c := &Categoriser{}

	for _, rule := range ruleSet {
		if rule.Disabled || rule.Pattern == "" || len(rule.Pattern) > maxPatternLen {
			continue
		}

		re, err := regexp.Compile("(?i)" + rule.Pattern)
		if err != nil {
			continue
		}

		if rule.Category == "" {
			rule.Category = FallbackCategory
		}

		c.compiled = append(c.compiled, compiledRule{re: re, rule: rule})
	}

	sort.SliceStable(c.compiled, func(i, j int) bool {
		return c.compiled[i].rule.Priority < c.compiled[j].rule.Priority
	})

	return c
}

// Categorise returns the first matching rule in ascending priority order,
// or (nil, FallbackCategory result) semantics: ok is false and the caller
// falls through to the model.
func (c *Categoriser) Categorise(tx model.Transaction) (Match, bool) {
	abs := math.Abs(tx.Amount)

	for _, cr := range c.compiled {
		if !cr.re.MatchString(targetField(tx, cr.rule.Field)) {
			continue
		}
		if cr.rule.Amount != nil && !cr.rule.Amount.Matches(abs) {
			continue
		}
		return Match{
			Category:     cr.rule.Category,
			CategoryType: cr.rule.CategoryType,
			Rule:         cr.rule,
		}, true
	}

	return Match{}, false
}

// DetectTransferKeyword is a cheap single-transaction heuristic: the text
// mentions a transfer and nothing purchase-like. The pairing detector is
// authoritative; this exists for rule-engine callers that see one
// transaction at a time.
func DetectTransferKeyword(tx model.Transaction) bool {
	text := tx.Name + " " + tx.MerchantName
	return feature.HasTransferHint(text) && !feature.HasNonTransferHint(text)
}

func targetField(tx model.Transaction, field model.RuleField) string {
	switch field {
	case model.FieldDescriptionRaw:
		return tx.Name
	default:
		merchant := tx.MerchantName
		if merchant == "" {
			merchant = tx.Name
		}
		return feature.Normalize(merchant)
	}
}
