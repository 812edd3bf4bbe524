package model

import "time"

// RuleField selects which transaction field a rule pattern runs against.
type RuleField string

// Rule field constants.
const (
	FieldMerchantNormalised RuleField = "merchant_normalised"
	FieldDescriptionRaw     RuleField = "description_raw"
)

// AmountOp is a comparison operator for amount conditions.
type AmountOp string

// Amount comparison operators, applied to abs(amount).
const (
	OpGreater      AmountOp = ">"
	OpGreaterEqual AmountOp = ">="
	OpLess         AmountOp = "<"
	OpLessEqual    AmountOp = "<="
	OpEqual        AmountOp = "="
)

// AmountCondition restricts a rule to transactions whose absolute amount
// either satisfies a comparison or belongs to an exact-match set.
// Exactly one of Op/Exact is populated.
type AmountCondition struct {
	Op    AmountOp  `json:"op,omitempty"`
	Value float64   `json:"value,omitempty"`
	Exact []float64 `json:"exact,omitempty"`
}

// Matches reports whether the condition holds for the given absolute amount.
func (c *AmountCondition) Matches(absAmount float64) bool {
	if len(c.Exact) > 0 {
		for _, v := range c.Exact {
			if absAmount == v {
				return true
			}
		}
		return false
	}

	switch c.Op {
	case OpGreater:
		return absAmount > c.Value
	case OpGreaterEqual:
		return absAmount >= c.Value
	case OpLess:
		return absAmount < c.Value
	case OpLessEqual:
		return absAmount <= c.Value
	case OpEqual:
		return absAmount == c.Value
	}

	return false
}

// CategoryRule is a user-authored categorization rule. Lower priority values
// win over higher ones.
type CategoryRule struct {
	CreatedAt    time.Time        `json:"created_at"`
	UpdatedAt    time.Time        `json:"updated_at"`
	Amount       *AmountCondition `json:"amount,omitempty"`
	Pattern      string           `json:"pattern"`
	Field        RuleField        `json:"field"`
	Category     string           `json:"category"`
	CategoryType string           `json:"category_type"`
	ID           int              `json:"id"`
	Priority     int              `json:"priority"`
	Disabled     bool             `json:"disabled"`
}
