package rules

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/mintfall/sift/internal/model"
)

var (
	numberRe   = regexp.MustCompile(`\d+(?:\.\d+)?`)
	currencyRe = regexp.MustCompile(`[$€£]|\b(?:aud|usd|nzd|gbp|eur|dollars?)\b`)
)

// Word phrasings accepted by the parser, checked before symbol operators so
// "at least 50" does not fall through to the bare number path.
var wordOps = []struct {
	phrase string
	op     model.AmountOp
}{
	{"at least", model.OpGreaterEqual},
	{"no less than", model.OpGreaterEqual},
	{"at most", model.OpLessEqual},
	{"no more than", model.OpLessEqual},
	{"more than", model.OpGreater},
	{"greater than", model.OpGreater},
	{"over", model.OpGreater},
	{"above", model.OpGreater},
	{"less than", model.OpLess},
	{"under", model.OpLess},
	{"below", model.OpLess},
	{"exactly", model.OpEqual},
	{"equal to", model.OpEqual},
	{"equals", model.OpEqual},
}

var symbolOps = []struct {
	symbol string
	op     model.AmountOp
}{
	{">=", model.OpGreaterEqual},
	{"<=", model.OpLessEqual},
	{">", model.OpGreater},
	{"<", model.OpLess},
	{"=", model.OpEqual},
}

// ParseAmountCondition parses a free-text amount condition like
// "at least 50", ">= 12.50", "$100", or "100 or 150". Parsing is
// best-effort: anything unparseable yields nil, never an error. Thresholds
// are absolute values; negative input is rejected as garbage.
func ParseAmountCondition(text string) *model.AmountCondition {
	cleaned := strings.ToLower(strings.TrimSpace(text))
	if cleaned == "" {
		return nil
	}
	if strings.Contains(cleaned, "-") {
		return nil
	}
	cleaned = currencyRe.ReplaceAllString(cleaned, "")
	cleaned = strings.TrimSpace(cleaned)

	for _, w := range wordOps {
		if strings.Contains(cleaned, w.phrase) {
			if v, ok := firstNumber(strings.Replace(cleaned, w.phrase, "", 1)); ok {
				return &model.AmountCondition{Op: w.op, Value: v}
			}
			return nil
		}
	}

	for _, s := range symbolOps {
		if strings.Contains(cleaned, s.symbol) {
			if v, ok := firstNumber(strings.Replace(cleaned, s.symbol, "", 1)); ok {
				return &model.AmountCondition{Op: s.op, Value: v}
			}
			return nil
		}
	}

	// "100 or 150" style exact-match sets
	if strings.Contains(cleaned, " or ") {
		var exact []float64
		for _, part := range strings.Split(cleaned, " or ") {
			v, ok := firstNumber(part)
			if !ok {
				return nil
			}
			exact = append(exact, v)
		}
		if len(exact) < 2 {
			return nil
		}
		return &model.AmountCondition{Exact: exact}
	}

	// A bare number means exact equality.
	if v, ok := firstNumber(cleaned); ok {
		return &model.AmountCondition{Op: model.OpEqual, Value: v}
	}

	return nil
}

func firstNumber(text string) (float64, bool) {
	match := numberRe.FindString(text)
	if match == "" {
		return 0, false
	}
	v, err := strconv.ParseFloat(match, 64)
	if err != nil || v < 0 {
		return 0, false
	}
	return v, true
}
