package feature

import "strings"

// Transfer hints mark text that looks like money moving between the user's
// own accounts; non-transfer hints mark text that looks like a merchant
// purchase and veto the cheap keyword heuristic.
var (
	transferHints    = []string{"transfer", "xfr", "tfr", "internal", "sweep", "to savings", "from savings"}
	nonTransferHints = []string{"eftpos", "card", "visa", "mastercard", "pos", "atm", "paypal"}
)

// HasTransferHint reports whether normalized text contains a transfer hint.
func HasTransferHint(text string) bool {
	return containsAny(Normalize(text), transferHints)
}

// HasNonTransferHint reports whether normalized text contains a hint that
// the transaction is an ordinary purchase rather than a transfer.
func HasNonTransferHint(text string) bool {
	return containsAny(Normalize(text), nonTransferHints)
}

func containsAny(normalized string, hints []string) bool {
	for _, h := range hints {
		if strings.Contains(normalized, h) {
			return true
		}
	}
	return false
}
