// Package feature turns transactions into hashed sparse vectors and
// human-readable prediction signals. Everything here is a pure function of
// its input; identical transactions always produce identical output.
package feature

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/mintfall/sift/internal/model"
)

// Dim is the fixed hashed feature dimension.
const Dim = 8192

const (
	minTokenLen = 2
	maxTokenLen = 24

	maxMerchantTokens    = 8
	maxDescriptionTokens = 16
	maxBigrams           = 10
	maxReferenceTokens   = 4
	maxCharGrams         = 28
)

// Feature family weights. These are fixed by the model format: changing one
// invalidates every stored weight matrix.
const (
	weightMerchantKey     = 2.2
	weightAccountKey      = 1.1
	weightMerchantToken   = 1.3
	weightDescToken       = 0.8
	weightBigram          = 0.55
	weightReferenceToken  = 0.9
	weightCharGram        = 0.35
	weightAmountBucket    = 0.9
	weightDirectionBucket = 1.1
	weightRoundedBucket   = 0.75
	weightDirection       = 0.6
	weightWeekday         = 0.35
	weightMonth           = 0.2
	weightTextSignature   = 0.5
	weightDayOfMonthBand  = 0.2
	weightLogAmount       = 0.45
	weightCents           = 0.15
)

var stopWords = map[string]struct{}{
	"payment": {}, "card": {}, "eftpos": {}, "pos": {}, "purchase": {},
	"debit": {}, "credit": {}, "visa": {}, "mastercard": {}, "tap": {},
	"ref": {}, "txn": {}, "the": {}, "and": {}, "for": {}, "with": {},
}

var corporateSuffixes = map[string]struct{}{
	"ltd": {}, "co": {}, "inc": {}, "llc": {}, "plc": {}, "pty": {},
	"corp": {}, "gmbh": {}, "limited": {},
}

// Dimension returns the fixed hashed feature dimension.
func Dimension() int {
	return Dim
}

// Extract builds the hashed sparse feature vector for a transaction.
// Indices come back sorted ascending and unique; colliding feature names
// accumulate additively into the same slot.
func Extract(tx model.Transaction) model.FeatureVector {
	acc := make(map[int]float64)
	add := func(name string, weight float64) {
		acc[hashIndex(name)] += weight
	}

	merchantKey := MerchantKey(merchantText(tx))
	add("merchant="+merchantKey, weightMerchantKey)
	add("account="+Normalize(tx.AccountName), weightAccountKey)

	merchantTokens := Tokenize(merchantText(tx))
	for i, tok := range merchantTokens {
		if i >= maxMerchantTokens {
			break
		}
		add("mtok="+tok, weightMerchantToken)
	}

	descTokens := Tokenize(tx.Name)
	for i, tok := range descTokens {
		if i >= maxDescriptionTokens {
			break
		}
		add("dtok="+tok, weightDescToken)
	}
	for i := 0; i+1 < len(descTokens) && i < maxBigrams; i++ {
		add("bigram="+descTokens[i]+"_"+descTokens[i+1], weightBigram)
	}

	for _, ref := range ReferenceTokens(tx.Name) {
		add("reftok="+ref, weightReferenceToken)
	}

	grams := 0
	compact := strings.ReplaceAll(merchantKey, " ", "")
	for size := 3; size <= 5 && grams < maxCharGrams; size++ {
		for i := 0; i+size <= len(compact) && grams < maxCharGrams; i++ {
			add("mgram="+compact[i:i+size], weightCharGram)
			grams++
		}
	}

	abs := math.Abs(tx.Amount)
	bucket := AmountBucket(abs)
	direction := directionOf(tx.Amount)
	add("amount="+bucket, weightAmountBucket)
	add("dir_amount="+direction+"_"+bucket, weightDirectionBucket)
	add(fmt.Sprintf("round_amount=%.0f", roundedAmount(abs)), weightRoundedBucket)
	add("direction="+direction, weightDirection)

	add("weekday="+strings.ToLower(tx.Date.Weekday().String()), weightWeekday)
	add("month="+strings.ToLower(tx.Date.Month().String()), weightMonth)
	add("sig="+TextSignature(merchantTokens, descTokens), weightTextSignature)
	add("dom="+dayOfMonthBand(tx.Date.Day()), weightDayOfMonthBand)
	add(fmt.Sprintf("logamt=%.1f", logAmountBucket(abs)), weightLogAmount)
	add(fmt.Sprintf("cents=%02d", cents(abs)), weightCents)

	indices := make([]int, 0, len(acc))
	for idx := range acc {
		indices = append(indices, idx)
	}
	sort.Ints(indices)

	values := make([]float64, len(indices))
	for i, idx := range indices {
		values[i] = acc[idx]
	}

	return model.FeatureVector{Indices: indices, Values: values}
}

// ExtractSignals derives the human-interpretable signal bundle shown in
// review tooling.
func ExtractSignals(tx model.Transaction) model.PredictionSignals {
	merchantTokens := Tokenize(merchantText(tx))
	descTokens := Tokenize(tx.Name)

	return model.PredictionSignals{
		MerchantKey:       MerchantKey(merchantText(tx)),
		AccountKey:        Normalize(tx.AccountName),
		AmountBucket:      AmountBucket(math.Abs(tx.Amount)),
		Direction:         directionOf(tx.Amount),
		Weekday:           strings.ToLower(tx.Date.Weekday().String()),
		Month:             strings.ToLower(tx.Date.Month().String()),
		TextSignature:     TextSignature(merchantTokens, descTokens),
		MerchantTokens:    merchantTokens,
		DescriptionTokens: descTokens,
		ReferenceTokens:   ReferenceTokens(tx.Name),
	}
}

// Normalize lowercases text, strips non-alphanumeric runs to single spaces,
// and collapses whitespace.
func Normalize(text string) string {
	var b strings.Builder
	b.Grow(len(text))

	lastSpace := true
	for _, r := range strings.ToLower(text) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
			lastSpace = false
		default:
			if !lastSpace {
				b.WriteByte(' ')
				lastSpace = true
			}
		}
	}

	return strings.TrimSpace(b.String())
}

// Tokenize splits normalized text into tokens, dropping stop words and
// tokens outside the accepted length range.
func Tokenize(text string) []string {
	var tokens []string
	for _, tok := range strings.Fields(Normalize(text)) {
		if len(tok) < minTokenLen || len(tok) > maxTokenLen {
			continue
		}
		if _, stop := stopWords[tok]; stop {
			continue
		}
		tokens = append(tokens, tok)
	}
	return tokens
}

// MerchantKey builds the canonical merchant key: normalized text with digit
// runs collapsed to a single 0 and corporate suffixes stripped.
func MerchantKey(text string) string {
	var kept []string
	for _, tok := range strings.Fields(Normalize(text)) {
		if _, suffix := corporateSuffixes[tok]; suffix {
			continue
		}
		kept = append(kept, collapseDigits(tok))
	}
	if len(kept) == 0 {
		return "unknown"
	}
	return strings.Join(kept, " ")
}

// ReferenceTokens extracts up to four alphanumeric tokens that contain a
// digit, useful for matching the two legs of a transfer.
func ReferenceTokens(text string) []string {
	var refs []string
	for _, tok := range strings.Fields(Normalize(text)) {
		if len(tok) < minTokenLen || len(tok) > maxTokenLen {
			continue
		}
		if !strings.ContainsAny(tok, "0123456789") {
			continue
		}
		refs = append(refs, tok)
		if len(refs) == maxReferenceTokens {
			break
		}
	}
	return refs
}

// AmountBucket maps an absolute amount onto one of seven fixed bands.
func AmountBucket(abs float64) string {
	switch {
	case abs < 5:
		return "micro"
	case abs < 20:
		return "small"
	case abs < 50:
		return "medium"
	case abs < 100:
		return "large"
	case abs < 250:
		return "xlarge"
	case abs < 1000:
		return "xxlarge"
	default:
		return "huge"
	}
}

// TextSignature joins the sorted first four unique tokens with "|", or
// "unknown" when there are none.
func TextSignature(merchantTokens, descTokens []string) string {
	seen := make(map[string]struct{})
	var uniq []string
	for _, tok := range append(append([]string{}, merchantTokens...), descTokens...) {
		if _, ok := seen[tok]; ok {
			continue
		}
		seen[tok] = struct{}{}
		uniq = append(uniq, tok)
		if len(uniq) == 4 {
			break
		}
	}
	if len(uniq) == 0 {
		return "unknown"
	}
	sort.Strings(uniq)
	return strings.Join(uniq, "|")
}

// hashIndex maps a feature name into [0, Dim) with a seeded multiplicative
// 32-bit mix (FNV-1a). The constant seed keeps stored models compatible
// across processes.
func hashIndex(name string) int {
	h := uint32(2166136261)
	for i := 0; i < len(name); i++ {
		h ^= uint32(name[i])
		h *= 16777619
	}
	return int(h % Dim)
}

func merchantText(tx model.Transaction) string {
	if strings.TrimSpace(tx.MerchantName) != "" {
		return tx.MerchantName
	}
	return tx.Name
}

func collapseDigits(tok string) string {
	var b strings.Builder
	inDigits := false
	for _, r := range tok {
		if r >= '0' && r <= '9' {
			if !inDigits {
				b.WriteByte('0')
				inDigits = true
			}
			continue
		}
		inDigits = false
		b.WriteRune(r)
	}
	return b.String()
}

func directionOf(amount float64) string {
	if amount < 0 {
		return "out"
	}
	return "in"
}

// roundedAmount snaps an absolute amount to a step size scaled by its
// magnitude: 1 under 10, 5 under 100, 10 under 1000, 50 beyond.
func roundedAmount(abs float64) float64 {
	var step float64
	switch {
	case abs < 10:
		step = 1
	case abs < 100:
		step = 5
	case abs < 1000:
		step = 10
	default:
		step = 50
	}
	return math.Round(abs/step) * step
}

func dayOfMonthBand(day int) string {
	switch {
	case day <= 10:
		return "start"
	case day <= 20:
		return "mid"
	default:
		return "end"
	}
}

// logAmountBucket is log10(abs+1) rounded to the nearest 0.5.
func logAmountBucket(abs float64) float64 {
	return math.Round(math.Log10(abs+1)*2) / 2
}

func cents(abs float64) int {
	return int(math.Round(abs*100)) % 100
}
