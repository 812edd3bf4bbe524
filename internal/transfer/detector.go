// Package transfer detects money moved between a user's own accounts by
// pairing offsetting transactions across accounts.
package transfer

import (
	"math"
	"sort"

	"github.com/mintfall/sift/internal/feature"
	"github.com/mintfall/sift/internal/model"
)

// maxDayGap is the widest window across which two legs can pair.
const maxDayGap = 2.2

// Score terms for candidate pairs. Acceptance requires the accumulated
// score to clear thresholdCorroborated when a transfer hint or shared
// reference backs the pair, thresholdBare otherwise.
const (
	scoreBase          = 0.9
	scoreSameDay       = 1.1
	scoreNearDay       = 0.75
	scoreFarDay        = 0.4
	scoreOneHint       = 0.6
	scoreBothHints     = 0.55
	scoreSharedRef     = 0.55
	scoreIdenticalText = 0.4

	penaltyMixedHints     = 0.2
	penaltyRetailText     = 0.8
	thresholdCorroborated = 1.65
	thresholdBare         = 2.1
)

type leg struct {
	tx          model.Transaction
	normalized  string
	refs        map[string]struct{}
	hasHint     bool
	hasRetail   bool
	amountCents int64
}

// DetectTransferIDs examines one user's transaction set and returns the IDs
// of every transaction judged to be a leg of an internal transfer. Given
// identical input, output is identical: outgoing legs are processed in date
// order and each incoming leg satisfies at most one outgoing leg.
func DetectTransferIDs(transactions []model.Transaction) map[string]struct{} {
	ids := make(map[string]struct{})

	legs := make([]leg, len(transactions))
	for i, tx := range transactions {
		legs[i] = newLeg(tx)

		// Phase 1: unambiguous transfer wording marks a transaction on
		// its own, no counterparty needed.
		if legs[i].hasHint && !legs[i].hasRetail {
			ids[tx.ID] = struct{}{}
		}
	}

	// Phase 2: pair offsetting legs bucketed by absolute amount.
	buckets := make(map[int64][]*leg)
	for i := range legs {
		buckets[legs[i].amountCents] = append(buckets[legs[i].amountCents], &legs[i])
	}

	for _, bucket := range buckets {
		pairBucket(bucket, ids)
	}

	return ids
}

func pairBucket(bucket []*leg, ids map[string]struct{}) {
	var outgoing, incoming []*leg
	for _, l := range bucket {
		if l.tx.Amount < 0 {
			outgoing = append(outgoing, l)
		} else if l.tx.Amount > 0 {
			incoming = append(incoming, l)
		}
	}
	if len(outgoing) == 0 || len(incoming) == 0 {
		return
	}

	sort.SliceStable(outgoing, func(i, j int) bool {
		return outgoing[i].tx.Date.Before(outgoing[j].tx.Date)
	})

	claimed := make(map[string]struct{})

	for _, out := range outgoing {
		var best *leg
		bestScore := math.Inf(-1)

		for _, in := range incoming {
			if _, taken := claimed[in.tx.ID]; taken {
				continue
			}
			score, threshold := scorePair(out, in)
			if score < threshold || score <= bestScore {
				continue
			}
			best = in
			bestScore = score
		}

		if best != nil {
			claimed[best.tx.ID] = struct{}{}
			ids[out.tx.ID] = struct{}{}
			ids[best.tx.ID] = struct{}{}
		}
	}
}

// scorePair accumulates pairing evidence for an outgoing/incoming pair and
// returns the score alongside the acceptance threshold that applies to it.
// Hard rejections return -Inf.
func scorePair(out, in *leg) (score, threshold float64) {
	dayGap := math.Abs(out.tx.Date.Sub(in.tx.Date).Hours()) / 24

	switch {
	case dayGap > maxDayGap,
		out.tx.AccountName == in.tx.AccountName,
		out.amountCents != in.amountCents,
		(out.tx.Amount < 0) == (in.tx.Amount < 0):
		return math.Inf(-1), thresholdBare
	}

	score = scoreBase
	switch {
	case dayGap <= 1:
		score += scoreSameDay
	case dayGap <= 2:
		score += scoreNearDay
	default:
		score += scoreFarDay
	}

	anyHint := out.hasHint || in.hasHint
	if anyHint {
		score += scoreOneHint
		if out.hasHint && in.hasHint {
			score += scoreBothHints
		}
	}

	sharedRef := shareReference(out.refs, in.refs)
	if sharedRef {
		score += scoreSharedRef
	}
	if out.normalized != "" && out.normalized == in.normalized {
		score += scoreIdenticalText
	}

	if out.hasRetail || in.hasRetail {
		if anyHint {
			score -= penaltyMixedHints
		} else {
			score -= penaltyRetailText
		}
	}

	threshold = thresholdBare
	if anyHint || sharedRef {
		threshold = thresholdCorroborated
	}
	return score, threshold
}

func newLeg(tx model.Transaction) leg {
	text := tx.Name + " " + tx.MerchantName
	refs := make(map[string]struct{})
	for _, r := range feature.ReferenceTokens(tx.Name) {
		refs[r] = struct{}{}
	}

	return leg{
		tx:          tx,
		normalized:  feature.Normalize(text),
		refs:        refs,
		hasHint:     feature.HasTransferHint(text),
		hasRetail:   feature.HasNonTransferHint(text),
		amountCents: int64(math.Round(math.Abs(tx.Amount) * 100)),
	}
}

func shareReference(a, b map[string]struct{}) bool {
	for r := range a {
		if _, ok := b[r]; ok {
			return true
		}
	}
	return false
}
