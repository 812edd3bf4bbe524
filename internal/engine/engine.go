// Package engine orchestrates classification: it merges rule matches, model
// predictions, and transfer verdicts into per-transaction decisions and
// drives retraining and historical reclassification.
package engine

import (
	"strings"

	"github.com/mintfall/sift/internal/feature"
	"github.com/mintfall/sift/internal/inbox"
	"github.com/mintfall/sift/internal/model"
	"github.com/mintfall/sift/internal/rules"
	"github.com/mintfall/sift/internal/softmax"
)

// TransferCategory is the category forced onto detected transfer legs.
const TransferCategory = "Transfer"

// Config holds tunables for the engine.
type Config struct {
	AutoThreshold float64
	MinLabels     int
	Training      softmax.Options
}

// DefaultConfig returns the default engine configuration.
func DefaultConfig() Config {
	return Config{
		AutoThreshold: 0.85,
		MinLabels:     10,
		Training:      softmax.DefaultOptions(),
	}
}

// Engine coordinates the classification pipeline against storage.
type Engine struct {
	storage Storage
	config  Config
}

// New creates an engine with the given storage and configuration.
func New(storage Storage, config Config) *Engine {
	if config.AutoThreshold <= 0 {
		config.AutoThreshold = 0.85
	}
	if config.MinLabels <= 0 {
		config.MinLabels = 10
	}
	return &Engine{storage: storage, config: config}
}

// ModelContext carries the prediction source for one classification pass:
// either trained weights or a heuristic fallback prediction.
type ModelContext struct {
	Weights  *model.ModelWeights
	Fallback *model.Prediction
}

// Classify runs one transaction through rules and model and reconciles the
// signals. It does not consult the transfer detector; the caller overrides
// the result for detected transfer legs.
func (e *Engine) Classify(tx model.Transaction, categoriser *rules.Categoriser, mc ModelContext) inbox.Result {
	in := inbox.Input{Threshold: e.config.AutoThreshold}

	if match, ok := categoriser.Categorise(tx); ok {
		in.RuleMatch = &match
	} else if mc.Weights != nil {
		pred := softmax.Predict(mc.Weights, feature.Extract(tx))
		in.Prediction = &pred
	} else if mc.Fallback != nil {
		in.Prediction = mc.Fallback
	}

	return inbox.ComputeState(in)
}

// eligibleLabel reports whether a confirmed transaction can serve as a
// training example. Transfers and placeholder categories carry no signal.
func eligibleLabel(tx model.Transaction) bool {
	if !tx.CategoryConfirmed || tx.IsTransfer {
		return false
	}
	category := strings.ToLower(strings.TrimSpace(tx.Category))
	return category != "" && category != "uncategorised" && category != "transfer"
}

// FallbackPrediction builds a zero-confidence heuristic prediction from the
// most frequent eligible category: confirmed labels first, then any
// eligible historical category. Ties break to the first-seen category.
// Returns nil when no eligible category exists, which leaves transactions
// unclassified rather than suggesting a placeholder.
func FallbackPrediction(confirmed, history []model.Transaction) *model.Prediction {
	if category, ok := mostFrequentEligible(confirmed); ok {
		return &model.Prediction{
			Category:      category,
			Confidence:    0,
			Probabilities: map[string]float64{category: 0},
		}
	}
	if category, ok := mostFrequentEligible(history); ok {
		return &model.Prediction{
			Category:      category,
			Confidence:    0,
			Probabilities: map[string]float64{category: 0},
		}
	}
	return nil
}

func mostFrequentEligible(transactions []model.Transaction) (string, bool) {
	counts := make(map[string]int)
	var order []string

	for _, tx := range transactions {
		category := strings.TrimSpace(tx.Category)
		lower := strings.ToLower(category)
		if tx.IsTransfer || lower == "" || lower == "uncategorised" || lower == "transfer" {
			continue
		}
		if counts[category] == 0 {
			order = append(order, category)
		}
		counts[category]++
	}

	best := ""
	bestCount := 0
	for _, category := range order {
		if counts[category] > bestCount {
			best = category
			bestCount = counts[category]
		}
	}

	return best, best != ""
}
