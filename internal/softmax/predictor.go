package softmax

import "github.com/mintfall/sift/internal/model"

// Predict scores a feature vector against trained weights and returns the
// most probable category with its full probability map. Ties break to the
// first-seen category via strict greater-than comparison.
func Predict(weights *model.ModelWeights, features model.FeatureVector) model.Prediction {
	probabilities := make(map[string]float64, len(weights.Categories))

	// Single-category models short-circuit to full confidence.
	if len(weights.Categories) == 1 {
		probabilities[weights.Categories[0]] = 1.0
		return model.Prediction{
			Category:      weights.Categories[0],
			Confidence:    1.0,
			Probabilities: probabilities,
		}
	}

	logits := make([]float64, len(weights.Categories))
	for c, row := range weights.Weights {
		logits[c] = dot(row, features)
	}

	probs := make([]float64, len(logits))
	softmaxInto(logits, probs)

	best := 0
	for c := range probs {
		probabilities[weights.Categories[c]] = probs[c]
		if probs[c] > probs[best] {
			best = c
		}
	}

	return model.Prediction{
		Category:      weights.Categories[best],
		Confidence:    probs[best],
		Probabilities: probabilities,
	}
}
