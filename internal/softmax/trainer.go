// Package softmax implements a from-scratch multinomial logistic regression
// trainer and predictor over hashed sparse features.
package softmax

import (
	"math"
	"sort"

	"github.com/mintfall/sift/internal/common"
	"github.com/mintfall/sift/internal/model"
)

// Options configures gradient descent.
type Options struct {
	LearningRate         float64
	Regularization       float64
	ConvergenceThreshold float64
	MaxIterations        int
}

// DefaultOptions returns the standard training configuration.
func DefaultOptions() Options {
	return Options{
		LearningRate:         0.01,
		Regularization:       0.01,
		MaxIterations:        100,
		ConvergenceThreshold: 1e-4,
	}
}

const logEpsilon = 1e-10

// Train fits a softmax classifier with full-batch gradient descent.
// Training is deterministic given fixed inputs and options. An empty
// example set fails with common.ErrNoCategories; a single-category set
// returns a trivial model without running gradient descent.
func Train(examples []model.TrainingExample, featureDim int, opts Options) (*model.ModelWeights, error) {
	if opts.LearningRate <= 0 {
		opts.LearningRate = 0.01
	}
	if opts.Regularization < 0 {
		opts.Regularization = 0.01
	}
	if opts.MaxIterations <= 0 {
		opts.MaxIterations = 100
	}
	if opts.ConvergenceThreshold <= 0 {
		opts.ConvergenceThreshold = 1e-4
	}

	categories := distinctCategories(examples)
	if len(categories) == 0 {
		return nil, common.ErrNoCategories
	}

	weights := &model.ModelWeights{
		FeatureDim: featureDim,
		Categories: categories,
		Weights:    make([][]float64, len(categories)),
	}
	for i := range weights.Weights {
		weights.Weights[i] = make([]float64, featureDim)
	}

	// A one-category model always predicts that category with full
	// confidence; there is nothing to fit.
	if len(categories) == 1 {
		return weights, nil
	}

	catIndex := make(map[string]int, len(categories))
	for i, c := range categories {
		catIndex[c] = i
	}

	numCats := len(categories)
	n := float64(len(examples))
	prevLoss := math.Inf(1)

	logits := make([]float64, numCats)
	probs := make([]float64, numCats)
	grad := make([][]float64, numCats)
	for i := range grad {
		grad[i] = make([]float64, featureDim)
	}

	for iter := 0; iter < opts.MaxIterations; iter++ {
		for c := range grad {
			for j := range grad[c] {
				grad[c][j] = 0
			}
		}

		loss := 0.0
		for _, ex := range examples {
			for c := 0; c < numCats; c++ {
				logits[c] = dot(weights.Weights[c], ex.Features)
			}
			softmaxInto(logits, probs)

			target := catIndex[ex.Category]
			loss += -math.Log(probs[target] + logEpsilon)

			for c := 0; c < numCats; c++ {
				delta := probs[c]
				if c == target {
					delta -= 1
				}
				for k, idx := range ex.Features.Indices {
					grad[c][idx] += delta * ex.Features.Values[k]
				}
			}
		}

		loss /= n
		loss += opts.Regularization / 2 * sumSquares(weights.Weights)

		for c := 0; c < numCats; c++ {
			row := weights.Weights[c]
			for j := 0; j < featureDim; j++ {
				row[j] -= opts.LearningRate * (grad[c][j]/n + opts.Regularization*row[j])
			}
		}

		if math.Abs(prevLoss-loss) < opts.ConvergenceThreshold {
			break
		}
		prevLoss = loss
	}

	return weights, nil
}

func distinctCategories(examples []model.TrainingExample) []string {
	seen := make(map[string]struct{})
	var categories []string
	for _, ex := range examples {
		if _, ok := seen[ex.Category]; ok {
			continue
		}
		seen[ex.Category] = struct{}{}
		categories = append(categories, ex.Category)
	}
	sort.Strings(categories)
	return categories
}

func dot(row []float64, features model.FeatureVector) float64 {
	var sum float64
	for k, idx := range features.Indices {
		sum += row[idx] * features.Values[k]
	}
	return sum
}

// softmaxInto computes a numerically stable softmax of logits into probs.
func softmaxInto(logits, probs []float64) {
	maxLogit := logits[0]
	for _, l := range logits[1:] {
		if l > maxLogit {
			maxLogit = l
		}
	}

	var sum float64
	for i, l := range logits {
		probs[i] = math.Exp(l - maxLogit)
		sum += probs[i]
	}
	for i := range probs {
		probs[i] /= sum
	}
}

func sumSquares(weights [][]float64) float64 {
	var sum float64
	for _, row := range weights {
		for _, w := range row {
			sum += w * w
		}
	}
	return sum
}
