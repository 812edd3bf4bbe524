package softmax

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mintfall/sift/internal/common"
	"github.com/mintfall/sift/internal/model"
)

const testDim = 64

func example(category string, indices []int) model.TrainingExample {
	values := make([]float64, len(indices))
	for i := range values {
		values[i] = 1.0
	}
	return model.TrainingExample{
		Category: category,
		Features: model.FeatureVector{Indices: indices, Values: values},
	}
}

// separableExamples builds two cleanly separated classes: groceries fires
// features 1-3, transport fires features 10-12.
func separableExamples() []model.TrainingExample {
	var examples []model.TrainingExample
	for i := 0; i < 10; i++ {
		examples = append(examples,
			example("Groceries", []int{1, 2, 3}),
			example("Transport", []int{10, 11, 12}),
		)
	}
	return examples
}

func TestTrain_EmptyExamples(t *testing.T) {
	_, err := Train(nil, testDim, DefaultOptions())
	assert.ErrorIs(t, err, common.ErrNoCategories)
}

func TestTrain_SingleCategoryTrivialModel(t *testing.T) {
	weights, err := Train([]model.TrainingExample{
		example("Groceries", []int{1, 2}),
		example("Groceries", []int{3, 4}),
	}, testDim, DefaultOptions())
	require.NoError(t, err)

	assert.Equal(t, []string{"Groceries"}, weights.Categories)

	pred := Predict(weights, model.FeatureVector{Indices: []int{50}, Values: []float64{1}})
	assert.Equal(t, "Groceries", pred.Category)
	assert.InDelta(t, 1.0, pred.Confidence, 1e-12)
}

func TestTrain_SeparableClasses(t *testing.T) {
	examples := separableExamples()

	weights, err := Train(examples, testDim, DefaultOptions())
	require.NoError(t, err)
	require.NoError(t, weights.Validate())

	// Categories come back sorted.
	assert.Equal(t, []string{"Groceries", "Transport"}, weights.Categories)

	correct := 0
	for _, ex := range examples {
		pred := Predict(weights, ex.Features)
		if pred.Category == ex.Category {
			correct++
		}
	}
	assert.GreaterOrEqual(t, correct, len(examples)*9/10,
		"cleanly separable classes should be learned")
}

func TestTrain_Deterministic(t *testing.T) {
	examples := separableExamples()

	first, err := Train(examples, testDim, DefaultOptions())
	require.NoError(t, err)
	second, err := Train(examples, testDim, DefaultOptions())
	require.NoError(t, err)

	assert.Equal(t, first.Categories, second.Categories)
	assert.Equal(t, first.Weights, second.Weights)
}

func TestTrain_ZeroOptionsGetDefaults(t *testing.T) {
	weights, err := Train(separableExamples(), testDim, Options{})
	require.NoError(t, err)

	pred := Predict(weights, model.FeatureVector{Indices: []int{1, 2, 3}, Values: []float64{1, 1, 1}})
	assert.Equal(t, "Groceries", pred.Category)
}

func TestPredict_ProbabilitiesSumToOne(t *testing.T) {
	weights, err := Train(separableExamples(), testDim, DefaultOptions())
	require.NoError(t, err)

	pred := Predict(weights, model.FeatureVector{Indices: []int{1, 11}, Values: []float64{1, 1}})

	var sum float64
	for _, p := range pred.Probabilities {
		sum += p
	}
	assert.InDelta(t, 1.0, sum, 1e-6)
	assert.Len(t, pred.Probabilities, 2)
}

func TestPredict_TieBreaksToFirstCategory(t *testing.T) {
	// Untrained weights give identical logits; the strict greater-than
	// comparison keeps the first category.
	weights := &model.ModelWeights{
		FeatureDim: testDim,
		Categories: []string{"Groceries", "Transport"},
		Weights:    [][]float64{make([]float64, testDim), make([]float64, testDim)},
	}

	pred := Predict(weights, model.FeatureVector{Indices: []int{5}, Values: []float64{1}})
	assert.Equal(t, "Groceries", pred.Category)
	assert.InDelta(t, 0.5, pred.Confidence, 1e-12)
}
