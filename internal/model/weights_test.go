package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mintfall/sift/internal/common"
)

func validWeights() *ModelWeights {
	return &ModelWeights{
		FeatureDim: 4,
		Categories: []string{"Groceries", "Transport"},
		Weights: [][]float64{
			{0.1, 0, -0.2, 0.3},
			{-0.1, 0.2, 0, 0},
		},
	}
}

func TestModelWeights_RoundTrip(t *testing.T) {
	original := validWeights()

	data, err := original.Marshal()
	require.NoError(t, err)

	restored, err := UnmarshalModelWeights(data)
	require.NoError(t, err)
	assert.Equal(t, original, restored)
}

func TestUnmarshalModelWeights_Malformed(t *testing.T) {
	_, err := UnmarshalModelWeights([]byte("not json"))
	assert.ErrorIs(t, err, common.ErrInvalidModel)
}

func TestModelWeights_Validate(t *testing.T) {
	tests := []struct {
		mutate func(*ModelWeights)
		name   string
	}{
		{
			name:   "zero feature dimension",
			mutate: func(m *ModelWeights) { m.FeatureDim = 0 },
		},
		{
			name:   "missing categories",
			mutate: func(m *ModelWeights) { m.Categories = nil },
		},
		{
			name:   "missing weights",
			mutate: func(m *ModelWeights) { m.Weights = nil },
		},
		{
			name:   "row count mismatch",
			mutate: func(m *ModelWeights) { m.Categories = append(m.Categories, "Dining") },
		},
		{
			name:   "row length mismatch",
			mutate: func(m *ModelWeights) { m.Weights[1] = []float64{1} },
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := validWeights()
			require.NoError(t, m.Validate())

			tt.mutate(m)
			assert.ErrorIs(t, m.Validate(), common.ErrInvalidModel)
		})
	}
}
