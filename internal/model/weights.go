package model

import (
	"encoding/json"
	"fmt"

	"github.com/mintfall/sift/internal/common"
)

// ModelWeights holds the dense weight matrix of a trained softmax
// classifier. Invariant: len(Weights) == len(Categories), and every row has
// length FeatureDim. Single-category models carry one all-zero row.
type ModelWeights struct {
	Categories []string    `json:"categories"`
	Weights    [][]float64 `json:"weights"`
	FeatureDim int         `json:"feature_dim"`
}

// Marshal serializes the weights for storage.
func (m *ModelWeights) Marshal() ([]byte, error) {
	data, err := json.Marshal(m)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal model weights: %w", err)
	}
	return data, nil
}

// UnmarshalModelWeights deserializes and validates stored weights. Malformed
// input fails with an error wrapping common.ErrInvalidModel; it is never
// silently coerced.
func UnmarshalModelWeights(data []byte) (*ModelWeights, error) {
	var m ModelWeights
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("%w: %v", common.ErrInvalidModel, err)
	}

	if err := m.Validate(); err != nil {
		return nil, err
	}

	return &m, nil
}

// Validate checks the structural invariants of the weight matrix.
func (m *ModelWeights) Validate() error {
	if m.FeatureDim <= 0 {
		return fmt.Errorf("%w: feature dimension must be positive, got %d",
			common.ErrInvalidModel, m.FeatureDim)
	}
	if m.Categories == nil || m.Weights == nil {
		return fmt.Errorf("%w: categories and weights must be present", common.ErrInvalidModel)
	}
	if len(m.Categories) != len(m.Weights) {
		return fmt.Errorf("%w: %d categories but %d weight rows",
			common.ErrInvalidModel, len(m.Categories), len(m.Weights))
	}
	for i, row := range m.Weights {
		if len(row) != m.FeatureDim {
			return fmt.Errorf("%w: weight row %d has length %d, want %d",
				common.ErrInvalidModel, i, len(row), m.FeatureDim)
		}
	}
	return nil
}
