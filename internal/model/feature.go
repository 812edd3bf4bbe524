package model

import "time"

// FeatureVector is a sparse vector over a fixed hashed dimension.
// Indices are sorted ascending with no duplicates; Values aligns
// positionally with Indices.
type FeatureVector struct {
	Indices []int
	Values  []float64
}

// PredictionSignals is the human-readable bundle derived alongside the
// hashed features, surfaced in review tooling.
type PredictionSignals struct {
	MerchantKey       string
	AccountKey        string
	AmountBucket      string
	Direction         string
	Weekday           string
	Month             string
	TextSignature     string
	MerchantTokens    []string
	DescriptionTokens []string
	ReferenceTokens   []string
}

// TrainingExample pairs a feature vector with its confirmed category.
type TrainingExample struct {
	Category string
	Features FeatureVector
}

// Prediction is the output of scoring a transaction against a trained model.
type Prediction struct {
	Probabilities map[string]float64
	Category      string
	CategoryType  string
	Confidence    float64
}

// ModelVersion is a persisted trained model for one user.
type ModelVersion struct {
	UpdatedAt  time.Time
	UserID     string
	Weights    []byte
	LabelCount int
	ID         int
}
