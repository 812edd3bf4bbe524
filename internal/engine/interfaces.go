package engine

import (
	"context"
	"time"

	"github.com/mintfall/sift/internal/model"
	"github.com/mintfall/sift/internal/storage"
)

// Storage is the persistence surface the engine consumes.
type Storage interface {
	ListTransactions(ctx context.Context, userID string, from, to *time.Time) ([]model.Transaction, error)
	ListConfirmedTransactions(ctx context.Context, userID string) ([]model.Transaction, error)
	UpdateClassifications(ctx context.Context, updates []storage.ClassificationUpdate) error
	ListRules(ctx context.Context, userID string) ([]model.CategoryRule, error)
	LatestModel(ctx context.Context, userID string) (*model.ModelVersion, error)
	SaveModel(ctx context.Context, userID string, weights []byte, labelCount int) error
}

// DateRange optionally bounds a reclassification pass.
type DateRange struct {
	From *time.Time
	To   *time.Time
}
