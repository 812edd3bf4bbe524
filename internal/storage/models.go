package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/mintfall/sift/internal/common"
	"github.com/mintfall/sift/internal/model"
)

// SaveModel persists a newly trained model version for a user.
func (s *SQLiteStorage) SaveModel(ctx context.Context, userID string, weights []byte, labelCount int) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if len(weights) == 0 {
		return fmt.Errorf("model weights must not be empty")
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO model_versions (user_id, weights, label_count, updated_at)
		VALUES (?, ?, ?, CURRENT_TIMESTAMP)`,
		userID, weights, labelCount,
	)
	if err != nil {
		return fmt.Errorf("failed to save model: %w", err)
	}
	return nil
}

// LatestModel returns the most recently updated model for a user, or
// common.ErrModelNotFound when the user has never trained one.
func (s *SQLiteStorage) LatestModel(ctx context.Context, userID string) (*model.ModelVersion, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}

	var mv model.ModelVersion
	err := s.db.QueryRowContext(ctx, `
		SELECT id, user_id, weights, label_count, updated_at
		FROM model_versions
		WHERE user_id = ?
		ORDER BY updated_at DESC, id DESC
		LIMIT 1`, userID).Scan(
		&mv.ID, &mv.UserID, &mv.Weights, &mv.LabelCount, &mv.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, common.ErrModelNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query latest model: %w", err)
	}

	return &mv, nil
}
