package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/mintfall/sift/internal/common"
	"github.com/mintfall/sift/internal/feature"
	"github.com/mintfall/sift/internal/inbox"
	"github.com/mintfall/sift/internal/model"
	"github.com/mintfall/sift/internal/rules"
	"github.com/mintfall/sift/internal/softmax"
	"github.com/mintfall/sift/internal/storage"
	"github.com/mintfall/sift/internal/transfer"
)

// A model older than this is considered stale whenever any eligible label
// exists, even if no new label arrived since it was trained.
const modelStaleAfter = 24 * time.Hour

// confidenceTolerance bounds float drift when deciding whether a derived
// confidence actually changed.
const confidenceTolerance = 1e-6

// ShouldRetrain reports whether the user's model is missing, stale, or
// behind newly confirmed labels.
func (e *Engine) ShouldRetrain(ctx context.Context, userID string) (bool, error) {
	confirmed, err := e.storage.ListConfirmedTransactions(ctx, userID)
	if err != nil {
		return false, fmt.Errorf("failed to list confirmed transactions: %w", err)
	}

	eligible := 0
	var newest time.Time
	for _, tx := range confirmed {
		if !eligibleLabel(tx) {
			continue
		}
		eligible++
		if tx.ConfirmedAt != nil && tx.ConfirmedAt.After(newest) {
			newest = *tx.ConfirmedAt
		}
	}

	latest, err := e.storage.LatestModel(ctx, userID)
	if errors.Is(err, common.ErrModelNotFound) {
		return eligible >= 1, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to load latest model: %w", err)
	}

	if !newest.IsZero() && newest.After(latest.UpdatedAt) {
		return true, nil
	}
	if time.Since(latest.UpdatedAt) > modelStaleAfter && eligible >= 1 {
		return true, nil
	}

	return false, nil
}

// RetrainIfNeeded trains and stores a new model when ShouldRetrain says so.
// Returns whether a new model was saved. Insufficient labels is not an
// error here: the caller simply keeps using the fallback suggestion path.
func (e *Engine) RetrainIfNeeded(ctx context.Context, userID string) (bool, error) {
	needed, err := e.ShouldRetrain(ctx, userID)
	if err != nil {
		return false, err
	}
	if !needed {
		return false, nil
	}

	return e.Retrain(ctx, userID)
}

// Retrain trains and stores a new model unconditionally, provided enough
// eligible labels exist.
func (e *Engine) Retrain(ctx context.Context, userID string) (bool, error) {
	confirmed, err := e.storage.ListConfirmedTransactions(ctx, userID)
	if err != nil {
		return false, fmt.Errorf("failed to list confirmed transactions: %w", err)
	}

	var examples []model.TrainingExample
	for _, tx := range confirmed {
		if !eligibleLabel(tx) {
			continue
		}
		examples = append(examples, model.TrainingExample{
			Category: tx.Category,
			Features: feature.Extract(tx),
		})
	}

	if len(examples) < e.config.MinLabels {
		slog.Debug("Not enough labels to train",
			"user", userID,
			"labels", len(examples),
			"min_labels", e.config.MinLabels)
		return false, nil
	}

	weights, err := softmax.Train(examples, feature.Dimension(), e.config.Training)
	if err != nil {
		return false, fmt.Errorf("training failed: %w", err)
	}

	blob, err := weights.Marshal()
	if err != nil {
		return false, err
	}
	if err := e.storage.SaveModel(ctx, userID, blob, len(examples)); err != nil {
		return false, err
	}

	slog.Info("Trained new model",
		"user", userID,
		"labels", len(examples),
		"categories", len(weights.Categories))
	return true, nil
}

// ReclassifyAll re-runs the full pipeline over a user's stored transactions
// and writes back only the rows whose derived state changed. Re-running with
// no intervening data change writes nothing.
func (e *Engine) ReclassifyAll(ctx context.Context, userID string, dateRange DateRange) (int, error) {
	transactions, err := e.storage.ListTransactions(ctx, userID, dateRange.From, dateRange.To)
	if err != nil {
		return 0, fmt.Errorf("failed to list transactions: %w", err)
	}
	if len(transactions) == 0 {
		return 0, nil
	}

	ruleSet, err := e.storage.ListRules(ctx, userID)
	if err != nil {
		return 0, fmt.Errorf("failed to list rules: %w", err)
	}
	categoriser := rules.NewCategoriser(ruleSet)

	mc, err := e.modelContext(ctx, userID, transactions)
	if err != nil {
		return 0, err
	}

	// Transfer status is recomputed from scratch on every pass.
	transferIDs := transfer.DetectTransferIDs(transactions)

	var updates []storage.ClassificationUpdate
	for _, tx := range transactions {
		isTransfer := false
		if _, ok := transferIDs[tx.ID]; ok {
			isTransfer = true
		}

		// Confirmed rows are terminal: only the transfer flag may move.
		if tx.CategoryConfirmed {
			if tx.IsTransfer != isTransfer {
				updates = append(updates, storage.ClassificationUpdate{
					ID:           tx.ID,
					IsTransfer:   isTransfer,
					TransferOnly: true,
				})
			}
			continue
		}

		result := e.Classify(tx, categoriser, mc)
		if isTransfer {
			result.Category = TransferCategory
			result.CategoryType = "transfer"
			result.State = model.InboxAutoClassified
			result.SuggestedCategory = ""
		}

		if !changed(tx, result, isTransfer) {
			continue
		}

		updates = append(updates, storage.ClassificationUpdate{
			ID:                tx.ID,
			Category:          result.Category,
			CategoryType:      result.CategoryType,
			SuggestedCategory: result.SuggestedCategory,
			Source:            result.Source,
			InboxState:        result.State,
			Confidence:        result.Confidence,
			IsTransfer:        isTransfer,
		})
	}

	if len(updates) == 0 {
		return 0, nil
	}

	if err := e.storage.UpdateClassifications(ctx, updates); err != nil {
		return 0, err
	}

	return len(updates), nil
}

// modelContext loads the user's latest model, falling back to the heuristic
// frequency prediction when no valid model exists. Background retraining is
// best-effort: its failures are logged and never propagate.
func (e *Engine) modelContext(ctx context.Context, userID string, history []model.Transaction) (ModelContext, error) {
	if _, err := e.RetrainIfNeeded(ctx, userID); err != nil {
		slog.Warn("Background retraining failed, using fallback", "user", userID, "error", err)
	}

	latest, err := e.storage.LatestModel(ctx, userID)
	if err == nil {
		weights, uerr := model.UnmarshalModelWeights(latest.Weights)
		if uerr == nil {
			return ModelContext{Weights: weights}, nil
		}
		slog.Warn("Stored model is invalid, using fallback", "user", userID, "error", uerr)
	} else if !errors.Is(err, common.ErrModelNotFound) {
		return ModelContext{}, fmt.Errorf("failed to load latest model: %w", err)
	}

	confirmed, err := e.storage.ListConfirmedTransactions(ctx, userID)
	if err != nil {
		return ModelContext{}, fmt.Errorf("failed to list confirmed transactions: %w", err)
	}

	var eligibleConfirmed []model.Transaction
	for _, tx := range confirmed {
		if eligibleLabel(tx) {
			eligibleConfirmed = append(eligibleConfirmed, tx)
		}
	}

	return ModelContext{Fallback: FallbackPrediction(eligibleConfirmed, history)}, nil
}

func changed(tx model.Transaction, result inbox.Result, isTransfer bool) bool {
	return tx.Category != result.Category ||
		tx.CategoryType != result.CategoryType ||
		tx.SuggestedCategory != result.SuggestedCategory ||
		tx.Source != result.Source ||
		tx.InboxState != result.State ||
		tx.IsTransfer != isTransfer ||
		math.Abs(tx.Confidence-result.Confidence) > confidenceTolerance
}
