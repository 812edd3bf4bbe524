package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/mintfall/sift/internal/common"
	"github.com/mintfall/sift/internal/model"
)

// writeChunkSize bounds the number of rows touched inside one persistence
// transaction during bulk classification updates.
const writeChunkSize = 100

// ClassificationUpdate is a derived-state write instruction for one
// transaction. TransferOnly updates bypass the confirmed guard because the
// transfer flag is recomputed for every transaction on every pass.
type ClassificationUpdate struct {
	ID                string
	Category          string
	CategoryType      string
	SuggestedCategory string
	Source            model.ClassificationSource
	InboxState        model.InboxState
	Confidence        float64
	IsTransfer        bool
	TransferOnly      bool
}

// SaveTransactions inserts transactions, silently skipping duplicates by
// content hash.
func (s *SQLiteStorage) SaveTransactions(ctx context.Context, transactions []model.Transaction) error {
	if err := validateContext(ctx); err != nil {
		return err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT OR IGNORE INTO transactions (
			id, hash, user_id, account_name, date, name, merchant_name, amount
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare statement: %w", err)
	}
	defer func() { _ = stmt.Close() }()

	for _, txn := range transactions {
		if txn.ID == "" {
			return fmt.Errorf("transaction with empty id")
		}
		if _, err := stmt.ExecContext(ctx,
			txn.ID, txn.GenerateHash(), txn.UserID, txn.AccountName,
			txn.Date, txn.Name, txn.MerchantName, txn.Amount,
		); err != nil {
			return fmt.Errorf("failed to insert transaction %s: %w", txn.ID, err)
		}
	}

	return tx.Commit()
}

// ListTransactions returns one user's transactions, optionally bounded by
// date range, ordered by date then id for deterministic passes.
func (s *SQLiteStorage) ListTransactions(ctx context.Context, userID string, from, to *time.Time) ([]model.Transaction, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}

	query := `
		SELECT id, user_id, account_name, date, name, merchant_name, amount,
			category, category_type, is_transfer, source, inbox_state,
			suggested_category, confidence, category_confirmed, confirmed_at
		FROM transactions
		WHERE user_id = ?`
	args := []any{userID}

	if from != nil {
		query += " AND date >= ?"
		args = append(args, *from)
	}
	if to != nil {
		query += " AND date <= ?"
		args = append(args, *to)
	}
	query += " ORDER BY date, id"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query transactions: %w", err)
	}
	defer func() { _ = rows.Close() }()

	return scanTransactions(rows)
}

// ListConfirmedTransactions returns the user's confirmed (labeled)
// transactions ordered by confirmation time.
func (s *SQLiteStorage) ListConfirmedTransactions(ctx context.Context, userID string) ([]model.Transaction, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, user_id, account_name, date, name, merchant_name, amount,
			category, category_type, is_transfer, source, inbox_state,
			suggested_category, confidence, category_confirmed, confirmed_at
		FROM transactions
		WHERE user_id = ? AND category_confirmed = 1
		ORDER BY confirmed_at, id`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to query confirmed transactions: %w", err)
	}
	defer func() { _ = rows.Close() }()

	return scanTransactions(rows)
}

// UpdateClassifications applies derived-state updates in chunks, each chunk
// inside its own short-lived transaction so a mid-batch failure leaves
// committed chunks intact. Classification fields are written only while the
// row remains unconfirmed; a concurrent manual confirmation wins.
func (s *SQLiteStorage) UpdateClassifications(ctx context.Context, updates []ClassificationUpdate) error {
	if err := validateContext(ctx); err != nil {
		return err
	}

	for start := 0; start < len(updates); start += writeChunkSize {
		end := start + writeChunkSize
		if end > len(updates) {
			end = len(updates)
		}

		if err := s.updateChunk(ctx, updates[start:end]); err != nil {
			return fmt.Errorf("failed to update chunk starting at %d: %w", start, err)
		}
	}

	return nil
}

func (s *SQLiteStorage) updateChunk(ctx context.Context, chunk []ClassificationUpdate) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	for _, u := range chunk {
		if u.TransferOnly {
			if _, err := tx.ExecContext(ctx,
				`UPDATE transactions SET is_transfer = ? WHERE id = ?`,
				u.IsTransfer, u.ID,
			); err != nil {
				return fmt.Errorf("failed to update transfer flag for %s: %w", u.ID, err)
			}
			continue
		}

		if _, err := tx.ExecContext(ctx, `
			UPDATE transactions SET
				category = ?, category_type = ?, is_transfer = ?,
				source = ?, inbox_state = ?, suggested_category = ?,
				confidence = ?
			WHERE id = ? AND category_confirmed = 0`,
			u.Category, u.CategoryType, u.IsTransfer,
			string(u.Source), string(u.InboxState), u.SuggestedCategory,
			u.Confidence, u.ID,
		); err != nil {
			return fmt.Errorf("failed to update classification for %s: %w", u.ID, err)
		}
	}

	return tx.Commit()
}

// ConfirmCategory records a user's categorization decision. Confirmation is
// terminal: it clears the transaction out of the inbox and automated passes
// will never overwrite it.
func (s *SQLiteStorage) ConfirmCategory(ctx context.Context, id, category, categoryType string) error {
	if err := validateContext(ctx); err != nil {
		return err
	}

	result, err := s.db.ExecContext(ctx, `
		UPDATE transactions SET
			category = ?, category_type = ?, source = ?, inbox_state = ?,
			suggested_category = '', confidence = 1.0,
			category_confirmed = 1, confirmed_at = ?
		WHERE id = ?`,
		category, categoryType, string(model.SourceUser), string(model.InboxCleared),
		time.Now().UTC(), id,
	)
	if err != nil {
		return fmt.Errorf("failed to confirm category for %s: %w", id, err)
	}

	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read rows affected: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("transaction %s: %w", id, common.ErrNotFound)
	}

	return nil
}

func scanTransactions(rows *sql.Rows) ([]model.Transaction, error) {
	var transactions []model.Transaction

	for rows.Next() {
		var txn model.Transaction
		var source, state string
		var confirmedAt sql.NullTime

		if err := rows.Scan(
			&txn.ID, &txn.UserID, &txn.AccountName, &txn.Date, &txn.Name,
			&txn.MerchantName, &txn.Amount, &txn.Category, &txn.CategoryType,
			&txn.IsTransfer, &source, &state, &txn.SuggestedCategory,
			&txn.Confidence, &txn.CategoryConfirmed, &confirmedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan transaction: %w", err)
		}

		txn.Source = model.ClassificationSource(source)
		txn.InboxState = model.InboxState(state)
		if confirmedAt.Valid {
			t := confirmedAt.Time
			txn.ConfirmedAt = &t
		}

		transactions = append(transactions, txn)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate transactions: %w", err)
	}

	return transactions, nil
}
