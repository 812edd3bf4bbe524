package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/mintfall/sift/internal/model"
)

// CreateRule persists a new category rule and fills in its ID.
func (s *SQLiteStorage) CreateRule(ctx context.Context, userID string, rule *model.CategoryRule) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if rule.Pattern == "" {
		return fmt.Errorf("rule pattern must not be empty")
	}
	if rule.Category == "" {
		return fmt.Errorf("rule category must not be empty")
	}
	if rule.Priority <= 0 {
		rule.Priority = 1000
	}
	if rule.Field == "" {
		rule.Field = model.FieldMerchantNormalised
	}

	condition, err := marshalCondition(rule.Amount)
	if err != nil {
		return err
	}

	result, err := s.db.ExecContext(ctx, `
		INSERT INTO category_rules (
			user_id, priority, pattern, field, category, category_type,
			amount_condition, disabled
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		userID, rule.Priority, rule.Pattern, string(rule.Field),
		rule.Category, rule.CategoryType, condition, rule.Disabled,
	)
	if err != nil {
		return fmt.Errorf("failed to create rule: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get rule ID: %w", err)
	}

	rule.ID = int(id)
	rule.CreatedAt = time.Now()
	rule.UpdatedAt = rule.CreatedAt
	return nil
}

// ListRules returns all of a user's rules ordered by ascending priority.
// Rules with unparseable stored amount conditions surface with a nil
// condition rather than failing the listing.
func (s *SQLiteStorage) ListRules(ctx context.Context, userID string) ([]model.CategoryRule, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, priority, pattern, field, category, category_type,
			amount_condition, disabled, created_at, updated_at
		FROM category_rules
		WHERE user_id = ?
		ORDER BY priority, id`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to query rules: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []model.CategoryRule
	for rows.Next() {
		var rule model.CategoryRule
		var field, condition string

		if err := rows.Scan(
			&rule.ID, &rule.Priority, &rule.Pattern, &field, &rule.Category,
			&rule.CategoryType, &condition, &rule.Disabled,
			&rule.CreatedAt, &rule.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan rule: %w", err)
		}

		rule.Field = model.RuleField(field)
		if condition != "" {
			var cond model.AmountCondition
			if err := json.Unmarshal([]byte(condition), &cond); err == nil {
				rule.Amount = &cond
			}
		}

		out = append(out, rule)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate rules: %w", err)
	}

	return out, nil
}

// SetRuleDisabled flips a rule's disabled flag.
func (s *SQLiteStorage) SetRuleDisabled(ctx context.Context, ruleID int, disabled bool) error {
	if err := validateContext(ctx); err != nil {
		return err
	}

	_, err := s.db.ExecContext(ctx, `
		UPDATE category_rules SET disabled = ?, updated_at = CURRENT_TIMESTAMP
		WHERE id = ?`, disabled, ruleID)
	if err != nil {
		return fmt.Errorf("failed to update rule %d: %w", ruleID, err)
	}
	return nil
}

func marshalCondition(cond *model.AmountCondition) (string, error) {
	if cond == nil {
		return "", nil
	}
	data, err := json.Marshal(cond)
	if err != nil {
		return "", fmt.Errorf("failed to marshal amount condition: %w", err)
	}
	return string(data), nil
}
