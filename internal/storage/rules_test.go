package storage

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mintfall/sift/internal/common"
	"github.com/mintfall/sift/internal/model"
)

func TestCreateRule(t *testing.T) {
	store := testStorage(t)
	ctx := context.Background()

	rule := model.CategoryRule{
		Pattern:  "countdown",
		Category: "Groceries",
		Amount:   &model.AmountCondition{Op: model.OpGreaterEqual, Value: 10},
	}
	require.NoError(t, store.CreateRule(ctx, "user-1", &rule))

	assert.Positive(t, rule.ID)
	assert.Equal(t, 1000, rule.Priority, "missing priority defaults")
	assert.Equal(t, model.FieldMerchantNormalised, rule.Field)

	listed, err := store.ListRules(ctx, "user-1")
	require.NoError(t, err)
	require.Len(t, listed, 1)
	assert.Equal(t, "countdown", listed[0].Pattern)
	require.NotNil(t, listed[0].Amount)
	assert.Equal(t, model.OpGreaterEqual, listed[0].Amount.Op)
	assert.InDelta(t, 10.0, listed[0].Amount.Value, 1e-12)
}

func TestCreateRule_Validation(t *testing.T) {
	store := testStorage(t)
	ctx := context.Background()

	err := store.CreateRule(ctx, "user-1", &model.CategoryRule{Category: "Groceries"})
	assert.Error(t, err, "empty pattern rejected")

	err = store.CreateRule(ctx, "user-1", &model.CategoryRule{Pattern: "countdown"})
	assert.Error(t, err, "empty category rejected")
}

func TestListRules_PriorityOrder(t *testing.T) {
	store := testStorage(t)
	ctx := context.Background()

	low := model.CategoryRule{Pattern: "a", Category: "A", Priority: 200}
	high := model.CategoryRule{Pattern: "b", Category: "B", Priority: 10}
	require.NoError(t, store.CreateRule(ctx, "user-1", &low))
	require.NoError(t, store.CreateRule(ctx, "user-1", &high))

	listed, err := store.ListRules(ctx, "user-1")
	require.NoError(t, err)
	require.Len(t, listed, 2)
	assert.Equal(t, "B", listed[0].Category)
	assert.Equal(t, "A", listed[1].Category)
}

func TestListRules_BadStoredConditionSurvives(t *testing.T) {
	store := testStorage(t)
	ctx := context.Background()

	rule := model.CategoryRule{Pattern: "countdown", Category: "Groceries"}
	require.NoError(t, store.CreateRule(ctx, "user-1", &rule))

	_, err := store.db.ExecContext(ctx,
		`UPDATE category_rules SET amount_condition = 'not json' WHERE id = ?`, rule.ID)
	require.NoError(t, err)

	listed, err := store.ListRules(ctx, "user-1")
	require.NoError(t, err)
	require.Len(t, listed, 1)
	assert.Nil(t, listed[0].Amount)
}

func TestSetRuleDisabled(t *testing.T) {
	store := testStorage(t)
	ctx := context.Background()

	rule := model.CategoryRule{Pattern: "countdown", Category: "Groceries"}
	require.NoError(t, store.CreateRule(ctx, "user-1", &rule))
	require.NoError(t, store.SetRuleDisabled(ctx, rule.ID, true))

	listed, err := store.ListRules(ctx, "user-1")
	require.NoError(t, err)
	require.Len(t, listed, 1)
	assert.True(t, listed[0].Disabled)
}

func TestSaveAndLatestModel(t *testing.T) {
	store := testStorage(t)
	ctx := context.Background()

	_, err := store.LatestModel(ctx, "user-1")
	assert.ErrorIs(t, err, common.ErrModelNotFound)

	require.NoError(t, store.SaveModel(ctx, "user-1", []byte(`{"v":1}`), 12))
	require.NoError(t, store.SaveModel(ctx, "user-1", []byte(`{"v":2}`), 20))

	latest, err := store.LatestModel(ctx, "user-1")
	require.NoError(t, err)
	assert.Equal(t, []byte(`{"v":2}`), latest.Weights)
	assert.Equal(t, 20, latest.LabelCount)
}

func TestSaveModel_EmptyWeights(t *testing.T) {
	store := testStorage(t)

	err := store.SaveModel(context.Background(), "user-1", nil, 0)
	assert.Error(t, err)
}
