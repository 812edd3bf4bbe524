package storage

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mintfall/sift/internal/common"
	"github.com/mintfall/sift/internal/model"
)

func testStorage(t *testing.T) *SQLiteStorage {
	t.Helper()

	store, err := NewSQLiteStorage(":memory:")
	require.NoError(t, err)
	require.NoError(t, store.Migrate(context.Background()))

	t.Cleanup(func() { _ = store.Close() })
	return store
}

func testTransaction(id string, amount float64) model.Transaction {
	return model.Transaction{
		ID:           id,
		UserID:       "user-1",
		AccountName:  "Everyday",
		Date:         time.Date(2026, 6, 15, 0, 0, 0, 0, time.UTC),
		Name:         "EFTPOS COUNTDOWN 4821",
		MerchantName: "Countdown",
		Amount:       amount,
	}
}

func TestNewSQLiteStorage_EmptyPath(t *testing.T) {
	_, err := NewSQLiteStorage("")
	assert.Error(t, err)
}

func TestMigrate_Idempotent(t *testing.T) {
	store := testStorage(t)
	require.NoError(t, store.Migrate(context.Background()))
}

func TestSaveTransactions_DuplicatesSkipped(t *testing.T) {
	store := testStorage(t)
	ctx := context.Background()

	tx := testTransaction("t1", -42.37)
	require.NoError(t, store.SaveTransactions(ctx, []model.Transaction{tx}))

	// Same content under a different ID hashes identically and is ignored.
	dup := tx
	dup.ID = "t1-again"
	require.NoError(t, store.SaveTransactions(ctx, []model.Transaction{dup}))

	got, err := store.ListTransactions(ctx, "user-1", nil, nil)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "t1", got[0].ID)
}

func TestSaveTransactions_EmptyIDRejected(t *testing.T) {
	store := testStorage(t)

	err := store.SaveTransactions(context.Background(), []model.Transaction{{UserID: "user-1"}})
	assert.Error(t, err)
}

func TestListTransactions_DateRangeAndOrder(t *testing.T) {
	store := testStorage(t)
	ctx := context.Background()

	early := testTransaction("early", -10)
	early.Date = time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)
	mid := testTransaction("mid", -20)
	mid.Date = time.Date(2026, 6, 15, 0, 0, 0, 0, time.UTC)
	late := testTransaction("late", -30)
	late.Date = time.Date(2026, 6, 30, 0, 0, 0, 0, time.UTC)
	require.NoError(t, store.SaveTransactions(ctx, []model.Transaction{late, early, mid}))

	all, err := store.ListTransactions(ctx, "user-1", nil, nil)
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, "early", all[0].ID)
	assert.Equal(t, "late", all[2].ID)

	from := time.Date(2026, 6, 10, 0, 0, 0, 0, time.UTC)
	to := time.Date(2026, 6, 20, 0, 0, 0, 0, time.UTC)
	ranged, err := store.ListTransactions(ctx, "user-1", &from, &to)
	require.NoError(t, err)
	require.Len(t, ranged, 1)
	assert.Equal(t, "mid", ranged[0].ID)

	other, err := store.ListTransactions(ctx, "someone-else", nil, nil)
	require.NoError(t, err)
	assert.Empty(t, other)
}

func TestListTransactions_SchemaDefaults(t *testing.T) {
	store := testStorage(t)
	ctx := context.Background()

	require.NoError(t, store.SaveTransactions(ctx, []model.Transaction{testTransaction("t1", -42.37)}))

	got, err := store.ListTransactions(ctx, "user-1", nil, nil)
	require.NoError(t, err)
	require.Len(t, got, 1)

	tx := got[0]
	assert.Equal(t, model.SourceNone, tx.Source)
	assert.Equal(t, model.InboxUnclassified, tx.InboxState)
	assert.False(t, tx.CategoryConfirmed)
	assert.Nil(t, tx.ConfirmedAt)
}

func TestUpdateClassifications(t *testing.T) {
	store := testStorage(t)
	ctx := context.Background()

	require.NoError(t, store.SaveTransactions(ctx, []model.Transaction{testTransaction("t1", -42.37)}))

	err := store.UpdateClassifications(ctx, []ClassificationUpdate{{
		ID:           "t1",
		Category:     "Groceries",
		CategoryType: "expense",
		Source:       model.SourceRule,
		InboxState:   model.InboxAutoClassified,
		Confidence:   1.0,
	}})
	require.NoError(t, err)

	got, err := store.ListTransactions(ctx, "user-1", nil, nil)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "Groceries", got[0].Category)
	assert.Equal(t, model.SourceRule, got[0].Source)
	assert.Equal(t, model.InboxAutoClassified, got[0].InboxState)
	assert.InDelta(t, 1.0, got[0].Confidence, 1e-12)
}

func TestUpdateClassifications_ConfirmedGuard(t *testing.T) {
	store := testStorage(t)
	ctx := context.Background()

	require.NoError(t, store.SaveTransactions(ctx, []model.Transaction{testTransaction("t1", -42.37)}))
	require.NoError(t, store.ConfirmCategory(ctx, "t1", "Dining", "expense"))

	// A full classification update must not touch the confirmed row.
	err := store.UpdateClassifications(ctx, []ClassificationUpdate{{
		ID:         "t1",
		Category:   "Groceries",
		Source:     model.SourceModel,
		InboxState: model.InboxAutoClassified,
		Confidence: 0.9,
	}})
	require.NoError(t, err)

	got, err := store.ListTransactions(ctx, "user-1", nil, nil)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "Dining", got[0].Category)
	assert.Equal(t, model.InboxCleared, got[0].InboxState)

	// The transfer flag still moves.
	err = store.UpdateClassifications(ctx, []ClassificationUpdate{{
		ID:           "t1",
		IsTransfer:   true,
		TransferOnly: true,
	}})
	require.NoError(t, err)

	got, err = store.ListTransactions(ctx, "user-1", nil, nil)
	require.NoError(t, err)
	assert.True(t, got[0].IsTransfer)
	assert.Equal(t, "Dining", got[0].Category)
}

func TestConfirmCategory(t *testing.T) {
	store := testStorage(t)
	ctx := context.Background()

	require.NoError(t, store.SaveTransactions(ctx, []model.Transaction{testTransaction("t1", -42.37)}))
	require.NoError(t, store.ConfirmCategory(ctx, "t1", "Groceries", "expense"))

	confirmed, err := store.ListConfirmedTransactions(ctx, "user-1")
	require.NoError(t, err)
	require.Len(t, confirmed, 1)

	tx := confirmed[0]
	assert.Equal(t, "Groceries", tx.Category)
	assert.Equal(t, model.SourceUser, tx.Source)
	assert.Equal(t, model.InboxCleared, tx.InboxState)
	assert.True(t, tx.CategoryConfirmed)
	require.NotNil(t, tx.ConfirmedAt)
}

func TestConfirmCategory_NotFound(t *testing.T) {
	store := testStorage(t)

	err := store.ConfirmCategory(context.Background(), "missing", "Groceries", "expense")
	assert.ErrorIs(t, err, common.ErrNotFound)
}
