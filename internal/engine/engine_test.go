package engine

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mintfall/sift/internal/common"
	"github.com/mintfall/sift/internal/model"
	"github.com/mintfall/sift/internal/rules"
	"github.com/mintfall/sift/internal/storage"
)

// mockStorage is an in-memory Storage that mirrors the SQLite write
// semantics: confirmed rows ignore full classification updates and only
// accept transfer-flag changes.
type mockStorage struct {
	transactions map[string]*model.Transaction
	rules        []model.CategoryRule
	latestModel  *model.ModelVersion
	updateCalls  int
	rowsWritten  int
}

func newMockStorage() *mockStorage {
	return &mockStorage{transactions: make(map[string]*model.Transaction)}
}

func (m *mockStorage) add(tx model.Transaction) {
	cp := tx
	m.transactions[tx.ID] = &cp
}

func (m *mockStorage) ListTransactions(_ context.Context, userID string, from, to *time.Time) ([]model.Transaction, error) {
	var out []model.Transaction
	for _, tx := range m.transactions {
		if tx.UserID != userID {
			continue
		}
		if from != nil && tx.Date.Before(*from) {
			continue
		}
		if to != nil && tx.Date.After(*to) {
			continue
		}
		out = append(out, *tx)
	}
	return out, nil
}

func (m *mockStorage) ListConfirmedTransactions(_ context.Context, userID string) ([]model.Transaction, error) {
	var out []model.Transaction
	for _, tx := range m.transactions {
		if tx.UserID == userID && tx.CategoryConfirmed {
			out = append(out, *tx)
		}
	}
	return out, nil
}

func (m *mockStorage) UpdateClassifications(_ context.Context, updates []storage.ClassificationUpdate) error {
	m.updateCalls++
	for _, u := range updates {
		tx, ok := m.transactions[u.ID]
		if !ok {
			continue
		}
		if u.TransferOnly {
			tx.IsTransfer = u.IsTransfer
			m.rowsWritten++
			continue
		}
		if tx.CategoryConfirmed {
			continue
		}
		tx.Category = u.Category
		tx.CategoryType = u.CategoryType
		tx.SuggestedCategory = u.SuggestedCategory
		tx.Source = u.Source
		tx.InboxState = u.InboxState
		tx.Confidence = u.Confidence
		tx.IsTransfer = u.IsTransfer
		m.rowsWritten++
	}
	return nil
}

func (m *mockStorage) ListRules(_ context.Context, _ string) ([]model.CategoryRule, error) {
	return m.rules, nil
}

func (m *mockStorage) LatestModel(_ context.Context, _ string) (*model.ModelVersion, error) {
	if m.latestModel == nil {
		return nil, common.ErrModelNotFound
	}
	return m.latestModel, nil
}

func (m *mockStorage) SaveModel(_ context.Context, userID string, weights []byte, labelCount int) error {
	m.latestModel = &model.ModelVersion{
		ID:         1,
		UserID:     userID,
		Weights:    weights,
		LabelCount: labelCount,
		UpdatedAt:  time.Now(),
	}
	return nil
}

var baseDate = time.Date(2026, 5, 11, 0, 0, 0, 0, time.UTC)

func unclassified(id, name, merchant string, amount float64) model.Transaction {
	return model.Transaction{
		ID:           id,
		UserID:       "user-1",
		AccountName:  "Everyday",
		Date:         baseDate,
		Name:         name,
		MerchantName: merchant,
		Amount:       amount,
		Category:     rules.FallbackCategory,
		Source:       model.SourceNone,
		InboxState:   model.InboxUnclassified,
	}
}

func confirmed(id, name, merchant, category string, amount float64) model.Transaction {
	at := baseDate
	tx := unclassified(id, name, merchant, amount)
	tx.Category = category
	tx.Source = model.SourceUser
	tx.InboxState = model.InboxCleared
	tx.CategoryConfirmed = true
	tx.ConfirmedAt = &at
	return tx
}

func TestReclassifyAll_RuleMatch(t *testing.T) {
	store := newMockStorage()
	store.rules = []model.CategoryRule{
		{ID: 1, Pattern: "countdown", Category: "Groceries", CategoryType: "expense", Priority: 10},
	}
	store.add(unclassified("t1", "EFTPOS COUNTDOWN 4821", "Countdown", -42.37))
	store.add(unclassified("t2", "MYSTERY SHOP", "Mystery", -10))

	eng := New(store, DefaultConfig())
	n, err := eng.ReclassifyAll(context.Background(), "user-1", DateRange{})
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	tx := store.transactions["t1"]
	assert.Equal(t, "Groceries", tx.Category)
	assert.Equal(t, model.SourceRule, tx.Source)
	assert.Equal(t, model.InboxAutoClassified, tx.InboxState)
	assert.InDelta(t, 1.0, tx.Confidence, 1e-12)

	// The unmatched transaction already sat in its derived state.
	assert.Equal(t, model.InboxUnclassified, store.transactions["t2"].InboxState)
}

func TestReclassifyAll_Idempotent(t *testing.T) {
	store := newMockStorage()
	store.rules = []model.CategoryRule{
		{ID: 1, Pattern: "countdown", Category: "Groceries", Priority: 10},
	}
	store.add(unclassified("t1", "EFTPOS COUNTDOWN 4821", "Countdown", -42.37))
	for i := 0; i < 6; i++ {
		id := string(rune('a' + i))
		store.add(confirmed("g"+id, "COUNTDOWN", "Countdown", "Groceries", -30))
		store.add(confirmed("u"+id, "UBER TRIP", "Uber", "Transport", -18))
	}

	eng := New(store, Config{AutoThreshold: 0.6, MinLabels: 5})

	ctx := context.Background()
	first, err := eng.ReclassifyAll(ctx, "user-1", DateRange{})
	require.NoError(t, err)
	assert.Positive(t, first)

	second, err := eng.ReclassifyAll(ctx, "user-1", DateRange{})
	require.NoError(t, err)
	assert.Zero(t, second, "re-running with no data change must write nothing")
}

func TestReclassifyAll_ModelAutoApplies(t *testing.T) {
	store := newMockStorage()
	for i := 0; i < 6; i++ {
		id := string(rune('a' + i))
		store.add(confirmed("g"+id, "COUNTDOWN", "Countdown", "Groceries", -30))
		store.add(confirmed("u"+id, "UBER TRIP", "Uber", "Transport", -18))
	}
	store.add(unclassified("pending", "COUNTDOWN", "Countdown", -30))

	eng := New(store, Config{AutoThreshold: 0.6, MinLabels: 5})
	_, err := eng.ReclassifyAll(context.Background(), "user-1", DateRange{})
	require.NoError(t, err)

	require.NotNil(t, store.latestModel, "retraining should have stored a model")

	tx := store.transactions["pending"]
	assert.Equal(t, "Groceries", tx.Category)
	assert.Equal(t, model.SourceModel, tx.Source)
	assert.Equal(t, model.InboxAutoClassified, tx.InboxState)
	assert.GreaterOrEqual(t, tx.Confidence, 0.6)
}

func TestReclassifyAll_TransferOverride(t *testing.T) {
	store := newMockStorage()
	out := unclassified("out", "TRANSFER TO SAVINGS", "", -500)
	in := unclassified("in", "TRANSFER FROM EVERYDAY", "", 500)
	in.AccountName = "Savings"
	store.add(out)
	store.add(in)

	eng := New(store, DefaultConfig())
	n, err := eng.ReclassifyAll(context.Background(), "user-1", DateRange{})
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	for _, id := range []string{"out", "in"} {
		tx := store.transactions[id]
		assert.True(t, tx.IsTransfer)
		assert.Equal(t, TransferCategory, tx.Category)
		assert.Equal(t, "transfer", tx.CategoryType)
		assert.Equal(t, model.InboxAutoClassified, tx.InboxState)
		assert.Empty(t, tx.SuggestedCategory)
	}
}

func TestReclassifyAll_ConfirmedRowsOnlyMoveTransferFlag(t *testing.T) {
	store := newMockStorage()
	tx := confirmed("c1", "TRANSFER TO SAVINGS", "", "Dining", -500)
	store.add(tx)

	eng := New(store, DefaultConfig())
	n, err := eng.ReclassifyAll(context.Background(), "user-1", DateRange{})
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	got := store.transactions["c1"]
	assert.True(t, got.IsTransfer, "transfer flag moves even on confirmed rows")
	assert.Equal(t, "Dining", got.Category, "confirmed category is terminal")
	assert.Equal(t, model.InboxCleared, got.InboxState)
}

func TestReclassifyAll_EmptySet(t *testing.T) {
	eng := New(newMockStorage(), DefaultConfig())
	n, err := eng.ReclassifyAll(context.Background(), "user-1", DateRange{})
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestShouldRetrain(t *testing.T) {
	ctx := context.Background()

	t.Run("no model and one eligible label", func(t *testing.T) {
		store := newMockStorage()
		store.add(confirmed("c1", "COUNTDOWN", "Countdown", "Groceries", -30))

		need, err := New(store, DefaultConfig()).ShouldRetrain(ctx, "user-1")
		require.NoError(t, err)
		assert.True(t, need)
	})

	t.Run("no model and no eligible labels", func(t *testing.T) {
		store := newMockStorage()
		store.add(confirmed("c1", "TRANSFER", "", "Transfer", -30))

		need, err := New(store, DefaultConfig()).ShouldRetrain(ctx, "user-1")
		require.NoError(t, err)
		assert.False(t, need)
	})

	t.Run("label newer than model", func(t *testing.T) {
		store := newMockStorage()
		tx := confirmed("c1", "COUNTDOWN", "Countdown", "Groceries", -30)
		at := time.Now()
		tx.ConfirmedAt = &at
		store.add(tx)
		store.latestModel = &model.ModelVersion{UpdatedAt: at.Add(-time.Hour)}

		need, err := New(store, DefaultConfig()).ShouldRetrain(ctx, "user-1")
		require.NoError(t, err)
		assert.True(t, need)
	})

	t.Run("fresh model and old labels", func(t *testing.T) {
		store := newMockStorage()
		store.add(confirmed("c1", "COUNTDOWN", "Countdown", "Groceries", -30))
		store.latestModel = &model.ModelVersion{UpdatedAt: time.Now()}

		need, err := New(store, DefaultConfig()).ShouldRetrain(ctx, "user-1")
		require.NoError(t, err)
		assert.False(t, need)
	})

	t.Run("stale model with eligible labels", func(t *testing.T) {
		store := newMockStorage()
		store.add(confirmed("c1", "COUNTDOWN", "Countdown", "Groceries", -30))
		store.latestModel = &model.ModelVersion{UpdatedAt: time.Now().Add(-48 * time.Hour)}

		need, err := New(store, DefaultConfig()).ShouldRetrain(ctx, "user-1")
		require.NoError(t, err)
		assert.True(t, need)
	})
}

func TestRetrain_ForcedWithFreshModel(t *testing.T) {
	store := newMockStorage()
	for i := 0; i < 6; i++ {
		id := string(rune('a' + i))
		store.add(confirmed("g"+id, "COUNTDOWN", "Countdown", "Groceries", -30))
		store.add(confirmed("u"+id, "UBER TRIP", "Uber", "Transport", -18))
	}
	fresh := &model.ModelVersion{UpdatedAt: time.Now(), Weights: []byte(`{}`)}
	store.latestModel = fresh

	eng := New(store, Config{MinLabels: 5})

	needed, err := eng.ShouldRetrain(context.Background(), "user-1")
	require.NoError(t, err)
	require.False(t, needed, "fresh model would normally skip retraining")

	trained, err := eng.Retrain(context.Background(), "user-1")
	require.NoError(t, err)
	assert.True(t, trained)
	assert.NotSame(t, fresh, store.latestModel)
}

func TestRetrainIfNeeded_BelowMinLabels(t *testing.T) {
	store := newMockStorage()
	store.add(confirmed("c1", "COUNTDOWN", "Countdown", "Groceries", -30))

	trained, err := New(store, DefaultConfig()).RetrainIfNeeded(context.Background(), "user-1")
	require.NoError(t, err)
	assert.False(t, trained, "insufficient labels is not an error")
	assert.Nil(t, store.latestModel)
}

func TestEligibleLabel(t *testing.T) {
	base := confirmed("c1", "COUNTDOWN", "Countdown", "Groceries", -30)
	assert.True(t, eligibleLabel(base))

	tests := []struct {
		name   string
		mutate func(*model.Transaction)
	}{
		{name: "unconfirmed", mutate: func(tx *model.Transaction) { tx.CategoryConfirmed = false }},
		{name: "transfer flag", mutate: func(tx *model.Transaction) { tx.IsTransfer = true }},
		{name: "empty category", mutate: func(tx *model.Transaction) { tx.Category = "  " }},
		{name: "uncategorised placeholder", mutate: func(tx *model.Transaction) { tx.Category = "UNCATEGORISED" }},
		{name: "transfer category", mutate: func(tx *model.Transaction) { tx.Category = "transfer" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tx := base
			tt.mutate(&tx)
			assert.False(t, eligibleLabel(tx))
		})
	}
}

func TestFallbackPrediction(t *testing.T) {
	groceries := confirmed("c1", "COUNTDOWN", "Countdown", "Groceries", -30)
	dining := confirmed("c2", "CAFE", "Cafe", "Dining", -12)

	t.Run("most frequent confirmed wins", func(t *testing.T) {
		pred := FallbackPrediction(
			[]model.Transaction{groceries, groceries, dining},
			nil,
		)
		require.NotNil(t, pred)
		assert.Equal(t, "Groceries", pred.Category)
		assert.Zero(t, pred.Confidence)
	})

	t.Run("history used when nothing confirmed", func(t *testing.T) {
		pred := FallbackPrediction(nil, []model.Transaction{dining})
		require.NotNil(t, pred)
		assert.Equal(t, "Dining", pred.Category)
	})

	t.Run("nil when no eligible category anywhere", func(t *testing.T) {
		transfer := groceries
		transfer.Category = "Transfer"
		assert.Nil(t, FallbackPrediction(nil, []model.Transaction{transfer}))
	})

	t.Run("ties break to first seen", func(t *testing.T) {
		pred := FallbackPrediction([]model.Transaction{dining, groceries}, nil)
		require.NotNil(t, pred)
		assert.Equal(t, "Dining", pred.Category)
	})
}
