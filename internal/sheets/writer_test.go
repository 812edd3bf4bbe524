package sheets

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mintfall/sift/internal/common"
	"github.com/mintfall/sift/internal/model"
)

func TestConfigValidate(t *testing.T) {
	valid := Config{ServiceAccountPath: "/tmp/key.json", SpreadsheetID: "sheet-1"}
	assert.NoError(t, valid.Validate())

	missingPath := valid
	missingPath.ServiceAccountPath = ""
	assert.ErrorIs(t, missingPath.Validate(), common.ErrMissingConfig)

	missingSheet := valid
	missingSheet.SpreadsheetID = ""
	assert.ErrorIs(t, missingSheet.Validate(), common.ErrMissingConfig)
}

func TestCategoryTotals(t *testing.T) {
	totals := categoryTotals([]model.Transaction{
		{Category: "Groceries", Amount: -42.37},
		{Category: "Groceries", Amount: -30.00},
		{Category: "Dining", Amount: -12.50},
		{Category: "Transfer", Amount: -500, IsTransfer: true},
		{Category: "", Amount: -5},
	})

	require.Len(t, totals, 3)

	// Rows come back sorted by category name.
	assert.Equal(t, "Dining", totals[0].category)
	assert.Equal(t, "Groceries", totals[1].category)
	assert.Equal(t, "Uncategorised", totals[2].category)

	assert.InDelta(t, -72.37, totals[1].total, 1e-9)
	assert.Equal(t, 2, totals[1].count)

	for _, row := range totals {
		assert.NotEqual(t, "Transfer", row.category, "transfers stay out of spend totals")
	}
}
