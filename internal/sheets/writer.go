// Package sheets exports category spend reports to Google Sheets.
package sheets

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"sort"
	"time"

	"golang.org/x/oauth2/google"
	"google.golang.org/api/option"
	"google.golang.org/api/sheets/v4"

	"github.com/mintfall/sift/internal/common"
	"github.com/mintfall/sift/internal/model"
)

// Config holds the configuration for the Google Sheets writer.
type Config struct {
	ServiceAccountPath string
	SpreadsheetID      string
	RetryAttempts      int
	RetryDelay         time.Duration
}

// Validate ensures required fields are present.
func (c *Config) Validate() error {
	if c.ServiceAccountPath == "" {
		return fmt.Errorf("%w: sheets service account path is required", common.ErrMissingConfig)
	}
	if c.SpreadsheetID == "" {
		return fmt.Errorf("%w: sheets spreadsheet ID is required", common.ErrMissingConfig)
	}
	return nil
}

// Writer writes monthly category totals to a Google spreadsheet.
type Writer struct {
	service *sheets.Service
	logger  *slog.Logger
	config  Config
}

// NewWriter creates a Google Sheets writer using service-account auth.
func NewWriter(ctx context.Context, config Config) (*Writer, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	if config.RetryAttempts <= 0 {
		config.RetryAttempts = 3
	}
	if config.RetryDelay <= 0 {
		config.RetryDelay = time.Second
	}

	jsonKey, err := os.ReadFile(config.ServiceAccountPath)
	if err != nil {
		return nil, fmt.Errorf("unable to read service account key file: %w", err)
	}
	jwtConfig, err := google.JWTConfigFromJSON(jsonKey, sheets.SpreadsheetsScope)
	if err != nil {
		return nil, fmt.Errorf("unable to parse service account key: %w", err)
	}

	service, err := sheets.NewService(ctx, option.WithTokenSource(jwtConfig.TokenSource(ctx)))
	if err != nil {
		return nil, fmt.Errorf("failed to create sheets service: %w", err)
	}

	return &Writer{
		service: service,
		logger:  slog.Default().With("component", "sheets"),
		config:  config,
	}, nil
}

// WriteMonthlyReport writes per-category totals for one month. Transfers
// are excluded from spend totals.
func (w *Writer) WriteMonthlyReport(ctx context.Context, month time.Time, transactions []model.Transaction) error {
	totals := categoryTotals(transactions)
	values := [][]any{
		{"Category", "Total", "Transactions"},
	}
	for _, row := range totals {
		values = append(values, []any{row.category, row.total, row.count})
	}

	sheetName := month.Format("2006-01")
	writeRange := fmt.Sprintf("%s!A1", sheetName)

	retryOpts := common.RetryOptions{
		MaxAttempts:  w.config.RetryAttempts,
		InitialDelay: w.config.RetryDelay,
		MaxDelay:     30 * time.Second,
		Multiplier:   2.0,
	}

	err := common.WithRetry(ctx, func() error {
		if err := w.ensureSheet(ctx, sheetName); err != nil {
			return err
		}
		_, err := w.service.Spreadsheets.Values.
			Update(w.config.SpreadsheetID, writeRange, &sheets.ValueRange{Values: values}).
			ValueInputOption("USER_ENTERED").
			Context(ctx).
			Do()
		return err
	}, retryOpts)
	if err != nil {
		return fmt.Errorf("failed to write report: %w", err)
	}

	w.logger.Info("Wrote monthly report",
		"month", sheetName,
		"categories", len(totals))
	return nil
}

func (w *Writer) ensureSheet(ctx context.Context, name string) error {
	spreadsheet, err := w.service.Spreadsheets.Get(w.config.SpreadsheetID).Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("failed to load spreadsheet: %w", err)
	}
	for _, sheet := range spreadsheet.Sheets {
		if sheet.Properties != nil && sheet.Properties.Title == name {
			return nil
		}
	}

	_, err = w.service.Spreadsheets.BatchUpdate(w.config.SpreadsheetID, &sheets.BatchUpdateSpreadsheetRequest{
		Requests: []*sheets.Request{{
			AddSheet: &sheets.AddSheetRequest{
				Properties: &sheets.SheetProperties{Title: name},
			},
		}},
	}).Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("failed to add sheet %s: %w", name, err)
	}
	return nil
}

type categoryTotal struct {
	category string
	total    float64
	count    int
}

func categoryTotals(transactions []model.Transaction) []categoryTotal {
	byCategory := make(map[string]*categoryTotal)

	for _, tx := range transactions {
		if tx.IsTransfer {
			continue
		}
		category := tx.Category
		if category == "" {
			category = "Uncategorised"
		}
		row, ok := byCategory[category]
		if !ok {
			row = &categoryTotal{category: category}
			byCategory[category] = row
		}
		row.total += tx.Amount
		row.count++
	}

	out := make([]categoryTotal, 0, len(byCategory))
	for _, row := range byCategory {
		out = append(out, *row)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].category < out[j].category })
	return out
}
