package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/mintfall/sift/internal/cli"
	"github.com/mintfall/sift/internal/sheets"
)

func exportCmd() *cobra.Command {
	var monthStr string

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export monthly category totals to Google Sheets",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			userID := viper.GetString("user")

			month, err := time.Parse("2006-01", monthStr)
			if err != nil {
				return fmt.Errorf("invalid --month, want YYYY-MM: %w", err)
			}

			store, err := openStorage(ctx)
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			from := month
			to := month.AddDate(0, 1, 0).Add(-time.Second)
			transactions, err := store.ListTransactions(ctx, userID, &from, &to)
			if err != nil {
				return err
			}

			writer, err := sheets.NewWriter(ctx, sheets.Config{
				ServiceAccountPath: viper.GetString("sheets.credentials_path"),
				SpreadsheetID:      viper.GetString("sheets.spreadsheet_id"),
			})
			if err != nil {
				return err
			}

			if err := writer.WriteMonthlyReport(ctx, month, transactions); err != nil {
				return err
			}

			fmt.Println(cli.SuccessStyle.Render(
				fmt.Sprintf("Exported %s (%d transactions)", monthStr, len(transactions))))
			return nil
		},
	}

	cmd.Flags().StringVar(&monthStr, "month", time.Now().Format("2006-01"), "month to export (YYYY-MM)")
	return cmd
}
