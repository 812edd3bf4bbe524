package main

import (
	"fmt"
	"time"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/mintfall/sift/internal/cli"
	"github.com/mintfall/sift/internal/engine"
)

func classifyCmd() *cobra.Command {
	var (
		fromStr string
		toStr   string
	)

	cmd := &cobra.Command{
		Use:   "classify",
		Short: "Run the classification pipeline over stored transactions",
		Long: `Runs transfer detection, rule matching, and model prediction over the
user's stored transactions, retraining the model first when new confirmed
labels warrant it. Only transactions whose derived state changed are
written back; confirmed transactions are never reclassified.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			userID := viper.GetString("user")

			dateRange, err := parseDateRange(fromStr, toStr)
			if err != nil {
				return err
			}

			store, err := openStorage(ctx)
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			bar := progressbar.NewOptions(-1,
				progressbar.OptionSetDescription("classifying"),
				progressbar.OptionSpinnerType(14),
				progressbar.OptionClearOnFinish(),
			)
			done := make(chan struct{})
			go spin(bar, done)

			eng := newEngine(store)
			updated, err := eng.ReclassifyAll(ctx, userID, dateRange)
			close(done)
			_ = bar.Finish()
			if err != nil {
				return err
			}

			fmt.Println(cli.SuccessStyle.Render(
				fmt.Sprintf("Classification pass complete: %d transactions updated", updated)))
			return nil
		},
	}

	cmd.Flags().StringVar(&fromStr, "from", "", "start date (YYYY-MM-DD)")
	cmd.Flags().StringVar(&toStr, "to", "", "end date (YYYY-MM-DD)")
	return cmd
}

func parseDateRange(fromStr, toStr string) (engine.DateRange, error) {
	var dr engine.DateRange

	if fromStr != "" {
		from, err := time.Parse("2006-01-02", fromStr)
		if err != nil {
			return dr, fmt.Errorf("invalid --from date: %w", err)
		}
		dr.From = &from
	}
	if toStr != "" {
		to, err := time.Parse("2006-01-02", toStr)
		if err != nil {
			return dr, fmt.Errorf("invalid --to date: %w", err)
		}
		dr.To = &to
	}
	return dr, nil
}

func spin(bar *progressbar.ProgressBar, done <-chan struct{}) {
	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()
	for {
		select {
		case <-done:
			return
		case <-ticker.C:
			_ = bar.Add(1)
		}
	}
}
