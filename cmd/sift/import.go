package main

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/mintfall/sift/internal/cli"
	"github.com/mintfall/sift/internal/feed"
	"github.com/mintfall/sift/internal/model"
	"github.com/mintfall/sift/internal/ofx"
)

func importCmd() *cobra.Command {
	var (
		fromPlaid bool
		days      int
	)

	cmd := &cobra.Command{
		Use:   "import [file.ofx ...]",
		Short: "Import transactions from OFX files or the bank feed",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			userID := viper.GetString("user")

			store, err := openStorage(ctx)
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			var transactions []model.Transaction

			switch {
			case fromPlaid:
				transactions, err = fetchFromPlaid(cmd, userID, days)
				if err != nil {
					return err
				}
			case len(args) > 0:
				parser := ofx.NewParser()
				for _, path := range args {
					file, err := os.Open(path)
					if err != nil {
						return fmt.Errorf("failed to open %s: %w", path, err)
					}
					parsed, perr := parser.ParseFile(file, userID)
					_ = file.Close()
					if perr != nil {
						return fmt.Errorf("failed to parse %s: %w", path, perr)
					}
					transactions = append(transactions, parsed...)
				}
			default:
				return fmt.Errorf("provide OFX files or --plaid")
			}

			if err := store.SaveTransactions(ctx, transactions); err != nil {
				return err
			}

			fmt.Println(cli.SuccessStyle.Render(
				fmt.Sprintf("Imported %d transactions", len(transactions))))
			return nil
		},
	}

	cmd.Flags().BoolVar(&fromPlaid, "plaid", false, "fetch from the configured Plaid item")
	cmd.Flags().IntVar(&days, "days", 30, "how many days of history to fetch with --plaid")
	return cmd
}

func fetchFromPlaid(cmd *cobra.Command, userID string, days int) ([]model.Transaction, error) {
	ctx := cmd.Context()

	client, err := feed.NewClient(feed.Config{
		ClientID:    viper.GetString("plaid.client_id"),
		Secret:      viper.GetString("plaid.secret"),
		Environment: viper.GetString("plaid.environment"),
		AccessToken: viper.GetString("plaid.access_token"),
	})
	if err != nil {
		return nil, err
	}

	// The account lookup is built fresh for this sync and discarded after.
	lookup, err := client.FetchAccounts(ctx)
	if err != nil {
		return nil, err
	}

	end := time.Now()
	start := end.AddDate(0, 0, -days)
	return client.FetchTransactions(ctx, userID, lookup, start, end)
}
