package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/mintfall/sift/internal/cli"
	"github.com/mintfall/sift/internal/rules"
	"github.com/mintfall/sift/internal/transfer"
)

func transfersCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "transfers",
		Short: "Detect transfers between your own accounts",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			userID := viper.GetString("user")

			store, err := openStorage(ctx)
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			transactions, err := store.ListTransactions(ctx, userID, nil, nil)
			if err != nil {
				return err
			}

			ids := transfer.DetectTransferIDs(transactions)
			if len(ids) == 0 {
				fmt.Println(cli.SubtleStyle.Render("No transfers detected"))
				return nil
			}

			fmt.Println(cli.TitleStyle.Render(fmt.Sprintf("Detected %d transfer legs", len(ids))))
			for _, tx := range transactions {
				if _, ok := ids[tx.ID]; !ok {
					continue
				}
				how := "paired"
				if rules.DetectTransferKeyword(tx) {
					how = "keyword"
				}
				fmt.Printf("%s  %9.2f  %-20s  %-7s  %s\n",
					tx.Date.Format("2006-01-02"), tx.Amount, tx.AccountName, how, tx.Name)
			}
			return nil
		},
	}
}
