package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/mintfall/sift/internal/cli"
	"github.com/mintfall/sift/internal/model"
	"github.com/mintfall/sift/internal/tui"
)

func inboxCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "inbox",
		Short: "Review transactions awaiting categorization",
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

			var pending []model.Transaction
			for _, tx := range transactions {
				if tx.InboxState == model.InboxNeedsReview || tx.InboxState == model.InboxUnclassified {
					pending = append(pending, tx)
				}
			}

			if len(pending) == 0 {
				fmt.Println(cli.SuccessStyle.Render("Inbox is empty 🎉"))
				return nil
			}

			confirmed, err := tui.Run(ctx, store, pending)
			if err != nil {
				return err
			}

			fmt.Println(cli.SuccessStyle.Render(fmt.Sprintf("Confirmed %d transactions", confirmed)))
			return nil
		},
	}
}
