package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/mintfall/sift/internal/cli"
)

func retrainCmd() *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "retrain",
		Short: "Retrain the classification model from confirmed labels",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			userID := viper.GetString("user")

			store, err := openStorage(ctx)
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			eng := newEngine(store)

			var trained bool
			if force {
				trained, err = eng.Retrain(ctx, userID)
			} else {
				trained, err = eng.RetrainIfNeeded(ctx, userID)
			}
			if err != nil {
				return err
			}

			if trained {
				fmt.Println(cli.SuccessStyle.Render("Trained a new model"))
			} else {
				fmt.Println(cli.SubtleStyle.Render("Model is up to date (or not enough labels yet)"))
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&force, "force", false, "retrain even if the current model looks fresh")
	return cmd
}
