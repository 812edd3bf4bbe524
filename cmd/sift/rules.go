package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/mintfall/sift/internal/cli"
	"github.com/mintfall/sift/internal/model"
	"github.com/mintfall/sift/internal/rules"
)

func rulesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "rules",
		Short: "Manage category rules",
	}
	cmd.AddCommand(rulesListCmd())
	cmd.AddCommand(rulesAddCmd())
	cmd.AddCommand(rulesDisableCmd())
	return cmd
}

func rulesListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List rules in priority order",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()

			store, err := openStorage(ctx)
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			ruleSet, err := store.ListRules(ctx, viper.GetString("user"))
			if err != nil {
				return err
			}
			if len(ruleSet) == 0 {
				fmt.Println(cli.SubtleStyle.Render("No rules defined"))
				return nil
			}

			fmt.Println(cli.TableHeaderStyle.Render(
				fmt.Sprintf("%-4s %-8s %-30s %-20s %-20s %s", "ID", "Priority", "Pattern", "Field", "Category", "Status")))
			for _, r := range ruleSet {
				status := "active"
				if r.Disabled {
					status = "disabled"
				}
				fmt.Printf("%-4d %-8d %-30s %-20s %-20s %s\n",
					r.ID, r.Priority, r.Pattern, r.Field, r.Category, status)
			}
			return nil
		},
	}
}

func rulesAddCmd() *cobra.Command {
	var (
		priority     int
		field        string
		categoryType string
		amountText   string
	)

	cmd := &cobra.Command{
		Use:   "add <pattern> <category>",
		Short: "Add a rule matching a regex pattern to a category",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			store, err := openStorage(ctx)
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			rule := model.CategoryRule{
				Pattern:      args[0],
				Category:     args[1],
				CategoryType: categoryType,
				Priority:     priority,
				Field:        model.RuleField(field),
				Amount:       rules.ParseAmountCondition(amountText),
			}

			if err := store.CreateRule(ctx, viper.GetString("user"), &rule); err != nil {
				return err
			}

			fmt.Println(cli.SuccessStyle.Render(fmt.Sprintf("Added rule %d", rule.ID)))
			return nil
		},
	}

	cmd.Flags().IntVar(&priority, "priority", 1000, "rule priority (lower wins)")
	cmd.Flags().StringVar(&field, "field", string(model.FieldMerchantNormalised), "field to match (merchant_normalised or description_raw)")
	cmd.Flags().StringVar(&categoryType, "type", "", "category type (income or expense)")
	cmd.Flags().StringVar(&amountText, "amount", "", `amount condition, e.g. "at least 50" or "100 or 150"`)
	return cmd
}

func rulesDisableCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "disable <rule-id>",
		Short: "Disable a rule without deleting it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			ruleID, err := strconv.Atoi(args[0])
			if err != nil {
				return fmt.Errorf("invalid rule id %q: %w", args[0], err)
			}

			store, err := openStorage(ctx)
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			if err := store.SetRuleDisabled(ctx, ruleID, true); err != nil {
				return err
			}

			fmt.Println(cli.SuccessStyle.Render(fmt.Sprintf("Disabled rule %d", ruleID)))
			return nil
		},
	}
}
