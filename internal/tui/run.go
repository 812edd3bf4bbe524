package tui

import (
	"context"
	"fmt"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/mintfall/sift/internal/model"
)

// Run launches the review screen and blocks until the user quits or the
// inbox is empty. Returns how many transactions were confirmed.
func Run(ctx context.Context, confirmer Confirmer, items []model.Transaction) (int, error) {
	program := tea.NewProgram(New(ctx, confirmer, items), tea.WithContext(ctx))

	final, err := program.Run()
	if err != nil {
		return 0, fmt.Errorf("review session failed: %w", err)
	}

	m, ok := final.(Model)
	if !ok {
		return 0, fmt.Errorf("unexpected final model type %T", final)
	}
	return m.Confirmed(), nil
}
