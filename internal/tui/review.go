// Package tui implements the interactive inbox review screen.
package tui

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/mintfall/sift/internal/feature"
	"github.com/mintfall/sift/internal/model"
)

// Confirmer records a user's categorization decision. Confirmation is
// terminal; confirmed transactions leave the inbox for good.
type Confirmer interface {
	ConfirmCategory(ctx context.Context, id, category, categoryType string) error
}

type mode int

const (
	modeBrowsing mode = iota
	modeEditing
)

var (
	titleStyle      = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#7FB069")).MarginBottom(1)
	selectedStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#4ECDC4"))
	suggestionStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#FFE66D"))
	subtleStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("#666666"))
	errorStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("#FF6B6B"))
)

// Model is the bubbletea model for the review screen.
type Model struct {
	ctx       context.Context
	confirmer Confirmer
	input     textinput.Model
	items     []model.Transaction
	status    string
	cursor    int
	confirmed int
	mode      mode
	quitting  bool
}

// New creates a review model over the transactions awaiting a decision.
func New(ctx context.Context, confirmer Confirmer, items []model.Transaction) Model {
	input := textinput.New()
	input.Placeholder = "category name"
	input.CharLimit = 64

	return Model{
		ctx:       ctx,
		confirmer: confirmer,
		input:     input,
		items:     items,
	}
}

// Confirmed reports how many transactions were confirmed this session.
func (m Model) Confirmed() int {
	return m.confirmed
}

// Init implements tea.Model.
func (m Model) Init() tea.Cmd {
	return nil
}

// Update implements tea.Model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	keyMsg, ok := msg.(tea.KeyMsg)
	if !ok {
		return m, nil
	}

	if m.mode == modeEditing {
		return m.updateEditing(keyMsg)
	}
	return m.updateBrowsing(keyMsg)
}

func (m Model) updateBrowsing(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q", "ctrl+c", "esc":
		m.quitting = true
		return m, tea.Quit

	case "up", "k":
		if m.cursor > 0 {
			m.cursor--
		}

	case "down", "j":
		if m.cursor < len(m.items)-1 {
			m.cursor++
		}

	case "a", "enter":
		// Accept the suggestion, when there is one
		if len(m.items) == 0 {
			return m, nil
		}
		tx := m.items[m.cursor]
		category := tx.SuggestedCategory
		if category == "" {
			m.status = errorStyle.Render("no suggestion to accept; press c to categorize")
			return m, nil
		}
		return m.confirm(category, tx.CategoryType)

	case "c":
		if len(m.items) == 0 {
			return m, nil
		}
		m.mode = modeEditing
		m.input.SetValue("")
		m.input.Focus()
		return m, textinput.Blink

	case "s":
		if m.cursor < len(m.items)-1 {
			m.cursor++
		}
	}

	return m, nil
}

func (m Model) updateEditing(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "esc":
		m.mode = modeBrowsing
		m.input.Blur()
		return m, nil

	case "enter":
		category := strings.TrimSpace(m.input.Value())
		if category == "" {
			m.status = errorStyle.Render("category must not be empty")
			return m, nil
		}
		m.mode = modeBrowsing
		m.input.Blur()
		return m.confirm(category, "")
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m Model) confirm(category, categoryType string) (tea.Model, tea.Cmd) {
	tx := m.items[m.cursor]

	if err := m.confirmer.ConfirmCategory(m.ctx, tx.ID, category, categoryType); err != nil {
		m.status = errorStyle.Render(fmt.Sprintf("failed to confirm: %v", err))
		return m, nil
	}

	m.confirmed++
	m.status = fmt.Sprintf("confirmed %s as %s", tx.MerchantName, category)
	m.items = append(m.items[:m.cursor], m.items[m.cursor+1:]...)
	if m.cursor >= len(m.items) && m.cursor > 0 {
		m.cursor--
	}
	if len(m.items) == 0 {
		m.quitting = true
		return m, tea.Quit
	}
	return m, nil
}

// View implements tea.Model.
func (m Model) View() string {
	if m.quitting {
		return fmt.Sprintf("Confirmed %d transactions.\n", m.confirmed)
	}

	var b strings.Builder
	b.WriteString(titleStyle.Render(fmt.Sprintf("Inbox — %d awaiting review", len(m.items))))
	b.WriteString("\n")

	start, end := window(m.cursor, len(m.items), 10)
	for i := start; i < end; i++ {
		tx := m.items[i]
		line := fmt.Sprintf("%s  %9.2f  %-28s", tx.Date.Format("2006-01-02"), tx.Amount, truncate(tx.MerchantName, 28))
		if tx.SuggestedCategory != "" {
			line += suggestionStyle.Render(fmt.Sprintf("  → %s (%.0f%%)", tx.SuggestedCategory, tx.Confidence*100))
		}
		if i == m.cursor {
			b.WriteString(selectedStyle.Render("> " + line))
			b.WriteString("\n")
			b.WriteString(subtleStyle.Render("    " + signalLine(tx)))
		} else {
			b.WriteString("  " + line)
		}
		b.WriteString("\n")
	}

	if m.mode == modeEditing {
		b.WriteString("\nCategory: " + m.input.View() + "\n")
		b.WriteString(subtleStyle.Render("enter confirm · esc cancel"))
	} else {
		b.WriteString("\n" + subtleStyle.Render("a/enter accept suggestion · c categorize · j/k move · q quit"))
	}

	if m.status != "" {
		b.WriteString("\n" + m.status)
	}

	return b.String()
}

func window(cursor, total, size int) (int, int) {
	if total <= size {
		return 0, total
	}
	start := cursor - size/2
	if start < 0 {
		start = 0
	}
	end := start + size
	if end > total {
		end = total
		start = end - size
	}
	return start, end
}

// signalLine summarizes the signals the classifier saw for a transaction.
func signalLine(tx model.Transaction) string {
	signals := feature.ExtractSignals(tx)

	parts := []string{
		"merchant=" + signals.MerchantKey,
		signals.Direction + "/" + signals.AmountBucket,
	}
	if len(signals.ReferenceTokens) > 0 {
		parts = append(parts, "ref="+strings.Join(signals.ReferenceTokens, ","))
	}
	return strings.Join(parts, "  ")
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}
