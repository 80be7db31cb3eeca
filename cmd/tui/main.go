package main

import (
	"context"
	"log/slog"
	"os"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/laundrydesk/laundrydesk/cmd/tui/internal/view"
	"github.com/laundrydesk/laundrydesk/internal/app"
	"github.com/laundrydesk/laundrydesk/internal/config"
)

const logFile = "laundrydesk-tui.log"

type model struct {
	services *app.Services
	title    string

	// nil while the menu is shown
	current view.View
}

func newModel(services *app.Services, title string) model {
	return model{services: services, title: title}
}

func (m model) Init() tea.Cmd {
	return nil
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		if msg.String() == "ctrl+c" {
			return m, tea.Quit
		}

		if m.current == nil {
			return m.updateMenu(msg)
		}
	case view.BackMsg:
		m.current = nil
		return m, nil
	}

	if m.current == nil {
		return m, nil
	}

	next, cmd := m.current.Update(msg)
	m.current = next.(view.View)

	return m, cmd
}

func (m model) updateMenu(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	s := m.services

	switch msg.String() {
	case "q":
		return m, tea.Quit
	case "1":
		m.current = view.NewDropOffModel(s.Catalog, s.Ledger)
	case "2":
		m.current = view.NewBalanceModel(s.Accounts)
	case "3":
		m.current = view.NewHistoryModel(s.Invoices, s.Catalog)
	case "4":
		m.current = view.NewReturnModel(s.Invoices)
	default:
		return m, nil
	}

	return m, m.current.Init()
}

func (m model) View() string {
	if m.current != nil {
		return m.current.View()
	}

	return lipgloss.NewStyle().Padding(2).Render(
		m.title + "\n\n" +
			"1. Drop-off\n" +
			"2. Check Balance\n" +
			"3. History\n" +
			"4. Return\n\n" +
			"q. Quit",
	)
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	// The terminal belongs to the UI, so logs go to a file.
	f, err := tea.LogToFile(logFile, "tui")
	if err != nil {
		slog.Error("failed to open log file", "error", err)
		os.Exit(1)
	}
	defer f.Close()

	slog.SetDefault(slog.New(slog.NewJSONHandler(f, &slog.HandlerOptions{Level: cfg.App.LogLevel})))

	services, err := app.Build(context.Background(), cfg)
	if err != nil {
		slog.Error("failed to build services", "error", err)
		os.Exit(1)
	}
	defer services.Close()

	p := tea.NewProgram(newModel(services, cfg.App.Name), tea.WithAltScreen())
	if _, err := p.Run(); err != nil {
		slog.Error("failed to run TUI", "error", err)
		os.Exit(1)
	}
}
