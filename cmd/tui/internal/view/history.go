package view

import (
	"fmt"
	"time"

	"github.com/charmbracelet/bubbles/table"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/laundrydesk/laundrydesk/internal/catalog"
	"github.com/laundrydesk/laundrydesk/internal/invoice"
)

type historyState int

const (
	historyStateBrowse historyState = iota
	historyStateTimeframe
)

var historyStatuses = []invoice.Status{"", invoice.StatusOngoing, invoice.StatusReturned}

type HistoryModel struct {
	CommonModel
	invoiceService *invoice.Service
	catalogService *catalog.Service

	state  historyState
	table  table.Model
	picker TimeframePicker

	all     []*invoice.Invoice
	shown   []*invoice.Invoice
	items   []*catalog.Item
	details *invoice.Invoice

	statusIdx int
	start     *time.Time
	end       *time.Time

	loading bool
	err     error
}

func NewHistoryModel(invoiceSvc *invoice.Service, catalogSvc *catalog.Service) HistoryModel {
	columns := []table.Column{
		{Title: "Invoice", Width: 14},
		{Title: "Account", Width: 12},
		{Title: "Dropped off", Width: 17},
		{Title: "Ready by", Width: 17},
		{Title: "Status", Width: 9},
		{Title: "Total", Width: 7},
		{Title: "Before", Width: 7},
		{Title: "After", Width: 7},
	}

	t := table.New(
		table.WithColumns(columns),
		table.WithFocused(true),
		table.WithHeight(15),
	)

	s := table.DefaultStyles()
	s.Header = s.Header.
		BorderStyle(lipgloss.NormalBorder()).
		BorderForeground(lipgloss.Color("240")).
		BorderBottom(true).
		Bold(false)
	s.Selected = s.Selected.
		Foreground(lipgloss.Color("229")).
		Background(lipgloss.Color("57")).
		Bold(false)
	t.SetStyles(s)

	return HistoryModel{
		invoiceService: invoiceSvc,
		catalogService: catalogSvc,
		table:          t,
		picker:         NewTimeframePicker(TimeframeToday),
		loading:        true,
	}
}

func (m HistoryModel) Title() string { return "History" }
func (m HistoryModel) ShortHelp() string {
	if m.state == historyStateTimeframe {
		return "Enter: apply | Esc: cancel"
	}
	return "Esc: back | Enter: details | s: status filter | d: date filter | r: refresh"
}

func (m HistoryModel) Init() tea.Cmd {
	return m.loadHistoryCmd()
}

func (m HistoryModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case loadHistoryMsg:
		m.loading = false
		if msg.err != nil {
			m.err = msg.err
			return m, nil
		}

		m.err = nil
		m.all = msg.invoices
		m.items = msg.items
		m.refreshTable()
		return m, nil

	case detailsMsg:
		if msg.err != nil {
			m.err = msg.err
			return m, nil
		}

		m.details = msg.inv
		return m, nil

	case TimeframeSelectedMsg:
		m.state = historyStateBrowse
		m.start, m.end = nil, nil
		if !msg.All {
			m.start, m.end = &msg.Start, &msg.End
		}
		m.table.Focus()
		m.refreshTable()
		return m, nil

	case tea.WindowSizeMsg:
		m.table.SetHeight(msg.Height - 10)
		return m, nil
	}

	if m.state == historyStateTimeframe {
		if keyMsg, ok := msg.(tea.KeyMsg); ok && keyMsg.Type == tea.KeyEsc && m.picker.IsSelecting() {
			m.state = historyStateBrowse
			m.table.Focus()
			return m, nil
		}

		var cmd tea.Cmd
		m.picker, cmd = m.picker.Update(msg)
		return m, cmd
	}

	if keyMsg, ok := msg.(tea.KeyMsg); ok {
		switch keyMsg.String() {
		case "esc":
			if m.details != nil {
				m.details = nil
				return m, nil
			}
			return m, Back
		case "r":
			m.loading = true
			return m, m.loadHistoryCmd()
		case "s":
			m.statusIdx = (m.statusIdx + 1) % len(historyStatuses)
			m.refreshTable()
			return m, nil
		case "d":
			m.state = historyStateTimeframe
			m.picker.Reset()
			m.table.Blur()
			return m, nil
		case "enter":
			idx := m.table.Cursor()
			if idx < 0 || idx >= len(m.shown) {
				return m, nil
			}
			return m, m.detailsCmd(m.shown[idx].ID)
		}
	}

	var cmd tea.Cmd
	m.table, cmd = m.table.Update(msg)
	return m, cmd
}

func (m *HistoryModel) refreshTable() {
	shown := invoice.FilterByDateRange(m.all, m.start, m.end)
	if status := historyStatuses[m.statusIdx]; status != "" {
		shown = invoice.FilterByStatus(shown, status)
	}

	m.shown = shown
	m.details = nil

	rows := make([]table.Row, 0, len(shown))
	for _, inv := range shown {
		rows = append(rows, table.Row{
			inv.Code,
			inv.AccountCode,
			FormatDateTime(inv.CreatedAt),
			FormatDateTime(inv.ReadyBy),
			string(inv.Status),
			fmt.Sprint(inv.TotalCost),
			fmt.Sprint(inv.BalanceBefore),
			fmt.Sprint(inv.BalanceAfter),
		})
	}
	m.table.SetRows(rows)
	m.table.GotoTop()
}

func (m HistoryModel) View() string {
	if m.loading {
		return lipgloss.NewStyle().Padding(2).Render("Loading history...")
	}

	if m.err != nil {
		return lipgloss.NewStyle().Padding(2).Render(errorStyle.Render(fmt.Sprintf("Error: %v", m.err)) + "\n\n(r to retry, Esc to back)")
	}

	if m.state == historyStateTimeframe {
		return lipgloss.NewStyle().Padding(2).Render(m.picker.View())
	}

	statusLabel := "All"
	if status := historyStatuses[m.statusIdx]; status != "" {
		statusLabel = string(status)
	}

	dateLabel := "All Time"
	if m.start != nil && m.end != nil {
		dateLabel = fmt.Sprintf("%s to %s", FormatDate(*m.start), FormatDate(*m.end))
	}

	header := fmt.Sprintf(
		"Filter: [s] Status: %s | [d] Date: %s | %d of %d invoices",
		activeStyle(statusLabel),
		activeStyle(dateLabel),
		len(m.shown),
		len(m.all),
	)

	tableView := lipgloss.NewStyle().
		BorderStyle(lipgloss.NormalBorder()).
		BorderForeground(lipgloss.Color("240")).
		Render(m.table.View())

	content := lipgloss.JoinVertical(lipgloss.Left,
		lipgloss.NewStyle().PaddingBottom(1).Render(header),
		tableView,
	)

	if m.details != nil {
		content = lipgloss.JoinHorizontal(lipgloss.Top, content, panelStyle.Render(Receipt(m.details, m.items)))
	}

	return lipgloss.NewStyle().Padding(1).Render(content + "\n" + faintStyle.Render(m.ShortHelp()))
}

// Messages

type loadHistoryMsg struct {
	invoices []*invoice.Invoice
	items    []*catalog.Item
	err      error
}

func (m HistoryModel) loadHistoryCmd() tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := DbCtx()
		defer cancel()

		invs, err := m.invoiceService.ListAll(ctx)
		if err != nil {
			return loadHistoryMsg{err: err}
		}

		items, err := m.catalogService.List(ctx)
		return loadHistoryMsg{invoices: invs, items: items, err: err}
	}
}

type detailsMsg struct {
	inv *invoice.Invoice
	err error
}

func (m HistoryModel) detailsCmd(id int64) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := DbCtx()
		defer cancel()

		inv, err := m.invoiceService.Details(ctx, id)
		return detailsMsg{inv: inv, err: err}
	}
}
