package view

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/lipgloss"

	"github.com/laundrydesk/laundrydesk/internal/catalog"
	"github.com/laundrydesk/laundrydesk/internal/invoice"
	"github.com/laundrydesk/laundrydesk/internal/ledger"
)

type dropOffState int

const (
	dropOffStateLoading dropOffState = iota
	dropOffStateForm
	dropOffStateSaving
	dropOffStateReceipt
	dropOffStateFailed
)

const accountKey = "account"

type DropOffModel struct {
	CommonModel
	catalogService *catalog.Service
	engine         *ledger.Engine

	state   dropOffState
	items   []*catalog.Item
	form    *huh.Form
	receipt *invoice.Invoice
	err     error
}

func NewDropOffModel(catalogSvc *catalog.Service, engine *ledger.Engine) DropOffModel {
	return DropOffModel{
		catalogService: catalogSvc,
		engine:         engine,
	}
}

func (m DropOffModel) Title() string { return "Drop-off" }
func (m DropOffModel) ShortHelp() string {
	switch m.state {
	case dropOffStateReceipt, dropOffStateFailed:
		return "Enter: new drop-off | Esc: back"
	}

	return "Tab: next field | Esc: back"
}

func (m DropOffModel) Init() tea.Cmd {
	return m.loadCatalogCmd()
}

func (m DropOffModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case loadCatalogMsg:
		if msg.err != nil {
			m.state = dropOffStateFailed
			m.err = msg.err
			return m, nil
		}

		m.items = msg.items
		return m.newForm()

	case dropOffDoneMsg:
		if msg.err != nil {
			m.state = dropOffStateFailed
			m.err = msg.err
			return m, nil
		}

		m.state = dropOffStateReceipt
		m.receipt = msg.inv
		return m, nil

	case tea.KeyMsg:
		if msg.Type == tea.KeyEsc {
			return m, Back
		}

		if msg.Type == tea.KeyEnter && (m.state == dropOffStateReceipt || m.state == dropOffStateFailed) {
			if m.items == nil {
				m.state = dropOffStateLoading
				return m, m.loadCatalogCmd()
			}

			return m.newForm()
		}
	}

	if m.state != dropOffStateForm {
		return m, nil
	}

	form, cmd := m.form.Update(msg)
	if f, ok := form.(*huh.Form); ok {
		m.form = f
	}

	if m.form.State != huh.StateCompleted {
		return m, cmd
	}

	m.state = dropOffStateSaving
	return m, m.dropOffCmd()
}

func (m DropOffModel) newForm() (tea.Model, tea.Cmd) {
	account := huh.NewInput().
		Key(accountKey).
		Title("Account code").
		Placeholder("scan or type the card code").
		Validate(func(s string) error {
			if strings.TrimSpace(s) == "" {
				return fmt.Errorf("account code cannot be empty")
			}
			return nil
		})

	fields := make([]huh.Field, 0, len(m.items))
	for _, it := range m.items {
		fields = append(fields, huh.NewInput().
			Key(itemKey(it.ID)).
			Title(fmt.Sprintf("%s (%s each)", it.Name, FormatCredits(it.UnitCost))).
			Placeholder("0").
			CharLimit(3).
			Validate(validateCount))
	}

	groups := []*huh.Group{huh.NewGroup(account)}
	if len(fields) > 0 {
		groups = append(groups, huh.NewGroup(fields...))
	}

	m.form = huh.NewForm(groups...).WithWidth(50).WithShowHelp(false)
	m.state = dropOffStateForm
	m.receipt = nil
	m.err = nil

	return m, m.form.Init()
}

func itemKey(id int64) string {
	return "item-" + strconv.FormatInt(id, 10)
}

func validateCount(s string) error {
	_, err := parseCount(s)
	return err
}

func parseCount(s string) (int, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, nil
	}

	n, err := strconv.Atoi(s)
	if err != nil || n < 0 {
		return 0, fmt.Errorf("enter a whole number of pieces")
	}

	return n, nil
}

func (m DropOffModel) request() ledger.DropOffRequest {
	req := ledger.DropOffRequest{
		AccountCode: m.form.GetString(accountKey),
		Counts:      make(map[int64]int),
	}

	for _, it := range m.items {
		if n, _ := parseCount(m.form.GetString(itemKey(it.ID))); n > 0 {
			req.Counts[it.ID] = n
		}
	}

	return req
}

func (m DropOffModel) View() string {
	switch m.state {
	case dropOffStateLoading:
		return lipgloss.NewStyle().Padding(2).Render("Loading catalog...")
	case dropOffStateSaving:
		return lipgloss.NewStyle().Padding(2).Render("Recording drop-off...")
	case dropOffStateFailed:
		return lipgloss.NewStyle().Padding(2).Render(
			errorStyle.Render(describeDropOffError(m.err)) + "\n\n" + faintStyle.Render(m.ShortHelp()),
		)
	case dropOffStateReceipt:
		return lipgloss.NewStyle().Padding(1).Render(
			panelStyle.Render(Receipt(m.receipt, m.items)) + "\n\n" + faintStyle.Render(m.ShortHelp()),
		)
	}

	return lipgloss.NewStyle().Padding(1).Render(
		"New Drop-off\n\n" + m.form.View() + "\n\n" + faintStyle.Render(m.ShortHelp()),
	)
}

// Receipt renders an invoice with its lines. Item names come from items when
// the id is still in the catalog.
func Receipt(inv *invoice.Invoice, items []*catalog.Item) string {
	names := make(map[int64]string, len(items))
	for _, it := range items {
		names[it.ID] = it.Name
	}

	var b strings.Builder

	fmt.Fprintf(&b, "Invoice %s\n", inv.Code)
	fmt.Fprintf(&b, "Account: %s\n", inv.AccountCode)
	fmt.Fprintf(&b, "Dropped off: %s\n", FormatDateTime(inv.CreatedAt))
	fmt.Fprintf(&b, "Ready by:    %s\n", FormatDateTime(inv.ReadyBy))
	fmt.Fprintf(&b, "Status: %s\n\n", inv.Status)

	for _, l := range inv.Lines {
		name, ok := names[l.ItemID]
		if !ok {
			name = fmt.Sprintf("item #%d", l.ItemID)
		}

		fmt.Fprintf(&b, "  %3d  tag %-4d %s\n", l.SerialNo, l.TagNo, name)
	}

	fmt.Fprintf(&b, "\nBalance before: %s\n", FormatCredits(inv.BalanceBefore))
	fmt.Fprintf(&b, "Total:          %s\n", FormatCredits(inv.TotalCost))
	fmt.Fprintf(&b, "Balance after:  %s", FormatCredits(inv.BalanceAfter))

	return b.String()
}

func describeDropOffError(err error) string {
	var insufficient *ledger.InsufficientCreditsError

	switch {
	case errors.As(err, &insufficient):
		return fmt.Sprintf("Not enough credits: balance %s, drop-off costs %s.",
			FormatCredits(insufficient.Balance), FormatCredits(insufficient.Total))
	case errors.Is(err, ledger.ErrAccountNotFound):
		return "No account with that code."
	case errors.Is(err, ledger.ErrEmptySelection):
		return "Nothing selected. Enter at least one piece."
	case errors.Is(err, ledger.ErrPartialCommit):
		return fmt.Sprintf("The drop-off may or may not have been saved. Check History before trying again.\n\n%v", err)
	case errors.Is(err, ledger.ErrCommitAborted):
		return fmt.Sprintf("The drop-off was not saved. It is safe to try again.\n\n%v", err)
	case errors.Is(err, ledger.ErrStoreUnavailable):
		return fmt.Sprintf("The store is unavailable. Try again shortly.\n\n%v", err)
	}

	return fmt.Sprintf("Error: %v", err)
}

// Messages

type loadCatalogMsg struct {
	items []*catalog.Item
	err   error
}

func (m DropOffModel) loadCatalogCmd() tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := DbCtx()
		defer cancel()

		items, err := m.catalogService.List(ctx)
		return loadCatalogMsg{items: items, err: err}
	}
}

type dropOffDoneMsg struct {
	inv *invoice.Invoice
	err error
}

func (m DropOffModel) dropOffCmd() tea.Cmd {
	req := m.request()

	return func() tea.Msg {
		ctx, cancel := DbCtx()
		defer cancel()

		inv, err := m.engine.DropOff(ctx, req)
		return dropOffDoneMsg{inv: inv, err: err}
	}
}
