package view

import (
	"errors"
	"fmt"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/lipgloss"

	"github.com/laundrydesk/laundrydesk/internal/invoice"
)

type returnState int

const (
	returnStateLoading returnState = iota
	returnStateSelect
	returnStateSaving
	returnStateDone
)

const (
	returnInvoicesKey = "invoices"
	returnConfirmKey  = "confirm"
)

type ReturnModel struct {
	CommonModel
	invoiceService *invoice.Service

	state   returnState
	ongoing []*invoice.Invoice
	form    *huh.Form

	returned int
	err      error
}

func NewReturnModel(invoiceSvc *invoice.Service) ReturnModel {
	return ReturnModel{invoiceService: invoiceSvc}
}

func (m ReturnModel) Title() string { return "Return" }
func (m ReturnModel) ShortHelp() string {
	if m.state == returnStateDone {
		return "Enter: return more | Esc: back"
	}
	return "Space: toggle | Enter: next | Esc: back"
}

func (m ReturnModel) Init() tea.Cmd {
	return m.loadOngoingCmd()
}

func (m ReturnModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case loadOngoingMsg:
		if msg.err != nil {
			m.state = returnStateDone
			m.err = msg.err
			return m, nil
		}

		m.ongoing = msg.invoices
		if len(m.ongoing) == 0 {
			m.state = returnStateDone
			return m, nil
		}

		return m.newForm()

	case returnDoneMsg:
		m.state = returnStateDone
		m.returned = msg.returned
		m.err = msg.err
		return m, nil

	case tea.KeyMsg:
		if msg.Type == tea.KeyEsc {
			return m, Back
		}

		if msg.Type == tea.KeyEnter && m.state == returnStateDone {
			m.state = returnStateLoading
			m.err = nil
			m.returned = 0
			return m, m.loadOngoingCmd()
		}
	}

	if m.state != returnStateSelect {
		return m, nil
	}

	form, cmd := m.form.Update(msg)
	if f, ok := form.(*huh.Form); ok {
		m.form = f
	}

	if m.form.State != huh.StateCompleted {
		return m, cmd
	}

	ids, _ := m.form.Get(returnInvoicesKey).([]int64)
	if !m.form.GetBool(returnConfirmKey) || len(ids) == 0 {
		m.state = returnStateDone
		return m, nil
	}

	m.state = returnStateSaving
	return m, m.markReturnedCmd(ids)
}

func (m ReturnModel) newForm() (tea.Model, tea.Cmd) {
	options := make([]huh.Option[int64], 0, len(m.ongoing))
	for _, inv := range m.ongoing {
		label := fmt.Sprintf("%s  %-10s  ready %s  %s",
			inv.Code, inv.AccountCode, FormatDateTime(inv.ReadyBy), FormatCredits(inv.TotalCost))
		options = append(options, huh.NewOption(label, inv.ID))
	}

	m.form = huh.NewForm(
		huh.NewGroup(
			huh.NewMultiSelect[int64]().
				Key(returnInvoicesKey).
				Title("Ongoing invoices handed back to the customer").
				Options(options...).
				Height(min(len(options)+2, 15)).
				Validate(func(ids []int64) error {
					if len(ids) == 0 {
						return fmt.Errorf("select at least one invoice")
					}
					return nil
				}),
		),
		huh.NewGroup(
			huh.NewConfirm().
				Key(returnConfirmKey).
				Title("Mark the selected invoices as returned?").
				Affirmative("Yes").
				Negative("No"),
		),
	).WithWidth(80).WithShowHelp(false)

	m.state = returnStateSelect

	return m, m.form.Init()
}

func (m ReturnModel) View() string {
	var body string

	switch m.state {
	case returnStateLoading:
		body = "Loading ongoing invoices..."
	case returnStateSaving:
		body = "Marking invoices as returned..."
	case returnStateSelect:
		body = "Return Invoices\n\n" + m.form.View()
	case returnStateDone:
		body = m.doneView()
	}

	return lipgloss.NewStyle().Padding(1).Render(body + "\n\n" + faintStyle.Render(m.ShortHelp()))
}

func (m ReturnModel) doneView() string {
	var rerr *invoice.ReturnError

	switch {
	case errors.As(m.err, &rerr):
		return errorStyle.Render(fmt.Sprintf(
			"Stopped at invoice #%d after %d returned: %v\nOpen History to see which invoices changed.",
			rerr.InvoiceID, rerr.Returned, rerr.Err))
	case m.err != nil:
		return errorStyle.Render(fmt.Sprintf("Error: %v", m.err))
	case m.returned > 0:
		return okStyle.Render(fmt.Sprintf("%d invoice(s) marked as returned.", m.returned))
	case len(m.ongoing) == 0:
		return "No ongoing invoices."
	}

	return "Nothing returned."
}

// Messages

type loadOngoingMsg struct {
	invoices []*invoice.Invoice
	err      error
}

func (m ReturnModel) loadOngoingCmd() tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := DbCtx()
		defer cancel()

		invs, err := m.invoiceService.List(ctx, invoice.ListFilter{Status: new(invoice.StatusOngoing)})
		return loadOngoingMsg{invoices: invs, err: err}
	}
}

type returnDoneMsg struct {
	returned int
	err      error
}

func (m ReturnModel) markReturnedCmd(ids []int64) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := DbCtx()
		defer cancel()

		n, err := m.invoiceService.MarkReturned(ctx, ids)
		return returnDoneMsg{returned: n, err: err}
	}
}
