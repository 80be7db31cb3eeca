package view

import (
	"errors"
	"fmt"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/laundrydesk/laundrydesk/internal/account"
)

type BalanceModel struct {
	CommonModel
	accountService *account.Service

	codeInput textinput.Model
	account   *account.Account
	loading   bool
	err       error
}

func NewBalanceModel(accountSvc *account.Service) BalanceModel {
	ti := textinput.New()
	ti.Placeholder = "scan or type the card code"
	ti.Width = 40
	ti.Prompt = "Account: "
	ti.Focus()

	return BalanceModel{
		accountService: accountSvc,
		codeInput:      ti,
	}
}

func (m BalanceModel) Title() string     { return "Check Balance" }
func (m BalanceModel) ShortHelp() string { return "Enter: look up | Esc: back" }

func (m BalanceModel) Init() tea.Cmd {
	return textinput.Blink
}

func (m BalanceModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.Type {
		case tea.KeyEsc:
			return m, Back
		case tea.KeyEnter:
			m.loading = true
			m.err = nil
			m.account = nil
			return m, m.lookupCmd(m.codeInput.Value())
		}

	case lookupMsg:
		m.loading = false
		m.account = msg.account
		m.err = msg.err
		m.codeInput.SetValue("")
		return m, nil
	}

	var cmd tea.Cmd
	m.codeInput, cmd = m.codeInput.Update(msg)

	return m, cmd
}

func (m BalanceModel) View() string {
	result := ""

	switch {
	case m.loading:
		result = "Looking up..."
	case errors.Is(m.err, account.ErrNotFound):
		result = errorStyle.Render("No account with that code.")
	case m.err != nil:
		result = errorStyle.Render(fmt.Sprintf("Error: %v", m.err))
	case m.account != nil:
		result = panelStyle.Render(fmt.Sprintf("Account %s\n\nBalance: %s",
			m.account.Code, okStyle.Render(FormatCredits(m.account.Balance))))
	}

	return lipgloss.NewStyle().Padding(2).Render(
		fmt.Sprintf("Check Balance\n\n%s\n\n%s\n\n%s", m.codeInput.View(), result, faintStyle.Render(m.ShortHelp())),
	)
}

type lookupMsg struct {
	account *account.Account
	err     error
}

func (m BalanceModel) lookupCmd(code string) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := DbCtx()
		defer cancel()

		acc, err := m.accountService.Lookup(ctx, code)
		return lookupMsg{account: acc, err: err}
	}
}
