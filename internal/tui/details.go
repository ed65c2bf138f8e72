package tui

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/table"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/verte-zerg/ledgeradmin/internal/dashboard"
	"github.com/verte-zerg/ledgeradmin/internal/gateway"
	"github.com/verte-zerg/ledgeradmin/internal/guard"
	"github.com/verte-zerg/ledgeradmin/internal/model"
	"github.com/verte-zerg/ledgeradmin/internal/view"
)

type userLoadedMsg struct {
	user model.User
	err  error
}

func (m userLoadedMsg) failed() error { return m.err }

type transactionsLoadedMsg struct {
	txs []model.Transaction
	err error
}

func (m transactionsLoadedMsg) failed() error { return m.err }

type userDetailsScreen struct {
	deps *deps
	ctx  context.Context
	id   string

	user     *model.User
	txs      []model.Transaction
	loading  int
	errMsg   string
	notFound bool

	list listControls
}

func newUserDetailsScreen(ctx context.Context, d *deps, id string) *userDetailsScreen {
	s := &userDetailsScreen{deps: d, ctx: ctx, id: id, loading: 2, list: newListControls(d.pageSize)}
	s.list.params.SetSort(model.SortNewest)
	return s
}

func (s *userDetailsScreen) Init() tea.Cmd {
	api, ctx, id := s.deps.api, s.ctx, s.id
	return tea.Batch(
		func() tea.Msg {
			u, err := api.User(ctx, id)
			return userLoadedMsg{user: u, err: err}
		},
		func() tea.Msg {
			txs, err := api.UserTransactions(ctx, id)
			return transactionsLoadedMsg{txs: txs, err: err}
		},
	)
}

func (s *userDetailsScreen) Capturing() bool { return s.list.capturing() }

func (s *userDetailsScreen) Help() string {
	if s.list.capturing() {
		return "enter: apply  esc: cancel"
	}
	return listHelp + "  o: sort  esc: back"
}

func (s *userDetailsScreen) Update(msg tea.Msg) (screen, tea.Cmd) {
	switch msg := msg.(type) {
	case userLoadedMsg:
		s.loading--
		if msg.err != nil {
			s.notFound = gateway.IsNotFound(msg.err)
			s.errMsg = gateway.UserMessage(msg.err)
			return s, nil
		}
		s.user = &msg.user
		return s, nil
	case transactionsLoadedMsg:
		s.loading--
		if msg.err != nil {
			if s.errMsg == "" {
				s.errMsg = gateway.UserMessage(msg.err)
			}
			return s, nil
		}
		s.txs = msg.txs
		return s, nil
	case tea.KeyMsg:
		p := view.Apply(s.txs, s.list.params)
		if handled, cmd := s.list.handleKey(msg, p.TotalPages, len(p.Items)); handled {
			return s, cmd
		}
		switch msg.String() {
		case "o":
			s.list.params.SetSort(toggleAge(s.list.params.Sort))
		case "esc", "backspace":
			return s, navigateTo(guard.PathUsers)
		}
		return s, nil
	}
	if s.list.capturing() {
		var cmd tea.Cmd
		s.list.input, cmd = s.list.input.Update(msg)
		return s, cmd
	}
	return s, nil
}

func (s *userDetailsScreen) View(width, height int) string {
	if s.notFound {
		return errorStyle.Render("User not found.") + "\n" + headerStyle.Render("esc: back to users")
	}
	var top []string
	if s.user != nil {
		u := s.user
		top = append(top,
			titleStyle.Render(model.DisplayName(u.Name))+headerStyle.Render("  joined "+model.DisplayDate(u.CreatedAt)),
			cardTitleStyle.Render(model.DisplayEmail(u.Email)+"  "+model.DisplayPhone(u.Phone)),
		)
	} else {
		top = append(top, titleStyle.Render("User"))
	}
	p := view.Apply(s.txs, s.list.params)
	in, out := transactionTotals(s.txs)
	top = append(top, headerStyle.Render(s.list.status(p.Total, p.TotalPages))+"  "+
		positiveText.Render("you will get "+dashboard.FormatCurrency(in))+"  "+
		negativeText.Render("you will give "+dashboard.FormatCurrency(out)))
	if v := s.list.inputView(); v != "" {
		top = append(top, v)
	}
	if s.errMsg != "" {
		top = append(top, errorStyle.Render(wrapText(s.errMsg, width)))
	}
	header := strings.Join(top, "\n")
	bodyHeight := maxInt(1, height-lipgloss.Height(header)-1)

	var body string
	switch {
	case s.loading > 0:
		body = "Loading user..."
	case p.Total == 0:
		body = "No transactions found."
	default:
		body = tableMutedStyle.Render(renderTransactions(p, s.list.cursor, width, bodyHeight))
	}
	return header + "\n\n" + fitLines(body, width, bodyHeight)
}

func transactionTotals(txs []model.Transaction) (in, out float64) {
	for _, t := range txs {
		if t.Type.Incoming() {
			in += t.Amount
		} else {
			out += t.Amount
		}
	}
	return in, out
}

func renderTransactions(p view.Page[model.Transaction], cursor, width, height int) string {
	columns := []table.Column{
		{Title: "Date", Width: 12},
		{Title: "Book", Width: 20},
		{Title: "Type", Width: 14},
		{Title: "Amount", Width: 14},
		{Title: "Status", Width: 10},
		{Title: "Notes", Width: 30},
	}
	rows := make([]table.Row, 0, len(p.Items))
	for _, t := range p.Items {
		book := model.UnknownName
		if t.Book != nil {
			book = model.DisplayName(t.Book.BookName)
		}
		sign := "-"
		if t.Type.Incoming() {
			sign = "+"
		}
		rows = append(rows, table.Row{
			model.DisplayDate(t.CreatedAt),
			book,
			string(t.Type),
			sign + dashboard.FormatCurrency(t.Amount),
			t.Status,
			model.DisplayNotes(t.Notes),
		})
	}
	return newTable(columns, rows, cursor, width, height).View()
}

type bookDetailsLoadedMsg struct {
	details model.BookDetails
	err     error
}

func (m bookDetailsLoadedMsg) failed() error { return m.err }

type bookDetailsScreen struct {
	deps *deps
	ctx  context.Context
	id   string

	details  *model.BookDetails
	loading  bool
	errMsg   string
	notFound bool

	list listControls
}

func newBookDetailsScreen(ctx context.Context, d *deps, id string) *bookDetailsScreen {
	s := &bookDetailsScreen{deps: d, ctx: ctx, id: id, loading: true, list: newListControls(d.pageSize)}
	s.list.params.SetSort(model.SortNewest)
	return s
}

func (s *bookDetailsScreen) Init() tea.Cmd {
	api, ctx, id := s.deps.api, s.ctx, s.id
	return func() tea.Msg {
		d, err := api.BookDetails(ctx, id)
		return bookDetailsLoadedMsg{details: d, err: err}
	}
}

func (s *bookDetailsScreen) Capturing() bool { return s.list.capturing() }

func (s *bookDetailsScreen) Help() string {
	if s.list.capturing() {
		return "enter: apply  esc: cancel"
	}
	return listHelp + "  o: newest/oldest  esc: back"
}

func (s *bookDetailsScreen) members() []model.Member {
	if s.details == nil {
		return nil
	}
	return s.details.Members
}

func (s *bookDetailsScreen) Update(msg tea.Msg) (screen, tea.Cmd) {
	switch msg := msg.(type) {
	case bookDetailsLoadedMsg:
		s.loading = false
		if msg.err != nil {
			s.notFound = gateway.IsNotFound(msg.err)
			s.errMsg = gateway.UserMessage(msg.err)
			return s, nil
		}
		s.details = &msg.details
		return s, nil
	case tea.KeyMsg:
		p := view.Apply(s.members(), s.list.params)
		if handled, cmd := s.list.handleKey(msg, p.TotalPages, len(p.Items)); handled {
			return s, cmd
		}
		switch msg.String() {
		case "o":
			s.list.params.SetSort(toggleAge(s.list.params.Sort))
		case "esc", "backspace":
			return s, navigateTo(guard.PathBooks)
		}
		return s, nil
	}
	if s.list.capturing() {
		var cmd tea.Cmd
		s.list.input, cmd = s.list.input.Update(msg)
		return s, cmd
	}
	return s, nil
}

func (s *bookDetailsScreen) View(width, height int) string {
	if s.notFound {
		return errorStyle.Render("Book not found.") + "\n" + headerStyle.Render("esc: back to books")
	}
	title := "Book"
	var count int
	if s.details != nil {
		title = model.DisplayName(&s.details.BookName)
		count = s.details.MembersCount
		if count == 0 {
			count = len(s.details.Members)
		}
	}
	p := view.Apply(s.members(), s.list.params)
	top := []string{
		titleStyle.Render(title) + headerStyle.Render(fmt.Sprintf("  %d members", count)),
		headerStyle.Render(s.list.status(p.Total, p.TotalPages)),
	}
	if v := s.list.inputView(); v != "" {
		top = append(top, v)
	}
	if s.errMsg != "" {
		top = append(top, errorStyle.Render(wrapText(s.errMsg, width)))
	}
	header := strings.Join(top, "\n")
	bodyHeight := maxInt(1, height-lipgloss.Height(header)-1)

	var body string
	switch {
	case s.loading:
		body = "Loading book..."
	case p.Total == 0:
		body = "No members found."
	default:
		body = tableMutedStyle.Render(renderMembers(p, s.list.cursor, width, bodyHeight))
	}
	return header + "\n\n" + fitLines(body, width, bodyHeight)
}

func renderMembers(p view.Page[model.Member], cursor, width, height int) string {
	columns := []table.Column{
		{Title: "Name", Width: 22},
		{Title: "Email", Width: 28},
		{Title: "Mobile", Width: 16},
		{Title: "Balance", Width: 14},
		{Title: "Joined", Width: 12},
	}
	rows := make([]table.Row, 0, len(p.Items))
	for _, m := range p.Items {
		rows = append(rows, table.Row{
			model.DisplayName(m.Name),
			model.DisplayEmail(m.Email),
			model.DisplayPhone(m.Mobile),
			dashboard.FormatCurrency(float64(model.DisplayBalance(m.Balance))),
			model.DisplayDate(m.CreatedAt),
		})
	}
	return newTable(columns, rows, cursor, width, height).View()
}

// toggleAge flips between newest and oldest first.
func toggleAge(k model.SortKey) model.SortKey {
	if k == model.SortNewest {
		return model.SortOldest
	}
	return model.SortNewest
}
