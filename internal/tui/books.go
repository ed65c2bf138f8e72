package tui

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/charmbracelet/bubbles/table"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/verte-zerg/ledgeradmin/internal/audit"
	"github.com/verte-zerg/ledgeradmin/internal/gateway"
	"github.com/verte-zerg/ledgeradmin/internal/guard"
	"github.com/verte-zerg/ledgeradmin/internal/log"
	"github.com/verte-zerg/ledgeradmin/internal/model"
	"github.com/verte-zerg/ledgeradmin/internal/view"
)

type booksLoadedMsg struct {
	books []model.Book
	err   error
}

func (m booksLoadedMsg) failed() error { return m.err }

type memberCountsMsg struct {
	counts map[string]int
	err    error
}

func (m memberCountsMsg) failed() error { return m.err }

type bookDeletedMsg struct {
	id  string
	err error
}

func (m bookDeletedMsg) failed() error { return m.err }

type booksScreen struct {
	deps *deps
	ctx  context.Context

	all      []model.Book
	loading  bool
	counting bool
	errMsg   string
	notice   string

	list    listControls
	pending *model.Book
}

func newBooksScreen(ctx context.Context, d *deps) *booksScreen {
	s := &booksScreen{
		deps:    d,
		ctx:     ctx,
		loading: true,
		list:    newListControls(d.pageSize),
	}
	s.list.params.SetSort(model.SortNewest)
	return s
}

func (s *booksScreen) Init() tea.Cmd {
	return s.load()
}

func (s *booksScreen) load() tea.Cmd {
	api, ctx := s.deps.api, s.ctx
	return func() tea.Msg {
		books, err := api.Books(ctx)
		return booksLoadedMsg{books: books, err: err}
	}
}

func (s *booksScreen) loadCounts() tea.Cmd {
	ids := make([]string, len(s.all))
	for i, b := range s.all {
		ids[i] = b.ID
	}
	api, ctx := s.deps.api, s.ctx
	return func() tea.Msg {
		counts, err := api.MemberCounts(ctx, ids)
		return memberCountsMsg{counts: counts, err: err}
	}
}

func (s *booksScreen) page() view.Page[model.Book] {
	return view.Apply(s.all, s.list.params)
}

func (s *booksScreen) Capturing() bool {
	return s.list.capturing() || s.pending != nil
}

func (s *booksScreen) Help() string {
	switch {
	case s.pending != nil:
		return "y: confirm delete  n/esc: cancel"
	case s.list.capturing():
		return "enter: apply  esc: cancel"
	}
	return listHelp + "  o: sort  enter: open  d: delete  r: refresh"
}

func (s *booksScreen) Update(msg tea.Msg) (screen, tea.Cmd) {
	switch msg := msg.(type) {
	case booksLoadedMsg:
		s.loading = false
		if msg.err != nil {
			s.errMsg = gateway.UserMessage(msg.err)
			return s, nil
		}
		s.errMsg = ""
		s.all = msg.books
		s.clamp()
		if len(s.all) == 0 {
			return s, nil
		}
		s.counting = true
		return s, s.loadCounts()
	case memberCountsMsg:
		s.counting = false
		for i := range s.all {
			s.all[i].MemberCount = msg.counts[s.all[i].ID]
		}
		if msg.err != nil {
			s.errMsg = gateway.UserMessage(msg.err)
		}
		return s, nil
	case bookDeletedMsg:
		if msg.err != nil {
			s.errMsg = gateway.UserMessage(msg.err)
			return s, nil
		}
		kept := make([]model.Book, 0, len(s.all))
		for _, b := range s.all {
			if b.ID != msg.id {
				kept = append(kept, b)
			}
		}
		s.all = kept
		s.clamp()
		s.notice = "Book deleted."
		s.deps.log.Info("book deleted", log.FieldBookID, msg.id)
		rec := s.deps.audit
		return s, func() tea.Msg {
			rec.Record(context.Background(), audit.EventBookDeleted, msg.id)
			return nil
		}
	case tea.KeyMsg:
		return s, s.handleKey(msg)
	}
	if s.list.capturing() {
		var cmd tea.Cmd
		s.list.input, cmd = s.list.input.Update(msg)
		return s, cmd
	}
	return s, nil
}

func (s *booksScreen) clamp() {
	p := s.page()
	s.list.clamp(p.TotalPages, len(p.Items))
}

func (s *booksScreen) handleKey(msg tea.KeyMsg) tea.Cmd {
	if s.pending != nil {
		switch msg.String() {
		case "y", "Y":
			b := *s.pending
			s.pending = nil
			s.notice = ""
			api, ctx := s.deps.api, s.ctx
			return func() tea.Msg {
				return bookDeletedMsg{id: b.ID, err: api.DeleteBook(ctx, b.ID)}
			}
		case "n", "N", "esc":
			s.pending = nil
		}
		return nil
	}
	p := s.page()
	if handled, cmd := s.list.handleKey(msg, p.TotalPages, len(p.Items)); handled {
		return cmd
	}
	switch msg.String() {
	case "o":
		s.list.params.SetSort(view.NextSort(s.list.params.Sort))
		s.list.cursor = 0
	case "r":
		s.loading = true
		s.notice = ""
		return s.load()
	case "d":
		if b, ok := s.selected(p); ok {
			s.pending = &b
		}
	case "enter":
		if b, ok := s.selected(p); ok {
			return navigateTo(guard.BookPath(b.ID))
		}
	}
	return nil
}

func (s *booksScreen) selected(p view.Page[model.Book]) (model.Book, bool) {
	if s.list.cursor < 0 || s.list.cursor >= len(p.Items) {
		return model.Book{}, false
	}
	return p.Items[s.list.cursor], true
}

func (s *booksScreen) View(width, height int) string {
	p := s.page()
	status := s.list.status(p.Total, p.TotalPages)
	if s.counting {
		status += "  counting members..."
	}
	top := []string{titleStyle.Render("Books") + headerStyle.Render("  "+status)}
	if in := s.list.inputView(); in != "" {
		top = append(top, in)
	}
	if s.pending != nil {
		top = append(top, errorStyle.Render(wrapText(fmt.Sprintf("Delete book %s? (y/n)", s.pending.Title()), width)))
	}
	if s.errMsg != "" {
		top = append(top, errorStyle.Render(wrapText(s.errMsg, width)))
	} else if s.notice != "" {
		top = append(top, noticeStyle.Render(wrapText(s.notice, width)))
	}
	header := strings.Join(top, "\n")
	bodyHeight := maxInt(1, height-lipgloss.Height(header)-1)

	var body string
	switch {
	case s.loading:
		body = "Loading books..."
	case p.Total == 0:
		body = "No books found."
	default:
		body = tableMutedStyle.Render(s.renderTable(p, width, bodyHeight))
	}
	return header + "\n\n" + fitLines(body, width, bodyHeight)
}

func (s *booksScreen) renderTable(p view.Page[model.Book], width, height int) string {
	columns := []table.Column{
		{Title: "Book", Width: 28},
		{Title: "Creator", Width: 22},
		{Title: "Email", Width: 26},
		{Title: "Members", Width: 8},
		{Title: "Created", Width: 12},
	}
	rows := make([]table.Row, 0, len(p.Items))
	for _, b := range p.Items {
		var name, email *string
		if b.Creator != nil {
			name, email = b.Creator.Name, b.Creator.Email
		}
		members := strconv.Itoa(b.MemberCount)
		if s.counting {
			members = "..."
		}
		rows = append(rows, table.Row{
			b.Title(),
			model.DisplayName(name),
			model.DisplayEmail(email),
			members,
			model.DisplayDate(b.CreatedAt),
		})
	}
	t := newTable(columns, rows, s.list.cursor, width, height)
	return t.View()
}
