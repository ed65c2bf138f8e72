package tui

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/table"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/verte-zerg/ledgeradmin/internal/audit"
	"github.com/verte-zerg/ledgeradmin/internal/gateway"
	"github.com/verte-zerg/ledgeradmin/internal/guard"
	"github.com/verte-zerg/ledgeradmin/internal/listcache"
	"github.com/verte-zerg/ledgeradmin/internal/log"
	"github.com/verte-zerg/ledgeradmin/internal/model"
	"github.com/verte-zerg/ledgeradmin/internal/store"
	"github.com/verte-zerg/ledgeradmin/internal/view"
)

const gridCardWidth = 34

type usersLoadedMsg struct {
	users  []model.User
	cached bool
	err    error
}

func (m usersLoadedMsg) failed() error { return m.err }

type userDeletedMsg struct {
	id  string
	err error
}

func (m userDeletedMsg) failed() error { return m.err }

type usersScreen struct {
	deps *deps
	ctx  context.Context

	all     []model.User
	loading bool
	cached  bool
	errMsg  string
	notice  string

	list    listControls
	mode    model.ViewMode
	pending *model.User
}

func newUsersScreen(ctx context.Context, d *deps) *usersScreen {
	s := &usersScreen{
		deps:    d,
		ctx:     ctx,
		loading: true,
		list:    newListControls(d.pageSize),
		mode:    model.ViewList,
	}
	if d.settings != nil {
		v, ok, err := d.settings.GetSetting(ctx, store.KeyViewMode)
		if err != nil {
			d.log.Warn("failed to load view mode", log.FieldKey, store.KeyViewMode, log.FieldError, err)
		} else if ok {
			s.mode = model.ParseViewMode(v)
		}
	}
	return s
}

func (s *usersScreen) Init() tea.Cmd {
	return s.load(false)
}

// load reads the user list from the cache, fetching it when absent.
// A forced load drops the cache first.
func (s *usersScreen) load(force bool) tea.Cmd {
	d, ctx := s.deps, s.ctx
	return func() tea.Msg {
		if d.users != nil {
			if force {
				if err := d.users.Invalidate(ctx, listcache.UsersKey); err != nil {
					d.log.Warn("cache invalidate failed", log.FieldError, err)
				}
			} else if items, ok, err := d.users.Get(ctx, listcache.UsersKey); err != nil {
				d.log.Warn("cache read failed", log.FieldError, err)
			} else if ok {
				return usersLoadedMsg{users: items, cached: true}
			}
		}
		users, err := d.api.Users(ctx)
		if err != nil {
			return usersLoadedMsg{err: err}
		}
		if d.users != nil {
			if err := d.users.Put(ctx, listcache.UsersKey, users); err != nil {
				d.log.Warn("cache write failed", log.FieldError, err)
			}
		}
		return usersLoadedMsg{users: users}
	}
}

func (s *usersScreen) page() view.Page[model.User] {
	return view.Apply(s.all, s.list.params)
}

func (s *usersScreen) Capturing() bool {
	return s.list.capturing() || s.pending != nil
}

func (s *usersScreen) Help() string {
	switch {
	case s.pending != nil:
		return "y: confirm delete  n/esc: cancel"
	case s.list.capturing():
		return "enter: apply  esc: cancel"
	}
	return listHelp + "  v: list/grid  enter: open  d: delete  r: refresh"
}

func (s *usersScreen) Update(msg tea.Msg) (screen, tea.Cmd) {
	switch msg := msg.(type) {
	case usersLoadedMsg:
		s.loading = false
		if msg.err != nil {
			s.errMsg = gateway.UserMessage(msg.err)
			return s, nil
		}
		s.errMsg = ""
		s.all = msg.users
		s.cached = msg.cached
		p := s.page()
		s.list.clamp(p.TotalPages, len(p.Items))
		return s, nil
	case userDeletedMsg:
		if msg.err != nil {
			s.errMsg = gateway.UserMessage(msg.err)
			return s, nil
		}
		s.removeLocal(msg.id)
		s.notice = "User deleted."
		s.deps.log.Info("user deleted", log.FieldUserID, msg.id)
		rec := s.deps.audit
		return s, func() tea.Msg {
			rec.Record(context.Background(), audit.EventUserDeleted, msg.id)
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

// removeLocal drops a deleted user from the in-memory list and the cache.
func (s *usersScreen) removeLocal(id string) {
	keep := func(u model.User) bool { return u.ID != id }
	if s.deps.users == nil {
		kept := make([]model.User, 0, len(s.all))
		for _, u := range s.all {
			if keep(u) {
				kept = append(kept, u)
			}
		}
		s.all = kept
	} else {
		kept, err := s.deps.users.Patch(s.ctx, listcache.UsersKey, s.all, keep)
		if err != nil {
			s.deps.log.Warn("cache patch failed", log.FieldError, err)
		}
		s.all = kept
	}
	p := s.page()
	s.list.clamp(p.TotalPages, len(p.Items))
}

func (s *usersScreen) handleKey(msg tea.KeyMsg) tea.Cmd {
	if s.pending != nil {
		switch msg.String() {
		case "y", "Y":
			u := *s.pending
			s.pending = nil
			s.notice = ""
			api, ctx := s.deps.api, s.ctx
			return func() tea.Msg {
				return userDeletedMsg{id: u.ID, err: api.DeleteUser(ctx, u.ID)}
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
	case "v":
		s.mode = s.mode.Toggle()
		if s.deps.settings != nil {
			if err := s.deps.settings.SetSetting(s.ctx, store.KeyViewMode, string(s.mode)); err != nil {
				s.deps.log.Warn("failed to save view mode", log.FieldError, err)
			}
		}
	case "r":
		s.loading = true
		s.notice = ""
		return s.load(true)
	case "d":
		if u, ok := s.selected(p); ok {
			s.pending = &u
		}
	case "enter":
		if u, ok := s.selected(p); ok {
			return navigateTo(guard.UserPath(u.ID))
		}
	}
	return nil
}

func (s *usersScreen) selected(p view.Page[model.User]) (model.User, bool) {
	if s.list.cursor < 0 || s.list.cursor >= len(p.Items) {
		return model.User{}, false
	}
	return p.Items[s.list.cursor], true
}

func (s *usersScreen) View(width, height int) string {
	p := s.page()
	top := []string{titleStyle.Render("Users") + headerStyle.Render("  "+s.list.status(p.Total, p.TotalPages)+s.sourceLabel())}
	if in := s.list.inputView(); in != "" {
		top = append(top, in)
	}
	if s.pending != nil {
		top = append(top, errorStyle.Render(wrapText(fmt.Sprintf("Delete %s and all their books and transactions? (y/n)", model.DisplayName(s.pending.Name)), width)))
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
		body = "Loading users..."
	case p.Total == 0:
		body = "No users found."
	case s.mode == model.ViewGrid:
		body = s.renderGrid(p, width)
	default:
		body = tableMutedStyle.Render(s.renderTable(p, width, bodyHeight))
	}
	return header + "\n\n" + fitLines(body, width, bodyHeight)
}

func (s *usersScreen) sourceLabel() string {
	if s.cached {
		return "  (cached)"
	}
	return ""
}

func (s *usersScreen) renderTable(p view.Page[model.User], width, height int) string {
	columns := []table.Column{
		{Title: "Name", Width: 24},
		{Title: "Email", Width: 30},
		{Title: "Phone", Width: 16},
		{Title: "Joined", Width: 12},
	}
	rows := make([]table.Row, 0, len(p.Items))
	for _, u := range p.Items {
		rows = append(rows, table.Row{
			model.DisplayName(u.Name),
			model.DisplayEmail(u.Email),
			model.DisplayPhone(u.Phone),
			model.DisplayDate(u.CreatedAt),
		})
	}
	t := newTable(columns, rows, s.list.cursor, width, height)
	return t.View()
}

func (s *usersScreen) renderGrid(p view.Page[model.User], width int) string {
	perRow := maxInt(1, width/(gridCardWidth+2))
	cards := make([]string, 0, len(p.Items))
	for i, u := range p.Items {
		style := cardStyle
		if i == s.list.cursor {
			style = selectedCardStyle
		}
		content := strings.Join([]string{
			cardValueStyle.Render(truncateLine(model.DisplayName(u.Name), gridCardWidth-4)),
			cardTitleStyle.Render(truncateLine(model.DisplayEmail(u.Email), gridCardWidth-4)),
			cardTitleStyle.Render(model.DisplayPhone(u.Phone)),
			headerStyle.Render("Joined " + model.DisplayDate(u.CreatedAt)),
		}, "\n")
		cards = append(cards, style.Width(gridCardWidth).Render(content))
	}
	rows := make([]string, 0, (len(cards)+perRow-1)/perRow)
	for i := 0; i < len(cards); i += perRow {
		rows = append(rows, lipgloss.JoinHorizontal(lipgloss.Top, cards[i:minInt(i+perRow, len(cards))]...))
	}
	return lipgloss.JoinVertical(lipgloss.Left, rows...)
}
