// Package tui provides the Bubble Tea admin console.
package tui

import (
	"context"
	"strings"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/verte-zerg/ledgeradmin/internal/audit"
	"github.com/verte-zerg/ledgeradmin/internal/gateway"
	"github.com/verte-zerg/ledgeradmin/internal/guard"
	"github.com/verte-zerg/ledgeradmin/internal/listcache"
	"github.com/verte-zerg/ledgeradmin/internal/log"
	"github.com/verte-zerg/ledgeradmin/internal/model"
	"github.com/verte-zerg/ledgeradmin/internal/session"
	"github.com/verte-zerg/ledgeradmin/internal/view"
)

const sessionExpiredNotice = "Session expired. Please log in again."

// API is the subset of the gateway the console calls.
type API interface {
	Login(ctx context.Context, email, password string) (string, error)
	Signup(ctx context.Context, username, email, password string) (string, error)
	Dashboard(ctx context.Context) (model.DashboardAggregate, error)
	Users(ctx context.Context) ([]model.User, error)
	User(ctx context.Context, id string) (model.User, error)
	UserTransactions(ctx context.Context, id string) ([]model.Transaction, error)
	DeleteUser(ctx context.Context, id string) error
	Books(ctx context.Context) ([]model.Book, error)
	BookDetails(ctx context.Context, id string) (model.BookDetails, error)
	MemberCounts(ctx context.Context, bookIDs []string) (map[string]int, error)
	DeleteBook(ctx context.Context, id string) error
}

// Settings persists console preferences.
type Settings interface {
	GetSetting(ctx context.Context, key string) (string, bool, error)
	SetSetting(ctx context.Context, key, value string) error
}

// Options wires the console to its services.
type Options struct {
	Session  *session.Store
	API      API
	Users    *listcache.Cache[model.User]
	Settings Settings
	Audit    *audit.Recorder
	Logger   *log.Logger
	PageSize int
	// Start is the first location shown once the session resolves.
	Start string
}

type deps struct {
	session  *session.Store
	api      API
	users    *listcache.Cache[model.User]
	settings Settings
	audit    *audit.Recorder
	log      *log.Logger
	pageSize int
}

// screen is one mounted view.
type screen interface {
	Init() tea.Cmd
	Update(msg tea.Msg) (screen, tea.Cmd)
	View(width, height int) string
	Help() string
	// Capturing reports whether keys go to a text input or a prompt.
	Capturing() bool
}

// Router messages.
type (
	sessionReadyMsg struct{ err error }
	navigateMsg     struct{ location string }
	loggedInMsg     struct{ token string }

	// SessionChangedMsg reports a session transition made outside the console,
	// such as a logout triggered by a rejected token.
	SessionChangedMsg struct{ State session.State }
)

// failure is implemented by result messages that may carry a gateway error.
type failure interface {
	failed() error
}

// screenMsg tags a screen's message with the mount it belongs to.
type screenMsg struct {
	gen int
	msg tea.Msg
}

var tabs = []struct {
	title string
	path  string
}{
	{"1 Dashboard", guard.PathDashboard},
	{"2 Users", guard.PathUsers},
	{"3 Books", guard.PathBooks},
}

// Model is the root console model. It routes between screens through the
// guard and owns the session lifecycle.
type Model struct {
	deps *deps

	location string
	decision guard.Decision
	returnTo string
	notice   string

	screen screen
	gen    int
	cancel context.CancelFunc

	spinner spinner.Model

	width  int
	height int
}

// New constructs the console.
func New(opts Options) *Model {
	logger := opts.Logger
	if logger == nil {
		logger = log.Nop()
	}
	pageSize := opts.PageSize
	if pageSize <= 0 {
		pageSize = view.DefaultPageSize
	}
	start := opts.Start
	if start == "" {
		start = guard.PathDashboard
	}
	sp := spinner.New()
	sp.Spinner = spinner.Dot
	return &Model{
		deps: &deps{
			session:  opts.Session,
			api:      opts.API,
			users:    opts.Users,
			settings: opts.Settings,
			audit:    opts.Audit,
			log:      logger.WithComponent(log.ComponentConsole),
			pageSize: pageSize,
		},
		location: start,
		decision: guard.Decision{Action: guard.Placeholder},
		spinner:  sp,
	}
}

// Init implements tea.Model.
func (m *Model) Init() tea.Cmd {
	sess := m.deps.session
	return tea.Batch(m.spinner.Tick, func() tea.Msg {
		return sessionReadyMsg{err: sess.Initialize(context.Background())}
	})
}

// Location returns the current location.
func (m *Model) Location() string {
	return m.location
}

// Update implements tea.Model.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, m.forward(msg)
	case spinner.TickMsg:
		if m.decision.Action != guard.Placeholder {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	case sessionReadyMsg:
		if msg.err != nil {
			m.deps.log.Warn("session restore failed", log.FieldError, msg.err)
		}
		if m.mounted(guard.Decide(m.deps.session.State(), m.location)) {
			return m, nil
		}
		return m, m.navigate(m.location)
	case SessionChangedMsg:
		if m.mounted(guard.Decide(msg.State, m.location)) {
			return m, nil
		}
		if msg.State == session.Unauthenticated && m.decision.Action == guard.Render && !m.decision.Route.Public {
			m.notice = sessionExpiredNotice
		}
		return m, m.navigate(m.location)
	case screenMsg:
		if msg.gen != m.gen {
			return m, nil
		}
		return m, m.handleScreenMsg(msg.msg)
	case tea.KeyMsg:
		return m, m.handleKey(msg)
	}
	return m, m.forward(msg)
}

func (m *Model) handleKey(msg tea.KeyMsg) tea.Cmd {
	if msg.Type == tea.KeyCtrlC {
		return tea.Quit
	}
	if m.screen != nil && m.screen.Capturing() {
		return m.forward(msg)
	}
	switch msg.String() {
	case "q":
		return tea.Quit
	}
	if m.decision.Action == guard.Render && !m.decision.Route.Public {
		switch msg.String() {
		case "1", "2", "3":
			return m.navigate(tabs[int(msg.String()[0]-'1')].path)
		case "L":
			return m.logout()
		}
	}
	return m.forward(msg)
}

func (m *Model) handleScreenMsg(msg tea.Msg) tea.Cmd {
	if f, ok := msg.(failure); ok && gateway.IsAuth(f.failed()) {
		return m.expire(f.failed())
	}
	switch msg := msg.(type) {
	case navigateMsg:
		return m.navigate(msg.location)
	case loggedInMsg:
		return m.login(msg.token)
	}
	return m.forward(msg)
}

func (m *Model) forward(msg tea.Msg) tea.Cmd {
	if m.screen == nil {
		return nil
	}
	next, cmd := m.screen.Update(msg)
	m.screen = next
	return tag(m.gen, cmd)
}

// mounted reports whether d renders the screen that is already mounted.
func (m *Model) mounted(d guard.Decision) bool {
	return m.screen != nil && d.Action == guard.Render && d.Route.Path == m.decision.Route.Path
}

// navigate applies the guard to location and mounts the resulting screen.
func (m *Model) navigate(location string) tea.Cmd {
	d := guard.Decide(m.deps.session.State(), location)
	m.decision = d
	switch d.Action {
	case guard.Placeholder:
		m.location = location
		m.unmount()
		return m.spinner.Tick
	case guard.Redirect:
		m.location = d.Target
		if d.From != "" {
			m.returnTo = guard.ReturnTo(d)
		}
		m.decision = guard.Decision{Action: guard.Render, Route: d.Route, From: d.From, Target: d.Target}
	default:
		m.location = d.Route.Path
	}
	m.deps.log.Debug("navigate", log.FieldRoute, m.location, log.FieldState, m.deps.session.State().String())
	return m.mount(m.decision.Route)
}

func (m *Model) unmount() {
	if m.cancel != nil {
		m.cancel()
		m.cancel = nil
	}
	m.screen = nil
	m.gen++
}

func (m *Model) mount(route guard.Route) tea.Cmd {
	m.unmount()
	ctx, cancel := context.WithCancel(context.Background())
	m.cancel = cancel

	notice := m.notice
	m.notice = ""
	switch route.Screen {
	case guard.ScreenLogin:
		m.screen = newLoginScreen(ctx, m.deps, notice)
	case guard.ScreenSignup:
		m.screen = newSignupScreen(ctx, m.deps)
	case guard.ScreenUsers:
		m.screen = newUsersScreen(ctx, m.deps)
	case guard.ScreenUserDetails:
		m.screen = newUserDetailsScreen(ctx, m.deps, route.Param)
	case guard.ScreenBooks:
		m.screen = newBooksScreen(ctx, m.deps)
	case guard.ScreenBookDetails:
		m.screen = newBookDetailsScreen(ctx, m.deps, route.Param)
	default:
		m.screen = newDashboardScreen(ctx, m.deps)
	}
	return tag(m.gen, m.screen.Init())
}

func (m *Model) login(token string) tea.Cmd {
	ctx := context.Background()
	if err := m.deps.session.Login(ctx, token); err != nil {
		m.deps.log.Error("login failed", log.FieldError, err)
		return m.forward(loginFailedMsg{err: err})
	}
	dest := m.returnTo
	if dest == "" {
		dest = guard.ReturnFromTarget(m.location)
	}
	m.returnTo = ""
	m.deps.log.Info("logged in")
	return tea.Batch(m.navigate(dest), m.record(audit.EventLogin, ""))
}

func (m *Model) logout() tea.Cmd {
	if err := m.deps.session.Logout(context.Background()); err != nil {
		m.deps.log.Error("logout failed", log.FieldError, err)
	}
	m.returnTo = ""
	m.deps.log.Info("logged out")
	return tea.Batch(m.navigate(guard.PathLogin), m.record(audit.EventLogout, ""))
}

// expire handles a rejected token: the session ends and the current
// location becomes the post-login destination.
func (m *Model) expire(err error) tea.Cmd {
	m.deps.log.Warn("session expired", log.FieldError, err, log.FieldErrorType, log.ErrorTypeAuth)
	if m.deps.session.State() == session.Authenticated {
		if lerr := m.deps.session.Logout(context.Background()); lerr != nil {
			m.deps.log.Error("logout failed", log.FieldError, lerr)
		}
	}
	m.notice = sessionExpiredNotice
	return m.navigate(m.location)
}

func (m *Model) record(typ, subject string) tea.Cmd {
	rec := m.deps.audit
	if rec == nil {
		return nil
	}
	return func() tea.Msg {
		rec.Record(context.Background(), typ, subject)
		return nil
	}
}

// View implements tea.Model.
func (m *Model) View() string {
	if m.width == 0 || m.height == 0 {
		return ""
	}
	if m.decision.Action == guard.Placeholder || m.screen == nil {
		return lipgloss.Place(m.width, m.height, lipgloss.Center, lipgloss.Center,
			m.spinner.View()+" Loading session...")
	}
	if m.decision.Route.Public {
		return fitLines(m.screen.View(m.width, m.height), m.width, m.height)
	}
	headerHeight, bodyHeight, footerHeight := m.layoutHeights()
	header := fitLines(m.renderHeader(), m.width, headerHeight)
	body := fitLines(m.screen.View(m.width, bodyHeight), m.width, bodyHeight)
	footer := fitLines(m.renderFooter(), m.width, footerHeight)
	return strings.Join([]string{header, body, footer}, "\n")
}

func (m *Model) layoutHeights() (headerHeight, bodyHeight, footerHeight int) {
	headerHeight = maxInt(1, lipgloss.Height(activeNavStyle.Render("X")))
	footerHeight = 1
	bodyHeight = maxInt(1, m.height-headerHeight-footerHeight)
	return headerHeight, bodyHeight, footerHeight
}

func (m *Model) activeTab() int {
	switch m.decision.Route.Screen {
	case guard.ScreenUsers, guard.ScreenUserDetails:
		return 1
	case guard.ScreenBooks, guard.ScreenBookDetails:
		return 2
	default:
		return 0
	}
}

func (m *Model) renderHeader() string {
	titles := make([]string, len(tabs))
	for i, t := range tabs {
		titles[i] = t.title
	}
	row := renderTabs(titles, m.activeTab())
	who := ""
	if c, ok := m.deps.session.Claims(); ok && c.Email != "" {
		who = headerStyle.Render("  " + c.Email)
	}
	return padLines(lipgloss.JoinHorizontal(lipgloss.Center, row, who), m.width)
}

func (m *Model) renderFooter() string {
	help := m.screen.Help()
	if !m.screen.Capturing() {
		help += "  1/2/3: tabs  L: logout  q: quit"
	}
	return headerStyle.Render(truncateLine(strings.TrimSpace(help), m.width))
}

// tag routes the result of cmd back to the mount identified by gen.
func tag(gen int, cmd tea.Cmd) tea.Cmd {
	if cmd == nil {
		return nil
	}
	return func() tea.Msg {
		msg := cmd()
		switch msg := msg.(type) {
		case nil:
			return nil
		case tea.BatchMsg:
			out := make(tea.BatchMsg, 0, len(msg))
			for _, c := range msg {
				out = append(out, tag(gen, c))
			}
			return out
		case tea.QuitMsg:
			return msg
		}
		return screenMsg{gen: gen, msg: msg}
	}
}

func navigateTo(location string) tea.Cmd {
	return func() tea.Msg { return navigateMsg{location: location} }
}
