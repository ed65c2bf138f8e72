package tui

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/charmbracelet/bubbles/cursor"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/verte-zerg/ledgeradmin/internal/audit"
	"github.com/verte-zerg/ledgeradmin/internal/gateway"
	"github.com/verte-zerg/ledgeradmin/internal/listcache"
	"github.com/verte-zerg/ledgeradmin/internal/model"
	"github.com/verte-zerg/ledgeradmin/internal/session"
	"github.com/verte-zerg/ledgeradmin/internal/store"
)

type fakeAPI struct {
	mu         sync.Mutex
	token      string
	users      []model.User
	usersErr   error
	usersCalls int
	books      []model.Book
	counts     map[string]int
	deleted    []string
}

func (f *fakeAPI) Login(_ context.Context, email, password string) (string, error) {
	if email == "admin@example.com" && password == "secret" {
		return f.token, nil
	}
	return "", &gateway.AuthError{Op: "login", Status: 401, Message: "Invalid credentials"}
}

func (f *fakeAPI) Signup(_ context.Context, _, _, _ string) (string, error) {
	return f.token, nil
}

func (f *fakeAPI) Dashboard(context.Context) (model.DashboardAggregate, error) {
	return model.DashboardAggregate{
		TotalUsers: 10,
		MonthlyStats: model.MonthlyStats{
			Users:        []int{0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 100, 80},
			Books:        make([]int, 12),
			Transactions: make([]int, 12),
		},
	}, nil
}

func (f *fakeAPI) Users(context.Context) ([]model.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.usersCalls++
	if f.usersErr != nil {
		return nil, f.usersErr
	}
	return append([]model.User(nil), f.users...), nil
}

func (f *fakeAPI) User(_ context.Context, id string) (model.User, error) {
	for _, u := range f.users {
		if u.ID == id {
			return u, nil
		}
	}
	return model.User{}, &gateway.NetworkError{Op: "user", Status: 404}
}

func (f *fakeAPI) UserTransactions(context.Context, string) ([]model.Transaction, error) {
	return nil, nil
}

func (f *fakeAPI) DeleteUser(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deleted = append(f.deleted, id)
	return nil
}

func (f *fakeAPI) Books(context.Context) ([]model.Book, error) {
	return append([]model.Book(nil), f.books...), nil
}

func (f *fakeAPI) BookDetails(context.Context, string) (model.BookDetails, error) {
	return model.BookDetails{}, nil
}

func (f *fakeAPI) MemberCounts(context.Context, []string) (map[string]int, error) {
	return f.counts, nil
}

func (f *fakeAPI) DeleteBook(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deleted = append(f.deleted, id)
	return nil
}

func (f *fakeAPI) calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.usersCalls
}

type memSettings struct {
	mu     sync.Mutex
	values map[string]string
}

func (s *memSettings) GetSetting(_ context.Context, key string) (string, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.values[key]
	return v, ok, nil
}

func (s *memSettings) SetSetting(_ context.Context, key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.values[key] = value
	return nil
}

type eventLog struct {
	mu     sync.Mutex
	events []audit.Event
}

func (e *eventLog) Publish(_ context.Context, ev audit.Event) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.events = append(e.events, ev)
	return nil
}

func (e *eventLog) Close() error { return nil }

func (e *eventLog) types() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]string, len(e.events))
	for i, ev := range e.events {
		out[i] = ev.Type
	}
	return out
}

type harness struct {
	t        *testing.T
	m        *Model
	api      *fakeAPI
	tokens   *session.MemoryTokens
	session  *session.Store
	cache    *listcache.Cache[model.User]
	settings *memSettings
	events   *eventLog
}

func newHarness(t *testing.T, start string, loggedIn bool) *harness {
	t.Helper()
	tokens := &session.MemoryTokens{}
	if loggedIn {
		_ = tokens.SaveToken(context.Background(), "stored-token")
	}
	sess := session.New(tokens)
	now := time.Date(2024, 6, 1, 9, 0, 0, 0, time.UTC)
	cache, err := listcache.New[model.User](listcache.NewMemoryBackend(), time.Hour,
		listcache.WithClock(func() time.Time { return now }))
	if err != nil {
		t.Fatalf("new cache: %v", err)
	}
	h := &harness{
		t:        t,
		api:      &fakeAPI{token: "fresh-token"},
		tokens:   tokens,
		session:  sess,
		cache:    cache,
		settings: &memSettings{values: map[string]string{}},
		events:   &eventLog{},
	}
	h.m = New(Options{
		Session:  sess,
		API:      h.api,
		Users:    cache,
		Settings: h.settings,
		Audit:    audit.NewRecorder(h.events, nil, nil),
		PageSize: 10,
		Start:    start,
	})
	h.m.Update(tea.WindowSizeMsg{Width: 120, Height: 40})
	return h
}

func (h *harness) start() {
	h.drive(h.m.Init())
}

// drive runs cmd and every command it produces, feeding results back into
// the model. Timers such as cursor blinks are dropped.
func (h *harness) drive(cmd tea.Cmd) {
	h.t.Helper()
	queue := []tea.Cmd{cmd}
	for steps := 0; len(queue) > 0 && steps < 200; steps++ {
		next := queue[0]
		queue = queue[1:]
		if next == nil {
			continue
		}
		msg, ok := runCmd(next)
		if !ok || msg == nil {
			continue
		}
		if batch, isBatch := msg.(tea.BatchMsg); isBatch {
			queue = append(queue, batch...)
			continue
		}
		if isTimer(msg) {
			continue
		}
		_, out := h.m.Update(msg)
		queue = append(queue, out)
	}
}

func (h *harness) press(keys ...string) {
	for _, k := range keys {
		_, cmd := h.m.Update(keyMsg(k))
		h.drive(cmd)
	}
}

func (h *harness) typeText(s string) {
	for _, r := range s {
		_, cmd := h.m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{r}})
		h.drive(cmd)
	}
}

func runCmd(cmd tea.Cmd) (tea.Msg, bool) {
	ch := make(chan tea.Msg, 1)
	go func() { ch <- cmd() }()
	select {
	case msg := <-ch:
		return msg, true
	case <-time.After(100 * time.Millisecond):
		return nil, false
	}
}

func isTimer(msg tea.Msg) bool {
	if sm, ok := msg.(screenMsg); ok {
		msg = sm.msg
	}
	switch msg.(type) {
	case spinner.TickMsg, cursor.BlinkMsg:
		return true
	}
	return false
}

func keyMsg(k string) tea.KeyMsg {
	switch k {
	case "enter":
		return tea.KeyMsg{Type: tea.KeyEnter}
	case "esc":
		return tea.KeyMsg{Type: tea.KeyEsc}
	case "tab":
		return tea.KeyMsg{Type: tea.KeyTab}
	case "right":
		return tea.KeyMsg{Type: tea.KeyRight}
	case "down":
		return tea.KeyMsg{Type: tea.KeyDown}
	case "ctrl+u":
		return tea.KeyMsg{Type: tea.KeyCtrlU}
	}
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(k)}
}

func strPtr(s string) *string { return &s }

func someUsers(n int) []model.User {
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	out := make([]model.User, n)
	for i := range out {
		out[i] = model.User{
			ID:        fmt.Sprintf("u%02d", i),
			Name:      strPtr(fmt.Sprintf("User %02d", i)),
			Email:     strPtr(fmt.Sprintf("user%02d@example.com", i)),
			CreatedAt: base.Add(time.Duration(i) * time.Hour),
		}
	}
	return out
}

func TestLoadingShowsOnlyPlaceholder(t *testing.T) {
	h := newHarness(t, "/users", true)
	out := h.m.View()
	if !strings.Contains(out, "Loading session") {
		t.Fatalf("expected placeholder, got:\n%s", out)
	}
	for _, marker := range []string{"Users", "Dashboard", "Books"} {
		if strings.Contains(out, marker) {
			t.Fatalf("protected content %q rendered while loading", marker)
		}
	}
	if h.m.screen != nil {
		t.Fatalf("no screen may be mounted while loading")
	}
}

func TestUnauthenticatedStartRedirectsToLogin(t *testing.T) {
	h := newHarness(t, "/users", false)
	h.start()
	if got := h.m.Location(); got != "/login?return=%2Fusers" {
		t.Fatalf("unexpected location %q", got)
	}
	if !strings.Contains(h.m.View(), "Log in to Ledger Admin") {
		t.Fatalf("expected login form")
	}
	if h.api.calls() != 0 {
		t.Fatalf("protected data fetched before login")
	}
}

func TestLoginReturnsToRequestedLocation(t *testing.T) {
	h := newHarness(t, "/users", false)
	h.api.users = someUsers(3)
	h.start()

	h.typeText("admin@example.com")
	h.press("tab")
	h.typeText("wrong")
	h.press("enter")
	if !strings.Contains(h.m.View(), "Invalid credentials") {
		t.Fatalf("expected inline error, got:\n%s", h.m.View())
	}
	if h.session.State() != session.Unauthenticated {
		t.Fatalf("failed login must not authenticate")
	}

	h.press("ctrl+u")
	h.typeText("secret")
	h.press("enter")
	if h.session.State() != session.Authenticated {
		t.Fatalf("expected authenticated session")
	}
	if got := h.m.Location(); got != "/users" {
		t.Fatalf("expected return to /users, got %q", got)
	}
	if token, _ := h.tokens.LoadToken(context.Background()); token != "fresh-token" {
		t.Fatalf("expected token persisted, got %q", token)
	}
	if got := h.events.types(); len(got) != 1 || got[0] != audit.EventLogin {
		t.Fatalf("expected login event, got %v", got)
	}
}

func TestAuthErrorLogsOutAndRedirects(t *testing.T) {
	h := newHarness(t, "/users", true)
	h.api.usersErr = &gateway.AuthError{Op: "users", Status: 401}
	h.start()
	if h.session.State() != session.Unauthenticated {
		t.Fatalf("expected logout after rejected token")
	}
	if got := h.m.Location(); got != "/login?return=%2Fusers" {
		t.Fatalf("unexpected location %q", got)
	}
	if !strings.Contains(h.m.View(), sessionExpiredNotice) {
		t.Fatalf("expected session expired notice:\n%s", h.m.View())
	}
	if token, _ := h.tokens.LoadToken(context.Background()); token != "" {
		t.Fatalf("expected persisted token erased")
	}
}

func TestAuthenticatedLoginRouteRedirectsToDashboard(t *testing.T) {
	h := newHarness(t, "/login", true)
	h.start()
	if got := h.m.Location(); got != "/dashboard" {
		t.Fatalf("unexpected location %q", got)
	}
	if !strings.Contains(h.m.View(), "Dashboard Overview") {
		t.Fatalf("expected dashboard:\n%s", h.m.View())
	}
}

func TestUsersServedFromCacheUntilRefresh(t *testing.T) {
	h := newHarness(t, "/users", true)
	h.api.users = someUsers(3)
	h.start()
	if h.api.calls() != 1 {
		t.Fatalf("expected one fetch, got %d", h.api.calls())
	}
	if !strings.Contains(h.m.View(), "User 00") {
		t.Fatalf("expected users rendered:\n%s", h.m.View())
	}

	h.press("1", "2")
	if h.api.calls() != 1 {
		t.Fatalf("expected cached list on second visit, got %d fetches", h.api.calls())
	}
	if !strings.Contains(h.m.View(), "(cached)") {
		t.Fatalf("expected cached marker")
	}

	h.press("r")
	if h.api.calls() != 2 {
		t.Fatalf("expected refresh to refetch, got %d", h.api.calls())
	}
}

func TestDeleteUserPatchesCache(t *testing.T) {
	h := newHarness(t, "/users", true)
	h.api.users = someUsers(3)
	h.start()

	h.press("down", "d")
	if !strings.Contains(h.m.View(), "Delete User 01") {
		t.Fatalf("expected confirmation prompt:\n%s", h.m.View())
	}
	h.press("q")
	if h.m.screen == nil {
		t.Fatalf("q must not quit while confirming")
	}
	h.press("y")
	if len(h.api.deleted) != 1 || h.api.deleted[0] != "u01" {
		t.Fatalf("unexpected deletes %v", h.api.deleted)
	}
	cached, ok, err := h.cache.Get(context.Background(), listcache.UsersKey)
	if err != nil || !ok || len(cached) != 2 {
		t.Fatalf("expected patched cache, got %v %v %d", ok, err, len(cached))
	}
	for _, u := range cached {
		if u.ID == "u01" {
			t.Fatalf("deleted user still cached")
		}
	}
	if got := h.events.types(); len(got) != 1 || got[0] != audit.EventUserDeleted {
		t.Fatalf("expected delete event, got %v", got)
	}
}

func TestDeleteCancel(t *testing.T) {
	h := newHarness(t, "/users", true)
	h.api.users = someUsers(2)
	h.start()
	h.press("d", "n")
	if len(h.api.deleted) != 0 {
		t.Fatalf("cancelled delete was sent")
	}
}

func TestViewModeIsPersisted(t *testing.T) {
	h := newHarness(t, "/users", true)
	h.api.users = someUsers(2)
	h.start()
	h.press("v")
	if got := h.settings.values[store.KeyViewMode]; got != string(model.ViewGrid) {
		t.Fatalf("expected grid persisted, got %q", got)
	}
	h.press("1", "2")
	us, ok := h.m.screen.(*usersScreen)
	if !ok || us.mode != model.ViewGrid {
		t.Fatalf("expected grid mode restored")
	}
	if !strings.Contains(h.m.View(), "Joined ") {
		t.Fatalf("expected grid cards:\n%s", h.m.View())
	}
}

func TestPageSizeChangesResetPage(t *testing.T) {
	h := newHarness(t, "/users", true)
	h.api.users = someUsers(25)
	h.start()
	us := h.m.screen.(*usersScreen)

	h.press("right", "right")
	if us.list.params.PageIndex != 2 {
		t.Fatalf("expected third page, got %d", us.list.params.PageIndex)
	}
	h.press("right")
	if us.list.params.PageIndex != 2 {
		t.Fatalf("next must stop at the last page")
	}

	h.press("c")
	h.typeText("abc")
	h.press("enter")
	if us.list.params.PageSize != 10 || us.list.params.PageIndex != 2 {
		t.Fatalf("invalid custom size must be ignored, got %+v", us.list.params)
	}

	h.press("s")
	if us.list.params.PageSize != 25 || us.list.params.PageIndex != 0 {
		t.Fatalf("expected preset 25 on first page, got %+v", us.list.params)
	}

	h.press("c")
	h.typeText("5")
	h.press("enter")
	if us.list.params.PageSize != 5 || us.list.params.PageIndex != 0 {
		t.Fatalf("expected custom size 5, got %+v", us.list.params)
	}
}

func TestSearchCapturesGlobalKeys(t *testing.T) {
	h := newHarness(t, "/users", true)
	h.api.users = someUsers(12)
	h.start()
	h.press("right")
	h.press("/")
	h.typeText("q1")
	us := h.m.screen.(*usersScreen)
	if us.list.params.Search != "q1" {
		t.Fatalf("expected search text captured, got %q", us.list.params.Search)
	}
	if us.list.params.PageIndex != 0 {
		t.Fatalf("search must reset the page")
	}
	h.press("esc")
	h.typeText("/User 1")
	h.press("enter")
	if got := us.page(); got.Total != 2 {
		t.Fatalf("expected 2 matches, got %d", got.Total)
	}
}

func TestOpenUserDetails(t *testing.T) {
	h := newHarness(t, "/users", true)
	h.api.users = someUsers(2)
	h.start()
	h.press("enter")
	if got := h.m.Location(); got != "/users/u00" {
		t.Fatalf("unexpected location %q", got)
	}
	if !strings.Contains(h.m.View(), "user00@example.com") {
		t.Fatalf("expected profile header:\n%s", h.m.View())
	}
	h.press("esc")
	if got := h.m.Location(); got != "/users" {
		t.Fatalf("expected back to users, got %q", got)
	}
}

func TestBooksShowMemberCountsAndSort(t *testing.T) {
	h := newHarness(t, "/books", true)
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	h.api.books = []model.Book{
		{ID: "b1", Name: strPtr("Old book"), CreatedAt: base},
		{ID: "b2", Name: strPtr("New book"), CreatedAt: base.Add(time.Hour)},
	}
	h.api.counts = map[string]int{"b1": 7, "b2": 1}
	h.start()
	bs := h.m.screen.(*booksScreen)
	if p := bs.page(); p.Items[0].ID != "b2" {
		t.Fatalf("expected newest first")
	}
	h.press("o", "o")
	if p := bs.page(); p.Items[0].ID != "b1" || p.Items[0].MemberCount != 7 {
		t.Fatalf("expected most members first, got %+v", p.Items[0])
	}
}

func TestLogoutKey(t *testing.T) {
	h := newHarness(t, "/dashboard", true)
	h.start()
	h.press("L")
	if h.session.State() != session.Unauthenticated {
		t.Fatalf("expected logged out")
	}
	if got := h.m.Location(); got != "/login" {
		t.Fatalf("unexpected location %q", got)
	}
	if got := h.events.types(); len(got) != 1 || got[0] != audit.EventLogout {
		t.Fatalf("expected logout event, got %v", got)
	}
}

func TestStaleScreenMessagesAreDropped(t *testing.T) {
	h := newHarness(t, "/users", true)
	h.api.users = someUsers(1)
	h.start()
	oldGen := h.m.gen
	h.press("3")
	h.m.Update(screenMsg{gen: oldGen, msg: usersLoadedMsg{err: &gateway.AuthError{Op: "users"}}})
	if h.session.State() != session.Authenticated {
		t.Fatalf("stale failure must not end the session")
	}
}

func TestSessionReadyKeepsScreenMountedByChange(t *testing.T) {
	h := newHarness(t, "/users", true)
	h.api.users = someUsers(3)
	var changes []session.State
	unsubscribe := h.session.Subscribe(func(st session.State) { changes = append(changes, st) })
	defer unsubscribe()

	// The change notification reaches the console before Initialize returns.
	if err := h.session.Initialize(context.Background()); err != nil {
		t.Fatalf("initialize: %v", err)
	}
	for _, st := range changes {
		h.drive(func() tea.Msg { return SessionChangedMsg{State: st} })
	}
	if h.m.screen == nil || h.api.calls() != 1 {
		t.Fatalf("expected users screen with one fetch, calls=%d", h.api.calls())
	}

	gen := h.m.gen
	h.drive(func() tea.Msg { return sessionReadyMsg{} })
	if h.m.gen != gen {
		t.Fatalf("screen remounted after session ready")
	}
	if h.api.calls() != 1 {
		t.Fatalf("duplicate fetch: %d calls", h.api.calls())
	}
}

func TestFirstChangeToUnauthenticatedIsNotExpiry(t *testing.T) {
	h := newHarness(t, "/users", false)
	var changes []session.State
	unsubscribe := h.session.Subscribe(func(st session.State) { changes = append(changes, st) })
	defer unsubscribe()

	if err := h.session.Initialize(context.Background()); err != nil {
		t.Fatalf("initialize: %v", err)
	}
	for _, st := range changes {
		h.drive(func() tea.Msg { return SessionChangedMsg{State: st} })
	}
	h.drive(func() tea.Msg { return sessionReadyMsg{} })
	if got := h.m.Location(); got != "/login?return=%2Fusers" {
		t.Fatalf("unexpected location %q", got)
	}
	if strings.Contains(h.m.View(), sessionExpiredNotice) {
		t.Fatalf("startup without a token must not report an expired session")
	}
}
