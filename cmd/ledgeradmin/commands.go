package main

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/verte-zerg/ledgeradmin/internal/audit"
	"github.com/verte-zerg/ledgeradmin/internal/chart"
	"github.com/verte-zerg/ledgeradmin/internal/dashboard"
	"github.com/verte-zerg/ledgeradmin/internal/listcache"
	"github.com/verte-zerg/ledgeradmin/internal/log"
	"github.com/verte-zerg/ledgeradmin/internal/model"
	"github.com/verte-zerg/ledgeradmin/internal/session"
	"github.com/verte-zerg/ledgeradmin/internal/view"
)

var (
	loginEmail     string
	signupUsername string
	signupEmail    string

	listSearch   string
	listPage     int
	listPageSize int
	listJSON     bool
	listRefresh  bool
	booksSort    string

	deleteYes bool
)

var stdin = bufio.NewReader(os.Stdin)

func newLoginCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "login",
		Short: "Log in and store the admin token",
		Args:  cobra.NoArgs,
		RunE:  runLoginCmd,
	}
	cmd.Flags().StringVar(&loginEmail, "email", "", "admin email (prompted when empty)")
	return cmd
}

func runLoginCmd(cmd *cobra.Command, _ []string) error {
	a, err := openApp(cmd, false)
	if err != nil {
		return err
	}
	defer a.Close()
	ctx := cmd.Context()
	if err := a.session.Initialize(ctx); err != nil {
		log.FromContext(ctx).Warn("session restore failed", log.FieldError, err)
	}

	email, err := promptValue(cmd.OutOrStdout(), "Email: ", loginEmail)
	if err != nil {
		return err
	}
	password, err := readPassword(cmd.OutOrStdout(), "Password: ")
	if err != nil {
		return err
	}
	token, err := a.api.Login(ctx, email, password)
	if err != nil {
		return fmt.Errorf("login failed: %w", err)
	}
	if err := a.session.Login(ctx, token); err != nil {
		return fmt.Errorf("failed to store session: %w", err)
	}
	a.audit.Record(ctx, audit.EventLogin, "")
	return printf(cmd.OutOrStdout(), "Logged in as %s\n", email)
}

func newSignupCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "signup",
		Short: "Create an admin account and log in",
		Args:  cobra.NoArgs,
		RunE:  runSignupCmd,
	}
	cmd.Flags().StringVar(&signupUsername, "username", "", "username (prompted when empty)")
	cmd.Flags().StringVar(&signupEmail, "email", "", "email (prompted when empty)")
	return cmd
}

func runSignupCmd(cmd *cobra.Command, _ []string) error {
	a, err := openApp(cmd, false)
	if err != nil {
		return err
	}
	defer a.Close()
	ctx := cmd.Context()
	if err := a.session.Initialize(ctx); err != nil {
		log.FromContext(ctx).Warn("session restore failed", log.FieldError, err)
	}

	out := cmd.OutOrStdout()
	username, err := promptValue(out, "Username: ", signupUsername)
	if err != nil {
		return err
	}
	email, err := promptValue(out, "Email: ", signupEmail)
	if err != nil {
		return err
	}
	password, err := readPassword(out, "Password: ")
	if err != nil {
		return err
	}
	token, err := a.api.Signup(ctx, username, email, password)
	if err != nil {
		return fmt.Errorf("signup failed: %w", err)
	}
	if err := a.session.Login(ctx, token); err != nil {
		return fmt.Errorf("failed to store session: %w", err)
	}
	a.audit.Record(ctx, audit.EventLogin, "")
	return printf(out, "Account created, logged in as %s\n", email)
}

func newLogoutCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Erase the stored admin token",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := openApp(cmd, false)
			if err != nil {
				return err
			}
			defer a.Close()
			ctx := cmd.Context()
			if err := a.session.Initialize(ctx); err != nil {
				log.FromContext(ctx).Warn("session restore failed", log.FieldError, err)
			}
			wasAuthenticated := a.session.State() == session.Authenticated
			if wasAuthenticated {
				a.audit.Record(ctx, audit.EventLogout, "")
			}
			if err := a.session.Logout(ctx); err != nil {
				return fmt.Errorf("logout failed: %w", err)
			}
			if !wasAuthenticated {
				return printf(cmd.OutOrStdout(), "Not logged in\n")
			}
			return printf(cmd.OutOrStdout(), "Logged out\n")
		},
	}
}

func newStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show session and configuration",
		Args:  cobra.NoArgs,
		RunE:  runStatusCmd,
	}
}

func runStatusCmd(cmd *cobra.Command, _ []string) error {
	a, err := openApp(cmd, false)
	if err != nil {
		return err
	}
	defer a.Close()
	ctx := cmd.Context()
	if err := a.session.Initialize(ctx); err != nil {
		log.FromContext(ctx).Warn("session restore failed", log.FieldError, err)
	}

	rows := [][]string{
		{"API", a.settings.BaseURL},
		{"Session", a.session.State().String()},
	}
	if c, ok := a.session.Claims(); ok {
		rows = append(rows, []string{"Subject", c.Subject}, []string{"Email", c.Email})
		if !c.ExpiresAt.IsZero() {
			expiry := c.ExpiresAt.Local().Format(time.RFC1123)
			if c.Expired(time.Now()) {
				expiry += " (expired)"
			}
			rows = append(rows, []string{"Expires", expiry})
		}
	}
	rows = append(rows,
		[]string{"Database", a.store.Path()},
		[]string{"Cache TTL", a.users.TTL().String()},
		[]string{"Page size", strconv.Itoa(a.settings.PageSize)},
	)
	audited := "disabled"
	if a.settings.AMQPURL != "" {
		audited = a.settings.AMQPExchange + " -> " + a.settings.AMQPQueue
	}
	rows = append(rows, []string{"Audit", audited})
	return printLines(cmd.OutOrStdout(), chart.FormatTable(nil, rows, nil))
}

func newDashboardCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "dashboard",
		Short: "Print headline metrics and monthly activity",
		Args:  cobra.NoArgs,
		RunE:  runDashboardCmd,
	}
}

func runDashboardCmd(cmd *cobra.Command, _ []string) error {
	a, err := openApp(cmd, false)
	if err != nil {
		return err
	}
	defer a.Close()
	ctx := cmd.Context()
	if err := a.requireSession(ctx); err != nil {
		return err
	}

	report, err := dashboard.BuildReport(ctx, a.api)
	if err != nil {
		return fmt.Errorf("failed to load dashboard: %w", err)
	}
	out := cmd.OutOrStdout()
	rows := make([][]string, 0, len(report.Cards))
	for _, c := range report.Cards {
		rows = append(rows, []string{c.Title, c.Value, c.Sub, c.GrowthLabel()})
	}
	if err := printLines(out, chart.FormatTable([]string{"Metric", "Value", "This week", "Growth"}, rows, map[int]bool{1: true, 3: true})); err != nil {
		return err
	}
	if err := printf(out, "\n"); err != nil {
		return err
	}

	series := make([]chart.Series, 0, len(report.Series))
	trends := make([]string, 0, len(report.Series))
	for _, s := range report.Series {
		series = append(series, chart.Series{Name: s.Name, Values: chart.Ints(s.Values)})
		trends = append(trends, s.Name+" "+s.Trend.String())
	}
	if err := chart.Plot(out, series, chart.Options{Title: "Monthly activity", Height: 8, Labels: chart.MonthLabels}); err != nil {
		return fmt.Errorf("failed to render chart: %w", err)
	}
	return printf(out, "Trend vs last month: %s\n", strings.Join(trends, "  "))
}

func addListFlags(cmd *cobra.Command) {
	cmd.Flags().StringVar(&listSearch, "search", "", "case-insensitive search")
	cmd.Flags().IntVar(&listPage, "page", 1, "page number, starting at 1")
	cmd.Flags().IntVar(&listPageSize, "page-size", view.DefaultPageSize, "rows per page")
	cmd.Flags().BoolVar(&listJSON, "json", false, "print the page as JSON")
}

// listParams builds view parameters from flags over the configured page size.
func listParams(cmd *cobra.Command, a *app, sort model.SortKey) (view.Params, error) {
	size := a.settings.PageSize
	applyIntFlag(cmd, "page-size", &size, listPageSize)
	if size < 1 {
		return view.Params{}, fmt.Errorf("--page-size must be >= 1")
	}
	if listPage < 1 {
		return view.Params{}, fmt.Errorf("--page must be >= 1")
	}
	p := view.NewParams(size)
	p.SetSearch(listSearch)
	p.SetSort(sort)
	p.SetPage(listPage - 1)
	return p, nil
}

func pageFooter(total, pageIndex, totalPages int) string {
	page := 0
	if totalPages > 0 {
		page = pageIndex + 1
	}
	return fmt.Sprintf("%d results, page %d/%d", total, page, totalPages)
}

func newUsersCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "users",
		Short: "List users",
		Args:  cobra.NoArgs,
		RunE:  runUsersCmd,
	}
	addListFlags(cmd)
	cmd.Flags().BoolVar(&listRefresh, "refresh", false, "bypass the user list cache")
	return cmd
}

func runUsersCmd(cmd *cobra.Command, _ []string) error {
	a, err := openApp(cmd, false)
	if err != nil {
		return err
	}
	defer a.Close()
	ctx := cmd.Context()
	if err := a.requireSession(ctx); err != nil {
		return err
	}
	params, err := listParams(cmd, a, model.SortNone)
	if err != nil {
		return err
	}
	users, err := a.loadUsers(ctx, listRefresh)
	if err != nil {
		return fmt.Errorf("failed to load users: %w", err)
	}
	p := view.Apply(users, params)

	out := cmd.OutOrStdout()
	if listJSON {
		return writeJSON(out, p)
	}
	rows := make([][]string, 0, len(p.Items))
	for _, u := range p.Items {
		rows = append(rows, []string{
			u.ID,
			chart.Truncate(model.DisplayName(u.Name), 28),
			chart.Truncate(model.DisplayEmail(u.Email), 32),
			model.DisplayPhone(u.Phone),
			model.DisplayDate(u.CreatedAt),
		})
	}
	if err := printLines(out, chart.FormatTable([]string{"ID", "Name", "Email", "Phone", "Joined"}, rows, nil)); err != nil {
		return err
	}
	return printf(out, "%s\n", pageFooter(p.Total, p.PageIndex, p.TotalPages))
}

// loadUsers serves the user list from the cache when fresh.
func (a *app) loadUsers(ctx context.Context, refresh bool) ([]model.User, error) {
	if refresh {
		if err := a.users.Invalidate(ctx, listcache.UsersKey); err != nil {
			log.FromContext(ctx).Warn("cache invalidate failed", log.FieldError, err)
		}
	} else if users, ok, err := a.users.Get(ctx, listcache.UsersKey); err != nil {
		log.FromContext(ctx).Warn("cache read failed", log.FieldError, err)
	} else if ok {
		return users, nil
	}
	users, err := a.api.Users(ctx)
	if err != nil {
		return nil, err
	}
	if err := a.users.Put(ctx, listcache.UsersKey, users); err != nil {
		log.FromContext(ctx).Warn("cache write failed", log.FieldError, err)
	}
	return users, nil
}

func newUserCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "user <id>",
		Short: "Show a user and their transactions",
		Args:  cobra.ExactArgs(1),
		RunE:  runUserCmd,
	}
	addListFlags(cmd)
	return cmd
}

func runUserCmd(cmd *cobra.Command, args []string) error {
	a, err := openApp(cmd, false)
	if err != nil {
		return err
	}
	defer a.Close()
	ctx := cmd.Context()
	if err := a.requireSession(ctx); err != nil {
		return err
	}
	params, err := listParams(cmd, a, model.SortNewest)
	if err != nil {
		return err
	}
	u, err := a.api.User(ctx, args[0])
	if err != nil {
		return fmt.Errorf("failed to load user: %w", err)
	}
	txs, err := a.api.UserTransactions(ctx, args[0])
	if err != nil {
		return fmt.Errorf("failed to load transactions: %w", err)
	}
	p := view.Apply(txs, params)

	out := cmd.OutOrStdout()
	if listJSON {
		return writeJSON(out, struct {
			User         model.User                    `json:"user"`
			Transactions view.Page[model.Transaction] `json:"transactions"`
		}{u, p})
	}
	if err := printf(out, "%s  <%s>  %s  joined %s\n\n",
		model.DisplayName(u.Name), model.DisplayEmail(u.Email), model.DisplayPhone(u.Phone), model.DisplayDate(u.CreatedAt)); err != nil {
		return err
	}
	rows := make([][]string, 0, len(p.Items))
	for _, t := range p.Items {
		book := model.UnknownName
		if t.Book != nil {
			book = model.DisplayName(t.Book.BookName)
		}
		sign := "-"
		if t.Type.Incoming() {
			sign = "+"
		}
		rows = append(rows, []string{
			model.DisplayDate(t.CreatedAt),
			chart.Truncate(book, 24),
			string(t.Type),
			sign + dashboard.FormatCurrency(t.Amount),
			t.Status,
			chart.Truncate(model.DisplayNotes(t.Notes), 40),
		})
	}
	headers := []string{"Date", "Book", "Type", "Amount", "Status", "Notes"}
	if err := printLines(out, chart.FormatTable(headers, rows, map[int]bool{3: true})); err != nil {
		return err
	}
	return printf(out, "%s\n", pageFooter(p.Total, p.PageIndex, p.TotalPages))
}

func newDeleteUserCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "delete-user <id>",
		Short: "Delete a user with their books and transactions",
		Args:  cobra.ExactArgs(1),
		RunE:  runDeleteUserCmd,
	}
	cmd.Flags().BoolVarP(&deleteYes, "yes", "y", false, "skip the confirmation prompt")
	return cmd
}

func runDeleteUserCmd(cmd *cobra.Command, args []string) error {
	a, err := openApp(cmd, false)
	if err != nil {
		return err
	}
	defer a.Close()
	ctx := cmd.Context()
	if err := a.requireSession(ctx); err != nil {
		return err
	}
	id := args[0]
	ok, err := confirm(cmd.OutOrStdout(), fmt.Sprintf("Delete user %s and all their books and transactions?", id))
	if err != nil || !ok {
		return err
	}
	if err := a.api.DeleteUser(ctx, id); err != nil {
		return fmt.Errorf("failed to delete user: %w", err)
	}
	if cached, hit, err := a.users.Get(ctx, listcache.UsersKey); err == nil && hit {
		if _, err := a.users.Patch(ctx, listcache.UsersKey, cached, func(u model.User) bool { return u.ID != id }); err != nil {
			log.FromContext(ctx).Warn("cache patch failed", log.FieldError, err)
		}
	}
	a.audit.Record(ctx, audit.EventUserDeleted, id)
	return printf(cmd.OutOrStdout(), "User %s deleted\n", id)
}

func newBooksCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "books",
		Short: "List books with member counts",
		Args:  cobra.NoArgs,
		RunE:  runBooksCmd,
	}
	addListFlags(cmd)
	cmd.Flags().StringVar(&booksSort, "sort", string(model.SortNewest), "sort order (newest, oldest, popularity)")
	return cmd
}

func runBooksCmd(cmd *cobra.Command, _ []string) error {
	a, err := openApp(cmd, false)
	if err != nil {
		return err
	}
	defer a.Close()
	ctx := cmd.Context()
	if err := a.requireSession(ctx); err != nil {
		return err
	}
	sortKey, err := view.ParseSort(booksSort)
	if err != nil {
		return err
	}
	params, err := listParams(cmd, a, sortKey)
	if err != nil {
		return err
	}
	books, err := a.api.Books(ctx)
	if err != nil {
		return fmt.Errorf("failed to load books: %w", err)
	}
	ids := make([]string, len(books))
	for i, b := range books {
		ids[i] = b.ID
	}
	counts, err := a.api.MemberCounts(ctx, ids)
	if err != nil {
		return fmt.Errorf("failed to load member counts: %w", err)
	}
	for i := range books {
		books[i].MemberCount = counts[books[i].ID]
	}
	p := view.Apply(books, params)

	out := cmd.OutOrStdout()
	if listJSON {
		return writeJSON(out, p)
	}
	rows := make([][]string, 0, len(p.Items))
	for _, b := range p.Items {
		var name, email *string
		if b.Creator != nil {
			name, email = b.Creator.Name, b.Creator.Email
		}
		rows = append(rows, []string{
			b.ID,
			chart.Truncate(b.Title(), 28),
			chart.Truncate(model.DisplayName(name), 24),
			chart.Truncate(model.DisplayEmail(email), 28),
			strconv.Itoa(b.MemberCount),
			model.DisplayDate(b.CreatedAt),
		})
	}
	headers := []string{"ID", "Book", "Creator", "Email", "Members", "Created"}
	if err := printLines(out, chart.FormatTable(headers, rows, map[int]bool{4: true})); err != nil {
		return err
	}
	return printf(out, "%s\n", pageFooter(p.Total, p.PageIndex, p.TotalPages))
}

func newBookCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "book <id>",
		Short: "Show a book and its members",
		Args:  cobra.ExactArgs(1),
		RunE:  runBookCmd,
	}
	addListFlags(cmd)
	return cmd
}

func runBookCmd(cmd *cobra.Command, args []string) error {
	a, err := openApp(cmd, false)
	if err != nil {
		return err
	}
	defer a.Close()
	ctx := cmd.Context()
	if err := a.requireSession(ctx); err != nil {
		return err
	}
	params, err := listParams(cmd, a, model.SortNewest)
	if err != nil {
		return err
	}
	d, err := a.api.BookDetails(ctx, args[0])
	if err != nil {
		return fmt.Errorf("failed to load book: %w", err)
	}
	p := view.Apply(d.Members, params)

	out := cmd.OutOrStdout()
	if listJSON {
		return writeJSON(out, struct {
			BookName string                  `json:"bookName"`
			Members  view.Page[model.Member] `json:"members"`
		}{d.BookName, p})
	}
	count := d.MembersCount
	if count == 0 {
		count = len(d.Members)
	}
	if err := printf(out, "%s  %d members  created %s\n\n", model.DisplayName(&d.BookName), count, model.DisplayDate(d.CreatedAt)); err != nil {
		return err
	}
	rows := make([][]string, 0, len(p.Items))
	for _, m := range p.Items {
		rows = append(rows, []string{
			chart.Truncate(model.DisplayName(m.Name), 24),
			chart.Truncate(model.DisplayEmail(m.Email), 30),
			model.DisplayPhone(m.Mobile),
			dashboard.FormatCurrency(float64(model.DisplayBalance(m.Balance))),
			model.DisplayDate(m.CreatedAt),
		})
	}
	headers := []string{"Name", "Email", "Mobile", "Balance", "Joined"}
	if err := printLines(out, chart.FormatTable(headers, rows, map[int]bool{3: true})); err != nil {
		return err
	}
	return printf(out, "%s\n", pageFooter(p.Total, p.PageIndex, p.TotalPages))
}

func newDeleteBookCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "delete-book <id>",
		Short: "Delete a book",
		Args:  cobra.ExactArgs(1),
		RunE:  runDeleteBookCmd,
	}
	cmd.Flags().BoolVarP(&deleteYes, "yes", "y", false, "skip the confirmation prompt")
	return cmd
}

func runDeleteBookCmd(cmd *cobra.Command, args []string) error {
	a, err := openApp(cmd, false)
	if err != nil {
		return err
	}
	defer a.Close()
	ctx := cmd.Context()
	if err := a.requireSession(ctx); err != nil {
		return err
	}
	id := args[0]
	ok, err := confirm(cmd.OutOrStdout(), fmt.Sprintf("Delete book %s?", id))
	if err != nil || !ok {
		return err
	}
	if err := a.api.DeleteBook(ctx, id); err != nil {
		return fmt.Errorf("failed to delete book: %w", err)
	}
	a.audit.Record(ctx, audit.EventBookDeleted, id)
	return printf(cmd.OutOrStdout(), "Book %s deleted\n", id)
}

func promptValue(w io.Writer, prompt, value string) (string, error) {
	if v := strings.TrimSpace(value); v != "" {
		return v, nil
	}
	if err := printf(w, "%s", prompt); err != nil {
		return "", err
	}
	line, err := stdin.ReadString('\n')
	if err != nil && line == "" {
		return "", fmt.Errorf("failed to read input: %w", err)
	}
	v := strings.TrimSpace(line)
	if v == "" {
		return "", fmt.Errorf("%s is required", strings.TrimSuffix(strings.TrimSpace(prompt), ":"))
	}
	return v, nil
}

// readPassword reads a password without echo when stdin is a terminal.
func readPassword(w io.Writer, prompt string) (string, error) {
	fd := int(os.Stdin.Fd())
	if !term.IsTerminal(fd) {
		return promptValue(w, prompt, "")
	}
	if err := printf(w, "%s", prompt); err != nil {
		return "", err
	}
	raw, err := term.ReadPassword(fd)
	_ = printf(w, "\n")
	if err != nil {
		return "", fmt.Errorf("failed to read password: %w", err)
	}
	password := strings.TrimSpace(string(raw))
	if password == "" {
		return "", fmt.Errorf("password is required")
	}
	return password, nil
}

func confirm(w io.Writer, question string) (bool, error) {
	if deleteYes {
		return true, nil
	}
	if err := printf(w, "%s [y/N] ", question); err != nil {
		return false, err
	}
	line, err := stdin.ReadString('\n')
	if err != nil && line == "" {
		return false, fmt.Errorf("failed to read input: %w", err)
	}
	switch strings.ToLower(strings.TrimSpace(line)) {
	case "y", "yes":
		return true, nil
	}
	return false, printf(w, "Cancelled\n")
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}

func printLines(w io.Writer, lines []string) error {
	for _, line := range lines {
		if _, err := fmt.Fprintln(w, line); err != nil {
			return fmt.Errorf("failed to write output: %w", err)
		}
	}
	return nil
}

func printf(w io.Writer, format string, args ...any) error {
	if _, err := fmt.Fprintf(w, format, args...); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}
