package tui

import (
	"context"
	"errors"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/verte-zerg/ledgeradmin/internal/gateway"
	"github.com/verte-zerg/ledgeradmin/internal/guard"
)

type authResultMsg struct {
	token string
	err   error
}

type loginFailedMsg struct{ err error }

// authScreen is the login or signup form.
type authScreen struct {
	deps   *deps
	ctx    context.Context
	signup bool

	inputs     []textinput.Model
	index      int
	submitting bool
	errMsg     string
	notice     string
}

func newLoginScreen(ctx context.Context, d *deps, notice string) *authScreen {
	s := &authScreen{deps: d, ctx: ctx, notice: notice}
	s.inputs = []textinput.Model{
		newInput("Email:    "),
		newPasswordInput("Password: "),
	}
	return s
}

func newSignupScreen(ctx context.Context, d *deps) *authScreen {
	s := &authScreen{deps: d, ctx: ctx, signup: true}
	s.inputs = []textinput.Model{
		newInput("Username: "),
		newInput("Email:    "),
		newPasswordInput("Password: "),
	}
	return s
}

func newPasswordInput(prompt string) textinput.Model {
	input := newInput(prompt)
	input.EchoMode = textinput.EchoPassword
	input.EchoCharacter = '•'
	return input
}

func (s *authScreen) Init() tea.Cmd {
	return s.setIndex(0)
}

func (s *authScreen) Capturing() bool { return true }

func (s *authScreen) Help() string {
	if s.signup {
		return "tab/shift+tab: next field  enter: sign up  ctrl+n: log in instead  ctrl+c: quit"
	}
	return "tab/shift+tab: next field  enter: log in  ctrl+n: create an account  ctrl+c: quit"
}

func (s *authScreen) Update(msg tea.Msg) (screen, tea.Cmd) {
	switch msg := msg.(type) {
	case authResultMsg:
		s.submitting = false
		if msg.err != nil {
			s.errMsg = authErrorText(msg.err)
			return s, nil
		}
		return s, func() tea.Msg { return loggedInMsg{token: msg.token} }
	case loginFailedMsg:
		s.submitting = false
		s.errMsg = msg.err.Error()
		return s, nil
	case tea.KeyMsg:
		if s.submitting {
			return s, nil
		}
		switch msg.Type {
		case tea.KeyEnter:
			return s, s.submit()
		case tea.KeyTab, tea.KeyDown:
			return s, s.setIndex(s.index + 1)
		case tea.KeyShiftTab, tea.KeyUp:
			return s, s.setIndex(s.index - 1)
		case tea.KeyCtrlN:
			if s.signup {
				return s, navigateTo(guard.PathLogin)
			}
			return s, navigateTo(guard.PathSignup)
		}
		var cmd tea.Cmd
		s.inputs[s.index], cmd = s.inputs[s.index].Update(msg)
		return s, cmd
	}
	var cmd tea.Cmd
	s.inputs[s.index], cmd = s.inputs[s.index].Update(msg)
	return s, cmd
}

func (s *authScreen) setIndex(idx int) tea.Cmd {
	count := len(s.inputs)
	if idx < 0 {
		idx = count - 1
	}
	if idx >= count {
		idx = 0
	}
	s.index = idx
	var cmd tea.Cmd
	for i := range s.inputs {
		if i == s.index {
			cmd = s.inputs[i].Focus()
		} else {
			s.inputs[i].Blur()
		}
	}
	return cmd
}

func (s *authScreen) values() []string {
	out := make([]string, len(s.inputs))
	for i, in := range s.inputs {
		out[i] = in.Value()
	}
	return out
}

func (s *authScreen) submit() tea.Cmd {
	vals := s.values()
	for i, v := range vals {
		if strings.TrimSpace(v) == "" {
			s.errMsg = "All fields are required."
			return s.setIndex(i)
		}
	}
	s.errMsg = ""
	s.notice = ""
	s.submitting = true
	api, ctx := s.deps.api, s.ctx
	if s.signup {
		username, email, password := strings.TrimSpace(vals[0]), strings.TrimSpace(vals[1]), vals[2]
		return func() tea.Msg {
			token, err := api.Signup(ctx, username, email, password)
			return authResultMsg{token: token, err: err}
		}
	}
	email, password := strings.TrimSpace(vals[0]), vals[1]
	return func() tea.Msg {
		token, err := api.Login(ctx, email, password)
		return authResultMsg{token: token, err: err}
	}
}

// authErrorText prefers the server message; a rejected login is not an
// expired session.
func authErrorText(err error) string {
	var authErr *gateway.AuthError
	if errors.As(err, &authErr) {
		if authErr.Message != "" {
			return authErr.Message
		}
		return "Invalid email or password."
	}
	return gateway.UserMessage(err)
}

func (s *authScreen) View(width, height int) string {
	title := "Log in to Ledger Admin"
	if s.signup {
		title = "Create an admin account"
	}
	lines := []string{titleStyle.Render(title), ""}
	if s.notice != "" {
		lines = append(lines, errorStyle.Render(s.notice), "")
	}
	for _, in := range s.inputs {
		lines = append(lines, in.View())
	}
	lines = append(lines, "")
	switch {
	case s.submitting:
		lines = append(lines, headerStyle.Render("Signing in..."))
	case s.errMsg != "":
		lines = append(lines, errorStyle.Render(s.errMsg))
	}
	lines = append(lines, headerStyle.Render(s.Help()))
	return renderModal(width, height, lines...)
}
