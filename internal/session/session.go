// Package session holds the console's authentication state.
package session

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/verte-zerg/ledgeradmin/internal/log"
)

// State is the session lifecycle state.
type State int

const (
	// Loading is the state before the persisted token has been read.
	Loading State = iota
	// Unauthenticated means no token is held.
	Unauthenticated
	// Authenticated means a non-empty token is persisted and attached to calls.
	Authenticated
)

func (s State) String() string {
	switch s {
	case Loading:
		return "loading"
	case Unauthenticated:
		return "unauthenticated"
	case Authenticated:
		return "authenticated"
	}
	return fmt.Sprintf("state(%d)", int(s))
}

var (
	// ErrAlreadyInitialized is returned by a second Initialize call.
	ErrAlreadyInitialized = errors.New("session already initialized")
	// ErrNotInitialized is returned when Login or Logout run before Initialize.
	ErrNotInitialized = errors.New("session not initialized")
	// ErrEmptyToken is returned when Login receives an empty token.
	ErrEmptyToken = errors.New("empty token")
)

// TokenStore persists the bearer token.
type TokenStore interface {
	LoadToken(ctx context.Context) (string, error)
	SaveToken(ctx context.Context, token string) error
	ClearToken(ctx context.Context) error
}

// Snapshot is a consistent view of the session.
type Snapshot struct {
	State           State
	IsAuthenticated bool
	IsLoading       bool
}

// Store is the process-wide session. Construct one at startup and share it.
type Store struct {
	tokens TokenStore
	log    *log.Logger

	mu        sync.RWMutex
	state     State
	token     string
	listeners map[int]func(State)
	nextID    int
}

// Option configures a Store.
type Option func(*Store)

// WithLogger sets the logger.
func WithLogger(l *log.Logger) Option {
	return func(s *Store) {
		if l != nil {
			s.log = l.WithComponent(log.ComponentSession)
		}
	}
}

// New returns a Store in the Loading state.
func New(tokens TokenStore, opts ...Option) *Store {
	s := &Store{
		tokens:    tokens,
		log:       log.Nop(),
		state:     Loading,
		listeners: map[int]func(State){},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Initialize resolves the Loading state from the persisted token.
// A load failure resolves to Unauthenticated and is returned.
func (s *Store) Initialize(ctx context.Context) error {
	s.mu.Lock()
	if s.state != Loading {
		s.mu.Unlock()
		return ErrAlreadyInitialized
	}
	token, err := s.tokens.LoadToken(ctx)
	if err != nil {
		s.state = Unauthenticated
		s.mu.Unlock()
		s.log.WarnContext(ctx, "failed to load persisted token", log.FieldError, err)
		s.notify(Unauthenticated)
		return fmt.Errorf("load token: %w", err)
	}
	s.token = token
	if token != "" {
		s.state = Authenticated
	} else {
		s.state = Unauthenticated
	}
	next := s.state
	s.mu.Unlock()

	s.log.InfoContext(ctx, "session resolved", log.FieldState, next.String())
	s.notify(next)
	return nil
}

// Login persists token and marks the session authenticated. The token is opaque.
func (s *Store) Login(ctx context.Context, token string) error {
	if token == "" {
		return ErrEmptyToken
	}
	s.mu.Lock()
	if s.state == Loading {
		s.mu.Unlock()
		return ErrNotInitialized
	}
	if err := s.tokens.SaveToken(ctx, token); err != nil {
		s.mu.Unlock()
		return fmt.Errorf("save token: %w", err)
	}
	s.token = token
	s.state = Authenticated
	s.mu.Unlock()

	s.log.InfoContext(ctx, "logged in")
	s.notify(Authenticated)
	return nil
}

// Logout erases the token. Calling it while logged out only re-confirms the cleared state.
// The in-memory token is dropped even if erasing the persisted copy fails.
func (s *Store) Logout(ctx context.Context) error {
	s.mu.Lock()
	if s.state == Loading {
		s.mu.Unlock()
		return ErrNotInitialized
	}
	wasAuthenticated := s.state == Authenticated
	err := s.tokens.ClearToken(ctx)
	s.token = ""
	s.state = Unauthenticated
	s.mu.Unlock()

	if err != nil {
		s.log.WarnContext(ctx, "failed to erase persisted token", log.FieldError, err)
		err = fmt.Errorf("clear token: %w", err)
	}
	if wasAuthenticated {
		s.log.InfoContext(ctx, "logged out")
		s.notify(Unauthenticated)
	}
	return err
}

// Token returns the bearer credential when authenticated.
func (s *Store) Token() (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.state != Authenticated || s.token == "" {
		return "", false
	}
	return s.token, true
}

// State returns the current state.
func (s *Store) State() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

// Snapshot returns the state with its derived flags.
func (s *Store) Snapshot() Snapshot {
	st := s.State()
	return Snapshot{
		State:           st,
		IsAuthenticated: st == Authenticated,
		IsLoading:       st == Loading,
	}
}

// Subscribe registers fn for state transitions and returns a function that removes it.
func (s *Store) Subscribe(fn func(State)) func() {
	s.mu.Lock()
	id := s.nextID
	s.nextID++
	s.listeners[id] = fn
	s.mu.Unlock()
	return func() {
		s.mu.Lock()
		delete(s.listeners, id)
		s.mu.Unlock()
	}
}

func (s *Store) notify(st State) {
	s.mu.RLock()
	fns := make([]func(State), 0, len(s.listeners))
	for _, fn := range s.listeners {
		fns = append(fns, fn)
	}
	s.mu.RUnlock()
	for _, fn := range fns {
		fn(st)
	}
}

// MemoryTokens is an in-process TokenStore.
type MemoryTokens struct {
	mu    sync.Mutex
	token string
}

// LoadToken implements TokenStore.
func (m *MemoryTokens) LoadToken(context.Context) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.token, nil
}

// SaveToken implements TokenStore.
func (m *MemoryTokens) SaveToken(_ context.Context, token string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.token = token
	return nil
}

// ClearToken implements TokenStore.
func (m *MemoryTokens) ClearToken(context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.token = ""
	return nil
}
