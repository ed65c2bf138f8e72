package session

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/verte-zerg/ledgeradmin/internal/store"
)

type failingTokens struct {
	MemoryTokens
	loadErr  error
	clearErr error
}

func (f *failingTokens) LoadToken(ctx context.Context) (string, error) {
	if f.loadErr != nil {
		return "", f.loadErr
	}
	return f.MemoryTokens.LoadToken(ctx)
}

func (f *failingTokens) ClearToken(ctx context.Context) error {
	if f.clearErr != nil {
		return f.clearErr
	}
	return f.MemoryTokens.ClearToken(ctx)
}

func TestInitializeWithoutToken(t *testing.T) {
	s := New(&MemoryTokens{})
	if snap := s.Snapshot(); !snap.IsLoading || snap.IsAuthenticated {
		t.Fatalf("expected loading snapshot, got %+v", snap)
	}
	if err := s.Initialize(context.Background()); err != nil {
		t.Fatalf("initialize: %v", err)
	}
	if s.State() != Unauthenticated {
		t.Fatalf("expected unauthenticated, got %s", s.State())
	}
	if _, ok := s.Token(); ok {
		t.Fatalf("expected no token")
	}
}

func TestInitializeWithStoredToken(t *testing.T) {
	tokens := &MemoryTokens{}
	_ = tokens.SaveToken(context.Background(), "persisted")
	s := New(tokens)
	if err := s.Initialize(context.Background()); err != nil {
		t.Fatalf("initialize: %v", err)
	}
	token, ok := s.Token()
	if !ok || token != "persisted" {
		t.Fatalf("expected persisted token, got %q %v", token, ok)
	}
}

func TestInitializeRunsOnce(t *testing.T) {
	s := New(&MemoryTokens{})
	ctx := context.Background()
	if err := s.Initialize(ctx); err != nil {
		t.Fatalf("initialize: %v", err)
	}
	if err := s.Login(ctx, "tok"); err != nil {
		t.Fatalf("login: %v", err)
	}
	if err := s.Initialize(ctx); !errors.Is(err, ErrAlreadyInitialized) {
		t.Fatalf("expected ErrAlreadyInitialized, got %v", err)
	}
	if s.State() != Authenticated {
		t.Fatalf("second initialize must not change state")
	}
}

func TestInitializeLoadFailure(t *testing.T) {
	s := New(&failingTokens{loadErr: errors.New("disk gone")})
	if err := s.Initialize(context.Background()); err == nil {
		t.Fatalf("expected error")
	}
	if s.State() != Unauthenticated {
		t.Fatalf("expected unauthenticated after load failure")
	}
}

func TestLoginBeforeInitialize(t *testing.T) {
	s := New(&MemoryTokens{})
	if err := s.Login(context.Background(), "tok"); !errors.Is(err, ErrNotInitialized) {
		t.Fatalf("expected ErrNotInitialized, got %v", err)
	}
	if err := s.Logout(context.Background()); !errors.Is(err, ErrNotInitialized) {
		t.Fatalf("expected ErrNotInitialized, got %v", err)
	}
	if s.State() != Loading {
		t.Fatalf("expected loading to persist")
	}
}

func TestLoginRejectsEmptyToken(t *testing.T) {
	s := New(&MemoryTokens{})
	_ = s.Initialize(context.Background())
	if err := s.Login(context.Background(), ""); !errors.Is(err, ErrEmptyToken) {
		t.Fatalf("expected ErrEmptyToken, got %v", err)
	}
}

func TestLogoutIdempotent(t *testing.T) {
	tokens := &MemoryTokens{}
	s := New(tokens)
	ctx := context.Background()
	_ = s.Initialize(ctx)
	if err := s.Login(ctx, "tok"); err != nil {
		t.Fatalf("login: %v", err)
	}
	for i := 0; i < 2; i++ {
		if err := s.Logout(ctx); err != nil {
			t.Fatalf("logout %d: %v", i, err)
		}
		if s.State() != Unauthenticated {
			t.Fatalf("logout %d: expected unauthenticated", i)
		}
		if _, ok := s.Token(); ok {
			t.Fatalf("logout %d: credential still attached", i)
		}
	}
	if persisted, _ := tokens.LoadToken(ctx); persisted != "" {
		t.Fatalf("expected persisted token erased, got %q", persisted)
	}
}

func TestLogoutDropsTokenWhenStoreFails(t *testing.T) {
	tokens := &failingTokens{clearErr: errors.New("read-only")}
	s := New(tokens)
	ctx := context.Background()
	_ = s.Initialize(ctx)
	_ = s.Login(ctx, "tok")
	if err := s.Logout(ctx); err == nil {
		t.Fatalf("expected error")
	}
	if _, ok := s.Token(); ok {
		t.Fatalf("expected in-memory token dropped")
	}
}

func TestSubscribeReceivesTransitions(t *testing.T) {
	s := New(&MemoryTokens{})
	ctx := context.Background()
	var seen []State
	unsubscribe := s.Subscribe(func(st State) { seen = append(seen, st) })
	_ = s.Initialize(ctx)
	_ = s.Login(ctx, "tok")
	_ = s.Logout(ctx)
	_ = s.Logout(ctx)
	unsubscribe()
	_ = s.Login(ctx, "tok")

	want := []State{Unauthenticated, Authenticated, Unauthenticated}
	if len(seen) != len(want) {
		t.Fatalf("expected %v, got %v", want, seen)
	}
	for i := range want {
		if seen[i] != want[i] {
			t.Fatalf("expected %v, got %v", want, seen)
		}
	}
}

func TestPersistsThroughSQLiteStore(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ledgeradmin.db")
	ctx := context.Background()
	st, err := store.Open(path)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	s := New(st)
	_ = s.Initialize(ctx)
	if err := s.Login(ctx, "sqlite-token"); err != nil {
		t.Fatalf("login: %v", err)
	}
	_ = st.Close()

	st, err = store.Open(path)
	if err != nil {
		t.Fatalf("reopen store: %v", err)
	}
	defer func() { _ = st.Close() }()
	restored := New(st)
	if err := restored.Initialize(ctx); err != nil {
		t.Fatalf("initialize: %v", err)
	}
	if restored.State() != Authenticated {
		t.Fatalf("expected restored session")
	}
}

func TestClaimsDecodesJWT(t *testing.T) {
	exp := time.Now().Add(time.Hour).Truncate(time.Second)
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub":   "admin-1",
		"email": "admin@example.com",
		"exp":   exp.Unix(),
	}).SignedString([]byte("not-our-key"))
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	s := New(&MemoryTokens{})
	ctx := context.Background()
	_ = s.Initialize(ctx)
	_ = s.Login(ctx, signed)

	c, ok := s.Claims()
	if !ok {
		t.Fatalf("expected claims")
	}
	if c.Subject != "admin-1" || c.Email != "admin@example.com" {
		t.Fatalf("unexpected claims %+v", c)
	}
	if !c.ExpiresAt.Equal(exp) || c.Expired(time.Now()) {
		t.Fatalf("unexpected expiry %v", c.ExpiresAt)
	}
}

func TestClaimsOpaqueToken(t *testing.T) {
	if _, ok := DecodeClaims("opaque-token"); ok {
		t.Fatalf("expected opaque token to decode as absent")
	}
}
