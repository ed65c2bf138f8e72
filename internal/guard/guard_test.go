package guard

import (
	"testing"

	"github.com/verte-zerg/ledgeradmin/internal/session"
)

func TestResolve(t *testing.T) {
	cases := []struct {
		location string
		screen   Screen
		path     string
		param    string
		public   bool
	}{
		{"/", ScreenDashboard, PathDashboard, "", false},
		{"", ScreenDashboard, PathDashboard, "", false},
		{"/dashboard", ScreenDashboard, PathDashboard, "", false},
		{"/nowhere/at/all", ScreenDashboard, PathDashboard, "", false},
		{"/login", ScreenLogin, PathLogin, "", true},
		{"/login?return=%2Fusers", ScreenLogin, PathLogin, "", true},
		{"/signup/", ScreenSignup, PathSignup, "", true},
		{"/users", ScreenUsers, PathUsers, "", false},
		{"/users/u%201", ScreenUserDetails, "/users/u%201", "u 1", false},
		{"/books", ScreenBooks, PathBooks, "", false},
		{"/books/b1", ScreenBookDetails, "/books/b1", "b1", false},
		{"/books/b1/extra", ScreenDashboard, PathDashboard, "", false},
	}
	for _, tc := range cases {
		t.Run(tc.location, func(t *testing.T) {
			r := Resolve(tc.location)
			if r.Screen != tc.screen || r.Path != tc.path || r.Param != tc.param || r.Public != tc.public {
				t.Fatalf("unexpected route %+v", r)
			}
		})
	}
}

func TestLoadingNeverRenders(t *testing.T) {
	for _, loc := range []string{"/", "/users", "/books/b1", "/login", "/signup"} {
		d := Decide(session.Loading, loc)
		if d.Action != Placeholder {
			t.Fatalf("%s: expected placeholder, got %s", loc, d.Action)
		}
	}
}

func TestUnauthenticatedRedirectsToLogin(t *testing.T) {
	d := Decide(session.Unauthenticated, "/users/u1")
	if d.Action != Redirect {
		t.Fatalf("expected redirect, got %s", d.Action)
	}
	if d.Route.Screen != ScreenLogin {
		t.Fatalf("expected login route, got %s", d.Route.Screen)
	}
	if d.Target != "/login?return=%2Fusers%2Fu1" {
		t.Fatalf("unexpected target %q", d.Target)
	}
	if d.From != "/users/u1" || ReturnTo(d) != "/users/u1" {
		t.Fatalf("unexpected from %q", d.From)
	}
	if got := ReturnFromTarget(d.Target); got != "/users/u1" {
		t.Fatalf("unexpected return %q", got)
	}
}

func TestUnauthenticatedRendersPublicRoutes(t *testing.T) {
	for _, loc := range []string{"/login", "/signup"} {
		if d := Decide(session.Unauthenticated, loc); d.Action != Render {
			t.Fatalf("%s: expected render, got %s", loc, d.Action)
		}
	}
}

func TestAuthenticated(t *testing.T) {
	if d := Decide(session.Authenticated, "/books/b1"); d.Action != Render || d.Route.Param != "b1" {
		t.Fatalf("unexpected decision %+v", d)
	}
	d := Decide(session.Authenticated, "/login")
	if d.Action != Redirect || d.Target != PathDashboard {
		t.Fatalf("expected redirect to dashboard, got %+v", d)
	}
}

func TestReturnToDefaults(t *testing.T) {
	if got := ReturnTo(Decision{}); got != PathDashboard {
		t.Fatalf("unexpected %q", got)
	}
	if got := ReturnFromTarget("/login?return=%2Fsignup"); got != PathDashboard {
		t.Fatalf("public return must fall back, got %q", got)
	}
	if got := ReturnFromTarget("/login"); got != PathDashboard {
		t.Fatalf("unexpected %q", got)
	}
}

func TestDetailPaths(t *testing.T) {
	if got := UserPath("a/b"); got != "/users/a%2Fb" {
		t.Fatalf("unexpected %q", got)
	}
	if r := Resolve(BookPath("x y")); r.Param != "x y" {
		t.Fatalf("unexpected param %q", r.Param)
	}
}
