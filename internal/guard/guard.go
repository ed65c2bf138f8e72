// Package guard decides what the console shows for a location given the
// session state.
package guard

import (
	"net/url"
	"strings"

	"github.com/verte-zerg/ledgeradmin/internal/session"
)

// Route paths.
const (
	PathRoot      = "/"
	PathLogin     = "/login"
	PathSignup    = "/signup"
	PathDashboard = "/dashboard"
	PathUsers     = "/users"
	PathBooks     = "/books"
)

// Screen identifies the view mounted for a route.
type Screen int

const (
	ScreenDashboard Screen = iota
	ScreenLogin
	ScreenSignup
	ScreenUsers
	ScreenUserDetails
	ScreenBooks
	ScreenBookDetails
)

func (s Screen) String() string {
	switch s {
	case ScreenLogin:
		return "login"
	case ScreenSignup:
		return "signup"
	case ScreenUsers:
		return "users"
	case ScreenUserDetails:
		return "user"
	case ScreenBooks:
		return "books"
	case ScreenBookDetails:
		return "book"
	default:
		return "dashboard"
	}
}

// Route is a resolved location.
type Route struct {
	Screen Screen
	Path   string
	Public bool

	// Param is the :userId or :bookId segment.
	Param string
}

// Resolve maps a location to a route. The root and unknown paths resolve
// to the dashboard. A query string is ignored.
func Resolve(location string) Route {
	path := location
	if i := strings.IndexAny(path, "?#"); i >= 0 {
		path = path[:i]
	}
	path = "/" + strings.Trim(path, "/")
	parts := strings.Split(strings.TrimPrefix(path, "/"), "/")

	switch {
	case path == PathLogin:
		return Route{Screen: ScreenLogin, Path: PathLogin, Public: true}
	case path == PathSignup:
		return Route{Screen: ScreenSignup, Path: PathSignup, Public: true}
	case path == PathUsers:
		return Route{Screen: ScreenUsers, Path: PathUsers}
	case path == PathBooks:
		return Route{Screen: ScreenBooks, Path: PathBooks}
	case len(parts) == 2 && parts[0] == "users" && parts[1] != "":
		return Route{Screen: ScreenUserDetails, Path: path, Param: unescape(parts[1])}
	case len(parts) == 2 && parts[0] == "books" && parts[1] != "":
		return Route{Screen: ScreenBookDetails, Path: path, Param: unescape(parts[1])}
	default:
		return Route{Screen: ScreenDashboard, Path: PathDashboard}
	}
}

func unescape(seg string) string {
	if v, err := url.PathUnescape(seg); err == nil {
		return v
	}
	return seg
}

// UserPath returns the details location of a user.
func UserPath(id string) string {
	return PathUsers + "/" + url.PathEscape(id)
}

// BookPath returns the details location of a book.
func BookPath(id string) string {
	return PathBooks + "/" + url.PathEscape(id)
}

// Action is what the console does with a location.
type Action int

const (
	// Placeholder shows a loading indicator and nothing else.
	Placeholder Action = iota
	Render
	Redirect
)

func (a Action) String() string {
	switch a {
	case Render:
		return "render"
	case Redirect:
		return "redirect"
	default:
		return "placeholder"
	}
}

// Decision is the outcome of Decide.
type Decision struct {
	Action Action
	Route  Route

	// Target is the redirect location.
	Target string
	// From is the location that was requested before a login redirect.
	From string
}

// Decide applies the session state to a location.
func Decide(state session.State, location string) Decision {
	route := Resolve(location)
	switch state {
	case session.Loading:
		return Decision{Action: Placeholder, Route: route}
	case session.Authenticated:
		if route.Public {
			return Decision{Action: Redirect, Route: Resolve(PathDashboard), Target: PathDashboard}
		}
		return Decision{Action: Render, Route: route}
	default:
		if route.Public {
			return Decision{Action: Render, Route: route}
		}
		return Decision{
			Action: Redirect,
			Route:  Resolve(PathLogin),
			Target: PathLogin + "?return=" + url.QueryEscape(route.Path),
			From:   route.Path,
		}
	}
}

// ReturnTo is the post-login destination for a decision.
func ReturnTo(d Decision) string {
	if d.From != "" {
		return d.From
	}
	return PathDashboard
}

// ReturnFromTarget extracts the return location from a login target.
func ReturnFromTarget(target string) string {
	u, err := url.Parse(target)
	if err != nil {
		return PathDashboard
	}
	if r := u.Query().Get("return"); r != "" && !Resolve(r).Public {
		return Resolve(r).Path
	}
	return PathDashboard
}
