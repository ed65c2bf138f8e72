package gateway

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// ErrNoToken means a protected call was attempted without a session token.
var ErrNoToken = errors.New("no session token")

// AuthError reports a missing, expired or rejected bearer token.
type AuthError struct {
	Op      string
	Status  int
	Message string
	Err     error
}

func (e *AuthError) Error() string {
	switch {
	case e.Err != nil:
		return fmt.Sprintf("%s: %v", e.Op, e.Err)
	case e.Message != "":
		return fmt.Sprintf("%s: unauthorized (%d): %s", e.Op, e.Status, e.Message)
	}
	return fmt.Sprintf("%s: unauthorized (%d)", e.Op, e.Status)
}

func (e *AuthError) Unwrap() error { return e.Err }

// NetworkError reports a failed request or a non-success envelope.
type NetworkError struct {
	Op      string
	Status  int
	Message string
	Err     error
}

func (e *NetworkError) Error() string {
	var b strings.Builder
	b.WriteString(e.Op)
	switch {
	case e.Status != 0 && http.StatusText(e.Status) != "":
		fmt.Fprintf(&b, ": %d %s", e.Status, http.StatusText(e.Status))
	case e.Status != 0:
		fmt.Fprintf(&b, ": status %d", e.Status)
	default:
		b.WriteString(": request failed")
	}
	if e.Message != "" {
		b.WriteString(": " + e.Message)
	}
	if e.Err != nil {
		b.WriteString(": " + e.Err.Error())
	}
	return b.String()
}

func (e *NetworkError) Unwrap() error { return e.Err }

// IsAuth reports whether err is an AuthError.
func IsAuth(err error) bool {
	var ae *AuthError
	return errors.As(err, &ae)
}

// IsNotFound reports whether err is a 404 from the API.
func IsNotFound(err error) bool {
	var ne *NetworkError
	return errors.As(err, &ne) && ne.Status == http.StatusNotFound
}

// UserMessage returns a short message for display.
func UserMessage(err error) string {
	if err == nil {
		return ""
	}
	var ae *AuthError
	if errors.As(err, &ae) {
		return "Session expired. Please log in again."
	}
	var ne *NetworkError
	if errors.As(err, &ne) {
		if ne.Message != "" {
			return ne.Message
		}
		if ne.Status == http.StatusNotFound {
			return "Not found."
		}
		return "Failed to reach the server. Please try again later."
	}
	return err.Error()
}
