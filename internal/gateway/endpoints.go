package gateway

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/verte-zerg/ledgeradmin/internal/log"
	"github.com/verte-zerg/ledgeradmin/internal/model"
)

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type signupRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Login exchanges credentials for a token.
func (c *Client) Login(ctx context.Context, email, password string) (string, error) {
	env, err := c.do(ctx, request{
		op:     "login",
		method: http.MethodPost,
		path:   "/login",
		body:   loginRequest{Email: email, Password: password},
	})
	if err != nil {
		return "", err
	}
	if env.Token == "" {
		return "", &NetworkError{Op: "login", Err: errors.New("missing token")}
	}
	return env.Token, nil
}

// Signup creates an admin account and returns its token.
func (c *Client) Signup(ctx context.Context, username, email, password string) (string, error) {
	env, err := c.do(ctx, request{
		op:     "signup",
		method: http.MethodPost,
		path:   "/signup",
		body:   signupRequest{Username: username, Email: email, Password: password},
	})
	if err != nil {
		return "", err
	}
	if env.Token == "" {
		return "", &NetworkError{Op: "signup", Err: errors.New("missing token")}
	}
	return env.Token, nil
}

// Dashboard fetches the aggregate counters.
func (c *Client) Dashboard(ctx context.Context) (model.DashboardAggregate, error) {
	env, err := c.do(ctx, request{op: "dashboard", method: http.MethodGet, path: "/dashboard", auth: true})
	if err != nil {
		return model.DashboardAggregate{}, err
	}
	return decodeData[model.DashboardAggregate]("dashboard", env)
}

// Users fetches every user.
func (c *Client) Users(ctx context.Context) ([]model.User, error) {
	env, err := c.do(ctx, request{op: "users", method: http.MethodGet, path: "/users", auth: true})
	if err != nil {
		return nil, err
	}
	data, err := decodeData[struct {
		Users []model.User `json:"users"`
	}]("users", env)
	if err != nil {
		return nil, err
	}
	return sanitizeUsers(data.Users), nil
}

// User fetches one user.
func (c *Client) User(ctx context.Context, id string) (model.User, error) {
	env, err := c.do(ctx, request{op: "user", method: http.MethodGet, path: "/users/" + url.PathEscape(id), auth: true})
	if err != nil {
		return model.User{}, err
	}
	u, err := decodeData[model.User]("user", env)
	if err != nil {
		return model.User{}, err
	}
	return sanitizeUsers([]model.User{u})[0], nil
}

// UserTransactions fetches the transactions of a user.
func (c *Client) UserTransactions(ctx context.Context, id string) ([]model.Transaction, error) {
	env, err := c.do(ctx, request{
		op:     "user transactions",
		method: http.MethodGet,
		path:   "/users/" + url.PathEscape(id) + "/transactions",
		auth:   true,
	})
	if err != nil {
		return nil, err
	}
	txs, err := decodeData[[]model.Transaction]("user transactions", env)
	if err != nil {
		return nil, err
	}
	return sanitizeTransactions(txs), nil
}

// DeleteUser removes a user with their books and transactions.
func (c *Client) DeleteUser(ctx context.Context, id string) error {
	_, err := c.do(ctx, request{
		op:      "delete user",
		method:  http.MethodDelete,
		path:    "/users/" + url.PathEscape(id),
		auth:    true,
		emptyOK: true,
	})
	return err
}

// Books fetches every book with its creator.
func (c *Client) Books(ctx context.Context) ([]model.Book, error) {
	env, err := c.do(ctx, request{op: "books", method: http.MethodGet, path: "/books/creator", auth: true})
	if err != nil {
		return nil, err
	}
	books, err := decodeData[[]model.Book]("books", env)
	if err != nil {
		return nil, err
	}
	return sanitizeBooks(books), nil
}

// BookDetails fetches a book with its members.
func (c *Client) BookDetails(ctx context.Context, id string) (model.BookDetails, error) {
	env, err := c.do(ctx, request{
		op:     "book details",
		method: http.MethodGet,
		path:   "/books/" + url.PathEscape(id) + "/transactions",
		auth:   true,
	})
	if err != nil {
		return model.BookDetails{}, err
	}
	d, err := decodeData[model.BookDetails]("book details", env)
	if err != nil {
		return model.BookDetails{}, err
	}
	d.BookName = sanitizeText(d.BookName)
	d.Members = sanitizeMembers(d.Members)
	return d, nil
}

// DeleteBook removes a book.
func (c *Client) DeleteBook(ctx context.Context, id string) error {
	_, err := c.do(ctx, request{
		op:      "delete book",
		method:  http.MethodDelete,
		path:    "/books/" + url.PathEscape(id),
		auth:    true,
		emptyOK: true,
	})
	return err
}

// MemberCounts fetches the member count of each book with bounded concurrency.
// A failed lookup leaves that book at 0; only an AuthError aborts the fan-out.
func (c *Client) MemberCounts(ctx context.Context, bookIDs []string) (map[string]int, error) {
	counts := make(map[string]int, len(bookIDs))
	var mu sync.Mutex

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.concurrency)
	for _, id := range bookIDs {
		g.Go(func() error {
			d, err := c.BookDetails(gctx, id)
			if err != nil {
				if IsAuth(err) {
					return err
				}
				c.log.WarnContext(gctx, "member count unavailable", log.FieldBookID, id, log.FieldError, err)
				return nil
			}
			n := d.MembersCount
			if n == 0 {
				n = len(d.Members)
			}
			mu.Lock()
			counts[id] = n
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return counts, err
	}
	return counts, nil
}
