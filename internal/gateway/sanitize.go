package gateway

import (
	"html"
	"strings"

	"github.com/microcosm-cc/bluemonday"

	"github.com/verte-zerg/ledgeradmin/internal/model"
)

// strictPolicy strips all markup from API text fields.
var strictPolicy = bluemonday.StrictPolicy()

func sanitizeText(s string) string {
	if !strings.ContainsAny(s, "<>&") {
		return s
	}
	return strings.TrimSpace(html.UnescapeString(strictPolicy.Sanitize(s)))
}

func sanitizePtr(s *string) *string {
	if s == nil {
		return nil
	}
	v := sanitizeText(*s)
	return &v
}

func sanitizeUsers(users []model.User) []model.User {
	for i := range users {
		users[i].Name = sanitizePtr(users[i].Name)
		users[i].Email = sanitizePtr(users[i].Email)
		users[i].Phone = sanitizePtr(users[i].Phone)
	}
	return users
}

func sanitizeBooks(books []model.Book) []model.Book {
	for i := range books {
		books[i].Name = sanitizePtr(books[i].Name)
		books[i].BookName = sanitizePtr(books[i].BookName)
		if books[i].Creator != nil {
			books[i].Creator.Name = sanitizePtr(books[i].Creator.Name)
			books[i].Creator.Email = sanitizePtr(books[i].Creator.Email)
		}
	}
	return books
}

func sanitizeMembers(members []model.Member) []model.Member {
	for i := range members {
		members[i].Name = sanitizePtr(members[i].Name)
		members[i].Email = sanitizePtr(members[i].Email)
		members[i].Mobile = sanitizePtr(members[i].Mobile)
	}
	return members
}

func sanitizeTransactions(txs []model.Transaction) []model.Transaction {
	for i := range txs {
		txs[i].Notes = sanitizePtr(txs[i].Notes)
		txs[i].Status = sanitizeText(txs[i].Status)
		if txs[i].Book != nil {
			txs[i].Book.BookName = sanitizePtr(txs[i].Book.BookName)
		}
	}
	return txs
}
