// Package model defines shared data structures.
package model

import (
	"encoding/json"
	"strings"
	"time"
)

// Timestamp is an RFC 3339 time that decodes empty or malformed values
// to the zero time instead of failing.
type Timestamp time.Time

// UnmarshalJSON implements json.Unmarshaler.
func (t *Timestamp) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		*t = Timestamp{}
		return nil
	}
	parsed, err := time.Parse(time.RFC3339, s)
	if err != nil {
		*t = Timestamp{}
		return nil
	}
	*t = Timestamp(parsed)
	return nil
}

// ViewMode selects how the user list is laid out.
type ViewMode string

const (
	// ViewList renders one row per record.
	ViewList ViewMode = "list"
	// ViewGrid renders records as cards.
	ViewGrid ViewMode = "grid"
)

// ParseViewMode returns the mode for s, falling back to ViewList.
func ParseViewMode(s string) ViewMode {
	if ViewMode(strings.ToLower(strings.TrimSpace(s))) == ViewGrid {
		return ViewGrid
	}
	return ViewList
}

// Toggle flips between list and grid.
func (v ViewMode) Toggle() ViewMode {
	if v == ViewGrid {
		return ViewList
	}
	return ViewGrid
}

// SortKey orders a collection view.
type SortKey string

const (
	SortNone       SortKey = ""
	SortNewest     SortKey = "newest"
	SortOldest     SortKey = "oldest"
	SortPopularity SortKey = "popularity"
)

// TransactionType is the polarity of a ledger entry.
type TransactionType string

// TypeYouWillGet marks money owed to the book owner.
const TypeYouWillGet TransactionType = "you will get"

// Incoming reports whether the owner receives money.
func (t TransactionType) Incoming() bool {
	return strings.EqualFold(strings.TrimSpace(string(t)), string(TypeYouWillGet))
}

// User is an account managed by the console.
type User struct {
	ID         string    `json:"_id"`
	Name       *string   `json:"name,omitempty"`
	Email      *string   `json:"email,omitempty"`
	Phone      *string   `json:"phone,omitempty"`
	ProfileURL *string   `json:"profilePicture,omitempty"`
	CreatedAt  time.Time `json:"createdAt"`
}

// UnmarshalJSON decodes User, reading a malformed createdAt as the zero time.
func (u *User) UnmarshalJSON(data []byte) error {
	type plain User
	aux := struct {
		*plain
		CreatedAt Timestamp `json:"createdAt"`
	}{plain: (*plain)(u)}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	u.CreatedAt = time.Time(aux.CreatedAt)
	return nil
}

// SearchFields returns the searchable fields that are present.
func (u User) SearchFields() []string {
	return present(u.Name, u.Email, u.Phone)
}

// Created returns the creation time.
func (u User) Created() time.Time { return u.CreatedAt }

// Popularity is not tracked for users.
func (u User) Popularity() int { return 0 }

// Creator references the user who owns a book.
type Creator struct {
	ID    string  `json:"_id"`
	Name  *string `json:"name,omitempty"`
	Email *string `json:"email,omitempty"`
}

// Book is a ledger book.
type Book struct {
	ID        string    `json:"_id"`
	Name      *string   `json:"name,omitempty"`
	BookName  *string   `json:"bookname,omitempty"`
	Creator   *Creator  `json:"creator,omitempty"`
	CreatedAt time.Time `json:"createdAt"`

	// MemberCount is derived from the book transactions endpoint.
	MemberCount int `json:"-"`
}

// UnmarshalJSON decodes Book, reading a malformed createdAt as the zero time.
func (b *Book) UnmarshalJSON(data []byte) error {
	type plain Book
	aux := struct {
		*plain
		CreatedAt Timestamp `json:"createdAt"`
	}{plain: (*plain)(b)}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	b.CreatedAt = time.Time(aux.CreatedAt)
	return nil
}

// SearchFields returns name, bookname and creator name when present.
func (b Book) SearchFields() []string {
	var creator *string
	if b.Creator != nil {
		creator = b.Creator.Name
	}
	return present(b.Name, b.BookName, creator)
}

// Created returns the creation time.
func (b Book) Created() time.Time { return b.CreatedAt }

// Popularity is the member count.
func (b Book) Popularity() int { return b.MemberCount }

// Title returns the display name of the book.
func (b Book) Title() string {
	if s := deref(b.Name); s != "" {
		return s
	}
	return DisplayName(b.BookName)
}

// Member is a participant of a book.
type Member struct {
	ID        string    `json:"_id,omitempty"`
	Name      *string   `json:"name,omitempty"`
	Email     *string   `json:"email,omitempty"`
	Mobile    *string   `json:"mobile,omitempty"`
	Balance   *int64    `json:"balance,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
}

// UnmarshalJSON decodes Member, reading a malformed createdAt as the zero time.
func (m *Member) UnmarshalJSON(data []byte) error {
	type plain Member
	aux := struct {
		*plain
		CreatedAt Timestamp `json:"createdAt"`
	}{plain: (*plain)(m)}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	m.CreatedAt = time.Time(aux.CreatedAt)
	return nil
}

// SearchFields returns name, email and mobile when present.
func (m Member) SearchFields() []string {
	return present(m.Name, m.Email, m.Mobile)
}

// Created returns the join time.
func (m Member) Created() time.Time { return m.CreatedAt }

// Popularity is not tracked for members.
func (m Member) Popularity() int { return 0 }

// BookRef is the book a transaction belongs to.
type BookRef struct {
	ID       string  `json:"_id"`
	BookName *string `json:"bookname,omitempty"`
}

// Transaction is a single ledger entry.
type Transaction struct {
	ID        string          `json:"_id"`
	Amount    float64         `json:"amount"`
	Type      TransactionType `json:"type"`
	Status    string          `json:"status"`
	Notes     *string         `json:"notes,omitempty"`
	Book      *BookRef        `json:"bookId,omitempty"`
	CreatedAt time.Time       `json:"createdAt"`
}

// UnmarshalJSON decodes Transaction, reading a malformed createdAt as the zero time.
func (t *Transaction) UnmarshalJSON(data []byte) error {
	type plain Transaction
	aux := struct {
		*plain
		CreatedAt Timestamp `json:"createdAt"`
	}{plain: (*plain)(t)}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	t.CreatedAt = time.Time(aux.CreatedAt)
	return nil
}

// SearchFields returns notes, book name, type and status.
func (t Transaction) SearchFields() []string {
	var book *string
	if t.Book != nil {
		book = t.Book.BookName
	}
	typ, status := string(t.Type), t.Status
	return present(t.Notes, book, &typ, &status)
}

// Created returns the entry time.
func (t Transaction) Created() time.Time { return t.CreatedAt }

// Popularity is not tracked for transactions.
func (t Transaction) Popularity() int { return 0 }

// BookDetails is the payload of a book's transactions endpoint.
type BookDetails struct {
	BookName     string    `json:"bookName"`
	CreatedAt    time.Time `json:"createdAt"`
	Members      []Member  `json:"members"`
	MembersCount int       `json:"membersCount"`
}

// UnmarshalJSON decodes BookDetails, reading a malformed createdAt as the zero time.
func (d *BookDetails) UnmarshalJSON(data []byte) error {
	type plain BookDetails
	aux := struct {
		*plain
		CreatedAt Timestamp `json:"createdAt"`
	}{plain: (*plain)(d)}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	d.CreatedAt = time.Time(aux.CreatedAt)
	return nil
}

// MonthlyStats holds per-calendar-month counters.
type MonthlyStats struct {
	Users        []int `json:"users"`
	Books        []int `json:"books"`
	Transactions []int `json:"transactions"`
}

// DashboardAggregate is the server-computed summary.
type DashboardAggregate struct {
	TotalUsers             int          `json:"totalUsers"`
	TotalBooks             int          `json:"totalBooks"`
	TotalTransactions      int          `json:"totalTransactions"`
	TotalTransactionAmount float64      `json:"totalTransactionAmount"`
	LastWeekUsers          int          `json:"lastWeekUsers"`
	LastWeekBooks          int          `json:"lastWeekBooks"`
	LastWeekTransactions   int          `json:"lastWeekTransactions"`
	MonthlyStats           MonthlyStats `json:"monthlyStats"`
}

// Placeholders for absent fields.
const (
	UnknownName = "Unknown"
	NoEmail     = "No email"
	NoPhone     = "No phone"
	NoNotes     = "-"
)

// DisplayName returns s or UnknownName.
func DisplayName(s *string) string { return orDefault(s, UnknownName) }

// DisplayEmail returns s or NoEmail.
func DisplayEmail(s *string) string { return orDefault(s, NoEmail) }

// DisplayPhone returns s or NoPhone.
func DisplayPhone(s *string) string { return orDefault(s, NoPhone) }

// DisplayNotes returns s or NoNotes.
func DisplayNotes(s *string) string { return orDefault(s, NoNotes) }

// DisplayBalance returns the balance or 0.
func DisplayBalance(b *int64) int64 {
	if b == nil {
		return 0
	}
	return *b
}

// DisplayDate formats t as "Jan 02, 2006", or "-" for the zero time.
func DisplayDate(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.Local().Format("Jan 02, 2006")
}

func orDefault(s *string, fallback string) string {
	if v := deref(s); v != "" {
		return v
	}
	return fallback
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return strings.TrimSpace(*s)
}

func present(fields ...*string) []string {
	out := make([]string, 0, len(fields))
	for _, f := range fields {
		if f == nil {
			continue
		}
		out = append(out, *f)
	}
	return out
}
