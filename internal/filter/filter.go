// Package filter computes derived views from collection caches. Every
// function here is pure and re-runs in full on each predicate change;
// the collections are small enough that diffing would buy nothing.
package filter

import (
	"strings"

	"github.com/opencirc/libconsole/internal/models"
)

// Availability selector values for the book view.
const (
	AvailabilityAny         = ""
	AvailabilityAvailable   = "available"
	AvailabilityUnavailable = "unavailable"
)

// BookFilter is the predicate over the book cache.
type BookFilter struct {
	Search       string
	Category     string
	Availability string
}

// IsZero reports whether the predicate matches everything.
func (f BookFilter) IsZero() bool {
	return f.Search == "" && f.Category == "" && f.Availability == ""
}

// TransactionFilter is the predicate over the transaction cache.
type TransactionFilter struct {
	Search string
	Status string
}

func (f TransactionFilter) IsZero() bool {
	return f.Search == "" && f.Status == ""
}

// UserFilter is the predicate over the user cache.
type UserFilter struct {
	Search string
	Role   string
}

func (f UserFilter) IsZero() bool {
	return f.Search == "" && f.Role == ""
}

// Books returns the books matching the predicate. Search matches title,
// author or ISBN case-insensitively; category is exact; availability maps
// onto the available-copies count.
func Books(books []models.Book, f BookFilter) []models.Book {
	term := strings.ToLower(f.Search)
	out := make([]models.Book, 0, len(books))
	for _, b := range books {
		if term != "" &&
			!strings.Contains(strings.ToLower(b.Title), term) &&
			!strings.Contains(strings.ToLower(b.Author), term) &&
			!strings.Contains(strings.ToLower(b.ISBN), term) {
			continue
		}
		if f.Category != "" && b.Category != f.Category {
			continue
		}
		switch f.Availability {
		case AvailabilityAvailable:
			if b.AvailableCopies == 0 {
				continue
			}
		case AvailabilityUnavailable:
			if b.AvailableCopies != 0 {
				continue
			}
		}
		out = append(out, b)
	}
	return out
}

// Transactions returns the transactions matching the predicate. Search
// matches book title or user name; status is exact.
func Transactions(transactions []models.Transaction, f TransactionFilter) []models.Transaction {
	term := strings.ToLower(f.Search)
	out := make([]models.Transaction, 0, len(transactions))
	for _, t := range transactions {
		if term != "" &&
			!strings.Contains(strings.ToLower(t.BookTitle), term) &&
			!strings.Contains(strings.ToLower(t.UserName), term) {
			continue
		}
		if f.Status != "" && t.Status != f.Status {
			continue
		}
		out = append(out, t)
	}
	return out
}

// Users returns the account rows matching the predicate. Search matches
// username or email; role is exact.
func Users(users []models.UserRecord, f UserFilter) []models.UserRecord {
	term := strings.ToLower(f.Search)
	out := make([]models.UserRecord, 0, len(users))
	for _, u := range users {
		if term != "" &&
			!strings.Contains(strings.ToLower(u.Username), term) &&
			!strings.Contains(strings.ToLower(u.Email), term) {
			continue
		}
		if f.Role != "" && u.Role != f.Role {
			continue
		}
		out = append(out, u)
	}
	return out
}

// Categories returns the distinct, non-empty categories present in the
// cache, in first-seen order, for populating the category selector.
func Categories(books []models.Book) []string {
	seen := make(map[string]bool)
	var out []string
	for _, b := range books {
		if b.Category == "" || seen[b.Category] {
			continue
		}
		seen[b.Category] = true
		out = append(out, b.Category)
	}
	return out
}
