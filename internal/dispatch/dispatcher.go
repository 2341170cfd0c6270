// Package dispatch turns operator commands into catalog API calls. Each
// action validates its input, fires exactly one call (destructive ones
// behind a two-step confirmation), and on success refetches precisely the
// caches the action can have touched.
package dispatch

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/opencirc/libconsole/internal/activity"
	"github.com/opencirc/libconsole/internal/gateway"
	"github.com/opencirc/libconsole/internal/metrics"
	"github.com/opencirc/libconsole/internal/models"
	"github.com/opencirc/libconsole/internal/state"
)

// Confirmation kinds for destructive actions.
const (
	KindDeleteBook        = "book.delete"
	KindDeleteUser        = "user.delete"
	KindReturnTransaction = "transaction.return"
)

var (
	// ErrConfirmationNotFound: the token was never issued, already used,
	// or aborted. Declining a confirmation is a no-op, not an error, so
	// this only surfaces on a stale commit.
	ErrConfirmationNotFound = errors.New("confirmation not found")
	// ErrConfirmationExpired: the token outlived its window.
	ErrConfirmationExpired = errors.New("confirmation expired")
)

// ValidationError reports locally rejected form input. It never reaches
// the network.
type ValidationError string

func (e ValidationError) Error() string { return string(e) }

// IsValidation reports whether err is a local input rejection.
func IsValidation(err error) bool {
	var ve ValidationError
	return errors.As(err, &ve)
}

// Confirmation is a requested-but-uncommitted destructive action.
type Confirmation struct {
	Token   string `json:"token"`
	Kind    string `json:"kind"`
	Summary string `json:"summary"`
}

// Dispatcher executes operator actions against the catalog API.
type Dispatcher struct {
	gw       *gateway.Client
	state    *state.Controller
	activity activity.RecorderProvider
	db       *sql.DB

	// confirmTTL bounds how long a pending confirmation stays commitable.
	confirmTTL time.Duration
}

// New creates a Dispatcher.
func New(gw *gateway.Client, st *state.Controller, rec activity.RecorderProvider, db *sql.DB) *Dispatcher {
	return &Dispatcher{gw: gw, state: st, activity: rec, db: db, confirmTTL: 5 * time.Minute}
}

// BookForm is the raw add/edit book input as submitted.
type BookForm struct {
	Title       string
	Author      string
	Category    string
	ISBN        string
	TotalCopies string
}

func (f BookForm) validate() (int, error) {
	if strings.TrimSpace(f.Title) == "" {
		return 0, ValidationError("title is required")
	}
	if strings.TrimSpace(f.Author) == "" {
		return 0, ValidationError("author is required")
	}
	copies, err := strconv.Atoi(strings.TrimSpace(f.TotalCopies))
	if err != nil {
		return 0, ValidationError("total copies must be a number")
	}
	if copies < 0 {
		return 0, ValidationError("total copies cannot be negative")
	}
	return copies, nil
}

type bookPayload struct {
	Title       string `json:"title"`
	Author      string `json:"author"`
	Category    string `json:"category"`
	ISBN        string `json:"isbn"`
	TotalCopies int    `json:"totalCopies"`
}

// LoginResult is what a successful login yields.
type LoginResult struct {
	Token    string `json:"token"`
	Username string `json:"username"`
	Email    string `json:"email"`
	Role     string `json:"role"`
}

// Login authenticates against the catalog API. The call is public: a
// rejection carries the server's text, it does not tear down anything.
func (d *Dispatcher) Login(ctx context.Context, usernameOrEmail, password string) (models.Identity, string, error) {
	if strings.TrimSpace(usernameOrEmail) == "" || password == "" {
		return models.Identity{}, "", ValidationError("username and password are required")
	}
	var result LoginResult
	err := d.gw.DoPublic(ctx, http.MethodPost, "/auth/login", map[string]string{
		"usernameOrEmail": usernameOrEmail,
		"password":        password,
	}, &result)
	if err != nil {
		d.count("session.login", err)
		return models.Identity{}, "", err
	}
	identity := models.Identity{Username: result.Username, Email: result.Email, Role: result.Role}
	d.record("session.login", "info", fmt.Sprintf("%s signed in", identity.Username))
	d.count("session.login", nil)
	return identity, result.Token, nil
}

// Register creates a new account through the public registration endpoint.
func (d *Dispatcher) Register(ctx context.Context, username, email, password string) error {
	if strings.TrimSpace(username) == "" || strings.TrimSpace(email) == "" || password == "" {
		return ValidationError("username, email and password are required")
	}
	err := d.gw.DoPublic(ctx, http.MethodPost, "/auth/register", map[string]string{
		"username": username,
		"email":    email,
		"password": password,
	}, nil)
	d.count("user.register", err)
	if err != nil {
		return err
	}
	d.record("user.register", "info", fmt.Sprintf("registered account %s", username))
	return nil
}

// ChangePassword updates the operator's password.
func (d *Dispatcher) ChangePassword(ctx context.Context, newPassword, confirmPassword string) error {
	if newPassword == "" {
		return ValidationError("new password is required")
	}
	if newPassword != confirmPassword {
		return ValidationError("passwords do not match")
	}
	err := d.gw.Do(ctx, http.MethodPost, "/auth/change-password",
		map[string]string{"newPassword": newPassword}, nil, nil)
	d.count("profile.password", err)
	if err != nil {
		return err
	}
	d.record("profile.password", "info", "password changed")
	return nil
}

// AddBook creates a catalog entry and refetches the book cache.
func (d *Dispatcher) AddBook(ctx context.Context, form BookForm) error {
	copies, err := form.validate()
	if err != nil {
		return err
	}
	payload := bookPayload{Title: form.Title, Author: form.Author, Category: form.Category, ISBN: form.ISBN, TotalCopies: copies}
	err = d.gw.Do(ctx, http.MethodPost, "/books", payload, nil, nil)
	d.count("book.add", err)
	if err != nil {
		return err
	}
	d.record("book.add", "info", fmt.Sprintf("added book %q", form.Title))
	d.refreshBooks(ctx)
	return nil
}

// EditBook updates a catalog entry and refetches the book cache.
func (d *Dispatcher) EditBook(ctx context.Context, bookID int64, form BookForm) error {
	copies, err := form.validate()
	if err != nil {
		return err
	}
	payload := bookPayload{Title: form.Title, Author: form.Author, Category: form.Category, ISBN: form.ISBN, TotalCopies: copies}
	err = d.gw.Do(ctx, http.MethodPut, fmt.Sprintf("/books/%d", bookID), payload, nil, nil)
	d.count("book.edit", err)
	if err != nil {
		return err
	}
	d.record("book.edit", "info", fmt.Sprintf("updated book %q", form.Title))
	d.refreshBooks(ctx)
	return nil
}

// QuickBorrow borrows a book for the operator and refetches the book and
// transaction caches, whose counts the borrow changed.
func (d *Dispatcher) QuickBorrow(ctx context.Context, bookID int64) error {
	err := d.gw.Do(ctx, http.MethodPost, "/transactions/borrow",
		map[string]int64{"bookId": bookID}, nil, nil)
	d.count("transaction.borrow", err)
	if err != nil {
		return err
	}
	d.record("transaction.borrow", "info", fmt.Sprintf("borrowed book %d", bookID))
	d.refreshBooks(ctx)
	d.refreshTransactions(ctx)
	return nil
}

// UpdateInventory sets a book's total copy count.
func (d *Dispatcher) UpdateInventory(ctx context.Context, bookID int64, totalCopies string) error {
	copies, err := strconv.Atoi(strings.TrimSpace(totalCopies))
	if err != nil {
		return ValidationError("total copies must be a number")
	}
	if copies < 0 {
		return ValidationError("total copies cannot be negative")
	}
	err = d.gw.Do(ctx, http.MethodPut, fmt.Sprintf("/books/%d/inventory", bookID),
		map[string]int{"totalCopies": copies}, nil, nil)
	d.count("inventory.update", err)
	if err != nil {
		return err
	}
	d.record("inventory.update", "info", fmt.Sprintf("set book %d total copies to %d", bookID, copies))
	d.refreshBooks(ctx)
	d.refreshInventory(ctx)
	return nil
}

// EditUserRole changes an account's role and refetches the user cache.
func (d *Dispatcher) EditUserRole(ctx context.Context, userID int64, role string) error {
	if !models.ValidRole(role) {
		return ValidationError("unknown role: " + role)
	}
	err := d.gw.Do(ctx, http.MethodPut, fmt.Sprintf("/admin/users/%d/role", userID),
		map[string]string{"role": role}, nil, nil)
	d.count("user.role", err)
	if err != nil {
		return err
	}
	d.record("user.role", "info", fmt.Sprintf("set role of user %d to %s", userID, role))
	d.refreshUsers(ctx)
	return nil
}

// ImportCSV uploads a CSV of books and returns how many the server took.
func (d *Dispatcher) ImportCSV(ctx context.Context, filename string, file io.Reader) (int, error) {
	if filename == "" || file == nil {
		return 0, ValidationError("a CSV file is required")
	}
	var result struct {
		ImportedCount int `json:"importedCount"`
	}
	err := d.gw.Upload(ctx, "/books/import-csv", filename, file, &result)
	d.count("book.import", err)
	if err != nil {
		return 0, err
	}
	d.record("book.import", "info", fmt.Sprintf("imported %d books from %s", result.ImportedCount, filename))
	d.refreshBooks(ctx)
	return result.ImportedCount, nil
}

// ExportBooks downloads the catalog as CSV. Read-only: no cache changes.
func (d *Dispatcher) ExportBooks(ctx context.Context) ([]byte, string, error) {
	blob, contentType, err := d.gw.Download(ctx, "/books/export")
	d.count("book.export", err)
	if err != nil {
		return nil, "", err
	}
	if contentType == "" {
		contentType = "text/csv"
	}
	d.record("book.export", "info", "exported book catalog")
	return blob, contentType, nil
}

// RequestDeleteBook stages a book deletion; nothing goes on the wire until
// the confirmation commits.
func (d *Dispatcher) RequestDeleteBook(bookID int64) (Confirmation, error) {
	summary := fmt.Sprintf("Delete book %d?", bookID)
	if book, ok := d.state.BookByID(bookID); ok {
		summary = fmt.Sprintf("Delete book %q by %s?", book.Title, book.Author)
	}
	return d.stage(KindDeleteBook, strconv.FormatInt(bookID, 10), summary)
}

// RequestDeleteUser stages an account deletion.
func (d *Dispatcher) RequestDeleteUser(userID int64) (Confirmation, error) {
	return d.stage(KindDeleteUser, strconv.FormatInt(userID, 10),
		fmt.Sprintf("Delete user %d? Their borrow history stays.", userID))
}

// RequestReturn stages a book return.
func (d *Dispatcher) RequestReturn(transactionID int64) (Confirmation, error) {
	return d.stage(KindReturnTransaction, strconv.FormatInt(transactionID, 10),
		fmt.Sprintf("Return the book on transaction %d?", transactionID))
}

func (d *Dispatcher) stage(kind, subject, summary string) (Confirmation, error) {
	c := Confirmation{Token: uuid.New().String(), Kind: kind, Summary: summary}
	_, err := d.db.Exec(
		"INSERT INTO confirmations (token, kind, subject, summary, expires_at) VALUES (?, ?, ?, ?, ?)",
		c.Token, c.Kind, subject, c.Summary, time.Now().Add(d.confirmTTL).UTC())
	if err != nil {
		return Confirmation{}, err
	}
	return c, nil
}

// Commit executes a staged destructive action. Tokens are single-use: the
// row is consumed before the call goes out, whatever the outcome.
func (d *Dispatcher) Commit(ctx context.Context, token string) error {
	kind, subject, err := d.consume(token)
	if err != nil {
		return err
	}

	id, err := strconv.ParseInt(subject, 10, 64)
	if err != nil {
		return fmt.Errorf("corrupt confirmation subject %q: %w", subject, err)
	}

	switch kind {
	case KindDeleteBook:
		err = d.gw.Do(ctx, http.MethodDelete, fmt.Sprintf("/books/%d", id), nil, nil, nil)
		d.count(kind, err)
		if err != nil {
			return err
		}
		d.record(kind, "warn", fmt.Sprintf("deleted book %d", id))
		d.refreshBooks(ctx)
	case KindDeleteUser:
		err = d.gw.Do(ctx, http.MethodDelete, fmt.Sprintf("/admin/users/%d", id), nil, nil, nil)
		d.count(kind, err)
		if err != nil {
			return err
		}
		d.record(kind, "warn", fmt.Sprintf("deleted user %d", id))
		d.refreshUsers(ctx)
	case KindReturnTransaction:
		err = d.returnTransaction(ctx, id)
		d.count(kind, err)
		if err != nil {
			return err
		}
		d.record(kind, "info", fmt.Sprintf("returned book on transaction %d", id))
		d.refreshBooks(ctx)
		d.refreshTransactions(ctx)
	default:
		return fmt.Errorf("unknown confirmation kind %q", kind)
	}
	return nil
}

// Abort drops a staged action. Aborting an unknown token is a no-op.
func (d *Dispatcher) Abort(token string) error {
	_, err := d.db.Exec("DELETE FROM confirmations WHERE token = ?", token)
	return err
}

// ExpireStale removes confirmations past their window. Called by the
// janitor.
func (d *Dispatcher) ExpireStale(now time.Time) (int64, error) {
	res, err := d.db.Exec("DELETE FROM confirmations WHERE expires_at < ?", now.UTC())
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// consume removes the confirmation row and returns its action, enforcing
// single use and expiry.
func (d *Dispatcher) consume(token string) (kind, subject string, err error) {
	tx, err := d.db.Begin()
	if err != nil {
		return "", "", err
	}
	defer tx.Rollback()

	var expiresAt time.Time
	row := tx.QueryRow("SELECT kind, subject, expires_at FROM confirmations WHERE token = ?", token)
	if err := row.Scan(&kind, &subject, &expiresAt); err != nil {
		if err == sql.ErrNoRows {
			return "", "", ErrConfirmationNotFound
		}
		return "", "", err
	}
	if _, err := tx.Exec("DELETE FROM confirmations WHERE token = ?", token); err != nil {
		return "", "", err
	}
	if err := tx.Commit(); err != nil {
		return "", "", err
	}
	if time.Now().After(expiresAt) {
		return "", "", ErrConfirmationExpired
	}
	return kind, subject, nil
}

// returnTransaction handles the two return endpoint shapes that exist in
// the wild: POST /transactions/return/{id} on older servers and
// PUT /transactions/{id}/return on newer ones. The fallback only fires
// when the first shape's *route* is missing; a rejected return (already
// returned, wrong id) surfaces as-is.
func (d *Dispatcher) returnTransaction(ctx context.Context, transactionID int64) error {
	err := d.gw.Do(ctx, http.MethodPost, fmt.Sprintf("/transactions/return/%d", transactionID), nil, nil, nil)
	if err == nil {
		return nil
	}
	status := gateway.StatusOf(err)
	if gateway.IsApplication(err) && (status == http.StatusNotFound || status == http.StatusMethodNotAllowed) {
		return d.gw.Do(ctx, http.MethodPut, fmt.Sprintf("/transactions/%d/return", transactionID), nil, nil, nil)
	}
	return err
}

func (d *Dispatcher) refreshBooks(ctx context.Context) {
	if _, err := d.state.RefreshBooks(ctx); err != nil {
		log.Warn().Err(err).Msg("Book cache refetch after action failed")
	}
}

func (d *Dispatcher) refreshTransactions(ctx context.Context) {
	if _, err := d.state.RefreshTransactions(ctx); err != nil {
		log.Warn().Err(err).Msg("Transaction cache refetch after action failed")
	}
}

func (d *Dispatcher) refreshUsers(ctx context.Context) {
	if _, err := d.state.RefreshUsers(ctx); err != nil {
		log.Warn().Err(err).Msg("User cache refetch after action failed")
	}
}

func (d *Dispatcher) refreshInventory(ctx context.Context) {
	if _, err := d.state.RefreshInventory(ctx); err != nil {
		log.Warn().Err(err).Msg("Inventory refetch after action failed")
	}
}

func (d *Dispatcher) record(entryType, level, message string) {
	if d.activity == nil {
		return
	}
	if err := d.activity.Record(entryType, level, message); err != nil {
		log.Warn().Err(err).Str("type", entryType).Msg("Failed to record activity")
	}
}

func (d *Dispatcher) count(kind string, err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	metrics.ActionsDispatched.WithLabelValues(kind, result).Inc()
}
