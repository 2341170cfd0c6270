// Package state owns the console's application state: the operator
// identity, one in-memory mirror per server collection, and the derived
// filtered views. All of it hangs off a single Controller so nothing else
// in the process holds hidden mutable state.
package state

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"

	"github.com/opencirc/libconsole/internal/filter"
	"github.com/opencirc/libconsole/internal/gateway"
	"github.com/opencirc/libconsole/internal/models"
)

// Events broadcast to view subscribers after a cache replace.
const (
	EventBooksUpdated        = "books.updated"
	EventTransactionsUpdated = "transactions.updated"
	EventUsersUpdated        = "users.updated"
	EventDashboardUpdated    = "dashboard.updated"
	EventInventoryUpdated    = "inventory.updated"
	EventReportsUpdated      = "reports.updated"
	EventSessionStarted      = "session.started"
	EventSessionEnded        = "session.ended"
)

// Controller owns the application state record. Refreshes replace a cache
// wholesale and recompute its derived view inside one mutex hold, so a
// renderer can never observe a cache mid-update. Concurrent refreshes of
// the same collection are not coalesced: the last completion wins.
type Controller struct {
	gw     *gateway.Client
	notify func(event string)

	mu         sync.Mutex
	identity   *models.Identity
	credential string

	books         []models.Book
	filteredBooks []models.Book
	bookFilter    filter.BookFilter

	transactions         []models.Transaction
	filteredTransactions []models.Transaction
	transactionFilter    filter.TransactionFilter

	users         []models.UserRecord
	filteredUsers []models.UserRecord
	userFilter    filter.UserFilter

	dashboard models.DashboardAggregate
	inventory models.InventoryReport
	report    models.SystemReport
}

// NewController creates a Controller. notify receives a state-change event
// name after every cache replace; pass nil to disable notifications.
func NewController(gw *gateway.Client, notify func(event string)) *Controller {
	if notify == nil {
		notify = func(string) {}
	}
	return &Controller{gw: gw, notify: notify}
}

// SetGateway injects the gateway after construction. The controller and the
// gateway reference each other (credential lookup one way, refreshes the
// other), so one side has to be wired late.
func (c *Controller) SetGateway(gw *gateway.Client) {
	c.gw = gw
}

// SetSession installs the operator identity and credential.
func (c *Controller) SetSession(identity *models.Identity, credential string) {
	c.mu.Lock()
	c.identity = identity
	c.credential = credential
	c.mu.Unlock()
	c.notify(EventSessionStarted)
}

// ResetAll drops the identity, credential, every cache and every derived
// view. Runs on logout and on credential rejection.
func (c *Controller) ResetAll() {
	c.mu.Lock()
	c.identity = nil
	c.credential = ""
	c.books, c.filteredBooks = nil, nil
	c.bookFilter = filter.BookFilter{}
	c.transactions, c.filteredTransactions = nil, nil
	c.transactionFilter = filter.TransactionFilter{}
	c.users, c.filteredUsers = nil, nil
	c.userFilter = filter.UserFilter{}
	c.dashboard = models.DashboardAggregate{}
	c.inventory = models.InventoryReport{}
	c.report = models.SystemReport{}
	c.mu.Unlock()
	c.notify(EventSessionEnded)
}

// Identity returns the current operator identity, nil when logged out.
func (c *Controller) Identity() *models.Identity {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.identity == nil {
		return nil
	}
	id := *c.identity
	return &id
}

// Credential returns the bearer token for outbound requests.
func (c *Controller) Credential() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.credential
}

// RefreshBooks fetches the full book collection, replaces the cache and
// resets the derived view to the full set. Returns the collection size.
func (c *Controller) RefreshBooks(ctx context.Context) (int, error) {
	var books []models.Book
	if err := c.gw.Do(ctx, http.MethodGet, "/books", nil, &books, nil); err != nil {
		return 0, err
	}
	c.mu.Lock()
	c.books = books
	c.bookFilter = filter.BookFilter{}
	c.filteredBooks = filter.Books(books, c.bookFilter)
	c.mu.Unlock()
	c.notify(EventBooksUpdated)
	return len(books), nil
}

// FilterBooks recomputes the derived book view against the current cache.
func (c *Controller) FilterBooks(f filter.BookFilter) []models.Book {
	c.mu.Lock()
	c.bookFilter = f
	c.filteredBooks = filter.Books(c.books, f)
	out := snapshot(c.filteredBooks)
	c.mu.Unlock()
	return out
}

// Books returns the current derived book view.
func (c *Controller) Books() []models.Book {
	c.mu.Lock()
	defer c.mu.Unlock()
	return snapshot(c.filteredBooks)
}

// BookByID looks a book up in the full cache, not the filtered view.
func (c *Controller) BookByID(id int64) (models.Book, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, b := range c.books {
		if b.ID == id {
			return b, true
		}
	}
	return models.Book{}, false
}

// Categories returns the distinct categories in the book cache.
func (c *Controller) Categories() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return filter.Categories(c.books)
}

// RefreshTransactions fetches the transaction collection. Regular users
// only ever see their own history; managers see everything.
func (c *Controller) RefreshTransactions(ctx context.Context) (int, error) {
	path := "/transactions"
	if id := c.Identity(); id != nil && id.Role == models.RoleUser {
		path = "/transactions/my-transactions"
	}
	var transactions []models.Transaction
	if err := c.gw.Do(ctx, http.MethodGet, path, nil, &transactions, nil); err != nil {
		return 0, err
	}
	c.mu.Lock()
	c.transactions = transactions
	c.transactionFilter = filter.TransactionFilter{}
	c.filteredTransactions = filter.Transactions(transactions, c.transactionFilter)
	c.mu.Unlock()
	c.notify(EventTransactionsUpdated)
	return len(transactions), nil
}

// FilterTransactions recomputes the derived transaction view.
func (c *Controller) FilterTransactions(f filter.TransactionFilter) []models.Transaction {
	c.mu.Lock()
	c.transactionFilter = f
	c.filteredTransactions = filter.Transactions(c.transactions, f)
	out := snapshot(c.filteredTransactions)
	c.mu.Unlock()
	return out
}

// Transactions returns the current derived transaction view.
func (c *Controller) Transactions() []models.Transaction {
	c.mu.Lock()
	defer c.mu.Unlock()
	return snapshot(c.filteredTransactions)
}

// RefreshUsers fetches the account listing.
func (c *Controller) RefreshUsers(ctx context.Context) (int, error) {
	var users []models.UserRecord
	if err := c.gw.Do(ctx, http.MethodGet, "/admin/users", nil, &users, nil); err != nil {
		return 0, err
	}
	c.mu.Lock()
	c.users = users
	c.userFilter = filter.UserFilter{}
	c.filteredUsers = filter.Users(users, c.userFilter)
	c.mu.Unlock()
	c.notify(EventUsersUpdated)
	return len(users), nil
}

// FilterUsers recomputes the derived user view.
func (c *Controller) FilterUsers(f filter.UserFilter) []models.UserRecord {
	c.mu.Lock()
	c.userFilter = f
	c.filteredUsers = filter.Users(c.users, f)
	out := snapshot(c.filteredUsers)
	c.mu.Unlock()
	return out
}

// Users returns the current derived user view.
func (c *Controller) Users() []models.UserRecord {
	c.mu.Lock()
	defer c.mu.Unlock()
	return snapshot(c.filteredUsers)
}

// RefreshDashboard loads the analytics dashboard. Managers get the real
// aggregate; regular users, and any application failure on the analytics
// endpoint, fall back to an aggregate synthesized from the plain book and
// transaction listings. Credential rejection and transport failures are
// not recovered here.
func (c *Controller) RefreshDashboard(ctx context.Context) error {
	id := c.Identity()
	manager := id != nil && id.Role != models.RoleUser

	if manager {
		var raw json.RawMessage
		err := c.gw.Do(ctx, http.MethodGet, "/analytics/dashboard", nil, &raw, nil)
		if err == nil {
			agg := models.NormalizeDashboard(raw)
			c.mu.Lock()
			c.dashboard = agg
			c.mu.Unlock()
			c.notify(EventDashboardUpdated)
			return nil
		}
		if !gateway.IsApplication(err) {
			return err
		}
	}
	return c.refreshBasicDashboard(ctx)
}

// refreshBasicDashboard builds the aggregate from data every role can read.
func (c *Controller) refreshBasicDashboard(ctx context.Context) error {
	if _, err := c.RefreshBooks(ctx); err != nil {
		return err
	}
	if _, err := c.RefreshTransactions(ctx); err != nil {
		return err
	}

	c.mu.Lock()
	agg := models.DashboardAggregate{TotalBooks: len(c.books)}
	for _, b := range c.books {
		if b.Available() {
			agg.AvailableBooks++
		}
	}
	for _, t := range c.transactions {
		if t.Status == models.StatusOverdue {
			agg.OverdueTransactions++
		}
	}
	c.dashboard = agg
	c.mu.Unlock()
	c.notify(EventDashboardUpdated)
	return nil
}

// Dashboard returns the last loaded aggregate.
func (c *Controller) Dashboard() models.DashboardAggregate {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.dashboard
}

// RefreshInventory loads the inventory report.
func (c *Controller) RefreshInventory(ctx context.Context) (int, error) {
	var report models.InventoryReport
	if err := c.gw.Do(ctx, http.MethodGet, "/analytics/inventory", nil, &report, nil); err != nil {
		return 0, err
	}
	c.mu.Lock()
	c.inventory = report
	c.mu.Unlock()
	c.notify(EventInventoryUpdated)
	return len(report.Books), nil
}

// Inventory returns the last loaded inventory report.
func (c *Controller) Inventory() models.InventoryReport {
	c.mu.Lock()
	defer c.mu.Unlock()
	return models.InventoryReport{Books: snapshot(c.inventory.Books)}
}

// RefreshReports loads the flat system report.
func (c *Controller) RefreshReports(ctx context.Context) error {
	var report models.SystemReport
	if err := c.gw.Do(ctx, http.MethodGet, "/analytics/reports", nil, &report, nil); err != nil {
		return err
	}
	c.mu.Lock()
	c.report = report
	c.mu.Unlock()
	c.notify(EventReportsUpdated)
	return nil
}

// Report returns the last loaded system report.
func (c *Controller) Report() models.SystemReport {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.report
}

func snapshot[T any](in []T) []T {
	out := make([]T, len(in))
	copy(out, in)
	return out
}
