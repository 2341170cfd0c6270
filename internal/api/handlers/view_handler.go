package handlers

import (
	"net/http"
	"strconv"

	"github.com/opencirc/libconsole/internal/activity"
	"github.com/opencirc/libconsole/internal/filter"
	"github.com/opencirc/libconsole/internal/render"
	"github.com/opencirc/libconsole/internal/roles"
	"github.com/opencirc/libconsole/internal/state"
)

// ViewHandler serves the tab fragments. Opening a tab refetches the
// backing cache; the /filter variants recompute the derived view from the
// cache without touching the network.
type ViewHandler struct {
	controller *state.Controller
	activity   activity.RecorderProvider
}

// NewViewHandler creates a new ViewHandler.
func NewViewHandler(controller *state.Controller, rec activity.RecorderProvider) *ViewHandler {
	return &ViewHandler{controller: controller, activity: rec}
}

// Dashboard refreshes and renders the analytics dashboard.
func (h *ViewHandler) Dashboard(w http.ResponseWriter, r *http.Request) {
	if err := h.controller.RefreshDashboard(r.Context()); err != nil {
		writeActionError(w, err)
		return
	}
	fragment, err := render.Dashboard(h.controller.Dashboard())
	writeFragment(w, fragment, err)
}

// Books refreshes the book cache and renders the books tab.
func (h *ViewHandler) Books(w http.ResponseWriter, r *http.Request) {
	if _, err := h.controller.RefreshBooks(r.Context()); err != nil {
		writeActionError(w, err)
		return
	}
	identity := h.controller.Identity()
	caps := roles.CapabilitiesFor(identity)

	options, err := render.CategoryOptions(h.controller.Categories())
	if err != nil {
		writeFragment(w, "", err)
		return
	}
	table, err := render.BooksTable(h.controller.Books(), identity, caps)
	if err != nil {
		writeFragment(w, "", err)
		return
	}
	fragment, err := render.BooksView(options, table, caps.CanManageBooks)
	writeFragment(w, fragment, err)
}

// FilterBooks recomputes the derived book view and renders just the table.
func (h *ViewHandler) FilterBooks(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	books := h.controller.FilterBooks(filter.BookFilter{
		Search:       q.Get("search"),
		Category:     q.Get("category"),
		Availability: q.Get("availability"),
	})
	identity := h.controller.Identity()
	fragment, err := render.BooksTable(books, identity, roles.CapabilitiesFor(identity))
	writeFragment(w, fragment, err)
}

// Transactions refreshes the transaction cache and renders the tab.
func (h *ViewHandler) Transactions(w http.ResponseWriter, r *http.Request) {
	if _, err := h.controller.RefreshTransactions(r.Context()); err != nil {
		writeActionError(w, err)
		return
	}
	caps := roles.CapabilitiesFor(h.controller.Identity())
	table, err := render.TransactionsTable(h.controller.Transactions(), caps)
	if err != nil {
		writeFragment(w, "", err)
		return
	}
	fragment, err := render.TransactionsView(table)
	writeFragment(w, fragment, err)
}

// FilterTransactions recomputes the derived transaction view.
func (h *ViewHandler) FilterTransactions(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	transactions := h.controller.FilterTransactions(filter.TransactionFilter{
		Search: q.Get("search"),
		Status: q.Get("status"),
	})
	caps := roles.CapabilitiesFor(h.controller.Identity())
	fragment, err := render.TransactionsTable(transactions, caps)
	writeFragment(w, fragment, err)
}

// Users refreshes the account listing and renders the tab. Management
// capability is required; the gate here is advisory, the API enforces it
// again server-side.
func (h *ViewHandler) Users(w http.ResponseWriter, r *http.Request) {
	identity := h.controller.Identity()
	if !roles.CapabilitiesFor(identity).CanManageUsers {
		http.Error(w, "Forbidden", http.StatusForbidden)
		return
	}
	if _, err := h.controller.RefreshUsers(r.Context()); err != nil {
		writeActionError(w, err)
		return
	}
	table, err := render.UsersTable(h.controller.Users(), identity)
	if err != nil {
		writeFragment(w, "", err)
		return
	}
	fragment, err := render.UsersView(table)
	writeFragment(w, fragment, err)
}

// FilterUsers recomputes the derived user view.
func (h *ViewHandler) FilterUsers(w http.ResponseWriter, r *http.Request) {
	identity := h.controller.Identity()
	if !roles.CapabilitiesFor(identity).CanManageUsers {
		http.Error(w, "Forbidden", http.StatusForbidden)
		return
	}
	q := r.URL.Query()
	users := h.controller.FilterUsers(filter.UserFilter{
		Search: q.Get("search"),
		Role:   q.Get("role"),
	})
	fragment, err := render.UsersTable(users, identity)
	writeFragment(w, fragment, err)
}

// Inventory refreshes the stock report and renders the tab.
func (h *ViewHandler) Inventory(w http.ResponseWriter, r *http.Request) {
	caps := roles.CapabilitiesFor(h.controller.Identity())
	if !caps.CanManageBooks {
		http.Error(w, "Forbidden", http.StatusForbidden)
		return
	}
	if _, err := h.controller.RefreshInventory(r.Context()); err != nil {
		writeActionError(w, err)
		return
	}
	fragment, err := render.InventoryTable(h.controller.Inventory(), caps)
	writeFragment(w, fragment, err)
}

// Reports refreshes and renders the flat system report.
func (h *ViewHandler) Reports(w http.ResponseWriter, r *http.Request) {
	if !roles.CapabilitiesFor(h.controller.Identity()).CanManageBooks {
		http.Error(w, "Forbidden", http.StatusForbidden)
		return
	}
	if err := h.controller.RefreshReports(r.Context()); err != nil {
		writeActionError(w, err)
		return
	}
	fragment, err := render.ReportCards(h.controller.Report())
	writeFragment(w, fragment, err)
}

// Activity renders the console's own recent activity log.
func (h *ViewHandler) Activity(w http.ResponseWriter, r *http.Request) {
	limit := 20
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 && n <= 100 {
			limit = n
		}
	}
	entries, err := h.activity.Recent(limit)
	if err != nil {
		writeFragment(w, "", err)
		return
	}
	items := make([]render.ActivityItem, 0, len(entries))
	for _, e := range entries {
		items = append(items, render.ActivityItem{Type: e.Type, Level: e.Level, Message: e.Message, When: e.CreatedAt})
	}
	fragment, err := render.ActivityList(items)
	writeFragment(w, fragment, err)
}
