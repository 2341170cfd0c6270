// Package render maps collections and aggregates to HTML fragments. It is
// strictly a sink: no network calls, no state mutation. Everything that
// came from a user or from the server passes through html/template's
// contextual escaping before it reaches markup.
package render

import (
	"bytes"
	"encoding/json"
	"html/template"
	"time"

	"github.com/opencirc/libconsole/internal/models"
	"github.com/opencirc/libconsole/internal/roles"
)

var funcs = template.FuncMap{
	"formatDate":  formatDate,
	"statusBadge": statusBadge,
	"roleBadge":   roleBadge,
	"inc":         func(i int) int { return i + 1 },
}

func formatDate(s string) string {
	if s == "" {
		return ""
	}
	for _, layout := range []string{time.RFC3339, "2006-01-02T15:04:05", "2006-01-02"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t.Format("Jan 2, 2006")
		}
	}
	return s
}

func statusBadge(status string) string {
	switch status {
	case models.StatusBorrowed:
		return "badge-warning"
	case models.StatusReturned:
		return "badge-success"
	case models.StatusOverdue:
		return "badge-danger"
	}
	return "badge-secondary"
}

func roleBadge(role string) string {
	switch role {
	case models.RoleAdmin:
		return "badge-danger"
	case models.RoleLibrarian:
		return "badge-warning"
	case models.RoleUser:
		return "badge-primary"
	}
	return "badge-secondary"
}

func execute(t *template.Template, data any) (template.HTML, error) {
	var buf bytes.Buffer
	if err := t.Execute(&buf, data); err != nil {
		return "", err
	}
	return template.HTML(buf.String()), nil
}

// bookRow carries one book plus its precomputed affordances, so templates
// never compare roles themselves.
type bookRow struct {
	models.Book
	CanBorrow bool
	CanEdit   bool
	CanDelete bool
}

var booksTmpl = template.Must(template.New("books").Funcs(funcs).Parse(`<table class="table" id="booksTable">
<thead><tr><th>ID</th><th>Title</th><th>Author</th><th>Category</th><th>ISBN</th><th>Copies</th><th>Actions</th></tr></thead>
<tbody>
{{- if not .Rows}}
<tr><td colspan="7" class="empty">No books found</td></tr>
{{- end}}
{{- range .Rows}}
<tr>
<td>{{.ID}}</td>
<td><strong>{{.Title}}</strong></td>
<td>{{.Author}}</td>
<td>{{if .Category}}{{.Category}}{{else}}N/A{{end}}</td>
<td>{{if .ISBN}}{{.ISBN}}{{else}}N/A{{end}}</td>
<td><span class="badge {{if .Available}}badge-success{{else}}badge-danger{{end}}">{{.AvailableCopies}}/{{.TotalCopies}}</span></td>
<td>
{{- if .CanBorrow}}<button class="btn btn-sm" data-action="borrow" data-book-id="{{.ID}}">Quick Borrow</button>{{end -}}
{{- if .CanEdit}}<button class="btn btn-sm" data-action="edit-book" data-book-id="{{.ID}}">Edit</button>{{end -}}
{{- if .CanDelete}}<button class="btn btn-sm btn-danger" data-action="delete-book" data-book-id="{{.ID}}">Delete</button>{{end -}}
</td>
</tr>
{{- end}}
</tbody>
</table>`))

// BooksTable renders the book collection with row affordances derived from
// the capability set. Delete only shows when every copy is on the shelf.
func BooksTable(books []models.Book, identity *models.Identity, caps roles.Capabilities) (template.HTML, error) {
	rows := make([]bookRow, 0, len(books))
	for _, b := range books {
		rows = append(rows, bookRow{
			Book:      b,
			CanBorrow: roles.CanBorrow(identity, b),
			CanEdit:   caps.CanManageBooks,
			CanDelete: caps.CanManageBooks && b.TotalCopies == b.AvailableCopies,
		})
	}
	return execute(booksTmpl, map[string]any{"Rows": rows})
}

type transactionRow struct {
	models.Transaction
	CanReturn bool
}

var transactionsTmpl = template.Must(template.New("transactions").Funcs(funcs).Parse(`<table class="table" id="transactionsTable">
<thead><tr><th>ID</th><th>Book</th><th>User</th><th>Borrowed</th><th>Returned</th><th>Status</th><th>Actions</th></tr></thead>
<tbody>
{{- if not .Rows}}
<tr><td colspan="7" class="empty">No transactions found</td></tr>
{{- end}}
{{- range .Rows}}
<tr>
<td>{{.ID}}</td>
<td>{{.BookTitle}}</td>
<td>{{.UserName}}</td>
<td>{{formatDate .BorrowDate}}</td>
<td>{{if .ReturnDate}}{{formatDate .ReturnDate}}{{else}}Not returned{{end}}</td>
<td><span class="badge {{statusBadge .Status}}">{{.Status}}</span></td>
<td>{{if .CanReturn}}<button class="btn btn-sm btn-success" data-action="return" data-transaction-id="{{.ID}}">Return</button>{{end}}</td>
</tr>
{{- end}}
</tbody>
</table>`))

// TransactionsTable renders the transaction collection. The return button
// only appears on BORROWED rows for operators who manage books.
func TransactionsTable(transactions []models.Transaction, caps roles.Capabilities) (template.HTML, error) {
	rows := make([]transactionRow, 0, len(transactions))
	for _, t := range transactions {
		rows = append(rows, transactionRow{
			Transaction: t,
			CanReturn:   t.Status == models.StatusBorrowed && caps.CanManageBooks,
		})
	}
	return execute(transactionsTmpl, map[string]any{"Rows": rows})
}

type userRow struct {
	models.UserRecord
	CanEdit bool
}

var usersTmpl = template.Must(template.New("users").Funcs(funcs).Parse(`<table class="table" id="usersTable">
<thead><tr><th>ID</th><th>Username</th><th>Email</th><th>Role</th><th>Active Borrows</th><th>Actions</th></tr></thead>
<tbody>
{{- if not .Rows}}
<tr><td colspan="6" class="empty">No users found</td></tr>
{{- end}}
{{- range .Rows}}
<tr>
<td>{{.ID}}</td>
<td>{{.Username}}</td>
<td>{{.Email}}</td>
<td><span class="badge {{roleBadge .Role}}">{{.Role}}</span></td>
<td>{{.ActiveBorrows}}</td>
<td>
{{- if .CanEdit -}}
<button class="btn btn-sm" data-action="edit-role" data-user-id="{{.ID}}" data-role="{{.Role}}">Edit Role</button>
<button class="btn btn-sm btn-danger" data-action="delete-user" data-user-id="{{.ID}}">Delete</button>
{{- end -}}
</td>
</tr>
{{- end}}
</tbody>
</table>`))

// UsersTable renders the account listing. Rows for the operator's own
// account never show edit or delete.
func UsersTable(users []models.UserRecord, identity *models.Identity) (template.HTML, error) {
	rows := make([]userRow, 0, len(users))
	for _, u := range users {
		rows = append(rows, userRow{
			UserRecord: u,
			CanEdit:    roles.CanEditUserRow(identity, u),
		})
	}
	return execute(usersTmpl, map[string]any{"Rows": rows})
}

// chartSeries is the labeled series handed to the chart sink, serialized
// into a data attribute the sink reads back.
type chartSeries struct {
	Labels []string `json:"labels"`
	Data   []int    `json:"data"`
}

type trendSeries struct {
	Labels   []string `json:"labels"`
	Borrowed []int    `json:"borrowed"`
	Returned []int    `json:"returned"`
}

var dashboardTmpl = template.Must(template.New("dashboard").Funcs(funcs).Parse(`<div id="dashboard">
<div class="cards">
<div class="card stat"><span class="stat-value" id="totalBooksCount">{{.Agg.TotalBooks}}</span><span class="stat-label">Total Books</span></div>
<div class="card stat"><span class="stat-value" id="availableBooksCount">{{.Agg.AvailableBooks}}</span><span class="stat-label">Available</span></div>
<div class="card stat"><span class="stat-value" id="activeBorrowersCount">{{.Agg.ActiveBorrowers}}</span><span class="stat-label">Active Borrowers</span></div>
<div class="card stat"><span class="stat-value" id="overdueCount">{{.Agg.OverdueTransactions}}</span><span class="stat-label">Overdue</span></div>
</div>
<div class="charts">
<div class="chart" id="categoryChart" data-series="{{.CategorySeries}}"></div>
<div class="chart" id="transactionChart" data-series="{{.TrendSeries}}"></div>
</div>
<div class="panel" id="popularBooks">
{{- if not .Agg.MostBorrowedBooks}}
<p class="empty">No data available</p>
{{- end}}
{{- range $i, $b := .Agg.MostBorrowedBooks}}
<div class="popular-book"><span class="badge badge-primary">{{inc $i}}</span> <strong>{{$b.Title}}</strong> <small>by {{$b.Author}}</small> <span class="badge badge-success">{{$b.BorrowCount}} borrows</span></div>
{{- end}}
</div>
<div class="panel" id="recentActivity">
{{- if not .Agg.TransactionTrends}}
<p class="empty">No recent activity</p>
{{- end}}
{{- range .Agg.TransactionTrends}}
<div class="activity-row"><strong>{{formatDate .Date}}</strong> <small>{{.Borrowed}} borrowed, {{.Returned}} returned</small></div>
{{- end}}
</div>
</div>`))

// Dashboard renders the aggregate cards, the labeled chart series and the
// popular/recent panels. A zero aggregate renders as zeros and empty
// panels, never an error.
func Dashboard(agg models.DashboardAggregate) (template.HTML, error) {
	category := chartSeries{}
	for _, c := range agg.BooksByCategory {
		category.Labels = append(category.Labels, c.Category)
		category.Data = append(category.Data, c.Count)
	}
	trend := trendSeries{}
	for _, p := range agg.TransactionTrends {
		trend.Labels = append(trend.Labels, p.Date)
		trend.Borrowed = append(trend.Borrowed, p.Borrowed)
		trend.Returned = append(trend.Returned, p.Returned)
	}
	categoryJSON, err := json.Marshal(category)
	if err != nil {
		return "", err
	}
	trendJSON, err := json.Marshal(trend)
	if err != nil {
		return "", err
	}
	return execute(dashboardTmpl, map[string]any{
		"Agg":            agg,
		"CategorySeries": string(categoryJSON),
		"TrendSeries":    string(trendJSON),
	})
}

type inventoryRow struct {
	models.Book
	RowClass  string
	CanUpdate bool
}

var inventoryTmpl = template.Must(template.New("inventory").Funcs(funcs).Parse(`<table class="table" id="inventoryTable">
<thead><tr><th>ID</th><th>Title</th><th>Author</th><th>Total</th><th>Available</th><th>Actions</th></tr></thead>
<tbody>
{{- if not .Rows}}
<tr><td colspan="6" class="empty">No inventory data found</td></tr>
{{- end}}
{{- range .Rows}}
<tr{{if .RowClass}} class="{{.RowClass}}"{{end}}>
<td>{{.ID}}</td>
<td><strong>{{.Title}}</strong></td>
<td>{{.Author}}</td>
<td>{{.TotalCopies}}</td>
<td>{{.AvailableCopies}}</td>
<td>{{if .CanUpdate}}<button class="btn btn-sm" data-action="update-inventory" data-book-id="{{.ID}}" data-copies="{{.TotalCopies}}">Update Copies</button>{{end}}</td>
</tr>
{{- end}}
</tbody>
</table>`))

// InventoryTable renders the stock report with low-stock highlighting.
func InventoryTable(report models.InventoryReport, caps roles.Capabilities) (template.HTML, error) {
	rows := make([]inventoryRow, 0, len(report.Books))
	for _, b := range report.Books {
		row := inventoryRow{Book: b, CanUpdate: caps.CanManageBooks}
		switch {
		case b.AvailableCopies == 0:
			row.RowClass = "row-danger"
		case b.AvailableCopies <= 2:
			row.RowClass = "row-warning"
		}
		rows = append(rows, row)
	}
	return execute(inventoryTmpl, map[string]any{"Rows": rows})
}

var reportTmpl = template.Must(template.New("report").Funcs(funcs).Parse(`<div id="systemReport" class="cards">
<div class="card">
<h5>Book Analytics</h5>
<p><strong>Total Books:</strong> {{.TotalBooks}}</p>
<p><strong>Available Books:</strong> {{.AvailableBooks}}</p>
<p><strong>Most Popular Category:</strong> {{if .PopularCategory}}{{.PopularCategory}}{{else}}N/A{{end}}</p>
<p><strong>Average Books per Category:</strong> {{.AvgBooksPerCategory}}</p>
</div>
<div class="card">
<h5>User Analytics</h5>
<p><strong>Total Users:</strong> {{.TotalUsers}}</p>
<p><strong>Active Borrowers:</strong> {{.ActiveBorrowers}}</p>
<p><strong>Average Books per User:</strong> {{.AvgBooksPerUser}}</p>
<p><strong>Most Active User:</strong> {{if .MostActiveUser}}{{.MostActiveUser}}{{else}}N/A{{end}}</p>
</div>
</div>`))

// ReportCards renders the flat system report.
func ReportCards(report models.SystemReport) (template.HTML, error) {
	return execute(reportTmpl, report)
}

// ActivityItem is one console activity entry prepared for display.
type ActivityItem struct {
	Type    string
	Level   string
	Message string
	When    time.Time
}

var activityTmpl = template.Must(template.New("activity").Funcs(funcs).Parse(`<div id="consoleActivity">
{{- if not .Items}}
<p class="empty">No recent activity</p>
{{- end}}
{{- range .Items}}
<div class="activity-row level-{{.Level}}"><strong>{{.Type}}</strong> <span>{{.Message}}</span> <small>{{.When.Format "Jan 2 15:04"}}</small></div>
{{- end}}
</div>`))

// ActivityList renders the console's own activity log.
func ActivityList(items []ActivityItem) (template.HTML, error) {
	return execute(activityTmpl, map[string]any{"Items": items})
}

// CategoryOptions renders the category selector options from the cache.
func CategoryOptions(categories []string) (template.HTML, error) {
	return execute(categoryOptionsTmpl, map[string]any{"Categories": categories})
}

var categoryOptionsTmpl = template.Must(template.New("categories").Parse(`<option value="">All Categories</option>
{{- range .Categories}}
<option value="{{.}}">{{.}}</option>
{{- end}}`))
