package render

import (
	"html/template"

	"github.com/opencirc/libconsole/internal/models"
)

// The view wrappers pair a collection table with its filter bar. Filter
// changes re-render only the table; the bar itself is part of the tab
// fragment.

var booksViewTmpl = template.Must(template.New("booksView").Parse(`<section class="view" data-view="books">
<div class="toolbar">
<input type="search" id="bookSearch" placeholder="Search title, author, ISBN">
<select id="categoryFilter">{{.CategoryOptions}}</select>
<select id="availabilityFilter">
<option value="">All</option>
<option value="available">Available</option>
<option value="unavailable">Unavailable</option>
</select>
<button class="btn btn-sm" data-action="clear-filters">Clear</button>
{{- if .CanManage}}
<button class="btn btn-sm" data-action="add-book">Add Book</button>
<button class="btn btn-sm" data-action="import-csv">Import CSV</button>
<button class="btn btn-sm" data-action="export-csv">Export CSV</button>
{{- end}}
</div>
<div class="table-container" id="booksContainer">{{.Table}}</div>
</section>`))

// BooksView renders the books tab: toolbar plus table.
func BooksView(categoryOptions, table template.HTML, canManage bool) (template.HTML, error) {
	return execute(booksViewTmpl, map[string]any{
		"CategoryOptions": categoryOptions,
		"Table":           table,
		"CanManage":       canManage,
	})
}

var transactionsViewTmpl = template.Must(template.New("transactionsView").Parse(`<section class="view" data-view="transactions">
<div class="toolbar">
<input type="search" id="transactionSearch" placeholder="Search book or user">
<select id="statusFilter">
<option value="">All Statuses</option>
{{- range .Statuses}}
<option value="{{.}}">{{.}}</option>
{{- end}}
</select>
<button class="btn btn-sm" data-action="clear-filters">Clear</button>
</div>
<div class="table-container" id="transactionsContainer">{{.Table}}</div>
</section>`))

// TransactionsView renders the transactions tab.
func TransactionsView(table template.HTML) (template.HTML, error) {
	return execute(transactionsViewTmpl, map[string]any{
		"Statuses": []string{models.StatusBorrowed, models.StatusReturned, models.StatusOverdue},
		"Table":    table,
	})
}

var usersViewTmpl = template.Must(template.New("usersView").Parse(`<section class="view" data-view="users">
<div class="toolbar">
<input type="search" id="userSearch" placeholder="Search username or email">
<select id="roleFilter">
<option value="">All Roles</option>
{{- range .Roles}}
<option value="{{.}}">{{.}}</option>
{{- end}}
</select>
<button class="btn btn-sm" data-action="clear-filters">Clear</button>
</div>
<div class="table-container" id="usersContainer">{{.Table}}</div>
</section>`))

// UsersView renders the users tab.
func UsersView(table template.HTML) (template.HTML, error) {
	return execute(usersViewTmpl, map[string]any{
		"Roles": []string{models.RoleAdmin, models.RoleLibrarian, models.RoleUser},
		"Table": table,
	})
}
