package render

import (
	"html/template"

	"github.com/opencirc/libconsole/internal/models"
	"github.com/opencirc/libconsole/internal/roles"
)

var loginTmpl = template.Must(template.New("login").Parse(`<!DOCTYPE html>
<html lang="en">
<head><meta charset="utf-8"><title>Library Console</title><link rel="stylesheet" href="/static/console.css"></head>
<body class="login">
<main class="login-box">
<h1>Library Console</h1>
{{- if .Message}}
<div class="alert alert-danger">{{.Message}}</div>
{{- end}}
<form method="post" action="/login" id="loginForm">
<label>Username or Email<input type="text" name="usernameOrEmail" required autofocus></label>
<label>Password<input type="password" name="password" required></label>
<button type="submit" class="btn btn-primary">Sign in</button>
</form>
</main>
</body>
</html>`))

// LoginPage renders the unauthenticated view. message, when non-empty, is
// the server's rejection text shown verbatim.
func LoginPage(message string) (template.HTML, error) {
	return execute(loginTmpl, map[string]any{"Message": message})
}

type shellTab struct {
	ID    string
	Label string
}

var indexTmpl = template.Must(template.New("index").Funcs(funcs).Parse(`<!DOCTYPE html>
<html lang="en">
<head><meta charset="utf-8"><title>Library Console</title><link rel="stylesheet" href="/static/console.css"></head>
<body>
<header class="topbar">
<span class="brand">Library Console</span>
<nav id="mainTabs">
{{- range .Tabs}}
<button data-view="{{.ID}}">{{.Label}}</button>
{{- end}}
</nav>
<span class="operator">{{.Identity.Username}} <span class="badge {{roleBadge .Identity.Role}}">{{.Identity.Role}}</span></span>
<form method="post" action="/logout" class="inline"><button type="submit" class="btn btn-sm">Logout</button></form>
</header>
<div id="alertContainer"></div>
<main id="viewContainer" data-initial-view="dashboard"></main>
<script src="/static/console.js"></script>
</body>
</html>`))

// IndexPage renders the authenticated shell: tab bar, operator badge and
// the empty container the view fragments load into. Tabs the capability
// set does not cover are simply absent.
func IndexPage(identity *models.Identity, caps roles.Capabilities) (template.HTML, error) {
	tabs := []shellTab{
		{ID: "dashboard", Label: "Dashboard"},
		{ID: "books", Label: "Books"},
		{ID: "transactions", Label: "Transactions"},
	}
	if caps.CanManageUsers {
		tabs = append(tabs, shellTab{ID: "users", Label: "Users"})
	}
	if caps.CanManageBooks {
		tabs = append(tabs, shellTab{ID: "inventory", Label: "Inventory"})
		tabs = append(tabs, shellTab{ID: "reports", Label: "Reports"})
	}
	return execute(indexTmpl, map[string]any{"Identity": identity, "Tabs": tabs})
}
