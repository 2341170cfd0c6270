package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/opencirc/libconsole/internal/activity"
	"github.com/opencirc/libconsole/internal/auth"
	"github.com/opencirc/libconsole/internal/database"
	"github.com/opencirc/libconsole/internal/dispatch"
	"github.com/opencirc/libconsole/internal/gateway"
	"github.com/opencirc/libconsole/internal/models"
	"github.com/opencirc/libconsole/internal/session"
	"github.com/opencirc/libconsole/internal/state"
	"github.com/opencirc/libconsole/internal/websocket"
)

const testSecret = "router-test-secret"

// fakeCatalog is a minimal catalog API: one librarian and one member
// account, a static book list.
func fakeCatalog() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /auth/login", func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			UsernameOrEmail string `json:"usernameOrEmail"`
			Password        string `json:"password"`
		}
		json.NewDecoder(r.Body).Decode(&body)
		switch {
		case body.UsernameOrEmail == "alice" && body.Password == "s3cret":
			json.NewEncoder(w).Encode(map[string]string{
				"token": "upstream-tok", "username": "alice",
				"email": "alice@example.com", "role": "LIBRARIAN",
			})
		case body.UsernameOrEmail == "bob" && body.Password == "s3cret":
			json.NewEncoder(w).Encode(map[string]string{
				"token": "upstream-tok", "username": "bob",
				"email": "bob@example.com", "role": "USER",
			})
		default:
			http.Error(w, "Invalid username or password", http.StatusUnauthorized)
		}
	})
	mux.HandleFunc("GET /books", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode([]models.Book{
			{ID: 1, Title: "Dune", Author: "Herbert", Category: "Fiction", TotalCopies: 2, AvailableCopies: 2},
		})
	})
	mux.HandleFunc("GET /transactions", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`[]`))
	})
	mux.HandleFunc("GET /transactions/my-transactions", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`[]`))
	})
	mux.HandleFunc("GET /admin/users", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode([]models.UserRecord{
			{ID: 1, Username: "alice", Email: "alice@example.com", Role: "LIBRARIAN"},
			{ID: 2, Username: "bob", Email: "bob@example.com", Role: "USER"},
		})
	})
	return mux
}

// newConsole stands a full console up against the given catalog API.
func newConsole(t *testing.T, catalog http.Handler) http.Handler {
	t.Helper()

	upstream := httptest.NewServer(catalog)
	t.Cleanup(upstream.Close)

	db, err := database.New(filepath.Join(t.TempDir(), "console.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	require.NoError(t, database.Migrate(db))

	hub := websocket.NewHub()
	go hub.Run()

	sessions := session.NewStore(db)
	controller := state.NewController(nil, func(event string) { hub.Notify(event, "") })
	gw := gateway.New(upstream.URL, controller.Credential, func() {
		sessions.Clear()
		controller.ResetAll()
	})
	controller.SetGateway(gw)

	dispatcher := dispatch.New(gw, controller, activity.NewRecorder(db), db)
	return NewRouter([]byte(testSecret), sessions, controller, dispatcher, activity.NewRecorder(db), hub)
}

func login(t *testing.T, console http.Handler, username, password string) *http.Cookie {
	t.Helper()
	form := url.Values{"usernameOrEmail": {username}, "password": {password}}
	req := httptest.NewRequest(http.MethodPost, "/login", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec := httptest.NewRecorder()
	console.ServeHTTP(rec, req)

	require.Equal(t, http.StatusSeeOther, rec.Code)
	for _, c := range rec.Result().Cookies() {
		if c.Name == auth.CookieName {
			return c
		}
	}
	t.Fatal("no session cookie issued")
	return nil
}

func get(console http.Handler, path string, cookie *http.Cookie) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	if cookie != nil {
		req.AddCookie(cookie)
	}
	rec := httptest.NewRecorder()
	console.ServeHTTP(rec, req)
	return rec
}

func TestIndex_LoggedOutServesLoginPage(t *testing.T) {
	console := newConsole(t, fakeCatalog())

	rec := get(console, "/", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `id="loginForm"`)
}

func TestLogin_RejectionShowsServerTextVerbatim(t *testing.T) {
	console := newConsole(t, fakeCatalog())

	form := url.Values{"usernameOrEmail": {"alice"}, "password": {"wrong"}}
	req := httptest.NewRequest(http.MethodPost, "/login", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec := httptest.NewRecorder()
	console.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "Invalid username or password")
	assert.Contains(t, rec.Body.String(), `id="loginForm"`)
	assert.Empty(t, rec.Result().Cookies())
}

func TestLogin_SuccessServesShellWithCapabilityTabs(t *testing.T) {
	console := newConsole(t, fakeCatalog())
	cookie := login(t, console, "alice", "s3cret")

	rec := get(console, "/", cookie)
	assert.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, "alice")
	assert.Contains(t, body, `data-view="users"`)
	assert.Contains(t, body, `data-view="inventory"`)
	assert.Contains(t, body, `data-view="reports"`)
}

func TestShell_MemberHasNoManagementTabs(t *testing.T) {
	console := newConsole(t, fakeCatalog())
	cookie := login(t, console, "bob", "s3cret")

	rec := get(console, "/", cookie)
	body := rec.Body.String()
	assert.Contains(t, body, `data-view="books"`)
	assert.NotContains(t, body, `data-view="users"`)
	assert.NotContains(t, body, `data-view="inventory"`)
}

func TestViews_RequireSessionCookie(t *testing.T) {
	console := newConsole(t, fakeCatalog())

	assert.Equal(t, http.StatusUnauthorized, get(console, "/views/books", nil).Code)
	assert.Equal(t, http.StatusUnauthorized, get(console, "/views/dashboard", nil).Code)
}

func TestViewsBooks_RendersTable(t *testing.T) {
	console := newConsole(t, fakeCatalog())
	cookie := login(t, console, "alice", "s3cret")

	rec := get(console, "/views/books", cookie)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "Dune")
	assert.Contains(t, rec.Body.String(), `id="booksTable"`)
}

func TestViewsUsers_MemberForbidden(t *testing.T) {
	console := newConsole(t, fakeCatalog())
	cookie := login(t, console, "bob", "s3cret")

	assert.Equal(t, http.StatusForbidden, get(console, "/views/users", cookie).Code)
	assert.Equal(t, http.StatusForbidden, get(console, "/views/users/filter", cookie).Code)
}

func TestLogout_InvalidatesOutstandingCookies(t *testing.T) {
	console := newConsole(t, fakeCatalog())
	cookie := login(t, console, "alice", "s3cret")

	req := httptest.NewRequest(http.MethodPost, "/logout", nil)
	req.AddCookie(cookie)
	rec := httptest.NewRecorder()
	console.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusSeeOther, rec.Code)

	// The old cookie still validates as a JWT but its generation is stale.
	assert.Equal(t, http.StatusUnauthorized, get(console, "/views/books", cookie).Code)
}

func TestViews_UpstreamFailurePassesThroughVerbatim(t *testing.T) {
	broken := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "catalog exploded", http.StatusInternalServerError)
	})
	console := newConsole(t, loginThen(broken))
	cookie := login(t, console, "alice", "s3cret")

	rec := get(console, "/views/books", cookie)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Contains(t, rec.Body.String(), "catalog exploded")
}

// loginThen serves the real login endpoint and hands everything else to next.
func loginThen(next http.Handler) http.Handler {
	catalog := fakeCatalog()
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/auth/login" {
			catalog.ServeHTTP(w, r)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func TestHealthz(t *testing.T) {
	console := newConsole(t, fakeCatalog())
	rec := get(console, "/healthz", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestSessionTeardownOnCredentialRejection(t *testing.T) {
	// After login, the catalog starts rejecting the bearer token. The next
	// view both fails with 401 and tears the console session down.
	rejecting := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "token expired", http.StatusUnauthorized)
	})
	console := newConsole(t, loginThen(rejecting))
	cookie := login(t, console, "alice", "s3cret")

	rec := get(console, "/views/books", cookie)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Contains(t, rec.Body.String(), "Session expired")

	// The teardown bumped the generation, so the cookie is dead too.
	assert.Equal(t, http.StatusUnauthorized, get(console, "/views/dashboard", cookie).Code)
}
