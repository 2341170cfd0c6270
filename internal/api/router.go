package api

import (
	"embed"
	"io/fs"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/opencirc/libconsole/internal/activity"
	"github.com/opencirc/libconsole/internal/api/handlers"
	"github.com/opencirc/libconsole/internal/auth"
	"github.com/opencirc/libconsole/internal/dispatch"
	"github.com/opencirc/libconsole/internal/session"
	"github.com/opencirc/libconsole/internal/state"
	"github.com/opencirc/libconsole/internal/websocket"
)

//go:embed static
var staticFiles embed.FS

// NewRouter creates and configures a new Chi router.
func NewRouter(secret []byte, sessions session.StoreProvider, controller *state.Controller, dispatcher *dispatch.Dispatcher, rec activity.RecorderProvider, hub *websocket.Hub) *chi.Mux {
	r := chi.NewRouter()

	// Basic middleware stack
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"http://localhost:*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	authHandler := handlers.NewAuthHandler(secret, sessions, controller, dispatcher)
	viewHandler := handlers.NewViewHandler(controller, rec)
	actionHandler := handlers.NewActionHandler(dispatcher, controller)
	wsHandler := handlers.NewWebSocketHandler(hub)

	staticFS, _ := fs.Sub(staticFiles, "static")
	r.Handle("/static/*", http.StripPrefix("/static/", http.FileServer(http.FS(staticFS))))

	// Public surface
	r.Get("/", authHandler.Index)
	r.Post("/login", authHandler.Login)
	r.Post("/actions/register", actionHandler.Register)
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})
	r.Handle("/metrics", promhttp.Handler())

	// Operator surface, behind the session cookie
	r.Group(func(r chi.Router) {
		r.Use(auth.Middleware(secret, sessions))

		r.Post("/logout", authHandler.Logout)
		r.Get("/ws", wsHandler.Serve)

		r.Route("/views", func(r chi.Router) {
			r.Get("/dashboard", viewHandler.Dashboard)
			r.Get("/books", viewHandler.Books)
			r.Get("/books/filter", viewHandler.FilterBooks)
			r.Get("/transactions", viewHandler.Transactions)
			r.Get("/transactions/filter", viewHandler.FilterTransactions)
			r.Get("/users", viewHandler.Users)
			r.Get("/users/filter", viewHandler.FilterUsers)
			r.Get("/inventory", viewHandler.Inventory)
			r.Get("/reports", viewHandler.Reports)
			r.Get("/activity", viewHandler.Activity)
		})

		r.Route("/actions", func(r chi.Router) {
			r.Post("/books", actionHandler.AddBook)
			r.Put("/books/{id}", actionHandler.EditBook)
			r.Post("/books/{id}/delete", actionHandler.RequestDeleteBook)
			r.Put("/inventory/{id}", actionHandler.UpdateInventory)
			r.Post("/borrow", actionHandler.Borrow)
			r.Post("/transactions/{id}/return", actionHandler.RequestReturn)
			r.Put("/users/{id}/role", actionHandler.EditUserRole)
			r.Post("/users/{id}/delete", actionHandler.RequestDeleteUser)
			r.Post("/confirm/{token}", actionHandler.Confirm)
			r.Delete("/confirm/{token}", actionHandler.Abort)
			r.Post("/import", actionHandler.ImportCSV)
			r.Get("/export", actionHandler.ExportCSV)
			r.Post("/password", actionHandler.ChangePassword)
		})
	})

	return r
}
