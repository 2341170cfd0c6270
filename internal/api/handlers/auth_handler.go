package handlers

import (
	"net/http"

	"github.com/rs/zerolog/log"

	"github.com/opencirc/libconsole/internal/auth"
	"github.com/opencirc/libconsole/internal/dispatch"
	"github.com/opencirc/libconsole/internal/render"
	"github.com/opencirc/libconsole/internal/roles"
	"github.com/opencirc/libconsole/internal/session"
	"github.com/opencirc/libconsole/internal/state"
)

// AuthHandler serves the shell page and the login/logout flow.
type AuthHandler struct {
	secret     []byte
	sessions   session.StoreProvider
	controller *state.Controller
	dispatcher *dispatch.Dispatcher
}

// NewAuthHandler creates a new AuthHandler.
func NewAuthHandler(secret []byte, sessions session.StoreProvider, controller *state.Controller, dispatcher *dispatch.Dispatcher) *AuthHandler {
	return &AuthHandler{secret: secret, sessions: sessions, controller: controller, dispatcher: dispatcher}
}

// Index serves the shell when a valid operator cookie is present and the
// login page otherwise.
func (h *AuthHandler) Index(w http.ResponseWriter, r *http.Request) {
	identity := h.controller.Identity()
	if identity != nil {
		if cookie, err := r.Cookie(auth.CookieName); err == nil {
			if claims, err := auth.ValidateToken(h.secret, cookie.Value); err == nil &&
				claims.Generation == h.sessions.Generation() {
				page, err := render.IndexPage(identity, roles.CapabilitiesFor(identity))
				writeFragment(w, page, err)
				return
			}
		}
	}
	page, err := render.LoginPage("")
	writeFragment(w, page, err)
}

// Login authenticates against the catalog API and establishes the session.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "Invalid form", http.StatusBadRequest)
		return
	}

	identity, credential, err := h.dispatcher.Login(r.Context(),
		r.FormValue("usernameOrEmail"), r.FormValue("password"))
	if err != nil {
		// The server's rejection text goes back onto the login page as-is.
		page, renderErr := render.LoginPage(err.Error())
		writeFragment(w, page, renderErr)
		return
	}

	if err := h.sessions.Establish(identity, credential); err != nil {
		log.Error().Err(err).Msg("Failed to persist session")
		http.Error(w, "Failed to persist session", http.StatusInternalServerError)
		return
	}
	h.controller.SetSession(&identity, credential)

	token, err := auth.GenerateToken(h.secret, identity.Username, h.sessions.Generation())
	if err != nil {
		log.Error().Err(err).Msg("Failed to sign operator cookie")
		http.Error(w, "Failed to establish session", http.StatusInternalServerError)
		return
	}
	auth.SetCookie(w, token)
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

// Logout tears the session down. Idempotent: logging out while logged out
// just lands back on the login page.
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	if err := h.sessions.Clear(); err != nil {
		log.Error().Err(err).Msg("Failed to clear persisted session")
	}
	h.controller.ResetAll()
	auth.ClearCookie(w)
	http.Redirect(w, r, "/", http.StatusSeeOther)
}
