package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/opencirc/libconsole/internal/dispatch"
	"github.com/opencirc/libconsole/internal/roles"
	"github.com/opencirc/libconsole/internal/state"
)

// ActionHandler receives operator commands and hands them to the
// dispatcher. Destructive commands come back as a confirmation the
// browser must commit or abort.
type ActionHandler struct {
	dispatcher *dispatch.Dispatcher
	controller *state.Controller
}

// NewActionHandler creates a new ActionHandler.
func NewActionHandler(dispatcher *dispatch.Dispatcher, controller *state.Controller) *ActionHandler {
	return &ActionHandler{dispatcher: dispatcher, controller: controller}
}

func (h *ActionHandler) canManageBooks() bool {
	return roles.CapabilitiesFor(h.controller.Identity()).CanManageBooks
}

func (h *ActionHandler) canManageUsers() bool {
	return roles.CapabilitiesFor(h.controller.Identity()).CanManageUsers
}

func idParam(r *http.Request) (int64, error) {
	return strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
}

func bookFormFrom(r *http.Request) dispatch.BookForm {
	return dispatch.BookForm{
		Title:       r.FormValue("title"),
		Author:      r.FormValue("author"),
		Category:    r.FormValue("category"),
		ISBN:        r.FormValue("isbn"),
		TotalCopies: r.FormValue("totalCopies"),
	}
}

// AddBook creates a catalog entry.
func (h *ActionHandler) AddBook(w http.ResponseWriter, r *http.Request) {
	if !h.canManageBooks() {
		http.Error(w, "Forbidden", http.StatusForbidden)
		return
	}
	if err := h.dispatcher.AddBook(r.Context(), bookFormFrom(r)); err != nil {
		writeActionError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// EditBook updates a catalog entry.
func (h *ActionHandler) EditBook(w http.ResponseWriter, r *http.Request) {
	if !h.canManageBooks() {
		http.Error(w, "Forbidden", http.StatusForbidden)
		return
	}
	id, err := idParam(r)
	if err != nil {
		http.Error(w, "Invalid book id", http.StatusBadRequest)
		return
	}
	if err := h.dispatcher.EditBook(r.Context(), id, bookFormFrom(r)); err != nil {
		writeActionError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Borrow borrows a book for the operator.
func (h *ActionHandler) Borrow(w http.ResponseWriter, r *http.Request) {
	bookID, err := strconv.ParseInt(r.FormValue("bookId"), 10, 64)
	if err != nil {
		http.Error(w, "Invalid book id", http.StatusBadRequest)
		return
	}
	if err := h.dispatcher.QuickBorrow(r.Context(), bookID); err != nil {
		writeActionError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// UpdateInventory sets a book's total copy count.
func (h *ActionHandler) UpdateInventory(w http.ResponseWriter, r *http.Request) {
	if !h.canManageBooks() {
		http.Error(w, "Forbidden", http.StatusForbidden)
		return
	}
	id, err := idParam(r)
	if err != nil {
		http.Error(w, "Invalid book id", http.StatusBadRequest)
		return
	}
	if err := h.dispatcher.UpdateInventory(r.Context(), id, r.FormValue("totalCopies")); err != nil {
		writeActionError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// EditUserRole changes an account's role.
func (h *ActionHandler) EditUserRole(w http.ResponseWriter, r *http.Request) {
	if !h.canManageUsers() {
		http.Error(w, "Forbidden", http.StatusForbidden)
		return
	}
	id, err := idParam(r)
	if err != nil {
		http.Error(w, "Invalid user id", http.StatusBadRequest)
		return
	}
	if err := h.dispatcher.EditUserRole(r.Context(), id, r.FormValue("role")); err != nil {
		writeActionError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// RequestDeleteBook stages a book deletion and returns the confirmation.
func (h *ActionHandler) RequestDeleteBook(w http.ResponseWriter, r *http.Request) {
	if !h.canManageBooks() {
		http.Error(w, "Forbidden", http.StatusForbidden)
		return
	}
	id, err := idParam(r)
	if err != nil {
		http.Error(w, "Invalid book id", http.StatusBadRequest)
		return
	}
	confirmation, err := h.dispatcher.RequestDeleteBook(id)
	if err != nil {
		writeActionError(w, err)
		return
	}
	writeJSON(w, confirmation)
}

// RequestDeleteUser stages an account deletion.
func (h *ActionHandler) RequestDeleteUser(w http.ResponseWriter, r *http.Request) {
	if !h.canManageUsers() {
		http.Error(w, "Forbidden", http.StatusForbidden)
		return
	}
	id, err := idParam(r)
	if err != nil {
		http.Error(w, "Invalid user id", http.StatusBadRequest)
		return
	}
	confirmation, err := h.dispatcher.RequestDeleteUser(id)
	if err != nil {
		writeActionError(w, err)
		return
	}
	writeJSON(w, confirmation)
}

// RequestReturn stages a book return.
func (h *ActionHandler) RequestReturn(w http.ResponseWriter, r *http.Request) {
	if !h.canManageBooks() {
		http.Error(w, "Forbidden", http.StatusForbidden)
		return
	}
	id, err := idParam(r)
	if err != nil {
		http.Error(w, "Invalid transaction id", http.StatusBadRequest)
		return
	}
	confirmation, err := h.dispatcher.RequestReturn(id)
	if err != nil {
		writeActionError(w, err)
		return
	}
	writeJSON(w, confirmation)
}

// Confirm commits a staged destructive action.
func (h *ActionHandler) Confirm(w http.ResponseWriter, r *http.Request) {
	if err := h.dispatcher.Commit(r.Context(), chi.URLParam(r, "token")); err != nil {
		writeActionError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Abort drops a staged destructive action. Declining is a no-op: nothing
// went on the wire, nothing changed.
func (h *ActionHandler) Abort(w http.ResponseWriter, r *http.Request) {
	if err := h.dispatcher.Abort(chi.URLParam(r, "token")); err != nil {
		writeActionError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ImportCSV uploads a book CSV to the catalog.
func (h *ActionHandler) ImportCSV(w http.ResponseWriter, r *http.Request) {
	if !h.canManageBooks() {
		http.Error(w, "Forbidden", http.StatusForbidden)
		return
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		http.Error(w, "A CSV file is required", http.StatusBadRequest)
		return
	}
	defer file.Close()

	count, err := h.dispatcher.ImportCSV(r.Context(), header.Filename, file)
	if err != nil {
		writeActionError(w, err)
		return
	}
	writeJSON(w, map[string]int{"importedCount": count})
}

// ExportCSV streams the catalog export to the browser as a download.
func (h *ActionHandler) ExportCSV(w http.ResponseWriter, r *http.Request) {
	blob, contentType, err := h.dispatcher.ExportBooks(r.Context())
	if err != nil {
		writeActionError(w, err)
		return
	}
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", `attachment; filename="books_export.csv"`)
	w.Write(blob)
}

// Register creates a new catalog account.
func (h *ActionHandler) Register(w http.ResponseWriter, r *http.Request) {
	if err := h.dispatcher.Register(r.Context(),
		r.FormValue("username"), r.FormValue("email"), r.FormValue("password")); err != nil {
		writeActionError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ChangePassword updates the operator's password.
func (h *ActionHandler) ChangePassword(w http.ResponseWriter, r *http.Request) {
	if err := h.dispatcher.ChangePassword(r.Context(),
		r.FormValue("newPassword"), r.FormValue("confirmPassword")); err != nil {
		writeActionError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(v)
}
