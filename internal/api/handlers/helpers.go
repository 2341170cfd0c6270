package handlers

import (
	"html/template"
	"net/http"

	"github.com/rs/zerolog/log"

	"github.com/opencirc/libconsole/internal/dispatch"
	"github.com/opencirc/libconsole/internal/gateway"
)

// writeFragment sends a rendered HTML fragment.
func writeFragment(w http.ResponseWriter, fragment template.HTML, err error) {
	if err != nil {
		log.Error().Err(err).Msg("Fragment rendering failed")
		http.Error(w, "Rendering failed", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Write([]byte(fragment))
}

// writeActionError maps a failure onto the response the browser shows.
// Application bodies pass through verbatim; nothing is invented here.
func writeActionError(w http.ResponseWriter, err error) {
	switch {
	case dispatch.IsValidation(err):
		http.Error(w, err.Error(), http.StatusBadRequest)
	case err == dispatch.ErrConfirmationNotFound:
		http.Error(w, err.Error(), http.StatusNotFound)
	case err == dispatch.ErrConfirmationExpired:
		http.Error(w, err.Error(), http.StatusGone)
	case gateway.IsAuthRequired(err):
		http.Error(w, "Session expired, sign in again", http.StatusUnauthorized)
	case gateway.IsTransport(err):
		http.Error(w, "Cannot connect to the library server. Check connectivity.", http.StatusBadGateway)
	case gateway.IsApplication(err):
		status := gateway.StatusOf(err)
		if status == 0 {
			status = http.StatusBadGateway
		}
		http.Error(w, err.Error(), status)
	default:
		log.Error().Err(err).Msg("Unexpected action failure")
		http.Error(w, "Internal error", http.StatusInternalServerError)
	}
}
