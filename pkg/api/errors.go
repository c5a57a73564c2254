package api

import (
	"errors"
	"net/http"

	"github.com/panchofuegouy-jpg/imseguros-sub000/pkg/httputil"
	"github.com/panchofuegouy-jpg/imseguros-sub000/pkg/models"
	"github.com/panchofuegouy-jpg/imseguros-sub000/pkg/observability"
	"github.com/panchofuegouy-jpg/imseguros-sub000/pkg/storage"
)

// writeError maps err onto a status code. resource names the entity for 404 messages.
func writeError(w http.ResponseWriter, r *http.Request, err error, resource string) {
	switch {
	case errors.Is(err, storage.ErrNotFound):
		httputil.WriteNotFoundError(w, resource+" not found")
	case errors.Is(err, storage.ErrConflict):
		httputil.WriteConflict(w, err.Error())
	case errors.Is(err, models.ErrInvalidDates):
		httputil.WriteBadRequest(w, err.Error())
	default:
		observability.FromContext(r.Context()).WithError(err).Errorf("Failed to handle %s request", resource)
		httputil.WriteInternalError(w, err)
	}
}
