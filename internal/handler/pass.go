package handler

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	qrcode "github.com/skip2/go-qrcode"

	"github.com/portfest/registration-api/internal/repository"
)

// EntryPass handles GET /registrations/{eventKey}/{id}/pass
// Renders a PNG QR entry pass for an accepted registration. Gate staff
// scan it and look the ID up against the registration list.
func (h *RegistrationHandler) EntryPass(w http.ResponseWriter, r *http.Request) {
	eventKey := chi.URLParam(r, "eventKey")
	id := chi.URLParam(r, "id")

	reg, err := h.svc.GetRegistration(r.Context(), eventKey, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			writeError(w, http.StatusNotFound, "registration not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to generate pass")
		return
	}

	png, err := qrcode.Encode(fmt.Sprintf("portfest:%s:%s", reg.EventKey, reg.ID), qrcode.Medium, 256)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to generate pass")
		return
	}

	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Content-Length", strconv.Itoa(len(png)))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(png)
}
