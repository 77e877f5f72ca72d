// Package handler contains chi HTTP handlers that translate HTTP
// requests/responses to and from the admission service.
package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/portfest/registration-api/internal/model"
	"github.com/portfest/registration-api/internal/repository"
	"github.com/portfest/registration-api/internal/service"
)

// RegistrationHandler holds all HTTP handlers for the admission API.
type RegistrationHandler struct {
	svc *service.AdmissionService
}

// NewRegistrationHandler constructs a RegistrationHandler.
func NewRegistrationHandler(svc *service.AdmissionService) *RegistrationHandler {
	return &RegistrationHandler{svc: svc}
}

// ─── Helper utilities ─────────────────────────────────────────────────────────

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, model.ErrorResponse{Error: msg})
}

func decodeJSON(r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(nil, r.Body, 1<<20) // 1 MB limit
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	return dec.Decode(dst)
}

// ─── Handlers ─────────────────────────────────────────────────────────────────

// Register handles POST /registrations/{eventKey}
// Runs one submission through the admission protocol. The four failure
// modes map to distinct statuses so clients can render "already
// registered" vs "sold out" vs "try again" differently.
func (h *RegistrationHandler) Register(w http.ResponseWriter, r *http.Request) {
	eventKey := chi.URLParam(r, "eventKey")

	var req model.RegisterRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	reg, err := h.svc.Register(r.Context(), eventKey, req)
	if err != nil {
		var invalid *service.ValidationError
		var dup *repository.DuplicateError
		switch {
		case errors.As(err, &invalid):
			writeError(w, http.StatusBadRequest, invalid.Message)
		case errors.Is(err, repository.ErrNotFound):
			writeError(w, http.StatusNotFound, "unknown event")
		case errors.As(err, &dup):
			writeJSON(w, http.StatusConflict, model.ErrorResponse{
				Error: dup.Error(),
				Field: dup.Field,
			})
		case errors.Is(err, repository.ErrAlreadyRegistered):
			writeError(w, http.StatusConflict, "already registered for this event")
		case errors.Is(err, repository.ErrEventFull):
			writeError(w, http.StatusGone, "event is sold out")
		default:
			writeError(w, http.StatusInternalServerError, "registration failed, please try again")
		}
		return
	}

	writeJSON(w, http.StatusCreated, reg)
}

// CheckDuplicate handles GET /registrations/{eventKey}?email=&phone=
// Exposes the advisory duplicate guard for client-side pre-validation.
func (h *RegistrationHandler) CheckDuplicate(w http.ResponseWriter, r *http.Request) {
	eventKey := chi.URLParam(r, "eventKey")
	email := r.URL.Query().Get("email")
	phone := r.URL.Query().Get("phone")

	check, err := h.svc.CheckDuplicate(r.Context(), eventKey, email, phone)
	if err != nil {
		var invalid *service.ValidationError
		switch {
		case errors.As(err, &invalid):
			writeError(w, http.StatusBadRequest, invalid.Message)
		case errors.Is(err, repository.ErrNotFound):
			writeError(w, http.StatusNotFound, "unknown event")
		default:
			writeError(w, http.StatusInternalServerError, "failed to check registration")
		}
		return
	}

	writeJSON(w, http.StatusOK, check)
}

// SeatCount handles GET /registrations/{eventKey}/count
// Returns current availability for the seats-remaining UI.
func (h *RegistrationHandler) SeatCount(w http.ResponseWriter, r *http.Request) {
	eventKey := chi.URLParam(r, "eventKey")

	availability, err := h.svc.SeatCount(r.Context(), eventKey)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			writeError(w, http.StatusNotFound, "unknown event")
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to get seat count")
		return
	}

	writeJSON(w, http.StatusOK, availability)
}

// ListEvents handles GET /events
// Returns the catalog with remaining seats per event.
func (h *RegistrationHandler) ListEvents(w http.ResponseWriter, r *http.Request) {
	events, err := h.svc.Events(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list events")
		return
	}
	writeJSON(w, http.StatusOK, events)
}

// ListRegistrations handles GET /admin/registrations/{eventKey}
func (h *RegistrationHandler) ListRegistrations(w http.ResponseWriter, r *http.Request) {
	eventKey := chi.URLParam(r, "eventKey")

	regs, err := h.svc.ListRegistrations(r.Context(), eventKey)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			writeError(w, http.StatusNotFound, "unknown event")
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to list registrations")
		return
	}

	if regs == nil {
		regs = []model.Registration{}
	}
	writeJSON(w, http.StatusOK, regs)
}

// Reconcile handles POST /admin/reconcile and POST /admin/reconcile/{eventKey}
// Resets counters to the actual record counts and reports the drift that
// was corrected.
func (h *RegistrationHandler) Reconcile(w http.ResponseWriter, r *http.Request) {
	eventKey := chi.URLParam(r, "eventKey")

	if eventKey != "" {
		result, err := h.svc.Reconcile(r.Context(), eventKey)
		if err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				writeError(w, http.StatusNotFound, "unknown event")
				return
			}
			writeError(w, http.StatusInternalServerError, "reconcile failed")
			return
		}
		writeJSON(w, http.StatusOK, result)
		return
	}

	results, err := h.svc.ReconcileAll(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "reconcile failed")
		return
	}
	writeJSON(w, http.StatusOK, results)
}

// ─── Health check ─────────────────────────────────────────────────────────────

// HealthCheck handles GET /health
func HealthCheck(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
