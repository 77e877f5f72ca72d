package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"

	"github.com/portfest/registration-api/internal/model"
	"github.com/portfest/registration-api/internal/repository"
	"github.com/portfest/registration-api/internal/service"
)

// The handlers are tested end to end over the real admission service
// backed by in-memory stores that mirror the postgres primitives.

type fakeCounters struct {
	mu       sync.Mutex
	counters map[string]*model.SeatCounter
	records  *fakeRecords
}

func (f *fakeCounters) TryReserve(_ context.Context, eventKey string, capacity int) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	c, ok := f.counters[eventKey]
	if !ok {
		c = &model.SeatCounter{EventKey: eventKey, Capacity: capacity}
		f.counters[eventKey] = c
	}
	if c.Reserved >= c.Capacity {
		return 0, repository.ErrEventFull
	}
	c.Reserved++
	return c.Reserved, nil
}

func (f *fakeCounters) Release(_ context.Context, eventKey string) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	c, ok := f.counters[eventKey]
	if !ok {
		return 0, nil
	}
	if c.Reserved > 0 {
		c.Reserved--
	}
	return c.Reserved, nil
}

func (f *fakeCounters) Get(_ context.Context, eventKey string, capacity int) (*model.SeatCounter, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if c, ok := f.counters[eventKey]; ok {
		cp := *c
		return &cp, nil
	}
	return &model.SeatCounter{EventKey: eventKey, Capacity: capacity}, nil
}

func (f *fakeCounters) Reconcile(ctx context.Context, eventKey string, capacity int) (*model.ReconcileResult, error) {
	count, _ := f.records.CountByEvent(ctx, eventKey)
	f.mu.Lock()
	defer f.mu.Unlock()
	before := 0
	if c, ok := f.counters[eventKey]; ok {
		before = c.Reserved
	}
	f.counters[eventKey] = &model.SeatCounter{EventKey: eventKey, Capacity: capacity, Reserved: count}
	return &model.ReconcileResult{EventKey: eventKey, Before: before, After: count, Drift: count - before}, nil
}

type fakeRecords struct {
	mu   sync.Mutex
	regs []model.Registration
}

func (f *fakeRecords) Insert(_ context.Context, reg *model.Registration) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, existing := range f.regs {
		if existing.EventKey != reg.EventKey {
			continue
		}
		if existing.Email == reg.Email {
			return &repository.DuplicateError{Field: "email"}
		}
		if existing.ContactNumber == reg.ContactNumber {
			return &repository.DuplicateError{Field: "contactNumber"}
		}
	}
	f.regs = append(f.regs, *reg)
	return nil
}

func (f *fakeRecords) FindMatch(_ context.Context, eventKey, email, contactNumber string) (*model.DuplicateCheck, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, existing := range f.regs {
		if existing.EventKey != eventKey {
			continue
		}
		if existing.Email == email {
			return &model.DuplicateCheck{IsDuplicate: true, MatchedField: "email"}, nil
		}
		if existing.ContactNumber == contactNumber {
			return &model.DuplicateCheck{IsDuplicate: true, MatchedField: "contactNumber"}, nil
		}
	}
	return &model.DuplicateCheck{IsDuplicate: false}, nil
}

func (f *fakeRecords) CountByEvent(_ context.Context, eventKey string) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	count := 0
	for _, existing := range f.regs {
		if existing.EventKey == eventKey {
			count++
		}
	}
	return count, nil
}

func (f *fakeRecords) GetByID(_ context.Context, eventKey, id string) (*model.Registration, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, existing := range f.regs {
		if existing.EventKey == eventKey && existing.ID == id {
			reg := existing
			return &reg, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (f *fakeRecords) ListByEvent(_ context.Context, eventKey string) ([]model.Registration, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []model.Registration
	for _, existing := range f.regs {
		if existing.EventKey == eventKey {
			out = append(out, existing)
		}
	}
	return out, nil
}

const testSecret = "test-secret"

// newTestRouter builds the same routing tree main assembles.
func newTestRouter(catalog map[string]int) http.Handler {
	records := &fakeRecords{}
	counters := &fakeCounters{counters: make(map[string]*model.SeatCounter), records: records}
	svc := service.NewAdmissionService(catalog, counters, records, service.NoopSeatCache{}, service.NoopNotifier{})
	h := NewRegistrationHandler(svc)

	r := chi.NewRouter()
	r.Use(CORS)
	r.Get("/health", HealthCheck)
	r.Get("/events", h.ListEvents)
	r.Route("/registrations/{eventKey}", func(r chi.Router) {
		r.Post("/", h.Register)
		r.Get("/", h.CheckDuplicate)
		r.Get("/count", h.SeatCount)
		r.Get("/{id}/pass", h.EntryPass)
	})
	r.Route("/admin", func(r chi.Router) {
		r.Use(AdminOnly(testSecret))
		r.Get("/registrations/{eventKey}", h.ListRegistrations)
		r.Post("/reconcile", h.Reconcile)
		r.Post("/reconcile/{eventKey}", h.Reconcile)
	})
	return r
}

func submission(email, contact string) map[string]any {
	return map[string]any{
		"firstName":            "Asha",
		"lastName":             "Iyer",
		"email":                email,
		"contactNumber":        contact,
		"gender":               "Female",
		"transactionId":        "TXN-1",
		"paymentScreenshotRef": "uploads/proof.png",
		"collegeName":          "Port City Engineering College",
		"department":           "CSE",
		"yearOfStudy":          "3",
		"registerNumber":       "PC-42",
		"city":                 "Chennai",
	}
}

func doJSON(t *testing.T, router http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func TestRegisterEndpoint_Created(t *testing.T) {
	router := newTestRouter(map[string]int{"hackproofing": 120})

	rec := doJSON(t, router, http.MethodPost, "/registrations/hackproofing", submission("asha@example.com", "9876543210"))
	require.Equal(t, http.StatusCreated, rec.Code)

	var reg model.Registration
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &reg))
	require.NotEmpty(t, reg.ID)
	require.Equal(t, "hackproofing", reg.EventKey)
	require.Equal(t, "UPI", reg.PaymentMode)
}

func TestRegisterEndpoint_Validation(t *testing.T) {
	router := newTestRouter(map[string]int{"hackproofing": 120})

	body := submission("asha@example.com", "9876543210")
	delete(body, "transactionId")
	rec := doJSON(t, router, http.MethodPost, "/registrations/hackproofing", body)
	require.Equal(t, http.StatusBadRequest, rec.Code)

	rec = doJSON(t, router, http.MethodPost, "/registrations/hackproofing", nil)
	require.Equal(t, http.StatusBadRequest, rec.Code, "empty body is rejected")
}

func TestRegisterEndpoint_UnknownEvent(t *testing.T) {
	router := newTestRouter(map[string]int{"hackproofing": 120})

	rec := doJSON(t, router, http.MethodPost, "/registrations/no-such-event", submission("a@b.com", "9876543210"))
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestRegisterEndpoint_DuplicateConflict(t *testing.T) {
	router := newTestRouter(map[string]int{"hackproofing": 120})

	rec := doJSON(t, router, http.MethodPost, "/registrations/hackproofing", submission("asha@example.com", "9876543210"))
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = doJSON(t, router, http.MethodPost, "/registrations/hackproofing", submission("asha@example.com", "9000000000"))
	require.Equal(t, http.StatusConflict, rec.Code)

	var errResp model.ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &errResp))
	require.Equal(t, "email", errResp.Field)
}

func TestRegisterEndpoint_SoldOutGone(t *testing.T) {
	router := newTestRouter(map[string]int{"hackproofing": 1})

	rec := doJSON(t, router, http.MethodPost, "/registrations/hackproofing", submission("one@example.com", "9876543210"))
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = doJSON(t, router, http.MethodPost, "/registrations/hackproofing", submission("two@example.com", "9123456789"))
	require.Equal(t, http.StatusGone, rec.Code)
}

func TestCheckDuplicateEndpoint(t *testing.T) {
	router := newTestRouter(map[string]int{"hackproofing": 120})

	rec := doJSON(t, router, http.MethodPost, "/registrations/hackproofing", submission("asha@example.com", "9876543210"))
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = doJSON(t, router, http.MethodGet, "/registrations/hackproofing?email=asha@example.com&phone=9000000000", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var check model.DuplicateCheck
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &check))
	require.True(t, check.IsDuplicate)
	require.Equal(t, "email", check.MatchedField)

	rec = doJSON(t, router, http.MethodGet, "/registrations/hackproofing?email=asha@example.com", nil)
	require.Equal(t, http.StatusBadRequest, rec.Code, "both query params are required")
}

func TestSeatCountEndpoint(t *testing.T) {
	router := newTestRouter(map[string]int{"hackproofing": 120})

	rec := doJSON(t, router, http.MethodPost, "/registrations/hackproofing", submission("asha@example.com", "9876543210"))
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = doJSON(t, router, http.MethodGet, "/registrations/hackproofing/count", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var availability model.SeatAvailability
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &availability))
	require.Equal(t, 1, availability.Reserved)
	require.Equal(t, 119, availability.Remaining)
}

func TestEntryPassEndpoint(t *testing.T) {
	router := newTestRouter(map[string]int{"hackproofing": 120})

	rec := doJSON(t, router, http.MethodPost, "/registrations/hackproofing", submission("asha@example.com", "9876543210"))
	require.Equal(t, http.StatusCreated, rec.Code)
	var reg model.Registration
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &reg))

	rec = doJSON(t, router, http.MethodGet, "/registrations/hackproofing/"+reg.ID+"/pass", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "image/png", rec.Header().Get("Content-Type"))
	require.NotEmpty(t, rec.Body.Bytes())

	rec = doJSON(t, router, http.MethodGet, "/registrations/hackproofing/unknown-id/pass", nil)
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestEventsEndpoint(t *testing.T) {
	router := newTestRouter(map[string]int{"hackproofing": 120, "port-pass": 300})

	rec := doJSON(t, router, http.MethodGet, "/events", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var events []model.SeatAvailability
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &events))
	require.Len(t, events, 2)
	require.Equal(t, "hackproofing", events[0].EventKey)
}

func adminToken(t *testing.T) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": "ops",
		"exp": time.Now().Add(time.Hour).Unix(),
	})
	signed, err := token.SignedString([]byte(testSecret))
	require.NoError(t, err)
	return signed
}

func TestAdminEndpoints_RequireToken(t *testing.T) {
	router := newTestRouter(map[string]int{"hackproofing": 120})

	rec := doJSON(t, router, http.MethodPost, "/admin/reconcile", nil)
	require.Equal(t, http.StatusUnauthorized, rec.Code)

	req := httptest.NewRequest(http.MethodPost, "/admin/reconcile", nil)
	req.Header.Set("Authorization", "Bearer not-a-token")
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestAdminReconcileEndpoint(t *testing.T) {
	router := newTestRouter(map[string]int{"hackproofing": 120})

	for i := 0; i < 2; i++ {
		rec := doJSON(t, router, http.MethodPost, "/registrations/hackproofing",
			submission(fmt.Sprintf("user%d@example.com", i), fmt.Sprintf("987654321%d", i)))
		require.Equal(t, http.StatusCreated, rec.Code)
	}

	req := httptest.NewRequest(http.MethodPost, "/admin/reconcile/hackproofing", nil)
	req.Header.Set("Authorization", "Bearer "+adminToken(t))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	var result model.ReconcileResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &result))
	require.Equal(t, 2, result.After)
	require.Zero(t, result.Drift, "steady state has no drift to correct")
}

func TestAdminListRegistrations(t *testing.T) {
	router := newTestRouter(map[string]int{"hackproofing": 120})

	rec := doJSON(t, router, http.MethodPost, "/registrations/hackproofing", submission("asha@example.com", "9876543210"))
	require.Equal(t, http.StatusCreated, rec.Code)

	req := httptest.NewRequest(http.MethodGet, "/admin/registrations/hackproofing", nil)
	req.Header.Set("Authorization", "Bearer "+adminToken(t))
	rec2 := httptest.NewRecorder()
	router.ServeHTTP(rec2, req)
	require.Equal(t, http.StatusOK, rec2.Code)

	var regs []model.Registration
	require.NoError(t, json.Unmarshal(rec2.Body.Bytes(), &regs))
	require.Len(t, regs, 1)
	require.Equal(t, "asha@example.com", regs[0].Email)
}

func TestHealthEndpoint(t *testing.T) {
	router := newTestRouter(map[string]int{"hackproofing": 120})
	rec := doJSON(t, router, http.MethodGet, "/health", nil)
	require.Equal(t, http.StatusOK, rec.Code)
}
