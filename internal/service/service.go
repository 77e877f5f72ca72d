// Package service implements the registration admission controller: the
// ordering, retry, and rollback protocol between the duplicate guard, the
// capacity counter, and the registration record store.
package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/portfest/registration-api/internal/model"
	"github.com/portfest/registration-api/internal/repository"
)

// CounterStore is the durable seat counter contract. All three mutating
// operations must be atomic at the store; the service never reads then
// writes a counter itself.
type CounterStore interface {
	TryReserve(ctx context.Context, eventKey string, capacity int) (int, error)
	Release(ctx context.Context, eventKey string) (int, error)
	Get(ctx context.Context, eventKey string, capacity int) (*model.SeatCounter, error)
	Reconcile(ctx context.Context, eventKey string, capacity int) (*model.ReconcileResult, error)
}

// RegistrationStore persists accepted registrations. Insert must enforce
// identifier uniqueness per event at the storage layer and report a
// violation as repository.ErrAlreadyRegistered.
type RegistrationStore interface {
	Insert(ctx context.Context, reg *model.Registration) error
	FindMatch(ctx context.Context, eventKey, email, contactNumber string) (*model.DuplicateCheck, error)
	CountByEvent(ctx context.Context, eventKey string) (int, error)
	GetByID(ctx context.Context, eventKey, id string) (*model.Registration, error)
	ListByEvent(ctx context.Context, eventKey string) ([]model.Registration, error)
}

var (
	_ CounterStore      = (*repository.CounterRepository)(nil)
	_ RegistrationStore = (*repository.RegistrationRepository)(nil)
)

// ValidationError reports a missing or malformed submission field. It is
// raised before any seat is consumed.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string { return e.Message }

// AdmissionService composes the duplicate guard and the capacity counter
// into a single admission decision per submission.
type AdmissionService struct {
	catalog  map[string]int
	counters CounterStore
	records  RegistrationStore
	cache    SeatCache
	notifier Notifier
	validate *validator.Validate
}

// NewAdmissionService constructs an AdmissionService for a fixed event
// catalog. Use NoopSeatCache / NoopNotifier when the respective backends
// are not configured.
func NewAdmissionService(
	catalog map[string]int,
	counters CounterStore,
	records RegistrationStore,
	cache SeatCache,
	notifier Notifier,
) *AdmissionService {
	return &AdmissionService{
		catalog:  catalog,
		counters: counters,
		records:  records,
		cache:    cache,
		notifier: notifier,
		validate: validator.New(),
	}
}

// capacityFor resolves an event key against the catalog.
func (s *AdmissionService) capacityFor(eventKey string) (int, error) {
	capacity, ok := s.catalog[eventKey]
	if !ok {
		return 0, repository.ErrNotFound
	}
	return capacity, nil
}

// Events lists the catalog with current availability, for the public
// events listing.
func (s *AdmissionService) Events(ctx context.Context) ([]model.SeatAvailability, error) {
	keys := make([]string, 0, len(s.catalog))
	for key := range s.catalog {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	out := make([]model.SeatAvailability, 0, len(keys))
	for _, key := range keys {
		availability, err := s.SeatCount(ctx, key)
		if err != nil {
			return nil, err
		}
		out = append(out, *availability)
	}
	return out, nil
}

// CheckDuplicate exposes the advisory duplicate guard for client-side
// pre-validation. Pure read.
func (s *AdmissionService) CheckDuplicate(ctx context.Context, eventKey, email, contactNumber string) (*model.DuplicateCheck, error) {
	if _, err := s.capacityFor(eventKey); err != nil {
		return nil, err
	}
	email = strings.ToLower(strings.TrimSpace(email))
	contactNumber = strings.TrimSpace(contactNumber)
	if email == "" || contactNumber == "" {
		return nil, &ValidationError{Message: "email and phone are required"}
	}
	check, err := s.records.FindMatch(ctx, eventKey, email, contactNumber)
	if err != nil {
		return nil, fmt.Errorf("check duplicate: %w", err)
	}
	return check, nil
}

// SeatCount returns current availability for an event, served from the
// short-TTL cache when possible.
func (s *AdmissionService) SeatCount(ctx context.Context, eventKey string) (*model.SeatAvailability, error) {
	capacity, err := s.capacityFor(eventKey)
	if err != nil {
		return nil, err
	}

	if reserved, ok := s.cache.GetReserved(ctx, eventKey); ok {
		return availability(eventKey, capacity, reserved), nil
	}

	counter, err := s.counters.Get(ctx, eventKey, capacity)
	if err != nil {
		return nil, fmt.Errorf("get seat counter: %w", err)
	}
	s.cache.SetReserved(ctx, eventKey, counter.Reserved)
	return availability(eventKey, counter.Capacity, counter.Reserved), nil
}

func availability(eventKey string, capacity, reserved int) *model.SeatAvailability {
	return &model.SeatAvailability{
		EventKey:  eventKey,
		Capacity:  capacity,
		Reserved:  reserved,
		Remaining: capacity - reserved,
	}
}

// GetRegistration returns one accepted registration scoped to its event.
func (s *AdmissionService) GetRegistration(ctx context.Context, eventKey, id string) (*model.Registration, error) {
	if _, err := s.capacityFor(eventKey); err != nil {
		return nil, err
	}
	return s.records.GetByID(ctx, eventKey, id)
}

// ListRegistrations returns every accepted registration for an event.
func (s *AdmissionService) ListRegistrations(ctx context.Context, eventKey string) ([]model.Registration, error) {
	if _, err := s.capacityFor(eventKey); err != nil {
		return nil, err
	}
	return s.records.ListByEvent(ctx, eventKey)
}

// Reconcile resets one event's counter to the actual record count. This is
// the disaster-recovery escape hatch, idempotent and safe to repeat; in
// steady state the atomic reservation path keeps drift at zero.
func (s *AdmissionService) Reconcile(ctx context.Context, eventKey string) (*model.ReconcileResult, error) {
	capacity, err := s.capacityFor(eventKey)
	if err != nil {
		return nil, err
	}
	result, err := s.counters.Reconcile(ctx, eventKey, capacity)
	if err != nil {
		return nil, fmt.Errorf("reconcile %s: %w", eventKey, err)
	}
	s.cache.Invalidate(ctx, eventKey)
	return result, nil
}

// ReconcileAll reconciles every cataloged event.
func (s *AdmissionService) ReconcileAll(ctx context.Context) ([]model.ReconcileResult, error) {
	keys := make([]string, 0, len(s.catalog))
	for key := range s.catalog {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	results := make([]model.ReconcileResult, 0, len(keys))
	for _, key := range keys {
		result, err := s.Reconcile(ctx, key)
		if err != nil {
			return results, err
		}
		results = append(results, *result)
	}
	return results, nil
}

// validationMessage flattens validator output into a single readable line.
func validationMessage(err error) string {
	var invalid validator.ValidationErrors
	if !errors.As(err, &invalid) || len(invalid) == 0 {
		return "invalid submission"
	}
	parts := make([]string, 0, len(invalid))
	for _, fe := range invalid {
		switch fe.Tag() {
		case "required":
			parts = append(parts, fe.Field()+" is required")
		case "email":
			parts = append(parts, fe.Field()+" is not a valid email address")
		case "oneof":
			parts = append(parts, fe.Field()+" must be one of: "+fe.Param())
		default:
			parts = append(parts, fe.Field()+" is invalid")
		}
	}
	return strings.Join(parts, "; ")
}
