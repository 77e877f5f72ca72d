package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/portfest/registration-api/internal/model"
	"github.com/portfest/registration-api/internal/repository"
)

// Register runs one submission through the admission protocol:
//
//	validate -> duplicate check -> reserve seat -> persist record
//
// The duplicate check before the reservation is advisory only; it avoids
// burning a seat on obvious duplicates but cannot close the race window
// between check and write. The storage-level unique indexes are the
// authoritative guard, and when they reject the write the seat just
// reserved is released so capacity never leaks. The tolerated cost is that
// during that narrow window an event can briefly appear one seat fuller
// than it is; it can never oversell.
//
// Outcomes are reported distinctly: *ValidationError, repository.ErrNotFound
// (unknown event), repository.ErrAlreadyRegistered (via *DuplicateError),
// repository.ErrEventFull, or a wrapped storage error.
func (s *AdmissionService) Register(ctx context.Context, eventKey string, req model.RegisterRequest) (*model.Registration, error) {
	capacity, err := s.capacityFor(eventKey)
	if err != nil {
		return nil, err
	}

	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	req.ContactNumber = strings.TrimSpace(req.ContactNumber)
	if err := s.validate.Struct(req); err != nil {
		return nil, &ValidationError{Message: validationMessage(err)}
	}

	// Past validation the protocol runs to completion even if the caller
	// times out: a reservation with no recorded outcome is a leaked seat.
	ctx = context.WithoutCancel(ctx)

	check, err := s.records.FindMatch(ctx, eventKey, req.Email, req.ContactNumber)
	if err != nil {
		return nil, fmt.Errorf("duplicate check: %w", err)
	}
	if check.IsDuplicate {
		return nil, &repository.DuplicateError{Field: check.MatchedField}
	}

	if _, err := s.counters.TryReserve(ctx, eventKey, capacity); err != nil {
		if errors.Is(err, repository.ErrEventFull) {
			return nil, repository.ErrEventFull
		}
		return nil, fmt.Errorf("reserve seat: %w", err)
	}

	reg := &model.Registration{
		ID:                   uuid.NewString(),
		EventKey:             eventKey,
		FirstName:            strings.TrimSpace(req.FirstName),
		LastName:             strings.TrimSpace(req.LastName),
		Email:                req.Email,
		ContactNumber:        req.ContactNumber,
		Gender:               req.Gender,
		PaymentMode:          "UPI",
		TransactionID:        strings.TrimSpace(req.TransactionID),
		PaymentScreenshotRef: req.PaymentScreenshotRef,
		CollegeName:          strings.TrimSpace(req.CollegeName),
		Department:           strings.TrimSpace(req.Department),
		YearOfStudy:          req.YearOfStudy,
		RegisterNumber:       strings.TrimSpace(req.RegisterNumber),
		City:                 strings.TrimSpace(req.City),
		CreatedAt:            time.Now().UTC(),
	}

	if err := s.records.Insert(ctx, reg); err != nil {
		// Mandatory compensating release, identical for every failed
		// write: without it capacity leaks on each race-lost duplicate.
		if _, relErr := s.counters.Release(ctx, eventKey); relErr != nil {
			log.Printf("release seat for %s after failed write: %v", eventKey, relErr)
		}
		if errors.Is(err, repository.ErrAlreadyRegistered) {
			return nil, err
		}
		return nil, fmt.Errorf("persist registration: %w", err)
	}

	s.cache.Invalidate(ctx, eventKey)
	s.notifier.RegistrationAccepted(reg)
	return reg, nil
}
