// Package repository implements all database access for the admission
// controller. It uses pgx directly (no ORM) and delegates every
// correctness-critical step to a single atomic statement: the conditional
// counter upsert and the unique indexes on registrations. No in-process
// lock is held across store calls, so any number of service instances can
// run the admission protocol concurrently.
package repository

import "errors"

// ErrNotFound is returned when a requested resource does not exist.
var ErrNotFound = errors.New("not found")

// ErrEventFull is returned when an event has no remaining capacity.
var ErrEventFull = errors.New("event is fully booked")

// ErrAlreadyRegistered is returned when either identifier (email or
// contact number) already holds a seat for the event.
var ErrAlreadyRegistered = errors.New("already registered for this event")

// DuplicateError reports which identifier collided with an existing
// registration. It unwraps to ErrAlreadyRegistered.
type DuplicateError struct {
	Field string // "email" or "contactNumber"
}

func (e *DuplicateError) Error() string {
	return e.Field + " already registered for this event"
}

func (e *DuplicateError) Unwrap() error { return ErrAlreadyRegistered }
