// Package model defines the core domain types for the registration
// admission controller.
package model

import "time"

// SeatCounter is the durable per-event counter with a ceiling. It is the
// only mutable shared state in the system and is mutated exclusively
// through the repository's atomic conditional increment/decrement.
type SeatCounter struct {
	EventKey string `json:"eventKey"`
	Capacity int    `json:"capacity"`
	Reserved int    `json:"reserved"`
}

// Remaining returns the number of available seats.
func (c *SeatCounter) Remaining() int {
	return c.Capacity - c.Reserved
}

// IsFull returns true when no seats remain.
func (c *SeatCounter) IsFull() bool {
	return c.Reserved >= c.Capacity
}

// Registration is one accepted registrant for one event. Records are
// created exactly once on successful admission and never mutated.
type Registration struct {
	ID            string `json:"id"`
	EventKey      string `json:"eventKey"`
	FirstName     string `json:"firstName"`
	LastName      string `json:"lastName"`
	Email         string `json:"email"`
	ContactNumber string `json:"contactNumber"`
	Gender        string `json:"gender"`
	PaymentMode   string `json:"paymentMode"`
	TransactionID string `json:"transactionId"`
	// PaymentScreenshotRef points at an externally stored proof of
	// payment; the controller treats it as opaque.
	PaymentScreenshotRef string    `json:"paymentScreenshotRef"`
	CollegeName          string    `json:"collegeName"`
	Department           string    `json:"department"`
	YearOfStudy          string    `json:"yearOfStudy"`
	RegisterNumber       string    `json:"registerNumber"`
	City                 string    `json:"city"`
	CreatedAt            time.Time `json:"createdAt"`
}

// RegisterRequest is the submission payload for an admission attempt.
// Validation tags encode the required-field and enum rules; the email is
// additionally case-normalized by the service before any lookup.
type RegisterRequest struct {
	FirstName            string `json:"firstName" validate:"required"`
	LastName             string `json:"lastName" validate:"required"`
	Email                string `json:"email" validate:"required,email"`
	ContactNumber        string `json:"contactNumber" validate:"required,min=10,max=15"`
	Gender               string `json:"gender" validate:"required,oneof=Male Female Others"`
	PaymentMode          string `json:"paymentMode" validate:"omitempty,oneof=UPI"`
	TransactionID        string `json:"transactionId" validate:"required"`
	PaymentScreenshotRef string `json:"paymentScreenshotRef" validate:"required"`
	CollegeName          string `json:"collegeName" validate:"required"`
	Department           string `json:"department" validate:"required"`
	YearOfStudy          string `json:"yearOfStudy" validate:"required,oneof=1 2 3 4"`
	RegisterNumber       string `json:"registerNumber" validate:"required"`
	City                 string `json:"city" validate:"required"`
}

// DuplicateCheck is the result of the advisory duplicate lookup.
// MatchedField is "email" or "contactNumber" when IsDuplicate is true;
// email takes precedence when both identifiers match.
type DuplicateCheck struct {
	IsDuplicate  bool   `json:"isDuplicate"`
	MatchedField string `json:"field,omitempty"`
}

// SeatAvailability is the payload for the seats-remaining endpoint.
type SeatAvailability struct {
	EventKey  string `json:"eventKey"`
	Capacity  int    `json:"capacity"`
	Reserved  int    `json:"reserved"`
	Remaining int    `json:"remaining"`
}

// ReconcileResult reports one reconciliation pass over an event counter:
// reserved is recomputed from the actual record count, and Drift is the
// correction that was applied (zero in steady state).
type ReconcileResult struct {
	EventKey string `json:"eventKey"`
	Before   int    `json:"before"`
	After    int    `json:"after"`
	Drift    int    `json:"drift"`
}

// ErrorResponse is a standard JSON error envelope.
type ErrorResponse struct {
	Error string `json:"error"`
	// Field names the offending identifier on duplicate rejections.
	Field string `json:"field,omitempty"`
}
