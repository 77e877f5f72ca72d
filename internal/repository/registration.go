package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/portfest/registration-api/internal/model"
)

const registrationColumns = `id, event_key, first_name, last_name, email, contact_number,
	gender, payment_mode, transaction_id, payment_screenshot_ref,
	college_name, department, year_of_study, register_number, city, created_at`

// RegistrationRepository persists accepted registrations. Records are
// insert-only; nothing in this subsystem mutates or deletes them.
type RegistrationRepository struct {
	db *pgxpool.Pool
}

// NewRegistrationRepository constructs a RegistrationRepository.
func NewRegistrationRepository(db *pgxpool.Pool) *RegistrationRepository {
	return &RegistrationRepository{db: db}
}

func scanRegistration(scanner interface{ Scan(...any) error }) (*model.Registration, error) {
	var reg model.Registration
	err := scanner.Scan(
		&reg.ID, &reg.EventKey, &reg.FirstName, &reg.LastName, &reg.Email,
		&reg.ContactNumber, &reg.Gender, &reg.PaymentMode, &reg.TransactionID,
		&reg.PaymentScreenshotRef, &reg.CollegeName, &reg.Department,
		&reg.YearOfStudy, &reg.RegisterNumber, &reg.City, &reg.CreatedAt,
	)
	return &reg, err
}

// Insert writes one registration. A unique-index violation (a duplicate
// that slipped past the advisory check in a race) comes back as a
// *DuplicateError naming the colliding identifier; this is the recoverable
// outcome the orchestrator answers with a compensating seat release.
func (r *RegistrationRepository) Insert(ctx context.Context, reg *model.Registration) error {
	_, err := r.db.Exec(ctx,
		`INSERT INTO registrations (`+registrationColumns+`)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)`,
		reg.ID, reg.EventKey, reg.FirstName, reg.LastName, reg.Email,
		reg.ContactNumber, reg.Gender, reg.PaymentMode, reg.TransactionID,
		reg.PaymentScreenshotRef, reg.CollegeName, reg.Department,
		reg.YearOfStudy, reg.RegisterNumber, reg.City, reg.CreatedAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			field := "email"
			if pgErr.ConstraintName == "registrations_event_contact_uq" {
				field = "contactNumber"
			}
			return &DuplicateError{Field: field}
		}
		return fmt.Errorf("insert registration: %w", err)
	}
	return nil
}

// FindMatch is the advisory duplicate lookup: it flags an existing record
// under the same event matching either identifier. Email takes precedence
// when both match. Pure read, no side effects.
func (r *RegistrationRepository) FindMatch(ctx context.Context, eventKey, email, contactNumber string) (*model.DuplicateCheck, error) {
	var existingEmail, existingContact string
	err := r.db.QueryRow(ctx,
		`SELECT email, contact_number FROM registrations
		 WHERE event_key = $1 AND (email = $2 OR contact_number = $3)
		 LIMIT 1`,
		eventKey, email, contactNumber,
	).Scan(&existingEmail, &existingContact)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return &model.DuplicateCheck{IsDuplicate: false}, nil
		}
		return nil, fmt.Errorf("check duplicate: %w", err)
	}

	field := "contactNumber"
	if existingEmail == email {
		field = "email"
	}
	return &model.DuplicateCheck{IsDuplicate: true, MatchedField: field}, nil
}

// CountByEvent returns the number of persisted registrations for an event,
// the ground truth reconciliation resets counters from.
func (r *RegistrationRepository) CountByEvent(ctx context.Context, eventKey string) (int, error) {
	var count int
	err := r.db.QueryRow(ctx,
		`SELECT COUNT(*) FROM registrations WHERE event_key = $1`,
		eventKey,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count registrations: %w", err)
	}
	return count, nil
}

// GetByID returns a single registration scoped to its event, or ErrNotFound.
func (r *RegistrationRepository) GetByID(ctx context.Context, eventKey, id string) (*model.Registration, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, ErrNotFound
	}

	reg, err := scanRegistration(r.db.QueryRow(ctx,
		`SELECT `+registrationColumns+` FROM registrations
		 WHERE event_key = $1 AND id = $2`,
		eventKey, id,
	))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get registration: %w", err)
	}
	return reg, nil
}

// ListByEvent returns all registrations for an event in arrival order.
func (r *RegistrationRepository) ListByEvent(ctx context.Context, eventKey string) ([]model.Registration, error) {
	rows, err := r.db.Query(ctx,
		`SELECT `+registrationColumns+` FROM registrations
		 WHERE event_key = $1
		 ORDER BY created_at ASC`,
		eventKey,
	)
	if err != nil {
		return nil, fmt.Errorf("list registrations: %w", err)
	}
	defer rows.Close()

	var regs []model.Registration
	for rows.Next() {
		reg, err := scanRegistration(rows)
		if err != nil {
			return nil, fmt.Errorf("scan registration: %w", err)
		}
		regs = append(regs, *reg)
	}
	return regs, rows.Err()
}
