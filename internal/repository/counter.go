package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/portfest/registration-api/internal/model"
)

// CounterRepository persists the per-event seat counters. Counters are
// created lazily on the first successful reservation and never deleted.
type CounterRepository struct {
	db *pgxpool.Pool
}

// NewCounterRepository constructs a CounterRepository.
func NewCounterRepository(db *pgxpool.Pool) *CounterRepository {
	return &CounterRepository{db: db}
}

// TryReserve reserves one seat if any remain, creating the counter row at
// reserved=1 when it does not exist yet. The whole read-check-write is one
// statement, so concurrent callers cannot observe or produce
// reserved > capacity, and concurrent first-time reservations cannot both
// win the creation.
//
// Returns the new reserved value, or ErrEventFull when the conditional
// update matched no row because the event is at capacity.
func (r *CounterRepository) TryReserve(ctx context.Context, eventKey string, capacity int) (int, error) {
	var reserved int
	err := r.db.QueryRow(ctx,
		`INSERT INTO seat_counters (event_key, capacity, reserved)
		 VALUES ($1, $2, 1)
		 ON CONFLICT (event_key) DO UPDATE
		 SET reserved = seat_counters.reserved + 1
		 WHERE seat_counters.reserved < seat_counters.capacity
		 RETURNING reserved`,
		eventKey, capacity,
	).Scan(&reserved)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, ErrEventFull
		}
		return 0, fmt.Errorf("reserve seat: %w", err)
	}
	return reserved, nil
}

// Release returns one reserved seat, flooring at zero. It is only ever
// called as a compensating action after a failed registration write.
func (r *CounterRepository) Release(ctx context.Context, eventKey string) (int, error) {
	var reserved int
	err := r.db.QueryRow(ctx,
		`UPDATE seat_counters
		 SET reserved = GREATEST(reserved - 1, 0)
		 WHERE event_key = $1
		 RETURNING reserved`,
		eventKey,
	).Scan(&reserved)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			// No counter row means nothing was ever reserved.
			return 0, nil
		}
		return 0, fmt.Errorf("release seat: %w", err)
	}
	return reserved, nil
}

// Get reads the counter for an event. An absent row is a counter that has
// not seen its first reservation yet, reported as reserved=0 with the
// configured capacity.
func (r *CounterRepository) Get(ctx context.Context, eventKey string, capacity int) (*model.SeatCounter, error) {
	c := model.SeatCounter{EventKey: eventKey}
	err := r.db.QueryRow(ctx,
		`SELECT capacity, reserved FROM seat_counters WHERE event_key = $1`,
		eventKey,
	).Scan(&c.Capacity, &c.Reserved)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return &model.SeatCounter{EventKey: eventKey, Capacity: capacity, Reserved: 0}, nil
		}
		return nil, fmt.Errorf("get seat counter: %w", err)
	}
	return &c, nil
}

// Reconcile recomputes reserved from the actual registration count,
// a maintenance operation for drift recovery, not part of the request
// path. It is idempotent and also refreshes the stored capacity from
// configuration.
func (r *CounterRepository) Reconcile(ctx context.Context, eventKey string, capacity int) (*model.ReconcileResult, error) {
	before, err := r.Get(ctx, eventKey, capacity)
	if err != nil {
		return nil, err
	}

	var after int
	err = r.db.QueryRow(ctx,
		`INSERT INTO seat_counters (event_key, capacity, reserved)
		 VALUES ($1, $2, (SELECT COUNT(*) FROM registrations WHERE event_key = $1))
		 ON CONFLICT (event_key) DO UPDATE
		 SET capacity = EXCLUDED.capacity,
		     reserved = EXCLUDED.reserved
		 RETURNING reserved`,
		eventKey, capacity,
	).Scan(&after)
	if err != nil {
		return nil, fmt.Errorf("reconcile seat counter: %w", err)
	}

	return &model.ReconcileResult{
		EventKey: eventKey,
		Before:   before.Reserved,
		After:    after,
		Drift:    after - before.Reserved,
	}, nil
}
