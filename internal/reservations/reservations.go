package reservations

import (
	"context"
	"fmt"
	"time"

	"github.com/example/bookingd/internal/db"
	"github.com/example/bookingd/internal/schedule"
)

type Reservation struct {
	ID           int64
	CustomerName string
	StartAt      time.Time
	EndAt        time.Time

	CreatedAt time.Time
	UpdatedAt time.Time
}

func (r Reservation) Range() schedule.TimeRange {
	return schedule.TimeRange{Start: r.StartAt, End: r.EndAt}
}

func (r Reservation) Validate() error {
	if r.CustomerName == "" {
		return fmt.Errorf("customer name required")
	}
	if r.StartAt.IsZero() || r.EndAt.IsZero() {
		return fmt.Errorf("start and end times required")
	}
	return nil
}

type Repo struct{ q db.Querier }

func NewRepo(d *db.DB) *Repo { return &Repo{q: d} }

// withQuerier rebinds the repo to a transaction.
func (r *Repo) withQuerier(q db.Querier) *Repo { return &Repo{q: q} }

const reservationCols = `id, customer_name, start_at, end_at, created_at, updated_at`

func (r *Repo) Create(ctx context.Context, res Reservation) (int64, error) {
	var id int64
	err := r.q.QueryRow(ctx, `
INSERT INTO reservations(customer_name, start_at, end_at)
VALUES ($1,$2,$3)
RETURNING id`,
		res.CustomerName, res.StartAt, res.EndAt,
	).Scan(&id)
	return id, err
}

func (r *Repo) Get(ctx context.Context, id int64) (Reservation, error) {
	var res Reservation
	err := r.q.QueryRow(ctx, `
SELECT `+reservationCols+`
FROM reservations
WHERE id=$1`, id).
		Scan(&res.ID, &res.CustomerName, &res.StartAt, &res.EndAt, &res.CreatedAt, &res.UpdatedAt)
	if err != nil {
		return Reservation{}, db.WrapNotFound(err)
	}
	return res, nil
}

func (r *Repo) List(ctx context.Context) ([]Reservation, error) {
	rows, err := r.q.Query(ctx, `
SELECT `+reservationCols+`
FROM reservations
ORDER BY start_at ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Reservation
	for rows.Next() {
		var res Reservation
		if err := rows.Scan(&res.ID, &res.CustomerName, &res.StartAt, &res.EndAt, &res.CreatedAt, &res.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, res)
	}
	return out, rows.Err()
}

func (r *Repo) Update(ctx context.Context, res Reservation) error {
	return r.q.Exec(ctx, `
UPDATE reservations
SET customer_name=$2, start_at=$3, end_at=$4, updated_at=now()
WHERE id=$1`,
		res.ID, res.CustomerName, res.StartAt, res.EndAt)
}

func (r *Repo) Delete(ctx context.Context, id int64) error {
	return r.q.Exec(ctx, `DELETE FROM reservations WHERE id=$1`, id)
}

// DeleteEndedBefore removes reservations whose end time is older than
// cutoff. Used by the retention sweep.
func (r *Repo) DeleteEndedBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	rows, err := r.q.Query(ctx, `
DELETE FROM reservations
WHERE end_at < $1
RETURNING id`, cutoff)
	if err != nil {
		return 0, err
	}
	defer rows.Close()

	var n int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return n, err
		}
		n++
	}
	return n, rows.Err()
}

// HasOverlap implements schedule.ConflictQuery with the open-interval test
// start_at < end AND end_at > start. excludeID 0 excludes nothing.
func (r *Repo) HasOverlap(ctx context.Context, tr schedule.TimeRange, excludeID int64) (bool, error) {
	var exists bool
	err := r.q.QueryRow(ctx, `
SELECT EXISTS(
	SELECT 1 FROM reservations
	WHERE start_at < $2 AND end_at > $1
	  AND ($3 = 0 OR id <> $3)
)`, tr.Start, tr.End, excludeID).Scan(&exists)
	return exists, err
}
