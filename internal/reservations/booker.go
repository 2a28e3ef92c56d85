package reservations

import (
	"context"
	"errors"
	"time"

	"github.com/example/bookingd/internal/db"
	"github.com/example/bookingd/internal/schedule"
	"github.com/jackc/pgx/v5/pgconn"
)

// Booker runs the rule check and the write inside one transaction, so a
// booking cannot pass validation against a snapshot that another request
// has already changed by commit time. The reservations_no_overlap EXCLUDE
// constraint backs this up at the storage layer; a violation surfaces as
// the same conflict rule error the validator would have produced.
type Booker struct {
	DB       *db.DB
	Repo     *Repo
	Calendar schedule.Calendar

	// Now is forwarded to the validator. Nil means time.Now.
	Now func() time.Time
}

// Book validates and inserts a new reservation atomically, returning the
// assigned id.
func (b *Booker) Book(ctx context.Context, res Reservation) (int64, error) {
	if err := res.Validate(); err != nil {
		return 0, err
	}

	var id int64
	err := b.DB.WithTx(ctx, func(q db.Querier) error {
		repo := b.Repo.withQuerier(q)
		v := &schedule.Validator{Calendar: b.Calendar, Conflicts: repo, Now: b.Now}
		if err := v.Validate(ctx, res.Range(), 0); err != nil {
			return err
		}
		var err error
		id, err = repo.Create(ctx, res)
		return err
	})
	if err != nil {
		return 0, asConflict(err)
	}
	return id, nil
}

// Rebook validates and updates an existing reservation atomically. The
// reservation's own row is excluded from the conflict set.
func (b *Booker) Rebook(ctx context.Context, res Reservation) error {
	if err := res.Validate(); err != nil {
		return err
	}

	err := b.DB.WithTx(ctx, func(q db.Querier) error {
		repo := b.Repo.withQuerier(q)
		v := &schedule.Validator{Calendar: b.Calendar, Conflicts: repo, Now: b.Now}
		if err := v.Validate(ctx, res.Range(), res.ID); err != nil {
			return err
		}
		return repo.Update(ctx, res)
	})
	return asConflict(err)
}

// asConflict translates an exclusion-constraint violation (two concurrent
// transactions inserting overlapping ranges) into the conflict rule error.
func asConflict(err error) error {
	if err == nil {
		return nil
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23P01" && pgErr.ConstraintName == "reservations_no_overlap" {
		return &schedule.RuleError{Reason: schedule.ReasonConflict, Message: "this slot is already booked"}
	}
	return err
}
