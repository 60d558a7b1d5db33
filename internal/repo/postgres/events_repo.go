package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/eventra/eventra/internal/domain/event"
	"github.com/eventra/eventra/internal/domain/user"
	"github.com/eventra/eventra/internal/observability"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type EventsRepo struct {
	pool *pgxpool.Pool
	prom *observability.Prom
}

func NewEventsRepo(pool *pgxpool.Pool, prom *observability.Prom) *EventsRepo {
	return &EventsRepo{
		pool: pool,
		prom: prom,
	}
}

func (r *EventsRepo) observe(op string, fn func() error) error {
	if r.prom != nil {
		return r.prom.ObserveDB(op, fn)
	}
	return fn()
}

const eventColumns = `id, title, description, club, created_by, start_date, end_date, location, capacity, registration_deadline, status, created_at, updated_at`

func scanEvent(row pgx.Row) (event.Event, error) {
	var e event.Event
	var status string

	err := row.Scan(
		&e.ID,
		&e.Title,
		&e.Description,
		&e.Club,
		&e.CreatedBy,
		&e.StartDate,
		&e.EndDate,
		&e.Location,
		&e.Capacity,
		&e.RegistrationDeadline,
		&status,
		&e.CreatedAt,
		&e.UpdatedAt,
	)

	if err != nil {
		return event.Event{}, err
	}

	e.Status = event.Status(status)

	return e, nil
}

func (r *EventsRepo) Create(ctx context.Context, e event.Event) (event.Event, error) {
	err := r.observe("events.create", func() error {
		_, err := r.pool.Exec(ctx,
			`INSERT INTO events (`+eventColumns+`)
			VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13)`,
			e.ID, e.Title, e.Description, e.Club, e.CreatedBy,
			e.StartDate, e.EndDate, e.Location, e.Capacity,
			e.RegistrationDeadline, string(e.Status), e.CreatedAt, e.UpdatedAt,
		)
		return err
	})

	if err != nil {
		return event.Event{}, err
	}

	return e, nil
}

// List applies the caller's visibility scope inside the query so unapproved
// event data never leaves the database for callers who may not see it.
func (r *EventsRepo) List(ctx context.Context, filter event.ListEventsFilter) ([]event.Event, int, error) {
	baseQuery := `SELECT ` + eventColumns + `, COUNT(*) OVER() AS total FROM events`

	var conds []string
	var args []interface{}

	argsPosition := 1

	switch filter.Scope.Role {
	case user.RoleManagement:
		// management sees everything
	case user.RolePresident:
		conds = append(conds, fmt.Sprintf("(created_by = $%d OR status IN ('approved','live'))", argsPosition))
		args = append(args, filter.Scope.UserID)
		argsPosition++
	default:
		// students, finance and anonymous callers see published events only
		conds = append(conds, "status IN ('approved','live')")
	}

	if filter.Club != nil {
		conds = append(conds, fmt.Sprintf("club = $%d", argsPosition))
		args = append(args, *filter.Club)
		argsPosition++
	}

	if filter.From != nil {
		conds = append(conds, fmt.Sprintf("start_date >= $%d", argsPosition))
		args = append(args, *filter.From)
		argsPosition++
	}

	if filter.To != nil {
		conds = append(conds, fmt.Sprintf("start_date <= $%d", argsPosition))
		args = append(args, *filter.To)
		argsPosition++
	}

	query := baseQuery

	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}

	// stable ordering for pagination
	query += fmt.Sprintf(" ORDER BY start_date ASC, id ASC LIMIT $%d OFFSET $%d", argsPosition, argsPosition+1)

	args = append(args, filter.Limit, filter.Offset)

	var rows pgx.Rows

	err := r.observe("events.list", func() error {
		var err error
		rows, err = r.pool.Query(ctx, query, args...)
		return err
	})

	if err != nil {
		return nil, 0, err
	}

	defer rows.Close()

	output := make([]event.Event, 0, filter.Limit)
	total := 0

	for rows.Next() {
		var e event.Event
		var status string
		var t int

		err = rows.Scan(
			&e.ID, &e.Title, &e.Description, &e.Club, &e.CreatedBy,
			&e.StartDate, &e.EndDate, &e.Location, &e.Capacity,
			&e.RegistrationDeadline, &status, &e.CreatedAt, &e.UpdatedAt, &t,
		)

		if err != nil {
			return nil, 0, err
		}

		e.Status = event.Status(status)
		total = t
		output = append(output, e)
	}

	err = rows.Err()

	if err != nil {
		return nil, 0, err
	}

	return output, total, nil
}

func (r *EventsRepo) GetByID(ctx context.Context, id string) (event.Event, error) {
	var e event.Event

	err := r.observe("events.get_by_id", func() error {
		var err error
		e, err = scanEvent(r.pool.QueryRow(ctx,
			`SELECT `+eventColumns+` FROM events WHERE id = $1`, id))
		return err
	})

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return event.Event{}, event.ErrNotFound
		}
		return event.Event{}, err
	}

	return e, nil
}

func (r *EventsRepo) Update(ctx context.Context, id string, req event.UpdateEventRequest) (event.Event, error) {
	var e event.Event

	err := r.observe("events.update", func() error {
		var err error
		e, err = scanEvent(r.pool.QueryRow(
			ctx,
			`UPDATE events
				SET title = $2,
						description = $3,
						club = $4,
						start_date = $5,
						end_date = $6,
						location = $7,
						capacity = $8,
						registration_deadline = $9,
						updated_at = NOW()
			WHERE id = $1
			RETURNING `+eventColumns,
			id,
			req.Title,
			req.Description,
			req.Club,
			req.StartDate,
			req.EndDate,
			req.Location,
			req.Capacity,
			req.RegistrationDeadline,
		))
		return err
	})

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return event.Event{}, event.ErrNotFound
		}
		return event.Event{}, err
	}

	return e, nil
}

// Transition moves an event from one status to another in a single
// compare-and-set statement, so two concurrent approvals cannot both win.
func (r *EventsRepo) Transition(ctx context.Context, id string, from, to event.Status) (event.Event, error) {
	var e event.Event

	err := r.observe("events.transition", func() error {
		var err error
		e, err = scanEvent(r.pool.QueryRow(ctx,
			`UPDATE events
				SET status = $3, updated_at = NOW()
			WHERE id = $1 AND status = $2
			RETURNING `+eventColumns,
			id, string(from), string(to),
		))
		return err
	})

	if err == nil {
		return e, nil
	}

	if !errors.Is(err, pgx.ErrNoRows) {
		return event.Event{}, err
	}

	// distinguish "wrong state" from "no such event"
	_, getErr := r.GetByID(ctx, id)

	if getErr != nil {
		return event.Event{}, getErr
	}

	return event.Event{}, event.ErrInvalidState
}

func (r *EventsRepo) Delete(ctx context.Context, id string) error {
	return r.observe("events.delete", func() error {
		tag, err := r.pool.Exec(ctx, `DELETE FROM events WHERE id = $1`, id)

		if err != nil {
			return err
		}

		if tag.RowsAffected() == 0 {
			return event.ErrNotFound
		}

		return nil
	})
}

// PromoteDue advances approved events whose start date has passed to live,
// and live events whose end date has passed to completed. Used by the
// lifecycle sweeper, not by request handlers.
func (r *EventsRepo) PromoteDue(ctx context.Context, now time.Time) (toLive int64, toCompleted int64, err error) {
	err = r.observe("events.promote_due", func() error {
		tag, execErr := r.pool.Exec(ctx,
			`UPDATE events SET status = 'live', updated_at = NOW()
			WHERE status = 'approved' AND start_date <= $1`, now)
		if execErr != nil {
			return execErr
		}
		toLive = tag.RowsAffected()

		tag, execErr = r.pool.Exec(ctx,
			`UPDATE events SET status = 'completed', updated_at = NOW()
			WHERE status = 'live' AND end_date <= $1`, now)
		if execErr != nil {
			return execErr
		}
		toCompleted = tag.RowsAffected()

		return nil
	})

	return toLive, toCompleted, err
}
