package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/eventra/eventra/internal/domain/event"
	"github.com/eventra/eventra/internal/domain/registration"
	"github.com/eventra/eventra/internal/observability"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

type RegistrationsRepo struct {
	pool *pgxpool.Pool
	prom *observability.Prom
}

func NewRegistrationsRepo(pool *pgxpool.Pool, prom *observability.Prom) *RegistrationsRepo {
	return &RegistrationsRepo{
		pool: pool,
		prom: prom,
	}
}

func (repo *RegistrationsRepo) observe(op string, fn func() error) error {
	if repo.prom != nil {
		return repo.prom.ObserveDB(op, fn)
	}
	return fn()
}

const registrationColumns = `id, event_id, student_id, registration_date, roll_number, course, year, phone, dietary_requirements, special_requests, feedback, status, created_at, updated_at`

func scanRegistration(row pgx.Row) (registration.Registration, error) {
	var r registration.Registration
	var status string

	err := row.Scan(
		&r.ID,
		&r.EventID,
		&r.StudentID,
		&r.RegistrationDate,
		&r.RollNumber,
		&r.Course,
		&r.Year,
		&r.Phone,
		&r.DietaryRequirements,
		&r.SpecialRequests,
		&r.Feedback,
		&status,
		&r.CreatedAt,
		&r.UpdatedAt,
	)

	if err != nil {
		return registration.Registration{}, err
	}

	r.Status = registration.Status(status)

	return r, nil
}

func (repo *RegistrationsRepo) BeginTx(ctx context.Context) (pgx.Tx, error) {
	return repo.pool.BeginTx(ctx, pgx.TxOptions{})
}

// CreateTx performs the whole admission check inside one transaction:
// duplicate check, row-locked capacity check, deadline check, insert. The
// FOR UPDATE on the event row is what makes capacity-vs-insert a single
// atomic step under concurrent registrations.
func (repo *RegistrationsRepo) CreateTx(ctx context.Context, tx pgx.Tx, req registration.CreateRegistrationRequest, now time.Time) (reg registration.Registration, err error) {
	var exists bool

	err = repo.observe("registrations.create_tx.duplicate_check", func() error {
		return tx.QueryRow(ctx, `SELECT EXISTS(
			SELECT 1 FROM registrations
			WHERE event_id = $1 AND student_id = $2 AND status <> 'cancelled'
		)`, req.EventID, req.StudentID).Scan(&exists)
	})

	if err != nil {
		return
	}

	if exists {
		err = registration.ErrAlreadyRegistered
		return
	}

	// lock event row, then check state, deadline and capacity against it
	var capacity int
	var current int
	var status string
	var deadline time.Time

	err = repo.observe("registrations.create_tx.capacity_lock", func() error {
		return tx.QueryRow(ctx, `
		SELECT e.capacity,
			e.status,
			e.registration_deadline,
			(SELECT COUNT(*) FROM registrations r WHERE r.event_id = e.id AND r.status <> 'cancelled') AS current
		FROM events e
		WHERE e.id = $1
		FOR UPDATE
	`, req.EventID).Scan(&capacity, &status, &deadline, &current)
	})

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			err = event.ErrNotFound
		}

		return
	}

	if status != string(event.StatusApproved) && status != string(event.StatusLive) {
		err = registration.ErrEventNotOpen
		return
	}

	if now.After(deadline) {
		err = registration.ErrDeadlinePassed
		return
	}

	if current >= capacity {
		err = registration.ErrEventFull
		return
	}

	reg = registration.NewFromCreateRequest(req)

	err = repo.observe("registrations.create_tx.insert", func() error {
		_, e := tx.Exec(ctx, `
		INSERT INTO registrations (`+registrationColumns+`)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14)
	`, reg.ID, reg.EventID, reg.StudentID, reg.RegistrationDate,
			reg.RollNumber, reg.Course, reg.Year, reg.Phone,
			reg.DietaryRequirements, reg.SpecialRequests, reg.Feedback,
			string(reg.Status), reg.CreatedAt, reg.UpdatedAt)
		return e
	})

	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" && pgErr.ConstraintName == "registrations_event_student_uniq" {
			err = registration.ErrAlreadyRegistered
			return
		}
		return
	}

	return
}

// Create wraps CreateTx in its own transaction.
func (repo *RegistrationsRepo) Create(ctx context.Context, req registration.CreateRegistrationRequest, now time.Time) (reg registration.Registration, err error) {
	tx, err := repo.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return
	}

	defer func() {
		_ = tx.Rollback(ctx)
	}()

	reg, err = repo.CreateTx(ctx, tx, req, now)

	if err != nil {
		return
	}

	err = tx.Commit(ctx)

	return
}

func (repo *RegistrationsRepo) GetByID(ctx context.Context, registrationID string) (registration.Registration, error) {
	var r registration.Registration

	err := repo.observe("registrations.get_by_id", func() error {
		var err error
		r, err = scanRegistration(repo.pool.QueryRow(ctx,
			`SELECT `+registrationColumns+` FROM registrations WHERE id = $1`,
			registrationID,
		))
		return err
	})

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return registration.Registration{}, registration.ErrNotFound
		}
		return registration.Registration{}, err
	}

	return r, nil
}

func (repo *RegistrationsRepo) ListByEvent(ctx context.Context, eventID string) (regs []registration.Registration, err error) {
	var rows pgx.Rows

	err = repo.observe("registrations.list_by_event", func() error {
		var qerr error
		rows, qerr = repo.pool.Query(ctx,
			`SELECT `+registrationColumns+`
			FROM registrations
			WHERE event_id = $1
			ORDER BY created_at ASC, id ASC`,
			eventID,
		)
		return qerr
	})

	if err != nil {
		return
	}

	defer rows.Close()

	regs = make([]registration.Registration, 0)

	for rows.Next() {
		r, scanErr := scanRegistration(rows)

		if scanErr != nil {
			err = scanErr
			return
		}
		regs = append(regs, r)
	}

	if e := rows.Err(); e != nil {
		err = e
		return
	}

	// a 404 when the event itself does not exist
	if len(regs) == 0 {
		var dummy string

		err = repo.observe("registrations.list_by_event.check_event_exists", func() error {
			return repo.pool.QueryRow(ctx, `SELECT id FROM events WHERE id = $1`, eventID).Scan(&dummy)
		})

		if errors.Is(err, pgx.ErrNoRows) {
			err = event.ErrNotFound
			return
		}

		if err != nil {
			return
		}
	}

	return
}

func (repo *RegistrationsRepo) ListByStudent(ctx context.Context, studentID string) ([]registration.Registration, error) {
	var rows pgx.Rows

	err := repo.observe("registrations.list_by_student", func() error {
		var qerr error
		rows, qerr = repo.pool.Query(ctx,
			`SELECT `+registrationColumns+`
			FROM registrations
			WHERE student_id = $1
			ORDER BY created_at DESC, id ASC`,
			studentID,
		)
		return qerr
	})

	if err != nil {
		return nil, err
	}

	defer rows.Close()

	regs := make([]registration.Registration, 0)

	for rows.Next() {
		r, scanErr := scanRegistration(rows)
		if scanErr != nil {
			return nil, scanErr
		}
		regs = append(regs, r)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return regs, nil
}

// Cancel flips the registration to cancelled. Cancelling an already
// cancelled registration is a no-op success.
func (repo *RegistrationsRepo) Cancel(ctx context.Context, registrationID string) (registration.Registration, error) {
	var r registration.Registration

	err := repo.observe("registrations.cancel", func() error {
		var err error
		r, err = scanRegistration(repo.pool.QueryRow(ctx,
			`UPDATE registrations
				SET status = 'cancelled', updated_at = NOW()
			WHERE id = $1
			RETURNING `+registrationColumns,
			registrationID,
		))
		return err
	})

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return registration.Registration{}, registration.ErrNotFound
		}
		return registration.Registration{}, err
	}

	return r, nil
}

// AttachFeedback overwrites any prior feedback (last write wins).
func (repo *RegistrationsRepo) AttachFeedback(ctx context.Context, registrationID, feedback string) (registration.Registration, error) {
	var r registration.Registration

	err := repo.observe("registrations.attach_feedback", func() error {
		var err error
		r, err = scanRegistration(repo.pool.QueryRow(ctx,
			`UPDATE registrations
				SET feedback = $2, updated_at = NOW()
			WHERE id = $1
			RETURNING `+registrationColumns,
			registrationID, feedback,
		))
		return err
	})

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return registration.Registration{}, registration.ErrNotFound
		}
		return registration.Registration{}, err
	}

	return r, nil
}
