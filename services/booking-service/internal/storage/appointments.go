package storage

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/norastrand/bookwise/libs/db"
	"github.com/norastrand/bookwise/services/booking-service/internal/model"
	"github.com/norastrand/bookwise/services/booking-service/internal/outbox"
)

type AppointmentRepository struct {
	pool   *db.Pool
	outbox *outbox.Repository
}

func NewAppointmentRepository(pool *db.Pool, outboxRepo *outbox.Repository) *AppointmentRepository {
	return &AppointmentRepository{pool: pool, outbox: outboxRepo}
}

const appointmentColumns = `
	id::text, offering_id::text, client_id, provider_id,
	start_time, end_time, time_zone, status,
	COALESCE(notes, ''), COALESCE(meeting_link, ''),
	reminder_sent, feedback_provided, created_at, updated_at`

func scanAppointment(row pgx.Row) (model.Appointment, error) {
	var a model.Appointment
	var status string
	err := row.Scan(
		&a.ID,
		&a.OfferingID,
		&a.ClientID,
		&a.ProviderID,
		&a.StartTime,
		&a.EndTime,
		&a.TimeZone,
		&status,
		&a.Notes,
		&a.MeetingLink,
		&a.ReminderSent,
		&a.FeedbackProvided,
		&a.CreatedAt,
		&a.UpdatedAt,
	)
	if err != nil {
		return model.Appointment{}, err
	}
	a.Status = model.Status(status)
	return a, nil
}

// CreateScheduled inserts a new scheduled appointment, serialized per
// provider: an advisory transaction lock on the provider id makes the
// overlap check and insert atomic against concurrent bookings, and the
// table's exclusion constraint backstops it. Exactly one of two concurrent
// conflicting creates succeeds; the loser gets model.ErrSlotConflict.
func (r *AppointmentRepository) CreateScheduled(ctx context.Context, appt *model.Appointment, events []outbox.Event) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if _, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock(hashtextextended($1, 0))`, appt.ProviderID); err != nil {
		return err
	}

	var conflict bool
	err = tx.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM appointments
			WHERE provider_id = $1
			  AND status <> 'cancelled'
			  AND start_time < $3
			  AND end_time > $2
		)
	`, appt.ProviderID, appt.StartTime, appt.EndTime).Scan(&conflict)
	if err != nil {
		return err
	}
	if conflict {
		return model.ErrSlotConflict
	}

	_, err = tx.Exec(ctx, `
		INSERT INTO appointments
			(id, offering_id, client_id, provider_id, start_time, end_time, time_zone,
			 status, notes, meeting_link, reminder_sent, feedback_provided, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
	`, appt.ID, appt.OfferingID, appt.ClientID, appt.ProviderID, appt.StartTime, appt.EndTime,
		appt.TimeZone, string(appt.Status), appt.Notes, appt.MeetingLink,
		appt.ReminderSent, appt.FeedbackProvided, appt.CreatedAt, appt.UpdatedAt)
	if err != nil {
		if isExclusionViolation(err) {
			return model.ErrSlotConflict
		}
		return err
	}

	for _, ev := range events {
		if err := r.outbox.Insert(ctx, tx, ev); err != nil {
			return err
		}
	}
	return tx.Commit(ctx)
}

func (r *AppointmentRepository) Get(ctx context.Context, id string) (model.Appointment, error) {
	appt, err := scanAppointment(r.pool.QueryRow(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments
		WHERE id = $1
	`, id))
	if err != nil {
		if isNoRows(err) {
			return model.Appointment{}, model.ErrNotFound
		}
		return model.Appointment{}, err
	}
	return appt, nil
}

// Update writes the mutable fields, guarded by the status the caller read.
// A concurrent status change makes the guard miss, which surfaces as
// model.ErrInvalidStateTransition rather than silently clobbering.
func (r *AppointmentRepository) Update(ctx context.Context, appt model.Appointment, expectedStatus model.Status, events []outbox.Event) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	tag, err := tx.Exec(ctx, `
		UPDATE appointments
		SET status = $2,
			notes = $3,
			meeting_link = $4,
			updated_at = $5
		WHERE id = $1 AND status = $6
	`, appt.ID, string(appt.Status), appt.Notes, appt.MeetingLink, appt.UpdatedAt, string(expectedStatus))
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		var exists bool
		if err := tx.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM appointments WHERE id = $1)`, appt.ID).Scan(&exists); err != nil {
			return err
		}
		if exists {
			return model.ErrInvalidStateTransition
		}
		return model.ErrNotFound
	}

	for _, ev := range events {
		if err := r.outbox.Insert(ctx, tx, ev); err != nil {
			return err
		}
	}
	return tx.Commit(ctx)
}

func (r *AppointmentRepository) list(ctx context.Context, query string, args ...any) ([]model.Appointment, error) {
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var appts []model.Appointment
	for rows.Next() {
		a, err := scanAppointment(rows)
		if err != nil {
			return nil, err
		}
		appts = append(appts, a)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return appts, nil
}

func (r *AppointmentRepository) ListByClient(ctx context.Context, clientID string) ([]model.Appointment, error) {
	return r.list(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments
		WHERE client_id = $1
		ORDER BY start_time DESC
	`, clientID)
}

func (r *AppointmentRepository) ListByProvider(ctx context.Context, providerID string) ([]model.Appointment, error) {
	return r.list(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments
		WHERE provider_id = $1
		ORDER BY start_time DESC
	`, providerID)
}

// ListBusy returns the conflict set for slot generation: non-cancelled
// appointments overlapping [from, to).
func (r *AppointmentRepository) ListBusy(ctx context.Context, providerID string, from, to time.Time) ([]model.Appointment, error) {
	return r.list(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments
		WHERE provider_id = $1
		  AND status <> 'cancelled'
		  AND start_time < $3
		  AND end_time > $2
		ORDER BY start_time ASC
	`, providerID, from, to)
}

func (r *AppointmentRepository) CountForOfferingBetween(ctx context.Context, offeringID string, from, to time.Time) (int, error) {
	var cnt int
	err := r.pool.QueryRow(ctx, `
		SELECT COUNT(*)
		FROM appointments
		WHERE offering_id = $1
		  AND status <> 'cancelled'
		  AND start_time >= $2
		  AND start_time < $3
	`, offeringID, from, to).Scan(&cnt)
	return cnt, err
}

func (r *AppointmentRepository) HasNonCancelledForOffering(ctx context.Context, offeringID string) (bool, error) {
	var exists bool
	err := r.pool.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM appointments
			WHERE offering_id = $1 AND status <> 'cancelled'
		)
	`, offeringID).Scan(&exists)
	return exists, err
}

// MarkReminderSent flips the reminder flag; the scheduler collaborator owns
// reminder delivery, this is just the exposed read-model.
func (r *AppointmentRepository) MarkReminderSent(ctx context.Context, appointmentID string) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE appointments SET reminder_sent = TRUE, updated_at = now()
		WHERE id = $1
	`, appointmentID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return model.ErrNotFound
	}
	return nil
}

func (r *AppointmentRepository) MarkFeedbackProvided(ctx context.Context, appointmentID string) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE appointments SET feedback_provided = TRUE, updated_at = now()
		WHERE id = $1
	`, appointmentID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return model.ErrNotFound
	}
	return nil
}
