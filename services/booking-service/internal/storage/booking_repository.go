package storage

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/glowbook/glowbook/libs/db"
	"github.com/glowbook/glowbook/services/booking-service/internal/availability"
	"github.com/glowbook/glowbook/services/booking-service/internal/model"
)

const apptColumns = `id::text, stylist_id::text, COALESCE(client_id::text, ''), COALESCE(client_name, ''),
		COALESCE(service_id::text, ''), start_time, duration_minutes, status,
		COALESCE(cancel_reason, ''), cancelled_at, created_at`

type BookingRepository struct {
	pool *db.Pool
}

type IdempotencyRecord struct {
	StylistID       string
	IdempotencyKey  string
	AppointmentID   string
	StatusCode      int
	ResponsePayload []byte
}

func NewBookingRepository(pool *db.Pool) *BookingRepository {
	return &BookingRepository{pool: pool}
}

func (r *BookingRepository) Begin(ctx context.Context) (pgx.Tx, error) {
	return r.pool.Begin(ctx)
}

// ActiveBookingsBetween satisfies availability.BookingStore. Rows come
// back with their status; the resolver is the one that decides a
// cancelled appointment never blocks a slot.
func (r *BookingRepository) ActiveBookingsBetween(ctx context.Context, stylistID string, from, to time.Time) ([]availability.TimedBooking, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT start_time, duration_minutes, status
		FROM appointments
		WHERE stylist_id = $1
			AND start_time >= $2
			AND start_time < $3
		ORDER BY start_time ASC
	`, stylistID, from, to)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []availability.TimedBooking
	for rows.Next() {
		var b availability.TimedBooking
		if err := rows.Scan(&b.Start, &b.DurationMinutes, &b.Status); err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return out, nil
}

// Create inserts a new appointment inside tx. The exclusion constraint
// on occupied time ranges rejects concurrent double-books; callers map
// IsConflict to a slot-taken response.
func (r *BookingRepository) Create(ctx context.Context, tx pgx.Tx, appt *model.Appointment) (string, error) {
	id := uuid.NewString()
	_, err := tx.Exec(ctx, `
		INSERT INTO appointments
			(id, stylist_id, client_id, client_name, service_id, start_time, duration_minutes, status)
		VALUES ($1, $2, NULLIF($3, '')::uuid, $4, NULLIF($5, '')::uuid, $6, $7, $8)
	`, id, appt.StylistID, appt.ClientID, appt.ClientName, appt.ServiceID,
		appt.StartTime, appt.DurationMinutes, appt.Status)
	if err != nil {
		return "", err
	}
	return id, nil
}

func (r *BookingRepository) GetForUpdate(ctx context.Context, tx pgx.Tx, appointmentID string) (model.Appointment, error) {
	row := tx.QueryRow(ctx, `
		SELECT `+apptColumns+`
		FROM appointments
		WHERE id = $1
		FOR UPDATE
	`, appointmentID)
	return scanAppointment(row)
}

func (r *BookingRepository) Get(ctx context.Context, appointmentID string) (model.Appointment, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT `+apptColumns+`
		FROM appointments
		WHERE id = $1
	`, appointmentID)
	return scanAppointment(row)
}

func (r *BookingRepository) UpdateStatus(ctx context.Context, tx pgx.Tx, appointmentID, status string) error {
	_, err := tx.Exec(ctx, `
		UPDATE appointments
		SET status = $2, updated_at = now()
		WHERE id = $1
	`, appointmentID, status)
	return err
}

func (r *BookingRepository) Cancel(ctx context.Context, tx pgx.Tx, appointmentID, status, reason string) (time.Time, error) {
	var cancelledAt time.Time
	err := tx.QueryRow(ctx, `
		UPDATE appointments
		SET status = $2,
			cancel_reason = $3,
			cancelled_at = now(),
			updated_at = now()
		WHERE id = $1
		RETURNING cancelled_at
	`, appointmentID, status, reason).Scan(&cancelledAt)
	return cancelledAt, err
}

func (r *BookingRepository) ListByStylist(ctx context.Context, stylistID string, from, to time.Time, limit int) ([]model.Appointment, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := r.pool.Query(ctx, `
		SELECT `+apptColumns+`
		FROM appointments
		WHERE stylist_id = $1 AND start_time >= $2 AND start_time < $3
		ORDER BY start_time ASC
		LIMIT $4
	`, stylistID, from, to, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectAppointments(rows)
}

func (r *BookingRepository) ListByClient(ctx context.Context, clientID string, limit int) ([]model.Appointment, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := r.pool.Query(ctx, `
		SELECT `+apptColumns+`
		FROM appointments
		WHERE client_id = $1
		ORDER BY start_time DESC
		LIMIT $2
	`, clientID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectAppointments(rows)
}

// CountActiveInMonth returns the stylist's non-cancelled appointments
// starting in the month containing at. Used for tier booking caps.
func (r *BookingRepository) CountActiveInMonth(ctx context.Context, tx pgx.Tx, stylistID string, at time.Time) (int, error) {
	monthStart := time.Date(at.Year(), at.Month(), 1, 0, 0, 0, 0, at.Location())
	monthEnd := monthStart.AddDate(0, 1, 0)
	var n int
	err := tx.QueryRow(ctx, `
		SELECT COUNT(*)
		FROM appointments
		WHERE stylist_id = $1
			AND start_time >= $2
			AND start_time < $3
			AND status NOT IN ('CANCELED', 'CANCELLED_BY_CLIENT', 'CANCELLED_BY_TECH')
	`, stylistID, monthStart, monthEnd).Scan(&n)
	return n, err
}

func (r *BookingRepository) LockIdempotencyKey(ctx context.Context, tx pgx.Tx, stylistID, key string) (IdempotencyRecord, bool, error) {
	rec, err := r.selectIdempotencyForUpdate(ctx, tx, stylistID, key)
	if err == nil {
		return rec, true, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return IdempotencyRecord{}, false, err
	}

	_, err = tx.Exec(ctx, `
		INSERT INTO booking_idempotency_keys (stylist_id, idempotency_key)
		VALUES ($1, $2)
		ON CONFLICT (stylist_id, idempotency_key) DO NOTHING
	`, stylistID, key)
	if err != nil {
		return IdempotencyRecord{}, false, err
	}

	rec, err = r.selectIdempotencyForUpdate(ctx, tx, stylistID, key)
	if err != nil {
		return IdempotencyRecord{}, false, err
	}
	return rec, false, nil
}

func (r *BookingRepository) FinalizeIdempotency(ctx context.Context, tx pgx.Tx, stylistID, key, appointmentID string, statusCode int, response []byte) error {
	_, err := tx.Exec(ctx, `
		UPDATE booking_idempotency_keys
		SET appointment_id = $3,
			status_code = $4,
			response_payload = $5,
			updated_at = now()
		WHERE stylist_id = $1 AND idempotency_key = $2
	`, stylistID, key, appointmentID, statusCode, response)
	return err
}

// IsConflict reports an exclusion-constraint violation, i.e. a
// concurrent booking won the slot.
func IsConflict(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23P01"
}

func IsNotFound(err error) bool {
	return errors.Is(err, pgx.ErrNoRows)
}

func (r *BookingRepository) selectIdempotencyForUpdate(ctx context.Context, tx pgx.Tx, stylistID, key string) (IdempotencyRecord, error) {
	var rec IdempotencyRecord
	var responseText string
	err := tx.QueryRow(ctx, `
		SELECT stylist_id::text,
			idempotency_key,
			COALESCE(appointment_id::text, ''),
			COALESCE(status_code, 0),
			COALESCE(response_payload::text, '')
		FROM booking_idempotency_keys
		WHERE stylist_id = $1 AND idempotency_key = $2
		FOR UPDATE
	`, stylistID, key).Scan(
		&rec.StylistID,
		&rec.IdempotencyKey,
		&rec.AppointmentID,
		&rec.StatusCode,
		&responseText,
	)
	if err != nil {
		return IdempotencyRecord{}, err
	}
	if responseText != "" {
		rec.ResponsePayload = []byte(responseText)
	}
	return rec, nil
}

func scanAppointment(row pgx.Row) (model.Appointment, error) {
	var appt model.Appointment
	var cancelledAt *time.Time
	err := row.Scan(
		&appt.ID,
		&appt.StylistID,
		&appt.ClientID,
		&appt.ClientName,
		&appt.ServiceID,
		&appt.StartTime,
		&appt.DurationMinutes,
		&appt.Status,
		&appt.CancelReason,
		&cancelledAt,
		&appt.CreatedAt,
	)
	if err != nil {
		return model.Appointment{}, err
	}
	appt.CancelledAt = cancelledAt
	return appt, nil
}

func collectAppointments(rows pgx.Rows) ([]model.Appointment, error) {
	var out []model.Appointment
	for rows.Next() {
		appt, err := scanAppointment(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, appt)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return out, nil
}
