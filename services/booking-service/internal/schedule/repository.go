// Package schedule stores the stylist's recurring weekly hours and
// per-date exceptions consumed by the availability resolver.
package schedule

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/glowbook/glowbook/libs/db"
	"github.com/glowbook/glowbook/services/booking-service/internal/availability"
)

type Repository struct {
	pool *db.Pool
}

func NewRepository(pool *db.Pool) *Repository {
	return &Repository{pool: pool}
}

// WeeklyRuleFor returns the rule for one weekday, or nil when the
// stylist never saved a schedule for it. A missing rule is treated as
// off by the resolver.
func (r *Repository) WeeklyRuleFor(ctx context.Context, stylistID string, weekday int) (*availability.WeeklyRule, error) {
	var rule availability.WeeklyRule
	err := r.pool.QueryRow(ctx, `
		SELECT weekday, is_working, start_minute, end_minute
		FROM weekly_schedule
		WHERE stylist_id = $1 AND weekday = $2
	`, stylistID, weekday).Scan(&rule.Weekday, &rule.IsWorking, &rule.StartMinute, &rule.EndMinute)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &rule, nil
}

// ListWeeklyRules returns the full recurring schedule ordered by
// weekday.
func (r *Repository) ListWeeklyRules(ctx context.Context, stylistID string) ([]availability.WeeklyRule, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT weekday, is_working, start_minute, end_minute
		FROM weekly_schedule
		WHERE stylist_id = $1
		ORDER BY weekday ASC
	`, stylistID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []availability.WeeklyRule
	for rows.Next() {
		var rule availability.WeeklyRule
		if err := rows.Scan(&rule.Weekday, &rule.IsWorking, &rule.StartMinute, &rule.EndMinute); err != nil {
			return nil, err
		}
		out = append(out, rule)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return out, nil
}

// ReplaceWeeklyRules applies a full schedule update atomically. Rules
// for weekdays not present in the new set are removed.
func (r *Repository) ReplaceWeeklyRules(ctx context.Context, stylistID string, rules []availability.WeeklyRule) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	weekdays := make([]int, 0, len(rules))
	for _, rule := range rules {
		weekdays = append(weekdays, rule.Weekday)
		if _, err := tx.Exec(ctx, `
			INSERT INTO weekly_schedule (stylist_id, weekday, is_working, start_minute, end_minute)
			VALUES ($1, $2, $3, $4, $5)
			ON CONFLICT (stylist_id, weekday) DO UPDATE
			SET is_working = EXCLUDED.is_working,
				start_minute = EXCLUDED.start_minute,
				end_minute = EXCLUDED.end_minute,
				updated_at = now()
		`, stylistID, rule.Weekday, rule.IsWorking, rule.StartMinute, rule.EndMinute); err != nil {
			return err
		}
	}
	if _, err := tx.Exec(ctx, `
		DELETE FROM weekly_schedule
		WHERE stylist_id = $1 AND weekday != ALL($2)
	`, stylistID, weekdays); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

// ExceptionFor returns the override for one local calendar date, or nil
// when none exists.
func (r *Repository) ExceptionFor(ctx context.Context, stylistID string, date time.Time) (*availability.Exception, error) {
	var ex availability.Exception
	err := r.pool.QueryRow(ctx, `
		SELECT id::text, date, is_off, start_minute, end_minute, COALESCE(reason, '')
		FROM schedule_exceptions
		WHERE stylist_id = $1 AND date = $2
	`, stylistID, date.Format("2006-01-02")).Scan(&ex.ID, &ex.Date, &ex.IsOff, &ex.StartMinute, &ex.EndMinute, &ex.Reason)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &ex, nil
}

// UpsertException records a date override, replacing any previous
// exception for the same date. Returns the exception id.
func (r *Repository) UpsertException(ctx context.Context, stylistID string, ex availability.Exception) (string, error) {
	id := uuid.NewString()
	err := r.pool.QueryRow(ctx, `
		INSERT INTO schedule_exceptions (id, stylist_id, date, is_off, start_minute, end_minute, reason)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (stylist_id, date) DO UPDATE
		SET is_off = EXCLUDED.is_off,
			start_minute = EXCLUDED.start_minute,
			end_minute = EXCLUDED.end_minute,
			reason = EXCLUDED.reason,
			updated_at = now()
		RETURNING id::text
	`, id, stylistID, ex.Date.Format("2006-01-02"), ex.IsOff, ex.StartMinute, ex.EndMinute, ex.Reason).Scan(&id)
	if err != nil {
		return "", err
	}
	return id, nil
}

// DeleteException removes an override owned by the stylist.
func (r *Repository) DeleteException(ctx context.Context, stylistID, exceptionID string) error {
	tag, err := r.pool.Exec(ctx, `
		DELETE FROM schedule_exceptions
		WHERE id = $1 AND stylist_id = $2
	`, exceptionID, stylistID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

// ListExceptions returns overrides within [from, to], ordered by date.
func (r *Repository) ListExceptions(ctx context.Context, stylistID string, from, to time.Time) ([]availability.Exception, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id::text, date, is_off, start_minute, end_minute, COALESCE(reason, '')
		FROM schedule_exceptions
		WHERE stylist_id = $1 AND date BETWEEN $2 AND $3
		ORDER BY date ASC
	`, stylistID, from.Format("2006-01-02"), to.Format("2006-01-02"))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []availability.Exception
	for rows.Next() {
		var ex availability.Exception
		if err := rows.Scan(&ex.ID, &ex.Date, &ex.IsOff, &ex.StartMinute, &ex.EndMinute, &ex.Reason); err != nil {
			return nil, err
		}
		out = append(out, ex)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return out, nil
}
