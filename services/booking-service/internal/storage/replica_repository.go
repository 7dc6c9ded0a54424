package storage

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/glowbook/glowbook/libs/db"
)

// ReplicaRepository holds the event-fed read models this service needs
// on the booking hot path: stylist timezones, service durations and
// subscription entitlements. They are kept current by the Kafka
// consumers; no synchronous cross-service calls are made here.
type ReplicaRepository struct {
	pool *db.Pool
}

func NewReplicaRepository(pool *db.Pool) *ReplicaRepository {
	return &ReplicaRepository{pool: pool}
}

// StylistLocation satisfies availability.LocationStore. A stylist with
// no settings row, or with a timezone this host cannot load, books in
// UTC.
func (r *ReplicaRepository) StylistLocation(ctx context.Context, stylistID string) (*time.Location, error) {
	var tz string
	err := r.pool.QueryRow(ctx, `
		SELECT timezone
		FROM stylist_settings
		WHERE stylist_id = $1
	`, stylistID).Scan(&tz)
	if errors.Is(err, pgx.ErrNoRows) {
		return time.UTC, nil
	}
	if err != nil {
		return nil, err
	}
	loc, err := time.LoadLocation(tz)
	if err != nil {
		return time.UTC, nil
	}
	return loc, nil
}

func (r *ReplicaRepository) UpsertStylistSettings(ctx context.Context, stylistID, timezone string) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO stylist_settings (stylist_id, timezone)
		VALUES ($1, $2)
		ON CONFLICT (stylist_id) DO UPDATE
		SET timezone = EXCLUDED.timezone,
			updated_at = now()
	`, stylistID, timezone)
	return err
}

// ServiceDuration returns the catalog duration for a stylist's service,
// or (0, false, nil) when the service is unknown.
func (r *ReplicaRepository) ServiceDuration(ctx context.Context, stylistID, serviceID string) (int, bool, error) {
	var mins int
	err := r.pool.QueryRow(ctx, `
		SELECT duration_minutes
		FROM service_catalog
		WHERE stylist_id = $1 AND service_id = $2
	`, stylistID, serviceID).Scan(&mins)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, err
	}
	return mins, true, nil
}

func (r *ReplicaRepository) UpsertCatalogService(ctx context.Context, stylistID, serviceID, name string, durationMinutes int) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO service_catalog (stylist_id, service_id, name, duration_minutes)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (stylist_id, service_id) DO UPDATE
		SET name = EXCLUDED.name,
			duration_minutes = EXCLUDED.duration_minutes,
			updated_at = now()
	`, stylistID, serviceID, name, durationMinutes)
	return err
}

func (r *ReplicaRepository) DeleteCatalogService(ctx context.Context, stylistID, serviceID string) error {
	_, err := r.pool.Exec(ctx, `
		DELETE FROM service_catalog
		WHERE stylist_id = $1 AND service_id = $2
	`, stylistID, serviceID)
	return err
}

type Entitlements struct {
	StylistID              string
	Tier                   string
	MaxMonthlyAppointments int
}

// GetEntitlements returns the stylist's current booking limits. A
// stylist with no row is on the free tier defaults.
func (r *ReplicaRepository) GetEntitlements(ctx context.Context, tx pgx.Tx, stylistID string) (Entitlements, error) {
	ent := Entitlements{StylistID: stylistID, Tier: "free", MaxMonthlyAppointments: 20}
	err := tx.QueryRow(ctx, `
		SELECT tier, max_monthly_appointments
		FROM stylist_entitlements
		WHERE stylist_id = $1
	`, stylistID).Scan(&ent.Tier, &ent.MaxMonthlyAppointments)
	if errors.Is(err, pgx.ErrNoRows) {
		return ent, nil
	}
	if err != nil {
		return Entitlements{}, err
	}
	return ent, nil
}

func (r *ReplicaRepository) UpsertEntitlements(ctx context.Context, stylistID, tier string, maxMonthly int) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO stylist_entitlements (stylist_id, tier, max_monthly_appointments)
		VALUES ($1, $2, $3)
		ON CONFLICT (stylist_id) DO UPDATE
		SET tier = EXCLUDED.tier,
			max_monthly_appointments = EXCLUDED.max_monthly_appointments,
			updated_at = now()
	`, stylistID, tier, maxMonthly)
	return err
}
