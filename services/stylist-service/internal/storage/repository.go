package storage

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/glowbook/glowbook/libs/db"
)

type Repository struct {
	pool *db.Pool
}

func NewRepository(pool *db.Pool) *Repository {
	return &Repository{pool: pool}
}

func (r *Repository) Begin(ctx context.Context) (pgx.Tx, error) {
	return r.pool.Begin(ctx)
}

func IsNotFound(err error) bool {
	return errors.Is(err, pgx.ErrNoRows)
}

type Profile struct {
	StylistID   string `json:"stylist_id"`
	DisplayName string `json:"display_name"`
	SalonName   string `json:"salon_name,omitempty"`
	Timezone    string `json:"timezone"`
	Bio         string `json:"bio,omitempty"`
}

// GetOrCreateProfile seeds a default UTC profile on first access so a
// freshly registered stylist can start configuring immediately.
func (r *Repository) GetOrCreateProfile(ctx context.Context, stylistID string) (Profile, error) {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO stylist_profiles (stylist_id)
		VALUES ($1)
		ON CONFLICT (stylist_id) DO NOTHING
	`, stylistID)
	if err != nil {
		return Profile{}, err
	}

	var p Profile
	err = r.pool.QueryRow(ctx, `
		SELECT stylist_id::text, display_name, salon_name, timezone, bio
		FROM stylist_profiles
		WHERE stylist_id = $1
	`, stylistID).Scan(&p.StylistID, &p.DisplayName, &p.SalonName, &p.Timezone, &p.Bio)
	return p, err
}

func (r *Repository) GetProfile(ctx context.Context, stylistID string) (Profile, error) {
	var p Profile
	err := r.pool.QueryRow(ctx, `
		SELECT stylist_id::text, display_name, salon_name, timezone, bio
		FROM stylist_profiles
		WHERE stylist_id = $1
	`, stylistID).Scan(&p.StylistID, &p.DisplayName, &p.SalonName, &p.Timezone, &p.Bio)
	return p, err
}

func (r *Repository) UpsertProfile(ctx context.Context, tx pgx.Tx, p Profile) error {
	_, err := tx.Exec(ctx, `
		INSERT INTO stylist_profiles (stylist_id, display_name, salon_name, timezone, bio)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (stylist_id) DO UPDATE
		SET display_name = EXCLUDED.display_name,
			salon_name = EXCLUDED.salon_name,
			timezone = EXCLUDED.timezone,
			bio = EXCLUDED.bio,
			updated_at = now()
	`, p.StylistID, p.DisplayName, p.SalonName, p.Timezone, p.Bio)
	return err
}

type Service struct {
	ID              string    `json:"id"`
	StylistID       string    `json:"stylist_id"`
	Name            string    `json:"name"`
	DurationMinutes int       `json:"duration_minutes"`
	Price           string    `json:"price"`
	Description     string    `json:"description,omitempty"`
	CreatedAt       time.Time `json:"created_at"`
}

func (r *Repository) CreateService(ctx context.Context, tx pgx.Tx, stylistID, name string, durationMinutes int, price, description string) (string, error) {
	id := uuid.NewString()
	_, err := tx.Exec(ctx, `
		INSERT INTO stylist_services (id, stylist_id, name, duration_minutes, price, description)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, id, stylistID, name, durationMinutes, price, description)
	if err != nil {
		return "", err
	}
	return id, nil
}

func (r *Repository) UpdateService(ctx context.Context, tx pgx.Tx, stylistID, serviceID, name string, durationMinutes int, price, description string) error {
	tag, err := tx.Exec(ctx, `
		UPDATE stylist_services
		SET name = $3,
			duration_minutes = $4,
			price = $5,
			description = $6,
			updated_at = now()
		WHERE id = $1 AND stylist_id = $2
	`, serviceID, stylistID, name, durationMinutes, price, description)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func (r *Repository) DeleteService(ctx context.Context, tx pgx.Tx, stylistID, serviceID string) error {
	tag, err := tx.Exec(ctx, `
		DELETE FROM stylist_services
		WHERE id = $1 AND stylist_id = $2
	`, serviceID, stylistID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func (r *Repository) ListServices(ctx context.Context, stylistID string, limit int) ([]Service, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := r.pool.Query(ctx, `
		SELECT id::text, stylist_id::text, name, duration_minutes, price::text, description, created_at
		FROM stylist_services
		WHERE stylist_id = $1
		ORDER BY created_at DESC
		LIMIT $2
	`, stylistID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Service
	for rows.Next() {
		var s Service
		if err := rows.Scan(&s.ID, &s.StylistID, &s.Name, &s.DurationMinutes, &s.Price, &s.Description, &s.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return out, nil
}

func (r *Repository) CountServices(ctx context.Context, tx pgx.Tx, stylistID string) (int, error) {
	var n int
	err := tx.QueryRow(ctx, `
		SELECT COUNT(*)
		FROM stylist_services
		WHERE stylist_id = $1
	`, stylistID).Scan(&n)
	return n, err
}

// MaxServices returns the tier cap from the billing-fed replica; free
// tier defaults apply when no row exists.
func (r *Repository) MaxServices(ctx context.Context, tx pgx.Tx, stylistID string) (int, error) {
	var max int
	err := tx.QueryRow(ctx, `
		SELECT max_services
		FROM stylist_entitlements
		WHERE stylist_id = $1
	`, stylistID).Scan(&max)
	if errors.Is(err, pgx.ErrNoRows) {
		return 5, nil
	}
	if err != nil {
		return 0, err
	}
	return max, nil
}

func (r *Repository) UpsertEntitlements(ctx context.Context, stylistID, tier string, maxServices int) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO stylist_entitlements (stylist_id, tier, max_services)
		VALUES ($1, $2, $3)
		ON CONFLICT (stylist_id) DO UPDATE
		SET tier = EXCLUDED.tier,
			max_services = EXCLUDED.max_services,
			updated_at = now()
	`, stylistID, tier, maxServices)
	return err
}
