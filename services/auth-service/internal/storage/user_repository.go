package storage

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/glowbook/glowbook/libs/db"
)

type User struct {
	ID           string
	Email        string
	PasswordHash string
	Role         string
	StylistID    string
	DisplayName  string
}

type UserRepository struct {
	pool *db.Pool
}

func NewUserRepository(pool *db.Pool) *UserRepository {
	return &UserRepository{pool: pool}
}

func (r *UserRepository) Begin(ctx context.Context) (pgx.Tx, error) {
	return r.pool.Begin(ctx)
}

// Create inserts the user inside tx so the signup event in the outbox
// commits atomically with the row. Stylist accounts double as their own
// stylist aggregate, so stylist_id mirrors the user id.
func (r *UserRepository) Create(ctx context.Context, tx pgx.Tx, u User) (User, error) {
	u.ID = uuid.NewString()
	if u.Role == "stylist" {
		u.StylistID = u.ID
	}
	_, err := tx.Exec(ctx, `
		INSERT INTO users (id, email, password_hash, role, stylist_id, display_name)
		VALUES ($1, $2, $3, $4, NULLIF($5, '')::uuid, $6)
	`, u.ID, u.Email, u.PasswordHash, u.Role, u.StylistID, u.DisplayName)
	if err != nil {
		return User{}, err
	}
	return u, nil
}

func (r *UserRepository) GetByEmail(ctx context.Context, email string) (User, error) {
	return r.get(ctx, `
		SELECT id::text, email, password_hash, role, COALESCE(stylist_id::text, ''), display_name
		FROM users
		WHERE email = $1
	`, email)
}

func (r *UserRepository) GetByID(ctx context.Context, id string) (User, error) {
	return r.get(ctx, `
		SELECT id::text, email, password_hash, role, COALESCE(stylist_id::text, ''), display_name
		FROM users
		WHERE id = $1
	`, id)
}

func (r *UserRepository) get(ctx context.Context, query string, arg any) (User, error) {
	var u User
	err := r.pool.QueryRow(ctx, query, arg).Scan(
		&u.ID, &u.Email, &u.PasswordHash, &u.Role, &u.StylistID, &u.DisplayName,
	)
	if err != nil {
		return User{}, err
	}
	return u, nil
}

func IsDuplicateEmail(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

func IsNotFound(err error) bool {
	return errors.Is(err, pgx.ErrNoRows)
}
