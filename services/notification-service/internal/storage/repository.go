package storage

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/jackc/pgx/v5"

	"github.com/glowbook/glowbook/libs/db"
)

type Notification struct {
	AppointmentID string
	StylistID     string
	Channel       string
	Recipient     string
	Payload       map[string]any
	Status        string
}

// Contact is the recipient replica fed by auth signup events.
type Contact struct {
	UserID      string
	Email       string
	DisplayName string
}

type Repository struct {
	pool *db.Pool
}

func NewRepository(pool *db.Pool) *Repository {
	return &Repository{pool: pool}
}

// InsertNotification records a delivery attempt inside the worker's
// transaction so the job state and the record move together.
func (r *Repository) InsertNotification(ctx context.Context, tx pgx.Tx, n Notification) error {
	payload, err := json.Marshal(n.Payload)
	if err != nil {
		return err
	}
	_, err = tx.Exec(ctx, `
		INSERT INTO notifications (appointment_id, stylist_id, channel, recipient, payload, status)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, n.AppointmentID, n.StylistID, n.Channel, n.Recipient, payload, n.Status)
	return err
}

func (r *Repository) UpsertContact(ctx context.Context, c Contact) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO user_contacts (user_id, email, display_name)
		VALUES ($1, $2, $3)
		ON CONFLICT (user_id)
		DO UPDATE SET email = EXCLUDED.email,
		              display_name = EXCLUDED.display_name,
		              updated_at = now()
	`, c.UserID, c.Email, c.DisplayName)
	return err
}

func (r *Repository) GetContact(ctx context.Context, userID string) (Contact, bool, error) {
	var c Contact
	err := r.pool.QueryRow(ctx, `
		SELECT user_id::text, email, display_name
		FROM user_contacts
		WHERE user_id = $1
	`, userID).Scan(&c.UserID, &c.Email, &c.DisplayName)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Contact{}, false, nil
		}
		return Contact{}, false, err
	}
	return c, true, nil
}
