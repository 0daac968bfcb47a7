// internal/store/preferences.go
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"notification-engine/internal/models"
)

// DigestCadence selects which digest toggle a recipient listing filters on.
type DigestCadence string

const (
	DigestDaily  DigestCadence = "daily"
	DigestWeekly DigestCadence = "weekly"
)

// Preferences is the postgres-backed preference and recipient-contact store.
type Preferences struct {
	db *sql.DB
}

func NewPreferences(db *sql.DB) *Preferences {
	return &Preferences{db: db}
}

func (s *Preferences) Get(ctx context.Context, recipientID string) (*models.Preference, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT recipient_id, in_app_enabled, email_enabled, sms_enabled, push_enabled,
		       quiet_hours_start, quiet_hours_end, digest_daily, digest_weekly,
		       consent_given, updated_at
		FROM notification_preferences
		WHERE recipient_id = $1`, recipientID)

	var p models.Preference
	var quietStart, quietEnd sql.NullString
	err := row.Scan(
		&p.RecipientID, &p.InAppEnabled, &p.EmailEnabled, &p.SMSEnabled, &p.PushEnabled,
		&quietStart, &quietEnd, &p.DigestDaily, &p.DigestWeekly,
		&p.ConsentGiven, &p.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("scan preference: %w", err)
	}

	if quietStart.Valid {
		p.QuietHoursStart = &quietStart.String
	}
	if quietEnd.Valid {
		p.QuietHoursEnd = &quietEnd.String
	}
	return &p, nil
}

// Save upserts the full preference record.
func (s *Preferences) Save(ctx context.Context, p models.Preference) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO notification_preferences
			(recipient_id, in_app_enabled, email_enabled, sms_enabled, push_enabled,
			 quiet_hours_start, quiet_hours_end, digest_daily, digest_weekly,
			 consent_given, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT (recipient_id) DO UPDATE SET
			in_app_enabled = EXCLUDED.in_app_enabled,
			email_enabled = EXCLUDED.email_enabled,
			sms_enabled = EXCLUDED.sms_enabled,
			push_enabled = EXCLUDED.push_enabled,
			quiet_hours_start = EXCLUDED.quiet_hours_start,
			quiet_hours_end = EXCLUDED.quiet_hours_end,
			digest_daily = EXCLUDED.digest_daily,
			digest_weekly = EXCLUDED.digest_weekly,
			consent_given = EXCLUDED.consent_given,
			updated_at = EXCLUDED.updated_at`,
		p.RecipientID, p.InAppEnabled, p.EmailEnabled, p.SMSEnabled, p.PushEnabled,
		nullableString(p.QuietHoursStart), nullableString(p.QuietHoursEnd),
		p.DigestDaily, p.DigestWeekly, p.ConsentGiven, p.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("upsert preference: %w", err)
	}
	return nil
}

// ListDigestRecipients returns recipients with the given digest cadence
// enabled and consent given.
func (s *Preferences) ListDigestRecipients(ctx context.Context, cadence DigestCadence) ([]string, error) {
	column := "digest_daily"
	if cadence == DigestWeekly {
		column = "digest_weekly"
	}

	rows, err := s.db.QueryContext(ctx, fmt.Sprintf(`
		SELECT recipient_id
		FROM notification_preferences
		WHERE %s = TRUE AND consent_given = TRUE`, column))
	if err != nil {
		return nil, fmt.Errorf("query digest recipients: %w", err)
	}
	defer rows.Close()

	var recipients []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan digest recipient: %w", err)
		}
		recipients = append(recipients, id)
	}
	return recipients, rows.Err()
}

// GetContact returns the provider addresses for a recipient.
func (s *Preferences) GetContact(ctx context.Context, recipientID string) (*models.Contact, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, email, phone, device_token
		FROM recipients
		WHERE id = $1`, recipientID)

	var c models.Contact
	var email, phone, deviceToken sql.NullString
	if err := row.Scan(&c.RecipientID, &email, &phone, &deviceToken); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("scan contact: %w", err)
	}

	c.Email = email.String
	c.Phone = phone.String
	c.DeviceToken = deviceToken.String
	return &c, nil
}

func nullableString(s *string) interface{} {
	if s == nil {
		return nil
	}
	return *s
}
