// internal/store/notifications.go
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"

	"notification-engine/internal/models"
)

// ErrNotFound is returned when a record does not exist.
var ErrNotFound = errors.New("store: not found")

// Notifications is the postgres-backed notification and delivery-attempt
// store. Notification rows are never deleted, only status-updated.
type Notifications struct {
	db *sql.DB
}

func NewNotifications(db *sql.DB) *Notifications {
	return &Notifications{db: db}
}

func (s *Notifications) Create(ctx context.Context, n *models.Notification) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO notifications
			(id, recipient_id, category, priority, title, body,
			 related_entity_type, related_entity_id, status, channels,
			 created_at, status_changed_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`,
		n.ID, n.RecipientID, n.Category, string(n.Priority), n.Title, n.Body,
		n.RelatedEntityType, n.RelatedEntityID, string(n.Status),
		pq.Array(channelStrings(n.Channels)), n.CreatedAt, n.StatusChangedAt,
	)
	if err != nil {
		return fmt.Errorf("insert notification: %w", err)
	}
	return nil
}

func (s *Notifications) Get(ctx context.Context, id string) (*models.Notification, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, recipient_id, category, priority, title, body,
		       related_entity_type, related_entity_id, status, channels,
		       created_at, status_changed_at
		FROM notifications
		WHERE id = $1`, id)

	return scanNotification(row)
}

// UpdateStatus transitions a notification's status and attempted channel set.
// Terminal statuses are final: updating an already-terminal row is a no-op,
// which makes aggregate finalization idempotent under races.
func (s *Notifications) UpdateStatus(ctx context.Context, id string, status models.Status, channels []models.Channel) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE notifications
		SET status = $2, channels = $3, status_changed_at = $4
		WHERE id = $1
		  AND status NOT IN ('SENT', 'PARTIALLY_SENT', 'FAILED', 'SKIPPED')`,
		id, string(status), pq.Array(channelStrings(channels)), time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("update notification status: %w", err)
	}
	return nil
}

// AppendAttempt records one channel's send outcome. Append-only.
func (s *Notifications) AppendAttempt(ctx context.Context, a models.DeliveryAttempt) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO delivery_attempts
			(notification_id, channel, outcome, attempted_at, error_detail)
		VALUES ($1, $2, $3, $4, $5)`,
		a.NotificationID, string(a.Channel), string(a.Outcome), a.AttemptedAt, a.ErrorDetail,
	)
	if err != nil {
		return fmt.Errorf("insert delivery attempt: %w", err)
	}
	return nil
}

func (s *Notifications) Attempts(ctx context.Context, notificationID string) ([]models.DeliveryAttempt, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT notification_id, channel, outcome, attempted_at, error_detail
		FROM delivery_attempts
		WHERE notification_id = $1
		ORDER BY attempted_at`, notificationID)
	if err != nil {
		return nil, fmt.Errorf("query delivery attempts: %w", err)
	}
	defer rows.Close()

	var attempts []models.DeliveryAttempt
	for rows.Next() {
		var a models.DeliveryAttempt
		var channel, outcome string
		if err := rows.Scan(&a.NotificationID, &channel, &outcome, &a.AttemptedAt, &a.ErrorDetail); err != nil {
			return nil, fmt.Errorf("scan delivery attempt: %w", err)
		}
		a.Channel = models.Channel(channel)
		a.Outcome = models.Outcome(outcome)
		attempts = append(attempts, a)
	}
	return attempts, rows.Err()
}

// ListCreatedBetween returns a recipient's notifications created in
// [from, to), oldest first. Used by the digest scheduler.
func (s *Notifications) ListCreatedBetween(ctx context.Context, recipientID string, from, to time.Time) ([]models.Notification, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, recipient_id, category, priority, title, body,
		       related_entity_type, related_entity_id, status, channels,
		       created_at, status_changed_at
		FROM notifications
		WHERE recipient_id = $1 AND created_at >= $2 AND created_at < $3
		ORDER BY created_at`, recipientID, from, to)
	if err != nil {
		return nil, fmt.Errorf("query notifications: %w", err)
	}
	defer rows.Close()

	var out []models.Notification
	for rows.Next() {
		n, err := scanNotification(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *n)
	}
	return out, rows.Err()
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanNotification(row rowScanner) (*models.Notification, error) {
	var n models.Notification
	var priority, status string
	var channels []string

	err := row.Scan(
		&n.ID, &n.RecipientID, &n.Category, &priority, &n.Title, &n.Body,
		&n.RelatedEntityType, &n.RelatedEntityID, &status, pq.Array(&channels),
		&n.CreatedAt, &n.StatusChangedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("scan notification: %w", err)
	}

	n.Priority = models.Priority(priority)
	n.Status = models.Status(status)
	for _, c := range channels {
		n.Channels = append(n.Channels, models.Channel(c))
	}
	return &n, nil
}

func channelStrings(channels []models.Channel) []string {
	out := make([]string, 0, len(channels))
	for _, c := range channels {
		out = append(out, string(c))
	}
	return out
}
