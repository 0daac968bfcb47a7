// internal/engine/engine.go
package engine

import (
	"context"
	"time"

	"github.com/google/uuid"

	"notification-engine/internal/common/errors"
	"notification-engine/internal/common/logger"
	"notification-engine/internal/common/metrics"
	"notification-engine/internal/engine/classifier"
	"notification-engine/internal/engine/dispatch"
	"notification-engine/internal/engine/personalize"
	"notification-engine/internal/engine/preference"
	"notification-engine/internal/engine/router"
	"notification-engine/internal/engine/scheduler"
	"notification-engine/internal/models"
	"notification-engine/internal/store"
)

// SubmitRequest is the inbound submission contract.
type SubmitRequest struct {
	RecipientID       string          `json:"recipientId"`
	Category          string          `json:"category"`
	Priority          models.Priority `json:"priority"`
	Title             string          `json:"title"`
	Body              string          `json:"body"`
	RelatedEntityType string          `json:"relatedEntityType,omitempty"`
	RelatedEntityID   string          `json:"relatedEntityId,omitempty"`
}

// Dispatcher executes an immediate delivery.
type Dispatcher interface {
	Dispatch(ctx context.Context, n models.Notification, channels []models.Channel) (models.Status, error)
}

// SchedulerQueue accepts deferred work for the batch and delayed tiers.
type SchedulerQueue interface {
	EnqueueBatch(ctx context.Context, item scheduler.Item) error
	ScheduleDelayed(ctx context.Context, item scheduler.Item, releaseAt time.Time) error
}

// NotificationStore is the persistence surface the engine needs.
type NotificationStore interface {
	Create(ctx context.Context, n *models.Notification) error
	Get(ctx context.Context, id string) (*models.Notification, error)
	UpdateStatus(ctx context.Context, id string, status models.Status, channels []models.Channel) error
	Attempts(ctx context.Context, notificationID string) ([]models.DeliveryAttempt, error)
	ListCreatedBetween(ctx context.Context, recipientID string, from, to time.Time) ([]models.Notification, error)
}

// PreferenceStore reads and writes recipient preference records.
type PreferenceStore interface {
	Get(ctx context.Context, recipientID string) (*models.Preference, error)
	Save(ctx context.Context, p models.Preference) error
}

// Auditor receives terminal delivery outcomes. Implementations must not
// block the dispatch path.
type Auditor interface {
	Record(ctx context.Context, n models.Notification, status models.Status)
}

// Engine is the notification routing facade: it resolves preferences,
// enriches content, routes channels, classifies the dispatch tier, and
// either dispatches inline or hands off to the scheduler queues.
type Engine struct {
	notifications NotificationStore
	preferences   PreferenceStore
	resolver      *preference.Resolver
	enricher      personalize.Enricher
	router        *router.Router
	dispatcher    Dispatcher
	queue         SchedulerQueue
	auditor       Auditor
	clock         scheduler.Clock
	logger        logger.Logger
}

func New(
	notifications NotificationStore,
	preferences PreferenceStore,
	resolver *preference.Resolver,
	enricher personalize.Enricher,
	channelRouter *router.Router,
	dispatcher Dispatcher,
	queue SchedulerQueue,
	auditor Auditor,
	clock scheduler.Clock,
	log logger.Logger,
) *Engine {
	return &Engine{
		notifications: notifications,
		preferences:   preferences,
		resolver:      resolver,
		enricher:      enricher,
		router:        channelRouter,
		dispatcher:    dispatcher,
		queue:         queue,
		auditor:       auditor,
		clock:         clock,
		logger:        log,
	}
}

// Submit accepts a notification for delivery and returns its identifier.
// IMMEDIATE-tier notifications are dispatched on the calling path; BATCHED
// and DELAYED ones return with status PENDING. Only configuration errors and
// a total multi-channel failure are surfaced; per-channel degradation is
// absorbed into the delivery record.
func (e *Engine) Submit(ctx context.Context, req SubmitRequest) (string, error) {
	if err := validateSubmit(req); err != nil {
		return "", err
	}
	now := e.clock.Now()

	n := models.Notification{
		ID:                uuid.NewString(),
		RecipientID:       req.RecipientID,
		Category:          req.Category,
		Priority:          req.Priority,
		Title:             req.Title,
		Body:              req.Body,
		RelatedEntityType: req.RelatedEntityType,
		RelatedEntityID:   req.RelatedEntityID,
		Status:            models.StatusPending,
		CreatedAt:         now,
		StatusChangedAt:   now,
	}
	if err := e.notifications.Create(ctx, &n); err != nil {
		return "", err
	}

	pref, err := e.resolver.Resolve(ctx, req.RecipientID)
	if err != nil {
		// Fail closed: the record stays as the audit trail, nothing is sent.
		if updateErr := e.notifications.UpdateStatus(ctx, n.ID, models.StatusSkipped, nil); updateErr != nil {
			e.logger.Error("failed to mark skipped notification", map[string]interface{}{
				"notification_id": n.ID,
				"error":           updateErr.Error(),
			})
		}
		metrics.NotificationsSubmitted.WithLabelValues(string(req.Priority), "skipped").Inc()
		return n.ID, err
	}

	enriched := e.enricher.Enrich(ctx, n.Title, n.Body, n.Category)
	n.Title = enriched.Title
	n.Body = enriched.Body

	channels := e.router.Select(*pref, enriched.Insights)
	decision := classifier.Classify(*pref, n.Priority, enriched.Insights, now)
	n.Channels = channels

	metrics.NotificationsSubmitted.WithLabelValues(string(req.Priority), string(decision.Tier)).Inc()
	e.logger.Info("notification submitted", map[string]interface{}{
		"notification_id": n.ID,
		"recipient_id":    n.RecipientID,
		"priority":        n.Priority,
		"tier":            decision.Tier,
		"channels":        len(channels),
	})

	switch decision.Tier {
	case models.TierImmediate:
		return n.ID, e.dispatchNow(ctx, n, channels)
	case models.TierDelayed:
		item := scheduler.Item{NotificationID: n.ID, Channels: channels}
		if err := e.queue.ScheduleDelayed(ctx, item, decision.ReleaseAt); err != nil {
			return n.ID, err
		}
		return n.ID, nil
	default:
		item := scheduler.Item{NotificationID: n.ID, Channels: channels}
		if err := e.queue.EnqueueBatch(ctx, item); err != nil {
			return n.ID, err
		}
		return n.ID, nil
	}
}

func (e *Engine) dispatchNow(ctx context.Context, n models.Notification, channels []models.Channel) error {
	status, err := e.dispatcher.Dispatch(ctx, n, channels)
	if err != nil {
		return err
	}
	if e.auditor != nil {
		e.auditor.Record(ctx, n, status)
	}
	if status == models.StatusFailed {
		return errors.NewDispatchFailedError(n.ID)
	}
	return nil
}

// UpdatePreferences applies a partial preference update; fields the patch
// leaves unset retain their prior values. A recipient with no stored record
// starts from the opt-in defaults.
func (e *Engine) UpdatePreferences(ctx context.Context, recipientID string, patch models.PreferencePatch) (models.Preference, error) {
	current, err := e.preferences.Get(ctx, recipientID)
	if err != nil {
		if err != store.ErrNotFound {
			return models.Preference{}, err
		}
		defaults := models.DefaultPreference(recipientID)
		current = &defaults
	}

	updated := patch.Apply(*current)
	updated.UpdatedAt = e.clock.Now()
	if err := e.preferences.Save(ctx, updated); err != nil {
		return models.Preference{}, err
	}

	e.logger.Info("preferences updated", map[string]interface{}{
		"recipient_id": recipientID,
	})
	return updated, nil
}

// Recent lists a recipient's notifications from the trailing 30 days,
// newest first as returned by the store.
func (e *Engine) Recent(ctx context.Context, recipientID string) ([]models.Notification, error) {
	now := e.clock.Now()
	return e.notifications.ListCreatedBetween(ctx, recipientID, now.AddDate(0, 0, -30), now)
}

// Attempts returns the delivery attempts recorded for a notification.
func (e *Engine) Attempts(ctx context.Context, notificationID string) ([]models.DeliveryAttempt, error) {
	return e.notifications.Attempts(ctx, notificationID)
}

// Get loads one notification.
func (e *Engine) Get(ctx context.Context, notificationID string) (*models.Notification, error) {
	return e.notifications.Get(ctx, notificationID)
}

func validateSubmit(req SubmitRequest) error {
	switch {
	case req.RecipientID == "":
		return errors.NewInvalidRequestError("recipientId is required")
	case req.Title == "":
		return errors.NewInvalidRequestError("title is required")
	case !req.Priority.Valid():
		return errors.NewInvalidRequestError("priority must be one of LOW, MEDIUM, HIGH, CRITICAL")
	default:
		return nil
	}
}

var _ Dispatcher = (*dispatch.Dispatcher)(nil)
