// internal/engine/scheduler/scheduler.go
package scheduler

import (
	"context"
	"time"

	"notification-engine/internal/common/config"
	"notification-engine/internal/common/logger"
	"notification-engine/internal/engine/preference"
	"notification-engine/internal/models"
	"notification-engine/internal/store"
)

// Dispatcher executes an immediate delivery.
type Dispatcher interface {
	Dispatch(ctx context.Context, n models.Notification, channels []models.Channel) (models.Status, error)
}

// NotificationStore is the persistence surface the scheduler needs.
type NotificationStore interface {
	Get(ctx context.Context, id string) (*models.Notification, error)
	Create(ctx context.Context, n *models.Notification) error
	UpdateStatus(ctx context.Context, id string, status models.Status, channels []models.Channel) error
	AppendAttempt(ctx context.Context, a models.DeliveryAttempt) error
	ListCreatedBetween(ctx context.Context, recipientID string, from, to time.Time) ([]models.Notification, error)
}

// PreferenceStore lists digest subscribers; individual resolution goes
// through the preference resolver.
type PreferenceStore interface {
	ListDigestRecipients(ctx context.Context, cadence store.DigestCadence) ([]string, error)
}

// Scheduler owns the BATCHED flush, the DELAYED release loop, and the digest
// cadences. All tick handlers are also callable directly so behavior can be
// driven by tests without wall-clock waits.
type Scheduler struct {
	queue         *Queue
	notifications NotificationStore
	preferences   PreferenceStore
	resolver      *preference.Resolver
	dispatcher    Dispatcher
	clock         Clock
	cfg           config.SchedulerConfig
	logger        logger.Logger
}

func New(
	queue *Queue,
	notifications NotificationStore,
	preferences PreferenceStore,
	resolver *preference.Resolver,
	dispatcher Dispatcher,
	clock Clock,
	cfg config.SchedulerConfig,
	log logger.Logger,
) *Scheduler {
	return &Scheduler{
		queue:         queue,
		notifications: notifications,
		preferences:   preferences,
		resolver:      resolver,
		dispatcher:    dispatcher,
		clock:         clock,
		cfg:           cfg,
		logger:        log,
	}
}

// Run drives the scheduler loops until ctx is canceled.
func (s *Scheduler) Run(ctx context.Context) {
	batchTicker := time.NewTicker(s.cfg.BatchFlushIntervalDuration())
	delayedTicker := time.NewTicker(s.cfg.DelayedPollIntervalDuration())
	digestTicker := time.NewTicker(time.Minute)
	defer batchTicker.Stop()
	defer delayedTicker.Stop()
	defer digestTicker.Stop()

	s.logger.Info("scheduler started", map[string]interface{}{
		"batch_flush_interval":  s.cfg.BatchFlushInterval,
		"delayed_poll_interval": s.cfg.DelayedPollInterval,
	})

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("scheduler stopped", nil)
			return
		case <-batchTicker.C:
			if err := s.FlushBatch(ctx); err != nil {
				s.logger.Error("batch flush failed", map[string]interface{}{
					"error": err.Error(),
				})
			}
		case <-delayedTicker.C:
			if err := s.ReleaseDue(ctx); err != nil {
				s.logger.Error("delayed release failed", map[string]interface{}{
					"error": err.Error(),
				})
			}
			s.queue.ReportDepths(ctx)
		case <-digestTicker.C:
			s.runDueDigests(ctx)
		}
	}
}

// FlushBatch drains the batch queue and dispatches every item immediately.
func (s *Scheduler) FlushBatch(ctx context.Context) error {
	items, err := s.queue.DrainBatch(ctx)
	if err != nil {
		return err
	}
	for _, item := range items {
		s.release(ctx, item)
	}
	if len(items) > 0 {
		s.logger.Info("batch queue flushed", map[string]interface{}{
			"items": len(items),
		})
	}
	return nil
}

// ReleaseDue dispatches every delayed item whose release instant has passed.
func (s *Scheduler) ReleaseDue(ctx context.Context) error {
	items, err := s.queue.DueDelayed(ctx, s.clock.Now())
	if err != nil {
		return err
	}
	for _, item := range items {
		s.release(ctx, item)
	}
	return nil
}

// release re-validates a queued item against current preferences and hands
// it to the dispatcher. Preferences may have changed since the item was
// queued, so consent, channel toggles, and quiet hours are all re-checked.
func (s *Scheduler) release(ctx context.Context, item Item) {
	now := s.clock.Now()

	n, err := s.notifications.Get(ctx, item.NotificationID)
	if err != nil {
		s.logger.Warn("queued notification no longer loadable", map[string]interface{}{
			"notification_id": item.NotificationID,
			"error":           err.Error(),
		})
		return
	}
	if n.Status.Terminal() {
		return
	}

	pref, err := s.resolver.Resolve(ctx, n.RecipientID)
	if err != nil {
		// Consent was withdrawn after scheduling. Nothing is delivered.
		if updateErr := s.notifications.UpdateStatus(ctx, n.ID, models.StatusSkipped, nil); updateErr != nil {
			s.logger.Error("failed to mark skipped notification", map[string]interface{}{
				"notification_id": n.ID,
				"error":           updateErr.Error(),
			})
		}
		return
	}

	channels := make([]models.Channel, 0, len(item.Channels))
	for _, ch := range item.Channels {
		if pref.ChannelEnabled(ch) {
			channels = append(channels, ch)
			continue
		}
		// Channel disabled between scheduling and release.
		attempt := models.DeliveryAttempt{
			NotificationID: n.ID,
			Channel:        ch,
			Outcome:        models.OutcomeSkippedNoConsent,
			AttemptedAt:    now,
		}
		if err := s.notifications.AppendAttempt(ctx, attempt); err != nil {
			s.logger.Error("failed to record skipped attempt", map[string]interface{}{
				"notification_id": n.ID,
				"channel":         ch,
				"error":           err.Error(),
			})
		}
	}

	if len(channels) == 0 {
		if err := s.notifications.UpdateStatus(ctx, n.ID, models.StatusSkipped, nil); err != nil {
			s.logger.Error("failed to mark skipped notification", map[string]interface{}{
				"notification_id": n.ID,
				"error":           err.Error(),
			})
		}
		return
	}

	if n.Priority != models.PriorityCritical && preference.InQuietHours(*pref, now) {
		s.deferToQuietWindowEnd(ctx, n, channels, *pref, now)
		return
	}

	if _, err := s.dispatcher.Dispatch(ctx, *n, channels); err != nil {
		s.logger.Error("release dispatch failed", map[string]interface{}{
			"notification_id": n.ID,
			"error":           err.Error(),
		})
	}
}

// deferToQuietWindowEnd pushes an item back to the delayed queue when the
// recipient entered a quiet window after scheduling.
func (s *Scheduler) deferToQuietWindowEnd(ctx context.Context, n *models.Notification, channels []models.Channel, pref models.Preference, now time.Time) {
	end, ok := preference.QuietWindowEnd(pref, now)
	if !ok {
		end = now.Add(time.Hour)
	}
	for _, ch := range channels {
		attempt := models.DeliveryAttempt{
			NotificationID: n.ID,
			Channel:        ch,
			Outcome:        models.OutcomeSkippedQuietHours,
			AttemptedAt:    now,
		}
		if err := s.notifications.AppendAttempt(ctx, attempt); err != nil {
			s.logger.Error("failed to record quiet-hours skip", map[string]interface{}{
				"notification_id": n.ID,
				"channel":         ch,
				"error":           err.Error(),
			})
		}
	}
	item := Item{NotificationID: n.ID, Channels: channels}
	if err := s.queue.ScheduleDelayed(ctx, item, end); err != nil {
		s.logger.Error("failed to re-schedule quiet-hours deferral", map[string]interface{}{
			"notification_id": n.ID,
			"error":           err.Error(),
		})
		return
	}
	s.logger.Info("delivery deferred to quiet window end", map[string]interface{}{
		"notification_id": n.ID,
		"release_at":      end.Format(time.RFC3339),
	})
}
