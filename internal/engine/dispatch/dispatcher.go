// internal/engine/dispatch/dispatcher.go
package dispatch

import (
	"context"
	"sync"
	"time"

	"notification-engine/internal/common/errors"
	"notification-engine/internal/common/logger"
	"notification-engine/internal/common/metrics"
	"notification-engine/internal/models"
)

// NotificationStore persists attempt records and the aggregate status.
type NotificationStore interface {
	AppendAttempt(ctx context.Context, a models.DeliveryAttempt) error
	UpdateStatus(ctx context.Context, id string, status models.Status, channels []models.Channel) error
}

// ContactStore resolves a recipient's delivery addresses.
type ContactStore interface {
	GetContact(ctx context.Context, recipientID string) (*models.Contact, error)
}

// Sender delivers one notification over one channel.
type Sender interface {
	Channel() models.Channel
	Send(ctx context.Context, n models.Notification, contact models.Contact) error
}

// Dispatcher fans a notification out across its selected channels. Channels
// run concurrently, each bounded by the configured per-channel timeout, and
// one failing channel never aborts its siblings.
type Dispatcher struct {
	store          NotificationStore
	contacts       ContactStore
	senders        map[models.Channel]Sender
	channelTimeout time.Duration
	clock          func() time.Time
	logger         logger.Logger
}

func New(store NotificationStore, contacts ContactStore, senders []Sender, channelTimeout time.Duration, log logger.Logger) *Dispatcher {
	byChannel := make(map[models.Channel]Sender, len(senders))
	for _, s := range senders {
		byChannel[s.Channel()] = s
	}
	return &Dispatcher{
		store:          store,
		contacts:       contacts,
		senders:        byChannel,
		channelTimeout: channelTimeout,
		clock:          time.Now,
		logger:         log,
	}
}

// WithClock overrides the attempt timestamp source. Used by tests.
func (d *Dispatcher) WithClock(now func() time.Time) *Dispatcher {
	d.clock = now
	return d
}

// Dispatch delivers n on the given channels and finalizes its status. The
// returned status is SENT when every channel succeeded, PARTIALLY_SENT when
// some did, FAILED when none did. An empty channel list is trivially SENT
// with no attempts recorded.
func (d *Dispatcher) Dispatch(ctx context.Context, n models.Notification, channels []models.Channel) (models.Status, error) {
	started := d.clock()

	if len(channels) == 0 {
		if err := d.store.UpdateStatus(ctx, n.ID, models.StatusSent, nil); err != nil {
			return "", err
		}
		return models.StatusSent, nil
	}

	contact := models.Contact{RecipientID: n.RecipientID}
	if c, err := d.contacts.GetContact(ctx, n.RecipientID); err == nil {
		contact = *c
	} else {
		d.logger.Warn("contact lookup failed, channels needing an address will fail", map[string]interface{}{
			"notification_id": n.ID,
			"recipient_id":    n.RecipientID,
			"error":           err.Error(),
		})
	}

	outcomes := make([]models.Outcome, len(channels))
	attempts := make([]models.DeliveryAttempt, len(channels))

	var wg sync.WaitGroup
	for i, ch := range channels {
		wg.Add(1)
		go func(i int, ch models.Channel) {
			defer wg.Done()
			outcome, detail := d.sendOne(ctx, n, ch, contact)
			outcomes[i] = outcome
			attempts[i] = models.DeliveryAttempt{
				NotificationID: n.ID,
				Channel:        ch,
				Outcome:        outcome,
				AttemptedAt:    d.clock(),
				ErrorDetail:    detail,
			}
		}(i, ch)
	}
	wg.Wait()

	for _, a := range attempts {
		if err := d.store.AppendAttempt(ctx, a); err != nil {
			d.logger.Error("failed to persist delivery attempt", map[string]interface{}{
				"notification_id": n.ID,
				"channel":         a.Channel,
				"error":           err.Error(),
			})
		}
		metrics.DeliveryAttempts.WithLabelValues(string(a.Channel), string(a.Outcome)).Inc()
	}

	status := Aggregate(outcomes)
	if err := d.store.UpdateStatus(ctx, n.ID, status, channels); err != nil {
		return "", err
	}

	metrics.DispatchDuration.WithLabelValues(string(status)).Observe(d.clock().Sub(started).Seconds())
	d.logger.Info("dispatch complete", map[string]interface{}{
		"notification_id": n.ID,
		"status":          status,
		"channels":        len(channels),
	})
	return status, nil
}

// sendOne runs a single channel attempt under the per-channel timeout.
func (d *Dispatcher) sendOne(ctx context.Context, n models.Notification, ch models.Channel, contact models.Contact) (models.Outcome, string) {
	sender, ok := d.senders[ch]
	if !ok {
		return models.OutcomeFailure, "no transport configured for channel"
	}

	sendCtx := ctx
	if d.channelTimeout > 0 {
		var cancel context.CancelFunc
		sendCtx, cancel = context.WithTimeout(ctx, d.channelTimeout)
		defer cancel()
	}

	done := make(chan error, 1)
	go func() {
		done <- sender.Send(sendCtx, n, contact)
	}()

	select {
	case err := <-done:
		if err != nil {
			return models.OutcomeFailure, err.Error()
		}
		return models.OutcomeSuccess, ""
	case <-sendCtx.Done():
		err := errors.NewTransportTimeoutError(string(ch))
		return models.OutcomeFailure, err.Error()
	}
}

// Aggregate folds per-channel outcomes into a notification status. Skipped
// outcomes are treated as non-deliveries when computing the aggregate.
func Aggregate(outcomes []models.Outcome) models.Status {
	if len(outcomes) == 0 {
		return models.StatusSent
	}
	succeeded := 0
	for _, o := range outcomes {
		if o == models.OutcomeSuccess {
			succeeded++
		}
	}
	switch {
	case succeeded == len(outcomes):
		return models.StatusSent
	case succeeded > 0:
		return models.StatusPartiallySent
	default:
		return models.StatusFailed
	}
}
