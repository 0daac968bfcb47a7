// internal/transport/inapp.go
package transport

import (
	"context"

	commonerrors "notification-engine/internal/common/errors"
	"notification-engine/internal/common/logger"
	"notification-engine/internal/models"
	"notification-engine/internal/realtime"
)

// InAppSender fans a notification out to the recipient's live sessions. A
// recipient with no live session is still a successful delivery: the record
// persists in the store and is retrieved on the next connect.
type InAppSender struct {
	registry *realtime.Registry
	logger   logger.Logger
}

func NewInAppSender(registry *realtime.Registry, log logger.Logger) *InAppSender {
	return &InAppSender{
		registry: registry,
		logger:   log,
	}
}

func (s *InAppSender) Channel() models.Channel {
	return models.ChannelInApp
}

func (s *InAppSender) Send(_ context.Context, n models.Notification, _ models.Contact) error {
	payload, err := realtime.EncodeNotification(n)
	if err != nil {
		return commonerrors.NewTransportFailedError(string(models.ChannelInApp), err)
	}

	delivered := s.registry.FanOut(n.RecipientID, payload)
	s.logger.Debug("in-app fan-out complete", map[string]interface{}{
		"notification_id": n.ID,
		"recipient_id":    n.RecipientID,
		"delivered":       delivered,
	})
	return nil
}
