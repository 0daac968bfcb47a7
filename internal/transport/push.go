// internal/transport/push.go
package transport

import (
	"context"
	"encoding/json"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sns"

	commonerrors "notification-engine/internal/common/errors"
	"notification-engine/internal/common/logger"
	"notification-engine/internal/models"
)

// PushSender delivers notifications to mobile devices through SNS platform
// endpoints. The recipient's device token is the platform endpoint ARN.
type PushSender struct {
	sns    SNSService
	logger logger.Logger
}

func NewPushSender(snsClient SNSService, log logger.Logger) *PushSender {
	return &PushSender{
		sns:    snsClient,
		logger: log,
	}
}

func (s *PushSender) Channel() models.Channel {
	return models.ChannelPush
}

type pushPayload struct {
	NotificationID    string `json:"notificationId"`
	Title             string `json:"title"`
	Body              string `json:"body"`
	Category          string `json:"category"`
	RelatedEntityType string `json:"relatedEntityType,omitempty"`
	RelatedEntityID   string `json:"relatedEntityId,omitempty"`
}

func (s *PushSender) Send(ctx context.Context, n models.Notification, contact models.Contact) error {
	if contact.DeviceToken == "" {
		return commonerrors.NewTransportFailedError(string(models.ChannelPush), errNoDeviceToken)
	}

	payload, err := json.Marshal(pushPayload{
		NotificationID:    n.ID,
		Title:             n.Title,
		Body:              n.Body,
		Category:          n.Category,
		RelatedEntityType: n.RelatedEntityType,
		RelatedEntityID:   n.RelatedEntityID,
	})
	if err != nil {
		return commonerrors.NewTransportFailedError(string(models.ChannelPush), err)
	}

	_, err = s.sns.Publish(ctx, &sns.PublishInput{
		TargetArn: aws.String(contact.DeviceToken),
		Message:   aws.String(string(payload)),
	})
	if err != nil {
		s.logger.Warn("push send failed", map[string]interface{}{
			"notification_id": n.ID,
			"error":           err.Error(),
		})
		return commonerrors.NewTransportFailedError(string(models.ChannelPush), err)
	}
	return nil
}
