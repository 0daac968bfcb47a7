// internal/transport/sms.go
package transport

import (
	"context"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sns"

	commonerrors "notification-engine/internal/common/errors"
	"notification-engine/internal/common/logger"
	"notification-engine/internal/models"
)

var (
	errNoEmailAddress = errors.New("recipient has no email address")
	errNoPhoneNumber  = errors.New("recipient has no phone number")
	errNoDeviceToken  = errors.New("recipient has no registered device")
)

// SMSSender delivers notifications over SNS direct-to-phone publish.
type SMSSender struct {
	sns      SNSService
	senderID string
	logger   logger.Logger
}

func NewSMSSender(snsClient SNSService, senderID string, log logger.Logger) *SMSSender {
	return &SMSSender{
		sns:      snsClient,
		senderID: senderID,
		logger:   log,
	}
}

func (s *SMSSender) Channel() models.Channel {
	return models.ChannelSMS
}

func (s *SMSSender) Send(ctx context.Context, n models.Notification, contact models.Contact) error {
	if contact.Phone == "" {
		return commonerrors.NewTransportFailedError(string(models.ChannelSMS), errNoPhoneNumber)
	}

	input := &sns.PublishInput{
		PhoneNumber: aws.String(contact.Phone),
		Message:     aws.String(fmt.Sprintf("%s: %s", n.Title, n.Body)),
	}

	_, err := s.sns.Publish(ctx, input)
	if err != nil {
		s.logger.Warn("sms send failed", map[string]interface{}{
			"notification_id": n.ID,
			"error":           err.Error(),
		})
		return commonerrors.NewTransportFailedError(string(models.ChannelSMS), err)
	}
	return nil
}
