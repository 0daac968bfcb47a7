// internal/transport/email.go
package transport

import (
	"context"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ses"
	"github.com/aws/aws-sdk-go-v2/service/ses/types"

	"notification-engine/internal/common/errors"
	"notification-engine/internal/common/logger"
	"notification-engine/internal/models"
)

// EmailSender delivers notifications over SES.
type EmailSender struct {
	ses       SESService
	fromEmail string
	logger    logger.Logger
}

func NewEmailSender(sesClient SESService, fromEmail string, log logger.Logger) *EmailSender {
	return &EmailSender{
		ses:       sesClient,
		fromEmail: fromEmail,
		logger:    log,
	}
}

func (s *EmailSender) Channel() models.Channel {
	return models.ChannelEmail
}

func (s *EmailSender) Send(ctx context.Context, n models.Notification, contact models.Contact) error {
	if contact.Email == "" {
		return errors.NewTransportFailedError(string(models.ChannelEmail), errNoEmailAddress)
	}

	_, err := s.ses.SendEmail(ctx, &ses.SendEmailInput{
		Destination: &types.Destination{
			ToAddresses: []string{contact.Email},
		},
		Message: &types.Message{
			Subject: &types.Content{Data: aws.String(n.Title)},
			Body: &types.Body{
				Text: &types.Content{Data: aws.String(n.Body)},
				Html: &types.Content{Data: aws.String(n.Body)},
			},
		},
		Source: aws.String(s.fromEmail),
	})
	if err != nil {
		s.logger.Warn("email send failed", map[string]interface{}{
			"notification_id": n.ID,
			"error":           err.Error(),
		})
		return errors.NewTransportFailedError(string(models.ChannelEmail), err)
	}
	return nil
}
