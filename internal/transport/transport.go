// internal/transport/transport.go
package transport

import (
	"context"

	"github.com/aws/aws-sdk-go-v2/service/ses"
	"github.com/aws/aws-sdk-go-v2/service/sns"

	"notification-engine/internal/models"
)

// Sender delivers one notification over one channel. Implementations must
// honor ctx cancellation; the dispatcher bounds every Send with a timeout.
type Sender interface {
	Channel() models.Channel
	Send(ctx context.Context, n models.Notification, contact models.Contact) error
}

// SESService defines the SES operations used for email delivery.
type SESService interface {
	SendEmail(ctx context.Context, params *ses.SendEmailInput, optFns ...func(*ses.Options)) (*ses.SendEmailOutput, error)
}

// SNSService defines the SNS operations used for SMS and mobile push delivery.
type SNSService interface {
	Publish(ctx context.Context, params *sns.PublishInput, optFns ...func(*sns.Options)) (*sns.PublishOutput, error)
}
