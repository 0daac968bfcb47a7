// internal/transport/transport_test.go
package transport

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/aws/aws-sdk-go-v2/service/ses"
	"github.com/aws/aws-sdk-go-v2/service/sns"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	commonerrors "notification-engine/internal/common/errors"
	"notification-engine/internal/common/logger"
	"notification-engine/internal/models"
	"notification-engine/internal/realtime"
)

// MockSESService implements SESService for testing
type MockSESService struct {
	SendEmailFunc func(ctx context.Context, params *ses.SendEmailInput, optFns ...func(*ses.Options)) (*ses.SendEmailOutput, error)
}

func (m *MockSESService) SendEmail(ctx context.Context, params *ses.SendEmailInput, optFns ...func(*ses.Options)) (*ses.SendEmailOutput, error) {
	if m.SendEmailFunc != nil {
		return m.SendEmailFunc(ctx, params, optFns...)
	}
	return &ses.SendEmailOutput{}, nil
}

// MockSNSService implements SNSService for testing
type MockSNSService struct {
	PublishFunc func(ctx context.Context, params *sns.PublishInput, optFns ...func(*sns.Options)) (*sns.PublishOutput, error)
}

func (m *MockSNSService) Publish(ctx context.Context, params *sns.PublishInput, optFns ...func(*sns.Options)) (*sns.PublishOutput, error) {
	if m.PublishFunc != nil {
		return m.PublishFunc(ctx, params, optFns...)
	}
	return &sns.PublishOutput{}, nil
}

func testNotification() models.Notification {
	return models.Notification{
		ID:          "notif-1",
		RecipientID: "user-1",
		Category:    "billing",
		Priority:    models.PriorityHigh,
		Title:       "Invoice ready",
		Body:        "Your invoice is ready to view.",
	}
}

func fullContact() models.Contact {
	return models.Contact{
		RecipientID: "user-1",
		Email:       "user@example.com",
		Phone:       "+15550001111",
		DeviceToken: "arn:aws:sns:us-east-1:123456789012:endpoint/GCM/app/abc",
	}
}

func TestEmailSender_Send(t *testing.T) {
	var captured *ses.SendEmailInput
	mock := &MockSESService{
		SendEmailFunc: func(_ context.Context, params *ses.SendEmailInput, _ ...func(*ses.Options)) (*ses.SendEmailOutput, error) {
			captured = params
			return &ses.SendEmailOutput{}, nil
		},
	}
	sender := NewEmailSender(mock, "noreply@example.com", logger.NewNoOpLogger())

	err := sender.Send(context.Background(), testNotification(), fullContact())

	require.NoError(t, err)
	require.NotNil(t, captured)
	assert.Equal(t, []string{"user@example.com"}, captured.Destination.ToAddresses)
	assert.Equal(t, "Invoice ready", *captured.Message.Subject.Data)
	assert.Equal(t, "noreply@example.com", *captured.Source)
}

func TestEmailSender_Send_ProviderError(t *testing.T) {
	mock := &MockSESService{
		SendEmailFunc: func(context.Context, *ses.SendEmailInput, ...func(*ses.Options)) (*ses.SendEmailOutput, error) {
			return nil, errors.New("ses unavailable")
		},
	}
	sender := NewEmailSender(mock, "noreply@example.com", logger.NewNoOpLogger())

	err := sender.Send(context.Background(), testNotification(), fullContact())

	require.Error(t, err)
	code, ok := commonerrors.CodeOf(err)
	require.True(t, ok)
	assert.Equal(t, commonerrors.ErrCodeTransportFailed, code)
}

func TestEmailSender_Send_MissingAddress(t *testing.T) {
	sender := NewEmailSender(&MockSESService{}, "noreply@example.com", logger.NewNoOpLogger())
	contact := fullContact()
	contact.Email = ""

	err := sender.Send(context.Background(), testNotification(), contact)
	assert.Error(t, err)
}

func TestSMSSender_Send(t *testing.T) {
	var captured *sns.PublishInput
	mock := &MockSNSService{
		PublishFunc: func(_ context.Context, params *sns.PublishInput, _ ...func(*sns.Options)) (*sns.PublishOutput, error) {
			captured = params
			return &sns.PublishOutput{}, nil
		},
	}
	sender := NewSMSSender(mock, "NOTIFY", logger.NewNoOpLogger())

	err := sender.Send(context.Background(), testNotification(), fullContact())

	require.NoError(t, err)
	require.NotNil(t, captured)
	assert.Equal(t, "+15550001111", *captured.PhoneNumber)
	assert.Contains(t, *captured.Message, "Invoice ready")
}

func TestSMSSender_Send_MissingPhone(t *testing.T) {
	sender := NewSMSSender(&MockSNSService{}, "NOTIFY", logger.NewNoOpLogger())
	contact := fullContact()
	contact.Phone = ""

	err := sender.Send(context.Background(), testNotification(), contact)
	assert.Error(t, err)
}

func TestPushSender_Send(t *testing.T) {
	var captured *sns.PublishInput
	mock := &MockSNSService{
		PublishFunc: func(_ context.Context, params *sns.PublishInput, _ ...func(*sns.Options)) (*sns.PublishOutput, error) {
			captured = params
			return &sns.PublishOutput{}, nil
		},
	}
	sender := NewPushSender(mock, logger.NewNoOpLogger())

	err := sender.Send(context.Background(), testNotification(), fullContact())

	require.NoError(t, err)
	require.NotNil(t, captured)
	assert.Equal(t, fullContact().DeviceToken, *captured.TargetArn)

	var payload map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(*captured.Message), &payload))
	assert.Equal(t, "notif-1", payload["notificationId"])
	assert.Equal(t, "Invoice ready", payload["title"])
}

func TestPushSender_Send_MissingDeviceToken(t *testing.T) {
	sender := NewPushSender(&MockSNSService{}, logger.NewNoOpLogger())
	contact := fullContact()
	contact.DeviceToken = ""

	err := sender.Send(context.Background(), testNotification(), contact)
	assert.Error(t, err)
}

type recordingSession struct {
	payloads [][]byte
}

func (r *recordingSession) Deliver(payload []byte) bool {
	r.payloads = append(r.payloads, payload)
	return true
}

func TestInAppSender_Send_DeliversToLiveSessions(t *testing.T) {
	registry := realtime.NewRegistry(logger.NewNoOpLogger())
	session := &recordingSession{}
	registry.Register("user-1", session)

	sender := NewInAppSender(registry, logger.NewNoOpLogger())
	err := sender.Send(context.Background(), testNotification(), models.Contact{})

	require.NoError(t, err)
	require.Len(t, session.payloads, 1)

	var envelope map[string]interface{}
	require.NoError(t, json.Unmarshal(session.payloads[0], &envelope))
	assert.Equal(t, "notification", envelope["type"])
}

func TestInAppSender_Send_NoSessionsStillSucceeds(t *testing.T) {
	registry := realtime.NewRegistry(logger.NewNoOpLogger())
	sender := NewInAppSender(registry, logger.NewNoOpLogger())

	err := sender.Send(context.Background(), testNotification(), models.Contact{})
	assert.NoError(t, err)
}
