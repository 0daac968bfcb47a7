// internal/models/notification.go
package models

import "time"

// Channel is a delivery medium. The order of channelPriority reflects
// cost and intrusiveness, cheapest first.
type Channel string

const (
	ChannelInApp Channel = "IN_APP"
	ChannelEmail Channel = "EMAIL"
	ChannelPush  Channel = "PUSH"
	ChannelSMS   Channel = "SMS"
)

// ChannelPriorityOrder is the fixed routing order used by the channel router.
var ChannelPriorityOrder = []Channel{ChannelInApp, ChannelEmail, ChannelPush, ChannelSMS}

// Priority is the caller-declared urgency of a notification.
type Priority string

const (
	PriorityLow      Priority = "LOW"
	PriorityMedium   Priority = "MEDIUM"
	PriorityHigh     Priority = "HIGH"
	PriorityCritical Priority = "CRITICAL"
)

// Valid reports whether p is a known priority.
func (p Priority) Valid() bool {
	switch p {
	case PriorityLow, PriorityMedium, PriorityHigh, PriorityCritical:
		return true
	}
	return false
}

// Tier decides when a notification is actually sent.
type Tier string

const (
	TierImmediate Tier = "IMMEDIATE"
	TierBatched   Tier = "BATCHED"
	TierDelayed   Tier = "DELAYED"
)

// Status is the aggregate delivery status of a notification.
// Terminal states are final; a notification never transitions out of
// SENT, PARTIALLY_SENT, FAILED or SKIPPED.
type Status string

const (
	StatusPending       Status = "PENDING"
	StatusSent          Status = "SENT"
	StatusPartiallySent Status = "PARTIALLY_SENT"
	StatusFailed        Status = "FAILED"
	StatusSkipped       Status = "SKIPPED"
)

// Terminal reports whether s is a final status.
func (s Status) Terminal() bool {
	switch s {
	case StatusSent, StatusPartiallySent, StatusFailed, StatusSkipped:
		return true
	}
	return false
}

// Notification is an immutable-after-creation delivery record. Only the
// status, attempted channel set and status timestamp change after creation.
type Notification struct {
	ID                string    `json:"id"`
	RecipientID       string    `json:"recipientId"`
	Category          string    `json:"category"`
	Priority          Priority  `json:"priority"`
	Title             string    `json:"title"`
	Body              string    `json:"body"`
	RelatedEntityType string    `json:"relatedEntityType,omitempty"`
	RelatedEntityID   string    `json:"relatedEntityId,omitempty"`
	Status            Status    `json:"status"`
	Channels          []Channel `json:"channels,omitempty"`
	CreatedAt         time.Time `json:"createdAt"`
	StatusChangedAt   time.Time `json:"statusChangedAt"`
}

// Outcome is the result of one channel's send for one notification.
type Outcome string

const (
	OutcomeSuccess           Outcome = "SUCCESS"
	OutcomeFailure           Outcome = "FAILURE"
	OutcomeSkippedQuietHours Outcome = "SKIPPED_QUIET_HOURS"
	OutcomeSkippedNoConsent  Outcome = "SKIPPED_NO_CONSENT"
)

// DeliveryAttempt records one channel's send outcome. Append-only.
type DeliveryAttempt struct {
	NotificationID string    `json:"notificationId"`
	Channel        Channel   `json:"channel"`
	Outcome        Outcome   `json:"outcome"`
	AttemptedAt    time.Time `json:"attemptedAt"`
	ErrorDetail    string    `json:"errorDetail,omitempty"`
}

// Contact holds the provider addresses for a recipient, looked up at
// dispatch time.
type Contact struct {
	RecipientID string `json:"recipientId"`
	Email       string `json:"email,omitempty"`
	Phone       string `json:"phone,omitempty"`
	DeviceToken string `json:"deviceToken,omitempty"`
}
