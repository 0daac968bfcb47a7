// internal/workers/notification-dispatch/models.go
package notificationdispatch

type Input struct {
	RecipientID       string `json:"recipientId"`
	Category          string `json:"category"`
	Priority          string `json:"priority"`
	Title             string `json:"title"`
	Body              string `json:"body"`
	RelatedEntityType string `json:"relatedEntityType,omitempty"`
	RelatedEntityID   string `json:"relatedEntityId,omitempty"`
}

type Output struct {
	NotificationID string `json:"notificationId"`
	Status         string `json:"status"`
	SubmittedAt    string `json:"submittedAt"` // ISO 8601
}
