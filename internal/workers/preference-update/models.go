// internal/workers/preference-update/models.go
package preferenceupdate

import "notification-engine/internal/models"

type Input struct {
	RecipientID string                 `json:"recipientId"`
	Patch       models.PreferencePatch `json:"patch"`
}

type Output struct {
	RecipientID     string   `json:"recipientId"`
	EnabledChannels []string `json:"enabledChannels"`
	ConsentGiven    bool     `json:"consentGiven"`
	UpdatedAt       string   `json:"updatedAt"` // ISO 8601
}
