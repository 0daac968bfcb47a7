// internal/models/preference.go
package models

import "time"

// Preference holds a recipient's channel toggles, quiet hours, digest
// cadences and consent flag. If ConsentGiven is false no channel may ever
// be used for the recipient.
type Preference struct {
	RecipientID     string    `json:"recipientId"`
	InAppEnabled    bool      `json:"inAppEnabled"`
	EmailEnabled    bool      `json:"emailEnabled"`
	SMSEnabled      bool      `json:"smsEnabled"`
	PushEnabled     bool      `json:"pushEnabled"`
	QuietHoursStart *string   `json:"quietHoursStart,omitempty"` // "HH:MM", engine-local wall clock
	QuietHoursEnd   *string   `json:"quietHoursEnd,omitempty"`
	DigestDaily     bool      `json:"digestDaily"`
	DigestWeekly    bool      `json:"digestWeekly"`
	ConsentGiven    bool      `json:"consentGiven"`
	UpdatedAt       time.Time `json:"updatedAt"`
}

// ChannelEnabled reports whether the given channel toggle is on.
// Consent is not checked here; the resolver fails closed before routing.
func (p Preference) ChannelEnabled(c Channel) bool {
	switch c {
	case ChannelInApp:
		return p.InAppEnabled
	case ChannelEmail:
		return p.EmailEnabled
	case ChannelSMS:
		return p.SMSEnabled
	case ChannelPush:
		return p.PushEnabled
	}
	return false
}

// EnabledChannels returns the enabled channels in routing priority order.
func (p Preference) EnabledChannels() []Channel {
	out := make([]Channel, 0, len(ChannelPriorityOrder))
	for _, c := range ChannelPriorityOrder {
		if p.ChannelEnabled(c) {
			out = append(out, c)
		}
	}
	return out
}

// DefaultPreference returns the record created on recipient self-service
// signup: channels are opt-in except IN_APP.
func DefaultPreference(recipientID string) Preference {
	return Preference{
		RecipientID:  recipientID,
		InAppEnabled: true,
		ConsentGiven: true,
		UpdatedAt:    time.Now().UTC(),
	}
}

// PreferencePatch is a partial preference update. Nil fields retain their
// prior values.
type PreferencePatch struct {
	InAppEnabled    *bool   `json:"inAppEnabled,omitempty"`
	EmailEnabled    *bool   `json:"emailEnabled,omitempty"`
	SMSEnabled      *bool   `json:"smsEnabled,omitempty"`
	PushEnabled     *bool   `json:"pushEnabled,omitempty"`
	QuietHoursStart *string `json:"quietHoursStart,omitempty"`
	QuietHoursEnd   *string `json:"quietHoursEnd,omitempty"`
	ClearQuietHours bool    `json:"clearQuietHours,omitempty"`
	DigestDaily     *bool   `json:"digestDaily,omitempty"`
	DigestWeekly    *bool   `json:"digestWeekly,omitempty"`
	ConsentGiven    *bool   `json:"consentGiven,omitempty"`
}

// Apply returns a copy of p with the non-nil patch fields applied.
func (patch PreferencePatch) Apply(p Preference) Preference {
	if patch.InAppEnabled != nil {
		p.InAppEnabled = *patch.InAppEnabled
	}
	if patch.EmailEnabled != nil {
		p.EmailEnabled = *patch.EmailEnabled
	}
	if patch.SMSEnabled != nil {
		p.SMSEnabled = *patch.SMSEnabled
	}
	if patch.PushEnabled != nil {
		p.PushEnabled = *patch.PushEnabled
	}
	if patch.ClearQuietHours {
		p.QuietHoursStart = nil
		p.QuietHoursEnd = nil
	} else {
		if patch.QuietHoursStart != nil {
			p.QuietHoursStart = patch.QuietHoursStart
		}
		if patch.QuietHoursEnd != nil {
			p.QuietHoursEnd = patch.QuietHoursEnd
		}
	}
	if patch.DigestDaily != nil {
		p.DigestDaily = *patch.DigestDaily
	}
	if patch.DigestWeekly != nil {
		p.DigestWeekly = *patch.DigestWeekly
	}
	if patch.ConsentGiven != nil {
		p.ConsentGiven = *patch.ConsentGiven
	}
	p.UpdatedAt = time.Now().UTC()
	return p
}
