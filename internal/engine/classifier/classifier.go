// internal/engine/classifier/classifier.go
package classifier

import (
	"time"

	"notification-engine/internal/engine/personalize"
	"notification-engine/internal/engine/preference"
	"notification-engine/internal/models"
)

// Decision is the dispatch plan for a single notification.
type Decision struct {
	Tier models.Tier
	// ReleaseAt is set only for TierDelayed and names the instant the
	// notification becomes eligible for delivery again.
	ReleaseAt time.Time
}

// Classify maps priority, personalization suggestions, and quiet hours onto a
// dispatch tier. CRITICAL priority always yields IMMEDIATE, quiet hours and
// suggestions notwithstanding. An otherwise-immediate notification submitted
// inside the recipient's quiet window is deferred to the window's end instead
// of being dropped.
func Classify(pref models.Preference, priority models.Priority, insights *personalize.Insights, now time.Time) Decision {
	if priority == models.PriorityCritical {
		return Decision{Tier: models.TierImmediate}
	}

	tier := defaultTier(priority)
	if insights != nil && insights.SuggestedTier != "" {
		tier = insights.SuggestedTier
	}

	if tier == models.TierImmediate && preference.InQuietHours(pref, now) {
		if end, ok := preference.QuietWindowEnd(pref, now); ok {
			return Decision{Tier: models.TierDelayed, ReleaseAt: end}
		}
	}

	return Decision{Tier: tier}
}

func defaultTier(priority models.Priority) models.Tier {
	switch priority {
	case models.PriorityHigh, models.PriorityCritical:
		return models.TierImmediate
	default:
		return models.TierBatched
	}
}
