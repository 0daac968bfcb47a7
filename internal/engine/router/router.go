// internal/engine/router/router.go
package router

import (
	"notification-engine/internal/common/logger"
	"notification-engine/internal/engine/personalize"
	"notification-engine/internal/models"
)

// Router selects the delivery channels for a notification. Selection is
// deterministic for a given preference and insight input.
type Router struct {
	maxChannels int
	logger      logger.Logger
}

func New(maxChannels int, log logger.Logger) *Router {
	if maxChannels <= 0 {
		maxChannels = 2
	}
	return &Router{maxChannels: maxChannels, logger: log}
}

// Select returns at most maxChannels channels for delivery. Channels the
// recipient has disabled are never selected. When insights suggest preferred
// channels, those rank first; remaining slots fill from the fixed channel
// order IN_APP, EMAIL, PUSH, SMS.
func (r *Router) Select(pref models.Preference, insights *personalize.Insights) []models.Channel {
	enabled := pref.EnabledChannels()
	if len(enabled) == 0 {
		return nil
	}

	enabledSet := make(map[models.Channel]bool, len(enabled))
	for _, c := range enabled {
		enabledSet[c] = true
	}

	selected := make([]models.Channel, 0, r.maxChannels)
	picked := make(map[models.Channel]bool, r.maxChannels)

	if insights != nil {
		for _, c := range insights.PreferredChannels {
			if len(selected) == r.maxChannels {
				break
			}
			if enabledSet[c] && !picked[c] {
				selected = append(selected, c)
				picked[c] = true
			}
		}
	}

	for _, c := range enabled {
		if len(selected) == r.maxChannels {
			break
		}
		if !picked[c] {
			selected = append(selected, c)
			picked[c] = true
		}
	}

	return selected
}
