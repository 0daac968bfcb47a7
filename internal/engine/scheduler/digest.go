// internal/engine/scheduler/digest.go
package scheduler

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"notification-engine/internal/common/metrics"
	"notification-engine/internal/models"
	"notification-engine/internal/store"
)

const digestCategory = "digest"

var digestTemplates = map[store.DigestCadence]map[string]interface{}{
	store.DigestDaily: {
		"subject": "Your daily notification digest",
		"intro":   "Here is what happened over the last day:",
	},
	store.DigestWeekly: {
		"subject": "Your weekly notification digest",
		"intro":   "Here is what happened over the last week:",
	},
}

// digestEligible are the channels a digest may use; a summary has no place on
// SMS or mobile push.
var digestEligible = []models.Channel{models.ChannelInApp, models.ChannelEmail}

// runDueDigests fires each cadence whose scheduled instant has passed since
// its last recorded run. A missed tick is caught up on the next one.
func (s *Scheduler) runDueDigests(ctx context.Context) {
	now := s.clock.Now()

	if due, scheduledAt := s.digestDue(ctx, store.DigestDaily, now); due {
		if err := s.RunDigest(ctx, store.DigestDaily); err != nil {
			s.logger.Error("daily digest run failed", map[string]interface{}{
				"scheduled_at": scheduledAt.Format(time.RFC3339),
				"error":        err.Error(),
			})
		}
	}
	if due, scheduledAt := s.digestDue(ctx, store.DigestWeekly, now); due {
		if err := s.RunDigest(ctx, store.DigestWeekly); err != nil {
			s.logger.Error("weekly digest run failed", map[string]interface{}{
				"scheduled_at": scheduledAt.Format(time.RFC3339),
				"error":        err.Error(),
			})
		}
	}
}

// digestDue reports whether the cadence's most recent scheduled instant has
// passed without a run covering it.
func (s *Scheduler) digestDue(ctx context.Context, cadence store.DigestCadence, now time.Time) (bool, time.Time) {
	scheduledAt := s.lastScheduledInstant(cadence, now)
	if scheduledAt.IsZero() || now.Before(scheduledAt) {
		return false, scheduledAt
	}
	lastRun, err := s.queue.LastDigestRun(ctx, string(cadence))
	if err != nil {
		s.logger.Error("failed to read digest watermark", map[string]interface{}{
			"cadence": cadence,
			"error":   err.Error(),
		})
		return false, scheduledAt
	}
	return lastRun.Before(scheduledAt), scheduledAt
}

// lastScheduledInstant returns the most recent instant at or before now when
// the cadence should have fired.
func (s *Scheduler) lastScheduledInstant(cadence store.DigestCadence, now time.Time) time.Time {
	todayAtHour := time.Date(now.Year(), now.Month(), now.Day(), s.cfg.DigestHour, 0, 0, 0, now.Location())

	switch cadence {
	case store.DigestDaily:
		if now.Before(todayAtHour) {
			return todayAtHour.AddDate(0, 0, -1)
		}
		return todayAtHour
	case store.DigestWeekly:
		target := parseWeekday(s.cfg.WeeklyDigestDay)
		scheduled := todayAtHour
		for scheduled.Weekday() != target || now.Before(scheduled) {
			scheduled = scheduled.AddDate(0, 0, -1)
			scheduled = time.Date(scheduled.Year(), scheduled.Month(), scheduled.Day(), s.cfg.DigestHour, 0, 0, 0, now.Location())
		}
		return scheduled
	default:
		return time.Time{}
	}
}

func parseWeekday(name string) time.Weekday {
	for d := time.Sunday; d <= time.Saturday; d++ {
		if strings.EqualFold(d.String(), name) {
			return d
		}
	}
	return time.Monday
}

// RunDigest summarizes each subscriber's notifications since the last run
// into a single digest notification and dispatches it immediately.
func (s *Scheduler) RunDigest(ctx context.Context, cadence store.DigestCadence) error {
	now := s.clock.Now()

	from, err := s.queue.LastDigestRun(ctx, string(cadence))
	if err != nil {
		return err
	}
	if from.IsZero() {
		from = now.Add(-cadencePeriod(cadence))
	}

	recipients, err := s.preferences.ListDigestRecipients(ctx, cadence)
	if err != nil {
		return err
	}

	sent := 0
	for _, recipientID := range recipients {
		if err := s.digestForRecipient(ctx, cadence, recipientID, from, now); err != nil {
			s.logger.Error("digest delivery failed", map[string]interface{}{
				"cadence":      cadence,
				"recipient_id": recipientID,
				"error":        err.Error(),
			})
			continue
		}
		sent++
	}

	if err := s.queue.SetLastDigestRun(ctx, string(cadence), now); err != nil {
		return err
	}
	s.logger.Info("digest run complete", map[string]interface{}{
		"cadence":    cadence,
		"recipients": len(recipients),
		"sent":       sent,
	})
	return nil
}

func (s *Scheduler) digestForRecipient(ctx context.Context, cadence store.DigestCadence, recipientID string, from, to time.Time) error {
	pref, err := s.resolver.Resolve(ctx, recipientID)
	if err != nil {
		// No consent means no digest either. Not an error.
		return nil
	}

	items, err := s.notifications.ListCreatedBetween(ctx, recipientID, from, to)
	if err != nil {
		return err
	}
	entries := make([]models.Notification, 0, len(items))
	for _, item := range items {
		// Digests never summarize other digests.
		if item.Category != digestCategory {
			entries = append(entries, item)
		}
	}
	if len(entries) == 0 {
		return nil
	}

	channels := make([]models.Channel, 0, len(digestEligible))
	for _, ch := range digestEligible {
		if pref.ChannelEnabled(ch) {
			channels = append(channels, ch)
		}
	}
	if len(channels) == 0 {
		return nil
	}

	digest := models.Notification{
		ID:          uuid.NewString(),
		RecipientID: recipientID,
		Category:    digestCategory,
		Priority:    models.PriorityLow,
		Title:       renderTemplate(digestTemplates[cadence]["subject"].(string), nil),
		Body:        renderDigestBody(cadence, entries),
		Status:      models.StatusPending,
		CreatedAt:   to,
	}
	if err := s.notifications.Create(ctx, &digest); err != nil {
		return err
	}

	if _, err := s.dispatcher.Dispatch(ctx, digest, channels); err != nil {
		return err
	}
	metrics.DigestsSent.WithLabelValues(string(cadence)).Inc()
	return nil
}

func renderDigestBody(cadence store.DigestCadence, entries []models.Notification) string {
	var b strings.Builder
	b.WriteString(renderTemplate(digestTemplates[cadence]["intro"].(string), map[string]interface{}{
		"count": len(entries),
	}))
	b.WriteString("\n")
	for _, n := range entries {
		b.WriteString(fmt.Sprintf("\n- %s: %s", n.Title, n.Body))
	}
	return b.String()
}

func cadencePeriod(cadence store.DigestCadence) time.Duration {
	if cadence == store.DigestWeekly {
		return 7 * 24 * time.Hour
	}
	return 24 * time.Hour
}

// renderTemplate substitutes {{key}} placeholders and strips any that remain
// unmatched.
func renderTemplate(tmpl string, data map[string]interface{}) string {
	result := tmpl
	for k, v := range data {
		placeholder := "{{" + k + "}}"
		value := ""
		if s, ok := v.(string); ok {
			value = s
		} else if i, ok := v.(int); ok {
			value = fmt.Sprintf("%d", i)
		} else if v != nil {
			value = fmt.Sprintf("%v", v)
		}
		result = strings.ReplaceAll(result, placeholder, value)
	}
	for {
		start := strings.Index(result, "{{")
		if start == -1 {
			break
		}
		end := strings.Index(result[start:], "}}")
		if end == -1 {
			break
		}
		end += start + 2
		result = result[:start] + result[end:]
	}
	return result
}
