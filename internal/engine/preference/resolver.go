// internal/engine/preference/resolver.go
package preference

import (
	"context"
	goerrors "errors"
	"fmt"
	"time"

	"notification-engine/internal/common/errors"
	"notification-engine/internal/models"
	"notification-engine/internal/store"
)

// Store is the read-only preference lookup the resolver needs.
type Store interface {
	Get(ctx context.Context, recipientID string) (*models.Preference, error)
}

// Resolver resolves recipient preferences for dispatch decisions. Lookups
// are never cached beyond a single decision; preferences may change between
// notifications.
type Resolver struct {
	store Store
}

func NewResolver(s Store) *Resolver {
	return &Resolver{store: s}
}

// Resolve returns the recipient's preferences, failing closed: a missing
// record or withdrawn consent yields a NO_CONSENT configuration error,
// never a default of "send everywhere".
func (r *Resolver) Resolve(ctx context.Context, recipientID string) (*models.Preference, error) {
	p, err := r.store.Get(ctx, recipientID)
	if err != nil {
		if goerrors.Is(err, store.ErrNotFound) {
			return nil, errors.NewNoConsentError(recipientID)
		}
		return nil, errors.NewQueryExecutionFailedError("resolve preference", err)
	}
	if !p.ConsentGiven {
		return nil, errors.NewNoConsentError(recipientID)
	}
	return p, nil
}

// InQuietHours reports whether now falls inside the recipient's quiet-hours
// window. If either bound is absent or malformed, quiet hours never apply.
// The window may wrap midnight (22:00-07:00).
func InQuietHours(p models.Preference, now time.Time) bool {
	start, end, ok := quietBounds(p)
	if !ok {
		return false
	}

	nowMin := now.Hour()*60 + now.Minute()
	if start == end {
		return false
	}
	if start < end {
		return nowMin >= start && nowMin < end
	}
	// wraps midnight
	return nowMin >= start || nowMin < end
}

// QuietWindowEnd returns the next instant at which the quiet-hours window
// ends, given that now is inside the window. The second return value is
// false when quiet hours do not apply.
func QuietWindowEnd(p models.Preference, now time.Time) (time.Time, bool) {
	_, end, ok := quietBounds(p)
	if !ok || !InQuietHours(p, now) {
		return time.Time{}, false
	}

	endOfWindow := time.Date(now.Year(), now.Month(), now.Day(), end/60, end%60, 0, 0, now.Location())
	if !endOfWindow.After(now) {
		endOfWindow = endOfWindow.Add(24 * time.Hour)
	}
	return endOfWindow, true
}

func quietBounds(p models.Preference) (startMin, endMin int, ok bool) {
	if p.QuietHoursStart == nil || p.QuietHoursEnd == nil {
		return 0, 0, false
	}
	start, err := parseClock(*p.QuietHoursStart)
	if err != nil {
		return 0, 0, false
	}
	end, err := parseClock(*p.QuietHoursEnd)
	if err != nil {
		return 0, 0, false
	}
	return start, end, true
}

// parseClock parses "HH:MM" into minutes since midnight.
func parseClock(s string) (int, error) {
	var hh, mm int
	if _, err := fmt.Sscanf(s, "%d:%d", &hh, &mm); err != nil {
		return 0, fmt.Errorf("parse clock %q: %w", s, err)
	}
	if hh < 0 || hh > 23 || mm < 0 || mm > 59 {
		return 0, fmt.Errorf("clock %q out of range", s)
	}
	return hh*60 + mm, nil
}
