// internal/engine/preference/resolver_test.go
package preference

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	commonerrors "notification-engine/internal/common/errors"
	"notification-engine/internal/models"
	"notification-engine/internal/store"
)

type mockStore struct {
	GetFunc func(ctx context.Context, recipientID string) (*models.Preference, error)
}

func (m *mockStore) Get(ctx context.Context, recipientID string) (*models.Preference, error) {
	return m.GetFunc(ctx, recipientID)
}

func strPtr(s string) *string { return &s }

func TestResolver_Resolve_FailsClosed(t *testing.T) {
	tests := []struct {
		name string
		get  func(ctx context.Context, recipientID string) (*models.Preference, error)
	}{
		{
			name: "missing record",
			get: func(ctx context.Context, recipientID string) (*models.Preference, error) {
				return nil, store.ErrNotFound
			},
		},
		{
			name: "consent withdrawn",
			get: func(ctx context.Context, recipientID string) (*models.Preference, error) {
				return &models.Preference{
					RecipientID:  recipientID,
					InAppEnabled: true,
					EmailEnabled: true,
					ConsentGiven: false,
				}, nil
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := NewResolver(&mockStore{GetFunc: tt.get})
			_, err := r.Resolve(context.Background(), "r-001")
			require.Error(t, err)
			code, ok := commonerrors.CodeOf(err)
			require.True(t, ok)
			assert.Equal(t, commonerrors.ErrCodeNoConsent, code)
		})
	}
}

func TestResolver_Resolve_Success(t *testing.T) {
	r := NewResolver(&mockStore{
		GetFunc: func(ctx context.Context, recipientID string) (*models.Preference, error) {
			return &models.Preference{RecipientID: recipientID, InAppEnabled: true, ConsentGiven: true}, nil
		},
	})

	p, err := r.Resolve(context.Background(), "r-001")
	require.NoError(t, err)
	assert.True(t, p.InAppEnabled)
}

func at(hour, minute int) time.Time {
	return time.Date(2025, 3, 10, hour, minute, 0, 0, time.UTC)
}

func TestInQuietHours(t *testing.T) {
	tests := []struct {
		name  string
		start *string
		end   *string
		now   time.Time
		want  bool
	}{
		{"no bounds set", nil, nil, at(23, 0), false},
		{"only start set", strPtr("22:00"), nil, at(23, 0), false},
		{"inside simple window", strPtr("13:00"), strPtr("15:00"), at(14, 0), true},
		{"outside simple window", strPtr("13:00"), strPtr("15:00"), at(16, 0), false},
		{"inside wrapped window before midnight", strPtr("22:00"), strPtr("07:00"), at(23, 0), true},
		{"inside wrapped window after midnight", strPtr("22:00"), strPtr("07:00"), at(6, 30), true},
		{"outside wrapped window", strPtr("22:00"), strPtr("07:00"), at(12, 0), false},
		{"window end is exclusive", strPtr("22:00"), strPtr("07:00"), at(7, 0), false},
		{"malformed bound ignored", strPtr("late"), strPtr("07:00"), at(23, 0), false},
		{"degenerate equal bounds", strPtr("09:00"), strPtr("09:00"), at(9, 0), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := models.Preference{QuietHoursStart: tt.start, QuietHoursEnd: tt.end}
			assert.Equal(t, tt.want, InQuietHours(p, tt.now))
		})
	}
}

func TestQuietWindowEnd(t *testing.T) {
	p := models.Preference{QuietHoursStart: strPtr("22:00"), QuietHoursEnd: strPtr("07:00")}

	// Before midnight: the window ends tomorrow morning.
	end, ok := QuietWindowEnd(p, at(23, 0))
	require.True(t, ok)
	assert.Equal(t, time.Date(2025, 3, 11, 7, 0, 0, 0, time.UTC), end)

	// After midnight: the window ends the same morning.
	end, ok = QuietWindowEnd(p, at(6, 0))
	require.True(t, ok)
	assert.Equal(t, time.Date(2025, 3, 10, 7, 0, 0, 0, time.UTC), end)

	// Outside the window there is nothing to wait for.
	_, ok = QuietWindowEnd(p, at(12, 0))
	assert.False(t, ok)
}
