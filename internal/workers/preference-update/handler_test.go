// internal/workers/preference-update/handler_test.go
package preferenceupdate

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	commonerrors "notification-engine/internal/common/errors"
	"notification-engine/internal/common/logger"
	"notification-engine/internal/models"
)

// MockPreferenceUpdater implements PreferenceUpdater for testing
type MockPreferenceUpdater struct {
	UpdatePreferencesFunc func(ctx context.Context, recipientID string, patch models.PreferencePatch) (models.Preference, error)
}

func (m *MockPreferenceUpdater) UpdatePreferences(ctx context.Context, recipientID string, patch models.PreferencePatch) (models.Preference, error) {
	if m.UpdatePreferencesFunc != nil {
		return m.UpdatePreferencesFunc(ctx, recipientID, patch)
	}
	return models.DefaultPreference(recipientID), nil
}

func createTestConfig() *Config {
	return &Config{
		MaxJobsActive: 10,
		Timeout:       10 * time.Second,
	}
}

func boolPtr(b bool) *bool { return &b }

func TestExecute_AppliesPatch(t *testing.T) {
	var gotRecipient string
	var gotPatch models.PreferencePatch
	updater := &MockPreferenceUpdater{
		UpdatePreferencesFunc: func(_ context.Context, recipientID string, patch models.PreferencePatch) (models.Preference, error) {
			gotRecipient = recipientID
			gotPatch = patch
			pref := models.DefaultPreference(recipientID)
			pref = patch.Apply(pref)
			return pref, nil
		},
	}
	h := NewHandler(createTestConfig(), updater, logger.NewNoOpLogger())

	output, err := h.execute(context.Background(), &Input{
		RecipientID: "user-1",
		Patch:       models.PreferencePatch{EmailEnabled: boolPtr(true)},
	})

	require.NoError(t, err)
	assert.Equal(t, "user-1", gotRecipient)
	require.NotNil(t, gotPatch.EmailEnabled)
	assert.True(t, *gotPatch.EmailEnabled)
	assert.Equal(t, "user-1", output.RecipientID)
	assert.Contains(t, output.EnabledChannels, string(models.ChannelEmail))
	assert.Contains(t, output.EnabledChannels, string(models.ChannelInApp))
	assert.True(t, output.ConsentGiven)
	assert.NotEmpty(t, output.UpdatedAt)
}

func TestExecute_ConsentWithdrawal(t *testing.T) {
	updater := &MockPreferenceUpdater{
		UpdatePreferencesFunc: func(_ context.Context, recipientID string, patch models.PreferencePatch) (models.Preference, error) {
			pref := models.DefaultPreference(recipientID)
			return patch.Apply(pref), nil
		},
	}
	h := NewHandler(createTestConfig(), updater, logger.NewNoOpLogger())

	output, err := h.execute(context.Background(), &Input{
		RecipientID: "user-2",
		Patch:       models.PreferencePatch{ConsentGiven: boolPtr(false)},
	})

	require.NoError(t, err)
	assert.False(t, output.ConsentGiven)
}

func TestExecute_StoreFailurePropagates(t *testing.T) {
	updater := &MockPreferenceUpdater{
		UpdatePreferencesFunc: func(context.Context, string, models.PreferencePatch) (models.Preference, error) {
			return models.Preference{}, commonerrors.NewDatabaseConnectionFailedError(errors.New("connection refused"))
		},
	}
	h := NewHandler(createTestConfig(), updater, logger.NewNoOpLogger())

	_, err := h.execute(context.Background(), &Input{RecipientID: "user-3"})
	require.Error(t, err)

	code, retries := h.mapError(err)
	assert.Equal(t, "DATABASE_CONNECTION_FAILED", code)
	assert.Equal(t, int32(3), retries)
}

func TestMapError_UnknownErrorRetries(t *testing.T) {
	h := NewHandler(createTestConfig(), &MockPreferenceUpdater{}, logger.NewNoOpLogger())

	code, retries := h.mapError(errors.New("boom"))
	assert.Equal(t, "UPDATE_FAILED", code)
	assert.Equal(t, int32(2), retries)
}
