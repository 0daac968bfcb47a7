// internal/gateway/httpapi/server_test.go
package httpapi

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	commonerrors "notification-engine/internal/common/errors"
	"notification-engine/internal/common/logger"
	"notification-engine/internal/engine"
	"notification-engine/internal/models"
	"notification-engine/internal/store"
)

// MockEngine implements Engine for testing
type MockEngine struct {
	SubmitFunc            func(ctx context.Context, req engine.SubmitRequest) (string, error)
	UpdatePreferencesFunc func(ctx context.Context, recipientID string, patch models.PreferencePatch) (models.Preference, error)
	RecentFunc            func(ctx context.Context, recipientID string) ([]models.Notification, error)
	GetFunc               func(ctx context.Context, notificationID string) (*models.Notification, error)
	AttemptsFunc          func(ctx context.Context, notificationID string) ([]models.DeliveryAttempt, error)
}

func (m *MockEngine) Submit(ctx context.Context, req engine.SubmitRequest) (string, error) {
	if m.SubmitFunc != nil {
		return m.SubmitFunc(ctx, req)
	}
	return "notif-1", nil
}

func (m *MockEngine) UpdatePreferences(ctx context.Context, recipientID string, patch models.PreferencePatch) (models.Preference, error) {
	if m.UpdatePreferencesFunc != nil {
		return m.UpdatePreferencesFunc(ctx, recipientID, patch)
	}
	return models.DefaultPreference(recipientID), nil
}

func (m *MockEngine) Recent(ctx context.Context, recipientID string) ([]models.Notification, error) {
	if m.RecentFunc != nil {
		return m.RecentFunc(ctx, recipientID)
	}
	return nil, nil
}

func (m *MockEngine) Get(ctx context.Context, notificationID string) (*models.Notification, error) {
	if m.GetFunc != nil {
		return m.GetFunc(ctx, notificationID)
	}
	return nil, store.ErrNotFound
}

func (m *MockEngine) Attempts(ctx context.Context, notificationID string) ([]models.DeliveryAttempt, error) {
	if m.AttemptsFunc != nil {
		return m.AttemptsFunc(ctx, notificationID)
	}
	return nil, nil
}

func newTestServer(eng *MockEngine) *httptest.Server {
	s := NewServer(eng, nil, logger.NewNoOpLogger())
	return httptest.NewServer(s.Router())
}

func TestServer_Health(t *testing.T) {
	srv := newTestServer(&MockEngine{})
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/healthz")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestServer_Submit(t *testing.T) {
	var received engine.SubmitRequest
	eng := &MockEngine{
		SubmitFunc: func(_ context.Context, req engine.SubmitRequest) (string, error) {
			received = req
			return "notif-42", nil
		},
	}
	srv := newTestServer(eng)
	defer srv.Close()

	payload := `{"recipientId":"user-1","category":"billing","priority":"HIGH","title":"Invoice","body":"ready"}`
	resp, err := http.Post(srv.URL+"/v1/notifications", "application/json", strings.NewReader(payload))
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusAccepted, resp.StatusCode)
	assert.Equal(t, "user-1", received.RecipientID)
	assert.Equal(t, models.PriorityHigh, received.Priority)

	var body map[string]string
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, "notif-42", body["notificationId"])
}

func TestServer_Submit_SchemaRejections(t *testing.T) {
	srv := newTestServer(&MockEngine{})
	defer srv.Close()

	tests := []struct {
		name    string
		payload string
	}{
		{"missing recipient", `{"priority":"HIGH","title":"t"}`},
		{"bad priority", `{"recipientId":"u","priority":"URGENT","title":"t"}`},
		{"unknown field", `{"recipientId":"u","priority":"LOW","title":"t","channel":"EMAIL"}`},
		{"not json", `title=t`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, err := http.Post(srv.URL+"/v1/notifications", "application/json", strings.NewReader(tt.payload))
			require.NoError(t, err)
			defer resp.Body.Close()
			assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
		})
	}
}

func TestServer_Submit_NoConsentMapsTo422(t *testing.T) {
	eng := &MockEngine{
		SubmitFunc: func(context.Context, engine.SubmitRequest) (string, error) {
			return "notif-1", commonerrors.NewNoConsentError("user-1")
		},
	}
	srv := newTestServer(eng)
	defer srv.Close()

	payload := `{"recipientId":"user-1","priority":"HIGH","title":"t"}`
	resp, err := http.Post(srv.URL+"/v1/notifications", "application/json", strings.NewReader(payload))
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)

	var body map[string]interface{}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, "NO_CONSENT", body["code"])
	// The skipped record's id is still reported to the caller.
	assert.Equal(t, "notif-1", body["notificationId"])
}

func TestServer_UpdatePreferences(t *testing.T) {
	var patched models.PreferencePatch
	eng := &MockEngine{
		UpdatePreferencesFunc: func(_ context.Context, recipientID string, patch models.PreferencePatch) (models.Preference, error) {
			patched = patch
			p := models.DefaultPreference(recipientID)
			return patch.Apply(p), nil
		},
	}
	srv := newTestServer(eng)
	defer srv.Close()

	payload := `{"emailEnabled":true,"quietHoursStart":"22:00","quietHoursEnd":"07:00"}`
	req, _ := http.NewRequest(http.MethodPatch, srv.URL+"/v1/recipients/user-1/preferences", strings.NewReader(payload))
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	require.NotNil(t, patched.EmailEnabled)
	assert.True(t, *patched.EmailEnabled)
	require.NotNil(t, patched.QuietHoursStart)
	assert.Equal(t, "22:00", *patched.QuietHoursStart)
}

func TestServer_UpdatePreferences_RejectsBadQuietHours(t *testing.T) {
	srv := newTestServer(&MockEngine{})
	defer srv.Close()

	payload := `{"quietHoursStart":"25:99"}`
	req, _ := http.NewRequest(http.MethodPatch, srv.URL+"/v1/recipients/user-1/preferences", strings.NewReader(payload))
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestServer_ListNotifications(t *testing.T) {
	eng := &MockEngine{
		RecentFunc: func(_ context.Context, recipientID string) ([]models.Notification, error) {
			return []models.Notification{{ID: "n1", RecipientID: recipientID}}, nil
		},
	}
	srv := newTestServer(eng)
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/v1/recipients/user-1/notifications")
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	var body struct {
		Notifications []models.Notification `json:"notifications"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	require.Len(t, body.Notifications, 1)
	assert.Equal(t, "n1", body.Notifications[0].ID)
}

func TestServer_GetNotification_NotFound(t *testing.T) {
	srv := newTestServer(&MockEngine{})
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/v1/notifications/missing")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}
