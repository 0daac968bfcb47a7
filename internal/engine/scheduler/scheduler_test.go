// internal/engine/scheduler/scheduler_test.go
package scheduler

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"notification-engine/internal/common/config"
	"notification-engine/internal/common/logger"
	"notification-engine/internal/engine/preference"
	"notification-engine/internal/models"
	"notification-engine/internal/store"
)

type fakeClock struct {
	now time.Time
}

func (f *fakeClock) Now() time.Time { return f.now }

// MockNotificationStore implements NotificationStore for testing
type MockNotificationStore struct {
	notifications map[string]*models.Notification
	attempts      []models.DeliveryAttempt
	statuses      map[string]models.Status
	created       []models.Notification

	ListCreatedBetweenFunc func(ctx context.Context, recipientID string, from, to time.Time) ([]models.Notification, error)
}

func newMockNotificationStore() *MockNotificationStore {
	return &MockNotificationStore{
		notifications: make(map[string]*models.Notification),
		statuses:      make(map[string]models.Status),
	}
}

func (m *MockNotificationStore) Get(_ context.Context, id string) (*models.Notification, error) {
	n, ok := m.notifications[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	copied := *n
	return &copied, nil
}

func (m *MockNotificationStore) Create(_ context.Context, n *models.Notification) error {
	m.created = append(m.created, *n)
	copied := *n
	m.notifications[n.ID] = &copied
	return nil
}

func (m *MockNotificationStore) UpdateStatus(_ context.Context, id string, status models.Status, _ []models.Channel) error {
	m.statuses[id] = status
	if n, ok := m.notifications[id]; ok {
		n.Status = status
	}
	return nil
}

func (m *MockNotificationStore) AppendAttempt(_ context.Context, a models.DeliveryAttempt) error {
	m.attempts = append(m.attempts, a)
	return nil
}

func (m *MockNotificationStore) ListCreatedBetween(ctx context.Context, recipientID string, from, to time.Time) ([]models.Notification, error) {
	if m.ListCreatedBetweenFunc != nil {
		return m.ListCreatedBetweenFunc(ctx, recipientID, from, to)
	}
	return nil, nil
}

// MockPreferenceStore implements PreferenceStore and the resolver's store
type MockPreferenceStore struct {
	prefs      map[string]*models.Preference
	digestSubs map[store.DigestCadence][]string
}

func newMockPreferenceStore() *MockPreferenceStore {
	return &MockPreferenceStore{
		prefs:      make(map[string]*models.Preference),
		digestSubs: make(map[store.DigestCadence][]string),
	}
}

func (m *MockPreferenceStore) Get(_ context.Context, recipientID string) (*models.Preference, error) {
	p, ok := m.prefs[recipientID]
	if !ok {
		return nil, store.ErrNotFound
	}
	copied := *p
	return &copied, nil
}

func (m *MockPreferenceStore) ListDigestRecipients(_ context.Context, cadence store.DigestCadence) ([]string, error) {
	return m.digestSubs[cadence], nil
}

// MockDispatcher implements Dispatcher for testing
type MockDispatcher struct {
	dispatched []dispatchCall
	status     models.Status
}

type dispatchCall struct {
	notification models.Notification
	channels     []models.Channel
}

func (m *MockDispatcher) Dispatch(_ context.Context, n models.Notification, channels []models.Channel) (models.Status, error) {
	m.dispatched = append(m.dispatched, dispatchCall{notification: n, channels: channels})
	if m.status == "" {
		return models.StatusSent, nil
	}
	return m.status, nil
}

type fixture struct {
	scheduler     *Scheduler
	queue         *Queue
	notifications *MockNotificationStore
	preferences   *MockPreferenceStore
	dispatcher    *MockDispatcher
	clock         *fakeClock
	redis         *miniredis.Miniredis
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	log := logger.NewNoOpLogger()

	notifications := newMockNotificationStore()
	preferences := newMockPreferenceStore()
	dispatcher := &MockDispatcher{}
	clock := &fakeClock{now: time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)}
	queue := NewQueue(rdb, log)

	cfg := config.SchedulerConfig{
		BatchFlushInterval:  300,
		DelayedPollInterval: 30,
		DigestHour:          9,
		WeeklyDigestDay:     "Monday",
	}

	s := New(queue, notifications, preferences, preference.NewResolver(preferences), dispatcher, clock, cfg, log)
	return &fixture{
		scheduler:     s,
		queue:         queue,
		notifications: notifications,
		preferences:   preferences,
		dispatcher:    dispatcher,
		clock:         clock,
		redis:         mr,
	}
}

func (f *fixture) addNotification(id string, priority models.Priority) {
	f.notifications.notifications[id] = &models.Notification{
		ID:          id,
		RecipientID: "user-1",
		Category:    "billing",
		Priority:    priority,
		Title:       "t",
		Body:        "b",
		Status:      models.StatusPending,
		CreatedAt:   f.clock.now.Add(-time.Hour),
	}
}

func (f *fixture) addConsentedPref(recipientID string) *models.Preference {
	p := models.DefaultPreference(recipientID)
	p.EmailEnabled = true
	f.preferences.prefs[recipientID] = &p
	return f.preferences.prefs[recipientID]
}

func TestQueue_BatchRoundTrip(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	item := Item{NotificationID: "n1", Channels: []models.Channel{models.ChannelEmail}}
	require.NoError(t, f.queue.EnqueueBatch(ctx, item))
	require.NoError(t, f.queue.EnqueueBatch(ctx, Item{NotificationID: "n2"}))

	items, err := f.queue.DrainBatch(ctx)
	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.Equal(t, "n1", items[0].NotificationID)
	assert.Equal(t, []models.Channel{models.ChannelEmail}, items[0].Channels)

	// Queue is empty after a drain.
	items, err = f.queue.DrainBatch(ctx)
	require.NoError(t, err)
	assert.Empty(t, items)
}

func TestQueue_DelayedReleaseRespectsTime(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	now := f.clock.now

	require.NoError(t, f.queue.ScheduleDelayed(ctx, Item{NotificationID: "due"}, now.Add(-time.Minute)))
	require.NoError(t, f.queue.ScheduleDelayed(ctx, Item{NotificationID: "future"}, now.Add(time.Hour)))

	items, err := f.queue.DueDelayed(ctx, now)
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "due", items[0].NotificationID)

	// The future item is still held.
	items, err = f.queue.DueDelayed(ctx, now.Add(2*time.Hour))
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "future", items[0].NotificationID)
}

func TestScheduler_FlushBatch_DispatchesQueuedItems(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.addNotification("n1", models.PriorityLow)
	f.addConsentedPref("user-1")

	require.NoError(t, f.queue.EnqueueBatch(ctx, Item{
		NotificationID: "n1",
		Channels:       []models.Channel{models.ChannelInApp, models.ChannelEmail},
	}))

	require.NoError(t, f.scheduler.FlushBatch(ctx))

	require.Len(t, f.dispatcher.dispatched, 1)
	assert.Equal(t, "n1", f.dispatcher.dispatched[0].notification.ID)
	assert.Equal(t, []models.Channel{models.ChannelInApp, models.ChannelEmail}, f.dispatcher.dispatched[0].channels)
}

func TestScheduler_Release_ConsentWithdrawnSkips(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.addNotification("n1", models.PriorityLow)
	// No preference record at all: fail closed.

	require.NoError(t, f.queue.EnqueueBatch(ctx, Item{
		NotificationID: "n1",
		Channels:       []models.Channel{models.ChannelInApp},
	}))
	require.NoError(t, f.scheduler.FlushBatch(ctx))

	assert.Empty(t, f.dispatcher.dispatched)
	assert.Equal(t, models.StatusSkipped, f.notifications.statuses["n1"])
	assert.Empty(t, f.notifications.attempts)
}

func TestScheduler_Release_DisabledChannelRecordedAsSkipped(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.addNotification("n1", models.PriorityLow)
	pref := f.addConsentedPref("user-1")
	pref.EmailEnabled = false

	require.NoError(t, f.queue.EnqueueBatch(ctx, Item{
		NotificationID: "n1",
		Channels:       []models.Channel{models.ChannelInApp, models.ChannelEmail},
	}))
	require.NoError(t, f.scheduler.FlushBatch(ctx))

	require.Len(t, f.dispatcher.dispatched, 1)
	assert.Equal(t, []models.Channel{models.ChannelInApp}, f.dispatcher.dispatched[0].channels)
	require.Len(t, f.notifications.attempts, 1)
	assert.Equal(t, models.ChannelEmail, f.notifications.attempts[0].Channel)
	assert.Equal(t, models.OutcomeSkippedNoConsent, f.notifications.attempts[0].Outcome)
}

func TestScheduler_Release_AllChannelsDisabledSkipsNotification(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.addNotification("n1", models.PriorityLow)
	pref := f.addConsentedPref("user-1")
	pref.InAppEnabled = false
	pref.EmailEnabled = false

	require.NoError(t, f.queue.EnqueueBatch(ctx, Item{
		NotificationID: "n1",
		Channels:       []models.Channel{models.ChannelInApp, models.ChannelEmail},
	}))
	require.NoError(t, f.scheduler.FlushBatch(ctx))

	assert.Empty(t, f.dispatcher.dispatched)
	assert.Equal(t, models.StatusSkipped, f.notifications.statuses["n1"])
}

func TestScheduler_Release_QuietHoursDefersAgain(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.clock.now = time.Date(2026, 3, 10, 23, 0, 0, 0, time.UTC)
	f.addNotification("n1", models.PriorityHigh)
	pref := f.addConsentedPref("user-1")
	start, end := "22:00", "07:00"
	pref.QuietHoursStart = &start
	pref.QuietHoursEnd = &end

	require.NoError(t, f.queue.ScheduleDelayed(ctx, Item{
		NotificationID: "n1",
		Channels:       []models.Channel{models.ChannelInApp},
	}, f.clock.now.Add(-time.Minute)))

	require.NoError(t, f.scheduler.ReleaseDue(ctx))

	assert.Empty(t, f.dispatcher.dispatched)
	require.Len(t, f.notifications.attempts, 1)
	assert.Equal(t, models.OutcomeSkippedQuietHours, f.notifications.attempts[0].Outcome)

	// Re-queued for the end of the quiet window.
	items, err := f.queue.DueDelayed(ctx, time.Date(2026, 3, 11, 7, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "n1", items[0].NotificationID)
}

func TestScheduler_Release_CriticalIgnoresQuietHours(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.clock.now = time.Date(2026, 3, 10, 23, 0, 0, 0, time.UTC)
	f.addNotification("n1", models.PriorityCritical)
	pref := f.addConsentedPref("user-1")
	start, end := "22:00", "07:00"
	pref.QuietHoursStart = &start
	pref.QuietHoursEnd = &end

	require.NoError(t, f.queue.ScheduleDelayed(ctx, Item{
		NotificationID: "n1",
		Channels:       []models.Channel{models.ChannelInApp},
	}, f.clock.now.Add(-time.Minute)))

	require.NoError(t, f.scheduler.ReleaseDue(ctx))
	require.Len(t, f.dispatcher.dispatched, 1)
}

func TestScheduler_Release_TerminalNotificationIsIgnored(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.addNotification("n1", models.PriorityLow)
	f.notifications.notifications["n1"].Status = models.StatusSent
	f.addConsentedPref("user-1")

	require.NoError(t, f.queue.EnqueueBatch(ctx, Item{
		NotificationID: "n1",
		Channels:       []models.Channel{models.ChannelInApp},
	}))
	require.NoError(t, f.scheduler.FlushBatch(ctx))

	assert.Empty(t, f.dispatcher.dispatched)
}

func TestScheduler_RunDigest_SummarizesAndDispatches(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	pref := f.addConsentedPref("user-1")
	pref.DigestDaily = true
	f.preferences.digestSubs[store.DigestDaily] = []string{"user-1"}

	f.notifications.ListCreatedBetweenFunc = func(_ context.Context, recipientID string, _, _ time.Time) ([]models.Notification, error) {
		return []models.Notification{
			{ID: "a", RecipientID: recipientID, Category: "billing", Title: "Invoice", Body: "Invoice ready"},
			{ID: "b", RecipientID: recipientID, Category: "social", Title: "Mention", Body: "You were mentioned"},
		}, nil
	}

	require.NoError(t, f.scheduler.RunDigest(ctx, store.DigestDaily))

	require.Len(t, f.notifications.created, 1)
	digest := f.notifications.created[0]
	assert.Equal(t, "digest", digest.Category)
	assert.Equal(t, models.PriorityLow, digest.Priority)
	assert.Contains(t, digest.Body, "Invoice")
	assert.Contains(t, digest.Body, "Mention")

	require.Len(t, f.dispatcher.dispatched, 1)
	assert.Equal(t, []models.Channel{models.ChannelInApp, models.ChannelEmail}, f.dispatcher.dispatched[0].channels)

	// Watermark advanced so the same window is not re-summarized.
	last, err := f.queue.LastDigestRun(ctx, string(store.DigestDaily))
	require.NoError(t, err)
	assert.Equal(t, f.clock.now.Unix(), last.Unix())
}

func TestScheduler_RunDigest_NoActivityMeansNoDigest(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	pref := f.addConsentedPref("user-1")
	pref.DigestDaily = true
	f.preferences.digestSubs[store.DigestDaily] = []string{"user-1"}

	require.NoError(t, f.scheduler.RunDigest(ctx, store.DigestDaily))

	assert.Empty(t, f.notifications.created)
	assert.Empty(t, f.dispatcher.dispatched)
}

func TestScheduler_RunDigest_ExcludesOldDigests(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	pref := f.addConsentedPref("user-1")
	pref.DigestDaily = true
	f.preferences.digestSubs[store.DigestDaily] = []string{"user-1"}

	f.notifications.ListCreatedBetweenFunc = func(_ context.Context, recipientID string, _, _ time.Time) ([]models.Notification, error) {
		return []models.Notification{
			{ID: "a", RecipientID: recipientID, Category: "digest", Title: "Yesterday's digest", Body: "..."},
		}, nil
	}

	require.NoError(t, f.scheduler.RunDigest(ctx, store.DigestDaily))
	assert.Empty(t, f.notifications.created)
}

func TestScheduler_DigestDue(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	// 12:00 is past the 09:00 schedule and no run is recorded.
	due, scheduledAt := f.scheduler.digestDue(ctx, store.DigestDaily, f.clock.now)
	assert.True(t, due)
	assert.Equal(t, time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC), scheduledAt)

	// After a run covering the window, the cadence is no longer due.
	require.NoError(t, f.queue.SetLastDigestRun(ctx, string(store.DigestDaily), f.clock.now))
	due, _ = f.scheduler.digestDue(ctx, store.DigestDaily, f.clock.now)
	assert.False(t, due)

	// The next day it comes due again.
	tomorrow := f.clock.now.AddDate(0, 0, 1)
	due, scheduledAt = f.scheduler.digestDue(ctx, store.DigestDaily, tomorrow)
	assert.True(t, due)
	assert.Equal(t, time.Date(2026, 3, 11, 9, 0, 0, 0, time.UTC), scheduledAt)
}

func TestScheduler_WeeklyScheduledInstant(t *testing.T) {
	f := newFixture(t)

	// 2026-03-10 is a Tuesday; the most recent Monday 09:00 is 2026-03-09.
	scheduled := f.scheduler.lastScheduledInstant(store.DigestWeekly, f.clock.now)
	assert.Equal(t, time.Date(2026, 3, 9, 9, 0, 0, 0, time.UTC), scheduled)
}
