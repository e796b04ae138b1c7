package service

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lifehub-app/notify-engine/internal/model"
)

// fixedNow pins Resolve's clock. 2026-01-07 is a Wednesday.
func fixedNow(hour, minute int) func() time.Time {
	return func() time.Time {
		return time.Date(2026, time.January, 7, hour, minute, 0, 0, time.UTC)
	}
}

func newTestPreferenceService(repo *fakePreferenceRepo, now func() time.Time) *preferenceService {
	return &preferenceService{repo: repo, now: now}
}

func TestResolveDefaultsWhenNoRow(t *testing.T) {
	svc := newTestPreferenceService(newFakePreferenceRepo(), fixedNow(12, 0))

	res, err := svc.Resolve(uuid.New(), uuid.New(), model.TypeComment, model.PriorityMedium, nil)
	require.NoError(t, err)

	assert.False(t, res.Suppressed)
	assert.Equal(t, model.DefaultChannels(), res.Channels)
}

func TestResolveMasterSwitchSuppresses(t *testing.T) {
	repo := newFakePreferenceRepo()
	userID, workspaceID := uuid.New(), uuid.New()

	prefs := model.DefaultPreferences(userID, workspaceID)
	prefs.Enabled = false
	require.NoError(t, repo.Upsert(prefs))

	svc := newTestPreferenceService(repo, fixedNow(12, 0))

	res, err := svc.Resolve(userID, workspaceID, model.TypeComment, model.PriorityUrgent, nil)
	require.NoError(t, err)

	assert.True(t, res.Suppressed)
	assert.Equal(t, SuppressDisabled, res.Reason)
}

func TestResolveTypeDisabled(t *testing.T) {
	repo := newFakePreferenceRepo()
	userID, workspaceID := uuid.New(), uuid.New()

	prefs := model.DefaultPreferences(userID, workspaceID)
	prefs.Types = model.TypeSettings{
		model.TypeComment: {Enabled: false},
	}
	require.NoError(t, repo.Upsert(prefs))

	svc := newTestPreferenceService(repo, fixedNow(12, 0))

	res, err := svc.Resolve(userID, workspaceID, model.TypeComment, model.PriorityMedium, nil)
	require.NoError(t, err)
	assert.True(t, res.Suppressed)
	assert.Equal(t, SuppressTypeOff, res.Reason)

	// Other types are untouched by the override.
	res, err = svc.Resolve(userID, workspaceID, model.TypeMention, model.PriorityMedium, nil)
	require.NoError(t, err)
	assert.False(t, res.Suppressed)
}

func TestResolveTypeChannelOverride(t *testing.T) {
	repo := newFakePreferenceRepo()
	userID, workspaceID := uuid.New(), uuid.New()

	prefs := model.DefaultPreferences(userID, workspaceID)
	prefs.Types = model.TypeSettings{
		model.TypeTaskDue: {Enabled: true, Channels: model.StringList{model.ChannelPush}},
	}
	require.NoError(t, repo.Upsert(prefs))

	svc := newTestPreferenceService(repo, fixedNow(12, 0))

	res, err := svc.Resolve(userID, workspaceID, model.TypeTaskDue, model.PriorityMedium,
		model.StringList{model.ChannelInApp, model.ChannelEmail})
	require.NoError(t, err)

	require.False(t, res.Suppressed)
	assert.Equal(t, model.StringList{model.ChannelPush}, res.Channels)
}

func TestResolveQuietHoursSuppressesNonUrgent(t *testing.T) {
	repo := newFakePreferenceRepo()
	userID, workspaceID := uuid.New(), uuid.New()

	prefs := model.DefaultPreferences(userID, workspaceID)
	prefs.QuietHoursStart = "22:00"
	prefs.QuietHoursEnd = "08:00"
	require.NoError(t, repo.Upsert(prefs))

	svc := newTestPreferenceService(repo, fixedNow(23, 0))

	res, err := svc.Resolve(userID, workspaceID, model.TypeComment, model.PriorityHigh, nil)
	require.NoError(t, err)
	assert.True(t, res.Suppressed)
	assert.Equal(t, SuppressQuietHours, res.Reason)
}

func TestResolveUrgentBypassesQuietHours(t *testing.T) {
	repo := newFakePreferenceRepo()
	userID, workspaceID := uuid.New(), uuid.New()

	prefs := model.DefaultPreferences(userID, workspaceID)
	prefs.QuietHoursStart = "22:00"
	prefs.QuietHoursEnd = "08:00"
	require.NoError(t, repo.Upsert(prefs))

	svc := newTestPreferenceService(repo, fixedNow(23, 0))

	res, err := svc.Resolve(userID, workspaceID, model.TypeTaskOverdue, model.PriorityUrgent, nil)
	require.NoError(t, err)
	assert.False(t, res.Suppressed)
}

func TestResolveWeekendSuppression(t *testing.T) {
	repo := newFakePreferenceRepo()
	userID, workspaceID := uuid.New(), uuid.New()

	prefs := model.DefaultPreferences(userID, workspaceID)
	prefs.WeekendNotifications = false
	require.NoError(t, repo.Upsert(prefs))

	// 2026-01-10 is a Saturday.
	saturday := func() time.Time {
		return time.Date(2026, time.January, 10, 12, 0, 0, 0, time.UTC)
	}
	svc := newTestPreferenceService(repo, saturday)

	res, err := svc.Resolve(userID, workspaceID, model.TypeComment, model.PriorityMedium, nil)
	require.NoError(t, err)
	assert.True(t, res.Suppressed)
	assert.Equal(t, SuppressWeekend, res.Reason)

	// Urgent still goes through on weekends.
	res, err = svc.Resolve(userID, workspaceID, model.TypeComment, model.PriorityUrgent, nil)
	require.NoError(t, err)
	assert.False(t, res.Suppressed)
}

func TestResolveAppliesPreferenceTimezone(t *testing.T) {
	repo := newFakePreferenceRepo()
	userID, workspaceID := uuid.New(), uuid.New()

	prefs := model.DefaultPreferences(userID, workspaceID)
	prefs.QuietHoursStart = "22:00"
	prefs.QuietHoursEnd = "08:00"
	prefs.Timezone = "Asia/Jakarta" // UTC+7
	require.NoError(t, repo.Upsert(prefs))

	// 16:00 UTC is 23:00 in Jakarta, inside the window.
	svc := newTestPreferenceService(repo, fixedNow(16, 0))

	res, err := svc.Resolve(userID, workspaceID, model.TypeComment, model.PriorityMedium, nil)
	require.NoError(t, err)
	assert.True(t, res.Suppressed)
	assert.Equal(t, SuppressQuietHours, res.Reason)
}

func TestInQuietWindow(t *testing.T) {
	at := func(hour, minute int) time.Time {
		return time.Date(2026, time.January, 7, hour, minute, 0, 0, time.UTC)
	}

	tests := []struct {
		name       string
		now        time.Time
		start, end string
		want       bool
	}{
		{"inside simple window", at(10, 30), "09:00", "17:00", true},
		{"before simple window", at(8, 59), "09:00", "17:00", false},
		{"end is exclusive", at(17, 0), "09:00", "17:00", false},
		{"wraps midnight, late night", at(23, 30), "22:00", "06:00", true},
		{"wraps midnight, early morning", at(2, 0), "22:00", "06:00", true},
		{"wraps midnight, daytime outside", at(12, 0), "22:00", "06:00", false},
		{"start boundary inclusive", at(22, 0), "22:00", "06:00", true},
		{"empty window never matches", at(12, 0), "", "", false},
		{"equal start and end disables", at(12, 0), "12:00", "12:00", false},
		{"malformed clock ignored", at(12, 0), "25:99", "06:00", false},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, inQuietWindow(tc.now, tc.start, tc.end))
		})
	}
}

func TestUpsertRejectsInvalidTimezone(t *testing.T) {
	svc := newTestPreferenceService(newFakePreferenceRepo(), fixedNow(12, 0))

	prefs := model.DefaultPreferences(uuid.Nil, uuid.Nil)
	prefs.Timezone = "Mars/Olympus"

	_, err := svc.Upsert(uuid.New(), uuid.New(), prefs)
	assert.Error(t, err)
}

func TestUpsertPersistsAndGetRoundTrips(t *testing.T) {
	repo := newFakePreferenceRepo()
	svc := newTestPreferenceService(repo, fixedNow(12, 0))
	userID, workspaceID := uuid.New(), uuid.New()

	in := model.DefaultPreferences(uuid.Nil, uuid.Nil)
	in.QuietHoursStart = "21:00"
	in.QuietHoursEnd = "07:00"

	saved, err := svc.Upsert(userID, workspaceID, in)
	require.NoError(t, err)
	assert.Equal(t, userID, saved.UserID)

	got, err := svc.Get(userID, workspaceID)
	require.NoError(t, err)
	assert.Equal(t, "21:00", got.QuietHoursStart)
	assert.Equal(t, "07:00", got.QuietHoursEnd)
}
