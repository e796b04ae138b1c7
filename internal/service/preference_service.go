package service

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/lifehub-app/notify-engine/internal/model"
	"github.com/lifehub-app/notify-engine/internal/repository"
)

// Suppression reasons reported by Resolve.
const (
	SuppressDisabled   = "notifications_disabled"
	SuppressTypeOff    = "type_disabled"
	SuppressQuietHours = "quiet_hours"
	SuppressWeekend    = "weekend"
)

// Resolution is the dispatcher's answer to "deliver this, and where?".
type Resolution struct {
	Suppressed bool
	Reason     string
	Channels   model.StringList
}

type PreferenceService interface {
	Get(userID, workspaceID uuid.UUID) (*model.NotificationPreferences, error)
	Upsert(userID, workspaceID uuid.UUID, prefs *model.NotificationPreferences) (*model.NotificationPreferences, error)
	Resolve(userID, workspaceID uuid.UUID, notifType model.NotificationType,
		priority model.Priority, requested model.StringList) (Resolution, error)
}

type preferenceService struct {
	repo repository.PreferenceRepository
	now  func() time.Time
}

func NewPreferenceService(repo repository.PreferenceRepository) PreferenceService {
	return &preferenceService{repo: repo, now: time.Now}
}

func (s *preferenceService) Get(userID, workspaceID uuid.UUID) (*model.NotificationPreferences, error) {
	prefs, err := s.repo.GetByUserWorkspace(userID, workspaceID)
	if err != nil {
		return nil, err
	}
	if prefs == nil {
		return model.DefaultPreferences(userID, workspaceID), nil
	}
	return prefs, nil
}

func (s *preferenceService) Upsert(userID, workspaceID uuid.UUID, prefs *model.NotificationPreferences) (*model.NotificationPreferences, error) {
	prefs.UserID = userID
	prefs.WorkspaceID = workspaceID
	if prefs.Timezone == "" {
		prefs.Timezone = "UTC"
	}
	if _, err := time.LoadLocation(prefs.Timezone); err != nil {
		return nil, fmt.Errorf("invalid timezone %q: %w", prefs.Timezone, err)
	}
	if err := s.repo.Upsert(prefs); err != nil {
		return nil, err
	}
	return prefs, nil
}

// Resolve decides whether a notification should be delivered and via which
// channels. Urgent priority bypasses quiet hours so time-critical alerts are
// never silently dropped.
func (s *preferenceService) Resolve(userID, workspaceID uuid.UUID, notifType model.NotificationType,
	priority model.Priority, requested model.StringList) (Resolution, error) {

	prefs, err := s.Get(userID, workspaceID)
	if err != nil {
		return Resolution{}, err
	}

	if !prefs.Enabled {
		return Resolution{Suppressed: true, Reason: SuppressDisabled}, nil
	}

	channels := requested
	var typeSetting *model.TypeSetting
	if setting, ok := prefs.Types[notifType]; ok {
		if !setting.Enabled {
			return Resolution{Suppressed: true, Reason: SuppressTypeOff}, nil
		}
		typeSetting = &setting
		if len(setting.Channels) > 0 {
			channels = setting.Channels
		}
	}
	if len(channels) == 0 {
		channels = model.DefaultChannels()
	}

	if priority != model.PriorityUrgent {
		localNow := s.localNow(prefs.Timezone)

		if !prefs.WeekendNotifications && isWeekend(localNow) {
			return Resolution{Suppressed: true, Reason: SuppressWeekend}, nil
		}

		start, end := prefs.QuietHoursStart, prefs.QuietHoursEnd
		if typeSetting != nil && typeSetting.QuietHoursStart != "" {
			start, end = typeSetting.QuietHoursStart, typeSetting.QuietHoursEnd
		}
		if inQuietWindow(localNow, start, end) {
			return Resolution{Suppressed: true, Reason: SuppressQuietHours}, nil
		}
	}

	return Resolution{Channels: channels}, nil
}

func (s *preferenceService) localNow(timezone string) time.Time {
	loc, err := time.LoadLocation(timezone)
	if err != nil {
		loc = time.UTC
	}
	return s.now().In(loc)
}

func isWeekend(t time.Time) bool {
	return t.Weekday() == time.Saturday || t.Weekday() == time.Sunday
}

// inQuietWindow checks local wall-clock time against an "HH:MM"–"HH:MM"
// window. A window whose start is after its end wraps midnight.
func inQuietWindow(localNow time.Time, start, end string) bool {
	startMin, okStart := parseClock(start)
	endMin, okEnd := parseClock(end)
	if !okStart || !okEnd {
		return false
	}

	nowMin := localNow.Hour()*60 + localNow.Minute()
	if startMin == endMin {
		return false
	}
	if startMin < endMin {
		return nowMin >= startMin && nowMin < endMin
	}
	// wraps midnight, e.g. 22:00-06:00
	return nowMin >= startMin || nowMin < endMin
}

func parseClock(s string) (int, bool) {
	if s == "" {
		return 0, false
	}
	t, err := time.Parse("15:04", s)
	if err != nil {
		return 0, false
	}
	return t.Hour()*60 + t.Minute(), true
}
