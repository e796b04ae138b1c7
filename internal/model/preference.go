package model

import (
	"database/sql/driver"
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

type Frequency string

const (
	FrequencyImmediate Frequency = "immediate"
	FrequencyHourly    Frequency = "hourly"
	FrequencyDaily     Frequency = "daily"
	FrequencyWeekly    Frequency = "weekly"
)

// TypeSetting overrides delivery behavior for a single notification type.
// Zero-value fields fall back to the global settings.
type TypeSetting struct {
	Enabled         bool       `json:"enabled"`
	Channels        StringList `json:"channels,omitempty"`
	QuietHoursStart string     `json:"quiet_hours_start,omitempty"` // "HH:MM"
	QuietHoursEnd   string     `json:"quiet_hours_end,omitempty"`
	Frequency       Frequency  `json:"frequency,omitempty"`
}

// TypeSettings maps notification type -> per-type override, stored as jsonb.
type TypeSettings map[NotificationType]TypeSetting

func (s TypeSettings) Value() (driver.Value, error) {
	if s == nil {
		return nil, nil
	}
	return json.Marshal(s)
}

func (s *TypeSettings) Scan(value interface{}) error {
	return scanJSON(value, s)
}

// NotificationPreferences holds per-user, per-workspace delivery settings.
// At most one row exists per (user, workspace); an absent row means the
// system defaults apply.
type NotificationPreferences struct {
	ID          uuid.UUID `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	UserID      uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_pref_user_workspace" json:"user_id"`
	WorkspaceID uuid.UUID `gorm:"type:uuid;uniqueIndex:idx_pref_user_workspace" json:"workspace_id"`

	Enabled              bool      `gorm:"not null;default:true" json:"enabled"`
	WeekendNotifications bool      `gorm:"not null;default:true" json:"weekend_notifications"`
	EmailDigest          bool      `gorm:"not null;default:false" json:"email_digest"`
	EmailDigestFrequency Frequency `gorm:"type:varchar(20);default:'daily'" json:"email_digest_frequency"`

	QuietHoursStart string `gorm:"type:varchar(5)" json:"quiet_hours_start,omitempty"` // "HH:MM"
	QuietHoursEnd   string `gorm:"type:varchar(5)" json:"quiet_hours_end,omitempty"`
	Timezone        string `gorm:"type:varchar(64);default:'UTC'" json:"timezone"`

	Types TypeSettings `gorm:"type:jsonb" json:"types,omitempty"`

	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

// DefaultChannels is the channel set used when neither the request nor the
// preferences specify one.
func DefaultChannels() StringList {
	return StringList{ChannelInApp, ChannelEmail}
}

// DefaultPreferences returns the settings applied when no row exists yet.
func DefaultPreferences(userID, workspaceID uuid.UUID) *NotificationPreferences {
	return &NotificationPreferences{
		UserID:               userID,
		WorkspaceID:          workspaceID,
		Enabled:              true,
		WeekendNotifications: true,
		EmailDigestFrequency: FrequencyDaily,
		Timezone:             "UTC",
	}
}
