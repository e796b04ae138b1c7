package model

import (
	"time"

	"github.com/google/uuid"
)

type DeviceKind string

const (
	DeviceMobilePush  DeviceKind = "mobile_push"
	DeviceBrowserPush DeviceKind = "browser_push"
)

// DeviceToken is one registered push endpoint. Mobile devices carry an
// opaque provider token; browsers carry an endpoint plus encryption keys.
// Rows are deactivated, never hard-deleted.
type DeviceToken struct {
	ID     uuid.UUID  `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	UserID uuid.UUID  `gorm:"type:uuid;not null;index" json:"user_id"`
	Kind   DeviceKind `gorm:"type:varchar(20);not null" json:"kind"`

	Token     string `gorm:"type:text;index" json:"token,omitempty"`
	Endpoint  string `gorm:"type:text;index" json:"endpoint,omitempty"`
	P256dhKey string `gorm:"type:text" json:"p256dh_key,omitempty"`
	AuthKey   string `gorm:"type:text" json:"auth_key,omitempty"`

	Active     bool      `gorm:"not null;default:true;index" json:"active"`
	LastUsedAt time.Time `json:"last_used_at"`
	CreatedAt  time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt  time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}
