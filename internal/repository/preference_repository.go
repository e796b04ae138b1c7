package repository

import (
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/lifehub-app/notify-engine/internal/model"
)

type PreferenceRepository interface {
	// GetByUserWorkspace returns nil when no row exists yet.
	GetByUserWorkspace(userID, workspaceID uuid.UUID) (*model.NotificationPreferences, error)
	Upsert(prefs *model.NotificationPreferences) error
}

type preferenceRepository struct {
	db *gorm.DB
}

func NewPreferenceRepository(db *gorm.DB) PreferenceRepository {
	return &preferenceRepository{db: db}
}

func (r *preferenceRepository) GetByUserWorkspace(userID, workspaceID uuid.UUID) (*model.NotificationPreferences, error) {
	var prefs model.NotificationPreferences
	err := r.db.Where("user_id = ? AND workspace_id = ?", userID, workspaceID).First(&prefs).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &prefs, nil
}

func (r *preferenceRepository) Upsert(prefs *model.NotificationPreferences) error {
	return r.db.Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "user_id"}, {Name: "workspace_id"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"enabled", "weekend_notifications", "email_digest",
			"email_digest_frequency", "quiet_hours_start", "quiet_hours_end",
			"timezone", "types", "updated_at",
		}),
	}).Create(prefs).Error
}
