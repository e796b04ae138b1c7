package repository

import (
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/lifehub-app/notify-engine/internal/model"
)

type DeviceRepository interface {
	// FindByToken and FindByEndpoint include inactive rows so registration
	// can reactivate instead of duplicating. They return nil when absent.
	FindByToken(token string) (*model.DeviceToken, error)
	FindByEndpoint(endpoint string) (*model.DeviceToken, error)
	Save(device *model.DeviceToken) error
	ActiveByUser(userID uuid.UUID, kind model.DeviceKind) ([]model.DeviceToken, error)
	Deactivate(id uuid.UUID) error
	DeactivateByToken(userID uuid.UUID, token string) (int64, error)
	DeactivateByEndpoint(userID uuid.UUID, endpoint string) (int64, error)
	TouchLastUsed(id uuid.UUID, at time.Time) error
}

type deviceRepository struct {
	db *gorm.DB
}

func NewDeviceRepository(db *gorm.DB) DeviceRepository {
	return &deviceRepository{db: db}
}

func (r *deviceRepository) FindByToken(token string) (*model.DeviceToken, error) {
	return r.findOne("token = ?", token)
}

func (r *deviceRepository) FindByEndpoint(endpoint string) (*model.DeviceToken, error) {
	return r.findOne("endpoint = ?", endpoint)
}

func (r *deviceRepository) findOne(query string, arg interface{}) (*model.DeviceToken, error) {
	var device model.DeviceToken
	err := r.db.Where(query, arg).First(&device).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &device, nil
}

func (r *deviceRepository) Save(device *model.DeviceToken) error {
	return r.db.Save(device).Error
}

func (r *deviceRepository) ActiveByUser(userID uuid.UUID, kind model.DeviceKind) ([]model.DeviceToken, error) {
	q := r.db.Where("user_id = ? AND active = ?", userID, true)
	if kind != "" {
		q = q.Where("kind = ?", kind)
	}
	var devices []model.DeviceToken
	err := q.Find(&devices).Error
	return devices, err
}

func (r *deviceRepository) Deactivate(id uuid.UUID) error {
	return r.db.Model(&model.DeviceToken{}).Where("id = ?", id).Update("active", false).Error
}

func (r *deviceRepository) DeactivateByToken(userID uuid.UUID, token string) (int64, error) {
	res := r.db.Model(&model.DeviceToken{}).
		Where("user_id = ? AND token = ? AND active = ?", userID, token, true).
		Update("active", false)
	return res.RowsAffected, res.Error
}

func (r *deviceRepository) DeactivateByEndpoint(userID uuid.UUID, endpoint string) (int64, error) {
	res := r.db.Model(&model.DeviceToken{}).
		Where("user_id = ? AND endpoint = ? AND active = ?", userID, endpoint, true).
		Update("active", false)
	return res.RowsAffected, res.Error
}

func (r *deviceRepository) TouchLastUsed(id uuid.UUID, at time.Time) error {
	return r.db.Model(&model.DeviceToken{}).Where("id = ?", id).Update("last_used_at", at).Error
}
