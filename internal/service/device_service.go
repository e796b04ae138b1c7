package service

import (
	"time"

	"github.com/google/uuid"

	"github.com/lifehub-app/notify-engine/internal/model"
	"github.com/lifehub-app/notify-engine/internal/repository"
	"github.com/lifehub-app/notify-engine/pkg/apperror"
)

// RegisterDeviceInput carries kind-specific fields; mobile push requires a
// token, browser push requires endpoint plus keys.
type RegisterDeviceInput struct {
	Kind      model.DeviceKind
	Token     string
	Endpoint  string
	P256dhKey string
	AuthKey   string
}

type DeviceService interface {
	Register(userID uuid.UUID, input RegisterDeviceInput) (*model.DeviceToken, error)
	Unregister(userID uuid.UUID, token, endpoint string) error
	ActiveForUser(userID uuid.UUID, kind model.DeviceKind) ([]model.DeviceToken, error)
}

type deviceService struct {
	repo repository.DeviceRepository
	now  func() time.Time
}

func NewDeviceService(repo repository.DeviceRepository) DeviceService {
	return &deviceService{repo: repo, now: time.Now}
}

func (s *deviceService) Register(userID uuid.UUID, input RegisterDeviceInput) (*model.DeviceToken, error) {
	var existing *model.DeviceToken
	var err error

	switch input.Kind {
	case model.DeviceMobilePush:
		if input.Token == "" {
			return nil, apperror.Invalid("mobile_push registration requires a token")
		}
		existing, err = s.repo.FindByToken(input.Token)
	case model.DeviceBrowserPush:
		if input.Endpoint == "" || input.P256dhKey == "" || input.AuthKey == "" {
			return nil, apperror.Invalid("browser_push registration requires endpoint, p256dh_key and auth_key")
		}
		existing, err = s.repo.FindByEndpoint(input.Endpoint)
	default:
		return nil, apperror.Invalid("unknown device kind %q", input.Kind)
	}
	if err != nil {
		return nil, err
	}

	// Re-registration reactivates and refreshes rather than duplicating.
	if existing != nil {
		existing.UserID = userID
		existing.Kind = input.Kind
		existing.Token = input.Token
		existing.Endpoint = input.Endpoint
		existing.P256dhKey = input.P256dhKey
		existing.AuthKey = input.AuthKey
		existing.Active = true
		existing.LastUsedAt = s.now()
		if err := s.repo.Save(existing); err != nil {
			return nil, err
		}
		return existing, nil
	}

	device := &model.DeviceToken{
		UserID:     userID,
		Kind:       input.Kind,
		Token:      input.Token,
		Endpoint:   input.Endpoint,
		P256dhKey:  input.P256dhKey,
		AuthKey:    input.AuthKey,
		Active:     true,
		LastUsedAt: s.now(),
	}
	if err := s.repo.Save(device); err != nil {
		return nil, err
	}
	return device, nil
}

func (s *deviceService) Unregister(userID uuid.UUID, token, endpoint string) error {
	if token == "" && endpoint == "" {
		return apperror.Invalid("token or endpoint is required")
	}

	var affected int64
	var err error
	if token != "" {
		affected, err = s.repo.DeactivateByToken(userID, token)
	} else {
		affected, err = s.repo.DeactivateByEndpoint(userID, endpoint)
	}
	if err != nil {
		return err
	}
	if affected == 0 {
		return apperror.ErrNotFound
	}
	return nil
}

func (s *deviceService) ActiveForUser(userID uuid.UUID, kind model.DeviceKind) ([]model.DeviceToken, error) {
	return s.repo.ActiveByUser(userID, kind)
}
