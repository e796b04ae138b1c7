package service

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/lifehub-app/notify-engine/internal/dispatch"
	"github.com/lifehub-app/notify-engine/internal/model"
	"github.com/lifehub-app/notify-engine/internal/repository"
)

// fakeNotificationRepo is an in-memory NotificationRepository.
type fakeNotificationRepo struct {
	mu    sync.Mutex
	items map[uuid.UUID]*model.Notification
}

func newFakeNotificationRepo() *fakeNotificationRepo {
	return &fakeNotificationRepo{items: make(map[uuid.UUID]*model.Notification)}
}

func (f *fakeNotificationRepo) Create(n *model.Notification) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if n.ID == uuid.Nil {
		n.ID = uuid.New()
	}
	n.CreatedAt = time.Now()
	clone := *n
	f.items[n.ID] = &clone
	return nil
}

func (f *fakeNotificationRepo) GetByID(id uuid.UUID) (*model.Notification, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	n, ok := f.items[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	clone := *n
	return &clone, nil
}

func (f *fakeNotificationRepo) List(filter repository.ListFilter) ([]model.Notification, int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []model.Notification
	for _, n := range f.items {
		if filter.UserID != uuid.Nil && n.UserID != filter.UserID {
			continue
		}
		if filter.UnreadOnly && n.Status == model.StatusRead {
			continue
		}
		out = append(out, *n)
	}
	return out, int64(len(out)), nil
}

func (f *fakeNotificationRepo) CountUnread(userID, workspaceID uuid.UUID) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var count int64
	for _, n := range f.items {
		if n.UserID == userID && n.Status != model.StatusRead {
			count++
		}
	}
	return count, nil
}

func markRead(n *model.Notification, at time.Time) {
	n.Status = model.StatusRead
	n.ReadAt = &at
	if n.SentAt == nil {
		n.SentAt = &at
	}
}

func (f *fakeNotificationRepo) MarkAsRead(id uuid.UUID, at time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if n, ok := f.items[id]; ok {
		markRead(n, at)
	}
	return nil
}

func (f *fakeNotificationRepo) MarkAllAsRead(userID, workspaceID uuid.UUID, at time.Time) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var affected int64
	for _, n := range f.items {
		if n.UserID == userID && n.Status != model.StatusRead {
			markRead(n, at)
			affected++
		}
	}
	return affected, nil
}

func (f *fakeNotificationRepo) MarkReadByIDs(userID uuid.UUID, ids []uuid.UUID, at time.Time) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var affected int64
	for _, id := range ids {
		n, ok := f.items[id]
		if !ok || n.UserID != userID || n.Status == model.StatusRead {
			continue
		}
		markRead(n, at)
		affected++
	}
	return affected, nil
}

func (f *fakeNotificationRepo) UpdateStatus(id uuid.UUID, status model.NotificationStatus, sentAt *time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if n, ok := f.items[id]; ok {
		n.Status = status
		if sentAt != nil {
			n.SentAt = sentAt
		}
	}
	return nil
}

func (f *fakeNotificationRepo) SoftDelete(id uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.items, id)
	return nil
}

func (f *fakeNotificationRepo) ListDueScheduled(now time.Time, limit int) ([]model.Notification, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []model.Notification
	for _, n := range f.items {
		if n.Status == model.StatusPending && n.ScheduledFor != nil && !n.ScheduledFor.After(now) {
			out = append(out, *n)
		}
	}
	return out, nil
}

func (f *fakeNotificationRepo) Stats(userID, workspaceID uuid.UUID) (*repository.NotificationStats, error) {
	return &repository.NotificationStats{
		ByType:     map[model.NotificationType]int64{},
		ByPriority: map[model.Priority]int64{},
		ByStatus:   map[model.NotificationStatus]int64{},
	}, nil
}

func (f *fakeNotificationRepo) get(id uuid.UUID) *model.Notification {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.items[id]
}

// fakeDeviceRepo is an in-memory DeviceRepository.
type fakeDeviceRepo struct {
	mu      sync.Mutex
	devices map[uuid.UUID]*model.DeviceToken
}

func newFakeDeviceRepo() *fakeDeviceRepo {
	return &fakeDeviceRepo{devices: make(map[uuid.UUID]*model.DeviceToken)}
}

func (f *fakeDeviceRepo) FindByToken(token string) (*model.DeviceToken, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, d := range f.devices {
		if d.Token == token && token != "" {
			clone := *d
			return &clone, nil
		}
	}
	return nil, nil
}

func (f *fakeDeviceRepo) FindByEndpoint(endpoint string) (*model.DeviceToken, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, d := range f.devices {
		if d.Endpoint == endpoint && endpoint != "" {
			clone := *d
			return &clone, nil
		}
	}
	return nil, nil
}

func (f *fakeDeviceRepo) Save(device *model.DeviceToken) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if device.ID == uuid.Nil {
		device.ID = uuid.New()
	}
	clone := *device
	f.devices[device.ID] = &clone
	return nil
}

func (f *fakeDeviceRepo) ActiveByUser(userID uuid.UUID, kind model.DeviceKind) ([]model.DeviceToken, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []model.DeviceToken
	for _, d := range f.devices {
		if d.UserID != userID || !d.Active {
			continue
		}
		if kind != "" && d.Kind != kind {
			continue
		}
		out = append(out, *d)
	}
	return out, nil
}

func (f *fakeDeviceRepo) Deactivate(id uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if d, ok := f.devices[id]; ok {
		d.Active = false
	}
	return nil
}

func (f *fakeDeviceRepo) DeactivateByToken(userID uuid.UUID, token string) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var affected int64
	for _, d := range f.devices {
		if d.UserID == userID && d.Token == token && d.Active {
			d.Active = false
			affected++
		}
	}
	return affected, nil
}

func (f *fakeDeviceRepo) DeactivateByEndpoint(userID uuid.UUID, endpoint string) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var affected int64
	for _, d := range f.devices {
		if d.UserID == userID && d.Endpoint == endpoint && d.Active {
			d.Active = false
			affected++
		}
	}
	return affected, nil
}

func (f *fakeDeviceRepo) TouchLastUsed(id uuid.UUID, at time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if d, ok := f.devices[id]; ok {
		d.LastUsedAt = at
	}
	return nil
}

func (f *fakeDeviceRepo) all() []model.DeviceToken {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []model.DeviceToken
	for _, d := range f.devices {
		out = append(out, *d)
	}
	return out
}

// fakePreferenceRepo is an in-memory PreferenceRepository.
type fakePreferenceRepo struct {
	mu    sync.Mutex
	prefs map[string]*model.NotificationPreferences
}

func newFakePreferenceRepo() *fakePreferenceRepo {
	return &fakePreferenceRepo{prefs: make(map[string]*model.NotificationPreferences)}
}

func prefKey(userID, workspaceID uuid.UUID) string {
	return userID.String() + "/" + workspaceID.String()
}

func (f *fakePreferenceRepo) GetByUserWorkspace(userID, workspaceID uuid.UUID) (*model.NotificationPreferences, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.prefs[prefKey(userID, workspaceID)]
	if !ok {
		return nil, nil
	}
	clone := *p
	return &clone, nil
}

func (f *fakePreferenceRepo) Upsert(prefs *model.NotificationPreferences) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	clone := *prefs
	f.prefs[prefKey(prefs.UserID, prefs.WorkspaceID)] = &clone
	return nil
}

// stubResolver returns a canned resolution for dispatcher tests.
type stubResolver struct {
	resolution Resolution
	err        error
}

func (s *stubResolver) Get(userID, workspaceID uuid.UUID) (*model.NotificationPreferences, error) {
	return model.DefaultPreferences(userID, workspaceID), nil
}

func (s *stubResolver) Upsert(userID, workspaceID uuid.UUID, prefs *model.NotificationPreferences) (*model.NotificationPreferences, error) {
	return prefs, nil
}

func (s *stubResolver) Resolve(userID, workspaceID uuid.UUID, notifType model.NotificationType,
	priority model.Priority, requested model.StringList) (Resolution, error) {
	return s.resolution, s.err
}

// recordingDispatcher captures dispatched notifications.
type recordingDispatcher struct {
	mu         sync.Mutex
	dispatched []uuid.UUID
}

func (d *recordingDispatcher) Dispatch(ctx context.Context, n *model.Notification) []ChannelError {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.dispatched = append(d.dispatched, n.ID)
	return nil
}

func (d *recordingDispatcher) count() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.dispatched)
}

// sender fakes

type fakeEmailSender struct {
	mu   sync.Mutex
	sent []string
	err  error
}

func (f *fakeEmailSender) Send(ctx context.Context, to, subject, htmlBody string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.sent = append(f.sent, to)
	return nil
}

type fakeMobilePush struct {
	mu     sync.Mutex
	tokens []string
	err    error
}

func (f *fakeMobilePush) Send(ctx context.Context, token string, msg dispatch.PushMessage) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.tokens = append(f.tokens, token)
	return nil
}

type fakeBrowserPush struct {
	mu      sync.Mutex
	targets []dispatch.BrowserTarget
	err     error
}

func (f *fakeBrowserPush) Send(ctx context.Context, target dispatch.BrowserTarget, msg dispatch.PushMessage) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.targets = append(f.targets, target)
	return nil
}

type fakeSMS struct {
	mu     sync.Mutex
	phones []string
	err    error
}

func (f *fakeSMS) Send(ctx context.Context, phone, text string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.phones = append(f.phones, phone)
	return nil
}
