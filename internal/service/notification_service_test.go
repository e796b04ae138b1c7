package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lifehub-app/notify-engine/internal/model"
	"github.com/lifehub-app/notify-engine/internal/repository"
	"github.com/lifehub-app/notify-engine/pkg/apperror"
)

type recordingBroadcaster struct {
	mu        sync.Mutex
	userSends []string
	wsSends   []string
}

func (b *recordingBroadcaster) SendToUser(userID uuid.UUID, event string, payload interface{}) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.userSends = append(b.userSends, event)
}

func (b *recordingBroadcaster) SendToWorkspace(workspaceID uuid.UUID, event string, payload interface{}) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.wsSends = append(b.wsSends, event)
}

func (b *recordingBroadcaster) BroadcastSystem(event string, payload interface{}) {}

func newTestNotificationService(repo *fakeNotificationRepo, d Dispatcher) *notificationService {
	return &notificationService{repo: repo, dispatcher: d, now: time.Now}
}

func validInput(userID uuid.UUID) CreateNotificationInput {
	return CreateNotificationInput{
		UserID:   userID,
		Type:     model.TypeComment,
		Title:    "New comment",
		Message:  "Someone replied to your thread",
		Channels: model.StringList{model.ChannelInApp},
	}
}

func TestCreateValidation(t *testing.T) {
	svc := newTestNotificationService(newFakeNotificationRepo(), &recordingDispatcher{})
	userID := uuid.New()

	_, err := svc.Create(context.Background(), CreateNotificationInput{Type: model.TypeComment, Title: "x"})
	assert.True(t, errors.Is(err, apperror.ErrInvalidInput), "missing user id")

	in := validInput(userID)
	in.Title = ""
	_, err = svc.Create(context.Background(), in)
	assert.True(t, errors.Is(err, apperror.ErrInvalidInput), "missing title")

	in = validInput(userID)
	in.Type = "smoke_signal"
	_, err = svc.Create(context.Background(), in)
	assert.True(t, errors.Is(err, apperror.ErrInvalidInput), "unknown type")

	in = validInput(userID)
	in.Priority = "mild"
	_, err = svc.Create(context.Background(), in)
	assert.True(t, errors.Is(err, apperror.ErrInvalidInput), "unknown priority")

	in = validInput(userID)
	in.Channels = model.StringList{"telegraph"}
	_, err = svc.Create(context.Background(), in)
	assert.True(t, errors.Is(err, apperror.ErrInvalidInput), "unknown channel")
}

func TestCreateDefaultsAndImmediateDispatch(t *testing.T) {
	repo := newFakeNotificationRepo()
	disp := &recordingDispatcher{}
	svc := newTestNotificationService(repo, disp)
	userID := uuid.New()

	in := validInput(userID)
	in.Priority = ""
	in.Channels = nil

	n, err := svc.Create(context.Background(), in)
	require.NoError(t, err)

	assert.Equal(t, model.PriorityMedium, n.Priority)
	assert.Equal(t, model.DefaultChannels(), n.Channels)
	assert.Equal(t, 1, disp.count(), "due notification dispatches immediately")
}

func TestCreateScheduledStaysPending(t *testing.T) {
	repo := newFakeNotificationRepo()
	disp := &recordingDispatcher{}
	svc := newTestNotificationService(repo, disp)

	future := time.Now().Add(2 * time.Hour)
	in := validInput(uuid.New())
	in.ScheduledFor = &future

	n, err := svc.Create(context.Background(), in)
	require.NoError(t, err)

	assert.Equal(t, model.StatusPending, n.Status)
	assert.Equal(t, 0, disp.count(), "future notification waits for the scheduler")
}

func TestCreateBroadcastsToUserAndWorkspace(t *testing.T) {
	repo := newFakeNotificationRepo()
	svc := newTestNotificationService(repo, &recordingDispatcher{})
	b := &recordingBroadcaster{}
	svc.SetBroadcaster(b)

	in := validInput(uuid.New())
	in.WorkspaceID = uuid.New()

	_, err := svc.Create(context.Background(), in)
	require.NoError(t, err)

	assert.Equal(t, []string{EventNotificationNew}, b.userSends)
	assert.Equal(t, []string{EventNotificationWorkspace}, b.wsSends)
}

func TestDispatchDueScheduledReleasesOnlyDue(t *testing.T) {
	repo := newFakeNotificationRepo()
	disp := &recordingDispatcher{}
	svc := newTestNotificationService(repo, disp)
	userID := uuid.New()

	past := time.Now().Add(-time.Minute)
	future := time.Now().Add(time.Hour)

	due := baseNotification(userID)
	due.ScheduledFor = &past
	require.NoError(t, repo.Create(due))

	notDue := baseNotification(userID)
	notDue.ScheduledFor = &future
	require.NoError(t, repo.Create(notDue))

	released, err := svc.DispatchDueScheduled(context.Background(), 0)
	require.NoError(t, err)

	assert.Equal(t, 1, released)
	assert.Equal(t, []uuid.UUID{due.ID}, disp.dispatched)
}

func TestMarkAsReadIsIdempotent(t *testing.T) {
	repo := newFakeNotificationRepo()
	svc := newTestNotificationService(repo, &recordingDispatcher{})
	userID := uuid.New()

	n := baseNotification(userID)
	n.Status = model.StatusSent
	require.NoError(t, repo.Create(n))

	require.NoError(t, svc.MarkAsRead(userID, n.ID))
	first := repo.get(n.ID)
	require.NotNil(t, first.ReadAt)
	firstReadAt := *first.ReadAt

	require.NoError(t, svc.MarkAsRead(userID, n.ID))
	assert.Equal(t, firstReadAt, *repo.get(n.ID).ReadAt, "second read keeps the original timestamp")
}

func TestMarkAllAsReadCountsOnce(t *testing.T) {
	repo := newFakeNotificationRepo()
	svc := newTestNotificationService(repo, &recordingDispatcher{})
	userID, workspaceID := uuid.New(), uuid.New()

	for i := 0; i < 3; i++ {
		n := baseNotification(userID)
		n.WorkspaceID = workspaceID
		n.Status = model.StatusSent
		require.NoError(t, repo.Create(n))
	}

	affected, err := svc.MarkAllAsRead(userID, workspaceID)
	require.NoError(t, err)
	assert.Equal(t, int64(3), affected)

	affected, err = svc.MarkAllAsRead(userID, workspaceID)
	require.NoError(t, err)
	assert.Equal(t, int64(0), affected, "repeat call finds nothing unread")

	unread, err := svc.UnreadCount(userID, workspaceID)
	require.NoError(t, err)
	assert.Equal(t, int64(0), unread)
}

func TestReadAlwaysCarriesSentAt(t *testing.T) {
	repo := newFakeNotificationRepo()
	svc := newTestNotificationService(repo, &recordingDispatcher{})
	userID := uuid.New()

	// A future-scheduled notification is still pending with no sent_at.
	future := time.Now().Add(2 * time.Hour)
	scheduled := baseNotification(userID)
	scheduled.ScheduledFor = &future
	require.NoError(t, repo.Create(scheduled))

	affected, err := svc.MarkAllAsRead(userID, uuid.Nil)
	require.NoError(t, err)
	require.Equal(t, int64(1), affected)

	stored := repo.get(scheduled.ID)
	assert.Equal(t, model.StatusRead, stored.Status)
	require.NotNil(t, stored.SentAt, "read implies sent_at is set")

	// Reading supersedes the pending dispatch: the scheduled release must
	// not pick the row up again.
	due, err := repo.ListDueScheduled(future.Add(time.Minute), 10)
	require.NoError(t, err)
	assert.Empty(t, due)

	// Same invariant through the single-id path.
	pending := baseNotification(userID)
	require.NoError(t, repo.Create(pending))
	require.NoError(t, svc.MarkAsRead(userID, pending.ID))
	require.NotNil(t, repo.get(pending.ID).SentAt)
}

func TestMarkManyAsRead(t *testing.T) {
	repo := newFakeNotificationRepo()
	svc := newTestNotificationService(repo, &recordingDispatcher{})
	owner, stranger := uuid.New(), uuid.New()

	first := baseNotification(owner)
	second := baseNotification(owner)
	theirs := baseNotification(stranger)
	for _, n := range []*model.Notification{first, second, theirs} {
		n.Status = model.StatusSent
		require.NoError(t, repo.Create(n))
	}

	updated, err := svc.MarkManyAsRead(owner, []uuid.UUID{first.ID, second.ID, theirs.ID, uuid.New()})
	require.NoError(t, err)
	assert.Equal(t, int64(2), updated, "only the caller's existing rows count")

	assert.Equal(t, model.StatusRead, repo.get(first.ID).Status)
	assert.Equal(t, model.StatusRead, repo.get(second.ID).Status)
	assert.Equal(t, model.StatusSent, repo.get(theirs.ID).Status, "other users' rows untouched")

	_, err = svc.MarkManyAsRead(owner, nil)
	assert.True(t, errors.Is(err, apperror.ErrInvalidInput))
}

func TestMarkDeliveredOnlyMovesSentForward(t *testing.T) {
	repo := newFakeNotificationRepo()
	svc := newTestNotificationService(repo, &recordingDispatcher{})
	userID := uuid.New()

	n := baseNotification(userID)
	n.Status = model.StatusSent
	require.NoError(t, repo.Create(n))

	require.NoError(t, svc.MarkDelivered(userID, n.ID))
	assert.Equal(t, model.StatusDelivered, repo.get(n.ID).Status)

	// An ack arriving after the user already read it must not regress.
	readAt := time.Now()
	require.NoError(t, repo.MarkAsRead(n.ID, readAt))
	require.NoError(t, svc.MarkDelivered(userID, n.ID))
	assert.Equal(t, model.StatusRead, repo.get(n.ID).Status)
}

func TestOwnershipChecks(t *testing.T) {
	repo := newFakeNotificationRepo()
	svc := newTestNotificationService(repo, &recordingDispatcher{})
	owner, stranger := uuid.New(), uuid.New()

	n := baseNotification(owner)
	require.NoError(t, repo.Create(n))

	assert.True(t, errors.Is(svc.MarkAsRead(stranger, n.ID), apperror.ErrForbidden))
	assert.True(t, errors.Is(svc.Delete(stranger, n.ID), apperror.ErrForbidden))
	assert.True(t, errors.Is(svc.MarkAsRead(owner, uuid.New()), apperror.ErrNotFound))
}

func TestListIncludesUnreadCount(t *testing.T) {
	repo := newFakeNotificationRepo()
	svc := newTestNotificationService(repo, &recordingDispatcher{})
	userID := uuid.New()

	read := baseNotification(userID)
	read.Status = model.StatusRead
	require.NoError(t, repo.Create(read))

	unread := baseNotification(userID)
	unread.Status = model.StatusSent
	require.NoError(t, repo.Create(unread))

	result, err := svc.List(repository.ListFilter{UserID: userID})
	require.NoError(t, err)

	assert.Equal(t, int64(2), result.Total)
	assert.Equal(t, int64(1), result.UnreadCount)
}

func TestRelayChannelNaming(t *testing.T) {
	userID := uuid.MustParse("6ba7b810-9dad-11d1-80b4-00c04fd430c8")
	assert.Equal(t, "user_notifications:6ba7b810-9dad-11d1-80b4-00c04fd430c8", RelayChannel(userID))
}
