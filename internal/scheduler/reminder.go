package scheduler

import (
	"context"
	"fmt"
	"log"
	"math"
	"time"

	"github.com/google/uuid"

	"github.com/lifehub-app/notify-engine/internal/model"
	"github.com/lifehub-app/notify-engine/internal/service"
)

// EntitySource supplies due-dated entities. Any domain whose records expose
// a due date, a completion status and assignees can feed the scanner;
// repository.TaskRepository is the canonical implementation.
type EntitySource interface {
	DueBetween(from, to time.Time) ([]model.Task, error)
}

// Notifier is the slice of the notification service the scanner emits into.
type Notifier interface {
	Create(ctx context.Context, input service.CreateNotificationInput) (*model.Notification, error)
}

// ScannerConfig mirrors the reminder section of the app config.
type ScannerConfig struct {
	BeforeDueOffsets    []int // minutes before due
	AfterDueOffsets     []int // minutes after due
	ToleranceMinutes    int
	MaxOverdueReminders int
	QuietStart          string // "HH:MM" in Timezone, empty disables
	QuietEnd            string
	Timezone            string
}

// ReminderScanner turns approaching and missed due dates into notification
// creation requests, deduplicated through the ledger.
type ReminderScanner struct {
	source   EntitySource
	notifier Notifier
	ledger   DedupLedger
	cfg      ScannerConfig
	now      func() time.Time
}

func NewReminderScanner(source EntitySource, notifier Notifier, ledger DedupLedger, cfg ScannerConfig) *ReminderScanner {
	if cfg.ToleranceMinutes <= 0 {
		cfg.ToleranceMinutes = 2
	}
	return &ReminderScanner{
		source:   source,
		notifier: notifier,
		ledger:   ledger,
		cfg:      cfg,
		now:      time.Now,
	}
}

// ScanDueSoon emits a due-soon reminder when a before-due offset boundary is
// crossed within the tolerance window.
func (s *ReminderScanner) ScanDueSoon(ctx context.Context) error {
	if s.inQuietHours() {
		return nil
	}
	if len(s.cfg.BeforeDueOffsets) == 0 {
		return nil
	}

	now := s.now()
	horizon := time.Duration(maxOffset(s.cfg.BeforeDueOffsets)+s.cfg.ToleranceMinutes) * time.Minute
	tasks, err := s.source.DueBetween(now, now.Add(horizon))
	if err != nil {
		return fmt.Errorf("due-soon scan: %w", err)
	}

	for i := range tasks {
		task := &tasks[i]
		if err := s.scanTaskDueSoon(ctx, task, now); err != nil {
			// One entity failing must not abort the batch.
			log.Printf("due-soon scan: task %s: %v", task.ID, err)
		}
	}
	return nil
}

func (s *ReminderScanner) scanTaskDueSoon(ctx context.Context, task *model.Task, now time.Time) error {
	minutesToDue := int(math.Round(task.DueDate.Sub(now).Minutes()))

	for _, offset := range s.cfg.BeforeDueOffsets {
		if abs(minutesToDue-offset) > s.cfg.ToleranceMinutes {
			continue
		}

		won, err := s.ledger.Mark(ctx, task.ID, KindDueSoon, offset)
		if err != nil {
			return err
		}
		if !won {
			// Another worker already claimed this boundary.
			continue
		}

		s.emit(ctx, task, model.TypeTaskDue, duePriority(offset), dueSoonTitle(task, offset), map[string]interface{}{
			"entity_name":    task.Title,
			"due_date":       task.DueDate.Format(time.RFC3339),
			"minutes_to_due": minutesToDue,
			"offset_minutes": offset,
		})
	}
	return nil
}

// ScanOverdue emits overdue reminders symmetrically to ScanDueSoon, capped
// per entity.
func (s *ReminderScanner) ScanOverdue(ctx context.Context) error {
	if s.inQuietHours() {
		return nil
	}
	if len(s.cfg.AfterDueOffsets) == 0 {
		return nil
	}

	now := s.now()
	horizon := time.Duration(maxOffset(s.cfg.AfterDueOffsets)+s.cfg.ToleranceMinutes) * time.Minute
	tasks, err := s.source.DueBetween(now.Add(-horizon), now)
	if err != nil {
		return fmt.Errorf("overdue scan: %w", err)
	}

	for i := range tasks {
		task := &tasks[i]
		if err := s.scanTaskOverdue(ctx, task, now); err != nil {
			log.Printf("overdue scan: task %s: %v", task.ID, err)
		}
	}
	return nil
}

func (s *ReminderScanner) scanTaskOverdue(ctx context.Context, task *model.Task, now time.Time) error {
	minutesOverdue := int(math.Round(now.Sub(*task.DueDate).Minutes()))

	for _, offset := range s.cfg.AfterDueOffsets {
		if abs(minutesOverdue-offset) > s.cfg.ToleranceMinutes {
			continue
		}

		if s.cfg.MaxOverdueReminders > 0 {
			count, err := s.ledger.OverdueCount(ctx, task.ID)
			if err != nil {
				return err
			}
			if count >= s.cfg.MaxOverdueReminders {
				continue
			}
		}

		won, err := s.ledger.Mark(ctx, task.ID, KindOverdue, offset)
		if err != nil {
			return err
		}
		if !won {
			continue
		}
		if err := s.ledger.IncrOverdue(ctx, task.ID); err != nil {
			return err
		}

		s.emit(ctx, task, model.TypeTaskOverdue, overduePriority(offset), overdueTitle(task, offset), map[string]interface{}{
			"entity_name":     task.Title,
			"due_date":        task.DueDate.Format(time.RFC3339),
			"minutes_overdue": minutesOverdue,
			"offset_minutes":  offset,
		})
	}
	return nil
}

// emit creates one notification per assignee. A failed create is logged and
// the remaining assignees still get theirs.
func (s *ReminderScanner) emit(ctx context.Context, task *model.Task, notifType model.NotificationType,
	priority model.Priority, title string, metadata map[string]interface{}) {

	entityID := task.ID
	for _, assignee := range task.Assignees {
		_, err := s.notifier.Create(ctx, service.CreateNotificationInput{
			UserID:      assignee,
			WorkspaceID: task.WorkspaceID,
			Type:        notifType,
			Priority:    priority,
			Title:       title,
			Message:     task.Title,
			Metadata:    metadata,
			EntityID:    &entityID,
			EntityType:  "task",
			// The scanner knows assignee ids, not email addresses or phone
			// numbers, so it requests only the channels it can satisfy.
			Channels: model.StringList{model.ChannelInApp, model.ChannelPush},
		})
		if err != nil {
			log.Printf("reminder for task %s, assignee %s: %v", task.ID, assignee, err)
		}
	}
}

// Cleanup is the daily pass: sweep expired ledger entries.
func (s *ReminderScanner) Cleanup(ctx context.Context) error {
	return s.ledger.PurgeExpired(ctx)
}

// EntityCompleted purges all reminder state for a finished or cancelled
// entity.
func (s *ReminderScanner) EntityCompleted(ctx context.Context, entityID uuid.UUID) error {
	return s.ledger.PurgeEntity(ctx, entityID)
}

func (s *ReminderScanner) inQuietHours() bool {
	if s.cfg.QuietStart == "" || s.cfg.QuietEnd == "" {
		return false
	}
	loc, err := time.LoadLocation(s.cfg.Timezone)
	if err != nil {
		loc = time.UTC
	}
	localNow := s.now().In(loc)

	start, okStart := parseClock(s.cfg.QuietStart)
	end, okEnd := parseClock(s.cfg.QuietEnd)
	if !okStart || !okEnd || start == end {
		return false
	}

	nowMin := localNow.Hour()*60 + localNow.Minute()
	if start < end {
		return nowMin >= start && nowMin < end
	}
	return nowMin >= start || nowMin < end
}

func parseClock(s string) (int, bool) {
	t, err := time.Parse("15:04", s)
	if err != nil {
		return 0, false
	}
	return t.Hour()*60 + t.Minute(), true
}

func dueSoonTitle(task *model.Task, offsetMinutes int) string {
	return fmt.Sprintf("%q is due in %s", task.Title, humanizeMinutes(offsetMinutes))
}

func overdueTitle(task *model.Task, offsetMinutes int) string {
	return fmt.Sprintf("%q is %s overdue", task.Title, humanizeMinutes(offsetMinutes))
}

func humanizeMinutes(m int) string {
	switch {
	case m >= 1440 && m%1440 == 0:
		days := m / 1440
		if days == 1 {
			return "1 day"
		}
		return fmt.Sprintf("%d days", days)
	case m >= 60 && m%60 == 0:
		hours := m / 60
		if hours == 1 {
			return "1 hour"
		}
		return fmt.Sprintf("%d hours", hours)
	default:
		return fmt.Sprintf("%d minutes", m)
	}
}

func duePriority(offsetMinutes int) model.Priority {
	if offsetMinutes <= 60 {
		return model.PriorityHigh
	}
	return model.PriorityMedium
}

func overduePriority(offsetMinutes int) model.Priority {
	if offsetMinutes >= 1440 {
		return model.PriorityUrgent
	}
	return model.PriorityHigh
}

func maxOffset(offsets []int) int {
	max := 0
	for _, o := range offsets {
		if o > max {
			max = o
		}
	}
	return max
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}
