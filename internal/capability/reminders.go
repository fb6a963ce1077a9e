package capability

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"factotum/internal/domain"
	"factotum/internal/tool"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"
)

// ReminderScheduler fires persisted reminders back through the message bus.
// Recurring reminders use cron expressions; one-shot reminders use a timer
// and are deleted after delivery.
type ReminderScheduler struct {
	store  domain.ReminderStore
	bus    domain.MessageBus
	logger *slog.Logger
	cron   *cron.Cron

	mu      sync.Mutex
	entries map[string]cron.EntryID
	timers  map[string]*time.Timer
}

func NewReminderScheduler(store domain.ReminderStore, bus domain.MessageBus, logger *slog.Logger) *ReminderScheduler {
	return &ReminderScheduler{
		store:   store,
		bus:     bus,
		logger:  logger,
		cron:    cron.New(),
		entries: make(map[string]cron.EntryID),
		timers:  make(map[string]*time.Timer),
	}
}

// Start loads persisted reminders, schedules them, and blocks until the
// context is cancelled.
func (s *ReminderScheduler) Start(ctx context.Context) error {
	rems, err := s.store.ListReminders(ctx)
	if err != nil {
		return fmt.Errorf("load reminders: %w", err)
	}
	for _, rem := range rems {
		if err := s.schedule(rem); err != nil {
			s.logger.Warn("skipping unschedulable reminder", "id", rem.ID, "err", err)
		}
	}
	s.cron.Start()
	s.logger.Info("reminder scheduler started", "loaded", len(rems))

	<-ctx.Done()
	s.stop()
	return nil
}

func (s *ReminderScheduler) stop() {
	stopCtx := s.cron.Stop()
	<-stopCtx.Done()

	s.mu.Lock()
	for id, timer := range s.timers {
		timer.Stop()
		delete(s.timers, id)
	}
	s.mu.Unlock()
	s.logger.Info("reminder scheduler stopped")
}

// Add persists and schedules a reminder.
func (s *ReminderScheduler) Add(ctx context.Context, rem domain.Reminder) error {
	if err := s.schedule(rem); err != nil {
		return err
	}
	if err := s.store.SaveReminder(ctx, rem); err != nil {
		s.unschedule(rem.ID)
		return fmt.Errorf("save reminder: %w", err)
	}
	return nil
}

// Cancel unschedules and deletes a reminder.
func (s *ReminderScheduler) Cancel(ctx context.Context, id string) error {
	s.unschedule(id)
	return s.store.DeleteReminder(ctx, id)
}

func (s *ReminderScheduler) schedule(rem domain.Reminder) error {
	switch {
	case rem.CronExpr != "":
		entryID, err := s.cron.AddFunc(rem.CronExpr, func() { s.fire(rem, false) })
		if err != nil {
			return fmt.Errorf("invalid cron expression %q: %w", rem.CronExpr, err)
		}
		s.mu.Lock()
		s.entries[rem.ID] = entryID
		s.mu.Unlock()
		return nil

	case rem.FireAt != nil:
		delay := time.Until(*rem.FireAt)
		if delay < 0 {
			// Missed while the process was down; deliver promptly.
			delay = time.Second
		}
		timer := time.AfterFunc(delay, func() { s.fire(rem, true) })
		s.mu.Lock()
		s.timers[rem.ID] = timer
		s.mu.Unlock()
		return nil

	default:
		return fmt.Errorf("reminder %s has neither cron expression nor fire time", rem.ID)
	}
}

func (s *ReminderScheduler) unschedule(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if entryID, ok := s.entries[id]; ok {
		s.cron.Remove(entryID)
		delete(s.entries, id)
	}
	if timer, ok := s.timers[id]; ok {
		timer.Stop()
		delete(s.timers, id)
	}
}

func (s *ReminderScheduler) fire(rem domain.Reminder, oneShot bool) {
	s.logger.Info("reminder fired", "id", rem.ID, "channel", rem.Channel, "chat_id", rem.ChatID)
	s.bus.SendOutbound(domain.OutboundMessage{
		Channel: rem.Channel,
		ChatID:  rem.ChatID,
		Content: "Reminder: " + rem.Message,
	})
	if oneShot {
		s.unschedule(rem.ID)
		if err := s.store.DeleteReminder(context.Background(), rem.ID); err != nil {
			s.logger.Warn("failed to delete fired reminder", "id", rem.ID, "err", err)
		}
	}
}

// NewReminders builds the reminders agent on top of a running scheduler.
func NewReminders(sched *ReminderScheduler) *Agent {
	create := tool.New("reminder_create",
		"Schedule a reminder. Provide either delay_minutes for a one-shot reminder or cron for a recurring one (standard 5-field cron expression). channel and chat_id identify where to deliver it; take them from the session info.",
		tool.NewSchema(
			tool.Field{Name: "message", Type: tool.TypeString, Description: "What to remind the user about", Required: true},
			tool.Field{Name: "channel", Type: tool.TypeString, Description: "Delivery channel of the current session", Required: true},
			tool.Field{Name: "chat_id", Type: tool.TypeString, Description: "Chat ID of the current session", Required: true},
			tool.Field{Name: "delay_minutes", Type: tool.TypeNumber, Description: "Minutes from now for a one-shot reminder"},
			tool.Field{Name: "cron", Type: tool.TypeString, Description: "Cron expression for a recurring reminder, e.g. '0 9 * * 1-5'"},
		),
		sched.createTool,
	)

	list := tool.New("reminder_list",
		"List all scheduled reminders with their IDs.",
		tool.NewSchema(),
		sched.listTool,
	)

	cancel := tool.New("reminder_cancel",
		"Cancel a scheduled reminder by ID.",
		tool.NewSchema(
			tool.Field{Name: "id", Type: tool.TypeString, Description: "Reminder ID from reminder_list", Required: true},
		),
		sched.cancelTool,
	)

	return New("reminders",
		"One-shot and recurring reminders delivered to the user's chat.",
		"Use the reminder tools when the user asks to be reminded of something. Confirm the scheduled time back to the user in plain language.",
		create, list, cancel,
	)
}

type reminderCreateArgs struct {
	Message      string  `json:"message"`
	Channel      string  `json:"channel"`
	ChatID       string  `json:"chat_id"`
	DelayMinutes float64 `json:"delay_minutes"`
	Cron         string  `json:"cron"`
}

func (a reminderCreateArgs) Validate() error {
	if a.Cron == "" && a.DelayMinutes <= 0 {
		return fmt.Errorf("provide either cron or a positive delay_minutes")
	}
	if a.Cron != "" && a.DelayMinutes > 0 {
		return fmt.Errorf("provide cron or delay_minutes, not both")
	}
	return nil
}

type reminderCancelArgs struct {
	ID string `json:"id"`
}

func (s *ReminderScheduler) createTool(ctx context.Context, args reminderCreateArgs) (string, error) {
	rem := domain.Reminder{
		ID:        uuid.NewString(),
		Channel:   args.Channel,
		ChatID:    args.ChatID,
		Message:   args.Message,
		CronExpr:  args.Cron,
		CreatedAt: time.Now(),
	}
	if args.DelayMinutes > 0 {
		at := time.Now().Add(time.Duration(args.DelayMinutes * float64(time.Minute)))
		rem.FireAt = &at
	}
	if err := s.Add(ctx, rem); err != nil {
		return "", err
	}
	if rem.FireAt != nil {
		return fmt.Sprintf("Reminder %s scheduled for %s", rem.ID, rem.FireAt.Format(time.RFC1123)), nil
	}
	return fmt.Sprintf("Recurring reminder %s scheduled (%s)", rem.ID, rem.CronExpr), nil
}

func (s *ReminderScheduler) listTool(ctx context.Context, args struct{}) (string, error) {
	rems, err := s.store.ListReminders(ctx)
	if err != nil {
		return "", fmt.Errorf("list reminders: %w", err)
	}
	if len(rems) == 0 {
		return "No reminders scheduled.", nil
	}
	sort.Slice(rems, func(i, j int) bool { return rems[i].CreatedAt.Before(rems[j].CreatedAt) })
	var lines []string
	for _, rem := range rems {
		when := rem.CronExpr
		if rem.FireAt != nil {
			when = rem.FireAt.Format(time.RFC1123)
		}
		lines = append(lines, fmt.Sprintf("- [%s] %q at %s", rem.ID, rem.Message, when))
	}
	return strings.Join(lines, "\n"), nil
}

func (s *ReminderScheduler) cancelTool(ctx context.Context, args reminderCancelArgs) (string, error) {
	if err := s.Cancel(ctx, args.ID); err != nil {
		return "", fmt.Errorf("cancel reminder: %w", err)
	}
	return fmt.Sprintf("Reminder %s cancelled.", args.ID), nil
}
