package capability

import (
	"context"
	"io"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"factotum/internal/domain"
)

type fakeReminderStore struct {
	mu        sync.Mutex
	reminders map[string]domain.Reminder
}

func newFakeReminderStore() *fakeReminderStore {
	return &fakeReminderStore{reminders: map[string]domain.Reminder{}}
}

func (f *fakeReminderStore) SaveReminder(ctx context.Context, r domain.Reminder) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.reminders[r.ID] = r
	return nil
}

func (f *fakeReminderStore) ListReminders(ctx context.Context) ([]domain.Reminder, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]domain.Reminder, 0, len(f.reminders))
	for _, r := range f.reminders {
		out = append(out, r)
	}
	return out, nil
}

func (f *fakeReminderStore) DeleteReminder(ctx context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.reminders, id)
	return nil
}

type fakeBus struct {
	mu       sync.Mutex
	outbound []domain.OutboundMessage
	fired    chan struct{}
}

func newFakeBus() *fakeBus {
	return &fakeBus{fired: make(chan struct{}, 16)}
}

func (f *fakeBus) Publish(msg domain.InboundMessage)                          {}
func (f *fakeBus) Subscribe() <-chan domain.InboundMessage                    { return nil }
func (f *fakeBus) OnOutbound(channel string, fn func(domain.OutboundMessage)) {}
func (f *fakeBus) Close()                                                     {}

func (f *fakeBus) SendOutbound(msg domain.OutboundMessage) {
	f.mu.Lock()
	f.outbound = append(f.outbound, msg)
	f.mu.Unlock()
	f.fired <- struct{}{}
}

func (f *fakeBus) messages() []domain.OutboundMessage {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]domain.OutboundMessage, len(f.outbound))
	copy(out, f.outbound)
	return out
}

func testScheduler(t *testing.T) (*ReminderScheduler, *fakeReminderStore, *fakeBus) {
	t.Helper()
	store := newFakeReminderStore()
	bus := newFakeBus()
	sched := NewReminderScheduler(store, bus, slog.New(slog.NewTextHandler(io.Discard, nil)))
	return sched, store, bus
}

func invokeReminderTool(t *testing.T, a *Agent, name string, args map[string]any) (string, bool) {
	t.Helper()
	for _, d := range a.Tools() {
		if d.Name() == name {
			res := d.Invoke(context.Background(), args)
			return res.Text(), res.OK()
		}
	}
	t.Fatalf("no tool named %q", name)
	return "", false
}

func TestReminderCreatePersistsAndLists(t *testing.T) {
	sched, store, _ := testScheduler(t)
	a := NewReminders(sched)

	out, ok := invokeReminderTool(t, a, "reminder_create", map[string]any{
		"message":       "stand up",
		"channel":       "cli",
		"chat_id":       "local",
		"delay_minutes": 60,
	})
	if !ok {
		t.Fatalf("reminder_create failed: %s", out)
	}
	if len(store.reminders) != 1 {
		t.Fatalf("expected 1 persisted reminder, got %d", len(store.reminders))
	}

	out, ok = invokeReminderTool(t, a, "reminder_list", nil)
	if !ok {
		t.Fatalf("reminder_list failed: %s", out)
	}
	if !strings.Contains(out, "stand up") {
		t.Errorf("list output missing reminder: %q", out)
	}
}

func TestReminderCreateRequiresSchedule(t *testing.T) {
	sched, _, _ := testScheduler(t)
	a := NewReminders(sched)

	out, ok := invokeReminderTool(t, a, "reminder_create", map[string]any{
		"message": "x",
		"channel": "cli",
		"chat_id": "local",
	})
	if ok {
		t.Fatal("create without cron or delay should fail")
	}
	if !strings.Contains(out, "invalid_arguments") {
		t.Errorf("expected invalid_arguments failure, got %q", out)
	}

	out, ok = invokeReminderTool(t, a, "reminder_create", map[string]any{
		"message":       "x",
		"channel":       "cli",
		"chat_id":       "local",
		"cron":          "* * * * *",
		"delay_minutes": 5,
	})
	if ok {
		t.Fatalf("create with both cron and delay should fail, got %q", out)
	}
}

func TestReminderCreateRejectsBadCron(t *testing.T) {
	sched, store, _ := testScheduler(t)
	a := NewReminders(sched)

	out, ok := invokeReminderTool(t, a, "reminder_create", map[string]any{
		"message": "x",
		"channel": "cli",
		"chat_id": "local",
		"cron":    "not a cron expr",
	})
	if ok {
		t.Fatalf("bad cron should fail, got %q", out)
	}
	if len(store.reminders) != 0 {
		t.Fatal("failed schedule must not be persisted")
	}
}

func TestReminderCancel(t *testing.T) {
	sched, store, _ := testScheduler(t)
	a := NewReminders(sched)

	invokeReminderTool(t, a, "reminder_create", map[string]any{
		"message":       "x",
		"channel":       "cli",
		"chat_id":       "local",
		"delay_minutes": 60,
	})
	var id string
	for k := range store.reminders {
		id = k
	}

	out, ok := invokeReminderTool(t, a, "reminder_cancel", map[string]any{"id": id})
	if !ok {
		t.Fatalf("reminder_cancel failed: %s", out)
	}
	if len(store.reminders) != 0 {
		t.Fatal("cancelled reminder still persisted")
	}

	out, _ = invokeReminderTool(t, a, "reminder_list", nil)
	if out != "No reminders scheduled." {
		t.Errorf("list after cancel = %q", out)
	}
}

func TestOneShotReminderFiresAndDeletes(t *testing.T) {
	sched, store, bus := testScheduler(t)

	at := time.Now().Add(10 * time.Millisecond)
	rem := domain.Reminder{
		ID:        "r1",
		Channel:   "telegram",
		ChatID:    "42",
		Message:   "take a break",
		FireAt:    &at,
		CreatedAt: time.Now(),
	}
	if err := sched.Add(context.Background(), rem); err != nil {
		t.Fatalf("Add: %v", err)
	}

	select {
	case <-bus.fired:
	case <-time.After(2 * time.Second):
		t.Fatal("one-shot reminder never fired")
	}

	msgs := bus.messages()
	if len(msgs) != 1 {
		t.Fatalf("expected 1 outbound message, got %d", len(msgs))
	}
	if msgs[0].Channel != "telegram" || msgs[0].ChatID != "42" {
		t.Errorf("outbound routed to %s/%s", msgs[0].Channel, msgs[0].ChatID)
	}
	if !strings.Contains(msgs[0].Content, "take a break") {
		t.Errorf("outbound content = %q", msgs[0].Content)
	}

	// Fired one-shots are removed from the store.
	deadline := time.Now().Add(time.Second)
	for {
		store.mu.Lock()
		n := len(store.reminders)
		store.mu.Unlock()
		if n == 0 {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("fired one-shot reminder was not deleted")
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestPastOneShotStillFires(t *testing.T) {
	sched, _, bus := testScheduler(t)

	at := time.Now().Add(-time.Hour)
	rem := domain.Reminder{ID: "r2", Channel: "cli", ChatID: "local", Message: "overdue", FireAt: &at}
	if err := sched.Add(context.Background(), rem); err != nil {
		t.Fatalf("Add: %v", err)
	}

	select {
	case <-bus.fired:
	case <-time.After(3 * time.Second):
		t.Fatal("overdue reminder never fired")
	}
}
