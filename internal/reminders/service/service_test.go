package service

import (
	"context"
	"fmt"
	"testing"
	"time"

	campaignrepo "coachflow_backend/internal/campaigns/repository"
	prospectrepo "coachflow_backend/internal/prospects/repository"
	"coachflow_backend/internal/reminders/repository"
	"coachflow_backend/platform/logger"

	"github.com/google/uuid"
)

type fakeReminderStore struct {
	reminders   map[uuid.UUID]repository.Reminder
	rescheduled map[uuid.UUID]time.Time
	markedSent  []uuid.UUID
	deleted     []uuid.UUID
}

func newFakeReminderStore() *fakeReminderStore {
	return &fakeReminderStore{
		reminders:   make(map[uuid.UUID]repository.Reminder),
		rescheduled: make(map[uuid.UUID]time.Time),
	}
}

func (f *fakeReminderStore) Create(_ context.Context, rem repository.Reminder) (repository.Reminder, error) {
	rem.ID = uuid.New()
	rem.CreatedAt = time.Now()
	f.reminders[rem.ID] = rem
	return rem, nil
}

func (f *fakeReminderStore) ListByProspect(_ context.Context, prospectID uuid.UUID) ([]repository.Reminder, error) {
	var out []repository.Reminder
	for _, rem := range f.reminders {
		if rem.ProspectID == prospectID {
			out = append(out, rem)
		}
	}
	return out, nil
}

func (f *fakeReminderStore) ListDue(_ context.Context, now time.Time, _ int) ([]repository.Reminder, error) {
	var out []repository.Reminder
	for _, rem := range f.reminders {
		if !rem.IsSent && !rem.ScheduledAt.After(now) {
			out = append(out, rem)
		}
	}
	return out, nil
}

func (f *fakeReminderStore) MarkSent(_ context.Context, id uuid.UUID) (bool, error) {
	rem, ok := f.reminders[id]
	if !ok || rem.IsSent {
		return false, nil
	}
	rem.IsSent = true
	f.reminders[id] = rem
	f.markedSent = append(f.markedSent, id)
	return true, nil
}

func (f *fakeReminderStore) Reschedule(_ context.Context, id uuid.UUID, at time.Time) error {
	rem, ok := f.reminders[id]
	if !ok {
		return repository.ErrReminderNotFound
	}
	rem.ScheduledAt = at
	f.reminders[id] = rem
	f.rescheduled[id] = at
	return nil
}

func (f *fakeReminderStore) Delete(_ context.Context, id uuid.UUID) error {
	if _, ok := f.reminders[id]; !ok {
		return repository.ErrReminderNotFound
	}
	delete(f.reminders, id)
	f.deleted = append(f.deleted, id)
	return nil
}

type fakeProspects struct {
	prospects map[uuid.UUID]prospectrepo.Prospect
}

func (f *fakeProspects) GetByID(_ context.Context, id uuid.UUID) (prospectrepo.Prospect, error) {
	p, ok := f.prospects[id]
	if !ok {
		return prospectrepo.Prospect{}, prospectrepo.ErrProspectNotFound
	}
	return p, nil
}

type fakePrefs struct {
	prefs map[uuid.UUID]campaignrepo.Preference
}

func (f *fakePrefs) GetPreference(_ context.Context, prospectID uuid.UUID) (campaignrepo.Preference, error) {
	if p, ok := f.prefs[prospectID]; ok {
		return p, nil
	}
	return campaignrepo.Preference{ProspectID: prospectID, AllowWhatsApp: true, AllowEmail: true}, nil
}

type fakeSender struct {
	sent []string
	fail bool
}

func (f *fakeSender) Send(_ context.Context, _ prospectrepo.Prospect, body string) error {
	if f.fail {
		return fmt.Errorf("transport down")
	}
	f.sent = append(f.sent, body)
	return nil
}

type sweepFixture struct {
	svc       *Service
	store     *fakeReminderStore
	prospects *fakeProspects
	prefs     *fakePrefs
	whatsapp  *fakeSender
	email     *fakeSender
}

func newSweepFixture() *sweepFixture {
	store := newFakeReminderStore()
	prospects := &fakeProspects{prospects: make(map[uuid.UUID]prospectrepo.Prospect)}
	prefs := &fakePrefs{prefs: make(map[uuid.UUID]campaignrepo.Preference)}
	whatsapp := &fakeSender{}
	email := &fakeSender{}

	svc := New(store, prospects, prefs, whatsapp, email, nil, logger.New("development"))
	return &sweepFixture{
		svc:       svc,
		store:     store,
		prospects: prospects,
		prefs:     prefs,
		whatsapp:  whatsapp,
		email:     email,
	}
}

func (f *sweepFixture) addProspect(p prospectrepo.Prospect) prospectrepo.Prospect {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	f.prospects.prospects[p.ID] = p
	return p
}

func (f *sweepFixture) addDueReminder(prospectID uuid.UUID, message string) repository.Reminder {
	rem, _ := f.store.Create(context.Background(), repository.Reminder{
		ProspectID:   prospectID,
		ReminderType: "follow_up",
		Message:      message,
		ScheduledAt:  time.Now().Add(-time.Minute),
	})
	return rem
}

func TestSweepSendsDueReminderOverWhatsApp(t *testing.T) {
	f := newSweepFixture()
	p := f.addProspect(prospectrepo.Prospect{FirstName: "Anna", ChatHandle: "@anna", Email: "anna@example.com"})
	rem := f.addDueReminder(p.ID, "Hi {{first_name}}, your consultation is tomorrow.")

	result, err := f.svc.Sweep(context.Background(), 0)
	if err != nil {
		t.Fatalf("Sweep: %v", err)
	}

	if result.Due != 1 || result.Sent != 1 {
		t.Fatalf("unexpected result: %+v", result)
	}
	if len(f.whatsapp.sent) != 1 || f.whatsapp.sent[0] != "Hi Anna, your consultation is tomorrow." {
		t.Fatalf("unexpected whatsapp sends: %v", f.whatsapp.sent)
	}
	if len(f.email.sent) != 0 {
		t.Fatal("email must not be used when whatsapp is available")
	}
	if !f.store.reminders[rem.ID].IsSent {
		t.Fatal("reminder must be marked sent")
	}
}

func TestSweepFallsBackToEmail(t *testing.T) {
	f := newSweepFixture()
	p := f.addProspect(prospectrepo.Prospect{FirstName: "Boris", Email: "boris@example.com"})
	f.addDueReminder(p.ID, "See you soon.")

	result, err := f.svc.Sweep(context.Background(), 0)
	if err != nil {
		t.Fatalf("Sweep: %v", err)
	}

	if result.Sent != 1 {
		t.Fatalf("unexpected result: %+v", result)
	}
	if len(f.email.sent) != 1 {
		t.Fatalf("email fallback must be used: %v", f.email.sent)
	}
}

func TestSweepHonorsWhatsAppOptOut(t *testing.T) {
	f := newSweepFixture()
	p := f.addProspect(prospectrepo.Prospect{ChatHandle: "@anna", Email: "anna@example.com"})
	f.prefs.prefs[p.ID] = campaignrepo.Preference{ProspectID: p.ID, AllowWhatsApp: false, AllowEmail: true}
	f.addDueReminder(p.ID, "Quick reminder.")

	result, err := f.svc.Sweep(context.Background(), 0)
	if err != nil {
		t.Fatalf("Sweep: %v", err)
	}

	if result.Sent != 1 {
		t.Fatalf("unexpected result: %+v", result)
	}
	if len(f.whatsapp.sent) != 0 || len(f.email.sent) != 1 {
		t.Fatalf("opted-out channel must be skipped: wa=%v email=%v", f.whatsapp.sent, f.email.sent)
	}
}

func TestSweepReschedulesInsideQuietHours(t *testing.T) {
	f := newSweepFixture()
	f.svc.now = func() time.Time {
		return time.Date(2026, 3, 10, 23, 0, 0, 0, time.UTC)
	}

	p := f.addProspect(prospectrepo.Prospect{ChatHandle: "@anna"})
	start, end := 22, 6
	f.prefs.prefs[p.ID] = campaignrepo.Preference{
		ProspectID: p.ID, AllowWhatsApp: true, AllowEmail: true,
		QuietStart: &start, QuietEnd: &end,
	}
	created, _ := f.store.Create(context.Background(), repository.Reminder{
		ProspectID:  p.ID,
		Message:     "Night owl reminder.",
		ScheduledAt: time.Date(2026, 3, 10, 22, 30, 0, 0, time.UTC),
	})

	result, err := f.svc.Sweep(context.Background(), 0)
	if err != nil {
		t.Fatalf("Sweep: %v", err)
	}

	if result.Deferred != 1 || result.Sent != 0 {
		t.Fatalf("quiet-hour reminder must be deferred: %+v", result)
	}
	want := time.Date(2026, 3, 11, 6, 0, 0, 0, time.UTC)
	if got := f.store.rescheduled[created.ID]; !got.Equal(want) {
		t.Fatalf("expected reschedule to %v, got %v", want, got)
	}
	if len(f.whatsapp.sent) != 0 {
		t.Fatal("nothing must be sent during quiet hours")
	}
}

func TestSweepFailedSendStaysUnsent(t *testing.T) {
	f := newSweepFixture()
	f.whatsapp.fail = true
	p := f.addProspect(prospectrepo.Prospect{ChatHandle: "@anna"})
	rem := f.addDueReminder(p.ID, "Retry me.")

	result, err := f.svc.Sweep(context.Background(), 0)
	if err != nil {
		t.Fatalf("Sweep: %v", err)
	}

	if result.Failed != 1 {
		t.Fatalf("unexpected result: %+v", result)
	}
	if f.store.reminders[rem.ID].IsSent {
		t.Fatal("failed reminder must stay unsent for the next sweep")
	}
}

func TestSweepNoAllowedChannelFails(t *testing.T) {
	f := newSweepFixture()
	p := f.addProspect(prospectrepo.Prospect{FirstName: "Vera"}) // no handle, no email
	f.addDueReminder(p.ID, "Unreachable.")

	result, err := f.svc.Sweep(context.Background(), 0)
	if err != nil {
		t.Fatalf("Sweep: %v", err)
	}
	if result.Failed != 1 || result.Sent != 0 {
		t.Fatalf("unreachable prospect must count as failed: %+v", result)
	}
}

func TestSweepDropsRemindersForDeletedProspects(t *testing.T) {
	f := newSweepFixture()
	rem := f.addDueReminder(uuid.New(), "Orphaned.")

	result, err := f.svc.Sweep(context.Background(), 0)
	if err != nil {
		t.Fatalf("Sweep: %v", err)
	}

	if result.Deferred != 1 {
		t.Fatalf("orphaned reminder must be dropped quietly: %+v", result)
	}
	if !f.store.reminders[rem.ID].IsSent {
		t.Fatal("orphaned reminder must not stay in the due queue")
	}
}
