package dispatch

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"coachflow_backend/internal/campaigns/repository"
	prospectrepo "coachflow_backend/internal/prospects/repository"
	"coachflow_backend/platform/apperr"
	"coachflow_backend/platform/logger"

	"github.com/google/uuid"
)

type fakeStore struct {
	mu sync.Mutex

	campaigns map[uuid.UUID]repository.Campaign
	messages  map[uuid.UUID]repository.Message
	audiences map[uuid.UUID]repository.Audience
	prefs     map[uuid.UUID]repository.Preference
	recent    map[string]bool

	deliveries []repository.Delivery
	statuses   []string
	runs       int
	finished   bool
	lastRunAt  *time.Time
	due        []repository.Campaign
	dueLimit   int
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		campaigns: make(map[uuid.UUID]repository.Campaign),
		messages:  make(map[uuid.UUID]repository.Message),
		audiences: make(map[uuid.UUID]repository.Audience),
		prefs:     make(map[uuid.UUID]repository.Preference),
		recent:    make(map[string]bool),
	}
}

func (f *fakeStore) GetCampaign(_ context.Context, id uuid.UUID) (repository.Campaign, error) {
	c, ok := f.campaigns[id]
	if !ok {
		return repository.Campaign{}, repository.ErrCampaignNotFound
	}
	return c, nil
}

func (f *fakeStore) UpdateStatus(_ context.Context, _ uuid.UUID, status string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.statuses = append(f.statuses, status)
	return nil
}

func (f *fakeStore) ListDueScheduled(_ context.Context, _ time.Time, limit int) ([]repository.Campaign, error) {
	f.dueLimit = limit
	return f.due, nil
}

func (f *fakeStore) LatestMessage(_ context.Context, campaignID uuid.UUID) (repository.Message, error) {
	m, ok := f.messages[campaignID]
	if !ok {
		return repository.Message{}, repository.ErrMessageNotFound
	}
	return m, nil
}

func (f *fakeStore) GetAudience(_ context.Context, id uuid.UUID) (repository.Audience, error) {
	a, ok := f.audiences[id]
	if !ok {
		return repository.Audience{}, repository.ErrAudienceNotFound
	}
	return a, nil
}

func (f *fakeStore) CreateRun(_ context.Context, campaignID uuid.UUID, audienceID *uuid.UUID) (repository.Run, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.runs++
	return repository.Run{ID: uuid.New(), CampaignID: campaignID, AudienceID: audienceID, Status: repository.RunRunning}, nil
}

func (f *fakeStore) FinishRun(_ context.Context, _ uuid.UUID, _ string, _, _, _ int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.finished = true
	return nil
}

func (f *fakeStore) LastRunAt(_ context.Context, _ uuid.UUID) (*time.Time, error) {
	return f.lastRunAt, nil
}

func (f *fakeStore) InsertDelivery(_ context.Context, d repository.Delivery) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deliveries = append(f.deliveries, d)
	return nil
}

func (f *fakeStore) HasRecentDelivery(_ context.Context, campaignID, prospectID uuid.UUID, channel string, _ time.Time) (bool, error) {
	return f.recent[dedupKey(campaignID, prospectID, channel)], nil
}

func (f *fakeStore) GetPreference(_ context.Context, prospectID uuid.UUID) (repository.Preference, error) {
	if p, ok := f.prefs[prospectID]; ok {
		return p, nil
	}
	return repository.Preference{ProspectID: prospectID, AllowWhatsApp: true, AllowEmail: true}, nil
}

func dedupKey(campaignID, prospectID uuid.UUID, channel string) string {
	return fmt.Sprintf("%s|%s|%s", campaignID, prospectID, channel)
}

type fakeDirectory struct {
	prospects []prospectrepo.Prospect
	gotParams prospectrepo.ListParams
}

func (f *fakeDirectory) List(_ context.Context, params prospectrepo.ListParams) ([]prospectrepo.Prospect, error) {
	f.gotParams = params
	return f.prospects, nil
}

type fakeSender struct {
	mu   sync.Mutex
	sent []string
	fail bool
}

func (f *fakeSender) Send(_ context.Context, p prospectrepo.Prospect, body string) error {
	if f.fail {
		return fmt.Errorf("transport down")
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, body)
	return nil
}

type testCampaignConfig struct{}

func (testCampaignConfig) GetCampaignRunLimit() int        { return 100 }
func (testCampaignConfig) GetCampaignMaxRunsPerSweep() int { return 5 }
func (testCampaignConfig) GetCampaignSendConcurrency() int { return 4 }

type dispatchFixture struct {
	dispatcher *Dispatcher
	store      *fakeStore
	directory  *fakeDirectory
	whatsapp   *fakeSender
	email      *fakeSender
	campaignID uuid.UUID
}

func newDispatchFixture(channels []string) *dispatchFixture {
	store := newFakeStore()
	campaignID := uuid.New()
	store.campaigns[campaignID] = repository.Campaign{
		ID:       campaignID,
		Name:     "Spring enrollment",
		Status:   repository.StatusDraft,
		Channels: channels,
		Params:   map[string]string{"program": "Spring Intensive"},
	}
	store.messages[campaignID] = repository.Message{
		CampaignID: campaignID,
		Body:       "Hi {{first_name}}, {{program}} starts soon.",
	}

	directory := &fakeDirectory{}
	whatsapp := &fakeSender{}
	email := &fakeSender{}
	senders := map[string]Sender{
		repository.ChannelWhatsApp: whatsapp,
		repository.ChannelEmail:    email,
	}

	d := New(store, directory, senders, testCampaignConfig{}, nil, logger.New("development"))
	return &dispatchFixture{
		dispatcher: d,
		store:      store,
		directory:  directory,
		whatsapp:   whatsapp,
		email:      email,
		campaignID: campaignID,
	}
}

func TestStartRunSendsToEligibleProspects(t *testing.T) {
	f := newDispatchFixture([]string{repository.ChannelWhatsApp})
	f.directory.prospects = []prospectrepo.Prospect{
		{ID: uuid.New(), FirstName: "Anna", ChatHandle: "@anna"},
		{ID: uuid.New(), FirstName: "Boris"}, // no chat handle
	}

	summary, err := f.dispatcher.StartRun(context.Background(), f.campaignID, nil, 0)
	if err != nil {
		t.Fatalf("StartRun: %v", err)
	}

	if summary.Processed != 2 || summary.Sent != 1 || summary.Skipped != 1 {
		t.Fatalf("unexpected summary: %+v", summary)
	}
	if len(f.whatsapp.sent) != 1 || f.whatsapp.sent[0] != "Hi Anna, Spring Intensive starts soon." {
		t.Fatalf("unexpected sends: %v", f.whatsapp.sent)
	}
	if !f.store.finished {
		t.Fatal("run must be finished")
	}
	// One-shot campaign ends up completed.
	last := f.store.statuses[len(f.store.statuses)-1]
	if last != repository.StatusCompleted {
		t.Fatalf("expected campaign completed, got %q", last)
	}
}

func TestStartRunCountsProspectsNotChannels(t *testing.T) {
	f := newDispatchFixture([]string{repository.ChannelWhatsApp, repository.ChannelEmail})
	f.directory.prospects = []prospectrepo.Prospect{
		{ID: uuid.New(), FirstName: "Anna", ChatHandle: "@anna", Email: "anna@example.com"},
	}

	summary, err := f.dispatcher.StartRun(context.Background(), f.campaignID, nil, 0)
	if err != nil {
		t.Fatalf("StartRun: %v", err)
	}

	// Both channels go out, but the prospect counts once.
	if summary.Processed != 1 || summary.Sent != 1 || summary.Errors != 0 {
		t.Fatalf("unexpected summary: %+v", summary)
	}
	if len(f.whatsapp.sent) != 1 || len(f.email.sent) != 1 {
		t.Fatalf("expected one send per channel, got whatsapp=%d email=%d", len(f.whatsapp.sent), len(f.email.sent))
	}
	if len(f.store.deliveries) != 2 {
		t.Fatalf("delivery ledger must keep per-channel rows: %+v", f.store.deliveries)
	}
}

func TestStartRunPartialChannelFailureStillSent(t *testing.T) {
	f := newDispatchFixture([]string{repository.ChannelWhatsApp, repository.ChannelEmail})
	f.email.fail = true
	f.directory.prospects = []prospectrepo.Prospect{
		{ID: uuid.New(), FirstName: "Anna", ChatHandle: "@anna", Email: "anna@example.com"},
	}

	summary, err := f.dispatcher.StartRun(context.Background(), f.campaignID, nil, 0)
	if err != nil {
		t.Fatalf("StartRun: %v", err)
	}

	// One channel reached the prospect, so the prospect is sent, not errored.
	if summary.Sent != 1 || summary.Errors != 0 {
		t.Fatalf("unexpected summary: %+v", summary)
	}

	var failed int
	for _, d := range f.store.deliveries {
		if d.Status == repository.DeliveryFailed {
			failed++
		}
	}
	if failed != 1 {
		t.Fatalf("failed channel must still be in the ledger: %+v", f.store.deliveries)
	}
}

func TestStartRunAllChannelsFailedCountsError(t *testing.T) {
	f := newDispatchFixture([]string{repository.ChannelWhatsApp, repository.ChannelEmail})
	f.whatsapp.fail = true
	f.email.fail = true
	f.directory.prospects = []prospectrepo.Prospect{
		{ID: uuid.New(), FirstName: "Anna", ChatHandle: "@anna", Email: "anna@example.com"},
	}

	summary, err := f.dispatcher.StartRun(context.Background(), f.campaignID, nil, 0)
	if err != nil {
		t.Fatalf("StartRun: %v", err)
	}

	if summary.Sent != 0 || summary.Errors != 1 {
		t.Fatalf("unexpected summary: %+v", summary)
	}
}

func TestStartRunLimitOverride(t *testing.T) {
	f := newDispatchFixture([]string{repository.ChannelWhatsApp})

	if _, err := f.dispatcher.StartRun(context.Background(), f.campaignID, nil, 25); err != nil {
		t.Fatalf("StartRun: %v", err)
	}
	if f.directory.gotParams.Limit != 25 {
		t.Fatalf("caller limit must reach the prospect listing, got %d", f.directory.gotParams.Limit)
	}

	if _, err := f.dispatcher.StartRun(context.Background(), f.campaignID, nil, 0); err != nil {
		t.Fatalf("StartRun: %v", err)
	}
	if f.directory.gotParams.Limit != 100 {
		t.Fatalf("omitted limit must fall back to the configured one, got %d", f.directory.gotParams.Limit)
	}
}

func TestStartRunHonorsChannelConsent(t *testing.T) {
	f := newDispatchFixture([]string{repository.ChannelWhatsApp})
	prospectID := uuid.New()
	f.directory.prospects = []prospectrepo.Prospect{{ID: prospectID, FirstName: "Anna", ChatHandle: "@anna"}}
	f.store.prefs[prospectID] = repository.Preference{ProspectID: prospectID, AllowWhatsApp: false, AllowEmail: true}

	summary, err := f.dispatcher.StartRun(context.Background(), f.campaignID, nil, 0)
	if err != nil {
		t.Fatalf("StartRun: %v", err)
	}

	if summary.Sent != 0 || summary.Skipped != 1 {
		t.Fatalf("opted-out prospect must be skipped: %+v", summary)
	}
	if len(f.store.deliveries) != 0 {
		t.Fatalf("failed gate checks must not write delivery rows: %+v", f.store.deliveries)
	}
}

func TestStartRunQuietHours(t *testing.T) {
	f := newDispatchFixture([]string{repository.ChannelWhatsApp})
	f.dispatcher.now = func() time.Time {
		return time.Date(2026, 3, 10, 23, 0, 0, 0, time.UTC)
	}

	prospectID := uuid.New()
	start, end := 22, 6
	f.directory.prospects = []prospectrepo.Prospect{{ID: prospectID, ChatHandle: "@anna"}}
	f.store.prefs[prospectID] = repository.Preference{
		ProspectID: prospectID, AllowWhatsApp: true, AllowEmail: true,
		QuietStart: &start, QuietEnd: &end,
	}

	summary, err := f.dispatcher.StartRun(context.Background(), f.campaignID, nil, 0)
	if err != nil {
		t.Fatalf("StartRun: %v", err)
	}

	if summary.Sent != 0 || summary.Skipped != 1 {
		t.Fatalf("23:00 inside [22,6) must be skipped: %+v", summary)
	}
}

func TestStartRunDedupWindow(t *testing.T) {
	f := newDispatchFixture([]string{repository.ChannelWhatsApp})
	prospectID := uuid.New()
	f.directory.prospects = []prospectrepo.Prospect{{ID: prospectID, ChatHandle: "@anna"}}
	f.store.recent[dedupKey(f.campaignID, prospectID, repository.ChannelWhatsApp)] = true

	summary, err := f.dispatcher.StartRun(context.Background(), f.campaignID, nil, 0)
	if err != nil {
		t.Fatalf("StartRun: %v", err)
	}

	if summary.Sent != 0 || summary.Skipped != 1 {
		t.Fatalf("recent delivery must suppress a resend: %+v", summary)
	}
	if len(f.whatsapp.sent) != 0 {
		t.Fatal("nothing must reach the sender")
	}
}

func TestStartRunFailedSendRecorded(t *testing.T) {
	f := newDispatchFixture([]string{repository.ChannelWhatsApp})
	f.whatsapp.fail = true
	f.directory.prospects = []prospectrepo.Prospect{{ID: uuid.New(), ChatHandle: "@anna"}}

	summary, err := f.dispatcher.StartRun(context.Background(), f.campaignID, nil, 0)
	if err != nil {
		t.Fatalf("StartRun: %v", err)
	}

	if summary.Errors != 1 {
		t.Fatalf("expected 1 error, got %+v", summary)
	}
	if len(f.store.deliveries) != 1 || f.store.deliveries[0].Status != repository.DeliveryFailed {
		t.Fatalf("failure must be recorded: %+v", f.store.deliveries)
	}
}

func TestStartRunAudienceFilterMapped(t *testing.T) {
	f := newDispatchFixture([]string{repository.ChannelEmail})
	audienceID := uuid.New()
	f.store.audiences[audienceID] = repository.Audience{
		ID: audienceID, StatusFilter: "customer", RequireEmail: true,
	}

	if _, err := f.dispatcher.StartRun(context.Background(), f.campaignID, &audienceID, 0); err != nil {
		t.Fatalf("StartRun: %v", err)
	}

	if f.directory.gotParams.Status != "customer" || !f.directory.gotParams.NeedEmail {
		t.Fatalf("audience filter not mapped: %+v", f.directory.gotParams)
	}
}

func TestStartRunWithoutMessageRejected(t *testing.T) {
	f := newDispatchFixture([]string{repository.ChannelWhatsApp})
	delete(f.store.messages, f.campaignID)

	_, err := f.dispatcher.StartRun(context.Background(), f.campaignID, nil, 0)
	if !apperr.Is(err, apperr.KindValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestStartRunCancelledCampaignRejected(t *testing.T) {
	f := newDispatchFixture([]string{repository.ChannelWhatsApp})
	c := f.store.campaigns[f.campaignID]
	c.Status = repository.StatusCancelled
	f.store.campaigns[f.campaignID] = c

	_, err := f.dispatcher.StartRun(context.Background(), f.campaignID, nil, 0)
	if !apperr.Is(err, apperr.KindConflict) {
		t.Fatalf("expected conflict error, got %v", err)
	}
}

func TestProcessScheduledFrequencyGuard(t *testing.T) {
	f := newDispatchFixture([]string{repository.ChannelWhatsApp})
	scheduleAt := time.Now().Add(-time.Hour)
	c := f.store.campaigns[f.campaignID]
	c.Status = repository.StatusScheduled
	c.ScheduleAt = &scheduleAt
	f.store.campaigns[f.campaignID] = c
	f.store.due = []repository.Campaign{c}

	recent := time.Now().Add(-time.Hour)
	f.store.lastRunAt = &recent

	started, err := f.dispatcher.ProcessScheduled(context.Background(), 0, 0)
	if err != nil {
		t.Fatalf("ProcessScheduled: %v", err)
	}
	if started != 0 {
		t.Fatalf("run within the last 24h must defer the sweep, started %d", started)
	}

	old := time.Now().Add(-25 * time.Hour)
	f.store.lastRunAt = &old
	started, err = f.dispatcher.ProcessScheduled(context.Background(), 0, 0)
	if err != nil {
		t.Fatalf("ProcessScheduled: %v", err)
	}
	if started != 1 {
		t.Fatalf("due campaign must run, started %d", started)
	}
	if f.store.runs != 1 {
		t.Fatalf("expected 1 run, got %d", f.store.runs)
	}
}

func TestProcessScheduledPicksUpStrandedRunningCampaign(t *testing.T) {
	f := newDispatchFixture([]string{repository.ChannelWhatsApp})
	scheduleAt := time.Now().Add(-time.Hour)
	c := f.store.campaigns[f.campaignID]
	c.Status = repository.StatusRunning
	c.ScheduleAt = &scheduleAt
	f.store.campaigns[f.campaignID] = c
	f.store.due = []repository.Campaign{c}

	old := time.Now().Add(-25 * time.Hour)
	f.store.lastRunAt = &old

	started, err := f.dispatcher.ProcessScheduled(context.Background(), 0, 0)
	if err != nil {
		t.Fatalf("ProcessScheduled: %v", err)
	}
	if started != 1 {
		t.Fatalf("campaign stuck in running must be re-run, started %d", started)
	}
}

func TestProcessScheduledCapOverrides(t *testing.T) {
	f := newDispatchFixture([]string{repository.ChannelWhatsApp})
	scheduleAt := time.Now().Add(-time.Hour)
	c := f.store.campaigns[f.campaignID]
	c.Status = repository.StatusScheduled
	c.ScheduleAt = &scheduleAt
	f.store.campaigns[f.campaignID] = c
	f.store.due = []repository.Campaign{c}

	if _, err := f.dispatcher.ProcessScheduled(context.Background(), 7, 3); err != nil {
		t.Fatalf("ProcessScheduled: %v", err)
	}
	if f.store.dueLimit != 3 {
		t.Fatalf("maxRuns must cap the due listing, got %d", f.store.dueLimit)
	}
	if f.directory.gotParams.Limit != 7 {
		t.Fatalf("limitPerRun must reach the started run, got %d", f.directory.gotParams.Limit)
	}

	if _, err := f.dispatcher.ProcessScheduled(context.Background(), 0, 0); err != nil {
		t.Fatalf("ProcessScheduled: %v", err)
	}
	if f.store.dueLimit != 5 {
		t.Fatalf("omitted maxRuns must fall back to the configured one, got %d", f.store.dueLimit)
	}
}
