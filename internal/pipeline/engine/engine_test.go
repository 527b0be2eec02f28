package engine

import (
	"context"
	"testing"
	"time"

	"coachflow_backend/internal/pipeline/domain"
	pipelinerepo "coachflow_backend/internal/pipeline/repository"
	prospectrepo "coachflow_backend/internal/prospects/repository"
	"coachflow_backend/platform/logger"

	"github.com/google/uuid"
)

type fakeProspects struct {
	byID map[uuid.UUID]prospectrepo.Prospect

	setStageCalled bool
	setStageID     uuid.UUID
	setStatus      string

	lastContactAt *time.Time

	nextContactSet bool
	nextContactAt  *time.Time
}

func (f *fakeProspects) GetByID(_ context.Context, id uuid.UUID) (prospectrepo.Prospect, error) {
	p, ok := f.byID[id]
	if !ok {
		return prospectrepo.Prospect{}, prospectrepo.ErrProspectNotFound
	}
	return p, nil
}

func (f *fakeProspects) SetStage(_ context.Context, id, funnelID, stageID uuid.UUID, status string) error {
	f.setStageCalled = true
	f.setStageID = stageID
	f.setStatus = status
	return nil
}

func (f *fakeProspects) AdvanceLastContact(_ context.Context, _ uuid.UUID, at time.Time) error {
	f.lastContactAt = &at
	return nil
}

func (f *fakeProspects) SetNextContact(_ context.Context, _ uuid.UUID, at *time.Time) error {
	f.nextContactSet = true
	f.nextContactAt = at
	return nil
}

type fakePipeline struct {
	funnel  domain.Funnel
	stages  []domain.Stage
	events  []domain.ClientEvent
	history []domain.StageHistoryEntry
}

func (f *fakePipeline) GetStageByID(_ context.Context, id uuid.UUID) (domain.Stage, error) {
	for _, s := range f.stages {
		if s.ID == id {
			return s, nil
		}
	}
	return domain.Stage{}, pipelinerepo.ErrStageNotFound
}

func (f *fakePipeline) GetStageByName(_ context.Context, funnelID uuid.UUID, name string) (domain.Stage, error) {
	for _, s := range f.stages {
		if s.FunnelID == funnelID && s.Name == name {
			return s, nil
		}
	}
	return domain.Stage{}, pipelinerepo.ErrStageNotFound
}

func (f *fakePipeline) DefaultFunnel(_ context.Context) (domain.Funnel, error) {
	return f.funnel, nil
}

func (f *fakePipeline) AppendEvent(_ context.Context, e domain.ClientEvent) (domain.ClientEvent, error) {
	e.ID = uuid.New()
	f.events = append(f.events, e)
	return e, nil
}

func (f *fakePipeline) AppendHistory(_ context.Context, h domain.StageHistoryEntry) (domain.StageHistoryEntry, error) {
	h.ID = uuid.New()
	f.history = append(f.history, h)
	return h, nil
}

type fixture struct {
	engine    *Engine
	prospects *fakeProspects
	pipeline  *fakePipeline
	funnelID  uuid.UUID
	stageIDs  map[string]uuid.UUID
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	funnelID := uuid.New()
	names := []string{
		domain.StageInitialContact,
		domain.StageConsultation,
		domain.StageProposal,
		domain.StagePurchased,
		domain.StageActiveProgram,
		domain.StageCompleted,
	}

	pipeline := &fakePipeline{
		funnel: domain.Funnel{ID: funnelID, Name: "Coaching", IsActive: true},
	}
	stageIDs := make(map[string]uuid.UUID, len(names))
	for i, name := range names {
		id := uuid.New()
		stageIDs[name] = id
		pipeline.stages = append(pipeline.stages, domain.Stage{
			ID: id, FunnelID: funnelID, Name: name, Order: i + 1, IsActive: true,
		})
	}

	prospects := &fakeProspects{byID: make(map[uuid.UUID]prospectrepo.Prospect)}

	return &fixture{
		engine:    New(prospects, pipeline, domain.DefaultRules, nil, logger.New("development")),
		prospects: prospects,
		pipeline:  pipeline,
		funnelID:  funnelID,
		stageIDs:  stageIDs,
	}
}

func (f *fixture) addProspect(stageName string) uuid.UUID {
	id := uuid.New()
	p := prospectrepo.Prospect{ID: id, Status: domain.StatusNew, FunnelID: &f.funnelID}
	if stageName != "" {
		stageID := f.stageIDs[stageName]
		p.StageID = &stageID
	}
	f.prospects.byID[id] = p
	return id
}

func TestHandleEventFirstTouchAdvancesToConsultation(t *testing.T) {
	f := newFixture(t)
	prospectID := f.addProspect(domain.StageInitialContact)
	occurred := time.Date(2026, 3, 10, 14, 0, 0, 0, time.UTC)

	res, err := f.engine.HandleEvent(context.Background(), HandleEventInput{
		ProspectID: prospectID,
		EventType:  domain.EventMessage,
		OccurredAt: occurred,
	})
	if err != nil {
		t.Fatalf("HandleEvent: %v", err)
	}

	if !res.StageChanged {
		t.Fatal("expected stage change")
	}
	if res.NewStage != domain.StageConsultation {
		t.Fatalf("expected stage %q, got %q", domain.StageConsultation, res.NewStage)
	}
	if res.AppliedRule != "first-touch-to-consultation" {
		t.Fatalf("unexpected rule: %q", res.AppliedRule)
	}
	if res.NextContactAt == nil || !res.NextContactAt.Equal(occurred.Add(24*time.Hour)) {
		t.Fatalf("expected follow-up 24h after event, got %v", res.NextContactAt)
	}
	if f.prospects.setStatus != domain.StatusConsultation {
		t.Fatalf("expected status %q, got %q", domain.StatusConsultation, f.prospects.setStatus)
	}
	if len(f.pipeline.events) != 1 {
		t.Fatalf("expected 1 ledger event, got %d", len(f.pipeline.events))
	}
	if len(f.pipeline.history) != 1 {
		t.Fatalf("expected 1 history entry, got %d", len(f.pipeline.history))
	}
	if f.pipeline.history[0].StageID != f.stageIDs[domain.StageConsultation] {
		t.Fatal("history entry points at wrong stage")
	}
}

func TestHandleEventPaymentMovesToPurchased(t *testing.T) {
	f := newFixture(t)
	prospectID := f.addProspect(domain.StageConsultation)

	res, err := f.engine.HandleEvent(context.Background(), HandleEventInput{
		ProspectID: prospectID,
		EventType:  domain.EventPaymentReceived,
	})
	if err != nil {
		t.Fatalf("HandleEvent: %v", err)
	}

	if !res.StageChanged || res.NewStage != domain.StagePurchased {
		t.Fatalf("expected move to %q, got %+v", domain.StagePurchased, res)
	}
	if f.prospects.setStatus != domain.StatusCustomer {
		t.Fatalf("expected status %q, got %q", domain.StatusCustomer, f.prospects.setStatus)
	}
	if f.prospects.nextContactSet {
		t.Fatal("payment rule has no follow-up, next contact must be untouched")
	}
}

func TestHandleEventNoMatchOnlyRecordsContact(t *testing.T) {
	f := newFixture(t)
	prospectID := f.addProspect(domain.StagePurchased)
	occurred := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)

	// A stray message after purchase matches no rule.
	res, err := f.engine.HandleEvent(context.Background(), HandleEventInput{
		ProspectID: prospectID,
		EventType:  domain.EventMessage,
		OccurredAt: occurred,
	})
	if err != nil {
		t.Fatalf("HandleEvent: %v", err)
	}

	if res.StageChanged {
		t.Fatal("expected no stage change")
	}
	if f.prospects.setStageCalled {
		t.Fatal("SetStage must not be called without a matching rule")
	}
	if len(f.pipeline.events) != 1 {
		t.Fatalf("event must still reach the ledger, got %d entries", len(f.pipeline.events))
	}
	if f.prospects.lastContactAt == nil || !f.prospects.lastContactAt.Equal(occurred) {
		t.Fatalf("last contact not advanced: %v", f.prospects.lastContactAt)
	}
}

func TestHandleEventNeverMovesBackwards(t *testing.T) {
	f := newFixture(t)
	prospectID := f.addProspect(domain.StagePurchased)

	// consultation-booked targets Consultation, which sits before Purchased.
	res, err := f.engine.HandleEvent(context.Background(), HandleEventInput{
		ProspectID: prospectID,
		EventType:  domain.EventConsultationScheduled,
	})
	if err != nil {
		t.Fatalf("HandleEvent: %v", err)
	}

	if res.StageChanged {
		t.Fatal("automation must not demote a prospect")
	}
	if f.prospects.setStageCalled {
		t.Fatal("SetStage must not be called for a backwards move")
	}
	if len(f.pipeline.history) != 0 {
		t.Fatal("no history entry for a blocked move")
	}
}

func TestHandleEventSameStageIsNoOp(t *testing.T) {
	f := newFixture(t)
	prospectID := f.addProspect(domain.StageConsultation)

	res, err := f.engine.HandleEvent(context.Background(), HandleEventInput{
		ProspectID: prospectID,
		EventType:  domain.EventConsultationScheduled,
	})
	if err != nil {
		t.Fatalf("HandleEvent: %v", err)
	}

	if res.StageChanged || f.prospects.setStageCalled {
		t.Fatal("re-entering the current stage must be a no-op")
	}
}

func TestHandleEventFirstMatchWins(t *testing.T) {
	f := newFixture(t)
	twelve := 12
	six := 6
	f.engine.rules = []domain.Rule{
		{
			Name:          "priority-high",
			Triggers:      []domain.EventType{domain.EventMeeting},
			ToStage:       domain.StageProposal,
			FollowUpHours: &twelve,
		},
		{
			Name:          "priority-low",
			Triggers:      []domain.EventType{domain.EventMeeting},
			ToStage:       domain.StagePurchased,
			FollowUpHours: &six,
		},
	}
	prospectID := f.addProspect(domain.StageInitialContact)

	res, err := f.engine.HandleEvent(context.Background(), HandleEventInput{
		ProspectID: prospectID,
		EventType:  domain.EventMeeting,
	})
	if err != nil {
		t.Fatalf("HandleEvent: %v", err)
	}

	if res.AppliedRule != "priority-high" {
		t.Fatalf("expected first matching rule to win, got %q", res.AppliedRule)
	}
	if res.NewStage != domain.StageProposal {
		t.Fatalf("expected stage %q, got %q", domain.StageProposal, res.NewStage)
	}
}

func TestHandleEventFollowUpOverride(t *testing.T) {
	f := newFixture(t)
	prospectID := f.addProspect(domain.StageInitialContact)
	occurred := time.Date(2026, 3, 10, 14, 0, 0, 0, time.UTC)
	override := 6

	res, err := f.engine.HandleEvent(context.Background(), HandleEventInput{
		ProspectID:            prospectID,
		EventType:             domain.EventMessage,
		OccurredAt:            occurred,
		FollowUpOverrideHours: &override,
	})
	if err != nil {
		t.Fatalf("HandleEvent: %v", err)
	}

	if res.NextContactAt == nil || !res.NextContactAt.Equal(occurred.Add(6*time.Hour)) {
		t.Fatalf("override must replace the rule's delay, got %v", res.NextContactAt)
	}
}

func TestHandleEventFollowUpOverrideZeroClears(t *testing.T) {
	f := newFixture(t)
	prospectID := f.addProspect(domain.StageInitialContact)
	zero := 0

	res, err := f.engine.HandleEvent(context.Background(), HandleEventInput{
		ProspectID:            prospectID,
		EventType:             domain.EventMessage,
		FollowUpOverrideHours: &zero,
	})
	if err != nil {
		t.Fatalf("HandleEvent: %v", err)
	}

	if !f.prospects.nextContactSet {
		t.Fatal("zero override must clear the follow-up")
	}
	if f.prospects.nextContactAt != nil || res.NextContactAt != nil {
		t.Fatal("cleared follow-up must be nil")
	}
}

func TestHandleEventUnknownProspectDropped(t *testing.T) {
	f := newFixture(t)

	res, err := f.engine.HandleEvent(context.Background(), HandleEventInput{
		ProspectID: uuid.New(),
		EventType:  domain.EventMessage,
	})
	if err != nil {
		t.Fatalf("unknown prospect must not be an error, got %v", err)
	}
	if res.StageChanged {
		t.Fatal("no stage change for unknown prospect")
	}
	if len(f.pipeline.events) != 0 {
		t.Fatal("no ledger entry for unknown prospect")
	}
}

func TestHandleEventMissingTargetStageSkipped(t *testing.T) {
	f := newFixture(t)
	prospectID := f.addProspect(domain.StageInitialContact)
	f.engine.rules = []domain.Rule{
		{
			Name:     "into-the-void",
			Triggers: []domain.EventType{domain.EventMessage},
			ToStage:  "Retired",
		},
	}

	res, err := f.engine.HandleEvent(context.Background(), HandleEventInput{
		ProspectID: prospectID,
		EventType:  domain.EventMessage,
	})
	if err != nil {
		t.Fatalf("missing target stage must not be an error, got %v", err)
	}
	if res.StageChanged || f.prospects.setStageCalled {
		t.Fatal("transition must be skipped when the target stage is absent")
	}
	if len(f.pipeline.events) != 1 {
		t.Fatal("event must still reach the ledger")
	}
}

func TestHandleEventProposalNeedsConsultationFirst(t *testing.T) {
	f := newFixture(t)
	prospectID := f.addProspect(domain.StageInitialContact)

	res, err := f.engine.HandleEvent(context.Background(), HandleEventInput{
		ProspectID: prospectID,
		EventType:  domain.EventProposalSent,
	})
	if err != nil {
		t.Fatalf("HandleEvent: %v", err)
	}
	if res.StageChanged {
		t.Fatal("proposal rule requires at least the consultation stage")
	}
}
