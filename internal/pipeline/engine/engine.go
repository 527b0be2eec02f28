// Package engine implements the pipeline automation engine: it matches newly
// logged events against the ordered rule table and applies stage transitions.
package engine

import (
	"context"
	"errors"
	"time"

	"coachflow_backend/internal/events"
	"coachflow_backend/internal/pipeline/domain"
	pipelinerepo "coachflow_backend/internal/pipeline/repository"
	prospectrepo "coachflow_backend/internal/prospects/repository"
	"coachflow_backend/platform/logger"

	"github.com/google/uuid"
)

// ProspectStore is the prospect mutation surface the engine needs.
// Satisfied by prospects/repository.Repository.
type ProspectStore interface {
	GetByID(ctx context.Context, id uuid.UUID) (prospectrepo.Prospect, error)
	SetStage(ctx context.Context, id, funnelID, stageID uuid.UUID, status string) error
	AdvanceLastContact(ctx context.Context, id uuid.UUID, at time.Time) error
	SetNextContact(ctx context.Context, id uuid.UUID, at *time.Time) error
}

// PipelineStore is the stage directory plus ledger surface the engine needs.
// Satisfied by pipeline/repository.Repository.
type PipelineStore interface {
	GetStageByID(ctx context.Context, id uuid.UUID) (domain.Stage, error)
	GetStageByName(ctx context.Context, funnelID uuid.UUID, name string) (domain.Stage, error)
	DefaultFunnel(ctx context.Context) (domain.Funnel, error)
	AppendEvent(ctx context.Context, e domain.ClientEvent) (domain.ClientEvent, error)
	AppendHistory(ctx context.Context, h domain.StageHistoryEntry) (domain.StageHistoryEntry, error)
}

// HandleEventInput describes one event reported into the automation core.
type HandleEventInput struct {
	ProspectID  uuid.UUID
	EventType   domain.EventType
	Description string
	ActorID     *uuid.UUID
	// OccurredAt defaults to now when zero.
	OccurredAt time.Time
	// FollowUpOverrideHours, when set, replaces the matched rule's follow-up
	// delay. Zero or negative clears any pending follow-up.
	FollowUpOverrideHours *int
}

// Result reports what the engine did with the event.
type Result struct {
	StageChanged  bool
	NewStage      string
	NextContactAt *time.Time
	AppliedRule   string
}

// Engine evaluates the ordered rule table against incoming events.
type Engine struct {
	prospects ProspectStore
	pipeline  PipelineStore
	rules     []domain.Rule
	bus       events.Bus
	log       *logger.Logger
}

// New creates an automation engine over the given stores and rule table.
func New(prospects ProspectStore, pipeline PipelineStore, rules []domain.Rule, bus events.Bus, log *logger.Logger) *Engine {
	return &Engine{
		prospects: prospects,
		pipeline:  pipeline,
		rules:     rules,
		bus:       bus,
		log:       log,
	}
}

// HandleEvent appends the event to the ledger, advances last_contact_at, and
// applies the first matching rule. A missing prospect or an event that matches
// no rule is a no-op, never an error to the caller.
func (e *Engine) HandleEvent(ctx context.Context, in HandleEventInput) (Result, error) {
	prospect, err := e.prospects.GetByID(ctx, in.ProspectID)
	if err != nil {
		if errors.Is(err, prospectrepo.ErrProspectNotFound) {
			e.log.Warn("event for unknown prospect dropped", "prospectId", in.ProspectID)
			return Result{}, nil
		}
		return Result{}, err
	}

	occurredAt := in.OccurredAt
	if occurredAt.IsZero() {
		occurredAt = time.Now()
	}

	if _, err := e.pipeline.AppendEvent(ctx, domain.ClientEvent{
		ProspectID:  prospect.ID,
		Type:        in.EventType,
		Description: in.Description,
		ActorID:     in.ActorID,
		OccurredAt:  occurredAt,
	}); err != nil {
		return Result{}, err
	}

	if err := e.prospects.AdvanceLastContact(ctx, prospect.ID, occurredAt); err != nil {
		return Result{}, err
	}

	currentName, currentOrder, funnelID, err := e.resolvePosition(ctx, prospect)
	if err != nil {
		return Result{}, err
	}

	rule, matched := domain.FirstMatch(e.rules, in.EventType, currentName, currentOrder)
	if !matched {
		return Result{}, nil
	}

	target, err := e.pipeline.GetStageByName(ctx, funnelID, rule.ToStage)
	if err != nil {
		if errors.Is(err, pipelinerepo.ErrStageNotFound) {
			e.log.Warn("rule target stage missing in funnel, transition skipped",
				"rule", rule.Name, "stage", rule.ToStage, "funnelId", funnelID)
			return Result{}, nil
		}
		return Result{}, err
	}

	// Forward-only guarantee: automation never demotes a prospect, and a move
	// to the current stage is a no-op.
	if prospect.StageID != nil && (*prospect.StageID == target.ID || target.Order < currentOrder) {
		return Result{}, nil
	}

	status, ok := domain.StatusForStage(target.Name)
	if !ok {
		status = prospect.Status
	}

	if err := e.prospects.SetStage(ctx, prospect.ID, funnelID, target.ID, status); err != nil {
		return Result{}, err
	}

	if _, err := e.pipeline.AppendHistory(ctx, domain.StageHistoryEntry{
		ProspectID: prospect.ID,
		StageID:    target.ID,
		FunnelID:   funnelID,
		MovedAt:    occurredAt,
		MovedBy:    in.ActorID,
		Notes:      rule.Notes,
	}); err != nil {
		return Result{}, err
	}

	result := Result{
		StageChanged: true,
		NewStage:     target.Name,
		AppliedRule:  rule.Name,
	}

	followUpHours := rule.FollowUpHours
	if in.FollowUpOverrideHours != nil {
		followUpHours = in.FollowUpOverrideHours
	}
	if followUpHours != nil {
		var nextContact *time.Time
		if *followUpHours > 0 {
			t := occurredAt.Add(time.Duration(*followUpHours) * time.Hour)
			nextContact = &t
		}
		if err := e.prospects.SetNextContact(ctx, prospect.ID, nextContact); err != nil {
			return Result{}, err
		}
		result.NextContactAt = nextContact
	}

	e.log.StageTransition(prospect.ID.String(), currentName, target.Name, rule.Name)
	if e.bus != nil {
		e.bus.Publish(ctx, events.ProspectStageChanged{
			BaseEvent:  events.NewBaseEvent(),
			ProspectID: prospect.ID,
			FunnelID:   funnelID,
			FromStage:  currentName,
			ToStage:    target.Name,
			Rule:       rule.Name,
		})
	}

	return result, nil
}

// resolvePosition determines the prospect's current stage name/order and the
// funnel rules resolve target stages against.
func (e *Engine) resolvePosition(ctx context.Context, prospect prospectrepo.Prospect) (string, int, uuid.UUID, error) {
	if prospect.StageID != nil {
		stage, err := e.pipeline.GetStageByID(ctx, *prospect.StageID)
		if err != nil {
			return "", 0, uuid.UUID{}, err
		}
		return stage.Name, stage.Order, stage.FunnelID, nil
	}

	if prospect.FunnelID != nil {
		return "", 0, *prospect.FunnelID, nil
	}

	funnel, err := e.pipeline.DefaultFunnel(ctx)
	if err != nil {
		return "", 0, uuid.UUID{}, err
	}
	return "", 0, funnel.ID, nil
}
