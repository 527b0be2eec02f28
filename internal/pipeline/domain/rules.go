package domain

// Rule maps an incoming event to a target stage. Rules live in a fixed
// priority order and are evaluated top to bottom; the first rule whose
// constraints all hold wins and evaluation stops.
type Rule struct {
	Name string
	// Triggers is the set of event types this rule reacts to.
	Triggers []EventType
	// FromStage, when non-empty, requires the prospect's current stage name
	// to equal it exactly.
	FromStage string
	// MinFromOrder, when positive, requires the prospect's current stage
	// order to be at least this value.
	MinFromOrder int
	// ToStage is the target stage name, resolved within the prospect's funnel.
	ToStage string
	// FollowUpHours, when set, schedules next_contact_at relative to the
	// event time. Zero or negative clears any pending follow-up.
	FollowUpHours *int
	// Notes is recorded on the stage history entry.
	Notes string
}

// Matches reports whether the rule applies to the given event against the
// prospect's current position. currentStage is empty and currentOrder zero
// when the prospect has no stage yet.
func (r Rule) Matches(et EventType, currentStage string, currentOrder int) bool {
	triggered := false
	for _, trigger := range r.Triggers {
		if trigger == et {
			triggered = true
			break
		}
	}
	if !triggered {
		return false
	}

	if r.FromStage != "" && r.FromStage != currentStage {
		return false
	}
	if r.MinFromOrder > 0 && currentOrder < r.MinFromOrder {
		return false
	}
	return true
}

// FirstMatch returns the highest-priority matching rule. Evaluation stops at
// the first match; rules never stack within one call.
func FirstMatch(rules []Rule, et EventType, currentStage string, currentOrder int) (Rule, bool) {
	for _, rule := range rules {
		if rule.Matches(et, currentStage, currentOrder) {
			return rule, true
		}
	}
	return Rule{}, false
}

func hours(h int) *int { return &h }

// DefaultRules is the production rule table for the coaching funnel,
// ordered by priority.
var DefaultRules = []Rule{
	{
		Name:          "first-touch-to-consultation",
		Triggers:      []EventType{EventMessage, EventCall},
		FromStage:     StageInitialContact,
		ToStage:       StageConsultation,
		FollowUpHours: hours(24),
		Notes:         "Prospect responded, consultation offered",
	},
	{
		Name:          "consultation-booked",
		Triggers:      []EventType{EventConsultationScheduled},
		ToStage:       StageConsultation,
		FollowUpHours: hours(48),
		Notes:         "Consultation scheduled",
	},
	{
		Name:          "proposal-sent",
		Triggers:      []EventType{EventProposalSent},
		MinFromOrder:  2,
		ToStage:       StageProposal,
		FollowUpHours: hours(72),
		Notes:         "Proposal delivered",
	},
	{
		Name:     "payment-to-purchased",
		Triggers: []EventType{EventPaymentReceived},
		ToStage:  StagePurchased,
		Notes:    "Payment received",
	},
	{
		Name:      "program-started",
		Triggers:  []EventType{EventProgramAssigned},
		FromStage: StagePurchased,
		ToStage:   StageActiveProgram,
		Notes:     "Program assigned, onboarding started",
	},
}
