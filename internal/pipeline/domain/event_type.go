package domain

// EventType is the closed set of actions that can be recorded against a
// prospect in the event ledger.
type EventType string

const (
	EventCall                  EventType = "call"
	EventMessage               EventType = "message"
	EventMeeting               EventType = "meeting"
	EventEmail                 EventType = "email"
	EventConsultation          EventType = "consultation"
	EventConsultationScheduled EventType = "consultation_scheduled"
	EventProposalSent          EventType = "proposal_sent"
	EventFollowUp              EventType = "follow_up"
	EventProgramAssigned       EventType = "program_assigned"
	EventPaymentReceived       EventType = "payment_received"
	EventOther                 EventType = "other"
)

var knownEventTypes = map[EventType]struct{}{
	EventCall:                  {},
	EventMessage:               {},
	EventMeeting:               {},
	EventEmail:                 {},
	EventConsultation:          {},
	EventConsultationScheduled: {},
	EventProposalSent:          {},
	EventFollowUp:              {},
	EventProgramAssigned:       {},
	EventPaymentReceived:       {},
	EventOther:                 {},
}

// ParseEventType validates a raw event type string.
func ParseEventType(raw string) (EventType, bool) {
	et := EventType(raw)
	_, ok := knownEventTypes[et]
	return et, ok
}
