package domain

import (
	"time"

	"github.com/google/uuid"
)

// Funnel is a named, ordered sequence of stages a prospect progresses through.
type Funnel struct {
	ID        uuid.UUID
	Name      string
	IsActive  bool
	CreatedAt time.Time
}

// Stage is one named, ordered step within a funnel. Order values are unique
// and strictly increasing within a funnel.
type Stage struct {
	ID        uuid.UUID
	FunnelID  uuid.UUID
	Name      string
	Order     int
	IsActive  bool
	CreatedAt time.Time
}

// StageHistoryEntry is an immutable record of one stage transition.
// MovedBy is nil when the automation engine performed the move.
type StageHistoryEntry struct {
	ID         uuid.UUID
	ProspectID uuid.UUID
	StageID    uuid.UUID
	FunnelID   uuid.UUID
	MovedAt    time.Time
	MovedBy    *uuid.UUID
	Notes      string
}

// ClientEvent is one append-only ledger row describing something that
// happened with a prospect.
type ClientEvent struct {
	ID          uuid.UUID
	ProspectID  uuid.UUID
	Type        EventType
	Description string
	ActorID     *uuid.UUID
	OccurredAt  time.Time
	CreatedAt   time.Time
}

// Prospect statuses derived from the stage the prospect sits in.
const (
	StatusNew          = "new"
	StatusContacted    = "contacted"
	StatusConsultation = "consultation"
	StatusQualified    = "qualified"
	StatusCustomer     = "customer"
	StatusAlumni       = "alumni"
)

// Canonical stage names of the default coaching funnel.
const (
	StageInitialContact = "Initial Contact"
	StageConsultation   = "Consultation"
	StageProposal       = "Proposal"
	StagePurchased      = "Purchased"
	StageActiveProgram  = "Active Program"
	StageCompleted      = "Completed"
)

var statusByStage = map[string]string{
	StageInitialContact: StatusContacted,
	StageConsultation:   StatusConsultation,
	StageProposal:       StatusQualified,
	StagePurchased:      StatusCustomer,
	StageActiveProgram:  StatusCustomer,
	StageCompleted:      StatusAlumni,
}

// StatusForStage maps a stage name to the derived prospect status.
// Unknown stage names report ok=false; the caller keeps the current status.
func StatusForStage(stageName string) (string, bool) {
	status, ok := statusByStage[stageName]
	return status, ok
}
