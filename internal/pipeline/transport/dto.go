package transport

import (
	"time"

	"github.com/google/uuid"
)

type SubmitEventRequest struct {
	ProspectID    uuid.UUID  `json:"prospectId" validate:"required"`
	EventType     string     `json:"eventType" validate:"required,max=50"`
	Description   string     `json:"description" validate:"max=2000"`
	OccurredAt    *time.Time `json:"occurredAt,omitempty"`
	FollowUpHours *int       `json:"followUpHours,omitempty" validate:"omitempty,min=0,max=720"`
}

type SubmitEventResponse struct {
	StageChanged  bool       `json:"stageChanged"`
	NewStage      string     `json:"newStage,omitempty"`
	AppliedRule   string     `json:"appliedRule,omitempty"`
	NextContactAt *time.Time `json:"nextContactAt,omitempty"`
}

type FunnelResponse struct {
	ID        uuid.UUID `json:"id"`
	Name      string    `json:"name"`
	IsActive  bool      `json:"isActive"`
	CreatedAt time.Time `json:"createdAt"`
}

type StageResponse struct {
	ID       uuid.UUID `json:"id"`
	FunnelID uuid.UUID `json:"funnelId"`
	Name     string    `json:"name"`
	Order    int       `json:"order"`
	IsActive bool      `json:"isActive"`
}

type ClientEventResponse struct {
	ID          uuid.UUID  `json:"id"`
	ProspectID  uuid.UUID  `json:"prospectId"`
	EventType   string     `json:"eventType"`
	Description string     `json:"description,omitempty"`
	ActorID     *uuid.UUID `json:"actorId,omitempty"`
	OccurredAt  time.Time  `json:"occurredAt"`
	CreatedAt   time.Time  `json:"createdAt"`
}

type ListEventsRequest struct {
	Limit int `form:"limit" validate:"omitempty,min=1,max=500"`
}

type StageHistoryResponse struct {
	ID         uuid.UUID  `json:"id"`
	ProspectID uuid.UUID  `json:"prospectId"`
	StageID    uuid.UUID  `json:"stageId"`
	FunnelID   uuid.UUID  `json:"funnelId"`
	MovedAt    time.Time  `json:"movedAt"`
	MovedBy    *uuid.UUID `json:"movedBy,omitempty"`
	Notes      string     `json:"notes,omitempty"`
}

type RuleResponse struct {
	Name          string   `json:"name"`
	Triggers      []string `json:"triggers"`
	FromStage     string   `json:"fromStage,omitempty"`
	MinFromOrder  int      `json:"minFromOrder,omitempty"`
	ToStage       string   `json:"toStage"`
	FollowUpHours *int     `json:"followUpHours,omitempty"`
}
