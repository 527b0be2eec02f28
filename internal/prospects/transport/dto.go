package transport

import (
	"time"

	"github.com/google/uuid"
)

type CreateProspectRequest struct {
	FirstName  string `json:"firstName" validate:"required,min=1,max=100"`
	LastName   string `json:"lastName" validate:"max=100"`
	ChatHandle string `json:"chatHandle" validate:"max=100"`
	Email      string `json:"email" validate:"omitempty,email,max=255"`
	Phone      string `json:"phone" validate:"max=30"`
}

type UpdateProspectRequest struct {
	FirstName  *string `json:"firstName,omitempty" validate:"omitempty,min=1,max=100"`
	LastName   *string `json:"lastName,omitempty" validate:"omitempty,max=100"`
	ChatHandle *string `json:"chatHandle,omitempty" validate:"omitempty,max=100"`
	Email      *string `json:"email,omitempty" validate:"omitempty,email,max=255"`
	Phone      *string `json:"phone,omitempty" validate:"omitempty,max=30"`
}

type ListProspectsRequest struct {
	Status string `form:"status" validate:"omitempty,oneof=new contacted consultation qualified customer alumni"`
	Limit  int    `form:"limit" validate:"omitempty,min=1,max=500"`
}

type DeleteProspectRequest struct {
	Cascade bool `form:"cascade"`
}

type ProspectResponse struct {
	ID            uuid.UUID  `json:"id"`
	FirstName     string     `json:"firstName"`
	LastName      string     `json:"lastName,omitempty"`
	ChatHandle    string     `json:"chatHandle,omitempty"`
	Email         string     `json:"email,omitempty"`
	Phone         string     `json:"phone,omitempty"`
	FunnelID      *uuid.UUID `json:"funnelId,omitempty"`
	StageID       *uuid.UUID `json:"stageId,omitempty"`
	Status        string     `json:"status"`
	LastContactAt *time.Time `json:"lastContactAt,omitempty"`
	NextContactAt *time.Time `json:"nextContactAt,omitempty"`
	CreatedAt     time.Time  `json:"createdAt"`
	UpdatedAt     time.Time  `json:"updatedAt"`
}
