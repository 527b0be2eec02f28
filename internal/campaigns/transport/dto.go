package transport

import (
	"time"

	"github.com/google/uuid"
)

type CreateCampaignRequest struct {
	Name     string            `json:"name" validate:"required,min=1,max=200"`
	Channels []string          `json:"channels" validate:"required,min=1,dive,oneof=whatsapp email"`
	Params   map[string]string `json:"params,omitempty" validate:"omitempty,max=20"`
}

type SetMessageRequest struct {
	Body string `json:"body" validate:"required,min=1,max=4000"`
}

type ScheduleCampaignRequest struct {
	ScheduleAt time.Time `json:"scheduleAt" validate:"required"`
}

type RunCampaignRequest struct {
	AudienceID *uuid.UUID `json:"audienceId,omitempty"`
	Limit      int        `json:"limit,omitempty" validate:"omitempty,min=1,max=10000"`
}

type SweepRequest struct {
	LimitPerRun int `json:"limitPerRun,omitempty" validate:"omitempty,min=1,max=10000"`
	MaxRuns     int `json:"maxRuns,omitempty" validate:"omitempty,min=1,max=100"`
}

type CampaignResponse struct {
	ID         uuid.UUID         `json:"id"`
	Name       string            `json:"name"`
	Status     string            `json:"status"`
	Channels   []string          `json:"channels"`
	ScheduleAt *time.Time        `json:"scheduleAt,omitempty"`
	Params     map[string]string `json:"params,omitempty"`
	CreatedAt  time.Time         `json:"createdAt"`
	UpdatedAt  time.Time         `json:"updatedAt"`
}

type PlanScheduleRequest struct {
	Start       time.Time `json:"start" validate:"required"`
	StepSeconds int       `json:"stepSeconds" validate:"required,min=1,max=86400"`
	Count       int       `json:"count" validate:"required,min=1,max=10000"`
	QuietStart  *int      `json:"quietStart,omitempty" validate:"omitempty,min=0,max=23"`
	QuietEnd    *int      `json:"quietEnd,omitempty" validate:"omitempty,min=0,max=23"`
}

type PlanScheduleResponse struct {
	Slots []time.Time `json:"slots"`
}

type RunSummaryResponse struct {
	RunID     uuid.UUID `json:"runId"`
	Processed int       `json:"processed"`
	Sent      int       `json:"sent"`
	Skipped   int       `json:"skipped"`
	Errors    int       `json:"errors"`
}

type RunResponse struct {
	ID          uuid.UUID  `json:"id"`
	CampaignID  uuid.UUID  `json:"campaignId"`
	AudienceID  *uuid.UUID `json:"audienceId,omitempty"`
	Status      string     `json:"status"`
	StartedAt   time.Time  `json:"startedAt"`
	CompletedAt *time.Time `json:"completedAt,omitempty"`
	Total       int        `json:"total"`
	Sent        int        `json:"sent"`
	Errors      int        `json:"errors"`
}

type DeliveryResponse struct {
	ID         uuid.UUID `json:"id"`
	RunID      uuid.UUID `json:"runId"`
	CampaignID uuid.UUID `json:"campaignId"`
	ProspectID uuid.UUID `json:"prospectId"`
	Channel    string    `json:"channel"`
	Status     string    `json:"status"`
	CreatedAt  time.Time `json:"createdAt"`
}

type CreateAudienceRequest struct {
	Name            string `json:"name" validate:"required,min=1,max=200"`
	StatusFilter    string `json:"statusFilter" validate:"omitempty,oneof=new contacted consultation qualified customer alumni"`
	RequireWhatsApp bool   `json:"requireWhatsapp"`
	RequireEmail    bool   `json:"requireEmail"`
	RequirePhone    bool   `json:"requirePhone"`
}

type AudienceResponse struct {
	ID              uuid.UUID `json:"id"`
	Name            string    `json:"name"`
	StatusFilter    string    `json:"statusFilter,omitempty"`
	RequireWhatsApp bool      `json:"requireWhatsapp"`
	RequireEmail    bool      `json:"requireEmail"`
	RequirePhone    bool      `json:"requirePhone"`
	CreatedAt       time.Time `json:"createdAt"`
}

type UpsertPreferenceRequest struct {
	AllowWhatsApp bool `json:"allowWhatsapp"`
	AllowEmail    bool `json:"allowEmail"`
	QuietStart    *int `json:"quietStart,omitempty" validate:"omitempty,min=0,max=23"`
	QuietEnd      *int `json:"quietEnd,omitempty" validate:"omitempty,min=0,max=23"`
}

type PreferenceResponse struct {
	ProspectID    uuid.UUID `json:"prospectId"`
	AllowWhatsApp bool      `json:"allowWhatsapp"`
	AllowEmail    bool      `json:"allowEmail"`
	QuietStart    *int      `json:"quietStart,omitempty"`
	QuietEnd      *int      `json:"quietEnd,omitempty"`
}
