// Package events defines the domain events exchanged between modules.
package events

import (
	"time"

	"github.com/google/uuid"
)

// ProspectStageChanged is published when the automation engine moves a
// prospect to a new funnel stage.
type ProspectStageChanged struct {
	BaseEvent
	ProspectID uuid.UUID
	FunnelID   uuid.UUID
	FromStage  string
	ToStage    string
	Rule       string
}

// EventName returns the event identifier.
func (e ProspectStageChanged) EventName() string { return "pipeline.stage_changed" }

// PaymentCompleted is published exactly once per payment transition into the
// completed state.
type PaymentCompleted struct {
	BaseEvent
	PaymentID   uuid.UUID
	ProspectID  uuid.UUID
	ExternalID  string
	FinalAmount int64
	Currency    string
	PromoCode   string
	CompletedAt time.Time
}

// EventName returns the event identifier.
func (e PaymentCompleted) EventName() string { return "payments.completed" }

// CampaignRunFinished is published after a campaign run has processed its
// audience.
type CampaignRunFinished struct {
	BaseEvent
	RunID      uuid.UUID
	CampaignID uuid.UUID
	Processed  int
	Sent       int
	Errors     int
}

// EventName returns the event identifier.
func (e CampaignRunFinished) EventName() string { return "campaigns.run_finished" }

// ReminderSent is published when the reminder sweep delivers a due reminder.
type ReminderSent struct {
	BaseEvent
	ReminderID uuid.UUID
	ProspectID uuid.UUID
	Channel    string
}

// EventName returns the event identifier.
func (e ReminderSent) EventName() string { return "reminders.sent" }
