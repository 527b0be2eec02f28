package transport

import (
	"time"

	"github.com/google/uuid"
)

type CreateReminderRequest struct {
	ProspectID   uuid.UUID `json:"prospectId" validate:"required"`
	ReminderType string    `json:"reminderType" validate:"required,max=50"`
	Message      string    `json:"message" validate:"required,min=1,max=4000"`
	ScheduledAt  time.Time `json:"scheduledAt" validate:"required"`
}

type ReminderResponse struct {
	ID           uuid.UUID  `json:"id"`
	ProspectID   uuid.UUID  `json:"prospectId"`
	ReminderType string     `json:"reminderType"`
	Message      string     `json:"message"`
	ScheduledAt  time.Time  `json:"scheduledAt"`
	SentAt       *time.Time `json:"sentAt,omitempty"`
	IsSent       bool       `json:"isSent"`
	CreatedAt    time.Time  `json:"createdAt"`
}

type SweepResponse struct {
	Due      int `json:"due"`
	Sent     int `json:"sent"`
	Deferred int `json:"deferred"`
	Failed   int `json:"failed"`
}
