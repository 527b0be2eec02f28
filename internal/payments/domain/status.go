// Package domain defines payment statuses and provider status mapping.
package domain

// Status is the internal payment lifecycle state. Transitions are monotonic:
// pending may become completed or failed, and neither terminal state ever
// changes again.
type Status string

const (
	StatusPending   Status = "pending"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
)

// Payment kinds.
const (
	KindProgram      = "program"
	KindConsultation = "consultation"
	KindOther        = "other"
)

var yookassaStatuses = map[string]Status{
	"pending":             StatusPending,
	"waiting_for_capture": StatusPending,
	"succeeded":           StatusCompleted,
	"canceled":            StatusFailed,
}

var stripeStatuses = map[string]Status{
	"processing":              StatusPending,
	"requires_payment_method": StatusPending,
	"requires_confirmation":   StatusPending,
	"requires_action":         StatusPending,
	"requires_capture":        StatusPending,
	"succeeded":               StatusCompleted,
	"canceled":                StatusFailed,
	"payment_failed":          StatusFailed,
}

// MapProviderStatus translates a provider's raw status string to the internal
// status. Unknown provider names or raw statuses map to pending, so a new
// provider state never flips a payment into a terminal state by accident.
func MapProviderStatus(provider, raw string) Status {
	var table map[string]Status
	switch provider {
	case "yookassa":
		table = yookassaStatuses
	case "stripe":
		table = stripeStatuses
	default:
		return StatusPending
	}

	if status, ok := table[raw]; ok {
		return status
	}
	return StatusPending
}
