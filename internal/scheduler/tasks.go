package scheduler

import (
	"encoding/json"

	"github.com/hibiken/asynq"
)

const TaskPaymentReconcile = "payments.reconcile"

const TaskPaymentFulfill = "payments.fulfill"

const TaskCampaignSweep = "campaigns.sweep"

const TaskReminderSweep = "reminders.sweep"

type PaymentFulfillPayload struct {
	PaymentID string `json:"paymentId"`
}

func NewPaymentFulfillTask(payload PaymentFulfillPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskPaymentFulfill, data), nil
}

func ParsePaymentFulfillPayload(task *asynq.Task) (PaymentFulfillPayload, error) {
	var payload PaymentFulfillPayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		return PaymentFulfillPayload{}, err
	}
	return payload, nil
}

func NewPaymentReconcileTask() *asynq.Task {
	return asynq.NewTask(TaskPaymentReconcile, nil)
}

func NewCampaignSweepTask() *asynq.Task {
	return asynq.NewTask(TaskCampaignSweep, nil)
}

func NewReminderSweepTask() *asynq.Task {
	return asynq.NewTask(TaskReminderSweep, nil)
}
