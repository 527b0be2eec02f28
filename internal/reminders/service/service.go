// Package service implements the reminder sweep: due reminders go out over
// the prospect's best allowed channel, deferring around quiet hours.
package service

import (
	"context"
	"errors"
	"time"

	"coachflow_backend/internal/campaigns/dispatch"
	campaignrepo "coachflow_backend/internal/campaigns/repository"
	"coachflow_backend/internal/events"
	prospectrepo "coachflow_backend/internal/prospects/repository"
	"coachflow_backend/internal/reminders/repository"
	"coachflow_backend/platform/apperr"
	"coachflow_backend/platform/logger"

	"github.com/google/uuid"
)

// Store is the reminders persistence surface.
// Satisfied by reminders/repository.Repository.
type Store interface {
	Create(ctx context.Context, rem repository.Reminder) (repository.Reminder, error)
	ListByProspect(ctx context.Context, prospectID uuid.UUID) ([]repository.Reminder, error)
	ListDue(ctx context.Context, now time.Time, limit int) ([]repository.Reminder, error)
	MarkSent(ctx context.Context, id uuid.UUID) (bool, error)
	Reschedule(ctx context.Context, id uuid.UUID, at time.Time) error
	Delete(ctx context.Context, id uuid.UUID) error
}

// ProspectStore resolves reminder recipients.
type ProspectStore interface {
	GetByID(ctx context.Context, id uuid.UUID) (prospectrepo.Prospect, error)
}

// PreferenceStore resolves channel consent and quiet hours.
// Satisfied by campaigns/repository.Repository.
type PreferenceStore interface {
	GetPreference(ctx context.Context, prospectID uuid.UUID) (campaignrepo.Preference, error)
}

// SweepResult reports one reminder sweep.
type SweepResult struct {
	Due      int
	Sent     int
	Deferred int
	Failed   int
}

// Service implements reminder scheduling and the delivery sweep.
type Service struct {
	repo      Store
	prospects ProspectStore
	prefs     PreferenceStore
	whatsapp  dispatch.Sender
	email     dispatch.Sender
	bus       events.Bus
	log       *logger.Logger
	now       func() time.Time
}

// New creates a reminders service. Either sender may be nil when the channel
// is not configured.
func New(repo Store, prospects ProspectStore, prefs PreferenceStore, whatsapp, email dispatch.Sender, bus events.Bus, log *logger.Logger) *Service {
	return &Service{
		repo:      repo,
		prospects: prospects,
		prefs:     prefs,
		whatsapp:  whatsapp,
		email:     email,
		bus:       bus,
		log:       log,
		now:       time.Now,
	}
}

// Schedule creates a reminder for a prospect.
func (s *Service) Schedule(ctx context.Context, prospectID uuid.UUID, reminderType, message string, at time.Time) (repository.Reminder, error) {
	if _, err := s.prospects.GetByID(ctx, prospectID); err != nil {
		if errors.Is(err, prospectrepo.ErrProspectNotFound) {
			return repository.Reminder{}, apperr.NotFound("prospect not found")
		}
		return repository.Reminder{}, apperr.Wrap(apperr.KindInternal, "failed to load prospect", err)
	}

	rem, err := s.repo.Create(ctx, repository.Reminder{
		ProspectID:   prospectID,
		ReminderType: reminderType,
		Message:      message,
		ScheduledAt:  at,
	})
	if err != nil {
		return repository.Reminder{}, apperr.Wrap(apperr.KindInternal, "failed to create reminder", err)
	}
	return rem, nil
}

// ListByProspect returns a prospect's reminders.
func (s *Service) ListByProspect(ctx context.Context, prospectID uuid.UUID) ([]repository.Reminder, error) {
	return s.repo.ListByProspect(ctx, prospectID)
}

// Cancel deletes a reminder.
func (s *Service) Cancel(ctx context.Context, id uuid.UUID) error {
	err := s.repo.Delete(ctx, id)
	if errors.Is(err, repository.ErrReminderNotFound) {
		return apperr.NotFound("reminder not found")
	}
	return err
}

// Sweep delivers due reminders. WhatsApp is preferred, email is the fallback.
// A reminder inside the prospect's quiet hours is rescheduled to the window's
// end; a failed send stays unsent and the next sweep retries it.
func (s *Service) Sweep(ctx context.Context, limit int) (SweepResult, error) {
	due, err := s.repo.ListDue(ctx, s.now(), limit)
	if err != nil {
		return SweepResult{}, err
	}

	result := SweepResult{Due: len(due)}
	for _, rem := range due {
		switch s.deliver(ctx, rem) {
		case deliverySent:
			result.Sent++
		case deliveryDeferred:
			result.Deferred++
		default:
			result.Failed++
		}
	}

	if result.Due > 0 {
		s.log.Info("reminder sweep finished",
			"due", result.Due, "sent", result.Sent, "deferred", result.Deferred, "failed", result.Failed)
	}
	return result, nil
}

type deliveryOutcome int

const (
	deliveryFailed deliveryOutcome = iota
	deliverySent
	deliveryDeferred
)

func (s *Service) deliver(ctx context.Context, rem repository.Reminder) deliveryOutcome {
	prospect, err := s.prospects.GetByID(ctx, rem.ProspectID)
	if err != nil {
		if errors.Is(err, prospectrepo.ErrProspectNotFound) {
			// recipient gone, drop the reminder
			if _, err := s.repo.MarkSent(ctx, rem.ID); err != nil {
				s.log.DatabaseError("reminders.mark_sent", err)
			}
			return deliveryDeferred
		}
		s.log.DatabaseError("reminders.get_prospect", err)
		return deliveryFailed
	}

	pref, err := s.prefs.GetPreference(ctx, prospect.ID)
	if err != nil {
		s.log.DatabaseError("reminders.get_preference", err)
		return deliveryFailed
	}

	if pref.QuietStart != nil && pref.QuietEnd != nil {
		now := s.now()
		if dispatch.InQuietHours(now.Hour(), *pref.QuietStart, *pref.QuietEnd) {
			next := dispatch.NextAllowedTime(now, *pref.QuietStart, *pref.QuietEnd)
			if err := s.repo.Reschedule(ctx, rem.ID, next); err != nil {
				s.log.DatabaseError("reminders.reschedule", err)
				return deliveryFailed
			}
			return deliveryDeferred
		}
	}

	body := dispatch.RenderTemplate(rem.Message, prospect, nil)
	channel, sender := s.pickChannel(prospect, pref)
	if sender == nil {
		s.log.Warn("no allowed channel for reminder", "reminderId", rem.ID, "prospectId", prospect.ID)
		return deliveryFailed
	}

	if err := sender.Send(ctx, prospect, body); err != nil {
		s.log.Error("reminder send failed", "reminderId", rem.ID, "channel", channel, "error", err)
		return deliveryFailed
	}

	if _, err := s.repo.MarkSent(ctx, rem.ID); err != nil {
		s.log.DatabaseError("reminders.mark_sent", err)
		return deliveryFailed
	}

	if s.bus != nil {
		s.bus.Publish(ctx, events.ReminderSent{
			BaseEvent:  events.NewBaseEvent(),
			ReminderID: rem.ID,
			ProspectID: prospect.ID,
			Channel:    channel,
		})
	}
	return deliverySent
}

func (s *Service) pickChannel(prospect prospectrepo.Prospect, pref campaignrepo.Preference) (string, dispatch.Sender) {
	if s.whatsapp != nil && pref.AllowWhatsApp && (prospect.ChatHandle != "" || prospect.Phone != "") {
		return campaignrepo.ChannelWhatsApp, s.whatsapp
	}
	if s.email != nil && pref.AllowEmail && prospect.Email != "" {
		return campaignrepo.ChannelEmail, s.email
	}
	return "", nil
}
