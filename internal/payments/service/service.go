// Package service implements payment reconciliation: webhook ingestion,
// pending-payment polling, and the side effects of a completed payment.
package service

import (
	"context"
	"errors"
	"time"

	"coachflow_backend/internal/events"
	"coachflow_backend/internal/payments/domain"
	"coachflow_backend/internal/payments/provider"
	"coachflow_backend/internal/payments/repository"
	"coachflow_backend/internal/payments/transport"
	pipelinedomain "coachflow_backend/internal/pipeline/domain"
	"coachflow_backend/internal/pipeline/engine"
	"coachflow_backend/platform/apperr"
	"coachflow_backend/platform/logger"

	"github.com/google/uuid"
)

const metadataPromoCode = "promo_code"

// Store is the payments persistence surface the service needs.
// Satisfied by payments/repository.Repository.
type Store interface {
	Create(ctx context.Context, p repository.Payment) (repository.Payment, error)
	GetByID(ctx context.Context, id uuid.UUID) (repository.Payment, error)
	GetByExternalID(ctx context.Context, externalID string) (repository.Payment, error)
	ListByProspect(ctx context.Context, prospectID uuid.UUID) ([]repository.Payment, error)
	ListPending(ctx context.Context, limit int) ([]repository.Payment, error)
	CompleteIfPending(ctx context.Context, externalID string) (repository.Payment, bool, error)
	FailIfPending(ctx context.Context, externalID string) (bool, error)
	SetFulfilled(ctx context.Context, id uuid.UUID) (bool, error)
	CreatePromo(ctx context.Context, p repository.PromoCode) (repository.PromoCode, error)
	GetPromoByCode(ctx context.Context, code string, at time.Time) (repository.PromoCode, error)
	ListPromos(ctx context.Context) ([]repository.PromoCode, error)
	RedeemPromo(ctx context.Context, promoID, prospectID, paymentID uuid.UUID) (bool, error)
}

// ProviderClient is the poll surface of the payment provider.
// Satisfied by payments/provider.Client.
type ProviderClient interface {
	Name() string
	GetPayment(ctx context.Context, externalID string) (provider.PaymentStatus, error)
}

// EventReporter feeds payment events into the pipeline automation engine.
// Satisfied by pipeline/engine.Engine.
type EventReporter interface {
	HandleEvent(ctx context.Context, in engine.HandleEventInput) (engine.Result, error)
}

// FulfillmentEnqueuer schedules asynchronous post-payment fulfillment.
// Satisfied by scheduler.Client.
type FulfillmentEnqueuer interface {
	EnqueueFulfillment(ctx context.Context, paymentID uuid.UUID) error
}

// Service implements payment reconciliation.
type Service struct {
	repo            Store
	defaultProvider string
	provider        ProviderClient
	reporter        EventReporter
	enqueuer        FulfillmentEnqueuer
	bus             events.Bus
	log             *logger.Logger
	now             func() time.Time
}

// New creates a payments service. provider and enqueuer may be nil when the
// deployment runs without them; defaultProvider still names the status table
// used for webhook payloads.
func New(repo Store, defaultProvider string, providerClient ProviderClient, reporter EventReporter, enqueuer FulfillmentEnqueuer, bus events.Bus, log *logger.Logger) *Service {
	return &Service{
		repo:            repo,
		defaultProvider: defaultProvider,
		provider:        providerClient,
		reporter:        reporter,
		enqueuer:        enqueuer,
		bus:             bus,
		log:             log,
		now:             time.Now,
	}
}

// CreatePayment registers an expected payment in pending status, applying a
// promo code discount when one is supplied.
func (s *Service) CreatePayment(ctx context.Context, req transport.CreatePaymentRequest) (transport.PaymentResponse, error) {
	payment := repository.Payment{
		ProspectID:  req.ProspectID,
		Amount:      req.Amount,
		Currency:    req.Currency,
		Kind:        req.Kind,
		ExternalID:  req.ExternalID,
		FinalAmount: req.Amount,
		Metadata:    map[string]string{},
	}
	if payment.Currency == "" {
		payment.Currency = "RUB"
	}
	if payment.Kind == "" {
		payment.Kind = domain.KindProgram
	}
	if payment.ExternalID == "" {
		payment.ExternalID = uuid.NewString()
	}

	if req.PromoCode != "" {
		promo, err := s.repo.GetPromoByCode(ctx, req.PromoCode, s.now())
		if err != nil {
			if errors.Is(err, repository.ErrPromoNotFound) {
				return transport.PaymentResponse{}, apperr.Validation("promo code is invalid or expired")
			}
			return transport.PaymentResponse{}, apperr.Wrap(apperr.KindInternal, "failed to resolve promo code", err)
		}
		payment.PromoCodeID = &promo.ID
		payment.Discount = promo.Discount(req.Amount)
		payment.FinalAmount = req.Amount - payment.Discount
		payment.Metadata[metadataPromoCode] = promo.Code
	}

	created, err := s.repo.Create(ctx, payment)
	if err != nil {
		return transport.PaymentResponse{}, apperr.Wrap(apperr.KindInternal, "failed to create payment", err)
	}
	return toResponse(created), nil
}

// GetPayment retrieves one payment.
func (s *Service) GetPayment(ctx context.Context, id uuid.UUID) (transport.PaymentResponse, error) {
	p, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrPaymentNotFound) {
			return transport.PaymentResponse{}, apperr.NotFound("payment not found")
		}
		return transport.PaymentResponse{}, apperr.Wrap(apperr.KindInternal, "failed to load payment", err)
	}
	return toResponse(p), nil
}

// ListByProspect returns a prospect's payments.
func (s *Service) ListByProspect(ctx context.Context, prospectID uuid.UUID) ([]transport.PaymentResponse, error) {
	payments, err := s.repo.ListByProspect(ctx, prospectID)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindInternal, "failed to list payments", err)
	}

	result := make([]transport.PaymentResponse, 0, len(payments))
	for _, p := range payments {
		result = append(result, toResponse(p))
	}
	return result, nil
}

// ApplyProviderUpdate converges one payment toward the provider's state.
// Push (webhook) and poll (reconcile) both funnel through here, so a webhook
// that races the reconcile sweep still completes the payment exactly once.
// Returns true when this call performed the pending->terminal transition.
func (s *Service) ApplyProviderUpdate(ctx context.Context, providerName, externalID, rawStatus string) (bool, error) {
	switch domain.MapProviderStatus(providerName, rawStatus) {
	case domain.StatusCompleted:
		payment, completed, err := s.repo.CompleteIfPending(ctx, externalID)
		if err != nil {
			return false, err
		}
		if !completed {
			// unknown external id, or a duplicate update; both are fine
			return false, nil
		}
		s.onCompleted(ctx, payment)
		return true, nil

	case domain.StatusFailed:
		failed, err := s.repo.FailIfPending(ctx, externalID)
		if err != nil {
			return false, err
		}
		if failed {
			s.log.PaymentEvent("failed", externalID, rawStatus)
		}
		return failed, nil

	default:
		return false, nil
	}
}

// onCompleted runs the side effects of a completion. The status transition
// has already been committed; failures here are logged and retried by later
// sweeps or the fulfillment queue, never rolled back.
func (s *Service) onCompleted(ctx context.Context, payment repository.Payment) {
	s.log.PaymentEvent("completed", payment.ExternalID, string(domain.StatusCompleted))

	if payment.PromoCodeID != nil {
		redeemed, err := s.repo.RedeemPromo(ctx, *payment.PromoCodeID, payment.ProspectID, payment.ID)
		if err != nil {
			s.log.Error("promo redemption failed", "paymentId", payment.ID, "error", err)
		} else if !redeemed {
			s.log.Warn("promo already redeemed for payment", "paymentId", payment.ID)
		}
	}

	if s.reporter != nil {
		_, err := s.reporter.HandleEvent(ctx, engine.HandleEventInput{
			ProspectID:  payment.ProspectID,
			EventType:   pipelinedomain.EventPaymentReceived,
			Description: "payment " + payment.ExternalID + " completed",
			OccurredAt:  s.now(),
		})
		if err != nil {
			s.log.Error("failed to report payment event to pipeline", "paymentId", payment.ID, "error", err)
		}
	}

	if s.enqueuer != nil {
		if err := s.enqueuer.EnqueueFulfillment(ctx, payment.ID); err != nil {
			s.log.Error("failed to enqueue fulfillment", "paymentId", payment.ID, "error", err)
		}
	}

	if s.bus != nil {
		completedAt := s.now()
		if payment.CompletedAt != nil {
			completedAt = *payment.CompletedAt
		}
		s.bus.Publish(ctx, events.PaymentCompleted{
			BaseEvent:   events.NewBaseEvent(),
			PaymentID:   payment.ID,
			ProspectID:  payment.ProspectID,
			ExternalID:  payment.ExternalID,
			FinalAmount: payment.FinalAmount,
			Currency:    payment.Currency,
			PromoCode:   payment.Metadata[metadataPromoCode],
			CompletedAt: completedAt,
		})
	}
}

// HandleWebhook applies one provider push notification.
func (s *Service) HandleWebhook(ctx context.Context, externalID, rawStatus string) error {
	if externalID == "" {
		return apperr.BadRequest("webhook payload has no payment id")
	}
	_, err := s.ApplyProviderUpdate(ctx, s.providerName(), externalID, rawStatus)
	if err != nil {
		return apperr.Wrap(apperr.KindInternal, "failed to apply webhook update", err)
	}
	return nil
}

// ReconcilePending polls the provider for every pending payment and converges
// local state. Individual poll failures are logged and skipped so one flaky
// payment does not stall the sweep.
func (s *Service) ReconcilePending(ctx context.Context, limit int) (checked, updated int, err error) {
	if s.provider == nil {
		s.log.Debug("payment provider not configured, reconcile skipped")
		return 0, 0, nil
	}

	pending, err := s.repo.ListPending(ctx, limit)
	if err != nil {
		return 0, 0, err
	}

	for _, payment := range pending {
		status, err := s.provider.GetPayment(ctx, payment.ExternalID)
		if err != nil {
			s.log.Error("provider poll failed", "externalId", payment.ExternalID, "error", err)
			continue
		}
		checked++

		applied, err := s.ApplyProviderUpdate(ctx, s.provider.Name(), payment.ExternalID, status.Status)
		if err != nil {
			s.log.Error("reconcile update failed", "externalId", payment.ExternalID, "error", err)
			continue
		}
		if applied {
			updated++
		}
	}
	return checked, updated, nil
}

// ConfirmManual marks a payment completed on the operator's word, running the
// same completion path as a provider update.
func (s *Service) ConfirmManual(ctx context.Context, paymentID uuid.UUID) (transport.PaymentResponse, error) {
	payment, err := s.repo.GetByID(ctx, paymentID)
	if err != nil {
		if errors.Is(err, repository.ErrPaymentNotFound) {
			return transport.PaymentResponse{}, apperr.NotFound("payment not found")
		}
		return transport.PaymentResponse{}, apperr.Wrap(apperr.KindInternal, "failed to load payment", err)
	}
	if payment.Status == domain.StatusFailed {
		return transport.PaymentResponse{}, apperr.Conflict("payment already failed")
	}

	completed, wasPending, err := s.repo.CompleteIfPending(ctx, payment.ExternalID)
	if err != nil {
		return transport.PaymentResponse{}, apperr.Wrap(apperr.KindInternal, "failed to complete payment", err)
	}
	if !wasPending {
		// already completed, possibly by a racing webhook; idempotent
		current, err := s.repo.GetByID(ctx, paymentID)
		if err != nil {
			return toResponse(payment), nil
		}
		return toResponse(current), nil
	}

	s.onCompleted(ctx, completed)
	return toResponse(completed), nil
}

// Fulfill records post-payment fulfillment, invoked by the scheduler worker.
func (s *Service) Fulfill(ctx context.Context, paymentID uuid.UUID) error {
	first, err := s.repo.SetFulfilled(ctx, paymentID)
	if err != nil {
		return err
	}
	if first {
		s.log.Info("payment fulfilled", "paymentId", paymentID)
	}
	return nil
}

// CreatePromo registers a new promo code.
func (s *Service) CreatePromo(ctx context.Context, req transport.CreatePromoRequest) (transport.PromoResponse, error) {
	promo, err := s.repo.CreatePromo(ctx, repository.PromoCode{
		Code:               req.Code,
		DiscountType:       req.DiscountType,
		DiscountValue:      req.DiscountValue,
		MaxTotalUses:       req.MaxTotalUses,
		MaxUsesPerProspect: req.MaxUsesPerProspect,
		ValidFrom:          req.ValidFrom,
		ValidUntil:         req.ValidUntil,
		IsActive:           true,
	})
	if err != nil {
		return transport.PromoResponse{}, apperr.Wrap(apperr.KindInternal, "failed to create promo code", err)
	}
	return toPromoResponse(promo), nil
}

// ListPromos returns all promo codes.
func (s *Service) ListPromos(ctx context.Context) ([]transport.PromoResponse, error) {
	promos, err := s.repo.ListPromos(ctx)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindInternal, "failed to list promo codes", err)
	}

	result := make([]transport.PromoResponse, 0, len(promos))
	for _, p := range promos {
		result = append(result, toPromoResponse(p))
	}
	return result, nil
}

func (s *Service) providerName() string {
	if s.provider != nil {
		return s.provider.Name()
	}
	return s.defaultProvider
}

func toResponse(p repository.Payment) transport.PaymentResponse {
	return transport.PaymentResponse{
		ID:          p.ID,
		ProspectID:  p.ProspectID,
		Amount:      p.Amount,
		Currency:    p.Currency,
		Kind:        p.Kind,
		Status:      string(p.Status),
		ExternalID:  p.ExternalID,
		PromoCodeID: p.PromoCodeID,
		Discount:    p.Discount,
		FinalAmount: p.FinalAmount,
		Metadata:    p.Metadata,
		FulfilledAt: p.FulfilledAt,
		CreatedAt:   p.CreatedAt,
		CompletedAt: p.CompletedAt,
	}
}

func toPromoResponse(p repository.PromoCode) transport.PromoResponse {
	return transport.PromoResponse{
		ID:                 p.ID,
		Code:               p.Code,
		DiscountType:       p.DiscountType,
		DiscountValue:      p.DiscountValue,
		MaxTotalUses:       p.MaxTotalUses,
		MaxUsesPerProspect: p.MaxUsesPerProspect,
		UsedCount:          p.UsedCount,
		ValidFrom:          p.ValidFrom,
		ValidUntil:         p.ValidUntil,
		IsActive:           p.IsActive,
		CreatedAt:          p.CreatedAt,
	}
}
