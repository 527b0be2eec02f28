package service

import (
	"context"
	"fmt"
	"testing"
	"time"

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

type fakePaymentStore struct {
	byExternal map[string]*repository.Payment
	promos     map[string]repository.PromoCode

	redeemed     []uuid.UUID
	redeemErr    error
	fulfilledIDs []uuid.UUID
}

func newFakePaymentStore() *fakePaymentStore {
	return &fakePaymentStore{
		byExternal: make(map[string]*repository.Payment),
		promos:     make(map[string]repository.PromoCode),
	}
}

func (f *fakePaymentStore) add(p repository.Payment) *repository.Payment {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	stored := p
	f.byExternal[p.ExternalID] = &stored
	return &stored
}

func (f *fakePaymentStore) Create(_ context.Context, p repository.Payment) (repository.Payment, error) {
	p.ID = uuid.New()
	p.Status = domain.StatusPending
	p.CreatedAt = time.Now()
	f.byExternal[p.ExternalID] = &p
	return p, nil
}

func (f *fakePaymentStore) GetByID(_ context.Context, id uuid.UUID) (repository.Payment, error) {
	for _, p := range f.byExternal {
		if p.ID == id {
			return *p, nil
		}
	}
	return repository.Payment{}, repository.ErrPaymentNotFound
}

func (f *fakePaymentStore) GetByExternalID(_ context.Context, externalID string) (repository.Payment, error) {
	if p, ok := f.byExternal[externalID]; ok {
		return *p, nil
	}
	return repository.Payment{}, repository.ErrPaymentNotFound
}

func (f *fakePaymentStore) ListByProspect(_ context.Context, prospectID uuid.UUID) ([]repository.Payment, error) {
	var result []repository.Payment
	for _, p := range f.byExternal {
		if p.ProspectID == prospectID {
			result = append(result, *p)
		}
	}
	return result, nil
}

func (f *fakePaymentStore) ListPending(_ context.Context, _ int) ([]repository.Payment, error) {
	var result []repository.Payment
	for _, p := range f.byExternal {
		if p.Status == domain.StatusPending {
			result = append(result, *p)
		}
	}
	return result, nil
}

func (f *fakePaymentStore) CompleteIfPending(_ context.Context, externalID string) (repository.Payment, bool, error) {
	p, ok := f.byExternal[externalID]
	if !ok || p.Status != domain.StatusPending {
		return repository.Payment{}, false, nil
	}
	now := time.Now()
	p.Status = domain.StatusCompleted
	p.CompletedAt = &now
	return *p, true, nil
}

func (f *fakePaymentStore) FailIfPending(_ context.Context, externalID string) (bool, error) {
	p, ok := f.byExternal[externalID]
	if !ok || p.Status != domain.StatusPending {
		return false, nil
	}
	p.Status = domain.StatusFailed
	return true, nil
}

func (f *fakePaymentStore) SetFulfilled(_ context.Context, id uuid.UUID) (bool, error) {
	for _, existing := range f.fulfilledIDs {
		if existing == id {
			return false, nil
		}
	}
	f.fulfilledIDs = append(f.fulfilledIDs, id)
	return true, nil
}

func (f *fakePaymentStore) CreatePromo(_ context.Context, p repository.PromoCode) (repository.PromoCode, error) {
	p.ID = uuid.New()
	f.promos[p.Code] = p
	return p, nil
}

func (f *fakePaymentStore) GetPromoByCode(_ context.Context, code string, _ time.Time) (repository.PromoCode, error) {
	if p, ok := f.promos[code]; ok {
		return p, nil
	}
	return repository.PromoCode{}, repository.ErrPromoNotFound
}

func (f *fakePaymentStore) ListPromos(_ context.Context) ([]repository.PromoCode, error) {
	var result []repository.PromoCode
	for _, p := range f.promos {
		result = append(result, p)
	}
	return result, nil
}

func (f *fakePaymentStore) RedeemPromo(_ context.Context, promoID, _, _ uuid.UUID) (bool, error) {
	if f.redeemErr != nil {
		return false, f.redeemErr
	}
	f.redeemed = append(f.redeemed, promoID)
	return true, nil
}

type fakeProvider struct {
	name     string
	statuses map[string]string
	polled   []string
}

func (f *fakeProvider) Name() string { return f.name }

func (f *fakeProvider) GetPayment(_ context.Context, externalID string) (provider.PaymentStatus, error) {
	f.polled = append(f.polled, externalID)
	status, ok := f.statuses[externalID]
	if !ok {
		return provider.PaymentStatus{}, fmt.Errorf("payment %s not found at provider", externalID)
	}
	return provider.PaymentStatus{ExternalID: externalID, Status: status}, nil
}

type fakeReporter struct {
	inputs []engine.HandleEventInput
}

func (f *fakeReporter) HandleEvent(_ context.Context, in engine.HandleEventInput) (engine.Result, error) {
	f.inputs = append(f.inputs, in)
	return engine.Result{StageChanged: true, NewStage: pipelinedomain.StagePurchased}, nil
}

type fakeEnqueuer struct {
	paymentIDs []uuid.UUID
}

func (f *fakeEnqueuer) EnqueueFulfillment(_ context.Context, paymentID uuid.UUID) error {
	f.paymentIDs = append(f.paymentIDs, paymentID)
	return nil
}

type paymentFixture struct {
	svc      *Service
	store    *fakePaymentStore
	provider *fakeProvider
	reporter *fakeReporter
	enqueuer *fakeEnqueuer
}

func newPaymentFixture() *paymentFixture {
	store := newFakePaymentStore()
	prov := &fakeProvider{name: "yookassa", statuses: make(map[string]string)}
	reporter := &fakeReporter{}
	enqueuer := &fakeEnqueuer{}
	svc := New(store, "yookassa", prov, reporter, enqueuer, nil, logger.New("development"))
	return &paymentFixture{svc: svc, store: store, provider: prov, reporter: reporter, enqueuer: enqueuer}
}

func TestApplyProviderUpdateCompletesOnce(t *testing.T) {
	f := newPaymentFixture()
	prospectID := uuid.New()
	payment := f.store.add(repository.Payment{
		ProspectID: prospectID, ExternalID: "pay-1",
		Status: domain.StatusPending, FinalAmount: 10000,
	})

	applied, err := f.svc.ApplyProviderUpdate(context.Background(), "yookassa", "pay-1", "succeeded")
	if err != nil {
		t.Fatalf("ApplyProviderUpdate: %v", err)
	}
	if !applied {
		t.Fatal("first update must complete the payment")
	}

	// Duplicate webhook for the same payment.
	applied, err = f.svc.ApplyProviderUpdate(context.Background(), "yookassa", "pay-1", "succeeded")
	if err != nil {
		t.Fatalf("ApplyProviderUpdate: %v", err)
	}
	if applied {
		t.Fatal("duplicate update must be a no-op")
	}

	if len(f.reporter.inputs) != 1 {
		t.Fatalf("pipeline must see exactly one payment event, got %d", len(f.reporter.inputs))
	}
	if f.reporter.inputs[0].EventType != pipelinedomain.EventPaymentReceived {
		t.Fatalf("unexpected event type %q", f.reporter.inputs[0].EventType)
	}
	if len(f.enqueuer.paymentIDs) != 1 || f.enqueuer.paymentIDs[0] != payment.ID {
		t.Fatalf("fulfillment must be enqueued exactly once: %v", f.enqueuer.paymentIDs)
	}
}

func TestApplyProviderUpdateFailedIsTerminal(t *testing.T) {
	f := newPaymentFixture()
	f.store.add(repository.Payment{ExternalID: "pay-2", Status: domain.StatusPending})

	applied, err := f.svc.ApplyProviderUpdate(context.Background(), "yookassa", "pay-2", "canceled")
	if err != nil {
		t.Fatalf("ApplyProviderUpdate: %v", err)
	}
	if !applied {
		t.Fatal("cancellation must fail the payment")
	}

	// A late success notification must not resurrect a failed payment.
	applied, err = f.svc.ApplyProviderUpdate(context.Background(), "yookassa", "pay-2", "succeeded")
	if err != nil {
		t.Fatalf("ApplyProviderUpdate: %v", err)
	}
	if applied {
		t.Fatal("failed is terminal")
	}
	if got := f.store.byExternal["pay-2"].Status; got != domain.StatusFailed {
		t.Fatalf("status = %q, want failed", got)
	}
}

func TestApplyProviderUpdateUnknownStatusIsNoOp(t *testing.T) {
	f := newPaymentFixture()
	f.store.add(repository.Payment{ExternalID: "pay-3", Status: domain.StatusPending})

	applied, err := f.svc.ApplyProviderUpdate(context.Background(), "yookassa", "pay-3", "some_new_state")
	if err != nil {
		t.Fatalf("ApplyProviderUpdate: %v", err)
	}
	if applied {
		t.Fatal("unknown provider status must stay pending")
	}
	if got := f.store.byExternal["pay-3"].Status; got != domain.StatusPending {
		t.Fatalf("status = %q, want pending", got)
	}
}

func TestApplyProviderUpdateUnknownPaymentIgnored(t *testing.T) {
	f := newPaymentFixture()

	applied, err := f.svc.ApplyProviderUpdate(context.Background(), "yookassa", "ghost", "succeeded")
	if err != nil {
		t.Fatalf("unknown payment must not error, got %v", err)
	}
	if applied {
		t.Fatal("nothing to apply for an unknown payment")
	}
}

func TestCompletionRedeemsPromo(t *testing.T) {
	f := newPaymentFixture()
	promoID := uuid.New()
	f.store.add(repository.Payment{
		ExternalID: "pay-4", Status: domain.StatusPending,
		ProspectID: uuid.New(), PromoCodeID: &promoID,
		Metadata: map[string]string{"promo_code": "SPRING20"},
	})

	if _, err := f.svc.ApplyProviderUpdate(context.Background(), "yookassa", "pay-4", "succeeded"); err != nil {
		t.Fatalf("ApplyProviderUpdate: %v", err)
	}

	if len(f.store.redeemed) != 1 || f.store.redeemed[0] != promoID {
		t.Fatalf("promo must be redeemed once: %v", f.store.redeemed)
	}
}

func TestCompletionSurvivesPromoFailure(t *testing.T) {
	f := newPaymentFixture()
	promoID := uuid.New()
	f.store.redeemErr = repository.ErrPromoExhausted
	f.store.add(repository.Payment{
		ExternalID: "pay-5", Status: domain.StatusPending,
		ProspectID: uuid.New(), PromoCodeID: &promoID,
	})

	applied, err := f.svc.ApplyProviderUpdate(context.Background(), "yookassa", "pay-5", "succeeded")
	if err != nil {
		t.Fatalf("ApplyProviderUpdate: %v", err)
	}
	if !applied {
		t.Fatal("payment completion must not be rolled back by promo trouble")
	}
	if got := f.store.byExternal["pay-5"].Status; got != domain.StatusCompleted {
		t.Fatalf("status = %q, want completed", got)
	}
}

func TestReconcilePendingConverges(t *testing.T) {
	f := newPaymentFixture()
	f.store.add(repository.Payment{ExternalID: "pay-a", Status: domain.StatusPending, ProspectID: uuid.New()})
	f.store.add(repository.Payment{ExternalID: "pay-b", Status: domain.StatusPending, ProspectID: uuid.New()})
	f.store.add(repository.Payment{ExternalID: "pay-c", Status: domain.StatusPending, ProspectID: uuid.New()})
	f.provider.statuses["pay-a"] = "succeeded"
	f.provider.statuses["pay-b"] = "pending"
	// pay-c missing at the provider: poll error, skipped

	checked, updated, err := f.svc.ReconcilePending(context.Background(), 100)
	if err != nil {
		t.Fatalf("ReconcilePending: %v", err)
	}
	if checked != 2 {
		t.Fatalf("checked = %d, want 2", checked)
	}
	if updated != 1 {
		t.Fatalf("updated = %d, want 1", updated)
	}
	if got := f.store.byExternal["pay-a"].Status; got != domain.StatusCompleted {
		t.Fatalf("pay-a status = %q, want completed", got)
	}
	if got := f.store.byExternal["pay-b"].Status; got != domain.StatusPending {
		t.Fatalf("pay-b status = %q, want pending", got)
	}
}

func TestReconcileWithoutProviderIsNoOp(t *testing.T) {
	f := newPaymentFixture()
	f.svc.provider = nil
	f.store.add(repository.Payment{ExternalID: "pay-x", Status: domain.StatusPending})

	checked, updated, err := f.svc.ReconcilePending(context.Background(), 100)
	if err != nil {
		t.Fatalf("ReconcilePending: %v", err)
	}
	if checked != 0 || updated != 0 {
		t.Fatalf("nothing must happen without a provider: %d/%d", checked, updated)
	}
}

func TestCreatePaymentAppliesPromoDiscount(t *testing.T) {
	f := newPaymentFixture()
	f.store.promos["SPRING20"] = repository.PromoCode{
		ID: uuid.New(), Code: "SPRING20",
		DiscountType: repository.DiscountPercent, DiscountValue: 20, IsActive: true,
	}

	resp, err := f.svc.CreatePayment(context.Background(), transport.CreatePaymentRequest{
		ProspectID: uuid.New(),
		Amount:     10000,
		PromoCode:  "SPRING20",
	})
	if err != nil {
		t.Fatalf("CreatePayment: %v", err)
	}

	if resp.Discount != 2000 || resp.FinalAmount != 8000 {
		t.Fatalf("discount = %d, final = %d", resp.Discount, resp.FinalAmount)
	}
	if resp.Status != string(domain.StatusPending) {
		t.Fatalf("status = %q, want pending", resp.Status)
	}
}

func TestCreatePaymentRejectsUnknownPromo(t *testing.T) {
	f := newPaymentFixture()

	_, err := f.svc.CreatePayment(context.Background(), transport.CreatePaymentRequest{
		ProspectID: uuid.New(),
		Amount:     10000,
		PromoCode:  "NOPE",
	})
	if !apperr.Is(err, apperr.KindValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestConfirmManualIsIdempotent(t *testing.T) {
	f := newPaymentFixture()
	payment := f.store.add(repository.Payment{
		ID: uuid.New(), ExternalID: "pay-m", Status: domain.StatusPending, ProspectID: uuid.New(),
	})

	first, err := f.svc.ConfirmManual(context.Background(), payment.ID)
	if err != nil {
		t.Fatalf("ConfirmManual: %v", err)
	}
	if first.Status != string(domain.StatusCompleted) {
		t.Fatalf("status = %q, want completed", first.Status)
	}

	second, err := f.svc.ConfirmManual(context.Background(), payment.ID)
	if err != nil {
		t.Fatalf("second ConfirmManual: %v", err)
	}
	if second.Status != string(domain.StatusCompleted) {
		t.Fatalf("second status = %q, want completed", second.Status)
	}
	if len(f.enqueuer.paymentIDs) != 1 {
		t.Fatalf("fulfillment enqueued %d times, want 1", len(f.enqueuer.paymentIDs))
	}
}

func TestFulfillOnlyOnce(t *testing.T) {
	f := newPaymentFixture()
	id := uuid.New()

	if err := f.svc.Fulfill(context.Background(), id); err != nil {
		t.Fatalf("Fulfill: %v", err)
	}
	if err := f.svc.Fulfill(context.Background(), id); err != nil {
		t.Fatalf("second Fulfill: %v", err)
	}
	if len(f.store.fulfilledIDs) != 1 {
		t.Fatalf("fulfilled %d times, want 1", len(f.store.fulfilledIDs))
	}
}
