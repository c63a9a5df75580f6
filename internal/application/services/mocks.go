package services

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rideloop/payments/internal/application"
	"github.com/rideloop/payments/internal/domain"
)

// In-memory test doubles for the application ports. Default behavior is
// a working happy path backed by maps; set the Fn hooks to override
// individual calls. Safe for concurrent use so worker tests can race
// goroutines against them.

// MockIntentRepository
type MockIntentRepository struct {
	mu      sync.RWMutex
	intents map[string]*domain.PaymentIntent

	CreateFn          func(ctx context.Context, intent *domain.PaymentIntent) error
	FindByIDFn        func(ctx context.Context, id string) (*domain.PaymentIntent, error)
	FindByBookingIDFn func(ctx context.Context, bookingID string) (*domain.PaymentIntent, error)
	UpdateFn          func(ctx context.Context, intent *domain.PaymentIntent) error

	UpdateCalls int
}

func NewMockIntentRepository() *MockIntentRepository {
	return &MockIntentRepository{
		intents: make(map[string]*domain.PaymentIntent),
	}
}

func (m *MockIntentRepository) Create(ctx context.Context, intent *domain.PaymentIntent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.CreateFn != nil {
		return m.CreateFn(ctx, intent)
	}
	cp := *intent
	m.intents[intent.ID] = &cp
	return nil
}

func (m *MockIntentRepository) FindByID(ctx context.Context, id string) (*domain.PaymentIntent, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.FindByIDFn != nil {
		return m.FindByIDFn(ctx, id)
	}
	if p, ok := m.intents[id]; ok {
		cp := *p
		return &cp, nil
	}
	return nil, domain.NewIntentNotFoundError(id)
}

func (m *MockIntentRepository) FindByBookingID(ctx context.Context, bookingID string) (*domain.PaymentIntent, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.FindByBookingIDFn != nil {
		return m.FindByBookingIDFn(ctx, bookingID)
	}
	for _, p := range m.intents {
		if p.BookingID == bookingID {
			cp := *p
			return &cp, nil
		}
	}
	return nil, domain.NewIntentNotFoundError(bookingID)
}

// Update mimics the optimistic version check of the real repository:
// the write only lands when the caller holds the current version.
func (m *MockIntentRepository) Update(ctx context.Context, intent *domain.PaymentIntent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.UpdateCalls++
	if m.UpdateFn != nil {
		return m.UpdateFn(ctx, intent)
	}
	stored, ok := m.intents[intent.ID]
	if !ok {
		return domain.NewIntentNotFoundError(intent.ID)
	}
	if stored.Version != intent.Version {
		return domain.NewVersionConflictError(intent.ID)
	}
	intent.Version++
	cp := *intent
	m.intents[intent.ID] = &cp
	return nil
}

// Get returns the stored intent for assertions, bypassing hooks.
func (m *MockIntentRepository) Get(id string) *domain.PaymentIntent {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if p, ok := m.intents[id]; ok {
		cp := *p
		return &cp
	}
	return nil
}

// MockCaptureQueueRepository
type MockCaptureQueueRepository struct {
	mu    sync.Mutex
	items map[string]*domain.CaptureQueueItem

	EnqueueFn            func(ctx context.Context, item *domain.CaptureQueueItem) error
	FindDueFn            func(ctx context.Context, now time.Time, limit int) ([]*domain.CaptureQueueItem, error)
	ClaimFn              func(ctx context.Context, itemID string) (bool, error)
	UpdateFn             func(ctx context.Context, item *domain.CaptureQueueItem) error
	FindActiveByIntentFn func(ctx context.Context, paymentIntentID string) (*domain.CaptureQueueItem, error)
	ReclaimExpiredFn     func(ctx context.Context, cutoff time.Time) (int, error)

	ClaimCalls int
}

func NewMockCaptureQueueRepository() *MockCaptureQueueRepository {
	return &MockCaptureQueueRepository{
		items: make(map[string]*domain.CaptureQueueItem),
	}
}

func (m *MockCaptureQueueRepository) Enqueue(ctx context.Context, item *domain.CaptureQueueItem) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.EnqueueFn != nil {
		return m.EnqueueFn(ctx, item)
	}
	for _, existing := range m.items {
		if existing.PaymentIntentID == item.PaymentIntentID && !existing.IsTerminal() {
			return domain.NewDuplicateQueueItemError(item.PaymentIntentID)
		}
	}
	cp := *item
	m.items[item.ID] = &cp
	return nil
}

func (m *MockCaptureQueueRepository) FindDue(ctx context.Context, now time.Time, limit int) ([]*domain.CaptureQueueItem, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FindDueFn != nil {
		return m.FindDueFn(ctx, now, limit)
	}
	var due []*domain.CaptureQueueItem
	for _, item := range m.items {
		if item.Due(now) {
			cp := *item
			due = append(due, &cp)
			if len(due) == limit {
				break
			}
		}
	}
	return due, nil
}

// Claim is the compare-and-swap the worker relies on: under the mutex,
// only the first caller sees PENDING and flips it.
func (m *MockCaptureQueueRepository) Claim(ctx context.Context, itemID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ClaimCalls++
	if m.ClaimFn != nil {
		return m.ClaimFn(ctx, itemID)
	}
	item, ok := m.items[itemID]
	if !ok || item.Status != domain.CapturePending {
		return false, nil
	}
	now := time.Now()
	item.Status = domain.CaptureProcessing
	item.LastAttemptAt = &now
	return true, nil
}

func (m *MockCaptureQueueRepository) ReclaimExpired(ctx context.Context, cutoff time.Time) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.ReclaimExpiredFn != nil {
		return m.ReclaimExpiredFn(ctx, cutoff)
	}
	reclaimed := 0
	for _, item := range m.items {
		if item.Status == domain.CaptureProcessing && item.LastAttemptAt != nil && item.LastAttemptAt.Before(cutoff) {
			item.Status = domain.CapturePending
			reclaimed++
		}
	}
	return reclaimed, nil
}

func (m *MockCaptureQueueRepository) Update(ctx context.Context, item *domain.CaptureQueueItem) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.UpdateFn != nil {
		return m.UpdateFn(ctx, item)
	}
	cp := *item
	m.items[item.ID] = &cp
	return nil
}

func (m *MockCaptureQueueRepository) FindActiveByIntent(ctx context.Context, paymentIntentID string) (*domain.CaptureQueueItem, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FindActiveByIntentFn != nil {
		return m.FindActiveByIntentFn(ctx, paymentIntentID)
	}
	for _, item := range m.items {
		if item.PaymentIntentID == paymentIntentID && !item.IsTerminal() {
			cp := *item
			return &cp, nil
		}
	}
	return nil, nil
}

func (m *MockCaptureQueueRepository) Get(itemID string) *domain.CaptureQueueItem {
	m.mu.Lock()
	defer m.mu.Unlock()
	if item, ok := m.items[itemID]; ok {
		cp := *item
		return &cp
	}
	return nil
}

// MockEarningsRepository
type MockEarningsRepository struct {
	mu        sync.Mutex
	byBooking map[string]*domain.EarningsRecord

	UpsertByBookingFn func(ctx context.Context, record *domain.EarningsRecord) error
	FindByBookingIDFn func(ctx context.Context, bookingID string) (*domain.EarningsRecord, error)
	UpdateFn          func(ctx context.Context, record *domain.EarningsRecord) error
	FindPendingFn     func(ctx context.Context, limit int) ([]*domain.EarningsRecord, error)

	UpsertCalls int
}

func NewMockEarningsRepository() *MockEarningsRepository {
	return &MockEarningsRepository{
		byBooking: make(map[string]*domain.EarningsRecord),
	}
}

func (m *MockEarningsRepository) UpsertByBooking(ctx context.Context, record *domain.EarningsRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.UpsertCalls++
	if m.UpsertByBookingFn != nil {
		return m.UpsertByBookingFn(ctx, record)
	}
	if _, ok := m.byBooking[record.BookingID]; ok {
		return nil
	}
	cp := *record
	m.byBooking[record.BookingID] = &cp
	return nil
}

func (m *MockEarningsRepository) FindByBookingID(ctx context.Context, bookingID string) (*domain.EarningsRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FindByBookingIDFn != nil {
		return m.FindByBookingIDFn(ctx, bookingID)
	}
	if r, ok := m.byBooking[bookingID]; ok {
		cp := *r
		return &cp, nil
	}
	return nil, nil
}

func (m *MockEarningsRepository) Update(ctx context.Context, record *domain.EarningsRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.UpdateFn != nil {
		return m.UpdateFn(ctx, record)
	}
	cp := *record
	m.byBooking[record.BookingID] = &cp
	return nil
}

func (m *MockEarningsRepository) FindPending(ctx context.Context, limit int) ([]*domain.EarningsRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FindPendingFn != nil {
		return m.FindPendingFn(ctx, limit)
	}
	var pending []*domain.EarningsRecord
	for _, r := range m.byBooking {
		if r.Status == domain.EarningsPending {
			cp := *r
			pending = append(pending, &cp)
			if len(pending) == limit {
				break
			}
		}
	}
	return pending, nil
}

func (m *MockEarningsRepository) Get(bookingID string) *domain.EarningsRecord {
	m.mu.Lock()
	defer m.mu.Unlock()
	if r, ok := m.byBooking[bookingID]; ok {
		cp := *r
		return &cp
	}
	return nil
}

// MockReferralRepository
type MockReferralRepository struct {
	mu     sync.Mutex
	grants map[string]*domain.ReferralDiscountGrant

	FindByIDFn                    func(ctx context.Context, id string) (*domain.ReferralDiscountGrant, error)
	FindConsumableByBeneficiaryFn func(ctx context.Context, beneficiaryID string) (*domain.ReferralDiscountGrant, error)
	FindByReferralUseFn           func(ctx context.Context, referralUseID string, role domain.GrantRole) (*domain.ReferralDiscountGrant, error)
	UpdateFn                      func(ctx context.Context, grant *domain.ReferralDiscountGrant) error
}

func NewMockReferralRepository() *MockReferralRepository {
	return &MockReferralRepository{
		grants: make(map[string]*domain.ReferralDiscountGrant),
	}
}

func (m *MockReferralRepository) Seed(grant *domain.ReferralDiscountGrant) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *grant
	m.grants[grant.ID] = &cp
}

func (m *MockReferralRepository) FindByID(ctx context.Context, id string) (*domain.ReferralDiscountGrant, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FindByIDFn != nil {
		return m.FindByIDFn(ctx, id)
	}
	if g, ok := m.grants[id]; ok {
		cp := *g
		return &cp, nil
	}
	return nil, domain.NewGrantNotConsumableError(id, "")
}

func (m *MockReferralRepository) FindConsumableByBeneficiary(ctx context.Context, beneficiaryID string) (*domain.ReferralDiscountGrant, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FindConsumableByBeneficiaryFn != nil {
		return m.FindConsumableByBeneficiaryFn(ctx, beneficiaryID)
	}
	for _, g := range m.grants {
		if g.BeneficiaryID == beneficiaryID && g.Consumable() {
			cp := *g
			return &cp, nil
		}
	}
	return nil, nil
}

func (m *MockReferralRepository) FindByReferralUse(ctx context.Context, referralUseID string, role domain.GrantRole) (*domain.ReferralDiscountGrant, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FindByReferralUseFn != nil {
		return m.FindByReferralUseFn(ctx, referralUseID, role)
	}
	for _, g := range m.grants {
		if g.ReferralUseID == referralUseID && g.Role == role {
			cp := *g
			return &cp, nil
		}
	}
	return nil, nil
}

func (m *MockReferralRepository) Update(ctx context.Context, grant *domain.ReferralDiscountGrant) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.UpdateFn != nil {
		return m.UpdateFn(ctx, grant)
	}
	cp := *grant
	m.grants[grant.ID] = &cp
	return nil
}

func (m *MockReferralRepository) Get(id string) *domain.ReferralDiscountGrant {
	m.mu.Lock()
	defer m.mu.Unlock()
	if g, ok := m.grants[id]; ok {
		cp := *g
		return &cp
	}
	return nil
}

// MockProviderGateway
type MockProviderGateway struct {
	mu sync.Mutex

	AuthorizeFn func(ctx context.Context, req application.ProviderAuthorizationRequest, idempotencyKey string) (*application.ProviderAuthorizationResponse, error)
	CaptureFn   func(ctx context.Context, req application.ProviderCaptureRequest, idempotencyKey string) (*application.ProviderCaptureResponse, error)
	CancelFn    func(ctx context.Context, req application.ProviderCancelRequest, idempotencyKey string) (*application.ProviderCancelResponse, error)
	RefundFn    func(ctx context.Context, req application.ProviderRefundRequest, idempotencyKey string) (*application.ProviderRefundResponse, error)
	GetChargeFn func(ctx context.Context, externalRef string) (*application.ProviderChargeStatus, error)

	// Delay, when set, is slept before every call to widen race windows.
	Delay time.Duration

	AuthorizeCalls int
	CaptureCalls   int
	CancelCalls    int
	RefundCalls    int
	GetChargeCalls int
}

func NewMockProviderGateway() *MockProviderGateway {
	return &MockProviderGateway{}
}

func (m *MockProviderGateway) before(counter *int) {
	m.mu.Lock()
	*counter++
	delay := m.Delay
	m.mu.Unlock()
	if delay > 0 {
		time.Sleep(delay)
	}
}

func (m *MockProviderGateway) Authorize(ctx context.Context, req application.ProviderAuthorizationRequest, idempotencyKey string) (*application.ProviderAuthorizationResponse, error) {
	m.before(&m.AuthorizeCalls)
	if m.AuthorizeFn != nil {
		return m.AuthorizeFn(ctx, req, idempotencyKey)
	}
	return &application.ProviderAuthorizationResponse{
		ExternalRef: "ch_" + uuid.New().String(),
		Status:      application.ChargeAuthorized,
		CreatedAt:   time.Now(),
	}, nil
}

func (m *MockProviderGateway) Capture(ctx context.Context, req application.ProviderCaptureRequest, idempotencyKey string) (*application.ProviderCaptureResponse, error) {
	m.before(&m.CaptureCalls)
	if m.CaptureFn != nil {
		return m.CaptureFn(ctx, req, idempotencyKey)
	}
	return &application.ProviderCaptureResponse{
		ExternalRef:    req.ExternalRef,
		Status:         application.ChargeCaptured,
		CapturedAmount: req.AmountCents,
		CapturedAt:     time.Now(),
	}, nil
}

func (m *MockProviderGateway) Cancel(ctx context.Context, req application.ProviderCancelRequest, idempotencyKey string) (*application.ProviderCancelResponse, error) {
	m.before(&m.CancelCalls)
	if m.CancelFn != nil {
		return m.CancelFn(ctx, req, idempotencyKey)
	}
	return &application.ProviderCancelResponse{
		ExternalRef: req.ExternalRef,
		Status:      application.ChargeCanceled,
		CanceledAt:  time.Now(),
	}, nil
}

func (m *MockProviderGateway) Refund(ctx context.Context, req application.ProviderRefundRequest, idempotencyKey string) (*application.ProviderRefundResponse, error) {
	m.before(&m.RefundCalls)
	if m.RefundFn != nil {
		return m.RefundFn(ctx, req, idempotencyKey)
	}
	return &application.ProviderRefundResponse{
		RefundRef:  "re_" + uuid.New().String(),
		Status:     application.ChargeRefunded,
		RefundedAt: time.Now(),
	}, nil
}

func (m *MockProviderGateway) GetCharge(ctx context.Context, externalRef string) (*application.ProviderChargeStatus, error) {
	m.before(&m.GetChargeCalls)
	if m.GetChargeFn != nil {
		return m.GetChargeFn(ctx, externalRef)
	}
	return &application.ProviderChargeStatus{
		ExternalRef: externalRef,
		Status:      application.ChargeAuthorized,
	}, nil
}

// MockNotifier
type MockNotifier struct {
	mu         sync.Mutex
	DispatchFn func(ctx context.Context, n application.Notification) error
	Dispatched []application.Notification
}

func NewMockNotifier() *MockNotifier {
	return &MockNotifier{}
}

func (m *MockNotifier) Dispatch(ctx context.Context, n application.Notification) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.DispatchFn != nil {
		return m.DispatchFn(ctx, n)
	}
	m.Dispatched = append(m.Dispatched, n)
	return nil
}

// KindsDispatched returns the dispatched event kinds in order.
func (m *MockNotifier) KindsDispatched() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	kinds := make([]string, len(m.Dispatched))
	for i, n := range m.Dispatched {
		kinds[i] = n.Kind
	}
	return kinds
}
