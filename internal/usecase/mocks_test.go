//go:build !integration

// File: internal/usecase/mocks_test.go
package usecase

import (
	"context"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v4"
	"github.com/rs/zerolog"

	"logistics-payment-engine/internal/domain"
	"logistics-payment-engine/internal/domain/model"
	"logistics-payment-engine/internal/domain/ports/adapter"
	"logistics-payment-engine/internal/domain/ports/repository"
)

func newTestLogger() *zerolog.Logger {
	l := zerolog.Nop()
	return &l
}

// ===== wallets =====

// memWalletRepo is a small in-memory implementation used by unit tests.
type memWalletRepo struct {
	mu        sync.RWMutex
	store     map[string]*model.Wallet // by ID
	saveErr   error                    // used by tests to simulate save failures
	adjustErr error
}

func newMemWalletRepo() *memWalletRepo {
	return &memWalletRepo{store: make(map[string]*model.Wallet)}
}

func (m *memWalletRepo) Save(ctx context.Context, tx repository.Tx, w *model.Wallet) error {
	if m.saveErr != nil {
		return m.saveErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *w
	m.store[w.ID] = &cp
	return nil
}

func (m *memWalletRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.Wallet, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	w, ok := m.store[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *w
	return &cp, nil
}

func sameOwner(a, b *string) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}

func (m *memWalletRepo) FindByOwnerAndKind(ctx context.Context, tx repository.Tx, ownerID *string, kind model.WalletKind) (*model.Wallet, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, w := range m.store {
		if w.Kind == kind && sameOwner(w.OwnerID, ownerID) {
			cp := *w
			return &cp, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (m *memWalletRepo) FindActiveByOwner(ctx context.Context, tx repository.Tx, ownerID string) (*model.Wallet, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, w := range m.store {
		if w.Active && w.OwnerID != nil && *w.OwnerID == ownerID {
			cp := *w
			return &cp, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (m *memWalletRepo) GetOrCreate(ctx context.Context, tx repository.Tx, ownerID *string, kind model.WalletKind, currency string) (*model.Wallet, error) {
	if w, err := m.FindByOwnerAndKind(ctx, tx, ownerID, kind); err == nil {
		return w, nil
	}
	w, err := model.NewWallet(uuid.NewString(), kind, ownerID, currency)
	if err != nil {
		return nil, err
	}
	if err := m.Save(ctx, tx, w); err != nil {
		return nil, err
	}
	cp := *w
	return &cp, nil
}

func (m *memWalletRepo) AdjustBalance(ctx context.Context, tx repository.Tx, walletID string, delta int64) error {
	if m.adjustErr != nil {
		return m.adjustErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	w, ok := m.store[walletID]
	if !ok || !w.Active {
		return domain.ErrWalletNotFound
	}
	if w.Balance+delta < 0 {
		return domain.ErrInvalidAmount
	}
	w.Balance += delta
	w.UpdatedAt = time.Now()
	return nil
}

func (m *memWalletRepo) Deactivate(ctx context.Context, tx repository.Tx, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	w, ok := m.store[id]
	if !ok {
		return domain.ErrNotFound
	}
	w.Active = false
	return nil
}

// balance is a test helper; it never copies.
func (m *memWalletRepo) balance(id string) int64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if w, ok := m.store[id]; ok {
		return w.Balance
	}
	return 0
}

// ===== transactions =====

type memTxnRepo struct {
	mu      sync.RWMutex
	store   map[string]*model.PaymentTransaction
	order   []string // insertion order, stands in for created_at ordering
	saveErr error
}

func newMemTxnRepo() *memTxnRepo {
	return &memTxnRepo{store: make(map[string]*model.PaymentTransaction)}
}

func (m *memTxnRepo) Save(ctx context.Context, tx repository.Tx, t *model.PaymentTransaction) error {
	if m.saveErr != nil {
		return m.saveErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.store[t.ID]; !ok {
		m.order = append(m.order, t.ID)
	}
	cp := *t
	m.store[t.ID] = &cp
	return nil
}

func (m *memTxnRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.PaymentTransaction, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	t, ok := m.store[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *t
	return &cp, nil
}

func (m *memTxnRepo) FindByShipmentAndKind(ctx context.Context, tx repository.Tx, shipmentID string, kind model.TransactionKind) (*model.PaymentTransaction, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var found *model.PaymentTransaction
	for _, id := range m.order {
		t := m.store[id]
		if t.ShipmentID != nil && *t.ShipmentID == shipmentID && t.Kind == kind {
			found = t // keep the most recent
		}
	}
	if found == nil {
		return nil, domain.ErrNotFound
	}
	cp := *found
	return &cp, nil
}

func (m *memTxnRepo) ListByShipment(ctx context.Context, tx repository.Tx, shipmentID string) ([]*model.PaymentTransaction, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*model.PaymentTransaction
	for _, id := range m.order {
		t := m.store[id]
		if t.ShipmentID != nil && *t.ShipmentID == shipmentID {
			cp := *t
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (m *memTxnRepo) UpdateStatus(ctx context.Context, tx repository.Tx, id string, status model.TransactionStatus, providerRef *string, processedAt *time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.store[id]
	if !ok {
		return domain.ErrNotFound
	}
	t.Status = status
	if providerRef != nil {
		t.ProviderRef = providerRef
	}
	if processedAt != nil {
		t.ProcessedAt = processedAt
	}
	t.UpdatedAt = time.Now()
	return nil
}

func (m *memTxnRepo) UpdateStatusIf(ctx context.Context, tx repository.Tx, id string, from []model.TransactionStatus, to model.TransactionStatus) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.store[id]
	if !ok {
		return false, nil
	}
	for _, f := range from {
		if t.Status == f {
			t.Status = to
			t.UpdatedAt = time.Now()
			return true, nil
		}
	}
	return false, nil
}

func (m *memTxnRepo) MarkSettled(ctx context.Context, tx repository.Tx, id string, from []model.TransactionStatus, settledAt time.Time) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.store[id]
	if !ok {
		return false, nil
	}
	for _, f := range from {
		if t.Status == f {
			t.Status = model.TransactionStatusSettled
			t.SettledAt = &settledAt
			t.UpdatedAt = time.Now()
			return true, nil
		}
	}
	return false, nil
}

func (m *memTxnRepo) SetProviderResponse(ctx context.Context, tx repository.Tx, id string, providerRef *string, response map[string]interface{}) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.store[id]
	if !ok {
		return domain.ErrNotFound
	}
	if providerRef != nil {
		t.ProviderRef = providerRef
	}
	t.ProviderResponse = response
	now := time.Now()
	t.ProcessedAt = &now
	t.UpdatedAt = now
	return nil
}

func (m *memTxnRepo) ListStaleInFlight(ctx context.Context, tx repository.Tx, olderThan time.Time, limit int) ([]*model.PaymentTransaction, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*model.PaymentTransaction
	for _, id := range m.order {
		t := m.store[id]
		inFlight := t.Status == model.TransactionStatusPending || t.Status == model.TransactionStatusProcessing
		if inFlight && t.UpdatedAt.Before(olderThan) {
			cp := *t
			out = append(out, &cp)
			if limit > 0 && len(out) >= limit {
				break
			}
		}
	}
	return out, nil
}

// status is a test helper for asserting on stored state.
func (m *memTxnRepo) status(id string) model.TransactionStatus {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if t, ok := m.store[id]; ok {
		return t.Status
	}
	return ""
}

// ===== subscriptions =====

type memSubRepo struct {
	mu      sync.RWMutex
	store   map[string]*model.FleetSubscription
	saveErr error
}

func newMemSubRepo() *memSubRepo {
	return &memSubRepo{store: make(map[string]*model.FleetSubscription)}
}

func (m *memSubRepo) Save(ctx context.Context, tx repository.Tx, s *model.FleetSubscription) error {
	if m.saveErr != nil {
		return m.saveErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *s
	m.store[s.ID] = &cp
	return nil
}

func (m *memSubRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.FleetSubscription, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.store[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *s
	return &cp, nil
}

func (m *memSubRepo) FindCurrentByFleet(ctx context.Context, tx repository.Tx, fleetID string) (*model.FleetSubscription, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var found *model.FleetSubscription
	for _, s := range m.store {
		if s.FleetID != fleetID {
			continue
		}
		if s.Status == model.SubscriptionStatusCancelled || s.Status == model.SubscriptionStatusExpired {
			continue
		}
		if found == nil || s.CreatedAt.After(found.CreatedAt) {
			found = s
		}
	}
	if found == nil {
		return nil, domain.ErrNotFound
	}
	cp := *found
	return &cp, nil
}

func (m *memSubRepo) ListDue(ctx context.Context, tx repository.Tx, now time.Time, limit int) ([]*model.FleetSubscription, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*model.FleetSubscription
	for _, s := range m.store {
		if s.Status == model.SubscriptionStatusActive && s.AutoRenew && !s.NextBillingDate.After(now) {
			cp := *s
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].NextBillingDate.Before(out[j].NextBillingDate) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// ===== refund requests =====

type memRefundRepo struct {
	mu      sync.RWMutex
	store   map[string]*model.RefundRequest
	order   []string
	saveErr error
}

func newMemRefundRepo() *memRefundRepo {
	return &memRefundRepo{store: make(map[string]*model.RefundRequest)}
}

func (m *memRefundRepo) Save(ctx context.Context, tx repository.Tx, r *model.RefundRequest) error {
	if m.saveErr != nil {
		return m.saveErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.store[r.ID]; !ok {
		m.order = append(m.order, r.ID)
	}
	cp := *r
	m.store[r.ID] = &cp
	return nil
}

func (m *memRefundRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.RefundRequest, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	r, ok := m.store[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *r
	return &cp, nil
}

func (m *memRefundRepo) FindOpenByShipment(ctx context.Context, tx repository.Tx, shipmentID string) (*model.RefundRequest, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, id := range m.order {
		r := m.store[id]
		if r.ShipmentID == shipmentID && !r.Status.Terminal() {
			cp := *r
			return &cp, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (m *memRefundRepo) FindByTransaction(ctx context.Context, tx repository.Tx, transactionID string) (*model.RefundRequest, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for i := len(m.order) - 1; i >= 0; i-- {
		r := m.store[m.order[i]]
		if r.TransactionID != nil && *r.TransactionID == transactionID {
			cp := *r
			return &cp, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (m *memRefundRepo) ListByShipment(ctx context.Context, tx repository.Tx, shipmentID string) ([]*model.RefundRequest, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*model.RefundRequest
	for _, id := range m.order {
		r := m.store[id]
		if r.ShipmentID == shipmentID {
			cp := *r
			out = append(out, &cp)
		}
	}
	return out, nil
}

// ===== audit =====

type memAuditRepo struct {
	mu      sync.RWMutex
	entries []*model.AuditEntry
}

func newMemAuditRepo() *memAuditRepo { return &memAuditRepo{} }

func (m *memAuditRepo) Append(ctx context.Context, tx repository.Tx, e *model.AuditEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *e
	m.entries = append(m.entries, &cp)
	return nil
}

func (m *memAuditRepo) ListBySubject(ctx context.Context, tx repository.Tx, subjectID string, limit int) ([]*model.AuditEntry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*model.AuditEntry
	for _, e := range m.entries {
		if e.SubjectID == subjectID {
			cp := *e
			out = append(out, &cp)
			if limit > 0 && len(out) >= limit {
				break
			}
		}
	}
	return out, nil
}

func (m *memAuditRepo) actions() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []string
	for _, e := range m.entries {
		out = append(out, e.Action)
	}
	return out
}

// mustHaveAction asserts that a state change left its trail entry.
func (m *memAuditRepo) mustHaveAction(t *testing.T, action string) {
	t.Helper()
	for _, a := range m.actions() {
		if a == action {
			return
		}
	}
	t.Errorf("no audit entry with action %q, got %v", action, m.actions())
}

// ===== config =====

type memConfigRepo struct {
	mu     sync.RWMutex
	store  map[string]*model.PaymentConfig
	getErr error
}

func newMemConfigRepo() *memConfigRepo {
	return &memConfigRepo{store: make(map[string]*model.PaymentConfig)}
}

func (m *memConfigRepo) set(key, value string, category model.ConfigCategory) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.store[key] = &model.PaymentConfig{Key: key, Category: category, Value: value, Version: 1, UpdatedBy: "test", UpdatedAt: time.Now()}
}

func (m *memConfigRepo) Get(ctx context.Context, key string) (*model.PaymentConfig, error) {
	if m.getErr != nil {
		return nil, m.getErr
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	c, ok := m.store[key]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *c
	return &cp, nil
}

func (m *memConfigRepo) ListByCategory(ctx context.Context, category model.ConfigCategory) ([]*model.PaymentConfig, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*model.PaymentConfig
	for _, c := range m.store {
		if c.Category == category {
			cp := *c
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (m *memConfigRepo) Upsert(ctx context.Context, cfg *model.PaymentConfig) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if prev, ok := m.store[cfg.Key]; ok {
		cfg.Version = prev.Version + 1
	} else {
		cfg.Version = 1
	}
	cp := *cfg
	m.store[cfg.Key] = &cp
	return nil
}

// ===== delivery confirmations =====

type memDeliveryRepo struct {
	mu    sync.RWMutex
	store map[string]*model.DeliveryConfirmation
}

func newMemDeliveryRepo() *memDeliveryRepo {
	return &memDeliveryRepo{store: make(map[string]*model.DeliveryConfirmation)}
}

func (m *memDeliveryRepo) Save(ctx context.Context, tx repository.Tx, d *model.DeliveryConfirmation) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.store[d.ShipmentID]; ok {
		return nil // first confirmation wins
	}
	cp := *d
	m.store[d.ShipmentID] = &cp
	return nil
}

func (m *memDeliveryRepo) FindByShipment(ctx context.Context, tx repository.Tx, shipmentID string) (*model.DeliveryConfirmation, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	d, ok := m.store[shipmentID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *d
	return &cp, nil
}

// ===== transaction manager =====

// mockTxManager runs the callback without a storage transaction. WithLockedTx
// still serializes per key so the locking contract holds in tests.
type mockTxManager struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
	txErr error
}

func newMockTxManager() *mockTxManager {
	return &mockTxManager{locks: make(map[string]*sync.Mutex)}
}

func (m *mockTxManager) WithTx(ctx context.Context, txOpt pgx.TxOptions, fn func(ctx context.Context, tx repository.Tx) error) error {
	if m.txErr != nil {
		return m.txErr
	}
	return fn(ctx, nil)
}

func (m *mockTxManager) WithLockedTx(ctx context.Context, txOpt pgx.TxOptions, lockKey string, fn func(ctx context.Context, tx repository.Tx) error) error {
	if m.txErr != nil {
		return m.txErr
	}
	m.mu.Lock()
	l, ok := m.locks[lockKey]
	if !ok {
		l = &sync.Mutex{}
		m.locks[lockKey] = l
	}
	m.mu.Unlock()
	l.Lock()
	defer l.Unlock()
	return fn(ctx, nil)
}

// ===== locker =====

type memLocker struct {
	mu   sync.Mutex
	held map[string]string // key -> token
	seq  int
}

func newMemLocker() *memLocker {
	return &memLocker{held: make(map[string]string)}
}

func (m *memLocker) TryLock(ctx context.Context, key string, ttl time.Duration) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.held[key]; ok {
		return "", domain.ErrLockNotAcquired
	}
	m.seq++
	token := uuid.NewString()
	m.held[key] = token
	return token, nil
}

func (m *memLocker) Unlock(ctx context.Context, key, token string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.held[key] == token {
		delete(m.held, key)
	}
	return nil
}

// ===== payment gateway =====

// mockGateway answers every call successfully unless the test queued a
// failure. Errors are consumed in call order, one per call.
type mockGateway struct {
	mu          sync.Mutex
	chargeErrs  []error
	refundErrs  []error
	statusErr   error
	statusByID  map[string]adapter.Result
	chargeCalls []adapter.ChargeRequest
	refundCalls []adapter.RefundCall
}

func newMockGateway() *mockGateway {
	return &mockGateway{statusByID: make(map[string]adapter.Result)}
}

func (g *mockGateway) Name() string { return "mock" }

func (g *mockGateway) failCharges(errs ...error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.chargeErrs = append(g.chargeErrs, errs...)
}

func (g *mockGateway) failRefunds(errs ...error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.refundErrs = append(g.refundErrs, errs...)
}

func (g *mockGateway) setStatus(transactionID string, res adapter.Result) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.statusByID[transactionID] = res
}

func (g *mockGateway) Charge(ctx context.Context, req adapter.ChargeRequest) (adapter.Result, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.chargeCalls = append(g.chargeCalls, req)
	if len(g.chargeErrs) > 0 {
		err := g.chargeErrs[0]
		g.chargeErrs = g.chargeErrs[1:]
		if err != nil {
			return adapter.Result{}, err
		}
	}
	return adapter.Result{
		ProviderTxnID:  "prov-" + req.TransactionID,
		ProviderStatus: "captured",
		Raw:            map[string]interface{}{"id": "prov-" + req.TransactionID},
	}, nil
}

func (g *mockGateway) Refund(ctx context.Context, req adapter.RefundCall) (adapter.Result, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.refundCalls = append(g.refundCalls, req)
	if len(g.refundErrs) > 0 {
		err := g.refundErrs[0]
		g.refundErrs = g.refundErrs[1:]
		if err != nil {
			return adapter.Result{}, err
		}
	}
	return adapter.Result{
		ProviderTxnID:  "prov-rf-" + req.TransactionID,
		ProviderStatus: "refunded",
		Raw:            map[string]interface{}{"id": "prov-rf-" + req.TransactionID},
	}, nil
}

func (g *mockGateway) Status(ctx context.Context, transactionID string) (adapter.Result, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.statusErr != nil {
		return adapter.Result{}, g.statusErr
	}
	if res, ok := g.statusByID[transactionID]; ok {
		return res, nil
	}
	return adapter.Result{}, domain.ErrNotFound
}

func (g *mockGateway) chargeCount() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.chargeCalls)
}
