//go:build !integration

package usecase_test

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v4"
	"github.com/rs/zerolog"

	"github.com/jabinweb/sciocare-sub001/internal/domain"
	"github.com/jabinweb/sciocare-sub001/internal/domain/model"
	"github.com/jabinweb/sciocare-sub001/internal/domain/ports/adapter"
	"github.com/jabinweb/sciocare-sub001/internal/domain/ports/repository"
	"github.com/jabinweb/sciocare-sub001/internal/usecase"
)

func testLogger() *zerolog.Logger {
	l := zerolog.Nop()
	return &l
}

// =============================
// Repositories
// =============================

// ---- Mock PaymentRepository ----

type MockPaymentRepo struct {
	mu   sync.Mutex
	data map[string]*model.Payment

	SaveFunc                  func(ctx context.Context, tx repository.Tx, p *model.Payment) error
	FindByIDFunc              func(ctx context.Context, tx repository.Tx, id string) (*model.Payment, error)
	FindByGatewayOrderIDFunc  func(ctx context.Context, tx repository.Tx, gateway model.Gateway, orderID string) (*model.Payment, error)
	UpdateStatusIfPendingFunc func(ctx context.Context, tx repository.Tx, id string, status model.PaymentStatus, gatewayPaymentID *string, failureReason *string) (bool, error)
	ListPendingOlderThanFunc  func(ctx context.Context, tx repository.Tx, olderThan time.Time, limit int) ([]*model.Payment, error)
}

var _ repository.PaymentRepository = (*MockPaymentRepo)(nil)

func NewMockPaymentRepo() *MockPaymentRepo {
	return &MockPaymentRepo{data: map[string]*model.Payment{}}
}

func (r *MockPaymentRepo) Save(ctx context.Context, tx repository.Tx, p *model.Payment) error {
	if r.SaveFunc != nil {
		return r.SaveFunc(ctx, tx, p)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *p
	if cp.ID == "" {
		cp.ID = uuid.NewString()
		p.ID = cp.ID
	}
	r.data[cp.ID] = &cp
	return nil
}

func (r *MockPaymentRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.Payment, error) {
	if r.FindByIDFunc != nil {
		return r.FindByIDFunc(ctx, tx, id)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if p, ok := r.data[id]; ok {
		cp := *p
		return &cp, nil
	}
	return nil, domain.ErrNotFound
}

func (r *MockPaymentRepo) FindByGatewayOrderID(ctx context.Context, tx repository.Tx, gateway model.Gateway, orderID string) (*model.Payment, error) {
	if r.FindByGatewayOrderIDFunc != nil {
		return r.FindByGatewayOrderIDFunc(ctx, tx, gateway, orderID)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, p := range r.data {
		if p.Gateway != gateway {
			continue
		}
		if (gateway == model.GatewayRazorpay && p.RazorpayOrderID == orderID) ||
			(gateway == model.GatewayCashfree && p.CashfreeOrderID == orderID) {
			cp := *p
			return &cp, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (r *MockPaymentRepo) UpdateStatusIfPending(ctx context.Context, tx repository.Tx, id string, status model.PaymentStatus, gatewayPaymentID *string, failureReason *string) (bool, error) {
	if r.UpdateStatusIfPendingFunc != nil {
		return r.UpdateStatusIfPendingFunc(ctx, tx, id, status, gatewayPaymentID, failureReason)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.data[id]
	if !ok {
		return false, domain.ErrNotFound
	}
	if p.Status != model.PaymentStatusPending {
		return false, nil
	}
	p.Status = status
	if gatewayPaymentID != nil {
		p.RazorpayPaymentID = *gatewayPaymentID
	}
	p.FailureReason = failureReason
	p.UpdatedAt = time.Now()
	return true, nil
}

func (r *MockPaymentRepo) ListPendingOlderThan(ctx context.Context, tx repository.Tx, olderThan time.Time, limit int) ([]*model.Payment, error) {
	if r.ListPendingOlderThanFunc != nil {
		return r.ListPendingOlderThanFunc(ctx, tx, olderThan, limit)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*model.Payment
	for _, p := range r.data {
		if p.Status == model.PaymentStatusPending && p.CreatedAt.Before(olderThan) {
			cp := *p
			out = append(out, &cp)
			if limit > 0 && len(out) >= limit {
				break
			}
		}
	}
	return out, nil
}

// ---- Mock SubscriptionRepository ----

type MockSubscriptionRepo struct {
	mu   sync.Mutex
	data map[string]*model.Subscription

	SaveFunc              func(ctx context.Context, tx repository.Tx, s *model.Subscription) error
	FindActiveClassFunc   func(ctx context.Context, tx repository.Tx, userID string, classID int64) (*model.Subscription, error)
	FindActiveSubjectsFunc func(ctx context.Context, tx repository.Tx, userID string, subjectIDs []int64) ([]*model.Subscription, error)
	ExpireOverdueFunc     func(ctx context.Context, tx repository.Tx, now time.Time) (int64, error)
}

var _ repository.SubscriptionRepository = (*MockSubscriptionRepo)(nil)

func NewMockSubscriptionRepo() *MockSubscriptionRepo {
	return &MockSubscriptionRepo{data: map[string]*model.Subscription{}}
}

func (r *MockSubscriptionRepo) Save(ctx context.Context, tx repository.Tx, s *model.Subscription) error {
	if r.SaveFunc != nil {
		return r.SaveFunc(ctx, tx, s)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	// emulate the partial unique index on ACTIVE (user, class|subject)
	for _, e := range r.data {
		if e.UserID != s.UserID || e.Status != model.SubscriptionStatusActive {
			continue
		}
		if eqPtr(e.ClassID, s.ClassID) && eqPtr(e.SubjectID, s.SubjectID) {
			return domain.ErrAlreadyExists
		}
	}
	cp := *s
	if cp.ID == "" {
		cp.ID = uuid.NewString()
		s.ID = cp.ID
	}
	r.data[cp.ID] = &cp
	return nil
}

func (r *MockSubscriptionRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.Subscription, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if s, ok := r.data[id]; ok {
		cp := *s
		return &cp, nil
	}
	return nil, domain.ErrNotFound
}

func (r *MockSubscriptionRepo) FindActiveClass(ctx context.Context, tx repository.Tx, userID string, classID int64) (*model.Subscription, error) {
	if r.FindActiveClassFunc != nil {
		return r.FindActiveClassFunc(ctx, tx, userID, classID)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, s := range r.data {
		if s.UserID == userID && s.Status == model.SubscriptionStatusActive &&
			s.SubjectID == nil && s.ClassID != nil && *s.ClassID == classID {
			cp := *s
			return &cp, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (r *MockSubscriptionRepo) FindActiveSubjects(ctx context.Context, tx repository.Tx, userID string, subjectIDs []int64) ([]*model.Subscription, error) {
	if r.FindActiveSubjectsFunc != nil {
		return r.FindActiveSubjectsFunc(ctx, tx, userID, subjectIDs)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	want := map[int64]bool{}
	for _, id := range subjectIDs {
		want[id] = true
	}
	var out []*model.Subscription
	for _, s := range r.data {
		if s.UserID == userID && s.Status == model.SubscriptionStatusActive &&
			s.SubjectID != nil && want[*s.SubjectID] {
			cp := *s
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (r *MockSubscriptionRepo) DeleteActiveSubjects(ctx context.Context, tx repository.Tx, userID string, subjectIDs []int64) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	want := map[int64]bool{}
	for _, id := range subjectIDs {
		want[id] = true
	}
	var n int64
	for id, s := range r.data {
		if s.UserID == userID && s.Status == model.SubscriptionStatusActive &&
			s.SubjectID != nil && want[*s.SubjectID] {
			delete(r.data, id)
			n++
		}
	}
	return n, nil
}

func (r *MockSubscriptionRepo) UpdateTerm(ctx context.Context, tx repository.Tx, id string, endDate time.Time, amount int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.data[id]
	if !ok {
		return domain.ErrNotFound
	}
	s.EndDate = endDate
	s.Amount = amount
	s.UpdatedAt = time.Now()
	return nil
}

func (r *MockSubscriptionRepo) ListByUser(ctx context.Context, tx repository.Tx, userID string) ([]*model.Subscription, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*model.Subscription
	for _, s := range r.data {
		if s.UserID == userID {
			cp := *s
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (r *MockSubscriptionRepo) ExpireOverdue(ctx context.Context, tx repository.Tx, now time.Time) (int64, error) {
	if r.ExpireOverdueFunc != nil {
		return r.ExpireOverdueFunc(ctx, tx, now)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	var n int64
	for _, s := range r.data {
		if s.Status == model.SubscriptionStatusActive && s.EndDate.Before(now) {
			s.Status = model.SubscriptionStatusExpired
			n++
		}
	}
	return n, nil
}

func eqPtr(a, b *int64) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

// ---- Mock TransactionManager ----

type MockTxManager struct {
	WithTxFunc func(ctx context.Context, txOpt pgx.TxOptions, fn func(ctx context.Context, tx repository.Tx) error) error
}

var _ repository.TransactionManager = (*MockTxManager)(nil)

func NewMockTxManager() *MockTxManager { return &MockTxManager{} }

// WithTx runs the function with a nil tx; the mock repositories ignore it.
func (m *MockTxManager) WithTx(ctx context.Context, txOpt pgx.TxOptions, fn func(ctx context.Context, tx repository.Tx) error) error {
	if m.WithTxFunc != nil {
		return m.WithTxFunc(ctx, txOpt, fn)
	}
	return fn(ctx, nil)
}

// =============================
// Adapters
// =============================

// ---- Mock RazorpayVerifier ----

type MockRazorpay struct {
	mu    sync.Mutex
	Calls struct {
		Checkout int
		Webhook  int
	}

	VerifyCheckoutFunc func(orderID, paymentID, signature string) error
	VerifyWebhookFunc  func(body []byte, signature string) error
}

var _ adapter.RazorpayVerifier = (*MockRazorpay)(nil)

func (m *MockRazorpay) VerifyCheckout(orderID, paymentID, signature string) error {
	m.mu.Lock()
	m.Calls.Checkout++
	m.mu.Unlock()
	if m.VerifyCheckoutFunc != nil {
		return m.VerifyCheckoutFunc(orderID, paymentID, signature)
	}
	return nil
}

func (m *MockRazorpay) VerifyWebhook(body []byte, signature string) error {
	m.mu.Lock()
	m.Calls.Webhook++
	m.mu.Unlock()
	if m.VerifyWebhookFunc != nil {
		return m.VerifyWebhookFunc(body, signature)
	}
	return nil
}

// ---- Mock CashfreeClient ----

type MockCashfree struct {
	mu    sync.Mutex
	Calls int

	FetchOrderFunc func(ctx context.Context, orderID string) (*adapter.CashfreeOrder, error)
}

var _ adapter.CashfreeClient = (*MockCashfree)(nil)

func (m *MockCashfree) FetchOrder(ctx context.Context, orderID string) (*adapter.CashfreeOrder, error) {
	m.mu.Lock()
	m.Calls++
	m.mu.Unlock()
	if m.FetchOrderFunc != nil {
		return m.FetchOrderFunc(ctx, orderID)
	}
	return &adapter.CashfreeOrder{OrderID: orderID, Status: "PAID", Currency: "INR"}, nil
}

// ---- Mock Mailer ----

type SentMail struct {
	To      string
	Subject string
	Body    string
}

type MockMailer struct {
	mu   sync.Mutex
	Sent []SentMail

	SendFunc func(ctx context.Context, to, subject, htmlBody string) error
}

var _ adapter.Mailer = (*MockMailer)(nil)

func (m *MockMailer) Send(ctx context.Context, to, subject, htmlBody string) error {
	if m.SendFunc != nil {
		return m.SendFunc(ctx, to, subject, htmlBody)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Sent = append(m.Sent, SentMail{To: to, Subject: subject, Body: htmlBody})
	return nil
}

func (m *MockMailer) Count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.Sent)
}

// =============================
// Use case collaborators
// =============================

// ---- Mock Locker ----

type MockLocker struct {
	mu     sync.Mutex
	held   map[string]string
	Denied bool // simulate lock contention

	TryLockFunc func(ctx context.Context, key string, ttl time.Duration) (string, error)
}

var _ usecase.Locker = (*MockLocker)(nil)

func NewMockLocker() *MockLocker { return &MockLocker{held: map[string]string{}} }

func (m *MockLocker) TryLock(ctx context.Context, key string, ttl time.Duration) (string, error) {
	if m.TryLockFunc != nil {
		return m.TryLockFunc(ctx, key, ttl)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Denied {
		return "", domain.ErrLockNotAcquired
	}
	if _, ok := m.held[key]; ok {
		return "", domain.ErrLockNotAcquired
	}
	token := uuid.NewString()
	m.held[key] = token
	return token, nil
}

func (m *MockLocker) Unlock(ctx context.Context, key, token string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.held[key] != token {
		return fmt.Errorf("unlock of %s with stale token", key)
	}
	delete(m.held, key)
	return nil
}

// ---- Inline task submitter ----

// inlineSubmitter runs tasks synchronously so tests can assert side effects.
type inlineSubmitter struct{}

func (inlineSubmitter) Submit(fn func(ctx context.Context) error) error {
	return fn(context.Background())
}

// ---- Mock Provisioner / Notifier ----

type MockProvisioner struct {
	mu    sync.Mutex
	Calls int

	ProvisionFunc func(ctx context.Context, payment *model.Payment, spec *model.ProvisionSpec, force bool) ([]*model.Subscription, error)
}

var _ usecase.ProvisionUseCase = (*MockProvisioner)(nil)

func (m *MockProvisioner) Provision(ctx context.Context, payment *model.Payment, spec *model.ProvisionSpec, force bool) ([]*model.Subscription, error) {
	m.mu.Lock()
	m.Calls++
	m.mu.Unlock()
	if m.ProvisionFunc != nil {
		return m.ProvisionFunc(ctx, payment, spec, force)
	}
	return []*model.Subscription{{ID: uuid.NewString(), UserID: spec.UserID, Status: model.SubscriptionStatusActive}}, nil
}

type MockNotifier struct {
	mu    sync.Mutex
	Calls int
}

var _ usecase.NotificationUseCase = (*MockNotifier)(nil)

func (m *MockNotifier) PaymentSucceeded(ctx context.Context, payment *model.Payment, subs []*model.Subscription, spec *model.ProvisionSpec) {
	m.mu.Lock()
	m.Calls++
	m.mu.Unlock()
}
