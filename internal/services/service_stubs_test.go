package services

import (
	"context"
	"time"

	domain "github.com/swiftcart/api/internal/domain"
	"github.com/swiftcart/api/internal/repositories"
)

// repoError is a stub repositories.RepositoryError with settable categories.
type repoError struct {
	msg         string
	notFound    bool
	conflict    bool
	unavailable bool
}

func (e repoError) Error() string       { return e.msg }
func (e repoError) IsNotFound() bool    { return e.notFound }
func (e repoError) IsConflict() bool    { return e.conflict }
func (e repoError) IsUnavailable() bool { return e.unavailable }

type orderRepoStub struct {
	insert      func(ctx context.Context, order domain.Order) error
	update      func(ctx context.Context, order domain.Order) error
	findByID    func(ctx context.Context, orderID string) (domain.Order, error)
	list        func(ctx context.Context, query repositories.OrderQuery) (domain.CursorPage[domain.Order], error)
	listAll     func(ctx context.Context, created domain.RangeQuery[time.Time]) ([]domain.Order, error)
	batchUpdate func(ctx context.Context, updates []repositories.OrderBatchUpdate) error
}

func (s *orderRepoStub) Insert(ctx context.Context, order domain.Order) error {
	if s.insert == nil {
		return nil
	}
	return s.insert(ctx, order)
}

func (s *orderRepoStub) Update(ctx context.Context, order domain.Order) error {
	if s.update == nil {
		return nil
	}
	return s.update(ctx, order)
}

func (s *orderRepoStub) FindByID(ctx context.Context, orderID string) (domain.Order, error) {
	if s.findByID == nil {
		return domain.Order{}, repoError{msg: "order stub: not found", notFound: true}
	}
	return s.findByID(ctx, orderID)
}

func (s *orderRepoStub) List(ctx context.Context, query repositories.OrderQuery) (domain.CursorPage[domain.Order], error) {
	if s.list == nil {
		return domain.CursorPage[domain.Order]{}, nil
	}
	return s.list(ctx, query)
}

func (s *orderRepoStub) ListAll(ctx context.Context, created domain.RangeQuery[time.Time]) ([]domain.Order, error) {
	if s.listAll == nil {
		return nil, nil
	}
	return s.listAll(ctx, created)
}

func (s *orderRepoStub) BatchUpdate(ctx context.Context, updates []repositories.OrderBatchUpdate) error {
	if s.batchUpdate == nil {
		return nil
	}
	return s.batchUpdate(ctx, updates)
}

type productRepoStub struct {
	findByID    func(ctx context.Context, productID string) (domain.Product, error)
	adjustStock func(ctx context.Context, productID string, delta int) error
}

func (s *productRepoStub) FindByID(ctx context.Context, productID string) (domain.Product, error) {
	if s.findByID == nil {
		return domain.Product{ID: productID}, nil
	}
	return s.findByID(ctx, productID)
}

func (s *productRepoStub) AdjustStock(ctx context.Context, productID string, delta int) error {
	if s.adjustStock == nil {
		return nil
	}
	return s.adjustStock(ctx, productID, delta)
}

type customerOrderRepoStub struct {
	upsert         func(ctx context.Context, customerID string, copy domain.CustomerOrder) error
	findByID       func(ctx context.Context, customerID string, orderID string) (domain.CustomerOrder, error)
	listByCustomer func(ctx context.Context, customerID string, pager domain.Pagination) (domain.CursorPage[domain.CustomerOrder], error)
}

func (s *customerOrderRepoStub) Upsert(ctx context.Context, customerID string, copy domain.CustomerOrder) error {
	if s.upsert == nil {
		return nil
	}
	return s.upsert(ctx, customerID, copy)
}

func (s *customerOrderRepoStub) FindByID(ctx context.Context, customerID string, orderID string) (domain.CustomerOrder, error) {
	if s.findByID == nil {
		return domain.CustomerOrder{}, repoError{msg: "customer order stub: not found", notFound: true}
	}
	return s.findByID(ctx, customerID, orderID)
}

func (s *customerOrderRepoStub) ListByCustomer(ctx context.Context, customerID string, pager domain.Pagination) (domain.CursorPage[domain.CustomerOrder], error) {
	if s.listByCustomer == nil {
		return domain.CursorPage[domain.CustomerOrder]{}, nil
	}
	return s.listByCustomer(ctx, customerID, pager)
}

type counterRepoStub struct {
	next func(ctx context.Context, counterID string, step int64) (int64, error)
}

func (s *counterRepoStub) Next(ctx context.Context, counterID string, step int64) (int64, error) {
	if s.next == nil {
		return 1, nil
	}
	return s.next(ctx, counterID, step)
}

func (s *counterRepoStub) Configure(ctx context.Context, counterID string, cfg repositories.CounterConfig) error {
	return nil
}

type auditLogRepoStub struct {
	appendFn func(ctx context.Context, entry domain.AuditLogEntry) error
	list     func(ctx context.Context, filter repositories.AuditLogFilter) (domain.CursorPage[domain.AuditLogEntry], error)
}

func (s *auditLogRepoStub) Append(ctx context.Context, entry domain.AuditLogEntry) error {
	if s.appendFn == nil {
		return nil
	}
	return s.appendFn(ctx, entry)
}

func (s *auditLogRepoStub) List(ctx context.Context, filter repositories.AuditLogFilter) (domain.CursorPage[domain.AuditLogEntry], error) {
	if s.list == nil {
		return domain.CursorPage[domain.AuditLogEntry]{}, nil
	}
	return s.list(ctx, filter)
}

type healthRepoStub struct {
	collect func(ctx context.Context) (domain.SystemHealthReport, error)
}

func (s *healthRepoStub) Collect(ctx context.Context) (domain.SystemHealthReport, error) {
	if s.collect == nil {
		return domain.SystemHealthReport{}, nil
	}
	return s.collect(ctx)
}

type refundProcessorStub struct {
	submit func(ctx context.Context, req RefundRequest) (RefundReceipt, error)
}

func (s *refundProcessorStub) SubmitRefund(ctx context.Context, req RefundRequest) (RefundReceipt, error) {
	if s.submit == nil {
		return RefundReceipt{ProviderRef: "re_stub"}, nil
	}
	return s.submit(ctx, req)
}

type eventPublisherStub struct {
	events []OrderEvent
	err    error
}

func (s *eventPublisherStub) PublishOrderEvent(ctx context.Context, event OrderEvent) error {
	if s.err != nil {
		return s.err
	}
	s.events = append(s.events, event)
	return nil
}

type reportStoreStub struct {
	saved    []string
	payloads [][]byte
	err      error
}

func (s *reportStoreStub) SaveReport(ctx context.Context, fileName string, contentType string, data []byte) (SavedReport, error) {
	if s.err != nil {
		return SavedReport{}, s.err
	}
	s.saved = append(s.saved, fileName)
	s.payloads = append(s.payloads, data)
	return SavedReport{
		ObjectPath:  "reports/orders/" + fileName,
		DownloadURL: "https://storage.test/" + fileName,
		ExpiresAt:   time.Date(2025, 3, 10, 12, 5, 0, 0, time.UTC),
	}, nil
}

// logRecorder captures structured log events emitted by services under test.
type logRecorder struct {
	events []string
	fields []map[string]any
}

func (r *logRecorder) log(_ context.Context, event string, fields map[string]any) {
	r.events = append(r.events, event)
	r.fields = append(r.fields, fields)
}

func (r *logRecorder) has(event string) bool {
	for _, seen := range r.events {
		if seen == event {
			return true
		}
	}
	return false
}
