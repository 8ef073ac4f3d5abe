package service

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/d60-Lab/shipdesk/internal/audit"
	"github.com/d60-Lab/shipdesk/internal/courier"
	"github.com/d60-Lab/shipdesk/internal/credit"
	"github.com/d60-Lab/shipdesk/internal/events"
	"github.com/d60-Lab/shipdesk/internal/model"
	"github.com/d60-Lab/shipdesk/internal/notify"
	"github.com/d60-Lab/shipdesk/internal/reference"
	"github.com/d60-Lab/shipdesk/internal/repository"
	"github.com/d60-Lab/shipdesk/pkg/database"
)

type fakeCourier struct {
	mu      sync.Mutex
	calls   int
	fail    bool
	waybill string
	// hold 非空时在下单前调用，用于让调用停在快递侧
	hold func()
}

func (f *fakeCourier) Handles(s string) bool {
	return strings.EqualFold(strings.TrimSpace(s), "delhivery")
}

func (f *fakeCourier) Dispatch(_ context.Context, o *model.Order) courier.Result {
	if !f.Handles(o.CourierService) {
		return courier.Result{Skipped: true}
	}
	if o.IsDispatched() {
		return courier.Result{Success: true, Reused: true, Waybill: o.Waybill, AttemptedAt: time.Now()}
	}
	f.mu.Lock()
	hold := f.hold
	f.mu.Unlock()
	if hold != nil {
		hold()
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.fail {
		return courier.Result{Error: "courier returned 503: unavailable", AttemptedAt: time.Now()}
	}
	wb := f.waybill
	if wb == "" {
		wb = "1490810011111"
	}
	return courier.Result{Success: true, Waybill: wb, CourierOrderID: o.ReferenceNumber, AttemptedAt: time.Now()}
}

func (f *fakeCourier) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

type fakeNotifier struct {
	mu     sync.Mutex
	orders []int64
}

func (f *fakeNotifier) Notify(_ context.Context, o *model.Order, _ model.Branding) notify.Report {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.orders = append(f.orders, o.ID)
	return notify.Report{Customer: notify.Outcome{Attempted: true, Sent: true}}
}

func (f *fakeNotifier) Count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.orders)
}

type fakePublisher struct {
	mu     sync.Mutex
	events []events.Event
}

func (f *fakePublisher) Publish(_ context.Context, e events.Event) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, e)
	return nil
}

func (f *fakePublisher) Close() error { return nil }

func (f *fakePublisher) Types() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.events))
	for i, e := range f.events {
		out[i] = e.Type
	}
	return out
}

type fixture struct {
	db       *gorm.DB
	orders   repository.OrderRepository
	shadows  repository.ShadowOrderRepository
	tenants  repository.TenantRepository
	audits   repository.AuditRepository
	ledger   *credit.Ledger
	courier  *fakeCourier
	notifier *fakeNotifier
	events   *fakePublisher
	svc      OrderService
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	db, err := database.OpenMemory()
	require.NoError(t, err)
	t.Cleanup(func() { _ = database.Close(db) })

	gen, err := reference.NewGenerator(1)
	require.NoError(t, err)

	f := &fixture{
		db:       db,
		orders:   repository.NewOrderRepository(db),
		shadows:  repository.NewShadowOrderRepository(db),
		tenants:  repository.NewTenantRepository(db),
		audits:   repository.NewAuditRepository(db),
		courier:  &fakeCourier{},
		notifier: &fakeNotifier{},
		events:   &fakePublisher{},
	}
	f.ledger = credit.NewLedger(db, repository.NewCreditRepository(db))
	loc, err := time.LoadLocation("Asia/Kolkata")
	require.NoError(t, err)

	f.svc = NewOrderService(OrderDeps{
		DB:           db,
		Orders:       f.orders,
		Shadows:      f.shadows,
		Integrations: f.tenants,
		Tenants:      f.tenants,
		Ledger:       f.ledger,
		References:   gen,
		Courier:      f.courier,
		Notifier:     f.notifier,
		Events:       f.events,
		Audit:        audit.NewRecorder(f.audits),
		OrderCost:    1,
		Location:     loc,
	})
	return f
}

func (f *fixture) tenant(t *testing.T, credits int64, mutate ...func(*model.Tenant)) *model.Tenant {
	t.Helper()
	tn := &model.Tenant{Name: "Acme Logistics", BrandName: "Acme", SupportPhone: "1800", Active: true}
	require.NoError(t, f.tenants.Create(context.Background(), tn))
	for _, m := range mutate {
		m(tn)
	}
	require.NoError(t, f.db.Save(tn).Error)
	if credits > 0 {
		_, err := f.ledger.Credit(context.Background(), tn.ID, credits, "seed")
		require.NoError(t, err)
	}
	return tn
}

func (f *fixture) auditEvents(t *testing.T, tenantID int64, event string) []*model.AuditLog {
	t.Helper()
	logs, _, err := f.audits.List(context.Background(), tenantID, event, 1, 100)
	require.NoError(t, err)
	return logs
}
