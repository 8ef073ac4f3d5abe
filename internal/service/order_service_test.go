package service

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/d60-Lab/shipdesk/internal/apperr"
	"github.com/d60-Lab/shipdesk/internal/audit"
	"github.com/d60-Lab/shipdesk/internal/credit"
	"github.com/d60-Lab/shipdesk/internal/events"
	"github.com/d60-Lab/shipdesk/internal/model"
	"github.com/d60-Lab/shipdesk/internal/repository"
)

func validInput() CreateOrderInput {
	value := decimal.RequireFromString("499.00")
	return CreateOrderInput{
		Name:           "Asha Verma",
		Mobile:         "9999999999",
		Address:        "12 MG Road",
		City:           "Pune",
		State:          "MH",
		Pincode:        "411001",
		CourierService: "Delhivery",
		PickupLocation: "Warehouse-1",
		PackageValue:   &value,
		Weight:         500,
		TotalItems:     1,
	}
}

func TestCreate_HappyPath(t *testing.T) {
	f := newFixture(t)
	tn := f.tenant(t, 5)
	ctx := context.Background()

	res, err := f.svc.Create(ctx, tn.ID, validInput())
	require.NoError(t, err)

	assert.NotZero(t, res.Order.ID)
	assert.Contains(t, res.Order.ReferenceNumber, "9999999999")
	assert.True(t, res.Courier.Success)
	assert.Equal(t, model.DispatchSuccess, res.Order.DispatchStatus)
	assert.Equal(t, "1490810011111", res.Order.Waybill)
	assert.Equal(t, int64(1), res.Credits.Charged)
	assert.Equal(t, int64(4), res.Credits.Balance)
	require.NotNil(t, res.Notification)
	assert.Equal(t, 1, f.notifier.Count())

	stored, err := f.orders.Get(ctx, tn.ID, res.Order.ID)
	require.NoError(t, err)
	assert.Equal(t, model.DispatchSuccess, stored.DispatchStatus)
	assert.Equal(t, "1490810011111", stored.Waybill)
	assert.NotNil(t, stored.DispatchAttemptedAt)

	acct, err := f.ledger.Balance(ctx, tn.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(4), acct.Balance)

	hist, err := f.ledger.History(ctx, tn.ID, 1, 10)
	require.NoError(t, err)
	var found bool
	for _, g := range hist.Groups {
		if g.OrderID != nil && *g.OrderID == res.Order.ID {
			found = true
			assert.Equal(t, int64(1), g.Debited)
		}
	}
	assert.True(t, found, "debit grouped under the order")

	assert.Equal(t, []string{events.TypeOrderCreated, events.TypeOrderDispatched}, f.events.Types())
	assert.Len(t, f.auditEvents(t, tn.ID, audit.EventOrderCreated), 1)
}

func TestCreate_InsufficientCredit(t *testing.T) {
	f := newFixture(t)
	tn := f.tenant(t, 0)
	ctx := context.Background()

	_, err := f.svc.Create(ctx, tn.ID, validInput())
	require.Error(t, err)
	assert.Equal(t, apperr.KindInsufficientCredit, apperr.KindOf(err))
	assert.ErrorIs(t, err, credit.ErrInsufficientCredit)

	_, total, err := f.orders.List(ctx, tn.ID, repository.OrderFilter{})
	require.NoError(t, err)
	assert.Zero(t, total)
	assert.Zero(t, f.courier.Calls())
	assert.Zero(t, f.notifier.Count())
	assert.Empty(t, f.events.Types())

	rejected := f.auditEvents(t, tn.ID, audit.EventOrderRejected)
	require.Len(t, rejected, 1)
	assert.Equal(t, "insufficient_credit", rejected[0].Outcome)
}

func TestCreate_CourierFailureKeepsOrder(t *testing.T) {
	f := newFixture(t)
	f.courier.fail = true
	tn := f.tenant(t, 2)
	ctx := context.Background()

	res, err := f.svc.Create(ctx, tn.ID, validInput())
	require.NoError(t, err)
	assert.False(t, res.Courier.Success)
	assert.NotEmpty(t, res.Courier.Error)
	assert.Nil(t, res.Notification)
	assert.Zero(t, f.notifier.Count())

	stored, err := f.orders.Get(ctx, tn.ID, res.Order.ID)
	require.NoError(t, err)
	assert.Equal(t, model.DispatchFailed, stored.DispatchStatus)
	assert.Contains(t, stored.DispatchError, "503")
	assert.Empty(t, stored.Waybill)

	// 扣费不因快递失败回滚
	acct, err := f.ledger.Balance(ctx, tn.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), acct.Balance)
}

func TestCreate_Validation(t *testing.T) {
	f := newFixture(t)
	tn := f.tenant(t, 5)

	cases := map[string]func(*CreateOrderInput){
		"missing name":     func(in *CreateOrderInput) { in.Name = "  " },
		"missing value":    func(in *CreateOrderInput) { in.PackageValue = nil },
		"zero weight":      func(in *CreateOrderInput) { in.Weight = 0 },
		"zero items":       func(in *CreateOrderInput) { in.TotalItems = 0 },
		"negative value":   func(in *CreateOrderInput) { v := decimal.NewFromInt(-1); in.PackageValue = &v },
		"mobile no digits": func(in *CreateOrderInput) { in.Mobile = "abc" },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			in := validInput()
			mutate(&in)
			_, err := f.svc.Create(context.Background(), tn.ID, in)
			require.Error(t, err)
			assert.Equal(t, apperr.KindValidation, apperr.KindOf(err))
		})
	}
	assert.Zero(t, f.courier.Calls())

	acct, err := f.ledger.Balance(context.Background(), tn.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(5), acct.Balance)
}

func TestCreate_InactiveTenant(t *testing.T) {
	f := newFixture(t)
	tn := f.tenant(t, 5)
	require.NoError(t, f.db.Model(tn).Update("active", false).Error)

	_, err := f.svc.Create(context.Background(), tn.ID, validInput())
	assert.ErrorIs(t, err, ErrTenantInactive)
}

func TestCreate_CustomReference(t *testing.T) {
	f := newFixture(t)
	tn := f.tenant(t, 5, func(t *model.Tenant) { t.EnablePrefix = true })
	ctx := context.Background()

	in := validInput()
	in.ReferenceNumber = "INV 100"
	res, err := f.svc.Create(ctx, tn.ID, in)
	require.NoError(t, err)
	assert.Equal(t, "9999999999-INV_100", res.Order.ReferenceNumber)

	_, err = f.svc.Create(ctx, tn.ID, in)
	require.Error(t, err)
	assert.ErrorIs(t, err, repository.ErrDuplicateReference)
	assert.Equal(t, apperr.KindConflict, apperr.KindOf(err))

	// 冲突不扣费
	acct, err := f.ledger.Balance(ctx, tn.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(4), acct.Balance)

	// 其他租户可使用相同参考号
	other := f.tenant(t, 5, func(t *model.Tenant) { t.EnablePrefix = true })
	_, err = f.svc.Create(ctx, other.ID, in)
	assert.NoError(t, err)
}

func TestCreate_AutoReferencesAreUnique(t *testing.T) {
	f := newFixture(t)
	tn := f.tenant(t, 10)
	seen := map[string]bool{}
	for i := 0; i < 5; i++ {
		res, err := f.svc.Create(context.Background(), tn.ID, validInput())
		require.NoError(t, err)
		assert.False(t, seen[res.Order.ReferenceNumber])
		seen[res.Order.ReferenceNumber] = true
	}
}

func TestCreate_CreditExempt(t *testing.T) {
	f := newFixture(t)
	tn := f.tenant(t, 0, func(t *model.Tenant) { t.CreditExempt = true })

	res, err := f.svc.Create(context.Background(), tn.ID, validInput())
	require.NoError(t, err)
	assert.True(t, res.Credits.Exempt)
	assert.Zero(t, res.Credits.Charged)

	txs, err := repository.NewCreditRepository(f.db).AllTransactions(context.Background(), tn.ID)
	require.NoError(t, err)
	assert.Empty(t, txs)
}

func TestCreate_OtherCourierSkipped(t *testing.T) {
	f := newFixture(t)
	tn := f.tenant(t, 5)
	in := validInput()
	in.CourierService = "BlueDart"

	res, err := f.svc.Create(context.Background(), tn.ID, in)
	require.NoError(t, err)
	assert.True(t, res.Courier.Skipped)
	assert.Equal(t, model.DispatchUnset, res.Order.DispatchStatus)
	assert.Zero(t, f.courier.Calls())
	// 未对接的快递仍发送通知
	assert.Equal(t, 1, f.notifier.Count())
	assert.Equal(t, []string{events.TypeOrderCreated}, f.events.Types())
}

func TestCreate_LinksShadowOrder(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	tn := f.tenant(t, 5)
	other := f.tenant(t, 5)

	in := &model.WebhookIntegration{TenantID: tn.ID, ShopDomain: "acme.myshopify.com", WebhookSecret: "s3cret"}
	require.NoError(t, f.tenants.CreateIntegration(ctx, in))
	shadow := &model.ShadowOrder{IntegrationID: in.ID, ShopDomain: in.ShopDomain, UpstreamOrderID: "1001", Status: model.ShadowStatusOpen}
	created, err := f.shadows.InsertIfAbsent(ctx, shadow)
	require.NoError(t, err)
	require.True(t, created)

	// 其他租户不能关联
	input := validInput()
	input.ShadowOrderID = &shadow.ID
	_, err = f.svc.Create(ctx, other.ID, input)
	assert.ErrorIs(t, err, repository.ErrShadowNotFound)
	acct, err := f.ledger.Balance(ctx, other.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(5), acct.Balance)

	res, err := f.svc.Create(ctx, tn.ID, input)
	require.NoError(t, err)
	got, err := f.shadows.GetByID(ctx, shadow.ID)
	require.NoError(t, err)
	require.NotNil(t, got.OrderID)
	assert.Equal(t, res.Order.ID, *got.OrderID)

	_, err = f.svc.Create(ctx, tn.ID, input)
	assert.ErrorIs(t, err, ErrShadowLinked)
}

func TestCreate_ConcurrentSingleCredit(t *testing.T) {
	f := newFixture(t)
	tn := f.tenant(t, 1)

	const n = 8
	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		ok, fail int
	)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.svc.Create(context.Background(), tn.ID, validInput())
			mu.Lock()
			defer mu.Unlock()
			if err == nil {
				ok++
			} else if apperr.KindOf(err) == apperr.KindInsufficientCredit {
				fail++
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, ok)
	assert.Equal(t, n-1, fail)
	acct, err := f.ledger.Balance(context.Background(), tn.ID)
	require.NoError(t, err)
	assert.Zero(t, acct.Balance)

	v, err := f.ledger.Verify(context.Background(), tn.ID)
	require.NoError(t, err)
	assert.True(t, v.Consistent)
}

func TestList_TenantIsolationAndFilters(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a := f.tenant(t, 10)
	b := f.tenant(t, 10)

	for i := 0; i < 3; i++ {
		_, err := f.svc.Create(ctx, a.ID, validInput())
		require.NoError(t, err)
	}
	in := validInput()
	in.Name = "Ravi Kumar"
	_, err := f.svc.Create(ctx, b.ID, in)
	require.NoError(t, err)

	page, err := f.svc.List(ctx, a.ID, ListOrdersInput{})
	require.NoError(t, err)
	assert.Equal(t, int64(3), page.Total)
	for _, o := range page.Orders {
		assert.Equal(t, a.ID, o.TenantID)
	}

	page, err = f.svc.List(ctx, a.ID, ListOrdersInput{Search: "ravi"})
	require.NoError(t, err)
	assert.Zero(t, page.Total)
	assert.NotNil(t, page.Orders)

	page, err = f.svc.List(ctx, b.ID, ListOrdersInput{Search: "RAVI", DispatchStatus: "success"})
	require.NoError(t, err)
	assert.Equal(t, int64(1), page.Total)

	_, err = f.svc.List(ctx, a.ID, ListOrdersInput{DispatchStatus: "shipped"})
	assert.Equal(t, apperr.KindValidation, apperr.KindOf(err))
}

func TestList_DateRangeInclusive(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	tn := f.tenant(t, 5)

	res, err := f.svc.Create(ctx, tn.ID, validInput())
	require.NoError(t, err)

	loc, _ := time.LoadLocation("Asia/Kolkata")
	today := res.Order.CreatedAt.In(loc).Format(dateLayout)

	page, err := f.svc.List(ctx, tn.ID, ListOrdersInput{From: today, To: today})
	require.NoError(t, err)
	assert.Equal(t, int64(1), page.Total)

	yesterday := res.Order.CreatedAt.In(loc).AddDate(0, 0, -1).Format(dateLayout)
	page, err = f.svc.List(ctx, tn.ID, ListOrdersInput{To: yesterday})
	require.NoError(t, err)
	assert.Zero(t, page.Total)
}

func TestDateRange(t *testing.T) {
	loc := time.UTC
	from, to, err := DateRange("2024-03-01", "2024-03-01", loc)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 3, 1, 0, 0, 0, 0, loc), *from)
	assert.Equal(t, time.Date(2024, 3, 2, 0, 0, 0, 0, loc), *to)

	from, to, err = DateRange("", "", loc)
	require.NoError(t, err)
	assert.Nil(t, from)
	assert.Nil(t, to)

	_, _, err = DateRange("2024-03-05", "2024-03-01", loc)
	assert.Equal(t, apperr.KindValidation, apperr.KindOf(err))

	_, _, err = DateRange("03/01/2024", "", loc)
	assert.Equal(t, apperr.KindValidation, apperr.KindOf(err))
}

func TestBulkDelete(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a := f.tenant(t, 10)
	b := f.tenant(t, 10)

	r1, err := f.svc.Create(ctx, a.ID, validInput())
	require.NoError(t, err)
	r2, err := f.svc.Create(ctx, a.ID, validInput())
	require.NoError(t, err)
	rb, err := f.svc.Create(ctx, b.ID, validInput())
	require.NoError(t, err)

	// 混入其他租户的订单：整批拒绝，不删除任何行
	_, err = f.svc.BulkDelete(ctx, a.ID, []int64{r1.Order.ID, rb.Order.ID})
	assert.ErrorIs(t, err, repository.ErrOrdersNotFound)
	_, err = f.orders.Get(ctx, a.ID, r1.Order.ID)
	assert.NoError(t, err)
	_, err = f.orders.Get(ctx, b.ID, rb.Order.ID)
	assert.NoError(t, err)

	rejected := f.auditEvents(t, a.ID, audit.EventOrdersDeleted)
	require.Len(t, rejected, 1)
	assert.Equal(t, model.SeveritySecurity, rejected[0].Severity)

	n, err := f.svc.BulkDelete(ctx, a.ID, []int64{r1.Order.ID, r2.Order.ID, r1.Order.ID})
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)
	_, err = f.orders.Get(ctx, a.ID, r1.Order.ID)
	assert.ErrorIs(t, err, repository.ErrOrderNotFound)

	_, err = f.svc.BulkDelete(ctx, a.ID, nil)
	assert.ErrorIs(t, err, ErrNoOrderIDs)
	_, err = f.svc.BulkDelete(ctx, a.ID, make([]int64, maxBulkDelete+1))
	assert.ErrorIs(t, err, ErrTooManyOrderIDs)
	_, err = f.svc.BulkDelete(ctx, a.ID, []int64{0})
	assert.Equal(t, apperr.KindValidation, apperr.KindOf(err))

	assert.Contains(t, f.events.Types(), events.TypeOrdersDeleted)
}

func TestRetryDispatch(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	tn := f.tenant(t, 5)

	f.courier.fail = true
	res, err := f.svc.Create(ctx, tn.ID, validInput())
	require.NoError(t, err)
	require.Equal(t, model.DispatchFailed, res.Order.DispatchStatus)

	f.courier.mu.Lock()
	f.courier.fail = false
	f.courier.mu.Unlock()

	retry, err := f.svc.RetryDispatch(ctx, tn.ID, res.Order.ID)
	require.NoError(t, err)
	assert.True(t, retry.Courier.Success)
	assert.Equal(t, model.DispatchSuccess, retry.Order.DispatchStatus)
	assert.Empty(t, retry.Order.DispatchError)
	require.NotNil(t, retry.Notification)
	assert.Equal(t, 1, f.notifier.Count())

	calls := f.courier.Calls()
	again, err := f.svc.RetryDispatch(ctx, tn.ID, res.Order.ID)
	require.NoError(t, err)
	assert.True(t, again.Courier.Reused)
	assert.Equal(t, calls, f.courier.Calls())
	assert.Equal(t, 1, f.notifier.Count())

	// 重试不重复扣费
	acct, err := f.ledger.Balance(ctx, tn.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(4), acct.Balance)

	_, err = f.svc.RetryDispatch(ctx, tn.ID+100, res.Order.ID)
	assert.ErrorIs(t, err, repository.ErrOrderNotFound)
}

func TestRetryDispatch_ConcurrentRetriesShipOnce(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	tn := f.tenant(t, 5)

	f.courier.fail = true
	res, err := f.svc.Create(ctx, tn.ID, validInput())
	require.NoError(t, err)
	require.Equal(t, model.DispatchFailed, res.Order.DispatchStatus)
	before := f.courier.Calls()

	entered := make(chan struct{}, 2)
	release := make(chan struct{})
	f.courier.mu.Lock()
	f.courier.fail = false
	f.courier.waybill = "WB-REAL"
	f.courier.hold = func() {
		entered <- struct{}{}
		<-release
	}
	f.courier.mu.Unlock()

	type outcome struct {
		res *DispatchResult
		err error
	}
	first := make(chan outcome, 1)
	go func() {
		r, err := f.svc.RetryDispatch(ctx, tn.ID, res.Order.ID)
		first <- outcome{r, err}
	}()
	select {
	case <-entered:
	case <-time.After(5 * time.Second):
		t.Fatal("first retry never reached the courier")
	}

	// 第一次重试停在快递侧时，第二次重试不得再下单
	second := make(chan outcome, 1)
	go func() {
		r, err := f.svc.RetryDispatch(ctx, tn.ID, res.Order.ID)
		second <- outcome{r, err}
	}()
	var got outcome
	select {
	case got = <-second:
	case <-time.After(5 * time.Second):
		close(release)
		t.Fatal("second retry reached the courier")
	}
	assert.ErrorIs(t, got.err, ErrDispatchInProgress)
	assert.Equal(t, apperr.KindConflict, apperr.KindOf(got.err))

	close(release)
	done := <-first
	require.NoError(t, done.err)
	assert.True(t, done.res.Courier.Success)
	assert.Equal(t, "WB-REAL", done.res.Order.Waybill)
	assert.Equal(t, before+1, f.courier.Calls())

	stored, err := f.orders.Get(ctx, tn.ID, res.Order.ID)
	require.NoError(t, err)
	assert.Equal(t, model.DispatchSuccess, stored.DispatchStatus)
	assert.Equal(t, "WB-REAL", stored.Waybill)
	assert.Empty(t, stored.DispatchError)

	again, err := f.svc.RetryDispatch(ctx, tn.ID, res.Order.ID)
	require.NoError(t, err)
	assert.True(t, again.Courier.Reused)
	assert.Equal(t, before+1, f.courier.Calls())
	assert.Equal(t, 1, f.notifier.Count())
}

func TestRetryDispatch_UnsupportedCourier(t *testing.T) {
	f := newFixture(t)
	tn := f.tenant(t, 5)
	in := validInput()
	in.CourierService = "ecom express"
	res, err := f.svc.Create(context.Background(), tn.ID, in)
	require.NoError(t, err)

	_, err = f.svc.RetryDispatch(context.Background(), tn.ID, res.Order.ID)
	assert.ErrorIs(t, err, ErrCourierUnsupported)
}

func TestValidationError_UsesJSONNames(t *testing.T) {
	err := newValidator().Struct(CreateOrderInput{})
	require.Error(t, err)
	ve := ValidationError(err)
	assert.True(t, strings.HasPrefix(apperr.CodeOf(ve), "invalid_"))
	assert.Contains(t, ve.Error(), "name is required")
}
