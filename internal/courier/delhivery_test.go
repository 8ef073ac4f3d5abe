package courier

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync/atomic"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/d60-Lab/shipdesk/config"
	"github.com/d60-Lab/shipdesk/internal/model"
)

func testOrder() *model.Order {
	return &model.Order{
		ID:              7,
		TenantID:        1,
		Name:            "Asha Kumar",
		Mobile:          "9999999999",
		Address:         "12 MG Road",
		City:            "Pune",
		State:           "MH",
		Country:         "India",
		Pincode:         "411001",
		CourierService:  "Delhivery",
		PickupLocation:  "Pune WH",
		PackageValue:    decimal.NewFromInt(499),
		Weight:          500,
		TotalItems:      2,
		ReferenceNumber: "9999999999-ABC",
		DispatchStatus:  model.DispatchUnset,
	}
}

func newTestDelhivery(url string, timeout time.Duration) *Delhivery {
	return NewDelhivery(config.CourierConfig{Name: "delhivery", BaseURL: url, Token: "tkn", Timeout: timeout})
}

func TestDelhivery_DispatchSuccess(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, createPath, r.URL.Path)
		assert.Equal(t, "Token tkn", r.Header.Get("Authorization"))

		raw, _ := io.ReadAll(r.Body)
		form, err := url.ParseQuery(string(raw))
		assert.NoError(t, err)
		var payload createRequest
		assert.NoError(t, json.Unmarshal([]byte(form.Get("data")), &payload))
		assert.Equal(t, "Pune WH", payload.PickupLocation.Name)
		if assert.Len(t, payload.Shipments, 1) {
			assert.Equal(t, "9999999999-ABC", payload.Shipments[0].Order)
			assert.Equal(t, "Prepaid", payload.Shipments[0].PaymentMode)
		}

		_, _ = w.Write([]byte(`{"success":true,"packages":[{"status":"Success","waybill":"1490810011111","refnum":"9999999999-ABC"}]}`))
	}))
	defer srv.Close()

	res := newTestDelhivery(srv.URL, time.Second).Dispatch(context.Background(), testOrder())
	assert.True(t, res.Success)
	assert.Equal(t, "1490810011111", res.Waybill)
	assert.Equal(t, "9999999999-ABC", res.CourierOrderID)
	assert.Equal(t, model.DispatchSuccess, res.Status())
	assert.False(t, res.AttemptedAt.IsZero())
}

func TestDelhivery_DispatchFailures(t *testing.T) {
	cases := []struct {
		name   string
		status int
		body   string
		want   string
	}{
		{"server error", http.StatusInternalServerError, `oops`, "courier returned 500"},
		{"malformed body", http.StatusOK, `<html>`, "malformed courier response"},
		{"rejected", http.StatusOK, `{"packages":[{"status":"Fail","remarks":["pincode not serviceable"]}]}`, "pincode not serviceable"},
		{"no waybill", http.StatusOK, `{"success":true,"packages":[]}`, errNoWaybill.Error()},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tc.status)
				_, _ = w.Write([]byte(tc.body))
			}))
			defer srv.Close()

			res := newTestDelhivery(srv.URL, time.Second).Dispatch(context.Background(), testOrder())
			assert.False(t, res.Success)
			assert.Contains(t, res.Error, tc.want)
			assert.Equal(t, model.DispatchFailed, res.Status())
		})
	}
}

func TestDelhivery_FlatResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"waybill_number":"WB-9","order_id":"CO-9"}`))
	}))
	defer srv.Close()

	res := newTestDelhivery(srv.URL, time.Second).Dispatch(context.Background(), testOrder())
	assert.True(t, res.Success)
	assert.Equal(t, "WB-9", res.Waybill)
	assert.Equal(t, "CO-9", res.CourierOrderID)
}

func TestDelhivery_TimeoutIsFailure(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()
	defer close(release)

	res := newTestDelhivery(srv.URL, 50*time.Millisecond).Dispatch(context.Background(), testOrder())
	assert.False(t, res.Success)
	assert.NotEmpty(t, res.Error)
}

func TestDelhivery_SkipsOtherCouriers(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
	}))
	defer srv.Close()

	o := testOrder()
	o.CourierService = "BlueDart"
	res := newTestDelhivery(srv.URL, time.Second).Dispatch(context.Background(), o)
	assert.True(t, res.Skipped)
	assert.Zero(t, calls.Load())
}

func TestDelhivery_DispatchIsIdempotent(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		_, _ = w.Write([]byte(`{"packages":[{"status":"Success","waybill":"WB-1"}]}`))
	}))
	defer srv.Close()

	d := newTestDelhivery(srv.URL, time.Second)
	o := testOrder()
	first := d.Dispatch(context.Background(), o)
	require.True(t, first.Success)

	o.DispatchStatus = first.Status()
	o.Waybill = first.Waybill
	second := d.Dispatch(context.Background(), o)
	assert.True(t, second.Success)
	assert.True(t, second.Reused)
	assert.Equal(t, "WB-1", second.Waybill)
	assert.EqualValues(t, 1, calls.Load())
}

func TestBuildPayload_COD(t *testing.T) {
	o := testOrder()
	o.CODAmount = decimal.NewNullDecimal(decimal.RequireFromString("250.5"))
	o.ResellerName, o.ResellerMobile = "Ravi Traders", "9876543210"

	raw, err := BuildPayload(o)
	require.NoError(t, err)
	var req createRequest
	require.NoError(t, json.Unmarshal(raw, &req))
	s := req.Shipments[0]
	assert.Equal(t, "COD", s.PaymentMode)
	assert.Equal(t, "250.50", s.CODAmount)
	assert.Equal(t, "Ravi Traders", s.SellerName)
}
