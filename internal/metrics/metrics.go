package metrics

import (
	"errors"

	"github.com/prometheus/client_golang/prometheus"
)

// Prometheus metrics for the order pipeline
var (
	OrdersCreatedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "shipdesk_orders_created_total",
			Help: "Orders created, by outcome",
		},
		[]string{"outcome"},
	)

	CourierDispatchTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "shipdesk_courier_dispatch_total",
			Help: "Courier dispatch attempts, by result",
		},
		[]string{"result"},
	)

	CourierDispatchDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "shipdesk_courier_dispatch_duration_seconds",
			Help:    "Duration of courier dispatch calls",
			Buckets: prometheus.DefBuckets,
		},
	)

	CreditDebitsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "shipdesk_credit_debits_total",
			Help: "Credit debit attempts, by feature and result",
		},
		[]string{"feature", "result"},
	)

	WebhookEventsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "shipdesk_webhook_events_total",
			Help: "Inbound webhook deliveries, by topic and outcome",
		},
		[]string{"topic", "outcome"},
	)

	NotificationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "shipdesk_notifications_total",
			Help: "WhatsApp notification attempts, by recipient and result",
		},
		[]string{"recipient", "result"},
	)

	HTTPRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "shipdesk_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"route", "method", "status"},
	)

	HTTPRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "shipdesk_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"route", "method"},
	)
)

// Register registers all metrics with reg. Safe to call more than once.
func Register(reg prometheus.Registerer) {
	for _, c := range []prometheus.Collector{
		OrdersCreatedTotal,
		CourierDispatchTotal,
		CourierDispatchDuration,
		CreditDebitsTotal,
		WebhookEventsTotal,
		NotificationsTotal,
		HTTPRequestsTotal,
		HTTPRequestDuration,
	} {
		if err := reg.Register(c); err != nil {
			var are prometheus.AlreadyRegisteredError
			if !errors.As(err, &are) {
				panic(err)
			}
		}
	}
}
