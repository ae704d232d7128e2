package metrics

import "github.com/prometheus/client_golang/prometheus"

// BookingMetrics exposes counters/histograms for the booking flow.
type BookingMetrics struct {
	reservations    *prometheus.CounterVec
	paymentRequests *prometheus.CounterVec
	outcomes        *prometheus.CounterVec
	upstreamLatency *prometheus.HistogramVec
	expired         prometheus.Counter
}

func NewBookingMetrics(reg prometheus.Registerer) *BookingMetrics {
	m := &BookingMetrics{
		reservations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "clinic",
			Subsystem: "booking",
			Name:      "reservations_total",
			Help:      "Reservation attempts by result",
		}, []string{"result"}),
		paymentRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "clinic",
			Subsystem: "booking",
			Name:      "payment_url_requests_total",
			Help:      "Checkout URL requests by gateway and result",
		}, []string{"gateway", "result"}),
		outcomes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "clinic",
			Subsystem: "booking",
			Name:      "payment_outcomes_total",
			Help:      "Gateway callbacks by resolved state and audience",
		}, []string{"state", "audience"}),
		upstreamLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "clinic",
			Subsystem: "booking",
			Name:      "upstream_latency_seconds",
			Help:      "Latency of calls to the appointment and payment services",
			Buckets:   prometheus.DefBuckets,
		}, []string{"call"}),
		expired: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "clinic",
			Subsystem: "booking",
			Name:      "checkouts_expired_total",
			Help:      "Checkouts marked expired by the worker",
		}),
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(m.reservations, m.paymentRequests, m.outcomes, m.upstreamLatency, m.expired)
	return m
}

func (m *BookingMetrics) ObserveReservation(result string) {
	if m == nil {
		return
	}
	m.reservations.WithLabelValues(result).Inc()
}

func (m *BookingMetrics) ObservePaymentRequest(gateway, result string) {
	if m == nil {
		return
	}
	m.paymentRequests.WithLabelValues(gateway, result).Inc()
}

func (m *BookingMetrics) ObserveOutcome(state, audience string) {
	if m == nil {
		return
	}
	m.outcomes.WithLabelValues(state, audience).Inc()
}

func (m *BookingMetrics) ObserveUpstreamLatency(call string, seconds float64) {
	if m == nil {
		return
	}
	m.upstreamLatency.WithLabelValues(call).Observe(seconds)
}

func (m *BookingMetrics) AddExpired(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.expired.Add(float64(n))
}
