package metrics

import "github.com/prometheus/client_golang/prometheus"

// BookingMetrics exposes counters/histograms for booking and queue flows.
type BookingMetrics struct {
	bookingsTotal    *prometheus.CounterVec
	transitionsTotal *prometheus.CounterVec
	queueWait        prometheus.Histogram
	slotsServed      prometheus.Counter
}

func NewBookingMetrics(reg prometheus.Registerer) *BookingMetrics {
	m := &BookingMetrics{
		bookingsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "queueline",
			Subsystem: "booking",
			Name:      "bookings_total",
			Help:      "Booking attempts by outcome",
		}, []string{"result"}),
		transitionsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "queueline",
			Subsystem: "booking",
			Name:      "transitions_total",
			Help:      "Lifecycle transitions by action and outcome",
		}, []string{"action", "result"}),
		queueWait: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "queueline",
			Subsystem: "booking",
			Name:      "queue_wait_minutes",
			Help:      "Estimated wait assigned to newly admitted appointments",
			Buckets:   []float64{0, 5, 15, 30, 60, 120, 240, 480},
		}),
		slotsServed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "queueline",
			Subsystem: "booking",
			Name:      "slots_served_total",
			Help:      "Available slots returned to callers",
		}),
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(m.bookingsTotal, m.transitionsTotal, m.queueWait, m.slotsServed)
	return m
}

func (m *BookingMetrics) ObserveBooking(result string) {
	if m == nil {
		return
	}
	m.bookingsTotal.WithLabelValues(result).Inc()
}

func (m *BookingMetrics) ObserveTransition(action, result string) {
	if m == nil {
		return
	}
	m.transitionsTotal.WithLabelValues(action, result).Inc()
}

func (m *BookingMetrics) ObserveQueueWait(minutes int) {
	if m == nil {
		return
	}
	m.queueWait.Observe(float64(minutes))
}

func (m *BookingMetrics) AddSlotsServed(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.slotsServed.Add(float64(n))
}
