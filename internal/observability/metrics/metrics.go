package metrics

import "github.com/prometheus/client_golang/prometheus"

// DeskMetrics exposes counters/histograms for the remote store and front-desk flows.
type DeskMetrics struct {
	gatewayTotal     *prometheus.CounterVec
	gatewayLatency   *prometheus.HistogramVec
	quarantinedRows  *prometheus.CounterVec
	queueAllocations prometheus.Counter
	queueLock        *prometheus.CounterVec
	confirmations    *prometheus.CounterVec
	mutations        *prometheus.CounterVec
	boardClients     prometheus.Gauge
}

func NewDeskMetrics(reg prometheus.Registerer) *DeskMetrics {
	m := &DeskMetrics{
		gatewayTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "clinicdesk",
			Subsystem: "sheets",
			Name:      "requests_total",
			Help:      "Total remote store requests",
		}, []string{"op", "outcome"}),
		gatewayLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "clinicdesk",
			Subsystem: "sheets",
			Name:      "request_latency_seconds",
			Help:      "Latency of remote store requests",
			Buckets:   prometheus.DefBuckets,
		}, []string{"op"}),
		quarantinedRows: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "clinicdesk",
			Subsystem: "sheets",
			Name:      "quarantined_rows_total",
			Help:      "Rows rejected while decoding remote sheets",
		}, []string{"sheet"}),
		queueAllocations: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "clinicdesk",
			Subsystem: "visits",
			Name:      "queue_allocations_total",
			Help:      "Queue numbers allocated",
		}),
		queueLock: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "clinicdesk",
			Subsystem: "visits",
			Name:      "queue_lock_total",
			Help:      "Queue lock acquisitions by outcome",
		}, []string{"outcome"}),
		confirmations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "clinicdesk",
			Subsystem: "visits",
			Name:      "confirmations_total",
			Help:      "Visit write confirmations by path",
		}, []string{"path"}),
		mutations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "clinicdesk",
			Subsystem: "frontdesk",
			Name:      "mutations_total",
			Help:      "Front desk mutations by operation and outcome",
		}, []string{"op", "outcome"}),
		boardClients: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "clinicdesk",
			Subsystem: "board",
			Name:      "clients",
			Help:      "Connected queue board clients",
		}),
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(
		m.gatewayTotal,
		m.gatewayLatency,
		m.quarantinedRows,
		m.queueAllocations,
		m.queueLock,
		m.confirmations,
		m.mutations,
		m.boardClients,
	)
	return m
}

func (m *DeskMetrics) ObserveGatewayRequest(op, outcome string, seconds float64) {
	if m == nil {
		return
	}
	m.gatewayTotal.WithLabelValues(op, outcome).Inc()
	m.gatewayLatency.WithLabelValues(op).Observe(seconds)
}

func (m *DeskMetrics) ObserveQuarantined(sheet string, rows int) {
	if m == nil || rows <= 0 {
		return
	}
	m.quarantinedRows.WithLabelValues(sheet).Add(float64(rows))
}

func (m *DeskMetrics) ObserveQueueAllocation() {
	if m == nil {
		return
	}
	m.queueAllocations.Inc()
}

// ObserveQueueLock records acquired, contended, or unavailable lock attempts.
func (m *DeskMetrics) ObserveQueueLock(outcome string) {
	if m == nil {
		return
	}
	m.queueLock.WithLabelValues(outcome).Inc()
}

// ObserveConfirmation records echo, reread, or timeout confirmation paths.
func (m *DeskMetrics) ObserveConfirmation(path string) {
	if m == nil {
		return
	}
	m.confirmations.WithLabelValues(path).Inc()
}

func (m *DeskMetrics) ObserveMutation(op, outcome string) {
	if m == nil {
		return
	}
	m.mutations.WithLabelValues(op, outcome).Inc()
}

func (m *DeskMetrics) SetBoardClients(n int) {
	if m == nil {
		return
	}
	m.boardClients.Set(float64(n))
}
