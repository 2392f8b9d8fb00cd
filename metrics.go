package ringbuffer

import "github.com/prometheus/client_golang/prometheus"

type ringMetrics struct {
	adds      prometheus.Counter
	evictions prometheus.Counter
	polls     prometheus.Counter
	clears    prometheus.Counter

	size        prometheus.Gauge
	utilization prometheus.Gauge
}

func newRingMetrics(reg prometheus.Registerer, name string) (*ringMetrics, error) {
	labels := prometheus.Labels{"buffer": name}
	counter := func(n, help string) prometheus.Counter {
		return prometheus.NewCounter(prometheus.CounterOpts{
			Namespace:   "ringbuffer",
			Name:        n,
			Help:        help,
			ConstLabels: labels,
		})
	}
	gauge := func(n, help string) prometheus.Gauge {
		return prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace:   "ringbuffer",
			Name:        n,
			Help:        help,
			ConstLabels: labels,
		})
	}

	m := &ringMetrics{
		adds:        counter("adds_total", "Elements added to the ring."),
		evictions:   counter("evictions_total", "Elements overwritten because the ring was full."),
		polls:       counter("polls_total", "Elements removed by Poll."),
		clears:      counter("clears_total", "Clear calls on a non-empty ring."),
		size:        gauge("size", "Elements currently stored."),
		utilization: gauge("utilization", "Size as a fraction of capacity (0.0 to 1.0)."),
	}

	collectors := []prometheus.Collector{m.adds, m.evictions, m.polls, m.clears, m.size, m.utilization}
	for i, c := range collectors {
		if err := reg.Register(c); err != nil {
			for _, done := range collectors[:i] {
				reg.Unregister(done)
			}
			return nil, err
		}
	}

	return m, nil
}

func (m *ringMetrics) recordAdd(size, capacity int) {
	m.adds.Inc()
	m.observe(size, capacity)
}

func (m *ringMetrics) recordEviction() {
	m.evictions.Inc()
}

func (m *ringMetrics) recordPoll(size, capacity int) {
	m.polls.Inc()
	m.observe(size, capacity)
}

func (m *ringMetrics) recordClear(capacity int) {
	m.clears.Inc()
	m.observe(0, capacity)
}

func (m *ringMetrics) observe(size, capacity int) {
	m.size.Set(float64(size))
	m.utilization.Set(float64(size) / float64(capacity))
}
