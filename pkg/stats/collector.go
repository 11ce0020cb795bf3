// pkg/stats/collector.go
package stats

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/brightpath-lca/brightpath/pkg/model"
)

// Collector publishes the latest statistics as Prometheus gauges
type Collector struct {
	mu        sync.Mutex
	datasets  prometheus.Gauge
	exchanges prometheus.Gauge
	unlinked  *prometheus.GaugeVec
}

// NewCollector creates the gauges and registers them on reg
func NewCollector(reg prometheus.Registerer) (*Collector, error) {
	c := &Collector{
		datasets: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "brightpath",
			Subsystem: "inventory",
			Name:      "datasets",
			Help:      "Number of datasets in the last inventory processed.",
		}),
		exchanges: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "brightpath",
			Subsystem: "inventory",
			Name:      "exchanges",
			Help:      "Number of exchanges in the last inventory processed.",
		}),
		unlinked: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "brightpath",
			Subsystem: "inventory",
			Name:      "unlinked_exchanges",
			Help:      "Number of unlinked exchanges in the last inventory processed, by exchange type.",
		}, []string{"type"}),
	}

	if reg != nil {
		for _, m := range []prometheus.Collector{c.datasets, c.exchanges, c.unlinked} {
			if err := reg.Register(m); err != nil {
				return nil, err
			}
		}
	}
	return c, nil
}

// Observe sets the gauges from s
func (c *Collector) Observe(s Statistics) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.datasets.Set(float64(s.Datasets))
	c.exchanges.Set(float64(s.Exchanges))
	for _, t := range model.ExchangeTypes {
		c.unlinked.WithLabelValues(string(t)).Set(float64(s.ByType[t].Unlinked))
	}
}
