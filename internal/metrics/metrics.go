// Package metrics counts what the constraint engine pushes.
package metrics

import (
	"sort"

	"github.com/prometheus/client_golang/prometheus"
)

// Collector implements constraint.Observer on a private prometheus
// registry.
type Collector struct {
	registry *prometheus.Registry
	rowsName string

	rows        *prometheus.CounterVec
	blocks      *prometheus.CounterVec
	constraints prometheus.Gauge
}

func NewCollector(namespace string) *Collector {
	c := &Collector{
		registry: prometheus.NewRegistry(),
		rowsName: prometheus.BuildFQName(namespace, "", "constraint_rows_total"),
		rows: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "constraint_rows_total",
			Help:      "Residual rows pushed, by constraint kind.",
		}, []string{"kind"}),
		blocks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "constraint_blocks_total",
			Help:      "Constraint blocks pushed, by constraint kind.",
		}, []string{"kind"}),
		constraints: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "constraints",
			Help:      "Length of the constraint vector.",
		}),
	}
	c.registry.MustRegister(c.rows, c.blocks, c.constraints)
	return c
}

func (c *Collector) ObservePush(kind string, rows int) {
	c.rows.WithLabelValues(kind).Add(float64(rows))
	c.blocks.WithLabelValues(kind).Inc()
}

func (c *Collector) ObserveSize(n int) {
	c.constraints.Set(float64(n))
}

func (c *Collector) Registry() *prometheus.Registry { return c.registry }

// Count is the number of rows one constraint kind contributed.
type Count struct {
	Kind string
	Rows float64
}

// Rows gathers the row counter, sorted by kind.
func (c *Collector) Rows() ([]Count, error) {
	families, err := c.registry.Gather()
	if err != nil {
		return nil, err
	}
	var out []Count
	for _, f := range families {
		if f.GetName() != c.rowsName {
			continue
		}
		for _, m := range f.GetMetric() {
			var kind string
			for _, l := range m.GetLabel() {
				if l.GetName() == "kind" {
					kind = l.GetValue()
				}
			}
			out = append(out, Count{Kind: kind, Rows: m.GetCounter().GetValue()})
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Kind < out[j].Kind })
	return out, nil
}
