package metrics

import "github.com/prometheus/client_golang/prometheus"

// DBPoolStatFunc reports console state pool statistics without importing
// pgxpool.
type DBPoolStatFunc func() (total, idle, acquired int32)

type dbPoolCollector struct {
	stat DBPoolStatFunc
	desc *prometheus.Desc
}

// NewDBPoolCollector exposes the pool's connection counts as one gauge
// labelled by state.
func NewDBPoolCollector(stat DBPoolStatFunc) prometheus.Collector {
	return &dbPoolCollector{
		stat: stat,
		desc: prometheus.NewDesc(
			"ovpnadmin_db_pool_conns",
			"Connections in the console state pool by state.",
			[]string{"state"}, nil,
		),
	}
}

func (c *dbPoolCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.desc
}

func (c *dbPoolCollector) Collect(ch chan<- prometheus.Metric) {
	total, idle, acquired := c.stat()
	ch <- prometheus.MustNewConstMetric(c.desc, prometheus.GaugeValue, float64(total), "total")
	ch <- prometheus.MustNewConstMetric(c.desc, prometheus.GaugeValue, float64(idle), "idle")
	ch <- prometheus.MustNewConstMetric(c.desc, prometheus.GaugeValue, float64(acquired), "acquired")
}
