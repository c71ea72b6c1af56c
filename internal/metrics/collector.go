package metrics

import (
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
)

// PublisherStats gives the collector access to the event publisher.
type PublisherStats interface {
	IsConnected() bool
	Published() int64
}

// Collector implements prometheus.Collector to read live gauges at scrape time.
type Collector struct {
	pool      *pgxpool.Pool
	publisher PublisherStats

	// Descriptors for scrape-time gauges.
	mqttConnected   *prometheus.Desc
	eventsPublished *prometheus.Desc
	dbTotalConns    *prometheus.Desc
	dbAcquiredConns *prometheus.Desc
	dbIdleConns     *prometheus.Desc
}

// NewCollector creates a collector that reads live state at scrape time.
// pool may be nil when history is kept in memory. publisher may be nil when
// MQTT is not configured.
func NewCollector(pool *pgxpool.Pool, publisher PublisherStats) *Collector {
	return &Collector{
		pool:      pool,
		publisher: publisher,
		mqttConnected: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "mqtt", "connected"),
			"1 if the event publisher is connected to the broker.",
			nil, nil,
		),
		eventsPublished: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "mqtt", "events_published_total"),
			"Total events delivered to the broker.",
			nil, nil,
		),
		dbTotalConns: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "db_pool", "total_conns"),
			"Total database pool connections.",
			nil, nil,
		),
		dbAcquiredConns: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "db_pool", "acquired_conns"),
			"Database pool connections currently in use.",
			nil, nil,
		),
		dbIdleConns: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "db_pool", "idle_conns"),
			"Database pool idle connections.",
			nil, nil,
		),
	}
}

func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.mqttConnected
	ch <- c.eventsPublished
	ch <- c.dbTotalConns
	ch <- c.dbAcquiredConns
	ch <- c.dbIdleConns
}

func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	var connected, published float64
	if c.publisher != nil {
		if c.publisher.IsConnected() {
			connected = 1
		}
		published = float64(c.publisher.Published())
	}
	ch <- prometheus.MustNewConstMetric(c.mqttConnected, prometheus.GaugeValue, connected)
	ch <- prometheus.MustNewConstMetric(c.eventsPublished, prometheus.CounterValue, published)

	// Database pool stats
	if c.pool != nil {
		stat := c.pool.Stat()
		ch <- prometheus.MustNewConstMetric(c.dbTotalConns, prometheus.GaugeValue, float64(stat.TotalConns()))
		ch <- prometheus.MustNewConstMetric(c.dbAcquiredConns, prometheus.GaugeValue, float64(stat.AcquiredConns()))
		ch <- prometheus.MustNewConstMetric(c.dbIdleConns, prometheus.GaugeValue, float64(stat.IdleConns()))
	} else {
		ch <- prometheus.MustNewConstMetric(c.dbTotalConns, prometheus.GaugeValue, 0)
		ch <- prometheus.MustNewConstMetric(c.dbAcquiredConns, prometheus.GaugeValue, 0)
		ch <- prometheus.MustNewConstMetric(c.dbIdleConns, prometheus.GaugeValue, 0)
	}
}
