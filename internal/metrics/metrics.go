package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Collector struct {
	reg *prometheus.Registry

	ActiveSessions prometheus.Gauge

	Searches     prometheus.Counter
	RouteFetches prometheus.Counter
	RouteErrors  prometheus.Counter
	StaleDrops   prometheus.Counter

	DetailFetches prometheus.Counter
	DetailErrors  prometheus.Counter

	FetchDuration *prometheus.HistogramVec // kind label: route|detail|corpus
}

func NewCollector() *Collector {
	reg := prometheus.NewRegistry()

	c := &Collector{
		reg: reg,
		ActiveSessions: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "routing_active_sessions",
			Help: "Number of live planning sessions.",
		}),
		Searches: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "routing_searches_total",
			Help: "Total suggestion searches run.",
		}),
		RouteFetches: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "routing_route_fetches_total",
			Help: "Total route fetches issued.",
		}),
		RouteErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "routing_route_errors_total",
			Help: "Total route fetches that failed.",
		}),
		StaleDrops: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "routing_stale_results_dropped_total",
			Help: "Total route results discarded because the selection moved on.",
		}),
		DetailFetches: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "routing_node_detail_fetches_total",
			Help: "Total node detail fetches issued.",
		}),
		DetailErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "routing_node_detail_errors_total",
			Help: "Total node detail fetches that failed.",
		}),
		FetchDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "routing_fetch_duration_seconds",
			Help:    "Duration of geodata fetches by kind.",
			Buckets: prometheus.ExponentialBuckets(0.005, 2, 12),
		}, []string{"kind"}),
	}

	reg.MustRegister(
		c.ActiveSessions,
		c.Searches,
		c.RouteFetches, c.RouteErrors, c.StaleDrops,
		c.DetailFetches, c.DetailErrors,
		c.FetchDuration,
	)

	return c
}

func (c *Collector) Handler() http.Handler { return promhttp.HandlerFor(c.reg, promhttp.HandlerOpts{}) }
