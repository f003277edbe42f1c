package services

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics метрики поиска
type Metrics struct {
	ConnectorRequests *prometheus.CounterVec
	ConnectorDuration *prometheus.HistogramVec
	AlternativesFound prometheus.Counter
	Searches          *prometheus.CounterVec
	CacheHits         prometheus.Counter
}

// NewMetrics регистрирует метрики в reg; nil означает prometheus.DefaultRegisterer
func NewMetrics(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)

	return &Metrics{
		ConnectorRequests: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "sourcing_connector_requests_total",
				Help: "Количество запросов к коннекторам",
			},
			[]string{"connector", "outcome"},
		),
		ConnectorDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "sourcing_connector_request_duration_seconds",
				Help:    "Длительность запросов к коннекторам",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"connector"},
		),
		AlternativesFound: factory.NewCounter(prometheus.CounterOpts{
			Name: "sourcing_alternatives_found_total",
			Help: "Количество найденных альтернативных артикулов",
		}),
		Searches: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "sourcing_searches_total",
				Help: "Количество завершенных запусков поиска",
			},
			[]string{"status"},
		),
		CacheHits: factory.NewCounter(prometheus.CounterOpts{
			Name: "sourcing_search_cache_hits_total",
			Help: "Количество запусков, обслуженных из кэша",
		}),
	}
}
