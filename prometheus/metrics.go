package prometheus

import (
	"sync"
	"time"

	"storefront/pkg/config"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// HTTP request metrics
	HttpRequestsTotal   *prometheus.CounterVec
	HttpRequestDuration *prometheus.HistogramVec

	// Database operation metrics
	DbOperationDuration *prometheus.HistogramVec

	// List-view cache metrics
	CacheRequestsCounter *prometheus.CounterVec

	// Cart metrics
	CartOperationsCounter *prometheus.CounterVec

	// Catalog administration metrics
	CatalogOperationsCounter *prometheus.CounterVec

	// Contact form metrics
	ContactMessagesCounter *prometheus.CounterVec

	// Product popularity metrics
	ProductViewsCounter *prometheus.CounterVec

	initOnce sync.Once
)

// InitMetrics registers the storefront metrics once, prefixed from config
func InitMetrics(config *config.Config) {
	initOnce.Do(func() {
		prefix := config.Metrics.Prefix

		HttpRequestsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: prefix + "_http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "path", "status"},
		)

		HttpRequestDuration = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    prefix + "_http_request_duration_seconds",
				Help:    "Duration of HTTP requests in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "path", "status"},
		)

		DbOperationDuration = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    prefix + "_db_operation_duration_seconds",
				Help:    "Duration of database operations in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"operation_type"},
		)

		CacheRequestsCounter = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: prefix + "_cache_requests_total",
				Help: "List-view cache lookups by kind and result",
			},
			[]string{"kind", "result"},
		)

		CartOperationsCounter = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: prefix + "_cart_operations_total",
				Help: "Total number of cart operations",
			},
			[]string{"operation", "result"},
		)

		CatalogOperationsCounter = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: prefix + "_catalog_operations_total",
				Help: "Total number of catalog write operations",
			},
			[]string{"entity", "operation"},
		)

		ContactMessagesCounter = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: prefix + "_contact_messages_total",
				Help: "Contact form submissions by result",
			},
			[]string{"result"},
		)

		ProductViewsCounter = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: prefix + "_product_views_total",
				Help: "Total number of product views",
			},
			[]string{"product_id", "category"},
		)
	})
}

// TrackDBOperation returns a function that records the duration of a database operation
func TrackDBOperation(operationType string) func(startTime time.Time) {
	return func(startTime time.Time) {
		if DbOperationDuration == nil {
			return
		}
		DbOperationDuration.WithLabelValues(operationType).Observe(time.Since(startTime).Seconds())
	}
}

// RecordCacheLookup counts a cache hit or miss for a kind of list view
func RecordCacheLookup(kind string, hit bool) {
	if CacheRequestsCounter == nil {
		return
	}
	result := "miss"
	if hit {
		result = "hit"
	}
	CacheRequestsCounter.WithLabelValues(kind, result).Inc()
}

// RecordCartOperation counts a cart add/delete and its outcome
func RecordCartOperation(operation, result string) {
	if CartOperationsCounter == nil {
		return
	}
	CartOperationsCounter.WithLabelValues(operation, result).Inc()
}

// RecordCatalogOperation counts an administrative catalog write
func RecordCatalogOperation(entity, operation string) {
	if CatalogOperationsCounter == nil {
		return
	}
	CatalogOperationsCounter.WithLabelValues(entity, operation).Inc()
}

// RecordContactMessage counts a contact form submission
func RecordContactMessage(result string) {
	if ContactMessagesCounter == nil {
		return
	}
	ContactMessagesCounter.WithLabelValues(result).Inc()
}

// RecordProductView increments the counter for product views
func RecordProductView(productID string, category string) {
	if ProductViewsCounter == nil {
		return
	}
	ProductViewsCounter.WithLabelValues(productID, category).Inc()
}
