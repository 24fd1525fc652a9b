package cache

import (
	"context"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the cache counters, labelled by key namespace.
type Metrics struct {
	hits          *prometheus.CounterVec
	misses        *prometheus.CounterVec
	errors        *prometheus.CounterVec
	invalidations *prometheus.CounterVec
}

// NewMetrics registers the cache counters with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	newCounter := func(name, help string) *prometheus.CounterVec {
		return factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "speednet",
			Subsystem: "cache",
			Name:      name,
			Help:      help,
		}, []string{"namespace"})
	}
	return &Metrics{
		hits:          newCounter("hits_total", "Cache lookups that returned a stored value."),
		misses:        newCounter("misses_total", "Cache lookups that found nothing."),
		errors:        newCounter("errors_total", "Cache operations that failed."),
		invalidations: newCounter("invalidations_total", "Prefix invalidations issued."),
	}
}

type instrumented struct {
	next    Cache
	metrics *Metrics
}

// Instrument wraps c so every operation updates m.
func Instrument(c Cache, m *Metrics) Cache {
	if m == nil {
		return c
	}
	return &instrumented{next: c, metrics: m}
}

func (i *instrumented) Get(ctx context.Context, key string) ([]byte, bool, error) {
	ns := namespaceOf(key)
	value, ok, err := i.next.Get(ctx, key)
	switch {
	case err != nil:
		i.metrics.errors.WithLabelValues(ns).Inc()
	case ok:
		i.metrics.hits.WithLabelValues(ns).Inc()
	default:
		i.metrics.misses.WithLabelValues(ns).Inc()
	}
	return value, ok, err
}

func (i *instrumented) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	err := i.next.Set(ctx, key, value, ttl)
	if err != nil {
		i.metrics.errors.WithLabelValues(namespaceOf(key)).Inc()
	}
	return err
}

func (i *instrumented) InvalidatePrefix(ctx context.Context, prefix string) error {
	ns := namespaceOf(prefix)
	i.metrics.invalidations.WithLabelValues(ns).Inc()
	err := i.next.InvalidatePrefix(ctx, prefix)
	if err != nil {
		i.metrics.errors.WithLabelValues(ns).Inc()
	}
	return err
}

// namespaceOf keeps the first two key segments, e.g. "sessions:list".
func namespaceOf(key string) string {
	parts := strings.SplitN(key, Separator, 3)
	if len(parts) < 2 {
		return key
	}
	return parts[0] + Separator + parts[1]
}
