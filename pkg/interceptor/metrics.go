package interceptor

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/ecstasoy/addrecho/pkg/protocol"
)

var (
	exchangesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "addrecho_exchanges_total",
			Help: "Total number of address exchanges",
		},
		[]string{"role", "transport", "status"},
	)
	exchangeDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "addrecho_exchange_duration_seconds",
			Help:    "Duration of address exchanges in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"role", "transport"},
	)
)

func init() {
	prometheus.MustRegister(exchangesTotal)
	prometheus.MustRegister(exchangeDuration)
}

func Metrics() Interceptor {
	return func(ctx context.Context, ex *protocol.Exchange, invoker Invoker) ([]byte, error) {
		start := time.Now()

		resp, err := invoker(ctx, ex)

		duration := time.Since(start).Seconds()

		status := "success"
		if err != nil {
			status = "error"
		}

		role, transport := ex.Role.String(), ex.Transport.String()
		exchangesTotal.WithLabelValues(role, transport, status).Inc()
		exchangeDuration.WithLabelValues(role, transport).Observe(duration)

		return resp, err
	}
}
