package store

import "github.com/prometheus/client_golang/prometheus"

var kvOps = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "kv_operations_total",
		Help: "Key-value store operations by store, backend, op and result.",
	},
	[]string{"store", "backend", "op", "result"},
)

func init() {
	prometheus.MustRegister(kvOps)
}

func observe(store, backend, op, result string) {
	kvOps.WithLabelValues(store, backend, op, result).Inc()
}
