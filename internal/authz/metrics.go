// metrics.go — Prometheus-метрики авторизации.
package authz

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// resolveTotal — результаты авторизации (mode: bearer, basic, signed_url, none).
var resolveTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Name: "mg_authz_resolve_total",
		Help: "Количество авторизаций запросов",
	},
	[]string{"mode", "result"},
)
