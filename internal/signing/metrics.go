// metrics.go — Prometheus-метрики подписанных URL.
package signing

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// signTotal — подписи и проверки URL (operation: sign, verify).
	signTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mg_signed_url_total",
			Help: "Количество подписей и проверок URL",
		},
		[]string{"operation", "result"},
	)

	keyRotationsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "mg_signing_key_rotations_total",
			Help: "Количество созданных ключей подписи URL",
		},
	)
)
