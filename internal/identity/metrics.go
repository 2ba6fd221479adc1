// metrics.go — Prometheus-метрики identity.
package identity

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// keySetFetchTotal — загрузки набора ключей (result: ok, error).
	keySetFetchTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mg_keyset_fetch_total",
			Help: "Количество загрузок JWKS identity provider",
		},
		[]string{"result"},
	)

	// tokenVerifyTotal — проверки access token (result: valid, invalid, error).
	tokenVerifyTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mg_token_verify_total",
			Help: "Количество проверок access token",
		},
		[]string{"result"},
	)

	// tokenVerifyRetryTotal — повторные проверки после несовпадения подписи.
	tokenVerifyRetryTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "mg_token_verify_retry_total",
			Help: "Количество повторных проверок токена после перезагрузки JWKS",
		},
	)

	// exchangeTotal — обмены учётных данных (grant: password, refresh_token).
	exchangeTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mg_identity_exchange_total",
			Help: "Количество обменов учётных данных с identity provider",
		},
		[]string{"grant", "result"},
	)

	// sessionCacheLookups — обращения к кэшам сессий (cache: credentials, token_hash, token).
	sessionCacheLookups = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mg_session_cache_lookups_total",
			Help: "Обращения к кэшам сессий",
		},
		[]string{"cache", "result"},
	)
)
