// health.go — обработчики health endpoints для Kubernetes probes.
package handlers

import (
	"net/http"
	"time"

	"github.com/bigkaa/goartstore/media-gateway/internal/config"
)

// statusFail — строковая константа для статуса "fail" в health checks.
const statusFail = "fail"

// ReadinessChecker — проверка готовности зависимости.
// Возвращает статус ("ok", "fail") и сообщение.
type ReadinessChecker interface {
	CheckReady() (status string, message string)
}

// DependencyHealth — состояние внешних зависимостей (topologymetrics).
type DependencyHealth interface {
	Health() map[string]bool
}

// HealthHandler реализует health endpoints: /health/live, /health/ready.
type HealthHandler struct {
	version string
	// db — Metadata Store
	db ReadinessChecker
	// deps — мониторинг identity provider (nil — проверка не настроена)
	deps DependencyHealth
}

// NewHealthHandler создаёт обработчик health endpoints.
func NewHealthHandler(db ReadinessChecker, deps DependencyHealth) *HealthHandler {
	return &HealthHandler{
		version: config.Version,
		db:      db,
		deps:    deps,
	}
}

// HealthLive обрабатывает GET /health/live.
// Возвращает 200, если процесс жив. Не проверяет зависимости.
func (h *HealthHandler) HealthLive(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":    "ok",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
		"version":   h.version,
		"service":   "media-gateway",
	})
}

// HealthReady обрабатывает GET /health/ready.
// Недоступная база — fail (503); недоступный identity provider — degraded:
// листинги из кэша и подписанные URL продолжают работать.
func (h *HealthHandler) HealthReady(w http.ResponseWriter, _ *http.Request) {
	overallStatus := "ok"
	httpStatus := http.StatusOK

	dbCheck := h.checkDatabase()
	if dbCheck["status"] != "ok" {
		overallStatus = statusFail
		httpStatus = http.StatusServiceUnavailable
	}

	idpCheck := h.checkDependencies()
	if idpCheck["status"] != "ok" && overallStatus != statusFail {
		overallStatus = "degraded"
	}

	writeJSON(w, httpStatus, map[string]any{
		"status":    overallStatus,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
		"version":   h.version,
		"service":   "media-gateway",
		"checks": map[string]any{
			"database":          dbCheck,
			"identity_provider": idpCheck,
		},
	})
}

func (h *HealthHandler) checkDatabase() map[string]any {
	if h.db == nil {
		return map[string]any{
			"status":  "ok",
			"message": "Проверка не настроена",
		}
	}
	status, message := h.db.CheckReady()
	return map[string]any{
		"status":  status,
		"message": message,
	}
}

// checkDependencies сводит состояние зависимостей dephealth.
// Пока первая проверка не выполнена, карта пуста и статус ok.
func (h *HealthHandler) checkDependencies() map[string]any {
	if h.deps == nil {
		return map[string]any{
			"status":  "ok",
			"message": "Проверка не настроена",
		}
	}

	health := h.deps.Health()
	status := "ok"
	for _, healthy := range health {
		if !healthy {
			status = statusFail
			break
		}
	}
	return map[string]any{
		"status":    status,
		"endpoints": health,
	}
}
