// maintenance.go — обработчик POST /maint/v1/extract.
// Запускает внеочередной тик извлечения описаний.
package handlers

import (
	"context"
	"net/http"

	apierrors "github.com/bigkaa/goartstore/media-gateway/internal/api/errors"
	"github.com/bigkaa/goartstore/media-gateway/internal/service"
)

// ExtractionRunner — интерфейс для запуска извлечения описаний.
// Позволяет тестировать handler без полного ExtractionService.
type ExtractionRunner interface {
	// RunOnce выполняет один тик извлечения.
	// Возвращает результат и флаг "уже выполняется".
	RunOnce(ctx context.Context) (*service.ExtractionResult, bool)
}

// MaintenanceHandler — обработчик endpoints обслуживания.
type MaintenanceHandler struct {
	extractor ExtractionRunner
}

// NewMaintenanceHandler создаёт обработчик maintenance endpoints.
// extractor может быть nil (извлечение отключено) — тогда 404.
func NewMaintenanceHandler(extractor ExtractionRunner) *MaintenanceHandler {
	return &MaintenanceHandler{extractor: extractor}
}

// Extract обрабатывает POST /maint/v1/extract.
// Если тик уже выполняется — 409 IN_PROGRESS.
func (h *MaintenanceHandler) Extract(w http.ResponseWriter, r *http.Request) {
	if h.extractor == nil {
		apierrors.NotFound(w, "Извлечение описаний отключено")
		return
	}

	result, inProgress := h.extractor.RunOnce(r.Context())
	if inProgress {
		apierrors.InProgress(w, "Извлечение описаний уже выполняется")
		return
	}
	writeJSON(w, http.StatusOK, result)
}
