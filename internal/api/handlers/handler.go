// handler.go — APIHandler собирает доменные handlers и регистрирует
// их маршруты в chi-роутере.
package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// APIHandler — единая точка регистрации всех endpoints.
type APIHandler struct {
	auth        *AuthHandler
	files       *FilesHandler
	maintenance *MaintenanceHandler
	health      *HealthHandler
	// authMW — middleware Authorization Resolver для защищённых маршрутов
	authMW func(http.Handler) http.Handler
	// subrequestMW — то же для nginx auth_request (URL из X-Original-URI)
	subrequestMW func(http.Handler) http.Handler
}

// NewAPIHandler создаёт единый handler для всех endpoints.
func NewAPIHandler(
	auth *AuthHandler,
	files *FilesHandler,
	maintenance *MaintenanceHandler,
	health *HealthHandler,
	authMW func(http.Handler) http.Handler,
	subrequestMW func(http.Handler) http.Handler,
) *APIHandler {
	return &APIHandler{
		auth:         auth,
		files:        files,
		maintenance:  maintenance,
		health:       health,
		authMW:       authMW,
		subrequestMW: subrequestMW,
	}
}

// Register регистрирует маршруты в роутере.
func (h *APIHandler) Register(r chi.Router) {
	// --- Health ---
	r.Get("/health/live", h.health.HealthLive)
	r.Get("/health/ready", h.health.HealthReady)

	// --- Auth (публичные) ---
	r.Post("/auth/v1/login", h.auth.Login)
	r.Post("/auth/v1/refresh", h.auth.Refresh)

	// --- Защищённые маршруты ---
	r.Group(func(r chi.Router) {
		r.Use(h.authMW)

		r.Post("/auth/v1/signurl", h.auth.SignURL)

		r.Get("/fs/v1/*", h.files.Get)
		r.Head("/fs/v1/*", h.files.Get)

		r.Post("/maint/v1/extract", h.maintenance.Extract)
	})

	// --- nginx auth_request ---
	r.Group(func(r chi.Router) {
		r.Use(h.subrequestMW)

		r.Get("/auth/v1/nginx", h.auth.Nginx)
		r.Head("/auth/v1/nginx", h.auth.Nginx)
	})
}
