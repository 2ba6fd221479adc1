package handlers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

type fakeDB struct{ status, message string }

func (f fakeDB) CheckReady() (string, string) { return f.status, f.message }

type fakeDeps map[string]bool

func (f fakeDeps) Health() map[string]bool { return f }

func decodeStatus(t *testing.T, w *httptest.ResponseRecorder) string {
	t.Helper()
	var body struct {
		Status string `json:"status"`
	}
	if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
		t.Fatalf("ошибка декодирования: %v", err)
	}
	return body.Status
}

func TestHealthLive(t *testing.T) {
	h := NewHealthHandler(nil, nil)
	w := httptest.NewRecorder()
	h.HealthLive(w, httptest.NewRequest(http.MethodGet, "/health/live", nil))

	if w.Code != http.StatusOK {
		t.Errorf("ожидался статус 200, получен %d", w.Code)
	}
	if s := decodeStatus(t, w); s != "ok" {
		t.Errorf("ожидался статус ok, получен %q", s)
	}
}

func TestHealthReady(t *testing.T) {
	tests := []struct {
		name       string
		db         ReadinessChecker
		deps       DependencyHealth
		wantCode   int
		wantStatus string
	}{
		{"без проверок", nil, nil, http.StatusOK, "ok"},
		{"всё доступно", fakeDB{"ok", ""}, fakeDeps{"identity-provider:idp:443": true}, http.StatusOK, "ok"},
		{"первая проверка не выполнена", fakeDB{"ok", ""}, fakeDeps{}, http.StatusOK, "ok"},
		{"identity provider недоступен", fakeDB{"ok", ""}, fakeDeps{"identity-provider:idp:443": false}, http.StatusOK, "degraded"},
		{"база недоступна", fakeDB{statusFail, "locked"}, fakeDeps{"identity-provider:idp:443": false}, http.StatusServiceUnavailable, statusFail},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := NewHealthHandler(tt.db, tt.deps)
			w := httptest.NewRecorder()
			h.HealthReady(w, httptest.NewRequest(http.MethodGet, "/health/ready", nil))

			if w.Code != tt.wantCode {
				t.Errorf("ожидался статус %d, получен %d", tt.wantCode, w.Code)
			}
			if s := decodeStatus(t, w); s != tt.wantStatus {
				t.Errorf("ожидался статус %q, получен %q", tt.wantStatus, s)
			}
		})
	}
}
