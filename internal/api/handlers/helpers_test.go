package handlers

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/bigkaa/goartstore/media-gateway/internal/api/middleware"
	"github.com/bigkaa/goartstore/media-gateway/internal/authz"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelError}))
}

// withResult помещает результат авторизации в контекст запроса.
func withResult(r *http.Request, res authz.Result) *http.Request {
	return r.WithContext(context.WithValue(r.Context(), middleware.ContextKeyAuth, res))
}

// errorCode декодирует код ошибки из ответа.
func errorCode(t *testing.T, w *httptest.ResponseRecorder) string {
	t.Helper()
	var body struct {
		Error struct {
			Code    string `json:"code"`
			Message string `json:"message"`
		} `json:"error"`
	}
	if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
		t.Fatalf("ошибка декодирования ответа: %v", err)
	}
	return body.Error.Code
}
