package config

import (
	"log/slog"
	"os"
	"testing"
	"time"
)

// setEnvVars устанавливает переменные окружения для теста и возвращает
// функцию очистки. Всегда вызывать defer cleanup().
func setEnvVars(t *testing.T, vars map[string]string) func() {
	t.Helper()

	// Сохраняем оригинальные значения
	originals := make(map[string]string)
	origSet := make(map[string]bool)
	for k := range vars {
		if v, ok := os.LookupEnv(k); ok {
			originals[k] = v
			origSet[k] = true
		}
	}

	for k, v := range vars {
		os.Setenv(k, v)
	}

	return func() {
		for k := range vars {
			if origSet[k] {
				os.Setenv(k, originals[k])
			} else {
				os.Unsetenv(k)
			}
		}
	}
}

// allKeys — все переменные MG_*, читаемые Load.
var allKeys = []string{
	"MG_PORT", "MG_KEYCLOAK_URL", "MG_REALM", "MG_CLIENT_ID", "MG_CLIENT_SECRET",
	"MG_HTTP_CLIENT_TIMEOUT", "MG_TLS_SKIP_VERIFY", "MG_CA_CERT_PATH",
	"MG_KEYSET_TTL", "MG_HMAC_KEY_TTL", "MG_SIGNATURE_TTL",
	"MG_SESSION_CACHE_TTL", "MG_SESSION_CACHE_SIZE", "MG_CHANNEL_CACHE_TTL",
	"MG_DB_PATH", "MG_WATCH_PATH", "MG_FILE_PATTERN", "MG_POLL_INTERVAL",
	"MG_RSS_DAYS", "MG_PIPELINE_BUFFER", "MG_BASE_PATH", "MG_CONFIG_PATH",
	"MG_HTTP_READ_TIMEOUT", "MG_HTTP_WRITE_TIMEOUT", "MG_HTTP_IDLE_TIMEOUT",
	"MG_SHUTDOWN_TIMEOUT", "MG_LOG_LEVEL", "MG_LOG_FORMAT",
	"MG_SERVICE_ID", "MG_DEPHEALTH_GROUP", "MG_DEPHEALTH_CHECK_INTERVAL",
}

// clearAllMGEnvVars очищает все переменные окружения MG_* для чистого теста.
func clearAllMGEnvVars(t *testing.T) func() {
	t.Helper()
	originals := make(map[string]string)
	origSet := make(map[string]bool)
	for _, k := range allKeys {
		if v, ok := os.LookupEnv(k); ok {
			originals[k] = v
			origSet[k] = true
		}
		os.Unsetenv(k)
	}
	return func() {
		for _, k := range allKeys {
			if origSet[k] {
				os.Setenv(k, originals[k])
			} else {
				os.Unsetenv(k)
			}
		}
	}
}

// requiredEnvVars возвращает минимальный набор обязательных переменных.
func requiredEnvVars() map[string]string {
	return map[string]string{
		"MG_KEYCLOAK_URL":  "https://idp.example.com/",
		"MG_REALM":         "media",
		"MG_CLIENT_ID":     "webfs",
		"MG_CLIENT_SECRET": "secret",
	}
}

func TestLoad_DefaultValues(t *testing.T) {
	cleanup := clearAllMGEnvVars(t)
	defer cleanup()

	cleanupVars := setEnvVars(t, requiredEnvVars())
	defer cleanupVars()

	cfg, err := Load()
	if err != nil {
		t.Fatalf("неожиданная ошибка: %v", err)
	}

	if cfg.Port != 8080 {
		t.Errorf("Port: ожидалось 8080, получено %d", cfg.Port)
	}
	if cfg.KeycloakURL != "https://idp.example.com" {
		t.Errorf("KeycloakURL: завершающий слэш должен удаляться, получено %q", cfg.KeycloakURL)
	}
	if cfg.IssuerURL() != "https://idp.example.com/realms/media" {
		t.Errorf("IssuerURL: получено %q", cfg.IssuerURL())
	}
	if cfg.KeySetTTL != 4*time.Hour {
		t.Errorf("KeySetTTL: ожидалось 4h, получено %v", cfg.KeySetTTL)
	}
	if cfg.HMACKeyTTL != 720*time.Hour {
		t.Errorf("HMACKeyTTL: ожидалось 720h, получено %v", cfg.HMACKeyTTL)
	}
	if cfg.SignatureTTL != time.Hour {
		t.Errorf("SignatureTTL: ожидалось 1h, получено %v", cfg.SignatureTTL)
	}
	if cfg.SessionCacheTTL != 5*time.Minute {
		t.Errorf("SessionCacheTTL: ожидалось 5m, получено %v", cfg.SessionCacheTTL)
	}
	if cfg.SessionCacheSize != 10000 {
		t.Errorf("SessionCacheSize: ожидалось 10000, получено %d", cfg.SessionCacheSize)
	}
	if cfg.ChannelCacheTTL != 300*time.Second {
		t.Errorf("ChannelCacheTTL: ожидалось 300s, получено %v", cfg.ChannelCacheTTL)
	}
	if cfg.DBPath != "./data/webfs.db" {
		t.Errorf("DBPath: получено %q", cfg.DBPath)
	}
	if cfg.WatchPath != "" {
		t.Errorf("WatchPath: ожидалась пустая строка, получено %q", cfg.WatchPath)
	}
	if !cfg.FilePattern.MatchString("zsv250101-desc.docx") {
		t.Error("FilePattern по умолчанию должен принимать zsv250101-desc.docx")
	}
	if cfg.FilePattern.MatchString("notes.docx") {
		t.Error("FilePattern по умолчанию не должен принимать notes.docx")
	}
	if cfg.PollInterval != 5*time.Second {
		t.Errorf("PollInterval: ожидалось 5s, получено %v", cfg.PollInterval)
	}
	if cfg.RSSDays != -1 {
		t.Errorf("RSSDays: ожидалось -1, получено %d", cfg.RSSDays)
	}
	if cfg.PipelineBuffer != 100 {
		t.Errorf("PipelineBuffer: ожидалось 100, получено %d", cfg.PipelineBuffer)
	}
	if cfg.BasePath != "/srv/media" {
		t.Errorf("BasePath: получено %q", cfg.BasePath)
	}
	if cfg.HTTPClientTimeout != 10*time.Second {
		t.Errorf("HTTPClientTimeout: ожидалось 10s, получено %v", cfg.HTTPClientTimeout)
	}
	if cfg.TLSSkipVerify {
		t.Error("TLSSkipVerify: ожидалось false")
	}
	if cfg.ReadTimeout != 30*time.Second || cfg.WriteTimeout != 60*time.Second || cfg.IdleTimeout != 120*time.Second {
		t.Errorf("таймауты сервера: получено %v/%v/%v", cfg.ReadTimeout, cfg.WriteTimeout, cfg.IdleTimeout)
	}
	if cfg.LogLevel != slog.LevelInfo {
		t.Errorf("LogLevel: ожидалось INFO, получено %v", cfg.LogLevel)
	}
	if cfg.LogFormat != "json" {
		t.Errorf("LogFormat: ожидалось 'json', получено %q", cfg.LogFormat)
	}
	if cfg.ServiceID != "media-gateway" || cfg.DephealthGroup != "media" {
		t.Errorf("dephealth: получено %q/%q", cfg.ServiceID, cfg.DephealthGroup)
	}
	if cfg.DephealthCheckInterval != 15*time.Second {
		t.Errorf("DephealthCheckInterval: ожидалось 15s, получено %v", cfg.DephealthCheckInterval)
	}
}

func TestLoad_CustomValues(t *testing.T) {
	cleanup := clearAllMGEnvVars(t)
	defer cleanup()

	vars := requiredEnvVars()
	vars["MG_PORT"] = "9090"
	vars["MG_KEYSET_TTL"] = "30m"
	vars["MG_RSS_DAYS"] = "14"
	vars["MG_TLS_SKIP_VERIFY"] = "true"
	vars["MG_WATCH_PATH"] = "/srv/docs"
	vars["MG_LOG_LEVEL"] = "debug"
	vars["MG_LOG_FORMAT"] = "text"
	cleanupVars := setEnvVars(t, vars)
	defer cleanupVars()

	cfg, err := Load()
	if err != nil {
		t.Fatalf("неожиданная ошибка: %v", err)
	}
	if cfg.Port != 9090 {
		t.Errorf("Port: ожидалось 9090, получено %d", cfg.Port)
	}
	if cfg.KeySetTTL != 30*time.Minute {
		t.Errorf("KeySetTTL: ожидалось 30m, получено %v", cfg.KeySetTTL)
	}
	if cfg.RSSDays != 14 {
		t.Errorf("RSSDays: ожидалось 14, получено %d", cfg.RSSDays)
	}
	if !cfg.TLSSkipVerify {
		t.Error("TLSSkipVerify: ожидалось true")
	}
	if cfg.WatchPath != "/srv/docs" {
		t.Errorf("WatchPath: получено %q", cfg.WatchPath)
	}
	if cfg.LogLevel != slog.LevelDebug || cfg.LogFormat != "text" {
		t.Errorf("логирование: получено %v/%q", cfg.LogLevel, cfg.LogFormat)
	}
}

// TestLoad_RSSDaysZero проверяет, что 0 дней означает неделю.
func TestLoad_RSSDaysZero(t *testing.T) {
	cleanup := clearAllMGEnvVars(t)
	defer cleanup()

	vars := requiredEnvVars()
	vars["MG_RSS_DAYS"] = "0"
	cleanupVars := setEnvVars(t, vars)
	defer cleanupVars()

	cfg, err := Load()
	if err != nil {
		t.Fatalf("неожиданная ошибка: %v", err)
	}
	if cfg.RSSDays != 7 {
		t.Errorf("RSSDays: ожидалось 7, получено %d", cfg.RSSDays)
	}
}

func TestLoad_MissingRequiredVars(t *testing.T) {
	for missing := range requiredEnvVars() {
		t.Run(missing, func(t *testing.T) {
			cleanup := clearAllMGEnvVars(t)
			defer cleanup()

			vars := requiredEnvVars()
			delete(vars, missing)
			cleanupVars := setEnvVars(t, vars)
			defer cleanupVars()

			_, err := Load()
			if err == nil {
				t.Errorf("ожидалась ошибка при отсутствии %s", missing)
			}
		})
	}
}

func TestLoad_InvalidValues(t *testing.T) {
	tests := []struct {
		key   string
		value string
	}{
		{"MG_PORT", "0"},
		{"MG_PORT", "70000"},
		{"MG_PORT", "abc"},
		{"MG_KEYSET_TTL", "forever"},
		{"MG_KEYSET_TTL", "-1h"},
		{"MG_POLL_INTERVAL", "0s"},
		{"MG_SESSION_CACHE_SIZE", "0"},
		{"MG_PIPELINE_BUFFER", "-5"},
		{"MG_RSS_DAYS", "week"},
		{"MG_TLS_SKIP_VERIFY", "maybe"},
		{"MG_FILE_PATTERN", "zsv[("},
		{"MG_LOG_LEVEL", "verbose"},
		{"MG_LOG_FORMAT", "xml"},
	}

	for _, tt := range tests {
		t.Run(tt.key+"="+tt.value, func(t *testing.T) {
			cleanup := clearAllMGEnvVars(t)
			defer cleanup()

			vars := requiredEnvVars()
			vars[tt.key] = tt.value
			cleanupVars := setEnvVars(t, vars)
			defer cleanupVars()

			if _, err := Load(); err == nil {
				t.Errorf("ожидалась ошибка для %s=%q", tt.key, tt.value)
			}
		})
	}
}

func TestLoad_ValidLogLevels(t *testing.T) {
	tests := []struct {
		input    string
		expected slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"info", slog.LevelInfo},
		{"warn", slog.LevelWarn},
		{"warning", slog.LevelWarn},
		{"ERROR", slog.LevelError},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			level, err := parseLogLevel(tt.input)
			if err != nil {
				t.Fatalf("неожиданная ошибка: %v", err)
			}
			if level != tt.expected {
				t.Errorf("LogLevel: ожидалось %v, получено %v", tt.expected, level)
			}
		})
	}
}

func TestSetupLogger(t *testing.T) {
	tests := []struct {
		name   string
		format string
	}{
		{"json", "json"},
		{"text", "text"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := &Config{
				LogLevel:  slog.LevelInfo,
				LogFormat: tt.format,
			}
			logger := SetupLogger(cfg)
			if logger == nil {
				t.Fatal("SetupLogger вернул nil")
			}
		})
	}
}
