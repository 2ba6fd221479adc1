// Пакет config — загрузка и валидация конфигурации media-gateway
// из переменных окружения и YAML-файла каналов.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// Версия приложения, задаётся при сборке через -ldflags.
var Version = "dev"

// Config содержит все параметры конфигурации media-gateway.
type Config struct {
	// Порт HTTP-сервера
	Port int

	// Базовый URL identity provider (Keycloak), без завершающего "/"
	KeycloakURL string
	// Realm identity provider
	Realm string
	// Клиент для password/refresh grant
	ClientID     string
	ClientSecret string
	// Таймаут HTTP-клиента identity provider
	HTTPClientTimeout time.Duration
	// Отключить проверку TLS-сертификата identity provider (только для разработки)
	TLSSkipVerify bool
	// Путь к CA-сертификату identity provider (опционально)
	CACertPath string

	// Время жизни набора ключей KeySet Cache
	KeySetTTL time.Duration
	// Время жизни ключа подписи URL
	HMACKeyTTL time.Duration
	// Окно действия подписи URL
	SignatureTTL time.Duration
	// Кэш сессий: время жизни и размер каждого из трёх кэшей
	SessionCacheTTL  time.Duration
	SessionCacheSize int
	// Время жизни записи Channel Cache
	ChannelCacheTTL time.Duration

	// Путь к файлу SQLite Metadata Store
	DBPath string
	// Каталог, в котором ищутся docx-описания (пусто — извлечение отключено)
	WatchPath string
	// Регулярное выражение имён docx-файлов
	FilePattern *regexp.Regexp
	// Интервал опроса каталога описаний и каталогов каналов
	PollInterval time.Duration
	// Глубина RSS в днях: <0 — обновление листингов отключено, 0 — 7 дней
	RSSDays int
	// Ёмкость каналов между стадиями обновления листингов
	PipelineBuffer int

	// Корень файлов по умолчанию для /fs/v1
	BasePath string
	// Путь к YAML-файлу каналов и папок (опционально)
	ConfigPath string

	// Таймауты HTTP-сервера
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
	// Таймаут graceful shutdown HTTP-сервера
	ShutdownTimeout time.Duration

	// Уровень логирования (debug, info, warn, error)
	LogLevel slog.Level
	// Формат логов (json, text)
	LogFormat string

	// Идентификатор сервиса в метриках topologymetrics
	ServiceID string
	// Имя группы в метриках topologymetrics
	DephealthGroup string
	// Интервал проверки зависимостей topologymetrics
	DephealthCheckInterval time.Duration
}

// IssuerURL возвращает issuer токенов: {base}/realms/{realm}.
func (c *Config) IssuerURL() string {
	return c.KeycloakURL + "/realms/" + c.Realm
}

// Load загружает конфигурацию из переменных окружения, валидирует
// обязательные поля и возвращает Config или ошибку.
func Load() (*Config, error) {
	cfg := &Config{}

	// MG_PORT — порт HTTP-сервера (по умолчанию 8080)
	port, err := getEnvInt("MG_PORT", 8080)
	if err != nil {
		return nil, fmt.Errorf("MG_PORT: %w", err)
	}
	if port < 1 || port > 65535 {
		return nil, fmt.Errorf("MG_PORT: значение %d вне допустимого диапазона 1-65535", port)
	}
	cfg.Port = port

	// MG_KEYCLOAK_URL — обязательный
	keycloakURL, err := getEnvRequired("MG_KEYCLOAK_URL")
	if err != nil {
		return nil, err
	}
	cfg.KeycloakURL = strings.TrimRight(keycloakURL, "/")

	// MG_REALM — обязательный
	cfg.Realm, err = getEnvRequired("MG_REALM")
	if err != nil {
		return nil, err
	}

	// MG_CLIENT_ID — обязательный
	cfg.ClientID, err = getEnvRequired("MG_CLIENT_ID")
	if err != nil {
		return nil, err
	}

	// MG_CLIENT_SECRET — обязательный
	cfg.ClientSecret, err = getEnvRequired("MG_CLIENT_SECRET")
	if err != nil {
		return nil, err
	}

	// MG_HTTP_CLIENT_TIMEOUT — таймаут запросов к identity provider (по умолчанию 10s)
	cfg.HTTPClientTimeout, err = getEnvPositiveDuration("MG_HTTP_CLIENT_TIMEOUT", 10*time.Second)
	if err != nil {
		return nil, err
	}

	// MG_TLS_SKIP_VERIFY — отключение проверки TLS (по умолчанию false)
	cfg.TLSSkipVerify, err = getEnvBool("MG_TLS_SKIP_VERIFY", false)
	if err != nil {
		return nil, fmt.Errorf("MG_TLS_SKIP_VERIFY: %w", err)
	}

	// MG_CA_CERT_PATH — CA-сертификат identity provider (опционально)
	cfg.CACertPath = getEnvDefault("MG_CA_CERT_PATH", "")

	// MG_KEYSET_TTL — время жизни набора ключей (по умолчанию 4h)
	cfg.KeySetTTL, err = getEnvPositiveDuration("MG_KEYSET_TTL", 4*time.Hour)
	if err != nil {
		return nil, err
	}

	// MG_HMAC_KEY_TTL — время жизни ключа подписи (по умолчанию 30 дней)
	cfg.HMACKeyTTL, err = getEnvPositiveDuration("MG_HMAC_KEY_TTL", 720*time.Hour)
	if err != nil {
		return nil, err
	}

	// MG_SIGNATURE_TTL — окно действия подписи (по умолчанию 1h)
	cfg.SignatureTTL, err = getEnvPositiveDuration("MG_SIGNATURE_TTL", time.Hour)
	if err != nil {
		return nil, err
	}

	// MG_SESSION_CACHE_TTL — время жизни сессии в кэше (по умолчанию 5m)
	cfg.SessionCacheTTL, err = getEnvPositiveDuration("MG_SESSION_CACHE_TTL", 5*time.Minute)
	if err != nil {
		return nil, err
	}

	// MG_SESSION_CACHE_SIZE — размер каждого кэша сессий (по умолчанию 10000)
	cfg.SessionCacheSize, err = getEnvInt("MG_SESSION_CACHE_SIZE", 10000)
	if err != nil {
		return nil, fmt.Errorf("MG_SESSION_CACHE_SIZE: %w", err)
	}
	if cfg.SessionCacheSize <= 0 {
		return nil, fmt.Errorf("MG_SESSION_CACHE_SIZE: значение должно быть положительным")
	}

	// MG_CHANNEL_CACHE_TTL — время жизни канала в кэше (по умолчанию 300s)
	cfg.ChannelCacheTTL, err = getEnvPositiveDuration("MG_CHANNEL_CACHE_TTL", 300*time.Second)
	if err != nil {
		return nil, err
	}

	// MG_DB_PATH — файл SQLite (по умолчанию ./data/webfs.db)
	cfg.DBPath = getEnvDefault("MG_DB_PATH", "./data/webfs.db")

	// MG_WATCH_PATH — каталог docx-описаний (пусто — извлечение отключено)
	cfg.WatchPath = getEnvDefault("MG_WATCH_PATH", "")

	// MG_FILE_PATTERN — шаблон имён docx-файлов
	pattern := getEnvDefault("MG_FILE_PATTERN", `zsv[\d]{6}.*\.docx`)
	cfg.FilePattern, err = regexp.Compile(pattern)
	if err != nil {
		return nil, fmt.Errorf("MG_FILE_PATTERN: некорректное регулярное выражение %q: %w", pattern, err)
	}

	// MG_POLL_INTERVAL — интервал опроса (по умолчанию 5s)
	cfg.PollInterval, err = getEnvPositiveDuration("MG_POLL_INTERVAL", 5*time.Second)
	if err != nil {
		return nil, err
	}

	// MG_RSS_DAYS — глубина RSS в днях (по умолчанию -1, обновление отключено)
	cfg.RSSDays, err = getEnvInt("MG_RSS_DAYS", -1)
	if err != nil {
		return nil, fmt.Errorf("MG_RSS_DAYS: %w", err)
	}
	if cfg.RSSDays == 0 {
		cfg.RSSDays = 7
	}

	// MG_PIPELINE_BUFFER — ёмкость каналов между стадиями (по умолчанию 100)
	cfg.PipelineBuffer, err = getEnvInt("MG_PIPELINE_BUFFER", 100)
	if err != nil {
		return nil, fmt.Errorf("MG_PIPELINE_BUFFER: %w", err)
	}
	if cfg.PipelineBuffer <= 0 {
		return nil, fmt.Errorf("MG_PIPELINE_BUFFER: значение должно быть положительным")
	}

	// MG_BASE_PATH — корень файлов по умолчанию (по умолчанию /srv/media)
	cfg.BasePath = getEnvDefault("MG_BASE_PATH", "/srv/media")

	// MG_CONFIG_PATH — YAML-файл каналов и папок (опционально)
	cfg.ConfigPath = getEnvDefault("MG_CONFIG_PATH", "")

	// MG_HTTP_READ_TIMEOUT, MG_HTTP_WRITE_TIMEOUT, MG_HTTP_IDLE_TIMEOUT — таймауты сервера
	cfg.ReadTimeout, err = getEnvPositiveDuration("MG_HTTP_READ_TIMEOUT", 30*time.Second)
	if err != nil {
		return nil, err
	}
	cfg.WriteTimeout, err = getEnvPositiveDuration("MG_HTTP_WRITE_TIMEOUT", 60*time.Second)
	if err != nil {
		return nil, err
	}
	cfg.IdleTimeout, err = getEnvPositiveDuration("MG_HTTP_IDLE_TIMEOUT", 120*time.Second)
	if err != nil {
		return nil, err
	}

	// MG_SHUTDOWN_TIMEOUT — таймаут graceful shutdown (по умолчанию 5s)
	cfg.ShutdownTimeout, err = getEnvPositiveDuration("MG_SHUTDOWN_TIMEOUT", 5*time.Second)
	if err != nil {
		return nil, err
	}

	// MG_LOG_LEVEL — уровень логирования (по умолчанию info)
	cfg.LogLevel, err = parseLogLevel(getEnvDefault("MG_LOG_LEVEL", "info"))
	if err != nil {
		return nil, fmt.Errorf("MG_LOG_LEVEL: %w", err)
	}

	// MG_LOG_FORMAT — формат логов (по умолчанию json)
	cfg.LogFormat = getEnvDefault("MG_LOG_FORMAT", "json")
	if cfg.LogFormat != "json" && cfg.LogFormat != "text" {
		return nil, fmt.Errorf("MG_LOG_FORMAT: недопустимое значение %q, допустимые: json, text", cfg.LogFormat)
	}

	// MG_SERVICE_ID — идентификатор сервиса в topologymetrics
	cfg.ServiceID = getEnvDefault("MG_SERVICE_ID", "media-gateway")

	// MG_DEPHEALTH_GROUP — имя группы в метриках topologymetrics
	cfg.DephealthGroup = getEnvDefault("MG_DEPHEALTH_GROUP", "media")

	// MG_DEPHEALTH_CHECK_INTERVAL — интервал проверки зависимостей (по умолчанию 15s)
	cfg.DephealthCheckInterval, err = getEnvPositiveDuration("MG_DEPHEALTH_CHECK_INTERVAL", 15*time.Second)
	if err != nil {
		return nil, err
	}

	return cfg, nil
}

// SetupLogger настраивает глобальный slog-логгер на основе конфигурации.
func SetupLogger(cfg *Config) *slog.Logger {
	opts := &slog.HandlerOptions{
		Level: cfg.LogLevel,
	}

	var handler slog.Handler
	if cfg.LogFormat == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}

	logger := slog.New(handler)
	slog.SetDefault(logger)
	return logger
}

// --- Вспомогательные функции ---

// getEnvRequired возвращает значение переменной окружения или ошибку, если она не задана.
func getEnvRequired(key string) (string, error) {
	val := os.Getenv(key)
	if val == "" {
		return "", fmt.Errorf("%s: обязательная переменная окружения не задана", key)
	}
	return val, nil
}

// getEnvDefault возвращает значение переменной окружения или значение по умолчанию.
func getEnvDefault(key, defaultVal string) string {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	return val
}

// getEnvInt возвращает целочисленное значение переменной окружения или значение по умолчанию.
func getEnvInt(key string, defaultVal int) (int, error) {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal, nil
	}
	n, err := strconv.Atoi(val)
	if err != nil {
		return 0, fmt.Errorf("некорректное целое число: %q", val)
	}
	return n, nil
}

// getEnvBool возвращает булево значение переменной окружения или значение по умолчанию.
func getEnvBool(key string, defaultVal bool) (bool, error) {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal, nil
	}
	b, err := strconv.ParseBool(val)
	if err != nil {
		return false, fmt.Errorf("некорректное булево значение: %q", val)
	}
	return b, nil
}

// getEnvDuration возвращает time.Duration из переменной окружения или значение по умолчанию.
func getEnvDuration(key string, defaultVal time.Duration) (time.Duration, error) {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal, nil
	}
	d, err := time.ParseDuration(val)
	if err != nil {
		return 0, fmt.Errorf("некорректная длительность: %q (используйте формат Go: 30s, 1h, 6h)", val)
	}
	return d, nil
}

// getEnvPositiveDuration — getEnvDuration с проверкой, что значение больше нуля.
// Ошибка уже содержит имя переменной.
func getEnvPositiveDuration(key string, defaultVal time.Duration) (time.Duration, error) {
	d, err := getEnvDuration(key, defaultVal)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	if d <= 0 {
		return 0, fmt.Errorf("%s: значение должно быть положительным, получено %s", key, d)
	}
	return d, nil
}

// parseLogLevel преобразует строку уровня логирования в slog.Level.
func parseLogLevel(level string) (slog.Level, error) {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug, nil
	case "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("недопустимый уровень %q, допустимые: debug, info, warn, error", level)
	}
}
