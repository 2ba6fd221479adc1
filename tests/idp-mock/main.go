// Identity Provider Mock — минималистичный сервис для ручных прогонов media-gateway.
// Имитирует endpoints Keycloak одного realm: генерирует RSA ключевую пару при старте,
// отдаёт JWKS по GET /realms/{realm}/protocol/openid-connect/certs и выдаёт токены
// по POST /realms/{realm}/protocol/openid-connect/token (password и refresh_token grant).
package main

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"encoding/json"
	"log/slog"
	"net/http"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/MicahParks/jwkset"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/bigkaa/goartstore/media-gateway/internal/domain/model"
)

// --- Конфигурация ---

// config хранит конфигурацию сервиса из env-переменных.
type config struct {
	Port     string // MOCK_PORT — порт HTTP-сервера (default: 8180)
	Realm    string // MOCK_REALM — имя realm (default: webfs)
	Issuer   string // MOCK_ISSUER_BASE — внешний базовый URL для claim iss (default: http://localhost:{port})
	ClientID string // MOCK_CLIENT_ID — ожидаемый client_id (пусто — любой)
	Users    string // MOCK_USERS — "логин:пароль:папка,..." (default: alice:alice:default)
	KeySize  int    // MOCK_KEY_SIZE — размер RSA ключа (default: 2048)
	TokenTTL int    // MOCK_TOKEN_TTL — время жизни access token в секундах (default: 300)
}

// loadConfig загружает конфигурацию из переменных окружения.
func loadConfig() config {
	cfg := config{
		Port:     envOrDefault("MOCK_PORT", "8180"),
		Realm:    envOrDefault("MOCK_REALM", "webfs"),
		ClientID: os.Getenv("MOCK_CLIENT_ID"),
		Users:    envOrDefault("MOCK_USERS", "alice:alice:default"),
		KeySize:  2048,
		TokenTTL: 300,
	}
	cfg.Issuer = envOrDefault("MOCK_ISSUER_BASE", "http://localhost:"+cfg.Port)

	if v := os.Getenv("MOCK_KEY_SIZE"); v != "" {
		if size, err := strconv.Atoi(v); err == nil && size >= 1024 {
			cfg.KeySize = size
		}
	}
	if v := os.Getenv("MOCK_TOKEN_TTL"); v != "" {
		if ttl, err := strconv.Atoi(v); err == nil && ttl > 0 {
			cfg.TokenTTL = ttl
		}
	}
	return cfg
}

// envOrDefault возвращает значение env-переменной или default.
func envOrDefault(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

// user — учётная запись mock-пользователя.
type user struct {
	password string
	folder   string
}

// parseUsers разбирает MOCK_USERS.
func parseUsers(s string) map[string]user {
	users := make(map[string]user)
	for _, item := range strings.Split(s, ",") {
		parts := strings.SplitN(strings.TrimSpace(item), ":", 3)
		if len(parts) < 2 || parts[0] == "" {
			continue
		}
		u := user{password: parts[1]}
		if len(parts) == 3 {
			u.folder = parts[2]
		}
		users[parts[0]] = u
	}
	return users
}

// --- Token ---

// tokenResponse — ответ token endpoint в формате Keycloak.
type tokenResponse struct {
	AccessToken      string `json:"access_token"`
	ExpiresIn        int    `json:"expires_in"`
	RefreshExpiresIn int    `json:"refresh_expires_in"`
	RefreshToken     string `json:"refresh_token"`
	TokenType        string `json:"token_type"`
	SessionState     string `json:"session_state"`
	Scope            string `json:"scope"`
}

// --- Handlers ---

// server объединяет состояние сервиса: RSA ключ, JWKS и выданные refresh token.
type server struct {
	cfg        config
	kid        string
	privateKey *rsa.PrivateKey
	jwks       []byte // кэшированный JSON JWKS ответ
	users      map[string]user
	logger     *slog.Logger

	mu      sync.Mutex
	refresh map[string]string // refresh token → логин
}

// buildJWKS формирует JWKS с публичным ключом через jwkset.
func buildJWKS(ctx context.Context, key *rsa.PrivateKey, kid string) ([]byte, error) {
	jwk, err := jwkset.NewJWKFromKey(&key.PublicKey, jwkset.JWKOptions{
		Metadata: jwkset.JWKMetadataOptions{
			ALG: jwkset.AlgRS256,
			KID: kid,
			USE: jwkset.UseSig,
		},
	})
	if err != nil {
		return nil, err
	}
	storage := jwkset.NewMemoryStorage()
	if err := storage.KeyWrite(ctx, jwk); err != nil {
		return nil, err
	}
	return storage.JSONPublic(ctx)
}

// handleCerts обрабатывает GET .../certs — возвращает JWKS.
func (s *server) handleCerts(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write(s.jwks)
}

// handleToken обрабатывает POST .../token — password и refresh_token grant.
func (s *server) handleToken(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if err := r.ParseForm(); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}
	if s.cfg.ClientID != "" && r.PostForm.Get("client_id") != s.cfg.ClientID {
		writeError(w, http.StatusUnauthorized, "unauthorized_client", "Invalid client credentials")
		return
	}

	var username string
	switch r.PostForm.Get("grant_type") {
	case "password":
		username = r.PostForm.Get("username")
		u, ok := s.users[username]
		if !ok || u.password != r.PostForm.Get("password") {
			s.logger.Info("Вход отклонён", slog.String("username", username))
			writeError(w, http.StatusUnauthorized, "invalid_grant", "Invalid user credentials")
			return
		}
	case "refresh_token":
		s.mu.Lock()
		name, ok := s.refresh[r.PostForm.Get("refresh_token")]
		s.mu.Unlock()
		if !ok {
			writeError(w, http.StatusBadRequest, "invalid_grant", "Invalid refresh token")
			return
		}
		username = name
	default:
		writeError(w, http.StatusBadRequest, "unsupported_grant_type", "Unsupported grant type")
		return
	}

	resp, err := s.issue(username)
	if err != nil {
		s.logger.Error("Ошибка подписи JWT", slog.String("error", err.Error()))
		writeError(w, http.StatusInternalServerError, "server_error", "Ошибка генерации токена")
		return
	}

	s.logger.Info("Токен выдан",
		slog.String("username", username),
		slog.String("grant_type", r.PostForm.Get("grant_type")),
	)
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(resp)
}

// issue подписывает access token и выдаёт новый refresh token.
func (s *server) issue(username string) (*tokenResponse, error) {
	now := time.Now()
	ttl := time.Duration(s.cfg.TokenTTL) * time.Second
	sessionState := uuid.NewString()

	claims := model.IdentityClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Issuer:    s.cfg.Issuer + "/realms/" + s.cfg.Realm,
			Subject:   uuid.NewSHA1(uuid.NameSpaceOID, []byte(username)).String(),
			Audience:  jwt.ClaimStrings{"account"},
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
		},
		DefaultResource:   s.users[username].folder,
		PreferredUsername: username,
		AuthorizedParty:   s.cfg.ClientID,
		SessionState:      sessionState,
		Scope:             "openid profile email",
	}

	token := jwt.NewWithClaims(jwt.SigningMethodRS256, claims)
	token.Header["kid"] = s.kid
	signed, err := token.SignedString(s.privateKey)
	if err != nil {
		return nil, err
	}

	refresh := uuid.NewString()
	s.mu.Lock()
	s.refresh[refresh] = username
	s.mu.Unlock()

	return &tokenResponse{
		AccessToken:      signed,
		ExpiresIn:        s.cfg.TokenTTL,
		RefreshExpiresIn: 6 * s.cfg.TokenTTL,
		RefreshToken:     refresh,
		TokenType:        "Bearer",
		SessionState:     sessionState,
		Scope:            claims.Scope,
	}, nil
}

// handleHealth обрабатывает GET /health — проверка готовности сервиса.
func (s *server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write([]byte(`{"status":"ok"}`))
}

// writeError отправляет ошибку в формате OAuth2 (как Keycloak).
func writeError(w http.ResponseWriter, status int, code, description string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{
		"error":             code,
		"error_description": description,
	})
}

// --- Main ---

func main() {
	cfg := loadConfig()

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	logger.Info("Генерация RSA ключевой пары", slog.Int("key_size", cfg.KeySize))
	privateKey, err := rsa.GenerateKey(rand.Reader, cfg.KeySize)
	if err != nil {
		logger.Error("Ошибка генерации RSA ключа", slog.String("error", err.Error()))
		os.Exit(1)
	}

	kid := uuid.NewString()
	jwks, err := buildJWKS(context.Background(), privateKey, kid)
	if err != nil {
		logger.Error("Ошибка формирования JWKS", slog.String("error", err.Error()))
		os.Exit(1)
	}

	srv := &server{
		cfg:        cfg,
		kid:        kid,
		privateKey: privateKey,
		jwks:       jwks,
		users:      parseUsers(cfg.Users),
		logger:     logger,
		refresh:    make(map[string]string),
	}

	prefix := "/realms/" + cfg.Realm + "/protocol/openid-connect"
	mux := http.NewServeMux()
	mux.HandleFunc(prefix+"/certs", srv.handleCerts)
	mux.HandleFunc(prefix+"/token", srv.handleToken)
	mux.HandleFunc("/health", srv.handleHealth)

	addr := ":" + cfg.Port
	logger.Info("Запуск Identity Provider Mock",
		slog.String("addr", addr),
		slog.String("realm", cfg.Realm),
		slog.Int("users", len(srv.users)),
	)
	if err := http.ListenAndServe(addr, mux); err != nil {
		logger.Error("Ошибка сервера", slog.String("error", err.Error()))
		os.Exit(1)
	}
}
