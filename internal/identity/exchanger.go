// exchanger.go — Credential Exchanger: password grant и refresh grant
// через token endpoint Keycloak.
package identity

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/bigkaa/goartstore/media-gateway/internal/domain/model"
)

// maxTokenBody — ограничение размера ответа token endpoint.
const maxTokenBody = 1 << 20

// DefaultFolderID — папка, которую получает bearer-токен без claim default_webdavfs.
const DefaultFolderID = "default"

// TokenURL возвращает token endpoint Keycloak: {base}/realms/{realm}/protocol/openid-connect/token.
func TokenURL(baseURL, realm string) string {
	return baseURL + "/realms/" + realm + "/protocol/openid-connect/token"
}

// FolderResolver находит папку по идентификатору из claims.
type FolderResolver interface {
	Folder(id string) (model.Folder, bool)
}

// ResolveFolder сопоставляет claim default_webdavfs с папкой.
// Непустой неизвестный идентификатор — ErrResourceNotFound. Пустой даёт
// папку "default", если fallback включён, иначе nil.
func ResolveFolder(folders FolderResolver, id string, fallback bool) (*model.Folder, error) {
	if id != "" {
		f, ok := folders.Folder(id)
		if !ok {
			return nil, fmt.Errorf("%w: Folder %s not found", ErrResourceNotFound, id)
		}
		return &f, nil
	}
	if fallback {
		if f, ok := folders.Folder(DefaultFolderID); ok {
			return &f, nil
		}
	}
	return nil, nil
}

// Credentials — логин и пароль пользователя.
// UseCache разрешает вернуть сессию из кэша пары логин/пароль.
type Credentials struct {
	Username string
	Password string
	UseCache bool
}

// ExchangerConfig — параметры клиента Keycloak.
type ExchangerConfig struct {
	TokenURL     string
	ClientID     string
	ClientSecret string
}

// tokenResponse — успешный ответ token endpoint.
type tokenResponse struct {
	AccessToken      string `json:"access_token"`
	ExpiresIn        int64  `json:"expires_in"`
	RefreshExpiresIn int64  `json:"refresh_expires_in"`
	RefreshToken     string `json:"refresh_token"`
	TokenType        string `json:"token_type"`
	NotBeforePolicy  int64  `json:"not-before-policy"`
	SessionState     string `json:"session_state"`
	Scope            string `json:"scope"`
	IDToken          string `json:"id_token"`
}

// providerErrorBody — тело отказа token endpoint.
type providerErrorBody struct {
	Error            string `json:"error"`
	ErrorDescription string `json:"error_description"`
}

// Exchanger обменивает учётные данные на access token и заполняет кэши сессий.
type Exchanger struct {
	cfg      ExchangerConfig
	client   *http.Client
	sessions *Sessions
	folders  FolderResolver
	now      func() time.Time
	logger   *slog.Logger
}

// NewExchanger создаёт Credential Exchanger.
func NewExchanger(cfg ExchangerConfig, client *http.Client, sessions *Sessions, folders FolderResolver, logger *slog.Logger) *Exchanger {
	return &Exchanger{
		cfg:      cfg,
		client:   client,
		sessions: sessions,
		folders:  folders,
		now:      time.Now,
		logger:   logger.With(slog.String("component", "credential_exchanger")),
	}
}

// Authenticate выполняет password grant. При UseCache сначала проверяется
// кэш пары логин/пароль. Успешная сессия кладётся во все три кэша.
func (e *Exchanger) Authenticate(ctx context.Context, creds Credentials) (*model.AuthenticatedSession, error) {
	if creds.UseCache {
		if s, ok := e.sessions.ByCredentials(creds.Username, creds.Password); ok {
			return s, nil
		}
	}

	form := url.Values{}
	form.Set("grant_type", "password")
	form.Set("username", creds.Username)
	form.Set("password", creds.Password)
	form.Set("scope", "openid")

	e.logger.Debug("Вход пользователя", slog.String("username", creds.Username))
	session, err := e.exchange(ctx, "password", form)
	if err != nil {
		e.logger.Debug("Вход отклонён",
			slog.String("username", creds.Username),
			slog.String("error", err.Error()),
		)
		return nil, err
	}

	e.sessions.StoreCredentials(creds.Username, creds.Password, session)
	e.sessions.StoreToken(session)
	return session, nil
}

// Refresh выполняет refresh grant. Кэш пары логин/пароль не заполняется.
func (e *Exchanger) Refresh(ctx context.Context, refreshToken string) (*model.AuthenticatedSession, error) {
	form := url.Values{}
	form.Set("grant_type", "refresh_token")
	form.Set("refresh_token", refreshToken)

	session, err := e.exchange(ctx, "refresh_token", form)
	if err != nil {
		e.logger.Debug("Обновление токена отклонено", slog.String("error", err.Error()))
		return nil, err
	}

	e.sessions.StoreToken(session)
	return session, nil
}

// exchange отправляет form на token endpoint и строит сессию из ответа.
func (e *Exchanger) exchange(ctx context.Context, grant string, form url.Values) (*model.AuthenticatedSession, error) {
	form.Set("client_id", e.cfg.ClientID)
	form.Set("client_secret", e.cfg.ClientSecret)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.cfg.TokenURL, strings.NewReader(form.Encode()))
	if err != nil {
		exchangeTotal.WithLabelValues(grant, "error").Inc()
		return nil, fmt.Errorf("%w: создание запроса: %v", ErrTransport, err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")

	resp, err := e.client.Do(req)
	if err != nil {
		exchangeTotal.WithLabelValues(grant, "error").Inc()
		return nil, fmt.Errorf("%w: %v", ErrTransport, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxTokenBody))
	if err != nil {
		exchangeTotal.WithLabelValues(grant, "error").Inc()
		return nil, fmt.Errorf("%w: чтение ответа: %v", ErrTransport, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		exchangeTotal.WithLabelValues(grant, "rejected").Inc()
		perr := &ProviderError{Status: resp.StatusCode, Body: string(body)}
		var eb providerErrorBody
		if json.Unmarshal(body, &eb) == nil {
			perr.Code = eb.Error
			perr.Description = eb.ErrorDescription
		}
		return nil, perr
	}

	var tok tokenResponse
	if err := json.Unmarshal(body, &tok); err != nil {
		exchangeTotal.WithLabelValues(grant, "malformed").Inc()
		return nil, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}
	if tok.AccessToken == "" {
		exchangeTotal.WithLabelValues(grant, "malformed").Inc()
		return nil, fmt.Errorf("%w: пустой access_token", ErrMalformedResponse)
	}

	session, err := e.buildSession(&tok)
	if err != nil {
		exchangeTotal.WithLabelValues(grant, "error").Inc()
		return nil, err
	}
	exchangeTotal.WithLabelValues(grant, "ok").Inc()
	return session, nil
}

// buildSession декодирует claims токена и привязывает папку.
func (e *Exchanger) buildSession(tok *tokenResponse) (*model.AuthenticatedSession, error) {
	claims, err := DecodeClaims(tok.AccessToken)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}

	folder, err := ResolveFolder(e.folders, claims.DefaultResource, false)
	if err != nil {
		return nil, err
	}

	now := e.now()
	return &model.AuthenticatedSession{
		Token:            tok.AccessToken,
		RefreshToken:     tok.RefreshToken,
		TokenHash:        HashToken(tok.AccessToken),
		ExpiresAt:        now.Add(time.Duration(tok.ExpiresIn) * time.Second),
		RefreshExpiresAt: now.Add(time.Duration(tok.RefreshExpiresIn) * time.Second),
		Claims:           *claims,
		Folder:           folder,
	}, nil
}
