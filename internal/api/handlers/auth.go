// auth.go — HTTP handlers аутентификации: вход, обновление токена,
// подпись URL и проверка для nginx auth_request.
package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	apierrors "github.com/bigkaa/goartstore/media-gateway/internal/api/errors"
	"github.com/bigkaa/goartstore/media-gateway/internal/api/middleware"
	"github.com/bigkaa/goartstore/media-gateway/internal/domain/model"
	"github.com/bigkaa/goartstore/media-gateway/internal/identity"
	"github.com/bigkaa/goartstore/media-gateway/internal/signing"
)

// Заголовки ответа /auth/v1/nginx.
const (
	HeaderAuthUser   = "X-Auth-User"
	HeaderAuthFolder = "X-Auth-Folder"
)

// SessionExchanger — обмен учётных данных и refresh token на сессию.
type SessionExchanger interface {
	Authenticate(ctx context.Context, creds identity.Credentials) (*model.AuthenticatedSession, error)
	Refresh(ctx context.Context, refreshToken string) (*model.AuthenticatedSession, error)
}

// URLSigner подписывает URL.
type URLSigner interface {
	SignURL(req signing.Request) (*signing.Response, error)
}

// TokenSessionStore сохраняет сессию в кэшах по токену.
type TokenSessionStore interface {
	StoreToken(session *model.AuthenticatedSession)
}

// AuthHandler — обработчик endpoints /auth/v1.
type AuthHandler struct {
	exchanger SessionExchanger
	signer    URLSigner
	sessions  TokenSessionStore
	logger    *slog.Logger
}

// NewAuthHandler создаёт обработчик endpoints аутентификации.
func NewAuthHandler(exchanger SessionExchanger, signer URLSigner, sessions TokenSessionStore, logger *slog.Logger) *AuthHandler {
	return &AuthHandler{
		exchanger: exchanger,
		signer:    signer,
		sessions:  sessions,
		logger:    logger.With(slog.String("component", "auth_handler")),
	}
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type refreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

// Login обрабатывает POST /auth/v1/login.
// Кэш пары логин/пароль не используется: явный вход всегда идёт в identity provider.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		apierrors.ValidationError(w, "Некорректное тело запроса: "+err.Error())
		return
	}
	if req.Username == "" || req.Password == "" {
		apierrors.ValidationError(w, "Поля 'username' и 'password' обязательны")
		return
	}

	session, err := h.exchanger.Authenticate(r.Context(), identity.Credentials{
		Username: req.Username,
		Password: req.Password,
	})
	if err != nil {
		h.writeIdentityError(w, err)
		return
	}

	h.logger.Info("Пользователь вошёл",
		slog.String("username", req.Username),
		slog.String("folder", session.FolderName()),
	)
	writeJSON(w, http.StatusOK, session)
}

// Refresh обрабатывает POST /auth/v1/refresh.
func (h *AuthHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	var req refreshRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		apierrors.ValidationError(w, "Некорректное тело запроса: "+err.Error())
		return
	}
	if req.RefreshToken == "" {
		apierrors.ValidationError(w, "Поле 'refresh_token' обязательно")
		return
	}

	session, err := h.exchanger.Refresh(r.Context(), req.RefreshToken)
	if err != nil {
		h.writeIdentityError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, session)
}

// SignURL обрабатывает POST /auth/v1/signurl. Требует авторизации.
// id подписанного URL — хэш токена вызывающего, по нему Authorization
// Resolver находит исходную сессию. fs_id допускается только для папки сессии.
func (h *AuthHandler) SignURL(w http.ResponseWriter, r *http.Request) {
	res, ok := middleware.ResultFromContext(r.Context())
	if !ok {
		apierrors.Unauthorized(w, "no token")
		return
	}

	var req signing.Request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		apierrors.ValidationError(w, "Некорректное тело запроса: "+err.Error())
		return
	}
	if req.URL == "" {
		apierrors.ValidationError(w, "Поле 'url' обязательно")
		return
	}

	session := res.Session
	if session == nil {
		session = h.sessionFromBearer(r, res.Claims, res.Folder)
		if session == nil {
			apierrors.Unauthorized(w, "no session")
			return
		}
	}
	if req.FSID != "" && req.FSID != identity.SessionFolderID(session) {
		h.logger.Warn("Подпись URL для чужой папки отклонена",
			slog.String("fs_id", req.FSID),
			slog.String("folder", session.FolderName()),
		)
		apierrors.Forbidden(w, "resource not permitted")
		return
	}
	req.ID = session.TokenHash

	resp, err := h.signer.SignURL(req)
	if err != nil {
		if errors.Is(err, signing.ErrMalformedURL) {
			apierrors.ValidationError(w, err.Error())
			return
		}
		h.logger.Error("Ошибка подписи URL", slog.String("error", err.Error()))
		apierrors.InternalError(w, "Ошибка подписи URL")
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// sessionFromBearer строит сессию для проверенного bearer-токена
// и кладёт её в кэши, чтобы подписанный URL мог на неё сослаться.
func (h *AuthHandler) sessionFromBearer(r *http.Request, claims *model.IdentityClaims, folder *model.Folder) *model.AuthenticatedSession {
	token := middleware.BearerToken(r)
	if token == "" || claims == nil {
		return nil
	}
	session := &model.AuthenticatedSession{
		Token:     token,
		TokenHash: identity.HashToken(token),
		Claims:    *claims,
		Folder:    folder,
	}
	if exp := claims.ExpiresUnix(); exp > 0 {
		session.ExpiresAt = time.Unix(exp, 0).UTC()
	}
	h.sessions.StoreToken(session)
	return session
}

// Nginx обрабатывает GET /auth/v1/nginx — цель auth_request.
// Авторизация уже выполнена middleware; в ответ добавляются пользователь и папка.
func (h *AuthHandler) Nginx(w http.ResponseWriter, r *http.Request) {
	res, ok := middleware.ResultFromContext(r.Context())
	if !ok {
		apierrors.Unauthorized(w, "no token")
		return
	}

	user := res.Subject()
	if res.Claims != nil && res.Claims.PreferredUsername != "" {
		user = res.Claims.PreferredUsername
	}
	w.Header().Set(HeaderAuthUser, user)
	w.Header().Set(HeaderAuthFolder, res.FolderName())
	w.WriteHeader(http.StatusOK)
}

// writeIdentityError сопоставляет ошибку identity provider с HTTP-ответом.
func (h *AuthHandler) writeIdentityError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, identity.ErrRejected):
		apierrors.Unauthorized(w, "authentication failed: "+err.Error())
	case errors.Is(err, identity.ErrResourceNotFound):
		apierrors.WriteError(w, http.StatusInternalServerError, apierrors.CodeResourceNotFound, err.Error())
	case errors.Is(err, identity.ErrTransport):
		h.logger.Warn("Identity provider недоступен", slog.String("error", err.Error()))
		apierrors.BadGateway(w, err.Error())
	default:
		h.logger.Error("Ошибка обмена учётных данных", slog.String("error", err.Error()))
		apierrors.InternalError(w, err.Error())
	}
}

// writeJSON записывает v как JSON с заданным статусом.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
