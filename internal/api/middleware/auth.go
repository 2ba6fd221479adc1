// auth.go — middleware авторизации запросов через Authorization Resolver.
// Поддерживаются bearer-токен, basic-пара и подписанный URL.
// Результат авторизации помещается в контекст запроса.
package middleware

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	apierrors "github.com/bigkaa/goartstore/media-gateway/internal/api/errors"
	"github.com/bigkaa/goartstore/media-gateway/internal/authz"
	"github.com/bigkaa/goartstore/media-gateway/internal/identity"
)

// contextKey — тип для ключей контекста (избегаем коллизий).
type contextKey string

// ContextKeyAuth — ключ результата авторизации в контексте запроса.
const ContextKeyAuth contextKey = "authz_result"

// Заголовки nginx auth_request с исходным запросом.
const (
	HeaderOriginalURI    = "X-Original-URI"
	HeaderOriginalMethod = "X-Original-Method"
)

// Resolver авторизует запрос.
type Resolver interface {
	Resolve(ctx context.Context, req authz.Request) authz.Result
}

// Auth — middleware авторизации.
type Auth struct {
	resolver Resolver
	logger   *slog.Logger
}

// NewAuth создаёт middleware авторизации.
func NewAuth(resolver Resolver, logger *slog.Logger) *Auth {
	return &Auth{
		resolver: resolver,
		logger:   logger.With(slog.String("component", "auth")),
	}
}

// BearerToken извлекает токен из заголовка "Authorization: Bearer <token>".
func BearerToken(r *http.Request) string {
	parts := strings.SplitN(r.Header.Get("Authorization"), " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}

// RequestFromHTTP строит запрос к Resolver из HTTP-запроса.
// URL и метод берутся из самого запроса.
func RequestFromHTTP(r *http.Request) authz.Request {
	req := authz.Request{
		Bearer: BearerToken(r),
		Method: r.Method,
		URL:    "//" + r.Host + r.URL.RequestURI(),
	}
	if req.Bearer == "" {
		if user, pass, ok := r.BasicAuth(); ok {
			req.Basic = &identity.Credentials{Username: user, Password: pass, UseCache: true}
		}
	}
	return req
}

// RequestFromSubrequest строит запрос к Resolver для nginx auth_request:
// URL и метод проверяемого запроса берутся из X-Original-URI и X-Original-Method.
func RequestFromSubrequest(r *http.Request) authz.Request {
	req := RequestFromHTTP(r)
	if orig := r.Header.Get(HeaderOriginalURI); orig != "" {
		req.URL = "//" + r.Host + orig
		if m := r.Header.Get(HeaderOriginalMethod); m != "" {
			req.Method = m
		}
	}
	return req
}

// Middleware возвращает HTTP middleware. Неавторизованный запрос получает
// ответ со статусом и кодом из результата Resolver.
func (a *Auth) Middleware() func(http.Handler) http.Handler {
	return a.middleware(RequestFromHTTP)
}

// SubrequestMiddleware — middleware для endpoint nginx auth_request.
// Только здесь учитываются заголовки X-Original-*.
func (a *Auth) SubrequestMiddleware() func(http.Handler) http.Handler {
	return a.middleware(RequestFromSubrequest)
}

func (a *Auth) middleware(build func(*http.Request) authz.Request) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			res := a.resolver.Resolve(r.Context(), build(r))
			if !res.OK() {
				a.logger.Info("Запрос не авторизован",
					slog.String("path", r.URL.Path),
					slog.Int("status", res.Failure.Status),
					slog.String("code", res.Failure.Code),
					slog.String("remote_addr", r.RemoteAddr),
				)
				apierrors.WriteError(w, res.Failure.Status, res.Failure.Code, res.Failure.Message)
				return
			}

			ctx := context.WithValue(r.Context(), ContextKeyAuth, res)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// ResultFromContext извлекает результат авторизации из контекста запроса.
func ResultFromContext(ctx context.Context) (authz.Result, bool) {
	res, ok := ctx.Value(ContextKeyAuth).(authz.Result)
	return res, ok
}

// SubjectFromContext извлекает sub из контекста запроса.
// Возвращает пустую строку, если запрос не авторизован.
func SubjectFromContext(ctx context.Context) string {
	res, _ := ResultFromContext(ctx)
	return res.Subject()
}
