// Пакет authz — Authorization Resolver: сводит bearer-токен, basic-пару
// и подписанный URL к единому результату авторизации.
package authz

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"

	apierrors "github.com/bigkaa/goartstore/media-gateway/internal/api/errors"
	"github.com/bigkaa/goartstore/media-gateway/internal/domain/model"
	"github.com/bigkaa/goartstore/media-gateway/internal/identity"
	"github.com/bigkaa/goartstore/media-gateway/internal/signing"
)

// Kind — вариант результата авторизации.
type Kind int

const (
	// KindNone — запрос не авторизован; причина в Result.Failure.
	KindNone Kind = iota
	// KindClaims — пользователь с проверенными claims.
	KindClaims
	// KindResource — доступ ограничен одной папкой (подписанный URL с fs_id).
	KindResource
)

func (k Kind) String() string {
	switch k {
	case KindClaims:
		return "claims"
	case KindResource:
		return "resource"
	default:
		return "none"
	}
}

// Failure — отказ авторизации с HTTP-статусом, кодом и сообщением.
type Failure struct {
	Status  int
	Code    string
	Message string
}

func (f *Failure) Error() string {
	return fmt.Sprintf("%d %s: %s", f.Status, f.Code, f.Message)
}

// Result — результат авторизации. Для KindClaims заполнены Claims и Session
// (если сессия известна), Folder — папка пользователя. Для KindResource —
// ResourceID и Folder этой папки.
type Result struct {
	Kind       Kind
	Claims     *model.IdentityClaims
	ResourceID string
	Session    *model.AuthenticatedSession
	Folder     *model.Folder
	Failure    *Failure
}

// OK сообщает об успешной авторизации.
func (r Result) OK() bool {
	return r.Kind != KindNone && r.Failure == nil
}

// Subject возвращает sub пользователя или пустую строку.
func (r Result) Subject() string {
	if r.Claims == nil {
		return ""
	}
	return r.Claims.Subject
}

// FolderName возвращает имя папки результата или пустую строку.
func (r Result) FolderName() string {
	if r.Folder == nil {
		return ""
	}
	return r.Folder.Name
}

func fail(status int, code, message string) Result {
	return Result{Kind: KindNone, Failure: &Failure{Status: status, Code: code, Message: message}}
}

// Request — описание входящего запроса.
type Request struct {
	Bearer string
	Basic  *identity.Credentials
	// URL — исходный URL запроса (с query) для режима подписанного URL
	URL    string
	Method string
}

// TokenVerifier проверяет подпись и claims access token.
type TokenVerifier interface {
	Verify(ctx context.Context, token string) (bool, error)
}

// CredentialExchanger обменивает логин и пароль на сессию.
type CredentialExchanger interface {
	Authenticate(ctx context.Context, creds identity.Credentials) (*model.AuthenticatedSession, error)
}

// URLVerifier проверяет подписанный URL.
type URLVerifier interface {
	VerifyURL(resp *signing.Response) (*url.URL, error)
}

// SessionLookup ищет кэшированные сессии.
type SessionLookup interface {
	ByTokenHash(hash string) (*model.AuthenticatedSession, bool)
	ByToken(token string) (*model.AuthenticatedSession, bool)
}

// Resolver — Authorization Resolver.
type Resolver struct {
	verifier  TokenVerifier
	exchanger CredentialExchanger
	urls      URLVerifier
	sessions  SessionLookup
	folders   identity.FolderResolver
	logger    *slog.Logger
}

// NewResolver создаёт Authorization Resolver.
func NewResolver(
	verifier TokenVerifier,
	exchanger CredentialExchanger,
	urls URLVerifier,
	sessions SessionLookup,
	folders identity.FolderResolver,
	logger *slog.Logger,
) *Resolver {
	return &Resolver{
		verifier:  verifier,
		exchanger: exchanger,
		urls:      urls,
		sessions:  sessions,
		folders:   folders,
		logger:    logger.With(slog.String("component", "authz")),
	}
}

// Resolve авторизует запрос. Порядок: bearer, basic, подписанный URL.
func (r *Resolver) Resolve(ctx context.Context, req Request) Result {
	var res Result
	var mode string
	switch {
	case req.Bearer != "":
		mode = "bearer"
		res = r.resolveBearer(ctx, req.Bearer)
	case req.Basic != nil:
		mode = "basic"
		res = r.resolveBasic(ctx, *req.Basic)
	case signing.IsSigned(req.URL):
		mode = "signed_url"
		res = r.resolveSignedURL(req.Method, req.URL)
	default:
		mode = "none"
		res = fail(http.StatusUnauthorized, apierrors.CodeNoCredentials, "no token")
	}

	if res.OK() {
		resolveTotal.WithLabelValues(mode, "ok").Inc()
	} else {
		resolveTotal.WithLabelValues(mode, "rejected").Inc()
		r.logger.Debug("Авторизация отклонена",
			slog.String("mode", mode),
			slog.Int("status", res.Failure.Status),
			slog.String("message", res.Failure.Message),
		)
	}
	return res
}

// resolveBearer проверяет bearer-токен. Попадание в кэш сессий не требует
// обращения к identity provider.
func (r *Resolver) resolveBearer(ctx context.Context, token string) Result {
	if s, ok := r.sessions.ByTokenHash(identity.HashToken(token)); ok {
		return fromSession(s)
	}
	if s, ok := r.sessions.ByToken(token); ok {
		return fromSession(s)
	}

	valid, err := r.verifier.Verify(ctx, token)
	if err != nil {
		r.logger.Warn("Ошибка проверки токена", slog.String("error", err.Error()))
		return fail(http.StatusInternalServerError, apierrors.CodeInternalError, "token verification failed")
	}
	if !valid {
		return fail(http.StatusUnauthorized, apierrors.CodeUnauthorized, "token inactive")
	}

	claims, err := identity.DecodeClaims(token)
	if err != nil {
		return fail(http.StatusInternalServerError, apierrors.CodeInternalError, "failed to decode claims")
	}
	folder, err := identity.ResolveFolder(r.folders, claims.DefaultResource, true)
	if err != nil {
		return fail(http.StatusInternalServerError, apierrors.CodeResourceNotFound, err.Error())
	}
	return Result{Kind: KindClaims, Claims: claims, Folder: folder}
}

// resolveBasic делегирует проверку пары логин/пароль Credential Exchanger.
func (r *Resolver) resolveBasic(ctx context.Context, creds identity.Credentials) Result {
	s, err := r.exchanger.Authenticate(ctx, creds)
	if err != nil {
		switch {
		case errors.Is(err, identity.ErrResourceNotFound):
			return fail(http.StatusInternalServerError, apierrors.CodeResourceNotFound, err.Error())
		case errors.Is(err, identity.ErrRejected):
			return fail(http.StatusUnauthorized, apierrors.CodeUnauthorized, "authentication failed: "+err.Error())
		default:
			return fail(http.StatusBadGateway, apierrors.CodeProviderError, err.Error())
		}
	}
	return fromSession(s)
}

// resolveSignedURL проверяет подписанный URL и находит исходную сессию по
// id из URL (хэш токена, для которого URL был выдан).
func (r *Resolver) resolveSignedURL(method, rawURL string) Result {
	resp, err := signing.ParseSignedURL(method, rawURL)
	if err != nil {
		return fail(http.StatusUnauthorized, apierrors.CodeInvalidSignature, err.Error())
	}
	if _, err := r.urls.VerifyURL(resp); err != nil {
		return fail(http.StatusUnauthorized, signatureCode(err), err.Error())
	}

	s, ok := r.sessions.ByTokenHash(resp.ID)
	if !ok {
		return fail(http.StatusInternalServerError, apierrors.CodeInternalError, "token verification failed")
	}
	if resp.FSID == "" {
		return fromSession(s)
	}

	// fs_id ограничивает доступ папкой, к которой привязана сама сессия
	if resp.FSID != identity.SessionFolderID(s) {
		return fail(http.StatusForbidden, apierrors.CodeForbidden, "resource not permitted")
	}
	return Result{
		Kind:       KindResource,
		ResourceID: resp.FSID,
		Claims:     &s.Claims,
		Session:    s,
		Folder:     s.Folder,
	}
}

func fromSession(s *model.AuthenticatedSession) Result {
	return Result{Kind: KindClaims, Claims: &s.Claims, Session: s, Folder: s.Folder}
}

// signatureCode сопоставляет ошибку проверки подписи с машиночитаемым кодом.
func signatureCode(err error) string {
	switch {
	case errors.Is(err, signing.ErrKeyNotFound):
		return apierrors.CodeKeyNotFound
	case errors.Is(err, signing.ErrKeyExpired):
		return apierrors.CodeKeyExpired
	case errors.Is(err, signing.ErrURLExpired):
		return apierrors.CodeURLExpired
	default:
		return apierrors.CodeInvalidSignature
	}
}
