// verifier.go — Token Verifier: проверка RS256 access token по KeySet Cache.
package identity

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/bigkaa/goartstore/media-gateway/internal/domain/model"
)

// DefaultAudience — audience access token Keycloak.
const DefaultAudience = "account"

// Verifier проверяет подпись, issuer, audience и срок действия access token.
type Verifier struct {
	keys     *KeySet
	issuer   string
	audience string
	now      func() time.Time
	logger   *slog.Logger
}

// NewVerifier создаёт Token Verifier. issuer — {base}/realms/{realm}.
func NewVerifier(keys *KeySet, issuer string, logger *slog.Logger) *Verifier {
	return &Verifier{
		keys:     keys,
		issuer:   issuer,
		audience: DefaultAudience,
		now:      time.Now,
		logger:   logger.With(slog.String("component", "token_verifier")),
	}
}

// Verify возвращает true для действительного токена. false без ошибки —
// токен отклонён (подпись, kid, issuer, audience, срок). Ошибка — JWKS
// недоступен или не разбирается.
//
// При несовпадении подписи набор ключей сбрасывается и проверка повторяется
// ровно один раз. Неизвестный kid перезагрузку не вызывает.
func (v *Verifier) Verify(ctx context.Context, token string) (bool, error) {
	kid, err := tokenKeyID(token)
	if err != nil {
		v.logger.Debug("Заголовок токена отклонён", slog.String("error", err.Error()))
		tokenVerifyTotal.WithLabelValues("invalid").Inc()
		return false, nil
	}

	err = v.verifyWith(ctx, token, kid)
	if errors.Is(err, jwt.ErrTokenSignatureInvalid) {
		v.logger.Debug("Подпись не совпала, перезагрузка JWKS", slog.String("kid", kid))
		tokenVerifyRetryTotal.Inc()
		v.keys.Invalidate()
		err = v.verifyWith(ctx, token, kid)
	}

	switch {
	case err == nil:
		tokenVerifyTotal.WithLabelValues("valid").Inc()
		return true, nil
	case errors.Is(err, ErrTransport), errors.Is(err, ErrMalformedResponse):
		tokenVerifyTotal.WithLabelValues("error").Inc()
		return false, err
	default:
		v.logger.Debug("Токен отклонён",
			slog.String("kid", kid),
			slog.String("error", err.Error()),
		)
		tokenVerifyTotal.WithLabelValues("invalid").Inc()
		return false, nil
	}
}

// verifyWith проверяет токен ключом kid из текущего снимка.
func (v *Verifier) verifyWith(ctx context.Context, token, kid string) error {
	key, err := v.keys.Key(ctx, kid)
	if err != nil {
		return err
	}

	claims := &model.IdentityClaims{}
	_, err = jwt.ParseWithClaims(token, claims,
		func(*jwt.Token) (any, error) { return key, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodRS256.Alg()}),
		jwt.WithoutClaimsValidation(),
	)
	if err != nil {
		return err
	}

	// Срок действия проверяется по часам Verifier
	validator := jwt.NewValidator(
		jwt.WithIssuer(v.issuer),
		jwt.WithAudience(v.audience),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(v.now),
	)
	return validator.Validate(claims)
}

// tokenKeyID читает kid из заголовка без проверки подписи.
// Токены с алгоритмом, отличным от RS256, отклоняются до поиска ключа.
func tokenKeyID(token string) (string, error) {
	parsed, _, err := jwt.NewParser().ParseUnverified(token, &jwt.RegisteredClaims{})
	if err != nil {
		return "", err
	}
	if alg, _ := parsed.Header["alg"].(string); alg != jwt.SigningMethodRS256.Alg() {
		return "", fmt.Errorf("алгоритм %q не поддерживается", alg)
	}
	kid, _ := parsed.Header["kid"].(string)
	if kid == "" {
		return "", errors.New("в заголовке нет kid")
	}
	return kid, nil
}

// DecodeClaims декодирует payload токена без проверки подписи.
// Вызывается после Verify или для токена, только что выданного provider.
func DecodeClaims(token string) (*model.IdentityClaims, error) {
	claims := &model.IdentityClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return nil, fmt.Errorf("декодирование claims: %w", err)
	}
	return claims, nil
}
