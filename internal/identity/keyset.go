// keyset.go — KeySet Cache: набор публичных ключей identity provider (JWKS)
// с временем жизни и немедленной инвалидацией.
package identity

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/MicahParks/jwkset"
	"github.com/MicahParks/keyfunc/v3"
	"golang.org/x/sync/singleflight"
)

// maxJWKSBody — ограничение размера ответа certs endpoint.
const maxJWKSBody = 1 << 20

// defaultFetchTimeout — предел одной загрузки JWKS. Загрузка общая для всех
// ожидающих и не зависит от отмены контекста отдельного вызова.
const defaultFetchTimeout = 10 * time.Second

// keySnapshot — неизменяемый снимок набора ключей. Заменяется целиком.
type keySnapshot struct {
	kf        keyfunc.Keyfunc
	fetchedAt time.Time
}

// KeySet кэширует JWKS identity provider. Снимок действителен ttl с момента
// загрузки; Invalidate сбрасывает его немедленно. Параллельные загрузки
// схлопываются в одну.
type KeySet struct {
	certsURL string
	ttl      time.Duration
	client   *http.Client
	logger   *slog.Logger
	now      func() time.Time
	// fetchTimeout — предел одной загрузки JWKS
	fetchTimeout time.Duration

	mu   sync.RWMutex
	snap *keySnapshot

	group singleflight.Group
}

// CertsURL возвращает адрес JWKS Keycloak: {base}/realms/{realm}/protocol/openid-connect/certs.
func CertsURL(baseURL, realm string) string {
	return baseURL + "/realms/" + realm + "/protocol/openid-connect/certs"
}

// NewKeySet создаёт KeySet Cache. Первая загрузка выполняется при первом обращении.
func NewKeySet(certsURL string, ttl time.Duration, client *http.Client, logger *slog.Logger) *KeySet {
	return &KeySet{
		certsURL: certsURL,
		ttl:      ttl,
		client:   client,
		logger:   logger.With(slog.String("component", "keyset")),
		now:      time.Now,

		fetchTimeout: defaultFetchTimeout,
	}
}

// Keyfunc возвращает актуальный снимок ключей, загружая его при отсутствии
// или устаревании.
func (k *KeySet) Keyfunc(ctx context.Context) (keyfunc.Keyfunc, error) {
	k.mu.RLock()
	snap := k.snap
	k.mu.RUnlock()

	if snap != nil && k.now().Sub(snap.fetchedAt) < k.ttl {
		return snap.kf, nil
	}

	ch := k.group.DoChan("certs", func() (any, error) {
		// Другой вызов мог уже обновить снимок
		k.mu.RLock()
		cur := k.snap
		k.mu.RUnlock()
		if cur != nil && k.now().Sub(cur.fetchedAt) < k.ttl {
			return cur, nil
		}

		fetchCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), k.fetchTimeout)
		defer cancel()

		fresh, err := k.fetch(fetchCtx)
		if err != nil {
			keySetFetchTotal.WithLabelValues("error").Inc()
			return nil, err
		}
		keySetFetchTotal.WithLabelValues("ok").Inc()

		k.mu.Lock()
		k.snap = fresh
		k.mu.Unlock()
		return fresh, nil
	})

	select {
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(*keySnapshot).kf, nil
	case <-ctx.Done():
		return nil, fmt.Errorf("%w: ожидание JWKS: %v", ErrTransport, ctx.Err())
	}
}

// Key возвращает публичный ключ по kid. Отсутствующий kid — ErrUnknownKey,
// перезагрузка набора при этом не выполняется.
func (k *KeySet) Key(ctx context.Context, kid string) (any, error) {
	kf, err := k.Keyfunc(ctx)
	if err != nil {
		return nil, err
	}
	jwk, err := kf.Storage().KeyRead(ctx, kid)
	if err != nil {
		if errors.Is(err, jwkset.ErrKeyNotFound) {
			return nil, fmt.Errorf("%w: kid %q", ErrUnknownKey, kid)
		}
		return nil, fmt.Errorf("чтение ключа %q: %w", kid, err)
	}
	return jwk.Key(), nil
}

// Invalidate сбрасывает снимок; следующее обращение загрузит JWKS заново.
func (k *KeySet) Invalidate() {
	k.mu.Lock()
	k.snap = nil
	k.mu.Unlock()
	k.logger.Debug("Набор ключей сброшен")
}

// fetch загружает JWKS и строит из него keyfunc.
func (k *KeySet) fetch(ctx context.Context) (*keySnapshot, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, k.certsURL, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: создание запроса JWKS: %v", ErrTransport, err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := k.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: запрос JWKS: %v", ErrTransport, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: JWKS endpoint вернул статус %d", ErrTransport, resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxJWKSBody))
	if err != nil {
		return nil, fmt.Errorf("%w: чтение JWKS: %v", ErrTransport, err)
	}

	kf, err := keyfunc.NewJWKSetJSON(body)
	if err != nil {
		return nil, fmt.Errorf("%w: разбор JWKS: %v", ErrMalformedResponse, err)
	}

	k.logger.Info("Набор ключей загружен", slog.String("url", k.certsURL))
	return &keySnapshot{kf: kf, fetchedAt: k.now()}, nil
}
