// sessions.go — кэши аутентифицированных сессий: по паре логин/пароль,
// по хэшу токена и по самому токену.
package identity

import (
	"crypto/sha256"
	"encoding/hex"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/bigkaa/goartstore/media-gateway/internal/domain/model"
)

// HashToken возвращает hex SHA-256 токена — ключ кэша и идентификатор сессии
// в подписанных URL.
func HashToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}

// SessionFolderID возвращает идентификатор папки, к которой привязана сессия:
// claim default_webdavfs или "default" для папки по умолчанию. Пустая строка —
// сессия без папки.
func SessionFolderID(s *model.AuthenticatedSession) string {
	if s == nil || s.Folder == nil {
		return ""
	}
	if s.Claims.DefaultResource != "" {
		return s.Claims.DefaultResource
	}
	return DefaultFolderID
}

// credentialsKey — ключ кэша пары логин/пароль. Пароль в открытом виде не хранится.
func credentialsKey(username, password string) string {
	return HashToken(username + ":" + password)
}

// Sessions — три LRU-кэша сессий с общим временем жизни записей.
// Запись не переживает срок действия своего access token.
type Sessions struct {
	byCredentials *expirable.LRU[string, *model.AuthenticatedSession]
	byTokenHash   *expirable.LRU[string, *model.AuthenticatedSession]
	byToken       *expirable.LRU[string, *model.AuthenticatedSession]
	now           func() time.Time
}

// NewSessions создаёт кэши размером size каждый с временем жизни ttl.
func NewSessions(size int, ttl time.Duration) *Sessions {
	return &Sessions{
		byCredentials: expirable.NewLRU[string, *model.AuthenticatedSession](size, nil, ttl),
		byTokenHash:   expirable.NewLRU[string, *model.AuthenticatedSession](size, nil, ttl),
		byToken:       expirable.NewLRU[string, *model.AuthenticatedSession](size, nil, ttl),
		now:           time.Now,
	}
}

// lookup возвращает сессию из кэша. Сессия с истёкшим токеном удаляется
// и считается промахом.
func (s *Sessions) lookup(cache *expirable.LRU[string, *model.AuthenticatedSession], name, key string) (*model.AuthenticatedSession, bool) {
	session, ok := cache.Get(key)
	if ok && !session.ExpiresAt.IsZero() && !s.now().Before(session.ExpiresAt) {
		cache.Remove(key)
		sessionCacheLookups.WithLabelValues(name, "expired").Inc()
		return nil, false
	}
	if ok {
		sessionCacheLookups.WithLabelValues(name, "hit").Inc()
	} else {
		sessionCacheLookups.WithLabelValues(name, "miss").Inc()
	}
	return session, ok
}

// ByCredentials ищет сессию по паре логин/пароль.
func (s *Sessions) ByCredentials(username, password string) (*model.AuthenticatedSession, bool) {
	return s.lookup(s.byCredentials, "credentials", credentialsKey(username, password))
}

// ByTokenHash ищет сессию по хэшу access token.
func (s *Sessions) ByTokenHash(hash string) (*model.AuthenticatedSession, bool) {
	return s.lookup(s.byTokenHash, "token_hash", hash)
}

// ByToken ищет сессию по access token.
func (s *Sessions) ByToken(token string) (*model.AuthenticatedSession, bool) {
	return s.lookup(s.byToken, "token", token)
}

// StoreCredentials кладёт сессию в кэш пары логин/пароль.
func (s *Sessions) StoreCredentials(username, password string, session *model.AuthenticatedSession) {
	s.byCredentials.Add(credentialsKey(username, password), session)
}

// StoreToken кладёт сессию в кэши по хэшу токена и по токену.
func (s *Sessions) StoreToken(session *model.AuthenticatedSession) {
	s.byTokenHash.Add(session.TokenHash, session)
	s.byToken.Add(session.Token, session)
}

// Len возвращает число записей в кэшах (credentials, token_hash, token).
func (s *Sessions) Len() (int, int, int) {
	return s.byCredentials.Len(), s.byTokenHash.Len(), s.byToken.Len()
}
