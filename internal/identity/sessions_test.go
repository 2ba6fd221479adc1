package identity

import (
	"testing"
	"time"

	"github.com/bigkaa/goartstore/media-gateway/internal/domain/model"
)

// TestSessions_TokenExpiry проверяет, что запись кэша не переживает срок токена,
// даже если TTL кэша ещё не истёк.
func TestSessions_TokenExpiry(t *testing.T) {
	now := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
	sessions := NewSessions(10, time.Hour)
	sessions.now = func() time.Time { return now }

	session := &model.AuthenticatedSession{
		Token:     "token-1",
		TokenHash: HashToken("token-1"),
		ExpiresAt: now.Add(time.Minute),
	}
	sessions.StoreToken(session)
	sessions.StoreCredentials("alice", "pw", session)

	if _, ok := sessions.ByTokenHash(session.TokenHash); !ok {
		t.Fatal("сессия должна находиться до истечения токена")
	}

	now = now.Add(2 * time.Minute)
	if _, ok := sessions.ByTokenHash(session.TokenHash); ok {
		t.Error("сессия с истёкшим токеном не должна находиться по хэшу")
	}
	if _, ok := sessions.ByToken("token-1"); ok {
		t.Error("сессия с истёкшим токеном не должна находиться по токену")
	}
	if _, ok := sessions.ByCredentials("alice", "pw"); ok {
		t.Error("сессия с истёкшим токеном не должна находиться по паре логин/пароль")
	}
	if _, hash, tok := sessions.Len(); hash != 0 || tok != 0 {
		t.Errorf("истёкшие записи должны удаляться: token_hash=%d token=%d", hash, tok)
	}
}

// TestSessions_NoExpiry проверяет, что сессия без срока живёт по TTL кэша.
func TestSessions_NoExpiry(t *testing.T) {
	sessions := NewSessions(10, time.Hour)
	session := &model.AuthenticatedSession{Token: "token-2", TokenHash: HashToken("token-2")}
	sessions.StoreToken(session)

	got, ok := sessions.ByToken("token-2")
	if !ok || got != session {
		t.Error("сессия без срока должна находиться в кэше")
	}
}
