package identity

import (
	"crypto/rand"
	"crypto/rsa"
	"encoding/base64"
	"encoding/json"
	"log/slog"
	"math/big"
	"net/http"
	"net/http/httptest"
	"os"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/bigkaa/goartstore/media-gateway/internal/domain/model"
)

const (
	testRealm  = "media"
	testClient = "webfs"
	testSecret = "secret"
)

// testLogger возвращает логгер для тестов.
func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelError,
	}))
}

// generateTestKey генерирует RSA ключ для тестов.
func generateTestKey(t *testing.T) *rsa.PrivateKey {
	t.Helper()
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatalf("генерация RSA ключа: %v", err)
	}
	return key
}

// buildJWKSetJSON строит JWKS JSON из набора публичных ключей kid → key.
func buildJWKSetJSON(keys map[string]*rsa.PublicKey) []byte {
	list := make([]map[string]any, 0, len(keys))
	for kid, pub := range keys {
		list = append(list, map[string]any{
			"kty": "RSA",
			"kid": kid,
			"use": "sig",
			"alg": "RS256",
			"n":   base64.RawURLEncoding.EncodeToString(pub.N.Bytes()),
			"e":   base64.RawURLEncoding.EncodeToString(big.NewInt(int64(pub.E)).Bytes()),
		})
	}
	data, _ := json.Marshal(map[string]any{"keys": list})
	return data
}

// mockIdP — identity provider на httptest: certs и token endpoints со счётчиками.
type mockIdP struct {
	server *httptest.Server

	certsCalls atomic.Int32
	tokenCalls atomic.Int32

	mu           sync.Mutex
	jwks         []byte
	certsStatus  int
	tokenHandler http.HandlerFunc
}

func newMockIdP(t *testing.T) *mockIdP {
	t.Helper()
	m := &mockIdP{certsStatus: http.StatusOK}
	mux := http.NewServeMux()
	mux.HandleFunc("/realms/"+testRealm+"/protocol/openid-connect/certs", func(w http.ResponseWriter, r *http.Request) {
		m.certsCalls.Add(1)
		m.mu.Lock()
		status, body := m.certsStatus, m.jwks
		m.mu.Unlock()
		if status != http.StatusOK {
			w.WriteHeader(status)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write(body)
	})
	mux.HandleFunc("/realms/"+testRealm+"/protocol/openid-connect/token", func(w http.ResponseWriter, r *http.Request) {
		m.tokenCalls.Add(1)
		m.mu.Lock()
		h := m.tokenHandler
		m.mu.Unlock()
		if h == nil {
			w.WriteHeader(http.StatusNotImplemented)
			return
		}
		h(w, r)
	})
	m.server = httptest.NewServer(mux)
	t.Cleanup(m.server.Close)
	return m
}

func (m *mockIdP) setKeys(keys map[string]*rsa.PublicKey) {
	m.mu.Lock()
	m.jwks = buildJWKSetJSON(keys)
	m.mu.Unlock()
}

func (m *mockIdP) setCertsStatus(status int) {
	m.mu.Lock()
	m.certsStatus = status
	m.mu.Unlock()
}

func (m *mockIdP) setTokenHandler(h http.HandlerFunc) {
	m.mu.Lock()
	m.tokenHandler = h
	m.mu.Unlock()
}

func (m *mockIdP) issuer() string {
	return m.server.URL + "/realms/" + testRealm
}

// newTestVerifier создаёт KeySet и Verifier поверх mockIdP.
func (m *mockIdP) newTestVerifier() (*KeySet, *Verifier) {
	keys := NewKeySet(CertsURL(m.server.URL, testRealm), 4*time.Hour, m.server.Client(), testLogger())
	return keys, NewVerifier(keys, m.issuer(), testLogger())
}

// testClaims возвращает действительные claims для issuer.
func testClaims(issuer, sub string) model.IdentityClaims {
	now := time.Now()
	return model.IdentityClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    issuer,
			Subject:   sub,
			Audience:  jwt.ClaimStrings{DefaultAudience},
			ExpiresAt: jwt.NewNumericDate(now.Add(5 * time.Minute)),
			IssuedAt:  jwt.NewNumericDate(now),
		},
		PreferredUsername: sub,
	}
}

// signTestToken подписывает claims ключом key с указанным kid.
func signTestToken(t *testing.T, key *rsa.PrivateKey, kid string, claims model.IdentityClaims) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodRS256, claims)
	token.Header["kid"] = kid
	s, err := token.SignedString(key)
	if err != nil {
		t.Fatalf("подпись токена: %v", err)
	}
	return s
}

// mapFolders — FolderResolver на map.
type mapFolders map[string]model.Folder

func (m mapFolders) Folder(id string) (model.Folder, bool) {
	f, ok := m[id]
	return f, ok
}
