// keys.go — Signing-Key Manager: HMAC-ключи подписанных URL с ленивой ротацией.
// Ключи независимы от identity provider и живут только в памяти процесса.
package signing

import (
	"crypto/rand"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MinTTL — минимальное время жизни ключа и окна действия подписи.
const MinTTL = 60 * time.Second

// secretSize — размер секрета HMAC-SHA256 в байтах.
const secretSize = 32

var (
	// ErrKeyNotFound — key_id подписи неизвестен серверу.
	ErrKeyNotFound = errors.New("key not found")
	// ErrKeyExpired — ключ, которым подписан URL, истёк.
	ErrKeyExpired = errors.New("key is expired")
)

// Key — HMAC-ключ. После создания не изменяется.
type Key struct {
	ID     string
	Secret []byte
	Domain string
	// ExpiresAt — момент, после которого ключ не используется ни для подписи, ни для проверки
	ExpiresAt time.Time
	// SignatureTTL — окно действия подписи, выданной этим ключом
	SignatureTTL time.Duration
}

// Expired сообщает, истёк ли ключ к моменту now.
func (k *Key) Expired(now time.Time) bool {
	return now.After(k.ExpiresAt)
}

// Manager хранит текущий ключ и все выданные ранее ключи для проверки
// подписей, сделанных до ротации. Истёкшие ключи не удаляются.
type Manager struct {
	domain       string
	keyTTL       time.Duration
	signatureTTL time.Duration
	logger       *slog.Logger
	now          func() time.Time

	mu      sync.Mutex
	keys    map[string]*Key
	current *Key
}

// NewManager создаёт Signing-Key Manager. keyTTL и signatureTTL меньше
// MinTTL поднимаются до MinTTL.
func NewManager(domain string, keyTTL, signatureTTL time.Duration, logger *slog.Logger) *Manager {
	if keyTTL < MinTTL {
		keyTTL = MinTTL
	}
	if signatureTTL < MinTTL {
		signatureTTL = MinTTL
	}
	return &Manager{
		domain:       domain,
		keyTTL:       keyTTL,
		signatureTTL: signatureTTL,
		logger:       logger.With(slog.String("component", "signing_keys")),
		now:          time.Now,
		keys:         make(map[string]*Key),
	}
}

// Current возвращает активный ключ, создавая новый, если активного нет
// или он истёк.
func (m *Manager) Current() (*Key, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	if m.current != nil && !m.current.Expired(now) {
		return m.current, nil
	}

	secret := make([]byte, secretSize)
	if _, err := rand.Read(secret); err != nil {
		return nil, fmt.Errorf("генерация секрета: %w", err)
	}
	key := &Key{
		ID:           uuid.NewString(),
		Secret:       secret,
		Domain:       m.domain,
		ExpiresAt:    now.Add(m.keyTTL),
		SignatureTTL: m.signatureTTL,
	}
	m.keys[key.ID] = key
	m.current = key
	keyRotationsTotal.Inc()

	m.logger.Info("Создан ключ подписи URL",
		slog.String("key_id", key.ID),
		slog.Time("expires_at", key.ExpiresAt),
		slog.Int("keys", len(m.keys)),
	)
	return key, nil
}

// Lookup находит ключ по id. Истёкший ключ возвращается вместе с ErrKeyExpired.
func (m *Manager) Lookup(id string) (*Key, error) {
	m.mu.Lock()
	key, ok := m.keys[id]
	m.mu.Unlock()

	if !ok {
		return nil, ErrKeyNotFound
	}
	if key.Expired(m.now()) {
		return key, ErrKeyExpired
	}
	return key, nil
}

// Len возвращает число хранимых ключей, включая истёкшие.
func (m *Manager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.keys)
}

// SignURL подписывает запрос текущим ключом.
func (m *Manager) SignURL(req Request) (*Response, error) {
	key, err := m.Current()
	if err != nil {
		signTotal.WithLabelValues("sign", "error").Inc()
		return nil, err
	}
	resp, err := Sign(req, key, m.now())
	if err != nil {
		signTotal.WithLabelValues("sign", "error").Inc()
		return nil, err
	}
	signTotal.WithLabelValues("sign", "ok").Inc()
	return resp, nil
}

// VerifyURL проверяет подписанный URL ключом из его key_id.
func (m *Manager) VerifyURL(resp *Response) (*url.URL, error) {
	key, err := m.Lookup(resp.KeyID)
	if err != nil {
		signTotal.WithLabelValues("verify", "rejected").Inc()
		return nil, err
	}
	u, err := Verify(resp, key, m.now())
	if err != nil {
		signTotal.WithLabelValues("verify", "rejected").Inc()
		return nil, err
	}
	signTotal.WithLabelValues("verify", "ok").Inc()
	return u, nil
}
