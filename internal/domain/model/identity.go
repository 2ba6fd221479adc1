// identity.go — модели идентичности: claims токена, аутентифицированная сессия,
// папка (ресурс), к которой привязан пользователь.
package model

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// IdentityClaims — декодированный payload access token identity provider.
// Неизменяем после декодирования.
type IdentityClaims struct {
	jwt.RegisteredClaims

	// DefaultResource — идентификатор папки по умолчанию (claim default_webdavfs)
	DefaultResource string `json:"default_webdavfs,omitempty"`
	// PreferredUsername — логин пользователя
	PreferredUsername string `json:"preferred_username,omitempty"`
	Email             string `json:"email,omitempty"`
	Name              string `json:"name,omitempty"`
	// AuthorizedParty — client_id, получивший токен (azp)
	AuthorizedParty string   `json:"azp,omitempty"`
	SessionState    string   `json:"session_state,omitempty"`
	Scope           string   `json:"scope,omitempty"`
	Groups          []string `json:"groups,omitempty"`
	Roles           []string `json:"roles,omitempty"`
}

// ExpiresUnix возвращает exp в секундах epoch (0, если claim отсутствует).
func (c *IdentityClaims) ExpiresUnix() int64 {
	if c.ExpiresAt == nil {
		return 0
	}
	return c.ExpiresAt.Unix()
}

// Folder — разделяемая папка, доступная пользователю.
// Задаётся в секции folders файла каналов.
type Folder struct {
	Name         string `json:"name" yaml:"name"`
	BaseFilePath string `json:"base_file_path" yaml:"base_file_path"`
}

// AuthenticatedSession — результат успешного обмена учётных данных.
// Кэшируется по паре логин/пароль, по хэшу токена и по самому токену.
type AuthenticatedSession struct {
	Token            string         `json:"jwt_token"`
	RefreshToken     string         `json:"refresh_token,omitempty"`
	TokenHash        string         `json:"token_hash"`
	ExpiresAt        time.Time      `json:"expires_at"`
	RefreshExpiresAt time.Time      `json:"refresh_expires_at"`
	Claims           IdentityClaims `json:"claims"`
	Folder           *Folder        `json:"folder,omitempty"`
}

// FolderName возвращает имя привязанной папки или пустую строку.
func (s *AuthenticatedSession) FolderName() string {
	if s == nil || s.Folder == nil {
		return ""
	}
	return s.Folder.Name
}
