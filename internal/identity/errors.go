// Пакет identity — проверка учётных данных через внешний identity provider
// (Keycloak): кэш набора ключей, проверка JWT, обмен логина/пароля и refresh token
// на access token, кэши сессий.
package identity

import (
	"errors"
	"fmt"
)

// Классы ошибок identity provider. Проверяются через errors.Is.
var (
	// ErrTransport — provider недоступен или вернул 5xx; вызывающий может повторить.
	ErrTransport = errors.New("identity provider недоступен")
	// ErrRejected — provider отклонил учётные данные (401).
	ErrRejected = errors.New("учётные данные отклонены")
	// ErrMalformedResponse — ответ provider не удалось разобрать (500).
	ErrMalformedResponse = errors.New("некорректный ответ identity provider")
	// ErrResourceNotFound — claim default_webdavfs ссылается на неизвестную папку.
	ErrResourceNotFound = errors.New("папка не найдена")
	// ErrUnknownKey — kid токена отсутствует в наборе ключей.
	ErrUnknownKey = errors.New("ключ подписи не найден")
)

// ProviderError — отказ identity provider с разобранным телом ответа.
type ProviderError struct {
	Status      int
	Code        string
	Description string
	Body        string
}

// Error возвращает error_description, а если его нет — тело ответа.
func (e *ProviderError) Error() string {
	if e.Description != "" {
		return e.Description
	}
	if e.Body != "" {
		return e.Body
	}
	return fmt.Sprintf("identity provider вернул статус %d", e.Status)
}

// Unwrap относит отказ к ErrRejected (4xx) или ErrTransport (5xx).
func (e *ProviderError) Unwrap() error {
	if e.Status >= 500 {
		return ErrTransport
	}
	return ErrRejected
}
