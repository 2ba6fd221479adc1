// url.go — подпись и проверка URL.
//
// Каноническая строка: METHOD + PATH + '?' + отсортированные пары k=v всех
// параметров запроса, кроме signature. Подпись — base64(HMAC-SHA256).
package signing

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Параметры подписанного URL.
const (
	ParamID        = "id"
	ParamFSID      = "fs_id"
	ParamKeyID     = "key_id"
	ParamExpires   = "expires"
	ParamSignature = "signature"
)

var (
	ErrMissingSignature = errors.New("missing signature")
	ErrInvalidSignature = errors.New("invalid signature")
	ErrURLExpired       = errors.New("URL expired")
	ErrMalformedURL     = errors.New("malformed URL")
)

// Request — запрос на подпись URL.
type Request struct {
	// ID — идентификатор запроса; пустой заменяется случайным
	ID     string `json:"id"`
	URL    string `json:"url"`
	FSID   string `json:"fs_id"`
	Method string `json:"method"`
}

// Response — подписанный URL и его параметры.
type Response struct {
	ID        string    `json:"id"`
	URL       string    `json:"url"`
	FSID      string    `json:"fs_id"`
	Method    string    `json:"method"`
	KeyID     string    `json:"key_id"`
	Signature string    `json:"signature"`
	ExpiresAt time.Time `json:"expires_at"`
}

// IsSigned сообщает, несёт ли URL параметры подписи key_id и signature.
func IsSigned(rawURL string) bool {
	u, err := url.Parse(rawURL)
	if err != nil {
		return false
	}
	q := u.Query()
	return q.Has(ParamKeyID) && q.Has(ParamSignature)
}

// CleanURL убирает завершающий '/' и добавляет схему, если её нет:
// http для localhost, иначе https.
func CleanURL(raw string) string {
	raw = strings.TrimSuffix(raw, "/")
	if strings.HasPrefix(raw, "http") {
		return raw
	}
	scheme := "https"
	if strings.HasPrefix(raw, "localhost") {
		scheme = "http"
	}
	if strings.HasPrefix(raw, "//") {
		return scheme + ":" + raw
	}
	return scheme + "://" + raw
}

// Sign подписывает запрос ключом key. Срок действия подписи —
// now + key.SignatureTTL.
func Sign(req Request, key *Key, now time.Time) (*Response, error) {
	if req.ID == "" {
		req.ID = uuid.NewString()
	}
	if req.Method == "" {
		req.Method = http.MethodGet
	}
	method := strings.ToUpper(req.Method)

	u, err := url.Parse(CleanURL(req.URL))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedURL, err)
	}

	expires := now.Add(key.SignatureTTL).Unix()
	q := u.Query()
	q.Del(ParamSignature)
	q.Set(ParamExpires, strconv.FormatInt(expires, 10))
	q.Set(ParamID, req.ID)
	q.Set(ParamKeyID, key.ID)
	if req.FSID != "" {
		q.Set(ParamFSID, req.FSID)
	}
	u.RawQuery = q.Encode()

	signature := base64.StdEncoding.EncodeToString(computeMAC(key.Secret, canonicalString(method, u)))
	u.RawQuery += "&" + ParamSignature + "=" + url.QueryEscape(signature)

	return &Response{
		ID:        req.ID,
		URL:       u.String(),
		FSID:      req.FSID,
		Method:    method,
		KeyID:     key.ID,
		Signature: signature,
		ExpiresAt: time.Unix(expires, 0).UTC(),
	}, nil
}

// ParseSignedURL извлекает параметры подписи из URL входящего запроса.
func ParseSignedURL(method, raw string) (*Response, error) {
	u, err := url.Parse(CleanURL(raw))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedURL, err)
	}
	q, err := url.ParseQuery(u.RawQuery)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedURL, err)
	}

	resp := &Response{
		ID:        q.Get(ParamID),
		URL:       u.String(),
		FSID:      q.Get(ParamFSID),
		Method:    method,
		KeyID:     q.Get(ParamKeyID),
		Signature: q.Get(ParamSignature),
	}
	if v := q.Get(ParamExpires); v != "" {
		exp, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("%w: expires=%q", ErrMalformedURL, v)
		}
		resp.ExpiresAt = time.Unix(exp, 0).UTC()
	}
	return resp, nil
}

// Verify проверяет подпись resp ключом key. Срок действия и подпись
// проверяются независимо; оба должны пройти.
func Verify(resp *Response, key *Key, now time.Time) (*url.URL, error) {
	u, err := url.Parse(CleanURL(resp.URL))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedURL, err)
	}
	q, err := url.ParseQuery(u.RawQuery)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedURL, err)
	}

	signature := resp.Signature
	if v := q.Get(ParamSignature); v != "" {
		signature = v
	}
	if signature == "" {
		return nil, ErrMissingSignature
	}
	provided, err := base64.StdEncoding.DecodeString(signature)
	if err != nil {
		return nil, ErrInvalidSignature
	}

	expires := resp.ExpiresAt
	if v := q.Get(ParamExpires); v != "" {
		exp, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("%w: expires=%q", ErrMalformedURL, v)
		}
		expires = time.Unix(exp, 0)
	}
	if !expires.IsZero() && now.After(expires) {
		return nil, ErrURLExpired
	}

	method := strings.ToUpper(resp.Method)
	if method == "" {
		method = http.MethodGet
	}
	expected := computeMAC(key.Secret, canonicalString(method, u))
	if !hmac.Equal(provided, expected) {
		return nil, ErrInvalidSignature
	}
	return u, nil
}

// canonicalString строит строку для подписи. Пары сортируются по ключу,
// значения одного ключа — в порядке появления.
func canonicalString(method string, u *url.URL) string {
	q, _ := url.ParseQuery(u.RawQuery)
	keys := make([]string, 0, len(q))
	for k := range q {
		if k != ParamSignature {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		for _, v := range q[k] {
			parts = append(parts, k+"="+v)
		}
	}

	var b strings.Builder
	b.WriteString(method)
	b.WriteString(u.Path)
	if len(parts) > 0 {
		b.WriteByte('?')
		b.WriteString(strings.Join(parts, "&"))
	}
	return b.String()
}

func computeMAC(secret []byte, s string) []byte {
	mac := hmac.New(sha256.New, secret)
	mac.Write([]byte(s))
	return mac.Sum(nil)
}
