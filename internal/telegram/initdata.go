// Package telegram проверяет подписанные данные запуска Telegram Mini App (init data).
package telegram

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"
)

const (
	hashKey       = "hash"
	webAppDataKey = "WebAppData"
)

var (
	ErrMalformed        = errors.New("telegram: некорректный формат init data")
	ErrMissingHash      = errors.New("telegram: отсутствует подпись hash")
	ErrInvalidSignature = errors.New("telegram: подпись не совпадает")
	ErrEmptyBotToken    = errors.New("telegram: не задан токен бота")
	ErrExpired          = errors.New("telegram: данные авторизации устарели")
)

// User - профиль пользователя из поля user.
type User struct {
	ID           int64  `json:"id"`
	FirstName    string `json:"first_name"`
	LastName     string `json:"last_name,omitempty"`
	Username     string `json:"username,omitempty"`
	LanguageCode string `json:"language_code,omitempty"`
	PhotoURL     string `json:"photo_url,omitempty"`
	IsPremium    bool   `json:"is_premium,omitempty"`
}

// DisplayName выбирает имя для отображения: username, затем имя и фамилия, затем user_<id>.
func (u User) DisplayName() string {
	if name := strings.TrimSpace(u.Username); name != "" {
		return name
	}
	if name := strings.TrimSpace(u.FirstName + " " + u.LastName); name != "" {
		return name
	}
	return "user_" + strconv.FormatInt(u.ID, 10)
}

// InitData - проверенные данные запуска.
type InitData struct {
	QueryID  string
	User     User
	AuthDate time.Time
	Hash     string
}

// Expired сообщает, что auth_date старше maxAge. maxAge <= 0 отключает проверку.
func (d *InitData) Expired(now time.Time, maxAge time.Duration) bool {
	if maxAge <= 0 {
		return false
	}
	return now.Sub(d.AuthDate) > maxAge
}

// Verify проверяет подпись init data токеном бота и разбирает профиль пользователя.
// Подпись проверяется до разбора полей, поэтому неподписанные данные никогда не разбираются.
func Verify(raw, botToken string) (*InitData, error) {
	if botToken == "" {
		return nil, ErrEmptyBotToken
	}

	fields, err := parseFields(raw)
	if err != nil {
		return nil, err
	}

	provided, ok := fields[hashKey]
	if !ok {
		return nil, ErrMissingHash
	}
	delete(fields, hashKey)

	expected := Sign(botToken, fields)
	if !hmac.Equal([]byte(expected), []byte(provided)) {
		return nil, ErrInvalidSignature
	}

	data, err := decode(fields)
	if err != nil {
		return nil, err
	}
	data.Hash = provided
	return data, nil
}

// Valid возвращает true только при точном совпадении HMAC подписи.
func Valid(raw, botToken string) bool {
	_, err := Verify(raw, botToken)
	return err == nil
}

// Sign считает hex(HMAC-SHA256(HMAC-SHA256("WebAppData", botToken), checkString))
// по уже декодированным полям. Поле hash в подпись не входит.
func Sign(botToken string, fields map[string]string) string {
	secret := hmac.New(sha256.New, []byte(webAppDataKey))
	secret.Write([]byte(botToken))

	mac := hmac.New(sha256.New, secret.Sum(nil))
	mac.Write([]byte(CheckString(fields)))
	return hex.EncodeToString(mac.Sum(nil))
}

// CheckString собирает строку проверки: пары key=value, отсортированные по ключу, через \n.
func CheckString(fields map[string]string) string {
	keys := make([]string, 0, len(fields))
	for k := range fields {
		if k == hashKey {
			continue
		}
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	for i, k := range keys {
		if i > 0 {
			b.WriteByte('\n')
		}
		b.WriteString(k)
		b.WriteByte('=')
		b.WriteString(fields[k])
	}
	return b.String()
}

// Encode собирает подписанную строку init data из полей, как это делает клиент Telegram.
func Encode(botToken string, fields map[string]string) string {
	keys := make([]string, 0, len(fields))
	for k := range fields {
		if k != hashKey {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys)+1)
	for _, k := range keys {
		parts = append(parts, url.QueryEscape(k)+"="+url.QueryEscape(fields[k]))
	}
	parts = append(parts, hashKey+"="+Sign(botToken, fields))
	return strings.Join(parts, "&")
}

// parseFields делит строку по & и первому =, каждое значение декодируется ровно один раз.
func parseFields(raw string) (map[string]string, error) {
	fields := make(map[string]string)
	if raw == "" {
		return fields, nil
	}

	for _, pair := range strings.Split(raw, "&") {
		rawKey, rawValue, found := strings.Cut(pair, "=")
		if !found || rawKey == "" {
			return nil, fmt.Errorf("%w: пара %q без ключа или значения", ErrMalformed, pair)
		}

		key, err := url.QueryUnescape(rawKey)
		if err != nil {
			return nil, fmt.Errorf("%w: ключ %q: %v", ErrMalformed, rawKey, err)
		}
		value, err := url.QueryUnescape(rawValue)
		if err != nil {
			return nil, fmt.Errorf("%w: значение %q: %v", ErrMalformed, key, err)
		}

		if _, dup := fields[key]; dup {
			return nil, fmt.Errorf("%w: повторяющийся ключ %q", ErrMalformed, key)
		}
		fields[key] = value
	}

	return fields, nil
}

func decode(fields map[string]string) (*InitData, error) {
	rawUser, ok := fields["user"]
	if !ok {
		return nil, fmt.Errorf("%w: нет поля user", ErrMalformed)
	}

	var user User
	if err := json.Unmarshal([]byte(rawUser), &user); err != nil {
		return nil, fmt.Errorf("%w: поле user: %v", ErrMalformed, err)
	}
	if user.ID <= 0 {
		return nil, fmt.Errorf("%w: некорректный id пользователя", ErrMalformed)
	}

	authDate, err := strconv.ParseInt(fields["auth_date"], 10, 64)
	if err != nil || authDate <= 0 {
		return nil, fmt.Errorf("%w: некорректный auth_date", ErrMalformed)
	}

	return &InitData{
		QueryID:  fields["query_id"],
		User:     user,
		AuthDate: time.Unix(authDate, 0),
	}, nil
}
