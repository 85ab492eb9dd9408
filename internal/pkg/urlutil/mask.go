// Package urlutil предоставляет утилиты для безопасной работы с URL.
package urlutil

import (
	"net/url"
	"strings"
)

const masked = "***"

// MaskURL маскирует URL для безопасного логирования.
// Скрывает path и query, которые могут содержать токены или credentials.
// Пример: "https://api.telegram.org/bot123:ABC/sendMessage" → "https://api.telegram.org/***"
func MaskURL(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return "***invalid-url***"
	}
	return u.Scheme + "://" + u.Host + "/" + masked
}

// RedactQuery сохраняет scheme, host и path, но заменяет значения указанных
// query-параметров на "***". Имена сравниваются без учёта регистра.
// Пример: RedactQuery("https://api.aprs.fi/api/get?name=X&apikey=K", "apikey")
// → "https://api.aprs.fi/api/get?apikey=%2A%2A%2A&name=X"
func RedactQuery(rawURL string, keys ...string) string {
	u, err := url.Parse(rawURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return "***invalid-url***"
	}
	u.User = nil

	q := u.Query()
	for name := range q {
		for _, k := range keys {
			if strings.EqualFold(name, k) {
				q[name] = []string{masked}
			}
		}
	}
	u.RawQuery = q.Encode()
	return u.String()
}
