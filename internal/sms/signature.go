// Package sms разбирает входящие SMS команды: проверка подписи Twilio и
// разбор текста в типизированную команду.
package sms

import (
	"crypto/hmac"
	"crypto/sha1" //nolint:gosec // алгоритм подписи задан Twilio
	"encoding/base64"
	"net/url"
	"sort"
	"strings"
)

// SignatureHeader - заголовок с подписью Twilio.
const SignatureHeader = "X-Twilio-Signature"

// httpsPort - порт, который Twilio то добавляет в URL, то нет.
const httpsPort = "443"

// ValidateSignature проверяет подпись входящего webhook Twilio.
//
// Каноническая строка: baseURL, затем для каждого имени параметра в
// лексикографическом порядке имя и значение без разделителей. Для
// повторяющихся параметров берётся последнее значение. Подпись -
// base64(HMAC-SHA1(authToken, строка)). Если сравнение не прошло, проверка
// повторяется один раз с URL, где порт :443 добавлен (или убран, если уже был).
//
// Никогда не паникует: любые некорректные входные данные дают false.
func ValidateSignature(signature, baseURL string, params url.Values, authToken string) bool {
	if signature == "" || authToken == "" || baseURL == "" {
		return false
	}
	expected, err := base64.StdEncoding.DecodeString(strings.TrimSpace(signature))
	if err != nil {
		return false
	}

	if hmac.Equal(expected, computeSignature(baseURL, params, authToken)) {
		return true
	}

	alt, ok := togglePort(baseURL)
	if !ok {
		return false
	}
	return hmac.Equal(expected, computeSignature(alt, params, authToken))
}

// ComputeSignature возвращает подпись в том виде, в каком её передаёт Twilio.
// Используется клиентами и тестами для подписи запросов.
func ComputeSignature(baseURL string, params url.Values, authToken string) string {
	return base64.StdEncoding.EncodeToString(computeSignature(baseURL, params, authToken))
}

func computeSignature(baseURL string, params url.Values, authToken string) []byte {
	mac := hmac.New(sha1.New, []byte(authToken))
	mac.Write([]byte(canonicalString(baseURL, params)))
	return mac.Sum(nil)
}

// canonicalString собирает строку для подписи.
func canonicalString(baseURL string, params url.Values) string {
	names := make([]string, 0, len(params))
	for name := range params {
		names = append(names, name)
	}
	sort.Strings(names)

	var sb strings.Builder
	sb.WriteString(baseURL)
	for _, name := range names {
		values := params[name]
		sb.WriteString(name)
		if len(values) > 0 {
			sb.WriteString(values[len(values)-1])
		}
	}
	return sb.String()
}

// togglePort добавляет :443 сразу после хоста или убирает его, если он уже есть.
// Остальная часть URL (путь, query) сохраняется байт в байт.
func togglePort(rawURL string) (string, bool) {
	u, err := url.Parse(rawURL)
	if err != nil || u.Host == "" {
		return "", false
	}
	start := strings.Index(rawURL, "://")
	if start < 0 {
		return "", false
	}
	start += len("://")
	end := len(rawURL)
	if i := strings.IndexAny(rawURL[start:], "/?#"); i >= 0 {
		end = start + i
	}

	suffix := ":" + httpsPort
	if strings.HasSuffix(rawURL[start:end], suffix) {
		return rawURL[:end-len(suffix)] + rawURL[end:], true
	}
	if u.Port() != "" {
		return "", false
	}
	return rawURL[:end] + suffix + rawURL[end:], true
}
