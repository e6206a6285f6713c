// Package validation содержит проверки пользовательского ввода.
package validation

import "net/url"

// IsValidLink проверяет, что строка является абсолютной http(s)-ссылкой
// с непустым хостом. Заказы принимаются только на такие ссылки.
func IsValidLink(link string) bool {
	if link == "" {
		return false
	}

	u, err := url.Parse(link)
	if err != nil {
		return false
	}

	if u.Scheme != "http" && u.Scheme != "https" {
		return false
	}

	return u.Host != ""
}
