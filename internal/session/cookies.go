package session

import (
	"strings"

	"github.com/redthread-tools/redthread/internal/browser"
)

const cookieDomain = ".xiaohongshu.com"

// credentialCookies are the cookie names that carry login state. A session is
// only worth keeping when at least one of them is present.
var credentialCookies = []string{"web_session", "a1", "webId"}

// ParseCookieString converts a raw "name=value; name2=value2" header string,
// as pasted from browser devtools, into driver cookies scoped to the site.
func ParseCookieString(raw string) []browser.Cookie {
	var cookies []browser.Cookie
	for _, pair := range strings.Split(raw, ";") {
		pair = strings.TrimSpace(pair)
		if pair == "" {
			continue
		}
		name, value, found := strings.Cut(pair, "=")
		name = strings.TrimSpace(name)
		if !found || name == "" {
			continue
		}
		cookies = append(cookies, browser.Cookie{
			Name:   name,
			Value:  strings.TrimSpace(value),
			Domain: cookieDomain,
			Path:   "/",
		})
	}
	return cookies
}

// HasCredentials reports whether the cookie set contains at least one
// credential-bearing cookie with a non-empty value.
func HasCredentials(cookies []browser.Cookie) bool {
	for _, ck := range cookies {
		for _, name := range credentialCookies {
			if ck.Name == name && ck.Value != "" {
				return true
			}
		}
	}
	return false
}
