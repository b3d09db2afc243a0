package authsvc

import (
	"net/http"
	"strings"
	"time"
)

// CookieConfig controls the session cookie attributes.
type CookieConfig struct {
	// Name is the cookie name
	Name string `env:"NAME" default:"jobhunter_session"`
	// Secure restricts the cookie to HTTPS
	Secure bool `env:"SECURE" default:"false"`
	// SameSite is one of "lax", "strict" or "none"
	SameSite string `env:"SAME_SITE" default:"lax"`
	// Path scopes the cookie
	Path string `env:"PATH" default:"/"`
}

func (cfg CookieConfig) sameSite() http.SameSite {
	switch strings.ToLower(cfg.SameSite) {
	case "strict":
		return http.SameSiteStrictMode
	case "none":
		return http.SameSiteNoneMode
	default:
		return http.SameSiteLaxMode
	}
}

// SessionCookie builds the HttpOnly cookie carrying token until expires.
func (cfg CookieConfig) SessionCookie(token string, expires time.Time) *http.Cookie {
	//nolint:exhaustruct
	return &http.Cookie{
		Name:     cfg.Name,
		Value:    token,
		Path:     cfg.Path,
		Expires:  expires.UTC(),
		HttpOnly: true,
		Secure:   cfg.Secure,
		SameSite: cfg.sameSite(),
	}
}

// ExpiredCookie builds a cookie that makes the client drop the session cookie.
func (cfg CookieConfig) ExpiredCookie() *http.Cookie {
	//nolint:exhaustruct
	return &http.Cookie{
		Name:     cfg.Name,
		Value:    "",
		Path:     cfg.Path,
		Expires:  time.Unix(0, 0).UTC(),
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   cfg.Secure,
		SameSite: cfg.sameSite(),
	}
}
