package session

import (
	"net/http"
	"time"
)

// Cookie names used on the wire.
const (
	AccessCookie  = "accessToken"
	RefreshCookie = "refreshToken"
)

// CookieConfig is the single attribute set used to write and clear both session
// cookies.
type CookieConfig struct {
	Path     string
	Domain   string
	Secure   bool
	HTTPOnly bool
	SameSite http.SameSite
	// MaxAge bounds the cookie lifetime. Zero writes a browser-session cookie.
	MaxAge time.Duration
}

// DefaultCookieConfig returns HttpOnly, Secure, SameSite=None cookies scoped to
// "/", so a frontend on another site can send them with credentialed requests.
func DefaultCookieConfig() CookieConfig {
	return CookieConfig{
		Path:     "/",
		Secure:   true,
		HTTPOnly: true,
		SameSite: http.SameSiteNoneMode,
	}
}

// Cookies writes session pairs to responses.
type Cookies struct {
	config CookieConfig
}

// NewCookies returns a cookie writer. An empty Path defaults to "/".
func NewCookies(cfg CookieConfig) Cookies {
	if cfg.Path == "" {
		cfg.Path = "/"
	}
	return Cookies{config: cfg}
}

// Config returns the attributes in use.
func (c Cookies) Config() CookieConfig {
	return c.config
}

// Write sets both cookies. Empty tokens are skipped.
func (c Cookies) Write(w http.ResponseWriter, p Pair) {
	if p.RefreshToken != "" {
		http.SetCookie(w, c.cookie(RefreshCookie, p.RefreshToken, false))
	}
	if p.AccessToken != "" {
		http.SetCookie(w, c.cookie(AccessCookie, p.AccessToken, false))
	}
}

// Clear expires both cookies using the same attributes as Write.
func (c Cookies) Clear(w http.ResponseWriter) {
	http.SetCookie(w, c.cookie(RefreshCookie, "", true))
	http.SetCookie(w, c.cookie(AccessCookie, "", true))
}

func (c Cookies) cookie(name, value string, clear bool) *http.Cookie {
	ck := &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     c.config.Path,
		Domain:   c.config.Domain,
		Secure:   c.config.Secure,
		HttpOnly: c.config.HTTPOnly,
		SameSite: c.config.SameSite,
	}
	switch {
	case clear:
		ck.MaxAge = -1
		ck.Expires = time.Unix(0, 0)
	case c.config.MaxAge > 0:
		ck.MaxAge = int(c.config.MaxAge / time.Second)
	}
	return ck
}
