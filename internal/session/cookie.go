package session

import (
	"net/http"
	"time"
)

const (
	AccessCookieName  = "__access_token"
	RefreshCookieName = "__refresh_token"
)

// CookieOptions defines how session cookies are issued.
type CookieOptions struct {
	Path     string
	HttpOnly bool
	Secure   bool
	SameSite http.SameSite
	Domain   string
}

// normalize applies safe defaults without breaking callers
func (o CookieOptions) normalize() CookieOptions {
	if o.Path == "" {
		o.Path = "/"
	}
	if !o.HttpOnly {
		o.HttpOnly = true // secure default
	}
	return o
}

// SetAuthCookies issues both session cookies to the client. Their
// lifetimes follow the token expiries.
func SetAuthCookies(w http.ResponseWriter, pair *TokenPair, opts CookieOptions) {
	opts = opts.normalize()

	setCookie(w, AccessCookieName, pair.AccessToken, pair.AccessExpiresAt, opts)
	setCookie(w, RefreshCookieName, pair.RefreshToken, pair.RefreshExpiresAt, opts)
}

// ClearAuthCookies removes both session cookies from the client.
func ClearAuthCookies(w http.ResponseWriter, opts CookieOptions) {
	opts = opts.normalize()

	clearCookie(w, AccessCookieName, opts)
	clearCookie(w, RefreshCookieName, opts)
}

func setCookie(w http.ResponseWriter, name, value string, expiresAt time.Time, opts CookieOptions) {
	http.SetCookie(w, &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     opts.Path,
		Domain:   opts.Domain,
		Expires:  expiresAt,
		HttpOnly: opts.HttpOnly,
		Secure:   opts.Secure,
		SameSite: opts.SameSite,
	})
}

func clearCookie(w http.ResponseWriter, name string, opts CookieOptions) {
	http.SetCookie(w, &http.Cookie{
		Name:     name,
		Value:    "",
		Path:     opts.Path,
		Domain:   opts.Domain,
		MaxAge:   -1,
		HttpOnly: opts.HttpOnly,
		Secure:   opts.Secure,
		SameSite: opts.SameSite,
	})
}
