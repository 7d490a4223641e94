package handler

import (
	"net/http"
	"time"
)

const (
	stateCookieName = "__oauth2_state"
	nonceCookieName = "__oauth2_nonce"
)

// The two flow cookies only live for the browser round trip through the
// IDP. If the browser never returns they simply expire.

func setFlowCookies(w http.ResponseWriter, state, nonce string, ttl time.Duration) {
	setFlowCookie(w, stateCookieName, state, int(ttl.Seconds()))
	setFlowCookie(w, nonceCookieName, nonce, int(ttl.Seconds()))
}

func clearFlowCookies(w http.ResponseWriter) {
	setFlowCookie(w, stateCookieName, "", -1)
	setFlowCookie(w, nonceCookieName, "", -1)
}

func setFlowCookie(w http.ResponseWriter, name, value string, maxAge int) {
	http.SetCookie(w, &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     "/",
		HttpOnly: true,
		Secure:   true,
		SameSite: http.SameSiteLaxMode,
		MaxAge:   maxAge,
	})
}
