package api

import (
	"net/http"
	"time"
)

// refreshCookieName is the cookie carrying the refresh token between the
// browser and the refresh endpoint.
const refreshCookieName = "refresh_token"

// CookiePolicy captures the security attributes every refresh cookie gets
type CookiePolicy struct {
	Secure   bool
	SameSite http.SameSite
	TTL      time.Duration
}

// set writes the refresh cookie. HttpOnly always; Max-Age tracks the
// refresh token's own lifetime.
func (p CookiePolicy) set(w http.ResponseWriter, refreshToken string) {
	http.SetCookie(w, &http.Cookie{
		Name:     refreshCookieName,
		Value:    refreshToken,
		Path:     "/",
		MaxAge:   int(p.TTL.Seconds()),
		HttpOnly: true,
		Secure:   p.Secure,
		SameSite: p.SameSite,
	})
}

// clear expires the refresh cookie immediately
func (p CookiePolicy) clear(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     refreshCookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   p.Secure,
		SameSite: p.SameSite,
	})
}
