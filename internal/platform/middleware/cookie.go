// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package middleware

import (
	"net/http"
	"time"

	"github.com/taibuivan/reactforge-auth/internal/platform/sec"
)

// SessionCookie writes and reads the signed session cookie.
//
// # Format
//
// The cookie value is "token.signature". A value whose signature does not
// verify is treated as absent, so forged cookies never reach the store.
type SessionCookie struct {
	name     string
	signer   *sec.Signer
	maxAge   time.Duration
	secure   bool
	sameSite http.SameSite
}

// NewSessionCookie builds the cookie policy. In production the cookie is
// Secure and SameSite=Strict; otherwise it is SameSite=Lax over plain HTTP.
func NewSessionCookie(name string, signer *sec.Signer, maxAge time.Duration, production bool) *SessionCookie {
	sameSite := http.SameSiteLaxMode
	if production {
		sameSite = http.SameSiteStrictMode
	}
	return &SessionCookie{
		name:     name,
		signer:   signer,
		maxAge:   maxAge,
		secure:   production,
		sameSite: sameSite,
	}
}

// Set issues (or re-issues) the cookie for token with a full Max-Age.
func (cookie *SessionCookie) Set(writer http.ResponseWriter, token string) {
	http.SetCookie(writer, &http.Cookie{
		Name:     cookie.name,
		Value:    cookie.signer.Sign(token),
		Path:     "/",
		MaxAge:   int(cookie.maxAge.Seconds()),
		Expires:  time.Now().Add(cookie.maxAge),
		HttpOnly: true,
		Secure:   cookie.secure,
		SameSite: cookie.sameSite,
	})
}

// Clear instructs the browser to drop the cookie.
func (cookie *SessionCookie) Clear(writer http.ResponseWriter) {
	http.SetCookie(writer, &http.Cookie{
		Name:     cookie.name,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		Expires:  time.Unix(0, 0),
		HttpOnly: true,
		Secure:   cookie.secure,
		SameSite: cookie.sameSite,
	})
}

// Token returns the verified raw token carried by the request, if any.
func (cookie *SessionCookie) Token(request *http.Request) (string, bool) {
	raw, err := request.Cookie(cookie.name)
	if err != nil || raw.Value == "" {
		return "", false
	}
	token, err := cookie.signer.Unsign(raw.Value)
	if err != nil {
		return "", false
	}
	return token, true
}
