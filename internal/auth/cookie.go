package auth

import (
	"net/http"
	"strings"
	"time"
)

// SessionCookieName is the cookie browser sessions carry their token in
const SessionCookieName = "circles_session"

// tokenSource records which credential a request presented
type tokenSource int

const (
	sourceNone tokenSource = iota
	sourceBearer
	sourceCookie
)

// sessionToken returns the bearer token if the Authorization header has
// one, otherwise the session cookie value.
func sessionToken(r *http.Request) (string, tokenSource) {
	if token := bearerToken(r); token != "" {
		return token, sourceBearer
	}
	if cookie, err := r.Cookie(SessionCookieName); err == nil && cookie.Value != "" {
		return cookie.Value, sourceCookie
	}
	return "", sourceNone
}

func bearerToken(r *http.Request) string {
	header := r.Header.Get("Authorization")
	if len(header) < 7 || !strings.EqualFold(header[:7], "bearer ") {
		return ""
	}
	return strings.TrimSpace(header[7:])
}

// expireSessionCookie drops a session cookie that no longer validates
func expireSessionCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookieName,
		Value:    "",
		Path:     "/",
		Expires:  time.Unix(0, 0),
		MaxAge:   -1,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
}
