package routes

import (
	"net/http"
	"time"

	"github.com/quatton/qtube/pkg/qauth"
)

func sessionCookie(name, value string, ttl time.Duration, secure bool) http.Cookie {
	return http.Cookie{
		Name:     name,
		Value:    value,
		Path:     "/",
		MaxAge:   int(ttl / time.Second),
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteLaxMode,
	}
}

// sessionCookies sets both tokens with lifetimes matching the tokens.
func sessionCookies(pair qauth.TokenPair, tokens *qauth.TokenService, secure bool) []http.Cookie {
	return []http.Cookie{
		sessionCookie(AccessTokenCookie, pair.AccessToken, tokens.AccessTTL(), secure),
		sessionCookie(RefreshTokenCookie, pair.RefreshToken, tokens.RefreshTTL(), secure),
	}
}

// clearedCookies expires both tokens on the client.
func clearedCookies(secure bool) []http.Cookie {
	access := sessionCookie(AccessTokenCookie, "", 0, secure)
	access.MaxAge = -1
	refresh := sessionCookie(RefreshTokenCookie, "", 0, secure)
	refresh.MaxAge = -1
	return []http.Cookie{access, refresh}
}
