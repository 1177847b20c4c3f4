package qauth

import (
	"fmt"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// TokenKind distinguishes access tokens from refresh tokens. It is stored in
// the `typ` claim so one kind can never be replayed as the other.
type TokenKind string

const (
	KindAccess  TokenKind = "access"
	KindRefresh TokenKind = "refresh"
)

// SessionClaims is the flat view of a session token payload.
// Values obtained through ParseTokenClaims are unverified; only claims
// returned by TokenService are safe for security decisions.
type SessionClaims struct {
	UserID  string
	Kind    TokenKind
	TokenID string
	Iss     string
	Iat     int64
	Exp     int64
}

// ParseTokenClaims extracts raw claims from a JWT without verifying its
// signature. Clients use it to decide when to refresh.
// WARNING: do not rely on this for authorization.
func ParseTokenClaims(tokenStr string) (jwt.MapClaims, error) {
	var claims jwt.MapClaims
	parser := new(jwt.Parser)
	_, _, err := parser.ParseUnverified(tokenStr, &claims)
	if err != nil {
		return nil, err
	}
	return claims, nil
}

func FromToken(tokenStr string) (*SessionClaims, error) {
	claims, err := ParseTokenClaims(tokenStr)
	if err != nil {
		return nil, err
	}
	return FromMapClaims(claims)
}

// FromMapClaims maps token claims into SessionClaims. It tolerates both
// string and numeric forms of `sub` and the float64 timestamps produced by
// the JSON decoder.
func FromMapClaims(mc jwt.MapClaims) (*SessionClaims, error) {
	sc := &SessionClaims{}

	if sub, ok := mc["sub"]; ok {
		switch v := sub.(type) {
		case string:
			sc.UserID = v
		case float64:
			sc.UserID = strconv.FormatInt(int64(v), 10)
		default:
			sc.UserID = fmt.Sprintf("%v", v)
		}
	}

	if typ, ok := mc["typ"].(string); ok {
		sc.Kind = TokenKind(typ)
	}
	if jti, ok := mc["jti"].(string); ok {
		sc.TokenID = jti
	}
	if iss, ok := mc["iss"].(string); ok {
		sc.Iss = iss
	}

	sc.Iat = numericClaim(mc["iat"])
	sc.Exp = numericClaim(mc["exp"])

	return sc, nil
}

func numericClaim(v any) int64 {
	switch n := v.(type) {
	case float64:
		return int64(n)
	case int64:
		return n
	case int:
		return int64(n)
	}
	return 0
}

// ToClaims converts SessionClaims into jwt.MapClaims suitable for signing.
// Empty fields are omitted to keep tokens compact.
func ToClaims(sc *SessionClaims) jwt.MapClaims {
	mc := jwt.MapClaims{}
	if sc.UserID != "" {
		mc["sub"] = sc.UserID
	}
	if sc.Kind != "" {
		mc["typ"] = string(sc.Kind)
	}
	if sc.TokenID != "" {
		mc["jti"] = sc.TokenID
	}
	if sc.Iss != "" {
		mc["iss"] = sc.Iss
	}
	if sc.Iat != 0 {
		mc["iat"] = sc.Iat
	}
	if sc.Exp != 0 {
		mc["exp"] = sc.Exp
	}
	return mc
}

// IsTokenExpired returns true when the token is expired or within the
// provided skew window. The signature is not checked.
func IsTokenExpired(token string, skew time.Duration) (bool, error) {
	if token == "" {
		return true, nil
	}
	sc, err := FromToken(token)
	if err != nil {
		return true, err
	}
	if sc.Exp == 0 {
		return false, nil
	}
	expiresAt := time.Unix(sc.Exp, 0).Add(-skew)
	return time.Now().After(expiresAt), nil
}
