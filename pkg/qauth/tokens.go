// Package qauth issues and verifies the signed access and refresh tokens that
// make up a session, and hashes passwords. It never touches storage: whether
// a refresh token is still the current one is decided by the caller.
package qauth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// DefaultIssuer is the `iss` claim stamped on every token.
const DefaultIssuer = "qtube"

var (
	// ErrInvalidToken is returned for any token that fails verification.
	ErrInvalidToken = errors.New("invalid token")
	// ErrExpiredToken is returned for well-signed tokens past their expiry.
	// It wraps ErrInvalidToken.
	ErrExpiredToken = fmt.Errorf("%w: token is expired", ErrInvalidToken)
)

// TokenConfig holds signing secrets and lifetimes for both token kinds.
type TokenConfig struct {
	AccessSecret  string
	AccessTTL     time.Duration
	RefreshSecret string
	RefreshTTL    time.Duration
	Issuer        string
}

// TokenPair is what a caller receives after login or refresh.
type TokenPair struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
}

type TokenService struct {
	cfg TokenConfig
	now func() time.Time
}

func NewTokenService(cfg TokenConfig) *TokenService {
	if cfg.Issuer == "" {
		cfg.Issuer = DefaultIssuer
	}
	return &TokenService{cfg: cfg, now: time.Now}
}

func (s *TokenService) AccessTTL() time.Duration  { return s.cfg.AccessTTL }
func (s *TokenService) RefreshTTL() time.Duration { return s.cfg.RefreshTTL }

func (s *TokenService) IssueAccessToken(userID string) (string, error) {
	return s.issue(userID, KindAccess, s.cfg.AccessSecret, s.cfg.AccessTTL)
}

func (s *TokenService) IssueRefreshToken(userID string) (string, error) {
	return s.issue(userID, KindRefresh, s.cfg.RefreshSecret, s.cfg.RefreshTTL)
}

// IssuePair mints a fresh access and refresh token for userID.
func (s *TokenService) IssuePair(userID string) (TokenPair, error) {
	access, err := s.IssueAccessToken(userID)
	if err != nil {
		return TokenPair{}, fmt.Errorf("issue access token: %w", err)
	}
	refresh, err := s.IssueRefreshToken(userID)
	if err != nil {
		return TokenPair{}, fmt.Errorf("issue refresh token: %w", err)
	}
	return TokenPair{AccessToken: access, RefreshToken: refresh}, nil
}

// VerifyAccessToken checks signature, expiry and kind and returns the subject.
func (s *TokenService) VerifyAccessToken(token string) (string, error) {
	return s.verify(token, KindAccess, s.cfg.AccessSecret)
}

// VerifyRefreshToken checks signature, expiry and kind and returns the
// subject. It does not check that the token is the user's current one.
func (s *TokenService) VerifyRefreshToken(token string) (string, error) {
	return s.verify(token, KindRefresh, s.cfg.RefreshSecret)
}

func (s *TokenService) issue(userID string, kind TokenKind, secret string, ttl time.Duration) (string, error) {
	if userID == "" {
		return "", errors.New("empty subject")
	}
	now := s.now()
	sc := &SessionClaims{
		UserID:  userID,
		Kind:    kind,
		TokenID: uuid.NewString(),
		Iss:     s.cfg.Issuer,
		Iat:     now.Unix(),
		Exp:     now.Add(ttl).Unix(),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, ToClaims(sc))
	return token.SignedString([]byte(secret))
}

func (s *TokenService) verify(tokenString string, kind TokenKind, secret string) (string, error) {
	if tokenString == "" {
		return "", ErrInvalidToken
	}

	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(secret), nil
	},
		jwt.WithIssuer(s.cfg.Issuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return "", ErrExpiredToken
		}
		return "", fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	mc, ok := token.Claims.(jwt.MapClaims)
	if !ok || !token.Valid {
		return "", ErrInvalidToken
	}

	sc, err := FromMapClaims(mc)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if sc.Kind != kind {
		return "", fmt.Errorf("%w: expected %s token, got %q", ErrInvalidToken, kind, sc.Kind)
	}
	if sc.UserID == "" {
		return "", fmt.Errorf("%w: missing subject", ErrInvalidToken)
	}

	return sc.UserID, nil
}
