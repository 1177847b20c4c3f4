package iam

import (
	"context"

	"github.com/quatton/qtube/pkg/qlog"
	"github.com/quatton/qtube/pkg/session"
)

// AccessCookie is the cookie the guard reads before falling back to the
// Authorization header.
const AccessCookie = "accessToken"

type contextKey string

const principalKey contextKey = "principal"

// Authenticator resolves an access token to a user. session.Service
// implements it.
type Authenticator interface {
	Authenticate(ctx context.Context, accessToken string) (session.PublicUser, error)
}

type IAMService struct {
	auth   Authenticator
	logger *qlog.Logger
}

func NewIAMService(auth Authenticator, logger *qlog.Logger) *IAMService {
	if logger == nil {
		logger = qlog.NewDiscard()
	}
	return &IAMService{auth: auth, logger: logger}
}

// Principal returns the user the guard attached to ctx.
func Principal(ctx context.Context) (session.PublicUser, bool) {
	u, ok := ctx.Value(principalKey).(session.PublicUser)
	return u, ok
}

// WithPrincipal is used by tests that call handlers directly.
func WithPrincipal(ctx context.Context, u session.PublicUser) context.Context {
	return context.WithValue(ctx, principalKey, u)
}
