package iam

import (
	"net/http"
	"strings"

	"github.com/danielgtaylor/huma/v2"
	"github.com/quatton/qtube/pkg/qerr"
)

// Middleware guards every operation that declares Security. Operations
// without it pass through untouched.
func (s *IAMService) Middleware(api huma.API) func(ctx huma.Context, next func(huma.Context)) {
	return func(ctx huma.Context, next func(huma.Context)) {
		if op := ctx.Operation(); op == nil || len(op.Security) == 0 {
			next(ctx)
			return
		}

		token := TokenFromRequest(ctx)
		user, err := s.auth.Authenticate(ctx.Context(), token)
		if err != nil {
			status, msg := http.StatusUnauthorized, qerr.MessageOf(err, "unauthorized request")
			if code := qerr.CodeOf(err); code == qerr.CodeInternal || code == qerr.CodeUnknown {
				s.logger.Error("authentication failed", "error", err)
				status, msg = http.StatusInternalServerError, "internal server error"
			} else {
				s.logger.Debug("rejected access token", "error", err)
			}
			_ = huma.WriteErr(api, ctx, status, msg)
			return
		}

		s.logger.Debug("authenticated user", "user_id", user.ID, "username", user.Username)
		next(huma.WithValue(ctx, principalKey, user))
	}
}

// TokenFromRequest returns the access token from the accessToken cookie or,
// failing that, an "Authorization: Bearer" header.
func TokenFromRequest(ctx huma.Context) string {
	if v := cookieValue(ctx.Header("Cookie"), AccessCookie); v != "" {
		return v
	}

	parts := strings.SplitN(ctx.Header("Authorization"), " ", 2)
	if len(parts) == 2 && strings.EqualFold(parts[0], "Bearer") {
		return strings.TrimSpace(parts[1])
	}
	return ""
}

func cookieValue(header, name string) string {
	if header == "" {
		return ""
	}
	cookies, err := http.ParseCookie(header)
	if err != nil {
		return ""
	}
	for _, c := range cookies {
		if c.Name == name {
			return c.Value
		}
	}
	return ""
}
