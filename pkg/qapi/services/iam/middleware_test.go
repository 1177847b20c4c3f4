package iam

import (
	"context"
	"net/http"
	"testing"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/humatest"
	"github.com/quatton/qtube/pkg/qerr"
	"github.com/quatton/qtube/pkg/session"
	"github.com/stretchr/testify/assert"
)

type fakeAuth struct {
	tokens map[string]session.PublicUser
	err    error
}

func (f fakeAuth) Authenticate(_ context.Context, token string) (session.PublicUser, error) {
	if f.err != nil {
		return session.PublicUser{}, f.err
	}
	if token == "" {
		return session.PublicUser{}, qerr.Unauthorized("unauthorized request")
	}
	u, ok := f.tokens[token]
	if !ok {
		return session.PublicUser{}, qerr.Unauthorized("invalid access token")
	}
	return u, nil
}

type whoamiOutput struct {
	Body struct {
		Username string `json:"username"`
	}
}

func newGuardedAPI(t *testing.T, auth Authenticator) humatest.TestAPI {
	_, api := humatest.New(t)
	svc := NewIAMService(auth, nil)
	api.UseMiddleware(svc.Middleware(api))

	huma.Register(api, huma.Operation{
		OperationID: "whoami",
		Method:      http.MethodGet,
		Path:        "/whoami",
		Security:    []map[string][]string{{"bearer": {}}},
	}, func(ctx context.Context, _ *struct{}) (*whoamiOutput, error) {
		out := &whoamiOutput{}
		if u, ok := Principal(ctx); ok {
			out.Body.Username = u.Username
		}
		return out, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "open",
		Method:      http.MethodGet,
		Path:        "/open",
	}, func(ctx context.Context, _ *struct{}) (*struct{}, error) {
		return nil, nil
	})
	return api
}

func TestMiddlewareAcceptsCookieAndBearer(t *testing.T) {
	api := newGuardedAPI(t, fakeAuth{tokens: map[string]session.PublicUser{
		"good": {ID: "1", Username: "ana"},
	}})

	resp := api.Get("/whoami", "Cookie: theme=dark; accessToken=good")
	assert.Equal(t, http.StatusOK, resp.Code)
	assert.Contains(t, resp.Body.String(), `"username":"ana"`)

	resp = api.Get("/whoami", "Authorization: Bearer good")
	assert.Equal(t, http.StatusOK, resp.Code)
	assert.Contains(t, resp.Body.String(), `"username":"ana"`)
}

func TestMiddlewareRejects(t *testing.T) {
	api := newGuardedAPI(t, fakeAuth{tokens: map[string]session.PublicUser{}})

	resp := api.Get("/whoami")
	assert.Equal(t, http.StatusUnauthorized, resp.Code)
	assert.Contains(t, resp.Body.String(), "unauthorized request")

	resp = api.Get("/whoami", "Authorization: Bearer forged")
	assert.Equal(t, http.StatusUnauthorized, resp.Code)
	assert.Contains(t, resp.Body.String(), "invalid access token")

	resp = api.Get("/whoami", "Authorization: Basic Zm9vOmJhcg==")
	assert.Equal(t, http.StatusUnauthorized, resp.Code)
}

func TestMiddlewareHidesInternalErrors(t *testing.T) {
	api := newGuardedAPI(t, fakeAuth{err: qerr.Wrap(qerr.CodeInternal, "db down", nil)})

	resp := api.Get("/whoami", "Authorization: Bearer good")
	assert.Equal(t, http.StatusInternalServerError, resp.Code)
	assert.NotContains(t, resp.Body.String(), "db down")
}

func TestMiddlewareSkipsOpenOperations(t *testing.T) {
	api := newGuardedAPI(t, fakeAuth{err: qerr.Unauthorized("never called")})

	resp := api.Get("/open")
	assert.Equal(t, http.StatusNoContent, resp.Code)
}

func TestCookieValue(t *testing.T) {
	assert.Equal(t, "abc", cookieValue("a=1; accessToken=abc", AccessCookie))
	assert.Empty(t, cookieValue("a=1", AccessCookie))
	assert.Empty(t, cookieValue("", AccessCookie))
}
