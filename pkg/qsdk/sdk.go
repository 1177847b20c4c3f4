package qsdk

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/quatton/qtube/pkg/client"
	"github.com/quatton/qtube/pkg/qauth"
	"github.com/quatton/qtube/pkg/qerr"
	"k8s.io/utils/ptr"
)

// refreshSkew is how close to expiry an access token may get before the
// SDK refreshes it ahead of a request.
const refreshSkew = 30 * time.Second

// Sdk is a small wrapper around the generated API client with auth baked in.
// It provides a minimal surface that CLI commands can use so they don't need
// to wire keyring, client and headers themselves.
type Sdk struct {
	Client       *client.ClientWithResponses
	BaseURL      string
	Token        string
	RefreshToken string

	tokens TokenStore
}

// skipAuthEditorKey skips authRequestEditor when present in the context so
// the public endpoints, refresh included, run without token checks.
type skipAuthEditorKey struct{}

func withoutAuth(ctx context.Context) context.Context {
	return context.WithValue(ctx, skipAuthEditorKey{}, true)
}

type User struct {
	ID         string
	Username   string
	Email      string
	FullName   string
	Avatar     string
	CoverImage string
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

func userFrom(u client.PublicUser) *User {
	user := &User{
		ID:        u.Id,
		Username:  u.Username,
		Email:     u.Email,
		FullName:  u.FullName,
		Avatar:    u.Avatar,
		CreatedAt: u.CreatedAt,
		UpdatedAt: u.UpdatedAt,
	}
	user.CoverImage = ptr.Deref(u.CoverImage, "")
	return user
}

type RegisterRequest struct {
	FullName       string
	Email          string
	Username       string
	Password       string
	AvatarPath     string
	CoverImagePath string
}

// NewSdk returns an initialized SDK with tokens loaded from store and
// automatic token refresh. A nil store uses the OS keyring.
func NewSdk(cfg *Config, store TokenStore) (*Sdk, error) {
	if store == nil {
		store = KeyringStore{}
	}
	access, refresh, err := store.Load(cfg.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("loading credentials: %w", err)
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	sdk := &Sdk{
		BaseURL:      cfg.BaseURL,
		Token:        access,
		RefreshToken: refresh,
		tokens:       store,
	}

	c, err := client.NewClientWithResponses(cfg.BaseURL,
		client.WithHTTPClient(&http.Client{Timeout: timeout}),
		client.WithRequestEditorFn(sdk.authRequestEditor),
	)
	if err != nil {
		return nil, err
	}
	sdk.Client = c
	return sdk, nil
}

func (s *Sdk) authRequestEditor(ctx context.Context, req *http.Request) error {
	req.Header.Set("Accept", "application/json")
	if ctx.Value(skipAuthEditorKey{}) != nil {
		return nil
	}
	if err := s.ensureValidToken(ctx); err != nil {
		return err
	}
	if s.Token != "" {
		req.Header.Set("Authorization", "Bearer "+s.Token)
	}
	return nil
}

// ClearCredentials removes cached tokens for the SDK's base URL and resets
// the in-memory copies.
func (s *Sdk) ClearCredentials() {
	if s == nil || s.BaseURL == "" {
		return
	}
	_ = s.tokens.Delete(s.BaseURL)
	s.Token = ""
	s.RefreshToken = ""
}

// HandleUnauthorized clears any cached token when err is an authentication
// failure. It returns true in that case so callers can tell the user to log
// in again.
func (s *Sdk) HandleUnauthorized(err error) bool {
	if qerr.CodeOf(err).Status() != http.StatusUnauthorized {
		return false
	}
	s.ClearCredentials()
	return true
}

func (s *Sdk) Register(ctx context.Context, in RegisterRequest) (*User, error) {
	body, contentType, err := registerForm(in)
	if err != nil {
		return nil, qerr.New(qerr.CodeValidation, err)
	}

	resp, err := s.Client.RegisterUserWithBodyWithResponse(withoutAuth(ctx), contentType, body)
	if err != nil {
		return nil, requestError(err)
	}
	if resp.JSON201 == nil {
		return nil, responseError(resp.HTTPResponse, resp.JSONDefault)
	}
	return userFrom(resp.JSON201.Data), nil
}

// Login authenticates and stores the issued tokens.
func (s *Sdk) Login(ctx context.Context, username, email, password string) (*User, error) {
	body := client.LoginUserJSONRequestBody{Password: ptr.To(password)}
	if username != "" {
		body.Username = ptr.To(username)
	}
	if email != "" {
		body.Email = ptr.To(email)
	}

	resp, err := s.Client.LoginUserWithResponse(withoutAuth(ctx), body)
	if err != nil {
		return nil, requestError(err)
	}
	if resp.JSON200 == nil {
		return nil, responseError(resp.HTTPResponse, resp.JSONDefault)
	}
	data := resp.JSON200.Data
	if err := s.storeTokens(data.AccessToken, data.RefreshToken); err != nil {
		return nil, err
	}
	return userFrom(data.User), nil
}

// Logout revokes the session server-side and forgets the local tokens even
// when the server call fails.
func (s *Sdk) Logout(ctx context.Context) error {
	defer s.ClearCredentials()

	resp, err := s.Client.LogoutUserWithResponse(ctx)
	if err != nil {
		return requestError(err)
	}
	if resp.JSON200 == nil {
		return responseError(resp.HTTPResponse, resp.JSONDefault)
	}
	return nil
}

func (s *Sdk) Me(ctx context.Context) (*User, error) {
	resp, err := s.Client.GetCurrentUserWithResponse(ctx)
	if err != nil {
		return nil, requestError(err)
	}
	if resp.JSON200 == nil {
		return nil, responseError(resp.HTTPResponse, resp.JSONDefault)
	}
	return userFrom(resp.JSON200.Data), nil
}

// Refresh rotates the stored token pair.
func (s *Sdk) Refresh(ctx context.Context) error {
	if s.RefreshToken == "" {
		return qerr.Wrap(qerr.CodeUnauthorized, "missing refresh token", nil)
	}

	body := client.RefreshTokenJSONRequestBody{RefreshToken: ptr.To(s.RefreshToken)}
	resp, err := s.Client.RefreshTokenWithResponse(withoutAuth(ctx), &client.RefreshTokenParams{}, body)
	if err != nil {
		return qerr.Wrap(qerr.CodeRefreshFailed, "refresh failed", err)
	}
	if resp.JSON200 == nil {
		err := responseError(resp.HTTPResponse, resp.JSONDefault)
		return qerr.Wrap(qerr.CodeRefreshFailed, qerr.MessageOf(err, "refresh failed"), err)
	}
	return s.storeTokens(resp.JSON200.Data.AccessToken, resp.JSON200.Data.RefreshToken)
}

func (s *Sdk) storeTokens(access, refresh string) error {
	s.Token = access
	s.RefreshToken = refresh
	if err := s.tokens.Save(s.BaseURL, access, refresh); err != nil {
		return qerr.New(qerr.CodeUnknown, err)
	}
	return nil
}

func (s *Sdk) ensureValidToken(ctx context.Context) error {
	if s.Token == "" {
		if s.RefreshToken == "" {
			return qerr.Wrap(qerr.CodeUnauthorized, "missing credentials", nil)
		}
		return s.Refresh(ctx)
	}
	expired, err := qauth.IsTokenExpired(s.Token, refreshSkew)
	if err != nil {
		return qerr.New(qerr.CodeUnknown, err)
	}
	if expired {
		if s.RefreshToken == "" {
			return qerr.Wrap(qerr.CodeExpiredToken, "access token expired", nil)
		}
		return s.Refresh(ctx)
	}
	return nil
}

// requestError keeps errors raised by authRequestEditor as they are and
// files transport failures under CodeUnknown.
func requestError(err error) error {
	var qe *qerr.Error
	if errors.As(err, &qe) {
		return err
	}
	return qerr.New(qerr.CodeUnknown, err)
}

// responseError turns a failed envelope into a coded error.
func responseError(resp *http.Response, env *client.ErrorEnvelope) error {
	status := 0
	if resp != nil {
		status = resp.StatusCode
	}
	msg := ""
	if env != nil {
		msg = env.Message
	}
	if msg == "" {
		msg = fmt.Sprintf("unexpected response (status %d)", status)
		if text := http.StatusText(status); text != "" {
			msg = text
		}
	}
	return qerr.Wrap(codeForStatus(status), msg, nil)
}

func codeForStatus(status int) qerr.Code {
	switch status {
	case http.StatusBadRequest, http.StatusUnprocessableEntity:
		return qerr.CodeValidation
	case http.StatusUnauthorized:
		return qerr.CodeUnauthorized
	case http.StatusNotFound:
		return qerr.CodeNotFound
	case http.StatusConflict:
		return qerr.CodeConflict
	case http.StatusTooManyRequests:
		return qerr.CodeTooManyAttempts
	case http.StatusInternalServerError:
		return qerr.CodeInternal
	default:
		return qerr.CodeUnknown
	}
}

func registerForm(in RegisterRequest) (io.Reader, string, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	for name, value := range map[string]string{
		"fullName": in.FullName,
		"email":    in.Email,
		"username": in.Username,
		"password": in.Password,
	} {
		if err := w.WriteField(name, value); err != nil {
			return nil, "", err
		}
	}

	for field, path := range map[string]string{
		"avatar":     in.AvatarPath,
		"coverImage": in.CoverImagePath,
	} {
		if path == "" {
			continue
		}
		if err := attachFile(w, field, path); err != nil {
			return nil, "", err
		}
	}

	if err := w.Close(); err != nil {
		return nil, "", err
	}
	return &buf, w.FormDataContentType(), nil
}

func attachFile(w *multipart.Writer, field, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open %s: %w", field, err)
	}
	defer f.Close()

	part, err := w.CreateFormFile(field, filepath.Base(path))
	if err != nil {
		return err
	}
	_, err = io.Copy(part, f)
	return err
}
