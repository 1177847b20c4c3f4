package routes

import (
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/danielgtaylor/huma/v2"
	"github.com/quatton/qtube/pkg/qapi/schemas"
	"github.com/quatton/qtube/pkg/qapi/services"
	"github.com/quatton/qtube/pkg/qapi/services/iam"
	"github.com/quatton/qtube/pkg/qlog"
	"github.com/quatton/qtube/pkg/session"
)

// RegisterUserInput is a multipart form with the text fields fullName,
// email, username, password and the files avatar and coverImage.
type RegisterUserInput struct {
	RawBody multipart.Form
}

type RegisterUserOutput struct {
	Body schemas.Envelope[session.PublicUser]
}

type LoginUserInput struct {
	Body schemas.LoginRequest
}

type LoginUserOutput struct {
	SetCookie []http.Cookie `header:"Set-Cookie"`
	Body      schemas.Envelope[schemas.LoginData]
}

type LogoutUserOutput struct {
	SetCookie []http.Cookie `header:"Set-Cookie"`
	Body      schemas.Envelope[schemas.Empty]
}

type RefreshTokenInput struct {
	RefreshCookie string                  `cookie:"refreshToken" doc:"Refresh token cookie set by login"`
	Body          *schemas.RefreshRequest `required:"false"`
}

type RefreshTokenOutput struct {
	SetCookie []http.Cookie `header:"Set-Cookie"`
	Body      schemas.Envelope[schemas.TokenData]
}

type CurrentUserOutput struct {
	Body schemas.Envelope[session.PublicUser]
}

type userHandlers struct {
	sessions *session.Service
	logger   *qlog.Logger
	settings services.Settings
}

func RegisterUsers(api huma.API, svcs *services.Services) {
	h := &userHandlers{logger: qlog.NewDiscard()}
	maxUpload := int64(defaultMaxUploadBytes)
	if svcs != nil {
		h.sessions = svcs.Sessions
		h.logger = svcs.Logger
		h.settings = svcs.Settings
		if svcs.Settings.MaxUploadBytes > 0 {
			maxUpload = svcs.Settings.MaxUploadBytes
		}
	}

	huma.Register(api, huma.Operation{
		OperationID:   "register-user",
		Method:        http.MethodPost,
		Path:          UsersPrefix + "/register",
		Summary:       "Register a user",
		Description:   "Creates an account from a multipart form. The avatar file is required, the cover image is optional.",
		Tags:          []string{TagUsers.String()},
		DefaultStatus: http.StatusCreated,
		MaxBodyBytes:  maxUpload,
	}, h.register)

	huma.Register(api, huma.Operation{
		OperationID: "login-user",
		Method:      http.MethodPost,
		Path:        UsersPrefix + "/login",
		Summary:     "Log in",
		Description: "Verifies credentials and starts a session. Tokens are returned in the body and as cookies.",
		Tags:        []string{TagUsers.String()},
	}, h.login)

	huma.Register(api, huma.Operation{
		OperationID: "logout-user",
		Method:      http.MethodPost,
		Path:        UsersPrefix + "/logout",
		Summary:     "Log out",
		Description: "Revokes the refresh token and clears both session cookies.",
		Tags:        []string{TagUsers.String()},
		Security:    BearerAuth,
	}, h.logout)

	huma.Register(api, huma.Operation{
		OperationID: "refresh-token",
		Method:      http.MethodPost,
		Path:        UsersPrefix + "/refresh-token",
		Summary:     "Rotate session tokens",
		Description: "Trades the current refresh token, from the cookie or the body, for a new pair. A refresh token works once.",
		Tags:        []string{TagUsers.String()},
	}, h.refresh)

	huma.Register(api, huma.Operation{
		OperationID: "get-current-user",
		Method:      http.MethodGet,
		Path:        UsersPrefix + "/me",
		Summary:     "Get current user",
		Description: "Retrieves the currently authenticated user",
		Tags:        []string{TagUsers.String()},
		Security:    BearerAuth,
	}, h.me)
}

func (h *userHandlers) register(ctx context.Context, input *RegisterUserInput) (*RegisterUserOutput, error) {
	form := &input.RawBody
	defer func() { _ = form.RemoveAll() }()

	avatarPath, err := h.saveUpload(form, "avatar")
	if err != nil {
		return nil, apiError(h.logger, "save avatar", err)
	}
	coverPath, err := h.saveUpload(form, "coverImage")
	if err != nil {
		if avatarPath != "" {
			_ = os.Remove(avatarPath)
		}
		return nil, apiError(h.logger, "save cover image", err)
	}

	user, err := h.sessions.Register(ctx, session.RegisterInput{
		FullName:       formValue(form, "fullName"),
		Email:          formValue(form, "email"),
		Username:       formValue(form, "username"),
		Password:       formValue(form, "password"),
		AvatarPath:     avatarPath,
		CoverImagePath: coverPath,
	})
	if err != nil {
		return nil, apiError(h.logger, "register", err)
	}

	return &RegisterUserOutput{Body: schemas.Created(user, "User registered successfully")}, nil
}

func (h *userHandlers) login(ctx context.Context, input *LoginUserInput) (*LoginUserOutput, error) {
	res, err := h.sessions.Login(ctx, session.LoginInput{
		Username: input.Body.Username,
		Email:    input.Body.Email,
		Password: input.Body.Password,
	})
	if err != nil {
		return nil, apiError(h.logger, "login", err)
	}

	return &LoginUserOutput{
		SetCookie: sessionCookies(res.Tokens, h.sessions.Tokens(), h.settings.SecureCookies),
		Body: schemas.OK(schemas.LoginData{
			User:         res.User,
			AccessToken:  res.Tokens.AccessToken,
			RefreshToken: res.Tokens.RefreshToken,
		}, "User logged in successfully"),
	}, nil
}

func (h *userHandlers) logout(ctx context.Context, _ *struct{}) (*LogoutUserOutput, error) {
	user, ok := iam.Principal(ctx)
	if !ok {
		return nil, huma.NewError(http.StatusUnauthorized, "unauthorized request")
	}

	if err := h.sessions.Logout(ctx, user.ID); err != nil {
		return nil, apiError(h.logger, "logout", err)
	}

	return &LogoutUserOutput{
		SetCookie: clearedCookies(h.settings.SecureCookies),
		Body:      schemas.OK(schemas.Empty{}, "User logged out"),
	}, nil
}

func (h *userHandlers) refresh(ctx context.Context, input *RefreshTokenInput) (*RefreshTokenOutput, error) {
	token := input.RefreshCookie
	if token == "" && input.Body != nil {
		token = input.Body.RefreshToken
	}

	pair, err := h.sessions.RefreshAccessToken(ctx, token)
	if err != nil {
		return nil, apiError(h.logger, "refresh", err)
	}

	tokens := h.sessions.Tokens()
	return &RefreshTokenOutput{
		SetCookie: sessionCookies(pair, tokens, h.settings.SecureCookies),
		Body: schemas.OK(schemas.TokenData{
			AccessToken:  pair.AccessToken,
			RefreshToken: pair.RefreshToken,
			TokenType:    "bearer",
			ExpiresIn:    int(tokens.AccessTTL().Seconds()),
		}, "Access token refreshed"),
	}, nil
}

func (h *userHandlers) me(ctx context.Context, _ *struct{}) (*CurrentUserOutput, error) {
	principal, ok := iam.Principal(ctx)
	if !ok {
		return nil, huma.NewError(http.StatusUnauthorized, "unauthorized request")
	}

	user, err := h.sessions.CurrentUser(ctx, principal.ID)
	if err != nil {
		return nil, apiError(h.logger, "current user", err)
	}
	return &CurrentUserOutput{Body: schemas.OK(user, "Current user fetched successfully")}, nil
}

func formValue(form *multipart.Form, name string) string {
	if v := form.Value[name]; len(v) > 0 {
		return v[0]
	}
	return ""
}

// saveUpload copies the first file under field into the upload dir and
// returns its path, or "" when the field is absent.
func (h *userHandlers) saveUpload(form *multipart.Form, field string) (string, error) {
	files := form.File[field]
	if len(files) == 0 || files[0].Size == 0 {
		return "", nil
	}
	fh := files[0]

	dir := h.settings.UploadDir
	if dir == "" {
		dir = os.TempDir()
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create upload dir: %w", err)
	}

	src, err := fh.Open()
	if err != nil {
		return "", fmt.Errorf("open %s: %w", field, err)
	}
	defer src.Close()

	dst, err := os.CreateTemp(dir, field+"-*"+safeExt(fh.Filename))
	if err != nil {
		return "", fmt.Errorf("create temp file: %w", err)
	}
	if _, err := io.Copy(dst, src); err != nil {
		dst.Close()
		_ = os.Remove(dst.Name())
		return "", fmt.Errorf("write %s: %w", field, err)
	}
	if err := dst.Close(); err != nil {
		_ = os.Remove(dst.Name())
		return "", fmt.Errorf("write %s: %w", field, err)
	}
	return dst.Name(), nil
}

func safeExt(filename string) string {
	ext := strings.ToLower(filepath.Ext(filepath.Base(filename)))
	if len(ext) > 8 || strings.ContainsAny(ext, `/\*`) {
		return ""
	}
	return ext
}
