// Package session owns the account lifecycle: registration, login, logout,
// refresh-token rotation and access-token authentication. Transports call
// into Service and translate the *qerr.Error values it returns.
package session

import (
	"context"
	"crypto/subtle"
	"errors"
	"os"
	"strings"
	"time"

	"github.com/quatton/qtube/pkg/credstore"
	"github.com/quatton/qtube/pkg/db/models"
	"github.com/quatton/qtube/pkg/media"
	"github.com/quatton/qtube/pkg/metrics"
	"github.com/quatton/qtube/pkg/qart"
	"github.com/quatton/qtube/pkg/qauth"
	"github.com/quatton/qtube/pkg/qerr"
	"github.com/quatton/qtube/pkg/qlog"
)

const (
	msgUnauthorized   = "unauthorized request"
	msgInvalidRefresh = "invalid refresh token"
	msgRefreshUsed    = "refresh token is expired or used"
	msgInvalidAccess  = "invalid access token"
)

type Deps struct {
	Store    credstore.Store
	Tokens   *qauth.TokenService
	Hasher   qauth.Hasher
	Media    media.Uploader
	Throttle Throttle
	Metrics  metrics.Recorder
	Logger   *qlog.Logger
}

type Service struct {
	store    credstore.Store
	tokens   *qauth.TokenService
	hasher   qauth.Hasher
	media    media.Uploader
	throttle Throttle
	metrics  metrics.Recorder
	logger   *qlog.Logger
}

func NewService(d Deps) *Service {
	s := &Service{
		store:    d.Store,
		tokens:   d.Tokens,
		hasher:   d.Hasher,
		media:    d.Media,
		throttle: d.Throttle,
		metrics:  d.Metrics,
		logger:   d.Logger,
	}
	if s.hasher == nil {
		s.hasher = qauth.NewBcryptHasher(qauth.DefaultBcryptCost)
	}
	if s.throttle == nil {
		s.throttle = nopThrottle{}
	}
	if s.metrics == nil {
		s.metrics = metrics.Nop{}
	}
	if s.logger == nil {
		s.logger = qlog.NewDiscard()
	}
	return s
}

// Tokens exposes the token service so transports can read TTLs for cookies.
func (s *Service) Tokens() *qauth.TokenService {
	return s.tokens
}

type RegisterInput struct {
	FullName string
	Email    string
	Username string
	Password string
	// AvatarPath and CoverImagePath point at uploaded files on local disk.
	// Both are removed before Register returns.
	AvatarPath     string
	CoverImagePath string
}

func (s *Service) Register(ctx context.Context, in RegisterInput) (user PublicUser, err error) {
	defer discardUploads(in.AvatarPath, in.CoverImagePath)
	defer func() { s.record(metrics.EventRegister, err) }()

	fullName := strings.TrimSpace(in.FullName)
	email := strings.ToLower(strings.TrimSpace(in.Email))
	username := strings.ToLower(strings.TrimSpace(in.Username))
	if fullName == "" || email == "" || username == "" || strings.TrimSpace(in.Password) == "" {
		return PublicUser{}, qerr.Validation("all fields are required")
	}

	_, err = s.store.FindByIdentity(ctx, credstore.Identity{Username: username, Email: email})
	switch {
	case err == nil:
		return PublicUser{}, qerr.Conflict("user with email or username already exists")
	case !errors.Is(err, credstore.ErrNotFound):
		return PublicUser{}, qerr.Wrap(qerr.CodeInternal, "failed to check existing users", err)
	}

	if in.AvatarPath == "" {
		return PublicUser{}, qerr.Validation("avatar is required")
	}

	avatarURL, err := s.media.Upload(ctx, qart.KindAvatar, in.AvatarPath)
	if err != nil {
		return PublicUser{}, qerr.Wrap(qerr.CodeUploadFailed, "failed to upload avatar", err)
	}

	var coverURL string
	if in.CoverImagePath != "" {
		coverURL, err = s.media.Upload(ctx, qart.KindCoverImage, in.CoverImagePath)
		if err != nil {
			s.logger.Warn("cover image upload failed", "username", username, "error", err)
			coverURL = ""
		}
	}

	hash, err := s.hashPassword(in.Password)
	if err != nil {
		return PublicUser{}, qerr.Wrap(qerr.CodeInternal, "failed to hash password", err)
	}

	created, err := s.store.Create(ctx, &models.User{
		Username:      username,
		Email:         email,
		FullName:      fullName,
		PasswordHash:  hash,
		AvatarURL:     avatarURL,
		CoverImageURL: coverURL,
	})
	if errors.Is(err, credstore.ErrDuplicate) {
		return PublicUser{}, qerr.Wrap(qerr.CodeConflict, "user with email or username already exists", err)
	}
	if err != nil {
		return PublicUser{}, qerr.Wrap(qerr.CodeInternal, "something went wrong while registering the user", err)
	}

	stored, err := s.store.FindByID(ctx, created.ID.String())
	if err != nil {
		return PublicUser{}, qerr.Wrap(qerr.CodeInternal, "something went wrong while registering the user", err)
	}

	s.logger.Info("user registered", "user_id", stored.ID.String(), "username", stored.Username)
	return toPublic(stored), nil
}

type LoginInput struct {
	Username string
	Email    string
	Password string
}

type LoginResult struct {
	User   PublicUser
	Tokens qauth.TokenPair
}

func (s *Service) Login(ctx context.Context, in LoginInput) (res LoginResult, err error) {
	defer func() { s.record(metrics.EventLogin, err) }()

	username := strings.ToLower(strings.TrimSpace(in.Username))
	email := strings.ToLower(strings.TrimSpace(in.Email))
	if username == "" && email == "" {
		return LoginResult{}, qerr.Validation("username or email is required")
	}
	if strings.TrimSpace(in.Password) == "" {
		return LoginResult{}, qerr.Validation("password is required")
	}

	user, err := s.store.FindByIdentity(ctx, credstore.Identity{Username: username, Email: email})
	if errors.Is(err, credstore.ErrNotFound) {
		return LoginResult{}, qerr.NotFound("user does not exist")
	}
	if err != nil {
		return LoginResult{}, qerr.Wrap(qerr.CodeInternal, "failed to look up user", err)
	}

	// Failures count against the account, whichever field named it.
	key := throttleKey(user.ID.String())
	locked, err := s.throttle.Locked(ctx, key)
	if err != nil {
		s.logger.Warn("login throttle unavailable", "error", err)
	}
	if locked {
		s.metrics.RecordLockout()
		return LoginResult{}, qerr.Wrap(qerr.CodeTooManyAttempts, "too many failed login attempts, try again later", nil)
	}

	ok, err := s.verifyPassword(in.Password, user.PasswordHash)
	if err != nil {
		return LoginResult{}, qerr.Wrap(qerr.CodeInternal, "failed to verify password", err)
	}
	if !ok {
		if ferr := s.throttle.Failure(ctx, key); ferr != nil {
			s.logger.Warn("failed to record login failure", "user_id", user.ID.String(), "error", ferr)
		}
		return LoginResult{}, qerr.Unauthorized("invalid user credentials")
	}

	pair, err := s.rotate(ctx, user)
	if err != nil {
		return LoginResult{}, err
	}

	if rerr := s.throttle.Reset(ctx, key); rerr != nil {
		s.logger.Warn("failed to reset login throttle", "user_id", user.ID.String(), "error", rerr)
	}

	s.logger.Info("user logged in", "user_id", user.ID.String())
	return LoginResult{User: toPublic(user), Tokens: pair}, nil
}

// Logout revokes the user's refresh token. Access tokens already issued stay
// valid until they expire.
func (s *Service) Logout(ctx context.Context, userID string) (err error) {
	defer func() { s.record(metrics.EventLogout, err) }()

	user, err := s.store.FindByID(ctx, userID)
	if errors.Is(err, credstore.ErrNotFound) {
		return qerr.NotFound("user not found")
	}
	if err != nil {
		return qerr.Wrap(qerr.CodeInternal, "failed to look up user", err)
	}

	user.RefreshToken = ""
	if err := s.store.Save(ctx, user, credstore.SaveOptions{Validate: false}); err != nil {
		return qerr.Wrap(qerr.CodeInternal, "failed to clear session", err)
	}

	s.logger.Info("user logged out", "user_id", userID)
	return nil
}

// RefreshAccessToken trades the user's current refresh token for a new
// pair. A token that verifies but is no longer the stored one has either
// been rotated already or revoked by logout.
func (s *Service) RefreshAccessToken(ctx context.Context, token string) (pair qauth.TokenPair, err error) {
	defer func() { s.record(metrics.EventRefresh, err) }()

	token = strings.TrimSpace(token)
	if token == "" {
		return qauth.TokenPair{}, qerr.Unauthorized(msgUnauthorized)
	}

	userID, err := s.tokens.VerifyRefreshToken(token)
	if err != nil {
		return qauth.TokenPair{}, qerr.Wrap(qerr.CodeUnauthorized, err.Error(), err)
	}

	user, err := s.store.FindByID(ctx, userID)
	if errors.Is(err, credstore.ErrNotFound) {
		return qauth.TokenPair{}, qerr.Unauthorized(msgInvalidRefresh)
	}
	if err != nil {
		return qauth.TokenPair{}, qerr.Wrap(qerr.CodeInternal, "failed to look up user", err)
	}

	if user.RefreshToken == "" || subtle.ConstantTimeCompare([]byte(token), []byte(user.RefreshToken)) != 1 {
		s.logger.Warn("stale refresh token presented", "user_id", userID)
		return qauth.TokenPair{}, qerr.Unauthorized(msgRefreshUsed)
	}

	return s.rotate(ctx, user)
}

// Authenticate resolves an access token to the user it was issued for.
func (s *Service) Authenticate(ctx context.Context, accessToken string) (user PublicUser, err error) {
	defer func() {
		if err != nil {
			s.record(metrics.EventAuthenticate, err)
		}
	}()

	accessToken = strings.TrimSpace(accessToken)
	if accessToken == "" {
		return PublicUser{}, qerr.Unauthorized(msgUnauthorized)
	}

	userID, err := s.tokens.VerifyAccessToken(accessToken)
	if err != nil {
		return PublicUser{}, qerr.Wrap(qerr.CodeUnauthorized, err.Error(), err)
	}

	u, err := s.store.FindByID(ctx, userID)
	if errors.Is(err, credstore.ErrNotFound) {
		return PublicUser{}, qerr.Unauthorized(msgInvalidAccess)
	}
	if err != nil {
		return PublicUser{}, qerr.Wrap(qerr.CodeInternal, "failed to look up user", err)
	}
	return toPublic(u), nil
}

func (s *Service) CurrentUser(ctx context.Context, userID string) (PublicUser, error) {
	u, err := s.store.FindByID(ctx, userID)
	if errors.Is(err, credstore.ErrNotFound) {
		return PublicUser{}, qerr.NotFound("user not found")
	}
	if err != nil {
		return PublicUser{}, qerr.Wrap(qerr.CodeInternal, "failed to look up user", err)
	}
	return toPublic(u), nil
}

// rotate issues a new pair and makes its refresh token the only valid one.
func (s *Service) rotate(ctx context.Context, user *models.User) (qauth.TokenPair, error) {
	pair, err := s.tokens.IssuePair(user.ID.String())
	if err != nil {
		return qauth.TokenPair{}, qerr.Wrap(qerr.CodeInternal, "something went wrong while generating tokens", err)
	}

	user.RefreshToken = pair.RefreshToken
	if err := s.store.Save(ctx, user, credstore.SaveOptions{Validate: false}); err != nil {
		return qauth.TokenPair{}, qerr.Wrap(qerr.CodeInternal, "something went wrong while generating tokens", err)
	}
	return pair, nil
}

func (s *Service) hashPassword(password string) (string, error) {
	start := time.Now()
	defer func() { s.metrics.RecordPasswordHash(time.Since(start)) }()
	return s.hasher.Hash(password)
}

func (s *Service) verifyPassword(password, hash string) (bool, error) {
	start := time.Now()
	defer func() { s.metrics.RecordPasswordHash(time.Since(start)) }()
	return s.hasher.Verify(password, hash)
}

func (s *Service) record(event metrics.Event, err error) {
	if err != nil {
		s.metrics.RecordEvent(event, metrics.OutcomeFailure)
		return
	}
	s.metrics.RecordEvent(event, metrics.OutcomeSuccess)
}

// discardUploads removes temp files left behind by the transport. The media
// service removes what it uploads; this catches the early-exit paths.
func discardUploads(paths ...string) {
	for _, p := range paths {
		if p != "" {
			_ = os.Remove(p)
		}
	}
}
