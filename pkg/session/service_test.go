package session

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/quatton/qtube/pkg/credstore"
	"github.com/quatton/qtube/pkg/kv"
	"github.com/quatton/qtube/pkg/metrics"
	"github.com/quatton/qtube/pkg/qart"
	"github.com/quatton/qtube/pkg/qauth"
	"github.com/quatton/qtube/pkg/qerr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

type fakeUploader struct {
	mu    sync.Mutex
	calls []qart.Kind
	fail  map[qart.Kind]error
}

func (f *fakeUploader) Upload(_ context.Context, kind qart.Kind, localPath string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, kind)
	_ = os.Remove(localPath)
	if err := f.fail[kind]; err != nil {
		return "", err
	}
	return "http://media.test/" + string(kind) + "/" + filepath.Base(localPath), nil
}

func (f *fakeUploader) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

type countingRecorder struct {
	mu     sync.Mutex
	events map[string]int
}

func (r *countingRecorder) RecordEvent(e metrics.Event, o metrics.Outcome) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.events == nil {
		r.events = map[string]int{}
	}
	r.events[string(e)+"/"+string(o)]++
}
func (r *countingRecorder) RecordLockout()                   { r.RecordEvent("lockout", "") }
func (r *countingRecorder) RecordPasswordHash(time.Duration) {}

func (r *countingRecorder) get(key string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.events[key]
}

func testTokens(accessTTL, refreshTTL time.Duration) *qauth.TokenService {
	return qauth.NewTokenService(qauth.TokenConfig{
		AccessSecret:  strings.Repeat("a", 32),
		AccessTTL:     accessTTL,
		RefreshSecret: strings.Repeat("r", 32),
		RefreshTTL:    refreshTTL,
	})
}

type harness struct {
	svc      *Service
	store    *credstore.MemoryStore
	uploader *fakeUploader
	metrics  *countingRecorder
	tokens   *qauth.TokenService
}

func newHarness(t *testing.T, throttle Throttle) *harness {
	t.Helper()
	h := &harness{
		store:    credstore.NewMemoryStore(),
		uploader: &fakeUploader{fail: map[qart.Kind]error{}},
		metrics:  &countingRecorder{},
		tokens:   testTokens(time.Minute, time.Hour),
	}
	h.svc = NewService(Deps{
		Store:    h.store,
		Tokens:   h.tokens,
		Hasher:   qauth.NewBcryptHasher(bcrypt.MinCost),
		Media:    h.uploader,
		Throttle: throttle,
		Metrics:  h.metrics,
	})
	return h
}

func tempFile(t *testing.T, name string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(p, []byte("\x89PNG\r\n\x1a\n"), 0o600))
	return p
}

func anaInput(t *testing.T) RegisterInput {
	return RegisterInput{
		FullName:   "Ana",
		Email:      "a@x.com",
		Username:   "ana",
		Password:   "secret1",
		AvatarPath: tempFile(t, "avatar.png"),
	}
}

func register(t *testing.T, h *harness) PublicUser {
	t.Helper()
	u, err := h.svc.Register(context.Background(), anaInput(t))
	require.NoError(t, err)
	return u
}

func login(t *testing.T, h *harness) LoginResult {
	t.Helper()
	res, err := h.svc.Login(context.Background(), LoginInput{Username: "ana", Password: "secret1"})
	require.NoError(t, err)
	return res
}

func TestRegister(t *testing.T) {
	h := newHarness(t, nil)
	in := anaInput(t)
	in.Username = "  Ana "
	in.CoverImagePath = tempFile(t, "cover.png")

	u, err := h.svc.Register(context.Background(), in)
	require.NoError(t, err)

	assert.NotEmpty(t, u.ID)
	assert.Equal(t, "ana", u.Username)
	assert.Equal(t, "a@x.com", u.Email)
	assert.Equal(t, "http://media.test/avatars/avatar.png", u.Avatar)
	assert.Equal(t, "http://media.test/covers/cover.png", u.CoverImage)
	assert.Equal(t, 1, h.metrics.get("register/success"))

	stored, err := h.store.FindByID(context.Background(), u.ID)
	require.NoError(t, err)
	assert.NotEqual(t, "secret1", stored.PasswordHash)
	assert.Empty(t, stored.RefreshToken)

	assert.NoFileExists(t, in.AvatarPath)
	assert.NoFileExists(t, in.CoverImagePath)
}

func TestRegisterBlankFields(t *testing.T) {
	cases := map[string]func(*RegisterInput){
		"full name": func(in *RegisterInput) { in.FullName = "" },
		"email":     func(in *RegisterInput) { in.Email = "   " },
		"username":  func(in *RegisterInput) { in.Username = "\t" },
		"password":  func(in *RegisterInput) { in.Password = " " },
	}

	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			h := newHarness(t, nil)
			in := anaInput(t)
			mutate(&in)

			_, err := h.svc.Register(context.Background(), in)
			assert.True(t, qerr.IsCode(err, qerr.CodeValidation), "got %v", err)
			assert.Zero(t, h.uploader.count())
			assert.NoFileExists(t, in.AvatarPath)

			_, err = h.store.FindByIdentity(context.Background(), credstore.Identity{Email: "a@x.com", Username: "ana"})
			assert.ErrorIs(t, err, credstore.ErrNotFound)
		})
	}
}

func TestRegisterConflict(t *testing.T) {
	h := newHarness(t, nil)
	register(t, h)
	uploads := h.uploader.count()

	sameName := anaInput(t)
	sameName.Username = "ANA"
	sameName.Email = "other@x.com"
	sameName.CoverImagePath = tempFile(t, "cover.png")
	_, err := h.svc.Register(context.Background(), sameName)
	assert.True(t, qerr.IsCode(err, qerr.CodeConflict), "got %v", err)

	sameEmail := anaInput(t)
	sameEmail.Username = "ana2"
	sameEmail.Email = "A@X.com"
	_, err = h.svc.Register(context.Background(), sameEmail)
	assert.True(t, qerr.IsCode(err, qerr.CodeConflict), "got %v", err)

	assert.Equal(t, uploads, h.uploader.count())
	assert.NoFileExists(t, sameName.CoverImagePath)

	_, err = h.store.FindByIdentity(context.Background(), credstore.Identity{Username: "ana2"})
	assert.ErrorIs(t, err, credstore.ErrNotFound)
}

func TestRegisterRequiresAvatar(t *testing.T) {
	h := newHarness(t, nil)
	in := anaInput(t)
	in.AvatarPath = ""
	in.CoverImagePath = tempFile(t, "cover.png")

	_, err := h.svc.Register(context.Background(), in)
	require.Error(t, err)
	assert.Equal(t, qerr.CodeValidation, qerr.CodeOf(err))
	assert.Equal(t, "avatar is required", qerr.MessageOf(err, ""))
	assert.Zero(t, h.uploader.count())
	assert.NoFileExists(t, in.CoverImagePath)
}

func TestRegisterAvatarUploadFails(t *testing.T) {
	h := newHarness(t, nil)
	h.uploader.fail[qart.KindAvatar] = errors.New("bucket offline")

	_, err := h.svc.Register(context.Background(), anaInput(t))
	assert.True(t, qerr.IsCode(err, qerr.CodeUploadFailed), "got %v", err)

	_, err = h.store.FindByIdentity(context.Background(), credstore.Identity{Username: "ana"})
	assert.ErrorIs(t, err, credstore.ErrNotFound)
	assert.Equal(t, 1, h.metrics.get("register/failure"))
}

func TestRegisterCoverUploadFailureIgnored(t *testing.T) {
	h := newHarness(t, nil)
	h.uploader.fail[qart.KindCoverImage] = errors.New("too large")
	in := anaInput(t)
	in.CoverImagePath = tempFile(t, "cover.png")

	u, err := h.svc.Register(context.Background(), in)
	require.NoError(t, err)
	assert.Empty(t, u.CoverImage)
	assert.NotEmpty(t, u.Avatar)
}

func TestPublicUserHidesSecrets(t *testing.T) {
	h := newHarness(t, nil)
	u := register(t, h)
	login(t, h)

	fetched, err := h.svc.CurrentUser(context.Background(), u.ID)
	require.NoError(t, err)

	for _, v := range []PublicUser{u, fetched} {
		b, err := json.Marshal(v)
		require.NoError(t, err)
		body := strings.ToLower(string(b))
		assert.NotContains(t, body, "password")
		assert.NotContains(t, body, "refresh")
		assert.NotContains(t, body, "$2a$")
	}
}

func TestLoginIssuesTokens(t *testing.T) {
	h := newHarness(t, nil)
	u := register(t, h)

	res := login(t, h)
	assert.Equal(t, u.ID, res.User.ID)

	sub, err := h.tokens.VerifyAccessToken(res.Tokens.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, u.ID, sub)

	stored, err := h.store.FindByID(context.Background(), u.ID)
	require.NoError(t, err)
	assert.Equal(t, res.Tokens.RefreshToken, stored.RefreshToken)
	assert.Equal(t, 1, h.metrics.get("login/success"))
}

func TestLoginByEitherIdentity(t *testing.T) {
	h := newHarness(t, nil)
	register(t, h)

	for _, in := range []LoginInput{
		{Email: "A@x.com", Password: "secret1"},
		{Username: "Ana", Password: "secret1"},
		{Username: "ana", Email: "a@x.com", Password: "secret1"},
	} {
		_, err := h.svc.Login(context.Background(), in)
		assert.NoError(t, err, "login %+v", in)
	}
}

func TestLoginValidation(t *testing.T) {
	h := newHarness(t, nil)
	for _, in := range []LoginInput{
		{Password: "secret1"},
		{Username: " ", Email: " ", Password: "secret1"},
		{Username: "ana"},
		{Email: "a@x.com", Password: "  "},
	} {
		_, err := h.svc.Login(context.Background(), in)
		assert.True(t, qerr.IsCode(err, qerr.CodeValidation), "login %+v: %v", in, err)
	}
}

func TestLoginUnknownUser(t *testing.T) {
	h := newHarness(t, nil)
	_, err := h.svc.Login(context.Background(), LoginInput{Username: "ghost", Password: "secret1"})
	assert.True(t, qerr.IsCode(err, qerr.CodeNotFound), "got %v", err)
}

func TestLoginWrongPassword(t *testing.T) {
	h := newHarness(t, nil)
	u := register(t, h)
	first := login(t, h)

	res, err := h.svc.Login(context.Background(), LoginInput{Username: "ana", Password: "wrong"})
	assert.True(t, qerr.IsCode(err, qerr.CodeUnauthorized), "got %v", err)
	assert.Empty(t, res.Tokens.AccessToken)
	assert.Empty(t, res.Tokens.RefreshToken)

	stored, err := h.store.FindByID(context.Background(), u.ID)
	require.NoError(t, err)
	assert.Equal(t, first.Tokens.RefreshToken, stored.RefreshToken)
}

func TestLoginLockout(t *testing.T) {
	throttle := NewKVThrottle(kv.NewMemoryStore(), ThrottleConfig{MaxAttempts: 2, Window: time.Minute})
	h := newHarness(t, throttle)
	register(t, h)
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		_, err := h.svc.Login(ctx, LoginInput{Username: "ana", Password: "wrong"})
		require.True(t, qerr.IsCode(err, qerr.CodeUnauthorized), "attempt %d: %v", i, err)
	}

	_, err := h.svc.Login(ctx, LoginInput{Username: "ana", Password: "secret1"})
	assert.True(t, qerr.IsCode(err, qerr.CodeTooManyAttempts), "got %v", err)
	assert.Equal(t, 1, h.metrics.get("lockout/"))

	// Switching to the email names the same account.
	_, err = h.svc.Login(ctx, LoginInput{Email: "a@x.com", Password: "secret1"})
	assert.True(t, qerr.IsCode(err, qerr.CodeTooManyAttempts), "got %v", err)
}

func TestLoginLockoutCountsAcrossIdentityFields(t *testing.T) {
	throttle := NewKVThrottle(kv.NewMemoryStore(), ThrottleConfig{MaxAttempts: 2, Window: time.Minute})
	h := newHarness(t, throttle)
	register(t, h)
	ctx := context.Background()

	_, err := h.svc.Login(ctx, LoginInput{Username: "ana", Password: "wrong"})
	require.True(t, qerr.IsCode(err, qerr.CodeUnauthorized), "got %v", err)
	_, err = h.svc.Login(ctx, LoginInput{Email: "A@X.com", Password: "wrong"})
	require.True(t, qerr.IsCode(err, qerr.CodeUnauthorized), "got %v", err)

	_, err = h.svc.Login(ctx, LoginInput{Username: "ana", Password: "secret1"})
	assert.True(t, qerr.IsCode(err, qerr.CodeTooManyAttempts), "got %v", err)
}

func TestLoginSuccessResetsFailures(t *testing.T) {
	throttle := NewKVThrottle(kv.NewMemoryStore(), ThrottleConfig{MaxAttempts: 2, Window: time.Minute})
	h := newHarness(t, throttle)
	register(t, h)
	ctx := context.Background()

	_, err := h.svc.Login(ctx, LoginInput{Username: "ana", Password: "wrong"})
	require.Error(t, err)
	login(t, h)
	_, err = h.svc.Login(ctx, LoginInput{Username: "ana", Password: "wrong"})
	require.True(t, qerr.IsCode(err, qerr.CodeUnauthorized))

	login(t, h)
}

func TestRefreshRotatesAndDetectsReuse(t *testing.T) {
	h := newHarness(t, nil)
	u := register(t, h)
	first := login(t, h)
	ctx := context.Background()

	second, err := h.svc.RefreshAccessToken(ctx, first.Tokens.RefreshToken)
	require.NoError(t, err)
	assert.NotEqual(t, first.Tokens.RefreshToken, second.RefreshToken)
	assert.NotEqual(t, first.Tokens.AccessToken, second.AccessToken)

	stored, err := h.store.FindByID(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, second.RefreshToken, stored.RefreshToken)

	_, err = h.svc.RefreshAccessToken(ctx, first.Tokens.RefreshToken)
	require.Error(t, err)
	assert.Equal(t, qerr.CodeUnauthorized, qerr.CodeOf(err))
	assert.Equal(t, msgRefreshUsed, qerr.MessageOf(err, ""))

	_, err = h.svc.RefreshAccessToken(ctx, second.RefreshToken)
	assert.NoError(t, err)
}

func TestLogoutRevokesRefresh(t *testing.T) {
	h := newHarness(t, nil)
	u := register(t, h)
	res := login(t, h)
	ctx := context.Background()

	require.NoError(t, h.svc.Logout(ctx, u.ID))

	stored, err := h.store.FindByID(ctx, u.ID)
	require.NoError(t, err)
	assert.Empty(t, stored.RefreshToken)

	_, err = h.svc.RefreshAccessToken(ctx, res.Tokens.RefreshToken)
	assert.True(t, qerr.IsCode(err, qerr.CodeUnauthorized), "got %v", err)

	assert.True(t, qerr.IsCode(h.svc.Logout(ctx, uuid.NewString()), qerr.CodeNotFound))
}

func TestRefreshRejections(t *testing.T) {
	h := newHarness(t, nil)
	register(t, h)
	res := login(t, h)
	ctx := context.Background()

	_, err := h.svc.RefreshAccessToken(ctx, "  ")
	assert.Equal(t, msgUnauthorized, qerr.MessageOf(err, ""))

	_, err = h.svc.RefreshAccessToken(ctx, res.Tokens.AccessToken)
	assert.True(t, qerr.IsCode(err, qerr.CodeUnauthorized), "access token used for refresh: %v", err)

	foreign := qauth.NewTokenService(qauth.TokenConfig{
		AccessSecret:  strings.Repeat("x", 32),
		AccessTTL:     time.Minute,
		RefreshSecret: strings.Repeat("y", 32),
		RefreshTTL:    time.Hour,
	})
	forged, err := foreign.IssueRefreshToken(res.User.ID)
	require.NoError(t, err)
	_, err = h.svc.RefreshAccessToken(ctx, forged)
	assert.True(t, qerr.IsCode(err, qerr.CodeUnauthorized), "forged: %v", err)

	orphan, err := h.tokens.IssueRefreshToken(uuid.NewString())
	require.NoError(t, err)
	_, err = h.svc.RefreshAccessToken(ctx, orphan)
	assert.Equal(t, msgInvalidRefresh, qerr.MessageOf(err, ""))
}

func TestAuthenticate(t *testing.T) {
	h := newHarness(t, nil)
	u := register(t, h)
	res := login(t, h)
	ctx := context.Background()

	got, err := h.svc.Authenticate(ctx, res.Tokens.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, u.ID, got.ID)

	_, err = h.svc.Authenticate(ctx, "")
	assert.Equal(t, msgUnauthorized, qerr.MessageOf(err, ""))

	foreign := qauth.NewTokenService(qauth.TokenConfig{
		AccessSecret:  strings.Repeat("x", 32),
		AccessTTL:     time.Minute,
		RefreshSecret: strings.Repeat("y", 32),
		RefreshTTL:    time.Hour,
	})
	forged, err := foreign.IssueAccessToken(u.ID)
	require.NoError(t, err)
	_, err = h.svc.Authenticate(ctx, forged)
	assert.True(t, qerr.IsCode(err, qerr.CodeUnauthorized), "forged: %v", err)

	expired, err := testTokens(-time.Minute, time.Hour).IssueAccessToken(u.ID)
	require.NoError(t, err)
	_, err = h.svc.Authenticate(ctx, expired)
	assert.True(t, qerr.IsCode(err, qerr.CodeUnauthorized), "expired: %v", err)
	assert.ErrorIs(t, err, qauth.ErrExpiredToken)

	_, err = h.svc.Authenticate(ctx, res.Tokens.RefreshToken)
	assert.True(t, qerr.IsCode(err, qerr.CodeUnauthorized), "refresh as access: %v", err)

	orphan, err := h.tokens.IssueAccessToken(uuid.NewString())
	require.NoError(t, err)
	_, err = h.svc.Authenticate(ctx, orphan)
	assert.Equal(t, msgInvalidAccess, qerr.MessageOf(err, ""))
}

func TestCurrentUser(t *testing.T) {
	h := newHarness(t, nil)
	u := register(t, h)

	got, err := h.svc.CurrentUser(context.Background(), u.ID)
	require.NoError(t, err)
	assert.Equal(t, u.Username, got.Username)

	_, err = h.svc.CurrentUser(context.Background(), uuid.NewString())
	assert.True(t, qerr.IsCode(err, qerr.CodeNotFound))
}
