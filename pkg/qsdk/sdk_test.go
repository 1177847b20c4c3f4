package qsdk

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/quatton/qtube/pkg/credstore"
	"github.com/quatton/qtube/pkg/kv"
	"github.com/quatton/qtube/pkg/qapi"
	"github.com/quatton/qtube/pkg/qapi/config"
	"github.com/quatton/qtube/pkg/qapi/routes"
	"github.com/quatton/qtube/pkg/qapi/services"
	"github.com/quatton/qtube/pkg/qart"
	"github.com/quatton/qtube/pkg/qerr"
	"github.com/quatton/qtube/pkg/qlog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memTokens struct {
	mu      sync.Mutex
	entries map[string][2]string
}

func (m *memTokens) Save(baseURL, access, refresh string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.entries == nil {
		m.entries = map[string][2]string{}
	}
	m.entries[normalizeKey(baseURL)] = [2]string{access, refresh}
	return nil
}

func (m *memTokens) Load(baseURL string) (string, string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e := m.entries[normalizeKey(baseURL)]
	return e[0], e[1], nil
}

func (m *memTokens) Delete(baseURL string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.entries, normalizeKey(baseURL))
	return nil
}

// newServer runs the real API over in-memory backends.
func newServer(t *testing.T, accessTTL time.Duration) *httptest.Server {
	t.Helper()
	cfg := &config.EnvConfig{
		Environment:        "test",
		AccessTokenSecret:  strings.Repeat("a", 32),
		AccessTokenExpiry:  accessTTL,
		RefreshTokenSecret: strings.Repeat("r", 32),
		RefreshTokenExpiry: time.Hour,
		BcryptCost:         4,
		UploadDir:          t.TempDir(),
		MaxUploadBytes:     1 << 20,
	}
	svcs := services.NewServices(cfg, services.Backends{
		Store:   credstore.NewMemoryStore(),
		KV:      kv.NewMemoryStore(),
		Objects: qart.NewDiskStore(t.TempDir(), "http://media.local"),
	}, qlog.NewDiscard())

	a := qapi.NewApi(qapi.Options{Quiet: true})
	routes.RegisterAPI(a.Api, svcs)

	srv := httptest.NewServer(a.Router)
	t.Cleanup(srv.Close)
	return srv
}

func newClient(t *testing.T, srv *httptest.Server, store TokenStore) *Sdk {
	t.Helper()
	sdk, err := NewSdk(&Config{BaseURL: srv.URL, APIVersion: "v1"}, store)
	require.NoError(t, err)
	return sdk
}

func writeAvatar(t *testing.T) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), "avatar.png")
	require.NoError(t, os.WriteFile(p, []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR"), 0o600))
	return p
}

func registerAna(t *testing.T, sdk *Sdk) {
	t.Helper()
	_, err := sdk.Register(context.Background(), RegisterRequest{
		FullName:   "Ana",
		Email:      "a@x.com",
		Username:   "ana",
		Password:   "secret1",
		AvatarPath: writeAvatar(t),
	})
	require.NoError(t, err)
}

func TestSdkLoginMeLogout(t *testing.T) {
	srv := newServer(t, time.Hour)
	store := &memTokens{}
	sdk := newClient(t, srv, store)
	ctx := context.Background()

	registerAna(t, sdk)

	user, err := sdk.Login(ctx, "ana", "", "secret1")
	require.NoError(t, err)
	assert.Equal(t, "ana", user.Username)

	access, refresh, _ := store.Load(srv.URL)
	assert.Equal(t, sdk.Token, access)
	assert.Equal(t, sdk.RefreshToken, refresh)

	// A fresh client picks the tokens up from the store.
	again := newClient(t, srv, store)
	me, err := again.Me(ctx)
	require.NoError(t, err)
	assert.Equal(t, "a@x.com", me.Email)

	require.NoError(t, again.Logout(ctx))
	access, refresh, _ = store.Load(srv.URL)
	assert.Empty(t, access)
	assert.Empty(t, refresh)

	_, err = again.Me(ctx)
	assert.True(t, qerr.IsCode(err, qerr.CodeUnauthorized), "got %v", err)
}

func TestSdkRefreshesExpiringToken(t *testing.T) {
	// Shorter than the refresh skew, so every access token looks stale.
	srv := newServer(t, 10*time.Second)
	store := &memTokens{}
	sdk := newClient(t, srv, store)
	ctx := context.Background()

	registerAna(t, sdk)
	_, err := sdk.Login(ctx, "", "a@x.com", "secret1")
	require.NoError(t, err)
	before := sdk.RefreshToken

	_, err = sdk.Me(ctx)
	require.NoError(t, err)
	assert.NotEqual(t, before, sdk.RefreshToken)

	_, refresh, _ := store.Load(srv.URL)
	assert.Equal(t, sdk.RefreshToken, refresh)
}

func TestSdkErrors(t *testing.T) {
	srv := newServer(t, time.Hour)
	sdk := newClient(t, srv, &memTokens{})
	ctx := context.Background()

	_, err := sdk.Login(ctx, "ghost", "", "secret1")
	assert.True(t, qerr.IsCode(err, qerr.CodeNotFound), "got %v", err)
	assert.Equal(t, "user does not exist", qerr.MessageOf(err, ""))

	_, err = sdk.Me(ctx)
	assert.True(t, qerr.IsCode(err, qerr.CodeUnauthorized), "got %v", err)

	sdk.RefreshToken = "stale"
	err = sdk.Refresh(ctx)
	assert.True(t, qerr.IsCode(err, qerr.CodeRefreshFailed), "got %v", err)

	registerAna(t, sdk)
	_, err = sdk.Register(ctx, RegisterRequest{
		FullName: "Ana", Email: "a@x.com", Username: "ana", Password: "secret1", AvatarPath: writeAvatar(t),
	})
	assert.True(t, qerr.IsCode(err, qerr.CodeConflict), "got %v", err)
}

func TestHandleUnauthorized(t *testing.T) {
	store := &memTokens{}
	require.NoError(t, store.Save("http://x", "a", "r"))
	sdk := &Sdk{BaseURL: "http://x", Token: "a", RefreshToken: "r", tokens: store}

	assert.False(t, sdk.HandleUnauthorized(qerr.NotFound("nope")))
	assert.Equal(t, "a", sdk.Token)

	assert.True(t, sdk.HandleUnauthorized(qerr.Unauthorized("expired")))
	assert.Empty(t, sdk.Token)
	access, _, _ := store.Load("http://x")
	assert.Empty(t, access)
}

func TestAuthRequestEditor(t *testing.T) {
	srv := newServer(t, time.Hour)
	store := &memTokens{}
	sdk := newClient(t, srv, store)
	ctx := context.Background()

	req, err := http.NewRequest(http.MethodGet, srv.URL, nil)
	require.NoError(t, err)

	// Without credentials only the public calls get through.
	err = sdk.authRequestEditor(ctx, req)
	assert.True(t, qerr.IsCode(err, qerr.CodeUnauthorized), "got %v", err)
	require.NoError(t, sdk.authRequestEditor(withoutAuth(ctx), req))
	assert.Empty(t, req.Header.Get("Authorization"))

	registerAna(t, sdk)
	_, err = sdk.Login(ctx, "ana", "", "secret1")
	require.NoError(t, err)

	require.NoError(t, sdk.authRequestEditor(ctx, req))
	assert.Equal(t, "Bearer "+sdk.Token, req.Header.Get("Authorization"))
	assert.Equal(t, "application/json", req.Header.Get("Accept"))
}

func TestSdkRefreshFailureKeepsMessage(t *testing.T) {
	srv := newServer(t, time.Hour)
	sdk := newClient(t, srv, &memTokens{})
	ctx := context.Background()

	registerAna(t, sdk)
	_, err := sdk.Login(ctx, "ana", "", "secret1")
	require.NoError(t, err)
	used := sdk.RefreshToken
	require.NoError(t, sdk.Refresh(ctx))

	// A rotated-out refresh token fails the implicit refresh before /me.
	sdk.Token = ""
	sdk.RefreshToken = used
	_, err = sdk.Me(ctx)
	assert.True(t, qerr.IsCode(err, qerr.CodeRefreshFailed), "got %v", err)
	assert.NotEmpty(t, qerr.MessageOf(err, ""))
}
