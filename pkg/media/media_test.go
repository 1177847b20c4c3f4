package media

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/quatton/qtube/pkg/qart"
	"github.com/quatton/qtube/pkg/qlog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var pngHeader = []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR\x00\x00\x00\x01\x00\x00\x00\x01\x08\x06\x00\x00\x00")

type fakeStore struct {
	keys        []string
	contentType string
	body        string
	err         error
}

func (f *fakeStore) Upload(_ context.Context, key string, r io.Reader, size int64, contentType string, _ map[string]string) (*qart.Object, error) {
	if f.err != nil {
		return nil, f.err
	}
	b, _ := io.ReadAll(r)
	f.keys = append(f.keys, key)
	f.contentType = contentType
	f.body = string(b)
	return &qart.Object{Key: key, Size: size, URL: "https://cdn.test/" + key}, nil
}
func (f *fakeStore) Delete(context.Context, string) error { return nil }
func (f *fakeStore) URL(key string) string                { return "https://cdn.test/" + key }
func (f *fakeStore) EnsureBucket(context.Context) error   { return nil }

func writeTemp(t *testing.T, name string, data []byte) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(p, data, 0o600))
	return p
}

func TestUpload_Image(t *testing.T) {
	store := &fakeStore{}
	svc := NewService(store, qlog.NewDiscard())
	p := writeTemp(t, "avatar.png", pngHeader)

	url, err := svc.Upload(context.Background(), qart.KindAvatar, p)
	require.NoError(t, err)

	require.Len(t, store.keys, 1)
	assert.True(t, strings.HasPrefix(store.keys[0], "avatars/"))
	assert.True(t, strings.HasSuffix(store.keys[0], ".png"))
	assert.Equal(t, "image/png", store.contentType)
	assert.Equal(t, "https://cdn.test/"+store.keys[0], url)

	_, statErr := os.Stat(p)
	assert.True(t, errors.Is(statErr, os.ErrNotExist), "local file should be removed after upload")
}

func TestUpload_RejectsNonImage(t *testing.T) {
	store := &fakeStore{}
	svc := NewService(store, qlog.NewDiscard())
	p := writeTemp(t, "notes.txt", []byte("just some text"))

	_, err := svc.Upload(context.Background(), qart.KindCoverImage, p)
	require.ErrorIs(t, err, ErrUnsupportedType)
	assert.Empty(t, store.keys)

	_, statErr := os.Stat(p)
	assert.True(t, errors.Is(statErr, os.ErrNotExist), "rejected file should still be removed")
}

func TestUpload_StoreFailure(t *testing.T) {
	store := &fakeStore{err: errors.New("bucket offline")}
	svc := NewService(store, qlog.NewDiscard())
	p := writeTemp(t, "avatar.png", pngHeader)

	_, err := svc.Upload(context.Background(), qart.KindAvatar, p)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "bucket offline")
}

func TestUpload_NoPath(t *testing.T) {
	svc := NewService(&fakeStore{}, qlog.NewDiscard())
	_, err := svc.Upload(context.Background(), qart.KindAvatar, "")
	require.ErrorIs(t, err, ErrNoFile)
}
