package qart

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// DiskStore keeps objects under a local directory. The HTTP server exposes
// that directory at BaseURL; it exists so the service can run without an
// object store during development.
type DiskStore struct {
	root    string
	baseURL string
}

func NewDiskStore(root, baseURL string) *DiskStore {
	return &DiskStore{root: root, baseURL: baseURL}
}

// Root is the directory objects are written to.
func (s *DiskStore) Root() string { return s.root }

func (s *DiskStore) EnsureBucket(_ context.Context) error {
	return os.MkdirAll(s.root, 0o755)
}

func (s *DiskStore) path(key string) (string, error) {
	p := filepath.Join(s.root, filepath.FromSlash(key))
	rel, err := filepath.Rel(s.root, p)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("invalid object key %q", key)
	}
	return p, nil
}

func (s *DiskStore) Upload(_ context.Context, key string, reader io.Reader, _ int64, contentType string, metadata map[string]string) (*Object, error) {
	p, err := s.path(key)
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		return nil, err
	}

	f, err := os.Create(p)
	if err != nil {
		return nil, err
	}
	n, copyErr := io.Copy(f, reader)
	closeErr := f.Close()
	if err := errors.Join(copyErr, closeErr); err != nil {
		_ = os.Remove(p)
		return nil, err
	}

	return &Object{
		Key:          key,
		Size:         n,
		ContentType:  contentType,
		LastModified: time.Now(),
		Metadata:     metadata,
		URL:          s.URL(key),
	}, nil
}

func (s *DiskStore) Delete(_ context.Context, key string) error {
	p, err := s.path(key)
	if err != nil {
		return err
	}
	if err := os.Remove(p); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return ErrNotFound
		}
		return err
	}
	return nil
}

func (s *DiskStore) URL(key string) string {
	return joinURL(s.baseURL, "", key)
}

var _ Store = (*DiskStore)(nil)
