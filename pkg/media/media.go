// Package media turns uploaded files sitting on local disk into public URLs
// by pushing them to the object store.
package media

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"
	"github.com/quatton/qtube/pkg/qart"
	"github.com/quatton/qtube/pkg/qlog"
)

var (
	ErrNoFile          = errors.New("media: no file")
	ErrUnsupportedType = errors.New("media: unsupported content type")
)

// Uploader resolves a local file into a public URL.
type Uploader interface {
	Upload(ctx context.Context, kind qart.Kind, localPath string) (string, error)
}

// Service uploads images to a qart.Store. The local file is consumed: it is
// removed once the upload has been attempted, whatever the outcome.
type Service struct {
	store  qart.Store
	logger *qlog.Logger
}

func NewService(store qart.Store, logger *qlog.Logger) *Service {
	return &Service{store: store, logger: logger}
}

func (s *Service) Upload(ctx context.Context, kind qart.Kind, localPath string) (string, error) {
	if localPath == "" {
		return "", ErrNoFile
	}
	defer s.discard(localPath)

	mime, err := mimetype.DetectFile(localPath)
	if err != nil {
		return "", fmt.Errorf("detect content type: %w", err)
	}
	if !strings.HasPrefix(mime.String(), "image/") {
		return "", fmt.Errorf("%w: %s", ErrUnsupportedType, mime.String())
	}

	f, err := os.Open(localPath)
	if err != nil {
		return "", fmt.Errorf("open upload: %w", err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return "", fmt.Errorf("stat upload: %w", err)
	}

	key := qart.MediaKey(kind, uuid.NewString(), mime.Extension())
	obj, err := s.store.Upload(ctx, key, f, info.Size(), mime.String(), map[string]string{
		"kind": string(kind),
	})
	if err != nil {
		return "", fmt.Errorf("upload %s: %w", key, err)
	}

	s.logger.Debug("media uploaded", "key", obj.Key, "size", obj.Size)
	return obj.URL, nil
}

func (s *Service) discard(localPath string) {
	if err := os.Remove(localPath); err != nil && !errors.Is(err, os.ErrNotExist) {
		s.logger.Warn("failed to remove local upload", "path", localPath, "error", err)
	}
}

var _ Uploader = (*Service)(nil)
