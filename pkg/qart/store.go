// Package qart stores user media (avatars, cover images) in an
// S3-compatible bucket, or on local disk for development.
package qart

import (
	"context"
	"io"
	"path"
	"strings"
	"time"
)

// Object describes a stored media object.
type Object struct {
	Key          string            `json:"key"` // e.g. "avatars/2f1c.../a1b2.png"
	Bucket       string            `json:"bucket"`
	Size         int64             `json:"size"`
	ContentType  string            `json:"content_type"`
	LastModified time.Time         `json:"last_modified"`
	Metadata     map[string]string `json:"metadata"`
	URL          string            `json:"url"` // public URL the browser can fetch
}

// Store defines the media storage operations the upload path needs.
type Store interface {
	// Upload writes size bytes from reader under key. A size of -1 streams
	// with an unknown length.
	Upload(ctx context.Context, key string, reader io.Reader, size int64, contentType string, metadata map[string]string) (*Object, error)

	// Delete removes an object by key.
	Delete(ctx context.Context, key string) error

	// URL returns the public URL for key.
	URL(key string) string

	// EnsureBucket ensures the bucket exists, creating it if necessary.
	EnsureBucket(ctx context.Context) error
}

// Kind groups media objects under a key prefix.
type Kind string

const (
	KindAvatar     Kind = "avatars"
	KindCoverImage Kind = "covers"
)

// Kinds lists every media prefix.
func Kinds() []Kind { return []Kind{KindAvatar, KindCoverImage} }

// MediaKey returns the object key for a media file. ext includes the dot
// (".png") and may be empty.
func MediaKey(kind Kind, id, ext string) string {
	return path.Join(string(kind), id+strings.ToLower(ext))
}

func joinURL(base, bucket, key string) string {
	base = strings.TrimRight(base, "/")
	if bucket == "" {
		return base + "/" + key
	}
	return base + "/" + bucket + "/" + key
}
