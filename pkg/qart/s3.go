package qart

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// mediaCacheControl is sent with every upload. Media keys embed a fresh
// uuid, so an object never changes under a given URL.
const mediaCacheControl = "public, max-age=31536000, immutable"

// S3Store keeps media in an S3-compatible bucket (MinIO in development).
// Objects under the media prefixes are world-readable so avatar URLs work
// straight from the browser.
type S3Store struct {
	client    *minio.Client
	bucket    string
	region    string
	publicURL string
}

type S3Config struct {
	Endpoint  string // host:port, e.g. "localhost:9000"
	AccessKey string
	SecretKey string
	Bucket    string
	Region    string
	UseSSL    bool
	// PublicURL is the base URL browsers use to fetch objects, e.g. a CDN.
	// Defaults to the endpoint with path-style bucket addressing.
	PublicURL string
}

func NewS3Store(cfg S3Config) (*S3Store, error) {
	if cfg.Bucket == "" {
		return nil, ErrBucketMissing
	}

	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
		Region: cfg.Region,
	})
	if err != nil {
		return nil, fmt.Errorf("create s3 client: %w", err)
	}

	publicURL := cfg.PublicURL
	if publicURL == "" {
		publicURL = client.EndpointURL().String()
	}

	return &S3Store{
		client:    client,
		bucket:    cfg.Bucket,
		region:    cfg.Region,
		publicURL: publicURL,
	}, nil
}

// EnsureBucket creates the media bucket when missing and opens the media
// prefixes for anonymous reads.
func (s *S3Store) EnsureBucket(ctx context.Context) error {
	exists, err := s.client.BucketExists(ctx, s.bucket)
	if err != nil {
		return fmt.Errorf("check bucket %s: %w", s.bucket, err)
	}
	if !exists {
		if err := s.client.MakeBucket(ctx, s.bucket, minio.MakeBucketOptions{Region: s.region}); err != nil {
			return fmt.Errorf("create bucket %s: %w", s.bucket, err)
		}
	}

	policy, err := publicReadPolicy(s.bucket, Kinds()...)
	if err != nil {
		return err
	}
	if err := s.client.SetBucketPolicy(ctx, s.bucket, policy); err != nil {
		return fmt.Errorf("set bucket policy: %w", err)
	}
	return nil
}

func (s *S3Store) Upload(ctx context.Context, key string, reader io.Reader, size int64, contentType string, metadata map[string]string) (*Object, error) {
	info, err := s.client.PutObject(ctx, s.bucket, key, reader, size, minio.PutObjectOptions{
		ContentType:  contentType,
		CacheControl: mediaCacheControl,
		UserMetadata: metadata,
	})
	if err != nil {
		return nil, err
	}

	return &Object{
		Key:          info.Key,
		Bucket:       info.Bucket,
		Size:         info.Size,
		ContentType:  contentType,
		LastModified: time.Now(),
		Metadata:     metadata,
		URL:          s.URL(info.Key),
	}, nil
}

func (s *S3Store) Delete(ctx context.Context, key string) error {
	err := s.client.RemoveObject(ctx, s.bucket, key, minio.RemoveObjectOptions{})
	if err != nil {
		var resp minio.ErrorResponse
		if errors.As(err, &resp) && resp.Code == "NoSuchKey" {
			return ErrNotFound
		}
		return err
	}
	return nil
}

func (s *S3Store) URL(key string) string {
	return joinURL(s.publicURL, s.bucket, key)
}

type policyStatement struct {
	Effect    string            `json:"Effect"`
	Principal map[string]string `json:"Principal"`
	Action    []string          `json:"Action"`
	Resource  []string          `json:"Resource"`
}

type bucketPolicy struct {
	Version   string            `json:"Version"`
	Statement []policyStatement `json:"Statement"`
}

// publicReadPolicy grants anonymous GetObject on the given media prefixes
// and nothing else; listing the bucket stays private.
func publicReadPolicy(bucket string, kinds ...Kind) (string, error) {
	resources := make([]string, 0, len(kinds))
	for _, k := range kinds {
		resources = append(resources, fmt.Sprintf("arn:aws:s3:::%s/%s/*", bucket, k))
	}

	b, err := json.Marshal(bucketPolicy{
		Version: "2012-10-17",
		Statement: []policyStatement{{
			Effect:    "Allow",
			Principal: map[string]string{"AWS": "*"},
			Action:    []string{"s3:GetObject"},
			Resource:  resources,
		}},
	})
	if err != nil {
		return "", fmt.Errorf("encode bucket policy: %w", err)
	}
	return string(b), nil
}

var _ Store = (*S3Store)(nil)
