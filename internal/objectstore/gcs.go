package objectstore

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"cloud.google.com/go/storage"
	"google.golang.org/api/option"
)

var _ Prober = (*GCSProber)(nil)

// GCSProber checks objects on Google Cloud Storage by reading their attributes.
type GCSProber struct {
	client *storage.Client
}

// NewGCSProber creates a prober authenticated with a service account key file.
func NewGCSProber(ctx context.Context, keyFile string) (*GCSProber, error) {
	if keyFile == "" {
		return nil, fmt.Errorf("GCS key file is required")
	}
	client, err := storage.NewClient(ctx, option.WithAuthCredentialsFile(option.ServiceAccount, keyFile))
	if err != nil {
		return nil, fmt.Errorf("create GCS client: %w", err)
	}
	return &GCSProber{client: client}, nil
}

// Exists reads the object's attributes.
func (p *GCSProber) Exists(ctx context.Context, path string) error {
	bucket, key, err := parseGCSPath(path)
	if err != nil {
		return err
	}
	if _, err := p.client.Bucket(bucket).Object(key).Attrs(ctx); err != nil {
		if errors.Is(err, storage.ErrObjectNotExist) || errors.Is(err, storage.ErrBucketNotExist) {
			return notFound(path)
		}
		return probeError(path, err)
	}
	return nil
}

// Close releases the client.
func (p *GCSProber) Close() error {
	return p.client.Close()
}

// parseGCSPath extracts bucket and key from a "gs://bucket/path/to/file" URI.
// The gcs:// spelling accepted by DuckDB is treated the same.
func parseGCSPath(path string) (bucket, key string, err error) {
	u, err := url.Parse(path)
	if err != nil {
		return "", "", fmt.Errorf("parse GCS path %q: %w", path, err)
	}
	if u.Scheme != "gs" && u.Scheme != "gcs" {
		return "", "", fmt.Errorf("expected gs:// scheme, got %q in %q", u.Scheme, path)
	}
	bucket = u.Host
	key = strings.TrimPrefix(u.Path, "/")
	if key == "" {
		return "", "", fmt.Errorf("empty key in GCS path %q", path)
	}
	return bucket, key, nil
}
