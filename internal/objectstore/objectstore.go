// Package objectstore checks that remote dataset sources exist before they
// are registered, using the native SDK of each object store.
package objectstore

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"strings"

	"taotie/internal/config"
	"taotie/internal/domain"
)

// Prober checks that an object exists and is readable.
type Prober interface {
	Exists(ctx context.Context, path string) error
}

// Set dispatches probes by URL scheme. Schemes without a prober are not
// probed; DuckDB reports missing objects itself when the dataset is read.
type Set struct {
	probers map[string]Prober
}

// NewSet creates an empty Set.
func NewSet() *Set {
	return &Set{probers: make(map[string]Prober)}
}

// NewSetFromConfig builds probers for every object store with configured
// credentials.
func NewSetFromConfig(ctx context.Context, cfg *config.Config) (*Set, error) {
	s := NewSet()
	if cfg.HasS3Config() {
		p, err := NewS3Prober(cfg)
		if err != nil {
			return nil, err
		}
		s.Register("s3", p)
	}
	if cfg.HasAzureConfig() {
		p, err := NewAzureProber(cfg.AzureAccount, cfg.AzureKey)
		if err != nil {
			return nil, err
		}
		s.Register("azure", p)
	}
	if cfg.GCSKeyFile != "" {
		p, err := NewGCSProber(ctx, cfg.GCSKeyFile)
		if err != nil {
			return nil, err
		}
		s.Register("gcs", p)
	}
	return s, nil
}

// Register installs the prober for a store: "s3", "azure", or "gcs".
func (s *Set) Register(store string, p Prober) {
	s.probers[store] = p
}

// Probe checks a remote path with the prober of its store. Local paths and
// stores without a prober pass.
func (s *Set) Probe(ctx context.Context, path string) error {
	p, ok := s.probers[storeOf(path)]
	if !ok {
		return nil
	}
	if err := p.Exists(ctx, path); err != nil {
		return err
	}
	return nil
}

// Close releases probers that hold clients.
func (s *Set) Close() error {
	var errs []error
	for _, p := range s.probers {
		if c, ok := p.(io.Closer); ok {
			if err := c.Close(); err != nil {
				errs = append(errs, err)
			}
		}
	}
	return errors.Join(errs...)
}

// storeOf maps a dataset path to the store that serves it, or "".
func storeOf(path string) string {
	switch domain.RemoteScheme(path) {
	case "s3":
		return "s3"
	case "gs", "gcs":
		return "gcs"
	case "az", "abfss":
		return "azure"
	case "https":
		u, err := url.Parse(path)
		if err == nil && strings.HasSuffix(u.Host, ".blob.core.windows.net") {
			return "azure"
		}
	}
	return ""
}

func notFound(path string) error {
	return domain.ErrNotFound("object %q not found", path)
}

func probeError(path string, err error) error {
	return fmt.Errorf("probe %q: %w", path, err)
}
