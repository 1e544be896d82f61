package engine

import (
	"context"
	"fmt"
	"log/slog"

	"taotie/internal/config"
	"taotie/internal/ddl"
)

// Secret names registered from configuration.
const (
	S3SecretName    = "taotie_s3"
	AzureSecretName = "taotie_azure"
	GCSSecretName   = "taotie_gcs"
)

// CreateS3Secret creates a named DuckDB secret for S3-compatible storage.
func (e *Engine) CreateS3Secret(ctx context.Context, name, keyID, secret, endpoint, region, urlStyle string) error {
	secretSQL, err := ddl.CreateS3Secret(name, keyID, secret, endpoint, region, urlStyle)
	if err != nil {
		return fmt.Errorf("build DDL: %w", err)
	}
	if _, err := e.db.ExecContext(ctx, secretSQL); err != nil {
		return fmt.Errorf("create S3 secret %q: %w", name, err)
	}
	return nil
}

// CreateAzureSecret creates a named DuckDB secret for Azure Blob Storage.
func (e *Engine) CreateAzureSecret(ctx context.Context, name, accountName, accountKey string) error {
	if err := e.EnsureExtension(ctx, "azure"); err != nil {
		return err
	}
	secretSQL, err := ddl.CreateAzureSecret(name, accountName, accountKey)
	if err != nil {
		return fmt.Errorf("build DDL: %w", err)
	}
	if _, err := e.db.ExecContext(ctx, secretSQL); err != nil {
		return fmt.Errorf("create Azure secret %q: %w", name, err)
	}
	return nil
}

// CreateGCSSecret creates a named DuckDB secret for Google Cloud Storage HMAC keys.
func (e *Engine) CreateGCSSecret(ctx context.Context, name, keyID, secret string) error {
	secretSQL, err := ddl.CreateGCSSecret(name, keyID, secret)
	if err != nil {
		return fmt.Errorf("build DDL: %w", err)
	}
	if _, err := e.db.ExecContext(ctx, secretSQL); err != nil {
		return fmt.Errorf("create GCS secret %q: %w", name, err)
	}
	return nil
}

// Setup loads the default extensions and registers one secret per
// configured object store.
func (e *Engine) Setup(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	if cfg.LoadExtensions {
		if err := e.InstallExtensions(ctx, "httpfs", "json"); err != nil {
			return err
		}
	}

	if cfg.HasS3Config() {
		if err := e.CreateS3Secret(ctx, S3SecretName,
			*cfg.S3KeyID, *cfg.S3Secret, *cfg.S3Endpoint, *cfg.S3Region, cfg.S3URLStyle); err != nil {
			return err
		}
		logger.Debug("registered object store secret", "secret", S3SecretName)
	}
	if cfg.HasAzureConfig() {
		if err := e.CreateAzureSecret(ctx, AzureSecretName, cfg.AzureAccount, cfg.AzureKey); err != nil {
			return err
		}
		logger.Debug("registered object store secret", "secret", AzureSecretName)
	}
	if cfg.HasGCSConfig() {
		if err := e.CreateGCSSecret(ctx, GCSSecretName, cfg.GCSHMACKeyID, cfg.GCSHMACKey); err != nil {
			return err
		}
		logger.Debug("registered object store secret", "secret", GCSSecretName)
	}
	return nil
}
