// Package storage publishes build outputs to a local directory or an
// S3-compatible bucket.
package storage

import (
	"context"
	"fmt"
	"io"
	"time"
)

// Object represents a published file
type Object struct {
	Key             string    `json:"key" yaml:"key"`
	Size            int64     `json:"size" yaml:"size"`
	ContentType     string    `json:"content_type" yaml:"content_type"`
	ContentEncoding string    `json:"content_encoding,omitempty" yaml:"content_encoding,omitempty"`
	LastModified    time.Time `json:"last_modified" yaml:"last_modified"`
	ETag            string    `json:"etag,omitempty" yaml:"etag,omitempty"`
}

// UploadOptions contains options for uploading files
type UploadOptions struct {
	ContentType     string
	ContentEncoding string
	CacheControl    string
	Metadata        map[string]string
}

// Provider is the interface publishing targets implement
type Provider interface {
	// Upload stores data under key, replacing any previous object
	Upload(ctx context.Context, key string, data io.Reader, size int64, opts *UploadOptions) (*Object, error)

	// Exists checks if an object exists
	Exists(ctx context.Context, key string) (bool, error)

	Name() string
	Health(ctx context.Context) error
}

// Config selects and configures a provider
type Config struct {
	Enabled   bool   `mapstructure:"enabled" yaml:"enabled"`
	Provider  string `mapstructure:"provider" yaml:"provider"` // local or s3
	LocalPath string `mapstructure:"local_path" yaml:"local_path"`
	Bucket    string `mapstructure:"bucket" yaml:"bucket"`
	Prefix    string `mapstructure:"prefix" yaml:"prefix"`
	Endpoint  string `mapstructure:"endpoint" yaml:"endpoint"`
	AccessKey string `mapstructure:"access_key" yaml:"access_key"`
	SecretKey string `mapstructure:"secret_key" yaml:"secret_key"`
	Region    string `mapstructure:"region" yaml:"region"`
	UseSSL    bool   `mapstructure:"use_ssl" yaml:"use_ssl"`
	// CacheControl is sent with every upload when set
	CacheControl string `mapstructure:"cache_control" yaml:"cache_control"`
	SkipExisting bool   `mapstructure:"skip_existing" yaml:"skip_existing"`
}

// Validate checks that the selected provider has what it needs
func (c *Config) Validate() error {
	if !c.Enabled {
		return nil
	}
	switch c.Provider {
	case "local":
		if c.LocalPath == "" {
			return fmt.Errorf("publish.local_path is required for the local provider")
		}
	case "s3":
		if c.Endpoint == "" {
			return fmt.Errorf("publish.endpoint is required for the s3 provider")
		}
		if c.Bucket == "" {
			return fmt.Errorf("publish.bucket is required for the s3 provider")
		}
	default:
		return fmt.Errorf("publish.provider must be one of: local, s3 (got %q)", c.Provider)
	}
	return nil
}

// NewProvider creates the provider selected by cfg
func NewProvider(cfg Config) (Provider, error) {
	switch cfg.Provider {
	case "local":
		return NewLocalStorage(nil, cfg.LocalPath)
	case "s3":
		return NewS3Storage(cfg.Endpoint, cfg.AccessKey, cfg.SecretKey, cfg.Region, cfg.Bucket, cfg.UseSSL)
	default:
		return nil, fmt.Errorf("unsupported publish provider: %s", cfg.Provider)
	}
}
