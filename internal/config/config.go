// Package config loads agentbook settings from AGENTBOOK_-prefixed environment variables.
package config

import (
	"fmt"
	"strings"

	"github.com/kelseyhightower/envconfig"
	"github.com/rs/zerolog"
)

// Prefix is the environment variable prefix processed by New.
const Prefix = "AGENTBOOK"

// Storage drivers accepted by STORAGE_DRIVER.
const (
	StorageMemory   = "memory"
	StorageSQLite   = "sqlite"
	StoragePostgres = "postgres"
)

// Blob drivers accepted by BLOB_DRIVER.
const (
	BlobFilesystem = "fs"
	BlobMemory     = "memory"
	BlobS3         = "s3"
)

// Config holds the configuration for the record store and its archive.
// Environment variables are parsed from the AGENTBOOK_ prefix, for example
// AGENTBOOK_STORAGE_DRIVER or AGENTBOOK_BLOB_S3_BUCKET.
type Config struct {
	ServiceName string `envconfig:"SERVICE_NAME" default:"agentbook"`
	LogLevel    string `envconfig:"LOG_LEVEL" default:"info"`

	StorageDriver string `envconfig:"STORAGE_DRIVER" default:"memory"`
	SQLitePath    string `envconfig:"SQLITE_PATH" default:"agentbook.db"`
	PostgresDSN   string `envconfig:"POSTGRES_DSN" default:""`

	// IDLength is the length of generated policy, contract and appointment IDs.
	IDLength int `envconfig:"ID_LENGTH" default:"6"`

	Blob Blob `envconfig:"BLOB"`
}

// Blob configures the archive blob store.
type Blob struct {
	Driver      string `envconfig:"DRIVER" default:"fs"`
	FSRoot      string `envconfig:"FS_ROOT" default:"./blobdata"`
	S3Bucket    string `envconfig:"S3_BUCKET" default:""`
	S3Region    string `envconfig:"S3_REGION" default:"us-east-1"`
	S3Endpoint  string `envconfig:"S3_ENDPOINT" default:""`
	S3PathStyle bool   `envconfig:"S3_PATH_STYLE" default:"false"`
}

// ResolveDefaults normalizes driver names and validates the combination of settings.
func (c *Config) ResolveDefaults() error {
	c.StorageDriver = strings.ToLower(strings.TrimSpace(c.StorageDriver))
	if c.StorageDriver == "" {
		c.StorageDriver = StorageMemory
	}
	switch c.StorageDriver {
	case StorageMemory, StorageSQLite, StoragePostgres:
	default:
		return fmt.Errorf("unsupported STORAGE_DRIVER: %s", c.StorageDriver)
	}

	c.Blob.Driver = strings.ToLower(strings.TrimSpace(c.Blob.Driver))
	if c.Blob.Driver == "" {
		c.Blob.Driver = BlobFilesystem
	}
	switch c.Blob.Driver {
	case BlobFilesystem, BlobMemory:
	case BlobS3:
		if c.Blob.S3Bucket == "" {
			return fmt.Errorf("BLOB_S3_BUCKET required for s3 blob driver")
		}
	default:
		return fmt.Errorf("unsupported BLOB_DRIVER: %s", c.Blob.Driver)
	}

	if c.IDLength <= 0 {
		return fmt.Errorf("ID_LENGTH must be positive, got %d", c.IDLength)
	}
	if _, err := zerolog.ParseLevel(strings.ToLower(c.LogLevel)); err != nil {
		return fmt.Errorf("unsupported LOG_LEVEL: %s", c.LogLevel)
	}
	return nil
}

// New creates a Config by parsing environment variables and resolving defaults.
func New() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(Prefix, &cfg); err != nil {
		return nil, fmt.Errorf("failed to process environment variables: %w", err)
	}
	if err := cfg.ResolveDefaults(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// NewForTesting returns an in-memory configuration with no environment lookups.
func NewForTesting() *Config {
	return &Config{
		ServiceName:   "agentbook-test",
		LogLevel:      "debug",
		StorageDriver: StorageMemory,
		IDLength:      6,
		Blob:          Blob{Driver: BlobMemory, S3Region: "us-east-1"},
	}
}

// Log writes the effective configuration at info level. Secrets are reported
// only by presence.
func (c *Config) Log(log zerolog.Logger) {
	log.Info().
		Str("storage_driver", c.StorageDriver).
		Str("sqlite_path", c.SQLitePath).
		Bool("postgres_dsn_present", c.PostgresDSN != "").
		Int("id_length", c.IDLength).
		Str("blob_driver", c.Blob.Driver).
		Str("blob_fs_root", c.Blob.FSRoot).
		Str("blob_s3_bucket", c.Blob.S3Bucket).
		Str("blob_s3_endpoint", c.Blob.S3Endpoint).
		Msg("Configuration loaded")
}
