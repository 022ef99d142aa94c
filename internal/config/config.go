// Package config resolves runtime settings from the environment, an optional
// .env file and command-line overrides.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// DefaultEnvFile is loaded when present and no other file is named.
const DefaultEnvFile = ".env"

var ErrMissingCredentials = errors.New("no credentials file given: pass --credentials or set GOOGLE_APPLICATION_CREDENTIALS")

type Config struct {
	CredentialsFile     string        `env:"GOOGLE_APPLICATION_CREDENTIALS"`
	ProjectID           string        `env:"GOOGLE_CLOUD_PROJECT"`
	BucketLocation      string        `env:"OCR_BUCKET_LOCATION" envDefault:"US"`
	LanguageHints       []string      `env:"OCR_LANGUAGE_HINTS" envDefault:"en" envSeparator:","`
	OperationTimeout    time.Duration `env:"OCR_OPERATION_TIMEOUT" envDefault:"600s"`
	InlineTimeout       time.Duration `env:"OCR_INLINE_TIMEOUT" envDefault:"300s"`
	MaxAttempts         int           `env:"OCR_MAX_ATTEMPTS" envDefault:"10"`
	RetryBackoff        time.Duration `env:"OCR_RETRY_BACKOFF" envDefault:"2s"`
	FirestoreCollection string        `env:"OCR_FIRESTORE_COLLECTION"`
	LogFile             string        `env:"OCR_LOG_FILE" envDefault:"mplog.log"`
}

// Load reads envFile (DefaultEnvFile when empty, skipped if absent) into the
// process environment without overriding variables already set, then parses
// the environment.
func Load(envFile string) (Config, error) {
	path := envFile
	if path == "" {
		path = DefaultEnvFile
	}
	if _, err := os.Stat(path); err == nil {
		if err := godotenv.Load(path); err != nil {
			return Config{}, fmt.Errorf("failed to load env file %s: %w", path, err)
		}
	} else if envFile != "" {
		return Config{}, fmt.Errorf("failed to stat env file %s: %w", envFile, err)
	}

	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("failed to parse environment: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate rejects settings the pipeline cannot run with.
func (c *Config) Validate() error {
	switch {
	case c.MaxAttempts < 1:
		return fmt.Errorf("OCR_MAX_ATTEMPTS must be at least 1, got %d", c.MaxAttempts)
	case c.OperationTimeout <= 0:
		return fmt.Errorf("OCR_OPERATION_TIMEOUT must be positive, got %s", c.OperationTimeout)
	case c.InlineTimeout <= 0:
		return fmt.Errorf("OCR_INLINE_TIMEOUT must be positive, got %s", c.InlineTimeout)
	case c.RetryBackoff < 0:
		return fmt.Errorf("OCR_RETRY_BACKOFF must not be negative, got %s", c.RetryBackoff)
	}
	return nil
}

// ResolveCredentials applies a --credentials override and checks that a
// readable credentials file is configured.
func (c *Config) ResolveCredentials(override string) error {
	if override != "" {
		c.CredentialsFile = override
	}
	if c.CredentialsFile == "" {
		return ErrMissingCredentials
	}
	if _, err := os.Stat(c.CredentialsFile); err != nil {
		return fmt.Errorf("failed to read credentials file: %w", err)
	}
	return nil
}

// ResolveProject picks the project from the override, the environment or the
// credentials file, in that order.
func (c *Config) ResolveProject(override string) error {
	if override != "" {
		c.ProjectID = override
	}
	if c.ProjectID != "" {
		return nil
	}
	id, err := ProjectIDFromCredentials(c.CredentialsFile)
	if err != nil {
		return err
	}
	c.ProjectID = id
	return nil
}

// ProjectIDFromCredentials reads project_id from a service account key file.
func ProjectIDFromCredentials(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("failed to read credentials file %s: %w", path, err)
	}
	var key struct {
		ProjectID string `json:"project_id"`
	}
	if err := json.Unmarshal(data, &key); err != nil {
		return "", fmt.Errorf("failed to parse credentials file %s: %w", path, err)
	}
	if key.ProjectID == "" {
		return "", fmt.Errorf("credentials file %s has no project_id; set GOOGLE_CLOUD_PROJECT or pass --project", path)
	}
	return key.ProjectID, nil
}
