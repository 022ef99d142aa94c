package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func clearEnv(t *testing.T) {
	for _, key := range []string{
		"GOOGLE_APPLICATION_CREDENTIALS", "GOOGLE_CLOUD_PROJECT", "OCR_BUCKET_LOCATION",
		"OCR_LANGUAGE_HINTS", "OCR_OPERATION_TIMEOUT", "OCR_INLINE_TIMEOUT", "OCR_MAX_ATTEMPTS",
		"OCR_RETRY_BACKOFF", "OCR_FIRESTORE_COLLECTION", "OCR_LOG_FILE",
	} {
		t.Setenv(key, "")
		require.NoError(t, os.Unsetenv(key))
	}
}

func TestLoadDefaults(t *testing.T) {
	clearEnv(t)
	t.Chdir(t.TempDir())

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "US", cfg.BucketLocation)
	assert.Equal(t, []string{"en"}, cfg.LanguageHints)
	assert.Equal(t, 600*time.Second, cfg.OperationTimeout)
	assert.Equal(t, 300*time.Second, cfg.InlineTimeout)
	assert.Equal(t, 10, cfg.MaxAttempts)
	assert.Equal(t, 2*time.Second, cfg.RetryBackoff)
	assert.Equal(t, "mplog.log", cfg.LogFile)
	assert.Empty(t, cfg.CredentialsFile)
}

func TestLoadEnvFile(t *testing.T) {
	clearEnv(t)
	dir := t.TempDir()
	envFile := filepath.Join(dir, "ocr.env")
	require.NoError(t, os.WriteFile(envFile, []byte(
		"OCR_MAX_ATTEMPTS=3\nOCR_LANGUAGE_HINTS=en,fr\nOCR_OPERATION_TIMEOUT=90s\n"), 0o644))
	t.Setenv("OCR_MAX_ATTEMPTS", "5")

	cfg, err := Load(envFile)
	require.NoError(t, err)

	assert.Equal(t, 5, cfg.MaxAttempts, "process environment wins over the env file")
	assert.Equal(t, []string{"en", "fr"}, cfg.LanguageHints)
	assert.Equal(t, 90*time.Second, cfg.OperationTimeout)
}

func TestLoadRejectsInvalidSettings(t *testing.T) {
	clearEnv(t)
	t.Chdir(t.TempDir())

	t.Setenv("OCR_MAX_ATTEMPTS", "0")
	_, err := Load("")
	assert.ErrorContains(t, err, "OCR_MAX_ATTEMPTS")

	t.Setenv("OCR_MAX_ATTEMPTS", "ten")
	_, err = Load("")
	assert.Error(t, err)

	_, err = Load(filepath.Join(t.TempDir(), "missing.env"))
	assert.Error(t, err)
}

func TestResolveCredentials(t *testing.T) {
	creds := filepath.Join(t.TempDir(), "key.json")
	require.NoError(t, os.WriteFile(creds, []byte(`{"project_id":"proj-from-key"}`), 0o600))

	var cfg Config
	assert.ErrorIs(t, cfg.ResolveCredentials(""), ErrMissingCredentials)

	cfg.CredentialsFile = filepath.Join(t.TempDir(), "absent.json")
	assert.Error(t, cfg.ResolveCredentials(""))

	require.NoError(t, cfg.ResolveCredentials(creds))
	assert.Equal(t, creds, cfg.CredentialsFile)

	require.NoError(t, cfg.ResolveProject(""))
	assert.Equal(t, "proj-from-key", cfg.ProjectID)

	require.NoError(t, cfg.ResolveProject("proj-flag"))
	assert.Equal(t, "proj-flag", cfg.ProjectID)
}

func TestProjectIDFromCredentialsWithoutProject(t *testing.T) {
	creds := filepath.Join(t.TempDir(), "key.json")
	require.NoError(t, os.WriteFile(creds, []byte(`{"type":"service_account"}`), 0o600))

	_, err := ProjectIDFromCredentials(creds)
	assert.ErrorContains(t, err, "no project_id")
}
