package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfigDefaults(t *testing.T) {
	cfg, err := LoadConfig(t.TempDir())
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.Port)
	assert.True(t, cfg.IsLocal())
	assert.Equal(t, "learnplatform", cfg.TableName)
	assert.Equal(t, 15, cfg.UploadURLTTLMins)
	assert.Equal(t, []string{"*"}, cfg.Origins())
}

func TestLoadConfigFileAndEnv(t *testing.T) {
	dir := t.TempDir()
	file := "STAGE=dev\nTABLE_NAME=from-file\nACCESS_SECRET=file-secret\nUPLOAD_URL_TTL_MINUTES=5\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, "app.env"), []byte(file), 0o600))
	t.Setenv("TABLE_NAME", "from-env")
	t.Setenv("ALLOWED_ORIGINS", "https://a.example, https://b.example,")

	cfg, err := LoadConfig(dir)
	require.NoError(t, err)

	assert.Equal(t, "dev", cfg.Stage)
	assert.False(t, cfg.IsLocal())
	assert.Equal(t, "from-env", cfg.TableName)
	assert.Equal(t, "file-secret", cfg.AccessSecret)
	assert.Equal(t, 5, cfg.UploadURLTTLMins)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.Origins())
}
