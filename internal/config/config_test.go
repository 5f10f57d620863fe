package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ayusman/drowsewatch/internal/classifier"
)

var allKeys = []string{
	"DROWSE_CAMERA", "DROWSE_HTTP_ADDR", "DROWSE_DATA_DIR", "DROWSE_POLL_MS",
	"DROWSE_EAR_THRESHOLD", "DROWSE_MAR_THRESHOLD", "DROWSE_EYE_FRAMES", "DROWSE_YAWN_FRAMES",
	"DROWSE_RESET_ON_NO_FACE", "DROWSE_FACE_CASCADE", "DROWSE_LOG_LEVEL", "DROWSE_LOG_DIR",
	"DROWSE_ENV", "DROWSE_TRAY",
}

// clearEnv unsets every DROWSE_* key for the duration of the test.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range allKeys {
		t.Setenv(k, "")
		os.Unsetenv(k)
	}
}

func missingEnvFile(t *testing.T) string {
	return filepath.Join(t.TempDir(), "absent.env")
}

func TestLoad_Defaults(t *testing.T) {
	clearEnv(t)

	cfg, err := Load(missingEnvFile(t))
	require.NoError(t, err)

	assert.Equal(t, "0", cfg.Camera)
	assert.Equal(t, ":8080", cfg.HTTPAddr)
	assert.Equal(t, 10*time.Millisecond, cfg.PollInterval)
	assert.Equal(t, classifier.DefaultConfig(), cfg.Classifier())
	assert.Equal(t, "info", cfg.LogLevel)
	assert.True(t, cfg.Tray)
	assert.Empty(t, cfg.FaceCascade)
	assert.Equal(t, filepath.Join(cfg.DataDir, "logs"), cfg.LogDir)
	assert.Equal(t, filepath.Join(cfg.DataDir, "drowsewatch.db"), cfg.DBPath())
}

func TestLoad_Overrides(t *testing.T) {
	clearEnv(t)
	dir := t.TempDir()
	t.Setenv("DROWSE_CAMERA", "/videos/night.mp4")
	t.Setenv("DROWSE_DATA_DIR", dir)
	t.Setenv("DROWSE_POLL_MS", "33")
	t.Setenv("DROWSE_EAR_THRESHOLD", "0.22")
	t.Setenv("DROWSE_MAR_THRESHOLD", "0.5")
	t.Setenv("DROWSE_EYE_FRAMES", "8")
	t.Setenv("DROWSE_YAWN_FRAMES", "4")
	t.Setenv("DROWSE_RESET_ON_NO_FACE", "true")
	t.Setenv("DROWSE_ENV", "test")
	t.Setenv("DROWSE_TRAY", "false")

	cfg, err := Load(missingEnvFile(t))
	require.NoError(t, err)

	assert.Equal(t, "/videos/night.mp4", cfg.Camera)
	assert.Equal(t, dir, cfg.DataDir)
	assert.Equal(t, 33*time.Millisecond, cfg.PollInterval)
	assert.True(t, cfg.IsTest())
	assert.False(t, cfg.Tray)
	assert.Equal(t, classifier.Config{
		EyeClosedThreshold: 0.22,
		YawnThreshold:      0.5,
		EyeConsecFrames:    8,
		YawnConsecFrames:   4,
		ResetOnNoFace:      true,
	}, cfg.Classifier())
}

func TestLoad_DotEnvFile(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(path, []byte("DROWSE_CAMERA=2\nDROWSE_YAWN_FRAMES=6\n"), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "2", cfg.Camera)
	assert.Equal(t, 6, cfg.YawnConsecFrames)
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		key   string
		value string
	}{
		{"DROWSE_POLL_MS", "fast"},
		{"DROWSE_POLL_MS", "0"},
		{"DROWSE_EAR_THRESHOLD", "low"},
		{"DROWSE_EAR_THRESHOLD", "-0.1"},
		{"DROWSE_EYE_FRAMES", "0"},
		{"DROWSE_RESET_ON_NO_FACE", "sometimes"},
	}

	for _, tt := range tests {
		t.Run(tt.key+"="+tt.value, func(t *testing.T) {
			clearEnv(t)
			t.Setenv(tt.key, tt.value)

			_, err := Load(missingEnvFile(t))
			assert.ErrorIs(t, err, ErrInvalid)
		})
	}
}
