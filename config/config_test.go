package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// clearEnv neutralizes process environment overrides for the duration of a test
func clearEnv(t *testing.T) {
	for _, key := range knownKeys {
		t.Setenv(key, "")
	}
}

// TestDefaults tests that the default configuration matches the documented values
func TestDefaults(t *testing.T) {
	cfg := GetDefaultConfig()

	assert.Equal(t, "3456", cfg.Port)
	assert.Equal(t, 1, cfg.SeparatorWidth)
	assert.Equal(t, 50, cfg.DedupePrefixLength)
	assert.Equal(t, 500, cfg.CacheSize)
	assert.Equal(t, 10*time.Minute, cfg.SessionTTL)
	assert.False(t, cfg.DevMode)
	assert.NotNil(t, cfg.Colors)
}

// TestLoadConfigFromFile tests .env parsing
func TestLoadConfigFromFile(t *testing.T) {
	clearEnv(t)
	dir := t.TempDir()
	envPath := filepath.Join(dir, ".env")
	envContent := `# blockstream settings
PORT=8080
SEPARATOR_WIDTH=2
DEDUPE_PREFIX_LENGTH=20
CACHE_SIZE=64
SESSION_TTL=90s
DEV_MODE=true
LOG_LEVEL=DEBUG
SPEECH_COMMAND=say -v Samantha
PALETTE_FILE=` + filepath.Join(dir, "missing.yaml") + `
`
	require.NoError(t, os.WriteFile(envPath, []byte(envContent), 0644))

	cfg, err := LoadConfigFromFile(envPath)
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, 2, cfg.SeparatorWidth)
	assert.Equal(t, 20, cfg.DedupePrefixLength)
	assert.Equal(t, 64, cfg.CacheSize)
	assert.Equal(t, 90*time.Second, cfg.SessionTTL)
	assert.True(t, cfg.DevMode)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, []string{"say", "-v", "Samantha"}, cfg.SpeechCommand)
}

// TestLoadConfigMissingFile tests that a missing .env falls back to defaults
func TestLoadConfigMissingFile(t *testing.T) {
	clearEnv(t)
	dir := t.TempDir()
	t.Setenv("PALETTE_FILE", filepath.Join(dir, "palette.yaml"))

	cfg, err := LoadConfigFromFile(filepath.Join(dir, ".env"))
	require.NoError(t, err)
	assert.Equal(t, GetDefaultConfig().Port, cfg.Port)
}

// TestEnvironmentOverridesFile tests that process environment wins over the file
func TestEnvironmentOverridesFile(t *testing.T) {
	clearEnv(t)
	dir := t.TempDir()
	envPath := filepath.Join(dir, ".env")
	require.NoError(t, os.WriteFile(envPath, []byte("PORT=8080\nPALETTE_FILE=none.yaml\n"), 0644))
	t.Setenv("PORT", "9090")

	cfg, err := LoadConfigFromFile(envPath)
	require.NoError(t, err)
	assert.Equal(t, "9090", cfg.Port)
}

// TestInvalidValues tests that malformed numeric settings are rejected
func TestInvalidValues(t *testing.T) {
	tests := []struct {
		name string
		line string
	}{
		{"negative separator", "SEPARATOR_WIDTH=-1"},
		{"non numeric cache", "CACHE_SIZE=lots"},
		{"zero prefix", "DEDUPE_PREFIX_LENGTH=0"},
		{"bad ttl", "SESSION_TTL=soon"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearEnv(t)
			envPath := filepath.Join(t.TempDir(), ".env")
			require.NoError(t, os.WriteFile(envPath, []byte(tt.line+"\n"), 0644))

			_, err := LoadConfigFromFile(envPath)
			assert.Error(t, err)
		})
	}
}

// TestLoadPalette tests palette.yaml parsing and merging into the config
func TestLoadPalette(t *testing.T) {
	clearEnv(t)
	dir := t.TempDir()
	palettePath := filepath.Join(dir, "palette.yaml")
	paletteContent := `colors:
  Coral: "#ff7f50"
  yellow: "#ffff00"
semanticLabels:
  - "Important:"
  - "Heads up:"
`
	require.NoError(t, os.WriteFile(palettePath, []byte(paletteContent), 0644))
	envPath := filepath.Join(dir, ".env")
	require.NoError(t, os.WriteFile(envPath, []byte("PALETTE_FILE="+palettePath+"\n"), 0644))

	cfg, err := LoadConfigFromFile(envPath)
	require.NoError(t, err)

	assert.Equal(t, "#ff7f50", cfg.Colors["coral"])
	assert.Equal(t, "#ffff00", cfg.Colors["yellow"])
	assert.Equal(t, []string{"Important:", "Heads up:"}, cfg.SemanticLabels)
}

// TestLoadPaletteRejectsBadHex tests palette validation
func TestLoadPaletteRejectsBadHex(t *testing.T) {
	palettePath := filepath.Join(t.TempDir(), "palette.yaml")
	require.NoError(t, os.WriteFile(palettePath, []byte("colors:\n  coral: orange-ish\n"), 0644))

	_, err := LoadPalette(palettePath)
	assert.Error(t, err)
}

// TestLoadPaletteEmptyFile tests that a palette file with no documents is not an error
func TestLoadPaletteEmptyFile(t *testing.T) {
	for _, content := range []string{"", "\n", "# overrides go here\n"} {
		palettePath := filepath.Join(t.TempDir(), "palette.yaml")
		require.NoError(t, os.WriteFile(palettePath, []byte(content), 0644))

		palette, err := LoadPalette(palettePath)
		require.NoError(t, err, "%q", content)
		assert.Empty(t, palette.Colors)
		assert.Empty(t, palette.SemanticLabels)
	}
}

func TestIsHexColor(t *testing.T) {
	tests := []struct {
		in   string
		want bool
	}{
		{"#fff", true},
		{"#FEF08A", true},
		{"#fef08a80", true},
		{"fef08a", false},
		{"#ggg", false},
		{"#12345", false},
		{"yellow", false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, IsHexColor(tt.in), tt.in)
	}
}
