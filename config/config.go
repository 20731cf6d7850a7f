package config

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config represents the service configuration - settings from .env plus the palette file
type Config struct {
	Port string `json:"port"`

	// Rendered-text accounting
	SeparatorWidth     int `json:"separator_width"`      // Width of the implicit boundary between non-empty blocks
	DedupePrefixLength int `json:"dedupe_prefix_length"` // Runes of highlight text used in the dedupe signature

	// Shared caches
	CacheSize int `json:"cache_size"` // Entry cap of each bounded LRU (language, strip, color)

	// Streaming sessions
	SessionTTL time.Duration `json:"session_ttl"` // Idle time after which a streaming session is discarded

	// Logging
	DevMode  bool   `json:"dev_mode"`  // Log dropped highlights and other recoverable anomalies
	LogLevel string `json:"log_level"` // logrus level name
	LogDir   string `json:"log_dir"`   // Directory for blockstream.jsonl, stderr when empty

	// Speech
	SpeechCommand []string `json:"speech_command"` // Command and args; text is appended as the last argument

	// Palette (loaded from palette.yaml)
	PaletteFile    string            `json:"palette_file"`
	Colors         map[string]string `json:"colors"`
	SemanticLabels []string          `json:"semantic_labels"`
}

// GetDefaultConfig returns the default configuration
func GetDefaultConfig() *Config {
	return &Config{
		Port:               "3456",
		SeparatorWidth:     1,  // One implicit newline between blocks
		DedupePrefixLength: 50, // Matches the stored-highlight signature
		CacheSize:          500,
		SessionTTL:         10 * time.Minute,
		DevMode:            false,
		LogLevel:           "info",
		LogDir:             "",
		SpeechCommand:      nil,
		PaletteFile:        "palette.yaml",
		Colors:             make(map[string]string),
		SemanticLabels:     nil,
	}
}

// LoadConfigWithEnv loads configuration from .env in the current directory.
// Process environment variables override values from the file.
func LoadConfigWithEnv() (*Config, error) {
	return LoadConfigFromFile(".env")
}

// LoadConfigFromFile loads configuration from the given env file. A missing
// file is not an error; defaults and the process environment apply.
func LoadConfigFromFile(path string) (*Config, error) {
	envVars, err := loadEnvFile(path)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	for _, key := range knownKeys {
		if value, ok := os.LookupEnv(key); ok && value != "" {
			envVars[key] = value
		}
	}

	cfg := GetDefaultConfig()
	if err := cfg.apply(envVars); err != nil {
		return nil, err
	}

	palette, err := LoadPalette(cfg.PaletteFile)
	if err != nil {
		return nil, err
	}
	for name, hex := range palette.Colors {
		cfg.Colors[strings.ToLower(name)] = hex
	}
	if len(palette.SemanticLabels) > 0 {
		cfg.SemanticLabels = palette.SemanticLabels
	}

	return cfg, nil
}

var knownKeys = []string{
	"PORT", "SEPARATOR_WIDTH", "DEDUPE_PREFIX_LENGTH", "CACHE_SIZE", "SESSION_TTL",
	"DEV_MODE", "LOG_LEVEL", "LOG_DIR", "SPEECH_COMMAND", "PALETTE_FILE",
}

func (c *Config) apply(envVars map[string]string) error {
	if port, exists := envVars["PORT"]; exists && port != "" {
		c.Port = port
	}

	if width, exists := envVars["SEPARATOR_WIDTH"]; exists && width != "" {
		n, err := strconv.Atoi(width)
		if err != nil || n < 0 {
			return fmt.Errorf("SEPARATOR_WIDTH must be a non-negative integer, got %q", width)
		}
		c.SeparatorWidth = n
	}

	if prefix, exists := envVars["DEDUPE_PREFIX_LENGTH"]; exists && prefix != "" {
		n, err := strconv.Atoi(prefix)
		if err != nil || n <= 0 {
			return fmt.Errorf("DEDUPE_PREFIX_LENGTH must be a positive integer, got %q", prefix)
		}
		c.DedupePrefixLength = n
	}

	if size, exists := envVars["CACHE_SIZE"]; exists && size != "" {
		n, err := strconv.Atoi(size)
		if err != nil || n <= 0 {
			return fmt.Errorf("CACHE_SIZE must be a positive integer, got %q", size)
		}
		c.CacheSize = n
	}

	if ttl, exists := envVars["SESSION_TTL"]; exists && ttl != "" {
		d, err := time.ParseDuration(ttl)
		if err != nil || d <= 0 {
			return fmt.Errorf("SESSION_TTL must be a positive duration, got %q", ttl)
		}
		c.SessionTTL = d
	}

	// Parse DEV_MODE (optional, defaults to false)
	if devMode, exists := envVars["DEV_MODE"]; exists {
		c.DevMode = devMode == "true" || devMode == "1"
	}

	if level, exists := envVars["LOG_LEVEL"]; exists && level != "" {
		c.LogLevel = strings.ToLower(level)
	}

	if dir, exists := envVars["LOG_DIR"]; exists {
		c.LogDir = dir
	}

	if command, exists := envVars["SPEECH_COMMAND"]; exists && command != "" {
		c.SpeechCommand = strings.Fields(command)
	}

	if palette, exists := envVars["PALETTE_FILE"]; exists && palette != "" {
		c.PaletteFile = palette
	}

	return nil
}

// loadEnvFile loads KEY=VALUE pairs from an env file
func loadEnvFile(path string) (map[string]string, error) {
	envVars := make(map[string]string)

	file, err := os.Open(path)
	if err != nil {
		return envVars, err
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())

		// Skip empty lines and comments
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		// Parse KEY=VALUE format
		parts := strings.SplitN(line, "=", 2)
		if len(parts) != 2 {
			continue
		}

		key := strings.TrimSpace(parts[0])
		value := strings.TrimSpace(parts[1])

		// Remove comments from value
		if commentIndex := strings.Index(value, " #"); commentIndex != -1 {
			value = strings.TrimSpace(value[:commentIndex])
		}
		value = strings.Trim(value, `"'`)

		envVars[key] = value
	}

	return envVars, scanner.Err()
}

// Palette represents the structure of palette.yaml
type Palette struct {
	Colors         map[string]string `yaml:"colors"`
	SemanticLabels []string          `yaml:"semanticLabels"`
}

// LoadPalette loads highlight color overrides and semantic labels.
// Returns an empty palette if the file doesn't exist or is empty (no error).
func LoadPalette(path string) (Palette, error) {
	if path == "" {
		return Palette{}, nil
	}

	file, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Palette{}, nil
		}
		return Palette{}, fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer file.Close()

	var palette Palette
	decoder := yaml.NewDecoder(file)
	if err := decoder.Decode(&palette); err != nil {
		if errors.Is(err, io.EOF) {
			return Palette{}, nil
		}
		return Palette{}, fmt.Errorf("failed to parse %s: %w", path, err)
	}

	for name, hex := range palette.Colors {
		if !IsHexColor(hex) {
			return Palette{}, fmt.Errorf("%s: color %q has invalid hex value %q", path, name, hex)
		}
	}

	return palette, nil
}

// IsHexColor reports whether s is a literal #rgb, #rrggbb or #rrggbbaa value
func IsHexColor(s string) bool {
	if !strings.HasPrefix(s, "#") {
		return false
	}
	digits := s[1:]
	switch len(digits) {
	case 3, 4, 6, 8:
	default:
		return false
	}
	for _, r := range digits {
		if !strings.ContainsRune("0123456789abcdefABCDEF", r) {
			return false
		}
	}
	return true
}
