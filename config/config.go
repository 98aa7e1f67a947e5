package config

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"tagpipe/correction"
	"tagpipe/format"
	"tagpipe/types"

	"gopkg.in/yaml.v3"
)

// Defaults for settings not present in .env or the environment
const (
	DefaultPort          = "3457"
	DefaultLogLevel      = "INFO"
	DefaultMaxBodyBytes  = 1 << 20
	DefaultOverridesFile = "format_overrides.yaml"
)

// Config represents the tagpipe configuration assembled from .env, the
// process environment and format_overrides.yaml
type Config struct {
	Port     string `json:"port"`
	LogDir   string `json:"log_dir"`   // Empty logs to stderr
	LogLevel string `json:"log_level"` // DEBUG, INFO, WARN, ERROR

	// Output settings
	DefaultFormat  format.Format  `json:"default_format"`
	OutputLanguage types.Language `json:"output_language"` // Language used by natural and weighted
	FormatOptions  format.Options `json:"format_options"`

	// Validation settings
	LongEntryLimit int `json:"long_entry_limit"` // en length above which entries are split

	// Server settings
	MaxBodyBytes int64 `json:"max_body_bytes"`

	OverridesFile string `json:"overrides_file"`

	// Warnings collects non-fatal problems found while loading, for the caller to log
	Warnings []string `json:"-"`
}

// GetDefaultConfig returns a default configuration for testing
func GetDefaultConfig() *Config {
	return &Config{
		Port:           DefaultPort,
		LogLevel:       DefaultLogLevel,
		DefaultFormat:  format.FormatSDXL,
		OutputLanguage: types.LanguageEN,
		FormatOptions:  format.DefaultOptions(),
		LongEntryLimit: correction.DefaultLongEntryLimit,
		MaxBodyBytes:   DefaultMaxBodyBytes,
		OverridesFile:  DefaultOverridesFile,
	}
}

// LoadConfigWithEnv loads configuration from ./.env (optional) and the process environment
func LoadConfigWithEnv() (*Config, error) {
	return Load(".env", os.LookupEnv)
}

// Load builds a Config from envFile and lookup. Values from lookup win over
// the file; a missing file is not an error.
func Load(envFile string, lookup func(string) (string, bool)) (*Config, error) {
	envVars, err := loadEnvFile(envFile)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("failed to read %s: %w", envFile, err)
	}

	get := func(key string) (string, bool) {
		if lookup != nil {
			if v, ok := lookup(key); ok && v != "" {
				return v, true
			}
		}
		v, ok := envVars[key]
		return v, ok && v != ""
	}

	cfg := GetDefaultConfig()

	if port, ok := get("PORT"); ok {
		if _, err := strconv.Atoi(port); err != nil {
			return nil, fmt.Errorf("PORT must be numeric, got %q", port)
		}
		cfg.Port = port
	}

	if dir, ok := get("LOG_DIR"); ok {
		cfg.LogDir = dir
	}

	if level, ok := get("LOG_LEVEL"); ok {
		validLevels := map[string]bool{"DEBUG": true, "INFO": true, "WARN": true, "ERROR": true}
		if validLevels[strings.ToUpper(level)] {
			cfg.LogLevel = strings.ToUpper(level)
		} else {
			cfg.warnf("invalid LOG_LEVEL %q, using %s", level, DefaultLogLevel)
		}
	}

	if id, ok := get("DEFAULT_FORMAT"); ok {
		f, err := format.ParseFormat(id)
		if err != nil {
			return nil, fmt.Errorf("DEFAULT_FORMAT: %w", err)
		}
		cfg.DefaultFormat = f
	}

	if lang, ok := get("OUTPUT_LANGUAGE"); ok {
		cfg.OutputLanguage = types.ParseLanguage(lang)
	}
	cfg.FormatOptions.Language = cfg.OutputLanguage

	if size, ok := get("MAX_BODY_BYTES"); ok {
		n, err := strconv.ParseInt(size, 10, 64)
		if err != nil || n <= 0 {
			cfg.warnf("invalid MAX_BODY_BYTES %q, using %d", size, DefaultMaxBodyBytes)
		} else {
			cfg.MaxBodyBytes = n
		}
	}

	if path, ok := get("FORMAT_OVERRIDES_FILE"); ok {
		cfg.OverridesFile = path
	}

	// Continue with defaults instead of failing on a bad overrides file
	overrides, err := LoadFormatOverrides(cfg.OverridesFile)
	if err != nil {
		cfg.warnf("failed to load %s: %v", cfg.OverridesFile, err)
	} else {
		cfg.applyOverrides(overrides)
	}

	return cfg, nil
}

func (c *Config) warnf(msg string, args ...interface{}) {
	c.Warnings = append(c.Warnings, fmt.Sprintf(msg, args...))
}

// FormatOverrides represents the structure of format_overrides.yaml
type FormatOverrides struct {
	FluxHighThreshold    *float64 `yaml:"fluxHighThreshold"`
	FluxLowThreshold     *float64 `yaml:"fluxLowThreshold"`
	ImageFXNaturalPrefix *string  `yaml:"imagefxNaturalPrefix"`
	LongEntryLimit       *int     `yaml:"longEntryLimit"`
}

// LoadFormatOverrides reads the YAML overrides file.
// Returns empty overrides if the file doesn't exist (no error).
func LoadFormatOverrides(path string) (FormatOverrides, error) {
	file, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return FormatOverrides{}, nil
		}
		return FormatOverrides{}, fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer file.Close()

	var overrides FormatOverrides
	decoder := yaml.NewDecoder(file)
	if err := decoder.Decode(&overrides); err != nil {
		if errors.Is(err, io.EOF) {
			return FormatOverrides{}, nil
		}
		return FormatOverrides{}, fmt.Errorf("failed to parse %s: %w", path, err)
	}
	return overrides, nil
}

// applyOverrides merges YAML overrides, keeping defaults for invalid values
func (c *Config) applyOverrides(o FormatOverrides) {
	high, low := c.FormatOptions.FluxHighThreshold, c.FormatOptions.FluxLowThreshold
	if o.FluxHighThreshold != nil {
		high = *o.FluxHighThreshold
	}
	if o.FluxLowThreshold != nil {
		low = *o.FluxLowThreshold
	}
	if low < high && low >= types.MinWeight && high <= types.MaxWeight {
		c.FormatOptions.FluxHighThreshold = high
		c.FormatOptions.FluxLowThreshold = low
	} else {
		c.warnf("flux thresholds low=%v high=%v must satisfy %v <= low < high <= %v, keeping defaults",
			low, high, types.MinWeight, types.MaxWeight)
	}

	if o.ImageFXNaturalPrefix != nil {
		c.FormatOptions.ImageFXNaturalPrefix = *o.ImageFXNaturalPrefix
	}

	if o.LongEntryLimit != nil {
		if *o.LongEntryLimit > 0 {
			c.LongEntryLimit = *o.LongEntryLimit
		} else {
			c.warnf("longEntryLimit must be positive, got %d", *o.LongEntryLimit)
		}
	}
}

// loadEnvFile loads KEY=VALUE pairs from path
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

		parts := strings.SplitN(line, "=", 2)
		if len(parts) != 2 {
			continue
		}

		key := strings.TrimSpace(parts[0])
		value := strings.TrimSpace(parts[1])

		// Remove comments from value
		if commentIndex := strings.Index(value, "#"); commentIndex != -1 {
			value = strings.TrimSpace(value[:commentIndex])
		}

		envVars[key] = strings.Trim(value, `"'`)
	}

	return envVars, scanner.Err()
}
