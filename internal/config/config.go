// Package config handles configuration loading and management for Loom.
// It supports XDG config paths, project-level overrides, and environment variables.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/viper"
)

// Config holds all configuration for the engine.
type Config struct {
	Assess   AssessConfig   `mapstructure:"assess"`
	Chunks   ChunksConfig   `mapstructure:"chunks"`
	Dispatch DispatchConfig `mapstructure:"dispatch"`
	Registry RegistryConfig `mapstructure:"registry"`
	Research ResearchConfig `mapstructure:"research"`
	Gates    GatesConfig    `mapstructure:"gates"`
	Taxonomy TaxonomyConfig `mapstructure:"taxonomy"`
}

// AssessConfig holds complexity assessment settings.
type AssessConfig struct {
	// DecompositionThreshold is the aggregate score at or above which
	// decomposition is recommended (0-10 scale).
	DecompositionThreshold float64 `mapstructure:"decomposition_threshold"`
}

// ChunksConfig holds decomposition sizing bounds.
type ChunksConfig struct {
	// MinUnits is the smallest allowed chunk size in work units.
	MinUnits int `mapstructure:"min_units"`
	// MaxUnits is the largest allowed chunk size in work units.
	MaxUnits int `mapstructure:"max_units"`
}

// DispatchConfig holds orchestration policy settings.
type DispatchConfig struct {
	// MaxRetries is the retry budget per chunk after the first attempt.
	MaxRetries int `mapstructure:"max_retries"`
	// MaxParallel is the default global concurrency cap, used when a
	// request does not declare one.
	MaxParallel int `mapstructure:"max_parallel"`
	// PollInterval is the supervisor loop tick when no work is ready.
	PollInterval time.Duration `mapstructure:"poll_interval"`
	// TimeoutSmall is the per-chunk timeout for small chunks.
	TimeoutSmall time.Duration `mapstructure:"timeout_small"`
	// TimeoutMedium is the per-chunk timeout for medium chunks.
	TimeoutMedium time.Duration `mapstructure:"timeout_medium"`
	// TimeoutLarge is the per-chunk timeout for large chunks.
	TimeoutLarge time.Duration `mapstructure:"timeout_large"`
}

// RegistryConfig holds worker registry settings.
type RegistryConfig struct {
	// SnapshotTTL is how long a registry snapshot stays fresh.
	SnapshotTTL time.Duration `mapstructure:"snapshot_ttl"`
	// Agents optionally defines a static agent pool for CLI runs.
	Agents []StaticAgent `mapstructure:"agents"`
}

// StaticAgent defines one agent in a config-declared pool.
type StaticAgent struct {
	ID       string   `mapstructure:"id"`
	Tags     []string `mapstructure:"tags"`
	Capacity int      `mapstructure:"capacity"`
}

// ResearchConfig holds lookup service settings for external gate validation.
type ResearchConfig struct {
	// URL is the lookup service endpoint; empty disables external validation.
	URL string `mapstructure:"url"`
	// Timeout is the hard timeout for a single lookup.
	Timeout time.Duration `mapstructure:"timeout"`
}

// GatesConfig holds quality gate toggles.
type GatesConfig struct {
	// Content enables the content-completeness gate for deliverable chunks.
	Content bool `mapstructure:"content"`
	// Shape enables the schema/shape gate for chunks feeding dependents.
	Shape bool `mapstructure:"shape"`
	// External enables the research-backed validation check.
	External bool `mapstructure:"external"`
}

// TaxonomyConfig points at the capability taxonomy file.
type TaxonomyConfig struct {
	// Path is the YAML taxonomy file; empty uses the built-in taxonomy.
	Path string `mapstructure:"path"`
	// Watch enables hot-reloading the taxonomy when the file changes.
	Watch bool `mapstructure:"watch"`
}

// Load loads configuration from XDG paths, project overrides, and environment variables.
// Precedence (highest to lowest):
// 1. Environment variables (LOOM_*)
// 2. Project config (.loom.yaml in current directory or parent)
// 3. User config (~/.config/loom/config.yaml)
// 4. Built-in defaults
func Load() (*Config, error) {
	v := viper.New()
	setDefaults(v)

	userConfigDir := getUserConfigDir()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(userConfigDir)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("reading user config: %w", err)
		}
	}

	projectConfig := findProjectConfig()
	if projectConfig != "" {
		projectViper := viper.New()
		projectViper.SetConfigFile(projectConfig)
		if err := projectViper.ReadInConfig(); err == nil {
			if err := v.MergeConfigMap(projectViper.AllSettings()); err != nil {
				return nil, fmt.Errorf("merging project config: %w", err)
			}
		}
	}

	v.SetEnvPrefix("LOOM")
	v.AutomaticEnv()
	v.BindEnv("research.url", "LOOM_RESEARCH_URL")

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	return cfg, nil
}

// LoadFromPath loads configuration from a specific path (for testing).
func LoadFromPath(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("reading config from %s: %w", path, err)
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	return cfg, nil
}

// GetUserConfigPath returns the path to the user config file.
func GetUserConfigPath() string {
	return filepath.Join(getUserConfigDir(), "config.yaml")
}

// GetProjectConfigPath returns the path to the project config file if it exists.
func GetProjectConfigPath() string {
	return findProjectConfig()
}

// setDefaults configures default values.
func setDefaults(v *viper.Viper) {
	// Assessment defaults
	v.SetDefault("assess.decomposition_threshold", 7.0)

	// Chunk sizing defaults
	v.SetDefault("chunks.min_units", 1)
	v.SetDefault("chunks.max_units", 8)

	// Dispatch defaults
	v.SetDefault("dispatch.max_retries", 2)
	v.SetDefault("dispatch.max_parallel", 4)
	v.SetDefault("dispatch.poll_interval", "50ms")
	v.SetDefault("dispatch.timeout_small", "2m")
	v.SetDefault("dispatch.timeout_medium", "5m")
	v.SetDefault("dispatch.timeout_large", "10m")

	// Registry defaults
	v.SetDefault("registry.snapshot_ttl", "30s")

	// Research defaults
	v.SetDefault("research.url", "")
	v.SetDefault("research.timeout", "10s")

	// Gate defaults
	v.SetDefault("gates.content", true)
	v.SetDefault("gates.shape", true)
	v.SetDefault("gates.external", false)

	// Taxonomy defaults
	v.SetDefault("taxonomy.path", "")
	v.SetDefault("taxonomy.watch", false)
}

// getUserConfigDir returns the XDG config directory for Loom.
func getUserConfigDir() string {
	if xdgConfig := os.Getenv("XDG_CONFIG_HOME"); xdgConfig != "" {
		return filepath.Join(xdgConfig, "loom")
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".", ".config", "loom")
	}
	return filepath.Join(home, ".config", "loom")
}

// findProjectConfig searches for .loom.yaml in the current directory and parents.
func findProjectConfig() string {
	cwd, err := os.Getwd()
	if err != nil {
		return ""
	}

	for {
		configPath := filepath.Join(cwd, ".loom.yaml")
		if _, err := os.Stat(configPath); err == nil {
			return configPath
		}

		parent := filepath.Dir(cwd)
		if parent == cwd {
			break
		}
		cwd = parent
	}

	return ""
}

// TimeoutForSize returns the per-chunk timeout for a size class name
// ("small", "medium", "large"). Unknown sizes get the medium timeout.
func (c *DispatchConfig) TimeoutForSize(size string) time.Duration {
	switch size {
	case "small":
		return c.TimeoutSmall
	case "large":
		return c.TimeoutLarge
	default:
		return c.TimeoutMedium
	}
}

// Default returns a Config with default values.
func Default() *Config {
	return &Config{
		Assess: AssessConfig{
			DecompositionThreshold: 7.0,
		},
		Chunks: ChunksConfig{
			MinUnits: 1,
			MaxUnits: 8,
		},
		Dispatch: DispatchConfig{
			MaxRetries:    2,
			MaxParallel:   4,
			PollInterval:  50 * time.Millisecond,
			TimeoutSmall:  2 * time.Minute,
			TimeoutMedium: 5 * time.Minute,
			TimeoutLarge:  10 * time.Minute,
		},
		Registry: RegistryConfig{
			SnapshotTTL: 30 * time.Second,
		},
		Research: ResearchConfig{
			Timeout: 10 * time.Second,
		},
		Gates: GatesConfig{
			Content: true,
			Shape:   true,
		},
	}
}
