package config

import (
	"os"
	"path/filepath"

	"github.com/spf13/viper"
)

// Config represents the complete handsplit configuration
type Config struct {
	Split   SplitConfig   `mapstructure:"split"`
	Batch   BatchConfig   `mapstructure:"batch"`
	Ledger  LedgerConfig  `mapstructure:"ledger"`
	Logging LoggingConfig `mapstructure:"logging"`
	Server  ServerConfig  `mapstructure:"server"`
}

// SplitConfig controls how a performance is split into hands
type SplitConfig struct {
	// SplitPoint is the pitch at or above which the fixed-threshold policy
	// assigns a note to the right hand (default: 60, middle C)
	SplitPoint int `mapstructure:"split_point"`
	// OutputDir is where split files are written. Empty means next to the source.
	OutputDir string `mapstructure:"output_dir"`
	// SimpleSuffix is appended to the source stem for the fixed-threshold output
	SimpleSuffix string `mapstructure:"simple_suffix"`
	// SmartSuffix is appended to the source stem for the adaptive-centroid output
	SmartSuffix string `mapstructure:"smart_suffix"`
}

// BatchConfig controls directory batch processing
type BatchConfig struct {
	// Workers is the number of files split in parallel (1-64)
	Workers int `mapstructure:"workers"`
	// Extensions lists the file extensions picked up by discovery
	Extensions []string `mapstructure:"extensions"`
	// MaxFiles caps the number of discovered files (0 = unlimited)
	MaxFiles int `mapstructure:"max_files"`
}

// LedgerConfig controls the SQLite run ledger
type LedgerConfig struct {
	Enabled bool `mapstructure:"enabled"`
	// Path is the database file. Empty means ledger.db in the config directory.
	Path string `mapstructure:"path"`
}

// LoggingConfig controls structured logging
type LoggingConfig struct {
	// Level is one of debug, info, warn, error
	Level string `mapstructure:"level"`
	// Dir is the directory for handsplit.log. Empty means stderr.
	Dir string `mapstructure:"dir"`
}

// ServerConfig controls the REST API server
type ServerConfig struct {
	Port int `mapstructure:"port"`
}

// Default returns a Config with sensible default values
func Default() *Config {
	return &Config{
		Split: SplitConfig{
			SplitPoint:   60,
			OutputDir:    "",
			SimpleSuffix: "_simple",
			SmartSuffix:  "_smart",
		},
		Batch: BatchConfig{
			Workers:    4,
			Extensions: []string{".mid", ".midi"},
			MaxFiles:   0,
		},
		Ledger: LedgerConfig{
			Enabled: false,
			Path:    "",
		},
		Logging: LoggingConfig{
			Level: "info",
			Dir:   "",
		},
		Server: ServerConfig{
			Port: 8080,
		},
	}
}

// SetDefaults registers default values with viper
func SetDefaults() {
	defaults := Default()

	viper.SetDefault("split.split_point", defaults.Split.SplitPoint)
	viper.SetDefault("split.output_dir", defaults.Split.OutputDir)
	viper.SetDefault("split.simple_suffix", defaults.Split.SimpleSuffix)
	viper.SetDefault("split.smart_suffix", defaults.Split.SmartSuffix)

	viper.SetDefault("batch.workers", defaults.Batch.Workers)
	viper.SetDefault("batch.extensions", defaults.Batch.Extensions)
	viper.SetDefault("batch.max_files", defaults.Batch.MaxFiles)

	viper.SetDefault("ledger.enabled", defaults.Ledger.Enabled)
	viper.SetDefault("ledger.path", defaults.Ledger.Path)

	viper.SetDefault("logging.level", defaults.Logging.Level)
	viper.SetDefault("logging.dir", defaults.Logging.Dir)

	viper.SetDefault("server.port", defaults.Server.Port)
}

// Load reads the configuration from viper into a Config struct and validates it
func Load() (*Config, error) {
	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	if errs := cfg.Validate(); len(errs) > 0 {
		return nil, ValidationErrors(errs)
	}

	return &cfg, nil
}

// LedgerPath returns the resolved ledger database path
func (c *LedgerConfig) LedgerPath() string {
	if c.Path != "" {
		return c.Path
	}
	return filepath.Join(ConfigDir(), "ledger.db")
}

// ConfigDir returns the path to the user's config directory
func ConfigDir() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "handsplit")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ".handsplit"
	}
	return filepath.Join(home, ".config", "handsplit")
}

// ConfigFile returns the path to the config file
func ConfigFile() string {
	return filepath.Join(ConfigDir(), "config.yaml")
}
