// Package config loads pagemark configuration from file and environment.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/spf13/viper"

	"github.com/metcalfc/pagemark/internal/content"
	"github.com/metcalfc/pagemark/internal/domain"
	"github.com/metcalfc/pagemark/internal/pagecount"
)

const envPrefix = "PAGEMARK"

// Config holds all application configuration
type Config struct {
	Paths   PathsConfig   `mapstructure:"paths"`
	Render  RenderConfig  `mapstructure:"render"`
	Workers int           `mapstructure:"workers"` // page count pool size
	Logging LoggingConfig `mapstructure:"logging"`
}

// PathsConfig holds storage locations
type PathsConfig struct {
	Data      string `mapstructure:"data"`      // state database directory
	Extracted string `mapstructure:"extracted"` // extracted chapter markup
	Edited    string `mapstructure:"edited"`    // user-edited chapters
}

// RenderConfig holds the default rendering parameters
type RenderConfig struct {
	LinesPerPage   int     `mapstructure:"lines_per_page"`
	FontSize       float64 `mapstructure:"font_size"`
	ViewportWidth  float64 `mapstructure:"viewport_width"`
	ViewportHeight float64 `mapstructure:"viewport_height"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	File  string `mapstructure:"file"`
	Level string `mapstructure:"level"`
}

// Params returns the configured rendering parameters.
func (r RenderConfig) Params() domain.RenderingParameters {
	return domain.RenderingParameters{
		LinesPerPage:   r.LinesPerPage,
		FontSize:       r.FontSize,
		ViewportWidth:  r.ViewportWidth,
		ViewportHeight: r.ViewportHeight,
	}
}

// Dirs returns the chapter cache roots.
func (p PathsConfig) Dirs() content.Dirs {
	return content.Dirs{Extracted: p.Extracted, Edited: p.Edited}
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("paths.data", defaultDataPath())
	// Empty cache and log paths are derived from paths.data after loading.
	v.SetDefault("paths.extracted", "")
	v.SetDefault("paths.edited", "")
	v.SetDefault("render.lines_per_page", 8)
	v.SetDefault("render.font_size", 12.0)
	v.SetDefault("render.viewport_width", 80.0)
	v.SetDefault("render.viewport_height", 24.0)
	v.SetDefault("workers", pagecount.DefaultWorkers)
	v.SetDefault("logging.file", "")
	v.SetDefault("logging.level", "INFO")
}

// defaultDataPath returns the default data directory for the current OS
func defaultDataPath() string {
	switch runtime.GOOS {
	case "windows":
		return filepath.Join(os.Getenv("APPDATA"), "pagemark")
	default:
		home, _ := os.UserHomeDir()
		return filepath.Join(home, ".local", "share", "pagemark")
	}
}

// defaultConfigPath returns the default config directory for the current OS
func defaultConfigPath() string {
	switch runtime.GOOS {
	case "windows":
		return filepath.Join(os.Getenv("APPDATA"), "pagemark")
	default:
		home, _ := os.UserHomeDir()
		return filepath.Join(home, ".config", "pagemark")
	}
}

// Load reads configuration from file and PAGEMARK_* environment variables.
// An empty file searches config.yaml in the default config directory and the
// working directory; a missing file there is not an error.
func Load(file string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	if file != "" {
		v.SetConfigFile(file)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(defaultConfigPath())
		v.AddConfigPath(".")
	}

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if file != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("error parsing config: %w", err)
	}

	cfg.Paths.Data = expandHome(cfg.Paths.Data)
	cfg.Paths.Extracted = orJoin(expandHome(cfg.Paths.Extracted), cfg.Paths.Data, "saved_books")
	cfg.Paths.Edited = orJoin(expandHome(cfg.Paths.Edited), cfg.Paths.Data, "edited_books")
	cfg.Logging.File = orJoin(expandHome(cfg.Logging.File), cfg.Paths.Data, "pagemark.log")

	if err := cfg.Render.Params().Validate(); err != nil {
		return nil, fmt.Errorf("render.lines_per_page %d: %w", cfg.Render.LinesPerPage, err)
	}
	return cfg, nil
}

// expandHome replaces a leading ~ with the user's home directory.
func expandHome(path string) string {
	if !strings.HasPrefix(path, "~") {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(home, path[1:])
}

func orJoin(path, dir, name string) string {
	if path != "" {
		return path
	}
	return filepath.Join(dir, name)
}
