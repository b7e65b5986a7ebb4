package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/BurntSushi/toml"
)

// DefaultMaxFileSize is the upload ceiling in bytes (20 MB, decimal)
const DefaultMaxFileSize = 20_000_000

// Duration wraps time.Duration so it can be written as "15s" in TOML
type Duration struct {
	time.Duration
}

func (d *Duration) UnmarshalText(text []byte) error {
	parsed, err := time.ParseDuration(string(text))
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", string(text), err)
	}

	d.Duration = parsed

	return nil
}

func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

// Config is the complete service configuration
type Config struct {
	Server struct {
		Addr         string   `toml:"addr"`
		ReadTimeout  Duration `toml:"read_timeout"`
		WriteTimeout Duration `toml:"write_timeout"`
	} `toml:"server"`
	Storage struct {
		UploadDir string `toml:"upload_dir"`
		KeepFiles bool   `toml:"keep_files"`
	} `toml:"storage"`
	Upload struct {
		MaxFileSize      int64    `toml:"max_file_size"`
		AllowedMimeTypes []string `toml:"allowed_mime_types"`
	} `toml:"upload"`
	Slicer struct {
		Path           string            `toml:"path"`
		Timeout        Duration          `toml:"timeout"`
		DefaultProfile string            `toml:"default_profile"`
		Profiles       map[string]string `toml:"profiles"`
	} `toml:"slicer"`
	Log struct {
		Level string `toml:"level"`
	} `toml:"log"`
}

// Default returns the configuration used when no file overrides it
func Default() *Config {
	var cfg Config

	cfg.Server.Addr = ":8080"
	cfg.Server.ReadTimeout = Duration{30 * time.Second}
	cfg.Server.WriteTimeout = Duration{60 * time.Second}

	cfg.Storage.UploadDir = "uploads"

	cfg.Upload.MaxFileSize = DefaultMaxFileSize
	cfg.Upload.AllowedMimeTypes = []string{"model/stl", "application/sla", "application/octet-stream"}

	cfg.Slicer.Path = "/usr/bin/prusa-slicer"
	cfg.Slicer.Timeout = Duration{15 * time.Second}
	cfg.Slicer.DefaultProfile = "default"
	cfg.Slicer.Profiles = map[string]string{"default": "slicer.ini"}

	cfg.Log.Level = "info"

	return &cfg
}

// Load reads a TOML file over the defaults. A missing file is not an error.
func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return cfg, cfg.Validate()
	}

	if err != nil {
		return nil, fmt.Errorf("failed to read config %s: %w", path, err)
	}

	return Parse(data, cfg)
}

// Parse decodes TOML data on top of base
func Parse(data []byte, base *Config) (*Config, error) {
	md, err := toml.Decode(string(data), base)
	if err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		return nil, fmt.Errorf("unknown config keys: %v", undecoded)
	}

	err = base.Validate()
	if err != nil {
		return nil, err
	}

	return base, nil
}

// Validate checks the values the server cannot run without
func (c *Config) Validate() error {
	if c.Server.Addr == "" {
		return errors.New("server.addr cannot be empty")
	}

	if c.Storage.UploadDir == "" {
		return errors.New("storage.upload_dir cannot be empty")
	}

	if c.Upload.MaxFileSize <= 0 {
		return fmt.Errorf("upload.max_file_size must be positive, got %d", c.Upload.MaxFileSize)
	}

	if len(c.Upload.AllowedMimeTypes) == 0 {
		return errors.New("upload.allowed_mime_types cannot be empty")
	}

	if c.Slicer.Path == "" {
		return errors.New("slicer.path cannot be empty")
	}

	if c.Slicer.Timeout.Duration <= 0 {
		return fmt.Errorf("slicer.timeout must be positive, got %s", c.Slicer.Timeout)
	}

	// A response must still be writable after the slicer used its whole budget
	if c.Server.WriteTimeout.Duration > 0 && c.Server.WriteTimeout.Duration <= c.Slicer.Timeout.Duration {
		return fmt.Errorf("server.write_timeout (%s) must be longer than slicer.timeout (%s)",
			c.Server.WriteTimeout, c.Slicer.Timeout)
	}

	if _, ok := c.Slicer.Profiles[c.Slicer.DefaultProfile]; !ok {
		return fmt.Errorf("slicer.default_profile %q is not listed in slicer.profiles", c.Slicer.DefaultProfile)
	}

	_, err := c.LogLevel()

	return err
}

// LogLevel converts the configured level name to a slog level
func (c *Config) LogLevel() (slog.Level, error) {
	var level slog.Level

	err := level.UnmarshalText([]byte(c.Log.Level))
	if err != nil {
		return slog.LevelInfo, fmt.Errorf("invalid log.level %q: %w", c.Log.Level, err)
	}

	return level, nil
}

// EnsureDirectories creates the working storage directory
func (c *Config) EnsureDirectories() error {
	err := os.MkdirAll(c.Storage.UploadDir, 0755)
	if err != nil {
		return fmt.Errorf("failed to create upload directory %s: %w", c.Storage.UploadDir, err)
	}

	return nil
}

// ProfilePath resolves a profile name to its file. Relative profile paths
// are taken as they are, relative to the working directory of the server.
func (c *Config) ProfilePath(name string) (string, bool) {
	if name == "" {
		name = c.Slicer.DefaultProfile
	}

	path, ok := c.Slicer.Profiles[name]
	if !ok {
		return "", false
	}

	return filepath.Clean(path), true
}
