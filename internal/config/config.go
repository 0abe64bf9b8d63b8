package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

// FileName is the config file looked up when no explicit path is given.
const FileName = "wedplan.yaml"

// Remote modes.
const (
	RemoteNone     = "none"
	RemoteHub      = "hub"
	RemoteFolder   = "folder"
	RemoteEmbedded = "embedded"
)

// Config is the full application configuration.
type Config struct {
	DataDir string `mapstructure:"data_dir" json:"data_dir"`
	Log     Log    `mapstructure:"log" json:"log"`
	Remote  Remote `mapstructure:"remote" json:"remote"`
	Hub     Hub    `mapstructure:"hub" json:"hub"`
	Blob    Blob   `mapstructure:"blob" json:"blob"`
}

// Log configures the process logger.
type Log struct {
	Level      string `mapstructure:"level" json:"level"`
	Format     string `mapstructure:"format" json:"format"`
	File       string `mapstructure:"file" json:"file"`
	MaxSizeMB  int    `mapstructure:"max_size_mb" json:"max_size_mb"`
	MaxBackups int    `mapstructure:"max_backups" json:"max_backups"`
	MaxAgeDays int    `mapstructure:"max_age_days" json:"max_age_days"`
}

// Remote selects the collaborator the planner syncs with.
//
// none keeps every store local-only; hub connects to a wedplan hub over
// websocket; folder shares a directory of JSON files; embedded runs a
// document store inside the process (useful for trying sync locally).
type Remote struct {
	Mode    string `mapstructure:"mode" json:"mode"`
	URL     string `mapstructure:"url" json:"url"`
	Project string `mapstructure:"project" json:"project"`
	Dir     string `mapstructure:"dir" json:"dir"`
}

// Hub configures `wedplan serve`.
type Hub struct {
	Addr     string `mapstructure:"addr" json:"addr"`
	Project  string `mapstructure:"project" json:"project"`
	Backend  string `mapstructure:"backend" json:"backend"`
	DSN      string `mapstructure:"dsn" json:"dsn"`
	ReadOnly bool   `mapstructure:"read_only" json:"read_only"`
	Metrics  bool   `mapstructure:"metrics" json:"metrics"`
}

// Blob configures idea image storage.
type Blob struct {
	Backend   string `mapstructure:"backend" json:"backend"`
	Dir       string `mapstructure:"dir" json:"dir"`
	Bucket    string `mapstructure:"bucket" json:"bucket"`
	Region    string `mapstructure:"region" json:"region"`
	Endpoint  string `mapstructure:"endpoint" json:"endpoint"`
	Prefix    string `mapstructure:"prefix" json:"prefix"`
	PathStyle bool   `mapstructure:"path_style" json:"path_style"`
}

// Load reads configuration. With an explicit path the file must exist;
// otherwise wedplan.yaml is searched in the working directory and the
// default data directory, and a missing file just means defaults.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetConfigType("yaml")
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName(strings.TrimSuffix(FileName, filepath.Ext(FileName)))
		v.AddConfigPath(".")
		if dir, err := DefaultDataDir(); err == nil {
			v.AddConfigPath(dir)
		}
	}

	v.SetEnvPrefix("WEDPLAN")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.normalize(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Default returns the built-in configuration, normalized.
func Default() (*Config, error) {
	v := viper.New()
	setDefaults(v)
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.normalize(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// DefaultDataDir is ~/.wedplan.
func DefaultDataDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolve home directory: %w", err)
	}
	return filepath.Join(home, ".wedplan"), nil
}

// DatabasePath is the local key-value database inside the data dir.
func (c *Config) DatabasePath() string {
	return filepath.Join(c.DataDir, "wedplan.db")
}

func (c *Config) normalize() error {
	if c.DataDir == "" {
		dir, err := DefaultDataDir()
		if err != nil {
			return err
		}
		c.DataDir = dir
	}
	var err error
	if c.DataDir, err = expandPath(c.DataDir); err != nil {
		return err
	}
	if c.Log.File, err = expandPath(c.Log.File); err != nil {
		return err
	}
	if c.Remote.Dir, err = expandPath(c.Remote.Dir); err != nil {
		return err
	}
	if c.Blob.Dir == "" {
		c.Blob.Dir = filepath.Join(c.DataDir, "blobs")
	}
	if c.Blob.Dir, err = expandPath(c.Blob.Dir); err != nil {
		return err
	}

	c.Log.Level = strings.ToLower(strings.TrimSpace(c.Log.Level))
	c.Log.Format = strings.ToLower(strings.TrimSpace(c.Log.Format))
	c.Remote.Mode = strings.ToLower(strings.TrimSpace(c.Remote.Mode))
	c.Hub.Backend = strings.ToLower(strings.TrimSpace(c.Hub.Backend))
	c.Blob.Backend = strings.ToLower(strings.TrimSpace(c.Blob.Backend))
	c.Remote.Project = strings.TrimSpace(c.Remote.Project)
	c.Hub.Project = strings.TrimSpace(c.Hub.Project)
	return nil
}

func expandPath(path string) (string, error) {
	if path == "" || !strings.HasPrefix(path, "~") {
		return path, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("expand %s: %w", path, err)
	}
	if path == "~" {
		return home, nil
	}
	return filepath.Join(home, strings.TrimPrefix(path, "~/")), nil
}
