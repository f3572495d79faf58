package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/dendrascience/h5seek/resolver"
	toml "github.com/pelletier/go-toml/v2"
	"github.com/spf13/viper"
)

const (
	// AppName is the application name.
	AppName = "h5seek"
	// ConfigFileName is the name of the config file (without extension).
	ConfigFileName = "h5seek"
	// ConfigFileExt is the config file extension.
	ConfigFileExt = "toml"
	// EnvPrefix prefixes environment overrides, e.g. H5SEEK_ROOT.
	EnvPrefix = "H5SEEK"
)

var ErrConfigNotFound = errors.New("config file not found")

// LoadOptions controls where Load looks for a config file.
type LoadOptions struct {
	ConfigFilePath string // used exclusively when set
	ConfigDirPath  string // overrides the user config directory
}

// ConfigDir returns the h5seek configuration directory.
func ConfigDir() (string, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("failed to get config directory: %w", err)
	}
	return filepath.Join(dir, AppName), nil
}

// CacheDir returns the directory the catalog and indexes default to.
func CacheDir() string {
	dir, err := os.UserCacheDir()
	if err != nil {
		dir = os.TempDir()
	}
	return filepath.Join(dir, AppName)
}

// DefaultConfig returns the settings used when nothing else is configured.
func DefaultConfig() *Config {
	cache := CacheDir()
	layout := resolver.DefaultLayout()
	cfg := &Config{
		Root:     "",
		Catalog:  filepath.Join(cache, "index.db"),
		IndexDir: filepath.Join(cache, "indexes"),
		LogLevel: "info",
		Folders:  layout.Folders,
		Watch:    Watch{Debounce: 2 * time.Second},
	}
	for _, a := range layout.Archives {
		cfg.Archives = append(cfg.Archives, Archive{Dir: a.Dir, Ext: a.Ext})
	}
	return cfg
}

// Load resolves the configuration and returns it together with the path of
// the file it was read from ("" when only defaults and environment apply).
func Load(opts LoadOptions) (*Config, string, error) {
	v := viper.New()

	defaults := DefaultConfig()
	v.SetDefault("root", defaults.Root)
	v.SetDefault("catalog", defaults.Catalog)
	v.SetDefault("index_dir", defaults.IndexDir)
	v.SetDefault("log_level", defaults.LogLevel)
	v.SetDefault("folders", defaults.Folders)
	v.SetDefault("archives", defaults.Archives)
	v.SetDefault("watch.debounce", defaults.Watch.Debounce)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	path, err := findConfigFile(opts)
	if err != nil {
		return nil, "", err
	}
	if path != "" {
		v.SetConfigFile(path)
		v.SetConfigType(ConfigFileExt)
		if err := v.ReadInConfig(); err != nil {
			return nil, "", fmt.Errorf("failed to read config %s: %w", path, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, "", fmt.Errorf("failed to parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, "", fmt.Errorf("invalid config %s: %w", path, err)
	}
	return &cfg, path, nil
}

func findConfigFile(opts LoadOptions) (string, error) {
	if opts.ConfigFilePath != "" {
		if !fileExists(opts.ConfigFilePath) {
			return "", fmt.Errorf("%w: %s", ErrConfigNotFound, opts.ConfigFilePath)
		}
		return opts.ConfigFilePath, nil
	}

	dir := opts.ConfigDirPath
	if dir == "" {
		var err error
		if dir, err = ConfigDir(); err != nil {
			return "", err
		}
	}
	name := ConfigFileName + "." + ConfigFileExt
	for _, candidate := range []string{filepath.Join(dir, name), name} {
		if fileExists(candidate) {
			return candidate, nil
		}
	}
	return "", nil
}

// Validate checks the settings that do not depend on the filesystem.
func (c *Config) Validate() error {
	if c.Catalog == "" {
		return errors.New("catalog must not be empty")
	}
	if c.IndexDir == "" {
		return errors.New("index_dir must not be empty")
	}
	if c.Watch.Debounce < 0 {
		return errors.New("watch.debounce must not be negative")
	}
	return c.Layout().Validate()
}

// fileExists checks if a file exists and is not a directory
func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}

// fileConfig is the on-disk shape of Config.
type fileConfig struct {
	Root     string    `toml:"root"`
	Catalog  string    `toml:"catalog"`
	IndexDir string    `toml:"index_dir"`
	LogLevel string    `toml:"log_level"`
	Folders  []string  `toml:"folders"`
	Archives []Archive `toml:"archives"`
	Watch    struct {
		Debounce string `toml:"debounce"`
	} `toml:"watch"`
}

// Marshal renders cfg as TOML.
func Marshal(cfg *Config) ([]byte, error) {
	fc := fileConfig{
		Root:     cfg.Root,
		Catalog:  cfg.Catalog,
		IndexDir: cfg.IndexDir,
		LogLevel: cfg.LogLevel,
		Folders:  cfg.Folders,
		Archives: cfg.Archives,
	}
	fc.Watch.Debounce = cfg.Watch.Debounce.String()
	return toml.Marshal(fc)
}

// Write saves cfg as TOML at path, creating parent directories. An existing
// file is only replaced when overwrite is set.
func Write(path string, cfg *Config, overwrite bool) error {
	if !overwrite && fileExists(path) {
		return fmt.Errorf("%s already exists", path)
	}
	data, err := Marshal(cfg)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}
