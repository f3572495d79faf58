package config

import (
	"time"

	"github.com/dendrascience/h5seek/resolver"
)

// Config holds all settings.
type Config struct {
	Root     string    `mapstructure:"root"`
	Catalog  string    `mapstructure:"catalog"`
	IndexDir string    `mapstructure:"index_dir"`
	LogLevel string    `mapstructure:"log_level"`
	Folders  []string  `mapstructure:"folders"`
	Archives []Archive `mapstructure:"archives"`
	Watch    Watch     `mapstructure:"watch"`
}

// Archive selects packages by directory and extension.
type Archive struct {
	Dir string `mapstructure:"dir" toml:"dir"`
	Ext string `mapstructure:"ext" toml:"ext"`
}

// Watch configures the archive watcher.
type Watch struct {
	Debounce time.Duration `mapstructure:"debounce"`
}

// Layout converts the folder and archive settings into a resolver layout.
func (c *Config) Layout() resolver.Layout {
	l := resolver.Layout{Folders: append([]string(nil), c.Folders...)}
	for _, a := range c.Archives {
		l.Archives = append(l.Archives, resolver.ArchiveSpec{Dir: a.Dir, Ext: a.Ext})
	}
	return l
}
