package cmd

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/dendrascience/h5seek/internal/config"
	"github.com/dendrascience/h5seek/resolver"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
)

// globalOptions holds the persistent flags.
type globalOptions struct {
	configPath string
	root       string
	logLevel   string
}

// load reads the configuration and applies flag overrides.
func (o *globalOptions) load() (*config.Config, error) {
	cfg, _, err := config.Load(config.LoadOptions{ConfigFilePath: o.configPath})
	if err != nil {
		return nil, err
	}
	if o.root != "" {
		cfg.Root = o.root
	}
	if o.logLevel != "" {
		cfg.LogLevel = o.logLevel
	}
	return cfg, nil
}

func newLogger(w io.Writer, level string) (*log.Logger, error) {
	lvl, err := log.ParseLevel(strings.ToLower(level))
	if err != nil {
		return nil, fmt.Errorf("log level %q: %w", level, err)
	}
	return log.NewWithOptions(w, log.Options{
		Level:           lvl,
		ReportTimestamp: lvl == log.DebugLevel,
	}), nil
}

// session bundles what most commands need: configuration, a logger and an
// open resolver registered against its own metrics registry.
type session struct {
	cfg      *config.Config
	logger   *log.Logger
	registry *prometheus.Registry
	res      *resolver.Resolver
}

func (o *globalOptions) open(cmd *cobra.Command) (*session, error) {
	cfg, err := o.load()
	if err != nil {
		return nil, err
	}
	if cfg.Root == "" {
		return nil, errors.New("no game root: pass --root, set H5SEEK_ROOT or add root to the config file")
	}
	logger, err := newLogger(cmd.ErrOrStderr(), cfg.LogLevel)
	if err != nil {
		return nil, err
	}
	reg := prometheus.NewRegistry()
	res, err := resolver.New(resolver.Config{
		Root:        cfg.Root,
		Layout:      cfg.Layout(),
		CatalogPath: cfg.Catalog,
		IndexDir:    cfg.IndexDir,
		Logger:      logger.WithPrefix("resolver"),
		Registerer:  reg,
	})
	if err != nil {
		return nil, err
	}
	return &session{cfg: cfg, logger: logger, registry: reg, res: res}, nil
}

func (s *session) Close() error {
	return s.res.Close()
}
