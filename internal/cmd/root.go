package cmd

import (
	"github.com/dendrascience/h5seek/version"
	"github.com/spf13/cobra"
)

const (
	groupResolution  = "resolution"
	groupMaintenance = "maintenance"
	groupUtilities   = "utilities"
)

// NewRootCmd creates and returns the root cobra command for the h5seek CLI.
// It sets up all subcommands, command groups and the persistent flags shared
// by every command.
func NewRootCmd() *cobra.Command {
	opts := &globalOptions{}

	rootCmd := &cobra.Command{
		Use:   "h5seek",
		Short: "h5seek - resolve game resources across folders and packages",
		Long: `h5seek resolves game resources the way the game does.

A resource may exist as a loose file in the data folder and in any number of
.pak patches or .h5u user mods. The copy with the newest timestamp wins.
Scanning every package for every lookup is slow, so h5seek keeps a catalog
of per-package indexes in a cache directory and falls back to scanning any
package that has not been indexed yet.

Use subcommands to perform different operations:
  - resolve: Print the winning copy of a resource
  - ls: List the merged resource tree
  - mount: Mount the merged tree read-only
  - index: Index new or replaced packages
  - flush: Remove indexes no package needs anymore
  - validate: Check cached indexes against their packages
  - watch: Keep indexes current while packages change`,
		Version:       version.GetFullVersion(),
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().StringVarP(&opts.configPath, "config", "c", "", "Path to a config file (default: h5seek.toml in the user config directory or working directory)")
	rootCmd.PersistentFlags().StringVarP(&opts.root, "root", "r", "", "Game installation directory (overrides config)")
	rootCmd.PersistentFlags().StringVar(&opts.logLevel, "log-level", "", "Log level: debug, info, warn, error (overrides config)")

	rootCmd.AddGroup(&cobra.Group{
		ID:    groupResolution,
		Title: "Resource Resolution",
	})
	rootCmd.AddGroup(&cobra.Group{
		ID:    groupMaintenance,
		Title: "Index Maintenance",
	})
	rootCmd.AddGroup(&cobra.Group{
		ID:    groupUtilities,
		Title: "Utility Commands",
	})

	resolveCmd := NewResolveCmd(opts)
	lsCmd := NewLsCmd(opts)
	mountCmd := NewMountCmd(opts)
	indexCmd := NewIndexCmd(opts)
	flushCmd := NewFlushCmd(opts)
	validateCmd := NewValidateCmd(opts)
	watchCmd := NewWatchCmd(opts)
	seedCmd := NewSeedCmd()
	configCmd := NewConfigCmd(opts)
	versionCmd := NewVersionCmd()

	resolveCmd.GroupID = groupResolution
	lsCmd.GroupID = groupResolution
	mountCmd.GroupID = groupResolution
	indexCmd.GroupID = groupMaintenance
	flushCmd.GroupID = groupMaintenance
	validateCmd.GroupID = groupMaintenance
	watchCmd.GroupID = groupMaintenance
	seedCmd.GroupID = groupUtilities
	configCmd.GroupID = groupUtilities
	versionCmd.GroupID = groupUtilities

	rootCmd.AddCommand(resolveCmd)
	rootCmd.AddCommand(lsCmd)
	rootCmd.AddCommand(mountCmd)
	rootCmd.AddCommand(indexCmd)
	rootCmd.AddCommand(flushCmd)
	rootCmd.AddCommand(validateCmd)
	rootCmd.AddCommand(watchCmd)
	rootCmd.AddCommand(seedCmd)
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(versionCmd)

	return rootCmd
}
