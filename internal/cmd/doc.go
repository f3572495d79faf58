// Package cmd provides the command-line interface implementation for h5seek.
//
// Each subcommand lives in its own file with a constructor returning a
// *cobra.Command; NewRootCmd wires them into groups. Commands that work on a
// game installation share the persistent --config, --root and --log-level
// flags, load settings through internal/config and open a resolver.Resolver
// for the duration of the command.
package cmd
