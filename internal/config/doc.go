// Package config loads h5seek settings: where the game is installed, how its
// resources are laid out, and where the index cache lives.
//
// Settings come from, in increasing priority: built-in defaults, a TOML file
// (h5seek.toml in the user config directory or the working directory, or an
// explicit --config path), and H5SEEK_* environment variables.
package config
