// Package config loads the songbook TOML configuration.
//
// # Configuration Discovery
//
// The Load function follows this resolution order:
//
//  1. If a path is explicitly provided, use it
//  2. Otherwise, use ~/.config/songbook/config.toml (default)
//  3. If the config file doesn't exist, fall back to defaults
//  4. If the file exists but fields are missing or blank, use defaults
//
// # Example
//
//	backend = "sqlite"        # memory | sqlite | postgres | http
//	collection = "song"
//	locale = "ro"             # BCP-47 tag used to sort titles
//	require_link = false
//	log_dir = "~/.local/share/songbook/logs"
//	log_level = "info"        # debug | info | warn | error
//	poll_seconds = 2
//
//	[sqlite]
//	path = "~/.local/share/songbook/songbook.db"
//
//	[postgres]
//	dsn = "postgres://localhost/songbook?sslmode=disable"
//
//	[http]
//	url = "127.0.0.1:7488"    # a running `songbook serve`
//
//	[server]
//	bind = "127.0.0.1:7488"
//
// Paths starting with ~ are expanded against the home directory and made
// absolute. An unknown backend is a parse error. When [http] url is blank it
// follows [server] bind, so a client and server on one machine agree without
// extra configuration.
//
// The log file lives at <log_dir>/songbook.log (see LogPath).
package config
