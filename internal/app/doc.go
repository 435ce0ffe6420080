// Package app is the composition root for songbook.
//
// # Overview
//
// It wires configuration, logging, the document store backend, the editor
// controller and either the TUI (Run) or the HTTP server (Serve).
//
// # Data Flow
//
//	┌──────────────┐
//	│   Run()      │
//	└──────┬───────┘
//	       │
//	       ├─────> LoadConfig()      TOML plus flag overrides
//	       ├─────> OpenLog()         slog text handler on <log_dir>/songbook.log
//	       ├─────> OpenStore()       memory | sqlite | postgres | http
//	       ├─────> NewController()   mirror, subscription, editor machine
//	       ├─────> ctrl.Start()      open the live subscription
//	       └─────> ui.Run()          TUI (blocks until quit)
//
// Serve follows the same path but hands the store to server.New and logs to
// stderr. It refuses the http backend, which would point a server at itself.
//
// # Lifecycle
//
// Deferred calls release resources in reverse order: the subscription is
// stopped first, then the store is closed, then the log file.
package app
