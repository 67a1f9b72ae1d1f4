// Package config loads inview settings.
//
// Settings are layered: built-in defaults, then an optional TOML file, then
// INVIEW_* environment variables, then command line flags applied by the
// caller. A missing file is not an error.
//
// Example file:
//
//	layout    = "page.toml"
//	predicate = "visible.lua"
//	queries   = [".card", "#footer"]
//	interval  = "100ms"
//	threshold = 0.5
//	watch     = true
//
//	[offset]
//	top    = 1
//	bottom = 1
package config
