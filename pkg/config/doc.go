// Package config reads harness configuration files and bootstrap settings.
//
// # Overview
//
// A configuration file is a list of sections, each holding options:
//
//	[DEFAULT]
//	logging_folder = /var/log/harness
//
//	[logger]
//	level = debug
//
//	[example:one]
//	message = {logging_folder}/one
//
//	[example:two]
//
// A section header is [name] or [name:key]; (name, key) pairs must be unique.
// Names, keys and option names are case-insensitive and limited to letters,
// digits and underscores. Lines starting with '#' or ';' are comments and
// options may be written "name = value" or "name: value".
//
// The DEFAULT section is the harness's own bootstrap section: its options are
// visible from every other section and "{option}" in a value is replaced by
// the option's value. DEFAULT is never reported by Available.
//
// Every section has a "library" option naming the plugin module to load; it
// defaults to the section name.
//
// Reading is all-or-nothing: a file with any structural error leaves the
// store unchanged.
//
// # Option accessors
//
// OptionReader applies a required/optional policy and defaults on top of a
// section and validates typed values:
//
//	r := config.NewOptionReader(section, []string{"bind_address"}, map[string]string{"port": "7001"})
//	addr, err := r.TCPAddress("bind_address", false, 7001)
//	port, err := r.TCPPort("port")
//	sock, err := r.NamedSocket("socket")
//
// # Bootstrap settings
//
// Settings come from the environment:
//
//	HARNESS_PROGRAM="harness"
//	HARNESS_CONFIG="/etc/harness/harness.cfg"
//	HARNESS_PLUGIN_DIRS="/usr/lib/harness:/opt/harness/plugins"
//	HARNESS_LOG_LEVEL="info"  # debug, info, warn, error
//	HARNESS_ADMIN_ADDR=":9090"
//	HARNESS_OTEL_ENABLED="true"
//	HARNESS_OTEL_ENDPOINT="otel-collector:4317"
//
// # Related Packages
//
//   - pkg/harness: Loader reads configuration through Store
//   - pkg/plugins: Plugins receive their Section in Start
package config
