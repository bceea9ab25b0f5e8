// Package config manages the user's viera configuration file.
//
// The YAML file remembers TVs by name so commands can be sent without a
// discovery pass, holds discovery and dispatch preferences, and lets the
// user add or override entries of the command table.
//
// # Configuration File Location
//
//   - Linux: $XDG_CONFIG_HOME/viera/config.yaml or $HOME/.config/viera/config.yaml
//   - macOS: $HOME/.config/viera/config.yaml
//   - Windows: %LOCALAPPDATA%\viera\config.yaml
//
// VIERA_CONFIG overrides the location.
//
// # Example
//
//	version: 1
//	devices:
//	  living-room:
//	    hostname: 192.168.1.20:55000
//	    control_url: http://192.168.1.20:55000/nrc/control_0
//	    service_type: urn:panasonic-com:service:p00NetworkControl:1
//	preferences:
//	  discover_timeout: 1s
//	  http_timeout: 5s
//	  min_interval: 500ms
//	commands:
//	  netflix: NRC_NETFLIX-ONOFF
//
// Writes are atomic (temporary file plus rename).
package config
