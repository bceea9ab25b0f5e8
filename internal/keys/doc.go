// Package keys holds the command table: the mapping from logical command
// names ("mute", "ch_up", "num") to the key identifiers a Viera television
// understands ("NRC_MUTE-ONOFF", "NRC_CH_UP-ONOFF", "NRC_D{}-ONOFF").
//
// A Table is immutable once built. Default returns the built-in table;
// With layers user overrides (from the YAML config) on top and returns a new
// Table, leaving the original untouched.
//
// Templates that contain a placeholder ("{}", "{d}" or "{digit}") are
// numeric: the dispatcher substitutes one decimal digit per request.
package keys
