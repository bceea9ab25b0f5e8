// Package tui implements the interactive remote control.
//
// The picker screen lists remembered televisions, runs an SSDP discovery
// pass and accepts a typed address. Choosing a television opens the keypad
// screen, which maps keyboard keys to remote commands and sends them in
// order through the device handle.
package tui
