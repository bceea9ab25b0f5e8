// Package logging provides structured logging for viera.
//
// This package wraps a zap logger with package-level helpers so the discovery
// engine, the command dispatcher and the CLI share one configuration. It is
// silent by default: library callers never see output unless they opt in.
//
// # Log Levels
//
//   - Debug: SSDP datagrams, HTTP requests and responses, raw byte dumps
//   - Info: discovered devices, dispatched commands
//   - Warn: skipped respondents, bridge delivery problems
//   - Error: failures surfaced to the user
//
// # Configuration
//
// Initialize logging at program startup:
//
//	if err := logging.Initialize(logLevel); err != nil {
//	    log.Fatal(err)
//	}
//	defer logging.Sync()
//
// An empty level falls back to the VIERA_LOG_LEVEL environment variable.
// Output goes to stderr so it never mixes with command output or the TUI.
//
// # Protocol Logging
//
//	logging.LogDatagram("received", addr.String(), payload)
//	logging.LogHTTPRequest(req.Method, req.URL.String(), req.Header)
//	logging.LogHTTPResponse(url, resp.StatusCode, body)
package logging
