// Package ui renders the styled output of the viera CLI.
//
// Commands print a Header describing what runs, then tables or a Result
// box. Failure results carry troubleshooting tips derived from the
// remote package's error kinds. A Printer in plain mode drops decoration
// so output can be piped into other tools.
//
// Logging is controlled separately through VIERA_LOG_LEVEL; when it is
// unset zap is silent and only this output is shown.
package ui
