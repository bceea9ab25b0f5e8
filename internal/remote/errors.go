package remote

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/url"
	"os"
	"strings"
	"syscall"
)

// ErrorKind is the category of a dispatch or discovery failure
type ErrorKind int

const (
	// KindNetwork indicates a network-level error (unreachable host, reset connection)
	KindNetwork ErrorKind = iota
	// KindTimeout indicates a request timeout
	KindTimeout
	// KindConnectionRefused indicates the device refused the connection
	KindConnectionRefused
	// KindDNS indicates a DNS resolution failure
	KindDNS
	// KindCanceled indicates the caller's context was canceled
	KindCanceled
	// KindHTTP indicates a non-success HTTP status without a SOAP fault
	KindHTTP
	// KindSOAPFault indicates the device answered with a UPnP/SOAP fault
	KindSOAPFault
	// KindParse indicates a malformed service description
	KindParse
	// KindNoServiceDescription indicates the description lacks the control service
	KindNoServiceDescription
	// KindUnknownCommand indicates a command name missing from the table
	KindUnknownCommand
	// KindInvalidArgument indicates a wrong or missing numeric argument
	KindInvalidArgument
)

// Sentinel errors for errors.Is checks.
var (
	ErrNoServiceDescription = errors.New("no service description")
	ErrUnknownCommand       = errors.New("unknown command")
	ErrInvalidArgument      = errors.New("invalid argument")
)

// String returns a human-readable name for the error kind
func (k ErrorKind) String() string {
	switch k {
	case KindNetwork:
		return "Network Error"
	case KindTimeout:
		return "Timeout"
	case KindConnectionRefused:
		return "Connection Refused"
	case KindDNS:
		return "DNS Error"
	case KindCanceled:
		return "Canceled"
	case KindHTTP:
		return "HTTP Error"
	case KindSOAPFault:
		return "SOAP Fault"
	case KindParse:
		return "Parse Error"
	case KindNoServiceDescription:
		return "No Service Description"
	case KindUnknownCommand:
		return "Unknown Command"
	case KindInvalidArgument:
		return "Invalid Argument"
	default:
		return fmt.Sprintf("ErrorKind(%d)", k)
	}
}

// Error is returned by discovery and dispatch
type Error struct {
	Kind       ErrorKind // Category of error
	Message    string    // Human-readable error message
	StatusCode int       // HTTP status code (if applicable)
	FaultCode  string    // UPnP errorCode from a SOAP fault (if applicable)
	Host       string    // Device host[:port] (for context)
	Err        error     // Underlying error (if any)
}

// Error implements the error interface
func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s (caused by: %v)", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// Unwrap returns the underlying error for error chain inspection
func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches the package sentinels against the error kind.
func (e *Error) Is(target error) bool {
	switch target {
	case ErrNoServiceDescription:
		return e.Kind == KindNoServiceDescription
	case ErrUnknownCommand:
		return e.Kind == KindUnknownCommand
	case ErrInvalidArgument:
		return e.Kind == KindInvalidArgument
	}
	return false
}

// ClassifyNetworkError analyzes a transport error and returns a more specific kind
func ClassifyNetworkError(err error, host string) *Error {
	if err == nil {
		return nil
	}

	if errors.Is(err, context.Canceled) {
		return &Error{Kind: KindCanceled, Message: "request canceled", Err: err, Host: host}
	}

	if errors.Is(err, context.DeadlineExceeded) || os.IsTimeout(err) {
		return &Error{Kind: KindTimeout, Message: "request timed out", Err: err, Host: host}
	}

	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return &Error{
			Kind:    KindDNS,
			Message: fmt.Sprintf("DNS resolution failed for %s", dnsErr.Name),
			Err:     err,
			Host:    host,
		}
	}

	if errors.Is(err, syscall.ECONNREFUSED) {
		return &Error{Kind: KindConnectionRefused, Message: "device refused connection", Err: err, Host: host}
	}
	if errors.Is(err, syscall.EHOSTUNREACH) {
		return &Error{Kind: KindNetwork, Message: "host unreachable", Err: err, Host: host}
	}
	if errors.Is(err, syscall.ENETUNREACH) {
		return &Error{Kind: KindNetwork, Message: "network unreachable", Err: err, Host: host}
	}

	var urlErr *url.Error
	if errors.As(err, &urlErr) && urlErr.Err != nil && urlErr.Err != err {
		return ClassifyNetworkError(urlErr.Err, host)
	}

	return &Error{Kind: KindNetwork, Message: "network error occurred", Err: err, Host: host}
}

// NewNetworkError creates a transport error with automatic classification
func NewNetworkError(message string, host string, err error) *Error {
	classified := ClassifyNetworkError(err, host)
	if classified == nil {
		return &Error{Kind: KindNetwork, Message: message, Host: host}
	}
	classified.Message = message
	return classified
}

// NewHTTPError creates an HTTP status error
func NewHTTPError(statusCode int, message string, host string) *Error {
	return &Error{Kind: KindHTTP, Message: message, StatusCode: statusCode, Host: host}
}

// NewSOAPFault creates an error from a parsed SOAP fault
func NewSOAPFault(statusCode int, fault *Fault, host string) *Error {
	msg := fault.Description
	if msg == "" {
		msg = fault.String
	}
	if msg == "" {
		msg = "device returned a SOAP fault"
	}
	return &Error{
		Kind:       KindSOAPFault,
		Message:    msg,
		StatusCode: statusCode,
		FaultCode:  fault.Code,
		Host:       host,
	}
}

// NewParseError creates a parsing error
func NewParseError(message string, err error) *Error {
	return &Error{Kind: KindParse, Message: message, Err: err}
}

// NewNoServiceDescriptionError reports a description without the control service
func NewNoServiceDescriptionError(location string) *Error {
	return &Error{
		Kind:    KindNoServiceDescription,
		Message: fmt.Sprintf("description at %s has no device/serviceList/service element", location),
	}
}

func kindOf(err error) (ErrorKind, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind, true
	}
	return 0, false
}

// IsNetworkError checks if an error is a transport error (including timeout, refusal, DNS)
func IsNetworkError(err error) bool {
	kind, ok := kindOf(err)
	return ok && (kind == KindNetwork || kind == KindTimeout ||
		kind == KindConnectionRefused || kind == KindDNS)
}

// IsHTTPError checks if an error is an HTTP status error or a SOAP fault
func IsHTTPError(err error) bool {
	kind, ok := kindOf(err)
	return ok && (kind == KindHTTP || kind == KindSOAPFault)
}

// IsSOAPFault checks if the device answered with a SOAP fault
func IsSOAPFault(err error) bool {
	kind, ok := kindOf(err)
	return ok && kind == KindSOAPFault
}

// IsParseError checks if an error is a parse error
func IsParseError(err error) bool {
	kind, ok := kindOf(err)
	return ok && kind == KindParse
}

// IsNoServiceDescription checks for a description lacking the control service
func IsNoServiceDescription(err error) bool {
	return errors.Is(err, ErrNoServiceDescription)
}

// IsUnknownCommand checks for a command name missing from the table
func IsUnknownCommand(err error) bool {
	return errors.Is(err, ErrUnknownCommand)
}

// IsInvalidArgument checks for a bad numeric argument
func IsInvalidArgument(err error) bool {
	return errors.Is(err, ErrInvalidArgument)
}

// TroubleshootingHint returns user-facing advice for an error
func TroubleshootingHint(err error) string {
	var e *Error
	if !errors.As(err, &e) {
		return "An unexpected error occurred. Run with --log-level debug for details."
	}

	switch e.Kind {
	case KindTimeout, KindNetwork:
		return strings.Join([]string{
			"The television did not respond.",
			"Troubleshooting:",
			"  • Check that the TV is switched on (not in standby)",
			"  • Verify the TV and this computer are on the same network",
			"  • Enable Menu > Network > TV Remote App Settings on the TV",
		}, "\n")

	case KindConnectionRefused:
		return strings.Join([]string{
			"The television refused the connection.",
			"Troubleshooting:",
			"  • The remote control service listens on port 55000; check the port",
			"  • Enable Menu > Network > TV Remote App Settings on the TV",
		}, "\n")

	case KindDNS:
		return "Could not resolve the television's hostname. Use its IP address instead."

	case KindSOAPFault:
		if e.FaultCode == "401" || e.StatusCode == 401 {
			return "The TV rejected the command. Newer models require pairing, which is not supported."
		}
		return fmt.Sprintf("The TV rejected the command (UPnP error %s).", e.FaultCode)

	case KindHTTP:
		return fmt.Sprintf("The TV returned HTTP %d. Check the control URL.", e.StatusCode)

	case KindParse, KindNoServiceDescription:
		return strings.Join([]string{
			"The device answered discovery but does not describe a remote control service.",
			"It may be a different Panasonic product (Blu-ray player, camera, router).",
		}, "\n")

	case KindUnknownCommand:
		return "Run 'viera keys' to list the available commands."

	case KindInvalidArgument:
		return "Numeric commands take exactly one non-negative number, e.g. 'viera send num 23'."

	default:
		return "An error occurred. Check the error message for details."
	}
}
