package remote

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/muurk/viera/internal/keys"
	"github.com/muurk/viera/internal/logging"
	"github.com/muurk/viera/internal/version"
)

const (
	// DefaultMinInterval is the minimum spacing between two commands to one TV
	DefaultMinInterval = 500 * time.Millisecond

	// DefaultTimeout is the default HTTP request timeout
	DefaultTimeout = 5 * time.Second

	// maxResponseSize bounds how much of a SOAP response is read
	maxResponseSize = 64 * 1024
)

// Device is a connectable television. It is safe for concurrent use: sends
// through one Device are serialized and always at least MinInterval apart.
type Device struct {
	// Hostname is the host[:port] the description was served from (e.g., "192.168.1.20:55000")
	Hostname string

	// ControlURL is the absolute URL commands are POSTed to
	ControlURL string

	// ServiceType is the SOAP namespace and SOAPAction prefix
	ServiceType string

	// Description metadata, display only
	FriendlyName string
	Manufacturer string
	ModelName    string
	UDN          string

	// MinInterval is the minimum spacing between consecutive commands
	MinInterval time.Duration

	// HTTPClient is the underlying HTTP client
	HTTPClient *http.Client

	table *keys.Table

	mu         sync.Mutex
	lastSentAt time.Time

	now   func() time.Time
	sleep func(ctx context.Context, d time.Duration) error
}

// NewDevice creates a device handle from its three connection parameters
func NewDevice(hostname, controlURL, serviceType string) *Device {
	return &Device{
		Hostname:    hostname,
		ControlURL:  controlURL,
		ServiceType: serviceType,
		MinInterval: DefaultMinInterval,
		HTTPClient:  &http.Client{Timeout: DefaultTimeout},
		table:       keys.Default(),
		now:         time.Now,
		sleep:       sleepContext,
	}
}

// String returns a human-readable representation of the device
func (d *Device) String() string {
	name := d.FriendlyName
	if name == "" {
		name = "Viera TV"
	}
	if d.ModelName != "" {
		return fmt.Sprintf("%s [%s] at %s", name, d.ModelName, d.Hostname)
	}
	return fmt.Sprintf("%s at %s", name, d.Hostname)
}

// SetTimeout sets the HTTP request timeout
func (d *Device) SetTimeout(timeout time.Duration) {
	if d.HTTPClient == nil {
		d.HTTPClient = &http.Client{}
	}
	d.HTTPClient.Timeout = timeout
}

// SetTable replaces the command table used by Send
func (d *Device) SetTable(table *keys.Table) {
	if table == nil {
		table = keys.Default()
	}
	d.table = table
}

// Table returns the command table used by Send
func (d *Device) Table() *keys.Table {
	return d.table
}

// LastSentAt returns when the most recent command was transmitted
func (d *Device) LastSentAt() time.Time {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.lastSentAt
}

// Send dispatches a named command from the table. Numeric commands take
// exactly one non-negative argument; all others take none. The body of the
// last response is returned.
func (d *Device) Send(ctx context.Context, name string, args ...int) ([]byte, error) {
	tmpl, ok := d.table.Lookup(name)
	if !ok {
		return nil, &Error{Kind: KindUnknownCommand, Message: fmt.Sprintf("command %q is not in the table", name), Host: d.Hostname}
	}

	if tmpl.Numeric() {
		if len(args) != 1 {
			return nil, &Error{Kind: KindInvalidArgument, Message: fmt.Sprintf("command %q takes one number, got %d arguments", name, len(args)), Host: d.Hostname}
		}
		return d.SendNumber(ctx, tmpl, args[0])
	}

	if len(args) != 0 {
		return nil, &Error{Kind: KindInvalidArgument, Message: fmt.Sprintf("command %q takes no arguments, got %d", name, len(args)), Host: d.Hostname}
	}
	return d.SendKey(ctx, tmpl.Key())
}

// SendNumber sends number as a sequence of digit keys, most significant
// first. Every digit is spaced like any other command.
func (d *Device) SendNumber(ctx context.Context, tmpl keys.Template, number int) ([]byte, error) {
	if !tmpl.Numeric() {
		return nil, &Error{Kind: KindInvalidArgument, Message: fmt.Sprintf("template %q has no digit placeholder", tmpl), Host: d.Hostname}
	}
	if number < 0 {
		return nil, &Error{Kind: KindInvalidArgument, Message: fmt.Sprintf("number must not be negative, got %d", number), Host: d.Hostname}
	}

	var body []byte
	for _, digit := range strconv.Itoa(number) {
		var err error
		body, err = d.SendKey(ctx, tmpl.Digit(digit))
		if err != nil {
			return nil, fmt.Errorf("digit %c of %d: %w", digit, number, err)
		}
	}
	return body, nil
}

// SendKey transmits one key identifier and returns the raw response body.
// It blocks until MinInterval has passed since the previous transmission.
// A failed transmission still counts as the previous transmission.
func (d *Device) SendKey(ctx context.Context, keyID string) ([]byte, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if err := d.waitForSpacing(ctx); err != nil {
		return nil, NewNetworkError("canceled while waiting to send", d.Hostname, err)
	}
	d.lastSentAt = d.clock()

	start := time.Now()
	body, err := d.post(ctx, keyID)
	if err != nil {
		logging.Warn("Command failed",
			zap.String("host", d.Hostname),
			zap.String("key", keyID),
			zap.Error(err),
		)
		return nil, err
	}

	logging.Info("Command sent",
		zap.String("host", d.Hostname),
		zap.String("key", keyID),
		zap.Duration("elapsed", time.Since(start)),
	)
	return body, nil
}

// waitForSpacing sleeps out the remainder of MinInterval. Caller holds mu.
func (d *Device) waitForSpacing(ctx context.Context) error {
	if d.lastSentAt.IsZero() || d.MinInterval <= 0 {
		return ctx.Err()
	}

	elapsed := d.clock().Sub(d.lastSentAt)
	if elapsed >= d.MinInterval {
		return ctx.Err()
	}

	wait := d.MinInterval - elapsed
	logging.Debug("Throttling command",
		zap.String("host", d.Hostname),
		zap.Duration("wait", wait),
	)
	if d.sleep == nil {
		return sleepContext(ctx, wait)
	}
	return d.sleep(ctx, wait)
}

func (d *Device) clock() time.Time {
	if d.now == nil {
		return time.Now()
	}
	return d.now()
}

func (d *Device) post(ctx context.Context, keyID string) ([]byte, error) {
	body := SendKeyBody(d.ServiceType, keyID)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.ControlURL, bytes.NewReader(body))
	if err != nil {
		return nil, NewNetworkError("failed to create command request", d.Hostname, err)
	}

	if d.Hostname != "" {
		req.Host = d.Hostname
	}
	req.Header.Set("Content-Type", ContentType)
	req.Header.Set("User-Agent", version.UserAgent())
	// Set directly to keep the header's canonical spelling on the wire
	req.Header["SOAPAction"] = []string{SOAPAction(d.ServiceType, ActionSendKey)}

	logging.LogHTTPRequest(req.Method, d.ControlURL, req.Header)

	client := d.HTTPClient
	if client == nil {
		client = http.DefaultClient
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, NewNetworkError("command request failed", d.Hostname, err)
	}
	defer func() { _ = resp.Body.Close() }()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return nil, NewNetworkError("failed to read command response", d.Hostname, err)
	}
	logging.LogHTTPResponse(d.ControlURL, resp.StatusCode, respBody)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		if fault, ok := ParseFault(respBody); ok {
			return nil, NewSOAPFault(resp.StatusCode, fault, d.Hostname)
		}
		return nil, NewHTTPError(resp.StatusCode, fmt.Sprintf("unexpected status code: %d", resp.StatusCode), d.Hostname)
	}

	return respBody, nil
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
