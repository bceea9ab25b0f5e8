package discovery

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/muurk/viera/internal/keys"
	"github.com/muurk/viera/internal/logging"
	"github.com/muurk/viera/internal/remote"
)

const (
	// DefaultTimeout is the per-receive wait that ends a discovery pass
	DefaultTimeout = 1 * time.Second

	// DefaultVendorMarker is the substring that identifies Panasonic replies
	DefaultVendorMarker = "Panasonic"
)

// Scanner discovers Viera TVs with SSDP
type Scanner struct {
	// Timeout is the per-receive wait; the pass ends when no reply arrives within it
	Timeout time.Duration

	// ListenAddr is the local socket address
	ListenAddr string

	// MulticastAddr is where the search request is sent
	MulticastAddr string

	// SearchTarget is the ST header value
	SearchTarget string

	// VendorMarker must appear in a reply for it to be considered
	VendorMarker string

	// MulticastTTL is the hop limit of the search request
	MulticastTTL int

	// FailFast aborts the pass on the first respondent that cannot be
	// resolved. By default such respondents are logged and skipped.
	FailFast bool

	// HTTPClient fetches service descriptions
	HTTPClient *http.Client

	// HTTPTimeout is applied to the handles returned by the scanner
	HTTPTimeout time.Duration

	// MinInterval is applied to the handles returned by the scanner; zero
	// disables spacing
	MinInterval time.Duration

	// Table is the command table given to the returned handles
	Table *keys.Table
}

// NewScanner creates a scanner with default settings
func NewScanner() *Scanner {
	return &Scanner{
		Timeout:       DefaultTimeout,
		ListenAddr:    DefaultListenAddr,
		MulticastAddr: MulticastAddr,
		SearchTarget:  SearchTarget,
		VendorMarker:  DefaultVendorMarker,
		MulticastTTL:  DefaultMulticastTTL,
		HTTPClient:    &http.Client{Timeout: remote.DefaultTimeout},
		HTTPTimeout:   remote.DefaultTimeout,
		MinInterval:   remote.DefaultMinInterval,
	}
}

// Discover runs one discovery pass and returns a handle per responding TV,
// in reply arrival order. No replies is an empty list, not an error.
func (s *Scanner) Discover(ctx context.Context) ([]*remote.Device, error) {
	logging.Debug("Starting SSDP discovery",
		zap.String("target", s.MulticastAddr),
		zap.Duration("timeout", s.Timeout))

	conn, err := listen(ctx, s.ListenAddr, s.MulticastTTL)
	if err != nil {
		return nil, err
	}
	defer conn.Close()

	dst, err := net.ResolveUDPAddr("udp4", s.MulticastAddr)
	if err != nil {
		return nil, fmt.Errorf("invalid multicast address %s: %w", s.MulticastAddr, err)
	}

	request := SearchRequest(s.SearchTarget, DefaultMaxWait, MulticastAddr)
	logging.LogDatagram("sent", dst.String(), request)
	if _, err := conn.WriteTo(request, dst); err != nil {
		return nil, fmt.Errorf("failed to send search request: %w", err)
	}

	responses, err := collect(ctx, conn, s.Timeout)
	if err != nil {
		return nil, err
	}

	logging.Debug("Discovery receive window closed", zap.Int("responses", len(responses)))

	return s.resolveAll(ctx, responses)
}

// resolveAll turns raw replies into device handles
func (s *Scanner) resolveAll(ctx context.Context, responses []response) ([]*remote.Device, error) {
	devices := make([]*remote.Device, 0, len(responses))
	seen := make(map[string]bool)

	for _, resp := range responses {
		if !IsVendorResponse(resp.Text, s.VendorMarker) {
			logging.Debug("Ignoring non-matching response", zap.String("from", resp.From))
			continue
		}

		location, ok := ParseLocation(resp.Text)
		if !ok {
			logging.Debug("Ignoring response without LOCATION", zap.String("from", resp.From))
			continue
		}
		if seen[location] {
			continue
		}
		seen[location] = true

		device, err := s.Resolve(ctx, location)
		if err != nil {
			if s.FailFast {
				return nil, fmt.Errorf("failed to resolve %s: %w", location, err)
			}
			logging.Warn("Skipping unresolvable device",
				zap.String("from", resp.From),
				zap.String("location", location),
				zap.Error(err))
			continue
		}

		logging.Info("Discovered device",
			zap.String("device", device.String()),
			zap.String("control_url", device.ControlURL))
		devices = append(devices, device)
	}

	return devices, nil
}

// Resolve fetches the description at location and returns a configured handle
func (s *Scanner) Resolve(ctx context.Context, location string) (*remote.Device, error) {
	client := s.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: remote.DefaultTimeout}
	}

	data, err := fetchDescription(ctx, client, location)
	if err != nil {
		return nil, err
	}

	device, err := ParseDescription(location, data)
	if err != nil {
		return nil, err
	}

	device.SetTable(s.Table)
	device.MinInterval = s.MinInterval
	if s.HTTPTimeout > 0 {
		device.SetTimeout(s.HTTPTimeout)
	}

	return device, nil
}

// Discover runs one discovery pass with default settings
func Discover(ctx context.Context) ([]*remote.Device, error) {
	return NewScanner().Discover(ctx)
}
