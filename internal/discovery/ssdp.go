package discovery

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/net/ipv4"

	"github.com/muurk/viera/internal/logging"
)

const (
	// MulticastAddr is the SSDP multicast group and port
	MulticastAddr = "239.255.255.250:1900"

	// DefaultListenAddr is the wildcard address on the SSDP port
	DefaultListenAddr = "0.0.0.0:1900"

	// SearchTarget is the ST of Viera remote controllers
	SearchTarget = "urn:panasonic-com:device:p00RemoteController:1"

	// DefaultMaxWait is the MX value: seconds a device may delay its reply
	DefaultMaxWait = 1

	// ReceiveBufferSize is the size of one receive; longer datagrams are truncated
	ReceiveBufferSize = 1024

	// DefaultMulticastTTL keeps the search on the local segment
	DefaultMulticastTTL = 2
)

// response is one datagram received during a discovery pass
type response struct {
	From string
	Text string
}

// SearchRequest builds the M-SEARCH datagram. Field order is fixed.
func SearchRequest(searchTarget string, maxWait int, host string) []byte {
	fields := [][2]string{
		{"ST", searchTarget},
		{"MX", fmt.Sprintf("%d", maxWait)},
		{"MAN", `"ssdp:discover"`},
		{"HOST", host},
	}

	var b strings.Builder
	b.WriteString("M-SEARCH * HTTP/1.1\r\n")
	for _, f := range fields {
		b.WriteString(f[0])
		b.WriteString(": ")
		b.WriteString(f[1])
		b.WriteString("\r\n")
	}
	b.WriteString("\r\n")
	return []byte(b.String())
}

// listen opens the discovery socket with SO_REUSEADDR so it can share the
// SSDP port with other listeners on the host.
func listen(ctx context.Context, addr string, ttl int) (net.PacketConn, error) {
	lc := net.ListenConfig{Control: reuseAddrControl}

	conn, err := lc.ListenPacket(ctx, "udp4", addr)
	if err != nil {
		return nil, fmt.Errorf("failed to open discovery socket on %s: %w", addr, err)
	}

	// Multicast options are best effort; unicast replies work without them
	p := ipv4.NewPacketConn(conn)
	if ttl > 0 {
		if err := p.SetMulticastTTL(ttl); err != nil {
			logging.Debug("Could not set multicast TTL", zap.Error(err))
		}
	}
	if err := p.SetMulticastLoopback(true); err != nil {
		logging.Debug("Could not enable multicast loopback", zap.Error(err))
	}

	return conn, nil
}

const truncatedDatagramMsg = "SSDP datagram filled the receive buffer and may be truncated"

// collect reads datagrams until a receive waits longer than timeout. The
// timeout is the normal end of the loop; any other read error aborts.
func collect(ctx context.Context, conn net.PacketConn, timeout time.Duration) ([]response, error) {
	// Cancellation interrupts a blocked read by expiring its deadline
	stop := context.AfterFunc(ctx, func() {
		_ = conn.SetReadDeadline(time.Now())
	})
	defer stop()

	var responses []response
	buf := make([]byte, ReceiveBufferSize)

	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if err := conn.SetReadDeadline(time.Now().Add(timeout)); err != nil {
			return nil, fmt.Errorf("failed to set read deadline: %w", err)
		}

		n, addr, err := conn.ReadFrom(buf)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return nil, ctxErr
			}
			var netErr net.Error
			if errors.As(err, &netErr) && netErr.Timeout() {
				return responses, nil
			}
			return nil, fmt.Errorf("failed to receive discovery response: %w", err)
		}

		from := ""
		if addr != nil {
			from = addr.String()
		}
		logging.LogDatagram("received", from, buf[:n])
		if n == len(buf) {
			logging.LogRawBytes(truncatedDatagramMsg, buf[:n])
		}

		responses = append(responses, response{From: from, Text: string(buf[:n])})
	}
}

// IsVendorResponse reports whether a response comes from the expected
// vendor. The test is a case-sensitive substring match.
func IsVendorResponse(text, marker string) bool {
	return strings.Contains(text, marker)
}

// ParseLocation returns the LOCATION header of a response. The first
// LOCATION line wins; header names are matched case-insensitively.
func ParseLocation(text string) (string, bool) {
	for _, line := range strings.Split(text, "\n") {
		name, value, ok := strings.Cut(strings.TrimRight(line, "\r"), ":")
		if !ok || !strings.EqualFold(strings.TrimSpace(name), "LOCATION") {
			continue
		}
		if value = strings.TrimSpace(value); value != "" {
			return value, true
		}
	}
	return "", false
}
