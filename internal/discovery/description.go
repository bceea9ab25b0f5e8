package discovery

import (
	"context"
	"encoding/xml"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"

	"github.com/muurk/viera/internal/logging"
	"github.com/muurk/viera/internal/remote"
	"github.com/muurk/viera/internal/version"
)

const (
	// DescriptionNamespace is the UPnP device description namespace
	DescriptionNamespace = "urn:schemas-upnp-org:device-1-0"

	// DefaultDescriptionPort is where Viera TVs serve their description
	DefaultDescriptionPort = "55000"

	// DefaultDescriptionPath is the description path on Viera TVs
	DefaultDescriptionPath = "/nrc/ddd.xml"

	maxDescriptionSize = 1 << 20
)

type descriptionDoc struct {
	Device struct {
		FriendlyName string `xml:"urn:schemas-upnp-org:device-1-0 friendlyName"`
		Manufacturer string `xml:"urn:schemas-upnp-org:device-1-0 manufacturer"`
		ModelName    string `xml:"urn:schemas-upnp-org:device-1-0 modelName"`
		UDN          string `xml:"urn:schemas-upnp-org:device-1-0 UDN"`
		ServiceList  struct {
			Services []serviceDoc `xml:"urn:schemas-upnp-org:device-1-0 service"`
		} `xml:"urn:schemas-upnp-org:device-1-0 serviceList"`
	} `xml:"urn:schemas-upnp-org:device-1-0 device"`
}

type serviceDoc struct {
	ServiceType string `xml:"urn:schemas-upnp-org:device-1-0 serviceType"`
	ControlURL  string `xml:"urn:schemas-upnp-org:device-1-0 controlURL"`
}

// DefaultLocation returns the usual description URL of a TV at host
func DefaultLocation(host string) string {
	if _, _, err := net.SplitHostPort(host); err != nil {
		host = net.JoinHostPort(strings.Trim(host, "[]"), DefaultDescriptionPort)
	}
	return "http://" + host + DefaultDescriptionPath
}

// ParseDescription builds a device handle from a service description. The
// first service element is used; its controlURL is resolved against
// location and the device hostname is the host[:port] of location.
func ParseDescription(location string, data []byte) (*remote.Device, error) {
	var doc descriptionDoc
	if err := xml.Unmarshal(data, &doc); err != nil {
		return nil, remote.NewParseError("failed to parse service description", err)
	}

	if len(doc.Device.ServiceList.Services) == 0 {
		return nil, remote.NewNoServiceDescriptionError(location)
	}
	svc := doc.Device.ServiceList.Services[0]
	serviceType := strings.TrimSpace(svc.ServiceType)
	controlPath := strings.TrimSpace(svc.ControlURL)
	if serviceType == "" || controlPath == "" {
		return nil, remote.NewNoServiceDescriptionError(location)
	}

	base, err := url.Parse(location)
	if err != nil {
		return nil, remote.NewParseError(fmt.Sprintf("invalid location %q", location), err)
	}
	ref, err := url.Parse(controlPath)
	if err != nil {
		return nil, remote.NewParseError(fmt.Sprintf("invalid control URL %q", controlPath), err)
	}

	device := remote.NewDevice(base.Host, base.ResolveReference(ref).String(), serviceType)
	device.FriendlyName = strings.TrimSpace(doc.Device.FriendlyName)
	device.Manufacturer = strings.TrimSpace(doc.Device.Manufacturer)
	device.ModelName = strings.TrimSpace(doc.Device.ModelName)
	device.UDN = strings.TrimSpace(doc.Device.UDN)

	return device, nil
}

// fetchDescription GETs a service description
func fetchDescription(ctx context.Context, client *http.Client, location string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, location, nil)
	if err != nil {
		return nil, remote.NewParseError(fmt.Sprintf("invalid location %q", location), err)
	}
	req.Header.Set("User-Agent", version.UserAgent())

	host := req.URL.Host
	logging.LogHTTPRequest(req.Method, location, req.Header)

	resp, err := client.Do(req)
	if err != nil {
		return nil, remote.ClassifyNetworkError(err, host)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxDescriptionSize))
	if err != nil {
		return nil, remote.NewNetworkError("failed to read service description", host, err)
	}
	logging.LogHTTPResponse(location, resp.StatusCode, body)

	if resp.StatusCode != http.StatusOK {
		return nil, remote.NewHTTPError(resp.StatusCode, "service description request failed", host)
	}

	return body, nil
}

// Resolve fetches and parses the description at location using a default
// scanner.
func Resolve(ctx context.Context, location string) (*remote.Device, error) {
	return NewScanner().Resolve(ctx, location)
}
