package main

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/muurk/viera/internal/config"
	"github.com/muurk/viera/internal/remote"
)

func TestLocationFor(t *testing.T) {
	tests := []struct {
		target string
		want   string
	}{
		{"192.168.1.20", "http://192.168.1.20:55000/nrc/ddd.xml"},
		{"192.168.1.20:8080", "http://192.168.1.20:8080/nrc/ddd.xml"},
		{"http://tv.local:55000/desc.xml", "http://tv.local:55000/desc.xml"},
	}

	for _, tt := range tests {
		if got := locationFor(tt.target); got != tt.want {
			t.Errorf("locationFor(%q) = %q, want %q", tt.target, got, tt.want)
		}
	}
}

func TestResolveTarget_RegisteredName(t *testing.T) {
	reg := config.NewRegistry()
	reg.RememberDevice("den", remote.NewDevice("192.168.1.20:55000",
		"http://192.168.1.20:55000/nrc/control_0", "urn:panasonic-com:service:p00NetworkControl:1"))

	device, name, err := resolveTarget(context.Background(), reg, "den")
	if err != nil {
		t.Fatalf("resolveTarget() error = %v", err)
	}
	if name != "den" || device.Hostname != "192.168.1.20:55000" {
		t.Errorf("resolveTarget() = %v, %q", device, name)
	}
}

func TestResolveTarget_OnlyRegisteredDevice(t *testing.T) {
	reg := config.NewRegistry()
	reg.RememberDevice("den", remote.NewDevice("192.168.1.20:55000",
		"http://192.168.1.20:55000/nrc/control_0", "urn:panasonic-com:service:p00NetworkControl:1"))

	_, name, err := resolveTarget(context.Background(), reg, "")
	if err != nil {
		t.Fatalf("resolveTarget() error = %v", err)
	}
	if name != "den" {
		t.Errorf("name = %q, want den", name)
	}
}

func TestResolveTarget_AmbiguousRegistry(t *testing.T) {
	reg := config.NewRegistry()
	for _, name := range []string{"den", "kitchen"} {
		reg.RememberDevice(name, remote.NewDevice("h", "http://h/c", "urn:x"))
	}

	_, _, err := resolveTarget(context.Background(), reg, "")
	if err == nil || !strings.Contains(err.Error(), "--device") {
		t.Errorf("resolveTarget() error = %v, want a hint about --device", err)
	}
}

func TestResolveTarget_Address(t *testing.T) {
	const description = `<?xml version="1.0"?>
<root xmlns="urn:schemas-upnp-org:device-1-0">
  <device>
    <friendlyName>Bedroom</friendlyName>
    <serviceList>
      <service>
        <serviceType>urn:panasonic-com:service:p00NetworkControl:1</serviceType>
        <controlURL>/nrc/control_0</controlURL>
      </service>
    </serviceList>
  </device>
</root>`

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(description))
	}))
	defer server.Close()

	reg := config.NewRegistry()
	device, name, err := resolveTarget(context.Background(), reg, server.URL+"/nrc/ddd.xml")
	if err != nil {
		t.Fatalf("resolveTarget() error = %v", err)
	}
	if name != "" {
		t.Errorf("name = %q, want none for an unregistered device", name)
	}
	if device.ControlURL != server.URL+"/nrc/control_0" {
		t.Errorf("ControlURL = %q", device.ControlURL)
	}
	if device.FriendlyName != "Bedroom" {
		t.Errorf("FriendlyName = %q", device.FriendlyName)
	}
}

func TestDisplayName(t *testing.T) {
	device := remote.NewDevice("192.168.1.20:55000", "", "")
	if got := displayName("", device); got != "192.168.1.20:55000" {
		t.Errorf("displayName() = %q", got)
	}
	device.FriendlyName = "Lounge"
	if got := displayName("", device); got != "Lounge" {
		t.Errorf("displayName() = %q", got)
	}
	if got := displayName("den", device); got != "den" {
		t.Errorf("displayName() = %q", got)
	}
}
