package config

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
	"time"

	"github.com/muurk/viera/internal/remote"
)

func TestGetConfigDir(t *testing.T) {
	configDir, err := GetConfigDir()
	if err != nil {
		t.Fatalf("GetConfigDir() error = %v", err)
	}

	if !strings.Contains(configDir, "viera") {
		t.Errorf("GetConfigDir() = %v, should contain 'viera'", configDir)
	}

	switch runtime.GOOS {
	case "windows":
		if !strings.Contains(configDir, "AppData") && !strings.Contains(configDir, "Local") {
			t.Errorf("Windows config dir should contain 'AppData' or 'Local', got: %v", configDir)
		}
	case "linux":
		if os.Getenv("XDG_CONFIG_HOME") == "" && !strings.Contains(configDir, ".config") {
			t.Errorf("Unix config dir should contain '.config', got: %v", configDir)
		}
	}
}

func TestGetConfigPath(t *testing.T) {
	t.Setenv(PathEnv, "")

	configPath, err := GetConfigPath()
	if err != nil {
		t.Fatalf("GetConfigPath() error = %v", err)
	}
	if filepath.Base(configPath) != "config.yaml" {
		t.Errorf("GetConfigPath() should end with 'config.yaml', got: %v", configPath)
	}

	override := filepath.Join(t.TempDir(), "custom.yaml")
	t.Setenv(PathEnv, override)

	configPath, err = GetConfigPath()
	if err != nil {
		t.Fatalf("GetConfigPath() error = %v", err)
	}
	if configPath != override {
		t.Errorf("GetConfigPath() = %v, want %v", configPath, override)
	}
}

func TestNewRegistry(t *testing.T) {
	reg := NewRegistry()

	if reg.Version != 1 {
		t.Errorf("NewRegistry().Version = %v, want 1", reg.Version)
	}
	if reg.Devices == nil {
		t.Error("NewRegistry().Devices should not be nil")
	}
	if reg.Preferences == nil {
		t.Fatal("NewRegistry().Preferences should not be nil")
	}
	if reg.Preferences.DiscoverTimeout != time.Second {
		t.Errorf("DiscoverTimeout = %v, want 1s", reg.Preferences.DiscoverTimeout)
	}
	if reg.Preferences.MinInterval != 500*time.Millisecond {
		t.Errorf("MinInterval = %v, want 500ms", reg.Preferences.MinInterval)
	}
	if reg.Preferences.FailFast {
		t.Error("FailFast should be off by default")
	}
}

func testDevice() *remote.Device {
	d := remote.NewDevice(
		"192.168.1.20:55000",
		"http://192.168.1.20:55000/nrc/control_0",
		"urn:panasonic-com:service:p00NetworkControl:1",
	)
	d.FriendlyName = "Living Room"
	d.ModelName = "TX-50AS500"
	d.UDN = "uuid:4d454930-0200-1000-8001-a81374a2c1f5"
	return d
}

func TestRegistryRememberAndDevice(t *testing.T) {
	reg := NewRegistry()
	reg.RememberDevice("living-room", testDevice())

	entry := reg.Devices["living-room"]
	if entry == nil {
		t.Fatal("RememberDevice() did not store the device")
	}
	if entry.LastSeen.IsZero() {
		t.Error("LastSeen should be set")
	}

	device, err := reg.Device("living-room")
	if err != nil {
		t.Fatalf("Device() error = %v", err)
	}
	want := testDevice()
	if device.Hostname != want.Hostname || device.ControlURL != want.ControlURL || device.ServiceType != want.ServiceType {
		t.Errorf("Device() = %+v, want connection parameters of %+v", device, want)
	}
	if device.FriendlyName != "Living Room" {
		t.Errorf("FriendlyName = %q", device.FriendlyName)
	}
	if device.MinInterval != reg.Preferences.MinInterval {
		t.Errorf("MinInterval = %v, want %v", device.MinInterval, reg.Preferences.MinInterval)
	}
	if device.HTTPClient.Timeout != reg.Preferences.HTTPTimeout {
		t.Errorf("HTTP timeout = %v, want %v", device.HTTPClient.Timeout, reg.Preferences.HTTPTimeout)
	}
}

func TestRegistryDevice_PerDeviceInterval(t *testing.T) {
	reg := NewRegistry()
	reg.RememberDevice("bedroom", testDevice())
	reg.Devices["bedroom"].MinInterval = time.Second

	// Rediscovery keeps the user's override
	reg.RememberDevice("bedroom", testDevice())

	device, err := reg.Device("bedroom")
	if err != nil {
		t.Fatalf("Device() error = %v", err)
	}
	if device.MinInterval != time.Second {
		t.Errorf("MinInterval = %v, want 1s", device.MinInterval)
	}
}

func TestRegistryDevice_NotFound(t *testing.T) {
	reg := NewRegistry()

	_, err := reg.Device("kitchen")
	if !errors.Is(err, ErrDeviceNotFound) {
		t.Errorf("Device() error = %v, want ErrDeviceNotFound", err)
	}
}

func TestRegistryDevice_Incomplete(t *testing.T) {
	reg := NewRegistry()
	reg.Devices["broken"] = &Device{Hostname: "10.0.0.5:55000"}

	if _, err := reg.Device("broken"); err == nil {
		t.Error("Device() expected error for entry without control URL")
	}
}

func TestRegistryRemoveDevice(t *testing.T) {
	reg := NewRegistry()
	reg.RememberDevice("living-room", testDevice())

	if !reg.RemoveDevice("living-room") {
		t.Error("RemoveDevice() = false for existing device")
	}
	if reg.RemoveDevice("living-room") {
		t.Error("RemoveDevice() = true for missing device")
	}
	if len(reg.Devices) != 0 {
		t.Errorf("len(Devices) = %d, want 0", len(reg.Devices))
	}
}

func TestRegistryCommandTable(t *testing.T) {
	reg := NewRegistry()
	reg.Commands["netflix"] = "NRC_NETFLIX-ONOFF"
	reg.Commands["power"] = "NRC_POWER-ONOFF2"

	table, err := reg.CommandTable()
	if err != nil {
		t.Fatalf("CommandTable() error = %v", err)
	}

	if tmpl, ok := table.Lookup("netflix"); !ok || tmpl != "NRC_NETFLIX-ONOFF" {
		t.Errorf("Lookup(netflix) = %q, %v", tmpl, ok)
	}
	if tmpl, _ := table.Lookup("power"); tmpl != "NRC_POWER-ONOFF2" {
		t.Errorf("Lookup(power) = %q, want override", tmpl)
	}
	if _, ok := table.Lookup("mute"); !ok {
		t.Error("built-in commands should remain")
	}

	reg.Commands["bad"] = "NRC_{}_{}"
	if _, err := reg.CommandTable(); err == nil {
		t.Error("CommandTable() expected error for two placeholders")
	}
}

func TestRegistryNameFor(t *testing.T) {
	reg := NewRegistry()
	reg.RememberDevice("living-room", testDevice())

	name, ok := reg.NameFor(testDevice())
	if !ok || name != "living-room" {
		t.Errorf("NameFor() = %q, %v", name, ok)
	}

	other := remote.NewDevice("10.0.0.9:55000", "http://10.0.0.9:55000/nrc/control_0", "x")
	if _, ok := reg.NameFor(other); ok {
		t.Error("NameFor() matched an unknown device")
	}
}

func TestRegistrySuggestName(t *testing.T) {
	reg := NewRegistry()

	if got := reg.SuggestName(testDevice()); got != "living-room" {
		t.Errorf("SuggestName() = %q, want living-room", got)
	}

	reg.RememberDevice("living-room", testDevice())
	if got := reg.SuggestName(testDevice()); got != "living-room-2" {
		t.Errorf("SuggestName() = %q, want living-room-2", got)
	}

	anonymous := remote.NewDevice("192.168.1.30:55000", "http://192.168.1.30:55000/c", "x")
	if got := reg.SuggestName(anonymous); got != "192-168-1-30-55000" {
		t.Errorf("SuggestName() = %q", got)
	}
}

func TestRegistryNewScanner(t *testing.T) {
	reg := NewRegistry()
	reg.Preferences.DiscoverTimeout = 3 * time.Second
	reg.Preferences.FailFast = true
	reg.Preferences.HTTPTimeout = 2 * time.Second
	reg.Commands["netflix"] = "NRC_NETFLIX-ONOFF"

	scanner, err := reg.NewScanner()
	if err != nil {
		t.Fatalf("NewScanner() error = %v", err)
	}
	if scanner.Timeout != 3*time.Second {
		t.Errorf("Timeout = %v", scanner.Timeout)
	}
	if !scanner.FailFast {
		t.Error("FailFast not applied")
	}
	if scanner.HTTPClient.Timeout != 2*time.Second {
		t.Errorf("HTTP timeout = %v", scanner.HTTPClient.Timeout)
	}
	if _, ok := scanner.Table.Lookup("netflix"); !ok {
		t.Error("scanner table lacks user command")
	}
}

func TestRegistrySaveAndLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")

	reg := NewRegistry()
	reg.RememberDevice("living-room", testDevice())
	reg.Preferences.MinInterval = 750 * time.Millisecond
	reg.Commands["netflix"] = "NRC_NETFLIX-ONOFF"
	reg.MQTT = &MQTTConfig{Broker: "tcp://localhost:1883", PasswordEnv: "VIERA_MQTT_PASSWORD"}

	if err := reg.SaveTo(path); err != nil {
		t.Fatalf("SaveTo() error = %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile() error = %v", err)
	}
	if !strings.HasPrefix(string(data), "# Viera Configuration File") {
		t.Error("saved file should start with the header comment")
	}
	if !strings.Contains(string(data), "min_interval: 750ms") {
		t.Errorf("durations should be written as strings:\n%s", data)
	}
	if _, err := os.Stat(path + ".tmp"); !os.IsNotExist(err) {
		t.Error("temporary file should be renamed away")
	}

	loaded, err := LoadFrom(path)
	if err != nil {
		t.Fatalf("LoadFrom() error = %v", err)
	}
	if loaded.Devices["living-room"].ControlURL != testDevice().ControlURL {
		t.Errorf("device not round-tripped: %+v", loaded.Devices["living-room"])
	}
	if loaded.Preferences.MinInterval != 750*time.Millisecond {
		t.Errorf("MinInterval = %v", loaded.Preferences.MinInterval)
	}
	if loaded.Commands["netflix"] != "NRC_NETFLIX-ONOFF" {
		t.Errorf("commands not round-tripped: %v", loaded.Commands)
	}
	if loaded.MQTT == nil || loaded.MQTT.Broker != "tcp://localhost:1883" {
		t.Errorf("mqtt not round-tripped: %+v", loaded.MQTT)
	}
}

func TestLoadFrom_Missing(t *testing.T) {
	reg, err := LoadFrom(filepath.Join(t.TempDir(), "absent.yaml"))
	if err != nil {
		t.Fatalf("LoadFrom() error = %v", err)
	}
	if reg.Version != 1 || len(reg.Devices) != 0 {
		t.Errorf("LoadFrom() = %+v, want fresh registry", reg)
	}
}

func TestParse(t *testing.T) {
	tests := []struct {
		name    string
		doc     string
		wantErr bool
		check   func(t *testing.T, r *Registry)
	}{
		{
			name: "empty document",
			doc:  "",
			check: func(t *testing.T, r *Registry) {
				if r.Preferences.HTTPTimeout != remote.DefaultTimeout {
					t.Errorf("HTTPTimeout = %v", r.Preferences.HTTPTimeout)
				}
			},
		},
		{
			name: "partial preferences get defaults",
			doc:  "version: 1\npreferences:\n  fail_fast: true\n  discover_timeout: 2s\n",
			check: func(t *testing.T, r *Registry) {
				p := r.Preferences
				if !p.FailFast || p.DiscoverTimeout != 2*time.Second {
					t.Errorf("explicit values lost: %+v", p)
				}
				if p.VendorMarker != "Panasonic" || p.HTTPTimeout != remote.DefaultTimeout {
					t.Errorf("defaults not applied: %+v", p)
				}
			},
		},
		{
			name: "explicit zero interval disables spacing",
			doc:  "version: 1\npreferences:\n  min_interval: 0s\n",
			check: func(t *testing.T, r *Registry) {
				if r.Preferences.MinInterval != 0 {
					t.Errorf("MinInterval = %v, want 0", r.Preferences.MinInterval)
				}
			},
		},
		{
			name: "omitted interval keeps default",
			doc:  "version: 1\npreferences:\n  fail_fast: true\n",
			check: func(t *testing.T, r *Registry) {
				if r.Preferences.MinInterval != remote.DefaultMinInterval {
					t.Errorf("MinInterval = %v, want default", r.Preferences.MinInterval)
				}
			},
		},
		{
			name:    "unsupported version",
			doc:     "version: 2\n",
			wantErr: true,
		},
		{
			name:    "invalid yaml",
			doc:     "version: [1\n",
			wantErr: true,
		},
		{
			name:    "invalid command",
			doc:     "version: 1\ncommands:\n  broken: \"\"\n",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			reg, err := Parse([]byte(tt.doc))
			if (err != nil) != tt.wantErr {
				t.Fatalf("Parse() error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.check != nil {
				tt.check(t, reg)
			}
		})
	}
}

func TestMQTTSettings(t *testing.T) {
	reg := NewRegistry()

	cfg := reg.MQTTSettings()
	if cfg.TopicPrefix != DefaultTopicPrefix || cfg.ClientID != DefaultClientID {
		t.Errorf("MQTTSettings() = %+v, want defaults", cfg)
	}

	t.Setenv("VIERA_TEST_MQTT_PASSWORD", "s3cret")
	reg.MQTT = &MQTTConfig{Broker: "tcp://broker:1883", TopicPrefix: "home/tv", PasswordEnv: "VIERA_TEST_MQTT_PASSWORD"}

	cfg = reg.MQTTSettings()
	if cfg.TopicPrefix != "home/tv" {
		t.Errorf("TopicPrefix = %q", cfg.TopicPrefix)
	}
	if cfg.Password() != "s3cret" {
		t.Errorf("Password() = %q", cfg.Password())
	}
}

func TestAPIListen(t *testing.T) {
	reg := NewRegistry()
	if reg.APIListen() != DefaultAPIListen {
		t.Errorf("APIListen() = %q", reg.APIListen())
	}
	reg.API = &APIConfig{Listen: ":9000"}
	if reg.APIListen() != ":9000" {
		t.Errorf("APIListen() = %q", reg.APIListen())
	}
}

func TestIntervalAgreesAcrossResolvePaths(t *testing.T) {
	const description = `<?xml version="1.0"?>
<root xmlns="urn:schemas-upnp-org:device-1-0">
  <device>
    <friendlyName>Lounge</friendlyName>
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

	for _, interval := range []string{"0s", "250ms"} {
		t.Run(interval, func(t *testing.T) {
			reg, err := Parse([]byte("version: 1\npreferences:\n  min_interval: " + interval + "\n"))
			if err != nil {
				t.Fatalf("Parse() error = %v", err)
			}
			want := reg.Preferences.MinInterval

			scanner, err := reg.NewScanner()
			if err != nil {
				t.Fatalf("NewScanner() error = %v", err)
			}
			discovered, err := scanner.Resolve(context.Background(), server.URL+"/nrc/ddd.xml")
			if err != nil {
				t.Fatalf("Resolve() error = %v", err)
			}
			if discovered.MinInterval != want {
				t.Errorf("resolved MinInterval = %v, want %v", discovered.MinInterval, want)
			}

			reg.RememberDevice("lounge", discovered)
			registered, err := reg.Device("lounge")
			if err != nil {
				t.Fatalf("Device() error = %v", err)
			}
			if registered.MinInterval != discovered.MinInterval {
				t.Errorf("registered MinInterval = %v, resolved = %v", registered.MinInterval, discovered.MinInterval)
			}
		})
	}
}
