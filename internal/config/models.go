package config

import (
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"
	"time"
	"unicode"

	"gopkg.in/yaml.v3"

	"github.com/muurk/viera/internal/discovery"
	"github.com/muurk/viera/internal/keys"
	"github.com/muurk/viera/internal/remote"
)

// ErrDeviceNotFound is returned when a name is not in the registry
var ErrDeviceNotFound = errors.New("device not found")

// Registry represents the entire user configuration file.
type Registry struct {
	Version     int                `yaml:"version"`
	Devices     map[string]*Device `yaml:"devices,omitempty"` // Keyed by user-chosen name
	Preferences *Preferences       `yaml:"preferences,omitempty"`
	Commands    map[string]string  `yaml:"commands,omitempty"` // Overrides and additions to the built-in command table
	MQTT        *MQTTConfig        `yaml:"mqtt,omitempty"`
	API         *APIConfig         `yaml:"api,omitempty"`
}

// Device is a remembered TV. The three connection fields are enough to
// rebuild a handle without rediscovery.
type Device struct {
	Hostname     string        `yaml:"hostname"`
	ControlURL   string        `yaml:"control_url"`
	ServiceType  string        `yaml:"service_type"`
	FriendlyName string        `yaml:"friendly_name,omitempty"`
	ModelName    string        `yaml:"model_name,omitempty"`
	UDN          string        `yaml:"udn,omitempty"`
	MinInterval  time.Duration `yaml:"min_interval,omitempty"` // Overrides preferences.min_interval
	LastSeen     time.Time     `yaml:"last_seen,omitempty"`
}

// Preferences represents application-wide user preferences.
type Preferences struct {
	DiscoverTimeout time.Duration `yaml:"discover_timeout"` // Per-receive SSDP wait
	HTTPTimeout     time.Duration `yaml:"http_timeout"`
	MinInterval     time.Duration `yaml:"min_interval"`
	FailFast        bool          `yaml:"fail_fast"`
	VendorMarker    string        `yaml:"vendor_marker,omitempty"`
	MulticastTTL    int           `yaml:"multicast_ttl,omitempty"`
}

// UnmarshalYAML decodes preferences over the defaults so omitted keys keep
// their default values.
func (p *Preferences) UnmarshalYAML(node *yaml.Node) error {
	type plain Preferences
	prefs := plain(*defaultPreferences())
	if err := node.Decode(&prefs); err != nil {
		return err
	}
	*p = Preferences(prefs)
	return nil
}

// MQTTConfig configures the MQTT bridge.
type MQTTConfig struct {
	Broker      string `yaml:"broker"`
	ClientID    string `yaml:"client_id,omitempty"`
	Username    string `yaml:"username,omitempty"`
	PasswordEnv string `yaml:"password_env,omitempty"` // Name of the variable holding the password
	TopicPrefix string `yaml:"topic_prefix,omitempty"`
	QoS         byte   `yaml:"qos,omitempty"`
}

// APIConfig configures the REST server.
type APIConfig struct {
	Listen string `yaml:"listen"`
}

const (
	DefaultTopicPrefix = "viera"
	DefaultClientID    = "viera-bridge"
	DefaultAPIListen   = "127.0.0.1:8080"
)

func defaultPreferences() *Preferences {
	return &Preferences{
		DiscoverTimeout: discovery.DefaultTimeout,
		HTTPTimeout:     remote.DefaultTimeout,
		MinInterval:     remote.DefaultMinInterval,
		VendorMarker:    discovery.DefaultVendorMarker,
		MulticastTTL:    discovery.DefaultMulticastTTL,
	}
}

// NewRegistry creates a new Registry with default values.
func NewRegistry() *Registry {
	return &Registry{
		Version:     1,
		Devices:     make(map[string]*Device),
		Preferences: defaultPreferences(),
		Commands:    make(map[string]string),
	}
}

// applyDefaults fills sections and values missing from a loaded file
func (r *Registry) applyDefaults() {
	if r.Devices == nil {
		r.Devices = make(map[string]*Device)
	}
	if r.Commands == nil {
		r.Commands = make(map[string]string)
	}

	defaults := defaultPreferences()
	if r.Preferences == nil {
		r.Preferences = defaults
		return
	}
	p := r.Preferences
	if p.DiscoverTimeout <= 0 {
		p.DiscoverTimeout = defaults.DiscoverTimeout
	}
	if p.HTTPTimeout <= 0 {
		p.HTTPTimeout = defaults.HTTPTimeout
	}
	if p.MinInterval < 0 {
		p.MinInterval = defaults.MinInterval
	}
	if p.VendorMarker == "" {
		p.VendorMarker = defaults.VendorMarker
	}
	if p.MulticastTTL <= 0 {
		p.MulticastTTL = defaults.MulticastTTL
	}
}

// DeviceNames returns the registered device names in sorted order.
func (r *Registry) DeviceNames() []string {
	names := make([]string, 0, len(r.Devices))
	for name := range r.Devices {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// CommandTable returns the built-in table merged with the user's commands.
func (r *Registry) CommandTable() (*keys.Table, error) {
	table, err := keys.Default().With(r.Commands)
	if err != nil {
		return nil, fmt.Errorf("invalid commands section: %w", err)
	}
	return table, nil
}

// Device builds a ready-to-use handle for a registered TV.
func (r *Registry) Device(name string) (*remote.Device, error) {
	entry, ok := r.Devices[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrDeviceNotFound, name)
	}
	if entry.Hostname == "" || entry.ControlURL == "" || entry.ServiceType == "" {
		return nil, fmt.Errorf("device %s is incomplete; rediscover or re-add it", name)
	}

	table, err := r.CommandTable()
	if err != nil {
		return nil, err
	}

	device := remote.NewDevice(entry.Hostname, entry.ControlURL, entry.ServiceType)
	device.FriendlyName = entry.FriendlyName
	device.ModelName = entry.ModelName
	device.UDN = entry.UDN
	device.SetTable(table)

	device.MinInterval = r.Preferences.MinInterval
	if entry.MinInterval > 0 {
		device.MinInterval = entry.MinInterval
	}
	device.SetTimeout(r.Preferences.HTTPTimeout)

	return device, nil
}

// RememberDevice stores a handle's connection parameters under name.
func (r *Registry) RememberDevice(name string, device *remote.Device) {
	if r.Devices == nil {
		r.Devices = make(map[string]*Device)
	}

	entry := &Device{
		Hostname:     device.Hostname,
		ControlURL:   device.ControlURL,
		ServiceType:  device.ServiceType,
		FriendlyName: device.FriendlyName,
		ModelName:    device.ModelName,
		UDN:          device.UDN,
		LastSeen:     time.Now(),
	}
	if existing, ok := r.Devices[name]; ok {
		entry.MinInterval = existing.MinInterval
	}
	r.Devices[name] = entry
}

// RemoveDevice deletes a device entry. It reports whether the name existed.
func (r *Registry) RemoveDevice(name string) bool {
	if _, ok := r.Devices[name]; !ok {
		return false
	}
	delete(r.Devices, name)
	return true
}

// NameFor returns the registered name of a device with the same UDN or
// control URL, if any.
func (r *Registry) NameFor(device *remote.Device) (string, bool) {
	for _, name := range r.DeviceNames() {
		entry := r.Devices[name]
		if device.UDN != "" && entry.UDN == device.UDN {
			return name, true
		}
		if entry.ControlURL == device.ControlURL {
			return name, true
		}
	}
	return "", false
}

// SuggestName derives a registry name for a device that has none yet.
func (r *Registry) SuggestName(device *remote.Device) string {
	base := slug(device.FriendlyName)
	if base == "" {
		base = slug(device.Hostname)
	}
	if base == "" {
		base = "tv"
	}

	name := base
	for i := 2; ; i++ {
		if _, taken := r.Devices[name]; !taken {
			return name
		}
		name = fmt.Sprintf("%s-%d", base, i)
	}
}

func slug(s string) string {
	var b strings.Builder
	dash := false
	for _, c := range strings.ToLower(s) {
		if unicode.IsLetter(c) || unicode.IsDigit(c) {
			b.WriteRune(c)
			dash = false
			continue
		}
		if !dash && b.Len() > 0 {
			b.WriteByte('-')
			dash = true
		}
	}
	return strings.TrimRight(b.String(), "-")
}

// NewScanner returns a discovery scanner configured from preferences.
func (r *Registry) NewScanner() (*discovery.Scanner, error) {
	table, err := r.CommandTable()
	if err != nil {
		return nil, err
	}

	p := r.Preferences
	scanner := discovery.NewScanner()
	scanner.Timeout = p.DiscoverTimeout
	scanner.FailFast = p.FailFast
	scanner.VendorMarker = p.VendorMarker
	scanner.MulticastTTL = p.MulticastTTL
	scanner.HTTPClient.Timeout = p.HTTPTimeout
	scanner.HTTPTimeout = p.HTTPTimeout
	scanner.MinInterval = p.MinInterval
	scanner.Table = table

	return scanner, nil
}

// MQTTSettings returns the MQTT section with defaults applied.
func (r *Registry) MQTTSettings() MQTTConfig {
	var cfg MQTTConfig
	if r.MQTT != nil {
		cfg = *r.MQTT
	}
	if cfg.ClientID == "" {
		cfg.ClientID = DefaultClientID
	}
	if cfg.TopicPrefix == "" {
		cfg.TopicPrefix = DefaultTopicPrefix
	}
	return cfg
}

// Password reads the broker password from the configured variable.
func (c MQTTConfig) Password() string {
	if c.PasswordEnv == "" {
		return ""
	}
	return os.Getenv(c.PasswordEnv)
}

// APIListen returns the REST listen address.
func (r *Registry) APIListen() string {
	if r.API == nil || r.API.Listen == "" {
		return DefaultAPIListen
	}
	return r.API.Listen
}
