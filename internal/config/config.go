// Package config provides configuration management for pads and subscribers.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/netip"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync"

	"github.com/rs/zerolog/log"
)

// ErrInvalidConfig is returned by Validate.
var ErrInvalidConfig = errors.New("invalid configuration")

// Roles for GeneralConfig.Role.
const (
	RolePad        = "pad"
	RoleSubscriber = "subscriber"
)

// Config represents the application configuration
type Config struct {
	// General contains settings shared by both roles
	General GeneralConfig `json:"general"`

	// Pad contains the settings used when this machine captures the cursor
	Pad PadConfig `json:"pad"`

	// Subscriber contains the settings used when this machine replays it
	Subscriber SubscriberConfig `json:"subscriber"`
}

// GeneralConfig contains general application settings
type GeneralConfig struct {
	// Role determines if this machine is a "pad" or a "subscriber"
	Role string `json:"role"`

	// LogLevel is a zerolog level name ("debug", "info", ...)
	LogLevel string `json:"log_level"`
}

// PadConfig contains the pad settings
type PadConfig struct {
	// Address is the UDP bind address (e.g., "0.0.0.0:47600"). Port 0 means the default port.
	Address string `json:"address"`

	// AnnouncePort is the port advertised in discovery replies (0 = the port discovery reached)
	AnnouncePort int `json:"announce_port"`

	// Width and Height are the capture surface size (0 = learn from the capture source)
	Width  int `json:"width"`
	Height int `json:"height"`

	// CancelKey releases capture (e.g. "Pause")
	CancelKey string `json:"cancel_key"`

	// Script is a capture script path, "-" for stdin
	Script string `json:"script,omitempty"`

	// MDNS advertises the pad over mDNS in addition to answering broadcasts
	MDNS bool `json:"mdns"`

	// APIEnabled enables the HTTP status API
	APIEnabled bool `json:"api_enabled"`

	// APIPort is the port for the API server
	APIPort int `json:"api_port"`

	// APIToken is an optional authentication token for API requests
	APIToken string `json:"api_token,omitempty"`

	// Tray shows a system tray icon
	Tray bool `json:"tray"`
}

// ViewportConfig is the rect of the pad's coordinate space a subscriber asks for
type ViewportConfig struct {
	Left   int `json:"left"`
	Top    int `json:"top"`
	Width  int `json:"width"`
	Height int `json:"height"`
}

// SubscriberConfig contains the subscriber settings
type SubscriberConfig struct {
	// Server is the pad address. An unspecified address ("0.0.0.0:47600") discovers the pad.
	Server string `json:"server"`

	// Client is the local bind address
	Client string `json:"client"`

	// Timeout is the discovery timeout in milliseconds (0 = wait forever)
	Timeout int `json:"timeout"`

	// RateLimit is the pause between discovery rounds in milliseconds
	RateLimit int `json:"rate_limit"`

	// Discovery is "broadcast" or "mdns"
	Discovery string `json:"discovery"`

	// Width and Height bound the local screen for clipping and hiding
	Width  int `json:"width"`
	Height int `json:"height"`

	// OffsetX and OffsetY place the local screen in the pad's coordinate space
	OffsetX int `json:"offset_x"`
	OffsetY int `json:"offset_y"`

	// Flags is a "|" separated list of clip, local_offset, hide_remote
	Flags string `json:"flags"`

	// Viewport, when set, has the pad translate positions before sending
	Viewport ViewportConfig `json:"viewport"`
}

// DefaultConfig returns a new Config with sensible defaults
func DefaultConfig() *Config {
	return &Config{
		General: GeneralConfig{
			Role:     RoleSubscriber,
			LogLevel: "info",
		},
		Pad: PadConfig{
			Address:    "0.0.0.0:47600",
			CancelKey:  "Pause",
			APIEnabled: false,
			APIPort:    47680,
		},
		Subscriber: SubscriberConfig{
			Server:    "0.0.0.0:47600",
			Client:    "0.0.0.0:0",
			Timeout:   0,
			RateLimit: 100,
			Discovery: "broadcast",
			Flags:     "clip",
		},
	}
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	var problems []string
	add := func(format string, args ...any) {
		problems = append(problems, fmt.Sprintf(format, args...))
	}

	switch c.General.Role {
	case RolePad, RoleSubscriber:
	default:
		add("general.role must be %q or %q", RolePad, RoleSubscriber)
	}

	if _, err := netip.ParseAddrPort(c.Pad.Address); err != nil {
		add("pad.address %q is not ip:port", c.Pad.Address)
	}
	if c.Pad.AnnouncePort < 0 || c.Pad.AnnouncePort > 65535 {
		add("pad.announce_port out of range")
	}
	if c.Pad.Width < 0 || c.Pad.Height < 0 {
		add("pad.width and pad.height must not be negative")
	}
	if c.Pad.APIEnabled && (c.Pad.APIPort <= 0 || c.Pad.APIPort > 65535) {
		add("pad.api_port out of range")
	}

	server, err := netip.ParseAddrPort(c.Subscriber.Server)
	if err != nil {
		add("subscriber.server %q is not ip:port", c.Subscriber.Server)
	}
	client, err := netip.ParseAddrPort(c.Subscriber.Client)
	if err != nil {
		add("subscriber.client %q is not ip:port", c.Subscriber.Client)
	} else if server.IsValid() && !client.Addr().IsUnspecified() &&
		client.Addr().Unmap().Is4() != server.Addr().Unmap().Is4() {
		add("subscriber.client and subscriber.server are of different address families")
	}
	if c.Subscriber.Timeout < 0 || c.Subscriber.RateLimit < 0 {
		add("subscriber.timeout and subscriber.rate_limit must not be negative")
	}
	switch c.Subscriber.Discovery {
	case "", "broadcast", "mdns":
	default:
		add("subscriber.discovery must be \"broadcast\" or \"mdns\"")
	}
	if c.Subscriber.Width < 0 || c.Subscriber.Height < 0 {
		add("subscriber.width and subscriber.height must not be negative")
	}
	if c.Subscriber.Viewport.Width < 0 || c.Subscriber.Viewport.Height < 0 {
		add("subscriber.viewport size must not be negative")
	}

	if len(problems) > 0 {
		return fmt.Errorf("%w: %s", ErrInvalidConfig, strings.Join(problems, "; "))
	}
	return nil
}

// Manager handles loading and saving configuration
type Manager struct {
	mu         sync.Mutex
	configPath string
	config     *Config
	onChanged  func()
}

// NewManager creates a configuration manager for the per-user config file
func NewManager() (*Manager, error) {
	configPath, err := getConfigPath()
	if err != nil {
		return nil, err
	}
	return NewManagerAt(configPath), nil
}

// NewManagerAt creates a configuration manager for an explicit file
func NewManagerAt(path string) *Manager {
	return &Manager{
		configPath: path,
		config:     DefaultConfig(),
	}
}

// getConfigPath returns the path to the configuration file
func getConfigPath() (string, error) {
	var configDir string

	switch runtime.GOOS {
	case "darwin":
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		configDir = filepath.Join(home, "Library", "Application Support", "magicmouse")
	case "windows":
		appData := os.Getenv("APPDATA")
		if appData == "" {
			home, err := os.UserHomeDir()
			if err != nil {
				return "", err
			}
			appData = filepath.Join(home, "AppData", "Roaming")
		}
		configDir = filepath.Join(appData, "magicmouse")
	default:
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		configDir = filepath.Join(home, ".config", "magicmouse")
	}

	return filepath.Join(configDir, "config.json"), nil
}

// Path returns the configuration file path
func (m *Manager) Path() string {
	return m.configPath
}

// Load reads the configuration from disk
func (m *Manager) Load() error {
	m.mu.Lock()

	data, err := os.ReadFile(m.configPath)
	if os.IsNotExist(err) {
		// No config file, use defaults
		m.mu.Unlock()
		return nil
	}
	if err != nil {
		m.mu.Unlock()
		return err
	}

	cfg := DefaultConfig()
	if err := json.Unmarshal(data, cfg); err != nil {
		m.mu.Unlock()
		return fmt.Errorf("%s: %w: %v", m.configPath, ErrInvalidConfig, err)
	}
	m.config = cfg
	onChanged := m.onChanged
	m.mu.Unlock()

	if onChanged != nil {
		onChanged()
	}
	return nil
}

// Save writes the configuration to disk
func (m *Manager) Save() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	data, err := json.MarshalIndent(m.config, "", "  ")
	if err != nil {
		return err
	}

	// Create directory if it doesn't exist
	if err := os.MkdirAll(filepath.Dir(m.configPath), 0755); err != nil {
		return err
	}

	log.Info().Str("module", "config").Str("path", m.configPath).Int("bytes", len(data)).Msg("saving configuration")
	return os.WriteFile(m.configPath, data, 0644)
}

// Get returns the current configuration
func (m *Manager) Get() *Config {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.config
}

// Set updates the configuration
func (m *Manager) Set(config *Config) {
	m.mu.Lock()
	m.config = config
	onChanged := m.onChanged
	m.mu.Unlock()
	if onChanged != nil {
		onChanged()
	}
}

// RegisterChangeCallback registers a function to be called when config changes
func (m *Manager) RegisterChangeCallback(fn func()) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onChanged = fn
}
