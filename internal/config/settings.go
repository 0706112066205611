package config

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"sync"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	appName    = "autoprov"
	configFile = "config.yaml"

	// CurrentVersion is the settings schema version this build reads and writes.
	CurrentVersion = 1
)

// Mutex for thread-safe file operations
var fileMutex sync.Mutex

// Settings holds every tunable the provisioning engine consumes. The
// numeric bounds were chosen empirically against Broadcom DD-WRT devices
// and gen1 Shelly firmware; they are bounds, not magic - anything bounded
// and debounced works.
type Settings struct {
	// Version is the settings schema version (currently 1)
	Version int `yaml:"version"`

	// Prefix is the SSID prefix that identifies factory-reset devices
	Prefix string `yaml:"prefix"`

	// FactoryDeviceAddr is the address a factory-reset device assigns
	// itself on its own hotspot
	FactoryDeviceAddr string `yaml:"factory_device_addr"`

	// BridgeAddr, BridgeGateway and BridgeNetmask form the static
	// addressing a control device uses in STA mode to reach the factory
	// device. They must match how the control device was learned.
	BridgeAddr    string `yaml:"bridge_addr"`
	BridgeGateway string `yaml:"bridge_gateway"`
	BridgeNetmask string `yaml:"bridge_netmask"`

	// PollInterval is the delay between convergence survey polls
	PollInterval time.Duration `yaml:"poll_interval"`

	// DebounceCount is how many consecutive polls must miss the factory
	// SSID before departure is declared
	DebounceCount int `yaml:"debounce_count"`

	// MaxPolls bounds one convergence wait
	MaxPolls int `yaml:"max_polls"`

	// ClaimAttempts bounds how often join programming is retried when the
	// device never leaves its factory network
	ClaimAttempts int `yaml:"claim_attempts"`

	// LocateAttempts bounds the search for the device on the target network
	LocateAttempts int `yaml:"locate_attempts"`

	// PauseTime is the settle delay after provisioning steps
	PauseTime time.Duration `yaml:"pause_time"`

	// WaitTime is the delay between discovery passes when no factory
	// device is visible (0 means a single pass)
	WaitTime time.Duration `yaml:"wait_time"`

	// OTATimeout is the wall-clock budget for one firmware update.
	// 0 disables the completion check entirely (inadvisable).
	OTATimeout time.Duration `yaml:"ota_timeout"`

	// OTAMaxChecks bounds how many status polls may pass without ever
	// observing "updating" before the update is declared timed out
	OTAMaxChecks int `yaml:"ota_max_checks"`

	// QueueFile is the instruction queue store location
	QueueFile string `yaml:"queue_file"`

	// DeviceDBFile is the device record store location
	DeviceDBFile string `yaml:"device_db_file"`

	// RouterFile is the control-device profile store location
	RouterFile string `yaml:"router_file"`
}

// Defaults returns the default settings.
func Defaults() *Settings {
	return &Settings{
		Version:           CurrentVersion,
		Prefix:            "shelly",
		FactoryDeviceAddr: "192.168.33.1",
		BridgeAddr:        "192.168.33.10",
		BridgeGateway:     "192.168.33.1",
		BridgeNetmask:     "255.255.255.0",
		PollInterval:      1 * time.Second,
		DebounceCount:     3,
		MaxPolls:          60,
		ClaimAttempts:     10,
		LocateAttempts:    40,
		PauseTime:         3 * time.Second,
		WaitTime:          5 * time.Second,
		OTATimeout:        300 * time.Second,
		OTAMaxChecks:      10,
		QueueFile:         "provisionlist.json",
		DeviceDBFile:      "iot-devices.json",
		RouterFile:        "ddwrt_db.json",
	}
}

// GetConfigDir returns the OS-appropriate configuration directory.
func GetConfigDir() (string, error) {
	switch runtime.GOOS {
	case "windows":
		localAppData := os.Getenv("LOCALAPPDATA")
		if localAppData == "" {
			userProfile := os.Getenv("USERPROFILE")
			if userProfile == "" {
				return "", fmt.Errorf("cannot determine user profile directory (LOCALAPPDATA and USERPROFILE not set)")
			}
			return filepath.Join(userProfile, "AppData", "Local", appName), nil
		}
		return filepath.Join(localAppData, appName), nil

	default:
		// Linux, macOS and other Unix-likes: XDG_CONFIG_HOME or $HOME/.config
		if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
			return filepath.Join(xdg, appName), nil
		}
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("cannot determine home directory: %w", err)
		}
		return filepath.Join(homeDir, ".config", appName), nil
	}
}

// GetConfigPath returns the full path to the settings file.
func GetConfigPath() (string, error) {
	configDir, err := GetConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(configDir, configFile), nil
}

// Load reads the settings file, returning defaults if it does not exist.
func Load() (*Settings, error) {
	configPath, err := GetConfigPath()
	if err != nil {
		return nil, fmt.Errorf("failed to get config path: %w", err)
	}
	return LoadFrom(configPath)
}

// LoadFrom reads settings from an explicit path. A missing file yields
// defaults. Fields absent from the file keep their default values.
func LoadFrom(path string) (*Settings, error) {
	settings := Defaults()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return settings, nil
		}
		return nil, fmt.Errorf("failed to read settings file: %w", err)
	}

	if err := yaml.Unmarshal(data, settings); err != nil {
		return nil, fmt.Errorf("failed to parse settings file: %w", err)
	}

	if settings.Version != CurrentVersion {
		return nil, fmt.Errorf("unsupported settings version: %d (expected %d)", settings.Version, CurrentVersion)
	}

	return settings, nil
}

// Save writes the settings to the default location.
// The write is atomic (temp file plus rename).
func (s *Settings) Save() error {
	configPath, err := GetConfigPath()
	if err != nil {
		return fmt.Errorf("failed to get config path: %w", err)
	}
	return s.SaveTo(configPath)
}

// SaveTo writes the settings to an explicit path atomically.
func (s *Settings) SaveTo(path string) error {
	fileMutex.Lock()
	defer fileMutex.Unlock()

	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(s)
	if err != nil {
		return fmt.Errorf("failed to marshal settings: %w", err)
	}

	header := []byte(`# autoprov settings
#
# Bounds and intervals used by the provisioning engine. Delete a key to
# fall back to its built-in default. Control-device admin passwords are
# stored in the control-device profile file, not here.

`)
	data = append(header, data...)

	tmpPath := path + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0600); err != nil {
		return fmt.Errorf("failed to write temporary settings file: %w", err)
	}

	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to save settings file: %w", err)
	}

	return nil
}
