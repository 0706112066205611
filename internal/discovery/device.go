package discovery

import (
	"fmt"
	"time"
)

// Device represents a discovered device on the network
type Device struct {
	// Name is the announced device name (e.g., "shelly1-35FA58")
	Name string

	// DeviceID is the identifier suffix of the name (e.g., "35FA58"),
	// usually the tail of the hardware MAC
	DeviceID string

	// Hostname is the mDNS hostname (e.g., "shelly1-35FA58.local")
	Hostname string

	// IP is the IPv4 address (e.g., "192.168.1.57")
	IP string

	// Port is the HTTP port (typically 80)
	Port int

	// Metadata contains additional mDNS TXT record data
	Metadata map[string]string

	// DiscoveredAt is when the device was discovered
	DiscoveredAt time.Time
}

// String returns a human-readable string representation of the device
func (d *Device) String() string {
	return fmt.Sprintf("Device %s (%s) at %s:%d", d.Name, d.Hostname, d.IP, d.Port)
}

// BaseURL returns the HTTP base URL for the device
func (d *Device) BaseURL() string {
	return fmt.Sprintf("http://%s:%d", d.IP, d.Port)
}

// GetMetadata retrieves a metadata value by key, or returns empty string if not found
func (d *Device) GetMetadata(key string) string {
	if d.Metadata == nil {
		return ""
	}
	return d.Metadata[key]
}
