package discovery

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/grandcat/zeroconf"
)

const (
	// ServiceType is the mDNS service type the device firmware advertises
	ServiceType = "_http._tcp"

	// ServiceDomain is the mDNS domain (typically "local.")
	ServiceDomain = "local."

	// DefaultScanTimeout is the default timeout for device discovery
	DefaultScanTimeout = 10 * time.Second

	// DefaultPort is the default HTTP port for devices
	DefaultPort = 80
)

// namePattern matches device hostnames, which share their shape with the
// factory SSIDs (e.g., "shelly1-35FA58.local", "shellyswitch-C45A12.local")
var namePattern = regexp.MustCompile(`^([A-Za-z0-9]+-([0-9A-Fa-f]+))\.local\.?$`)

// Scanner handles mDNS device discovery
type Scanner struct {
	// Timeout is the maximum time to wait for device discovery
	Timeout time.Duration

	// Prefix filters discovered names; empty accepts any matching shape
	Prefix string
}

// NewScanner creates a scanner that only reports devices whose announced
// name carries the given prefix.
func NewScanner(prefix string) *Scanner {
	return &Scanner{
		Timeout: DefaultScanTimeout,
		Prefix:  prefix,
	}
}

// ScanForDevices discovers all matching devices on the local network.
func (s *Scanner) ScanForDevices() ([]*Device, error) {
	return s.ScanForDevicesWithContext(context.Background())
}

// ScanForDevicesWithContext discovers devices with a custom context
func (s *Scanner) ScanForDevicesWithContext(ctx context.Context) ([]*Device, error) {
	ctx, cancel := context.WithTimeout(ctx, s.Timeout)
	defer cancel()

	entries := make(chan *zeroconf.ServiceEntry)
	devices := make([]*Device, 0)
	collected := make(chan struct{})

	resolver, err := zeroconf.NewResolver(nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create mDNS resolver: %w", err)
	}

	go func() {
		defer close(collected)
		for entry := range entries {
			if device := s.parseServiceEntry(entry); device != nil {
				devices = append(devices, device)
			}
		}
	}()

	if err := resolver.Browse(ctx, ServiceType, ServiceDomain, entries); err != nil {
		return nil, fmt.Errorf("failed to browse for mDNS services: %w", err)
	}

	<-ctx.Done()
	<-collected

	return devices, nil
}

// WaitForDevice waits for a device announcing the given name.
// Returns the device or an error if not found within the timeout.
func (s *Scanner) WaitForDevice(ctx context.Context, name string) (*Device, error) {
	ctx, cancel := context.WithTimeout(ctx, s.Timeout)
	defer cancel()

	entries := make(chan *zeroconf.ServiceEntry)
	deviceChan := make(chan *Device, 1)

	resolver, err := zeroconf.NewResolver(nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create mDNS resolver: %w", err)
	}

	go func() {
		for entry := range entries {
			device := s.parseServiceEntry(entry)
			if device != nil && strings.EqualFold(device.Name, name) {
				deviceChan <- device
				cancel()
				return
			}
		}
	}()

	if err := resolver.Browse(ctx, ServiceType, ServiceDomain, entries); err != nil {
		return nil, fmt.Errorf("failed to browse for mDNS services: %w", err)
	}

	select {
	case device := <-deviceChan:
		return device, nil
	case <-ctx.Done():
		return nil, fmt.Errorf("device %s not found within timeout", name)
	}
}

// parseServiceEntry converts a zeroconf service entry to a Device.
// Returns nil if the entry does not look like one of ours.
func (s *Scanner) parseServiceEntry(entry *zeroconf.ServiceEntry) *Device {
	hostname := entry.HostName
	if hostname == "" {
		return nil
	}

	matches := namePattern.FindStringSubmatch(hostname)
	if len(matches) < 3 {
		return nil
	}
	name := matches[1]
	if s.Prefix != "" && !strings.HasPrefix(strings.ToLower(name), strings.ToLower(s.Prefix)) {
		return nil
	}

	var ip string
	for _, addr := range entry.AddrIPv4 {
		ip = addr.String()
		break
	}
	if ip == "" {
		for _, addr := range entry.AddrIPv6 {
			ip = addr.String()
			break
		}
	}

	port := entry.Port
	if port == 0 {
		port = DefaultPort
	}

	metadata := make(map[string]string)
	for _, txt := range entry.Text {
		if k, v, found := strings.Cut(txt, "="); found {
			metadata[k] = v
		} else if txt != "" {
			metadata[txt] = ""
		}
	}

	return &Device{
		Name:         name,
		DeviceID:     strings.ToUpper(matches[2]),
		Hostname:     hostname,
		IP:           ip,
		Port:         port,
		Metadata:     metadata,
		DiscoveredAt: time.Now(),
	}
}
