package hostwifi

import (
	"fmt"
	"runtime"
	"strings"
)

// Controller is the host WiFi capability. Implementations shell out to
// the platform's network tooling, so every call may be slow and every
// error message comes from an external program.
type Controller interface {
	// Initialize captures the host's current association so Reconnect
	// can restore it later.
	Initialize() error

	// Connect joins an open network by SSID.
	Connect(ssid string) error

	// Reconnect restores the association captured by Initialize.
	Reconnect() error

	// CurrentSSID reports the network the host is associated with.
	CurrentSSID() (string, error)

	// Scan reports the SSIDs currently visible to the host.
	Scan() ([]string, error)
}

// FindNetwork scans for a visible network carrying the prefix, skipping
// any in ignore. Returns "" when none is visible.
func FindNetwork(c Controller, prefix string, ignore map[string]bool) (string, error) {
	ssids, err := c.Scan()
	if err != nil {
		return "", err
	}
	for _, ssid := range ssids {
		if strings.HasPrefix(ssid, prefix) && !ignore[ssid] {
			return ssid, nil
		}
	}
	return "", nil
}

// New selects the controller for the running platform.
func New() (Controller, error) {
	switch runtime.GOOS {
	case "windows":
		return &windowsController{}, nil
	case "darwin":
		return &darwinController{}, nil
	case "linux":
		return &linuxController{}, nil
	default:
		return nil, fmt.Errorf("host WiFi control is not supported on %s", runtime.GOOS)
	}
}
