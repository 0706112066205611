package hostwifi

import (
	"fmt"
	"os/exec"
	"regexp"
	"strings"
)

type darwinController struct {
	iface        string
	originalSSID string
}

// wifiInterface finds the WiFi hardware port (usually en0).
func (c *darwinController) wifiInterface() (string, error) {
	if c.iface != "" {
		return c.iface, nil
	}
	out, err := exec.Command("networksetup", "-listallhardwareports").Output()
	if err != nil {
		return "", fmt.Errorf("networksetup -listallhardwareports failed: %w", err)
	}
	lines := strings.Split(string(out), "\n")
	for i, line := range lines {
		if strings.Contains(line, "Wi-Fi") || strings.Contains(line, "AirPort") {
			for _, next := range lines[i+1:] {
				if dev, ok := strings.CutPrefix(next, "Device: "); ok {
					c.iface = strings.TrimSpace(dev)
					return c.iface, nil
				}
			}
		}
	}
	return "", fmt.Errorf("no WiFi hardware port found")
}

func (c *darwinController) Initialize() error {
	ssid, err := c.CurrentSSID()
	if err != nil {
		return err
	}
	c.originalSSID = ssid
	return nil
}

func (c *darwinController) CurrentSSID() (string, error) {
	iface, err := c.wifiInterface()
	if err != nil {
		return "", err
	}
	out, err := exec.Command("networksetup", "-getairportnetwork", iface).Output()
	if err != nil {
		return "", fmt.Errorf("networksetup -getairportnetwork failed: %w", err)
	}
	// Output form: "Current Wi-Fi Network: <ssid>"
	_, ssid, found := strings.Cut(strings.TrimSpace(string(out)), ": ")
	if !found || ssid == "" {
		return "", fmt.Errorf("could not identify current SSID")
	}
	return ssid, nil
}

// airportBin is the scan tool macOS ships without exposing on PATH
const airportBin = "/System/Library/PrivateFrameworks/Apple80211.framework/Versions/Current/Resources/airport"

// scanLinePattern pulls the SSID off an airport -s line; the SSID column
// can contain spaces, so the BSSID anchors the split.
var scanLinePattern = regexp.MustCompile(`(?i)^\s*(.+?)\s+(?:[0-9a-f]{2}:){5}[0-9a-f]{2}\s`)

func (c *darwinController) Scan() ([]string, error) {
	out, err := exec.Command(airportBin, "-s").Output()
	if err != nil {
		return nil, fmt.Errorf("airport scan failed: %w", err)
	}
	var ssids []string
	for _, line := range strings.Split(string(out), "\n") {
		if m := scanLinePattern.FindStringSubmatch(line); m != nil {
			ssids = append(ssids, m[1])
		}
	}
	return ssids, nil
}

func (c *darwinController) Connect(ssid string) error {
	iface, err := c.wifiInterface()
	if err != nil {
		return err
	}
	if err := exec.Command("networksetup", "-setairportnetwork", iface, ssid).Run(); err != nil {
		return fmt.Errorf("networksetup -setairportnetwork failed: %w", err)
	}
	return nil
}

func (c *darwinController) Reconnect() error {
	if c.originalSSID == "" {
		return fmt.Errorf("no captured network to reconnect to")
	}
	return c.Connect(c.originalSSID)
}
