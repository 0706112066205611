package hostwifi

import (
	"fmt"
	"os/exec"
	"strings"
)

type linuxController struct {
	originalSSID string
}

func (c *linuxController) Initialize() error {
	ssid, err := c.CurrentSSID()
	if err != nil {
		return err
	}
	c.originalSSID = ssid
	return nil
}

func (c *linuxController) CurrentSSID() (string, error) {
	out, err := exec.Command("nmcli", "-t", "-f", "active,ssid", "dev", "wifi").Output()
	if err != nil {
		return "", fmt.Errorf("nmcli dev wifi failed: %w", err)
	}
	for _, line := range strings.Split(string(out), "\n") {
		if ssid, ok := strings.CutPrefix(line, "yes:"); ok && ssid != "" {
			return ssid, nil
		}
	}
	return "", fmt.Errorf("could not identify current SSID")
}

func (c *linuxController) Scan() ([]string, error) {
	out, err := exec.Command("nmcli", "-t", "-f", "ssid", "dev", "wifi", "list", "--rescan", "yes").Output()
	if err != nil {
		return nil, fmt.Errorf("nmcli dev wifi list failed: %w", err)
	}
	var ssids []string
	for _, line := range strings.Split(string(out), "\n") {
		if line != "" {
			ssids = append(ssids, line)
		}
	}
	return ssids, nil
}

func (c *linuxController) Connect(ssid string) error {
	if err := exec.Command("nmcli", "dev", "wifi", "connect", ssid).Run(); err != nil {
		return fmt.Errorf("nmcli dev wifi connect failed: %w", err)
	}
	return nil
}

func (c *linuxController) Reconnect() error {
	if c.originalSSID == "" {
		return fmt.Errorf("no captured network to reconnect to")
	}
	// The original connection profile still exists; re-activating it is
	// more reliable than a fresh scan-and-join
	if err := exec.Command("nmcli", "connection", "up", "id", c.originalSSID).Run(); err != nil {
		return c.Connect(c.originalSSID)
	}
	return nil
}
