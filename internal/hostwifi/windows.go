package hostwifi

import (
	"encoding/hex"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"regexp"
	"strings"
)

// profileTemplate is the open-network profile netsh needs before it will
// connect to an unlisted SSID. MAC randomization is disabled because a
// factory device rate limits unfamiliar clients.
const profileTemplate = `<?xml version="1.0"?>
<WLANProfile xmlns="http://www.microsoft.com/networking/WLAN/profile/v1">
	<name>%s</name>
	<SSIDConfig>
		<SSID>
			<hex>%s</hex>
			<name>%s</name>
		</SSID>
	</SSIDConfig>
	<connectionMode>manual</connectionMode>
	<MSM>
		<security>
			<authEncryption>
				<authentication>open</authentication>
				<encryption>none</encryption>
				<useOneX>false</useOneX>
			</authEncryption>
		</security>
	</MSM>
	<MacRandomization xmlns="http://www.microsoft.com/networking/WLAN/profile/v3">
		<enableRandomization>false</enableRandomization>
	</MacRandomization>
</WLANProfile>`

type windowsController struct {
	originalSSID string
}

var netshFieldPattern = regexp.MustCompile(`(?m)^\s*SSID\s*:\s*(.+)$`)

func (c *windowsController) Initialize() error {
	ssid, err := c.CurrentSSID()
	if err != nil {
		return err
	}
	c.originalSSID = ssid
	return nil
}

func (c *windowsController) CurrentSSID() (string, error) {
	out, err := exec.Command("netsh", "wlan", "show", "interfaces").Output()
	if err != nil {
		return "", fmt.Errorf("netsh wlan show interfaces failed: %w", err)
	}
	m := netshFieldPattern.FindSubmatch(out)
	if m == nil {
		return "", fmt.Errorf("could not identify current SSID")
	}
	return strings.TrimSpace(string(m[1])), nil
}

// networkLinePattern pulls SSIDs out of `netsh wlan show networks` output
var networkLinePattern = regexp.MustCompile(`(?m)^\s*SSID\s+[0-9]+\s*:\s*(.+?)\s*$`)

func (c *windowsController) Scan() ([]string, error) {
	// While associated, show networks only lists the joined network
	_ = exec.Command("netsh", "wlan", "disconnect").Run()

	out, err := exec.Command("netsh", "wlan", "show", "networks").Output()
	if err != nil {
		return nil, fmt.Errorf("netsh wlan show networks failed: %w", err)
	}
	var ssids []string
	for _, m := range networkLinePattern.FindAllSubmatch(out, -1) {
		if ssid := string(m[1]); ssid != "" {
			ssids = append(ssids, ssid)
		}
	}
	return ssids, nil
}

func (c *windowsController) Connect(ssid string) error {
	profile := fmt.Sprintf(profileTemplate, ssid,
		hex.EncodeToString([]byte(ssid)), ssid)

	path := filepath.Join(os.TempDir(), "ntwrk_tmp.xml")
	if err := os.WriteFile(path, []byte(profile), 0600); err != nil {
		return fmt.Errorf("failed to write network profile: %w", err)
	}
	defer func() { _ = os.Remove(path) }()

	if err := exec.Command("netsh", "wlan", "add", "profile",
		"filename="+path, "user=all").Run(); err != nil {
		return fmt.Errorf("netsh wlan add profile failed: %w", err)
	}
	if err := exec.Command("netsh", "wlan", "connect", "name="+ssid).Run(); err != nil {
		return fmt.Errorf("netsh wlan connect failed: %w", err)
	}
	return nil
}

func (c *windowsController) Reconnect() error {
	if c.originalSSID == "" {
		return fmt.Errorf("no captured network to reconnect to")
	}
	if err := exec.Command("netsh", "wlan", "connect", "name="+c.originalSSID).Run(); err != nil {
		return fmt.Errorf("netsh wlan connect failed: %w", err)
	}
	return nil
}
