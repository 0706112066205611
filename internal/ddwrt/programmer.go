package ddwrt

import (
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/wclark/autoprov/internal/logging"
)

const (
	// DefaultApplySettle is how long a device needs after an apply cycle
	// before its console answers again
	DefaultApplySettle = 5 * time.Second

	// DefaultHTTPTimeout bounds the apply.cgi request
	DefaultHTTPTimeout = 30 * time.Second

	// webUser is the web UI account used for apply.cgi
	webUser = "admin"
)

// Params carries the network parameters for a role application.
type Params struct {
	// SSID of the network to host (AP) or join (STA)
	SSID string

	// Passphrase is the WPA key for the hosted network. Ignored for STA:
	// factory networks are open.
	Passphrase string
}

// keyval preserves programming order; nvram keys are applied exactly in
// the sequence listed.
type keyval struct {
	key   string
	value string
}

// Programmer applies AP/STA role configuration to control devices.
type Programmer struct {
	// BridgeAddr, BridgeGateway, BridgeNetmask are the fixed static
	// addressing a device uses in STA mode, solely for control-device to
	// target-device communication on the factory network.
	BridgeAddr    string
	BridgeGateway string
	BridgeNetmask string

	// ApplySettle is the wait after a full apply cycle before resyncing
	ApplySettle time.Duration

	// HTTPClient performs the apply.cgi request for full role changes
	HTTPClient *http.Client
}

// NewProgrammer creates a programmer using the given bridge addressing plan.
func NewProgrammer(bridgeAddr, bridgeGateway, bridgeNetmask string) *Programmer {
	return &Programmer{
		BridgeAddr:    bridgeAddr,
		BridgeGateway: bridgeGateway,
		BridgeNetmask: bridgeNetmask,
		ApplySettle:   DefaultApplySettle,
		HTTPClient:    &http.Client{Timeout: DefaultHTTPTimeout},
	}
}

// Apply programs the node into the requested role.
//
// If the node already holds the role, the key set is committed and the
// wireless services are restarted in place (about a second). Otherwise a
// full apply cycle runs: commit, apply.cgi, settle wait, session resync,
// radio bounce. Any command error is fatal to the caller's current attempt.
func (p *Programmer) Apply(node *Node, role Role, params Params) error {
	attrs := node.Router.ModeAttrs(role)
	if attrs == nil {
		return NewConfigError("%s has not been learned in %s mode", node.Router.Name, role)
	}

	pgm, carryover, deletes := p.keysFor(role, params)

	for _, kv := range pgm {
		quoted, err := quoteArg(kv.value)
		if err != nil {
			return NewConfigError("bad value for %s: %v", kv.key, err)
		}
		if _, err := node.Session.Single("nvram set " + kv.key + "=" + quoted); err != nil {
			return err
		}
	}
	// Hardware-specific attributes pass through from the learned profile
	for _, k := range carryover {
		quoted, err := quoteArg(attrs[k])
		if err != nil {
			return NewConfigError("bad learned value for %s: %v", k, err)
		}
		if _, err := node.Session.Single("nvram set " + k + "=" + quoted); err != nil {
			return err
		}
	}
	// Keys from the previous role that do not apply to this one
	for _, k := range deletes {
		if _, err := node.Session.Single("nvram unset " + k); err != nil {
			return err
		}
	}

	if _, err := node.Session.Single("nvram commit 2>/dev/null"); err != nil {
		return err
	}

	if node.CurrentRole == role {
		logging.LogRoleChange(node.Router.Name, string(node.CurrentRole), string(role), true)
		_, err := node.Session.Single("stopservice nas;stopservice wlconf 2>/dev/null;startservice wlconf 2>/dev/null;startservice nas")
		return err
	}

	logging.LogRoleChange(node.Router.Name, string(node.CurrentRole), string(role), false)
	node.CurrentRole = role

	if err := p.applyTake(node.Router); err != nil {
		return err
	}
	time.Sleep(p.ApplySettle)
	if err := node.Session.Resync(0); err != nil {
		return err
	}
	_, err := node.Session.Single("wl radio off; wl radio on")
	return err
}

// keysFor builds the ordered key set for a role.
func (p *Programmer) keysFor(role Role, params Params) (pgm []keyval, carryover []string, deletes []string) {
	switch role {
	case RoleAP:
		pgm = []keyval{
			{"pptp_use_dhcp", "1"},
			{"wan_gateway", "0.0.0.0"},
			{"wan_ipaddr", "0.0.0.0"},
			{"wan_netmask", "0.0.0.0"},
			{"wan_proto", "disabled"},
			{"wl0_akm", "psk psk2"},
			{"wl0_mode", "ap"},
			{"wl0_nctrlsb", "none"},
			{"wl0_security_mode", "psk psk2"},
			{"wl0_ssid", params.SSID},
			{"wl_ssid", params.SSID},
			{"wl0_wpa_psk", params.Passphrase},
			{"wl_mode", "ap"},
			{"dns_redirect", "1"},
			{"dnsmasq_enable", "0"},
		}
		carryover = []string{"wl0_hw_rxchain", "wl0_hw_txchain", "wan_hwaddr"}
		deletes = []string{"wan_ipaddr_buf", "wan_ipaddr_static", "wan_netmask_static", "wl0_vifs"}

	case RoleSTA:
		pgm = []keyval{
			{"pptp_use_dhcp", "0"},
			{"wan_gateway", p.BridgeGateway},
			{"wan_ipaddr", p.BridgeAddr},
			{"wan_ipaddr_static", ".."},
			{"wan_netmask", p.BridgeNetmask},
			{"wan_netmask_static", ".."},
			{"wan_proto", "static"},
			{"wl0_akm", "disabled"},
			{"wl0_mode", "sta"},
			{"wl0_nctrlsb", ""},
			{"wl0_security_mode", "disabled"},
			{"wl0_vifs", ""},
			{"wl_mode", "sta"},
			{"wl0_ssid", params.SSID},
			{"wl_ssid", params.SSID},
			{"dns_redirect", "1"},
			{"dnsmasq_enable", "0"},
			{"wan_ipaddr_buf", p.BridgeAddr},
		}
		carryover = []string{"sta_ifname", "wl0_hw_rxchain", "wl0_hw_txchain", "wan_hwaddr"}
		deletes = []string{"wl0_wpa_psk"}
	}
	return pgm, carryover, deletes
}

// applyTake triggers the web UI's ApplyTake action, the only reliable way
// to make a Broadcom build pick up a wireless mode change.
func (p *Programmer) applyTake(router *Router) error {
	form := url.Values{}
	form.Set("submit_button", "index")
	form.Set("action", "ApplyTake")

	applyURL := "http://" + router.Address + "/apply.cgi"
	req, err := http.NewRequest("POST", applyURL, strings.NewReader(form.Encode()))
	if err != nil {
		return NewConfigError("failed to build apply request for %s: %v", router.Name, err)
	}
	req.SetBasicAuth(webUser, router.Password)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Referer", "http://"+router.Address+"/Management.asp")

	resp, err := p.HTTPClient.Do(req)
	if err != nil {
		return NewConfigError("apply request to %s failed: %v", router.Name, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return NewConfigError("apply request to %s returned status %d", router.Name, resp.StatusCode)
	}
	return nil
}

// quoteArg is a helper kept close to the nvram writes: values are single
// quoted, and a single quote inside a value would break the console line.
func quoteArg(v string) (string, error) {
	if strings.ContainsRune(v, '\'') {
		return "", fmt.Errorf("value %q contains an unsupported quote character", v)
	}
	return "'" + v + "'", nil
}
