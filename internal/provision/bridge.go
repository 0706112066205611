package provision

import (
	"encoding/json"
	"strings"

	"github.com/wclark/autoprov/internal/ddwrt"
	"github.com/wclark/autoprov/internal/shelly"
)

// FetchFunc relays an HTTP GET through a control device and returns the
// response body lines. ddwrt.Wget is the production implementation.
type FetchFunc func(sess ddwrt.Conn, url string, tries int) ([]string, error)

// BridgeClient reaches a target device through a control device's
// network, the only route onto a factory network and, before the operator
// host has joined the target network, onto that one too.
//
// It satisfies the same updater surface as the direct shelly client, so
// the OTA cycle is identical whichever path reaches the device.
type BridgeClient struct {
	Sess  ddwrt.Conn
	Base  string
	Tries int
	Fetch FetchFunc
}

// NewBridgeClient creates a bridged client for a device address reachable
// from the control device.
func NewBridgeClient(sess ddwrt.Conn, addr string, tries int) *BridgeClient {
	return &BridgeClient{Sess: sess, Base: "http://" + addr, Tries: tries, Fetch: ddwrt.Wget}
}

// getJSON fetches a device URL through the bridge and decodes the body.
func (b *BridgeClient) getJSON(url string, out interface{}) error {
	lines, err := b.Fetch(b.Sess, url, b.Tries)
	if err != nil {
		return err
	}
	body := strings.Join(lines, "\n")
	if err := json.Unmarshal([]byte(body), out); err != nil {
		return shelly.NewParseError(b.Base, "failed to parse bridged response", err)
	}
	return nil
}

// Status retrieves the device's live state.
func (b *BridgeClient) Status() (*shelly.Status, error) {
	var st shelly.Status
	if err := b.getJSON(shelly.StatusURL(b.Base), &st); err != nil {
		return nil, err
	}
	return &st, nil
}

// StatusRaw retrieves the live state as uninterpreted JSON for the
// device record.
func (b *BridgeClient) StatusRaw() (json.RawMessage, error) {
	lines, err := b.Fetch(b.Sess, shelly.StatusURL(b.Base), b.Tries)
	if err != nil {
		return nil, err
	}
	return json.RawMessage(strings.Join(lines, "\n")), nil
}

// Join pushes the target-network parameters. The device stores them and
// reboots onto the new network; the response only acknowledges storage.
func (b *BridgeClient) Join(p shelly.JoinParams, tries int) error {
	_, err := b.Fetch(b.Sess, shelly.JoinURL(b.Base, p), tries)
	return err
}

// ApplySettings reads the device's configuration back, applying any
// supplied metadata in the same call.
func (b *BridgeClient) ApplySettings(m shelly.MetaParams) (json.RawMessage, error) {
	lines, err := b.Fetch(b.Sess, shelly.SettingsApplyURL(b.Base, m), b.Tries)
	if err != nil {
		return nil, err
	}
	body := strings.Join(lines, "\n")
	var probe map[string]interface{}
	if err := json.Unmarshal([]byte(body), &probe); err != nil {
		return nil, shelly.NewParseError(b.Base, "failed to parse bridged settings", err)
	}
	return json.RawMessage(body), nil
}

// OTA retrieves the firmware updater state.
func (b *BridgeClient) OTA() (*shelly.OTAStatus, error) {
	var o shelly.OTAStatus
	if err := b.getJSON(shelly.OTAStatusURL(b.Base), &o); err != nil {
		return nil, err
	}
	return &o, nil
}

// TriggerOTA asks the device to install its standard firmware.
func (b *BridgeClient) TriggerOTA() error {
	_, err := b.Fetch(b.Sess, shelly.OTATriggerURL(b.Base), b.Tries)
	return err
}

// TriggerOTAFrom asks the device to install firmware from an explicit URL.
func (b *BridgeClient) TriggerOTAFrom(imageURL string) error {
	_, err := b.Fetch(b.Sess, shelly.OTASourceURL(b.Base, imageURL), b.Tries)
	return err
}
