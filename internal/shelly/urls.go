package shelly

import (
	"net/url"
	"strings"
)

// API paths on first-generation devices
const (
	StatusPath   = "/status"
	SettingsPath = "/settings"
	OTAPath      = "/ota"
)

// StatusURL returns the status endpoint for a device base URL.
func StatusURL(base string) string {
	return base + StatusPath
}

// SettingsURL returns the settings endpoint for a device base URL.
func SettingsURL(base string) string {
	return base + SettingsPath
}

// JoinURL builds the station-join call for a device base URL. The device
// stores the network parameters and reboots onto them.
func JoinURL(base string, p JoinParams) string {
	q := url.Values{}
	q.Set("enabled", "1")
	q.Set("ssid", p.SSID)
	q.Set("key", p.Password)
	if p.Static() {
		q.Set("ipv4_method", "static")
		q.Set("ip", p.StaticIP)
		q.Set("netmask", p.Netmask)
		q.Set("gateway", p.Gateway)
	} else {
		q.Set("ipv4_method", "dhcp")
	}
	return base + "/settings/sta/?" + q.Encode()
}

// MetaParams are operator-supplied device settings applied during
// provisioning. LatLng is "lat:lng"; TZ packs the four timezone fields as
// "tz_dst:tz_dst_auto:tz_utc_offset:tzautodetect".
type MetaParams struct {
	Name   string
	LatLng string
	TZ     string
}

// Empty reports whether there is anything to apply.
func (m MetaParams) Empty() bool {
	return m.Name == "" && m.LatLng == "" && m.TZ == ""
}

// SettingsApplyURL builds a settings call that reads configuration back
// and applies any supplied metadata in the same request.
func SettingsApplyURL(base string, m MetaParams) string {
	q := url.Values{}
	if m.Name != "" {
		q.Set("name", m.Name)
	}
	if m.LatLng != "" {
		if lat, lng, found := strings.Cut(m.LatLng, ":"); found {
			q.Set("lat", lat)
			q.Set("lng", lng)
		}
	}
	if m.TZ != "" {
		keys := []string{"tz_dst", "tz_dst_auto", "tz_utc_offset", "tzautodetect"}
		values := strings.Split(m.TZ, ":")
		for i, key := range keys {
			if i < len(values) {
				q.Set(key, values[i])
			}
		}
	}
	if len(q) == 0 {
		return base + SettingsPath
	}
	return base + SettingsPath + "?" + q.Encode()
}

// OTAStatusURL returns the firmware updater state endpoint.
func OTAStatusURL(base string) string {
	return base + OTAPath
}

// OTATriggerURL builds the standard firmware-update trigger.
func OTATriggerURL(base string) string {
	return base + "/ota?update=1"
}

// OTASourceURL builds a firmware-update trigger from an explicit image URL.
func OTASourceURL(base, imageURL string) string {
	return base + "/ota?url=" + url.QueryEscape(imageURL)
}

// FactoryResetURL builds the settings-reset call.
func FactoryResetURL(base string) string {
	return base + "/settings/?reset=1"
}

// ChannelToggleURL builds a toggle for a specific channel kind; dimmer and
// bulb models expose "light" instead of "relay".
func ChannelToggleURL(base, channel string) string {
	return base + "/" + channel + "/0?turn=toggle"
}
