package shelly

// WifiSta is the station-interface block of a status report.
type WifiSta struct {
	Connected bool   `json:"connected"`
	SSID      string `json:"ssid"`
	IP        string `json:"ip"`
}

// UpdateInfo is the firmware-update block of a status report.
type UpdateInfo struct {
	Status     string `json:"status"`
	HasUpdate  bool   `json:"has_update"`
	NewVersion string `json:"new_version"`
	OldVersion string `json:"old_version"`
}

// Status is the live state a device reports at /status.
type Status struct {
	WifiSta WifiSta    `json:"wifi_sta"`
	MAC     string     `json:"mac"`
	Update  UpdateInfo `json:"update"`
	Uptime  int64      `json:"uptime"`
}

// DeviceInfo is the hardware block of a settings report.
type DeviceInfo struct {
	Type     string `json:"type"`
	MAC      string `json:"mac"`
	Hostname string `json:"hostname"`
}

// StaConfig is a stored station-network configuration.
type StaConfig struct {
	Enabled    bool   `json:"enabled"`
	SSID       string `json:"ssid"`
	IPv4Method string `json:"ipv4_method"`
	IP         string `json:"ip"`
	Netmask    string `json:"mask"`
	Gateway    string `json:"gw"`
}

// Settings is the persistent configuration a device reports at /settings.
type Settings struct {
	Device   DeviceInfo `json:"device"`
	Name     string     `json:"name"`
	Firmware string     `json:"fw"`
	WifiSta  StaConfig  `json:"wifi_sta"`
}

// OTAStatus is the firmware updater state reported at /ota.
// Status values observed: "idle", "pending", "updating", "unknown".
type OTAStatus struct {
	Status     string `json:"status"`
	HasUpdate  bool   `json:"has_update"`
	NewVersion string `json:"new_version"`
	OldVersion string `json:"old_version"`
}

// JoinParams are the production-network parameters pushed to a device.
type JoinParams struct {
	SSID     string
	Password string

	// StaticIP, Netmask and Gateway select static addressing when all are
	// set; otherwise the device uses DHCP.
	StaticIP string
	Netmask  string
	Gateway  string
}

// Static reports whether the parameters request static addressing.
func (p JoinParams) Static() bool {
	return p.StaticIP != ""
}
