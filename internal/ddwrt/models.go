package ddwrt

import (
	"time"
)

// Role is the wireless role a control device is operating in.
type Role string

const (
	// RoleAP hosts a network (access point)
	RoleAP Role = "ap"
	// RoleSTA joins a network as a client (station)
	RoleSTA Role = "sta"
)

// String returns the nvram value for the role
func (r Role) String() string {
	return string(r)
}

// learnedKeys are the nvram attributes captured per role by the learn
// operation. They are hardware- and role-specific (radio chains, the
// station interface name, the WAN MAC) and must be carried over unchanged
// when the role is programmed.
var learnedKeys = []string{"sta_ifname", "wan_hwaddr", "wl0_mode", "wl0_hw_txchain", "wl0_hw_rxchain"}

// Router is the stored profile of one control device. Profiles are created
// by the learn operation and are read-only during provisioning except for
// the in-memory current-role tracking on Node.
type Router struct {
	// Name is the operator-chosen unique name
	Name string `json:"name"`

	// Address is the device's network address
	Address string `json:"address"`

	// Password is the root password for the telnet console
	Password string `json:"password"`

	// MACAddr is the immutable hardware identity (et0macaddr), verified on
	// every connect
	MACAddr string `json:"et0macaddr"`

	// AP and STA hold the learned per-role attribute snapshots. A nil map
	// means the role has not been learned and the device cannot serve it.
	AP  map[string]string `json:"ap,omitempty"`
	STA map[string]string `json:"sta,omitempty"`

	// InsertTime is when the profile was last learned (epoch seconds)
	InsertTime float64 `json:"InsertTime,omitempty"`
}

// Capable reports whether the role has been learned for this device.
func (r *Router) Capable(role Role) bool {
	return r.ModeAttrs(role) != nil
}

// ModeAttrs returns the learned attribute snapshot for a role, or nil.
func (r *Router) ModeAttrs(role Role) map[string]string {
	switch role {
	case RoleAP:
		return r.AP
	case RoleSTA:
		return r.STA
	}
	return nil
}

// setModeAttrs stores a learned snapshot under the role it was captured in.
func (r *Router) setModeAttrs(role Role, attrs map[string]string) {
	switch role {
	case RoleAP:
		r.AP = attrs
	case RoleSTA:
		r.STA = attrs
	}
}

// Conn is the command-session surface this package needs from a control
// channel. *controlchan.Session satisfies it; tests substitute fakes.
type Conn interface {
	Single(command string) (string, error)
	Execute(command string) ([]string, error)
	ExecuteRaw(command string) ([]string, string, error)
	Resync(timeout time.Duration) error
	Addr() string
}

// Node is a connected control device: its profile, its live command
// session, and the role observed on it most recently. CurrentRole is the
// only field mutated during a provisioning run.
type Node struct {
	Router      *Router
	Session     Conn
	CurrentRole Role
}
