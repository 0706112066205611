package ddwrt

import (
	"go.uber.org/zap"

	"github.com/wclark/autoprov/internal/controlchan"
	"github.com/wclark/autoprov/internal/logging"
)

// adminUser is the console account on DD-WRT builds
const adminUser = "root"

// Connect opens a command session to a known control device and verifies
// its hardware identity against the stored profile. The returned node
// carries the role currently configured on the device.
func Connect(router *Router, opts *controlchan.Options) (*Node, error) {
	sess, err := controlchan.Open(router.Address, adminUser, router.Password, opts)
	if err != nil {
		return nil, err
	}

	node, err := attach(router, sess)
	if err != nil {
		sess.Close()
		return nil, err
	}
	return node, nil
}

// attach verifies identity and reads the current role over an open session.
func attach(router *Router, sess Conn) (*Node, error) {
	mac, err := sess.Single("nvram get et0macaddr")
	if err != nil {
		return nil, err
	}
	if mac != router.MACAddr {
		return nil, NewConfigError("device at %s is not %s (identity %s, expected %s)",
			router.Address, router.Name, mac, router.MACAddr)
	}

	mode, err := sess.Single("nvram get wl_mode")
	if err != nil {
		return nil, err
	}

	logging.Debug("Control device connected",
		zap.String("name", router.Name),
		zap.String("address", router.Address),
		zap.String("mode", mode),
	)

	return &Node{Router: router, Session: sess, CurrentRole: Role(mode)}, nil
}

// ChooseRoles assigns the AP and STA roles across the connected nodes.
//
// With one node it is returned for both slots and will be driven through
// both roles in sequence. With two, a role that only one device has
// learned goes to that device; when both are capable the device already
// operating in a role keeps it, avoiding an unnecessary (slow) transition.
func ChooseRoles(nodes []*Node) (ap *Node, sta *Node, err error) {
	if len(nodes) == 0 {
		return nil, nil, NewConfigError("no control devices supplied")
	}

	var apCapable, staCapable, currentAP, currentSTA []int
	for i, node := range nodes {
		if node.Router.Capable(RoleAP) {
			apCapable = append(apCapable, i)
		}
		if node.Router.Capable(RoleSTA) {
			staCapable = append(staCapable, i)
		}
		if node.CurrentRole == RoleAP {
			currentAP = append(currentAP, i)
		}
		if node.CurrentRole == RoleSTA {
			currentSTA = append(currentSTA, i)
		}
	}

	if len(apCapable) == 0 {
		return nil, nil, NewConfigError("no AP-capable control device found; re-learn a device while it is set to AP mode")
	}
	if len(staCapable) == 0 {
		return nil, nil, NewConfigError("no client-capable control device found; re-learn a device while it is set to client mode")
	}

	apIdx := 0
	staIdx := len(nodes) - 1
	if len(nodes) > 1 {
		switch {
		case len(apCapable) < 2:
			apIdx = apCapable[0]
			staIdx = (apIdx + 1) % 2
		case len(staCapable) < 2:
			staIdx = staCapable[0]
			apIdx = (staIdx + 1) % 2
		case len(currentAP) == 1:
			apIdx = currentAP[0]
			staIdx = (apIdx + 1) % 2
		case len(currentSTA) == 1:
			staIdx = currentSTA[0]
			apIdx = (staIdx + 1) % 2
		}
	}

	return nodes[apIdx], nodes[staIdx], nil
}
