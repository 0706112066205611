package ddwrt

import (
	"time"

	"go.uber.org/zap"

	"github.com/wclark/autoprov/internal/controlchan"
	"github.com/wclark/autoprov/internal/logging"
)

// Learn connects to a control device and captures a role snapshot from its
// current configuration. The device must already be set to the role the
// operator wants to teach; learning it in AP mode records the AP snapshot,
// client mode the client snapshot. A device learned in both modes can
// serve either side of a provisioning run.
//
// The returned router carries the device identity and the new snapshot
// merged into any prior profile passed in.
func Learn(name, address, password string, prior *Router, opts *controlchan.Options) (*Router, error) {
	sess, err := controlchan.Open(address, adminUser, password, opts)
	if err != nil {
		return nil, err
	}
	defer func() { _ = sess.Close() }()

	mac, err := sess.Single("nvram get et0macaddr")
	if err != nil {
		return nil, err
	}
	if mac == "" {
		return nil, NewConfigError("device at %s reported no hardware identity", address)
	}

	router := &Router{Name: name, Address: address, Password: password, MACAddr: mac}
	if prior != nil {
		if prior.MACAddr != "" && prior.MACAddr != mac {
			return nil, NewConfigError("device at %s is not %s (identity %s, expected %s)",
				address, name, mac, prior.MACAddr)
		}
		router.AP = prior.AP
		router.STA = prior.STA
	}

	attrs := make(map[string]string, len(learnedKeys))
	for _, key := range learnedKeys {
		value, err := sess.Single("nvram get " + key)
		if err != nil {
			return nil, err
		}
		attrs[key] = value
	}

	role := Role(attrs["wl0_mode"])
	if role != RoleAP && role != RoleSTA {
		return nil, NewConfigError("device at %s is in mode %q; set it to ap or sta before learning", address, attrs["wl0_mode"])
	}

	router.setModeAttrs(role, attrs)
	router.InsertTime = float64(time.Now().UnixNano()) / 1e9

	logging.Info("Learned control device",
		zap.String("name", name),
		zap.String("address", address),
		zap.String("mode", string(role)),
	)
	return router, nil
}
