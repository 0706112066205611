// Package ddwrt programs DD-WRT control devices into the AP and STA roles
// used during provisioning.
//
// A control device is an intermediary router that either hosts the target
// WiFi network (AP role) or joins a factory-reset device's temporary
// network as a client (STA role) so join instructions can be relayed. The
// package covers role assignment across one or two devices, the nvram key
// programming for each role, SSID site surveys, bridged HTTP fetches, and
// the learn operation that captures a device's per-role hardware
// attributes into its profile.
//
// Role changes are expensive: a full commit-and-apply cycle takes several
// seconds and briefly drops the device off the network, after which the
// command session must be resynced. Re-applying the role a device already
// holds only restarts the wireless services (about a second). The
// programmer takes the fast path whenever the observed role already
// matches.
//
// Tested with Broadcom-based DD-WRT builds.
package ddwrt
