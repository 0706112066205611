// Package shelly is the HTTP client for first-generation Shelly devices.
//
// Devices expose an unauthenticated JSON API in their factory state. The
// client covers the surface provisioning needs: status and settings reads,
// the station-join call, firmware update trigger and progress, factory
// reset, and the relay toggle used to physically identify a unit.
//
// A factory-fresh device hosts its own setup network and always answers at
// a fixed address on it, so most calls here travel through a control
// device's bridged fetch rather than the operator host's own stack. The
// Fetcher interface abstracts that. Direct HTTP is used once the device is
// on the production network.
package shelly
