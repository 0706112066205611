// Package hostwifi controls the operator host's own WiFi association.
//
// The queue-driven provisioning path never needs this: control devices do
// all the network hopping. The direct single-device path does - the host
// itself must join a factory network, program the device, and return to
// its original network. Each platform drives its native tooling (netsh,
// networksetup, nmcli); the capability is selected once at startup and
// injected into callers.
package hostwifi
