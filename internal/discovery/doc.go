// Package discovery finds provisioned devices on the local network via
// mDNS.
//
// This complements the survey-based factory discovery: a factory-reset
// device is found by the SSID it broadcasts, but once it has joined a
// real network the only trace of it is the mDNS name its firmware
// announces. The scanner here drives the locate/verify step when an
// instruction carries no static address, and the probe operations.
package discovery
