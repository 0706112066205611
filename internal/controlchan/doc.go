// Package controlchan maintains a persistent command session to a
// control device over its line-oriented telnet console.
//
// The console is a framing-free text transport: command output arrives
// interleaved with shell echo and prompts, with no structured response
// boundaries. The session frames each command by writing a marker token
// unique to the session before the command and reading up to that marker
// afterwards, so output is delimited exactly. Standard error is captured
// out of band by redirecting it to a scratch file on the device and
// reading the file back after the command completes.
//
// After a disruptive operation (a wireless mode change that briefly takes
// the device off the network) the prompt state is unknown; Resync
// re-establishes it with a longer timeout before the session is used again.
//
// The framing protocol is deliberately encapsulated here so that callers
// (network programming, site surveys, bridged HTTP fetches) never see raw
// console traffic and an alternate transport could replace this package
// without touching them.
package controlchan
