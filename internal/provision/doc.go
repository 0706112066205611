// Package provision sequences the full life of one provisioning
// instruction: claim a factory device, walk it onto the target network,
// verify it there, and persist the outcome.
//
// Everything runs single threaded and strictly in phase order. The two
// control devices have independent sessions but are never reconfigured
// concurrently; losing the bridge mid-transition would strand the target
// device. Safety against two engine instances racing over the same
// broadcasting factory device is not provided - run one instance while
// new devices are being added.
//
// Crash recovery relies on two queue checkpoints per instruction: right
// after a factory device is claimed and again once completion is
// confirmed. Re-running the engine is safe because completed instructions
// are never reprocessed.
package provision
