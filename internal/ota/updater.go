// Package ota drives firmware updates on provisioned devices.
//
// A device's updater is fire-and-forget: the trigger call returns
// immediately and the device reboots partway through. Progress is
// therefore inferred by polling the updater state and watching for the
// idle -> updating -> idle cycle. An idle report before "updating" has
// been observed only means the update has not started yet.
package ota

import (
	"time"

	"go.uber.org/zap"

	"github.com/wclark/autoprov/internal/logging"
	"github.com/wclark/autoprov/internal/shelly"
)

// VersionLatest requests whatever the device's standard update channel
// currently serves, rather than a pinned version.
const VersionLatest = "latest"

// Outcome is the terminal state of one update attempt.
type Outcome string

const (
	// OutcomeSuccess means the device completed the cycle on the
	// requested version
	OutcomeSuccess Outcome = "SUCCESS"
	// OutcomeFailure means the cycle completed but the version is wrong
	// or unchanged, or the device stopped answering
	OutcomeFailure Outcome = "FAILURE"
	// OutcomeTimeout means the update never started or never finished
	// within the configured budgets
	OutcomeTimeout Outcome = "TIMEOUT"
	// OutcomeSkipped means the device already runs the requested version
	OutcomeSkipped Outcome = "SKIPPED"
	// OutcomeAborted means another update was already in progress
	OutcomeAborted Outcome = "ABORTED"
)

// Device is the updater surface needed from a device client.
// *shelly.Client satisfies it; tests substitute fakes.
type Device interface {
	OTA() (*shelly.OTAStatus, error)
	TriggerOTA() error
	TriggerOTAFrom(imageURL string) error
}

// Result describes how an update attempt ended.
type Result struct {
	Outcome    Outcome
	OldVersion string
	NewVersion string
	Detail     string
}

// Updater runs the check/trigger/poll cycle against one device. The same
// cycle serves a direct single-device flash and the per-device step of a
// bulk run.
type Updater struct {
	// RequestedVersion is the version the device should end up on, or
	// VersionLatest for the update channel's current release.
	RequestedVersion string

	// ImageURL selects an explicit firmware image. Empty means the
	// device's standard update channel.
	ImageURL string

	// Timeout bounds the whole poll phase in wall time. Zero disables
	// the wall-time check.
	Timeout time.Duration

	// MaxChecks bounds how many polls may pass without "updating" ever
	// being observed before the attempt times out.
	MaxChecks int

	// PollInterval is the pause between poll reads
	PollInterval time.Duration
}

// NewUpdater creates an updater for the given version with the given budgets.
func NewUpdater(requestedVersion string, timeout time.Duration, maxChecks int, pollInterval time.Duration) *Updater {
	if requestedVersion == "" {
		requestedVersion = VersionLatest
	}
	return &Updater{
		RequestedVersion: requestedVersion,
		Timeout:          timeout,
		MaxChecks:        maxChecks,
		PollInterval:     pollInterval,
	}
}

// Run performs one full update attempt. It never returns an error: every
// way the attempt can end is an Outcome, and the caller decides what each
// one means for the larger run.
func (u *Updater) Run(dev Device) Result {
	st, err := dev.OTA()
	if err != nil {
		return Result{Outcome: OutcomeFailure, Detail: "updater state unreadable: " + err.Error()}
	}
	if u.RequestedVersion != VersionLatest && st.OldVersion == u.RequestedVersion {
		logging.Debug("Firmware already current", zap.String("version", st.OldVersion))
		return Result{Outcome: OutcomeSkipped, OldVersion: st.OldVersion}
	}
	if st.Status == "updating" {
		return Result{
			Outcome:    OutcomeAborted,
			OldVersion: st.OldVersion,
			Detail:     "another update already in progress",
		}
	}

	if u.ImageURL != "" {
		err = dev.TriggerOTAFrom(u.ImageURL)
	} else {
		err = dev.TriggerOTA()
	}
	if err != nil {
		return Result{Outcome: OutcomeFailure, OldVersion: st.OldVersion, Detail: "trigger failed: " + err.Error()}
	}

	logging.LogPhase("ota",
		zap.String("old_version", st.OldVersion),
		zap.String("requested", u.RequestedVersion))
	return u.poll(dev, st.OldVersion)
}

// poll watches the updater until the cycle completes or a budget runs out.
func (u *Updater) poll(dev Device, oldVersion string) Result {
	var deadline time.Time
	if u.Timeout > 0 {
		deadline = time.Now().Add(u.Timeout)
	}

	checks := 0
	seenUpdating := false

	for {
		if !deadline.IsZero() && time.Now().After(deadline) {
			return Result{Outcome: OutcomeTimeout, OldVersion: oldVersion}
		}
		if !seenUpdating && checks >= u.MaxChecks {
			return Result{Outcome: OutcomeTimeout, OldVersion: oldVersion, Detail: "update never started"}
		}

		time.Sleep(u.PollInterval)
		checks++

		st, err := dev.OTA()
		if err != nil {
			// The device goes dark while it reboots; a read failure after
			// the update started is expected, before it is just another
			// poll against the pre-start budget
			continue
		}

		if st.Status == "updating" {
			seenUpdating = true
			continue
		}
		if !seenUpdating {
			continue
		}

		// Cycle complete; judge the version the device came back with
		if u.satisfied(oldVersion, st.OldVersion) {
			logging.Info("Firmware update complete",
				zap.String("old_version", oldVersion),
				zap.String("new_version", st.OldVersion))
			return Result{Outcome: OutcomeSuccess, OldVersion: oldVersion, NewVersion: st.OldVersion}
		}
		return Result{
			Outcome:    OutcomeFailure,
			OldVersion: oldVersion,
			NewVersion: st.OldVersion,
			Detail:     "device came back on " + st.OldVersion,
		}
	}
}

// satisfied reports whether the post-cycle version meets the request. A
// pinned version must match exactly; "latest" accepts any version as long
// as it actually changed.
func (u *Updater) satisfied(oldVersion, newVersion string) bool {
	if u.RequestedVersion == VersionLatest {
		return newVersion != oldVersion
	}
	return newVersion == u.RequestedVersion
}
