package ota

import (
	"errors"
	"testing"
	"time"

	"github.com/wclark/autoprov/internal/shelly"
)

// scriptedDevice replays a fixed sequence of updater states. The first
// state answers the pre-trigger check; the rest answer polls in order,
// with the last state repeated once the script runs out.
type scriptedDevice struct {
	states     []shelly.OTAStatus
	errs       []error
	next       int
	triggered  int
	triggerURL string
	triggerErr error
}

func (d *scriptedDevice) OTA() (*shelly.OTAStatus, error) {
	i := d.next
	if i >= len(d.states) {
		i = len(d.states) - 1
	} else {
		d.next++
	}
	if i < len(d.errs) && d.errs[i] != nil {
		return nil, d.errs[i]
	}
	st := d.states[i]
	return &st, nil
}

func (d *scriptedDevice) TriggerOTA() error {
	d.triggered++
	return d.triggerErr
}

func (d *scriptedDevice) TriggerOTAFrom(imageURL string) error {
	d.triggered++
	d.triggerURL = imageURL
	return d.triggerErr
}

func state(status, version string) shelly.OTAStatus {
	return shelly.OTAStatus{Status: status, OldVersion: version}
}

func testUpdater(version string) *Updater {
	return NewUpdater(version, 0, 10, time.Millisecond)
}

func TestRunLatestSuccess(t *testing.T) {
	dev := &scriptedDevice{states: []shelly.OTAStatus{
		state("idle", "v1.11.0"),
		state("idle", "v1.11.0"), // not started yet
		state("updating", "v1.11.0"),
		state("updating", "v1.11.0"),
		state("idle", "v1.14.0"),
	}}

	res := testUpdater(VersionLatest).Run(dev)
	if res.Outcome != OutcomeSuccess {
		t.Fatalf("outcome = %s (%s), want SUCCESS", res.Outcome, res.Detail)
	}
	if res.OldVersion != "v1.11.0" || res.NewVersion != "v1.14.0" {
		t.Errorf("versions = %s -> %s", res.OldVersion, res.NewVersion)
	}
	if dev.triggered != 1 {
		t.Errorf("triggered %d times, want 1", dev.triggered)
	}
}

func TestRunLatestVersionUnchangedIsFailure(t *testing.T) {
	dev := &scriptedDevice{states: []shelly.OTAStatus{
		state("idle", "v1.11.0"),
		state("updating", "v1.11.0"),
		state("idle", "v1.11.0"), // came back on the same build
	}}

	res := testUpdater(VersionLatest).Run(dev)
	if res.Outcome != OutcomeFailure {
		t.Errorf("outcome = %s, want FAILURE", res.Outcome)
	}
}

func TestRunPinnedVersionMustMatch(t *testing.T) {
	dev := &scriptedDevice{states: []shelly.OTAStatus{
		state("idle", "v1.11.0"),
		state("updating", "v1.11.0"),
		state("idle", "v1.13.0"), // wrong build
	}}

	res := testUpdater("v1.14.0").Run(dev)
	if res.Outcome != OutcomeFailure {
		t.Errorf("outcome = %s, want FAILURE", res.Outcome)
	}
	if res.NewVersion != "v1.13.0" {
		t.Errorf("NewVersion = %q", res.NewVersion)
	}
}

func TestRunPinnedAlreadyCurrent(t *testing.T) {
	dev := &scriptedDevice{states: []shelly.OTAStatus{
		state("idle", "v1.14.0"),
	}}

	res := testUpdater("v1.14.0").Run(dev)
	if res.Outcome != OutcomeSkipped {
		t.Errorf("outcome = %s, want SKIPPED", res.Outcome)
	}
	if dev.triggered != 0 {
		t.Errorf("triggered %d times, want 0", dev.triggered)
	}
}

func TestRunPinnedCurrentSkipsEvenMidUpdate(t *testing.T) {
	dev := &scriptedDevice{states: []shelly.OTAStatus{
		state("updating", "v1.14.0"),
	}}

	res := testUpdater("v1.14.0").Run(dev)
	if res.Outcome != OutcomeSkipped {
		t.Errorf("outcome = %s, want SKIPPED", res.Outcome)
	}
	if dev.triggered != 0 {
		t.Errorf("triggered %d times, want 0", dev.triggered)
	}
}

func TestRunAbortsWhenAlreadyUpdating(t *testing.T) {
	dev := &scriptedDevice{states: []shelly.OTAStatus{
		state("updating", "v1.11.0"),
	}}

	res := testUpdater(VersionLatest).Run(dev)
	if res.Outcome != OutcomeAborted {
		t.Errorf("outcome = %s, want ABORTED", res.Outcome)
	}
	if dev.triggered != 0 {
		t.Errorf("triggered %d times, want 0", dev.triggered)
	}
}

func TestRunTimesOutWhenUpdateNeverStarts(t *testing.T) {
	dev := &scriptedDevice{states: []shelly.OTAStatus{
		state("idle", "v1.11.0"),
	}}

	u := NewUpdater(VersionLatest, 0, 3, time.Millisecond)
	res := u.Run(dev)
	if res.Outcome != OutcomeTimeout {
		t.Errorf("outcome = %s, want TIMEOUT", res.Outcome)
	}
	if res.Detail != "update never started" {
		t.Errorf("detail = %q", res.Detail)
	}
}

func TestRunWallTimeout(t *testing.T) {
	dev := &scriptedDevice{states: []shelly.OTAStatus{
		state("idle", "v1.11.0"),
		state("updating", "v1.11.0"), // starts but never completes
	}}

	u := NewUpdater(VersionLatest, 20*time.Millisecond, 1000, time.Millisecond)
	res := u.Run(dev)
	if res.Outcome != OutcomeTimeout {
		t.Errorf("outcome = %s, want TIMEOUT", res.Outcome)
	}
}

func TestRunPollReadErrorsAreTolerated(t *testing.T) {
	down := errors.New("device unreachable")
	dev := &scriptedDevice{
		states: []shelly.OTAStatus{
			state("idle", "v1.11.0"),
			state("updating", "v1.11.0"),
			{}, // device dark while rebooting
			{},
			state("idle", "v1.14.0"),
		},
		errs: []error{nil, nil, down, down, nil},
	}

	res := testUpdater(VersionLatest).Run(dev)
	if res.Outcome != OutcomeSuccess {
		t.Errorf("outcome = %s (%s), want SUCCESS", res.Outcome, res.Detail)
	}
}

func TestRunImageURLTrigger(t *testing.T) {
	dev := &scriptedDevice{states: []shelly.OTAStatus{
		state("idle", "v1.11.0"),
		state("updating", "v1.11.0"),
		state("idle", "v1.14.0"),
	}}

	u := testUpdater(VersionLatest)
	u.ImageURL = "http://fw.example.net/shelly1.zip"
	res := u.Run(dev)
	if res.Outcome != OutcomeSuccess {
		t.Fatalf("outcome = %s", res.Outcome)
	}
	if dev.triggerURL != "http://fw.example.net/shelly1.zip" {
		t.Errorf("trigger URL = %q", dev.triggerURL)
	}
}

func TestRunTriggerFailure(t *testing.T) {
	dev := &scriptedDevice{
		states:     []shelly.OTAStatus{state("idle", "v1.11.0")},
		triggerErr: errors.New("connection refused"),
	}

	res := testUpdater(VersionLatest).Run(dev)
	if res.Outcome != OutcomeFailure {
		t.Errorf("outcome = %s, want FAILURE", res.Outcome)
	}
}
