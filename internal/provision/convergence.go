package provision

import (
	"time"

	"go.uber.org/zap"

	"github.com/wclark/autoprov/internal/logging"
)

// ScanFunc reports the factory SSIDs currently visible.
type ScanFunc func() ([]string, error)

// Watcher confirms that a target device has left its factory network.
//
// A single survey miss proves nothing: scans go stale and a rebooting
// device can drop out for one pass and come back. Departure is declared
// only after Debounce consecutive polls without the SSID.
type Watcher struct {
	// PollInterval is the pause before each poll
	PollInterval time.Duration

	// Debounce is how many consecutive misses declare departure
	Debounce int

	// MaxPolls bounds the whole wait
	MaxPolls int
}

// NewWatcher creates a watcher with the given bounds.
func NewWatcher(pollInterval time.Duration, debounce, maxPolls int) *Watcher {
	return &Watcher{PollInterval: pollInterval, Debounce: debounce, MaxPolls: maxPolls}
}

// AwaitDeparture polls scan until ssid has been absent Debounce polls in
// a row, or MaxPolls is exhausted. Returns whether departure was
// observed. Scan errors propagate; the caller treats them as a failed
// attempt.
func (w *Watcher) AwaitDeparture(scan ScanFunc, ssid string) (bool, error) {
	misses := 0
	for poll := 0; poll < w.MaxPolls && misses < w.Debounce; poll++ {
		time.Sleep(w.PollInterval)

		visible, err := scan()
		if err != nil {
			return false, err
		}

		present := false
		for _, s := range visible {
			if s == ssid {
				present = true
				break
			}
		}
		if present {
			misses = 0
		} else {
			misses++
		}
	}

	departed := misses >= w.Debounce
	logging.Debug("Convergence wait finished",
		zap.String("ssid", ssid),
		zap.Bool("departed", departed))
	return departed, nil
}
