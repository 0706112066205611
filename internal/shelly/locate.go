package shelly

import (
	"fmt"
	"strings"
	"time"

	"github.com/cenkalti/backoff"
	"go.uber.org/zap"

	"github.com/wclark/autoprov/internal/logging"
)

// Locator finds a device on the production network after it has been
// pushed its join parameters and left the factory network.
type Locator struct {
	// MaxAttempts bounds the total probe cycles across all candidates
	MaxAttempts uint64

	// Interval is the initial pause between probe cycles
	Interval time.Duration

	// MaxInterval caps the backoff between probe cycles
	MaxInterval time.Duration

	// NewClient builds the probe client per candidate; tests override it
	NewClient func(addr string) *Client
}

// NewLocator creates a locator with the given attempt budget.
func NewLocator(maxAttempts int) *Locator {
	if maxAttempts < 1 {
		maxAttempts = 1
	}
	return &Locator{
		MaxAttempts: uint64(maxAttempts),
		Interval:    time.Second,
		MaxInterval: 15 * time.Second,
		NewClient:   NewClient,
	}
}

// Candidates returns the addresses to probe for a device, most likely
// first: the assigned static address when one exists, then the mDNS name
// a factory-firmware device announces (derived from its hostname).
func Candidates(staticIP, hostname string) []string {
	var out []string
	if staticIP != "" {
		out = append(out, staticIP)
	}
	if hostname != "" {
		out = append(out, strings.ToLower(hostname)+".local")
	}
	return out
}

// Locate probes the candidate addresses until one answers with the
// expected hardware identity. Identity comparison is case-insensitive.
// Returns the address that answered and the status it reported.
func (l *Locator) Locate(candidates []string, mac string) (string, *Status, error) {
	if len(candidates) == 0 {
		return "", nil, NewNotFoundError("no candidate addresses to probe")
	}

	want := strings.ToUpper(mac)

	var foundAddr string
	var foundStatus *Status

	probe := func() error {
		for _, addr := range candidates {
			client := l.NewClient(addr)
			client.MaxRetries = 0
			st, err := client.Status()
			if err != nil {
				logging.Debug("Probe miss",
					zap.String("addr", addr),
					zap.Error(err))
				continue
			}
			if strings.ToUpper(st.MAC) != want {
				logging.Warn("Another device answered a probe",
					zap.String("addr", addr),
					zap.String("mac", st.MAC))
				continue
			}
			foundAddr = addr
			foundStatus = st
			return nil
		}
		return fmt.Errorf("no candidate answered")
	}

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = l.Interval
	bo.MaxInterval = l.MaxInterval
	bo.MaxElapsedTime = 0

	if err := backoff.Retry(probe, backoff.WithMaxRetries(bo, l.MaxAttempts)); err != nil {
		return "", nil, NewNotFoundError(fmt.Sprintf(
			"device %s did not surface on any of %v after %d attempts",
			mac, candidates, l.MaxAttempts+1))
	}
	return foundAddr, foundStatus, nil
}
