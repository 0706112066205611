package ddwrt

import (
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/wclark/autoprov/internal/controlchan"
	"github.com/wclark/autoprov/internal/logging"
)

// Survey runs a wireless scan on the node and returns the SSIDs that carry
// the given prefix, deduplicated, in first-seen order. The scan output is
// line oriented; only lines shaped like `SSID[ name ] BSSID[ .. ]` count.
func Survey(sess Conn, prefix string) ([]string, error) {
	out, _, err := sess.ExecuteRaw("site_survey 2>&1")
	if err != nil {
		return nil, err
	}

	seen := make(map[string]bool)
	var ssids []string
	for _, line := range out {
		name, ok := parseSurveyLine(line)
		if !ok {
			continue
		}
		if prefix != "" && !strings.HasPrefix(name, prefix) {
			continue
		}
		if !seen[name] {
			seen[name] = true
			ssids = append(ssids, name)
		}
	}
	logging.Debug("Site survey complete",
		zap.String("addr", sess.Addr()),
		zap.Int("matches", len(ssids)))
	return ssids, nil
}

// parseSurveyLine extracts the SSID from one survey output line.
func parseSurveyLine(line string) (string, bool) {
	start := strings.Index(line, "SSID[")
	if start < 0 {
		return "", false
	}
	rest := line[start+len("SSID["):]
	end := strings.Index(rest, "] BSSID[")
	if end < 0 {
		return "", false
	}
	name := strings.TrimSpace(rest[:end])
	if name == "" {
		return "", false
	}
	return name, true
}

// Wget fetches a URL from the node's side of the network and returns the
// response body lines. The request runs on the device itself, which is the
// only vantage point with a route onto the factory network.
//
// Transient failures are retried up to tries times with a short pause; the
// wget timeout is kept tight because a dead target answers by silence.
func Wget(sess Conn, rawURL string, tries int) ([]string, error) {
	if tries < 1 {
		tries = 1
	}
	var lastErr error
	for i := 0; i < tries; i++ {
		if i > 0 {
			time.Sleep(time.Second)
		}
		out, _, err := sess.ExecuteRaw("wget -T 1 -qO- '" + rawURL + "'; echo")
		if err != nil {
			lastErr = err
			if controlchan.IsConnectionError(err) {
				return nil, err
			}
			continue
		}
		body := trimEmpty(out)
		if len(body) == 0 {
			lastErr = controlchan.NewCommandError(sess.Addr(), "empty response from "+rawURL, "")
			continue
		}
		return body, nil
	}
	return nil, lastErr
}

func trimEmpty(lines []string) []string {
	var out []string
	for _, l := range lines {
		if strings.TrimSpace(l) != "" {
			out = append(out, l)
		}
	}
	return out
}
