// Package heartbeat writes and checks the liveness file an external
// monitor watches. A stale timestamp is the only signal that the
// trading loop is stuck.
package heartbeat

import (
	"fmt"
	"os"
	"strings"
	"time"
)

// Layout is the timestamp format stored in the heartbeat file.
const Layout = "2006-01-02 15:04:05"

// StaleAfter is how old a heartbeat may be before it counts as stale.
const StaleAfter = 5 * time.Minute

// Write stamps the heartbeat file with the given instant.
func Write(path string, now time.Time) error {
	if err := os.WriteFile(path, []byte(now.Format(Layout)), 0o644); err != nil {
		return fmt.Errorf("write heartbeat: %w", err)
	}
	return nil
}

// Check reads the heartbeat file and reports whether it is fresh
// relative to now, along with its age. A missing or malformed file is
// an error, not merely stale.
func Check(path string, now time.Time) (fresh bool, age time.Duration, err error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return false, 0, fmt.Errorf("read heartbeat: %w", err)
	}
	last, err := time.ParseInLocation(Layout, strings.TrimSpace(string(raw)), now.Location())
	if err != nil {
		return false, 0, fmt.Errorf("parse heartbeat: %w", err)
	}
	age = now.Sub(last)
	return age <= StaleAfter, age, nil
}
