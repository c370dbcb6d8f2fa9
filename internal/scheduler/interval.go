package scheduler

import (
	"fmt"
	"strings"
	"time"
)

// ParseInterval reads an auto-save interval such as "90s" or "5m". Empty and
// zero values disable the trigger.
func ParseInterval(interval string) (time.Duration, error) {
	interval = strings.TrimSpace(interval)
	if interval == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(interval)
	if err != nil {
		return 0, fmt.Errorf("CFG_AUTOSAVE_INTERVAL: %w", err)
	}
	if d < 0 {
		return 0, fmt.Errorf("CFG_AUTOSAVE_INTERVAL: interval must be >= 0, got %s", interval)
	}
	return d, nil
}

// FormatInterval renders d in the largest whole unit, falling back to
// time.Duration's own format for fractional seconds.
func FormatInterval(d time.Duration) string {
	if d <= 0 {
		return "0s"
	}
	switch {
	case d%time.Hour == 0:
		return fmt.Sprintf("%dh", d/time.Hour)
	case d%time.Minute == 0:
		return fmt.Sprintf("%dm", d/time.Minute)
	case d%time.Second == 0:
		return fmt.Sprintf("%ds", d/time.Second)
	}
	return d.String()
}
