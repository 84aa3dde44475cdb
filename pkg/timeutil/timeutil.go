// Package timeutil converts between human-entered timestamps and seconds.
package timeutil

import (
	"fmt"
	"strings"
)

// FormatTime formats seconds as H:MM:SS (e.g. 0:01:30, 1:11:22).
func FormatTime(seconds float64) string {
	if seconds < 0 {
		seconds = 0
	}
	totalSeconds := int(seconds)
	hours := totalSeconds / 3600
	mins := (totalSeconds % 3600) / 60
	secs := totalSeconds % 60
	return fmt.Sprintf("%d:%02d:%02d", hours, mins, secs)
}

// ParseTimeToSeconds parses H:MM:SS, MM:SS, or raw seconds. The fractional
// form ("12.5") is accepted so frame-accurate marks survive a round trip.
func ParseTimeToSeconds(timeStr string) (float64, error) {
	switch strings.Count(timeStr, ":") {
	case 2:
		var hours, minutes int
		var seconds float64
		if n, err := fmt.Sscanf(timeStr, "%d:%d:%f", &hours, &minutes, &seconds); n == 3 && err == nil {
			return float64(hours*3600+minutes*60) + seconds, nil
		}
	case 1:
		var minutes int
		var seconds float64
		if n, err := fmt.Sscanf(timeStr, "%d:%f", &minutes, &seconds); n == 2 && err == nil {
			return float64(minutes*60) + seconds, nil
		}
	case 0:
		var secs float64
		if n, err := fmt.Sscanf(timeStr, "%f", &secs); n == 1 && err == nil {
			return secs, nil
		}
	}

	return 0, fmt.Errorf("expected HH:MM:SS, MM:SS, or seconds, got '%s'", timeStr)
}
