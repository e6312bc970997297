package util

import (
	"fmt"
	"time"
)

func FormatRelativeTime(t time.Time) string {
	diff := time.Since(t)

	if diff < 0 {
		diff = -diff
	}

	if diff < time.Minute {
		return fmt.Sprintf("%d s ago", int(diff.Seconds()))
	}

	if diff < time.Hour {
		return fmt.Sprintf("%d min ago", int(diff.Minutes()))
	}

	if diff < 24*time.Hour {
		return fmt.Sprintf("%d h ago", int(diff.Hours()))
	}

	if diff < 7*24*time.Hour {
		days := int(diff.Hours() / 24)
		return fmt.Sprintf("%d day%s ago", days, pluralize(days))
	}

	return t.Format("Jan 2")
}

// FormatDuration formats milliseconds as seconds with millisecond precision.
func FormatDuration(ms int64) string {
	return fmt.Sprintf("%.3fs", float64(ms)/1000)
}

func pluralize(n int) string {
	if n > 1 {
		return "s"
	}
	return ""
}
