package exam

import "fmt"

// FormatClock renders seconds as HH:MM:SS. Negative input renders as zero.
func FormatClock(seconds int) string {
	if seconds < 0 {
		seconds = 0
	}
	h := seconds / 3600
	m := (seconds % 3600) / 60
	sec := seconds % 60
	return fmt.Sprintf("%02d:%02d:%02d", h, m, sec)
}
