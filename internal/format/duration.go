// Package format holds small human-facing formatting helpers shared by
// progress messages.
package format

import (
	"fmt"
	"strings"
)

// DurationMs renders a millisecond count the way progress messages show
// elapsed time: whole milliseconds under one second ("750ms"), seconds
// with up to two decimals above that, trailing zeros trimmed ("1.5s",
// "12s"). Negative inputs render as "0ms".
func DurationMs(ms int64) string {
	if ms < 0 {
		ms = 0
	}
	if ms < 1000 {
		return fmt.Sprintf("%dms", ms)
	}
	s := fmt.Sprintf("%.2f", float64(ms)/1000)
	s = strings.TrimRight(s, "0")
	s = strings.TrimRight(s, ".")
	return s + "s"
}
