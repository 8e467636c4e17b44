package web

import (
	"fmt"
	"time"
)

func formatKbps(bps float64) string {
	return fmt.Sprintf("%.1f kbit/s", bps/1000)
}

func formatAgo(t, now time.Time) string {
	if t.IsZero() {
		return "never"
	}
	d := now.Sub(t).Truncate(time.Second)
	if d < time.Second {
		return "just now"
	}
	return d.String() + " ago"
}
