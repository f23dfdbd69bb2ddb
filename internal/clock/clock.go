// Package clock provides the microsecond monotonic timestamps used
// throughout the controller for timers, EMA baselines, and status fields.
package clock

import "time"

// NowUs returns a monotonic-friendly microsecond timestamp. time.Now()
// already carries a monotonic reading on Go platforms; callers only ever
// take differences between two NowUs() values, never interpret it as wall
// clock, matching the daemon's now_us() usage.
func NowUs() int64 {
	return time.Now().UnixMicro()
}

// ElapsedMs returns the elapsed time in milliseconds since a NowUs() reading.
func ElapsedMs(sinceUs int64) int64 {
	return (NowUs() - sinceUs) / 1000
}

// ElapsedSec returns the elapsed time in whole seconds since a NowUs() reading.
func ElapsedSec(sinceUs int64) int64 {
	return (NowUs() - sinceUs) / 1_000_000
}
