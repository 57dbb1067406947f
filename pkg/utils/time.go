package utils

import (
	"math"
	"time"
)

// FloatSecondsToTime converts fractional Unix seconds to time.Time
func FloatSecondsToTime(seconds float64) time.Time {
	whole, frac := math.Modf(seconds)
	return time.Unix(int64(whole), int64(frac*float64(time.Second)))
}

// FormatTimestamp formats a Unix timestamp as RFC3339 string
func FormatTimestamp(timestamp int64) string {
	return time.Unix(timestamp, 0).UTC().Format(time.RFC3339)
}

// IsWithinWindow checks if a timestamp is within a time window from now
func IsWithinWindow(timestamp int64, window time.Duration, now time.Time) bool {
	return now.Sub(time.Unix(timestamp, 0)) <= window
}
