package util

import (
	"strconv"
	"time"
)

// ProviderDate is the layout market-data endpoints use for from/to params.
const ProviderDate = "2006-01-02"

var timeLayouts = []string{
	time.RFC3339,
	time.RFC3339Nano,
	"2006-01-02 15:04:05",
	ProviderDate,
}

// ParseTime tries RFC3339, RFC3339Nano, provider date/datetime layouts and unix seconds.
// Returns (t, true) if any worked.
func ParseTime(s string) (time.Time, bool) {
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	if ts, err := strconv.ParseInt(s, 10, 64); err == nil && ts > 0 {
		return time.Unix(ts, 0), true
	}
	return time.Time{}, false
}

// ParseTimeDefault parses time or returns default if empty/invalid.
func ParseTimeDefault(s string, def time.Time) time.Time {
	if t, ok := ParseTime(s); ok {
		return t
	}
	return def
}

// DateRange returns provider formatted from/to dates covering lookbackDays before ref.
func DateRange(ref time.Time, lookbackDays int) (string, string) {
	if ref.IsZero() {
		ref = time.Now()
	}
	if lookbackDays <= 0 {
		lookbackDays = 1
	}
	from := ref.AddDate(0, 0, -lookbackDays)
	return from.Format(ProviderDate), ref.Format(ProviderDate)
}
