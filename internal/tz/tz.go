// Package tz pins the regional timezone used for day bucketing. The sources
// report timezone-naive dates that the business reads in São Paulo local
// time, fixed at UTC-03:00 (no DST since 2019).
package tz

import (
	"fmt"
	"time"
)

// Zone is the fixed regional offset.
var Zone = time.FixedZone("-03", -3*60*60)

const dateLayout = "2006-01-02"

// Today returns the current date in the regional timezone as YYYY-MM-DD.
func Today() string {
	return time.Now().In(Zone).Format(dateLayout)
}

// NextDay returns the date following dateStr. Invalid input comes back
// unchanged, mirroring the tolerant behaviour callers expect for query
// parameters.
func NextDay(dateStr string) string {
	d, err := time.ParseInLocation(dateLayout, dateStr, Zone)
	if err != nil {
		return dateStr
	}
	return d.AddDate(0, 0, 1).Format(dateLayout)
}

// DayBounds returns the [00:00:00, 23:59:59] window of the given local day.
func DayBounds(dateStr string) (start, end time.Time, err error) {
	d, err := time.ParseInLocation(dateLayout, dateStr, Zone)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("invalid date %q: %w", dateStr, err)
	}
	start = d
	end = d.Add(24*time.Hour - time.Second)
	return start, end, nil
}

// ValidDate reports whether dateStr parses as YYYY-MM-DD.
func ValidDate(dateStr string) bool {
	_, err := time.ParseInLocation(dateLayout, dateStr, Zone)
	return err == nil
}
