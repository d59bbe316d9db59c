package generic

import (
	"fmt"
	"time"
)

// =============================================================================
// LOCAL TIME - Every calendar rule is evaluated in the location's zone
// =============================================================================

// LoadZone resolves an IANA zone name. Empty means UTC.
func LoadZone(name string) (*time.Location, error) {
	if name == "" {
		return time.UTC, nil
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return nil, fmt.Errorf("load time zone %q: %w", name, err)
	}
	return loc, nil
}

// IsWeekendIn reports whether t falls on Saturday or Sunday in loc.
func IsWeekendIn(t time.Time, loc *time.Location) bool {
	wd := t.In(zoneOrUTC(loc)).Weekday()
	return wd == time.Saturday || wd == time.Sunday
}

// StartOfDayIn truncates t to local midnight in loc.
func StartOfDayIn(t time.Time, loc *time.Location) time.Time {
	loc = zoneOrUTC(loc)
	y, m, d := t.In(loc).Date()
	return time.Date(y, m, d, 0, 0, 0, 0, loc)
}

// NextDayAt returns the local calendar day after t, at hour:00 in loc.
func NextDayAt(t time.Time, loc *time.Location, hour int) time.Time {
	loc = zoneOrUTC(loc)
	y, m, d := t.In(loc).Date()
	return time.Date(y, m, d+1, hour, 0, 0, 0, loc)
}

func zoneOrUTC(loc *time.Location) *time.Location {
	if loc == nil {
		return time.UTC
	}
	return loc
}
