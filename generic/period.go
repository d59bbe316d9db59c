package generic

import (
	"fmt"
	"time"
)

// =============================================================================
// PERIOD - The pay window every computation is scoped to
// =============================================================================

// Period is a half-open time window [Start, End).
// Compensation is ALWAYS computed for a period, never for a point in time.
//
// Examples:
//   - Circle 1: Mar 1 00:00 - Mar 16 00:00 (local)
//   - Circle 2: Mar 16 00:00 - Apr 1 00:00 (local)
//   - Ad hoc:   any explicit (start, end) pair from the on-demand trigger
type Period struct {
	Start time.Time
	End   time.Time
}

// NewPeriod builds a validated period.
func NewPeriod(start, end time.Time) (Period, error) {
	p := Period{Start: start, End: end}
	if err := p.Validate(); err != nil {
		return Period{}, err
	}
	return p, nil
}

// Validate rejects zero or inverted periods.
func (p Period) Validate() error {
	if p.Start.IsZero() || p.End.IsZero() || !p.End.After(p.Start) {
		return fmt.Errorf("%w: [%s, %s)", ErrInvalidPeriod,
			p.Start.Format(time.RFC3339), p.End.Format(time.RFC3339))
	}
	return nil
}

// Contains returns true if t is within [Start, End).
func (p Period) Contains(t time.Time) bool {
	return !t.Before(p.Start) && t.Before(p.End)
}

// Overlaps returns true if the window [start, end) intersects the period.
func (p Period) Overlaps(start, end time.Time) bool {
	return start.Before(p.End) && end.After(p.Start)
}

// UTC returns the period with both bounds normalized to UTC.
// Stored keys always use the UTC form.
func (p Period) UTC() Period {
	return Period{Start: p.Start.UTC(), End: p.End.UTC()}
}

// Key is the canonical string form used for ids and storage keys.
func (p Period) Key() string {
	u := p.UTC()
	return u.Start.Format(time.RFC3339) + "/" + u.End.Format(time.RFC3339)
}

// String returns a string representation of the period.
func (p Period) String() string {
	return "[" + p.Start.Format(time.RFC3339) + ", " + p.End.Format(time.RFC3339) + ")"
}

// =============================================================================
// CIRCLES - Half-month pay periods (1st-15th, 16th-end of month)
// =============================================================================

// CircleSplitDay is the first day of the second circle in each month.
const CircleSplitDay = 16

// CircleFor returns the circle containing t, in the given location.
func CircleFor(t time.Time, loc *time.Location) Period {
	if loc == nil {
		loc = time.UTC
	}
	local := t.In(loc)
	year, month, day := local.Date()

	if day < CircleSplitDay {
		return Period{
			Start: time.Date(year, month, 1, 0, 0, 0, 0, loc),
			End:   time.Date(year, month, CircleSplitDay, 0, 0, 0, 0, loc),
		}
	}
	return Period{
		Start: time.Date(year, month, CircleSplitDay, 0, 0, 0, 0, loc),
		End:   time.Date(year, month+1, 1, 0, 0, 0, 0, loc),
	}
}

// NextCircle returns the circle following this one.
func (p Period) NextCircle() Period {
	return CircleFor(p.End, p.End.Location())
}

// PreviousCircle returns the circle before this one.
func (p Period) PreviousCircle() Period {
	return CircleFor(p.Start.Add(-time.Nanosecond), p.Start.Location())
}
