package generic_test

import (
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/compensation-engine/generic"
)

// =============================================================================
// PERIOD
// =============================================================================

func TestPeriod_HalfOpen(t *testing.T) {
	p, err := generic.NewPeriod(
		time.Date(2025, time.March, 1, 0, 0, 0, 0, time.UTC),
		time.Date(2025, time.March, 16, 0, 0, 0, 0, time.UTC),
	)
	require.NoError(t, err)

	assert.True(t, p.Contains(p.Start))
	assert.False(t, p.Contains(p.End))
	assert.True(t, p.Contains(p.End.Add(-time.Nanosecond)))

	assert.True(t, p.Overlaps(p.End.Add(-time.Hour), p.End.Add(time.Hour)))
	assert.False(t, p.Overlaps(p.End, p.End.Add(time.Hour)), "touching windows do not overlap")
}

func TestPeriod_Validate(t *testing.T) {
	start := time.Date(2025, time.March, 1, 0, 0, 0, 0, time.UTC)

	tests := []struct {
		name string
		p    generic.Period
	}{
		{"empty", generic.Period{Start: start, End: start}},
		{"inverted", generic.Period{Start: start, End: start.Add(-time.Hour)}},
		{"zero start", generic.Period{End: start}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.p.Validate()
			assert.True(t, errors.Is(err, generic.ErrInvalidPeriod))
			assert.True(t, generic.IsClientError(err))
		})
	}
}

func TestPeriod_KeyIsZoneIndependent(t *testing.T) {
	bangkok := time.FixedZone("ICT", 7*3600)
	local := generic.CircleFor(time.Date(2025, time.March, 5, 12, 0, 0, 0, bangkok), bangkok)

	assert.Equal(t, local.UTC().Key(), local.Key())
	assert.Equal(t, "2025-02-28T17:00:00Z/2025-03-15T17:00:00Z", local.Key())
}

// =============================================================================
// CIRCLES
// =============================================================================

func TestCircleFor(t *testing.T) {
	tests := []struct {
		name       string
		at         time.Time
		start, end time.Time
	}{
		{
			"first half",
			time.Date(2025, time.March, 15, 23, 59, 0, 0, time.UTC),
			time.Date(2025, time.March, 1, 0, 0, 0, 0, time.UTC),
			time.Date(2025, time.March, 16, 0, 0, 0, 0, time.UTC),
		},
		{
			"second half",
			time.Date(2025, time.March, 16, 0, 0, 0, 0, time.UTC),
			time.Date(2025, time.March, 16, 0, 0, 0, 0, time.UTC),
			time.Date(2025, time.April, 1, 0, 0, 0, 0, time.UTC),
		},
		{
			"february end",
			time.Date(2024, time.February, 29, 8, 0, 0, 0, time.UTC),
			time.Date(2024, time.February, 16, 0, 0, 0, 0, time.UTC),
			time.Date(2024, time.March, 1, 0, 0, 0, 0, time.UTC),
		},
		{
			"december rolls the year",
			time.Date(2025, time.December, 20, 0, 0, 0, 0, time.UTC),
			time.Date(2025, time.December, 16, 0, 0, 0, 0, time.UTC),
			time.Date(2026, time.January, 1, 0, 0, 0, 0, time.UTC),
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := generic.CircleFor(tt.at, time.UTC)
			assert.True(t, tt.start.Equal(c.Start), c.String())
			assert.True(t, tt.end.Equal(c.End), c.String())
		})
	}
}

func TestCircleFor_UsesLocalDate(t *testing.T) {
	// GIVEN: 20:00 UTC on March 15 is already March 16 in UTC+7
	bangkok := time.FixedZone("ICT", 7*3600)
	at := time.Date(2025, time.March, 15, 20, 0, 0, 0, time.UTC)

	// WHEN
	c := generic.CircleFor(at, bangkok)

	// THEN
	assert.Equal(t, 16, c.Start.Day())
	assert.Equal(t, time.March, c.Start.Month())
}

func TestCircle_NextAndPrevious(t *testing.T) {
	c := generic.CircleFor(time.Date(2025, time.January, 3, 0, 0, 0, 0, time.UTC), time.UTC)

	prev := c.PreviousCircle()
	assert.Equal(t, 2024, prev.Start.Year())
	assert.Equal(t, 16, prev.Start.Day())
	assert.True(t, prev.End.Equal(c.Start))

	next := c.NextCircle()
	assert.Equal(t, 16, next.Start.Day())
	assert.True(t, next.Start.Equal(c.End))
}

// =============================================================================
// LOCAL TIME
// =============================================================================

func TestLocalTimeHelpers(t *testing.T) {
	bangkok := time.FixedZone("ICT", 7*3600)
	// Friday 18:00 UTC is Saturday 01:00 in UTC+7
	friday := time.Date(2025, time.March, 7, 18, 0, 0, 0, time.UTC)

	assert.False(t, generic.IsWeekendIn(friday, time.UTC))
	assert.True(t, generic.IsWeekendIn(friday, bangkok))

	assert.True(t, time.Date(2025, time.March, 8, 0, 0, 0, 0, bangkok).Equal(generic.StartOfDayIn(friday, bangkok)))
	assert.True(t, time.Date(2025, time.March, 9, 12, 0, 0, 0, bangkok).Equal(generic.NextDayAt(friday, bangkok, 12)))

	zone, err := generic.LoadZone("")
	require.NoError(t, err)
	assert.Equal(t, time.UTC, zone)

	_, err = generic.LoadZone("Mars/Olympus")
	assert.Error(t, err)
}

// =============================================================================
// MONEY
// =============================================================================

func TestPercentAndSum(t *testing.T) {
	slot := decimal.NewFromInt(100000)

	assert.True(t, decimal.NewFromInt(50000).Equal(generic.Percent(slot, decimal.NewFromInt(50))))
	assert.True(t, decimal.RequireFromString("12500").Equal(generic.Percent(slot, decimal.RequireFromString("12.5"))))
	assert.True(t, decimal.Zero.Equal(generic.Sum()))
	assert.True(t, decimal.NewFromInt(6).Equal(generic.Sum(decimal.NewFromInt(1), decimal.NewFromInt(2), decimal.NewFromInt(3))))
}

// =============================================================================
// RULE PIPELINE
// =============================================================================

func TestPipeline_FirstMatchWins(t *testing.T) {
	p := generic.Pipeline[int, string]{
		Fallback: "other",
		Rules: []generic.Rule[int, string]{
			{Name: "zero", Match: func(n int) (string, bool) { return "zero", n == 0 }},
			{Name: "even", Match: func(n int) (string, bool) { return "even", n%2 == 0 }},
		},
	}

	out, rule := p.Classify(0)
	assert.Equal(t, "zero", out)
	assert.Equal(t, "zero", rule)

	out, rule = p.Classify(4)
	assert.Equal(t, "even", out)
	assert.Equal(t, "even", rule)

	out, rule = p.Classify(3)
	assert.Equal(t, "other", out)
	assert.Empty(t, rule)
}
