/*
Package factory provides JSON to Go rate-table conversion.

PURPOSE:
  Converts JSON location definitions into payroll.Location values. Rates
  change per location and per quarter; operations edit JSON, the factory
  validates it and produces the Go struct the resolver consumes.

JSON SCHEMA:
  {
    "id": "hn",
    "name": "Hanoi",
    "time_zone": "Asia/Bangkok",
    "rates": {
      "percent_salary_student_absent": 50,
      "weekend_bonus": 50000,
      "conversion_bonus": 100000,
      "attendance_bonus": 200000,
      "referral_bonus": 300000,
      "percent_substitute_bonus": 20,
      "percent_absent_punish_trial": 100,
      "percent_absent_punish_first_3_slot": 10,
      "percent_absent_punish_1h": 80,
      "percent_absent_punish_2h": 60,
      "percent_absent_punish_3h": 40,
      "absent_punish_greater_3h": 20000,
      "percent_absent_punish": 150,
      "over_limit_punish": 50000,
      "late_memo_punish": 10000
    }
  }

  Amounts may be JSON numbers or strings ("12.5"); both decode exactly.
  Unknown keys are rejected so that a misspelt rate never silently
  becomes zero.

KEY FEATURES:
  - Struct validation with go-playground/validator (id, IANA time zone)
  - Negative rates rejected through payroll.RateTable.Validate
  - Round trip via ToJSON

USAGE:
  f := factory.NewRateFactory()
  loc, err := f.ParseLocation(data)
  locs, err := f.ParseLocations(seedFile)

SEE ALSO:
  - payroll/rates.go: Resolver that joins a location with a teacher
  - api/handlers.go: PUT /api/locations/{id}/rates
*/
package factory

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/go-playground/validator/v10"
	"github.com/warp/compensation-engine/generic"
	"github.com/warp/compensation-engine/payroll"
)

// =============================================================================
// JSON SCHEMA TYPES
// =============================================================================

// LocationJSON is the JSON representation of a location and its rates.
type LocationJSON struct {
	ID       string             `json:"id" validate:"required"`
	Name     string             `json:"name"`
	TimeZone string             `json:"time_zone" validate:"omitempty,timezone"`
	Rates    *payroll.RateTable `json:"rates" validate:"required"`
}

// =============================================================================
// RATE FACTORY
// =============================================================================

// RateFactory converts JSON locations to payroll.Location values.
type RateFactory struct {
	validate *validator.Validate
}

func NewRateFactory() *RateFactory {
	return &RateFactory{validate: validator.New(validator.WithRequiredStructEnabled())}
}

// ParseLocation parses one location document.
func (f *RateFactory) ParseLocation(data []byte) (*payroll.Location, error) {
	var lj LocationJSON
	if err := decodeStrict(data, &lj); err != nil {
		return nil, fmt.Errorf("%w: parse location JSON: %v", generic.ErrInvalidRate, err)
	}
	return f.FromJSON(lj)
}

// ParseLocations parses a JSON array of locations, as used by seed files.
func (f *RateFactory) ParseLocations(data []byte) ([]payroll.Location, error) {
	var ljs []LocationJSON
	if err := decodeStrict(data, &ljs); err != nil {
		return nil, fmt.Errorf("%w: parse locations JSON: %v", generic.ErrInvalidRate, err)
	}
	out := make([]payroll.Location, 0, len(ljs))
	seen := make(map[string]bool, len(ljs))
	for i, lj := range ljs {
		loc, err := f.FromJSON(lj)
		if err != nil {
			return nil, fmt.Errorf("location %d: %w", i, err)
		}
		if seen[loc.ID] {
			return nil, fmt.Errorf("%w: duplicate location %q", generic.ErrInvalidRate, loc.ID)
		}
		seen[loc.ID] = true
		out = append(out, *loc)
	}
	return out, nil
}

// ParseRateTable parses a bare rate table, as sent to PUT /locations/{id}/rates.
func (f *RateFactory) ParseRateTable(data []byte) (payroll.RateTable, error) {
	var rt payroll.RateTable
	if err := decodeStrict(data, &rt); err != nil {
		return payroll.RateTable{}, fmt.Errorf("%w: parse rate table JSON: %v", generic.ErrInvalidRate, err)
	}
	if err := rt.Validate(); err != nil {
		return payroll.RateTable{}, err
	}
	return rt, nil
}

// FromJSON validates a LocationJSON and converts it.
func (f *RateFactory) FromJSON(lj LocationJSON) (*payroll.Location, error) {
	if err := f.validate.Struct(lj); err != nil {
		return nil, fmt.Errorf("%w: %v", generic.ErrInvalidRate, err)
	}
	if err := lj.Rates.Validate(); err != nil {
		return nil, err
	}
	return &payroll.Location{
		ID:       lj.ID,
		Name:     lj.Name,
		TimeZone: lj.TimeZone,
		Rates:    *lj.Rates,
	}, nil
}

// ToJSON converts a Location back to its JSON representation.
func (f *RateFactory) ToJSON(loc payroll.Location) LocationJSON {
	rates := loc.Rates
	return LocationJSON{
		ID:       loc.ID,
		Name:     loc.Name,
		TimeZone: loc.TimeZone,
		Rates:    &rates,
	}
}

func decodeStrict(data []byte, v any) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	return dec.Decode(v)
}
