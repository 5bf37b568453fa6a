package billing

import (
	"errors"
	"fmt"
)

// Meter identifies one of the four household meters.
type Meter int

const (
	ColdWater Meter = iota
	HotWater
	DayElectricity
	NightElectricity
)

// Meters lists all meters in display order.
var Meters = []Meter{ColdWater, HotWater, DayElectricity, NightElectricity}

func (m Meter) String() string {
	switch m {
	case ColdWater:
		return "cold water"
	case HotWater:
		return "hot water"
	case DayElectricity:
		return "day electricity"
	case NightElectricity:
		return "night electricity"
	}
	return fmt.Sprintf("meter(%d)", int(m))
}

// Key is the short name used in stored records and input forms.
func (m Meter) Key() string {
	switch m {
	case ColdWater:
		return "xvs"
	case HotWater:
		return "gvs"
	case DayElectricity:
		return "el_day"
	case NightElectricity:
		return "el_night"
	}
	return ""
}

// IsWater reports whether m is a water meter.
func (m Meter) IsWater() bool { return m == ColdWater || m == HotWater }

var (
	ErrMissingReading   = errors.New("reading is missing")
	ErrNegativeReading  = errors.New("reading must not be negative")
	ErrReadingDecreased = errors.New("current reading is lower than previous")
)

// ReadingError describes an invalid reading for a single meter.
type ReadingError struct {
	Meter Meter
	Field string // "prev" or "curr", empty when the pair is at fault
	Err   error
}

func (e *ReadingError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("%s (%s_%s): %v", e.Meter, e.Meter.Key(), e.Field, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Meter, e.Err)
}

func (e *ReadingError) Unwrap() error { return e.Err }

// MeterValues holds one value per meter.
type MeterValues struct {
	ColdWater        float64 `json:"xvs"`
	HotWater         float64 `json:"gvs"`
	DayElectricity   float64 `json:"el_day"`
	NightElectricity float64 `json:"el_night"`
}

// Get returns the value for m.
func (v MeterValues) Get(m Meter) float64 {
	switch m {
	case ColdWater:
		return v.ColdWater
	case HotWater:
		return v.HotWater
	case DayElectricity:
		return v.DayElectricity
	case NightElectricity:
		return v.NightElectricity
	}
	return 0
}

// Set stores x as the value for m.
func (v *MeterValues) Set(m Meter, x float64) {
	switch m {
	case ColdWater:
		v.ColdWater = x
	case HotWater:
		v.HotWater = x
	case DayElectricity:
		v.DayElectricity = x
	case NightElectricity:
		v.NightElectricity = x
	}
}

// Readings are the previous and current values of every meter for one
// billing period.
type Readings struct {
	Previous MeterValues `json:"previous"`
	Current  MeterValues `json:"current"`
}

// Validate checks that no reading is negative and that no meter went
// backwards. Water meters are checked before electricity meters.
func (r Readings) Validate() error {
	for _, m := range Meters {
		if r.Previous.Get(m) < 0 {
			return &ReadingError{Meter: m, Field: "prev", Err: ErrNegativeReading}
		}
		if r.Current.Get(m) < 0 {
			return &ReadingError{Meter: m, Field: "curr", Err: ErrNegativeReading}
		}
	}
	for _, m := range Meters {
		if r.Current.Get(m) < r.Previous.Get(m) {
			return &ReadingError{Meter: m, Err: ErrReadingDecreased}
		}
	}
	return nil
}

// ParseReadings reads the eight form fields named "<key>_prev" and
// "<key>_curr" (for example "xvs_prev"). Every field is required.
func ParseReadings(in map[string]string) (Readings, error) {
	var r Readings
	for _, m := range Meters {
		for _, field := range []string{"prev", "curr"} {
			raw, ok := in[m.Key()+"_"+field]
			if !ok {
				return Readings{}, &ReadingError{Meter: m, Field: field, Err: ErrMissingReading}
			}
			v, err := ParseAmount(raw)
			if errors.Is(err, ErrEmptyValue) {
				return Readings{}, &ReadingError{Meter: m, Field: field, Err: ErrMissingReading}
			}
			if err != nil {
				return Readings{}, &ReadingError{Meter: m, Field: field, Err: err}
			}
			if field == "prev" {
				r.Previous.Set(m, v)
			} else {
				r.Current.Set(m, v)
			}
		}
	}
	return r, nil
}
