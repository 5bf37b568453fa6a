package billing

import (
	"errors"
	"fmt"
	"strings"
)

// Tariff keys as they appear in the stored tariff document.
const (
	KeySewage        = "tariff_sewage"
	KeyColdWater     = "tariff_xvs"
	KeyHotWater      = "tariff_gvs"
	KeyHeating       = "tariff_heating_per_gcal"
	KeyHeatNorm      = "norm_gcal_per_m3"
	KeyDayElectric   = "tariff_el_day"
	KeyNightElectric = "tariff_el_night"
)

// TariffKeys lists every tariff key in display order.
var TariffKeys = []string{
	KeySewage,
	KeyColdWater,
	KeyHotWater,
	KeyHeating,
	KeyHeatNorm,
	KeyDayElectric,
	KeyNightElectric,
}

// ErrInvalidTariff is returned when a tariff value is negative or not a number.
var ErrInvalidTariff = errors.New("invalid tariff")

// TariffSet holds the seven rates used by Compute.
type TariffSet struct {
	Sewage        float64 `json:"tariff_sewage" yaml:"tariff_sewage"`                     // currency per m³
	ColdWater     float64 `json:"tariff_xvs" yaml:"tariff_xvs"`                           // currency per m³
	HotWater      float64 `json:"tariff_gvs" yaml:"tariff_gvs"`                           // currency per m³
	Heating       float64 `json:"tariff_heating_per_gcal" yaml:"tariff_heating_per_gcal"` // currency per Gcal
	HeatNorm      float64 `json:"norm_gcal_per_m3" yaml:"norm_gcal_per_m3"`               // Gcal per m³
	DayElectric   float64 `json:"tariff_el_day" yaml:"tariff_el_day"`                     // currency per kWh
	NightElectric float64 `json:"tariff_el_night" yaml:"tariff_el_night"`                 // currency per kWh
}

// DefaultTariffs returns the built-in tariff set.
func DefaultTariffs() TariffSet {
	return TariffSet{
		Sewage:        46.73,
		ColdWater:     43.24,
		HotWater:      43.24,
		Heating:       2891.74,
		HeatNorm:      0.06,
		DayElectric:   6.79,
		NightElectric: 2.81,
	}
}

// Labels maps tariff keys to human readable names.
var Labels = map[string]string{
	KeySewage:        "Sewage, per m³",
	KeyColdWater:     "Cold water, per m³",
	KeyHotWater:      "Hot water, per m³",
	KeyHeating:       "Water heating, per Gcal",
	KeyHeatNorm:      "Heat norm, Gcal per m³",
	KeyDayElectric:   "Electricity day, per kWh",
	KeyNightElectric: "Electricity night, per kWh",
}

// Map returns the tariff set keyed by its stored names.
func (t TariffSet) Map() map[string]float64 {
	return map[string]float64{
		KeySewage:        t.Sewage,
		KeyColdWater:     t.ColdWater,
		KeyHotWater:      t.HotWater,
		KeyHeating:       t.Heating,
		KeyHeatNorm:      t.HeatNorm,
		KeyDayElectric:   t.DayElectric,
		KeyNightElectric: t.NightElectric,
	}
}

// TariffsFromMap builds a TariffSet from stored key/value pairs. Keys that
// are missing take their default value.
func TariffsFromMap(m map[string]float64) TariffSet {
	t := DefaultTariffs()
	for key, v := range m {
		if p := t.field(key); p != nil {
			*p = v
		}
	}
	return t
}

func (t *TariffSet) field(key string) *float64 {
	switch key {
	case KeySewage:
		return &t.Sewage
	case KeyColdWater:
		return &t.ColdWater
	case KeyHotWater:
		return &t.HotWater
	case KeyHeating:
		return &t.Heating
	case KeyHeatNorm:
		return &t.HeatNorm
	case KeyDayElectric:
		return &t.DayElectric
	case KeyNightElectric:
		return &t.NightElectric
	}
	return nil
}

// Validate reports the first negative tariff.
func (t TariffSet) Validate() error {
	m := t.Map()
	for _, key := range TariffKeys {
		if m[key] < 0 {
			return fmt.Errorf("%w: %s must not be negative", ErrInvalidTariff, key)
		}
	}
	return nil
}

// ParseTariffs parses user input for each tariff key. An empty or absent
// value keeps the default for that key; anything unparsable or negative is
// rejected with an error naming the key.
func ParseTariffs(in map[string]string) (TariffSet, error) {
	t := DefaultTariffs()
	for key, raw := range in {
		p := t.field(key)
		if p == nil {
			return TariffSet{}, fmt.Errorf("%w: unknown key %q", ErrInvalidTariff, key)
		}
		if strings.TrimSpace(raw) == "" {
			continue
		}
		v, err := ParseAmount(raw)
		if err != nil {
			return TariffSet{}, fmt.Errorf("%w: %s: %v", ErrInvalidTariff, key, err)
		}
		if v < 0 {
			return TariffSet{}, fmt.Errorf("%w: %s must not be negative", ErrInvalidTariff, key)
		}
		*p = v
	}
	return t, nil
}
