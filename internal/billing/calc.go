package billing

import (
	"fmt"
	"strings"
)

// Consumption is the per-meter usage for a period. Values are not rounded.
type Consumption struct {
	ColdWater        float64 `json:"xvs"`
	HotWater         float64 `json:"gvs"`
	Sewage           float64 `json:"sewage"`
	DayElectricity   float64 `json:"el_day"`
	NightElectricity float64 `json:"el_night"`
}

// Result is the full breakdown of one bill. Every monetary figure is
// rounded to two decimals; subtotals are summed before rounding.
type Result struct {
	Consumption Consumption `json:"consumption"`

	Sewage    float64 `json:"sum_sewage"`
	ColdWater float64 `json:"sum_xvs"`
	Heating   float64 `json:"sum_heating"`
	HotWater  float64 `json:"sum_gvs"`
	Water     float64 `json:"sum_water"`

	DayElectricity   float64 `json:"sum_el_day"`
	NightElectricity float64 `json:"sum_el_night"`
	Electricity      float64 `json:"sum_electricity"`

	Total float64 `json:"total"`
}

// Compute applies the tariff formula to r. It does not validate r; call
// Readings.Validate first.
func Compute(r Readings, t TariffSet) Result {
	prev, curr := r.Previous, r.Current

	c := Consumption{
		ColdWater: curr.ColdWater - prev.ColdWater,
		HotWater:  curr.HotWater - prev.HotWater,
		// From the raw readings, not ColdWater+HotWater: the two can differ
		// in the last bit.
		Sewage:           (curr.ColdWater + curr.HotWater) - (prev.ColdWater + prev.HotWater),
		DayElectricity:   curr.DayElectricity - prev.DayElectricity,
		NightElectricity: curr.NightElectricity - prev.NightElectricity,
	}

	sewage := c.Sewage * t.Sewage
	cold := c.ColdWater * t.ColdWater
	heating := c.HotWater * t.HeatNorm * t.Heating
	hot := c.HotWater * t.HotWater
	water := sewage + cold + heating + hot

	day := c.DayElectricity * t.DayElectric
	night := c.NightElectricity * t.NightElectric
	electricity := day + night

	total := water + electricity

	return Result{
		Consumption:      c,
		Sewage:           Round2(sewage),
		ColdWater:        Round2(cold),
		Heating:          Round2(heating),
		HotWater:         Round2(hot),
		Water:            Round2(water),
		DayElectricity:   Round2(day),
		NightElectricity: Round2(night),
		Electricity:      Round2(electricity),
		Total:            Round2(total),
	}
}

// Lines renders the breakdown the way the calculator shows it.
func (r Result) Lines() []string {
	c := r.Consumption
	return []string{
		fmt.Sprintf("Usage: cold %.2f m³, hot %.2f m³ | electricity day %.2f, night %.2f kWh",
			c.ColdWater, c.HotWater, c.DayElectricity, c.NightElectricity),
		"",
		"--- Water ---",
		fmt.Sprintf("  Sewage:            %.2f", r.Sewage),
		fmt.Sprintf("  Cold water:        %.2f", r.ColdWater),
		fmt.Sprintf("  Water heating:     %.2f", r.Heating),
		fmt.Sprintf("  Hot water:         %.2f", r.HotWater),
		fmt.Sprintf("  Water total:       %.2f", r.Water),
		"",
		"--- Electricity ---",
		fmt.Sprintf("  Day:               %.2f", r.DayElectricity),
		fmt.Sprintf("  Night:             %.2f", r.NightElectricity),
		fmt.Sprintf("  Electricity total: %.2f", r.Electricity),
		"",
		strings.Repeat("=", 27),
		fmt.Sprintf("  TOTAL:             %.2f", r.Total),
	}
}
