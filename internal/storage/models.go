package storage

import (
	"time"

	"github.com/bher20/utilitybill/internal/billing"
)

// DateLayout is the format of PeriodRecord.DateSaved.
const DateLayout = "2006-01-02"

// PeriodRecord is one committed billing period. Records are append-only:
// they are created once and only ever removed as a whole.
type PeriodRecord struct {
	// Seq preserves insertion order in SQL backends.
	Seq uint64 `json:"-" gorm:"primaryKey;autoIncrement;column:seq"`

	ID             string  `json:"id,omitempty" gorm:"uniqueIndex;column:id"`
	Period         string  `json:"period" gorm:"column:period;index:idx_periods_key"`
	DateSaved      string  `json:"date_saved" gorm:"column:date_saved;index:idx_periods_key"`
	SumWater       float64 `json:"sum_water" gorm:"column:sum_water"`
	SumElectricity float64 `json:"sum_electricity" gorm:"column:sum_electricity"`
	Total          float64 `json:"total" gorm:"column:total"`

	// Current readings, absent on records saved by older versions.
	ColdWaterCurr        *float64 `json:"xvs_curr,omitempty" gorm:"column:xvs_curr"`
	HotWaterCurr         *float64 `json:"gvs_curr,omitempty" gorm:"column:gvs_curr"`
	DayElectricityCurr   *float64 `json:"el_day_curr,omitempty" gorm:"column:el_day_curr"`
	NightElectricityCurr *float64 `json:"el_night_curr,omitempty" gorm:"column:el_night_curr"`
}

// TableName pins the gorm table name.
func (PeriodRecord) TableName() string { return "periods" }

// Key returns the (period, date saved) pair used by delete-by-key.
func (r PeriodRecord) Key() PeriodKey {
	return PeriodKey{Period: r.Period, DateSaved: r.DateSaved}
}

// CurrentReadings returns the meter values recorded at commit time. ok is
// false for legacy records that did not store all four readings.
func (r PeriodRecord) CurrentReadings() (v billing.MeterValues, ok bool) {
	if r.ColdWaterCurr == nil || r.HotWaterCurr == nil ||
		r.DayElectricityCurr == nil || r.NightElectricityCurr == nil {
		return billing.MeterValues{}, false
	}
	return billing.MeterValues{
		ColdWater:        *r.ColdWaterCurr,
		HotWater:         *r.HotWaterCurr,
		DayElectricity:   *r.DayElectricityCurr,
		NightElectricity: *r.NightElectricityCurr,
	}, true
}

// SetCurrentReadings stores v as the record's current readings.
func (r *PeriodRecord) SetCurrentReadings(v billing.MeterValues) {
	cold, hot, day, night := v.ColdWater, v.HotWater, v.DayElectricity, v.NightElectricity
	r.ColdWaterCurr = &cold
	r.HotWaterCurr = &hot
	r.DayElectricityCurr = &day
	r.NightElectricityCurr = &night
}

// PeriodKey identifies records by label and save date. It is not unique.
type PeriodKey struct {
	Period    string `json:"period"`
	DateSaved string `json:"date_saved"`
}

// Setting is a single key/value row. Tariffs are stored one key per row.
type Setting struct {
	Key       string    `gorm:"primaryKey;column:key"`
	Value     string    `gorm:"column:value"`
	UpdatedAt time.Time `gorm:"column:updated_at"`
}

// TableName pins the gorm table name.
func (Setting) TableName() string { return "settings" }
