// Package timeline derives the running analytics shown next to the saved
// billing periods.
package timeline

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/bher20/utilitybill/internal/storage"
)

// RecentWindow is the number of periods in the "last periods" figure of the
// history table.
const RecentWindow = 3

// Summary is the aggregate over a set of period records.
type Summary struct {
	Count      int     `json:"count"`
	Total      float64 `json:"total"`
	Average    float64 `json:"average"`
	LastPeriod string  `json:"last_period,omitempty"`
	HasData    bool    `json:"has_data"`
}

// Sort returns records ordered by date_saved ascending. Records saved on the
// same date keep their storage order. The input is not modified.
func Sort(records []storage.PeriodRecord) []storage.PeriodRecord {
	out := make([]storage.PeriodRecord, len(records))
	copy(out, records)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].DateSaved < out[j].DateSaved
	})
	return out
}

// NewestFirst returns records ordered by date_saved descending. Records
// saved on the same date keep their storage order.
func NewestFirst(records []storage.PeriodRecord) []storage.PeriodRecord {
	out := make([]storage.PeriodRecord, len(records))
	copy(out, records)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].DateSaved > out[j].DateSaved
	})
	return out
}

func sum(records []storage.PeriodRecord) decimal.Decimal {
	total := decimal.Zero
	for _, r := range records {
		total = total.Add(decimal.NewFromFloat(r.Total))
	}
	return total
}

// Summarize computes count, total, average and the latest period label. An
// empty input gives a zero Summary with HasData false.
func Summarize(records []storage.PeriodRecord) Summary {
	if len(records) == 0 {
		return Summary{}
	}
	total := sum(records)
	ordered := Sort(records)
	return Summary{
		Count:      len(records),
		Total:      total.InexactFloat64(),
		Average:    total.Div(decimal.NewFromInt(int64(len(records)))).InexactFloat64(),
		LastPeriod: ordered[len(ordered)-1].Period,
		HasData:    true,
	}
}

// LastNTotal sums the totals of the n most recently saved records, or of all
// records when there are fewer than n.
func LastNTotal(records []storage.PeriodRecord, n int) float64 {
	if n <= 0 {
		return 0
	}
	recent := NewestFirst(records)
	if len(recent) > n {
		recent = recent[:n]
	}
	return sum(recent).InexactFloat64()
}

// Line is the one-line summary shown under the timeline.
func (s Summary) Line() string {
	if !s.HasData {
		return "No saved periods yet. Calculate a bill and save it to the history."
	}
	last := s.LastPeriod
	if last == "" {
		last = "—"
	}
	return fmt.Sprintf("Total over %d months: %s  |  Average: %s per month  |  Last period: %s",
		s.Count, FormatMoney(s.Total), FormatMoney(s.Average), last)
}

// TableFooter is the summary printed under the history table. The recent
// periods figure only appears once there are at least RecentWindow records.
func TableFooter(records []storage.PeriodRecord) string {
	s := Summarize(records)
	lines := []string{fmt.Sprintf("Total over %d months: %s  |  Average: %s per month",
		s.Count, FormatMoney(s.Total), FormatMoney(s.Average))}
	if s.Count >= RecentWindow {
		lines = append(lines, fmt.Sprintf("  Last %d months: %s",
			RecentWindow, FormatMoney(LastNTotal(records, RecentWindow))))
	}
	return strings.Join(lines, "  ")
}

// FormatMoney renders v with two decimals and thousands separated by spaces,
// e.g. 12345.6 as "12 345.60".
func FormatMoney(v float64) string {
	s := strconv.FormatFloat(v, 'f', 2, 64)
	sign := ""
	if strings.HasPrefix(s, "-") {
		sign, s = "-", s[1:]
	}
	intPart, frac, _ := strings.Cut(s, ".")
	var b strings.Builder
	for i, c := range intPart {
		if i > 0 && (len(intPart)-i)%3 == 0 {
			b.WriteByte(' ')
		}
		b.WriteRune(c)
	}
	if sign == "-" && strings.Trim(intPart+frac, "0") == "" {
		sign = ""
	}
	return sign + b.String() + "." + frac
}
