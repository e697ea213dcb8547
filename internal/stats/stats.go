// Package stats computes the dashboard's summary numbers over merged record
// sets: fleet-wide engine-hour statistics, milestone buckets, the
// closest-to-service list, and simple outlier detection for flagging
// suspicious readings.
package stats

import (
	"fmt"
	"math"
	"sort"

	"github.com/louisbat101/agtegra-tractors-hours/pkg/records"
)

// Summary is the fleet overview shown at the top of the dashboard.
type Summary struct {
	TotalRecords   int `json:"total_records"`
	UniqueTractors int `json:"unique_tractors"`
	FilesProcessed int `json:"files_processed"`

	MeanHours   float64 `json:"mean_hours"`
	MedianHours float64 `json:"median_hours"`
	StdHours    float64 `json:"std_hours"`
	MinHours    float64 `json:"min_hours"`
	MaxHours    float64 `json:"max_hours"`
	Q25Hours    float64 `json:"q25_hours"`
	Q75Hours    float64 `json:"q75_hours"`

	UnderMilestone int `json:"under_milestone"`
	OverMilestone  int `json:"over_milestone"`
}

// Summarize computes a Summary over recs. An empty input yields the zero
// Summary. Under/over counts split at the milestone: strictly under versus
// at-or-over, matching the dashboard's pie buckets.
func Summarize(recs []records.Record) Summary {
	s := Summary{TotalRecords: len(recs)}
	if len(recs) == 0 {
		return s
	}

	nicknames := make(map[string]struct{}, len(recs))
	files := make(map[string]struct{}, 4)
	hours := make([]float64, 0, len(recs))
	for _, r := range recs {
		nicknames[r.Nickname] = struct{}{}
		files[r.SourceFile] = struct{}{}
		hours = append(hours, r.EngineHours)
		if r.EngineHours < records.MilestoneHours {
			s.UnderMilestone++
		} else {
			s.OverMilestone++
		}
	}
	s.UniqueTractors = len(nicknames)
	s.FilesProcessed = len(files)

	sort.Float64s(hours)
	s.MinHours = hours[0]
	s.MaxHours = hours[len(hours)-1]
	s.MeanHours = mean(hours)
	s.MedianHours = Quantile(hours, 0.5)
	s.Q25Hours = Quantile(hours, 0.25)
	s.Q75Hours = Quantile(hours, 0.75)
	s.StdHours = stddev(hours, s.MeanHours)
	return s
}

// ClosestToMilestone returns up to n records that are still under the
// milestone, nearest first. Ties keep input order. The dashboard shows the
// top ten as the "due for service soon" list.
func ClosestToMilestone(recs []records.Record, n int) []records.Record {
	under := make([]records.Record, 0, len(recs))
	for _, r := range recs {
		if r.EngineHours < records.MilestoneHours {
			under = append(under, r)
		}
	}
	sort.SliceStable(under, func(i, j int) bool {
		return under[i].HoursToMilestone < under[j].HoursToMilestone
	})
	if n >= 0 && len(under) > n {
		under = under[:n]
	}
	return under
}

// FilterHours returns the records whose engine hours fall in [min, max].
func FilterHours(recs []records.Record, min, max float64) []records.Record {
	out := make([]records.Record, 0, len(recs))
	for _, r := range recs {
		if r.EngineHours >= min && r.EngineHours <= max {
			out = append(out, r)
		}
	}
	return out
}

// Outliers flags suspicious values, one flag per input value.
//
// Methods:
//   - "iqr": outside [Q1 − 1.5·IQR, Q3 + 1.5·IQR]
//   - "zscore": more than 3 sample standard deviations from the mean
//
// Fewer than two values, or zero spread, flags nothing.
func Outliers(values []float64, method string) ([]bool, error) {
	flags := make([]bool, len(values))
	if len(values) < 2 {
		return flags, nil
	}

	switch method {
	case "iqr":
		sorted := append([]float64(nil), values...)
		sort.Float64s(sorted)
		q1 := Quantile(sorted, 0.25)
		q3 := Quantile(sorted, 0.75)
		iqr := q3 - q1
		lo, hi := q1-1.5*iqr, q3+1.5*iqr
		for i, v := range values {
			flags[i] = v < lo || v > hi
		}

	case "zscore":
		m := mean(values)
		sd := stddev(values, m)
		if sd == 0 {
			return flags, nil
		}
		for i, v := range values {
			flags[i] = math.Abs(v-m)/sd > 3
		}

	default:
		return nil, fmt.Errorf("stats: unknown outlier method %q (iqr|zscore)", method)
	}
	return flags, nil
}

// Quantile returns the q-th quantile of sorted (ascending) values using
// linear interpolation between closest ranks. q outside [0, 1] is clamped.
func Quantile(sorted []float64, q float64) float64 {
	n := len(sorted)
	if n == 0 {
		return 0
	}
	if q <= 0 {
		return sorted[0]
	}
	if q >= 1 {
		return sorted[n-1]
	}
	pos := q * float64(n-1)
	lo := int(math.Floor(pos))
	hi := int(math.Ceil(pos))
	if lo == hi {
		return sorted[lo]
	}
	frac := pos - float64(lo)
	return sorted[lo]*(1-frac) + sorted[hi]*frac
}

func mean(values []float64) float64 {
	sum := 0.0
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

// stddev is the sample standard deviation (n−1 denominator). A single value
// has no spread.
func stddev(values []float64, mean float64) float64 {
	if len(values) < 2 {
		return 0
	}
	sum := 0.0
	for _, v := range values {
		d := v - mean
		sum += d * d
	}
	return math.Sqrt(sum / float64(len(values)-1))
}
