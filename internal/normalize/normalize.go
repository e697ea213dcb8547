// Package normalize turns raw uploaded tables into canonical tractor
// records: it resolves which columns carry which roles, coerces engine-hour
// readings to numbers, derives the hours remaining to the maintenance
// milestone, and drops rows that cannot be salvaged.
//
// Malformed data is never an error here. Unusable tables and dropped rows
// surface as warnings and processing continues with whatever is left.
package normalize

import (
	"strings"
	"time"

	"github.com/louisbat101/agtegra-tractors-hours/internal/columns"
	"github.com/louisbat101/agtegra-tractors-hours/pkg/records"
)

// Candidate header names for each role, in priority order. These cover the
// naming conventions seen across vendor fleet exports; resolution against
// them is fuzzy, see the columns package.
var (
	NicknameColumns = []string{"nickname", "name", "tractor_name", "id", "identifier"}

	EngineHoursColumns = []string{
		"last_known_engine_hrs", "engine_hours", "hours",
		"last_engine_hours", "engine_hrs", "total_hours",
	}

	DateColumns = []string{"date", "timestamp", "created_date", "last_updated"}

	LocationColumns = []string{"location", "field", "site", "area"}
)

// HighHoursThreshold marks readings that are almost certainly data-entry
// mistakes. Such rows are kept but counted in a warning.
const HighHoursThreshold float64 = 50000

// Records normalizes one raw table into canonical records.
//
// Column names are normalized first; when two headers collapse to the same
// normalized name the last one wins. If the nickname or engine-hours role
// cannot be resolved the whole table is skipped with a warning. Rows with a
// missing, non-numeric, or negative reading are dropped and counted, as are
// rows with no nickname left after trimming. Date and location are optional:
// an unresolvable role or an unparseable date just leaves the field unset.
//
// Output preserves the input row order. Nicknames are not deduplicated here;
// that is the merge step's job.
func Records(t records.Table) ([]records.Record, []records.Warning) {
	var warns []records.Warning

	names := make([]string, 0, len(t.Columns))
	idx := make(map[string]int, len(t.Columns))
	for i, c := range t.Columns {
		n := columns.Normalize(c)
		if _, seen := idx[n]; !seen {
			names = append(names, n)
		}
		idx[n] = i
	}

	nickCol, ok := columns.Resolve(names, NicknameColumns)
	if !ok {
		return nil, append(warns, records.Warnf(t.Source, "no nickname column found"))
	}
	hoursCol, ok := columns.Resolve(names, EngineHoursColumns)
	if !ok {
		return nil, append(warns, records.Warnf(t.Source, "no engine hours column found"))
	}

	dateCol, hasDate := columns.Resolve(names, DateColumns)
	locCol, hasLoc := columns.Resolve(names, LocationColumns)

	out := make([]records.Record, 0, len(t.Rows))
	var invalid, negative, unnamed, high int
	for _, row := range t.Rows {
		hours, ok := records.Float(cell(row, idx[hoursCol]))
		if !ok {
			invalid++
			continue
		}
		if hours < 0 {
			negative++
			continue
		}
		nick := strings.TrimSpace(records.Text(cell(row, idx[nickCol])))
		if nick == "" {
			unnamed++
			continue
		}
		if hours > HighHoursThreshold {
			high++
		}

		rec := records.Record{
			Nickname:         nick,
			EngineHours:      hours,
			HoursToMilestone: records.Remaining(hours),
			SourceFile:       t.Source,
		}
		if hasDate {
			if d, ok := parseDateLoose(records.Text(cell(row, idx[dateCol]))); ok {
				rec.Date = &d
			}
		}
		if hasLoc {
			rec.Location = records.Text(cell(row, idx[locCol]))
		}
		out = append(out, rec)
	}

	if invalid > 0 {
		warns = append(warns, records.Warnf(t.Source, "dropped %d rows with invalid or missing engine hours", invalid))
	}
	if negative > 0 {
		warns = append(warns, records.Warnf(t.Source, "dropped %d rows with negative engine hours", negative))
	}
	if unnamed > 0 {
		warns = append(warns, records.Warnf(t.Source, "dropped %d rows with no tractor nickname", unnamed))
	}
	if high > 0 {
		warns = append(warns, records.Warnf(t.Source, "found %d unusually high engine hours readings (over %.0f)", high, HighHoursThreshold))
	}
	return out, warns
}

func cell(row []any, i int) any {
	if i < 0 || i >= len(row) {
		return nil
	}
	return row[i]
}

var dateLayouts = []string{
	"2006-01-02",
	"02.01.2006",
	"02/01/2006",
	"01/02/2006",
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	"2006-01-02T15:04:05Z07:00",
	"02.01.2006 15:04:05",
}

// parseDateLoose tries the date layouts seen in fleet exports, most common
// first. Anything unparseable is simply not a date.
func parseDateLoose(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	for _, lay := range dateLayouts {
		if t, err := time.Parse(lay, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}
