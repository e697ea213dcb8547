// Package export renders merged record sets as downloadable CSV and Excel
// files. Column order is fixed so downstream spreadsheets and scripts can
// rely on it; the optional date and location columns appear only when at
// least one record carries them.
package export

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/louisbat101/agtegra-tractors-hours/pkg/records"
)

// SheetName is the sheet Excel exports are written to.
const SheetName = "Tractor Data"

// CSV writes recs to w as CSV with a header row.
func CSV(w io.Writer, recs []records.Record) error {
	cols := columns(recs)

	cw := csv.NewWriter(w)
	if err := cw.Write(cols); err != nil {
		return fmt.Errorf("export: write csv header: %w", err)
	}
	for _, r := range recs {
		if err := cw.Write(row(cols, r)); err != nil {
			return fmt.Errorf("export: write csv row: %w", err)
		}
	}
	cw.Flush()
	return cw.Error()
}

// Excel writes recs to w as an .xlsx workbook with a single sheet.
func Excel(w io.Writer, recs []records.Record) error {
	cols := columns(recs)

	wb := excelize.NewFile()
	defer wb.Close()
	if err := wb.SetSheetName(wb.GetSheetName(0), SheetName); err != nil {
		return fmt.Errorf("export: name sheet: %w", err)
	}

	header := make([]any, len(cols))
	for i, c := range cols {
		header[i] = c
	}
	if err := wb.SetSheetRow(SheetName, "A1", &header); err != nil {
		return fmt.Errorf("export: write header: %w", err)
	}

	for i, r := range recs {
		cells := make([]any, 0, len(cols))
		for _, col := range cols {
			switch col {
			case "engine_hours":
				cells = append(cells, r.EngineHours)
			case "hours_to_900":
				cells = append(cells, r.HoursToMilestone)
			default:
				cells = append(cells, field(col, r))
			}
		}
		addr, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return fmt.Errorf("export: cell address: %w", err)
		}
		if err := wb.SetSheetRow(SheetName, addr, &cells); err != nil {
			return fmt.Errorf("export: write row: %w", err)
		}
	}

	if err := wb.Write(w); err != nil {
		return fmt.Errorf("export: write workbook: %w", err)
	}
	return nil
}

// columns is the canonical export column order. date and location are
// included only when some record has them.
func columns(recs []records.Record) []string {
	hasDate, hasLocation := false, false
	for _, r := range recs {
		if r.Date != nil {
			hasDate = true
		}
		if r.Location != "" {
			hasLocation = true
		}
	}

	cols := []string{"nickname", "engine_hours", "hours_to_900"}
	if hasDate {
		cols = append(cols, "date")
	}
	if hasLocation {
		cols = append(cols, "location")
	}
	return append(cols, "source_file")
}

func row(cols []string, r records.Record) []string {
	out := make([]string, len(cols))
	for i, col := range cols {
		out[i] = field(col, r)
	}
	return out
}

func field(col string, r records.Record) string {
	switch col {
	case "nickname":
		return r.Nickname
	case "engine_hours":
		return strconv.FormatFloat(r.EngineHours, 'f', -1, 64)
	case "hours_to_900":
		return strconv.FormatFloat(r.HoursToMilestone, 'f', -1, 64)
	case "date":
		if r.Date == nil {
			return ""
		}
		return formatDate(*r.Date)
	case "location":
		return r.Location
	case "source_file":
		return r.SourceFile
	default:
		return ""
	}
}

// formatDate keeps date-only values readable; timestamps keep their clock.
func formatDate(t time.Time) string {
	if t.Hour() == 0 && t.Minute() == 0 && t.Second() == 0 {
		return t.Format("2006-01-02")
	}
	return t.Format("2006-01-02 15:04:05")
}
