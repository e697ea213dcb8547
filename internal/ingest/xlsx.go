package ingest

import (
	"bytes"
	"fmt"

	"github.com/xuri/excelize/v2"

	"github.com/louisbat101/agtegra-tractors-hours/internal/config"
	"github.com/louisbat101/agtegra-tractors-hours/pkg/records"
)

// readXLSX parses an Excel workbook. The "sheet" option selects a sheet by
// name; by default the first sheet is read. Cell values arrive formatted the
// way Excel displays them, so dates and numbers stay strings until the
// normalizer coerces them.
func readXLSX(name string, data []byte, opt config.Options) (records.Table, []records.Warning, error) {
	wb, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return records.Table{}, nil, fmt.Errorf("%s: open workbook: %w", name, err)
	}
	defer wb.Close()

	sheet := opt.String("sheet", "")
	if sheet == "" {
		sheet = wb.GetSheetName(0)
		if sheet == "" {
			return records.Table{}, nil, fmt.Errorf("%s: workbook has no sheets", name)
		}
	}

	rows, err := wb.GetRows(sheet)
	if err != nil {
		return records.Table{}, nil, fmt.Errorf("%s: read sheet %q: %w", name, sheet, err)
	}
	return tableFromRows(name, rows, opt)
}
