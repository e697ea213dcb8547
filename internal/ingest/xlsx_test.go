package ingest

import (
	"bytes"
	"reflect"
	"testing"

	"github.com/xuri/excelize/v2"

	"github.com/louisbat101/agtegra-tractors-hours/internal/config"
)

func workbookBytes(t *testing.T, sheet string, cells map[string]any) []byte {
	t.Helper()
	wb := excelize.NewFile()
	defer wb.Close()

	if sheet != "Sheet1" {
		if err := wb.SetSheetName("Sheet1", sheet); err != nil {
			t.Fatalf("rename sheet: %v", err)
		}
	}
	for axis, v := range cells {
		if err := wb.SetCellValue(sheet, axis, v); err != nil {
			t.Fatalf("set %s: %v", axis, err)
		}
	}

	var buf bytes.Buffer
	if err := wb.Write(&buf); err != nil {
		t.Fatalf("write workbook: %v", err)
	}
	return buf.Bytes()
}

func TestLoadXLSX(t *testing.T) {
	t.Parallel()

	data := workbookBytes(t, "Sheet1", map[string]any{
		"A1": "Nickname", "B1": "Last Known Engine Hrs",
		"A2": "Big Red", "B2": 847.5,
		"A3": "Old Blue", "B3": 920,
	})

	tbl, warns, err := Load("fleet.xlsx", bytes.NewReader(data), nil)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(warns) != 0 {
		t.Fatalf("unexpected warnings: %v", warns)
	}
	if want := []string{"Nickname", "Last Known Engine Hrs"}; !reflect.DeepEqual(tbl.Columns, want) {
		t.Fatalf("columns = %q, want %q", tbl.Columns, want)
	}
	if len(tbl.Rows) != 2 {
		t.Fatalf("rows = %v, want 2", tbl.Rows)
	}
	// Workbook cells surface as display strings; coercion happens later.
	if tbl.Rows[0][1] != "847.5" || tbl.Rows[1][0] != "Old Blue" {
		t.Fatalf("rows = %v, want formatted string cells", tbl.Rows)
	}
}

func TestLoadXLSXSheetOption(t *testing.T) {
	t.Parallel()

	data := workbookBytes(t, "Hours", map[string]any{
		"A1": "nickname", "B1": "hours",
		"A2": "T1", "B2": 10,
	})

	tbl, _, err := Load("fleet.xlsx", bytes.NewReader(data), config.Options{"sheet": "Hours"})
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(tbl.Rows) != 1 || tbl.Rows[0][0] != "T1" {
		t.Fatalf("rows = %v, want the Hours sheet content", tbl.Rows)
	}

	if _, _, err := Load("fleet.xlsx", bytes.NewReader(data), config.Options{"sheet": "Missing"}); err == nil {
		t.Fatalf("Load accepted a sheet that does not exist")
	}
}

func TestLoadXLSXCorrupt(t *testing.T) {
	t.Parallel()

	// Valid zip magic, invalid workbook.
	junk := append([]byte("PK\x03\x04"), bytes.Repeat([]byte{0x00}, 64)...)
	if _, _, err := Load("broken.xlsx", bytes.NewReader(junk), nil); err == nil {
		t.Fatalf("Load accepted a corrupt workbook")
	}
}
