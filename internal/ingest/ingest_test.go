package ingest

import (
	"reflect"
	"strings"
	"testing"

	"github.com/louisbat101/agtegra-tractors-hours/internal/config"
)

func TestSniff(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name   string
		sample []byte
		want   Format
	}{
		{"empty", nil, FormatUnknown},
		{"whitespace only", []byte("  \n\t"), FormatUnknown},
		{"zip container", []byte("PK\x03\x04rest"), FormatXLSX},
		{"legacy ole workbook", []byte{0xD0, 0xCF, 0x11, 0xE0, 0x00}, FormatUnknown},
		{"html", []byte("  <html><body>"), FormatHTML},
		{"csv fallback", []byte("nickname,hours\nT1,100\n"), FormatCSV},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			if got := Sniff(tc.sample); got != tc.want {
				t.Fatalf("Sniff = %v, want %v", got, tc.want)
			}
		})
	}
}

func TestDetect(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name   string
		file   string
		sample []byte
		want   Format
	}{
		{"extension wins over content", "export.csv", []byte("<table>"), FormatCSV},
		{"xlsx extension", "Fleet Hours.XLSX", nil, FormatXLSX},
		{"mislabeled xls that is a zip", "old.xls", []byte("PK\x03\x04"), FormatXLSX},
		{"true legacy xls", "old.xls", []byte{0xD0, 0xCF, 0x11, 0xE0}, FormatUnknown},
		{"no extension falls back to sniffing", "report", []byte("<table><tr>"), FormatHTML},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			if got := Detect(tc.file, tc.sample); got != tc.want {
				t.Fatalf("Detect(%q) = %v, want %v", tc.file, got, tc.want)
			}
		})
	}
}

func TestLoadCSV(t *testing.T) {
	t.Parallel()

	// BOM, quoted field with comma, surrounding spaces, a blank line, a short
	// row and an overlong row.
	body := "\uFEFFNickname, Engine Hours ,Location\n" +
		"\"Big, Red\",847.5, North 40 \n" +
		"\n" +
		"Old Blue,920\n" +
		"T3,100,Shed,EXTRA\n"

	tbl, warns, err := Load("fleet.csv", strings.NewReader(body), nil)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if want := []string{"Nickname", "Engine Hours", "Location"}; !reflect.DeepEqual(tbl.Columns, want) {
		t.Fatalf("columns = %q, want %q", tbl.Columns, want)
	}
	wantRows := [][]any{
		{"Big, Red", "847.5", "North 40"},
		{"Old Blue", "920", nil},
		{"T3", "100", "Shed"},
	}
	if !reflect.DeepEqual(tbl.Rows, wantRows) {
		t.Fatalf("rows = %v, want %v", tbl.Rows, wantRows)
	}
	if tbl.Source != "fleet.csv" {
		t.Fatalf("source = %q, want fleet.csv", tbl.Source)
	}
	if len(warns) != 1 || !strings.Contains(warns[0].Message, "more cells than the header") {
		t.Fatalf("warnings = %v, want one overlong-row warning", warns)
	}
}

func TestLoadCSVSemicolonAndEncoding(t *testing.T) {
	t.Parallel()

	// "José" in windows-1252: é is a single 0xE9 byte.
	raw := append([]byte("nickname;hours\nJos"), 0xE9)
	raw = append(raw, []byte(";120\n")...)

	opt := config.Options{"comma": ";", "encoding": "windows-1252"}
	tbl, warns, err := Load("legacy.csv", strings.NewReader(string(raw)), opt)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(warns) != 0 {
		t.Fatalf("unexpected warnings: %v", warns)
	}
	if len(tbl.Rows) != 1 || tbl.Rows[0][0] != "José" {
		t.Fatalf("rows = %v, want decoded José", tbl.Rows)
	}
}

func TestLoadHeaderless(t *testing.T) {
	t.Parallel()

	opt := config.Options{
		"has_header": false,
		"columns":    []any{"nickname", "hours"},
	}
	tbl, _, err := Load("bare.csv", strings.NewReader("T1,100\nT2,200\n"), opt)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if want := []string{"nickname", "hours"}; !reflect.DeepEqual(tbl.Columns, want) {
		t.Fatalf("columns = %q, want %q", tbl.Columns, want)
	}
	if len(tbl.Rows) != 2 {
		t.Fatalf("rows = %v, want 2 rows", tbl.Rows)
	}

	// Without configured columns a headerless file is unusable.
	if _, _, err := Load("bare.csv", strings.NewReader("T1,100\n"), config.Options{"has_header": false}); err == nil {
		t.Fatalf("Load accepted headerless input without configured columns")
	}
}

func TestLoadErrors(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name    string
		file    string
		body    string
		opt     config.Options
		wantSub string
	}{
		{"empty csv", "empty.csv", "", nil, "no rows"},
		{"legacy xls", "old.xls", string([]byte{0xD0, 0xCF, 0x11, 0xE0, 0x01}), nil, "legacy .xls"},
		{"unknown format", "blob", "", nil, "unsupported file format"},
		{"unknown encoding", "x.csv", "a,b\n", config.Options{"encoding": "ebcdic"}, "unsupported encoding"},
		{"html without table", "page.html", "<html><body><p>hi</p></body></html>", nil, "no table found"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			_, _, err := Load(tc.file, strings.NewReader(tc.body), tc.opt)
			if err == nil || !strings.Contains(err.Error(), tc.wantSub) {
				t.Fatalf("err = %v, want containing %q", err, tc.wantSub)
			}
		})
	}
}

func TestLoadHTMLTable(t *testing.T) {
	t.Parallel()

	page := `<!doctype html>
<html><body>
<h1>Weekly Hours Report</h1>
<table>
  <tr><th>Nickname</th><th>Engine Hours</th></tr>
  <tr><td><b>Big Red</b></td><td>847.5</td></tr>
  <tr><td> Old Blue </td><td>920</td></tr>
  <tr></tr>
</table>
<table><tr><td>second table is ignored</td></tr></table>
</body></html>`

	tbl, warns, err := Load("report", strings.NewReader(page), nil)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(warns) != 0 {
		t.Fatalf("unexpected warnings: %v", warns)
	}
	if want := []string{"Nickname", "Engine Hours"}; !reflect.DeepEqual(tbl.Columns, want) {
		t.Fatalf("columns = %q, want %q", tbl.Columns, want)
	}
	wantRows := [][]any{
		{"Big Red", "847.5"},
		{"Old Blue", "920"},
	}
	if !reflect.DeepEqual(tbl.Rows, wantRows) {
		t.Fatalf("rows = %v, want %v", tbl.Rows, wantRows)
	}
}

func TestLoadMaxRows(t *testing.T) {
	t.Parallel()

	body := "nickname,hours\nT1,1\nT2,2\nT3,3\n"
	tbl, _, err := Load("big.csv", strings.NewReader(body), config.Options{"max_rows": 2})
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(tbl.Rows) != 2 {
		t.Fatalf("rows = %v, want capped at 2", tbl.Rows)
	}
}

func TestTableFromRowsPadding(t *testing.T) {
	t.Parallel()

	raw := [][]string{
		{"nickname", "hours", "location"},
		{"T1", "100"},
		{"", "", ""},
	}
	tbl, warns, err := tableFromRows("x.csv", raw, nil)
	if err != nil {
		t.Fatalf("tableFromRows: %v", err)
	}
	if len(warns) != 0 {
		t.Fatalf("short rows must pad silently, got %v", warns)
	}
	want := [][]any{{"T1", "100", nil}}
	if !reflect.DeepEqual(tbl.Rows, want) {
		t.Fatalf("rows = %v, want %v (padded, blank row dropped)", tbl.Rows, want)
	}
}

func TestFormatString(t *testing.T) {
	t.Parallel()

	got := []string{FormatUnknown.String(), FormatCSV.String(), FormatXLSX.String(), FormatHTML.String()}
	want := []string{"unknown", "csv", "xlsx", "html"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("Format strings = %v, want %v", got, want)
	}
}
