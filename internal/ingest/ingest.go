// Package ingest reads uploaded fleet files into raw tables. It accepts CSV,
// Excel workbooks (.xlsx), and HTML report pages with an embedded table, and
// figures out which is which from the file name and a peek at the bytes.
//
// Readers are tolerant by design: ragged rows are padded or clipped, blank
// rows vanish, and oddities are reported as warnings. Errors are reserved for
// files that cannot be read at all; callers typically turn those into
// warnings and keep going with the rest of the batch.
package ingest

import (
	"bytes"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/louisbat101/agtegra-tractors-hours/internal/config"
	"github.com/louisbat101/agtegra-tractors-hours/pkg/records"
)

// Format identifies the file format of an upload.
type Format int

const (
	FormatUnknown Format = iota
	FormatCSV
	FormatXLSX
	FormatHTML
)

func (f Format) String() string {
	switch f {
	case FormatCSV:
		return "csv"
	case FormatXLSX:
		return "xlsx"
	case FormatHTML:
		return "html"
	default:
		return "unknown"
	}
}

var (
	zipMagic = []byte("PK\x03\x04")
	oleMagic = []byte{0xD0, 0xCF, 0x11, 0xE0}
)

// Sniff infers the format from a byte sample. Detection is heuristic and
// intentionally conservative: anything textual that is not markup is assumed
// to be CSV.
func Sniff(sample []byte) Format {
	if bytes.HasPrefix(sample, zipMagic) {
		return FormatXLSX
	}
	if bytes.HasPrefix(sample, oleMagic) {
		return FormatUnknown
	}
	trim := bytes.TrimSpace(sample)
	if len(trim) == 0 {
		return FormatUnknown
	}
	if trim[0] == '<' {
		return FormatHTML
	}
	return FormatCSV
}

// Detect combines the file extension with content sniffing. The extension
// wins when it names a format we know; otherwise, and for mislabeled files
// (an ".xls" that is really a zip container), the content decides.
func Detect(name string, sample []byte) Format {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".csv":
		return FormatCSV
	case ".xlsx", ".xlsm":
		return FormatXLSX
	case ".html", ".htm":
		return FormatHTML
	}
	return Sniff(sample)
}

// Load reads one uploaded file into a raw table.
//
// Errors:
//   - the reader fails,
//   - the format is unrecognized or a legacy .xls workbook,
//   - the file is structurally unreadable (corrupt workbook, no table in the
//     HTML, headerless input without configured columns).
//
// Recoverable oddities come back as warnings instead.
func Load(name string, r io.Reader, opt config.Options) (records.Table, []records.Warning, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return records.Table{}, nil, fmt.Errorf("read %s: %w", name, err)
	}

	switch Detect(name, data) {
	case FormatCSV:
		return readCSV(name, data, opt)
	case FormatXLSX:
		return readXLSX(name, data, opt)
	case FormatHTML:
		return readHTML(name, data, opt)
	default:
		if bytes.HasPrefix(data, oleMagic) {
			return records.Table{}, nil, fmt.Errorf("%s: legacy .xls workbooks are not supported; save the file as .xlsx", name)
		}
		return records.Table{}, nil, fmt.Errorf("%s: unsupported file format (csv, xlsx and html are accepted)", name)
	}
}

// tableFromRows builds a Table from string rows shared by all readers. The
// first row is the header unless has_header is false, in which case column
// names must come from the "columns" option.
//
// Rows shorter than the header are padded with empty cells; longer rows are
// clipped and counted in a warning. Fully blank rows are dropped.
func tableFromRows(name string, raw [][]string, opt config.Options) (records.Table, []records.Warning, error) {
	trim := opt.Bool("trim_space", true)
	maxRows := opt.Int("max_rows", 0)

	var cols []string
	body := raw
	if opt.Bool("has_header", true) {
		if len(raw) == 0 {
			return records.Table{}, nil, fmt.Errorf("%s: file has no rows", name)
		}
		hdr := raw[0]
		body = raw[1:]
		cols = make([]string, len(hdr))
		for i, h := range hdr {
			if i == 0 {
				h = strings.TrimPrefix(h, "\uFEFF")
			}
			cols[i] = strings.TrimSpace(h)
		}
	} else {
		cols = opt.Strings("columns")
		if len(cols) == 0 {
			return records.Table{}, nil, fmt.Errorf("%s: has_header is false but no columns are configured", name)
		}
	}

	t := records.Table{Source: name, Columns: cols}
	clipped := 0
	for _, rec := range body {
		if maxRows > 0 && len(t.Rows) >= maxRows {
			break
		}
		if len(rec) > len(cols) {
			clipped++
		}
		row := make([]any, len(cols))
		blank := true
		for i := range cols {
			var s string
			if i < len(rec) {
				s = rec[i]
			}
			if trim {
				s = strings.TrimSpace(s)
			}
			if s != "" {
				row[i] = s
				blank = false
			}
		}
		if blank {
			continue
		}
		t.Rows = append(t.Rows, row)
	}

	var warns []records.Warning
	if clipped > 0 {
		warns = append(warns, records.Warnf(name, "%d rows had more cells than the header; extra cells were dropped", clipped))
	}
	return t, warns, nil
}
