package ingest

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"io"

	"github.com/louisbat101/agtegra-tractors-hours/internal/config"
	"github.com/louisbat101/agtegra-tractors-hours/pkg/records"
)

// readCSV parses CSV bytes into a raw table.
//
// Options: comma (default ","), lazy_quotes (default true, vendor exports
// love stray quotes), trim_space, has_header, columns, max_rows, encoding.
// Lines the csv reader cannot make sense of are skipped and counted.
func readCSV(name string, data []byte, opt config.Options) (records.Table, []records.Warning, error) {
	data = bytes.TrimPrefix(data, []byte("\uFEFF"))

	rd, err := decodeReader(bytes.NewReader(data), opt.String("encoding", ""))
	if err != nil {
		return records.Table{}, nil, fmt.Errorf("%s: %w", name, err)
	}

	cr := csv.NewReader(rd)
	cr.Comma = opt.Rune("comma", ',')
	cr.LazyQuotes = opt.Bool("lazy_quotes", true)
	cr.FieldsPerRecord = -1

	var (
		raw      [][]string
		badLines int
	)
	for {
		rec, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			badLines++
			continue
		}
		raw = append(raw, rec)
	}

	t, warns, err := tableFromRows(name, raw, opt)
	if err != nil {
		return records.Table{}, warns, err
	}
	if badLines > 0 {
		warns = append(warns, records.Warnf(name, "skipped %d malformed csv lines", badLines))
	}
	return t, warns, nil
}
