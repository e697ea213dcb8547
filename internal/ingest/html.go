package ingest

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/louisbat101/agtegra-tractors-hours/internal/config"
	"github.com/louisbat101/agtegra-tractors-hours/pkg/records"
)

// readHTML pulls the first <table> out of an HTML report page. Fleet portals
// that only offer "print view" exports produce these. The first row (th or
// td) is the header; cell text is extracted with markup stripped.
func readHTML(name string, data []byte, opt config.Options) (records.Table, []records.Warning, error) {
	rd, err := decodeReader(bytes.NewReader(data), opt.String("encoding", ""))
	if err != nil {
		return records.Table{}, nil, fmt.Errorf("%s: %w", name, err)
	}

	doc, err := goquery.NewDocumentFromReader(rd)
	if err != nil {
		return records.Table{}, nil, fmt.Errorf("%s: parse html: %w", name, err)
	}

	table := doc.Find("table").First()
	if table.Length() == 0 {
		return records.Table{}, nil, fmt.Errorf("%s: no table found in html", name)
	}

	var raw [][]string
	table.Find("tr").Each(func(_ int, tr *goquery.Selection) {
		var cells []string
		tr.Find("th, td").Each(func(_ int, cell *goquery.Selection) {
			cells = append(cells, strings.TrimSpace(cell.Text()))
		})
		if len(cells) > 0 {
			raw = append(raw, cells)
		}
	})
	return tableFromRows(name, raw, opt)
}
