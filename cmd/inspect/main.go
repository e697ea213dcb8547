// Command inspect samples a fleet export file and reports how the pipeline
// would read it: the detected format, which columns resolve to which roles,
// near-miss headers worth renaming, coarse per-column types, and how many
// rows would survive normalization.
//
// It exists for operators debugging a vendor export that "uploads but shows
// nothing": the report points at the header that failed to resolve instead
// of leaving them to diff CSVs by hand.
//
// Output modes:
//   - Default: a human-readable text report on stdout.
//   - -json: the same report as a JSON object, for scripting.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"strings"
	"time"

	"github.com/louisbat101/agtegra-tractors-hours/internal/columns"
	"github.com/louisbat101/agtegra-tractors-hours/internal/config"
	"github.com/louisbat101/agtegra-tractors-hours/internal/ingest"
	"github.com/louisbat101/agtegra-tractors-hours/internal/normalize"
	"github.com/louisbat101/agtegra-tractors-hours/pkg/records"
)

// roleReport describes how one role resolved against the file's headers.
type roleReport struct {
	Role string `json:"role"`

	// Match is "exact", "fuzzy", or "none".
	Match  string `json:"match"`
	Column string `json:"column,omitempty"`

	// Suggestions lists near-miss headers when the role did not resolve.
	Suggestions []string `json:"suggestions,omitempty"`
}

// columnReport is the coarse type profile of one column.
type columnReport struct {
	Name    string `json:"name"`
	Numeric int    `json:"numeric"`
	Dates   int    `json:"dates"`
	Text    int    `json:"text"`
	Empty   int    `json:"empty"`
}

type report struct {
	File    string `json:"file"`
	Format  string `json:"format"`
	Rows    int    `json:"rows"`
	Columns int    `json:"columns"`

	Roles       []roleReport   `json:"roles"`
	ColumnTypes []columnReport `json:"column_types"`

	// Usable reports whether normalization would produce any records, and
	// Records/Dropped how many.
	Usable   bool     `json:"usable"`
	Records  int      `json:"records"`
	Dropped  int      `json:"dropped"`
	Warnings []string `json:"warnings,omitempty"`
}

func main() {
	var (
		jsonOut = flag.Bool("json", false, "Emit the report as JSON instead of text")
		comma   = flag.String("comma", "", "CSV field separator override (single character)")
	)
	flag.Parse()

	if flag.NArg() != 1 {
		fmt.Fprintln(os.Stderr, "usage: inspect [flags] <file.csv|file.xlsx|file.html>")
		flag.Usage()
		os.Exit(2)
	}
	path := flag.Arg(0)

	f, err := os.Open(path)
	if err != nil {
		log.Fatalf("open: %v", err)
	}
	defer f.Close()

	opt := config.Options{}
	if *comma != "" {
		opt["comma"] = *comma
	}

	rep, err := buildReport(path, f, opt)
	if err != nil {
		log.Fatalf("inspect: %v", err)
	}

	if *jsonOut {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(rep); err != nil {
			log.Fatalf("encode report: %v", err)
		}
		return
	}
	printReport(os.Stdout, rep)
}

// roleCandidates pairs each role with the header names that fill it.
var roleCandidates = []struct {
	role       string
	candidates []string
}{
	{"nickname", normalize.NicknameColumns},
	{"engine_hours", normalize.EngineHoursColumns},
	{"date", normalize.DateColumns},
	{"location", normalize.LocationColumns},
}

// buildReport ingests the file and assembles the full diagnostic report.
func buildReport(name string, r io.Reader, opt config.Options) (report, error) {
	table, warns, err := ingest.Load(name, r, opt)
	if err != nil {
		return report{}, err
	}

	rep := report{
		File:    name,
		Format:  ingest.Detect(name, nil).String(),
		Rows:    len(table.Rows),
		Columns: len(table.Columns),
	}

	names := make([]string, 0, len(table.Columns))
	for _, c := range table.Columns {
		names = append(names, columns.Normalize(c))
	}

	for _, rc := range roleCandidates {
		rep.Roles = append(rep.Roles, resolveRole(rc.role, names, rc.candidates))
	}

	rep.ColumnTypes = profileColumns(table)

	recs, nwarns := normalize.Records(table)
	warns = append(warns, nwarns...)
	rep.Records = len(recs)
	rep.Dropped = len(table.Rows) - len(recs)
	rep.Usable = len(recs) > 0
	for _, w := range warns {
		rep.Warnings = append(rep.Warnings, w.String())
	}
	return rep, nil
}

// resolveRole classifies the resolution of one role: exact candidate match,
// fuzzy (substring) match, or none, with near-miss suggestions for the
// latter.
func resolveRole(role string, names, candidates []string) roleReport {
	rr := roleReport{Role: role, Match: "none"}
	col, ok := columns.Resolve(names, candidates)
	if !ok {
		rr.Suggestions = columns.Similar(names, candidates)
		return rr
	}
	rr.Column = col
	rr.Match = "fuzzy"
	for _, cand := range candidates {
		if col == cand {
			rr.Match = "exact"
			break
		}
	}
	return rr
}

// profileColumns counts coarse value types per column over all rows. A value
// is classified as the first of: empty, numeric, date, text.
func profileColumns(t records.Table) []columnReport {
	out := make([]columnReport, len(t.Columns))
	for i, c := range t.Columns {
		out[i].Name = columns.Normalize(c)
	}
	for _, row := range t.Rows {
		for i := range t.Columns {
			if i >= len(row) {
				out[i].Empty++
				continue
			}
			s := strings.TrimSpace(records.Text(row[i]))
			switch {
			case s == "":
				out[i].Empty++
			case isNumeric(row[i]):
				out[i].Numeric++
			case looksLikeDate(s):
				out[i].Dates++
			default:
				out[i].Text++
			}
		}
	}
	return out
}

func isNumeric(v any) bool {
	_, ok := records.Float(v)
	return ok
}

var probeLayouts = []string{
	"2006-01-02",
	"02.01.2006",
	"02/01/2006",
	"01/02/2006",
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
}

func looksLikeDate(s string) bool {
	for _, lay := range probeLayouts {
		if _, err := time.Parse(lay, s); err == nil {
			return true
		}
	}
	return false
}

func printReport(w io.Writer, rep report) {
	fmt.Fprintf(w, "file: %s (%s)\n", rep.File, rep.Format)
	fmt.Fprintf(w, "size: %d rows x %d columns\n", rep.Rows, rep.Columns)

	fmt.Fprintln(w, "roles:")
	for _, rr := range rep.Roles {
		switch rr.Match {
		case "none":
			fmt.Fprintf(w, "  %-13s unresolved", rr.Role)
			if len(rr.Suggestions) > 0 {
				fmt.Fprintf(w, " (did you mean %s?)", strings.Join(rr.Suggestions, ", "))
			}
			fmt.Fprintln(w)
		default:
			fmt.Fprintf(w, "  %-13s -> %s (%s)\n", rr.Role, rr.Column, rr.Match)
		}
	}

	fmt.Fprintln(w, "columns:")
	for _, c := range rep.ColumnTypes {
		fmt.Fprintf(w, "  %-24s numeric=%d dates=%d text=%d empty=%d\n",
			c.Name, c.Numeric, c.Dates, c.Text, c.Empty)
	}

	if rep.Usable {
		fmt.Fprintf(w, "result: usable, %d records (%d rows dropped)\n", rep.Records, rep.Dropped)
	} else {
		fmt.Fprintln(w, "result: not usable, no records would be produced")
	}
	for _, msg := range rep.Warnings {
		fmt.Fprintf(w, "warning: %s\n", msg)
	}
}
