// Package pipeline runs one batch of uploaded files through the whole flow:
// ingest each file into a raw table, normalize the tables into canonical
// records, and merge the record sets into one deduplicated fleet view.
//
// A batch never fails on bad data. Files that cannot be read and tables
// missing required columns become warnings; the result carries whatever
// survived. The zero batch yields the zero result.
package pipeline

import (
	"io"
	"time"

	"github.com/louisbat101/agtegra-tractors-hours/internal/config"
	"github.com/louisbat101/agtegra-tractors-hours/internal/ingest"
	"github.com/louisbat101/agtegra-tractors-hours/internal/merge"
	"github.com/louisbat101/agtegra-tractors-hours/internal/metrics"
	"github.com/louisbat101/agtegra-tractors-hours/internal/normalize"
	"github.com/louisbat101/agtegra-tractors-hours/pkg/records"
)

// Metric names this package emits through the metrics facade. The Datadog
// backend knows these families; other backends may map them differently.
const (
	metricTables            = "tractorhours_tables_total"
	metricRecords           = "tractorhours_records_total"
	metricDuplicatesRemoved = "tractorhours_duplicates_removed_total"
	metricStageDuration     = "tractorhours_stage_duration_seconds"
)

// Input is one uploaded file to process.
type Input struct {
	// Name is the file name; it doubles as the source label on records.
	Name   string
	Reader io.Reader
}

// Result is the outcome of one batch.
type Result struct {
	Records           []records.Record  `json:"records"`
	Warnings          []records.Warning `json:"warnings"`
	DuplicatesRemoved int               `json:"duplicates_removed"`

	// TablesProcessed counts files that contributed at least one record;
	// TablesSkipped counts files that contributed none (unreadable, missing
	// required columns, or every row dropped).
	TablesProcessed int `json:"tables_processed"`
	TablesSkipped   int `json:"tables_skipped"`
}

// Processor runs batches with fixed ingest options.
type Processor struct {
	// Options are passed to the file readers (comma, has_header, encoding...).
	Options config.Options

	// Logf, when set, receives stage progress lines. Nil disables them.
	Logf func(format string, args ...any)
}

// Run processes one batch of files.
func (p *Processor) Run(inputs []Input) Result {
	var res Result
	var sets [][]records.Record

	for _, in := range inputs {
		ingestStart := time.Now()
		table, warns, err := ingest.Load(in.Name, in.Reader, p.Options)
		res.Warnings = append(res.Warnings, warns...)
		if err != nil {
			res.Warnings = append(res.Warnings, records.Warnf(in.Name, "file skipped: %v", err))
			res.TablesSkipped++
			metrics.IncCounter(metricTables, 1, metrics.Labels{"status": "unreadable"})
			p.logf("stage=ingest file=%s status=error duration=%s err=%v", in.Name, durMS(ingestStart), err)
			continue
		}
		metrics.ObserveHistogram(metricStageDuration, time.Since(ingestStart).Seconds(), metrics.Labels{"stage": "ingest"})
		p.logf("stage=ingest file=%s status=ok rows=%d columns=%d duration=%s",
			in.Name, len(table.Rows), len(table.Columns), durMS(ingestStart))

		normStart := time.Now()
		recs, warns := normalize.Records(table)
		res.Warnings = append(res.Warnings, warns...)
		metrics.ObserveHistogram(metricStageDuration, time.Since(normStart).Seconds(), metrics.Labels{"stage": "normalize"})

		if len(recs) == 0 {
			res.TablesSkipped++
			metrics.IncCounter(metricTables, 1, metrics.Labels{"status": "skipped"})
			p.logf("stage=normalize file=%s status=skipped duration=%s", in.Name, durMS(normStart))
			continue
		}

		res.TablesProcessed++
		sets = append(sets, recs)
		metrics.IncCounter(metricTables, 1, metrics.Labels{"status": "ok"})
		metrics.IncCounter(metricRecords, float64(len(recs)), metrics.Labels{"kind": "parsed"})
		dropped := len(table.Rows) - len(recs)
		if dropped > 0 {
			metrics.IncCounter(metricRecords, float64(dropped), metrics.Labels{"kind": "dropped"})
		}
		p.logf("stage=normalize file=%s status=ok records=%d dropped=%d duration=%s",
			in.Name, len(recs), dropped, durMS(normStart))
	}

	mergeStart := time.Now()
	res.Records, res.DuplicatesRemoved = merge.Records(sets...)
	metrics.ObserveHistogram(metricStageDuration, time.Since(mergeStart).Seconds(), metrics.Labels{"stage": "merge"})
	metrics.IncCounter(metricRecords, float64(len(res.Records)), metrics.Labels{"kind": "merged"})
	metrics.IncCounter(metricDuplicatesRemoved, float64(res.DuplicatesRemoved), nil)
	p.logf("stage=merge records=%d duplicates_removed=%d duration=%s",
		len(res.Records), res.DuplicatesRemoved, durMS(mergeStart))

	return res
}

func (p *Processor) logf(format string, args ...any) {
	if p.Logf != nil {
		p.Logf(format, args...)
	}
}

func durMS(start time.Time) time.Duration {
	return time.Since(start).Truncate(time.Millisecond)
}
