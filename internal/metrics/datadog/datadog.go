// Package datadog implements a Datadog backend for the internal/metrics
// facade.
//
// The backend buffers observations in memory, submits them on a periodic
// ticker, and submits one final time on Close. Short batch runs get their
// single tail flush; a long-lived API server gets an actual time series.
// If the process dies with SIGKILL the tail flush is lost, which no backend
// can fix.
package datadog

import (
	"context"
	"net/http"
	"os"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/louisbat101/agtegra-tractors-hours/internal/metrics"

	dd "github.com/DataDog/datadog-api-client-go/v2/api/datadog"
	"github.com/DataDog/datadog-api-client-go/v2/api/datadogV2"
)

// Metric families the pipeline emits. Anything else is ignored.
const (
	MetricTables            = "tractorhours_tables_total"             // status: ok | skipped | unreadable
	MetricRecords           = "tractorhours_records_total"            // kind: parsed | dropped | merged
	MetricDuplicatesRemoved = "tractorhours_duplicates_removed_total" // no labels
	MetricUploads           = "tractorhours_uploads_total"            // no labels
	MetricStageDuration     = "tractorhours_stage_duration_seconds"   // stage: ingest | normalize | merge | store
)

// Options configures the backend.
type Options struct {
	// JobName becomes tag "job:<name>" on every series. Defaults to
	// "tractor-hours".
	JobName string

	// Tags are extra Datadog tags ("env:prod", "service:fleet").
	Tags []string

	// FlushEvery is the submit interval. Defaults to 60s when <= 0.
	FlushEvery time.Duration

	// Unexported test seams. Production code never sets these; tests use
	// them to avoid real clocks, tickers and network submission.
	now       func() time.Time
	newTicker func(d time.Duration) *time.Ticker
	submitter metricsSubmitter
}

// metricsSubmitter is the slice of the Datadog SDK this backend needs. The
// SDK only exposes the concrete *datadogV2.MetricsApi, which cannot be
// stubbed without real HTTP; depending on this interface keeps tests
// deterministic.
type metricsSubmitter interface {
	SubmitMetrics(ctx context.Context, body datadogV2.MetricPayload, params ...datadogV2.SubmitMetricsOptionalParameters) (datadogV2.IntakePayloadAccepted, *http.Response, error)
}

// Backend implements metrics.Backend for Datadog.
type Backend struct {
	api metricsSubmitter
	ctx context.Context

	flushEvery time.Duration
	stopCh     chan struct{}
	doneCh     chan struct{}

	baseTags []string

	now       func() time.Time
	newTicker func(d time.Duration) *time.Ticker

	mu sync.Mutex

	tableCounts    map[string]float64 // status -> count
	recordCounts   map[string]float64 // kind -> count
	duplicateCount float64
	uploadCount    float64
	stageSamples   map[string][]float64 // stage -> duration samples
}

func resolveEnvTag() string {
	if v := strings.TrimSpace(os.Getenv("ENV")); v != "" {
		return "env:" + v
	}
	if v := strings.TrimSpace(os.Getenv("DD_ENV")); v != "" {
		return "env:" + v
	}
	return "env:unknown"
}

// NewBackend constructs a Datadog backend using the official client and
// starts its periodic flush goroutine. Credentials come from the standard
// DD_API_KEY environment the SDK reads; network errors surface from Flush,
// not from construction.
func NewBackend(parent context.Context, opts Options) (*Backend, error) {
	job := opts.JobName
	if job == "" {
		job = "tractor-hours"
	}

	flushEvery := opts.FlushEvery
	if flushEvery <= 0 {
		flushEvery = 60 * time.Second
	}

	baseTags := make([]string, 0, 2+len(opts.Tags))
	baseTags = append(baseTags, resolveEnvTag(), "job:"+job)
	baseTags = append(baseTags, opts.Tags...)

	nowFn := opts.now
	if nowFn == nil {
		nowFn = time.Now
	}
	newTicker := opts.newTicker
	if newTicker == nil {
		newTicker = time.NewTicker
	}

	submitter := opts.submitter
	if submitter == nil {
		cfg := dd.NewConfiguration()
		client := dd.NewAPIClient(cfg)
		submitter = datadogV2.NewMetricsApi(client)
	}

	b := &Backend{
		api:        submitter,
		ctx:        dd.NewDefaultContext(parent),
		flushEvery: flushEvery,
		stopCh:     make(chan struct{}),
		doneCh:     make(chan struct{}),

		baseTags: baseTags,

		now:       nowFn,
		newTicker: newTicker,

		tableCounts:  make(map[string]float64),
		recordCounts: make(map[string]float64),
		stageSamples: make(map[string][]float64),
	}

	go b.loop()
	return b, nil
}

func (b *Backend) loop() {
	defer close(b.doneCh)

	t := b.newTicker(b.flushEvery)
	defer t.Stop()

	for {
		select {
		case <-t.C:
			_ = b.Flush()
		case <-b.stopCh:
			return
		}
	}
}

// Close stops the flush loop and performs one final Flush. Close once;
// calling it twice panics on the already-closed stop channel, the usual Go
// close-once contract for process-lifetime backends.
func (b *Backend) Close() error {
	close(b.stopCh)
	<-b.doneCh
	return b.Flush()
}

// IncCounter implements metrics.Backend.
func (b *Backend) IncCounter(name string, delta float64, labels metrics.Labels) {
	if delta <= 0 {
		return
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	switch name {
	case MetricTables:
		status := labels["status"]
		if status == "" {
			status = "unknown"
		}
		b.tableCounts[status] += delta

	case MetricRecords:
		kind := labels["kind"]
		if kind == "" {
			return
		}
		b.recordCounts[kind] += delta

	case MetricDuplicatesRemoved:
		b.duplicateCount += delta

	case MetricUploads:
		b.uploadCount += delta

	default:
		// Unknown metric names are dropped.
	}
}

// ObserveHistogram implements metrics.Backend.
func (b *Backend) ObserveHistogram(name string, value float64, labels metrics.Labels) {
	if value < 0 || name != MetricStageDuration {
		return
	}
	stage := labels["stage"]
	if stage == "" {
		stage = "unknown"
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	b.stageSamples[stage] = append(b.stageSamples[stage], value)
}

// snapshot holds detached buffers so payload building and submission happen
// outside the lock.
type snapshot struct {
	tableCounts    map[string]float64
	recordCounts   map[string]float64
	duplicateCount float64
	uploadCount    float64
	stageSamples   map[string][]float64
}

func (b *Backend) snapshotAndReset() snapshot {
	b.mu.Lock()
	defer b.mu.Unlock()

	s := snapshot{
		tableCounts:    b.tableCounts,
		recordCounts:   b.recordCounts,
		duplicateCount: b.duplicateCount,
		uploadCount:    b.uploadCount,
		stageSamples:   b.stageSamples,
	}

	b.tableCounts = make(map[string]float64)
	b.recordCounts = make(map[string]float64)
	b.duplicateCount = 0
	b.uploadCount = 0
	b.stageSamples = make(map[string][]float64)

	return s
}

func (s snapshot) isEmpty() bool {
	return len(s.tableCounts) == 0 &&
		len(s.recordCounts) == 0 &&
		s.duplicateCount == 0 &&
		s.uploadCount == 0 &&
		len(s.stageSamples) == 0
}

// Flush submits buffered metrics and resets the buffers. Buffers reset even
// when submission fails, so a dead Datadog endpoint never blocks the
// pipeline; delivery here is best effort.
func (b *Backend) Flush() error {
	snap := b.snapshotAndReset()
	if snap.isEmpty() {
		return nil
	}

	payload := datadogV2.MetricPayload{Series: b.buildSeries(snap, b.now().Unix())}
	_, _, err := b.api.SubmitMetrics(b.ctx, payload, *datadogV2.NewSubmitMetricsOptionalParameters())
	return err
}

// buildSeries turns a snapshot into Datadog series at a fixed timestamp. It
// is pure, which is what makes the naming/tagging contract unit-testable.
func (b *Backend) buildSeries(s snapshot, nowUnix int64) []datadogV2.MetricSeries {
	series := make([]datadogV2.MetricSeries, 0, len(s.tableCounts)+len(s.recordCounts)+8)

	for status, v := range s.tableCounts {
		if v == 0 {
			continue
		}
		series = append(series, countSeries("tractorhours.tables.total", v, withTags(b.baseTags, "status:"+status), nowUnix))
	}
	for kind, v := range s.recordCounts {
		if v == 0 {
			continue
		}
		series = append(series, countSeries("tractorhours.records.total", v, withTags(b.baseTags, "kind:"+kind), nowUnix))
	}
	if s.duplicateCount != 0 {
		series = append(series, countSeries("tractorhours.duplicates_removed.total", s.duplicateCount, b.baseTags, nowUnix))
	}
	if s.uploadCount != 0 {
		series = append(series, countSeries("tractorhours.uploads.total", s.uploadCount, b.baseTags, nowUnix))
	}

	for stage, samples := range s.stageSamples {
		addPercentiles(&series, withTags(b.baseTags, "stage:"+stage), "tractorhours.stage.duration_seconds", samples, nowUnix)
	}

	return series
}

// addPercentiles appends p50/p90/p95/p99/max/samples gauges for one sample
// set. Sorts a copy; the input is not mutated.
func addPercentiles(series *[]datadogV2.MetricSeries, tags []string, metricPrefix string, samples []float64, nowUnix int64) {
	if len(samples) == 0 {
		return
	}
	cp := append([]float64(nil), samples...)
	sort.Float64s(cp)

	*series = append(*series, gaugeSeries(metricPrefix+".p50", percentileNearestRank(cp, 0.50), tags, nowUnix))
	*series = append(*series, gaugeSeries(metricPrefix+".p90", percentileNearestRank(cp, 0.90), tags, nowUnix))
	*series = append(*series, gaugeSeries(metricPrefix+".p95", percentileNearestRank(cp, 0.95), tags, nowUnix))
	*series = append(*series, gaugeSeries(metricPrefix+".p99", percentileNearestRank(cp, 0.99), tags, nowUnix))
	*series = append(*series, gaugeSeries(metricPrefix+".max", cp[len(cp)-1], tags, nowUnix))
	*series = append(*series, gaugeSeries(metricPrefix+".samples", float64(len(cp)), tags, nowUnix))
}

func countSeries(metric string, value float64, tags []string, nowUnix int64) datadogV2.MetricSeries {
	return datadogV2.MetricSeries{
		Metric: metric,
		Type:   datadogV2.METRICINTAKETYPE_COUNT.Ptr(),
		Points: []datadogV2.MetricPoint{
			{Timestamp: dd.PtrInt64(nowUnix), Value: dd.PtrFloat64(value)},
		},
		Tags: tags,
	}
}

func gaugeSeries(metric string, value float64, tags []string, nowUnix int64) datadogV2.MetricSeries {
	return datadogV2.MetricSeries{
		Metric: metric,
		Type:   datadogV2.METRICINTAKETYPE_GAUGE.Ptr(),
		Points: []datadogV2.MetricPoint{
			{Timestamp: dd.PtrInt64(nowUnix), Value: dd.PtrFloat64(value)},
		},
		Tags: tags,
	}
}

func withTags(base []string, extras ...string) []string {
	out := make([]string, 0, len(base)+len(extras))
	out = append(out, base...)
	out = append(out, extras...)
	return out
}

func percentileNearestRank(s []float64, p float64) float64 {
	n := len(s)
	if n == 0 {
		return 0
	}
	if p <= 0 {
		return s[0]
	}
	if p >= 1 {
		return s[n-1]
	}
	idx := int(p*float64(n-1) + 0.5)
	if idx < 0 {
		idx = 0
	}
	if idx >= n {
		idx = n - 1
	}
	return s[idx]
}

var _ metrics.Backend = (*Backend)(nil)

// ParseTagsCSV parses comma-separated tags like "env:prod,service:fleet".
func ParseTagsCSV(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}
