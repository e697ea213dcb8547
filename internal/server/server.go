// Package server exposes the pipeline over HTTP: upload files, read back
// persisted snapshots, export them as CSV or Excel, and request chart-ready
// data series. Rendering stays with the frontend; this API only serves data.
package server

import (
	"context"
	"fmt"
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/louisbat101/agtegra-tractors-hours/internal/export"
	"github.com/louisbat101/agtegra-tractors-hours/internal/metrics"
	"github.com/louisbat101/agtegra-tractors-hours/internal/pipeline"
	"github.com/louisbat101/agtegra-tractors-hours/internal/stats"
	"github.com/louisbat101/agtegra-tractors-hours/internal/store"
	"github.com/louisbat101/agtegra-tractors-hours/pkg/records"
)

// Handler serves the dashboard API.
type Handler struct {
	Proc *pipeline.Processor

	// Store persists upload snapshots. Nil disables persistence; uploads
	// are then processed in memory and the snapshot routes return 503.
	Store store.Store

	// MaxUploadBytes caps the request body of POST /upload. Zero means
	// no explicit cap.
	MaxUploadBytes int64

	// NewKey mints snapshot keys. Defaults to random UUIDs.
	NewKey func() string
}

func NewHandler(proc *pipeline.Processor, st store.Store, maxUploadBytes int64) *Handler {
	return &Handler{
		Proc:           proc,
		Store:          st,
		MaxUploadBytes: maxUploadBytes,
		NewKey:         uuid.NewString,
	}
}

// RegisterRoutes attaches all API routes to the router.
func (h *Handler) RegisterRoutes(r *gin.Engine) {
	r.GET("/health", h.health)
	r.POST("/upload", h.upload)
	r.POST("/charts/:kind", h.chart)

	snaps := r.Group("/snapshots")
	snaps.GET("", h.listSnapshots)
	snaps.GET("/:key", h.getSnapshot)
	snaps.DELETE("/:key", h.deleteSnapshot)
	snaps.GET("/:key/export", h.exportSnapshot)
}

func (h *Handler) health(c *gin.Context) {
	resp := gin.H{"status": "ok", "persistence": h.Store != nil}
	if h.Store != nil {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()
		if err := h.Store.Ping(ctx); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "degraded", "store_error": err.Error()})
			return
		}
		resp["store"] = "ok"
	}
	c.JSON(http.StatusOK, resp)
}

func (h *Handler) upload(c *gin.Context) {
	if h.MaxUploadBytes > 0 {
		if c.Request.ContentLength > h.MaxUploadBytes {
			c.JSON(http.StatusRequestEntityTooLarge, gin.H{
				"error": fmt.Sprintf("upload exceeds the %d byte limit", h.MaxUploadBytes),
			})
			return
		}
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.MaxUploadBytes)
	}

	form, err := c.MultipartForm()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "no files uploaded"})
		return
	}
	headers := form.File["files"]
	if len(headers) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "no files uploaded"})
		return
	}

	var inputs []pipeline.Input
	var closers []func() error
	defer func() {
		for _, cl := range closers {
			_ = cl()
		}
	}()
	for _, fh := range headers {
		f, err := fh.Open()
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("open %s: %v", fh.Filename, err)})
			return
		}
		closers = append(closers, f.Close)
		inputs = append(inputs, pipeline.Input{Name: fh.Filename, Reader: f})
	}

	res := h.Proc.Run(inputs)
	metrics.IncCounter("tractorhours_uploads_total", 1, nil)

	if len(res.Records) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":    "no valid data found in uploaded files",
			"warnings": warningStrings(res.Warnings),
		})
		return
	}

	resp := gin.H{
		"records":            res.Records,
		"summary":            stats.Summarize(res.Records),
		"closest_to_900":     stats.ClosestToMilestone(res.Records, 10),
		"warnings":           warningStrings(res.Warnings),
		"duplicates_removed": res.DuplicatesRemoved,
	}
	if n := outlierCount(res.Records); n > 0 {
		resp["outlier_count"] = n
	}

	if h.Store != nil {
		key := h.NewKey()
		storeStart := time.Now()
		if err := h.Store.Save(c.Request.Context(), key, res.Records); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": fmt.Sprintf("persist snapshot: %v", err)})
			return
		}
		metrics.ObserveHistogram("tractorhours_stage_duration_seconds", time.Since(storeStart).Seconds(),
			metrics.Labels{"stage": "store"})
		resp["snapshot_key"] = key
	}

	c.JSON(http.StatusOK, resp)
}

func (h *Handler) listSnapshots(c *gin.Context) {
	st, ok := h.requireStore(c)
	if !ok {
		return
	}
	infos, err := st.List(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "list failed"})
		return
	}
	if infos == nil {
		infos = []store.Info{}
	}
	c.JSON(http.StatusOK, gin.H{"snapshots": infos})
}

func (h *Handler) getSnapshot(c *gin.Context) {
	st, ok := h.requireStore(c)
	if !ok {
		return
	}
	snap, err := st.Load(c.Request.Context(), c.Param("key"))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "load failed"})
		return
	}
	if snap == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
		return
	}

	recs := snap.Records
	if min, max, ok, err := hoursRange(c); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	} else if ok {
		recs = stats.FilterHours(recs, min, max)
	}

	c.JSON(http.StatusOK, gin.H{
		"key":            snap.Key,
		"created_at":     snap.CreatedAt,
		"records":        recs,
		"summary":        stats.Summarize(recs),
		"closest_to_900": stats.ClosestToMilestone(recs, 10),
	})
}

// hoursRange reads the optional min_hours/max_hours query filter. ok reports
// whether either bound was given; missing bounds default to an open range.
func hoursRange(c *gin.Context) (min, max float64, ok bool, err error) {
	minQ, hasMin := c.GetQuery("min_hours")
	maxQ, hasMax := c.GetQuery("max_hours")
	if !hasMin && !hasMax {
		return 0, 0, false, nil
	}
	min, max = 0, math.Inf(1)
	if hasMin {
		if min, err = strconv.ParseFloat(minQ, 64); err != nil {
			return 0, 0, false, fmt.Errorf("bad min_hours %q", minQ)
		}
	}
	if hasMax {
		if max, err = strconv.ParseFloat(maxQ, 64); err != nil {
			return 0, 0, false, fmt.Errorf("bad max_hours %q", maxQ)
		}
	}
	return min, max, true, nil
}

// outlierCount flags suspicious engine-hour readings with the IQR method.
func outlierCount(recs []records.Record) int {
	hours := make([]float64, len(recs))
	for i, r := range recs {
		hours[i] = r.EngineHours
	}
	flags, err := stats.Outliers(hours, "iqr")
	if err != nil {
		return 0
	}
	n := 0
	for _, f := range flags {
		if f {
			n++
		}
	}
	return n
}

func (h *Handler) deleteSnapshot(c *gin.Context) {
	st, ok := h.requireStore(c)
	if !ok {
		return
	}
	if err := st.Delete(c.Request.Context(), c.Param("key")); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "delete failed"})
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *Handler) exportSnapshot(c *gin.Context) {
	st, ok := h.requireStore(c)
	if !ok {
		return
	}
	snap, err := st.Load(c.Request.Context(), c.Param("key"))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "load failed"})
		return
	}
	if snap == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
		return
	}

	switch c.DefaultQuery("format", "csv") {
	case "csv":
		c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=tractor_hours_%s.csv", snap.Key))
		c.Header("Content-Type", "text/csv")
		if err := export.CSV(c.Writer, snap.Records); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "export failed"})
		}
	case "xlsx":
		c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=tractor_hours_%s.xlsx", snap.Key))
		c.Header("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
		if err := export.Excel(c.Writer, snap.Records); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "export failed"})
		}
	default:
		c.JSON(http.StatusBadRequest, gin.H{"error": "unknown format (csv|xlsx)"})
	}
}

func (h *Handler) requireStore(c *gin.Context) (store.Store, bool) {
	if h.Store == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "persistence is disabled"})
		return nil, false
	}
	return h.Store, true
}

func warningStrings(warns []records.Warning) []string {
	out := make([]string, len(warns))
	for i, w := range warns {
		out[i] = w.String()
	}
	return out
}
