package server

import (
	"net/http"
	"sort"

	"github.com/gin-gonic/gin"

	"github.com/louisbat101/agtegra-tractors-hours/pkg/records"
)

// chartRequest is the body of POST /charts/:kind. Clients post back the
// record set they got from /upload or /snapshots.
type chartRequest struct {
	Records []records.Record `json:"records" binding:"required"`
}

// chart computes chart-ready series. The frontend owns the actual drawing;
// this endpoint only shapes the data.
//
// Kinds:
//   - bar: tractors sorted by engine hours ascending, one bar each
//   - scatter: engine hours by record index
//   - pie: the under/over milestone split
func (h *Handler) chart(c *gin.Context) {
	var req chartRequest
	if err := c.ShouldBindJSON(&req); err != nil || len(req.Records) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "no data provided"})
		return
	}

	switch kind := c.Param("kind"); kind {
	case "bar":
		recs := append([]records.Record(nil), req.Records...)
		sort.SliceStable(recs, func(i, j int) bool { return recs[i].EngineHours < recs[j].EngineHours })
		labels := make([]string, len(recs))
		values := make([]float64, len(recs))
		for i, r := range recs {
			labels[i] = r.Nickname
			values[i] = r.EngineHours
		}
		c.JSON(http.StatusOK, gin.H{
			"kind":   kind,
			"title":  "Engine Hours by Tractor",
			"labels": labels,
			"values": values,
		})

	case "scatter":
		xs := make([]int, len(req.Records))
		ys := make([]float64, len(req.Records))
		labels := make([]string, len(req.Records))
		for i, r := range req.Records {
			xs[i] = i
			ys[i] = r.EngineHours
			labels[i] = r.Nickname
		}
		c.JSON(http.StatusOK, gin.H{
			"kind":   kind,
			"title":  "Engine Hours Distribution",
			"x":      xs,
			"y":      ys,
			"labels": labels,
		})

	case "pie":
		under, over := 0, 0
		for _, r := range req.Records {
			if r.EngineHours < records.MilestoneHours {
				under++
			} else {
				over++
			}
		}
		c.JSON(http.StatusOK, gin.H{
			"kind":   kind,
			"title":  "Tractors by 900 Hour Milestone",
			"labels": []string{"Under 900 hrs", "Over 900 hrs"},
			"values": []int{under, over},
		})

	default:
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid chart type (bar|scatter|pie)"})
	}
}
