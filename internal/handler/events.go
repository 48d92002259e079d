package handler

import (
	"DedupVault/internal/dto"
	"DedupVault/internal/service"
	"DedupVault/utils"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
)

// parseTimeParam accepts RFC3339 timestamps or plain dates.
func parseTimeParam(raw string) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}, nil
	}
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return t, nil
	}
	return time.ParseInLocation("2006-01-02", raw, time.Local)
}

// ListEvents returns dedup events in a window, newest first.
func ListEvents(c *gin.Context) {
	start, err := parseTimeParam(c.Query("start"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid start: " + err.Error()})
		return
	}
	end, err := parseTimeParam(c.Query("end"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid end: " + err.Error()})
		return
	}
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "100"))

	events, err := service.ListDedupEvents(start, end, limit)
	if err != nil {
		utils.Fail(c, err)
		return
	}
	utils.Success(c, events)
}

// GetSavings reports the storage saved by deduplication over a window,
// defaulting to the current week.
func GetSavings(c *gin.Context) {
	start, err := parseTimeParam(c.Query("start"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid start: " + err.Error()})
		return
	}
	end, err := parseTimeParam(c.Query("end"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid end: " + err.Error()})
		return
	}
	if start.IsZero() && end.IsZero() {
		start, end = service.CurrentWeek(time.Now())
	}

	summary, err := service.ComputeSavings(start, end)
	if err != nil {
		utils.Fail(c, err)
		return
	}
	utils.Success(c, summary)
}

// ReclaimOrphans triggers an orphan sweep.
func ReclaimOrphans(c *gin.Context) {
	purged, err := service.SweepOrphans(c.Request.Context())
	if err != nil {
		utils.Fail(c, err)
		return
	}
	utils.Success(c, dto.SweepResult{Purged: purged})
}
