package router

import (
	"net/http"
	"strconv"
	"time"

	"github.com/fluhartyml/NightGardDDNS/internal/database"
	"github.com/fluhartyml/NightGardDDNS/internal/middleware"
	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
)

// LogRouter serves the update history and the audit trail.
type LogRouter struct {
	logService *database.LogService
}

func NewLogRouter(svc *database.LogService) *LogRouter {
	return &LogRouter{logService: svc}
}

func (lr *LogRouter) RegisterLogRoutes(rg *gin.RouterGroup) {
	logs := rg.Group("/logs")
	logs.Use(middleware.AuthMiddleware(), middleware.DisableLogMiddleware(), gzip.Gzip(gzip.DefaultCompression))
	{
		logs.GET("/updates", lr.GetUpdateLogs)
		logs.GET("/updates/stats", lr.GetUpdateStats)
		logs.GET("/activities", middleware.AdminMiddleware(), lr.GetUserActivities)
		logs.DELETE("/cleanup", middleware.AdminMiddleware(), lr.CleanupLogs)
	}
}

const timeLayout = time.RFC3339

func parsePage(c *gin.Context) database.Page {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	pageSize, _ := strconv.Atoi(c.DefaultQuery("page_size", "20"))
	p := database.Page{Page: page, PageSize: pageSize}
	p.StartTime, p.EndTime = parseWindow(c)
	return p
}

func parseWindow(c *gin.Context) (start, end *time.Time) {
	if s := c.Query("start_time"); s != "" {
		if t, err := time.Parse(timeLayout, s); err == nil {
			start = &t
		}
	}
	if s := c.Query("end_time"); s != "" {
		if t, err := time.Parse(timeLayout, s); err == nil {
			end = &t
		}
	}
	return start, end
}

func parseSuccess(c *gin.Context) *bool {
	s := c.Query("success")
	if s == "" {
		return nil
	}
	b, err := strconv.ParseBool(s)
	if err != nil {
		return nil
	}
	return &b
}

func pageBody(p database.Page, total int64, key string, items interface{}) gin.H {
	p = p.Normalize()
	return gin.H{
		key:           items,
		"total":       total,
		"page":        p.Page,
		"page_size":   p.PageSize,
		"total_pages": (total + int64(p.PageSize) - 1) / int64(p.PageSize),
	}
}

func (lr *LogRouter) GetUpdateLogs(c *gin.Context) {
	f := database.UpdateLogFilter{
		Page:    parsePage(c),
		Domain:  c.Query("domain"),
		Status:  c.Query("status"),
		Success: parseSuccess(c),
	}
	logs, total, err := lr.logService.GetUpdateLogs(f)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, pageBody(f.Page, total, "logs", logs))
}

func (lr *LogRouter) GetUpdateStats(c *gin.Context) {
	start, end := parseWindow(c)
	stats, err := lr.logService.GetUpdateStats(start, end)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, stats)
}

func (lr *LogRouter) GetUserActivities(c *gin.Context) {
	f := database.ActivityFilter{
		Page:     parsePage(c),
		Username: c.Query("username"),
		Action:   c.Query("action"),
		Success:  parseSuccess(c),
	}
	acts, total, err := lr.logService.GetUserActivities(f)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, pageBody(f.Page, total, "activities", acts))
}

// CleanupLogs deletes history older than ?days (default 30).
func (lr *LogRouter) CleanupLogs(c *gin.Context) {
	days, err := strconv.Atoi(c.DefaultQuery("days", "30"))
	if err != nil || days < 1 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "days must be a positive integer"})
		return
	}
	removed, err := lr.logService.CleanOldLogs(days)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	logAction(c, database.UserActionCleanupLogs, "logs", "cleanup logs", true, gin.H{"days": days, "removed": removed})
	c.JSON(http.StatusOK, gin.H{"removed": removed})
}
