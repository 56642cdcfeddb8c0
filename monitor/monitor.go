package monitor

import (
	"io"
	"net/http"
	"os"
	"runtime"
	"strconv"
	"time"

	"editorial-workflow-api/config"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// AuditSource exposes the count of audit records lost since startup.
type AuditSource interface {
	AuditIncidents() int64
}

const defaultLogTail = 64 << 10

// RegisterRoutes mounts /monitor and /logs on group. Callers restrict the
// group to operators.
func RegisterRoutes(group *gin.RouterGroup, audit AuditSource, db *gorm.DB) {
	started := time.Now()

	group.GET("/monitor", func(c *gin.Context) {
		status := http.StatusOK
		database := "ok"
		if db != nil {
			if sqlDB, err := db.DB(); err != nil {
				database, status = err.Error(), http.StatusServiceUnavailable
			} else if err := sqlDB.PingContext(c.Request.Context()); err != nil {
				database, status = err.Error(), http.StatusServiceUnavailable
			}
		}
		var incidents int64
		if audit != nil {
			incidents = audit.AuditIncidents()
		}
		c.JSON(status, gin.H{
			"uptime_seconds":  int64(time.Since(started).Seconds()),
			"goroutines":      runtime.NumGoroutine(),
			"audit_incidents": incidents,
			"database":        database,
		})
	})

	group.GET("/logs", func(c *gin.Context) {
		limit := int64(defaultLogTail)
		if v, err := strconv.ParseInt(c.Query("bytes"), 10, 64); err == nil && v > 0 && v <= 1<<20 {
			limit = v
		}
		logData, err := tailFile(config.LogFilePath(), limit)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Unable to read log"})
			return
		}
		c.Data(http.StatusOK, "text/plain; charset=utf-8", logData)
	})
}

// tailFile returns at most limit bytes from the end of path.
func tailFile(path string, limit int64) ([]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, err
	}
	offset := info.Size() - limit
	if offset < 0 {
		offset = 0
	}
	if _, err := f.Seek(offset, io.SeekStart); err != nil {
		return nil, err
	}
	return io.ReadAll(f)
}
