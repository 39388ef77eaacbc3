package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/xxxsen/sqlnb/internal/job"
	"github.com/xxxsen/sqlnb/internal/pkg/errcode"
	"github.com/xxxsen/sqlnb/internal/pkg/response"
	"github.com/xxxsen/sqlnb/internal/schedule"
)

type MaintenanceHandler struct {
	scheduler *schedule.CronScheduler
	integrity *job.IntegrityCheckJob
}

func NewMaintenanceHandler(scheduler *schedule.CronScheduler, integrity *job.IntegrityCheckJob) *MaintenanceHandler {
	return &MaintenanceHandler{scheduler: scheduler, integrity: integrity}
}

func (h *MaintenanceHandler) Jobs(c *gin.Context) {
	var statuses []schedule.Status
	if h.scheduler != nil {
		statuses = h.scheduler.Statuses()
	}
	response.Success(c, gin.H{"jobs": statuses})
}

// Integrity returns the latest integrity report. ?run=1 runs a fresh scan.
func (h *MaintenanceHandler) Integrity(c *gin.Context) {
	if h.integrity == nil {
		response.Error(c, errcode.ErrNotFound, "integrity check disabled")
		return
	}
	if c.Query("run") == "1" {
		report, err := h.integrity.Check(c.Request.Context())
		if err != nil {
			handleError(c, err)
			return
		}
		response.Success(c, report)
		return
	}
	response.Success(c, gin.H{"report": h.integrity.LastReport()})
}
