package http

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"account-console/internal/domain"
	"account-console/internal/storage"
)

const downloadURLTTL = 15 * time.Minute

type createExportRequest struct {
	Query   string `json:"q"`
	IsAdmin *bool  `json:"is_admin"`
}

func (h *Handler) exportsEnabled(c *gin.Context) bool {
	if h.exports == nil || h.exporter == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "exports are not configured"})
		return false
	}
	return true
}

func (h *Handler) createExport(c *gin.Context) {
	if !h.exportsEnabled(c) {
		return
	}

	var req createExportRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
	}

	var requestedBy int64
	if actor := currentAccount(c); actor != nil {
		requestedBy = actor.ID
	}

	job, err := h.exports.CreateJob(c.Request.Context(), req.Query, req.IsAdmin, requestedBy)
	if err != nil {
		h.writeError(c, err)
		return
	}
	if err := h.exporter.Enqueue(c.Request.Context(), job.ID); err != nil {
		h.writeError(c, err)
		return
	}

	c.JSON(http.StatusAccepted, exportToResponse(*job))
}

func (h *Handler) listExports(c *gin.Context) {
	if !h.exportsEnabled(c) {
		return
	}

	jobs, err := h.exports.ListJobs(c.Request.Context())
	if err != nil {
		h.writeError(c, err)
		return
	}

	resp := make([]ExportResponse, len(jobs))
	for i := range jobs {
		resp[i] = exportToResponse(jobs[i])
	}
	c.JSON(http.StatusOK, resp)
}

func (h *Handler) getExport(c *gin.Context) {
	if !h.exportsEnabled(c) {
		return
	}

	job, err := h.exports.GetJob(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.writeError(c, err)
		return
	}

	resp := exportToResponse(*job)
	if job.Status == domain.ExportStatusCompleted && h.storage != nil {
		if bucket, key, err := storage.ParseLocation(job.Location); err == nil {
			url, err := h.storage.GetObjectURL(c.Request.Context(), bucket, key, downloadURLTTL)
			if err != nil {
				h.logger.WithField("job_id", job.ID).Warnf("presign export: %v", err)
			} else {
				resp.DownloadURL = url
			}
		}
	}
	c.JSON(http.StatusOK, resp)
}

func (h *Handler) cancelExport(c *gin.Context) {
	if !h.exportsEnabled(c) {
		return
	}

	ctx := c.Request.Context()
	job, err := h.exports.GetJob(ctx, c.Param("id"))
	if err != nil {
		h.writeError(c, err)
		return
	}
	if job.Done() {
		c.JSON(http.StatusConflict, gin.H{"error": "export already finished"})
		return
	}

	if err := h.exporter.Cancel(ctx, job.ID); err != nil {
		h.writeError(c, err)
		return
	}
	job, err = h.exports.GetJob(ctx, job.ID)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, exportToResponse(*job))
}
