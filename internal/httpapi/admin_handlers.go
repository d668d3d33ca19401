package httpapi

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// Admin endpoints report counts; failures map to a status and a short message.

type adminNoteRequest struct {
	Note string `json:"note"`
}

func (h Handlers) AdminAudit(c *gin.Context) {
	if !h.adminReady(c) {
		return
	}
	rep, err := h.Admin.Audit(c.Request.Context(), c.Param("workshop_id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, rep)
}

func (h Handlers) AdminRepair(c *gin.Context) {
	if !h.adminReady(c) {
		return
	}
	res, err := h.Admin.RepairAll(c.Request.Context(), c.Param("workshop_id"))
	if err != nil {
		_ = c.Error(err)
		c.AbortWithStatusJSON(statusOf(err), res)
		return
	}
	c.JSON(http.StatusOK, res)
}

func (h Handlers) AdminRecalculateSeats(c *gin.Context) {
	if !h.adminReady(c) {
		return
	}
	snap, err := h.Admin.RecalculateSeats(c.Request.Context(), c.Param("workshop_id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, snap)
}

func (h Handlers) AdminCleanupFailed(c *gin.Context) {
	if !h.adminReady(c) {
		return
	}
	n, err := h.Admin.CleanupFailedRegistrations(c.Request.Context(), c.Param("workshop_id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"workshop_id": c.Param("workshop_id"), "canceled": n})
}

func (h Handlers) AdminResetRegistration(c *gin.Context) {
	if !h.adminReady(c) {
		return
	}
	var req adminNoteRequest
	if !bindOptionalJSON(c, &req) {
		return
	}
	r, err := h.Admin.ResetRegistration(c.Request.Context(), c.Param("registration_id"), req.Note)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, r)
}

func (h Handlers) AdminRefundRegistration(c *gin.Context) {
	if !h.adminReady(c) {
		return
	}
	var req adminNoteRequest
	if !bindOptionalJSON(c, &req) {
		return
	}
	r, err := h.Admin.RefundRegistration(c.Request.Context(), c.Param("registration_id"), req.Note)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, r)
}

func (h Handlers) AdminDeleteRegistration(c *gin.Context) {
	if !h.adminReady(c) {
		return
	}
	if err := h.Admin.DeleteRegistration(c.Request.Context(), c.Param("registration_id")); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"deleted": 1})
}

func (h Handlers) AdminCleanupDuplicates(c *gin.Context) {
	if !h.adminReady(c) {
		return
	}
	res, err := h.Admin.CleanupDuplicates(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

func (h Handlers) adminReady(c *gin.Context) bool {
	if h.Admin == nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "admin tools not configured"})
		return false
	}
	return true
}

func bindOptionalJSON(c *gin.Context, dst any) bool {
	if c.Request.ContentLength == 0 {
		return true
	}
	if err := c.ShouldBindJSON(dst); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return false
	}
	return true
}
