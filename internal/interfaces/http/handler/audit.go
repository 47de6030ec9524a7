package handler

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	appcommission "github.com/marketplace/backend/internal/application/commission"
)

// AuditHandler handles resolution audit trail endpoints. The trail is
// append-only; these endpoints are read-only by construction.
type AuditHandler struct {
	BaseHandler
	auditService *appcommission.AuditService
}

// NewAuditHandler creates a new AuditHandler
func NewAuditHandler(auditService *appcommission.AuditService) *AuditHandler {
	return &AuditHandler{
		auditService: auditService,
	}
}

// Query returns a page of audit records matching the filters
func (h *AuditHandler) Query(c *gin.Context) {
	var req appcommission.AuditQueryRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		h.BadRequest(c, err.Error())
		return
	}

	records, total, err := h.auditService.Query(c.Request.Context(), req)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	page := req.Page
	if page <= 0 {
		page = 1
	}
	pageSize := req.PageSize
	if pageSize <= 0 {
		pageSize = 20
	}

	h.SuccessWithMeta(c, records, total, page, pageSize)
}

// Get returns a single audit record
func (h *AuditHandler) Get(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		h.BadRequest(c, "Invalid audit record ID")
		return
	}

	record, err := h.auditService.Get(c.Request.Context(), id)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, record)
}

// Verify recomputes a record's checksum and reports whether it matches
func (h *AuditHandler) Verify(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		h.BadRequest(c, "Invalid audit record ID")
		return
	}

	result, err := h.auditService.Verify(c.Request.Context(), id)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, result)
}

// RegisterRoutes registers audit trail routes
func (h *AuditHandler) RegisterRoutes(rg *gin.RouterGroup) {
	audits := rg.Group("/commission/audits")
	{
		audits.GET("", h.Query)
		audits.GET("/:id", h.Get)
		audits.GET("/:id/verify", h.Verify)
	}
}
