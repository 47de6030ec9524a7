package handler

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	appcommission "github.com/marketplace/backend/internal/application/commission"
	"github.com/marketplace/backend/internal/domain/commission"
	"github.com/marketplace/backend/internal/infrastructure/bulkio"
)

// ResolutionHandler handles commission resolution endpoints
type ResolutionHandler struct {
	BaseHandler
	resolutionService *appcommission.ResolutionService
	bulkService       *appcommission.BulkService
}

// NewResolutionHandler creates a new ResolutionHandler
func NewResolutionHandler(
	resolutionService *appcommission.ResolutionService,
	bulkService *appcommission.BulkService,
) *ResolutionHandler {
	return &ResolutionHandler{
		resolutionService: resolutionService,
		bulkService:       bulkService,
	}
}

// Resolve evaluates a single line item and returns the audited outcome
func (h *ResolutionHandler) Resolve(c *gin.Context) {
	var req appcommission.ResolveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BadRequest(c, err.Error())
		return
	}

	item, err := req.ToLineItem()
	if err != nil {
		h.BadRequest(c, err.Error())
		return
	}

	resolved, err := h.resolutionService.Resolve(c.Request.Context(), item)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	resp := appcommission.ToResolutionResponse(resolved)
	if resolved.Replayed {
		// An identical request was already audited; the stored outcome
		// is returned unchanged
		h.Success(c, resp)
		return
	}
	h.Created(c, resp)
}

// BulkResolve runs a settlement batch over the submitted line items
func (h *ResolutionHandler) BulkResolve(c *gin.Context) {
	var req appcommission.BulkResolveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BadRequest(c, err.Error())
		return
	}

	items := make([]commission.LineItem, 0, len(req.Items))
	for i, itemReq := range req.Items {
		item, err := itemReq.ToLineItem()
		if err != nil {
			h.BadRequest(c, fmt.Sprintf("item %d: %s", i, err.Error()))
			return
		}
		items = append(items, item)
	}

	opts := appcommission.BatchOptions{
		ResumeToken: req.ResumeToken,
		Concurrency: req.Concurrency,
	}
	if req.BatchID != nil {
		opts.BatchID = *req.BatchID
	} else {
		opts.BatchID = uuid.Nil
	}

	summary, err := h.bulkService.Run(c.Request.Context(), appcommission.NewSliceSource(items), opts)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, summary)
}

// BulkResolveCSV runs a settlement batch over a CSV document posted as
// the request body. Batch options come from query parameters so the body
// stays a plain file upload.
func (h *ResolutionHandler) BulkResolveCSV(c *gin.Context) {
	opts := appcommission.BatchOptions{
		ResumeToken: c.Query("resume_token"),
	}
	if raw := c.Query("batch_id"); raw != "" {
		batchID, err := uuid.Parse(raw)
		if err != nil {
			h.BadRequest(c, "Invalid batch ID format")
			return
		}
		opts.BatchID = batchID
	}
	if raw := c.Query("concurrency"); raw != "" {
		concurrency, err := strconv.Atoi(raw)
		if err != nil || concurrency < 0 {
			h.BadRequest(c, "Invalid concurrency value")
			return
		}
		opts.Concurrency = concurrency
	}

	source, err := bulkio.NewCSVSource(c.Request.Body)
	if err != nil {
		h.BadRequest(c, err.Error())
		return
	}

	summary, err := h.bulkService.Run(c.Request.Context(), source, opts)
	if err != nil {
		var rowErr *bulkio.RowError
		if errors.As(err, &rowErr) {
			h.BadRequest(c, rowErr.Error())
			return
		}
		h.HandleError(c, err)
		return
	}

	h.Success(c, summary)
}

// RegisterRoutes registers resolution routes
func (h *ResolutionHandler) RegisterRoutes(rg *gin.RouterGroup) {
	resolutions := rg.Group("/commission/resolutions")
	{
		resolutions.POST("", h.Resolve)
		resolutions.POST("/bulk", h.BulkResolve)
		resolutions.POST("/bulk/csv", h.BulkResolveCSV)
	}
}
