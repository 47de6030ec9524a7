package handler

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	appcommission "github.com/marketplace/backend/internal/application/commission"
	"github.com/marketplace/backend/internal/domain/commission"
	"github.com/marketplace/backend/internal/infrastructure/auth"
	"github.com/marketplace/backend/internal/interfaces/http/middleware"
)

// OverrideHandler handles commission override rule endpoints
type OverrideHandler struct {
	BaseHandler
	overrideService *appcommission.OverrideService
}

// NewOverrideHandler creates a new OverrideHandler
func NewOverrideHandler(overrideService *appcommission.OverrideService) *OverrideHandler {
	return &OverrideHandler{
		overrideService: overrideService,
	}
}

// ListActiveQuery captures the query parameters for listing active overrides
type ListActiveQuery struct {
	Variant string     `form:"variant" binding:"required,oneof=product vendor category global"`
	ScopeID *uuid.UUID `form:"scope_id"`
	At      *time.Time `form:"at" time_format:"2006-01-02T15:04:05Z07:00"`
}

// Create creates a new commission override
func (h *OverrideHandler) Create(c *gin.Context) {
	actorID, err := getActorID(c)
	if err != nil {
		h.Unauthorized(c, "Actor identity is required")
		return
	}

	var req appcommission.UpsertOverrideRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BadRequest(c, err.Error())
		return
	}

	override, err := h.overrideService.Create(c.Request.Context(), actorID, req)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Created(c, override)
}

// Update changes the rate, window, or note of an existing override
func (h *OverrideHandler) Update(c *gin.Context) {
	actorID, err := getActorID(c)
	if err != nil {
		h.Unauthorized(c, "Actor identity is required")
		return
	}

	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		h.BadRequest(c, "Invalid override ID")
		return
	}

	var req appcommission.UpdateOverrideRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BadRequest(c, err.Error())
		return
	}

	override, err := h.overrideService.Update(c.Request.Context(), actorID, id, req)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, override)
}

// Expire closes an override's validity window at the current instant.
// The row is kept for historical resolutions; there is no delete.
func (h *OverrideHandler) Expire(c *gin.Context) {
	actorID, err := getActorID(c)
	if err != nil {
		h.Unauthorized(c, "Actor identity is required")
		return
	}

	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		h.BadRequest(c, "Invalid override ID")
		return
	}

	override, err := h.overrideService.Expire(c.Request.Context(), actorID, id)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, override)
}

// ListActive lists the overrides active for a variant and scope at a
// point in time (default now)
func (h *OverrideHandler) ListActive(c *gin.Context) {
	var query ListActiveQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		h.BadRequest(c, err.Error())
		return
	}

	at := time.Now()
	if query.At != nil {
		at = *query.At
	}

	overrides, err := h.overrideService.ListActive(
		c.Request.Context(),
		commission.OverrideVariant(query.Variant),
		query.ScopeID,
		at,
	)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, overrides)
}

// RegisterRoutes registers override rule routes
func (h *OverrideHandler) RegisterRoutes(rg *gin.RouterGroup) {
	overrides := rg.Group("/commission/overrides")
	{
		overrides.GET("", h.ListActive)
		overrides.POST("", middleware.RequireRole(auth.RoleCommissionAdmin), h.Create)
		overrides.PUT("/:id", middleware.RequireRole(auth.RoleCommissionAdmin), h.Update)
		overrides.POST("/:id/expire", middleware.RequireRole(auth.RoleCommissionAdmin), h.Expire)
	}
}
