package handler

import (
	"github.com/gin-gonic/gin"

	appcommission "github.com/marketplace/backend/internal/application/commission"
	"github.com/marketplace/backend/internal/domain/commission"
	"github.com/marketplace/backend/internal/infrastructure/auth"
	"github.com/marketplace/backend/internal/interfaces/http/middleware"
)

// DiscountHandler handles membership tier discount endpoints
type DiscountHandler struct {
	BaseHandler
	discountService *appcommission.DiscountService
}

// NewDiscountHandler creates a new DiscountHandler
func NewDiscountHandler(discountService *appcommission.DiscountService) *DiscountHandler {
	return &DiscountHandler{
		discountService: discountService,
	}
}

// List returns the full tier discount table
func (h *DiscountHandler) List(c *gin.Context) {
	discounts, err := h.discountService.List(c.Request.Context())
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, discounts)
}

// Update sets the discount for a membership tier
func (h *DiscountHandler) Update(c *gin.Context) {
	actorID, err := getActorID(c)
	if err != nil {
		h.Unauthorized(c, "Actor identity is required")
		return
	}

	tier := commission.MembershipTier(c.Param("tier"))
	switch tier {
	case commission.TierBronze, commission.TierSilver, commission.TierGold, commission.TierPlatinum:
	default:
		h.BadRequest(c, "Unknown membership tier: "+string(tier))
		return
	}

	var req appcommission.UpdateDiscountRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BadRequest(c, err.Error())
		return
	}

	discount, err := h.discountService.Update(c.Request.Context(), actorID, tier, req)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, discount)
}

// RegisterRoutes registers tier discount routes
func (h *DiscountHandler) RegisterRoutes(rg *gin.RouterGroup) {
	discounts := rg.Group("/commission/discounts")
	{
		discounts.GET("", h.List)
		discounts.PUT("/:tier", middleware.RequireRole(auth.RoleCommissionAdmin), h.Update)
	}
}
