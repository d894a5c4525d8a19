package controller

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/ikkim/storefront-sync/internal/app/model"
	"github.com/ikkim/storefront-sync/internal/app/service"
	"github.com/ikkim/storefront-sync/internal/errors"
	"github.com/ikkim/storefront-sync/internal/middleware"
	"github.com/shopspring/decimal"
)

type CartController struct {
	cartService service.CartService
}

func NewCartController(cartService service.CartService) *CartController {
	return &CartController{
		cartService: cartService,
	}
}

type AddToCartRequest struct {
	ProductID string `json:"productId" binding:"required"`
	Quantity  *int   `json:"quantity"`
}

type UpdateCartRequest struct {
	Count int `json:"count"`
}

// CartView is what every cart endpoint answers with.
type CartView struct {
	Items    []model.CartLine `json:"items"`
	Count    int              `json:"count"`
	Quantity int              `json:"quantity"`
	Total    decimal.Decimal  `json:"total"`
}

func (ctrl *CartController) view() (*CartView, error) {
	lines, err := ctrl.cartService.Lines()
	if err != nil {
		return nil, err
	}
	return &CartView{
		Items:    lines,
		Count:    len(lines),
		Quantity: model.CartQuantity(lines),
		Total:    model.CartTotal(lines),
	}, nil
}

func (ctrl *CartController) respond(c *gin.Context) {
	view, err := ctrl.view()
	if err != nil {
		errors.Respond(c, err)
		return
	}
	c.JSON(http.StatusOK, view)
}

// GetCart returns the local cart
// GET /api/v1/cart
func (ctrl *CartController) GetCart(c *gin.Context) {
	ctrl.respond(c)
}

// AddToCart adds a product, incrementing its line when already present
// POST /api/v1/cart
func (ctrl *CartController) AddToCart(c *gin.Context) {
	log := middleware.GetLoggerFromContext(c)

	var req AddToCartRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		log.Warn("Invalid add to cart request", map[string]interface{}{
			"error": err.Error(),
		})
		errors.BadRequest(c, errors.ValidationInvalidInput, "productId is required")
		return
	}

	quantity := 1
	if req.Quantity != nil {
		quantity = *req.Quantity
	}

	if err := ctrl.cartService.Add(c.Request.Context(), req.ProductID, quantity); err != nil {
		log.Warn("Add to cart failed", map[string]interface{}{
			"product_id": req.ProductID,
			"error":      err.Error(),
		})
		errors.Respond(c, err)
		return
	}
	ctrl.respond(c)
}

// UpdateCartItem sets the count of a line
// PUT /api/v1/cart/:product_id
func (ctrl *CartController) UpdateCartItem(c *gin.Context) {
	log := middleware.GetLoggerFromContext(c)
	productID := c.Param("product_id")

	var req UpdateCartRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		log.Warn("Invalid update cart request", map[string]interface{}{
			"product_id": productID,
			"error":      err.Error(),
		})
		errors.BadRequest(c, errors.ValidationInvalidInput, "count must be a number")
		return
	}

	if err := ctrl.cartService.UpdateQuantity(c.Request.Context(), productID, req.Count); err != nil {
		errors.Respond(c, err)
		return
	}
	ctrl.respond(c)
}

// RemoveFromCart removes a line; removing an absent product succeeds
// DELETE /api/v1/cart/:product_id
func (ctrl *CartController) RemoveFromCart(c *gin.Context) {
	if err := ctrl.cartService.Remove(c.Request.Context(), c.Param("product_id")); err != nil {
		errors.Respond(c, err)
		return
	}
	ctrl.respond(c)
}

// ClearCart empties the cart
// DELETE /api/v1/cart
func (ctrl *CartController) ClearCart(c *gin.Context) {
	if err := ctrl.cartService.Clear(c.Request.Context()); err != nil {
		errors.Respond(c, err)
		return
	}
	ctrl.respond(c)
}

// RefreshCart merges server prices into the local cart
// POST /api/v1/cart/refresh
func (ctrl *CartController) RefreshCart(c *gin.Context) {
	if err := ctrl.cartService.Refresh(c.Request.Context()); err != nil {
		errors.Respond(c, err)
		return
	}
	ctrl.respond(c)
}
