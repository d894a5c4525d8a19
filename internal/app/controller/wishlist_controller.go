package controller

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/ikkim/storefront-sync/internal/app/service"
	"github.com/ikkim/storefront-sync/internal/errors"
	"github.com/ikkim/storefront-sync/internal/middleware"
)

type WishlistController struct {
	wishlistService service.WishlistService
}

func NewWishlistController(wishlistService service.WishlistService) *WishlistController {
	return &WishlistController{
		wishlistService: wishlistService,
	}
}

// GetWishlist returns the wishlist IDs and the products they resolve to
// GET /api/v1/wishlist
func (ctrl *WishlistController) GetWishlist(c *gin.Context) {
	log := middleware.GetLoggerFromContext(c)

	ids, err := ctrl.wishlistService.IDs()
	if err != nil {
		errors.Respond(c, err)
		return
	}
	items, err := ctrl.wishlistService.Items(c.Request.Context())
	if err != nil {
		errors.Respond(c, err)
		return
	}

	log.Debug("Wishlist fetched", map[string]interface{}{
		"ids":      len(ids),
		"resolved": len(items),
	})

	c.JSON(http.StatusOK, gin.H{
		"ids":   ids,
		"items": items,
		"count": len(ids),
	})
}

// ToggleWishlist adds or removes a product
// POST /api/v1/wishlist/:product_id/toggle
func (ctrl *WishlistController) ToggleWishlist(c *gin.Context) {
	productID := c.Param("product_id")

	added, err := ctrl.wishlistService.Toggle(c.Request.Context(), productID)
	if err != nil {
		errors.Respond(c, err)
		return
	}

	ids, err := ctrl.wishlistService.IDs()
	if err != nil {
		errors.Respond(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"product_id": productID,
		"added":      added,
		"ids":        ids,
	})
}

// RefreshWishlist adopts the remote wishlist when the local one is empty
// POST /api/v1/wishlist/refresh
func (ctrl *WishlistController) RefreshWishlist(c *gin.Context) {
	if err := ctrl.wishlistService.Refresh(c.Request.Context()); err != nil {
		errors.Respond(c, err)
		return
	}

	ids, err := ctrl.wishlistService.IDs()
	if err != nil {
		errors.Respond(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"ids":   ids,
		"count": len(ids),
	})
}
