package controller

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/ikkim/storefront-sync/internal/app/service"
	"github.com/ikkim/storefront-sync/internal/errors"
)

type ProductController struct {
	catalogService service.CatalogService
}

func NewProductController(catalogService service.CatalogService) *ProductController {
	return &ProductController{
		catalogService: catalogService,
	}
}

// GetCachedProducts lists the locally cached catalog
// GET /api/v1/products
func (ctrl *ProductController) GetCachedProducts(c *gin.Context) {
	products, err := ctrl.catalogService.List()
	if err != nil {
		errors.Respond(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"products": products,
		"count":    len(products),
	})
}

// GetProductByID returns a product from the cache, fetching it when absent
// GET /api/v1/products/:id
func (ctrl *ProductController) GetProductByID(c *gin.Context) {
	product, err := ctrl.catalogService.Lookup(c.Request.Context(), c.Param("id"))
	if err != nil {
		errors.Respond(c, err)
		return
	}
	c.JSON(http.StatusOK, product)
}
