package router

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/ikkim/storefront-sync/config"
	"github.com/ikkim/storefront-sync/internal/app/controller"
	"github.com/ikkim/storefront-sync/internal/middleware"
)

type Router struct {
	authController     *controller.AuthController
	cartController     *controller.CartController
	wishlistController *controller.WishlistController
	productController  *controller.ProductController
	eventsController   *controller.EventsController
	sessionMiddleware  *middleware.SessionMiddleware
	config             *config.Config
}

func NewRouter(
	authController *controller.AuthController,
	cartController *controller.CartController,
	wishlistController *controller.WishlistController,
	productController *controller.ProductController,
	eventsController *controller.EventsController,
	sessionMiddleware *middleware.SessionMiddleware,
	cfg *config.Config,
) *Router {
	return &Router{
		authController:     authController,
		cartController:     cartController,
		wishlistController: wishlistController,
		productController:  productController,
		eventsController:   eventsController,
		sessionMiddleware:  sessionMiddleware,
		config:             cfg,
	}
}

func (r *Router) Setup() *gin.Engine {
	gin.SetMode(r.config.Server.GinMode)

	router := gin.New()

	router.Use(gin.Recovery())
	router.Use(middleware.LoggingMiddleware())
	router.Use(corsMiddleware(r.config.CORS.AllowedOrigins))
	router.Use(r.sessionMiddleware.Attach())

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":  "healthy",
			"message": "storefront sync is running",
		})
	})

	v1 := router.Group("/api/v1")
	{
		auth := v1.Group("/auth")
		{
			auth.POST("/signup", r.authController.SignUp)
			auth.POST("/signin", r.authController.SignIn)
			auth.POST("/signout", r.authController.SignOut)
			auth.GET("/me", r.sessionMiddleware.RequireSession(), r.authController.GetMe)
		}

		cart := v1.Group("/cart")
		{
			cart.GET("", r.cartController.GetCart)
			cart.POST("", r.cartController.AddToCart)
			cart.DELETE("", r.cartController.ClearCart)
			cart.POST("/refresh", r.cartController.RefreshCart)
			cart.PUT("/:product_id", r.cartController.UpdateCartItem)
			cart.DELETE("/:product_id", r.cartController.RemoveFromCart)
		}

		wishlist := v1.Group("/wishlist")
		{
			wishlist.GET("", r.wishlistController.GetWishlist)
			wishlist.POST("/refresh", r.wishlistController.RefreshWishlist)
			wishlist.POST("/:product_id/toggle", r.wishlistController.ToggleWishlist)
		}

		products := v1.Group("/products")
		{
			products.GET("", r.productController.GetCachedProducts)
			products.GET("/:id", r.productController.GetProductByID)
		}

		v1.GET("/events", r.eventsController.Stream)
	}

	return router
}

func corsMiddleware(allowedOrigins []string) gin.HandlerFunc {
	return func(c *gin.Context) {
		origin := c.GetHeader("Origin")

		allowed := false
		for _, allowedOrigin := range allowedOrigins {
			if origin == allowedOrigin || allowedOrigin == "*" {
				allowed = true
				break
			}
		}

		if allowed {
			c.Writer.Header().Set("Access-Control-Allow-Origin", origin)
		}

		c.Writer.Header().Set("Access-Control-Allow-Credentials", "true")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Content-Length, Accept-Encoding, X-Request-ID, accept, origin, Cache-Control, X-Requested-With")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "POST, OPTIONS, GET, PUT, DELETE")

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}
