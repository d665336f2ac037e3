package router

import (
	"net/http"

	"github.com/achlys/whimsical-backend/config"
	"github.com/achlys/whimsical-backend/internal/app/controller"
	"github.com/achlys/whimsical-backend/internal/middleware"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Router struct {
	productController  *controller.ProductController
	reviewController   *controller.ReviewController
	settingsController *controller.SettingsController
	cartController     *controller.CartController
	checkoutController *controller.CheckoutController
	orderController    *controller.OrderController
	noticeController   *controller.NoticeController
	authController     *controller.AuthController
	authMiddleware     *middleware.AuthMiddleware
	gatherer           prometheus.Gatherer
	config             *config.Config
}

func NewRouter(
	productController *controller.ProductController,
	reviewController *controller.ReviewController,
	settingsController *controller.SettingsController,
	cartController *controller.CartController,
	checkoutController *controller.CheckoutController,
	orderController *controller.OrderController,
	noticeController *controller.NoticeController,
	authController *controller.AuthController,
	authMiddleware *middleware.AuthMiddleware,
	gatherer prometheus.Gatherer,
	cfg *config.Config,
) *Router {
	return &Router{
		productController:  productController,
		reviewController:   reviewController,
		settingsController: settingsController,
		cartController:     cartController,
		checkoutController: checkoutController,
		orderController:    orderController,
		noticeController:   noticeController,
		authController:     authController,
		authMiddleware:     authMiddleware,
		gatherer:           gatherer,
		config:             cfg,
	}
}

func (r *Router) Setup() *gin.Engine {
	gin.SetMode(r.config.Server.GinMode)

	router := gin.New()

	router.Use(gin.Recovery())
	router.Use(middleware.LoggingMiddleware())
	router.Use(corsMiddleware(r.config.CORS.AllowedOrigins))

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":  "healthy",
			"message": "Whimsical storefront API is running",
		})
	})
	if r.gatherer != nil {
		router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(r.gatherer, promhttp.HandlerOpts{})))
	}

	v1 := router.Group("/api/v1")
	{
		products := v1.Group("/products")
		{
			products.GET("", r.productController.ListProducts)
			products.GET("/:id", r.productController.GetProduct)
			products.GET("/:id/reviews", r.reviewController.ListReviews)
			products.POST("/:id/reviews", r.reviewController.AddReview)
		}

		v1.GET("/settings/pricing", r.settingsController.GetPricing)

		cart := v1.Group("/cart")
		cart.Use(middleware.CartSession())
		{
			cart.GET("", r.cartController.GetCart)
			cart.DELETE("", r.cartController.ClearCart)
			cart.POST("/items", r.cartController.AddItem)
			cart.PATCH("/items/:product_id", r.cartController.UpdateItem)
			cart.DELETE("/items/:product_id", r.cartController.RemoveItem)
			cart.POST("/refresh", r.cartController.Refresh)
		}

		checkout := v1.Group("/checkout")
		checkout.Use(middleware.CartSession())
		{
			checkout.POST("", r.checkoutController.Checkout)
			checkout.POST("/cancel", r.checkoutController.Cancel)
		}

		v1.GET("/ws/cart", middleware.CartSession(), r.noticeController.CartNotices)

		v1.POST("/admin/login", r.authController.Login)

		admin := v1.Group("/admin")
		admin.Use(r.authMiddleware.RequireAdmin()...)
		{
			admin.GET("/orders", r.orderController.ListOrders)
			admin.GET("/orders/:id", r.orderController.GetOrder)
			admin.PATCH("/orders/:id", r.orderController.UpdateOrderStatus)
			admin.DELETE("/orders/:id", r.orderController.DeleteOrder)
			admin.PUT("/settings/:key", r.settingsController.UpdateSetting)
			admin.POST("/products", r.productController.CreateProduct)
			admin.PUT("/products/:id", r.productController.UpdateProduct)
			admin.DELETE("/products/:id", r.productController.DeleteProduct)
			admin.DELETE("/reviews/:id", r.reviewController.DeleteReview)
		}
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
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Content-Length, Accept-Encoding, Authorization, accept, origin, Cache-Control, X-Requested-With, "+middleware.CartSessionHeader+", "+middleware.RequestIDHeader)
		c.Writer.Header().Set("Access-Control-Expose-Headers", middleware.RequestIDHeader)
		c.Writer.Header().Set("Access-Control-Allow-Methods", "POST, OPTIONS, GET, PUT, DELETE, PATCH")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}
