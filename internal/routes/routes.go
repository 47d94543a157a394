package routes

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jeweluxe/jeweluxe-golang/internal/handlers"
	"github.com/jeweluxe/jeweluxe-golang/internal/logging"
	"github.com/jeweluxe/jeweluxe-golang/internal/metrics"
	"github.com/jeweluxe/jeweluxe-golang/internal/middleware"
)

// SetupRouter wires every JSON endpoint onto a gin engine.
func SetupRouter(h *handlers.Handlers) *gin.Engine {
	router := gin.New()
	cfg := h.Config

	// Access log + recovery first, then CORS so preflights never hit auth.
	router.Use(middleware.RequestLogger(logging.NewPackageLogger("http")))
	router.Use(middleware.Metrics())
	router.Use(middleware.CORS(cfg.CORSOrigin))

	// --- Ops ---
	router.GET("/healthz", func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()
		if err := h.DB.PingContext(ctx); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"success": false, "message": "database unavailable"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"success": true, "message": "ok"})
	})
	router.GET("/metrics", gin.WrapH(metrics.Handler()))
	router.Static("/uploads", cfg.UploadDir)

	limit := middleware.RateLimit(cfg.RateLimit, h.Cache)
	cached := middleware.ResponseCache(cfg.Cache, h.Cache)
	signedIn := middleware.Session(cfg.JWTSecret, true)

	api := router.Group("/api")
	// Every request may carry a session; state-changing ones must echo its CSRF token.
	api.Use(middleware.Session(cfg.JWTSecret, false), middleware.CSRF())
	{
		// --- Auth (Public) ---
		api.POST("/auth/register", limit, h.Register)
		api.POST("/auth/login", limit, h.Login)
		api.POST("/auth/logout", h.Logout)
		api.GET("/auth/csrf", h.GetCSRFToken)

		// --- Catalog (Public, cached) ---
		api.GET("/products", cached, h.ListProducts)
		api.GET("/products/:id", h.GetProduct)
		api.GET("/categories", cached, h.GetCategories)

		// --- Locations (Public, cached) ---
		api.GET("/locations/provinces", cached, h.GetProvinces)
		api.GET("/locations/cities", cached, h.GetCities)
		api.GET("/locations/barangays", cached, h.GetBarangays)

		// --- Contact & Assistant (Public, rate-limited) ---
		api.POST("/contact", limit, h.SubmitContact)
		api.POST("/assistant/chat", limit, h.ChatAssistant)

		// --- Protected Routes (Login Required) ---
		auth := api.Group("/")
		auth.Use(signedIn)
		{
			auth.GET("/profile", h.GetProfile)
			auth.PUT("/profile", h.UpdateProfile)
			auth.PUT("/profile/password", h.ChangePassword)

			// Cart
			auth.GET("/cart", h.GetCart)
			auth.GET("/cart/count", h.GetCartCount)
			auth.POST("/cart/items", h.AddToCart)
			auth.PUT("/cart/items/:product_id", h.UpdateCartItem)
			auth.DELETE("/cart/items/:product_id", h.DeleteCartItem)
			auth.DELETE("/cart", h.ClearCart)

			// Checkout & Orders
			auth.POST("/checkout", limit, h.Checkout)
			auth.GET("/orders", h.GetMyOrders)
			auth.GET("/orders/:id", h.GetOrderDetails)
			auth.POST("/orders/:id/cancel", h.CancelOrder)
			auth.POST("/orders/:id/pay", h.PayOrder)

			// Wishlist
			auth.GET("/wishlist", h.GetWishlist)
			auth.POST("/wishlist", h.AddToWishlist)
			auth.DELETE("/wishlist/:product_id", h.RemoveFromWishlist)
			auth.POST("/wishlist/:product_id/move-to-cart", h.MoveWishlistToCart)

			// Addresses
			auth.GET("/addresses", h.GetAddresses)
			auth.POST("/addresses", h.CreateAddress)
			auth.PUT("/addresses/:id", h.UpdateAddress)
			auth.DELETE("/addresses/:id", h.DeleteAddress)
			auth.PATCH("/addresses/:id/default", h.SetDefaultAddress)

			// Notifications
			auth.GET("/notifications", h.GetMyNotifications)
			auth.GET("/notifications/unread-count", h.GetUnreadCount)
			auth.PATCH("/notifications/read-all", h.MarkAllNotificationsAsRead)
			auth.PATCH("/notifications/:id/read", h.MarkNotificationAsRead)
			auth.DELETE("/notifications/:id", h.DeleteNotification)

			// Messages & Reviews
			auth.GET("/messages", h.GetMyMessages)
			auth.POST("/messages/:id/replies", h.ReplyToMessage)
			auth.POST("/products/:id/reviews", h.CreateReview)
		}

		// --- Admin Routes ---
		admin := api.Group("/admin")
		admin.Use(signedIn, middleware.RequireAdmin(h.DB))
		{
			admin.GET("/dashboard", h.GetDashboard)

			admin.GET("/products", h.GetAdminProducts)
			admin.POST("/products", h.CreateProduct)
			admin.PUT("/products/:id", h.UpdateProduct)
			admin.PATCH("/products/:id/archive", h.ArchiveProduct)
			admin.PATCH("/products/:id/restore", h.RestoreProduct)
			admin.PATCH("/products/:id/stock", h.UpdateStock)

			admin.GET("/categories", h.GetCategories)
			admin.POST("/categories", h.CreateCategory)
			admin.DELETE("/categories/:id", h.DeleteCategory)

			admin.POST("/uploads", h.UploadImage)

			admin.GET("/orders", h.GetAdminOrders)
			admin.GET("/orders/:id", h.GetAdminOrder)
			admin.PATCH("/orders/:id/status", h.UpdateOrderStatus)
			admin.PATCH("/payments/:id", h.UpdatePaymentStatus)

			admin.GET("/messages", h.GetAdminMessages)
			admin.POST("/messages/:id/replies", h.AdminReplyToMessage)
			admin.PATCH("/messages/:id/close", h.CloseMessage)

			admin.GET("/reviews", h.GetAdminReviews)
			admin.PATCH("/reviews/:id", h.ModerateReview)

			admin.GET("/users", h.GetAdminUsers)
		}
	}

	return router
}
