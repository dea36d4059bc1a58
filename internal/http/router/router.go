package router

import (
	"github.com/gin-gonic/gin"
	"github.com/ulule/limiter/v3"

	"github.com/ignatzorin/chemsus-backend/internal/config"
	"github.com/ignatzorin/chemsus-backend/internal/http/handlers"
	"github.com/ignatzorin/chemsus-backend/internal/http/middleware"
)

// Handlers набор HTTP хэндлеров приложения.
type Handlers struct {
	OTP       *handlers.OTPHandler
	Orders    *handlers.OrderHandler
	Payments  *handlers.PaymentHandler
	Messages  *handlers.MessageHandler
	Catalog   *handlers.CatalogHandler
	Settings  *handlers.SettingsHandler
	AdminAuth *handlers.AdminAuthHandler
	WS        *handlers.WSHandler
	Health    *handlers.HealthHandler
}

func SetupRouter(
	cfg *config.Config,
	h Handlers,
	admins middleware.AdminAuthenticator,
	limiterStore limiter.Store,
) *gin.Engine {
	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.RequestLogger())
	r.Use(middleware.ErrorHandler())
	r.Use(middleware.CORSMiddleware(cfg.AllowedOrigins))

	// Лимиты: коды и вход строже, остальное по общему лимиту.
	otpLimit := middleware.RateLimitMiddleware(limiterStore, "otp", 5, cfg.RateLimitPeriod)
	loginLimit := middleware.RateLimitMiddleware(limiterStore, "admin_login", 5, cfg.RateLimitPeriod)
	writeLimit := middleware.RateLimitMiddleware(limiterStore, "public_write", cfg.RateLimitLimit, cfg.RateLimitPeriod)
	adminAuth := middleware.AdminAuthMiddleware(admins)
	id := middleware.IDValidator("id")

	r.GET("/health", h.Health.Health)

	api := r.Group("/api")
	api.GET("/test", h.Health.Health)

	// Подтверждение email
	otp := api.Group("/")
	otp.Use(otpLimit)
	{
		otp.POST("/otp/send", h.OTP.Send)
		otp.POST("/otp/verify", h.OTP.Verify)
		otp.POST("/send-otp", h.OTP.Send)
		otp.POST("/verify-otp", h.OTP.Verify)
	}

	// Публичные маршруты
	api.GET("/products-page", h.Catalog.ListPageProducts)
	api.GET("/shop-items", h.Catalog.ListShopItems)
	api.GET("/settings", h.Settings.GetSettings)
	api.GET("/payments/upi", h.Payments.UPILink)

	api.POST("/orders", writeLimit, h.Orders.CreateOrder)
	api.GET("/orders/:id", id, h.Orders.GetOrder)
	api.POST("/orders/:id/payments", id, writeLimit, h.Payments.SubmitPayment)
	api.GET("/orders/:id/messages", id, h.Messages.ListMessages)
	api.POST("/orders/:id/messages", id, writeLimit, h.Messages.PostMessage)

	api.GET("/ws/admin", h.WS.AdminFeed)
	api.GET("/ws/orders/:id", id, h.WS.OrderFeed)

	api.POST("/admin/login", loginLimit, h.AdminAuth.Login)

	// Админка
	admin := api.Group("/admin")
	admin.Use(adminAuth)
	{
		admin.GET("/me", h.AdminAuth.Me)

		admin.GET("/orders", h.Orders.AdminListOrders)
		admin.GET("/orders/:id", id, h.Orders.AdminGetOrder)
		admin.PATCH("/orders/:id", id, h.Orders.AdminUpdateOrder)
		admin.DELETE("/orders/:id", id, h.Orders.AdminDeleteOrder)
		admin.GET("/orders/:id/messages", id, h.Messages.AdminListMessages)
		admin.POST("/orders/:id/messages", id, h.Messages.AdminPostMessage)

		admin.GET("/payments", h.Payments.AdminListPayments)
		admin.GET("/payments/:id/receipt", id, h.Payments.AdminReceipt)
		admin.PATCH("/payments/:id", id, h.Payments.AdminReviewPayment)

		admin.GET("/products-page", h.Catalog.AdminListPageProducts)
		admin.POST("/products-page", h.Catalog.AdminCreatePageProduct)
		admin.PUT("/products-page/:id", id, h.Catalog.AdminUpdatePageProduct)
		admin.DELETE("/products-page/:id", id, h.Catalog.AdminDeletePageProduct)

		admin.GET("/shop-items", h.Catalog.AdminListShopItems)
		admin.POST("/shop-items", h.Catalog.AdminCreateShopItem)
		admin.GET("/shop-items/:id", id, h.Catalog.AdminGetShopItem)
		admin.PUT("/shop-items/:id", id, h.Catalog.AdminUpdateShopItem)
		admin.DELETE("/shop-items/:id", id, h.Catalog.AdminDeleteShopItem)
		admin.PUT("/shop-items/:id/packs", id, h.Catalog.AdminReplacePacks)

		admin.PUT("/settings/:key", h.Settings.AdminSetSetting)
	}

	// Старые пути админки заказов
	legacy := api.Group("/adminorders")
	legacy.Use(adminAuth)
	{
		legacy.GET("", h.Orders.LegacyListOrders)
		legacy.PATCH("/:id", id, h.Orders.AdminUpdateOrder)
		legacy.DELETE("/:id", id, h.Orders.AdminDeleteOrder)
	}

	return r
}
