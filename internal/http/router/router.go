package router

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/sratov/TimeBankingBot/internal/config"
	"github.com/sratov/TimeBankingBot/internal/http/handlers"
	"github.com/sratov/TimeBankingBot/internal/http/middleware"
	"github.com/sratov/TimeBankingBot/internal/metrics"
)

// Handlers собирает все HTTP хэндлеры приложения.
type Handlers struct {
	Auth         *handlers.AuthHandler
	Users        *handlers.UserHandler
	Listings     *handlers.ListingHandler
	Friends      *handlers.FriendHandler
	Transactions *handlers.TransactionHandler
	Health       *handlers.HealthHandler
	WS           *handlers.WSHandler
}

func SetupRouter(cfg *config.Config, h Handlers, tokens middleware.AccessParser, rec *metrics.Recorder, log *logrus.Logger) *gin.Engine {
	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(middleware.RequestLogger(log))
	r.Use(middleware.Recovery(log))
	r.Use(rec.Middleware())
	r.Use(middleware.CORSMiddleware(cfg.AllowedOrigins))
	r.Use(middleware.ErrorHandler(log))

	r.GET("/health", h.Health.Health)
	r.GET("/metrics", gin.WrapH(rec.Handler()))
	r.StaticFS("/media", http.Dir(cfg.MediaStoragePath))

	api := r.Group("/api")

	authGroup := api.Group("/auth")
	authGroup.Use(middleware.RateLimitMiddleware(cfg.RateLimitLimit, cfg.RateLimitPeriod))
	{
		authGroup.POST("/telegram", h.Auth.TelegramLogin)
		authGroup.POST("/refresh", h.Auth.Refresh)
		authGroup.POST("/logout", h.Auth.Logout)
		if cfg.DevLoginEnabled() {
			authGroup.POST("/dev", h.Auth.DevLogin)
		}
	}

	api.GET("/ws", h.WS.Handle)

	protected := api.Group("/")
	protected.Use(middleware.AuthMiddleware(tokens))
	{
		protected.GET("/auth/sessions", h.Auth.ListSessions)
		protected.DELETE("/auth/sessions/:id", middleware.UUIDValidator("id"), h.Auth.DeleteSession)

		protected.GET("/users/me", h.Users.Me)
		protected.POST("/users/me/avatar", h.Users.UploadAvatar)
		protected.GET("/users/search", h.Users.Search)
		protected.GET("/users/partners", h.Users.Partners)
		protected.GET("/users/:id", middleware.UUIDValidator("id"), h.Users.Profile)
		protected.GET("/users/:id/listings", middleware.UUIDValidator("id"), h.Users.Listings)

		protected.GET("/listings", h.Listings.List)
		protected.POST("/listings", h.Listings.Create)
		protected.GET("/listings/:id", middleware.UUIDValidator("id"), h.Listings.Get)
		protected.POST("/listings/:id/apply", middleware.UUIDValidator("id"), h.Listings.Apply)
		protected.POST("/listings/:id/reject", middleware.UUIDValidator("id"), h.Listings.Reject)
		protected.POST("/listings/:id/accept", middleware.UUIDValidator("id"), h.Listings.Accept)
		protected.POST("/listings/:id/complete", middleware.UUIDValidator("id"), h.Listings.Complete)
		protected.POST("/listings/:id/confirm", middleware.UUIDValidator("id"), h.Listings.Confirm)
		protected.POST("/listings/:id/cancel", middleware.UUIDValidator("id"), h.Listings.Cancel)

		protected.GET("/transactions", h.Transactions.List)

		protected.GET("/friends", h.Friends.List)
		protected.GET("/friends/pending", h.Friends.Pending)
		protected.POST("/friends/requests", h.Friends.Request)
		protected.POST("/friends/:id/accept", middleware.UUIDValidator("id"), h.Friends.Accept)
		protected.POST("/friends/:id/reject", middleware.UUIDValidator("id"), h.Friends.Reject)
	}

	return r
}
