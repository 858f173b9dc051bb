package server

import (
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"linkedpost/infrastructure/metrics"
	"linkedpost/infrastructure/realtime"
	httpHandler "linkedpost/interfaces/http"
	"linkedpost/interfaces/middleware"
)

func InitiateRouter(
	sweepHandler httpHandler.ISweepHandler,
	postHandler httpHandler.IPostHandler,
	linkedInHandler httpHandler.ILinkedInOAuthHandler,
	healthHandler httpHandler.IHealthHandler,
	hub *realtime.Hub,
	secretKey string,
	allowOrigins []string,
) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(cors.New(cors.Config{
		AllowOrigins:     allowOrigins,
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization", "X-Requested-With", httpHandler.HeaderCronTrigger, httpHandler.HeaderVercelCron},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	router.GET("/healthz", healthHandler.Healthz)
	router.GET("/metrics", gin.WrapH(metrics.Handler()))
	router.GET("/auth/linkedin/callback", linkedInHandler.Callback)

	// The trigger is called by the scheduler, which carries no bearer token.
	cron := router.Group("api/cron")
	cron.POST("/post-scheduled", sweepHandler.Trigger)
	cron.GET("/post-scheduled", sweepHandler.MethodNotAllowed)

	api := router.Group("api")
	api.Use(middleware.Auth(secretKey))

	linkedin := api.Group("/linkedin")
	{
		linkedin.POST("/post", postHandler.Share)
		linkedin.GET("/auth", linkedInHandler.GetAuthURL)
		linkedin.GET("/status", linkedInHandler.Status)
		linkedin.POST("/disconnect", linkedInHandler.Disconnect)
	}

	posts := api.Group("/posts")
	{
		posts.GET("", postHandler.List)
		posts.DELETE("", postHandler.Delete)
		posts.DELETE("/:id", postHandler.Delete)
		if hub != nil {
			posts.GET("/stream", hub.Serve)
		}
	}

	return router
}
