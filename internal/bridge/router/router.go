package router

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/robloxguru/gamebridge/internal/bridge/handler"
)

// SetupRouter configures and returns the Gin router with all routes.
// Every public endpoint sits behind the rate limiter; the command poll
// endpoint does not, because a worker's poll loop would exhaust the quota
// immediately.
func SetupRouter(deps *handler.Dependencies) *gin.Engine {
	r := gin.New()

	r.Use(gin.Recovery())
	r.Use(LoggerMiddleware(deps.Logger))
	r.Use(CORSMiddleware())

	rateLimited := RateLimitMiddleware(deps.Limiter)

	// Health check endpoint
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":  "healthy",
			"service": "gamebridge-api",
		})
	})

	bridgeHandler := handler.NewBridgeHandler(deps)

	r.GET("/test", rateLimited, bridgeHandler.Test)

	// Worker/session-key routes
	r.POST("/command/execute", rateLimited, bridgeHandler.ExecuteCommand)
	r.POST("/server/players", rateLimited, bridgeHandler.GetPlayers)

	// Privileged internal routes
	internal := r.Group("/internal/server")
	{
		internal.POST("/submitPlayers", rateLimited, bridgeHandler.SubmitPlayers)
		internal.POST("/keepAlive", rateLimited, bridgeHandler.KeepAlive)

		// Poll route: session-key authenticated, not rate-limited
		internal.POST("/get/data/commands", bridgeHandler.PollCommands)
	}

	// Admin surface for the external control plane
	admin := r.Group("/admin", rateLimited, SecretAuthMiddleware(deps.Gate))
	{
		admin.GET("/sessions/:jobId/key", bridgeHandler.GetSessionKey)
		admin.GET("/players/search", bridgeHandler.SearchPlayer)
		admin.GET("/players/:jobId", bridgeHandler.ListPlayersByJob)
	}

	return r
}
