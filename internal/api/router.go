package api

import (
	"log"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/mongo"

	"aqarmatch/server/internal/api/handlers"
	"aqarmatch/server/internal/api/middleware"
	"aqarmatch/server/internal/config"
	"aqarmatch/server/internal/models"
	"aqarmatch/server/internal/services"
	"aqarmatch/server/internal/storage"
)

// SetupRouter configures and returns the main Gin engine.
func SetupRouter(cfg *config.Config, db *mongo.Database, rdb *redis.Client, taskClient handlers.IAsynqClient) *gin.Engine {
	userService := services.NewUserService(db, cfg)
	requestService := services.NewRequestService(db, cfg, rdb)
	proposalService := services.NewProposalService(db, cfg)

	s3StorageService, err := storage.NewS3Storage(cfg)
	if err != nil {
		log.Fatalf("CRITICAL: Failed to initialize S3 storage for API: %v", err)
	}

	r := gin.Default()

	rateLimiter := middleware.NewRateLimiterMiddleware(cfg)
	r.Use(middleware.CORSMiddleware())
	r.Use(rateLimiter.Limit())

	authHandler := handlers.NewAuthHandler(cfg, userService)
	requestHandler := handlers.NewRequestHandler(requestService)
	proposalHandler := handlers.NewProposalHandler(cfg, proposalService, requestService, userService, s3StorageService, taskClient)

	v1 := r.Group("/v1")
	{
		v1.GET("/ping", func(c *gin.Context) {
			c.String(http.StatusOK, "pong")
		})

		v1.POST("/auth/register", authHandler.Register)
		v1.POST("/auth/login", authHandler.Login)

		// Public reads widen for authenticated callers (scopes, includes).
		optional := v1.Group("/")
		optional.Use(middleware.OptionalAuthMiddleware(cfg.JwtSecret))
		{
			optional.GET("/marketing-requests", requestHandler.ListRequests)
			optional.GET("/marketing-requests/:id", requestHandler.GetRequest)
		}

		authRequired := v1.Group("/")
		authRequired.Use(middleware.AuthMiddleware(cfg.JwtSecret))
		{
			authRequired.POST("/marketing-requests", requestHandler.CreateRequest)
			authRequired.PATCH("/marketing-requests/:id/status", requestHandler.UpdateStatus)

			authRequired.POST("/marketing-requests/:id/proposals",
				middleware.RequireRole(models.RoleAgent, models.RoleAdmin, models.RoleModerator),
				proposalHandler.CreateProposal)
			authRequired.GET("/marketing-requests/:id/proposals", proposalHandler.ListProposals)
			authRequired.PATCH("/marketing-requests/:id/proposals/:proposalId/status", proposalHandler.DecideProposal)
			authRequired.POST("/marketing-requests/:id/proposals/:proposalId/attachments", proposalHandler.PresignAttachment)
		}
	}

	return r
}
