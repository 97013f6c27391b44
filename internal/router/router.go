// internal/router/router.go
package router

import (
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"github.com/javajoker/claimdesk-backend/internal/cache"
	"github.com/javajoker/claimdesk-backend/internal/config"
	"github.com/javajoker/claimdesk-backend/internal/handlers"
	"github.com/javajoker/claimdesk-backend/internal/middleware"
	"github.com/javajoker/claimdesk-backend/internal/models"
	"github.com/javajoker/claimdesk-backend/internal/services"
)

// Dependencies are the process-level resources the API is built from.
type Dependencies struct {
	DB       *gorm.DB
	Config   *config.Config
	Cache    cache.Store
	Objects  services.ObjectStore
	Notifier services.Notifier
	Log      logrus.FieldLogger
}

func Initialize(deps Dependencies) *gin.Engine {
	cfg := deps.Config
	db := deps.DB
	log := deps.Log

	// Initialize services
	coordinator := cache.NewCoordinator(deps.Cache, cfg.Cache.TTL(), log)
	timelineService := services.NewTimelineService(db, coordinator)
	claimService := services.NewClaimService(db, timelineService, coordinator, log)
	workflowService := services.NewWorkflowService(db, timelineService, coordinator, deps.Notifier, log)
	limits := services.DocumentLimits(cfg.Documents)
	documentService := services.NewDocumentService(db, deps.Objects, limits, timelineService, coordinator, log)
	infoRequestService := services.NewInfoRequestService(db, timelineService, coordinator, deps.Notifier, log)
	coverageService := services.NewCoverageService(db, timelineService, coordinator)

	// Initialize handlers
	claimHandler := handlers.NewClaimHandler(claimService, workflowService, documentService, timelineService, log)
	documentHandler := handlers.NewDocumentHandler(documentService, limits.MaxSize, log)
	infoRequestHandler := handlers.NewInfoRequestHandler(infoRequestService, log)
	coverageHandler := handlers.NewCoverageHandler(coverageService, log)

	// Initialize Gin router
	r := gin.New()

	// Global middleware
	r.Use(gin.Recovery())
	r.Use(middleware.RequestLogger(log))
	r.Use(cors.New(corsConfig(cfg.Server)))

	// Health check
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":  "healthy",
			"version": "1.0.0",
		})
	})

	// API v1 routes
	v1 := r.Group("/v1")
	v1.Use(middleware.AuthRequired())
	v1.Use(middleware.GeneralRateLimit())
	{
		claims := v1.Group("/claims")
		{
			claims.GET("", claimHandler.ListClaims)
			claims.POST("", claimHandler.CreateClaim)
			claims.GET("/:id", claimHandler.GetClaim)
			claims.PUT("/:id", claimHandler.UpdateClaim)
			claims.DELETE("/:id", claimHandler.DeleteClaim)
			claims.GET("/:id/timeline", claimHandler.GetTimeline)

			// Workflow
			claims.POST("/:id/submit", middleware.TransitionRateLimit(), claimHandler.SubmitClaim)
			claims.POST("/:id/transitions", middleware.TransitionRateLimit(), claimHandler.TransitionClaim)
			claims.POST("/:id/hospital-decision", middleware.TransitionRateLimit(), claimHandler.HospitalDecision)

			// Documents
			claims.GET("/:id/documents", documentHandler.ListDocuments)
			claims.POST("/:id/documents", middleware.UploadRateLimit(), documentHandler.UploadDocument)
			claims.GET("/:id/documents/:docId", documentHandler.DownloadDocument)
			claims.DELETE("/:id/documents/:docId", documentHandler.DeleteDocument)

			// Information requests
			claims.GET("/:id/info-requests", infoRequestHandler.ListInfoRequests)
			claims.POST("/:id/info-requests", middleware.RequireRoles(models.RoleHospitalAdmin), infoRequestHandler.CreateInfoRequest)

			claims.PUT("/:id/coverage-periods", coverageHandler.SetCoveragePeriods)
		}

		infoRequests := v1.Group("/info-requests")
		{
			infoRequests.POST("/:id/complete", infoRequestHandler.CompleteInfoRequest)
		}
	}

	return r
}

func corsConfig(server config.ServerConfig) cors.Config {
	corsCfg := cors.Config{
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization"},
		ExposeHeaders:    []string{"X-Total-Count", "X-Page", "X-Per-Page", "X-Total-Pages"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}
	if len(server.AllowOrigins) == 0 {
		corsCfg.AllowAllOrigins = true
		corsCfg.AllowCredentials = false
	} else {
		corsCfg.AllowOrigins = server.AllowOrigins
	}
	return corsCfg
}
