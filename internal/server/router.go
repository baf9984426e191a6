package server

import (
	"strings"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"github.com/gamescout/gamescout-backend/internal/handlers"
)

type RouterConfig struct {
	ServiceName       string
	AllowedOrigins    []string
	GameHandler       *handlers.GameHandler
	SuggestionHandler *handlers.SuggestionHandler
	SimilarityHandler *handlers.SimilarityHandler
}

func NewRouter(cfg RouterConfig) *gin.Engine {
	router := gin.Default()

	serviceName := strings.TrimSpace(cfg.ServiceName)
	if serviceName == "" {
		serviceName = "gamescout"
	}
	router.Use(otelgin.Middleware(serviceName))

	origins := cfg.AllowedOrigins
	if len(origins) == 0 {
		origins = []string{
			"http://localhost:80",
			"http://localhost:3000",
			"http://localhost:5173",
		}
	}
	router.Use(cors.New(cors.Config{
		AllowOrigins:     origins,
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "PATCH", "OPTIONS"},
		AllowHeaders:     []string{"Authorization", "Content-Type", "X-Requested-With"},
		AllowCredentials: true,
	}))

	router.GET("/healthcheck", handlers.HealthCheck)

	api := router.Group("/api")
	{
		api.POST("/games/ingest", cfg.GameHandler.Ingest)
		api.GET("/games/:appid", cfg.GameHandler.Get)

		api.GET("/games/:appid/suggestions", cfg.SuggestionHandler.Get)
		api.POST("/games/:appid/suggestions/refresh", cfg.SuggestionHandler.Refresh)
		api.DELETE("/games/:appid/suggestions", cfg.SuggestionHandler.Clear)

		api.GET("/games/:appid/similar", cfg.SimilarityHandler.Similar)
	}

	return router
}
